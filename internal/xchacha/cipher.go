// Package xchacha provides the per-session ChaCha20 channel cipher
// used by the "AUTH XCRYPT" extension: a keyed stream XOR transform
// plus a key-derivation function from a 32-byte pre-shared key and a
// 12-byte nonce.
//
// Ciphers are per-session; there is no cross-session state.
package xchacha

import (
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20"
)

const (
	// KeySize is the ChaCha20 key size in bytes.
	KeySize = chacha20.KeySize
	// NonceSize is the ChaCha20 (non-X) nonce size in bytes.
	NonceSize = chacha20.NonceSize
)

// ErrBadPSK is returned when a pre-shared key of the wrong length is supplied.
var ErrBadPSK = errors.New("xchacha: pre-shared key must be 32 bytes")

// Cipher wraps a keyed ChaCha20 stream for in-place XOR of session
// traffic. It is not safe for concurrent use; each session owns one.
type Cipher struct {
	c      *chacha20.Cipher
	active bool
}

// New seeds a Cipher from a derived session key and nonce. Use
// DeriveKey to compute key from a PSK and the session nonce first.
func New(key [KeySize]byte, nonce [NonceSize]byte) (*Cipher, error) {
	c, err := chacha20.NewUnauthenticatedCipher(key[:], nonce[:])
	if err != nil {
		return nil, fmt.Errorf("xchacha: init cipher: %w", err)
	}
	return &Cipher{c: c, active: true}, nil
}

// XOR applies the keystream to buf in place, consuming len(buf) bytes
// of keystream. Safe to call repeatedly across partial reads/writes:
// the underlying chacha20.Cipher tracks stream position internally.
func (c *Cipher) XOR(buf []byte) {
	c.c.XORKeyStream(buf, buf)
}

// Active reports whether the cipher has been initialized and not yet reset.
func (c *Cipher) Active() bool {
	return c != nil && c.active
}

// Reset scrubs the cipher state: the key and keystream state are
// zeroed and the reference dropped. Best-effort: the Go runtime may
// still retain copies via GC-relocatable memory.
func (c *Cipher) Reset() {
	if c == nil {
		return
	}
	if c.c != nil {
		*c.c = chacha20.Cipher{}
	}
	c.c = nil
	c.active = false
}

// DeriveKey derives a 32-byte session key from a pre-shared key and a
// per-session nonce: seed a ChaCha20 state with (psk as key, counter 0,
// nonce), generate one 64-byte block, and return the first 32 bytes.
// Deterministic: equal (psk, nonce) always yields equal output.
func DeriveKey(psk [KeySize]byte, nonce [NonceSize]byte) ([KeySize]byte, error) {
	var out [KeySize]byte
	c, err := chacha20.NewUnauthenticatedCipher(psk[:], nonce[:])
	if err != nil {
		return out, fmt.Errorf("xchacha: derive key: %w", err)
	}
	var block [64]byte
	var zero [64]byte
	c.XORKeyStream(block[:], zero[:])
	copy(out[:], block[:KeySize])
	// scrub the transient block
	for i := range block {
		block[i] = 0
	}
	return out, nil
}

// ParsePSK validates and copies a raw pre-shared key into the fixed
// array New/DeriveKey expect.
func ParsePSK(raw []byte) ([KeySize]byte, error) {
	var psk [KeySize]byte
	if len(raw) != KeySize {
		return psk, ErrBadPSK
	}
	copy(psk[:], raw)
	return psk, nil
}

// NewNonce generates a random 12-byte nonce from the OS entropy
// source. Per spec, a from-scratch implementation would fall back to
// a seeded PRNG if the OS source is unavailable; crypto/rand on every
// Go-supported platform blocks instead of silently degrading, so no
// such fallback exists here — a failure here is treated as fatal to
// the handshake rather than silently downgrading key material.
func NewNonce() ([NonceSize]byte, error) {
	var n [NonceSize]byte
	if _, err := rand.Read(n[:]); err != nil {
		return n, fmt.Errorf("xchacha: generate nonce: %w", err)
	}
	return n, nil
}
