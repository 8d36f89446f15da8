package ftpd

import (
	"encoding/hex"
	"strings"

	"github.com/duskvale/xftpd/internal/xchacha"
)

// Direction tags mixed into the session nonce before key derivation,
// so the server-to-client and client-to-server streams are keyed
// independently even though they share one handshake nonce.
const (
	dirServerToClient byte = 0x01
	dirClientToServer byte = 0x02
)

// directionNonce returns a copy of nonce with its last byte XORed by
// tag, giving DeriveKey a distinct input per direction.
func directionNonce(nonce [xchacha.NonceSize]byte, tag byte) [xchacha.NonceSize]byte {
	out := nonce
	out[len(out)-1] ^= tag
	return out
}

// dataCiphers derives a fresh pair of direction ciphers for one data
// connection. Each data connection is a distinct TCP stream, so
// reusing the control channel's tx/rx keystream position would either
// desync (if continued) or reuse keystream bytes (if restarted at
// zero); mixing the per-session transfer counter into the nonce before
// re-deriving gives every data connection its own keystream while
// still descending from the one handshake nonce and PSK.
func (s *session) dataCiphers() (tx, rx *xchacha.Cipher, err error) {
	s.transferSeq++
	seq := s.transferSeq
	nonce := s.handshakeNonce
	nonce[0] ^= byte(seq)
	nonce[1] ^= byte(seq >> 8)

	txKey, err := xchacha.DeriveKey(*s.server.psk, directionNonce(nonce, dirServerToClient))
	if err != nil {
		return nil, nil, err
	}
	rxKey, err := xchacha.DeriveKey(*s.server.psk, directionNonce(nonce, dirClientToServer))
	if err != nil {
		return nil, nil, err
	}
	tx, err = xchacha.New(txKey, nonce)
	if err != nil {
		return nil, nil, err
	}
	rx, err = xchacha.New(rxKey, nonce)
	if err != nil {
		return nil, nil, err
	}
	return tx, rx, nil
}

// handleAUTH implements the AUTH XCRYPT extension: AUTH is in the
// shared command table for every build. A mechanism other than XCRYPT
// gets 504; XCRYPT itself gets 502 unless the server was started
// WithPSK.
func (s *session) handleAUTH(arg string) {
	if !strings.EqualFold(arg, "XCRYPT") {
		s.reply(504, "Unsupported AUTH mechanism.")
		return
	}
	if s.server.psk == nil {
		s.reply(502, "AUTH XCRYPT not supported.")
		return
	}
	if s.cryptoActive {
		s.reply(503, "Channel is already encrypted.")
		return
	}

	nonce, err := xchacha.NewNonce()
	if err != nil {
		s.server.logger.Error("nonce generation failed", "session_id", s.id, "error", err)
		s.reply(431, "Unable to generate session key.")
		return
	}

	txKey, err := xchacha.DeriveKey(*s.server.psk, directionNonce(nonce, dirServerToClient))
	if err != nil {
		s.reply(431, "Unable to derive session key.")
		return
	}
	rxKey, err := xchacha.DeriveKey(*s.server.psk, directionNonce(nonce, dirClientToServer))
	if err != nil {
		s.reply(431, "Unable to derive session key.")
		return
	}

	txCipher, err := xchacha.New(txKey, nonce)
	if err != nil {
		s.reply(431, "Unable to initialize cipher.")
		return
	}
	rxCipher, err := xchacha.New(rxKey, nonce)
	if err != nil {
		s.reply(431, "Unable to initialize cipher.")
		return
	}
	txKey = [xchacha.KeySize]byte{}
	rxKey = [xchacha.KeySize]byte{}

	// Reply before swapping the connection: the client must see the
	// handshake reply in the clear, then start encrypting everything
	// after its own next write.
	s.reply(234, "XCRYPT "+hex.EncodeToString(nonce[:]))

	s.mu.Lock()
	wrapped := newCipherConn(s.conn, txCipher, rxCipher)
	s.conn = wrapped
	s.reader.Reset(newTelnetReader(wrapped))
	s.writer.Reset(wrapped)
	s.txCipher = txCipher
	s.rxCipher = rxCipher
	s.cryptoActive = true
	s.handshakeNonce = nonce
	s.mu.Unlock()

	s.server.logger.Info("channel_encrypted", "session_id", s.id)
}
