// Package bufpool provides a fixed-capacity, lock-free buffer pool
// for data-transfer scratch space.
//
// Unlike sync.Pool, acquisition can fail: the pool holds exactly N
// buffers, allocated up front with make (page alignment is not
// enforced), and reports exhaustion instead of allocating
// past its bound, so a transfer handler can treat exhaustion as
// transient backpressure (spec: abort with 426) rather than silently
// growing memory.
package bufpool

import (
	"errors"
	"sync/atomic"
)

// MaxSlots is the largest pool size supported: the acquire bitmask is
// a single atomic.Uint64, and 64 slots comfortably covers the
// documented MAX_SESSIONS range of 16-32.
const MaxSlots = 64

// ErrTooManySlots is returned by New when n exceeds MaxSlots.
var ErrTooManySlots = errors.New("bufpool: slot count exceeds 64")

// ErrExhausted is returned by Acquire when every slot is in use.
var ErrExhausted = errors.New("bufpool: exhausted")

// Pool is a fixed array of n buffers of bufSize bytes each, with
// acquisition tracked by an atomic bitmask.
type Pool struct {
	bufs    [][]byte
	mask    atomic.Uint64
	bufSize int
}

// New creates a pool of n buffers, each bufSize bytes. n must be <= MaxSlots.
func New(n, bufSize int) (*Pool, error) {
	if n <= 0 || n > MaxSlots {
		return nil, ErrTooManySlots
	}
	bufs := make([][]byte, n)
	for i := range bufs {
		bufs[i] = make([]byte, bufSize)
	}
	return &Pool{bufs: bufs, bufSize: bufSize}, nil
}

// Len returns the number of slots in the pool.
func (p *Pool) Len() int { return len(p.bufs) }

// BufSize returns the size of each buffer.
func (p *Pool) BufSize() int { return p.bufSize }

// Acquire reserves the first free slot and returns its buffer, or
// ErrExhausted if none is free. Lock-free: finds the lowest clear bit
// and attempts a CAS to set it, retrying on contention.
func (p *Pool) Acquire() ([]byte, int, error) {
	n := len(p.bufs)
	for {
		cur := p.mask.Load()
		idx := -1
		for i := 0; i < n; i++ {
			if cur&(1<<uint(i)) == 0 {
				idx = i
				break
			}
		}
		if idx < 0 {
			return nil, -1, ErrExhausted
		}
		next := cur | (1 << uint(idx))
		if p.mask.CompareAndSwap(cur, next) {
			return p.bufs[idx], idx, nil
		}
		// Lost the race for that bit; retry from a fresh load.
	}
}

// Release returns slot idx (as returned by Acquire) to the pool.
func (p *Pool) Release(idx int) {
	if idx < 0 || idx >= len(p.bufs) {
		return
	}
	bit := uint64(1) << uint(idx)
	for {
		cur := p.mask.Load()
		next := cur &^ bit
		if p.mask.CompareAndSwap(cur, next) {
			return
		}
	}
}
