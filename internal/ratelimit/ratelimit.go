// Package ratelimit provides bandwidth-throttled io.Reader/io.Writer
// wrappers for FTP data transfers.
//
// It is used by the server's transfer handlers to cap RETR/STOR
// throughput to a configured bytes-per-second ceiling, independent of
// the OS socket buffers.
package ratelimit

import (
	"context"
	"io"

	"golang.org/x/time/rate"
)

// Limiter throttles throughput to a fixed bytes-per-second rate, with
// burst capacity equal to one second worth of data.
type Limiter struct {
	rl *rate.Limiter
}

// New creates a new rate limiter with the specified bytes per second
// limit. It returns nil (meaning "unlimited") for a non-positive rate,
// so callers can pass the result straight to NewReader/NewWriter
// without a conditional.
func New(bytesPerSecond int64) *Limiter {
	if bytesPerSecond <= 0 {
		return nil
	}
	burst := int(bytesPerSecond)
	if burst <= 0 {
		// bytesPerSecond overflowed int on a 32-bit platform; clamp the
		// burst rather than reject, since the rate itself is still valid.
		burst = 1 << 30
	}
	return &Limiter{rl: rate.NewLimiter(rate.Limit(bytesPerSecond), burst)}
}

// take blocks until n tokens are available. A nil receiver is
// unlimited and never blocks.
func (rl *Limiter) take(n int) {
	if rl == nil || n <= 0 {
		return
	}
	// WaitN rejects requests larger than the burst, and a chunk of
	// maxChunkSize/maxWriteChunkSize can exceed a low rate's burst, so
	// wait in pieces of at most one burst each.
	burst := rl.rl.Burst()
	for n > 0 {
		step := n
		if step > burst {
			step = burst
		}
		_ = rl.rl.WaitN(context.Background(), step)
		n -= step
	}
}

// reader wraps an io.Reader to limit read speed.
type reader struct {
	r       io.Reader
	limiter *Limiter
}

// NewReader creates a new rate-limited reader. If limiter is nil,
// returns the original reader unchanged.
func NewReader(r io.Reader, limiter *Limiter) io.Reader {
	if limiter == nil {
		return r
	}
	return &reader{r: r, limiter: limiter}
}

// maxChunkSize bounds a single Read so the limiter's wait is bounded too.
const maxChunkSize = 8 * 1024

// Read implements io.Reader with rate limiting.
func (r *reader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	readSize := len(p)
	if readSize > maxChunkSize {
		readSize = maxChunkSize
	}
	r.limiter.take(readSize)
	return r.r.Read(p[:readSize])
}

// writer wraps an io.Writer to limit write speed.
type writer struct {
	w       io.Writer
	limiter *Limiter
}

// NewWriter creates a new rate-limited writer. If limiter is nil,
// returns the original writer unchanged.
func NewWriter(w io.Writer, limiter *Limiter) io.Writer {
	if limiter == nil {
		return w
	}
	return &writer{w: w, limiter: limiter}
}

// maxWriteChunkSize bounds a single underlying Write call.
const maxWriteChunkSize = 64 * 1024

// Write implements io.Writer with rate limiting. Tokens are consumed
// before each chunk is written, so the limiter applies backpressure
// rather than only throttling after the fact.
func (w *writer) Write(p []byte) (int, error) {
	total := 0
	for total < len(p) {
		chunk := len(p) - total
		if chunk > maxWriteChunkSize {
			chunk = maxWriteChunkSize
		}
		w.limiter.take(chunk)
		n, err := w.w.Write(p[total : total+chunk])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
