// Package clock provides the millisecond counter every timed component reads.
//
// Readings are uint32 and wrap at 2^32. Only differences between readings are
// meaningful; compute them with Elapsed, never by comparing absolute values.
package clock

import (
	"sync/atomic"
	"time"
)

// Clock returns a monotonically increasing millisecond counter.
type Clock interface {
	Millis() uint32
}

// Elapsed returns the milliseconds between since and now.
// Unsigned subtraction keeps the result correct across counter wraparound.
func Elapsed(now, since uint32) uint32 {
	return now - since
}

// Real counts milliseconds since it was created.
type Real struct {
	start  time.Time
	offset uint32
}

// NewReal creates a clock starting at zero.
func NewReal() *Real {
	return &Real{start: time.Now()}
}

// NewRealWithOffset creates a clock whose first reading is offset.
// Starting close to 2^32 exercises wraparound within minutes instead of weeks.
func NewRealWithOffset(offset uint32) *Real {
	return &Real{start: time.Now(), offset: offset}
}

// Millis returns milliseconds since creation plus the offset, truncated to 32 bits.
func (r *Real) Millis() uint32 {
	return uint32(time.Since(r.start).Milliseconds()) + r.offset
}

// Fake is a manually driven clock for tests.
type Fake struct {
	now atomic.Uint32
}

// NewFake creates a fake clock reading start.
func NewFake(start uint32) *Fake {
	f := &Fake{}
	f.now.Store(start)
	return f
}

// Millis returns the current fake reading.
func (f *Fake) Millis() uint32 {
	return f.now.Load()
}

// Set jumps the clock to ms.
func (f *Fake) Set(ms uint32) {
	f.now.Store(ms)
}

// Advance moves the clock forward by d milliseconds, wrapping like the real counter.
func (f *Fake) Advance(d uint32) uint32 {
	return f.now.Add(d)
}
