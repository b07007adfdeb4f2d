// Package timing provides non-blocking one-shot timers and repeating intervals.
//
// Both are sched.Units: they compare elapsed time against their duration on
// every tick and latch an edge when it is reached. Edges are read-once: the
// accessor returns true a single time and clears the latch, so exactly one
// reader observes each edge.
package timing

import "github.com/sweeney/duty-cycler/internal/clock"

// Timer fires once after its duration has elapsed.
// A zero duration never fires.
type Timer struct {
	clk       clock.Clock
	duration  uint32
	start     uint32
	armed     bool
	autoStart bool
	finished  bool
	done      bool
}

// NewTimer creates a timer. A nonzero duration arms it automatically on the
// first ready tick; zero leaves it idle until Start.
func NewTimer(clk clock.Clock, duration uint32) *Timer {
	return &Timer{clk: clk, duration: duration}
}

func (t *Timer) Setup() {
	t.autoStart = t.duration > 0
}

func (t *Timer) Ready(now uint32) {
	if t.autoStart {
		t.autoStart = false
		t.arm(now)
	}
}

func (t *Timer) Update(now uint32) {
	if !t.armed || t.duration == 0 {
		return
	}
	if clock.Elapsed(now, t.start) >= t.duration {
		t.armed = false
		t.finished = true
		t.done = true
	}
}

// Start arms the timer from the current clock reading.
// A nonzero duration replaces the configured one.
func (t *Timer) Start(duration uint32) {
	if duration > 0 {
		t.duration = duration
	}
	t.arm(t.clk.Millis())
}

func (t *Timer) arm(now uint32) {
	t.start = now
	t.armed = true
	t.finished = false
	t.done = false
}

// Stop disarms the timer. If it was armed, the done latch is set so a
// caller can tell a cancellation apart from a timeout via OnFinish.
func (t *Timer) Stop() {
	t.done = t.armed
	t.armed = false
	t.finished = false
}

// OnFinish reports, once, that the duration elapsed.
func (t *Timer) OnFinish() bool {
	f := t.finished
	t.finished = false
	return f
}

// OnDone reports, once, that the timer finished or was stopped while armed.
func (t *Timer) OnDone() bool {
	d := t.done
	t.done = false
	return d
}

// IsRunning reports whether the timer is armed.
func (t *Timer) IsRunning() bool {
	return t.armed
}

// IsFinished reports whether the timer is not armed.
func (t *Timer) IsFinished() bool {
	return !t.armed
}

// SetDuration replaces the duration without arming.
func (t *Timer) SetDuration(duration uint32) {
	t.duration = duration
}

// AddDuration extends the duration, including for an armed timer.
func (t *Timer) AddDuration(extra uint32) {
	t.duration += extra
}

// Duration returns the configured duration in milliseconds.
func (t *Timer) Duration() uint32 {
	return t.duration
}

// Remaining returns the milliseconds left before the timer fires, or 0 when idle.
func (t *Timer) Remaining() uint32 {
	if !t.armed {
		return 0
	}
	elapsed := clock.Elapsed(t.clk.Millis(), t.start)
	if elapsed >= t.duration {
		return 0
	}
	return t.duration - elapsed
}
