package timing

import "github.com/sweeney/duty-cycler/internal/clock"

// Interval steps every period, up to limit times (0 = forever).
//
// Each window starts at the tick that fired the previous step, not at the
// ideal boundary. Drift is therefore bounded by one tick per step and is
// never corrected.
type Interval struct {
	clk     clock.Clock
	period  uint32
	limit   uint32
	count   uint32
	start   uint32
	working bool
	step    bool
}

// NewInterval creates an interval. A nonzero period makes it work from setup.
func NewInterval(clk clock.Clock, period, limit uint32) *Interval {
	return &Interval{clk: clk, period: period, limit: limit}
}

func (i *Interval) Setup() {
	if i.period > 0 {
		i.working = true
	}
}

func (i *Interval) Ready(now uint32) {
	if i.working {
		i.start = now
	}
}

func (i *Interval) Update(now uint32) {
	if !i.working || i.period == 0 {
		return
	}
	if i.limit > 0 && i.count >= i.limit {
		i.working = false
		return
	}
	if clock.Elapsed(now, i.start) >= i.period {
		i.count++
		i.start = now
		i.step = true
	}
}

// Start restarts the interval from the current clock reading, keeping the
// repetition limit. A nonzero period replaces the configured one.
func (i *Interval) Start(period uint32) {
	if period > 0 {
		i.period = period
	}
	i.start = i.clk.Millis()
	i.count = 0
	i.working = true
	i.step = false
}

// StartN is Start with a new repetition limit (0 = forever).
func (i *Interval) StartN(period, limit uint32) {
	i.limit = limit
	i.Start(period)
}

// Stop halts the interval without stepping.
func (i *Interval) Stop() {
	i.working = false
	i.step = false
}

// OnStep reports, once, that a period elapsed.
func (i *Interval) OnStep() bool {
	s := i.step
	i.step = false
	return s
}

// IsRunning reports whether the interval is counting. It stays true until the
// tick after the limit is reached.
func (i *Interval) IsRunning() bool {
	return i.working
}

func (i *Interval) IsFinished() bool {
	return !i.working
}

// Count returns the steps fired since the last start.
func (i *Interval) Count() uint32 {
	return i.count
}

func (i *Interval) Period() uint32 {
	return i.period
}

func (i *Interval) Limit() uint32 {
	return i.limit
}
