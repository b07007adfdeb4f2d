// Package output drives on/off indicators (LED, buzzer) with non-blocking flashing.
package output

import (
	"log/slog"

	"github.com/sweeney/duty-cycler/internal/clock"
	"github.com/sweeney/duty-cycler/internal/gpio"
	"github.com/sweeney/duty-cycler/internal/timing"
)

// Digital is a scheduled digital output.
// Flashing inverts the line every period using its own Interval.
type Digital struct {
	name     string
	out      gpio.Output
	interval *timing.Interval
	period   uint32
	times    uint32
}

// NewDigital creates an output. name is only used in log lines.
func NewDigital(name string, out gpio.Output, clk clock.Clock) *Digital {
	return &Digital{
		name:     name,
		out:      out,
		interval: timing.NewInterval(clk, 0, 0),
	}
}

func (d *Digital) Setup() {
	d.interval.Setup()
	d.Off()
}

func (d *Digital) Ready(now uint32) {
	d.interval.Ready(now)
}

func (d *Digital) Update(now uint32) {
	d.interval.Update(now)
	if d.interval.OnStep() {
		d.Invert()
	}
}

// On drives the line high.
func (d *Digital) On() {
	d.Set(true)
}

// Off drives the line low.
func (d *Digital) Off() {
	d.Set(false)
}

// Invert flips the line.
func (d *Digital) Invert() {
	d.Set(!d.out.Get())
}

// Set drives the line. Write failures are logged and otherwise ignored.
func (d *Digital) Set(high bool) {
	if err := d.out.Set(high); err != nil {
		slog.Warn("output write failed", "output", d.name, "err", err)
	}
}

// IsHigh reports the last level written.
func (d *Digital) IsHigh() bool {
	return d.out.Get()
}

// Flash toggles the output every period ms, times on/off cycles (0 = forever).
// The output starts low. Repeating an identical Flash while it is still
// flashing leaves the pattern untouched.
func (d *Digital) Flash(period, times uint32) {
	if d.IsFlashing() && d.period == period && d.times == times {
		return
	}
	d.period = period
	d.times = times
	// One step for the on phase and one for the off phase.
	d.interval.StartN(period, times*2)
	d.Off()
}

// FlashStop halts flashing, leaving the line at its current level.
func (d *Digital) FlashStop() {
	d.interval.Stop()
}

// IsFlashing reports whether a flash pattern is in progress.
func (d *Digital) IsFlashing() bool {
	return d.interval.IsRunning()
}
