// Package button classifies press-release cycles of a pull-up push button.
package button

import (
	"log/slog"

	"github.com/sweeney/duty-cycler/internal/clock"
	"github.com/sweeney/duty-cycler/internal/gpio"
)

// Result is the classification of one press-release cycle.
type Result uint8

const (
	None Result = iota
	Short
	Long
)

func (r Result) String() string {
	switch r {
	case Short:
		return "SHORT"
	case Long:
		return "LONG"
	default:
		return "NONE"
	}
}

// Thresholds bound the held duration of a press, in milliseconds.
// Held < Debounce is contact noise, held < Long is a short click, anything
// longer is a long click.
type Thresholds struct {
	Debounce uint32
	Long     uint32
}

// DefaultThresholds are 50ms debounce and a 500ms short/long boundary.
var DefaultThresholds = Thresholds{Debounce: 50, Long: 500}

// Button samples an active-low input once per tick.
//
// The result is recomputed on every tick and only survives until the next
// one. A consumer that does not poll on every tick will miss clicks.
type Button struct {
	in         gpio.Input
	th         Thresholds
	high       bool
	pressed    bool
	downAt     uint32
	result     Result
	readErrors uint64
}

// New creates a button reading in with the given thresholds.
func New(in gpio.Input, th Thresholds) *Button {
	return &Button{in: in, th: th, high: true}
}

func (b *Button) Setup() {
	b.high = true
	b.pressed = false
	b.downAt = 0
	b.result = None
}

func (b *Button) Ready(now uint32) {}

func (b *Button) Update(now uint32) {
	b.result = None
	wasHigh := b.high

	high, err := b.in.Read()
	if err != nil {
		b.readErrors++
		slog.Debug("button read failed", "err", err)
		return
	}
	b.high = high

	switch {
	case wasHigh && !high:
		b.pressed = true
		b.downAt = now
	case !wasHigh && high && b.pressed:
		b.result = b.classify(clock.Elapsed(now, b.downAt))
		b.pressed = false
		b.downAt = 0
	}
}

func (b *Button) classify(held uint32) Result {
	switch {
	case held < b.th.Debounce:
		return None
	case held < b.th.Long:
		return Short
	default:
		return Long
	}
}

// Result returns this tick's classification.
func (b *Button) Result() Result {
	return b.result
}

// OnClick reports a short or long click released this tick.
func (b *Button) OnClick() bool {
	return b.result != None
}

func (b *Button) OnShortClick() bool {
	return b.result == Short
}

func (b *Button) OnLongClick() bool {
	return b.result == Long
}

// IsPressed reports whether the button is currently held down.
func (b *Button) IsPressed() bool {
	return b.pressed
}

func (b *Button) IsReleased() bool {
	return !b.pressed
}

// ReadErrors returns how many samples failed and were skipped.
func (b *Button) ReadErrors() uint64 {
	return b.readErrors
}
