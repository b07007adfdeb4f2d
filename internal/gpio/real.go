//go:build linux

package gpio

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// Chip hands out lines from a Linux GPIO character device.
type Chip struct {
	chip    *gpiocdev.Chip
	inputs  []*gpiocdev.Line
	outputs []*gpiocdev.Line
}

// OpenChip opens the named chip, e.g. "gpiochip0".
func OpenChip(name string) (*Chip, error) {
	chip, err := gpiocdev.NewChip(name)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}
	return &Chip{chip: chip}, nil
}

// RequestInput requests a line as input, optionally with the internal pull-up
// a normally-open button to ground needs.
func (c *Chip) RequestInput(offset int, pullUp bool) (*InputLine, error) {
	bias := gpiocdev.WithPullDown
	if pullUp {
		bias = gpiocdev.WithPullUp
	}
	line, err := c.chip.RequestLine(offset, gpiocdev.AsInput, bias)
	if err != nil {
		return nil, fmt.Errorf("request input pin %d: %w", offset, err)
	}
	c.inputs = append(c.inputs, line)
	return &InputLine{line: line}, nil
}

// RequestOutput requests a line as output, initially low.
func (c *Chip) RequestOutput(offset int) (*OutputLine, error) {
	line, err := c.chip.RequestLine(offset, gpiocdev.AsOutput(0))
	if err != nil {
		return nil, fmt.Errorf("request output pin %d: %w", offset, err)
	}
	c.outputs = append(c.outputs, line)
	return &OutputLine{line: line}, nil
}

// Close releases every requested line and the chip.
// Outputs are driven low and all lines are returned to input with pull-down
// (the Pi boot default) so the contactor cannot latch on across a restart.
func (c *Chip) Close() error {
	var errs []error

	for _, l := range c.outputs {
		if err := l.SetValue(0); err != nil {
			errs = append(errs, fmt.Errorf("drive pin %d low: %w", l.Offset(), err))
		}
	}
	for _, l := range append(c.outputs, c.inputs...) {
		if err := l.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure pin %d: %w", l.Offset(), err))
		}
		if err := l.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close pin %d: %w", l.Offset(), err))
		}
	}
	if c.chip != nil {
		if err := c.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

// InputLine is a requested input line.
type InputLine struct {
	line *gpiocdev.Line
}

// Read returns the raw level of the line.
func (i *InputLine) Read() (bool, error) {
	v, err := i.line.Value()
	if err != nil {
		return false, fmt.Errorf("read pin %d: %w", i.line.Offset(), err)
	}
	return v != 0, nil
}

// OutputLine is a requested output line.
type OutputLine struct {
	line  *gpiocdev.Line
	level bool
}

// Set drives the line.
func (o *OutputLine) Set(high bool) error {
	v := 0
	if high {
		v = 1
	}
	if err := o.line.SetValue(v); err != nil {
		return fmt.Errorf("write pin %d: %w", o.line.Offset(), err)
	}
	o.level = high
	return nil
}

// Get returns the last level written.
func (o *OutputLine) Get() bool {
	return o.level
}
