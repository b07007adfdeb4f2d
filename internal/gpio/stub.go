//go:build !linux

package gpio

import "errors"

var errUnsupported = errors.New("gpio: not supported on this platform (requires Linux)")

// Chip is not available on non-Linux platforms.
type Chip struct{}

// OpenChip returns an error on non-Linux platforms.
func OpenChip(name string) (*Chip, error) {
	return nil, errUnsupported
}

// RequestInput is not implemented on non-Linux platforms.
func (c *Chip) RequestInput(offset int, pullUp bool) (*InputLine, error) {
	return nil, errUnsupported
}

// RequestOutput is not implemented on non-Linux platforms.
func (c *Chip) RequestOutput(offset int) (*OutputLine, error) {
	return nil, errUnsupported
}

// Close is not implemented on non-Linux platforms.
func (c *Chip) Close() error {
	return nil
}

// InputLine is not available on non-Linux platforms.
type InputLine struct{}

// Read is not implemented on non-Linux platforms.
func (i *InputLine) Read() (bool, error) {
	return false, errUnsupported
}

// OutputLine is not available on non-Linux platforms.
type OutputLine struct{}

// Set is not implemented on non-Linux platforms.
func (o *OutputLine) Set(high bool) error {
	return errUnsupported
}

// Get is not implemented on non-Linux platforms.
func (o *OutputLine) Get() bool {
	return false
}
