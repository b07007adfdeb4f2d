// Package gpio provides raw digital lines with hardware abstraction.
// The real implementation uses the Linux GPIO character device.
// The fake implementations allow testing without hardware.
package gpio

// Input reads a raw digital level. true = high.
type Input interface {
	Read() (bool, error)
}

// Output drives a digital level and remembers the last level written.
type Output interface {
	Set(high bool) error
	Get() bool
}

// Default line offsets on gpiochip0 (BCM numbering).
const (
	DefaultChip = "gpiochip0"

	DefaultPinMotorL1 = 5
	DefaultPinMotorL2 = 6
	DefaultPinMotorEn = 4
	DefaultPinButton  = 2
	DefaultPinBuzzer  = 11
	DefaultPinLED     = 17
)
