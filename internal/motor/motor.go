// Package motor drives an H-bridge style motor output: two direction lines
// and an enable line.
//
// The enable line is a plain digital output. Any nonzero speed energizes it;
// the level itself is kept for status reporting. A relay or contactor
// downstream has no use for PWM.
package motor

import (
	"errors"
	"fmt"

	"github.com/sweeney/duty-cycler/internal/gpio"
)

// Direction is the commanded motor direction.
type Direction string

const (
	Stopped  Direction = "STOP"
	Forward  Direction = "FORWARD"
	Backward Direction = "BACKWARD"
)

// Driver commands a motor through three outputs.
type Driver struct {
	l1, l2, en gpio.Output
	speed      uint8
	dir        Direction
}

// New creates a driver. speed is the level used when running (0-255).
func New(l1, l2, en gpio.Output, speed uint8) *Driver {
	return &Driver{l1: l1, l2: l2, en: en, speed: speed, dir: Stopped}
}

func (d *Driver) Setup() {
	d.Stop()
}

func (d *Driver) Ready(now uint32) {}

func (d *Driver) Update(now uint32) {}

// SetSpeed sets the running level. It takes effect on the next command.
func (d *Driver) SetSpeed(speed uint8) {
	d.speed = speed
}

// Forward energizes the motor forward.
func (d *Driver) Forward() error {
	return d.apply(Forward, false, true)
}

// Backward energizes the motor in reverse.
func (d *Driver) Backward() error {
	return d.apply(Backward, true, false)
}

// Stop de-energizes both direction lines and the enable line.
// Stopping a stopped motor re-issues the same levels.
func (d *Driver) Stop() error {
	return d.apply(Stopped, false, false)
}

func (d *Driver) apply(dir Direction, l1, l2 bool) error {
	enable := dir != Stopped && d.speed > 0
	err := errors.Join(
		wrap("l1", d.l1.Set(l1)),
		wrap("l2", d.l2.Set(l2)),
		wrap("enable", d.en.Set(enable)),
	)
	d.dir = dir
	return err
}

func wrap(line string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("motor %s: %w", line, err)
}

// Direction returns the last commanded direction.
func (d *Driver) Direction() Direction {
	return d.dir
}

// Speed returns the running level.
func (d *Driver) Speed() uint8 {
	return d.speed
}

// IsRunning reports whether the last command energized the motor.
func (d *Driver) IsRunning() bool {
	return d.dir != Stopped
}
