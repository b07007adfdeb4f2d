// Package sched is the cooperative kernel driving every timed component.
//
// Units are registered once at startup, in the order that defines their
// update order, and live for the whole process. Nothing in a unit may block:
// all waiting is expressed as "not yet elapsed" and re-checked on the next tick.
package sched

import (
	"context"
	"errors"

	"github.com/sweeney/duty-cycler/internal/clock"
)

// MaxUnits bounds the registry. The device wires a fixed set of components.
const MaxUnits = 32

var (
	ErrStarted = errors.New("sched: cannot register after setup")
	ErrFull    = errors.New("sched: unit registry full")
	ErrNilUnit = errors.New("sched: nil unit")
)

// Unit is the lifecycle every scheduled component implements.
type Unit interface {
	// Setup runs once, before the clock is trusted.
	Setup()
	// Ready runs once, on the first tick with a nonzero clock reading.
	Ready(now uint32)
	// Update runs on every tick after Ready. It must not block.
	Update(now uint32)
}

// Scheduler owns the registered units and drives their lifecycle.
type Scheduler struct {
	units [MaxUnits]Unit
	n     int
	setup bool
	ready bool
	ticks uint64
}

// New creates a scheduler with units registered in the given order.
func New(units ...Unit) (*Scheduler, error) {
	s := &Scheduler{}
	for _, u := range units {
		if err := s.Register(u); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Register appends a unit. Only valid before Setup.
func (s *Scheduler) Register(u Unit) error {
	if u == nil {
		return ErrNilUnit
	}
	if s.setup {
		return ErrStarted
	}
	if s.n == MaxUnits {
		return ErrFull
	}
	s.units[s.n] = u
	s.n++
	return nil
}

// Setup calls every unit's Setup in registration order. Later calls are no-ops.
func (s *Scheduler) Setup() {
	if s.setup {
		return
	}
	s.setup = true
	for _, u := range s.units[:s.n] {
		u.Setup()
	}
}

// Tick runs one pass over the units.
// A zero reading is ignored. The first nonzero reading calls Ready on every
// unit; every later reading calls Update.
func (s *Scheduler) Tick(now uint32) {
	if now == 0 {
		return
	}
	s.ticks++

	if !s.ready {
		s.ready = true
		for _, u := range s.units[:s.n] {
			u.Ready(now)
		}
		return
	}

	for _, u := range s.units[:s.n] {
		u.Update(now)
	}
}

// Run calls Tick with a fresh clock reading for every value on ticks,
// until ctx is done or ticks is closed. Setup is performed first if needed.
func (s *Scheduler) Run(ctx context.Context, clk clock.Clock, ticks <-chan struct{}) error {
	s.Setup()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-ticks:
			if !ok {
				return nil
			}
			s.Tick(clk.Millis())
		}
	}
}

// IsReady reports whether the Ready pass has run.
func (s *Scheduler) IsReady() bool {
	return s.ready
}

// Len returns the number of registered units.
func (s *Scheduler) Len() int {
	return s.n
}

// Ticks returns how many nonzero ticks have been processed.
func (s *Scheduler) Ticks() uint64 {
	return s.ticks
}
