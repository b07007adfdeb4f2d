package sched

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/sweeney/duty-cycler/internal/clock"
)

// recorder appends every lifecycle call to a shared log.
type recorder struct {
	name string
	log  *[]string
}

func (r *recorder) Setup()            { *r.log = append(*r.log, r.name+":setup") }
func (r *recorder) Ready(now uint32)  { *r.log = append(*r.log, fmt.Sprintf("%s:ready@%d", r.name, now)) }
func (r *recorder) Update(now uint32) { *r.log = append(*r.log, fmt.Sprintf("%s:update@%d", r.name, now)) }

func equalLog(t *testing.T, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("log length: got %d %v, want %d %v", len(got), got, len(want), want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("log[%d]: got %q, want %q", i, got[i], want[i])
		}
	}
}

func TestLifecycleOrder(t *testing.T) {
	var log []string
	s, err := New(&recorder{"a", &log}, &recorder{"b", &log})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	s.Setup()
	s.Tick(0) // clock not valid yet
	s.Tick(5)
	s.Tick(7)
	s.Tick(9)

	equalLog(t, log, []string{
		"a:setup", "b:setup",
		"a:ready@5", "b:ready@5",
		"a:update@7", "b:update@7",
		"a:update@9", "b:update@9",
	})
}

func TestZeroTickIgnored(t *testing.T) {
	var log []string
	s, _ := New(&recorder{"a", &log})
	s.Setup()

	for i := 0; i < 3; i++ {
		s.Tick(0)
	}
	if s.IsReady() {
		t.Error("should not be ready before a nonzero reading")
	}
	if s.Ticks() != 0 {
		t.Errorf("Ticks: got %d, want 0", s.Ticks())
	}
	equalLog(t, log, []string{"a:setup"})
}

func TestReadyOnlyOnce(t *testing.T) {
	var log []string
	s, _ := New(&recorder{"a", &log})
	s.Setup()
	s.Tick(1)
	// A wrapped counter reading zero again must not re-run Ready.
	s.Tick(0)
	s.Tick(2)

	equalLog(t, log, []string{"a:setup", "a:ready@1", "a:update@2"})
}

func TestSetupIdempotent(t *testing.T) {
	var log []string
	s, _ := New(&recorder{"a", &log})
	s.Setup()
	s.Setup()
	equalLog(t, log, []string{"a:setup"})
}

func TestRegisterErrors(t *testing.T) {
	var log []string
	s, _ := New()

	if err := s.Register(nil); !errors.Is(err, ErrNilUnit) {
		t.Errorf("nil unit: got %v, want ErrNilUnit", err)
	}

	for i := 0; i < MaxUnits; i++ {
		if err := s.Register(&recorder{fmt.Sprint(i), &log}); err != nil {
			t.Fatalf("register %d: %v", i, err)
		}
	}
	if err := s.Register(&recorder{"extra", &log}); !errors.Is(err, ErrFull) {
		t.Errorf("over capacity: got %v, want ErrFull", err)
	}
	if s.Len() != MaxUnits {
		t.Errorf("Len: got %d, want %d", s.Len(), MaxUnits)
	}
}

func TestRegisterAfterSetup(t *testing.T) {
	var log []string
	s, _ := New(&recorder{"a", &log})
	s.Setup()

	if err := s.Register(&recorder{"late", &log}); !errors.Is(err, ErrStarted) {
		t.Errorf("got %v, want ErrStarted", err)
	}
}

func TestNewPropagatesError(t *testing.T) {
	_, err := New(nil)
	if !errors.Is(err, ErrNilUnit) {
		t.Errorf("got %v, want ErrNilUnit", err)
	}
}

func TestRunDrivesTicksUntilClosed(t *testing.T) {
	var log []string
	s, _ := New(&recorder{"a", &log})
	clk := clock.NewFake(10)

	ticks := make(chan struct{}, 3)
	ticks <- struct{}{}
	ticks <- struct{}{}
	ticks <- struct{}{}
	close(ticks)

	// Advancing between ticks is not possible from here, so every tick
	// observes the same reading.
	if err := s.Run(context.Background(), clk, ticks); err != nil {
		t.Fatalf("Run: %v", err)
	}
	equalLog(t, log, []string{"a:setup", "a:ready@10", "a:update@10", "a:update@10"})
}

func TestRunStopsOnContext(t *testing.T) {
	s, _ := New()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx, clock.NewFake(1), make(chan struct{}))
	}()

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("got %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
