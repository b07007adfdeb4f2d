package controller

import (
	"math"
	"testing"

	"github.com/sweeney/duty-cycler/internal/button"
	"github.com/sweeney/duty-cycler/internal/clock"
	"github.com/sweeney/duty-cycler/internal/gpio"
	"github.com/sweeney/duty-cycler/internal/motor"
	"github.com/sweeney/duty-cycler/internal/output"
	"github.com/sweeney/duty-cycler/internal/sched"
)

type harness struct {
	t      *testing.T
	clk    *clock.Fake
	sched  *sched.Scheduler
	ctrl   *Controller
	motor  *motor.Driver
	enable *gpio.FakeOutput
	led    *output.Digital
	ledOut *gpio.FakeOutput
	buzOut *gpio.FakeOutput
	btnIn  *gpio.FakeInput
	events []Event
}

// testConfig: 3s restart interval, 2s countdown, 4s auto runs, 6s manual runs.
var testConfig = Config{
	PreStartDelayMs:  2000,
	RestartIntervalS: 3,
	AutoRunMs:        4000,
	ManualRunMs:      6000,
}

func newHarness(t *testing.T, cfg Config, start uint32) *harness {
	t.Helper()
	h := &harness{t: t, clk: clock.NewFake(start)}

	h.btnIn = gpio.NewFakeInput(true)
	btn := button.New(h.btnIn, button.DefaultThresholds)

	h.ledOut = gpio.NewFakeOutput()
	h.led = output.NewDigital("led", h.ledOut, h.clk)
	h.buzOut = gpio.NewFakeOutput()
	buzzer := output.NewDigital("buzzer", h.buzOut, h.clk)

	h.enable = gpio.NewFakeOutput()
	h.motor = motor.New(gpio.NewFakeOutput(), gpio.NewFakeOutput(), h.enable, 100)

	h.ctrl = New(cfg, Parts{
		Clock:  h.clk,
		Motor:  h.motor,
		LED:    h.led,
		Buzzer: buzzer,
		Button: btn,
	}, func(e Event) { h.events = append(h.events, e) })

	units := []sched.Unit{btn, h.led, buzzer, h.motor}
	units = append(units, h.ctrl.Units()...)
	units = append(units, h.ctrl)

	s, err := sched.New(units...)
	if err != nil {
		t.Fatalf("sched.New: %v", err)
	}
	h.sched = s
	s.Setup()
	s.Tick(h.clk.Millis())
	return h
}

// run advances the clock ms milliseconds, one tick per millisecond.
func (h *harness) run(ms uint32) {
	for i := uint32(0); i < ms; i++ {
		h.sched.Tick(h.clk.Advance(1))
	}
}

// press holds the button for held ms and releases it.
func (h *harness) press(held uint32) {
	h.btnIn.SetLevel(false)
	h.run(held)
	h.btnIn.SetLevel(true)
	h.run(1)
}

func (h *harness) requireState(want State) {
	h.t.Helper()
	if got := h.ctrl.State(); got != want {
		h.t.Fatalf("state: got %s, want %s", got, want)
	}
	if h.ctrl.MotorOn() != (want == StateRunning) {
		h.t.Fatalf("motorOn=%v in state %s", h.ctrl.MotorOn(), want)
	}
	if h.enable.Get() != (want == StateRunning) {
		h.t.Fatalf("enable line=%v in state %s", h.enable.Get(), want)
	}
}

func (h *harness) lastEvent() Event {
	h.t.Helper()
	if len(h.events) == 0 {
		h.t.Fatal("no events emitted")
	}
	return h.events[len(h.events)-1]
}

func TestBootEntersIdle(t *testing.T) {
	h := newHarness(t, testConfig, 1)

	h.requireState(StateIdle)
	if h.ctrl.Countdown() != 3 {
		t.Errorf("countdown: got %d, want 3", h.ctrl.Countdown())
	}
	if !h.led.IsFlashing() {
		t.Error("expected acknowledgement flash at boot")
	}
	e := h.lastEvent()
	if e.Type != EventBoot || e.Cause != CauseBoot || e.State != StateIdle {
		t.Errorf("boot event: got %+v", e)
	}

	h.run(400)
	if h.led.IsFlashing() {
		t.Error("acknowledgement flash should be brief")
	}
	if h.ledOut.Toggles() != 6 {
		t.Errorf("ack flash toggles: got %d, want 6", h.ledOut.Toggles())
	}
}

func TestFullDutyCycle(t *testing.T) {
	h := newHarness(t, testConfig, 1)

	h.run(1000)
	if h.ctrl.Countdown() != 2 {
		t.Errorf("after 1s: countdown %d, want 2", h.ctrl.Countdown())
	}
	h.run(1999)
	h.requireState(StateIdle)

	h.run(1)
	h.requireState(StateCountdown)
	snap := h.ctrl.Snapshot()
	if snap.PreStartRemainingMs != 2000 {
		t.Errorf("pre-start remaining: got %d, want 2000", snap.PreStartRemainingMs)
	}
	if !h.led.IsFlashing() {
		t.Error("LED should flash during countdown")
	}

	h.run(1999)
	h.requireState(StateCountdown)
	h.run(1)
	h.requireState(StateRunning)
	if h.led.IsFlashing() || !h.ledOut.Get() {
		t.Error("LED should be steady on while running")
	}
	if e := h.lastEvent(); e.Type != EventStart || e.Cause != CausePreStart || e.RunMs != 4000 {
		t.Errorf("start event: got %+v", e)
	}

	h.run(3999)
	h.requireState(StateRunning)
	h.run(1)
	h.requireState(StateIdle)
	if h.ctrl.Countdown() != 3 {
		t.Errorf("countdown after run: got %d, want 3", h.ctrl.Countdown())
	}
	if e := h.lastEvent(); e.Type != EventStop || e.Cause != CauseRunTimer {
		t.Errorf("stop event: got %+v", e)
	}

	c := h.ctrl.Snapshot().Counts
	if c.Starts != 1 || c.AutoStarts != 1 || c.Stops != 1 || c.Countdowns != 1 {
		t.Errorf("counts: got %+v", c)
	}
}

func TestCycleRepeats(t *testing.T) {
	h := newHarness(t, testConfig, 1)

	// Countdown at 3s, run at 5s, idle at 9s. The next countdown needs three
	// more steps after the acknowledgement flash.
	h.run(9000)
	h.requireState(StateIdle)
	h.run(4000)
	h.requireState(StateCountdown)
	h.run(2000)
	h.requireState(StateRunning)

	if got := h.ctrl.Snapshot().Counts.AutoStarts; got != 2 {
		t.Errorf("auto starts: got %d, want 2", got)
	}
}

func TestCountdownBuzzerPattern(t *testing.T) {
	h := newHarness(t, testConfig, 1)
	h.run(3000)
	h.requireState(StateCountdown)

	h.run(1999)
	// Three 300ms beeps: six toggles, ending low.
	if got := h.buzOut.Toggles(); got != 6 {
		t.Errorf("buzzer toggles: got %d, want 6", got)
	}
	if h.buzOut.Get() {
		t.Error("buzzer should end silent")
	}
}

func TestLongClickFromIdle(t *testing.T) {
	h := newHarness(t, testConfig, 1)
	h.run(1100) // countdown at 2

	h.press(600)
	h.requireState(StateRunning)
	if h.ctrl.Countdown() != 2 {
		t.Errorf("countdown should not reset while running: got %d", h.ctrl.Countdown())
	}
	if e := h.lastEvent(); e.Cause != CauseLongClick || e.RunMs != 6000 {
		t.Errorf("start event: got %+v", e)
	}

	// Running holds the countdown still.
	h.run(5999)
	h.requireState(StateRunning)
	if h.ctrl.Countdown() != 2 {
		t.Errorf("countdown moved while running: got %d", h.ctrl.Countdown())
	}

	h.run(1)
	h.requireState(StateIdle)
	if h.ctrl.Countdown() != 3 {
		t.Errorf("countdown after manual run: got %d, want 3", h.ctrl.Countdown())
	}
}

func TestLongClickRestartsRunning(t *testing.T) {
	h := newHarness(t, testConfig, 1)
	h.press(100) // short click: 4s automatic run
	h.requireState(StateRunning)

	h.run(3000)
	h.press(700) // long click while running: 6s manual run from here
	h.requireState(StateRunning)

	h.run(5999)
	h.requireState(StateRunning)
	h.run(1)
	h.requireState(StateIdle)
}

func TestShortClickWhileRunningStops(t *testing.T) {
	h := newHarness(t, testConfig, 1)
	h.press(100)
	h.requireState(StateRunning)
	if e := h.lastEvent(); e.Cause != CauseShortClick || e.RunMs != 4000 {
		t.Errorf("start event: got %+v", e)
	}

	h.run(1000)
	h.press(100)
	h.requireState(StateIdle)
	if h.ctrl.Countdown() != 3 {
		t.Errorf("countdown: got %d, want 3", h.ctrl.Countdown())
	}
	if e := h.lastEvent(); e.Type != EventStop || e.Cause != CauseShortClick {
		t.Errorf("stop event: got %+v", e)
	}

	// The canceled run timer must not fire later.
	stops := h.ctrl.Snapshot().Counts.Stops
	h.run(3500)
	if got := h.ctrl.Snapshot().Counts.Stops; got != stops {
		t.Errorf("canceled run timer fired: stops %d -> %d", stops, got)
	}
}

func TestShortClickDuringCountdownBypasses(t *testing.T) {
	h := newHarness(t, testConfig, 1)
	h.run(3000)
	h.requireState(StateCountdown)

	h.press(100)
	h.requireState(StateRunning)
	if h.buzOut.Get() || h.led.IsFlashing() {
		t.Error("countdown feedback should stop on start")
	}

	// The canceled pre-start timer must not start a second run.
	h.run(2500)
	if got := h.ctrl.Snapshot().Counts.Starts; got != 1 {
		t.Errorf("starts: got %d, want 1", got)
	}
	h.run(1500)
	h.requireState(StateIdle)
}

func TestBounceIgnored(t *testing.T) {
	h := newHarness(t, testConfig, 1)
	h.run(500)
	h.press(20)
	h.requireState(StateIdle)
	if c := h.ctrl.Snapshot().Counts; c.ShortClicks != 0 || c.LongClicks != 0 {
		t.Errorf("bounce counted as click: %+v", c)
	}
}

func TestCountdownHeldWhileFlashing(t *testing.T) {
	h := newHarness(t, testConfig, 1)
	h.run(400)

	h.led.Flash(100, 0)
	h.run(5000)
	if h.ctrl.Countdown() != 3 {
		t.Errorf("countdown advanced during flash: got %d", h.ctrl.Countdown())
	}
	h.requireState(StateIdle)

	h.led.FlashStop()
	h.run(3000)
	h.requireState(StateCountdown)
}

func TestIdlePingWraps(t *testing.T) {
	cfg := testConfig
	cfg.RestartIntervalS = 0
	h := newHarness(t, cfg, 1)

	h.run(10000)
	if got := h.ctrl.Snapshot().Ping; got != 10 {
		t.Errorf("ping after 10s: got %d, want 10", got)
	}
	h.run(1000)
	if got := h.ctrl.Snapshot().Ping; got != 0 {
		t.Errorf("ping after 11s: got %d, want 0", got)
	}
	h.run(1000)
	if got := h.ctrl.Snapshot().Ping; got != 1 {
		t.Errorf("ping after 12s: got %d, want 1", got)
	}
	h.requireState(StateIdle)
}

func TestZeroPreStartDelayStartsImmediately(t *testing.T) {
	cfg := testConfig
	cfg.PreStartDelayMs = 0
	h := newHarness(t, cfg, 1)

	h.run(3000)
	h.requireState(StateRunning)
	if e := h.lastEvent(); e.Cause != CauseSchedule {
		t.Errorf("start cause: got %s, want SCHEDULE", e.Cause)
	}
}

func TestZeroManualRunRunsUntilStopped(t *testing.T) {
	cfg := testConfig
	cfg.ManualRunMs = 0
	h := newHarness(t, cfg, 1)

	h.press(600)
	h.requireState(StateRunning)
	h.run(60000)
	h.requireState(StateRunning)
	if h.ctrl.Snapshot().RunRemainingMs != 0 {
		t.Error("unbounded run should report no remaining time")
	}

	h.press(100)
	h.requireState(StateIdle)
}

func TestDutyCycleAcrossClockWraparound(t *testing.T) {
	h := newHarness(t, testConfig, math.MaxUint32-2500)

	h.run(3000)
	h.requireState(StateCountdown)
	h.run(2000)
	h.requireState(StateRunning)
	h.run(4000)
	h.requireState(StateIdle)
}

func TestNilSink(t *testing.T) {
	clk := clock.NewFake(1)
	led := output.NewDigital("led", gpio.NewFakeOutput(), clk)
	buz := output.NewDigital("buzzer", gpio.NewFakeOutput(), clk)
	m := motor.New(gpio.NewFakeOutput(), gpio.NewFakeOutput(), gpio.NewFakeOutput(), 1)
	btn := button.New(gpio.NewFakeInput(true), button.DefaultThresholds)

	c := New(testConfig, Parts{Clock: clk, Motor: m, LED: led, Buzzer: buz, Button: btn}, nil)
	units := append([]sched.Unit{btn, led, buz, m}, c.Units()...)
	s, err := sched.New(append(units, c)...)
	if err != nil {
		t.Fatal(err)
	}
	s.Setup()
	s.Tick(1)
	if c.State() != StateIdle {
		t.Errorf("state: got %s", c.State())
	}
}

func TestShutdownWhileRunning(t *testing.T) {
	h := newHarness(t, testConfig, 1)
	h.press(700)
	h.requireState(StateRunning)
	stops := h.ctrl.Snapshot().Counts.Stops

	h.ctrl.Shutdown()
	h.requireState(StateIdle)
	if e := h.lastEvent(); e.Type != EventStop || e.Cause != CauseShutdown || e.State != StateIdle {
		t.Errorf("stop event: got %+v", e)
	}
	snap := h.ctrl.Snapshot()
	if snap.MotorOn || snap.RunRemainingMs != 0 {
		t.Errorf("snapshot after shutdown: %+v", snap)
	}
	if snap.Counts.Stops != stops+1 {
		t.Errorf("stops: got %d, want %d", snap.Counts.Stops, stops+1)
	}
	if h.led.IsFlashing() || h.ledOut.Get() {
		t.Error("LED should be dark after shutdown")
	}
}

func TestShutdownDuringCountdown(t *testing.T) {
	h := newHarness(t, testConfig, 1)
	h.run(3000)
	h.requireState(StateCountdown)
	emitted := len(h.events)

	h.ctrl.Shutdown()
	h.requireState(StateIdle)
	if len(h.events) != emitted {
		t.Errorf("no motor ran, expected no event, got %+v", h.lastEvent())
	}
	if h.buzOut.Get() || h.ledOut.Get() {
		t.Error("indicators should be off after shutdown")
	}

	// The canceled pre-start timer must not start the motor.
	h.run(2500)
	h.requireState(StateIdle)
}
