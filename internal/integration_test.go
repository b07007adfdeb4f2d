package internal

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/sweeney/duty-cycler/internal/button"
	"github.com/sweeney/duty-cycler/internal/clock"
	"github.com/sweeney/duty-cycler/internal/controller"
	"github.com/sweeney/duty-cycler/internal/gpio"
	"github.com/sweeney/duty-cycler/internal/motor"
	"github.com/sweeney/duty-cycler/internal/mqtt"
	"github.com/sweeney/duty-cycler/internal/output"
	"github.com/sweeney/duty-cycler/internal/sched"
	"github.com/sweeney/duty-cycler/internal/status"
)

// rig wires the whole control core to fake lines, publishing every
// transition straight to a FakePublisher.
type rig struct {
	t         *testing.T
	clk       *clock.Fake
	sched     *sched.Scheduler
	ctrl      *controller.Controller
	btn       *button.Button
	btnIn     *gpio.FakeInput
	l1, l2    *gpio.FakeOutput
	en        *gpio.FakeOutput
	publisher *mqtt.FakePublisher
	tracker   *status.Tracker
}

var rigConfig = controller.Config{
	PreStartDelayMs:  1000,
	RestartIntervalS: 5,
	AutoRunMs:        3000,
	ManualRunMs:      6000,
}

func newRig(t *testing.T, cfg controller.Config) *rig {
	t.Helper()
	r := &rig{
		t:         t,
		clk:       clock.NewFake(1000),
		btnIn:     gpio.NewFakeInput(true),
		l1:        gpio.NewFakeOutput(),
		l2:        gpio.NewFakeOutput(),
		en:        gpio.NewFakeOutput(),
		publisher: mqtt.NewFakePublisher(),
		tracker:   status.NewTracker(time.Now(), "rig", status.Config{}),
	}

	r.btn = button.New(r.btnIn, button.DefaultThresholds)
	led := output.NewDigital("led", gpio.NewFakeOutput(), r.clk)
	buzzer := output.NewDigital("buzzer", gpio.NewFakeOutput(), r.clk)
	drv := motor.New(r.l1, r.l2, r.en, 200)

	r.ctrl = controller.New(cfg, controller.Parts{
		Clock:  r.clk,
		Motor:  drv,
		LED:    led,
		Buzzer: buzzer,
		Button: r.btn,
	}, func(e controller.Event) {
		if err := r.publisher.Publish(e); err != nil {
			t.Logf("publish: %v", err)
		}
	})

	units := append([]sched.Unit{r.btn, led, buzzer, drv}, r.ctrl.Units()...)
	s, err := sched.New(append(units, r.ctrl)...)
	if err != nil {
		t.Fatalf("sched.New: %v", err)
	}
	r.sched = s
	s.Setup()
	s.Tick(r.clk.Millis())
	return r
}

// run advances ms milliseconds in 5 ms ticks, like the daemon's default poll.
func (r *rig) run(ms uint32) {
	for elapsed := uint32(0); elapsed < ms; elapsed += 5 {
		r.sched.Tick(r.clk.Advance(5))
		r.tracker.Update(r.ctrl.Snapshot(), status.Loop{
			Ticks:           r.sched.Ticks(),
			InputReadErrors: r.btn.ReadErrors(),
		})
	}
}

func (r *rig) press(held uint32) {
	r.btnIn.SetLevel(false)
	r.run(held)
	r.btnIn.SetLevel(true)
	r.run(5)
}

func (r *rig) eventTypes() []controller.EventType {
	var out []controller.EventType
	for _, e := range r.publisher.RecordedEvents() {
		out = append(out, e.Type)
	}
	return out
}

func TestIntegrationAutomaticCycle(t *testing.T) {
	r := newRig(t, rigConfig)

	r.run(5000 + 1000 + 3000 + 10)

	want := []controller.EventType{
		controller.EventBoot, controller.EventCountdown, controller.EventStart, controller.EventStop,
	}
	got := r.eventTypes()
	if len(got) != len(want) {
		t.Fatalf("events: got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d: got %s, want %s", i, got[i], want[i])
		}
	}

	// The payload of the stop reports the fresh countdown.
	var p mqtt.Payload
	if err := json.Unmarshal(r.publisher.Payloads[3], &p); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if p.Motor.Event != "MOTOR_STOP" || p.Motor.Cause != "RUN_TIMER" || p.Motor.State != "IDLE" || p.Motor.CountdownS != 5 {
		t.Errorf("stop payload: %+v", p.Motor)
	}
}

func TestIntegrationManualOverride(t *testing.T) {
	r := newRig(t, rigConfig)
	r.run(500)

	r.press(800)
	if !r.en.Get() || r.l1.Get() || !r.l2.Get() {
		t.Errorf("motor lines after long click: l1=%v l2=%v en=%v", r.l1.Get(), r.l2.Get(), r.en.Get())
	}

	r.run(1000)
	r.press(100)
	if r.en.Get() {
		t.Error("motor should be disabled after short click")
	}

	events := r.publisher.RecordedEvents()
	if len(events) != 3 {
		t.Fatalf("expected BOOT, START, STOP; got %v", r.eventTypes())
	}
	if events[1].Cause != controller.CauseLongClick || events[1].RunMs != 6000 {
		t.Errorf("start: %+v", events[1])
	}
	if events[2].Cause != controller.CauseShortClick {
		t.Errorf("stop cause: %s", events[2].Cause)
	}
}

func TestIntegrationReadErrorsAbsorbed(t *testing.T) {
	r := newRig(t, rigConfig)
	r.btnIn.ReadError = errors.New("line busy")

	r.run(7000)
	if r.ctrl.State() != controller.StateRunning {
		t.Errorf("cycle should continue without the button, state %s", r.ctrl.State())
	}

	snap := r.tracker.Snapshot()
	if snap.Loop.InputReadErrors == 0 {
		t.Error("read errors should be counted")
	}

	r.btnIn.ReadError = nil
	r.press(100)
	if r.ctrl.State() != controller.StateIdle {
		t.Errorf("button should work again after errors clear, state %s", r.ctrl.State())
	}
}

func TestIntegrationStatusReflectsCountdown(t *testing.T) {
	r := newRig(t, rigConfig)
	r.run(5000 + 400)

	var parsed status.StatusJSON
	if err := json.Unmarshal(status.FormatJSON(r.tracker.Snapshot()), &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	s := parsed.Status
	if s.State != "COUNTDOWN" || s.MotorOn {
		t.Errorf("state: %s motor_on=%v", s.State, s.MotorOn)
	}
	if s.PreStartRemainingMs == 0 || s.PreStartRemainingMs > 1000 {
		t.Errorf("pre-start remaining: %d", s.PreStartRemainingMs)
	}
	if s.Counts.Countdowns != 1 {
		t.Errorf("countdowns: %d", s.Counts.Countdowns)
	}
}

func TestIntegrationPublishFailureDoesNotStopCycle(t *testing.T) {
	r := newRig(t, rigConfig)
	r.publisher.PublishError = errors.New("broker down")

	r.run(10000)

	if r.publisher.EventCount() != 0 {
		t.Errorf("nothing should be recorded, got %d", r.publisher.EventCount())
	}
	if got := r.ctrl.Snapshot().Counts.Stops; got != 1 {
		t.Errorf("stops: got %d, want 1", got)
	}
}
