package controller

import (
	"log/slog"
	"time"

	"github.com/sweeney/duty-cycler/internal/clock"
	"github.com/sweeney/duty-cycler/internal/sched"
	"github.com/sweeney/duty-cycler/internal/timing"
)

// Motor is the actuator the controller energizes.
type Motor interface {
	Forward() error
	Stop() error
}

// Indicator is an LED or buzzer output.
type Indicator interface {
	On()
	Off()
	Flash(period, times uint32)
	FlashStop()
	IsFlashing() bool
}

// Clicker reports classified button clicks for the current tick.
type Clicker interface {
	OnShortClick() bool
	OnLongClick() bool
}

// Parts are the collaborators the controller drives.
type Parts struct {
	Clock  clock.Clock
	Motor  Motor
	LED    Indicator
	Buzzer Indicator
	Button Clicker
}

// Controller is the duty-cycle state machine.
type Controller struct {
	cfg   Config
	parts Parts
	sink  Sink
	wall  func() time.Time

	interval *timing.Interval
	preStart *timing.Timer
	runTimer *timing.Timer

	state     State
	motorOn   bool
	countdown uint32
	ping      uint32
	now       uint32
	counts    Counts
}

// New creates a controller. sink may be nil.
func New(cfg Config, parts Parts, sink Sink) *Controller {
	return &Controller{
		cfg:      cfg,
		parts:    parts,
		sink:     sink,
		wall:     time.Now,
		interval: timing.NewInterval(parts.Clock, stepMs, 0),
		preStart: timing.NewTimer(parts.Clock, 0),
		runTimer: timing.NewTimer(parts.Clock, 0),
		state:    StateIdle,
	}
}

// Units returns the timers the controller owns. Register them before the
// controller itself.
func (c *Controller) Units() []sched.Unit {
	return []sched.Unit{c.interval, c.preStart, c.runTimer}
}

func (c *Controller) Setup() {
	c.state = StateIdle
	c.motorOn = false
	c.countdown = 0
	c.ping = 0
	c.counts = Counts{}
}

// Ready boots into idle with an acknowledgement flash.
func (c *Controller) Ready(now uint32) {
	c.now = now
	c.enterIdle(EventBoot, CauseBoot)
}

// Update evaluates this tick's edges in a fixed order: the one-second
// step, the button, the pre-start timer, then the run timer.
func (c *Controller) Update(now uint32) {
	c.now = now

	if c.interval.OnStep() && !c.motorOn && !c.parts.LED.IsFlashing() {
		c.onSecond()
	}

	switch {
	case c.parts.Button.OnLongClick():
		c.counts.LongClicks++
		slog.Info("long click")
		c.start(c.cfg.ManualRunMs, CauseLongClick)
	case c.parts.Button.OnShortClick():
		c.counts.ShortClicks++
		slog.Info("short click", "motor_on", c.motorOn)
		if c.motorOn {
			c.stop(CauseShortClick)
		} else {
			c.start(c.cfg.AutoRunMs, CauseShortClick)
		}
	}

	if c.preStart.OnFinish() {
		c.start(c.cfg.AutoRunMs, CausePreStart)
	}

	if c.runTimer.OnFinish() {
		c.stop(CauseRunTimer)
	}
}

func (c *Controller) onSecond() {
	if c.countdown >= 1 {
		c.countdown--
		slog.Debug("countdown", "remaining_s", c.countdown)
		if c.countdown == 0 {
			c.delayedStart()
		}
		return
	}

	// Exhausted and idle. Kept only as a liveness indicator.
	if c.ping >= pingWrap {
		c.ping = 0
	} else {
		c.ping++
	}
	slog.Debug("idle ping", "ping", c.ping)
}

// delayedStart enters the pre-start warning.
func (c *Controller) delayedStart() {
	c.stopMotor()
	c.ping = 0
	c.countdown = 0

	if c.cfg.PreStartDelayMs == 0 {
		c.start(c.cfg.AutoRunMs, CauseSchedule)
		return
	}

	c.startUI()
	c.preStart.Start(c.cfg.PreStartDelayMs)
	c.state = StateCountdown
	c.counts.Countdowns++
	slog.Info("countdown started", "delay_ms", c.cfg.PreStartDelayMs)
	c.emit(EventCountdown, CauseSchedule, 0)
}

// start energizes the motor for runMs (0 = until stopped).
func (c *Controller) start(runMs uint32, cause Cause) {
	c.stopUI()
	c.motorOn = true
	if err := c.parts.Motor.Forward(); err != nil {
		slog.Warn("motor forward failed", "err", err)
	}

	if runMs > 0 {
		c.runTimer.Start(runMs)
	} else {
		c.runTimer.Stop()
	}

	c.parts.LED.On()
	c.preStart.Stop()
	c.state = StateRunning

	c.counts.Starts++
	switch cause {
	case CausePreStart, CauseSchedule:
		c.counts.AutoStarts++
	default:
		c.counts.ManualStarts++
	}
	slog.Info("motor started", "cause", cause, "run_ms", runMs)
	c.emit(EventStart, cause, runMs)
}

// stop ends a run and returns to idle with a fresh restart interval.
func (c *Controller) stop(cause Cause) {
	c.stopMotor()
	c.counts.Stops++
	slog.Info("motor stopped", "cause", cause)
	c.enterIdle(EventStop, cause)
}

// Shutdown de-energizes the motor and silences the indicators before the
// process exits. A run in progress is recorded as a stop.
func (c *Controller) Shutdown() {
	wasOn := c.motorOn
	c.stopMotor()
	c.stopUI()
	c.preStart.Stop()
	c.state = StateIdle

	if wasOn {
		c.counts.Stops++
		slog.Info("motor stopped", "cause", CauseShutdown)
		c.emit(EventStop, CauseShutdown, 0)
	}
}

func (c *Controller) enterIdle(ev EventType, cause Cause) {
	c.stopMotor()
	c.stopUI()
	c.parts.LED.Flash(ackFlashMs, ackFlashTimes)
	c.preStart.Stop()

	c.ping = 0
	c.countdown = c.cfg.RestartIntervalS
	c.state = StateIdle
	c.emit(ev, cause, 0)
}

func (c *Controller) stopMotor() {
	if err := c.parts.Motor.Stop(); err != nil {
		slog.Warn("motor stop failed", "err", err)
	}
	c.runTimer.Stop()
	c.motorOn = false
}

func (c *Controller) startUI() {
	c.parts.LED.Flash(ledCountdownMs, 0)
	c.parts.Buzzer.Flash(buzzerCountdown, buzzerFlashTimes)
}

func (c *Controller) stopUI() {
	c.parts.Buzzer.FlashStop()
	c.parts.Buzzer.Off()
	c.parts.LED.FlashStop()
	c.parts.LED.Off()
}

func (c *Controller) emit(ev EventType, cause Cause, runMs uint32) {
	if c.sink == nil {
		return
	}
	c.sink(Event{
		Timestamp: c.wall(),
		Millis:    c.now,
		Type:      ev,
		Cause:     cause,
		State:     c.state,
		Countdown: c.countdown,
		RunMs:     runMs,
	})
}

// State returns the current operating state.
func (c *Controller) State() State {
	return c.state
}

// MotorOn reports whether the motor is energized.
func (c *Controller) MotorOn() bool {
	return c.motorOn
}

// Countdown returns the seconds left before the next automatic countdown.
func (c *Controller) Countdown() uint32 {
	return c.countdown
}

// Snapshot returns a copy of the controller state.
func (c *Controller) Snapshot() Snapshot {
	return Snapshot{
		State:               c.state,
		MotorOn:             c.motorOn,
		Countdown:           c.countdown,
		Ping:                c.ping,
		RunRemainingMs:      c.runTimer.Remaining(),
		PreStartRemainingMs: c.preStart.Remaining(),
		Counts:              c.counts,
	}
}
