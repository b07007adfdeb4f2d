// Package controller contains the duty-cycle state machine: idle countdown,
// pre-start warning, timed run, and manual override from a single button.
//
// The controller is a sched.Unit. It must be registered after every unit it
// reads (button, outputs, its own timers) so that it observes edges from the
// current tick.
package controller

import "time"

// State is the operating state of the device.
type State string

const (
	// StateIdle counts down toward the next automatic run.
	StateIdle State = "IDLE"
	// StateCountdown warns with light and buzzer before an automatic run.
	StateCountdown State = "COUNTDOWN"
	// StateRunning has the motor energized.
	StateRunning State = "RUNNING"
)

// EventType identifies a transition.
type EventType string

const (
	EventBoot      EventType = "BOOT"
	EventCountdown EventType = "COUNTDOWN"
	EventStart     EventType = "MOTOR_START"
	EventStop      EventType = "MOTOR_STOP"
)

// Cause records what triggered a transition.
type Cause string

const (
	CauseBoot       Cause = "BOOT"
	CauseSchedule   Cause = "SCHEDULE"
	CausePreStart   Cause = "PRE_START_TIMER"
	CauseRunTimer   Cause = "RUN_TIMER"
	CauseShortClick Cause = "SHORT_CLICK"
	CauseLongClick  Cause = "LONG_CLICK"
	CauseShutdown   Cause = "SHUTDOWN"
)

// Event describes a transition, after it has been applied.
type Event struct {
	Timestamp time.Time
	Millis    uint32
	Type      EventType
	Cause     Cause
	State     State
	// Countdown is the seconds left before the next automatic countdown.
	Countdown uint32
	// RunMs is the armed run duration for MOTOR_START, 0 when unbounded.
	RunMs uint32
}

// Sink receives transition events. It is called from the control loop and
// must not block.
type Sink func(Event)

// Counts tracks transitions since boot.
type Counts struct {
	Starts       int
	Stops        int
	AutoStarts   int
	ManualStarts int
	Countdowns   int
	ShortClicks  int
	LongClicks   int
}

// Snapshot is a point-in-time view of the controller.
type Snapshot struct {
	State     State
	MotorOn   bool
	Countdown uint32
	Ping      uint32
	// Milliseconds until the run timer or the pre-start timer fires.
	RunRemainingMs      uint32
	PreStartRemainingMs uint32
	Counts              Counts
}

// Config holds the controller durations. Zero disables the feature:
// a zero restart interval never counts down, a zero pre-start delay starts
// without warning, and a zero run duration runs until stopped by hand.
type Config struct {
	PreStartDelayMs  uint32
	RestartIntervalS uint32
	AutoRunMs        uint32
	ManualRunMs      uint32
}

const (
	stepMs = 1000

	ackFlashMs       = 50
	ackFlashTimes    = 3
	ledCountdownMs   = 500
	buzzerCountdown  = 300
	buzzerFlashTimes = 3

	pingWrap = 10
)
