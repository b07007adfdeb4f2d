// Package status provides a thread-safe status tracker for the duty-cycler daemon.
// The control loop writes it; HTTP handlers and heartbeats read it.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/duty-cycler/internal/controller"
)

// NetworkInfo contains network state as reported by the host.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	PollMs           int64
	HeartbeatMs      int64
	Broker           string
	HTTPAddr         string
	PreStartDelayMs  uint32
	RestartIntervalS uint32
	AutoRunMs        uint32
	ManualRunMs      uint32
	MotorSpeed       uint8
}

// Loop holds control loop counters.
type Loop struct {
	Ticks           uint64
	InputReadErrors uint64
	// Messages discarded by the publish queue and the offline MQTT buffer.
	EventsDropped uint64
	MQTTDropped   uint64
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	BootID        string
	Controller    controller.Snapshot
	Loop          Loop
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	MQTTBuffered  int
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
	now  func() time.Time
}

// NewTracker creates a Tracker with the given start time, boot ID and config.
func NewTracker(startTime time.Time, bootID string, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			BootID:    bootID,
			StartTime: startTime,
			Config:    cfg,
		},
		now: time.Now,
	}
}

// Update stores the controller view and loop counters.
// Called from the control loop on every tick.
func (t *Tracker) Update(ctrl controller.Snapshot, loop Loop) {
	t.mu.Lock()
	t.snap.Controller = ctrl
	t.snap.Loop = loop
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetMQTTBuffered records how many messages wait for the broker.
func (t *Tracker) SetMQTTBuffered(n int) {
	t.mu.Lock()
	t.snap.MQTTBuffered = n
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = t.now()
	return s
}
