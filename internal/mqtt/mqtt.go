// Package mqtt publishes controller telemetry, with an abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/duty-cycler/internal/controller"
)

// Topic is the MQTT topic for controller transitions.
const Topic = "motor/duty-cycler/events"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "motor/duty-cycler/system"

// System event names.
const (
	EventStartup     = "STARTUP"
	EventShutdown    = "SHUTDOWN"
	EventHeartbeat   = "HEARTBEAT"
	EventReconnected = "RECONNECTED"
	EventOffline     = "OFFLINE"
)

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a controller transition to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(event controller.Event) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload represents the MQTT message payload structure.
type Payload struct {
	Motor MotorPayload `json:"motor"`
}

// MotorPayload contains the transition details.
type MotorPayload struct {
	Timestamp  string `json:"timestamp"`
	Event      string `json:"event"`
	Cause      string `json:"cause"`
	State      string `json:"state"`
	CountdownS uint32 `json:"countdown_s"`
	RunMs      uint32 `json:"run_ms,omitempty"`
	Millis     uint32 `json:"millis"`
}

// FormatPayload creates the JSON payload for a controller transition.
func FormatPayload(event controller.Event) ([]byte, error) {
	payload := Payload{
		Motor: MotorPayload{
			Timestamp:  event.Timestamp.UTC().Format(time.RFC3339),
			Event:      string(event.Type),
			Cause:      string(event.Cause),
			State:      string(event.State),
			CountdownS: event.Countdown,
			RunMs:      event.RunMs,
			Millis:     event.Millis,
		},
	}
	return json.Marshal(payload)
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp,omitempty"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}

// FormatWillPayload returns the last-will payload. The broker sends it
// long after connect, so it carries no timestamp.
func FormatWillPayload() []byte {
	data, _ := json.Marshal(SystemPayload{
		System: SystemPayloadInner{Event: EventOffline, Reason: "LWT"},
	})
	return data
}
