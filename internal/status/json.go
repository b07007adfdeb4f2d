package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event               string       `json:"event,omitempty"`
	Reason              string       `json:"reason,omitempty"`
	BootID              string       `json:"boot_id"`
	State               string       `json:"state"`
	MotorOn             bool         `json:"motor_on"`
	CountdownS          uint32       `json:"countdown_s"`
	Ping                uint32       `json:"ping"`
	RunRemainingMs      uint32       `json:"run_remaining_ms"`
	PreStartRemainingMs uint32       `json:"pre_start_remaining_ms"`
	UptimeSeconds       int64        `json:"uptime_seconds"`
	StartTime           string       `json:"start_time"`
	Timestamp           string       `json:"timestamp"`
	MQTT                MQTTStatus   `json:"mqtt"`
	Counts              CountsJSON   `json:"counts"`
	Loop                LoopJSON     `json:"loop"`
	Network             *NetworkJSON `json:"network,omitempty"`
	Config              ConfigJSON   `json:"config"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
	Buffered  int    `json:"buffered"`
}

// CountsJSON is the JSON representation of transition counts.
type CountsJSON struct {
	Starts       int `json:"starts"`
	Stops        int `json:"stops"`
	AutoStarts   int `json:"auto_starts"`
	ManualStarts int `json:"manual_starts"`
	Countdowns   int `json:"countdowns"`
	ShortClicks  int `json:"short_clicks"`
	LongClicks   int `json:"long_clicks"`
}

// LoopJSON is the JSON representation of loop counters.
type LoopJSON struct {
	Ticks           uint64 `json:"ticks"`
	InputReadErrors uint64 `json:"input_read_errors"`
	EventsDropped   uint64 `json:"events_dropped"`
	MQTTDropped     uint64 `json:"mqtt_dropped"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	PollMs           int64  `json:"poll_ms"`
	HeartbeatMs      int64  `json:"heartbeat_ms"`
	Broker           string `json:"broker"`
	HTTPAddr         string `json:"http_addr"`
	PreStartDelayMs  uint32 `json:"pre_start_delay_ms"`
	RestartIntervalS uint32 `json:"restart_interval_s"`
	AutoRunMs        uint32 `json:"auto_run_ms"`
	ManualRunMs      uint32 `json:"manual_run_ms"`
	MotorSpeed       uint8  `json:"motor_speed"`
}

func buildInner(snap Snapshot) StatusInner {
	state := string(snap.Controller.State)
	if state == "" {
		state = "UNKNOWN"
	}
	c := snap.Controller.Counts

	inner := StatusInner{
		BootID:              snap.BootID,
		State:               state,
		MotorOn:             snap.Controller.MotorOn,
		CountdownS:          snap.Controller.Countdown,
		Ping:                snap.Controller.Ping,
		RunRemainingMs:      snap.Controller.RunRemainingMs,
		PreStartRemainingMs: snap.Controller.PreStartRemainingMs,
		UptimeSeconds:       int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:           snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:           snap.Now.UTC().Format(time.RFC3339),
		MQTT: MQTTStatus{
			Connected: snap.MQTTConnected,
			Broker:    snap.Config.Broker,
			Buffered:  snap.MQTTBuffered,
		},
		Counts: CountsJSON{
			Starts:       c.Starts,
			Stops:        c.Stops,
			AutoStarts:   c.AutoStarts,
			ManualStarts: c.ManualStarts,
			Countdowns:   c.Countdowns,
			ShortClicks:  c.ShortClicks,
			LongClicks:   c.LongClicks,
		},
		Loop: LoopJSON{
			Ticks:           snap.Loop.Ticks,
			InputReadErrors: snap.Loop.InputReadErrors,
			EventsDropped:   snap.Loop.EventsDropped,
			MQTTDropped:     snap.Loop.MQTTDropped,
		},
		Config: ConfigJSON{
			PollMs:           snap.Config.PollMs,
			HeartbeatMs:      snap.Config.HeartbeatMs,
			Broker:           snap.Config.Broker,
			HTTPAddr:         snap.Config.HTTPAddr,
			PreStartDelayMs:  snap.Config.PreStartDelayMs,
			RestartIntervalS: snap.Config.RestartIntervalS,
			AutoRunMs:        snap.Config.AutoRunMs,
			ManualRunMs:      snap.Config.ManualRunMs,
			MotorSpeed:       snap.Config.MotorSpeed,
		},
	}

	if n := snap.Network; n != nil {
		inner.Network = &NetworkJSON{
			Type:       n.Type,
			IP:         n.IP,
			Status:     n.Status,
			Gateway:    n.Gateway,
			WifiStatus: n.WifiStatus,
			SSID:       n.SSID,
		}
	}
	return inner
}

// FormatJSON returns the indented JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the compact JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
