// Package metrics exposes controller telemetry as Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/sweeney/duty-cycler/internal/controller"
)

var states = []controller.State{controller.StateIdle, controller.StateCountdown, controller.StateRunning}

// Metrics bundles duty-cycler metrics.
type Metrics struct {
	TransitionsTotal *prometheus.CounterVec
	ClicksTotal      *prometheus.CounterVec
	State            *prometheus.GaugeVec
	MotorOn          prometheus.Gauge
	CountdownSeconds prometheus.Gauge
	TicksTotal       prometheus.Counter
	ReadErrorsTotal  prometheus.Counter
	DroppedTotal     *prometheus.CounterVec

	lastTicks      uint64
	lastReadErrors uint64
	lastDropped    map[string]uint64
}

// New constructs metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		TransitionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "duty_cycler_transitions_total",
				Help: "Controller transitions by event and cause",
			},
			[]string{"event", "cause"},
		),
		ClicksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "duty_cycler_button_clicks_total",
				Help: "Classified button clicks by kind",
			},
			[]string{"kind"},
		),
		State: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "duty_cycler_state",
				Help: "1 for the current controller state",
			},
			[]string{"state"},
		),
		MotorOn: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "duty_cycler_motor_on",
			Help: "1 while the motor is energized",
		}),
		CountdownSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "duty_cycler_countdown_seconds",
			Help: "Seconds left before the next automatic countdown",
		}),
		TicksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "duty_cycler_scheduler_ticks_total",
			Help: "Scheduler ticks since start",
		}),
		ReadErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "duty_cycler_input_read_errors_total",
			Help: "Button samples that failed to read",
		}),
		DroppedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "duty_cycler_events_dropped_total",
				Help: "Telemetry messages discarded before reaching the broker",
			},
			[]string{"stage"},
		),
		lastDropped: map[string]uint64{},
	}
	reg.MustRegister(
		m.TransitionsTotal,
		m.ClicksTotal,
		m.State,
		m.MotorOn,
		m.CountdownSeconds,
		m.TicksTotal,
		m.ReadErrorsTotal,
		m.DroppedTotal,
	)
	return m
}

// Observe counts a controller transition.
func (m *Metrics) Observe(e controller.Event) {
	m.TransitionsTotal.WithLabelValues(string(e.Type), string(e.Cause)).Inc()
	switch e.Cause {
	case controller.CauseShortClick:
		m.ClicksTotal.WithLabelValues("short").Inc()
	case controller.CauseLongClick:
		m.ClicksTotal.WithLabelValues("long").Inc()
	}
}

// Update sets the gauges from a controller snapshot. ticks and readErrors
// are cumulative; only the increase since the last call is added.
func (m *Metrics) Update(s controller.Snapshot, ticks, readErrors uint64) {
	for _, st := range states {
		v := 0.0
		if st == s.State {
			v = 1
		}
		m.State.WithLabelValues(string(st)).Set(v)
	}

	if s.MotorOn {
		m.MotorOn.Set(1)
	} else {
		m.MotorOn.Set(0)
	}
	m.CountdownSeconds.Set(float64(s.Countdown))

	if ticks > m.lastTicks {
		m.TicksTotal.Add(float64(ticks - m.lastTicks))
		m.lastTicks = ticks
	}
	if readErrors > m.lastReadErrors {
		m.ReadErrorsTotal.Add(float64(readErrors - m.lastReadErrors))
		m.lastReadErrors = readErrors
	}
}

// Drop stages reported by UpdateDropped.
const (
	StageQueue      = "queue"
	StageMQTTBuffer = "mqtt_buffer"
)

// UpdateDropped adds the increase in cumulative drop counts since the last
// call: queue for the control loop's publish queue, buffer for the offline
// MQTT buffer.
func (m *Metrics) UpdateDropped(queue, buffer uint64) {
	for stage, n := range map[string]uint64{StageQueue: queue, StageMQTTBuffer: buffer} {
		if last := m.lastDropped[stage]; n > last {
			m.DroppedTotal.WithLabelValues(stage).Add(float64(n - last))
			m.lastDropped[stage] = n
		}
	}
}
