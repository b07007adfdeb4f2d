// Command duty-cycler runs a DC motor on a recurring duty cycle with a
// single-button manual override, and publishes its transitions to MQTT.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sweeney/duty-cycler/internal/clock"
	"github.com/sweeney/duty-cycler/internal/config"
	"github.com/sweeney/duty-cycler/internal/controller"
	"github.com/sweeney/duty-cycler/internal/gpio"
	"github.com/sweeney/duty-cycler/internal/metrics"
	"github.com/sweeney/duty-cycler/internal/mqtt"
	"github.com/sweeney/duty-cycler/internal/status"
	"github.com/sweeney/duty-cycler/internal/web"
)

// eventQueueSize bounds the transitions waiting for the publisher.
const eventQueueSize = 64

func main() {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		os.Exit(2)
	}

	logger, err := newLogger(os.Stdout, opts.logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "duty-cycler: %v\n", err)
		os.Exit(2)
	}
	slog.SetDefault(logger)

	cfg, err := loadConfig(opts)
	if err != nil {
		slog.Error("config", "err", err)
		os.Exit(1)
	}

	if opts.printConfig {
		if err := printConfig(os.Stdout, cfg); err != nil {
			slog.Error("print config", "err", err)
			os.Exit(1)
		}
		return
	}

	if err := run(cfg); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

// options are the parsed command-line flags. Flags that were given
// explicitly override the config file.
type options struct {
	configPath  string
	printConfig bool
	logLevel    string
	poll        time.Duration
	broker      string
	httpAddr    string
	chip        string
	set         map[string]bool
}

func parseFlags(args []string) (options, error) {
	var o options
	fs := flag.NewFlagSet("duty-cycler", flag.ContinueOnError)
	fs.StringVar(&o.configPath, "config", "", "YAML config file (empty for built-in defaults)")
	fs.BoolVar(&o.printConfig, "print-config", false, "Print the effective configuration and exit")
	fs.StringVar(&o.logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	fs.DurationVar(&o.poll, "poll", 0, "Scheduler poll interval")
	fs.StringVar(&o.broker, "broker", "", "MQTT broker address (empty disables MQTT)")
	fs.StringVar(&o.httpAddr, "http", "", "HTTP status address (empty disables)")
	fs.StringVar(&o.chip, "chip", "", "GPIO chip name")

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	o.set = map[string]bool{}
	fs.Visit(func(f *flag.Flag) { o.set[f.Name] = true })
	return o, nil
}

// apply writes explicitly set flags over cfg.
func (o options) apply(cfg *config.Config) {
	if o.set["poll"] {
		cfg.Poll = config.Duration(o.poll)
	}
	if o.set["broker"] {
		cfg.MQTT.Broker = o.broker
	}
	if o.set["http"] {
		cfg.HTTP.Addr = o.httpAddr
	}
	if o.set["chip"] {
		cfg.Chip = o.chip
	}
}

func loadConfig(o options) (config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return config.Config{}, err
	}
	o.apply(&cfg)
	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid flags: %w", err)
	}
	return cfg, nil
}

func printConfig(w io.Writer, cfg config.Config) error {
	out, err := cfg.Marshal()
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if _, err := w.Write(out); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func newLogger(w io.Writer, level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("log level %q: %w", level, err)
	}
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      lvl,
		TimeFormat: time.DateTime,
	})), nil
}

func run(cfg config.Config) error {
	bootID := uuid.NewString()

	chip, err := gpio.OpenChip(cfg.Chip)
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer func() {
		if err := chip.Close(); err != nil {
			slog.Warn("gpio close", "err", err)
		}
	}()

	hw, err := requestLines(chip, cfg.Pins)
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	queue := newEventQueue(eventQueueSize)
	sink := func(e controller.Event) {
		m.Observe(e)
		queue.push(e)
	}

	dev, err := newDevice(cfg, hw, clock.NewReal(), sink)
	if err != nil {
		return err
	}

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(time.Now(), bootID, statusConfig(cfg))
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	var publisher mqtt.Publisher = nopPublisher{}
	var connStatus mqtt.ConnectionStatus
	if cfg.MQTT.Broker != "" {
		p, err := mqtt.NewRealPublisher(mqtt.Options{
			Broker:   cfg.MQTT.Broker,
			ClientID: "duty-cycler-" + bootID[:8],
		})
		if err != nil {
			return fmt.Errorf("init mqtt: %w", err)
		}
		defer p.Close()
		publisher, connStatus = p, p
	}

	publishStatus(publisher, tracker, connStatus, mqtt.EventStartup, "")

	if cfg.HTTP.Addr != "" {
		srv := web.New(cfg.HTTP.Addr, tracker, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("http server", "err", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		slog.Info("http status server listening", "addr", cfg.HTTP.Addr)
	}

	slog.Info("started",
		"boot_id", bootID,
		"poll", cfg.Poll.Std(),
		"restart_interval", cfg.RestartInterval.Std(),
		"pre_start_delay", cfg.PreStartDelay.Std(),
		"auto_run", cfg.AutoRunDuration.Std(),
		"manual_run", cfg.ManualRunDuration.Std(),
		"broker", cfg.MQTT.Broker,
	)

	ticker := time.NewTicker(cfg.Poll.Std())
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(loopDeps{
		dev:        dev,
		queue:      queue,
		publisher:  publisher,
		connStatus: connStatus,
		tracker:    tracker,
		metrics:    m,
		heartbeat:  cfg.MQTT.Heartbeat.Std(),
		now:        time.Now,
	}, ticker.C, sigCh)
}

func statusConfig(cfg config.Config) status.Config {
	cc := controllerConfig(cfg)
	return status.Config{
		PollMs:           cfg.Poll.Std().Milliseconds(),
		HeartbeatMs:      cfg.MQTT.Heartbeat.Std().Milliseconds(),
		Broker:           cfg.MQTT.Broker,
		HTTPAddr:         cfg.HTTP.Addr,
		PreStartDelayMs:  cc.PreStartDelayMs,
		RestartIntervalS: cc.RestartIntervalS,
		AutoRunMs:        cc.AutoRunMs,
		ManualRunMs:      cc.ManualRunMs,
		MotorSpeed:       cfg.MotorSpeed,
	}
}

type loopDeps struct {
	dev        *device
	queue      *eventQueue
	publisher  mqtt.Publisher
	connStatus mqtt.ConnectionStatus
	tracker    *status.Tracker
	metrics    *metrics.Metrics
	heartbeat  time.Duration
	now        func() time.Time
}

// runLoop ticks the device until a signal arrives. Transitions and
// heartbeats are published from a separate goroutine so a slow broker never
// delays a tick.
func runLoop(d loopDeps, tick <-chan time.Time, sig <-chan os.Signal) error {
	published := make(chan struct{})
	go func() {
		d.queue.drain(d.publisher)
		close(published)
	}()

	lastHeartbeat := d.now()

	for {
		select {
		case s := <-sig:
			slog.Info("shutting down", "signal", s)
			if err := d.dev.halt(); err != nil {
				slog.Warn("motor stop on shutdown failed", "err", err)
			}
			d.queue.close()
			<-published

			update(d)
			publishStatus(d.publisher, d.tracker, d.connStatus, mqtt.EventShutdown, signalName(s))
			return nil

		case <-tick:
			d.dev.tick()
			update(d)

			if d.heartbeat > 0 {
				if t := d.now(); t.Sub(lastHeartbeat) >= d.heartbeat {
					lastHeartbeat = t
					if net := readNetworkInfo(); net != nil {
						d.tracker.SetNetwork(net)
					}
					d.queue.pushSystem(statusEvent(d.tracker, d.connStatus, mqtt.EventHeartbeat, ""))
				}
			}
		}
	}
}

// update refreshes the tracker and gauges for HTTP consumers.
func update(d loopDeps) {
	snap := d.dev.ctrl.Snapshot()
	loop := status.Loop{
		Ticks:           d.dev.sched.Ticks(),
		InputReadErrors: d.dev.button.ReadErrors(),
		EventsDropped:   d.queue.dropped.Load(),
	}
	if b, ok := d.publisher.(bufferStats); ok {
		loop.MQTTDropped = b.Dropped()
		d.tracker.SetMQTTBuffered(b.Buffered())
	}
	d.tracker.Update(snap, loop)
	d.metrics.Update(snap, loop.Ticks, loop.InputReadErrors)
	d.metrics.UpdateDropped(loop.EventsDropped, loop.MQTTDropped)
	if d.connStatus != nil {
		d.tracker.SetMQTTConnected(d.connStatus.IsConnected())
	}
}

// bufferStats is implemented by publishers with an offline buffer.
type bufferStats interface {
	Buffered() int
	Dropped() uint64
}

// statusEvent builds a retained system event carrying the full status.
func statusEvent(tracker *status.Tracker, cs mqtt.ConnectionStatus, event, reason string) mqtt.SystemEvent {
	if cs != nil {
		tracker.SetMQTTConnected(cs.IsConnected())
	}
	snap := tracker.Snapshot()
	return mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      event,
		Reason:     reason,
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, event, reason),
	}
}

// publishStatus sends a status event directly, for startup and shutdown
// when no tick is pending.
func publishStatus(pub mqtt.Publisher, tracker *status.Tracker, cs mqtt.ConnectionStatus, event, reason string) {
	if err := pub.PublishSystem(statusEvent(tracker, cs, event, reason)); err != nil {
		slog.Warn("system event publish failed", "event", event, "err", err)
		return
	}
	slog.Info("published system event", "event", event)
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	default:
		return "UNKNOWN"
	}
}

// eventQueue hands outbound messages from the control loop to the
// publisher without blocking. When full, new messages are dropped and
// counted.
type eventQueue struct {
	ch      chan outbound
	dropped atomic.Uint64
}

// outbound is a controller transition, or a system event when system is set.
type outbound struct {
	event  controller.Event
	system *mqtt.SystemEvent
}

func newEventQueue(n int) *eventQueue {
	return &eventQueue{ch: make(chan outbound, n)}
}

func (q *eventQueue) push(e controller.Event) {
	q.send(outbound{event: e}, string(e.Type))
}

func (q *eventQueue) pushSystem(e mqtt.SystemEvent) {
	q.send(outbound{system: &e}, e.Event)
}

func (q *eventQueue) send(o outbound, name string) {
	select {
	case q.ch <- o:
	default:
		q.dropped.Add(1)
		slog.Warn("event queue full, dropping", "event", name)
	}
}

// drain publishes queued messages until the queue is closed.
func (q *eventQueue) drain(pub mqtt.Publisher) {
	for o := range q.ch {
		if o.system != nil {
			if err := pub.PublishSystem(*o.system); err != nil {
				slog.Warn("system event publish failed", "event", o.system.Event, "err", err)
			}
			continue
		}
		if err := pub.Publish(o.event); err != nil {
			slog.Warn("publish error", "event", o.event.Type, "err", err)
		}
	}
}

func (q *eventQueue) close() {
	close(q.ch)
}

// nopPublisher stands in when MQTT is disabled.
type nopPublisher struct{}

func (nopPublisher) Publish(controller.Event) error { return nil }

func (nopPublisher) PublishSystem(mqtt.SystemEvent) error { return nil }

func (nopPublisher) Close() error { return nil }

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         strings.TrimSpace(os.Getenv(envNetworkIP)),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}
