package mqtt

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/sweeney/duty-cycler/internal/controller"
)

// Options configures a RealPublisher.
type Options struct {
	Broker   string
	ClientID string
	// BufferSize is how many messages are kept while disconnected.
	BufferSize int
	// RetryInterval is the delay between connection attempts.
	RetryInterval time.Duration
	// Timeout bounds the initial connect and every publish.
	Timeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.ClientID == "" {
		o.ClientID = "duty-cycler"
	}
	if o.BufferSize <= 0 {
		o.BufferSize = DefaultBufferSize
	}
	if o.RetryInterval <= 0 {
		o.RetryInterval = 5 * time.Second
	}
	if o.Timeout <= 0 {
		o.Timeout = 5 * time.Second
	}
	return o
}

// RealPublisher publishes to an actual MQTT broker.
//
// The connection is retried in the background. Messages published while
// the broker is unreachable are kept in a ring buffer and replayed, oldest
// first, once the connection comes back.
type RealPublisher struct {
	client  paho.Client
	timeout time.Duration

	mu          sync.Mutex
	buf         *ringBuffer
	connections int
}

// NewRealPublisher creates a publisher for the given broker. It returns an
// error only if the broker rejects the connection outright; an unreachable
// broker is retried in the background.
func NewRealPublisher(o Options) (*RealPublisher, error) {
	o = o.withDefaults()
	p := &RealPublisher{
		timeout: o.Timeout,
		buf:     newRingBuffer(o.BufferSize),
	}

	opts := paho.NewClientOptions().
		AddBroker(o.Broker).
		SetClientID(o.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(o.RetryInterval).
		SetConnectTimeout(o.Timeout).
		SetBinaryWill(TopicSystem, FormatWillPayload(), 1, true).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			slog.Warn("mqtt connection lost", "err", err)
		}).
		SetReconnectingHandler(func(_ paho.Client, _ *paho.ClientOptions) {
			slog.Debug("mqtt reconnecting", "broker", o.Broker)
		})

	p.client = paho.NewClient(opts)
	token := p.client.Connect()
	if token.WaitTimeout(o.Timeout) {
		if err := token.Error(); err != nil {
			return nil, fmt.Errorf("connect to broker: %w", err)
		}
	} else {
		slog.Warn("mqtt broker not reachable yet, retrying in background", "broker", o.Broker)
	}

	return p, nil
}

func (p *RealPublisher) onConnect(_ paho.Client) {
	p.mu.Lock()
	p.connections++
	reconnected := p.connections > 1
	pending := p.buf.drainAll()
	p.mu.Unlock()

	slog.Info("mqtt connected", "replaying", len(pending), "reconnect", reconnected)

	for _, msg := range pending {
		if err := p.send(msg); err != nil {
			slog.Warn("mqtt replay failed", "topic", msg.topic, "err", err)
			p.enqueue(msg)
		}
	}

	if reconnected {
		payload, _ := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: EventReconnected})
		if err := p.send(bufferedMsg{topic: TopicSystem, payload: payload, qos: 1}); err != nil {
			slog.Warn("mqtt reconnect notice failed", "err", err)
		}
	}
}

// Publish sends a controller transition to the MQTT broker.
func (p *RealPublisher) Publish(event controller.Event) error {
	payload, err := FormatPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	// QoS 0 (at-most-once), not retained
	return p.publish(bufferedMsg{topic: Topic, payload: payload})
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	// QoS 1 (at-least-once): lifecycle events should not be lost
	return p.publish(bufferedMsg{topic: TopicSystem, payload: payload, qos: 1, retained: event.Retained})
}

func (p *RealPublisher) publish(msg bufferedMsg) error {
	p.mu.Lock()
	if !p.client.IsConnectionOpen() {
		p.buf.push(msg)
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	if err := p.send(msg); err != nil {
		p.enqueue(msg)
		return err
	}
	return nil
}

func (p *RealPublisher) send(msg bufferedMsg) error {
	token := p.client.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
	if !token.WaitTimeout(p.timeout) {
		return errors.New("publish timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", msg.topic, err)
	}
	return nil
}

func (p *RealPublisher) enqueue(msg bufferedMsg) {
	p.mu.Lock()
	p.buf.push(msg)
	p.mu.Unlock()
}

// IsConnected reports whether the broker connection is currently up.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Buffered returns the number of messages waiting for a connection.
func (p *RealPublisher) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buf.len()
}

// Dropped returns how many buffered messages were discarded on overflow.
func (p *RealPublisher) Dropped() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buf.dropped
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second quiesce
	return nil
}
