package mqtt

import (
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/sweeney/stair-sensor/internal/logic"
)

// Options configures a RealClient.
type Options struct {
	Broker     string
	ClientID   string
	Username   string
	Password   string
	Device     string
	BufferSize int
	Logger     *zap.Logger

	// ConnectTimeout bounds the initial connect. On timeout the client keeps
	// retrying in the background and buffers outbound messages meanwhile.
	ConnectTimeout time.Duration
}

// RealClient publishes to and subscribes on an actual MQTT broker.
type RealClient struct {
	client paho.Client
	logger *zap.Logger
	device string

	mu            sync.Mutex
	buf           *outbox
	subs          map[string]func([]byte)
	everConnected bool
}

// NewRealClient creates a client connected to the given broker.
// A last-will OFFLINE message is registered on the system topic.
func NewRealClient(o Options) (*RealClient, error) {
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.BufferSize <= 0 {
		o.BufferSize = 100
	}
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = 10 * time.Second
	}

	c := &RealClient{
		logger: o.Logger.Named("mqtt"),
		device: o.Device,
		buf:    newOutbox(o.BufferSize),
		subs:   make(map[string]func([]byte)),
	}

	will, err := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: "OFFLINE", Reason: "LWT"})
	if err != nil {
		return nil, fmt.Errorf("format will: %w", err)
	}

	opts := paho.NewClientOptions().
		AddBroker(o.Broker).
		SetClientID(o.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetWill(SystemTopic(o.Device), string(will), 1, true).
		SetOnConnectHandler(c.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			c.logger.Warn("connection lost", zap.Error(err))
		})
	if o.Username != "" {
		opts.SetUsername(o.Username)
		opts.SetPassword(o.Password)
	}

	c.client = paho.NewClient(opts)
	token := c.client.Connect()
	if !token.WaitTimeout(o.ConnectTimeout) {
		c.logger.Warn("broker not reachable yet, buffering until connected", zap.String("broker", o.Broker))
		return c, nil
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}
	return c, nil
}

// onConnect replays buffered messages and restores subscriptions.
func (c *RealClient) onConnect(client paho.Client) {
	c.mu.Lock()
	pending := c.buf.drain()
	reconnect := c.everConnected
	c.everConnected = true
	subs := make(map[string]func([]byte), len(c.subs))
	for t, h := range c.subs {
		subs[t] = h
	}
	c.mu.Unlock()

	for topic, h := range subs {
		client.Subscribe(topic, 0, deliver(h))
	}

	if len(pending) > 0 {
		c.logger.Info("replaying buffered messages", zap.Int("count", len(pending)))
	}
	for _, m := range pending {
		client.Publish(m.topic, m.qos, m.retained, m.payload)
	}

	if reconnect {
		payload, err := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: "RECONNECTED"})
		if err == nil {
			client.Publish(SystemTopic(c.device), 1, true, payload)
		}
	}
}

func deliver(h func([]byte)) paho.MessageHandler {
	return func(_ paho.Client, m paho.Message) {
		h(m.Payload())
	}
}

// send publishes or, while disconnected, buffers the message.
func (c *RealClient) send(topic string, qos byte, retained bool, payload []byte) error {
	c.mu.Lock()
	if !c.client.IsConnectionOpen() {
		if c.buf.push(bufferedMsg{topic: topic, payload: payload, qos: qos, retained: retained}) {
			c.logger.Warn("outbox full, dropping oldest", zap.Int("capacity", c.buf.capacity))
		}
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	token := c.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish %s: timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// Publish sends a stair event to the MQTT broker.
func (c *RealClient) Publish(event logic.Event) error {
	payload, err := FormatPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	// QoS 0 (at-most-once), not retained
	return c.send(EventTopic(c.device), 0, false, payload)
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (c *RealClient) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	// QoS 1 (at-least-once) for lifecycle events
	return c.send(SystemTopic(c.device), 1, event.Retained, payload)
}

// Subscribe registers handler for topic. The subscription is restored
// automatically after a reconnect.
func (c *RealClient) Subscribe(topic string, handler func([]byte)) error {
	c.mu.Lock()
	c.subs[topic] = handler
	c.mu.Unlock()

	if !c.client.IsConnectionOpen() {
		// onConnect subscribes once the connection is up
		return nil
	}
	token := c.client.Subscribe(topic, 0, deliver(handler))
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("subscribe %s: timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe %s: %w", topic, err)
	}
	return nil
}

// Unsubscribe removes the subscription for topic.
func (c *RealClient) Unsubscribe(topic string) error {
	c.mu.Lock()
	delete(c.subs, topic)
	c.mu.Unlock()

	if !c.client.IsConnectionOpen() {
		return nil
	}
	token := c.client.Unsubscribe(topic)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("unsubscribe %s: timeout", topic)
	}
	return token.Error()
}

// IsConnected reports whether the broker connection is up.
func (c *RealClient) IsConnected() bool {
	return c.client.IsConnectionOpen()
}

// Buffered returns the number of messages waiting for a connection.
func (c *RealClient) Buffered() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.len()
}

// Close disconnects from the broker.
func (c *RealClient) Close() error {
	c.client.Disconnect(1000) // 1 second timeout
	return nil
}
