package mqtt

import (
	"context"
	"fmt"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/mwrenholt/gatherly-core/internal/infrastructure/config"
)

// Logger is the minimal logging surface the client needs. Satisfied by
// *slog.Logger.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

// MessageHandler processes an inbound message. Returned errors are
// logged; they do not stop the subscription.
type MessageHandler func(topic string, payload []byte) error

type subscription struct {
	qos     byte
	handler MessageHandler
}

// Client wraps the paho MQTT client with subscription tracking, so
// handlers survive broker reconnects, and a retained online/offline
// status on the system topic.
type Client struct {
	client  pahomqtt.Client
	options *pahomqtt.ClientOptions
	cfg     config.MQTTConfig

	subscriptions map[string]subscription
	subMu         sync.RWMutex

	connected bool
	connMu    sync.RWMutex

	onConnect    func()
	onDisconnect func(error)
	callbackMu   sync.RWMutex

	logger   Logger
	loggerMu sync.RWMutex
}

// NewClient creates an unconnected client. Call Connect before use.
func NewClient() *Client {
	return &Client{
		subscriptions: make(map[string]subscription),
	}
}

// Connect creates a client and establishes the broker connection in one
// step, matching the lifecycle of the other infrastructure packages.
func Connect(cfg config.MQTTConfig) (*Client, error) {
	c := NewClient()
	if err := c.Connect(cfg); err != nil {
		return nil, err
	}
	return c, nil
}

// SetLogger installs a logger for async events (reconnects, handler
// panics). Safe to call at any time; nil disables logging.
func (c *Client) SetLogger(l Logger) {
	c.loggerMu.Lock()
	c.logger = l
	c.loggerMu.Unlock()
}

func (c *Client) logError(msg string, args ...any) {
	c.loggerMu.RLock()
	l := c.logger
	c.loggerMu.RUnlock()
	if l != nil {
		l.Error(msg, args...)
	}
}

func (c *Client) logWarn(msg string, args ...any) {
	c.loggerMu.RLock()
	l := c.logger
	c.loggerMu.RUnlock()
	if l != nil {
		l.Warn(msg, args...)
	}
}

// SetOnConnect registers a callback invoked after every successful
// (re)connection, once subscriptions are restored.
func (c *Client) SetOnConnect(fn func()) {
	c.callbackMu.Lock()
	c.onConnect = fn
	c.callbackMu.Unlock()
}

// SetOnDisconnect registers a callback invoked when the connection drops.
func (c *Client) SetOnDisconnect(fn func(error)) {
	c.callbackMu.Lock()
	c.onDisconnect = fn
	c.callbackMu.Unlock()
}

// Connect establishes the broker connection and publishes the retained
// online status.
func (c *Client) Connect(cfg config.MQTTConfig) error {
	c.cfg = cfg

	opts := buildClientOptions(cfg)
	configureLWT(opts, cfg.Broker.ClientID)

	opts.SetOnConnectHandler(func(pahomqtt.Client) { c.handleConnect() })
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) { c.handleDisconnect(err) })

	c.options = opts
	c.client = pahomqtt.NewClient(opts)

	token := c.client.Connect()
	if !token.WaitTimeout(defaultConnectTimeout) {
		return fmt.Errorf("%w: %w", ErrConnectionFailed, ErrTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	c.connMu.Lock()
	c.connected = true
	c.connMu.Unlock()

	return nil
}

func (c *Client) handleConnect() {
	c.connMu.Lock()
	c.connected = true
	c.connMu.Unlock()

	c.restoreSubscriptions()
	c.publishOnlineStatus()

	c.callbackMu.RLock()
	fn := c.onConnect
	c.callbackMu.RUnlock()
	if fn != nil {
		fn()
	}
}

func (c *Client) handleDisconnect(err error) {
	c.connMu.Lock()
	c.connected = false
	c.connMu.Unlock()

	c.logWarn("mqtt connection lost", "error", err)

	c.callbackMu.RLock()
	fn := c.onDisconnect
	c.callbackMu.RUnlock()
	if fn != nil {
		fn(err)
	}
}

// restoreSubscriptions re-subscribes everything after a reconnect. Clean
// sessions mean the broker forgot us.
func (c *Client) restoreSubscriptions() {
	c.subMu.RLock()
	subs := make(map[string]subscription, len(c.subscriptions))
	for topic, sub := range c.subscriptions {
		subs[topic] = sub
	}
	c.subMu.RUnlock()

	for topic, sub := range subs {
		token := c.client.Subscribe(topic, sub.qos, c.wrapHandler(sub.handler))
		if !token.WaitTimeout(defaultPublishTimeout) || token.Error() != nil {
			c.logError("mqtt resubscribe failed", "topic", topic, "error", token.Error())
		}
	}
}

func (c *Client) publishOnlineStatus() {
	payload := buildOnlinePayload(c.cfg.Broker.ClientID)
	token := c.client.Publish(Topics{}.SystemStatus(), 1, true, payload)
	if !token.WaitTimeout(defaultPublishTimeout) || token.Error() != nil {
		c.logWarn("mqtt online status publish failed", "error", token.Error())
	}
}

// IsConnected reports the current connection state.
func (c *Client) IsConnected() bool {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.connected && c.client != nil && c.client.IsConnected()
}

// HealthCheck verifies the client is connected. Satisfies the common
// health-check signature used by the API layer.
func (c *Client) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// Close publishes a graceful offline status and disconnects, allowing
// up to one second for in-flight messages to drain.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}

	if c.IsConnected() {
		payload := buildOfflinePayload(c.cfg.Broker.ClientID, "shutdown")
		token := c.client.Publish(Topics{}.SystemStatus(), 1, true, payload)
		token.WaitTimeout(defaultPublishTimeout)
	}

	c.client.Disconnect(uint(time.Second.Milliseconds()))

	c.connMu.Lock()
	c.connected = false
	c.connMu.Unlock()

	return nil
}

// wrapHandler adapts a MessageHandler to paho's callback shape and
// contains panics so one bad handler cannot kill the network loop.
func (c *Client) wrapHandler(handler MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				c.logError("mqtt handler panic", "topic", msg.Topic(), "panic", r)
			}
		}()
		if err := handler(msg.Topic(), msg.Payload()); err != nil {
			c.logWarn("mqtt handler error", "topic", msg.Topic(), "error", err)
		}
	}
}
