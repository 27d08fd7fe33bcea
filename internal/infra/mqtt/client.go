package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	paho "github.com/eclipse/paho.mqtt.golang"
)

//go:generate mockgen -source=client.go -destination=../../../test/unit/doubles/infra/mqtt/client_mock.go -package=mqtt -mock_names=Client=MockClient,Message=MockMessage

const (
	_defaultQoS        = 0 // At most once
	_defaultRetained   = false
	_publishTimeout    = 5 * time.Second
	_subscribeTimeout  = 5 * time.Second
	_connectTimeout    = 5 * time.Second
	_keepAlive         = 10 * time.Second
	_disconnectQuiesce = 5 * time.Second
)

var ErrTransport = errors.New("mqtt transport error")

type Client interface {
	Connect(ctx context.Context) error
	Subscribe(topic string, qos byte, callback MessageHandler) error
	Unsubscribe(topic string) error
	Publish(topic string, msg any) error
	SetConnectionHandler(handler ConnectionHandler)

	Disconnect()
}

type MessageHandler func(Client, Message)

type Message interface {
	Topic() string
	MessageID() uint16
	Payload() []byte
	Ack()
}

// ConnectionHandler is told about every connect and connection loss.
type ConnectionHandler func(connected bool, err error)

type BackoffOpts struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	// Jitter is the randomization factor applied to every interval, in [0, 1].
	Jitter float64
}

func DefaultBackoffOpts() BackoffOpts {
	return BackoffOpts{
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     30 * time.Second,
		Multiplier:      2,
		Jitter:          0.5,
	}
}

type SimpleClientOpts struct {
	Broker   string
	ClientID string
	Username string
	Password string
	Backoff  BackoffOpts
}

// Subscription tracks a topic subscription for reconnection recovery
type subscription struct {
	topic    string
	qos      byte
	callback MessageHandler
}

var _ Client = (*SimpleClient)(nil)

// SimpleClient wraps a paho client with its own reconnect loop: exponential
// backoff with jitter, then every tracked subscription is restored.
type SimpleClient struct {
	client        paho.Client
	opts          SimpleClientOpts
	subscriptions map[string]subscription
	mu            sync.RWMutex

	onConnection atomic.Pointer[ConnectionHandler]
	lifetime     context.Context
	stop         context.CancelFunc
	reconnecting atomic.Bool
	closed       atomic.Bool

	subscribeTimeout time.Duration
}

func NewSimpleClient(opts SimpleClientOpts) *SimpleClient {
	if opts.Backoff == (BackoffOpts{}) {
		opts.Backoff = DefaultBackoffOpts()
	}

	simpleClient := &SimpleClient{
		opts:             opts,
		subscriptions:    make(map[string]subscription),
		subscribeTimeout: _subscribeTimeout,
	}
	simpleClient.lifetime, simpleClient.stop = context.WithCancel(context.Background())

	onConnectionLostHandler := func(_ paho.Client, err error) {
		slog.Error("connection lost to MQTT broker", slog.Any("error", err))
		simpleClient.notify(false, err)
		go simpleClient.reconnect()
	}

	pahoOpts := paho.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetUsername(opts.Username).
		SetPassword(opts.Password).
		SetCleanSession(true).
		SetOrderMatters(true).
		SetOnConnectHandler(simpleClient.onConnect).
		SetAutoReconnect(false).
		SetConnectRetry(false).
		SetConnectionLostHandler(onConnectionLostHandler).
		SetKeepAlive(_keepAlive).
		SetConnectTimeout(_connectTimeout)

	simpleClient.client = paho.NewClient(pahoOpts)
	return simpleClient
}

func (c *SimpleClient) SetConnectionHandler(handler ConnectionHandler) {
	c.onConnection.Store(&handler)
}

// onConnect reports the connection only once every tracked subscription is
// active again.
func (c *SimpleClient) onConnect(client paho.Client) {
	slog.Info("connected to MQTT broker", slog.String("broker", c.opts.Broker))
	if err := c.restoreSubscriptions(client); err != nil {
		slog.Error("subscriptions not restored", slog.Any("error", err))
		return
	}
	c.notify(true, nil)
}

func (c *SimpleClient) notify(connected bool, err error) {
	if handler := c.onConnection.Load(); handler != nil && *handler != nil {
		(*handler)(connected, err)
	}
}

// Connect blocks until the broker accepts the connection, retrying with
// backoff, or until ctx is done.
func (c *SimpleClient) Connect(ctx context.Context) error {
	if c.closed.Load() {
		return fmt.Errorf("%w: client is disconnected", ErrTransport)
	}

	return c.connectWithBackoff(ctx)
}

func (c *SimpleClient) newBackoff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.opts.Backoff.InitialInterval
	b.MaxInterval = c.opts.Backoff.MaxInterval
	b.Multiplier = c.opts.Backoff.Multiplier
	b.RandomizationFactor = c.opts.Backoff.Jitter
	b.MaxElapsedTime = 0
	b.Reset()
	return backoff.WithContext(b, ctx)
}

func (c *SimpleClient) connectWithBackoff(ctx context.Context) error {
	attempt := 0
	operation := func() error {
		attempt++
		if c.closed.Load() {
			return backoff.Permanent(fmt.Errorf("%w: client is disconnected", ErrTransport))
		}

		token := c.client.Connect()
		if !token.WaitTimeout(_connectTimeout) {
			return fmt.Errorf("%w: connect timed out after %s", ErrTransport, _connectTimeout)
		}
		if err := token.Error(); err != nil {
			return fmt.Errorf("%w: %w", ErrTransport, err)
		}
		return nil
	}

	notify := func(err error, wait time.Duration) {
		slog.Warn("MQTT connect attempt failed",
			slog.String("broker", c.opts.Broker),
			slog.Int("attempt", attempt),
			slog.Duration("retry_in", wait),
			slog.Any("error", err))
	}

	err := backoff.RetryNotify(operation, c.newBackoff(ctx), notify)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%w: connecting to %s: %w", ErrTransport, c.opts.Broker, ctxErr)
		}
		return err
	}

	return nil
}

func (c *SimpleClient) reconnect() {
	if c.closed.Load() || !c.reconnecting.CompareAndSwap(false, true) {
		return
	}
	defer c.reconnecting.Store(false)

	slog.Info("reconnecting to MQTT broker", slog.String("broker", c.opts.Broker))
	if err := c.connectWithBackoff(c.lifetime); err != nil {
		slog.Warn("reconnection abandoned", slog.Any("error", err))
	}
}

// restoreSubscriptions retries resubscribeAll with backoff until every
// tracked subscription is back, the connection drops or the client closes.
func (c *SimpleClient) restoreSubscriptions(client paho.Client) error {
	operation := func() error {
		if !client.IsConnectionOpen() {
			return backoff.Permanent(fmt.Errorf("%w: connection closed while restoring subscriptions", ErrTransport))
		}
		return c.resubscribeAll(client)
	}

	notify := func(err error, wait time.Duration) {
		slog.Warn("restoring subscriptions failed, retrying",
			slog.Duration("retry_in", wait),
			slog.Any("error", err))
	}

	return backoff.RetryNotify(operation, c.newBackoff(c.lifetime), notify)
}

// resubscribeAll re-establishes all subscriptions after reconnection
func (c *SimpleClient) resubscribeAll(client paho.Client) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(c.subscriptions) == 0 {
		slog.Debug("no subscriptions to restore")
		return nil
	}

	slog.Info("restoring MQTT subscriptions after reconnection", slog.Int("count", len(c.subscriptions)))

	var failures []error
	for topic, sub := range c.subscriptions {
		token := client.Subscribe(sub.topic, sub.qos, c.pahoCallback(sub.callback))
		if !token.WaitTimeout(c.subscribeTimeout) {
			failures = append(failures, fmt.Errorf("%w: restoring %s: timed out", ErrTransport, topic))
			continue
		}
		if err := token.Error(); err != nil {
			failures = append(failures, fmt.Errorf("%w: restoring %s: %w", ErrTransport, topic, err))
			continue
		}
		slog.Debug("subscription restored", slog.String("topic", topic))
	}

	return errors.Join(failures...)
}

func (c *SimpleClient) pahoCallback(callback MessageHandler) paho.MessageHandler {
	return func(_ paho.Client, msg paho.Message) {
		callback(c, msg)
	}
}

func (c *SimpleClient) Subscribe(topic string, qos byte, callback MessageHandler) error {
	// Store subscription for reconnection recovery
	c.mu.Lock()
	c.subscriptions[topic] = subscription{
		topic:    topic,
		qos:      qos,
		callback: callback,
	}
	c.mu.Unlock()

	token := c.client.Subscribe(topic, qos, c.pahoCallback(callback))
	if !token.WaitTimeout(c.subscribeTimeout) || token.Error() != nil {
		// Remove from subscriptions if subscribe failed
		c.mu.Lock()
		delete(c.subscriptions, topic)
		c.mu.Unlock()
		return fmt.Errorf("%w: subscribing to topic %s: %v", ErrTransport, topic, token.Error())
	}

	slog.Info("subscribed to MQTT topic", slog.String("topic", topic), slog.Int("qos", int(qos)))
	return nil
}

func (c *SimpleClient) Unsubscribe(topic string) error {
	c.mu.Lock()
	delete(c.subscriptions, topic)
	c.mu.Unlock()

	if !c.client.IsConnectionOpen() {
		return nil
	}

	token := c.client.Unsubscribe(topic)
	if !token.WaitTimeout(c.subscribeTimeout) || token.Error() != nil {
		return fmt.Errorf("%w: unsubscribing from topic %s: %v", ErrTransport, topic, token.Error())
	}

	return nil
}

func (c *SimpleClient) Disconnect() {
	if !c.closed.CompareAndSwap(false, true) {
		return
	}
	c.stop()

	// Clear subscriptions on manual disconnect
	c.mu.Lock()
	c.subscriptions = make(map[string]subscription)
	c.mu.Unlock()

	if c.client.IsConnected() {
		c.client.Disconnect(uint(_disconnectQuiesce.Milliseconds()))
	}
}

func (c *SimpleClient) Publish(topic string, msg any) error {
	payload, ok := msg.([]byte)
	if !ok {
		var err error
		payload, err = json.Marshal(msg)
		if err != nil {
			return fmt.Errorf("marshaling message: %w", err)
		}
	}

	token := c.client.Publish(topic, _defaultQoS, _defaultRetained, payload)
	if !token.WaitTimeout(_publishTimeout) {
		return fmt.Errorf("%w: publishing to topic %s: timed out", ErrTransport, topic)
	}
	if token.Error() != nil {
		return fmt.Errorf("%w: publishing to topic %s: %w", ErrTransport, topic, token.Error())
	}

	return nil
}
