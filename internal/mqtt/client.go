// Package mqtt connects field gateways over MQTT: readings come in on
// <prefix>/<device>/readings and device commands go out on <prefix>/<device>/commands.
package mqtt

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/good-yellow-bee/fieldsense/internal/logger"
)

// Config holds the broker connection settings.
type Config struct {
	Broker         string        `yaml:"broker"`
	ClientID       string        `yaml:"client_id"`
	Username       string        `yaml:"username"`
	Password       string        `yaml:"password"`
	TopicPrefix    string        `yaml:"topic_prefix"`
	QoS            byte          `yaml:"qos"`
	ConnectTimeout time.Duration `yaml:"-"`
	MaxRetries     int           `yaml:"max_retries"`
}

// SetDefaults applies default values for missing configuration.
func (c *Config) SetDefaults() {
	if c.ClientID == "" {
		c.ClientID = "fieldsense-" + uuid.New().String()[:8]
	}
	if c.TopicPrefix == "" {
		c.TopicPrefix = "fieldsense"
	}
	if c.QoS > 2 {
		c.QoS = 1
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = 10 * time.Second
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 5
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Broker == "" {
		return errors.New("mqtt broker is required")
	}
	return nil
}

// newPahoClient builds the underlying client; replaced in tests.
var newPahoClient = paho.NewClient

// Client wraps a paho client. Subscriptions are restored after reconnects.
type Client struct {
	cfg    Config
	client paho.Client
	log    zerolog.Logger

	mu   sync.Mutex
	subs map[string]paho.MessageHandler
}

// Connect dials the broker, retrying with exponential backoff until
// MaxRetries is exhausted or ctx is canceled.
func Connect(ctx context.Context, cfg Config) (*Client, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Client{
		cfg:  cfg,
		log:  logger.WithComponent("mqtt"),
		subs: make(map[string]paho.MessageHandler),
	}

	opts := paho.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(cfg.ConnectTimeout)
	opts.SetOrderMatters(false)
	opts.SetOnConnectHandler(c.onConnect)
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		c.log.Warn().Err(err).Msg("mqtt connection lost")
	})

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 30 * time.Second

	err := backoff.Retry(func() error {
		pc := newPahoClient(opts)
		token := pc.Connect()
		if !token.WaitTimeout(cfg.ConnectTimeout) {
			// Abort the pending attempt so a late success cannot leave a second
			// session with the same client id.
			pc.Disconnect(0)
			return fmt.Errorf("connect timeout after %s", cfg.ConnectTimeout)
		}
		if err := token.Error(); err != nil {
			pc.Disconnect(0)
			c.log.Warn().Err(err).Str("broker", cfg.Broker).Msg("failed to connect to mqtt broker")
			return err
		}
		c.client = pc
		return nil
	}, backoff.WithContext(backoff.WithMaxRetries(bo, uint64(cfg.MaxRetries-1)), ctx))
	if err != nil {
		return nil, fmt.Errorf("connect mqtt %s: %w", cfg.Broker, err)
	}

	c.log.Info().Str("broker", cfg.Broker).Str("client_id", cfg.ClientID).Msg("connected to mqtt broker")
	return c, nil
}

// onConnect resubscribes after the initial connect and every reconnect.
func (c *Client) onConnect(pc paho.Client) {
	c.mu.Lock()
	subs := make(map[string]paho.MessageHandler, len(c.subs))
	for topic, h := range c.subs {
		subs[topic] = h
	}
	c.mu.Unlock()

	for topic, h := range subs {
		token := pc.Subscribe(topic, c.cfg.QoS, h)
		if token.WaitTimeout(c.cfg.ConnectTimeout) && token.Error() != nil {
			c.log.Error().Err(token.Error()).Str("topic", topic).Msg("resubscribe failed")
		}
	}
}

// TopicPrefix returns the configured topic root.
func (c *Client) TopicPrefix() string {
	return c.cfg.TopicPrefix
}

// IsConnected reports whether the broker connection is up.
func (c *Client) IsConnected() bool {
	return c.client != nil && c.client.IsConnectionOpen()
}

// Publish sends payload to topic, waiting for the broker until ctx is done.
func (c *Client) Publish(ctx context.Context, topic string, payload []byte) error {
	token := c.client.Publish(topic, c.cfg.QoS, false, payload)
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("publish %s: %w", topic, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("publish %s: %w", topic, ctx.Err())
	}
}

// Subscribe registers handler for topic. The handler receives the topic and payload.
func (c *Client) Subscribe(topic string, handler func(topic string, payload []byte)) error {
	h := func(_ paho.Client, m paho.Message) {
		handler(m.Topic(), m.Payload())
	}

	c.mu.Lock()
	c.subs[topic] = h
	c.mu.Unlock()

	token := c.client.Subscribe(topic, c.cfg.QoS, h)
	if !token.WaitTimeout(c.cfg.ConnectTimeout) {
		return fmt.Errorf("subscribe %s: timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe %s: %w", topic, err)
	}
	return nil
}

// Unsubscribe removes a subscription.
func (c *Client) Unsubscribe(topic string) error {
	c.mu.Lock()
	delete(c.subs, topic)
	c.mu.Unlock()

	token := c.client.Unsubscribe(topic)
	token.WaitTimeout(c.cfg.ConnectTimeout)
	return token.Error()
}

// Close disconnects from the broker.
func (c *Client) Close() {
	if c.client != nil && c.client.IsConnected() {
		c.client.Disconnect(250)
		c.log.Info().Msg("mqtt client disconnected")
	}
}
