// client.go: MQTT client implementation for publishing counting results.
package mqtt

import (
	"context"
	"log/slog"
	"net"
	"net/url"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/tphakala/fruitcount-go/internal/conf"
	"github.com/tphakala/fruitcount-go/internal/errors"
	"github.com/tphakala/fruitcount-go/internal/logging"
	"github.com/tphakala/fruitcount-go/internal/observability/metrics"
)

// getLoggerSafe returns a logger for the service, falling back to default if logging not initialized
func getLoggerSafe(service string) *slog.Logger {
	logger := logging.ForService(service)
	if logger == nil {
		logger = slog.Default().With("service", service)
	}
	return logger
}

// client implements the Client interface.
type client struct {
	config          Config
	internalClient  mqtt.Client
	lastConnAttempt time.Time
	mu              sync.Mutex
	reconnectTimer  *time.Timer
	reconnectStop   chan struct{}
	stopOnce        sync.Once
	metrics         *metrics.MQTTMetrics
	log             *slog.Logger
}

// NewClient creates a new MQTT client from the result publishing settings.
// mqttMetrics may be nil.
func NewClient(settings *conf.Settings, mqttMetrics *metrics.MQTTMetrics) (Client, error) {
	config := DefaultConfig()
	config.Broker = settings.MQTT.Broker
	config.ClientID = settings.Main.Name
	config.Username = settings.MQTT.Username
	config.Password = settings.MQTT.Password
	config.Topic = settings.MQTT.Topic
	config.Retain = settings.MQTT.Retain

	if config.Broker == "" {
		return nil, errors.Newf("mqtt broker is not configured").
			Component("mqtt").
			Category(errors.CategoryConfiguration).
			Build()
	}

	return &client{
		config:        config,
		reconnectStop: make(chan struct{}),
		metrics:       mqttMetrics,
		log:           getLoggerSafe("mqtt"),
	}, nil
}

// Connect attempts to establish a connection to the MQTT broker.
// It first resolves the broker's hostname and then attempts to connect.
func (c *client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if since := time.Since(c.lastConnAttempt); since < c.config.ReconnectCooldown {
		return errors.Newf("connection attempt too recent, last attempt was %v ago", since).
			Component("mqtt").
			Category(errors.CategoryMQTT).
			Context("operation", "connect_cooldown").
			Build()
	}
	c.lastConnAttempt = time.Now()

	u, err := url.Parse(c.config.Broker)
	if err != nil {
		return errors.New(err).
			Component("mqtt").
			Category(errors.CategoryConfiguration).
			Context("operation", "parse_broker").
			Context("broker", c.config.Broker).
			Build()
	}

	// Resolve the hostname before handing the broker to paho. DNS errors
	// are returned unwrapped so callers can inspect them.
	host := u.Hostname()
	if net.ParseIP(host) == nil {
		if _, err := net.DefaultResolver.LookupHost(ctx, host); err != nil {
			var dnsErr *net.DNSError
			if errors.As(err, &dnsErr) {
				return dnsErr
			}
			return errors.New(err).
				Component("mqtt").
				Category(errors.CategoryNetwork).
				Context("operation", "resolve_broker").
				Context("host", host).
				Build()
		}
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(c.config.Broker)
	opts.SetClientID(c.config.ClientID)
	opts.SetUsername(c.config.Username)
	opts.SetPassword(c.config.Password)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(false)
	opts.SetOnConnectHandler(c.onConnect)
	opts.SetConnectionLostHandler(c.onConnectionLost)

	c.internalClient = mqtt.NewClient(opts)

	token := c.internalClient.Connect()
	if !token.WaitTimeout(c.config.ConnectTimeout) {
		return errors.Newf("connection timeout after %v", c.config.ConnectTimeout).
			Component("mqtt").
			Category(errors.CategoryTimeout).
			Context("broker", c.config.Broker).
			Build()
	}
	if err := token.Error(); err != nil {
		return errors.New(err).
			Component("mqtt").
			Category(errors.CategoryMQTT).
			Context("operation", "connect").
			Context("broker", c.config.Broker).
			Build()
	}

	c.updateConnectionStatus(true)
	return nil
}

// Publish sends a message to the specified topic on the MQTT broker.
func (c *client) Publish(ctx context.Context, topic, payload string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return errors.New(err).
			Component("mqtt").
			Category(errors.CategoryCancellation).
			Context("operation", "publish").
			Build()
	}

	if topic == "" {
		topic = c.config.Topic
	}

	if !c.IsConnected() {
		return errors.Newf("not connected to MQTT broker").
			Component("mqtt").
			Category(errors.CategoryMQTT).
			Context("operation", "publish").
			Context("topic", topic).
			Build()
	}

	if c.metrics != nil {
		timer := c.metrics.StartPublishTimer()
		defer timer.ObserveDuration()
	}

	token := c.internalClient.Publish(topic, 0, c.config.Retain, payload)
	if !token.WaitTimeout(c.config.PublishTimeout) {
		return errors.Newf("publish timeout after %v", c.config.PublishTimeout).
			Component("mqtt").
			Category(errors.CategoryTimeout).
			Context("topic", topic).
			Build()
	}
	if err := token.Error(); err != nil {
		if c.metrics != nil {
			c.metrics.IncrementErrors()
		}
		return errors.New(err).
			Component("mqtt").
			Category(errors.CategoryMQTT).
			Context("operation", "publish").
			Context("topic", topic).
			Build()
	}

	if c.metrics != nil {
		c.metrics.IncrementMessagesDelivered()
		c.metrics.ObserveMessageSize(float64(len(payload)))
	}
	c.log.Debug("Published message", "topic", topic, "bytes", len(payload))
	return nil
}

// IsConnected returns true if the client is currently connected to the MQTT broker.
func (c *client) IsConnected() bool {
	return c.internalClient != nil && c.internalClient.IsConnected()
}

// Disconnect closes the connection to the MQTT broker and stops any pending
// reconnect attempt.
func (c *client) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
	}
	c.stopOnce.Do(func() { close(c.reconnectStop) })

	if c.internalClient != nil && c.internalClient.IsConnected() {
		c.internalClient.Disconnect(uint(c.config.DisconnectTimeout.Milliseconds())) //nolint:gosec // G115: quiesce time bounded by config default
		c.updateConnectionStatus(false)
		c.log.Info("Disconnected from MQTT broker", "broker", c.config.Broker)
	}
}

func (c *client) onConnect(_ mqtt.Client) {
	c.log.Info("Connected to MQTT broker", "broker", c.config.Broker)
	c.updateConnectionStatus(true)
}

func (c *client) onConnectionLost(_ mqtt.Client, err error) {
	c.log.Warn("Connection to MQTT broker lost", "broker", c.config.Broker, "error", err)
	c.updateConnectionStatus(false)
	if c.metrics != nil {
		c.metrics.IncrementErrors()
	}
	c.startReconnectTimer()
}

func (c *client) startReconnectTimer() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.reconnectTimer = time.AfterFunc(c.config.ReconnectDelay, func() {
		select {
		case <-c.reconnectStop:
			return
		default:
			c.reconnectWithBackoff()
		}
	})
}

// reconnectWithBackoff retries the connection with exponential backoff until
// it succeeds or the client is disconnected.
func (c *client) reconnectWithBackoff() {
	backoff := time.Second
	const maxBackoff = 5 * time.Minute

	for {
		if c.metrics != nil {
			c.metrics.IncrementReconnectAttempts()
		}
		ctx, cancel := context.WithTimeout(context.Background(), c.config.ConnectTimeout)
		err := c.Connect(ctx)
		cancel()

		if err == nil {
			c.log.Info("Reconnected to MQTT broker", "broker", c.config.Broker)
			return
		}

		if c.metrics != nil {
			c.metrics.IncrementErrors()
		}
		c.log.Warn("Failed to reconnect to MQTT broker",
			"broker", c.config.Broker,
			"retry_in", backoff,
			"error", err)

		select {
		case <-time.After(backoff):
			backoff = min(backoff*2, maxBackoff)
		case <-c.reconnectStop:
			return
		}
	}
}

// updateConnectionStatus reports the connection state to metrics when wired.
func (c *client) updateConnectionStatus(connected bool) {
	if c.metrics == nil {
		return
	}
	c.metrics.UpdateConnectionStatus(connected)
}
