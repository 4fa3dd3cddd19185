// Package publish fans readings out to an MQTT broker so dashboards and home
// automation can follow the machine live.
package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"sync"
	"time"

	"github.com/eclipse/paho.golang/paho"
	"github.com/google/uuid"

	"kahvi/internal/config"
	"kahvi/internal/logging"
	"kahvi/internal/reading"
)

const keepAliveSeconds = 30

// Publisher publishes readings as JSON to a single topic. A dropped connection
// is re-established on the next publish.
type Publisher struct {
	cfg     config.MQTT
	timeout time.Duration
	logger  *slog.Logger

	mu     sync.Mutex
	client *paho.Client
	closed bool
}

// Dial connects to the broker described by cfg.
func Dial(ctx context.Context, cfg config.MQTT, timeout time.Duration, logger *slog.Logger) (*Publisher, error) {
	if cfg.ClientID == "" {
		cfg.ClientID = "kahvi-" + uuid.NewString()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	p := &Publisher{
		cfg:     cfg,
		timeout: timeout,
		logger:  logging.NewComponentLogger(logger, "mqtt"),
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.connectLocked(ctx); err != nil {
		return nil, err
	}
	p.logger.Info("connected to mqtt broker",
		logging.String(logging.FieldEventType, "mqtt_connected"),
		logging.String("broker", cfg.Broker),
		logging.String("topic", cfg.Topic),
	)
	return p, nil
}

// BrokerAddress converts a tcp:// or mqtt:// URL into a dialable host:port.
func BrokerAddress(broker string) (string, error) {
	u, err := url.Parse(broker)
	if err != nil {
		return "", fmt.Errorf("parse mqtt broker %q: %w", broker, err)
	}
	switch u.Scheme {
	case "tcp", "mqtt":
	default:
		return "", fmt.Errorf("unsupported mqtt broker scheme %q", u.Scheme)
	}
	host, port := u.Hostname(), u.Port()
	if host == "" {
		return "", fmt.Errorf("mqtt broker %q has no host", broker)
	}
	if port == "" {
		port = "1883"
	}
	return net.JoinHostPort(host, port), nil
}

func (p *Publisher) connectLocked(ctx context.Context) error {
	addr, err := BrokerAddress(p.cfg.Broker)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial mqtt broker %s: %w", addr, err)
	}

	client := paho.NewClient(paho.ClientConfig{
		ClientID: p.cfg.ClientID,
		Conn:     conn,
	})
	connect := &paho.Connect{
		ClientID:     p.cfg.ClientID,
		CleanStart:   true,
		KeepAlive:    keepAliveSeconds,
		Username:     p.cfg.Username,
		UsernameFlag: p.cfg.Username != "",
		Password:     []byte(p.cfg.Password),
		PasswordFlag: p.cfg.Password != "",
	}
	if _, err := client.Connect(ctx, connect); err != nil {
		_ = conn.Close()
		return fmt.Errorf("mqtt connect: %w", err)
	}
	p.client = client
	return nil
}

// Payload encodes r the way it is published.
func Payload(r reading.Reading) ([]byte, error) {
	return json.Marshal(r)
}

// Publish sends r to the configured topic.
func (p *Publisher) Publish(ctx context.Context, r reading.Reading) error {
	payload, err := Payload(r)
	if err != nil {
		return fmt.Errorf("encode reading: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return errors.New("mqtt publisher closed")
	}
	if p.client == nil {
		if err := p.connectLocked(ctx); err != nil {
			return err
		}
		p.logger.Info("reconnected to mqtt broker",
			logging.String(logging.FieldEventType, "mqtt_reconnected"),
		)
	}

	pubCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	_, err = p.client.Publish(pubCtx, &paho.Publish{
		Topic:   p.cfg.Topic,
		QoS:     byte(p.cfg.QoS),
		Retain:  p.cfg.Retain,
		Payload: payload,
	})
	if err != nil {
		// Drop the client so the next publish dials again.
		_ = p.client.Disconnect(&paho.Disconnect{ReasonCode: 0})
		p.client = nil
		return fmt.Errorf("mqtt publish: %w", err)
	}
	return nil
}

// Close disconnects from the broker. It is safe to call more than once.
func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	if p.client == nil {
		return nil
	}
	err := p.client.Disconnect(&paho.Disconnect{ReasonCode: 0})
	p.client = nil
	return err
}
