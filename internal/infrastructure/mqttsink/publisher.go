// Package mqttsink publishes panel frames to an MQTT broker as msgpack.
package mqttsink

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"

	"NewsBoard/internal/config"
	"NewsBoard/internal/domain"
	"NewsBoard/internal/ports"
)

// publishClient is the part of mqtt.Client the publisher needs.
type publishClient interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// Publisher sends every frame, retained, to <prefix>/<panel> so a late
// subscriber gets the current board at once.
type Publisher struct {
	cfg    config.MQTTConfig
	logger *slog.Logger

	client mqtt.Client
	pub    publishClient

	mu        sync.RWMutex
	published map[string]uint64
	errors    uint64
}

var _ ports.Presenter = (*Publisher)(nil)

// NewPublisher creates an unconnected publisher.
func NewPublisher(cfg config.MQTTConfig, logger *slog.Logger) *Publisher {
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = "newsboard/panels"
	}
	return &Publisher{cfg: cfg, logger: logger, published: map[string]uint64{}}
}

// Connect establishes the broker connection with auto reconnect.
func (p *Publisher) Connect(ctx context.Context) error {
	broker := p.cfg.Broker
	if !strings.Contains(broker, "://") {
		broker = "tcp://" + broker
	}
	clientID := p.cfg.ClientID
	if clientID == "" {
		clientID = "newsboard"
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(clientID + "-" + uuid.NewString()[:8])
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		p.warn("mqtt connection lost, will auto-reconnect", "broker", broker, "error", err)
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(5 * time.Second):
		return fmt.Errorf("mqtt connection timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connection failed: %w", err)
	}

	p.client = client
	p.pub = client
	if p.logger != nil {
		p.logger.Info("mqtt connection established", "broker", broker)
	}
	return nil
}

// Present publishes the frame.
func (p *Publisher) Present(ctx context.Context, frame domain.PanelFrame) error {
	if p.pub == nil {
		p.countError()
		return fmt.Errorf("mqtt not connected")
	}

	payload, err := Encode(frame)
	if err != nil {
		p.countError()
		return fmt.Errorf("encode frame: %w", err)
	}

	topic := p.Topic(frame.Panel)
	token := p.pub.Publish(topic, p.cfg.QoS, true, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		p.countError()
		return ctx.Err()
	case <-time.After(2 * time.Second):
		p.countError()
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		p.countError()
		return fmt.Errorf("publish failed: %w", err)
	}

	p.mu.Lock()
	p.published[topic]++
	p.mu.Unlock()
	return nil
}

// Topic returns the topic frames of panel are published to.
func (p *Publisher) Topic(panel string) string {
	return strings.TrimRight(p.cfg.TopicPrefix, "/") + "/" + panel
}

// Disconnect closes the connection with a short grace period.
func (p *Publisher) Disconnect() {
	if p.client != nil && p.client.IsConnected() {
		p.client.Disconnect(250)
	}
}

// Stats contains publisher statistics.
type Stats struct {
	Published map[string]uint64
	Errors    uint64
}

// Stats returns a copy of the counters.
func (p *Publisher) Stats() Stats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	published := make(map[string]uint64, len(p.published))
	for k, v := range p.published {
		published[k] = v
	}
	return Stats{Published: published, Errors: p.errors}
}

func (p *Publisher) countError() {
	p.mu.Lock()
	p.errors++
	p.mu.Unlock()
}

func (p *Publisher) warn(msg string, args ...interface{}) {
	if p.logger != nil {
		p.logger.Warn(msg, args...)
	}
}

// Encode serializes a frame as msgpack.
func Encode(frame domain.PanelFrame) ([]byte, error) {
	return msgpack.Marshal(frame)
}

// Decode parses a msgpack frame.
func Decode(payload []byte) (domain.PanelFrame, error) {
	var frame domain.PanelFrame
	err := msgpack.Unmarshal(payload, &frame)
	return frame, err
}
