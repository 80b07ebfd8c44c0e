// Package publish forwards logged readings to an MQTT broker so plant
// historians and dashboards see them as they are recorded.
package publish

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	mqttLib "github.com/eclipse/paho.mqtt.golang"

	"github.com/bina-refinery/logbook/internal/models"
)

// Config configures the MQTT publisher.
type Config struct {
	Broker         string
	Username       string
	Password       string
	ClientID       string
	TopicPrefix    string
	QoS            byte
	Retain         bool
	KeepAlive      time.Duration
	ConnectTimeout time.Duration
	PublishTimeout time.Duration
}

// DefaultConfig returns a local broker with QoS 1.
func DefaultConfig() Config {
	return Config{
		Broker:         "tcp://localhost:1883",
		ClientID:       generateClientID(),
		TopicPrefix:    "refinery/logbook",
		QoS:            1,
		KeepAlive:      60 * time.Second,
		ConnectTimeout: 10 * time.Second,
		PublishTimeout: 5 * time.Second,
	}
}

func generateClientID() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return "bina-logbook-" + hex.EncodeToString(b)
}

// Message is the JSON payload of one reading.
type Message struct {
	Location  string  `json:"location"`
	Parameter string  `json:"parameter"`
	Value     float64 `json:"value"`
	Unit      string  `json:"unit"`
	Timestamp string  `json:"timestamp"`
	Status    string  `json:"status,omitempty"`
}

// NewMessage converts a reading to its payload.
func NewMessage(r models.Reading) Message {
	return Message{
		Location:  r.Location,
		Parameter: r.Parameter,
		Value:     r.Value,
		Unit:      r.Unit,
		Timestamp: r.FormattedTimestamp(),
		Status:    string(r.Status),
	}
}

// Topic returns prefix/location/parameter with MQTT wildcards and
// separators in names replaced.
func Topic(prefix string, r models.Reading) string {
	return strings.TrimRight(prefix, "/") + "/" + topicSegment(r.Location) + "/" + topicSegment(r.Parameter)
}

var segmentReplacer = strings.NewReplacer("/", "_", "+", "_", "#", "_", " ", "_")

func topicSegment(s string) string {
	return strings.ToLower(segmentReplacer.Replace(strings.TrimSpace(s)))
}

// MQTTPublisher publishes readings to a broker.
type MQTTPublisher struct {
	config Config
	client mqttLib.Client
	logger *slog.Logger
}

// NewMQTTPublisher returns a publisher; call Connect before Publish.
func NewMQTTPublisher(config Config, logger *slog.Logger) *MQTTPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &MQTTPublisher{config: config, logger: logger.With("component", "mqtt")}
}

// Connect dials the broker. Reconnects are automatic afterwards.
func (p *MQTTPublisher) Connect() error {
	opts := mqttLib.NewClientOptions()
	opts.AddBroker(p.config.Broker)
	opts.SetClientID(p.config.ClientID)
	opts.SetKeepAlive(p.config.KeepAlive)
	opts.SetConnectTimeout(p.config.ConnectTimeout)
	opts.SetAutoReconnect(true)
	if p.config.Username != "" {
		opts.SetUsername(p.config.Username)
		opts.SetPassword(p.config.Password)
	}
	opts.SetOnConnectHandler(func(mqttLib.Client) {
		p.logger.Info("connected to broker", "broker", p.config.Broker)
	})
	opts.SetConnectionLostHandler(func(_ mqttLib.Client, err error) {
		p.logger.Warn("connection to broker lost", "error", err)
	})

	p.client = mqttLib.NewClient(opts)
	if token := p.client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to connect to MQTT broker %s: %w", p.config.Broker, token.Error())
	}
	return nil
}

// Publish sends r as JSON and waits for the broker acknowledgement.
func (p *MQTTPublisher) Publish(ctx context.Context, r models.Reading) error {
	if p.client == nil || !p.client.IsConnected() {
		return fmt.Errorf("mqtt: not connected")
	}
	payload, err := json.Marshal(NewMessage(r))
	if err != nil {
		return fmt.Errorf("mqtt: marshal reading: %w", err)
	}

	token := p.client.Publish(Topic(p.config.TopicPrefix, r), p.config.QoS, p.config.Retain, payload)
	timeout := p.config.PublishTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if d := time.Until(deadline); d < timeout {
			timeout = d
		}
	}
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("mqtt: publish timed out after %s", timeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt: publish: %w", err)
	}
	return nil
}

// Close disconnects, allowing 250ms for in-flight messages.
func (p *MQTTPublisher) Close() {
	if p.client != nil && p.client.IsConnected() {
		p.client.Disconnect(250)
	}
}
