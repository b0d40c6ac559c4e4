package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/good-yellow-bee/fieldsense/internal/models"
)

// Publisher publishes a payload to a broker topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
}

// MQTTNotifier publishes alerts to field gateways over MQTT.
type MQTTNotifier struct {
	publisher Publisher
	topic     string
}

// NewMQTTNotifier creates a notifier publishing to "<prefix>/alerts".
func NewMQTTNotifier(publisher Publisher, prefix string) (*MQTTNotifier, error) {
	if publisher == nil {
		return nil, fmt.Errorf("publisher is required")
	}
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return nil, fmt.Errorf("topic prefix is required")
	}
	return &MQTTNotifier{
		publisher: publisher,
		topic:     prefix + "/alerts",
	}, nil
}

// Name returns "mqtt".
func (m *MQTTNotifier) Name() string {
	return "mqtt"
}

// Topic returns the alerts topic.
func (m *MQTTNotifier) Topic() string {
	return m.topic
}

// mqttAlert is the message published for gateways.
type mqttAlert struct {
	*models.AlertEvent
	Title string `json:"title"`
}

// Send publishes the alert as JSON.
func (m *MQTTNotifier) Send(ctx context.Context, alert *models.AlertEvent) error {
	data, err := json.Marshal(mqttAlert{AlertEvent: alert, Title: BuildPush(alert).Title})
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}
	if err := m.publisher.Publish(ctx, m.topic, data); err != nil {
		return fmt.Errorf("publish %s: %w", m.topic, err)
	}
	return nil
}

// Close is a no-op; the MQTT client is owned by the caller.
func (m *MQTTNotifier) Close() error {
	return nil
}
