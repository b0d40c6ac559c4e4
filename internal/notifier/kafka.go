package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/good-yellow-bee/fieldsense/internal/models"
)

// KafkaConfig holds Kafka producer configuration.
type KafkaConfig struct {
	Brokers      []string
	Topic        string
	WriteTimeout time.Duration
}

// Validate validates the Kafka configuration.
func (c *KafkaConfig) Validate() error {
	if len(c.Brokers) == 0 {
		return errors.New("at least one broker is required")
	}
	if c.Topic == "" {
		return errors.New("topic is required")
	}
	return nil
}

// messageWriter is the subset of *kafka.Writer used by the notifier.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaNotifier publishes alerts to a Kafka topic for downstream consumers.
type KafkaNotifier struct {
	writer messageWriter
	topic  string
}

// NewKafkaNotifier creates a new Kafka notifier.
func NewKafkaNotifier(config KafkaConfig) (*KafkaNotifier, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid kafka config: %w", err)
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = 10 * time.Second
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(config.Brokers...),
		Topic:        config.Topic,
		Balancer:     &kafka.Hash{}, // Partition by alert kind
		WriteTimeout: config.WriteTimeout,
		RequiredAcks: kafka.RequireOne,
		MaxAttempts:  1, // no retries
	}
	return &KafkaNotifier{writer: writer, topic: config.Topic}, nil
}

// Name returns "kafka".
func (k *KafkaNotifier) Name() string {
	return "kafka"
}

// Send publishes the alert keyed by its kind.
func (k *KafkaNotifier) Send(ctx context.Context, alert *models.AlertEvent) error {
	data, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(alert.Kind),
		Value: data,
		Headers: []kafka.Header{
			{Key: "kind", Value: []byte(alert.Kind)},
			{Key: "severity", Value: []byte(alert.Severity)},
		},
		Time: alert.FiredAt,
	}
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write to %s: %w", k.topic, err)
	}
	return nil
}

// Close flushes and closes the underlying writer.
func (k *KafkaNotifier) Close() error {
	return k.writer.Close()
}
