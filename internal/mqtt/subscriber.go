package mqtt

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/good-yellow-bee/fieldsense/internal/clock"
	"github.com/good-yellow-bee/fieldsense/internal/logger"
	"github.com/good-yellow-bee/fieldsense/internal/metrics"
	"github.com/good-yellow-bee/fieldsense/internal/models"
	"github.com/good-yellow-bee/fieldsense/internal/pipeline"
)

// ErrInvalidTopic is returned for messages outside <prefix>/<device>/readings.
var ErrInvalidTopic = errors.New("invalid readings topic")

// Processor runs a reading through the alerting pipeline.
type Processor interface {
	Process(ctx context.Context, reading *models.SensorReading) *pipeline.Result
}

// Publisher sends a payload to a topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
}

// Broker is the part of Client the subscriber needs.
type Broker interface {
	Publisher
	Subscribe(topic string, handler func(topic string, payload []byte)) error
	Unsubscribe(topic string) error
}

// CommandMessage is published to a device after each of its readings.
// An empty command list tells the device to clear its warning outputs.
type CommandMessage struct {
	DeviceID       string                 `json:"device_id"`
	DeviceCommands []models.DeviceCommand `json:"device_commands"`
	Alerts         []models.AlertKind     `json:"alerts"`
	Warnings       []string               `json:"warnings"`
	Timestamp      time.Time              `json:"timestamp"`
}

// Subscriber feeds MQTT readings into the pipeline and answers with device commands.
type Subscriber struct {
	proc    Processor
	pub     Publisher
	prefix  string
	clock   clock.Clock
	timeout time.Duration
	log     zerolog.Logger
}

// NewSubscriber creates a subscriber for topics under prefix.
func NewSubscriber(proc Processor, pub Publisher, prefix string, clk clock.Clock) *Subscriber {
	if clk == nil {
		clk = clock.Real{}
	}
	return &Subscriber{
		proc:    proc,
		pub:     pub,
		prefix:  strings.TrimSuffix(prefix, "/"),
		clock:   clk,
		timeout: 15 * time.Second,
		log:     logger.WithComponent("mqtt-subscriber"),
	}
}

// ReadingsTopic is the wildcard subscription for all devices.
func (s *Subscriber) ReadingsTopic() string {
	return s.prefix + "/+/readings"
}

// CommandsTopic returns the command topic of one device.
func (s *Subscriber) CommandsTopic(deviceID string) string {
	return s.prefix + "/" + deviceID + "/commands"
}

// Run subscribes to readings and blocks until ctx is canceled.
func (s *Subscriber) Run(ctx context.Context, b Broker) error {
	topic := s.ReadingsTopic()
	err := b.Subscribe(topic, func(t string, payload []byte) {
		if err := s.HandleMessage(ctx, t, payload); err != nil {
			s.log.Warn().Err(err).Str("topic", t).Msg("reading rejected")
		}
	})
	if err != nil {
		return err
	}
	s.log.Info().Str("topic", topic).Msg("subscribed to readings")

	<-ctx.Done()
	if err := b.Unsubscribe(topic); err != nil {
		s.log.Debug().Err(err).Msg("unsubscribe failed")
	}
	return nil
}

// HandleMessage processes one readings message.
func (s *Subscriber) HandleMessage(ctx context.Context, topic string, payload []byte) error {
	deviceID, err := s.deviceID(topic)
	if err != nil {
		metrics.MQTTMessagesTotal.WithLabelValues("invalid").Inc()
		return err
	}

	var obj map[string]any
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	if err := dec.Decode(&obj); err != nil || obj == nil {
		metrics.MQTTMessagesTotal.WithLabelValues("invalid").Inc()
		return fmt.Errorf("device %s: payload is not a JSON object", deviceID)
	}

	reading := models.ReadingFromMap(obj, s.clock.Now())
	reading.DeviceID = deviceID
	metrics.ReadingsTotal.WithLabelValues("mqtt").Inc()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	res := s.proc.Process(ctx, reading)

	msg := CommandMessage{
		DeviceID:       deviceID,
		DeviceCommands: res.DeviceCommands,
		Alerts:         make([]models.AlertKind, 0, len(res.AcceptedAlerts)),
		Warnings:       res.Warnings,
		Timestamp:      reading.Timestamp,
	}
	for _, a := range res.AcceptedAlerts {
		msg.Alerts = append(msg.Alerts, a.Kind)
	}
	out, err := json.Marshal(msg)
	if err != nil {
		metrics.MQTTMessagesTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("marshal commands: %w", err)
	}
	if err := s.pub.Publish(ctx, s.CommandsTopic(deviceID), out); err != nil {
		metrics.MQTTMessagesTotal.WithLabelValues("publish_error").Inc()
		return err
	}

	metrics.MQTTMessagesTotal.WithLabelValues("ok").Inc()
	s.log.Debug().
		Str("device_id", deviceID).
		Int("commands", len(res.DeviceCommands)).
		Int("accepted", len(res.AcceptedAlerts)).
		Msg("reading processed")
	return nil
}

// deviceID extracts the device segment of <prefix>/<device>/readings.
func (s *Subscriber) deviceID(topic string) (string, error) {
	rest, ok := strings.CutPrefix(topic, s.prefix+"/")
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrInvalidTopic, topic)
	}
	device, ok := strings.CutSuffix(rest, "/readings")
	if !ok || device == "" || strings.Contains(device, "/") {
		return "", fmt.Errorf("%w: %s", ErrInvalidTopic, topic)
	}
	return device, nil
}
