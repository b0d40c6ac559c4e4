package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"

	"github.com/good-yellow-bee/fieldsense/internal/models"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	f.msgs = append(f.msgs, msgs...)
	return f.err
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestKafkaConfigValidation(t *testing.T) {
	if _, err := NewKafkaNotifier(KafkaConfig{Topic: "alerts"}); err == nil {
		t.Error("expected error without brokers")
	}
	if _, err := NewKafkaNotifier(KafkaConfig{Brokers: []string{"localhost:9092"}}); err == nil {
		t.Error("expected error without topic")
	}

	n, err := NewKafkaNotifier(KafkaConfig{Brokers: []string{"localhost:9092"}, Topic: "fieldsense.alerts"})
	if err != nil {
		t.Fatalf("NewKafkaNotifier: %v", err)
	}
	if n.Name() != "kafka" {
		t.Errorf("Name() = %q", n.Name())
	}
	n.Close()
}

func TestKafkaNotifierSend(t *testing.T) {
	w := &fakeWriter{}
	n := &KafkaNotifier{writer: w, topic: "fieldsense.alerts"}

	alert := testAlert(models.KindPHOutOfRange)
	if err := n.Send(context.Background(), alert); err != nil {
		t.Fatalf("Send: %v", err)
	}

	if len(w.msgs) != 1 {
		t.Fatalf("got %d messages, want 1", len(w.msgs))
	}
	msg := w.msgs[0]
	if string(msg.Key) != "ph_out_of_range" {
		t.Errorf("key = %q", msg.Key)
	}
	var decoded models.AlertEvent
	if err := json.Unmarshal(msg.Value, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.Kind != models.KindPHOutOfRange || !decoded.FiredAt.Equal(alert.FiredAt) {
		t.Errorf("decoded = %+v", decoded)
	}

	if err := n.Close(); err != nil || !w.closed {
		t.Errorf("Close() = %v, closed = %v", err, w.closed)
	}
}

func TestKafkaNotifierWriteError(t *testing.T) {
	n := &KafkaNotifier{writer: &fakeWriter{err: errors.New("leader not available")}, topic: "t"}
	if err := n.Send(context.Background(), testAlert(models.KindHighTemp)); err == nil {
		t.Error("expected write error")
	}
}
