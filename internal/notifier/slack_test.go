package notifier

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/good-yellow-bee/fieldsense/internal/models"
)

func TestSlackConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		config  SlackConfig
		wantErr bool
		errMsg  string
	}{
		{
			name:    "empty config",
			config:  SlackConfig{},
			wantErr: true,
			errMsg:  "webhook URL is required",
		},
		{
			name: "http URL rejected",
			config: SlackConfig{
				WebhookURL: "http://hooks.slack.com/services/xxx",
			},
			wantErr: true,
			errMsg:  "webhook URL must use HTTPS",
		},
		{
			name: "valid config",
			config: SlackConfig{
				WebhookURL: "https://hooks.slack.com/services/T00/B00/xxx",
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error containing %q, got nil", tt.errMsg)
				} else if !strings.Contains(err.Error(), tt.errMsg) {
					t.Errorf("expected error containing %q, got %q", tt.errMsg, err.Error())
				}
			} else if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestSlackNotifierName(t *testing.T) {
	notifier := &SlackNotifier{}
	if got := notifier.Name(); got != "slack" {
		t.Errorf("Name() = %q, want %q", got, "slack")
	}
}

func TestSlackNotifierSend(t *testing.T) {
	var receivedPayload slackMessage

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST method, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected Content-Type application/json, got %s", ct)
		}

		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &receivedPayload); err != nil {
			t.Errorf("failed to unmarshal payload: %v", err)
		}

		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	// Use test server URL (allow non-HTTPS for testing)
	notifier := &SlackNotifier{
		config: SlackConfig{
			WebhookURL: server.URL,
		},
		httpClient: server.Client(),
	}

	alert := &models.AlertEvent{
		Kind:     models.KindHighTemp,
		Message:  "Temperature is 38.0°C, above 35°C.",
		Severity: models.SeverityWarning,
		FiredAt:  time.Date(2024, 6, 1, 14, 30, 0, 0, time.UTC),
		DeviceID: "field-7",
	}

	if err := notifier.Send(context.Background(), alert); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	if len(receivedPayload.Blocks) != 4 {
		t.Fatalf("got %d blocks, want 4", len(receivedPayload.Blocks))
	}

	header := receivedPayload.Blocks[0]
	if header.Type != "header" {
		t.Errorf("first block type = %q, want %q", header.Type, "header")
	}
	if header.Text == nil || !strings.Contains(header.Text.Text, "High temperature") {
		t.Errorf("header missing alert title, got %+v", header.Text)
	}

	device := receivedPayload.Blocks[3]
	if device.Type != "context" || !strings.Contains(device.Elements[0].Text, "field-7") {
		t.Errorf("device context block = %+v", device)
	}
}

func TestSlackNotifierHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("internal error"))
	}))
	defer server.Close()

	notifier := &SlackNotifier{
		config:     SlackConfig{WebhookURL: server.URL},
		httpClient: server.Client(),
	}

	err := notifier.Send(context.Background(), testAlert(models.KindLowNitrogen))
	if err == nil {
		t.Fatal("expected error for HTTP 500")
	}
	if !strings.Contains(err.Error(), "status 500") {
		t.Errorf("error should contain status code, got %q", err.Error())
	}
}

func TestSlackNotifierContextCancellation(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()
	defer close(release)

	notifier := &SlackNotifier{
		config:     SlackConfig{WebhookURL: server.URL},
		httpClient: server.Client(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	if err := notifier.Send(ctx, testAlert(models.KindLowMoisture)); err == nil {
		t.Fatal("expected error for canceled context")
	}
}

func TestSeverityEmoji(t *testing.T) {
	tests := []struct {
		severity models.Severity
		want     string
	}{
		{models.SeverityCritical, "\U0001F534"},
		{models.SeverityWarning, "\U0001F7E1"},
		{models.SeverityInfo, "\U0001F535"},
		{models.Severity("unknown"), "⚪"},
	}

	for _, tt := range tests {
		t.Run(string(tt.severity), func(t *testing.T) {
			if got := severityEmoji(tt.severity); got != tt.want {
				t.Errorf("severityEmoji(%q) = %q, want %q", tt.severity, got, tt.want)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		input string
		max   int
		want  string
	}{
		{"short", 10, "short"},
		{"exactly10!", 10, "exactly10!"},
		{"this is a longer string", 10, "this is..."},
		{"", 5, ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := truncate(tt.input, tt.max); got != tt.want {
				t.Errorf("truncate(%q, %d) = %q, want %q", tt.input, tt.max, got, tt.want)
			}
		})
	}
}

func TestSlackRainWarningPayload(t *testing.T) {
	notifier := &SlackNotifier{}
	alert := &models.AlertEvent{
		Kind:     models.KindRainWarning,
		Message:  "Rain expected within 2 hours (70% chance).",
		Severity: models.SeverityCritical,
		FiredAt:  time.Date(2024, 6, 1, 6, 0, 0, 0, time.UTC),
	}

	payload := notifier.buildPayload(alert)
	if len(payload.Blocks) != 3 {
		t.Errorf("expected 3 blocks without a device, got %d", len(payload.Blocks))
	}
	if !strings.Contains(payload.Blocks[0].Text.Text, "\U0001F534") {
		t.Error("critical alert should have red circle emoji")
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("failed to marshal payload: %v", err)
	}
	if !strings.Contains(string(jsonData), "CRITICAL") {
		t.Error("JSON missing severity")
	}
}
