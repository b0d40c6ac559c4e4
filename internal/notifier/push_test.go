package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/good-yellow-bee/fieldsense/internal/models"
)

type staticTokens struct {
	tokens []string
	err    error
}

func (s staticTokens) DeviceTokens(ctx context.Context) ([]string, error) {
	return s.tokens, s.err
}

func TestPushConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		config  PushConfig
		wantErr string
	}{
		{"empty", PushConfig{}, "endpoint is required"},
		{"bad scheme", PushConfig{Endpoint: "ftp://push.example.com"}, "http or https"},
		{"valid", PushConfig{Endpoint: "https://push.example.com/v1/send"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want %q", err, tt.wantErr)
			}
		})
	}

	if _, err := NewPushNotifier(PushConfig{Endpoint: "https://push.example.com"}, nil); err == nil {
		t.Error("expected error without a token source")
	}
}

func TestPushNotifierSend(t *testing.T) {
	var got pushPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth := r.Header.Get("Authorization"); auth != "Bearer secret" {
			t.Errorf("Authorization = %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	p, err := NewPushNotifier(PushConfig{Endpoint: server.URL, APIKey: "secret"},
		staticTokens{tokens: []string{"tok-a", "tok-b"}})
	if err != nil {
		t.Fatalf("NewPushNotifier: %v", err)
	}

	if err := p.Send(context.Background(), testAlert(models.KindLowMoisture)); err != nil {
		t.Fatalf("Send: %v", err)
	}

	if got.Title != "Low soil moisture" {
		t.Errorf("title = %q", got.Title)
	}
	if !strings.Contains(got.Body, "Irrigation recommended") {
		t.Errorf("body = %q", got.Body)
	}
	if len(got.Tokens) != 2 {
		t.Errorf("tokens = %v", got.Tokens)
	}
	if got.Data["kind"] != "low_moisture" {
		t.Errorf("data = %v", got.Data)
	}
}

func TestPushNotifierNoTokens(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer server.Close()

	p, _ := NewPushNotifier(PushConfig{Endpoint: server.URL}, staticTokens{})
	if err := p.Send(context.Background(), testAlert(models.KindLowMoisture)); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if hits.Load() != 0 {
		t.Error("push service should not be called without tokens")
	}
}

func TestPushNotifierErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("overloaded"))
	}))
	defer server.Close()

	p, _ := NewPushNotifier(PushConfig{Endpoint: server.URL}, staticTokens{tokens: []string{"t"}})
	err := p.Send(context.Background(), testAlert(models.KindHighTemp))
	if err == nil || !strings.Contains(err.Error(), "status 503") {
		t.Errorf("expected status error, got %v", err)
	}

	p, _ = NewPushNotifier(PushConfig{Endpoint: server.URL}, staticTokens{err: errors.New("db closed")})
	err = p.Send(context.Background(), testAlert(models.KindHighTemp))
	if err == nil || !strings.Contains(err.Error(), "device tokens") {
		t.Errorf("expected token source error, got %v", err)
	}
}
