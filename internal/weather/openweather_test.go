package weather

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/good-yellow-bee/fieldsense/internal/clock"
)

func TestOpenWeatherConfigValidation(t *testing.T) {
	cfg := OpenWeatherConfig{}
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "API key is required") {
		t.Errorf("expected missing key error, got %v", err)
	}
	cfg.APIKey = "key"
	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestOpenWeatherProviderName(t *testing.T) {
	p := &OpenWeatherProvider{}
	if got := p.Name(); got != "openweather" {
		t.Errorf("Name() = %q, want %q", got, "openweather")
	}
}

func TestOpenWeatherForecast(t *testing.T) {
	now := time.Date(2024, 6, 1, 6, 0, 0, 0, time.UTC)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/data/2.5/forecast" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("appid") != "secret" {
			t.Errorf("appid = %q, want secret", q.Get("appid"))
		}
		if q.Get("lat") != "17.3850" || q.Get("lon") != "78.4867" {
			t.Errorf("coordinates = %s,%s", q.Get("lat"), q.Get("lon"))
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"cod":"200","list":[{"dt":%d,"pop":0.7},{"dt":%d,"pop":0.1}]}`,
			now.Add(time.Hour).Unix(), now.Add(4*time.Hour).Unix())
	}))
	defer server.Close()

	p, err := NewOpenWeatherProvider(OpenWeatherConfig{APIKey: "secret", BaseURL: server.URL}, clock.NewFake(now))
	if err != nil {
		t.Fatalf("NewOpenWeatherProvider: %v", err)
	}

	f, err := p.Forecast(context.Background(), 17.385, 78.4867)
	if err != nil {
		t.Fatalf("Forecast: %v", err)
	}
	if len(f.Slots) != 2 {
		t.Fatalf("got %d slots, want 2", len(f.Slots))
	}
	if f.Slots[0].Offset != time.Hour || f.Slots[0].RainProbability != 0.7 {
		t.Errorf("slot 0 = %+v", f.Slots[0])
	}
	if f.Slots[1].Offset != 4*time.Hour {
		t.Errorf("slot 1 offset = %v, want 4h", f.Slots[1].Offset)
	}

	snap := Assess(f, now, 0.5, 2*time.Hour)
	if !snap.RainImminent {
		t.Error("expected rain within two hours")
	}
}

func TestOpenWeatherErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"cod":401,"message":"Invalid API key"}`))
	}))
	defer server.Close()

	p, err := NewOpenWeatherProvider(OpenWeatherConfig{APIKey: "bad", BaseURL: server.URL}, nil)
	if err != nil {
		t.Fatalf("NewOpenWeatherProvider: %v", err)
	}

	_, err = p.Forecast(context.Background(), 0, 0)
	if err == nil || !strings.Contains(err.Error(), "status 401") {
		t.Errorf("expected status error, got %v", err)
	}
}

func TestOpenWeatherBreakerOpens(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	p, err := NewOpenWeatherProvider(OpenWeatherConfig{
		APIKey:          "key",
		BaseURL:         server.URL,
		BreakerFailures: 2,
		BreakerTimeout:  time.Hour,
	}, nil)
	if err != nil {
		t.Fatalf("NewOpenWeatherProvider: %v", err)
	}

	for i := 0; i < 4; i++ {
		if _, err := p.Forecast(context.Background(), 0, 0); err == nil {
			t.Fatalf("call %d: expected error", i)
		}
	}
	if got := hits.Load(); got != 2 {
		t.Errorf("server hits = %d, want 2 (breaker should open)", got)
	}
}

func TestOpenWeatherEmptyForecast(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"cod":"200","list":[]}`))
	}))
	defer server.Close()

	p, _ := NewOpenWeatherProvider(OpenWeatherConfig{APIKey: "key", BaseURL: server.URL}, nil)
	if _, err := p.Forecast(context.Background(), 0, 0); err == nil {
		t.Error("expected error for empty forecast")
	}
}
