package logger

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestWithComponent(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)

	log := WithComponent("weather")
	log.Info().Msg("refreshed")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log output is not JSON: %v (%q)", err, buf.String())
	}
	if entry["component"] != "weather" {
		t.Errorf("component = %v, want weather", entry["component"])
	}
	if entry["message"] != "refreshed" {
		t.Errorf("message = %v, want refreshed", entry["message"])
	}
}

func TestInitFallsBackToInfo(t *testing.T) {
	Init("not-a-level", false)
	var buf bytes.Buffer
	SetOutput(&buf)

	Logger.Debug().Msg("hidden")
	if buf.Len() != 0 {
		t.Errorf("debug message should be filtered at info level, got %q", buf.String())
	}
}
