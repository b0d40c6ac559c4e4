package models

import (
	"encoding/json"
	"math"
	"net/url"
	"testing"
	"time"
)

func TestReadingFromMap(t *testing.T) {
	ts := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		payload string
		want    map[string]float64
	}{
		{
			name:    "all fields",
			payload: `{"moisture": 30, "ph": 6.5, "temp": 28, "nitrogen": 50}`,
			want:    map[string]float64{"moisture": 30, "ph": 6.5, "temp": 28, "nitrogen": 50},
		},
		{
			name:    "missing fields",
			payload: `{"moisture": 30}`,
			want:    map[string]float64{"moisture": 30},
		},
		{
			name:    "numeric strings",
			payload: `{"moisture": " 34.9 ", "ph": "7"}`,
			want:    map[string]float64{"moisture": 34.9, "ph": 7},
		},
		{
			name:    "non-numeric values skipped",
			payload: `{"moisture": "dry", "ph": true, "temp": null, "nitrogen": [1]}`,
			want:    map[string]float64{},
		},
		{
			name:    "special float strings skipped",
			payload: `{"moisture": "NaN", "temp": "+Inf"}`,
			want:    map[string]float64{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var payload map[string]any
			if err := json.Unmarshal([]byte(tt.payload), &payload); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}

			r := ReadingFromMap(payload, ts)
			got := r.Values()
			if len(got) != len(tt.want) {
				t.Fatalf("Values() = %v, want %v", got, tt.want)
			}
			for field, want := range tt.want {
				if math.Abs(got[field]-want) > 1e-9 {
					t.Errorf("%s = %v, want %v", field, got[field], want)
				}
			}
			if !r.Timestamp.Equal(ts) {
				t.Errorf("Timestamp = %v, want %v", r.Timestamp, ts)
			}
		})
	}
}

func TestReadingFromMap_DeviceID(t *testing.T) {
	r := ReadingFromMap(map[string]any{"device_id": " node-7 ", "temp": 20.0}, time.Now())
	if r.DeviceID != "node-7" {
		t.Errorf("DeviceID = %q, want %q", r.DeviceID, "node-7")
	}
}

func TestReadingFromQuery(t *testing.T) {
	values := url.Values{}
	values.Set("moisture", "22.5")
	values.Set("nitrogen", "abc")

	r := ReadingFromQuery(values, time.Now())
	if r.Moisture == nil || *r.Moisture != 22.5 {
		t.Errorf("Moisture = %v, want 22.5", r.Moisture)
	}
	if r.Nitrogen != nil {
		t.Errorf("Nitrogen = %v, want nil", *r.Nitrogen)
	}
}

func TestSensorReading_HasMeasurements(t *testing.T) {
	if (&SensorReading{}).HasMeasurements() {
		t.Error("empty reading should have no measurements")
	}
	if !(&SensorReading{PH: Float(6.1)}).HasMeasurements() {
		t.Error("reading with pH should have measurements")
	}
}

func TestAlertKind_Valid(t *testing.T) {
	for _, k := range AlertKinds() {
		if !k.Valid() {
			t.Errorf("%q should be valid", k)
		}
		if k.Title() == string(k) {
			t.Errorf("%q should have a title", k)
		}
	}
	if AlertKind("frost").Valid() {
		t.Error("unknown kind should be invalid")
	}
}
