// Package models defines domain models for fieldsense.
package models

import (
	"encoding/json"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Measurement field names as they appear on the wire.
const (
	FieldMoisture = "moisture"
	FieldPH       = "ph"
	FieldTemp     = "temp"
	FieldNitrogen = "nitrogen"
)

// MeasurementFields lists the measurement fields in evaluation order.
var MeasurementFields = []string{FieldMoisture, FieldTemp, FieldPH, FieldNitrogen}

// SensorReading is a single report from a field sensor.
// A nil measurement means the device did not report a usable value for it.
type SensorReading struct {
	// DeviceID identifies the reporting device, if known.
	DeviceID string `json:"device_id,omitempty"`
	// Moisture is the soil moisture in percent.
	Moisture *float64 `json:"moisture,omitempty"`
	// PH is the soil pH.
	PH *float64 `json:"ph,omitempty"`
	// Temp is the temperature in degrees Celsius.
	Temp *float64 `json:"temp,omitempty"`
	// Nitrogen is the nitrogen index.
	Nitrogen *float64 `json:"nitrogen,omitempty"`
	// Timestamp is when the reading was received.
	Timestamp time.Time `json:"timestamp"`
}

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}

// ReadingFromMap builds a reading from a decoded JSON object.
// Missing, non-numeric, NaN and infinite values are left absent.
func ReadingFromMap(payload map[string]any, ts time.Time) *SensorReading {
	r := &SensorReading{Timestamp: ts}
	r.Moisture = parseMeasurement(payload[FieldMoisture])
	r.PH = parseMeasurement(payload[FieldPH])
	r.Temp = parseMeasurement(payload[FieldTemp])
	r.Nitrogen = parseMeasurement(payload[FieldNitrogen])
	if id, ok := payload["device_id"].(string); ok {
		r.DeviceID = strings.TrimSpace(id)
	}
	return r
}

// ReadingFromQuery builds a reading from URL query parameters.
func ReadingFromQuery(values url.Values, ts time.Time) *SensorReading {
	payload := make(map[string]any, len(values))
	for key := range values {
		payload[key] = values.Get(key)
	}
	return ReadingFromMap(payload, ts)
}

// Get returns the measurement for a field name.
func (r *SensorReading) Get(field string) (float64, bool) {
	var v *float64
	switch field {
	case FieldMoisture:
		v = r.Moisture
	case FieldPH:
		v = r.PH
	case FieldTemp:
		v = r.Temp
	case FieldNitrogen:
		v = r.Nitrogen
	}
	if v == nil {
		return 0, false
	}
	return *v, true
}

// Values returns the present measurements keyed by field name.
func (r *SensorReading) Values() map[string]float64 {
	out := make(map[string]float64, len(MeasurementFields))
	for _, field := range MeasurementFields {
		if v, ok := r.Get(field); ok {
			out[field] = v
		}
	}
	return out
}

// HasMeasurements reports whether at least one measurement is present.
func (r *SensorReading) HasMeasurements() bool {
	return r.Moisture != nil || r.PH != nil || r.Temp != nil || r.Nitrogen != nil
}

func parseMeasurement(v any) *float64 {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case json.Number:
		parsed, err := x.Float64()
		if err != nil {
			return nil
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return nil
		}
		f = parsed
	default:
		return nil
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}
