package models

import "time"

// AlertKind identifies a class of alert. It is the cooldown key.
type AlertKind string

const (
	KindLowMoisture  AlertKind = "low_moisture"
	KindHighTemp     AlertKind = "high_temp"
	KindPHOutOfRange AlertKind = "ph_out_of_range"
	KindLowNitrogen  AlertKind = "low_nitrogen"
	KindRainWarning  AlertKind = "rain_warning"
)

// AlertKinds returns every known alert kind.
func AlertKinds() []AlertKind {
	return []AlertKind{KindLowMoisture, KindHighTemp, KindPHOutOfRange, KindLowNitrogen, KindRainWarning}
}

// Valid reports whether k is a known alert kind.
func (k AlertKind) Valid() bool {
	switch k {
	case KindLowMoisture, KindHighTemp, KindPHOutOfRange, KindLowNitrogen, KindRainWarning:
		return true
	}
	return false
}

// Title returns a short human readable name for the kind.
func (k AlertKind) Title() string {
	switch k {
	case KindLowMoisture:
		return "Low soil moisture"
	case KindHighTemp:
		return "High temperature"
	case KindPHOutOfRange:
		return "Soil pH out of range"
	case KindLowNitrogen:
		return "Low nitrogen"
	case KindRainWarning:
		return "Rain expected"
	default:
		return string(k)
	}
}

// Severity represents alert severity level.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// ParseSeverity converts a string to Severity, defaulting to warning.
func ParseSeverity(s string) Severity {
	switch s {
	case "info", "INFO":
		return SeverityInfo
	case "critical", "CRITICAL":
		return SeverityCritical
	default:
		return SeverityWarning
	}
}

// AlertEvent is a candidate or dispatched alert. It is never mutated after creation.
type AlertEvent struct {
	Kind     AlertKind `json:"kind"`
	Message  string    `json:"message"`
	Severity Severity  `json:"severity"`
	FiredAt  time.Time `json:"fired_at"`
	// DeviceID is the device whose reading produced the alert, if any.
	DeviceID string `json:"device_id,omitempty"`
}

// CooldownRecord is the last dispatch time of an alert kind.
type CooldownRecord struct {
	Kind        AlertKind `json:"kind"`
	LastFiredAt time.Time `json:"last_fired_at"`
}
