package models

import "time"

// AlertHistory records an alert that was handed to the notification dispatcher.
type AlertHistory struct {
	ID        string    `json:"id"`
	Kind      AlertKind `json:"kind"`
	Severity  Severity  `json:"severity"`
	Message   string    `json:"message"`
	DeviceID  string    `json:"device_id,omitempty"`
	FiredAt   time.Time `json:"fired_at"`
	CreatedAt time.Time `json:"created_at"`
}
