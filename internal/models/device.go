package models

import "time"

// CommandState is the requested state of a device actuator.
type CommandState string

const (
	StateOn  CommandState = "on"
	StateOff CommandState = "off"
)

// DeviceCommand is a directive returned to field hardware.
type DeviceCommand struct {
	Type    string       `json:"type"`
	Mode    string       `json:"mode"`
	State   CommandState `json:"state"`
	Pattern string       `json:"pattern"`
}

// DeviceToken is a registered push-notification target.
type DeviceToken struct {
	Token     string    `json:"token"`
	Platform  string    `json:"platform,omitempty"`
	Label     string    `json:"label,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
