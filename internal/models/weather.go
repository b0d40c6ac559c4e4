package models

import "time"

// WeatherSnapshot is the cached rain-risk view of the forecast.
type WeatherSnapshot struct {
	// RainProbability is the highest precipitation probability (0..1) inside the lookahead window.
	RainProbability float64   `json:"rain_probability"`
	FetchedAt       time.Time `json:"fetched_at"`
	RainImminent    bool      `json:"rain_imminent"`
}

// IsZero reports whether the snapshot was never fetched.
func (s WeatherSnapshot) IsZero() bool {
	return s.FetchedAt.IsZero()
}
