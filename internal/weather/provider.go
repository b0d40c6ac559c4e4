// Package weather keeps a lazily refreshed rain-risk snapshot built from an
// external forecast provider.
package weather

import (
	"context"
	"time"

	"github.com/good-yellow-bee/fieldsense/internal/models"
)

// ForecastSlot is one period of a forecast series.
type ForecastSlot struct {
	// Offset is the slot start relative to the time of the request.
	Offset time.Duration
	// Duration is the slot length; zero means a point forecast.
	Duration time.Duration
	// RainProbability is the precipitation probability in 0..1.
	RainProbability float64
}

// Forecast is a provider response.
type Forecast struct {
	Slots []ForecastSlot
}

// Provider abstracts a weather forecast source.
type Provider interface {
	Name() string
	Forecast(ctx context.Context, lat, lon float64) (*Forecast, error)
}

// Assess derives a snapshot from a forecast. A slot counts when any part of it
// falls between now and now+lookahead; rain is imminent when such a slot's
// probability reaches threshold.
func Assess(f *Forecast, fetchedAt time.Time, threshold float64, lookahead time.Duration) models.WeatherSnapshot {
	snap := models.WeatherSnapshot{FetchedAt: fetchedAt}
	if f == nil {
		return snap
	}
	for _, slot := range f.Slots {
		if slot.Offset > lookahead || slot.Offset+slot.Duration < 0 {
			continue
		}
		p := slot.RainProbability
		if p > snap.RainProbability {
			snap.RainProbability = p
		}
		if p >= threshold {
			snap.RainImminent = true
		}
	}
	return snap
}
