package alerting

import (
	"github.com/good-yellow-bee/fieldsense/internal/models"
)

// Engine turns sensor readings into candidate alerts.
// It holds no mutable state and is safe for concurrent use.
type Engine struct {
	thresholds Thresholds
}

// NewEngine creates a rule engine with the given thresholds.
func NewEngine(thresholds Thresholds) *Engine {
	return &Engine{thresholds: thresholds}
}

// Thresholds returns the limits the engine evaluates against.
func (e *Engine) Thresholds() Thresholds {
	return e.thresholds
}

// Evaluate returns the candidate alerts for a reading, ordered
// moisture, temp, ph, nitrogen. Absent measurements are skipped.
func (e *Engine) Evaluate(reading *models.SensorReading) []*models.AlertEvent {
	if reading == nil {
		return nil
	}

	var alerts []*models.AlertEvent
	for _, r := range rules {
		v, ok := reading.Get(r.field)
		if !ok || !r.fires(v, e.thresholds) {
			continue
		}
		alerts = append(alerts, &models.AlertEvent{
			Kind:     r.kind,
			Message:  r.message(v, e.thresholds),
			Severity: r.severity,
			FiredAt:  reading.Timestamp,
			DeviceID: reading.DeviceID,
		})
	}
	return alerts
}
