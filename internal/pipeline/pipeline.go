// Package pipeline runs a sensor reading through rule evaluation, cooldown
// admission, weather merge, dispatch and device command building.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/good-yellow-bee/fieldsense/internal/alerting"
	"github.com/good-yellow-bee/fieldsense/internal/clock"
	"github.com/good-yellow-bee/fieldsense/internal/logger"
	"github.com/good-yellow-bee/fieldsense/internal/metrics"
	"github.com/good-yellow-bee/fieldsense/internal/models"
	"github.com/good-yellow-bee/fieldsense/internal/weather"
)

// Dispatcher hands admitted alerts to the notification layer without blocking.
type Dispatcher interface {
	Dispatch(alert *models.AlertEvent) error
}

// Result is the synchronous outcome of processing one reading.
type Result struct {
	// AcceptedAlerts are the alerts that passed the cooldown and were queued for
	// notification. An admitted alert the dispatcher refused is reported in Warnings.
	AcceptedAlerts []*models.AlertEvent `json:"accepted_alerts"`
	// Alerts are all candidates, including those suppressed by the cooldown.
	Alerts         []*models.AlertEvent   `json:"alerts"`
	DeviceCommands []models.DeviceCommand `json:"device_commands"`
	Weather        models.WeatherSnapshot `json:"weather"`
	Warnings       []string               `json:"warnings"`
}

// Pipeline orchestrates alerting for incoming readings. It is safe for concurrent use.
type Pipeline struct {
	engine     *alerting.Engine
	cooldowns  *alerting.CooldownStore
	weather    *weather.Cache
	dispatcher Dispatcher
	clock      clock.Clock
}

// New creates a pipeline. A nil weather cache disables rain warnings.
func New(engine *alerting.Engine, cooldowns *alerting.CooldownStore, wc *weather.Cache, d Dispatcher, clk clock.Clock) (*Pipeline, error) {
	if engine == nil {
		return nil, errors.New("rule engine is required")
	}
	if cooldowns == nil {
		return nil, errors.New("cooldown store is required")
	}
	if d == nil {
		return nil, errors.New("dispatcher is required")
	}
	if clk == nil {
		clk = clock.Real{}
	}
	if wc == nil {
		wc = weather.NewCache(nil, weather.Config{}, clk)
	}
	return &Pipeline{
		engine:     engine,
		cooldowns:  cooldowns,
		weather:    wc,
		dispatcher: d,
		clock:      clk,
	}, nil
}

// Process evaluates a reading and returns the alerts and device commands it produced.
// It never fails: weather and dispatch problems degrade into warnings and logs.
func (p *Pipeline) Process(ctx context.Context, reading *models.SensorReading) *Result {
	if reading == nil {
		reading = &models.SensorReading{}
	}
	log := logger.WithComponent("pipeline").With().Str("device_id", reading.DeviceID).Logger()
	now := p.clock.Now()

	res := &Result{
		AcceptedAlerts: []*models.AlertEvent{},
		Alerts:         []*models.AlertEvent{},
		Warnings:       []string{},
	}

	for _, alert := range p.engine.Evaluate(reading) {
		p.admit(res, alert, now)
	}

	risk := p.weather.RainRisk(ctx)
	res.Weather = risk.Snapshot
	if risk.Warning != "" {
		res.Warnings = append(res.Warnings, risk.Warning)
	}

	if risk.Snapshot.RainImminent {
		p.admit(res, p.rainWarning(risk.Snapshot, reading.DeviceID, now), now)
	}

	res.DeviceCommands = BuildDeviceCommands(res.AcceptedAlerts, res.Weather)
	for _, cmd := range res.DeviceCommands {
		metrics.DeviceCommandsTotal.WithLabelValues(cmd.Type).Inc()
	}

	log.Debug().
		Int("candidates", len(res.Alerts)).
		Int("accepted", len(res.AcceptedAlerts)).
		Bool("rain_imminent", res.Weather.RainImminent).
		Msg("reading processed")
	return res
}

// admit runs a candidate through the cooldown and dispatches it if accepted.
func (p *Pipeline) admit(res *Result, alert *models.AlertEvent, now time.Time) {
	res.Alerts = append(res.Alerts, alert)
	metrics.AlertCandidatesTotal.WithLabelValues(string(alert.Kind)).Inc()

	if !p.cooldowns.Admit(alert.Kind, now) {
		metrics.AlertsSuppressedTotal.WithLabelValues(string(alert.Kind)).Inc()
		return
	}
	metrics.AlertsAdmittedTotal.WithLabelValues(string(alert.Kind)).Inc()

	if err := p.dispatcher.Dispatch(alert); err != nil {
		log := logger.WithComponent("pipeline")
		log.Warn().
			Err(err).
			Str("kind", string(alert.Kind)).
			Msg("alert not queued for notification")
		res.Warnings = append(res.Warnings, fmt.Sprintf("%s alert not dispatched: %v", alert.Kind, err))
		return
	}
	res.AcceptedAlerts = append(res.AcceptedAlerts, alert)
}

func (p *Pipeline) rainWarning(snap models.WeatherSnapshot, deviceID string, now time.Time) *models.AlertEvent {
	return &models.AlertEvent{
		Kind: models.KindRainWarning,
		Message: fmt.Sprintf("Rain expected within %s (%.0f%% chance). Pause irrigation and protect harvested produce.",
			formatLookahead(p.weather.Lookahead()), snap.RainProbability*100),
		Severity: models.SeverityCritical,
		FiredAt:  now,
		DeviceID: deviceID,
	}
}

func formatLookahead(d time.Duration) string {
	switch {
	case d == time.Hour:
		return "1 hour"
	case d%time.Hour == 0:
		return fmt.Sprintf("%d hours", int(d/time.Hour))
	default:
		return fmt.Sprintf("%.0f minutes", d.Minutes())
	}
}
