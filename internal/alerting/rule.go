// Package alerting evaluates sensor readings against fixed agronomic thresholds
// and gates the resulting alerts through a per-kind cooldown.
package alerting

import (
	"fmt"

	"github.com/good-yellow-bee/fieldsense/internal/models"
)

// Thresholds holds the numeric limits used by the rule engine.
// Every comparison is strict: a value equal to a limit never fires.
type Thresholds struct {
	// MoistureMin fires LowMoisture when moisture < MoistureMin.
	MoistureMin float64 `yaml:"moisture_min"`
	// TempMax fires HighTemp when temp > TempMax.
	TempMax float64 `yaml:"temp_max"`
	// PHMin and PHMax fire PhOutOfRange when ph < PHMin or ph > PHMax.
	PHMin float64 `yaml:"ph_min"`
	PHMax float64 `yaml:"ph_max"`
	// NitrogenMin fires LowNitrogen when nitrogen < NitrogenMin.
	NitrogenMin float64 `yaml:"nitrogen_min"`
}

// DefaultThresholds returns the standard field limits.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MoistureMin: 35,
		TempMax:     35,
		PHMin:       5.8,
		PHMax:       7.8,
		NitrogenMin: 40,
	}
}

// Validate checks that the thresholds are usable.
func (t Thresholds) Validate() error {
	if t.PHMin >= t.PHMax {
		return fmt.Errorf("ph_min (%.2f) must be below ph_max (%.2f)", t.PHMin, t.PHMax)
	}
	if t.PHMin < 0 || t.PHMax > 14 {
		return fmt.Errorf("ph range %.2f-%.2f is outside 0-14", t.PHMin, t.PHMax)
	}
	if t.MoistureMin < 0 || t.MoistureMin > 100 {
		return fmt.Errorf("moisture_min %.2f is outside 0-100", t.MoistureMin)
	}
	return nil
}

// rule maps one measurement to one alert kind.
type rule struct {
	kind     models.AlertKind
	field    string
	severity models.Severity
	fires    func(v float64, t Thresholds) bool
	message  func(v float64, t Thresholds) string
}

// rules is evaluated in order; the order is part of the engine contract.
var rules = []rule{
	{
		kind:     models.KindLowMoisture,
		field:    models.FieldMoisture,
		severity: models.SeverityWarning,
		fires:    func(v float64, t Thresholds) bool { return v < t.MoistureMin },
		message: func(v float64, t Thresholds) string {
			return fmt.Sprintf("Soil moisture is %.1f%%, below %.0f%%. Irrigation recommended.", v, t.MoistureMin)
		},
	},
	{
		kind:     models.KindHighTemp,
		field:    models.FieldTemp,
		severity: models.SeverityWarning,
		fires:    func(v float64, t Thresholds) bool { return v > t.TempMax },
		message: func(v float64, t Thresholds) string {
			return fmt.Sprintf("Temperature is %.1f°C, above %.0f°C. Protect crops from heat stress.", v, t.TempMax)
		},
	},
	{
		kind:     models.KindPHOutOfRange,
		field:    models.FieldPH,
		severity: models.SeverityWarning,
		fires:    func(v float64, t Thresholds) bool { return v < t.PHMin || v > t.PHMax },
		message: func(v float64, t Thresholds) string {
			return fmt.Sprintf("Soil pH is %.2f, outside the %.1f-%.1f range.", v, t.PHMin, t.PHMax)
		},
	},
	{
		kind:     models.KindLowNitrogen,
		field:    models.FieldNitrogen,
		severity: models.SeverityInfo,
		fires:    func(v float64, t Thresholds) bool { return v < t.NitrogenMin },
		message: func(v float64, t Thresholds) string {
			return fmt.Sprintf("Nitrogen index is %.1f, below %.0f. Consider fertilizing.", v, t.NitrogenMin)
		},
	},
}
