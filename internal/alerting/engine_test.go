package alerting

import (
	"strings"
	"testing"
	"time"

	"github.com/good-yellow-bee/fieldsense/internal/models"
)

var testTime = time.Date(2024, 6, 1, 6, 0, 0, 0, time.UTC)

func kinds(alerts []*models.AlertEvent) []models.AlertKind {
	out := make([]models.AlertKind, 0, len(alerts))
	for _, a := range alerts {
		out = append(out, a.Kind)
	}
	return out
}

func equalKinds(a, b []models.AlertKind) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestEngineThresholdBoundaries(t *testing.T) {
	engine := NewEngine(DefaultThresholds())

	tests := []struct {
		name    string
		reading models.SensorReading
		want    []models.AlertKind
	}{
		{"moisture at limit", models.SensorReading{Moisture: models.Float(35)}, nil},
		{"moisture below limit", models.SensorReading{Moisture: models.Float(34.9)}, []models.AlertKind{models.KindLowMoisture}},
		{"temp at limit", models.SensorReading{Temp: models.Float(35)}, nil},
		{"temp above limit", models.SensorReading{Temp: models.Float(35.1)}, []models.AlertKind{models.KindHighTemp}},
		{"ph at lower limit", models.SensorReading{PH: models.Float(5.8)}, nil},
		{"ph below lower limit", models.SensorReading{PH: models.Float(5.79)}, []models.AlertKind{models.KindPHOutOfRange}},
		{"ph at upper limit", models.SensorReading{PH: models.Float(7.8)}, nil},
		{"ph above upper limit", models.SensorReading{PH: models.Float(7.81)}, []models.AlertKind{models.KindPHOutOfRange}},
		{"nitrogen at limit", models.SensorReading{Nitrogen: models.Float(40)}, nil},
		{"nitrogen below limit", models.SensorReading{Nitrogen: models.Float(39.9)}, []models.AlertKind{models.KindLowNitrogen}},
		{"empty reading", models.SensorReading{}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.reading.Timestamp = testTime
			got := kinds(engine.Evaluate(&tt.reading))
			if !equalKinds(got, tt.want) {
				t.Errorf("Evaluate() kinds = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEngineSingleLowMoisture(t *testing.T) {
	engine := NewEngine(DefaultThresholds())
	reading := &models.SensorReading{
		Moisture:  models.Float(30),
		PH:        models.Float(6.5),
		Temp:      models.Float(28),
		Nitrogen:  models.Float(50),
		Timestamp: testTime,
	}

	alerts := engine.Evaluate(reading)
	if len(alerts) != 1 {
		t.Fatalf("expected 1 alert, got %d", len(alerts))
	}
	a := alerts[0]
	if a.Kind != models.KindLowMoisture {
		t.Errorf("kind = %q, want %q", a.Kind, models.KindLowMoisture)
	}
	if a.Severity != models.SeverityWarning {
		t.Errorf("severity = %q, want warning", a.Severity)
	}
	if !a.FiredAt.Equal(testTime) {
		t.Errorf("FiredAt = %v, want %v", a.FiredAt, testTime)
	}
	if !strings.Contains(a.Message, "30.0%") {
		t.Errorf("message %q should mention the reading", a.Message)
	}
}

func TestEngineAllRulesInOrder(t *testing.T) {
	engine := NewEngine(DefaultThresholds())
	reading := &models.SensorReading{
		Moisture:  models.Float(20),
		PH:        models.Float(5.0),
		Temp:      models.Float(40),
		Nitrogen:  models.Float(20),
		Timestamp: testTime,
	}

	alerts := engine.Evaluate(reading)
	want := []models.AlertKind{
		models.KindLowMoisture,
		models.KindHighTemp,
		models.KindPHOutOfRange,
		models.KindLowNitrogen,
	}
	if got := kinds(alerts); !equalKinds(got, want) {
		t.Fatalf("kinds = %v, want %v", got, want)
	}
	if alerts[3].Severity != models.SeverityInfo {
		t.Errorf("nitrogen severity = %q, want info", alerts[3].Severity)
	}
}

func TestEngineSkipsAbsentFields(t *testing.T) {
	engine := NewEngine(DefaultThresholds())
	// Absent moisture must not be treated as zero.
	reading := &models.SensorReading{Temp: models.Float(20), Timestamp: testTime}
	if alerts := engine.Evaluate(reading); len(alerts) != 0 {
		t.Errorf("expected no alerts, got %v", kinds(alerts))
	}
	if alerts := engine.Evaluate(nil); alerts != nil {
		t.Errorf("nil reading should produce no alerts, got %v", alerts)
	}
}

func TestEngineCustomThresholds(t *testing.T) {
	th := DefaultThresholds()
	th.MoistureMin = 50
	engine := NewEngine(th)

	alerts := engine.Evaluate(&models.SensorReading{Moisture: models.Float(45), Timestamp: testTime})
	if got := kinds(alerts); !equalKinds(got, []models.AlertKind{models.KindLowMoisture}) {
		t.Errorf("kinds = %v, want [low_moisture]", got)
	}
}

func TestThresholdsValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Thresholds)
		wantErr string
	}{
		{"defaults", func(*Thresholds) {}, ""},
		{"inverted ph", func(t *Thresholds) { t.PHMin, t.PHMax = 8, 6 }, "ph_min"},
		{"ph beyond scale", func(t *Thresholds) { t.PHMax = 15 }, "outside 0-14"},
		{"moisture beyond scale", func(t *Thresholds) { t.MoistureMin = 120 }, "moisture_min"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			th := DefaultThresholds()
			tt.modify(&th)
			err := th.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestLoadThresholds(t *testing.T) {
	th, err := LoadThresholds(strings.NewReader(`
thresholds:
  moisture_min: 40
  ph_max: 8.0
`))
	if err != nil {
		t.Fatalf("LoadThresholds: %v", err)
	}
	if th.MoistureMin != 40 || th.PHMax != 8.0 {
		t.Errorf("overrides not applied: %+v", th)
	}
	if th.TempMax != 35 || th.NitrogenMin != 40 || th.PHMin != 5.8 {
		t.Errorf("defaults not kept: %+v", th)
	}

	if _, err := LoadThresholds(strings.NewReader("thresholds:\n  ph_min: 9\n")); err == nil {
		t.Error("expected validation error for ph_min above ph_max")
	}

	th, err = LoadThresholds(strings.NewReader(""))
	if err != nil {
		t.Fatalf("empty document: %v", err)
	}
	if th != DefaultThresholds() {
		t.Errorf("empty document = %+v, want defaults", th)
	}
}
