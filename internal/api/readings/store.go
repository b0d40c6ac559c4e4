package readings

import (
	"sync"

	"github.com/good-yellow-bee/fieldsense/internal/models"
)

// DefaultValues are reported by /data before any device has reported.
var DefaultValues = map[string]float64{
	models.FieldMoisture: 72,
	models.FieldPH:       6.8,
	models.FieldTemp:     24,
	models.FieldNitrogen: 55,
}

// Store keeps the latest value of every measurement field across devices.
type Store struct {
	mu     sync.RWMutex
	latest map[string]float64
}

// NewStore creates a store seeded with DefaultValues.
func NewStore() *Store {
	latest := make(map[string]float64, len(DefaultValues))
	for k, v := range DefaultValues {
		latest[k] = v
	}
	return &Store{latest: latest}
}

// Merge overwrites the fields present in reading and returns the merged values.
func (s *Store) Merge(reading *models.SensorReading) map[string]float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	for field, v := range reading.Values() {
		s.latest[field] = v
	}
	return s.copyLocked()
}

// Snapshot returns a copy of the latest values.
func (s *Store) Snapshot() map[string]float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.copyLocked()
}

func (s *Store) copyLocked() map[string]float64 {
	out := make(map[string]float64, len(s.latest))
	for k, v := range s.latest {
		out[k] = v
	}
	return out
}
