package alerting

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/good-yellow-bee/fieldsense/internal/logger"
	"github.com/good-yellow-bee/fieldsense/internal/models"
)

// DefaultCooldown is the minimum time between two dispatched alerts of one kind.
const DefaultCooldown = 30 * time.Minute

// persistTimeout bounds a single cooldown write-through.
const persistTimeout = 2 * time.Second

// CooldownPersister stores cooldown records outside the process.
type CooldownPersister interface {
	SaveCooldown(ctx context.Context, rec models.CooldownRecord) error
}

// CooldownStore is the only gate between a candidate alert and a dispatched one.
// Each kind has its own lock so the check and the update happen as one step.
type CooldownStore struct {
	window time.Duration

	mu        sync.RWMutex
	slots     map[models.AlertKind]*cooldownSlot
	persister CooldownPersister
}

type cooldownSlot struct {
	mu          sync.Mutex
	fired       bool
	lastFiredAt time.Time
}

// NewCooldownStore creates a store with the given window.
// A non-positive window selects DefaultCooldown.
func NewCooldownStore(window time.Duration) *CooldownStore {
	if window <= 0 {
		window = DefaultCooldown
	}
	s := &CooldownStore{
		window: window,
		slots:  make(map[models.AlertKind]*cooldownSlot),
	}
	for _, k := range models.AlertKinds() {
		s.slots[k] = &cooldownSlot{}
	}
	return s
}

// SetPersister enables write-through of admitted records.
func (s *CooldownStore) SetPersister(p CooldownPersister) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.persister = p
}

// Window returns the cooldown window.
func (s *CooldownStore) Window() time.Duration {
	return s.window
}

// Restore seeds the store with previously persisted records.
// A record only replaces a newer in-memory one if it is more recent.
func (s *CooldownStore) Restore(records []models.CooldownRecord) {
	for _, rec := range records {
		slot := s.slot(rec.Kind)
		slot.mu.Lock()
		if !slot.fired || rec.LastFiredAt.After(slot.lastFiredAt) {
			slot.fired = true
			slot.lastFiredAt = rec.LastFiredAt
		}
		slot.mu.Unlock()
	}
}

// Admit reports whether an alert of kind may be dispatched at now.
// On true, now is recorded as the kind's last fire time; on false the record is untouched.
func (s *CooldownStore) Admit(kind models.AlertKind, now time.Time) bool {
	slot := s.slot(kind)

	slot.mu.Lock()
	if slot.fired && now.Sub(slot.lastFiredAt) < s.window {
		slot.mu.Unlock()
		return false
	}
	slot.fired = true
	slot.lastFiredAt = now
	slot.mu.Unlock()

	s.persist(models.CooldownRecord{Kind: kind, LastFiredAt: now})
	return true
}

// Remaining returns how long kind stays suppressed after now.
func (s *CooldownStore) Remaining(kind models.AlertKind, now time.Time) time.Duration {
	slot := s.slot(kind)
	slot.mu.Lock()
	defer slot.mu.Unlock()

	if !slot.fired {
		return 0
	}
	remaining := slot.lastFiredAt.Add(s.window).Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Records returns the kinds that have fired, sorted by kind.
func (s *CooldownStore) Records() []models.CooldownRecord {
	s.mu.RLock()
	kinds := make([]models.AlertKind, 0, len(s.slots))
	for k := range s.slots {
		kinds = append(kinds, k)
	}
	s.mu.RUnlock()

	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })

	var out []models.CooldownRecord
	for _, k := range kinds {
		slot := s.slot(k)
		slot.mu.Lock()
		if slot.fired {
			out = append(out, models.CooldownRecord{Kind: k, LastFiredAt: slot.lastFiredAt})
		}
		slot.mu.Unlock()
	}
	return out
}

// slot returns the per-kind slot, creating it for kinds not known at construction.
func (s *CooldownStore) slot(kind models.AlertKind) *cooldownSlot {
	s.mu.RLock()
	slot, ok := s.slots[kind]
	s.mu.RUnlock()
	if ok {
		return slot
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if slot, ok = s.slots[kind]; ok {
		return slot
	}
	slot = &cooldownSlot{}
	s.slots[kind] = slot
	return slot
}

func (s *CooldownStore) persist(rec models.CooldownRecord) {
	s.mu.RLock()
	p := s.persister
	s.mu.RUnlock()
	if p == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := p.SaveCooldown(ctx, rec); err != nil {
		log := logger.WithComponent("cooldown")
		log.Warn().Err(err).Str("kind", string(rec.Kind)).Msg("failed to persist cooldown record")
	}
}
