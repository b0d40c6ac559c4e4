package weather

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/good-yellow-bee/fieldsense/internal/clock"
	"github.com/good-yellow-bee/fieldsense/internal/logger"
	"github.com/good-yellow-bee/fieldsense/internal/metrics"
	"github.com/good-yellow-bee/fieldsense/internal/models"
)

// Config controls cache freshness and the rain-risk rule. Zero or negative
// values select the defaults: 5m TTL, 0.5 threshold, 2h lookahead, 5s timeout.
type Config struct {
	// TTL is the minimum time between two provider calls.
	TTL time.Duration
	// RainThreshold is the probability (0..1) at which rain counts as imminent.
	RainThreshold float64
	// Lookahead is how far ahead forecast slots are considered.
	Lookahead time.Duration
	// Timeout bounds a single provider call.
	Timeout time.Duration
	// Latitude and Longitude locate the farm.
	Latitude  float64
	Longitude float64
}

// SetDefaults applies default values for missing configuration.
func (c *Config) SetDefaults() {
	if c.TTL <= 0 {
		c.TTL = 5 * time.Minute
	}
	if c.RainThreshold <= 0 {
		c.RainThreshold = 0.5
	}
	if c.Lookahead <= 0 {
		c.Lookahead = 2 * time.Hour
	}
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Second
	}
}

// Result is what a rain-risk lookup returns.
type Result struct {
	Snapshot models.WeatherSnapshot `json:"snapshot"`
	// Stale is set when the snapshot predates a failed refresh.
	Stale bool `json:"stale,omitempty"`
	// Warning is non-empty when the provider could not be reached.
	Warning string `json:"warning,omitempty"`
}

// Cache memoizes the rain-risk snapshot. Refresh happens lazily on read and
// concurrent readers share a single provider call.
type Cache struct {
	cfg      Config
	provider Provider
	clock    clock.Clock
	group    singleflight.Group

	mu          sync.RWMutex
	snapshot    models.WeatherSnapshot
	attempted   bool
	lastAttempt time.Time
	lastErr     error
}

// NewCache creates a weather cache. A nil provider disables weather lookups:
// the cache then always reports no rain and no warning.
func NewCache(provider Provider, cfg Config, clk clock.Clock) *Cache {
	cfg.SetDefaults()
	if clk == nil {
		clk = clock.Real{}
	}
	return &Cache{
		cfg:      cfg,
		provider: provider,
		clock:    clk,
	}
}

// Enabled reports whether a provider is configured.
func (c *Cache) Enabled() bool {
	return c.provider != nil
}

// Lookahead returns how far ahead forecast slots are considered.
func (c *Cache) Lookahead() time.Duration {
	return c.cfg.Lookahead
}

// Snapshot returns the current snapshot without refreshing.
func (c *Cache) Snapshot() models.WeatherSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshot
}

// RainRisk returns the cached snapshot, refreshing it first if it is older than the TTL.
// It never fails: provider errors degrade to the previous snapshot or a no-rain default.
func (c *Cache) RainRisk(ctx context.Context) Result {
	if c.provider == nil {
		return Result{}
	}

	now := c.clock.Now()
	c.mu.RLock()
	res, fresh := c.cachedLocked(now)
	c.mu.RUnlock()
	if fresh {
		return res
	}

	v, _, _ := c.group.Do("refresh", func() (any, error) {
		return c.refresh(ctx), nil
	})
	return v.(Result)
}

// cachedLocked returns the current result if the last provider call is within the TTL.
// Must be called with mu held.
func (c *Cache) cachedLocked(now time.Time) (Result, bool) {
	if !c.attempted || now.Sub(c.lastAttempt) >= c.cfg.TTL {
		return Result{}, false
	}
	if c.lastErr != nil {
		return c.failureResultLocked(), true
	}
	return Result{Snapshot: c.snapshot}, true
}

func (c *Cache) refresh(ctx context.Context) Result {
	now := c.clock.Now()

	c.mu.Lock()
	if res, fresh := c.cachedLocked(now); fresh {
		c.mu.Unlock()
		return res
	}
	c.mu.Unlock()

	// The first caller's cancellation must not fail the shared refresh.
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.Timeout)
	defer cancel()

	log := logger.WithComponent("weather")
	forecast, err := c.provider.Forecast(callCtx, c.cfg.Latitude, c.cfg.Longitude)

	c.mu.Lock()
	defer c.mu.Unlock()
	// Readers arriving while the call is in flight must join it, not see the old state as fresh.
	c.attempted = true
	c.lastAttempt = now

	if err != nil {
		metrics.WeatherProviderCalls.WithLabelValues(c.provider.Name(), "failure").Inc()
		c.lastErr = err
		log.Warn().Err(err).Str("provider", c.provider.Name()).Msg("weather refresh failed")
		return c.failureResultLocked()
	}

	metrics.WeatherProviderCalls.WithLabelValues(c.provider.Name(), "success").Inc()
	c.lastErr = nil
	c.snapshot = Assess(forecast, now, c.cfg.RainThreshold, c.cfg.Lookahead)
	metrics.WeatherRainProbability.Set(c.snapshot.RainProbability)
	if c.snapshot.RainImminent {
		metrics.WeatherRainImminent.Set(1)
	} else {
		metrics.WeatherRainImminent.Set(0)
	}

	log.Debug().
		Float64("rain_probability", c.snapshot.RainProbability).
		Bool("rain_imminent", c.snapshot.RainImminent).
		Msg("weather refreshed")
	return Result{Snapshot: c.snapshot}
}

// failureResultLocked serves the previous snapshot, or a no-rain default if there is none.
// Must be called with mu held.
func (c *Cache) failureResultLocked() Result {
	if !c.snapshot.IsZero() {
		return Result{
			Snapshot: c.snapshot,
			Stale:    true,
			Warning: fmt.Sprintf("weather provider unavailable, using forecast from %s",
				c.snapshot.FetchedAt.UTC().Format(time.RFC3339)),
		}
	}
	return Result{
		Snapshot: models.WeatherSnapshot{RainImminent: false},
		Warning:  "weather provider unavailable, rain risk unknown",
	}
}
