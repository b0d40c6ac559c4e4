// Package notifier delivers admitted alerts to push, chat and messaging channels.
package notifier

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/good-yellow-bee/fieldsense/internal/logger"
	"github.com/good-yellow-bee/fieldsense/internal/metrics"
	"github.com/good-yellow-bee/fieldsense/internal/models"
)

// Notifier is the interface for all notification channels.
type Notifier interface {
	// Name returns the notifier name (e.g., "push", "slack").
	Name() string
	// Send sends an alert notification.
	Send(ctx context.Context, alert *models.AlertEvent) error
	// Close releases any resources.
	Close() error
}

// AlertRecorder persists alerts handed to the dispatcher.
type AlertRecorder interface {
	RecordAlert(ctx context.Context, alert *models.AlertEvent) error
}

// Push is the user-facing notification built from an alert.
type Push struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// BuildPush renders an alert as a push notification.
func BuildPush(alert *models.AlertEvent) Push {
	title := alert.Kind.Title()
	if alert.Severity == models.SeverityCritical {
		title = "Urgent: " + title
	}
	return Push{Title: title, Body: alert.Message}
}

// Dispatch errors. None of them are retried.
var (
	ErrQueueFull        = errors.New("notification queue full")
	ErrRateLimited      = errors.New("notification rate limited")
	ErrDispatcherClosed = errors.New("dispatcher closed")
)

// DispatcherConfig configures the worker pool.
type DispatcherConfig struct {
	QueueSize   int
	Workers     int
	SendTimeout time.Duration
	RateLimit   RateLimitConfig
}

// SetDefaults applies default values for missing configuration.
func (c *DispatcherConfig) SetDefaults() {
	if c.QueueSize <= 0 {
		c.QueueSize = 256
	}
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = 10 * time.Second
	}
}

// DispatchStats contains dispatcher counters.
type DispatchStats struct {
	Queued  int    `json:"queued"`
	Sent    uint64 `json:"sent"`
	Failed  uint64 `json:"failed"`
	Dropped uint64 `json:"dropped"`
}

// Dispatcher fans alerts out to registered notifiers from a bounded queue.
// Dispatch never blocks: when the queue is full the alert is dropped.
type Dispatcher struct {
	cfg DispatcherConfig

	mu          sync.RWMutex
	notifiers   map[string]Notifier
	recorder    AlertRecorder
	rateLimiter *RateLimiter
	closed      bool

	queue chan *models.AlertEvent
	wg    sync.WaitGroup

	sent    atomic.Uint64
	failed  atomic.Uint64
	dropped atomic.Uint64
}

// NewDispatcher creates a dispatcher and starts its workers.
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	cfg.SetDefaults()
	d := &Dispatcher{
		cfg:       cfg,
		notifiers: make(map[string]Notifier),
		queue:     make(chan *models.AlertEvent, cfg.QueueSize),
	}
	if cfg.RateLimit.Enabled {
		d.rateLimiter = NewRateLimiter(cfg.RateLimit, nil)
	}

	log := logger.WithComponent("dispatcher")

	log.Info().
		Int("workers", cfg.Workers).
		Int("queue_size", cfg.QueueSize).
		Msg("starting notification workers")

	for i := 0; i < cfg.Workers; i++ {
		d.wg.Add(1)
		go d.worker(i)
	}
	return d
}

// Register adds a notifier to the dispatcher.
func (d *Dispatcher) Register(n Notifier) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.notifiers[n.Name()] = n
}

// Unregister removes a notifier from the dispatcher.
func (d *Dispatcher) Unregister(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.notifiers, name)
}

// Get returns a notifier by name.
func (d *Dispatcher) Get(name string) (Notifier, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	n, ok := d.notifiers[name]
	return n, ok
}

// Names returns the registered notifier names, sorted.
func (d *Dispatcher) Names() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	names := make([]string, 0, len(d.notifiers))
	for name := range d.notifiers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SetRecorder installs the alert history hook.
func (d *Dispatcher) SetRecorder(r AlertRecorder) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.recorder = r
}

// Dispatch enqueues an alert for delivery and returns immediately.
func (d *Dispatcher) Dispatch(alert *models.AlertEvent) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.drop(alert, "closed")
		return ErrDispatcherClosed
	}
	if d.rateLimiter != nil && !d.rateLimiter.Allow() {
		d.drop(alert, "rate_limited")
		return ErrRateLimited
	}

	select {
	case d.queue <- alert:
		metrics.NotificationQueueDepth.Set(float64(len(d.queue)))
		return nil
	default:
		d.drop(alert, "queue_full")
		return ErrQueueFull
	}
}

func (d *Dispatcher) drop(alert *models.AlertEvent, reason string) {
	d.dropped.Add(1)
	metrics.NotificationsDroppedTotal.WithLabelValues(reason).Inc()
	log := logger.WithComponent("dispatcher")
	log.Warn().
		Str("kind", string(alert.Kind)).
		Str("reason", reason).
		Msg("alert dropped")
}

func (d *Dispatcher) worker(id int) {
	defer d.wg.Done()
	for alert := range d.queue {
		metrics.NotificationQueueDepth.Set(float64(len(d.queue)))
		d.deliver(id, alert)
	}
}

// deliver sends one alert to every notifier. The registry lock is released before any I/O.
func (d *Dispatcher) deliver(id int, alert *models.AlertEvent) {
	d.mu.RLock()
	recorder := d.recorder
	targets := make([]Notifier, 0, len(d.notifiers))
	for _, n := range d.notifiers {
		targets = append(targets, n)
	}
	d.mu.RUnlock()

	log := logger.WithComponent("dispatcher").With().
		Int("worker_id", id).
		Str("kind", string(alert.Kind)).
		Logger()

	if recorder != nil {
		ctx, cancel := context.WithTimeout(context.Background(), d.cfg.SendTimeout)
		if err := recorder.RecordAlert(ctx, alert); err != nil {
			log.Warn().Err(err).Msg("failed to record alert history")
		}
		cancel()
	}

	for _, n := range targets {
		if err := d.send(n, alert); err != nil {
			d.failed.Add(1)
			metrics.NotificationErrorsTotal.WithLabelValues(n.Name()).Inc()
			log.Error().Err(err).Str("notifier", n.Name()).Msg("notification failed")
			continue
		}
		d.sent.Add(1)
		metrics.NotificationsSentTotal.WithLabelValues(n.Name()).Inc()
		log.Debug().Str("notifier", n.Name()).Msg("notification sent")
	}
}

// send calls a single notifier, turning a panic into an error.
func (d *Dispatcher) send(n Notifier, alert *models.AlertEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			metrics.DispatchPanicsRecovered.Inc()
			log := logger.WithComponent("dispatcher")
			log.Error().
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Str("notifier", n.Name()).
				Msg("notifier panic recovered")
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.SendTimeout)
	defer cancel()
	return n.Send(ctx, alert)
}

// Stats returns dispatcher counters.
func (d *Dispatcher) Stats() DispatchStats {
	return DispatchStats{
		Queued:  len(d.queue),
		Sent:    d.sent.Load(),
		Failed:  d.failed.Load(),
		Dropped: d.dropped.Load(),
	}
}

// RateLimitStats returns the rate limiter statistics.
func (d *Dispatcher) RateLimitStats() RateLimitStats {
	if d.rateLimiter == nil {
		return RateLimitStats{}
	}
	return d.rateLimiter.Stats()
}

// Close stops accepting alerts, drains the queue and closes all notifiers.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	d.wg.Wait()

	d.mu.Lock()
	defer d.mu.Unlock()

	var errs []error
	for name, n := range d.notifiers {
		if err := n.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	d.notifiers = make(map[string]Notifier)

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
