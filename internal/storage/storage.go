// Package storage provides database storage interfaces and implementations.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/good-yellow-bee/fieldsense/internal/models"
)

// ErrNotFound is returned when a row to modify does not exist.
var ErrNotFound = errors.New("not found")

// Storage is the main interface for database operations.
type Storage interface {
	// Open initializes the database connection.
	Open() error
	// Close closes the database connection.
	Close() error
	// Migrate runs database migrations.
	Migrate() error
	// Ping checks the database connection.
	Ping(ctx context.Context) error

	// Repository accessors
	AlertHistory() AlertHistoryRepository
	Cooldowns() CooldownRepository
	DeviceTokens() DeviceTokenRepository
}

// AlertHistoryRepository defines operations for dispatched alert history.
type AlertHistoryRepository interface {
	Create(ctx context.Context, history *models.AlertHistory) error
	// RecordAlert appends a dispatched alert to the history.
	RecordAlert(ctx context.Context, alert *models.AlertEvent) error
	List(ctx context.Context, limit, offset int) ([]*models.AlertHistory, int64, error)
	ListByKind(ctx context.Context, kind models.AlertKind, limit, offset int) ([]*models.AlertHistory, int64, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// CooldownRepository persists the last dispatch time per alert kind.
type CooldownRepository interface {
	// SaveCooldown upserts a record. An older timestamp never replaces a newer one.
	SaveCooldown(ctx context.Context, record models.CooldownRecord) error
	List(ctx context.Context) ([]models.CooldownRecord, error)
}

// DeviceTokenRepository manages push-notification targets.
type DeviceTokenRepository interface {
	// Upsert registers a token, refreshing its platform and label if it exists.
	Upsert(ctx context.Context, token *models.DeviceToken) error
	Get(ctx context.Context, token string) (*models.DeviceToken, error)
	Delete(ctx context.Context, token string) error
	List(ctx context.Context) ([]*models.DeviceToken, error)
	// DeviceTokens returns all registered token strings.
	DeviceTokens(ctx context.Context) ([]string, error)
}
