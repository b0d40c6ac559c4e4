package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/good-yellow-bee/fieldsense/internal/models"
)

type sqliteDeviceTokenRepo struct {
	db  *sql.DB
	now func() time.Time
}

func (r *sqliteDeviceTokenRepo) Upsert(ctx context.Context, t *models.DeviceToken) (err error) {
	defer func(start time.Time) { observe("device_token_upsert", start, err) }(time.Now())

	if t.CreatedAt.IsZero() {
		t.CreatedAt = r.now().UTC()
	}
	query := `
		INSERT INTO device_tokens (token, platform, label, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(token) DO UPDATE SET platform = excluded.platform, label = excluded.label
	`
	_, err = r.db.ExecContext(ctx, query, t.Token, nullString(t.Platform), nullString(t.Label), t.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("upsert device token: %w", err)
	}
	return nil
}

// Get returns nil, nil when the token is not registered.
func (r *sqliteDeviceTokenRepo) Get(ctx context.Context, token string) (*models.DeviceToken, error) {
	query := `SELECT token, platform, label, created_at FROM device_tokens WHERE token = ?`

	var t models.DeviceToken
	var platform, label sql.NullString
	err := r.db.QueryRowContext(ctx, query, token).Scan(&t.Token, &platform, &label, &t.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query device token: %w", err)
	}
	t.Platform = platform.String
	t.Label = label.String
	return &t, nil
}

func (r *sqliteDeviceTokenRepo) Delete(ctx context.Context, token string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM device_tokens WHERE token = ?", token)
	if err != nil {
		return fmt.Errorf("delete device token: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete device token: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *sqliteDeviceTokenRepo) List(ctx context.Context) ([]*models.DeviceToken, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT token, platform, label, created_at FROM device_tokens ORDER BY created_at, token")
	if err != nil {
		return nil, fmt.Errorf("query device tokens: %w", err)
	}
	defer rows.Close()

	tokens := []*models.DeviceToken{}
	for rows.Next() {
		t := &models.DeviceToken{}
		var platform, label sql.NullString
		if err := rows.Scan(&t.Token, &platform, &label, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan device token: %w", err)
		}
		t.Platform = platform.String
		t.Label = label.String
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}

func (r *sqliteDeviceTokenRepo) DeviceTokens(ctx context.Context) (_ []string, err error) {
	defer func(start time.Time) { observe("device_token_list", start, err) }(time.Now())

	rows, err := r.db.QueryContext(ctx, "SELECT token FROM device_tokens ORDER BY token")
	if err != nil {
		return nil, fmt.Errorf("query device tokens: %w", err)
	}
	defer rows.Close()

	var tokens []string
	for rows.Next() {
		var token string
		if err := rows.Scan(&token); err != nil {
			return nil, fmt.Errorf("scan device token: %w", err)
		}
		tokens = append(tokens, token)
	}
	return tokens, rows.Err()
}
