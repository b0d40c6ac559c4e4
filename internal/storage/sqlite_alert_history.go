package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/good-yellow-bee/fieldsense/internal/models"
)

type sqliteAlertHistoryRepo struct {
	db  *sql.DB
	now func() time.Time
}

func (r *sqliteAlertHistoryRepo) Create(ctx context.Context, h *models.AlertHistory) (err error) {
	defer func(start time.Time) { observe("alert_history_create", start, err) }(time.Now())

	query := `
		INSERT INTO alert_history (id, kind, severity, message, device_id, fired_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.db.ExecContext(ctx, query,
		h.ID, h.Kind, h.Severity, h.Message, nullString(h.DeviceID),
		h.FiredAt.UTC(), h.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("create alert history: %w", err)
	}
	return nil
}

// RecordAlert stores a dispatched alert under a fresh id.
func (r *sqliteAlertHistoryRepo) RecordAlert(ctx context.Context, alert *models.AlertEvent) error {
	return r.Create(ctx, &models.AlertHistory{
		ID:        uuid.New().String(),
		Kind:      alert.Kind,
		Severity:  alert.Severity,
		Message:   alert.Message,
		DeviceID:  alert.DeviceID,
		FiredAt:   alert.FiredAt,
		CreatedAt: r.now(),
	})
}

func (r *sqliteAlertHistoryRepo) List(ctx context.Context, limit, offset int) (_ []*models.AlertHistory, _ int64, err error) {
	defer func(start time.Time) { observe("alert_history_list", start, err) }(time.Now())

	var total int64
	err = r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM alert_history").Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count alert history: %w", err)
	}

	query := `
		SELECT id, kind, severity, message, device_id, fired_at, created_at
		FROM alert_history ORDER BY fired_at DESC, created_at DESC LIMIT ? OFFSET ?
	`
	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("query alert history: %w", err)
	}
	defer rows.Close()

	histories, err := r.scanHistories(rows)
	if err != nil {
		return nil, 0, err
	}
	return histories, total, rows.Err()
}

func (r *sqliteAlertHistoryRepo) ListByKind(ctx context.Context, kind models.AlertKind, limit, offset int) (_ []*models.AlertHistory, _ int64, err error) {
	defer func(start time.Time) { observe("alert_history_list", start, err) }(time.Now())

	var total int64
	err = r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM alert_history WHERE kind = ?", kind).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count alert history by kind: %w", err)
	}

	query := `
		SELECT id, kind, severity, message, device_id, fired_at, created_at
		FROM alert_history WHERE kind = ? ORDER BY fired_at DESC, created_at DESC LIMIT ? OFFSET ?
	`
	rows, err := r.db.QueryContext(ctx, query, kind, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("query alert history by kind: %w", err)
	}
	defer rows.Close()

	histories, err := r.scanHistories(rows)
	if err != nil {
		return nil, 0, err
	}
	return histories, total, rows.Err()
}

func (r *sqliteAlertHistoryRepo) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM alert_history WHERE fired_at < ?", before.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete alert history: %w", err)
	}
	return result.RowsAffected()
}

func (r *sqliteAlertHistoryRepo) scanHistories(rows *sql.Rows) ([]*models.AlertHistory, error) {
	histories := []*models.AlertHistory{}
	for rows.Next() {
		h := &models.AlertHistory{}
		var deviceID sql.NullString
		err := rows.Scan(&h.ID, &h.Kind, &h.Severity, &h.Message, &deviceID, &h.FiredAt, &h.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan alert history: %w", err)
		}
		h.DeviceID = deviceID.String
		histories = append(histories, h)
	}
	return histories, nil
}
