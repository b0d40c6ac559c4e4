package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/good-yellow-bee/fieldsense/internal/models"
)

type sqliteCooldownRepo struct {
	db *sql.DB
}

// SaveCooldown upserts the record, keeping the newer timestamp on conflict.
func (r *sqliteCooldownRepo) SaveCooldown(ctx context.Context, rec models.CooldownRecord) (err error) {
	defer func(start time.Time) { observe("cooldown_save", start, err) }(time.Now())

	query := `
		INSERT INTO cooldowns (kind, last_fired_at) VALUES (?, ?)
		ON CONFLICT(kind) DO UPDATE SET last_fired_at = excluded.last_fired_at
		WHERE excluded.last_fired_at > cooldowns.last_fired_at
	`
	if _, err = r.db.ExecContext(ctx, query, rec.Kind, rec.LastFiredAt.UTC()); err != nil {
		return fmt.Errorf("save cooldown %s: %w", rec.Kind, err)
	}
	return nil
}

func (r *sqliteCooldownRepo) List(ctx context.Context) (_ []models.CooldownRecord, err error) {
	defer func(start time.Time) { observe("cooldown_list", start, err) }(time.Now())

	rows, err := r.db.QueryContext(ctx, "SELECT kind, last_fired_at FROM cooldowns ORDER BY kind")
	if err != nil {
		return nil, fmt.Errorf("query cooldowns: %w", err)
	}
	defer rows.Close()

	var records []models.CooldownRecord
	for rows.Next() {
		var rec models.CooldownRecord
		if err := rows.Scan(&rec.Kind, &rec.LastFiredAt); err != nil {
			return nil, fmt.Errorf("scan cooldown: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
