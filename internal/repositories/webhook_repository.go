package repositories

import (
	"context"
	"database/sql"
	"time"

	"leadgenBack/internal/models"
)

// WebhookRepository records processed vendor events so replays are recognised.
type WebhookRepository struct {
	DB *sql.DB
}

// IsProcessed returns true if the event id is already stored.
func (r *WebhookRepository) IsProcessed(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.DB.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM webhook_events WHERE id = $1)`, id).Scan(&exists)
	return exists, err
}

// Record stores the outcome of an event. It reports false when another delivery of the
// same event was recorded first.
func (r *WebhookRepository) Record(ctx context.Context, ev models.WebhookEvent) (bool, error) {
	res, err := r.DB.ExecContext(ctx, `
		INSERT INTO webhook_events (id, provider, type, status, error, processed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING`,
		ev.ID, ev.Provider, ev.Type, ev.Status, nullableString(ev.Error), ev.ProcessedAt)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *WebhookRepository) CountFailedSince(ctx context.Context, since time.Time) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM webhook_events WHERE status = $1 AND processed_at >= $2`, models.WebhookFailed, since,
	).Scan(&n)
	return n, err
}
