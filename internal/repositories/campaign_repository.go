package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"leadgenBack/internal/models"
)

const campaignColumns = `id, workspace_id, name, channel, status, budget_cents, starts_at, ends_at, created_at, updated_at`

type CampaignRepository struct {
	DB *sql.DB
}

func (r *CampaignRepository) Create(ctx context.Context, c models.Campaign) (models.Campaign, error) {
	c.ID = uuid.NewString()
	err := r.DB.QueryRowContext(ctx, `
		INSERT INTO campaigns (id, workspace_id, name, channel, status, budget_cents, starts_at, ends_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at`,
		c.ID, c.WorkspaceID, c.Name, c.Channel, c.Status, c.BudgetCents, nullableTime(c.StartsAt), nullableTime(c.EndsAt),
	).Scan(&c.CreatedAt)
	if err != nil {
		return models.Campaign{}, err
	}
	return c, nil
}

func (r *CampaignRepository) Get(ctx context.Context, workspaceID, id string) (models.Campaign, error) {
	return scanCampaign(r.DB.QueryRowContext(ctx,
		`SELECT `+campaignColumns+` FROM campaigns WHERE workspace_id = $1 AND id = $2`, workspaceID, id))
}

func (r *CampaignRepository) List(ctx context.Context, workspaceID string, limit, offset int) ([]models.Campaign, error) {
	limit, offset = clampPage(limit, offset)
	rows, err := r.DB.QueryContext(ctx,
		`SELECT `+campaignColumns+` FROM campaigns WHERE workspace_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		workspaceID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Campaign{}
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *CampaignRepository) Update(ctx context.Context, c models.Campaign) (models.Campaign, error) {
	err := r.DB.QueryRowContext(ctx, `
		UPDATE campaigns SET name = $3, channel = $4, status = $5, budget_cents = $6, starts_at = $7, ends_at = $8,
			updated_at = NOW()
		WHERE workspace_id = $1 AND id = $2
		RETURNING created_at, updated_at`,
		c.WorkspaceID, c.ID, c.Name, c.Channel, c.Status, c.BudgetCents, nullableTime(c.StartsAt), nullableTime(c.EndsAt),
	).Scan(&c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Campaign{}, models.ErrNotFound
	}
	return c, err
}

func (r *CampaignRepository) Delete(ctx context.Context, workspaceID, id string) error {
	return expectAffected(r.DB.ExecContext(ctx, `DELETE FROM campaigns WHERE workspace_id = $1 AND id = $2`, workspaceID, id))
}

func scanCampaign(row scanner) (models.Campaign, error) {
	var (
		c            models.Campaign
		starts, ends sql.NullTime
		updated      sql.NullTime
	)
	err := row.Scan(&c.ID, &c.WorkspaceID, &c.Name, &c.Channel, &c.Status, &c.BudgetCents, &starts, &ends, &c.CreatedAt, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Campaign{}, models.ErrNotFound
	}
	if err != nil {
		return models.Campaign{}, err
	}
	c.StartsAt = nullTimeToPtr(starts)
	c.EndsAt = nullTimeToPtr(ends)
	c.UpdatedAt = nullTimeToPtr(updated)
	return c, nil
}
