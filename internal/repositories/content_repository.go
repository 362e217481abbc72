package repositories

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"leadgenBack/internal/models"
)

type ContentRepository struct {
	DB *sql.DB
}

func (r *ContentRepository) Create(ctx context.Context, d models.ContentDraft) (models.ContentDraft, error) {
	d.ID = uuid.NewString()
	err := r.DB.QueryRowContext(ctx, `
		INSERT INTO content_drafts (id, workspace_id, kind, brief, lead_id, campaign_id, body, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at`,
		d.ID, d.WorkspaceID, d.Kind, d.Brief, nullableString(d.LeadID), nullableString(d.CampaignID), d.Body, d.CreatedBy,
	).Scan(&d.CreatedAt)
	if err != nil {
		return models.ContentDraft{}, err
	}
	return d, nil
}

func (r *ContentRepository) List(ctx context.Context, workspaceID, kind string, limit, offset int) ([]models.ContentDraft, error) {
	limit, offset = clampPage(limit, offset)
	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, workspace_id, kind, brief, lead_id, campaign_id, body, created_by, created_at
		FROM content_drafts
		WHERE workspace_id = $1 AND ($2 = '' OR kind = $2)
		ORDER BY created_at DESC LIMIT $3 OFFSET $4`, workspaceID, kind, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.ContentDraft{}
	for rows.Next() {
		var (
			d                models.ContentDraft
			leadID, campaign sql.NullString
		)
		if err := rows.Scan(&d.ID, &d.WorkspaceID, &d.Kind, &d.Brief, &leadID, &campaign, &d.Body, &d.CreatedBy, &d.CreatedAt); err != nil {
			return nil, err
		}
		d.LeadID = nullToPtr(leadID)
		d.CampaignID = nullToPtr(campaign)
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *ContentRepository) Delete(ctx context.Context, workspaceID, id string) error {
	return expectAffected(r.DB.ExecContext(ctx, `DELETE FROM content_drafts WHERE workspace_id = $1 AND id = $2`, workspaceID, id))
}
