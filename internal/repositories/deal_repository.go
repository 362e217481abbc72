package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"leadgenBack/internal/models"
)

const dealColumns = `id, workspace_id, title, value_cents, currency, stage, lead_id, contact_id, company_id, owner_id,
	close_date, created_at, updated_at`

type DealRepository struct {
	DB *sql.DB
}

func (r *DealRepository) Create(ctx context.Context, d models.Deal) (models.Deal, error) {
	d.ID = uuid.NewString()
	err := r.DB.QueryRowContext(ctx, `
		INSERT INTO deals (id, workspace_id, title, value_cents, currency, stage, lead_id, contact_id, company_id, owner_id, close_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at`,
		d.ID, d.WorkspaceID, d.Title, d.ValueCents, d.Currency, d.Stage, nullableString(d.LeadID),
		nullableString(d.ContactID), nullableString(d.CompanyID), nullableString(d.OwnerID), nullableTime(d.CloseDate),
	).Scan(&d.CreatedAt)
	if err != nil {
		return models.Deal{}, err
	}
	return d, nil
}

func (r *DealRepository) Get(ctx context.Context, workspaceID, id string) (models.Deal, error) {
	return scanDeal(r.DB.QueryRowContext(ctx,
		`SELECT `+dealColumns+` FROM deals WHERE workspace_id = $1 AND id = $2`, workspaceID, id))
}

func (r *DealRepository) List(ctx context.Context, workspaceID string, limit, offset int) ([]models.Deal, error) {
	limit, offset = clampPage(limit, offset)
	rows, err := r.DB.QueryContext(ctx,
		`SELECT `+dealColumns+` FROM deals WHERE workspace_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		workspaceID, limit, offset)
	if err != nil {
		return nil, err
	}
	return collectDeals(rows)
}

// ListAll returns every deal in the workspace for the board view.
func (r *DealRepository) ListAll(ctx context.Context, workspaceID string) ([]models.Deal, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT `+dealColumns+` FROM deals WHERE workspace_id = $1 ORDER BY updated_at DESC NULLS LAST, created_at DESC`,
		workspaceID)
	if err != nil {
		return nil, err
	}
	return collectDeals(rows)
}

func (r *DealRepository) Update(ctx context.Context, d models.Deal) (models.Deal, error) {
	err := r.DB.QueryRowContext(ctx, `
		UPDATE deals SET title = $3, value_cents = $4, currency = $5, stage = $6, lead_id = $7, contact_id = $8,
			company_id = $9, owner_id = $10, close_date = $11, updated_at = NOW()
		WHERE workspace_id = $1 AND id = $2
		RETURNING created_at, updated_at`,
		d.WorkspaceID, d.ID, d.Title, d.ValueCents, d.Currency, d.Stage, nullableString(d.LeadID),
		nullableString(d.ContactID), nullableString(d.CompanyID), nullableString(d.OwnerID), nullableTime(d.CloseDate),
	).Scan(&d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Deal{}, models.ErrNotFound
	}
	return d, err
}

func (r *DealRepository) MoveStage(ctx context.Context, workspaceID, id, stage string) error {
	return expectAffected(r.DB.ExecContext(ctx,
		`UPDATE deals SET stage = $3, updated_at = NOW() WHERE workspace_id = $1 AND id = $2`, workspaceID, id, stage))
}

func (r *DealRepository) Delete(ctx context.Context, workspaceID, id string) error {
	return expectAffected(r.DB.ExecContext(ctx, `DELETE FROM deals WHERE workspace_id = $1 AND id = $2`, workspaceID, id))
}

func collectDeals(rows *sql.Rows) ([]models.Deal, error) {
	defer rows.Close()
	out := []models.Deal{}
	for rows.Next() {
		d, err := scanDeal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func scanDeal(row scanner) (models.Deal, error) {
	var (
		d                                   models.Deal
		leadID, contactID, companyID, owner sql.NullString
		closeDate, updated                  sql.NullTime
	)
	err := row.Scan(&d.ID, &d.WorkspaceID, &d.Title, &d.ValueCents, &d.Currency, &d.Stage, &leadID, &contactID,
		&companyID, &owner, &closeDate, &d.CreatedAt, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Deal{}, models.ErrNotFound
	}
	if err != nil {
		return models.Deal{}, err
	}
	d.LeadID = nullToPtr(leadID)
	d.ContactID = nullToPtr(contactID)
	d.CompanyID = nullToPtr(companyID)
	d.OwnerID = nullToPtr(owner)
	d.CloseDate = nullTimeToPtr(closeDate)
	d.UpdatedAt = nullTimeToPtr(updated)
	return d, nil
}
