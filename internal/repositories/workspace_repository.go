package repositories

import (
	"context"
	"database/sql"
	"errors"

	"leadgenBack/internal/models"
)

type WorkspaceRepository struct {
	DB *sql.DB
}

// Ensure creates the workspace row on first sight; workspaces are owned by the auth
// backend and only mirrored here.
func (r *WorkspaceRepository) Ensure(ctx context.Context, id, name string) error {
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO workspaces (id, name) VALUES ($1, $2)
		ON CONFLICT (id) DO NOTHING`, id, name)
	return err
}

func (r *WorkspaceRepository) Get(ctx context.Context, id string) (models.Workspace, error) {
	var (
		w                models.Workspace
		keyHash, partner sql.NullString
		customer         sql.NullString
		updated          sql.NullTime
	)
	err := r.DB.QueryRowContext(ctx, `
		SELECT id, name, plan, api_key_hash, referred_by_partner_id, stripe_customer_id, created_at, updated_at
		FROM workspaces WHERE id = $1`, id,
	).Scan(&w.ID, &w.Name, &w.Plan, &keyHash, &partner, &customer, &w.CreatedAt, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Workspace{}, models.ErrNotFound
	}
	if err != nil {
		return models.Workspace{}, err
	}
	w.APIKeyHash = keyHash.String
	w.ReferredByPartnerID = nullToPtr(partner)
	w.StripeCustomerID = nullToPtr(customer)
	w.UpdatedAt = nullTimeToPtr(updated)
	return w, nil
}

func (r *WorkspaceRepository) SetAPIKeyHash(ctx context.Context, id, hash string) error {
	return expectAffected(r.DB.ExecContext(ctx,
		`UPDATE workspaces SET api_key_hash = $2, updated_at = NOW() WHERE id = $1`, id, hash))
}

func (r *WorkspaceRepository) SetReferrer(ctx context.Context, id, partnerID string) error {
	return expectAffected(r.DB.ExecContext(ctx,
		`UPDATE workspaces SET referred_by_partner_id = $2, updated_at = NOW() WHERE id = $1`, id, partnerID))
}

func (r *WorkspaceRepository) SetStripeCustomer(ctx context.Context, id, customerID string) error {
	return expectAffected(r.DB.ExecContext(ctx,
		`UPDATE workspaces SET stripe_customer_id = $2, updated_at = NOW() WHERE id = $1`, id, customerID))
}

func (r *WorkspaceRepository) WorkspaceIDByCustomer(ctx context.Context, customerID string) (string, error) {
	var id string
	err := r.DB.QueryRowContext(ctx, `SELECT id FROM workspaces WHERE stripe_customer_id = $1`, customerID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", models.ErrNotFound
	}
	return id, err
}
