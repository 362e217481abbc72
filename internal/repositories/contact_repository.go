package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"leadgenBack/internal/models"
)

const contactColumns = `id, workspace_id, company_id, first_name, last_name, email, phone, title, created_at, updated_at`

type ContactRepository struct {
	DB *sql.DB
}

func (r *ContactRepository) Create(ctx context.Context, c models.Contact) (models.Contact, error) {
	c.ID = uuid.NewString()
	err := r.DB.QueryRowContext(ctx, `
		INSERT INTO contacts (id, workspace_id, company_id, first_name, last_name, email, phone, title)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at`,
		c.ID, c.WorkspaceID, nullableString(c.CompanyID), c.FirstName, c.LastName, c.Email, c.Phone, c.Title,
	).Scan(&c.CreatedAt)
	if err != nil {
		return models.Contact{}, err
	}
	return c, nil
}

func (r *ContactRepository) Get(ctx context.Context, workspaceID, id string) (models.Contact, error) {
	return scanContact(r.DB.QueryRowContext(ctx,
		`SELECT `+contactColumns+` FROM contacts WHERE workspace_id = $1 AND id = $2`, workspaceID, id))
}

func (r *ContactRepository) List(ctx context.Context, workspaceID string, limit, offset int) ([]models.Contact, error) {
	limit, offset = clampPage(limit, offset)
	rows, err := r.DB.QueryContext(ctx,
		`SELECT `+contactColumns+` FROM contacts WHERE workspace_id = $1 ORDER BY last_name, first_name, id LIMIT $2 OFFSET $3`,
		workspaceID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Contact{}
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *ContactRepository) Update(ctx context.Context, c models.Contact) (models.Contact, error) {
	err := r.DB.QueryRowContext(ctx, `
		UPDATE contacts SET company_id = $3, first_name = $4, last_name = $5, email = $6, phone = $7, title = $8,
			updated_at = NOW()
		WHERE workspace_id = $1 AND id = $2
		RETURNING created_at, updated_at`,
		c.WorkspaceID, c.ID, nullableString(c.CompanyID), c.FirstName, c.LastName, c.Email, c.Phone, c.Title,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Contact{}, models.ErrNotFound
	}
	return c, err
}

func (r *ContactRepository) Delete(ctx context.Context, workspaceID, id string) error {
	return expectAffected(r.DB.ExecContext(ctx, `DELETE FROM contacts WHERE workspace_id = $1 AND id = $2`, workspaceID, id))
}

func scanContact(row scanner) (models.Contact, error) {
	var (
		c         models.Contact
		companyID sql.NullString
		updated   sql.NullTime
	)
	err := row.Scan(&c.ID, &c.WorkspaceID, &companyID, &c.FirstName, &c.LastName, &c.Email, &c.Phone, &c.Title, &c.CreatedAt, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Contact{}, models.ErrNotFound
	}
	if err != nil {
		return models.Contact{}, err
	}
	c.CompanyID = nullToPtr(companyID)
	c.UpdatedAt = nullTimeToPtr(updated)
	return c, nil
}
