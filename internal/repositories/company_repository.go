package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"leadgenBack/internal/models"
)

const companyColumns = `id, workspace_id, name, domain, industry, size_band, created_at, updated_at`

type CompanyRepository struct {
	DB *sql.DB
}

func (r *CompanyRepository) Create(ctx context.Context, c models.Company) (models.Company, error) {
	c.ID = uuid.NewString()
	err := r.DB.QueryRowContext(ctx, `
		INSERT INTO companies (id, workspace_id, name, domain, industry, size_band)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`,
		c.ID, c.WorkspaceID, c.Name, c.Domain, c.Industry, c.SizeBand,
	).Scan(&c.CreatedAt)
	if err != nil {
		return models.Company{}, err
	}
	return c, nil
}

func (r *CompanyRepository) Get(ctx context.Context, workspaceID, id string) (models.Company, error) {
	return scanCompany(r.DB.QueryRowContext(ctx,
		`SELECT `+companyColumns+` FROM companies WHERE workspace_id = $1 AND id = $2`, workspaceID, id))
}

func (r *CompanyRepository) List(ctx context.Context, workspaceID string, limit, offset int) ([]models.Company, error) {
	limit, offset = clampPage(limit, offset)
	rows, err := r.DB.QueryContext(ctx,
		`SELECT `+companyColumns+` FROM companies WHERE workspace_id = $1 ORDER BY name, id LIMIT $2 OFFSET $3`,
		workspaceID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Company{}
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *CompanyRepository) Update(ctx context.Context, c models.Company) (models.Company, error) {
	err := r.DB.QueryRowContext(ctx, `
		UPDATE companies SET name = $3, domain = $4, industry = $5, size_band = $6, updated_at = NOW()
		WHERE workspace_id = $1 AND id = $2
		RETURNING created_at, updated_at`,
		c.WorkspaceID, c.ID, c.Name, c.Domain, c.Industry, c.SizeBand,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Company{}, models.ErrNotFound
	}
	return c, err
}

func (r *CompanyRepository) Delete(ctx context.Context, workspaceID, id string) error {
	return expectAffected(r.DB.ExecContext(ctx, `DELETE FROM companies WHERE workspace_id = $1 AND id = $2`, workspaceID, id))
}

func scanCompany(row scanner) (models.Company, error) {
	var (
		c       models.Company
		updated sql.NullTime
	)
	err := row.Scan(&c.ID, &c.WorkspaceID, &c.Name, &c.Domain, &c.Industry, &c.SizeBand, &c.CreatedAt, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Company{}, models.ErrNotFound
	}
	if err != nil {
		return models.Company{}, err
	}
	c.UpdatedAt = nullTimeToPtr(updated)
	return c, nil
}
