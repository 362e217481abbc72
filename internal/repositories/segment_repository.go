package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"leadgenBack/internal/models"
)

const segmentColumns = `id, workspace_id, name, titles, industries, locations, company_sizes, active, pull_cursor,
	total_imported, last_pulled_at, created_at, updated_at`

type SegmentRepository struct {
	DB *sql.DB
}

func (r *SegmentRepository) Create(ctx context.Context, s models.Segment) (models.Segment, error) {
	s.ID = uuid.NewString()
	err := r.DB.QueryRowContext(ctx, `
		INSERT INTO segments (id, workspace_id, name, titles, industries, locations, company_sizes, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at`,
		s.ID, s.WorkspaceID, s.Name, pq.Array(nonNil(s.Titles)), pq.Array(nonNil(s.Industries)),
		pq.Array(nonNil(s.Locations)), pq.Array(nonNil(s.CompanySizes)), s.Active,
	).Scan(&s.CreatedAt)
	if err != nil {
		return models.Segment{}, err
	}
	return s, nil
}

func (r *SegmentRepository) Get(ctx context.Context, workspaceID, id string) (models.Segment, error) {
	return scanSegment(r.DB.QueryRowContext(ctx,
		`SELECT `+segmentColumns+` FROM segments WHERE workspace_id = $1 AND id = $2`, workspaceID, id))
}

func (r *SegmentRepository) GetByID(ctx context.Context, id string) (models.Segment, error) {
	return scanSegment(r.DB.QueryRowContext(ctx, `SELECT `+segmentColumns+` FROM segments WHERE id = $1`, id))
}

func (r *SegmentRepository) List(ctx context.Context, workspaceID string) ([]models.Segment, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT `+segmentColumns+` FROM segments WHERE workspace_id = $1 ORDER BY created_at DESC`, workspaceID)
	if err != nil {
		return nil, err
	}
	return collectSegments(rows)
}

// ListActive returns active segments across all workspaces for the scheduler.
func (r *SegmentRepository) ListActive(ctx context.Context) ([]models.Segment, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+segmentColumns+` FROM segments WHERE active ORDER BY id`)
	if err != nil {
		return nil, err
	}
	return collectSegments(rows)
}

func (r *SegmentRepository) Update(ctx context.Context, s models.Segment) (models.Segment, error) {
	err := r.DB.QueryRowContext(ctx, `
		UPDATE segments SET name = $3, titles = $4, industries = $5, locations = $6, company_sizes = $7, active = $8,
			pull_cursor = NULL, updated_at = NOW()
		WHERE workspace_id = $1 AND id = $2
		RETURNING created_at, updated_at, total_imported`,
		s.WorkspaceID, s.ID, s.Name, pq.Array(nonNil(s.Titles)), pq.Array(nonNil(s.Industries)),
		pq.Array(nonNil(s.Locations)), pq.Array(nonNil(s.CompanySizes)), s.Active,
	).Scan(&s.CreatedAt, &s.UpdatedAt, &s.TotalImported)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Segment{}, models.ErrNotFound
	}
	s.Cursor = nil
	return s, err
}

func (r *SegmentRepository) Delete(ctx context.Context, workspaceID, id string) error {
	return expectAffected(r.DB.ExecContext(ctx, `DELETE FROM segments WHERE workspace_id = $1 AND id = $2`, workspaceID, id))
}

// SavePull stores the cursor reached by a pull and adds imported to the running total.
func (r *SegmentRepository) SavePull(ctx context.Context, id string, cursor *string, imported int, at time.Time) error {
	return expectAffected(r.DB.ExecContext(ctx, `
		UPDATE segments SET pull_cursor = $2, total_imported = total_imported + $3, last_pulled_at = $4
		WHERE id = $1`, id, nullableString(cursor), imported, at))
}

func collectSegments(rows *sql.Rows) ([]models.Segment, error) {
	defer rows.Close()
	out := []models.Segment{}
	for rows.Next() {
		s, err := scanSegment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func scanSegment(row scanner) (models.Segment, error) {
	var (
		s                               models.Segment
		titles, industries, locs, sizes pq.StringArray
		cursor                          sql.NullString
		pulled, updated                 sql.NullTime
	)
	err := row.Scan(&s.ID, &s.WorkspaceID, &s.Name, &titles, &industries, &locs, &sizes, &s.Active, &cursor,
		&s.TotalImported, &pulled, &s.CreatedAt, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Segment{}, models.ErrNotFound
	}
	if err != nil {
		return models.Segment{}, err
	}
	s.Titles = nonNil(titles)
	s.Industries = nonNil(industries)
	s.Locations = nonNil(locs)
	s.CompanySizes = nonNil(sizes)
	s.Cursor = nullToPtr(cursor)
	s.LastPulledAt = nullTimeToPtr(pulled)
	s.UpdatedAt = nullTimeToPtr(updated)
	return s, nil
}

func nonNil(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}
