package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"leadgenBack/internal/models"
)

const uploadColumns = `id, workspace_id, file_name, object_key, format, status, total_rows, imported, duplicates, invalid,
	error, created_by, created_at, finished_at`

type BulkUploadRepository struct {
	DB *sql.DB
}

func (r *BulkUploadRepository) Create(ctx context.Context, u models.BulkUpload) (models.BulkUpload, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.Status = models.UploadPending
	err := r.DB.QueryRowContext(ctx, `
		INSERT INTO bulk_uploads (id, workspace_id, file_name, object_key, format, status, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at`,
		u.ID, u.WorkspaceID, u.FileName, u.ObjectKey, u.Format, u.Status, u.CreatedBy,
	).Scan(&u.CreatedAt)
	if err != nil {
		return models.BulkUpload{}, err
	}
	return u, nil
}

func (r *BulkUploadRepository) Get(ctx context.Context, workspaceID, id string) (models.BulkUpload, error) {
	return scanUpload(r.DB.QueryRowContext(ctx,
		`SELECT `+uploadColumns+` FROM bulk_uploads WHERE workspace_id = $1 AND id = $2`, workspaceID, id))
}

func (r *BulkUploadRepository) List(ctx context.Context, workspaceID string, limit, offset int) ([]models.BulkUpload, error) {
	limit, offset = clampPage(limit, offset)
	rows, err := r.DB.QueryContext(ctx,
		`SELECT `+uploadColumns+` FROM bulk_uploads WHERE workspace_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		workspaceID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.BulkUpload{}
	for rows.Next() {
		u, err := scanUpload(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// MarkProcessing records the row count once the file is parsed.
func (r *BulkUploadRepository) MarkProcessing(ctx context.Context, id string, totalRows int) error {
	return expectAffected(r.DB.ExecContext(ctx,
		`UPDATE bulk_uploads SET status = $2, total_rows = $3 WHERE id = $1`, id, models.UploadProcessing, totalRows))
}

// SetProgress overwrites the counters. Values are absolute so a retried batch does not
// double count.
func (r *BulkUploadRepository) SetProgress(ctx context.Context, id string, imported, duplicates, invalid int) error {
	return expectAffected(r.DB.ExecContext(ctx,
		`UPDATE bulk_uploads SET imported = $2, duplicates = $3, invalid = $4 WHERE id = $1`,
		id, imported, duplicates, invalid))
}

func (r *BulkUploadRepository) Complete(ctx context.Context, id string, at time.Time) error {
	return expectAffected(r.DB.ExecContext(ctx,
		`UPDATE bulk_uploads SET status = $2, finished_at = $3, error = NULL WHERE id = $1`, id, models.UploadCompleted, at))
}

func (r *BulkUploadRepository) Fail(ctx context.Context, id, reason string, at time.Time) error {
	return expectAffected(r.DB.ExecContext(ctx,
		`UPDATE bulk_uploads SET status = $2, error = $3, finished_at = $4 WHERE id = $1`, id, models.UploadFailed, reason, at))
}

// GetByID loads an upload without the workspace filter; used by background jobs.
func (r *BulkUploadRepository) GetByID(ctx context.Context, id string) (models.BulkUpload, error) {
	return scanUpload(r.DB.QueryRowContext(ctx, `SELECT `+uploadColumns+` FROM bulk_uploads WHERE id = $1`, id))
}

func scanUpload(row scanner) (models.BulkUpload, error) {
	var (
		u        models.BulkUpload
		errText  sql.NullString
		finished sql.NullTime
	)
	err := row.Scan(&u.ID, &u.WorkspaceID, &u.FileName, &u.ObjectKey, &u.Format, &u.Status, &u.TotalRows, &u.Imported,
		&u.Duplicates, &u.Invalid, &errText, &u.CreatedBy, &u.CreatedAt, &finished)
	if errors.Is(err, sql.ErrNoRows) {
		return models.BulkUpload{}, models.ErrNotFound
	}
	if err != nil {
		return models.BulkUpload{}, err
	}
	u.Error = nullToPtr(errText)
	u.FinishedAt = nullTimeToPtr(finished)
	return u, nil
}
