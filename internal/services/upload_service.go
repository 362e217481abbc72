package services

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"leadgenBack/internal/jobs"
	"leadgenBack/internal/models"
	"leadgenBack/internal/storage"
)

const MaxUploadBytes = 10 << 20

var uploadContentTypes = map[string]string{
	jobs.FormatCSV:  "text/csv",
	jobs.FormatXLSX: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

type UploadStore interface {
	Create(ctx context.Context, u models.BulkUpload) (models.BulkUpload, error)
	Get(ctx context.Context, workspaceID, id string) (models.BulkUpload, error)
	List(ctx context.Context, workspaceID string, limit, offset int) ([]models.BulkUpload, error)
	Fail(ctx context.Context, id, reason string, at time.Time) error
}

type UploadService struct {
	Uploads UploadStore
	Files   storage.ObjectStore
	Jobs    Enqueuer
	Logger  Logger
}

// Create stores the raw file, records a pending upload and queues it for processing.
func (s *UploadService) Create(ctx context.Context, p models.Principal, fileName string, data []byte) (models.BulkUpload, error) {
	format := strings.TrimPrefix(strings.ToLower(path.Ext(fileName)), ".")
	contentType, ok := uploadContentTypes[format]
	if !ok {
		return models.BulkUpload{}, fmt.Errorf("%w: only .csv and .xlsx files are accepted", models.ErrInvalidUpload)
	}
	if len(data) == 0 {
		return models.BulkUpload{}, fmt.Errorf("%w: file is empty", models.ErrInvalidUpload)
	}
	if len(data) > MaxUploadBytes {
		return models.BulkUpload{}, fmt.Errorf("%w: file exceeds %d bytes", models.ErrInvalidUpload, MaxUploadBytes)
	}

	id := uuid.NewString()
	key := fmt.Sprintf("uploads/%s/%s.%s", p.WorkspaceID, id, format)
	if err := s.Files.Put(ctx, key, data, contentType); err != nil {
		return models.BulkUpload{}, fmt.Errorf("store upload: %w", err)
	}

	upload, err := s.Uploads.Create(ctx, models.BulkUpload{
		ID:          id,
		WorkspaceID: p.WorkspaceID,
		FileName:    path.Base(fileName),
		ObjectKey:   key,
		Format:      format,
		CreatedBy:   p.UserID,
	})
	if err != nil {
		return models.BulkUpload{}, err
	}

	if _, err := s.Jobs.Enqueue(ctx, jobs.TypeBulkUpload, jobs.BulkUploadPayload{UploadID: upload.ID}); err != nil {
		if ferr := s.Uploads.Fail(ctx, upload.ID, "could not queue upload", time.Now().UTC()); ferr != nil && s.Logger != nil {
			s.Logger.Errorf("uploads: mark %s failed: %v", upload.ID, ferr)
		}
		return models.BulkUpload{}, fmt.Errorf("enqueue upload %s: %w", upload.ID, err)
	}
	return upload, nil
}

func (s *UploadService) Get(ctx context.Context, workspaceID, id string) (models.BulkUpload, error) {
	return s.Uploads.Get(ctx, workspaceID, id)
}

func (s *UploadService) List(ctx context.Context, workspaceID string, limit, offset int) ([]models.BulkUpload, error) {
	return s.Uploads.List(ctx, workspaceID, limit, offset)
}
