package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"leadgenBack/internal/models"
	"leadgenBack/internal/realtime"
	"leadgenBack/internal/scoring"
	"leadgenBack/internal/storage"
)

const defaultBatchSize = 100

var validate = validator.New()

type BulkUploadPayload struct {
	UploadID string `json:"upload_id"`
}

type batchResult struct {
	Imported   int `json:"imported"`
	Duplicates int `json:"duplicates"`
}

// Progress is published to the workspace while an upload is processed.
type Progress struct {
	UploadID   string `json:"upload_id"`
	Status     string `json:"status"`
	TotalRows  int    `json:"total_rows"`
	Imported   int    `json:"imported"`
	Duplicates int    `json:"duplicates"`
	Invalid    int    `json:"invalid"`
}

type BulkUploadHandler struct {
	Uploads   UploadStore
	Leads     LeadStore
	Files     storage.ObjectStore
	Publisher Publisher
	Logger    Logger
	BatchSize int

	now func() time.Time
}

// Handle imports the rows of one uploaded file. Each batch of inserts is a checkpointed
// step and progress counters are absolute, so a retry continues where it stopped.
func (h *BulkUploadHandler) Handle(ctx context.Context, job Job, steps *Steps) error {
	var p BulkUploadPayload
	if err := job.Decode(&p); err != nil {
		return err
	}
	upload, err := h.Uploads.GetByID(ctx, p.UploadID)
	if errors.Is(err, models.ErrNotFound) {
		return Permanent(fmt.Errorf("upload %s not found", p.UploadID))
	}
	if err != nil {
		return err
	}
	if upload.Status == models.UploadCompleted || upload.Status == models.UploadFailed {
		return nil
	}

	data, err := h.Files.Get(ctx, upload.ObjectKey)
	if errors.Is(err, storage.ErrObjectNotFound) {
		return Permanent(fmt.Errorf("upload %s: file %s missing", upload.ID, upload.ObjectKey))
	}
	if err != nil {
		return err
	}
	rows, err := ParseLeadFile(upload.Format, data)
	if err != nil {
		return Permanent(err)
	}

	now := h.clock()
	var (
		leads     []models.Lead
		fileDups  []string
		invalid   int
		seenEmail = make(map[string]bool, len(rows))
	)
	for _, row := range rows {
		lead := leadFromRow(upload.WorkspaceID, row)
		if validate.Var(lead.Email, "required,email") != nil {
			invalid++
			continue
		}
		if seenEmail[lead.Email] {
			fileDups = append(fileDups, lead.Email)
			continue
		}
		seenEmail[lead.Email] = true
		scoring.Apply(&lead, now)
		leads = append(leads, lead)
	}

	if _, err := steps.Step(ctx, "start", func(ctx context.Context) ([]byte, error) {
		if err := h.Uploads.MarkProcessing(ctx, upload.ID, len(rows)); err != nil {
			return nil, err
		}
		return nil, h.Leads.RecordDedupCount(ctx, upload.WorkspaceID, models.LeadSourceBulkUpload, fileDups)
	}); err != nil {
		return err
	}

	progress := Progress{
		UploadID:   upload.ID,
		Status:     models.UploadProcessing,
		TotalRows:  len(rows),
		Duplicates: len(fileDups),
		Invalid:    invalid,
	}
	size := h.BatchSize
	if size <= 0 {
		size = defaultBatchSize
	}
	for start := 0; start < len(leads); start += size {
		end := start + size
		if end > len(leads) {
			end = len(leads)
		}
		batch := leads[start:end]
		out, err := steps.Step(ctx, fmt.Sprintf("batch-%d", start/size), func(ctx context.Context) ([]byte, error) {
			res, err := h.insertBatch(ctx, upload.WorkspaceID, batch)
			if err != nil {
				return nil, err
			}
			return json.Marshal(res)
		})
		if err != nil {
			return err
		}
		var res batchResult
		if err := json.Unmarshal(out, &res); err != nil {
			return fmt.Errorf("decode batch checkpoint: %w", err)
		}
		progress.Imported += res.Imported
		progress.Duplicates += res.Duplicates

		if err := h.Uploads.SetProgress(ctx, upload.ID, progress.Imported, progress.Duplicates, progress.Invalid); err != nil {
			return err
		}
		h.publish(upload.WorkspaceID, progress)
	}

	if err := h.Uploads.SetProgress(ctx, upload.ID, progress.Imported, progress.Duplicates, progress.Invalid); err != nil {
		return err
	}
	if err := h.Uploads.Complete(ctx, upload.ID, h.clock().UTC()); err != nil {
		return err
	}
	progress.Status = models.UploadCompleted
	h.publish(upload.WorkspaceID, progress)
	if h.Logger != nil {
		h.Logger.Infof("jobs: upload %s done: rows=%d imported=%d duplicates=%d invalid=%d",
			upload.ID, progress.TotalRows, progress.Imported, progress.Duplicates, progress.Invalid)
	}
	return nil
}

func (h *BulkUploadHandler) insertBatch(ctx context.Context, workspaceID string, batch []models.Lead) (batchResult, error) {
	emails := make([]string, len(batch))
	for i, l := range batch {
		emails[i] = l.Email
	}
	existing, err := h.Leads.ExistingEmails(ctx, workspaceID, emails)
	if err != nil {
		return batchResult{}, err
	}
	fresh := make([]models.Lead, 0, len(batch))
	var dups []string
	for _, l := range batch {
		if existing[l.Email] {
			dups = append(dups, l.Email)
			continue
		}
		fresh = append(fresh, l)
	}
	inserted, err := h.Leads.InsertBatch(ctx, fresh)
	if err != nil {
		return batchResult{}, err
	}
	if err := h.Leads.RecordDedupCount(ctx, workspaceID, models.LeadSourceBulkUpload, dups); err != nil {
		return batchResult{}, err
	}
	return batchResult{Imported: inserted, Duplicates: len(dups) + len(fresh) - inserted}, nil
}

// Failed marks the upload failed once the job is dead-lettered.
func (h *BulkUploadHandler) Failed(ctx context.Context, job Job, cause error) {
	var p BulkUploadPayload
	if job.Decode(&p) != nil || p.UploadID == "" {
		return
	}
	if err := h.Uploads.Fail(ctx, p.UploadID, cause.Error(), h.clock().UTC()); err != nil && h.Logger != nil {
		h.Logger.Errorf("jobs: mark upload %s failed: %v", p.UploadID, err)
	}
	if u, err := h.Uploads.GetByID(ctx, p.UploadID); err == nil {
		h.publish(u.WorkspaceID, Progress{UploadID: u.ID, Status: models.UploadFailed, TotalRows: u.TotalRows,
			Imported: u.Imported, Duplicates: u.Duplicates, Invalid: u.Invalid})
	}
}

func (h *BulkUploadHandler) publish(workspaceID string, p Progress) {
	if h.Publisher != nil {
		h.Publisher.Publish(workspaceID, realtime.EventBulkUploadProgress, p)
	}
}

func (h *BulkUploadHandler) clock() time.Time {
	if h.now != nil {
		return h.now()
	}
	return time.Now()
}
