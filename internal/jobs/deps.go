package jobs

import (
	"context"
	"time"

	"leadgenBack/internal/enrichment"
	"leadgenBack/internal/models"
)

type UploadStore interface {
	GetByID(ctx context.Context, id string) (models.BulkUpload, error)
	MarkProcessing(ctx context.Context, id string, totalRows int) error
	SetProgress(ctx context.Context, id string, imported, duplicates, invalid int) error
	Complete(ctx context.Context, id string, at time.Time) error
	Fail(ctx context.Context, id, reason string, at time.Time) error
}

type LeadStore interface {
	Create(ctx context.Context, lead models.Lead) (models.Lead, error)
	InsertBatch(ctx context.Context, leads []models.Lead) (int, error)
	ExistingEmails(ctx context.Context, workspaceID string, emails []string) (map[string]bool, error)
	RecordDedupCount(ctx context.Context, workspaceID, source string, emails []string) error
}

type CreditStore interface {
	Balance(ctx context.Context, workspaceID string) (models.CreditBalance, error)
	Debit(ctx context.Context, workspaceID, kind string, amount int64, reference *string, note string) (models.CreditEntry, error)
	Grant(ctx context.Context, workspaceID, kind string, amount int64, reference *string, note string) (models.CreditEntry, error)
	GetAutoRecharge(ctx context.Context, workspaceID string) (models.AutoRechargeSettings, error)
	MarkAutoRechargeAttempt(ctx context.Context, workspaceID string, at time.Time) error
	DisableAutoRecharge(ctx context.Context, workspaceID, reason string) error
}

type SegmentStore interface {
	GetByID(ctx context.Context, id string) (models.Segment, error)
	SavePull(ctx context.Context, id string, cursor *string, imported int, at time.Time) error
}

type Searcher interface {
	Search(ctx context.Context, q enrichment.SearchQuery) (enrichment.Page, error)
}

type Charger interface {
	ChargeAutoRecharge(ctx context.Context, s models.AutoRechargeSettings, idempotencyKey string) (string, error)
}

type Publisher interface {
	Publish(workspaceID, eventType string, data interface{})
}
