package services

import (
	"context"
	"time"

	"leadgenBack/internal/models"
)

type Logger interface {
	Infof(string, ...interface{})
	Errorf(string, ...interface{})
}

// Publisher pushes realtime events to the connections of one workspace.
type Publisher interface {
	Publish(workspaceID, eventType string, data interface{})
}

// Enqueuer schedules background jobs.
type Enqueuer interface {
	Enqueue(ctx context.Context, jobType string, payload interface{}) (string, error)
}

type LeadStore interface {
	Create(ctx context.Context, lead models.Lead) (models.Lead, error)
	Get(ctx context.Context, workspaceID, id string) (models.Lead, error)
	List(ctx context.Context, workspaceID string, f models.LeadFilter) ([]models.Lead, error)
	Update(ctx context.Context, lead models.Lead) (models.Lead, error)
	UpdateStatus(ctx context.Context, workspaceID, id, status string) error
	Assign(ctx context.Context, workspaceID, id string, agentID *string) error
	UpdateScores(ctx context.Context, workspaceID, id string, intent, freshness int) error
	Delete(ctx context.Context, workspaceID, id string) error
	RecordDedup(ctx context.Context, workspaceID, email, source string) error
	DedupStats(ctx context.Context, workspaceID string, since time.Time) ([]models.DedupStat, error)
}

type AgentStore interface {
	Get(ctx context.Context, workspaceID, id string) (models.Agent, error)
	PickForRouting(ctx context.Context, workspaceID string) (models.Agent, error)
}

type CreditStore interface {
	Balance(ctx context.Context, workspaceID string) (models.CreditBalance, error)
	Ledger(ctx context.Context, workspaceID string, limit, offset int) ([]models.CreditEntry, error)
	Grant(ctx context.Context, workspaceID, kind string, amount int64, reference *string, note string) (models.CreditEntry, error)
	Debit(ctx context.Context, workspaceID, kind string, amount int64, reference *string, note string) (models.CreditEntry, error)
	GetAutoRecharge(ctx context.Context, workspaceID string) (models.AutoRechargeSettings, error)
	UpsertAutoRecharge(ctx context.Context, s models.AutoRechargeSettings) error
	DisableAutoRecharge(ctx context.Context, workspaceID, reason string) error
	DueAutoRecharges(ctx context.Context, notBefore time.Time) ([]string, error)
}

type WorkspaceStore interface {
	Ensure(ctx context.Context, id, name string) error
	Get(ctx context.Context, id string) (models.Workspace, error)
	SetAPIKeyHash(ctx context.Context, id, hash string) error
	SetReferrer(ctx context.Context, id, partnerID string) error
	SetStripeCustomer(ctx context.Context, id, customerID string) error
}
