package services

import (
	"context"
	"fmt"
	"strings"

	"leadgenBack/internal/models"
)

const defaultDealCurrency = "usd"

type DealStore interface {
	Create(ctx context.Context, d models.Deal) (models.Deal, error)
	Get(ctx context.Context, workspaceID, id string) (models.Deal, error)
	List(ctx context.Context, workspaceID string, limit, offset int) ([]models.Deal, error)
	ListAll(ctx context.Context, workspaceID string) ([]models.Deal, error)
	Update(ctx context.Context, d models.Deal) (models.Deal, error)
	MoveStage(ctx context.Context, workspaceID, id, stage string) error
	Delete(ctx context.Context, workspaceID, id string) error
}

type DealService struct {
	Deals DealStore
	// Leads is optional; when set, a deal may only reference leads of its workspace.
	Leads LeadStore
}

func (s *DealService) Create(ctx context.Context, workspaceID string, d models.Deal) (models.Deal, error) {
	d.WorkspaceID = workspaceID
	if err := s.normalize(ctx, &d); err != nil {
		return models.Deal{}, err
	}
	return s.Deals.Create(ctx, d)
}

func (s *DealService) Get(ctx context.Context, workspaceID, id string) (models.Deal, error) {
	return s.Deals.Get(ctx, workspaceID, id)
}

func (s *DealService) List(ctx context.Context, workspaceID string, limit, offset int) ([]models.Deal, error) {
	return s.Deals.List(ctx, workspaceID, limit, offset)
}

func (s *DealService) Update(ctx context.Context, workspaceID string, d models.Deal) (models.Deal, error) {
	d.WorkspaceID = workspaceID
	if err := s.normalize(ctx, &d); err != nil {
		return models.Deal{}, err
	}
	return s.Deals.Update(ctx, d)
}

func (s *DealService) Delete(ctx context.Context, workspaceID, id string) error {
	return s.Deals.Delete(ctx, workspaceID, id)
}

// MoveStage drops a deal into another board column.
func (s *DealService) MoveStage(ctx context.Context, workspaceID, id, stage string) error {
	if !models.ValidDealStage(stage) {
		return fmt.Errorf("%w: stage %q", models.ErrInvalidInput, stage)
	}
	return s.Deals.MoveStage(ctx, workspaceID, id, stage)
}

// Board groups every deal of the workspace into one column per stage, in pipeline order.
// Columns without deals are still returned.
func (s *DealService) Board(ctx context.Context, workspaceID string) ([]models.DealColumn, error) {
	deals, err := s.Deals.ListAll(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	columns := make([]models.DealColumn, len(models.DealStages))
	index := make(map[string]int, len(models.DealStages))
	for i, stage := range models.DealStages {
		columns[i] = models.DealColumn{Stage: stage, Deals: []models.Deal{}}
		index[stage] = i
	}
	for _, d := range deals {
		i, ok := index[d.Stage]
		if !ok {
			continue
		}
		columns[i].Deals = append(columns[i].Deals, d)
		columns[i].TotalCents += d.ValueCents
	}
	return columns, nil
}

func (s *DealService) normalize(ctx context.Context, d *models.Deal) error {
	if d.Stage == "" {
		d.Stage = models.DealStages[0]
	}
	if !models.ValidDealStage(d.Stage) {
		return fmt.Errorf("%w: stage %q", models.ErrInvalidInput, d.Stage)
	}
	d.Currency = strings.ToLower(strings.TrimSpace(d.Currency))
	if d.Currency == "" {
		d.Currency = defaultDealCurrency
	}
	if d.LeadID != nil && s.Leads != nil {
		if _, err := s.Leads.Get(ctx, d.WorkspaceID, *d.LeadID); err != nil {
			return fmt.Errorf("lead %s: %w", *d.LeadID, err)
		}
	}
	return nil
}
