package services

import (
	"context"
	"fmt"
	"strings"

	"leadgenBack/internal/models"
	"leadgenBack/internal/repositories"
)

type AgentService struct {
	AgentRepo *repositories.AgentRepository
}

func (s *AgentService) Create(ctx context.Context, workspaceID string, a models.Agent) (models.Agent, error) {
	a.WorkspaceID = workspaceID
	a.Email = strings.ToLower(strings.TrimSpace(a.Email))
	return s.AgentRepo.Create(ctx, a)
}

func (s *AgentService) Get(ctx context.Context, workspaceID, id string) (models.Agent, error) {
	return s.AgentRepo.Get(ctx, workspaceID, id)
}

func (s *AgentService) List(ctx context.Context, workspaceID string, limit, offset int) ([]models.Agent, error) {
	return s.AgentRepo.List(ctx, workspaceID, limit, offset)
}

func (s *AgentService) Update(ctx context.Context, workspaceID string, a models.Agent) (models.Agent, error) {
	a.WorkspaceID = workspaceID
	a.Email = strings.ToLower(strings.TrimSpace(a.Email))
	return s.AgentRepo.Update(ctx, a)
}

func (s *AgentService) Delete(ctx context.Context, workspaceID, id string) error {
	return s.AgentRepo.Delete(ctx, workspaceID, id)
}

type CampaignService struct {
	CampaignRepo *repositories.CampaignRepository
}

func (s *CampaignService) Create(ctx context.Context, workspaceID string, c models.Campaign) (models.Campaign, error) {
	c.WorkspaceID = workspaceID
	if c.Status == "" {
		c.Status = models.CampaignDraft
	}
	if c.Channel == "" {
		c.Channel = "email"
	}
	if err := checkCampaignDates(c); err != nil {
		return models.Campaign{}, err
	}
	return s.CampaignRepo.Create(ctx, c)
}

func (s *CampaignService) Get(ctx context.Context, workspaceID, id string) (models.Campaign, error) {
	return s.CampaignRepo.Get(ctx, workspaceID, id)
}

func (s *CampaignService) List(ctx context.Context, workspaceID string, limit, offset int) ([]models.Campaign, error) {
	return s.CampaignRepo.List(ctx, workspaceID, limit, offset)
}

func (s *CampaignService) Update(ctx context.Context, workspaceID string, c models.Campaign) (models.Campaign, error) {
	c.WorkspaceID = workspaceID
	if c.Status == "" {
		c.Status = models.CampaignDraft
	}
	if err := checkCampaignDates(c); err != nil {
		return models.Campaign{}, err
	}
	return s.CampaignRepo.Update(ctx, c)
}

func (s *CampaignService) Delete(ctx context.Context, workspaceID, id string) error {
	return s.CampaignRepo.Delete(ctx, workspaceID, id)
}

func checkCampaignDates(c models.Campaign) error {
	if c.StartsAt != nil && c.EndsAt != nil && c.EndsAt.Before(*c.StartsAt) {
		return fmt.Errorf("%w: campaign ends before it starts", models.ErrInvalidInput)
	}
	return nil
}

type ContactService struct {
	ContactRepo *repositories.ContactRepository
}

func (s *ContactService) Create(ctx context.Context, workspaceID string, c models.Contact) (models.Contact, error) {
	c.WorkspaceID = workspaceID
	c.Email = strings.ToLower(strings.TrimSpace(c.Email))
	return s.ContactRepo.Create(ctx, c)
}

func (s *ContactService) Get(ctx context.Context, workspaceID, id string) (models.Contact, error) {
	return s.ContactRepo.Get(ctx, workspaceID, id)
}

func (s *ContactService) List(ctx context.Context, workspaceID string, limit, offset int) ([]models.Contact, error) {
	return s.ContactRepo.List(ctx, workspaceID, limit, offset)
}

func (s *ContactService) Update(ctx context.Context, workspaceID string, c models.Contact) (models.Contact, error) {
	c.WorkspaceID = workspaceID
	c.Email = strings.ToLower(strings.TrimSpace(c.Email))
	return s.ContactRepo.Update(ctx, c)
}

func (s *ContactService) Delete(ctx context.Context, workspaceID, id string) error {
	return s.ContactRepo.Delete(ctx, workspaceID, id)
}

type CompanyService struct {
	CompanyRepo *repositories.CompanyRepository
}

func (s *CompanyService) Create(ctx context.Context, workspaceID string, c models.Company) (models.Company, error) {
	c.WorkspaceID = workspaceID
	c.Domain = strings.ToLower(strings.TrimSpace(c.Domain))
	return s.CompanyRepo.Create(ctx, c)
}

func (s *CompanyService) Get(ctx context.Context, workspaceID, id string) (models.Company, error) {
	return s.CompanyRepo.Get(ctx, workspaceID, id)
}

func (s *CompanyService) List(ctx context.Context, workspaceID string, limit, offset int) ([]models.Company, error) {
	return s.CompanyRepo.List(ctx, workspaceID, limit, offset)
}

func (s *CompanyService) Update(ctx context.Context, workspaceID string, c models.Company) (models.Company, error) {
	c.WorkspaceID = workspaceID
	c.Domain = strings.ToLower(strings.TrimSpace(c.Domain))
	return s.CompanyRepo.Update(ctx, c)
}

func (s *CompanyService) Delete(ctx context.Context, workspaceID, id string) error {
	return s.CompanyRepo.Delete(ctx, workspaceID, id)
}
