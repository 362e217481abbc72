package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"leadgenBack/internal/models"
	"leadgenBack/internal/realtime"
	"leadgenBack/internal/scoring"
)

const (
	exportPageSize = 500
	exportMaxRows  = 50000
	exportSheet    = "Leads"
)

type LeadService struct {
	Leads     LeadStore
	Agents    AgentStore
	Publisher Publisher
	Logger    Logger

	now func() time.Time
}

// Create stores a new lead for the workspace. A lead whose email already exists is
// counted as a duplicate and rejected with models.ErrDuplicateLead. Leads without an
// owner are routed to the least loaded agent with spare capacity.
func (s *LeadService) Create(ctx context.Context, workspaceID string, lead models.Lead, source string) (models.Lead, error) {
	lead.ID = ""
	lead.WorkspaceID = workspaceID
	lead.Email = strings.ToLower(strings.TrimSpace(lead.Email))
	if lead.Email == "" {
		return models.Lead{}, fmt.Errorf("%w: email is required", models.ErrInvalidInput)
	}
	lead.Source = source
	if lead.Status == "" {
		lead.Status = models.LeadStatusNew
	}
	if !models.ValidLeadStatus(lead.Status) {
		return models.Lead{}, fmt.Errorf("%w: status %q", models.ErrInvalidInput, lead.Status)
	}
	if lead.Tags == nil {
		lead.Tags = []string{}
	}
	lead.CreatedAt = time.Time{}
	scoring.Apply(&lead, s.clock())

	if lead.OwnerAgentID != nil {
		if _, err := s.activeAgent(ctx, workspaceID, *lead.OwnerAgentID); err != nil {
			return models.Lead{}, err
		}
	} else if s.Agents != nil {
		agent, err := s.Agents.PickForRouting(ctx, workspaceID)
		switch {
		case err == nil:
			lead.OwnerAgentID = &agent.ID
		case errors.Is(err, models.ErrNotFound):
		default:
			return models.Lead{}, fmt.Errorf("route lead: %w", err)
		}
	}

	created, err := s.Leads.Create(ctx, lead)
	if errors.Is(err, models.ErrDuplicateLead) {
		if derr := s.Leads.RecordDedup(ctx, workspaceID, lead.Email, source); derr != nil && s.Logger != nil {
			s.Logger.Errorf("leads: record duplicate %s: %v", lead.Email, derr)
		}
		return models.Lead{}, err
	}
	if err != nil {
		return models.Lead{}, err
	}

	if s.Publisher != nil {
		s.Publisher.Publish(workspaceID, realtime.EventLeadCreated, created)
	}
	return created, nil
}

func (s *LeadService) Get(ctx context.Context, workspaceID, id string) (models.Lead, error) {
	return s.Leads.Get(ctx, workspaceID, id)
}

func (s *LeadService) List(ctx context.Context, workspaceID string, f models.LeadFilter) ([]models.Lead, error) {
	if f.Status != "" && !models.ValidLeadStatus(f.Status) {
		return nil, fmt.Errorf("%w: status %q", models.ErrInvalidInput, f.Status)
	}
	return s.Leads.List(ctx, workspaceID, f)
}

// Update overwrites the editable fields of a lead and recomputes its scores. Email,
// source, status and owner have their own operations.
func (s *LeadService) Update(ctx context.Context, workspaceID string, in models.Lead) (models.Lead, error) {
	lead, err := s.Leads.Get(ctx, workspaceID, in.ID)
	if err != nil {
		return models.Lead{}, err
	}
	lead.FirstName = in.FirstName
	lead.LastName = in.LastName
	lead.Title = in.Title
	lead.Seniority = in.Seniority
	lead.Company = in.Company
	lead.CompanyDomain = in.CompanyDomain
	lead.CompanySize = in.CompanySize
	lead.Phone = in.Phone
	lead.LinkedInURL = in.LinkedInURL
	lead.City = in.City
	lead.Country = in.Country
	lead.EmailStatus = in.EmailStatus
	lead.VerifiedAt = in.VerifiedAt
	lead.Tags = in.Tags
	if lead.Tags == nil {
		lead.Tags = []string{}
	}
	scoring.Apply(&lead, s.clock())
	return s.Leads.Update(ctx, lead)
}

func (s *LeadService) UpdateStatus(ctx context.Context, workspaceID, id, status string) error {
	if !models.ValidLeadStatus(status) {
		return fmt.Errorf("%w: status %q", models.ErrInvalidInput, status)
	}
	return s.Leads.UpdateStatus(ctx, workspaceID, id, status)
}

// Assign hands the lead to an active agent of the same workspace; a nil agentID
// unassigns it.
func (s *LeadService) Assign(ctx context.Context, workspaceID, id string, agentID *string) error {
	if agentID != nil {
		if _, err := s.activeAgent(ctx, workspaceID, *agentID); err != nil {
			return err
		}
	}
	return s.Leads.Assign(ctx, workspaceID, id, agentID)
}

func (s *LeadService) Delete(ctx context.Context, workspaceID, id string) error {
	return s.Leads.Delete(ctx, workspaceID, id)
}

// Rescore recomputes intent and freshness against the current time.
func (s *LeadService) Rescore(ctx context.Context, workspaceID, id string) (models.Lead, error) {
	lead, err := s.Leads.Get(ctx, workspaceID, id)
	if err != nil {
		return models.Lead{}, err
	}
	scoring.Apply(&lead, s.clock())
	if err := s.Leads.UpdateScores(ctx, workspaceID, id, lead.IntentScore, lead.FreshnessScore); err != nil {
		return models.Lead{}, err
	}
	return lead, nil
}

// DedupStats counts duplicates skipped in the last window. An empty workspaceID covers
// every workspace.
func (s *LeadService) DedupStats(ctx context.Context, workspaceID string, window time.Duration) ([]models.DedupStat, error) {
	if window <= 0 {
		window = 30 * 24 * time.Hour
	}
	return s.Leads.DedupStats(ctx, workspaceID, s.clock().Add(-window))
}

var exportHeaders = []string{
	"Email", "First name", "Last name", "Title", "Seniority", "Company", "Domain", "Company size",
	"Phone", "LinkedIn", "City", "Country", "Status", "Source", "Intent", "Freshness", "Tags", "Created",
}

// ExportXLSX writes every lead matching f into a single-sheet workbook.
func (s *LeadService) ExportXLSX(ctx context.Context, workspaceID string, f models.LeadFilter) ([]byte, error) {
	file := excelize.NewFile()
	defer file.Close()
	if err := file.SetSheetName(file.GetSheetName(0), exportSheet); err != nil {
		return nil, err
	}
	header := make([]interface{}, len(exportHeaders))
	for i, h := range exportHeaders {
		header[i] = h
	}
	if err := file.SetSheetRow(exportSheet, "A1", &header); err != nil {
		return nil, err
	}

	row := 2
	f.Limit = exportPageSize
	for f.Offset = 0; f.Offset < exportMaxRows; f.Offset += exportPageSize {
		leads, err := s.List(ctx, workspaceID, f)
		if err != nil {
			return nil, err
		}
		for _, l := range leads {
			cell, err := excelize.CoordinatesToCellName(1, row)
			if err != nil {
				return nil, err
			}
			values := []interface{}{
				l.Email, l.FirstName, l.LastName, l.Title, l.Seniority, l.Company, l.CompanyDomain, l.CompanySize,
				l.Phone, l.LinkedInURL, l.City, l.Country, l.Status, l.Source, l.IntentScore, l.FreshnessScore,
				strings.Join(l.Tags, ";"), l.CreatedAt.UTC().Format(time.RFC3339),
			}
			if err := file.SetSheetRow(exportSheet, cell, &values); err != nil {
				return nil, err
			}
			row++
		}
		if len(leads) < exportPageSize {
			break
		}
	}

	var buf bytes.Buffer
	if err := file.Write(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func (s *LeadService) activeAgent(ctx context.Context, workspaceID, id string) (models.Agent, error) {
	if s.Agents == nil {
		return models.Agent{}, fmt.Errorf("agent %s: %w", id, models.ErrNotFound)
	}
	agent, err := s.Agents.Get(ctx, workspaceID, id)
	if err != nil {
		return models.Agent{}, fmt.Errorf("agent %s: %w", id, err)
	}
	if !agent.Active {
		return models.Agent{}, fmt.Errorf("%w: agent %s is inactive", models.ErrInvalidInput, id)
	}
	return agent, nil
}

func (s *LeadService) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now()
}
