package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"leadgenBack/internal/models"
)

const contentCostCredits = 1

// Generator turns a prompt into text.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type DraftStore interface {
	Create(ctx context.Context, d models.ContentDraft) (models.ContentDraft, error)
	List(ctx context.Context, workspaceID, kind string, limit, offset int) ([]models.ContentDraft, error)
	Delete(ctx context.Context, workspaceID, id string) error
}

type CampaignGetter interface {
	Get(ctx context.Context, workspaceID, id string) (models.Campaign, error)
}

type ContentService struct {
	Drafts    DraftStore
	Credits   CreditStore
	Generator Generator
	Leads     LeadStore
	Campaigns CampaignGetter
	Logger    Logger
}

var contentInstructions = map[string]string{
	"cold_email":       "Write a short cold email (subject line plus at most 120 words of body).",
	"linkedin_message": "Write a LinkedIn connection message under 300 characters.",
	"follow_up":        "Write a polite follow-up email to a prospect who has not replied, at most 80 words.",
	"landing_headline": "Write three alternative landing page headlines, one per line, each under 12 words.",
}

// Generate writes a draft for the workspace. One credit is charged up front and
// refunded when the model fails.
func (s *ContentService) Generate(ctx context.Context, p models.Principal, req models.ContentRequest) (models.ContentDraft, error) {
	instruction, ok := contentInstructions[req.Kind]
	if !ok {
		return models.ContentDraft{}, fmt.Errorf("%w: kind %q", models.ErrInvalidInput, req.Kind)
	}
	if strings.TrimSpace(req.Brief) == "" {
		return models.ContentDraft{}, fmt.Errorf("%w: brief is required", models.ErrInvalidInput)
	}
	if s.Generator == nil {
		return models.ContentDraft{}, fmt.Errorf("content studio: %w", models.ErrFeatureDisabled)
	}

	prompt, err := s.prompt(ctx, p.WorkspaceID, instruction, req)
	if err != nil {
		return models.ContentDraft{}, err
	}

	ref := "content:" + uuid.NewString()
	if _, err := s.Credits.Debit(ctx, p.WorkspaceID, models.CreditSpend, contentCostCredits, &ref, "content "+req.Kind); err != nil {
		return models.ContentDraft{}, err
	}

	body, err := s.Generator.Generate(ctx, prompt)
	if err != nil {
		s.refund(ctx, p.WorkspaceID, ref, "content generation failed")
		return models.ContentDraft{}, err
	}

	draft, err := s.Drafts.Create(ctx, models.ContentDraft{
		WorkspaceID: p.WorkspaceID,
		Kind:        req.Kind,
		Brief:       strings.TrimSpace(req.Brief),
		LeadID:      req.LeadID,
		CampaignID:  req.CampaignID,
		Body:        body,
		CreatedBy:   p.UserID,
	})
	if err != nil {
		s.refund(ctx, p.WorkspaceID, ref, "content draft not saved")
		return models.ContentDraft{}, err
	}
	return draft, nil
}

func (s *ContentService) refund(ctx context.Context, workspaceID, ref, note string) {
	refund := ref + ":refund"
	_, err := s.Credits.Grant(context.WithoutCancel(ctx), workspaceID, models.CreditRefund, contentCostCredits, &refund, note)
	if err != nil && !errors.Is(err, models.ErrDuplicateRecord) && s.Logger != nil {
		s.Logger.Errorf("content: refund %s for %s: %v", ref, workspaceID, err)
	}
}

func (s *ContentService) List(ctx context.Context, workspaceID, kind string, limit, offset int) ([]models.ContentDraft, error) {
	return s.Drafts.List(ctx, workspaceID, kind, limit, offset)
}

func (s *ContentService) Delete(ctx context.Context, workspaceID, id string) error {
	return s.Drafts.Delete(ctx, workspaceID, id)
}

func (s *ContentService) prompt(ctx context.Context, workspaceID, instruction string, req models.ContentRequest) (string, error) {
	var b strings.Builder
	b.WriteString("You write B2B sales copy. ")
	b.WriteString(instruction)
	if req.Tone != "" {
		fmt.Fprintf(&b, " Use a %s tone.", req.Tone)
	}
	fmt.Fprintf(&b, "\n\nBrief:\n%s\n", strings.TrimSpace(req.Brief))

	if req.LeadID != nil && s.Leads != nil {
		lead, err := s.Leads.Get(ctx, workspaceID, *req.LeadID)
		if err != nil {
			return "", fmt.Errorf("lead %s: %w", *req.LeadID, err)
		}
		fmt.Fprintf(&b, "\nRecipient: %s %s, %s at %s", lead.FirstName, lead.LastName, lead.Title, lead.Company)
		if lead.CompanySize != "" {
			fmt.Fprintf(&b, " (%s employees)", lead.CompanySize)
		}
		b.WriteString("\n")
	}
	if req.CampaignID != nil && s.Campaigns != nil {
		c, err := s.Campaigns.Get(ctx, workspaceID, *req.CampaignID)
		if err != nil {
			return "", fmt.Errorf("campaign %s: %w", *req.CampaignID, err)
		}
		fmt.Fprintf(&b, "\nCampaign: %s via %s\n", c.Name, c.Channel)
	}
	b.WriteString("\nReturn only the copy, without commentary.")
	return b.String(), nil
}
