package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"leadgenBack/internal/enrichment"
	"leadgenBack/internal/models"
	"leadgenBack/internal/realtime"
	"leadgenBack/internal/scoring"
)

const creditsPerPulledLead = 1

type SegmentPullPayload struct {
	SegmentID string `json:"segment_id"`
}

type pageResult struct {
	Imported   int    `json:"imported"`
	NextCursor string `json:"next_cursor"`
	OutOfFunds bool   `json:"out_of_funds"`
}

// SegmentPullHandler imports new people matching a saved segment. Each page is a step;
// every imported lead costs one credit and the pull stops when the balance runs out.
type SegmentPullHandler struct {
	Segments  SegmentStore
	Leads     LeadStore
	Credits   CreditStore
	Search    Searcher
	Publisher Publisher
	Logger    Logger
	MaxPages  int
	PageSize  int

	now func() time.Time
}

func (h *SegmentPullHandler) Handle(ctx context.Context, job Job, steps *Steps) error {
	var p SegmentPullPayload
	if err := job.Decode(&p); err != nil {
		return err
	}
	seg, err := h.Segments.GetByID(ctx, p.SegmentID)
	if errors.Is(err, models.ErrNotFound) {
		return Permanent(fmt.Errorf("segment %s not found", p.SegmentID))
	}
	if err != nil {
		return err
	}
	if !seg.Active {
		return nil
	}

	cursor := ""
	if seg.Cursor != nil {
		cursor = *seg.Cursor
	}
	maxPages := h.MaxPages
	if maxPages <= 0 {
		maxPages = defaultSegmentMaxPages
	}

	total := 0
	for page := 0; page < maxPages; page++ {
		pageCursor := cursor
		out, err := steps.Step(ctx, fmt.Sprintf("page-%d", page), func(ctx context.Context) ([]byte, error) {
			res, err := h.pullPage(ctx, job.ID, seg, pageCursor)
			if err != nil {
				return nil, err
			}
			if err := h.Segments.SavePull(ctx, seg.ID, optional(res.NextCursor), res.Imported, h.clock().UTC()); err != nil {
				return nil, err
			}
			return json.Marshal(res)
		})
		if err != nil {
			return err
		}
		var res pageResult
		if err := json.Unmarshal(out, &res); err != nil {
			return fmt.Errorf("decode page checkpoint: %w", err)
		}
		total += res.Imported
		cursor = res.NextCursor
		if res.OutOfFunds || cursor == "" {
			break
		}
	}

	if total > 0 && h.Publisher != nil {
		if bal, err := h.Credits.Balance(ctx, seg.WorkspaceID); err == nil {
			h.Publisher.Publish(seg.WorkspaceID, realtime.EventCreditsUpdated, bal)
		}
	}
	if h.Logger != nil {
		h.Logger.Infof("jobs: segment %s pulled %d leads", seg.ID, total)
	}
	return nil
}

func (h *SegmentPullHandler) pullPage(ctx context.Context, jobID string, seg models.Segment, cursor string) (pageResult, error) {
	page, err := h.Search.Search(ctx, enrichment.SearchQuery{
		Titles:       seg.Titles,
		Industries:   seg.Industries,
		Locations:    seg.Locations,
		CompanySizes: seg.CompanySizes,
		Cursor:       cursor,
		PageSize:     h.PageSize,
	})
	if err != nil {
		var apiErr *enrichment.APIError
		if errors.As(err, &apiErr) && !apiErr.Retryable() {
			return pageResult{}, Permanent(err)
		}
		return pageResult{}, err
	}

	emails := make([]string, 0, len(page.People))
	for _, person := range page.People {
		emails = append(emails, person.Email)
	}
	existing, err := h.Leads.ExistingEmails(ctx, seg.WorkspaceID, emails)
	if err != nil {
		return pageResult{}, err
	}

	res := pageResult{NextCursor: page.NextCursor}
	now := h.clock()
	var dups []string
	for _, person := range page.People {
		if existing[person.Email] {
			dups = append(dups, person.Email)
			continue
		}
		existing[person.Email] = true

		ref := "segment:" + jobID + ":" + person.Email
		_, err := h.Credits.Debit(ctx, seg.WorkspaceID, models.CreditSpend, creditsPerPulledLead, &ref, "segment "+seg.Name)
		if errors.Is(err, models.ErrInsufficientCredits) {
			// Resume from the same page next time so the remaining people are not lost.
			res.OutOfFunds = true
			res.NextCursor = cursor
			break
		}
		if err != nil && !errors.Is(err, models.ErrDuplicateRecord) {
			return pageResult{}, err
		}

		lead := models.Lead{
			WorkspaceID:   seg.WorkspaceID,
			Email:         person.Email,
			FirstName:     person.FirstName,
			LastName:      person.LastName,
			Title:         person.Title,
			Seniority:     scoring.NormalizeSeniority(person.Seniority),
			Company:       person.Company,
			CompanyDomain: person.CompanyDomain,
			CompanySize:   person.CompanySize,
			Phone:         person.Phone,
			LinkedInURL:   person.LinkedInURL,
			City:          person.City,
			Country:       person.Country,
			Source:        models.LeadSourceSegmentPull,
			Status:        models.LeadStatusNew,
			EmailStatus:   person.EmailStatus,
			VerifiedAt:    person.VerifiedAt,
			Tags:          []string{"segment:" + seg.Name},
		}
		scoring.Apply(&lead, now)
		if _, err := h.Leads.Create(ctx, lead); err != nil {
			if !errors.Is(err, models.ErrDuplicateLead) {
				return pageResult{}, err
			}
			// Inserted concurrently after ExistingEmails; give the credit back.
			refund := ref + ":refund"
			if _, err := h.Credits.Grant(ctx, seg.WorkspaceID, models.CreditRefund, creditsPerPulledLead, &refund, "segment "+seg.Name+" duplicate"); err != nil &&
				!errors.Is(err, models.ErrDuplicateRecord) {
				return pageResult{}, err
			}
			dups = append(dups, person.Email)
			continue
		}
		res.Imported++
	}
	if err := h.Leads.RecordDedupCount(ctx, seg.WorkspaceID, models.LeadSourceSegmentPull, dups); err != nil {
		return pageResult{}, err
	}
	return res, nil
}

func (h *SegmentPullHandler) clock() time.Time {
	if h.now != nil {
		return h.now()
	}
	return time.Now()
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
