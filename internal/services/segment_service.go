package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"leadgenBack/internal/jobs"
	"leadgenBack/internal/models"
)

type SegmentStore interface {
	Create(ctx context.Context, s models.Segment) (models.Segment, error)
	Get(ctx context.Context, workspaceID, id string) (models.Segment, error)
	List(ctx context.Context, workspaceID string) ([]models.Segment, error)
	ListActive(ctx context.Context) ([]models.Segment, error)
	Update(ctx context.Context, s models.Segment) (models.Segment, error)
	Delete(ctx context.Context, workspaceID, id string) error
}

type SegmentService struct {
	Segments SegmentStore
	Jobs     Enqueuer
	// MinPullInterval skips scheduled pulls for segments pulled more recently.
	MinPullInterval time.Duration

	now func() time.Time
}

func (s *SegmentService) Create(ctx context.Context, workspaceID string, seg models.Segment) (models.Segment, error) {
	seg.WorkspaceID = workspaceID
	if err := normalizeSegment(&seg); err != nil {
		return models.Segment{}, err
	}
	return s.Segments.Create(ctx, seg)
}

func (s *SegmentService) Get(ctx context.Context, workspaceID, id string) (models.Segment, error) {
	return s.Segments.Get(ctx, workspaceID, id)
}

func (s *SegmentService) List(ctx context.Context, workspaceID string) ([]models.Segment, error) {
	return s.Segments.List(ctx, workspaceID)
}

// Update replaces the query of a segment. Changing the query restarts pagination from
// the first page.
func (s *SegmentService) Update(ctx context.Context, workspaceID string, seg models.Segment) (models.Segment, error) {
	seg.WorkspaceID = workspaceID
	if err := normalizeSegment(&seg); err != nil {
		return models.Segment{}, err
	}
	return s.Segments.Update(ctx, seg)
}

func (s *SegmentService) Delete(ctx context.Context, workspaceID, id string) error {
	return s.Segments.Delete(ctx, workspaceID, id)
}

// PullNow queues an immediate pull and returns the job id.
func (s *SegmentService) PullNow(ctx context.Context, workspaceID, id string) (string, error) {
	seg, err := s.Segments.Get(ctx, workspaceID, id)
	if err != nil {
		return "", err
	}
	if !seg.Active {
		return "", fmt.Errorf("%w: segment is paused", models.ErrInvalidInput)
	}
	return s.Jobs.Enqueue(ctx, jobs.TypeSegmentPull, jobs.SegmentPullPayload{SegmentID: seg.ID})
}

// EnqueueScheduledPulls queues a pull for every active segment not pulled within
// MinPullInterval.
func (s *SegmentService) EnqueueScheduledPulls(ctx context.Context) (int, error) {
	segments, err := s.Segments.ListActive(ctx)
	if err != nil {
		return 0, fmt.Errorf("list active segments: %w", err)
	}
	now := s.clock()
	queued := 0
	for _, seg := range segments {
		if seg.LastPulledAt != nil && s.MinPullInterval > 0 && now.Sub(*seg.LastPulledAt) < s.MinPullInterval {
			continue
		}
		if _, err := s.Jobs.Enqueue(ctx, jobs.TypeSegmentPull, jobs.SegmentPullPayload{SegmentID: seg.ID}); err != nil {
			return queued, fmt.Errorf("enqueue pull for segment %s: %w", seg.ID, err)
		}
		queued++
	}
	return queued, nil
}

func (s *SegmentService) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now()
}

func normalizeSegment(seg *models.Segment) error {
	seg.Name = strings.TrimSpace(seg.Name)
	if seg.Name == "" {
		return fmt.Errorf("%w: segment name is required", models.ErrInvalidInput)
	}
	seg.Titles = cleanList(seg.Titles)
	seg.Industries = cleanList(seg.Industries)
	seg.Locations = cleanList(seg.Locations)
	seg.CompanySizes = cleanList(seg.CompanySizes)
	if len(seg.Titles)+len(seg.Industries)+len(seg.Locations)+len(seg.CompanySizes) == 0 {
		return fmt.Errorf("%w: segment needs at least one filter", models.ErrInvalidInput)
	}
	return nil
}

func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		key := strings.ToLower(v)
		if v == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, v)
	}
	return out
}
