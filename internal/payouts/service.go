package payouts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Logger is the minimal logging interface required by the payouts module.
type Logger interface {
	Infof(string, ...interface{})
	Errorf(string, ...interface{})
}

// Store persists partners, commissions and payouts.
type Store interface {
	CreatePartner(ctx context.Context, p Partner) (Partner, error)
	GetPartner(ctx context.Context, id string) (Partner, error)
	ListPartners(ctx context.Context, limit, offset int) ([]Partner, error)
	PartnerForWorkspace(ctx context.Context, workspaceID string) (Partner, error)

	CreateCommission(ctx context.Context, c Commission) (Commission, error)
	GetCommissionBySource(ctx context.Context, sourceRef string) (Commission, error)
	ListCommissions(ctx context.Context, partnerID string, limit, offset int) ([]Commission, error)
	UpdateCommissionStatus(ctx context.Context, id, from, to string) error
	ReleaseHoldback(ctx context.Context, createdBefore time.Time) (int64, error)

	PayableTotals(ctx context.Context) ([]PartnerTotal, error)
	CreatePayout(ctx context.Context, p Payout, minCents int64, now time.Time) (Payout, error)
	ListPayouts(ctx context.Context, limit, offset int) ([]Payout, error)
}

// Notifier tells a partner that a payout was issued.
type Notifier interface {
	PayoutSent(ctx context.Context, partner Partner, payout Payout) error
}

// RunSummary describes one weekly payout run.
type RunSummary struct {
	WeekStart   time.Time `json:"week_start"`
	Created     int       `json:"created"`
	Duplicates  int       `json:"duplicates"`
	CarriedOver int       `json:"carried_over"`
	TotalCents  int64     `json:"total_cents"`
}

type Service struct {
	store    Store
	cfg      Config
	notifier Notifier
	logger   Logger
	now      func() time.Time
}

func NewService(store Store, cfg Config, notifier Notifier, logger Logger) *Service {
	return &Service{store: store, cfg: cfg, notifier: notifier, logger: logger, now: time.Now}
}

func (s *Service) CreatePartner(ctx context.Context, in NewPartner) (Partner, error) {
	p := Partner{
		Name:    strings.TrimSpace(in.Name),
		Email:   strings.ToLower(strings.TrimSpace(in.Email)),
		RateBps: s.cfg.DefaultRateBps,
	}
	if in.RateBps != nil {
		p.RateBps = *in.RateBps
	}
	return s.store.CreatePartner(ctx, p)
}

func (s *Service) ListPartners(ctx context.Context, limit, offset int) ([]Partner, error) {
	return s.store.ListPartners(ctx, limit, offset)
}

func (s *Service) ListCommissions(ctx context.Context, partnerID string, limit, offset int) ([]Commission, error) {
	if _, err := s.store.GetPartner(ctx, partnerID); err != nil {
		return nil, err
	}
	return s.store.ListCommissions(ctx, partnerID, limit, offset)
}

func (s *Service) ListPayouts(ctx context.Context, limit, offset int) ([]Payout, error) {
	return s.store.ListPayouts(ctx, limit, offset)
}

// RecordCommission books a commission for the partner that referred workspaceID.
// It returns false when the workspace has no active referring partner. Replays of the same
// sourceRef are reported as ErrDuplicateCommission.
func (s *Service) RecordCommission(ctx context.Context, workspaceID, sourceRef string, amountCents int64, currency string) (bool, error) {
	partner, err := s.store.PartnerForWorkspace(ctx, workspaceID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lookup partner for workspace %s: %w", workspaceID, err)
	}
	if !partner.Active {
		return false, nil
	}

	amount := CommissionFor(amountCents, partner.RateBps)
	if amount <= 0 {
		return false, nil
	}
	if currency == "" {
		currency = s.cfg.Currency
	}

	now := s.now().UTC()
	_, err = s.store.CreateCommission(ctx, Commission{
		PartnerID:   partner.ID,
		WorkspaceID: workspaceID,
		SourceRef:   sourceRef,
		AmountCents: amount,
		Currency:    strings.ToLower(currency),
		Status:      StatusPendingHoldback,
		CreatedAt:   now,
		PayableAt:   now.Add(s.cfg.Holdback),
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// ReleaseHoldback moves every commission whose holdback elapsed at now to payable.
func (s *Service) ReleaseHoldback(ctx context.Context, now time.Time) (int64, error) {
	return s.store.ReleaseHoldback(ctx, now.UTC().Add(-s.cfg.Holdback))
}

// Cancel claws back the commission created for sourceRef. Paid commissions are left
// untouched and reported with cancelled=false.
func (s *Service) Cancel(ctx context.Context, sourceRef string) (bool, error) {
	c, err := s.store.GetCommissionBySource(ctx, sourceRef)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if c.Status == StatusCancelled {
		return false, nil
	}
	if !CanTransition(c.Status, StatusCancelled) {
		if s.logger != nil {
			s.logger.Infof("payouts: commission %s for %s already %s, refund not clawed back", c.ID, sourceRef, c.Status)
		}
		return false, nil
	}
	if err := s.store.UpdateCommissionStatus(ctx, c.ID, c.Status, StatusCancelled); err != nil {
		return false, err
	}
	return true, nil
}

// RunWeeklyPayouts creates at most one payout per partner for the week containing now.
// Partners whose payable total is below the threshold carry it to a later week.
func (s *Service) RunWeeklyPayouts(ctx context.Context, now time.Time) (RunSummary, error) {
	week := WeekStart(now)
	summary := RunSummary{WeekStart: week}

	totals, err := s.store.PayableTotals(ctx)
	if err != nil {
		return summary, fmt.Errorf("load payable totals: %w", err)
	}

	for _, t := range totals {
		if t.AmountCents < s.cfg.MinPayoutCents {
			summary.CarriedOver++
			continue
		}
		payout, err := s.store.CreatePayout(ctx, Payout{
			PartnerID:      t.Partner.ID,
			WeekStart:      week,
			IdempotencyKey: IdempotencyKey(t.Partner.ID, week),
			Currency:       s.cfg.Currency,
		}, s.cfg.MinPayoutCents, now.UTC())
		switch {
		case errors.Is(err, ErrDuplicatePayout):
			summary.Duplicates++
			continue
		case errors.Is(err, ErrBelowThreshold):
			summary.CarriedOver++
			continue
		case err != nil:
			return summary, fmt.Errorf("create payout for partner %s: %w", t.Partner.ID, err)
		}

		summary.Created++
		summary.TotalCents += payout.AmountCents
		if s.notifier != nil {
			if err := s.notifier.PayoutSent(ctx, t.Partner, payout); err != nil && s.logger != nil {
				s.logger.Errorf("payouts: notify partner %s: %v", t.Partner.ID, err)
			}
		}
	}

	if s.logger != nil {
		s.logger.Infof("payouts: week %s created=%d duplicates=%d carried=%d total=%d",
			week.Format("2006-01-02"), summary.Created, summary.Duplicates, summary.CarriedOver, summary.TotalCents)
	}
	return summary, nil
}
