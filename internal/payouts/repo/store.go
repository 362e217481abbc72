package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"leadgenBack/internal/payouts"
)

const uniqueViolation = "23505"

// Store is the Postgres implementation of payouts.Store.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

var _ payouts.Store = (*Store)(nil)

func (s *Store) CreatePartner(ctx context.Context, p payouts.Partner) (payouts.Partner, error) {
	p.ID = uuid.NewString()
	p.Active = true
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO partners (id, name, email, rate_bps, active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`,
		p.ID, p.Name, p.Email, p.RateBps, p.Active).Scan(&p.CreatedAt)
	if err != nil {
		return payouts.Partner{}, fmt.Errorf("insert partner: %w", err)
	}
	return p, nil
}

func (s *Store) GetPartner(ctx context.Context, id string) (payouts.Partner, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, email, rate_bps, active, created_at
		FROM partners WHERE id = $1`, id)
	return scanPartner(row)
}

func (s *Store) ListPartners(ctx context.Context, limit, offset int) ([]payouts.Partner, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, email, rate_bps, active, created_at
		FROM partners ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []payouts.Partner
	for rows.Next() {
		p, err := scanPartner(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) PartnerForWorkspace(ctx context.Context, workspaceID string) (payouts.Partner, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT p.id, p.name, p.email, p.rate_bps, p.active, p.created_at
		FROM workspaces w
		JOIN partners p ON p.id = w.referred_by_partner_id
		WHERE w.id = $1`, workspaceID)
	return scanPartner(row)
}

func (s *Store) CreateCommission(ctx context.Context, c payouts.Commission) (payouts.Commission, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO commissions (id, partner_id, workspace_id, source_ref, amount_cents, currency, status, created_at, payable_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		c.ID, c.PartnerID, c.WorkspaceID, c.SourceRef, c.AmountCents, c.Currency, c.Status, c.CreatedAt, c.PayableAt)
	if err != nil {
		if isUniqueViolation(err) {
			return payouts.Commission{}, payouts.ErrDuplicateCommission
		}
		return payouts.Commission{}, fmt.Errorf("insert commission: %w", err)
	}
	return c, nil
}

func (s *Store) GetCommissionBySource(ctx context.Context, sourceRef string) (payouts.Commission, error) {
	row := s.db.QueryRowContext(ctx, commissionSelect+` WHERE source_ref = $1`, sourceRef)
	return scanCommission(row)
}

func (s *Store) ListCommissions(ctx context.Context, partnerID string, limit, offset int) ([]payouts.Commission, error) {
	rows, err := s.db.QueryContext(ctx, commissionSelect+`
		WHERE partner_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`, partnerID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []payouts.Commission
	for rows.Next() {
		c, err := scanCommission(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// UpdateCommissionStatus moves a commission only if it is still in the expected status.
func (s *Store) UpdateCommissionStatus(ctx context.Context, id, from, to string) error {
	if !payouts.CanTransition(from, to) {
		return payouts.ErrInvalidTransition
	}
	res, err := s.db.ExecContext(ctx, `UPDATE commissions SET status = $1 WHERE id = $2 AND status = $3`, to, id, from)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return payouts.ErrInvalidTransition
	}
	return nil
}

func (s *Store) ReleaseHoldback(ctx context.Context, createdBefore time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE commissions SET status = $1
		WHERE status = $2 AND created_at <= $3`,
		payouts.StatusPayable, payouts.StatusPendingHoldback, createdBefore)
	if err != nil {
		return 0, fmt.Errorf("release holdback: %w", err)
	}
	return res.RowsAffected()
}

func (s *Store) PayableTotals(ctx context.Context) ([]payouts.PartnerTotal, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.name, p.email, p.rate_bps, p.active, p.created_at,
		       COALESCE(SUM(c.amount_cents), 0), COUNT(c.id)
		FROM commissions c
		JOIN partners p ON p.id = c.partner_id
		WHERE c.status = $1
		GROUP BY p.id, p.name, p.email, p.rate_bps, p.active, p.created_at
		ORDER BY p.id`, payouts.StatusPayable)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []payouts.PartnerTotal
	for rows.Next() {
		var t payouts.PartnerTotal
		if err := rows.Scan(&t.Partner.ID, &t.Partner.Name, &t.Partner.Email, &t.Partner.RateBps,
			&t.Partner.Active, &t.Partner.CreatedAt, &t.AmountCents, &t.Count); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// CreatePayout locks the partner's payable commissions, inserts the payout under its
// idempotency key and marks the commissions paid in one transaction.
func (s *Store) CreatePayout(ctx context.Context, p payouts.Payout, minCents int64, now time.Time) (payouts.Payout, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return payouts.Payout{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	rows, err := tx.QueryContext(ctx, `
		SELECT id, amount_cents FROM commissions
		WHERE partner_id = $1 AND status = $2
		ORDER BY created_at
		FOR UPDATE`, p.PartnerID, payouts.StatusPayable)
	if err != nil {
		return payouts.Payout{}, err
	}
	var ids []string
	var total int64
	for rows.Next() {
		var id string
		var amount int64
		if err = rows.Scan(&id, &amount); err != nil {
			rows.Close()
			return payouts.Payout{}, err
		}
		ids = append(ids, id)
		total += amount
	}
	rows.Close()
	if err = rows.Err(); err != nil {
		return payouts.Payout{}, err
	}
	if len(ids) == 0 || total < minCents {
		err = payouts.ErrBelowThreshold
		return payouts.Payout{}, err
	}

	p.ID = uuid.NewString()
	p.AmountCents = total
	p.Commissions = len(ids)
	p.CreatedAt = now
	err = tx.QueryRowContext(ctx, `
		INSERT INTO payouts (id, partner_id, week_start, idempotency_key, amount_cents, currency, commissions, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (idempotency_key) DO NOTHING
		RETURNING id`,
		p.ID, p.PartnerID, p.WeekStart, p.IdempotencyKey, p.AmountCents, p.Currency, p.Commissions, p.CreatedAt).Scan(&p.ID)
	if errors.Is(err, sql.ErrNoRows) {
		err = payouts.ErrDuplicatePayout
		return payouts.Payout{}, err
	}
	if err != nil {
		return payouts.Payout{}, fmt.Errorf("insert payout: %w", err)
	}

	if _, err = tx.ExecContext(ctx, `
		UPDATE commissions SET status = $1, payout_id = $2, paid_at = $3
		WHERE id = ANY($4)`,
		payouts.StatusPaid, p.ID, now, pq.Array(ids)); err != nil {
		return payouts.Payout{}, fmt.Errorf("mark commissions paid: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return payouts.Payout{}, err
	}
	return p, nil
}

func (s *Store) ListPayouts(ctx context.Context, limit, offset int) ([]payouts.Payout, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, partner_id, week_start, idempotency_key, amount_cents, currency, commissions, created_at
		FROM payouts ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []payouts.Payout
	for rows.Next() {
		var p payouts.Payout
		if err := rows.Scan(&p.ID, &p.PartnerID, &p.WeekStart, &p.IdempotencyKey, &p.AmountCents,
			&p.Currency, &p.Commissions, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

const commissionSelect = `
		SELECT id, partner_id, workspace_id, source_ref, amount_cents, currency, status,
		       created_at, payable_at, payout_id, paid_at
		FROM commissions`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanPartner(row scanner) (payouts.Partner, error) {
	var p payouts.Partner
	err := row.Scan(&p.ID, &p.Name, &p.Email, &p.RateBps, &p.Active, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return payouts.Partner{}, payouts.ErrNotFound
	}
	return p, err
}

func scanCommission(row scanner) (payouts.Commission, error) {
	var (
		c        payouts.Commission
		payoutID sql.NullString
		paidAt   sql.NullTime
	)
	err := row.Scan(&c.ID, &c.PartnerID, &c.WorkspaceID, &c.SourceRef, &c.AmountCents, &c.Currency,
		&c.Status, &c.CreatedAt, &c.PayableAt, &payoutID, &paidAt)
	if errors.Is(err, sql.ErrNoRows) {
		return payouts.Commission{}, payouts.ErrNotFound
	}
	if err != nil {
		return payouts.Commission{}, err
	}
	if payoutID.Valid {
		c.PayoutID = &payoutID.String
	}
	if paidAt.Valid {
		c.PaidAt = &paidAt.Time
	}
	return c, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
