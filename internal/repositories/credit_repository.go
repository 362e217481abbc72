package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"leadgenBack/internal/models"
)

const ledgerUniqueReference = "credit_ledger_reference_key"

type CreditRepository struct {
	DB *sql.DB
}

func (r *CreditRepository) Balance(ctx context.Context, workspaceID string) (models.CreditBalance, error) {
	b := models.CreditBalance{WorkspaceID: workspaceID}
	var updated sql.NullTime
	err := r.DB.QueryRowContext(ctx,
		`SELECT balance, updated_at FROM credit_balances WHERE workspace_id = $1`, workspaceID,
	).Scan(&b.Balance, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return b, nil
	}
	if err != nil {
		return models.CreditBalance{}, err
	}
	b.UpdatedAt = nullTimeToPtr(updated)
	return b, nil
}

// Grant adds credits. A reference already present in the workspace ledger yields
// models.ErrDuplicateRecord and leaves the balance untouched.
func (r *CreditRepository) Grant(ctx context.Context, workspaceID, kind string, amount int64, reference *string, note string) (models.CreditEntry, error) {
	var entry models.CreditEntry
	err := withTx(ctx, r.DB, func(tx *sql.Tx) error {
		var err error
		entry, err = grantTx(ctx, tx, workspaceID, kind, amount, reference, note)
		return err
	})
	return entry, err
}

// Debit removes credits atomically, failing with models.ErrInsufficientCredits when the
// balance does not cover amount.
func (r *CreditRepository) Debit(ctx context.Context, workspaceID, kind string, amount int64, reference *string, note string) (models.CreditEntry, error) {
	var entry models.CreditEntry
	err := withTx(ctx, r.DB, func(tx *sql.Tx) error {
		var err error
		entry, err = debitTx(ctx, tx, workspaceID, kind, amount, reference, note)
		return err
	})
	return entry, err
}

func grantTx(ctx context.Context, q querier, workspaceID, kind string, amount int64, reference *string, note string) (models.CreditEntry, error) {
	if amount <= 0 {
		return models.CreditEntry{}, fmt.Errorf("grant amount must be positive")
	}
	var balance int64
	err := q.QueryRowContext(ctx, `
		INSERT INTO credit_balances (workspace_id, balance, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (workspace_id) DO UPDATE
			SET balance = credit_balances.balance + EXCLUDED.balance, updated_at = NOW()
		RETURNING balance`, workspaceID, amount).Scan(&balance)
	if err != nil {
		return models.CreditEntry{}, fmt.Errorf("credit balance: %w", err)
	}
	return insertLedger(ctx, q, workspaceID, kind, amount, balance, reference, note)
}

func debitTx(ctx context.Context, q querier, workspaceID, kind string, amount int64, reference *string, note string) (models.CreditEntry, error) {
	if amount <= 0 {
		return models.CreditEntry{}, fmt.Errorf("debit amount must be positive")
	}
	var balance int64
	err := q.QueryRowContext(ctx, `
		UPDATE credit_balances SET balance = balance - $2, updated_at = NOW()
		WHERE workspace_id = $1 AND balance >= $2
		RETURNING balance`, workspaceID, amount).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return models.CreditEntry{}, models.ErrInsufficientCredits
	}
	if err != nil {
		return models.CreditEntry{}, fmt.Errorf("debit balance: %w", err)
	}
	return insertLedger(ctx, q, workspaceID, kind, -amount, balance, reference, note)
}

func insertLedger(ctx context.Context, q querier, workspaceID, kind string, delta, balance int64, reference *string, note string) (models.CreditEntry, error) {
	entry := models.CreditEntry{
		WorkspaceID:  workspaceID,
		Kind:         kind,
		Delta:        delta,
		BalanceAfter: balance,
		Reference:    reference,
		Note:         note,
	}
	err := q.QueryRowContext(ctx, `
		INSERT INTO credit_ledger (workspace_id, kind, delta, balance_after, reference, note)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`,
		workspaceID, kind, delta, balance, nullableString(reference), note,
	).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		if isUniqueViolation(err, ledgerUniqueReference) {
			return models.CreditEntry{}, models.ErrDuplicateRecord
		}
		return models.CreditEntry{}, fmt.Errorf("insert ledger entry: %w", err)
	}
	return entry, nil
}

func (r *CreditRepository) Ledger(ctx context.Context, workspaceID string, limit, offset int) ([]models.CreditEntry, error) {
	limit, offset = clampPage(limit, offset)
	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, workspace_id, kind, delta, balance_after, reference, note, created_at
		FROM credit_ledger WHERE workspace_id = $1
		ORDER BY id DESC LIMIT $2 OFFSET $3`, workspaceID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.CreditEntry{}
	for rows.Next() {
		var (
			e   models.CreditEntry
			ref sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.WorkspaceID, &e.Kind, &e.Delta, &e.BalanceAfter, &ref, &e.Note, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Reference = nullToPtr(ref)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *CreditRepository) GetAutoRecharge(ctx context.Context, workspaceID string) (models.AutoRechargeSettings, error) {
	var (
		s         models.AutoRechargeSettings
		attempt   sql.NullTime
		lastError sql.NullString
	)
	err := r.DB.QueryRowContext(ctx, `
		SELECT workspace_id, enabled, threshold, credits, stripe_customer_id, payment_method_id, last_attempt_at, last_error
		FROM auto_recharge_settings WHERE workspace_id = $1`, workspaceID,
	).Scan(&s.WorkspaceID, &s.Enabled, &s.Threshold, &s.Credits, &s.StripeCustomerID, &s.PaymentMethodID, &attempt, &lastError)
	if errors.Is(err, sql.ErrNoRows) {
		return models.AutoRechargeSettings{}, models.ErrNotFound
	}
	if err != nil {
		return models.AutoRechargeSettings{}, err
	}
	s.LastAttemptAt = nullTimeToPtr(attempt)
	s.LastError = nullToPtr(lastError)
	return s, nil
}

func (r *CreditRepository) UpsertAutoRecharge(ctx context.Context, s models.AutoRechargeSettings) error {
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO auto_recharge_settings (workspace_id, enabled, threshold, credits, stripe_customer_id, payment_method_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (workspace_id) DO UPDATE SET
			enabled = EXCLUDED.enabled,
			threshold = EXCLUDED.threshold,
			credits = EXCLUDED.credits,
			stripe_customer_id = EXCLUDED.stripe_customer_id,
			payment_method_id = EXCLUDED.payment_method_id,
			last_error = NULL`,
		s.WorkspaceID, s.Enabled, s.Threshold, s.Credits, s.StripeCustomerID, s.PaymentMethodID)
	return err
}

// DisableAutoRecharge turns recharging off after a failed charge, keeping the reason.
func (r *CreditRepository) DisableAutoRecharge(ctx context.Context, workspaceID, reason string) error {
	_, err := r.DB.ExecContext(ctx,
		`UPDATE auto_recharge_settings SET enabled = FALSE, last_error = $2 WHERE workspace_id = $1`,
		workspaceID, reason)
	return err
}

func (r *CreditRepository) MarkAutoRechargeAttempt(ctx context.Context, workspaceID string, at time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		`UPDATE auto_recharge_settings SET last_attempt_at = $2 WHERE workspace_id = $1`, workspaceID, at)
	return err
}

// DueAutoRecharges lists workspaces with recharging enabled whose balance fell below the
// threshold and that were not attempted since notBefore.
func (r *CreditRepository) DueAutoRecharges(ctx context.Context, notBefore time.Time) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT s.workspace_id
		FROM auto_recharge_settings s
		LEFT JOIN credit_balances b ON b.workspace_id = s.workspace_id
		WHERE s.enabled AND COALESCE(b.balance, 0) < s.threshold
		  AND (s.last_attempt_at IS NULL OR s.last_attempt_at < $1)
		ORDER BY s.workspace_id`, notBefore)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
