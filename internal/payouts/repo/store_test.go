package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leadgenBack/internal/payouts"
)

func newMock(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewStore(db), mock
}

func TestCreatePayoutMarksCommissionsPaid(t *testing.T) {
	store, mock := newMock(t)
	now := time.Date(2024, 5, 20, 6, 0, 0, 0, time.UTC)
	week := payouts.WeekStart(now)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id, amount_cents FROM commissions`).
		WithArgs("p1", payouts.StatusPayable).
		WillReturnRows(sqlmock.NewRows([]string{"id", "amount_cents"}).AddRow("c1", 3000).AddRow("c2", 2500))
	mock.ExpectQuery(`INSERT INTO payouts`).
		WithArgs(sqlmock.AnyArg(), "p1", week, "p1_2024-05-20", int64(5500), "usd", 2, now).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("po1"))
	mock.ExpectExec(`UPDATE commissions SET status = \$1, payout_id = \$2, paid_at = \$3`).
		WithArgs(payouts.StatusPaid, "po1", now, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	p, err := store.CreatePayout(context.Background(), payouts.Payout{
		PartnerID:      "p1",
		WeekStart:      week,
		IdempotencyKey: payouts.IdempotencyKey("p1", week),
		Currency:       "usd",
	}, 5000, now)
	require.NoError(t, err)
	assert.Equal(t, "po1", p.ID)
	assert.Equal(t, int64(5500), p.AmountCents)
	assert.Equal(t, 2, p.Commissions)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreatePayoutDuplicateKeyRollsBack(t *testing.T) {
	store, mock := newMock(t)
	now := time.Date(2024, 5, 20, 6, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id, amount_cents FROM commissions`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "amount_cents"}).AddRow("c1", 9000))
	mock.ExpectQuery(`INSERT INTO payouts`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	_, err := store.CreatePayout(context.Background(), payouts.Payout{PartnerID: "p1", IdempotencyKey: "p1_2024-05-20"}, 5000, now)
	assert.ErrorIs(t, err, payouts.ErrDuplicatePayout)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreatePayoutBelowThreshold(t *testing.T) {
	store, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id, amount_cents FROM commissions`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "amount_cents"}).AddRow("c1", 100))
	mock.ExpectRollback()

	_, err := store.CreatePayout(context.Background(), payouts.Payout{PartnerID: "p1"}, 5000, time.Now())
	assert.ErrorIs(t, err, payouts.ErrBelowThreshold)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateCommissionDetectsReplay(t *testing.T) {
	store, mock := newMock(t)

	mock.ExpectExec(`INSERT INTO commissions`).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "commissions_source_ref_key"})

	_, err := store.CreateCommission(context.Background(), payouts.Commission{SourceRef: "in_1"})
	assert.True(t, errors.Is(err, payouts.ErrDuplicateCommission))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReleaseHoldback(t *testing.T) {
	store, mock := newMock(t)
	cutoff := time.Date(2024, 5, 13, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec(`UPDATE commissions SET status = \$1`).
		WithArgs(payouts.StatusPayable, payouts.StatusPendingHoldback, cutoff).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := store.ReleaseHoldback(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestUpdateCommissionStatusRejectsStaleRow(t *testing.T) {
	store, mock := newMock(t)

	mock.ExpectExec(`UPDATE commissions SET status = \$1 WHERE id = \$2 AND status = \$3`).
		WithArgs(payouts.StatusCancelled, "c1", payouts.StatusPayable).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.UpdateCommissionStatus(context.Background(), "c1", payouts.StatusPayable, payouts.StatusCancelled)
	assert.ErrorIs(t, err, payouts.ErrInvalidTransition)

	err = store.UpdateCommissionStatus(context.Background(), "c1", payouts.StatusPaid, payouts.StatusCancelled)
	assert.ErrorIs(t, err, payouts.ErrInvalidTransition)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPartnerForWorkspaceNotFound(t *testing.T) {
	store, mock := newMock(t)

	mock.ExpectQuery(`FROM workspaces w`).
		WithArgs("ws-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email", "rate_bps", "active", "created_at"}))

	_, err := store.PartnerForWorkspace(context.Background(), "ws-1")
	assert.ErrorIs(t, err, payouts.ErrNotFound)
}
