package repositories

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leadgenBack/internal/models"
)

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

var leadRowColumns = []string{"id", "workspace_id", "email", "first_name", "last_name", "title", "seniority", "company",
	"company_domain", "company_size", "phone", "linkedin_url", "city", "country", "source", "status", "email_status",
	"owner_agent_id", "intent_score", "freshness_score", "tags", "verified_at", "created_at", "updated_at"}

func leadRow(rows *sqlmock.Rows, id, ws, email string) *sqlmock.Rows {
	return rows.AddRow(id, ws, email, "Ann", "Lee", "CTO", "c_level", "Acme", "acme.io", "51-200", "", "", "Austin", "US",
		models.LeadSourceManual, models.LeadStatusNew, "valid", nil, 80, 100, "{vip,q3}", nil, time.Now(), nil)
}

func TestLeadCreateMapsUniqueViolation(t *testing.T) {
	db, mock := newMockDB(t)
	repo := &LeadRepository{DB: db}

	mock.ExpectQuery(`INSERT INTO leads`).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: leadUniqueEmail})

	_, err := repo.Create(context.Background(), models.Lead{WorkspaceID: "ws", Email: "a@acme.io"})
	assert.ErrorIs(t, err, models.ErrDuplicateLead)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLeadListBuildsFilters(t *testing.T) {
	db, mock := newMockDB(t)
	repo := &LeadRepository{DB: db}

	mock.ExpectQuery(`FROM leads WHERE workspace_id = \$1 AND \(email ILIKE \$2 OR .*\) AND status = \$3 AND intent_score >= \$4 ORDER BY created_at DESC, id LIMIT \$5 OFFSET \$6`).
		WithArgs("ws", "%acme%", models.LeadStatusNew, 60, 25, 0).
		WillReturnRows(leadRow(sqlmock.NewRows(leadRowColumns), "l1", "ws", "ann@acme.io"))

	leads, err := repo.List(context.Background(), "ws", models.LeadFilter{Query: "acme", Status: models.LeadStatusNew, MinIntentScore: 60, Limit: 25})
	require.NoError(t, err)
	require.Len(t, leads, 1)
	assert.Equal(t, []string{"vip", "q3"}, leads[0].Tags)
	assert.Nil(t, leads[0].OwnerAgentID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLeadUpdateStatusNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := &LeadRepository{DB: db}

	mock.ExpectExec(`UPDATE leads SET status`).
		WithArgs("ws", "missing", models.LeadStatusContacted).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateStatus(context.Background(), "ws", "missing", models.LeadStatusContacted)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestLeadInsertBatchCountsOnlyNewRows(t *testing.T) {
	db, mock := newMockDB(t)
	repo := &LeadRepository{DB: db}

	mock.ExpectBegin()
	prep := mock.ExpectPrepare(`INSERT INTO leads`)
	prep.ExpectExec().WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().WillReturnResult(sqlmock.NewResult(0, 0))
	prep.ExpectExec().WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	n, err := repo.InsertBatch(context.Background(), []models.Lead{
		{WorkspaceID: "ws", Email: "a@x.io"}, {WorkspaceID: "ws", Email: "b@x.io"}, {WorkspaceID: "ws", Email: "c@x.io"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDedupStats(t *testing.T) {
	db, mock := newMockDB(t)
	repo := &LeadRepository{DB: db}
	since := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`FROM lead_dedup_events`).
		WithArgs(since, "").
		WillReturnRows(sqlmock.NewRows([]string{"source", "count"}).AddRow("bulk_upload", 12).AddRow("api", 3))

	stats, err := repo.DedupStats(context.Background(), "", since)
	require.NoError(t, err)
	assert.Equal(t, []models.DedupStat{{Source: "bulk_upload", Duplicates: 12}, {Source: "api", Duplicates: 3}}, stats)
}

func TestAgentPickForRoutingNoCapacity(t *testing.T) {
	db, mock := newMockDB(t)
	repo := &AgentRepository{DB: db}

	mock.ExpectQuery(`WHERE open_leads < max_open_leads`).
		WithArgs("ws").
		WillReturnRows(sqlmock.NewRows([]string{"id", "workspace_id", "name", "email", "active", "max_open_leads", "open_leads", "created_at", "updated_at"}))

	_, err := repo.PickForRouting(context.Background(), "ws")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestCreditDebitInsufficient(t *testing.T) {
	db, mock := newMockDB(t)
	repo := &CreditRepository{DB: db}

	mock.ExpectBegin()
	mock.ExpectQuery(`UPDATE credit_balances SET balance = balance - \$2`).
		WithArgs("ws", int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"balance"}))
	mock.ExpectRollback()

	_, err := repo.Debit(context.Background(), "ws", models.CreditSpend, 5, nil, "content")
	assert.ErrorIs(t, err, models.ErrInsufficientCredits)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreditGrantReplayRollsBack(t *testing.T) {
	db, mock := newMockDB(t)
	repo := &CreditRepository{DB: db}
	ref := "cs_test_1"

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO credit_balances`).
		WithArgs("ws", int64(100)).
		WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow(int64(250)))
	mock.ExpectQuery(`INSERT INTO credit_ledger`).
		WithArgs("ws", models.CreditPurchase, int64(100), int64(250), ref, "checkout").
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: ledgerUniqueReference})
	mock.ExpectRollback()

	_, err := repo.Grant(context.Background(), "ws", models.CreditPurchase, 100, &ref, "checkout")
	assert.ErrorIs(t, err, models.ErrDuplicateRecord)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreditGrantWritesLedger(t *testing.T) {
	db, mock := newMockDB(t)
	repo := &CreditRepository{DB: db}
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO credit_balances`).
		WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow(int64(40)))
	mock.ExpectQuery(`INSERT INTO credit_ledger`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(9), now))
	mock.ExpectCommit()

	entry, err := repo.Grant(context.Background(), "ws", models.CreditAdjustment, 40, nil, "")
	require.NoError(t, err)
	assert.Equal(t, int64(40), entry.BalanceAfter)
	assert.Equal(t, int64(9), entry.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

var listingRowColumns = []string{"id", "seller_workspace_id", "lead_id", "price_credits", "status", "title", "company",
	"seniority", "country", "intent_score", "buyer_workspace_id", "sold_at", "created_at"}

func TestListingPurchase(t *testing.T) {
	db, mock := newMockDB(t)
	repo := &ListingRepository{DB: db}
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM marketplace_listings WHERE id = \$1 FOR UPDATE`).
		WithArgs("lst").
		WillReturnRows(sqlmock.NewRows(listingRowColumns).
			AddRow("lst", "seller", "lead-1", int64(25), models.ListingActive, "CTO", "Acme", "c_level", "US", 80, nil, nil, now))
	mock.ExpectQuery(`FROM leads WHERE workspace_id = \$1 AND id = \$2`).
		WithArgs("seller", "lead-1").
		WillReturnRows(leadRow(sqlmock.NewRows(leadRowColumns), "lead-1", "seller", "ann@acme.io"))
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("buyer", "ann@acme.io").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery(`UPDATE credit_balances SET balance = balance - \$2`).
		WithArgs("buyer", int64(25)).
		WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow(int64(75)))
	mock.ExpectQuery(`INSERT INTO credit_ledger`).
		WithArgs("buyer", models.CreditMarketplacePurchase, int64(-25), int64(75), "listing:lst", "marketplace purchase").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(1), now))
	// 10% of 25 is 2.5, rounded down to 2: the seller receives 23.
	mock.ExpectQuery(`INSERT INTO credit_balances`).
		WithArgs("seller", int64(23)).
		WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow(int64(23)))
	mock.ExpectQuery(`INSERT INTO credit_ledger`).
		WithArgs("seller", models.CreditMarketplaceSale, int64(23), int64(23), "listing:lst", "marketplace sale").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(2), now))
	mock.ExpectQuery(`INSERT INTO leads`).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(now))
	mock.ExpectExec(`UPDATE marketplace_listings SET status = \$2`).
		WithArgs("lst", models.ListingSold, "buyer").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	p, err := repo.Purchase(context.Background(), "buyer", "lst", 1000)
	require.NoError(t, err)
	assert.Equal(t, int64(23), p.SellerCredits)
	assert.Equal(t, int64(75), p.BuyerBalance)
	assert.NotEmpty(t, p.LeadID)
	assert.NotEqual(t, "lead-1", p.LeadID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListingPurchaseRejectsOwnAndSold(t *testing.T) {
	db, mock := newMockDB(t)
	repo := &ListingRepository{DB: db}
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows(listingRowColumns).
			AddRow("lst", "ws", "lead-1", int64(25), models.ListingActive, "", "", "", "", 1, nil, nil, now))
	mock.ExpectRollback()
	_, err := repo.Purchase(context.Background(), "ws", "lst", 1000)
	assert.ErrorIs(t, err, models.ErrOwnListing)

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows(listingRowColumns).
			AddRow("lst", "seller", "lead-1", int64(25), models.ListingSold, "", "", "", "", 1, "other", now, now))
	mock.ExpectRollback()
	_, err = repo.Purchase(context.Background(), "ws", "lst", 1000)
	assert.ErrorIs(t, err, models.ErrListingUnavailable)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWebhookRecordDuplicate(t *testing.T) {
	db, mock := newMockDB(t)
	repo := &WebhookRepository{DB: db}

	mock.ExpectExec(`INSERT INTO webhook_events`).WillReturnResult(sqlmock.NewResult(0, 0))

	inserted, err := repo.Record(context.Background(), models.WebhookEvent{ID: "evt_1", Provider: "stripe", Type: "invoice.paid", Status: models.WebhookProcessed, ProcessedAt: time.Now()})
	require.NoError(t, err)
	assert.False(t, inserted)
}

func TestTicketUpdateStatusStale(t *testing.T) {
	db, mock := newMockDB(t)
	repo := &TicketRepository{DB: db}

	mock.ExpectExec(`UPDATE support_tickets SET status`).
		WithArgs("t1", models.TicketOpen, models.TicketPending).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateStatus(context.Background(), "t1", models.TicketOpen, models.TicketPending)
	assert.ErrorIs(t, err, models.ErrInvalidTransition)
}
