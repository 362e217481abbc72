package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leadgenBack/internal/models"
	"leadgenBack/internal/payouts"
)

func TestContentGenerateChargesOneCredit(t *testing.T) {
	credits := newMemCreditStore()
	credits.balances["ws-1"] = 3
	leads := newMemLeadStore()
	lead, err := leads.Create(context.Background(), models.Lead{
		WorkspaceID: "ws-1", Email: "ana@acme.io", FirstName: "Ana", Title: "CTO", Company: "Acme",
	})
	require.NoError(t, err)
	gen := &stubGenerator{body: "Hi Ana"}
	drafts := &memDraftStore{}
	svc := &ContentService{Drafts: drafts, Credits: credits, Generator: gen, Leads: leads, Logger: nopLogger{}}

	draft, err := svc.Generate(context.Background(), models.Principal{UserID: "u-1", WorkspaceID: "ws-1"}, models.ContentRequest{
		Kind: "cold_email", Brief: " Book a demo ", Tone: "friendly", LeadID: &lead.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, "Hi Ana", draft.Body)
	assert.Equal(t, "Book a demo", draft.Brief)
	assert.Equal(t, "u-1", draft.CreatedBy)
	assert.Equal(t, int64(2), credits.balances["ws-1"])
	assert.Contains(t, gen.prompt, "Ana")
	assert.Contains(t, gen.prompt, "friendly tone")
	require.Len(t, credits.entries, 1)
	assert.True(t, strings.HasPrefix(*credits.entries[0].Reference, "content:"))
}

func TestContentGenerateRefundsOnFailure(t *testing.T) {
	credits := newMemCreditStore()
	credits.balances["ws-1"] = 1
	drafts := &memDraftStore{}
	svc := &ContentService{Drafts: drafts, Credits: credits, Generator: &stubGenerator{err: errBoom}, Logger: nopLogger{}}
	p := models.Principal{UserID: "u-1", WorkspaceID: "ws-1"}

	_, err := svc.Generate(context.Background(), p, models.ContentRequest{Kind: "follow_up", Brief: "ping"})
	require.ErrorIs(t, err, errBoom)
	assert.Equal(t, int64(1), credits.balances["ws-1"])
	require.Len(t, credits.entries, 2)
	assert.Equal(t, models.CreditRefund, credits.entries[1].Kind)
	assert.Equal(t, *credits.entries[0].Reference+":refund", *credits.entries[1].Reference)
	assert.Empty(t, drafts.drafts)
}

func TestContentGenerateRefundsWhenDraftIsNotSaved(t *testing.T) {
	credits := newMemCreditStore()
	credits.balances["ws-1"] = 2
	drafts := &memDraftStore{err: errBoom}
	svc := &ContentService{Drafts: drafts, Credits: credits, Generator: &stubGenerator{body: "Hello"}, Logger: nopLogger{}}

	_, err := svc.Generate(context.Background(), models.Principal{UserID: "u-1", WorkspaceID: "ws-1"}, models.ContentRequest{Kind: "cold_email", Brief: "demo"})
	require.ErrorIs(t, err, errBoom)
	assert.Equal(t, int64(2), credits.balances["ws-1"])
	require.Len(t, credits.entries, 2)
	assert.Equal(t, models.CreditRefund, credits.entries[1].Kind)
	assert.Equal(t, *credits.entries[0].Reference+":refund", *credits.entries[1].Reference)
}

func TestContentGenerateGuards(t *testing.T) {
	credits := newMemCreditStore()
	p := models.Principal{WorkspaceID: "ws-1"}
	svc := &ContentService{Drafts: &memDraftStore{}, Credits: credits, Generator: &stubGenerator{body: "x"}}
	ctx := context.Background()

	_, err := svc.Generate(ctx, p, models.ContentRequest{Kind: "poem", Brief: "x"})
	assert.ErrorIs(t, err, models.ErrInvalidInput)
	_, err = svc.Generate(ctx, p, models.ContentRequest{Kind: "cold_email", Brief: "  "})
	assert.ErrorIs(t, err, models.ErrInvalidInput)
	_, err = svc.Generate(ctx, p, models.ContentRequest{Kind: "cold_email", Brief: "x"})
	assert.ErrorIs(t, err, models.ErrInsufficientCredits)

	svc.Generator = nil
	_, err = svc.Generate(ctx, p, models.ContentRequest{Kind: "cold_email", Brief: "x"})
	assert.ErrorIs(t, err, models.ErrFeatureDisabled)
}

func TestTicketLifecycle(t *testing.T) {
	store := &memTicketStore{tickets: map[string]models.SupportTicket{}}
	notifier := &recordingTicketNotifier{err: errors.New("smtp down")}
	svc := &TicketService{Tickets: store, Notifier: notifier, Logger: nopLogger{}}
	ctx := context.Background()
	member := models.Principal{UserID: "u-1", WorkspaceID: "ws-1", Role: models.RoleMember, Email: "U1@Acme.io"}
	other := models.Principal{UserID: "u-2", WorkspaceID: "ws-1", Role: models.RoleMember}
	admin := models.Principal{UserID: "root", Role: models.RoleAdmin}

	_, err := svc.Create(ctx, member, models.SupportTicket{Subject: " ", Body: "x"})
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	ticket, err := svc.Create(ctx, member, models.SupportTicket{Subject: "Export broken", Body: "It times out"})
	require.NoError(t, err)
	assert.Equal(t, "normal", ticket.Priority)
	assert.Equal(t, "u1@acme.io", ticket.RequesterEmail)

	_, err = svc.Get(ctx, other, ticket.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)
	_, err = svc.Get(ctx, admin, ticket.ID)
	require.NoError(t, err)

	// Email failures do not fail the reply.
	reply, err := svc.Reply(ctx, admin, ticket.ID, "Looking into it")
	require.NoError(t, err)
	assert.Equal(t, "root", reply.AuthorID)
	assert.Len(t, notifier.sent, 1)

	require.NoError(t, svc.ChangeStatus(ctx, ticket.ID, models.TicketClosed))
	_, err = svc.Reply(ctx, admin, ticket.ID, "one more thing")
	assert.ErrorIs(t, err, models.ErrInvalidTransition)
	assert.ErrorIs(t, svc.ChangeStatus(ctx, ticket.ID, models.TicketPending), models.ErrInvalidTransition)
	require.NoError(t, svc.ChangeStatus(ctx, ticket.ID, models.TicketOpen))

	_, err = svc.ListAll(ctx, "resolved", 10, 0)
	assert.ErrorIs(t, err, models.ErrInvalidInput)
	open, err := svc.ListAll(ctx, models.TicketOpen, 10, 0)
	require.NoError(t, err)
	assert.Len(t, open, 1)
}

func TestHealthReport(t *testing.T) {
	now := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	webhooks := &stubWebhookFailures{count: 3}
	svc := &HealthService{
		DB:       PingFunc(func(context.Context) error { return nil }),
		Redis:    PingFunc(func(context.Context) error { return nil }),
		Queue:    stubQueueStats{depth: 4, dead: 1},
		Webhooks: webhooks,
		now:      fixedClock(now),
	}

	report := svc.Report(context.Background())
	assert.Equal(t, HealthOK, report.Status)
	assert.Equal(t, int64(4), report.QueueDepth)
	assert.Equal(t, int64(1), report.DeadLetters)
	assert.Equal(t, 3, report.WebhookFailures)
	assert.Equal(t, now.Add(-24*time.Hour), webhooks.since)
	assert.Equal(t, HealthOK, report.Checks["database"])

	svc.Redis = PingFunc(func(context.Context) error { return errors.New("connection refused") })
	report = svc.Report(context.Background())
	assert.Equal(t, HealthDegraded, report.Status)
	assert.Equal(t, "connection refused", report.Checks["redis"])
	assert.Equal(t, HealthOK, report.Checks["database"])
}

func TestWorkspaceAPIKeyRoundTrip(t *testing.T) {
	store := newMemWorkspaceStore()
	svc := &WorkspaceService{Workspaces: store}
	ctx := context.Background()

	key, err := svc.RotateAPIKey(ctx, "ws-1")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(key, "ws-1."))
	assert.NotContains(t, store.workspaces["ws-1"].APIKeyHash, strings.TrimPrefix(key, "ws-1."))

	p, err := svc.AuthenticateAPIKey(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "ws-1", p.WorkspaceID)
	assert.Equal(t, models.RoleMember, p.Role)

	for _, bad := range []string{"", "ws-1", "ws-1.", "ws-1.deadbeef", "ws-404." + strings.TrimPrefix(key, "ws-1.")} {
		_, err := svc.AuthenticateAPIKey(ctx, bad)
		assert.ErrorIs(t, err, models.ErrInvalidCredentials, "key %q", bad)
	}

	rotated, err := svc.RotateAPIKey(ctx, "ws-1")
	require.NoError(t, err)
	_, err = svc.AuthenticateAPIKey(ctx, key)
	assert.ErrorIs(t, err, models.ErrInvalidCredentials)
	_, err = svc.AuthenticateAPIKey(ctx, rotated)
	require.NoError(t, err)

	assert.Equal(t, 1, store.ensured)
}

func TestWorkspaceAttachReferrer(t *testing.T) {
	store := newMemWorkspaceStore()
	svc := &WorkspaceService{
		Workspaces: store,
		Partners:   stubPartners{"p-1": payouts.Partner{ID: "p-1", Active: true}},
	}
	ctx := context.Background()

	assert.ErrorIs(t, svc.AttachReferrer(ctx, "ws-1", "p-404"), payouts.ErrNotFound)
	require.NoError(t, svc.AttachReferrer(ctx, "ws-1", "p-1"))
	require.NotNil(t, store.workspaces["ws-1"].ReferredByPartnerID)
	assert.Equal(t, "p-1", *store.workspaces["ws-1"].ReferredByPartnerID)
}
