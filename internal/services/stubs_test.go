package services

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"sync"
	"time"

	"leadgenBack/internal/billing"
	"leadgenBack/internal/models"
	"leadgenBack/internal/payouts"
	"leadgenBack/internal/repositories"
)

type published struct {
	workspaceID string
	eventType   string
	data        interface{}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []published
}

func (p *recordingPublisher) Publish(workspaceID, eventType string, data interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, published{workspaceID, eventType, data})
}

type enqueued struct {
	jobType string
	payload interface{}
}

type recordingEnqueuer struct {
	jobs []enqueued
	err  error
}

func (e *recordingEnqueuer) Enqueue(_ context.Context, jobType string, payload interface{}) (string, error) {
	if e.err != nil {
		return "", e.err
	}
	e.jobs = append(e.jobs, enqueued{jobType, payload})
	return "job-" + strconv.Itoa(len(e.jobs)), nil
}

type memLeadStore struct {
	leads  map[string]models.Lead
	dedups []models.DedupEvent
	seq    int
}

func newMemLeadStore() *memLeadStore {
	return &memLeadStore{leads: map[string]models.Lead{}}
}

func (m *memLeadStore) Create(_ context.Context, lead models.Lead) (models.Lead, error) {
	for _, l := range m.leads {
		if l.WorkspaceID == lead.WorkspaceID && l.Email == lead.Email {
			return models.Lead{}, models.ErrDuplicateLead
		}
	}
	m.seq++
	lead.ID = "lead-" + strconv.Itoa(m.seq)
	lead.CreatedAt = time.Date(2024, 3, 1, 0, 0, 0, m.seq, time.UTC)
	m.leads[lead.ID] = lead
	return lead, nil
}

func (m *memLeadStore) Get(_ context.Context, workspaceID, id string) (models.Lead, error) {
	l, ok := m.leads[id]
	if !ok || l.WorkspaceID != workspaceID {
		return models.Lead{}, models.ErrNotFound
	}
	return l, nil
}

func (m *memLeadStore) List(_ context.Context, workspaceID string, f models.LeadFilter) ([]models.Lead, error) {
	var all []models.Lead
	for _, l := range m.leads {
		if l.WorkspaceID == workspaceID && (f.Status == "" || l.Status == f.Status) {
			all = append(all, l)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.Before(all[j].CreatedAt) })
	if f.Offset >= len(all) {
		return []models.Lead{}, nil
	}
	all = all[f.Offset:]
	if f.Limit > 0 && len(all) > f.Limit {
		all = all[:f.Limit]
	}
	return all, nil
}

func (m *memLeadStore) Update(_ context.Context, lead models.Lead) (models.Lead, error) {
	if _, ok := m.leads[lead.ID]; !ok {
		return models.Lead{}, models.ErrNotFound
	}
	m.leads[lead.ID] = lead
	return lead, nil
}

func (m *memLeadStore) UpdateStatus(_ context.Context, workspaceID, id, status string) error {
	l, ok := m.leads[id]
	if !ok || l.WorkspaceID != workspaceID {
		return models.ErrNotFound
	}
	l.Status = status
	m.leads[id] = l
	return nil
}

func (m *memLeadStore) Assign(_ context.Context, workspaceID, id string, agentID *string) error {
	l, ok := m.leads[id]
	if !ok || l.WorkspaceID != workspaceID {
		return models.ErrNotFound
	}
	l.OwnerAgentID = agentID
	m.leads[id] = l
	return nil
}

func (m *memLeadStore) UpdateScores(_ context.Context, workspaceID, id string, intent, freshness int) error {
	l, ok := m.leads[id]
	if !ok || l.WorkspaceID != workspaceID {
		return models.ErrNotFound
	}
	l.IntentScore, l.FreshnessScore = intent, freshness
	m.leads[id] = l
	return nil
}

func (m *memLeadStore) Delete(_ context.Context, workspaceID, id string) error {
	l, ok := m.leads[id]
	if !ok || l.WorkspaceID != workspaceID {
		return models.ErrNotFound
	}
	delete(m.leads, id)
	return nil
}

func (m *memLeadStore) RecordDedup(_ context.Context, workspaceID, email, source string) error {
	m.dedups = append(m.dedups, models.DedupEvent{WorkspaceID: workspaceID, Email: email, Source: source})
	return nil
}

func (m *memLeadStore) DedupStats(_ context.Context, workspaceID string, _ time.Time) ([]models.DedupStat, error) {
	counts := map[string]int{}
	for _, d := range m.dedups {
		if workspaceID == "" || d.WorkspaceID == workspaceID {
			counts[d.Source]++
		}
	}
	out := []models.DedupStat{}
	for src, n := range counts {
		out = append(out, models.DedupStat{Source: src, Duplicates: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Source < out[j].Source })
	return out, nil
}

type memAgentStore struct {
	agents map[string]models.Agent
	pick   *models.Agent
}

func (m *memAgentStore) Get(_ context.Context, workspaceID, id string) (models.Agent, error) {
	a, ok := m.agents[id]
	if !ok || a.WorkspaceID != workspaceID {
		return models.Agent{}, models.ErrNotFound
	}
	return a, nil
}

func (m *memAgentStore) PickForRouting(_ context.Context, _ string) (models.Agent, error) {
	if m.pick == nil {
		return models.Agent{}, models.ErrNotFound
	}
	return *m.pick, nil
}

type memCreditStore struct {
	balances map[string]int64
	refs     map[string]bool
	entries  []models.CreditEntry
	settings map[string]models.AutoRechargeSettings
	due      []string
	dueSince time.Time
	disabled map[string]string
}

func newMemCreditStore() *memCreditStore {
	return &memCreditStore{
		balances: map[string]int64{},
		refs:     map[string]bool{},
		settings: map[string]models.AutoRechargeSettings{},
		disabled: map[string]string{},
	}
}

func (m *memCreditStore) Balance(_ context.Context, workspaceID string) (models.CreditBalance, error) {
	return models.CreditBalance{WorkspaceID: workspaceID, Balance: m.balances[workspaceID]}, nil
}

func (m *memCreditStore) Ledger(_ context.Context, workspaceID string, _, _ int) ([]models.CreditEntry, error) {
	out := []models.CreditEntry{}
	for _, e := range m.entries {
		if e.WorkspaceID == workspaceID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memCreditStore) record(workspaceID, kind string, delta int64, reference *string, note string) (models.CreditEntry, error) {
	if reference != nil {
		key := workspaceID + "/" + *reference
		if m.refs[key] {
			return models.CreditEntry{}, models.ErrDuplicateRecord
		}
		m.refs[key] = true
	}
	m.balances[workspaceID] += delta
	e := models.CreditEntry{
		ID: int64(len(m.entries) + 1), WorkspaceID: workspaceID, Kind: kind, Delta: delta,
		BalanceAfter: m.balances[workspaceID], Reference: reference, Note: note,
	}
	m.entries = append(m.entries, e)
	return e, nil
}

func (m *memCreditStore) Grant(_ context.Context, workspaceID, kind string, amount int64, reference *string, note string) (models.CreditEntry, error) {
	return m.record(workspaceID, kind, amount, reference, note)
}

func (m *memCreditStore) Debit(_ context.Context, workspaceID, kind string, amount int64, reference *string, note string) (models.CreditEntry, error) {
	if m.balances[workspaceID] < amount {
		return models.CreditEntry{}, models.ErrInsufficientCredits
	}
	return m.record(workspaceID, kind, -amount, reference, note)
}

func (m *memCreditStore) GetAutoRecharge(_ context.Context, workspaceID string) (models.AutoRechargeSettings, error) {
	s, ok := m.settings[workspaceID]
	if !ok {
		return models.AutoRechargeSettings{}, models.ErrNotFound
	}
	return s, nil
}

func (m *memCreditStore) UpsertAutoRecharge(_ context.Context, s models.AutoRechargeSettings) error {
	m.settings[s.WorkspaceID] = s
	return nil
}

func (m *memCreditStore) DisableAutoRecharge(_ context.Context, workspaceID, reason string) error {
	m.disabled[workspaceID] = reason
	return nil
}

func (m *memCreditStore) DueAutoRecharges(_ context.Context, notBefore time.Time) ([]string, error) {
	m.dueSince = notBefore
	return m.due, nil
}

type memWorkspaceStore struct {
	workspaces map[string]models.Workspace
	ensured    int
}

func newMemWorkspaceStore() *memWorkspaceStore {
	return &memWorkspaceStore{workspaces: map[string]models.Workspace{}}
}

func (m *memWorkspaceStore) Ensure(_ context.Context, id, name string) error {
	m.ensured++
	if _, ok := m.workspaces[id]; !ok {
		m.workspaces[id] = models.Workspace{ID: id, Name: name}
	}
	return nil
}

func (m *memWorkspaceStore) Get(_ context.Context, id string) (models.Workspace, error) {
	ws, ok := m.workspaces[id]
	if !ok {
		return models.Workspace{}, models.ErrNotFound
	}
	return ws, nil
}

func (m *memWorkspaceStore) update(id string, fn func(*models.Workspace)) error {
	ws, ok := m.workspaces[id]
	if !ok {
		return models.ErrNotFound
	}
	fn(&ws)
	m.workspaces[id] = ws
	return nil
}

func (m *memWorkspaceStore) SetAPIKeyHash(_ context.Context, id, hash string) error {
	return m.update(id, func(ws *models.Workspace) { ws.APIKeyHash = hash })
}

func (m *memWorkspaceStore) SetReferrer(_ context.Context, id, partnerID string) error {
	return m.update(id, func(ws *models.Workspace) { ws.ReferredByPartnerID = &partnerID })
}

func (m *memWorkspaceStore) SetStripeCustomer(_ context.Context, id, customerID string) error {
	return m.update(id, func(ws *models.Workspace) { ws.StripeCustomerID = &customerID })
}

type stubCheckout struct {
	credits  int64
	customer *string
}

func (c *stubCheckout) CreateCheckoutSession(_ context.Context, _ string, credits int64, customerID *string) (billing.CheckoutSession, error) {
	c.credits = credits
	c.customer = customerID
	return billing.CheckoutSession{ID: "cs_test", URL: "https://checkout.test/cs_test"}, nil
}

type memListingStore struct {
	listings  map[string]models.Listing
	credits   *memCreditStore
	feeBps    int
	purchases int
}

func (m *memListingStore) Create(_ context.Context, seller, leadID string, price int64) (models.Listing, error) {
	l := models.Listing{ID: "lst-" + leadID, SellerWorkspaceID: seller, LeadID: leadID, PriceCredits: price, Status: models.ListingActive}
	m.listings[l.ID] = l
	return l, nil
}

func (m *memListingStore) Get(_ context.Context, id string) (models.Listing, error) {
	l, ok := m.listings[id]
	if !ok {
		return models.Listing{}, models.ErrNotFound
	}
	return l, nil
}

func (m *memListingStore) ListActive(_ context.Context, _ repositories.ListingFilter) ([]models.Listing, error) {
	out := []models.Listing{}
	for _, l := range m.listings {
		if l.Status == models.ListingActive {
			out = append(out, l)
		}
	}
	return out, nil
}

func (m *memListingStore) Withdraw(_ context.Context, seller, id string) error {
	l, ok := m.listings[id]
	if !ok || l.SellerWorkspaceID != seller {
		return models.ErrNotFound
	}
	l.Status = models.ListingWithdrawn
	m.listings[id] = l
	return nil
}

func (m *memListingStore) Purchase(_ context.Context, buyer, id string, feeBps int) (models.Purchase, error) {
	m.feeBps = feeBps
	l, ok := m.listings[id]
	if !ok || l.Status != models.ListingActive {
		return models.Purchase{}, models.ErrListingUnavailable
	}
	if l.SellerWorkspaceID == buyer {
		return models.Purchase{}, models.ErrOwnListing
	}
	if m.credits.balances[buyer] < l.PriceCredits {
		return models.Purchase{}, models.ErrInsufficientCredits
	}
	seller := l.PriceCredits - l.PriceCredits*int64(feeBps)/10000
	m.credits.balances[buyer] -= l.PriceCredits
	m.credits.balances[l.SellerWorkspaceID] += seller
	l.Status = models.ListingSold
	l.BuyerWorkspaceID = &buyer
	m.listings[id] = l
	m.purchases++
	return models.Purchase{
		ListingID: id, LeadID: l.LeadID, PriceCredits: l.PriceCredits,
		SellerCredits: seller, BuyerBalance: m.credits.balances[buyer],
	}, nil
}

type memSegmentStore struct {
	segments map[string]models.Segment
}

func (m *memSegmentStore) Create(_ context.Context, s models.Segment) (models.Segment, error) {
	s.ID = "seg-" + strconv.Itoa(len(m.segments)+1)
	m.segments[s.ID] = s
	return s, nil
}

func (m *memSegmentStore) Get(_ context.Context, workspaceID, id string) (models.Segment, error) {
	s, ok := m.segments[id]
	if !ok || s.WorkspaceID != workspaceID {
		return models.Segment{}, models.ErrNotFound
	}
	return s, nil
}

func (m *memSegmentStore) List(_ context.Context, workspaceID string) ([]models.Segment, error) {
	out := []models.Segment{}
	for _, s := range m.segments {
		if s.WorkspaceID == workspaceID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memSegmentStore) ListActive(_ context.Context) ([]models.Segment, error) {
	out := []models.Segment{}
	for _, s := range m.segments {
		if s.Active {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memSegmentStore) Update(_ context.Context, s models.Segment) (models.Segment, error) {
	if _, ok := m.segments[s.ID]; !ok {
		return models.Segment{}, models.ErrNotFound
	}
	m.segments[s.ID] = s
	return s, nil
}

func (m *memSegmentStore) Delete(_ context.Context, _, id string) error {
	delete(m.segments, id)
	return nil
}

type memUploadStore struct {
	uploads map[string]models.BulkUpload
	failed  map[string]string
}

func (m *memUploadStore) Create(_ context.Context, u models.BulkUpload) (models.BulkUpload, error) {
	u.Status = models.UploadPending
	m.uploads[u.ID] = u
	return u, nil
}

func (m *memUploadStore) Get(_ context.Context, workspaceID, id string) (models.BulkUpload, error) {
	u, ok := m.uploads[id]
	if !ok || u.WorkspaceID != workspaceID {
		return models.BulkUpload{}, models.ErrNotFound
	}
	return u, nil
}

func (m *memUploadStore) List(_ context.Context, workspaceID string, _, _ int) ([]models.BulkUpload, error) {
	out := []models.BulkUpload{}
	for _, u := range m.uploads {
		if u.WorkspaceID == workspaceID {
			out = append(out, u)
		}
	}
	return out, nil
}

func (m *memUploadStore) Fail(_ context.Context, id, reason string, _ time.Time) error {
	m.failed[id] = reason
	return nil
}

type memDraftStore struct {
	drafts []models.ContentDraft
	err    error
}

func (m *memDraftStore) Create(_ context.Context, d models.ContentDraft) (models.ContentDraft, error) {
	if m.err != nil {
		return models.ContentDraft{}, m.err
	}
	d.ID = "draft-" + strconv.Itoa(len(m.drafts)+1)
	m.drafts = append(m.drafts, d)
	return d, nil
}

func (m *memDraftStore) List(_ context.Context, workspaceID, _ string, _, _ int) ([]models.ContentDraft, error) {
	return m.drafts, nil
}

func (m *memDraftStore) Delete(_ context.Context, _, _ string) error { return nil }

type stubGenerator struct {
	prompt string
	body   string
	err    error
}

func (g *stubGenerator) Generate(_ context.Context, prompt string) (string, error) {
	g.prompt = prompt
	return g.body, g.err
}

type memTicketStore struct {
	tickets map[string]models.SupportTicket
}

func (m *memTicketStore) Create(_ context.Context, t models.SupportTicket) (models.SupportTicket, error) {
	t.ID = "tkt-" + strconv.Itoa(len(m.tickets)+1)
	t.Status = models.TicketOpen
	m.tickets[t.ID] = t
	return t, nil
}

func (m *memTicketStore) Get(_ context.Context, id string) (models.SupportTicket, error) {
	t, ok := m.tickets[id]
	if !ok {
		return models.SupportTicket{}, models.ErrNotFound
	}
	return t, nil
}

func (m *memTicketStore) ListByRequester(_ context.Context, workspaceID, requesterID string, _, _ int) ([]models.SupportTicket, error) {
	out := []models.SupportTicket{}
	for _, t := range m.tickets {
		if t.WorkspaceID == workspaceID && t.RequesterID == requesterID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *memTicketStore) ListAll(_ context.Context, status string, _, _ int) ([]models.SupportTicket, error) {
	out := []models.SupportTicket{}
	for _, t := range m.tickets {
		if status == "" || t.Status == status {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *memTicketStore) AddReply(_ context.Context, r models.TicketReply) (models.TicketReply, error) {
	t := m.tickets[r.TicketID]
	r.ID = int64(len(t.Replies) + 1)
	t.Replies = append(t.Replies, r)
	m.tickets[r.TicketID] = t
	return r, nil
}

func (m *memTicketStore) UpdateStatus(_ context.Context, id, from, to string) error {
	t, ok := m.tickets[id]
	if !ok {
		return models.ErrNotFound
	}
	if t.Status != from {
		return models.ErrInvalidTransition
	}
	t.Status = to
	m.tickets[id] = t
	return nil
}

type recordingTicketNotifier struct {
	sent []models.TicketReply
	err  error
}

func (n *recordingTicketNotifier) TicketReply(_ context.Context, _ models.SupportTicket, reply models.TicketReply) error {
	n.sent = append(n.sent, reply)
	return n.err
}

type stubQueueStats struct {
	depth, dead int64
	err         error
}

func (q stubQueueStats) Depth(context.Context) (int64, error)       { return q.depth, q.err }
func (q stubQueueStats) DeadLetters(context.Context) (int64, error) { return q.dead, q.err }

type stubWebhookFailures struct {
	count int
	since time.Time
}

func (w *stubWebhookFailures) CountFailedSince(_ context.Context, since time.Time) (int, error) {
	w.since = since
	return w.count, nil
}

type stubPartners map[string]payouts.Partner

func (p stubPartners) GetPartner(_ context.Context, id string) (payouts.Partner, error) {
	partner, ok := p[id]
	if !ok {
		return payouts.Partner{}, payouts.ErrNotFound
	}
	return partner, nil
}

type nopLogger struct{}

func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Errorf(string, ...interface{}) {}

var errBoom = errors.New("boom")

func fixedClock(t time.Time) func() time.Time { return func() time.Time { return t } }
