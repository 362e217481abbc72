package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bmizerany/pat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leadgenBack/internal/billing"
	"leadgenBack/internal/enrichment"
	"leadgenBack/internal/models"
	"leadgenBack/internal/payouts"
	"leadgenBack/internal/services"
	"leadgenBack/internal/storage"
)

var member = models.Principal{UserID: "u-1", WorkspaceID: "ws-1", Role: models.RoleMember, Email: "u1@acme.io"}

func authed(req *http.Request, p models.Principal) *http.Request {
	return req.WithContext(WithPrincipal(req.Context(), p))
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst), rec.Body.String())
}

func TestErrorStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("lead x: %w", models.ErrNotFound), http.StatusNotFound},
		{payouts.ErrNotFound, http.StatusNotFound},
		{models.ErrDuplicateLead, http.StatusConflict},
		{models.ErrListingUnavailable, http.StatusConflict},
		{models.ErrInvalidTransition, http.StatusConflict},
		{models.ErrInsufficientCredits, http.StatusPaymentRequired},
		{fmt.Errorf("%w: bad", models.ErrInvalidInput), http.StatusBadRequest},
		{models.ErrInvalidUpload, http.StatusBadRequest},
		{models.ErrOwnListing, http.StatusBadRequest},
		{models.ErrInvalidCredentials, http.StatusUnauthorized},
		{models.ErrForbidden, http.StatusForbidden},
		{models.ErrFeatureDisabled, http.StatusServiceUnavailable},
		{&billing.StripeError{StatusCode: 402, Message: "declined"}, http.StatusPaymentRequired},
		{&billing.StripeError{StatusCode: 500}, http.StatusBadGateway},
		{&billing.StripeError{StatusCode: 401, Message: "invalid api key"}, http.StatusBadGateway},
		{&billing.StripeError{StatusCode: 403}, http.StatusBadGateway},
		{&enrichment.APIError{StatusCode: 401}, http.StatusBadGateway},
		{fmt.Errorf("search: %w", &enrichment.APIError{StatusCode: 429}), http.StatusTooManyRequests},
		{&enrichment.APIError{StatusCode: 503}, http.StatusBadGateway},
		{errors.New("db gone"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, errorStatus(c.err), c.err.Error())
	}
}

func TestWriteServiceErrorVendorAuthFailureIsBadGateway(t *testing.T) {
	rec := httptest.NewRecorder()
	writeServiceError(rec, nil, &billing.StripeError{StatusCode: http.StatusUnauthorized, Message: "invalid api key"})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestWriteServiceErrorHidesInternalErrors(t *testing.T) {
	rec := httptest.NewRecorder()
	writeServiceError(rec, nil, errors.New("pq: connection reset"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "pq:")

	rec = httptest.NewRecorder()
	writeServiceError(rec, nil, fmt.Errorf("%w: email is required", models.ErrInvalidInput))
	var body map[string]string
	decodeBody(t, rec, &body)
	assert.Equal(t, "invalid input: email is required", body["error"])
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}

func TestParsePaging(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?limit=20&offset=40", nil)
	limit, offset, err := parsePaging(req)
	require.NoError(t, err)
	assert.Equal(t, 20, limit)
	assert.Equal(t, 40, offset)

	limit, offset, err = parsePaging(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.Equal(t, 50, limit)
	assert.Equal(t, 0, offset)

	for _, q := range []string{"limit=0", "limit=501", "limit=x", "offset=-1"} {
		_, _, err := parsePaging(httptest.NewRequest(http.MethodGet, "/?"+q, nil))
		assert.Error(t, err, q)
	}
}

type memLeads struct {
	byEmail map[string]models.Lead
	dedups  int
}

func (m *memLeads) Create(_ context.Context, l models.Lead) (models.Lead, error) {
	if _, ok := m.byEmail[l.WorkspaceID+"/"+l.Email]; ok {
		return models.Lead{}, models.ErrDuplicateLead
	}
	l.ID = fmt.Sprintf("lead-%d", len(m.byEmail)+1)
	m.byEmail[l.WorkspaceID+"/"+l.Email] = l
	return l, nil
}

func (m *memLeads) Get(_ context.Context, ws, id string) (models.Lead, error) {
	for _, l := range m.byEmail {
		if l.ID == id && l.WorkspaceID == ws {
			return l, nil
		}
	}
	return models.Lead{}, models.ErrNotFound
}

func (m *memLeads) List(context.Context, string, models.LeadFilter) ([]models.Lead, error) {
	return []models.Lead{}, nil
}
func (m *memLeads) Update(_ context.Context, l models.Lead) (models.Lead, error) { return l, nil }
func (m *memLeads) UpdateStatus(context.Context, string, string, string) error   { return nil }
func (m *memLeads) Assign(context.Context, string, string, *string) error        { return nil }
func (m *memLeads) UpdateScores(context.Context, string, string, int, int) error { return nil }
func (m *memLeads) Delete(context.Context, string, string) error                 { return nil }
func (m *memLeads) RecordDedup(context.Context, string, string, string) error {
	m.dedups++
	return nil
}
func (m *memLeads) DedupStats(context.Context, string, time.Time) ([]models.DedupStat, error) {
	return []models.DedupStat{}, nil
}

func TestLeadHandlerCreate(t *testing.T) {
	store := &memLeads{byEmail: map[string]models.Lead{}}
	h := &LeadHandler{Service: &services.LeadService{Leads: store}}
	body := `{"email":"Jo@Acme.io","first_name":"Jo","title":"Head of Growth"}`

	rec := httptest.NewRecorder()
	h.Create(rec, httptest.NewRequest(http.MethodPost, "/api/leads", strings.NewReader(body)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	h.Create(rec, authed(httptest.NewRequest(http.MethodPost, "/api/leads", strings.NewReader(body)), member))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var lead models.Lead
	decodeBody(t, rec, &lead)
	assert.Equal(t, "jo@acme.io", lead.Email)
	assert.Equal(t, models.LeadSourceManual, lead.Source)
	assert.Equal(t, "director", lead.Seniority)

	rec = httptest.NewRecorder()
	h.Ingest(rec, authed(httptest.NewRequest(http.MethodPost, "/api/public/leads", strings.NewReader(body)), member))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, 1, store.dedups)

	rec = httptest.NewRecorder()
	h.Create(rec, authed(httptest.NewRequest(http.MethodPost, "/api/leads", strings.NewReader(`{"email":"not-an-email"}`)), member))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.Create(rec, authed(httptest.NewRequest(http.MethodPost, "/api/leads", strings.NewReader(`{"email":"a@b.co","bogus":1}`)), member))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type memAgents struct {
	items map[string]models.Agent
}

func (m *memAgents) Create(_ context.Context, ws string, a models.Agent) (models.Agent, error) {
	a.ID = "agent-1"
	a.WorkspaceID = ws
	m.items[a.ID] = a
	return a, nil
}

func (m *memAgents) Get(_ context.Context, ws, id string) (models.Agent, error) {
	a, ok := m.items[id]
	if !ok || a.WorkspaceID != ws {
		return models.Agent{}, models.ErrNotFound
	}
	return a, nil
}

func (m *memAgents) List(_ context.Context, ws string, _, _ int) ([]models.Agent, error) {
	out := []models.Agent{}
	for _, a := range m.items {
		if a.WorkspaceID == ws {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memAgents) Update(ctx context.Context, ws string, a models.Agent) (models.Agent, error) {
	if _, err := m.Get(ctx, ws, a.ID); err != nil {
		return models.Agent{}, err
	}
	a.WorkspaceID = ws
	m.items[a.ID] = a
	return a, nil
}

func (m *memAgents) Delete(ctx context.Context, ws, id string) error {
	if _, err := m.Get(ctx, ws, id); err != nil {
		return err
	}
	delete(m.items, id)
	return nil
}

func TestCRUDHandlerRoutesByWorkspace(t *testing.T) {
	store := &memAgents{items: map[string]models.Agent{}}
	h := NewAgentHandler(store, nil)
	withMember := func(next http.HandlerFunc) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { next(w, authed(r, member)) })
	}
	mux := pat.New()
	mux.Post("/api/agents", withMember(h.Create))
	mux.Get("/api/agents", withMember(h.List))
	mux.Get("/api/agents/:id", withMember(h.Get))
	mux.Put("/api/agents/:id", withMember(h.Update))
	mux.Del("/api/agents/:id", withMember(h.Delete))
	srv := httptest.NewServer(mux)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/agents", "application/json",
		strings.NewReader(`{"name":"Rep","email":"rep@acme.io","active":true,"max_open_leads":5}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	req, _ := http.NewRequest(http.MethodPut, srv.URL+"/api/agents/agent-1",
		strings.NewReader(`{"name":"Rep 2","email":"rep@acme.io","active":false}`))
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Rep 2", store.items["agent-1"].Name)

	resp, err = http.Get(srv.URL + "/api/agents/agent-9")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	req, _ = http.NewRequest(http.MethodDelete, srv.URL+"/api/agents/agent-1", nil)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Empty(t, store.items)
}

type stubProcessor struct {
	out     billing.Outcome
	err     error
	payload []byte
	sig     string
}

func (p *stubProcessor) Process(_ context.Context, payload []byte, sig string) (billing.Outcome, error) {
	p.payload, p.sig = payload, sig
	return p.out, p.err
}

func TestWebhookHandler(t *testing.T) {
	post := func(h *WebhookHandler, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/webhooks/stripe", strings.NewReader(body))
		req.Header.Set("Stripe-Signature", "t=1,v1=abc")
		rec := httptest.NewRecorder()
		h.Stripe(rec, req)
		return rec
	}

	proc := &stubProcessor{err: fmt.Errorf("%w: no signatures found", billing.ErrInvalidSignature)}
	rec := post(&WebhookHandler{Processor: proc}, `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	proc = &stubProcessor{out: billing.Outcome{EventID: "evt_1", Status: models.WebhookFailed}}
	rec = post(&WebhookHandler{Processor: proc}, `{"id":"evt_1"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `{"id":"evt_1"}`, string(proc.payload))
	assert.Equal(t, "t=1,v1=abc", proc.sig)

	proc = &stubProcessor{out: billing.Outcome{EventID: "evt_1", Duplicate: true, Status: "duplicate"}}
	rec = post(&WebhookHandler{Processor: proc}, `{"id":"evt_1"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"duplicate"}`, rec.Body.String())

	rec = post(&WebhookHandler{Processor: &stubProcessor{}}, strings.Repeat("x", maxWebhookBody+1))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type memUploads struct {
	uploads map[string]models.BulkUpload
}

func (m *memUploads) Create(_ context.Context, u models.BulkUpload) (models.BulkUpload, error) {
	u.Status = models.UploadPending
	m.uploads[u.ID] = u
	return u, nil
}

func (m *memUploads) Get(_ context.Context, ws, id string) (models.BulkUpload, error) {
	u, ok := m.uploads[id]
	if !ok || u.WorkspaceID != ws {
		return models.BulkUpload{}, models.ErrNotFound
	}
	return u, nil
}

func (m *memUploads) List(context.Context, string, int, int) ([]models.BulkUpload, error) {
	return nil, nil
}

func (m *memUploads) Fail(context.Context, string, string, time.Time) error { return nil }

type countingQueue struct{ n int }

func (q *countingQueue) Enqueue(context.Context, string, interface{}) (string, error) {
	q.n++
	return "job-1", nil
}

func multipartBody(t *testing.T, field, name, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, name)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestUploadHandlerCreate(t *testing.T) {
	queue := &countingQueue{}
	uploads := &memUploads{uploads: map[string]models.BulkUpload{}}
	h := &UploadHandler{Service: &services.UploadService{Uploads: uploads, Files: storage.NewMemory(), Jobs: queue}}

	body, ct := multipartBody(t, "file", "leads.csv", "email\na@b.co\n")
	req := authed(httptest.NewRequest(http.MethodPost, "/api/uploads", body), member)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	h.Create(rec, req)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	var upload models.BulkUpload
	decodeBody(t, rec, &upload)
	assert.Equal(t, "leads.csv", upload.FileName)
	assert.Equal(t, models.UploadPending, upload.Status)
	assert.Equal(t, 1, queue.n)

	body, ct = multipartBody(t, "file", "leads.txt", "email\n")
	req = authed(httptest.NewRequest(http.MethodPost, "/api/uploads", body), member)
	req.Header.Set("Content-Type", ct)
	rec = httptest.NewRecorder()
	h.Create(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	body, ct = multipartBody(t, "other", "leads.csv", "email\n")
	req = authed(httptest.NewRequest(http.MethodPost, "/api/uploads", body), member)
	req.Header.Set("Content-Type", ct)
	rec = httptest.NewRecorder()
	h.Create(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminHealthReportStatus(t *testing.T) {
	healthy := &AdminHandler{Health: &services.HealthService{
		DB: services.PingFunc(func(context.Context) error { return nil }),
	}}
	rec := httptest.NewRecorder()
	healthy.HealthReport(rec, httptest.NewRequest(http.MethodGet, "/api/admin/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	degraded := &AdminHandler{Health: &services.HealthService{
		DB: services.PingFunc(func(context.Context) error { return errors.New("down") }),
	}}
	rec = httptest.NewRecorder()
	degraded.HealthReport(rec, httptest.NewRequest(http.MethodGet, "/api/admin/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var report models.HealthReport
	decodeBody(t, rec, &report)
	assert.Equal(t, services.HealthDegraded, report.Status)
	assert.Equal(t, "down", report.Checks["database"])

	rec = httptest.NewRecorder()
	Liveness(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestTicketStatusValidation(t *testing.T) {
	h := &TicketHandler{Service: &services.TicketService{}}
	req := httptest.NewRequest(http.MethodPost, "/api/admin/tickets/t-1/status?:id=t-1", strings.NewReader(`{"status":"resolved"}`))
	rec := httptest.NewRecorder()
	h.ChangeStatus(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "status failed oneof")
}
