package main

import (
	"net/http"

	"github.com/bmizerany/pat"
	"github.com/justinas/alice"

	"leadgenBack/internal/handlers"
	"leadgenBack/internal/metrics"
	"leadgenBack/internal/ratelimit"
)

func (app *application) routes() http.Handler {
	limit := ratelimit.Middleware(app.limiter, rateLimitKey, app.logger, metrics.RecordRateLimited)

	standardMiddleware := alice.New(app.recoverPanic, app.logRequest, metrics.InstrumentHandler, secureHeaders, makeResponseJSON)
	authMiddleware := standardMiddleware.Append(app.authenticate, limit)
	adminAuthMiddleware := authMiddleware.Append(requireAdmin)
	apiKeyMiddleware := standardMiddleware.Append(app.apiKeyAuth, limit)

	mux := pat.New()

	mux.Get("/health", standardMiddleware.ThenFunc(handlers.Liveness))
	mux.Get("/metrics", metrics.Handler())
	mux.Get("/ws", http.HandlerFunc(app.hub.ServeWS))

	// Leads
	mux.Post("/api/leads", authMiddleware.ThenFunc(app.leadHandler.Create))
	mux.Get("/api/leads", authMiddleware.ThenFunc(app.leadHandler.List))
	mux.Get("/api/leads/export", authMiddleware.ThenFunc(app.leadHandler.Export))
	mux.Get("/api/leads/:id", authMiddleware.ThenFunc(app.leadHandler.Get))
	mux.Put("/api/leads/:id", authMiddleware.ThenFunc(app.leadHandler.Update))
	mux.Del("/api/leads/:id", authMiddleware.ThenFunc(app.leadHandler.Delete))
	mux.Post("/api/leads/:id/status", authMiddleware.ThenFunc(app.leadHandler.UpdateStatus))
	mux.Post("/api/leads/:id/assign", authMiddleware.ThenFunc(app.leadHandler.Assign))
	mux.Post("/api/leads/:id/rescore", authMiddleware.ThenFunc(app.leadHandler.Rescore))
	mux.Post("/api/public/leads", apiKeyMiddleware.ThenFunc(app.leadHandler.Ingest))

	// CRM
	crud := func(prefix string, h crudRoutes) {
		mux.Post(prefix, authMiddleware.ThenFunc(h.Create))
		mux.Get(prefix, authMiddleware.ThenFunc(h.List))
		mux.Get(prefix+"/:id", authMiddleware.ThenFunc(h.Get))
		mux.Put(prefix+"/:id", authMiddleware.ThenFunc(h.Update))
		mux.Del(prefix+"/:id", authMiddleware.ThenFunc(h.Delete))
	}
	crud("/api/agents", app.agentHandler)
	crud("/api/campaigns", app.campaignHandler)
	crud("/api/contacts", app.contactHandler)
	crud("/api/companies", app.companyHandler)
	// The board route must be registered before /api/deals/:id.
	mux.Get("/api/deals/board", authMiddleware.ThenFunc(app.dealBoardHandler.Board))
	mux.Post("/api/deals/:id/stage", authMiddleware.ThenFunc(app.dealBoardHandler.MoveStage))
	crud("/api/deals", app.dealHandler)

	// Credits
	mux.Get("/api/credits", authMiddleware.ThenFunc(app.creditHandler.Balance))
	mux.Get("/api/credits/ledger", authMiddleware.ThenFunc(app.creditHandler.Ledger))
	mux.Post("/api/credits/checkout", authMiddleware.ThenFunc(app.creditHandler.Checkout))
	mux.Get("/api/credits/auto-recharge", authMiddleware.ThenFunc(app.creditHandler.GetAutoRecharge))
	mux.Put("/api/credits/auto-recharge", authMiddleware.ThenFunc(app.creditHandler.PutAutoRecharge))

	// Marketplace
	mux.Get("/api/marketplace/listings", authMiddleware.ThenFunc(app.marketplaceHandler.Browse))
	mux.Post("/api/marketplace/listings", authMiddleware.ThenFunc(app.marketplaceHandler.Create))
	mux.Del("/api/marketplace/listings/:id", authMiddleware.ThenFunc(app.marketplaceHandler.Withdraw))
	mux.Post("/api/marketplace/listings/:id/purchase", authMiddleware.ThenFunc(app.marketplaceHandler.Purchase))

	// Segments
	mux.Post("/api/segments", authMiddleware.ThenFunc(app.segmentHandler.Create))
	mux.Get("/api/segments", authMiddleware.ThenFunc(app.segmentHandler.List))
	mux.Get("/api/segments/:id", authMiddleware.ThenFunc(app.segmentHandler.Get))
	mux.Put("/api/segments/:id", authMiddleware.ThenFunc(app.segmentHandler.Update))
	mux.Del("/api/segments/:id", authMiddleware.ThenFunc(app.segmentHandler.Delete))
	mux.Post("/api/segments/:id/pull", authMiddleware.ThenFunc(app.segmentHandler.Pull))

	// Uploads
	mux.Post("/api/uploads", authMiddleware.ThenFunc(app.uploadHandler.Create))
	mux.Get("/api/uploads", authMiddleware.ThenFunc(app.uploadHandler.List))
	mux.Get("/api/uploads/:id", authMiddleware.ThenFunc(app.uploadHandler.Get))

	// Content studio
	mux.Post("/api/content/generate", authMiddleware.ThenFunc(app.contentHandler.Generate))
	mux.Get("/api/content", authMiddleware.ThenFunc(app.contentHandler.List))
	mux.Del("/api/content/:id", authMiddleware.ThenFunc(app.contentHandler.Delete))

	// Support
	mux.Post("/api/tickets", authMiddleware.ThenFunc(app.ticketHandler.Create))
	mux.Get("/api/tickets", authMiddleware.ThenFunc(app.ticketHandler.ListMine))
	mux.Get("/api/tickets/:id", authMiddleware.ThenFunc(app.ticketHandler.Get))

	// Workspace
	mux.Get("/api/workspace", authMiddleware.ThenFunc(app.workspaceHandler.Get))
	mux.Post("/api/workspace/api-key", authMiddleware.ThenFunc(app.workspaceHandler.RotateAPIKey))
	mux.Post("/api/workspace/referrer", authMiddleware.ThenFunc(app.workspaceHandler.AttachReferrer))

	// Admin
	mux.Get("/api/admin/partners", adminAuthMiddleware.ThenFunc(app.adminHandler.ListPartners))
	mux.Post("/api/admin/partners", adminAuthMiddleware.ThenFunc(app.adminHandler.CreatePartner))
	mux.Get("/api/admin/partners/:id/commissions", adminAuthMiddleware.ThenFunc(app.adminHandler.ListCommissions))
	mux.Get("/api/admin/payouts", adminAuthMiddleware.ThenFunc(app.adminHandler.ListPayouts))
	mux.Post("/api/admin/payouts/run", adminAuthMiddleware.ThenFunc(app.adminHandler.RunPayouts))
	mux.Get("/api/admin/tickets", adminAuthMiddleware.ThenFunc(app.ticketHandler.ListAll))
	mux.Post("/api/admin/tickets/:id/reply", adminAuthMiddleware.ThenFunc(app.ticketHandler.Reply))
	mux.Post("/api/admin/tickets/:id/status", adminAuthMiddleware.ThenFunc(app.ticketHandler.ChangeStatus))
	mux.Get("/api/admin/dedup-stats", adminAuthMiddleware.ThenFunc(app.adminHandler.DedupStats))
	mux.Get("/api/admin/health", adminAuthMiddleware.ThenFunc(app.adminHandler.HealthReport))

	// Webhooks
	mux.Post("/api/webhooks/stripe", standardMiddleware.ThenFunc(app.webhookHandler.Stripe))

	return mux
}

type crudRoutes interface {
	Create(http.ResponseWriter, *http.Request)
	List(http.ResponseWriter, *http.Request)
	Get(http.ResponseWriter, *http.Request)
	Update(http.ResponseWriter, *http.Request)
	Delete(http.ResponseWriter, *http.Request)
}
