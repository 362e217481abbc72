package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"leadgenBack/internal/billing"
	"leadgenBack/internal/config"
	"leadgenBack/internal/enrichment"
	"leadgenBack/internal/handlers"
	"leadgenBack/internal/jobs"
	"leadgenBack/internal/metrics"
	"leadgenBack/internal/models"
	"leadgenBack/internal/notify"
	"leadgenBack/internal/payouts"
	payoutrepo "leadgenBack/internal/payouts/repo"
	"leadgenBack/internal/ratelimit"
	"leadgenBack/internal/realtime"
	"leadgenBack/internal/repositories"
	"leadgenBack/internal/services"
	"leadgenBack/internal/storage"
)

const (
	segmentMinPullInterval = time.Hour
	healthCheckTimeout     = 3 * time.Second
)

type application struct {
	cfg    config.Config
	logger *logrus.Logger

	db      *sql.DB
	redis   *redis.Client
	hub     *realtime.Hub
	runner  *jobs.Runner
	limiter ratelimit.Limiter

	payoutCfg     payouts.Config
	payoutService *payouts.Service

	workspaceService *services.WorkspaceService
	segmentService   *services.SegmentService
	creditService    *services.CreditService

	leadHandler        *handlers.LeadHandler
	agentHandler       *handlers.CRUDHandler[models.Agent]
	campaignHandler    *handlers.CRUDHandler[models.Campaign]
	contactHandler     *handlers.CRUDHandler[models.Contact]
	companyHandler     *handlers.CRUDHandler[models.Company]
	dealHandler        *handlers.CRUDHandler[models.Deal]
	dealBoardHandler   *handlers.DealBoardHandler
	creditHandler      *handlers.CreditHandler
	marketplaceHandler *handlers.MarketplaceHandler
	segmentHandler     *handlers.SegmentHandler
	uploadHandler      *handlers.UploadHandler
	contentHandler     *handlers.ContentHandler
	ticketHandler      *handlers.TicketHandler
	workspaceHandler   *handlers.WorkspaceHandler
	adminHandler       *handlers.AdminHandler
	webhookHandler     *handlers.WebhookHandler

	closers []func() error
}

// chargeUnavailable stands in for Stripe when no secret key is configured so queued
// recharges dead-letter instead of retrying.
type chargeUnavailable struct{}

func (chargeUnavailable) ChargeAutoRecharge(context.Context, models.AutoRechargeSettings, string) (string, error) {
	return "", jobs.Permanent(models.ErrFeatureDisabled)
}

func initializeApp(ctx context.Context, cfg config.Config, db *sql.DB, rdb *redis.Client, logger *logrus.Logger) (*application, error) {
	app := &application{cfg: cfg, logger: logger, db: db, redis: rdb}

	// Repositories
	leadRepo := &repositories.LeadRepository{DB: db}
	agentRepo := &repositories.AgentRepository{DB: db}
	campaignRepo := &repositories.CampaignRepository{DB: db}
	contactRepo := &repositories.ContactRepository{DB: db}
	companyRepo := &repositories.CompanyRepository{DB: db}
	dealRepo := &repositories.DealRepository{DB: db}
	creditRepo := &repositories.CreditRepository{DB: db}
	listingRepo := &repositories.ListingRepository{DB: db}
	segmentRepo := &repositories.SegmentRepository{DB: db}
	uploadRepo := &repositories.BulkUploadRepository{DB: db}
	contentRepo := &repositories.ContentRepository{DB: db}
	ticketRepo := &repositories.TicketRepository{DB: db}
	webhookRepo := &repositories.WebhookRepository{DB: db}
	workspaceRepo := &repositories.WorkspaceRepository{DB: db}
	partnerStore := payoutrepo.NewStore(db)

	// Infrastructure
	jobCfg, err := jobs.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("jobs config: %w", err)
	}
	app.payoutCfg, err = payouts.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("payouts config: %w", err)
	}

	queue := jobs.NewRedisQueue(rdb, "leadgen:jobs")
	app.runner = jobs.NewRunner(queue, jobCfg, logger)
	app.hub = realtime.NewHub(app.authenticateSocket, logger)

	mailer := notify.NewMailer(notify.Config{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
	}, logger)

	var files storage.ObjectStore = storage.NewMemory()
	if cfg.S3.Bucket != "" {
		s3, err := storage.NewS3(storage.S3Config{
			Endpoint:  cfg.S3.Endpoint,
			Region:    cfg.S3.Region,
			Bucket:    cfg.S3.Bucket,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
		})
		if err != nil {
			return nil, fmt.Errorf("object storage: %w", err)
		}
		files = s3
	} else {
		logger.Warn("S3_BUCKET not set, uploads are kept in memory")
	}

	var stripeClient *billing.Client
	if cfg.Stripe.SecretKey != "" {
		stripeClient, err = billing.NewClient(billing.Config{
			SecretKey:        cfg.Stripe.SecretKey,
			WebhookSecret:    cfg.Stripe.WebhookSecret,
			CreditPriceCents: cfg.Stripe.CreditPriceCts,
			Currency:         cfg.Stripe.Currency,
			SuccessURL:       cfg.Stripe.SuccessURL,
			CancelURL:        cfg.Stripe.CancelURL,
		}, nil)
		if err != nil {
			return nil, fmt.Errorf("stripe: %w", err)
		}
	} else {
		logger.Warn("STRIPE_SECRET_KEY not set, checkout and auto-recharge are disabled")
	}

	searcher := enrichment.NewClient(cfg.Enrichment.BaseURL, cfg.Enrichment.APIKey, nil)

	switch strings.ToLower(cfg.RateLimit.Backend) {
	case "redis":
		limit := int64(cfg.RateLimit.RequestsPerSecond * cfg.RateLimit.Window.Seconds())
		if limit < int64(cfg.RateLimit.Burst) {
			limit = int64(cfg.RateLimit.Burst)
		}
		app.limiter = ratelimit.NewRedis(rdb, limit, cfg.RateLimit.Window)
	default:
		mem := ratelimit.NewMemory(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst, cfg.RateLimit.IdleTTL)
		mem.StartSweeper(ctx, cfg.RateLimit.SweepInterval)
		app.limiter = mem
	}

	// Services
	app.payoutService = payouts.NewService(partnerStore, app.payoutCfg, mailer, logger)
	app.workspaceService = &services.WorkspaceService{Workspaces: workspaceRepo, Partners: partnerStore}

	leadService := &services.LeadService{Leads: leadRepo, Agents: agentRepo, Publisher: app.hub, Logger: logger}
	agentService := &services.AgentService{AgentRepo: agentRepo}
	campaignService := &services.CampaignService{CampaignRepo: campaignRepo}
	contactService := &services.ContactService{ContactRepo: contactRepo}
	companyService := &services.CompanyService{CompanyRepo: companyRepo}
	dealService := &services.DealService{Deals: dealRepo, Leads: leadRepo}

	app.creditService = &services.CreditService{
		Credits:    creditRepo,
		Workspaces: workspaceRepo,
		Jobs:       app.runner,
		Publisher:  app.hub,
		Logger:     logger,
	}
	if stripeClient != nil {
		app.creditService.Billing = stripeClient
	}
	marketplaceService := &services.MarketplaceService{
		Listings:  listingRepo,
		Credits:   creditRepo,
		Publisher: app.hub,
		FeeBps:    services.DefaultMarketplaceFeeBps,
		Logger:    logger,
	}
	app.segmentService = &services.SegmentService{
		Segments:        segmentRepo,
		Jobs:            app.runner,
		MinPullInterval: segmentMinPullInterval,
	}
	uploadService := &services.UploadService{Uploads: uploadRepo, Files: files, Jobs: app.runner, Logger: logger}

	contentService := &services.ContentService{
		Drafts:    contentRepo,
		Credits:   creditRepo,
		Leads:     leadRepo,
		Campaigns: campaignRepo,
		Logger:    logger,
	}
	if cfg.Gemini.APIKey != "" {
		gemini, err := services.NewGeminiClient(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model)
		if err != nil {
			return nil, fmt.Errorf("gemini: %w", err)
		}
		contentService.Generator = gemini
		app.closers = append(app.closers, gemini.Close)
	} else {
		logger.Warn("GEMINI_API_KEY not set, content generation is disabled")
	}

	ticketService := &services.TicketService{Tickets: ticketRepo, Notifier: mailer, Logger: logger}
	healthService := &services.HealthService{
		DB:       db,
		Redis:    services.PingFunc(queue.Ping),
		Queue:    app.runner,
		Webhooks: webhookRepo,
		Timeout:  healthCheckTimeout,
	}

	// Background jobs
	bulk := &jobs.BulkUploadHandler{
		Uploads:   uploadRepo,
		Leads:     leadRepo,
		Files:     files,
		Publisher: app.hub,
		Logger:    logger,
	}
	var charger jobs.Charger = chargeUnavailable{}
	if stripeClient != nil {
		charger = stripeClient
	}
	recharge := &jobs.AutoRechargeHandler{Credits: creditRepo, Charger: charger, Logger: logger}
	pull := &jobs.SegmentPullHandler{
		Segments:  segmentRepo,
		Leads:     leadRepo,
		Credits:   creditRepo,
		Search:    searcher,
		Publisher: app.hub,
		Logger:    logger,
		MaxPages:  jobCfg.SegmentMaxPages,
		PageSize:  jobCfg.SegmentPageSize,
	}
	app.runner.Register(jobs.TypeBulkUpload, bulk.Handle)
	app.runner.Register(jobs.TypeAutoRecharge, recharge.Handle)
	app.runner.Register(jobs.TypeSegmentPull, pull.Handle)
	app.runner.OnDead(jobs.TypeBulkUpload, bulk.Failed)

	// Webhooks
	processor := &billing.WebhookProcessor{
		Secret:      cfg.Stripe.WebhookSecret,
		Events:      webhookRepo,
		Credits:     creditRepo,
		Commissions: app.payoutService,
		Workspaces:  workspaceRepo,
		Logger:      logger,
		OnResult: func(eventType, status string) {
			metrics.RecordWebhook(billing.Provider, eventType, status)
		},
	}

	// Handlers
	app.leadHandler = &handlers.LeadHandler{Service: leadService, Logger: logger}
	app.agentHandler = handlers.NewAgentHandler(agentService, logger)
	app.campaignHandler = handlers.NewCampaignHandler(campaignService, logger)
	app.contactHandler = handlers.NewContactHandler(contactService, logger)
	app.companyHandler = handlers.NewCompanyHandler(companyService, logger)
	app.dealHandler = handlers.NewDealHandler(dealService, logger)
	app.dealBoardHandler = &handlers.DealBoardHandler{Service: dealService, Logger: logger}
	app.creditHandler = &handlers.CreditHandler{Service: app.creditService, Logger: logger}
	app.marketplaceHandler = &handlers.MarketplaceHandler{Service: marketplaceService, Logger: logger}
	app.segmentHandler = &handlers.SegmentHandler{Service: app.segmentService, Logger: logger}
	app.uploadHandler = &handlers.UploadHandler{Service: uploadService, Logger: logger}
	app.contentHandler = &handlers.ContentHandler{Service: contentService, Logger: logger}
	app.ticketHandler = &handlers.TicketHandler{Service: ticketService, Logger: logger}
	app.workspaceHandler = &handlers.WorkspaceHandler{Service: app.workspaceService, Logger: logger}
	app.adminHandler = &handlers.AdminHandler{
		Payouts: app.payoutService,
		Leads:   leadService,
		Health:  healthService,
		Logger:  logger,
	}
	app.webhookHandler = &handlers.WebhookHandler{Processor: processor, Logger: logger}

	return app, nil
}

// authenticateSocket reads the access token from the query string because browsers
// cannot set headers on a websocket handshake.
func (app *application) authenticateSocket(r *http.Request) (models.Principal, error) {
	token := r.URL.Query().Get("token")
	if token == "" {
		if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
			token = strings.TrimPrefix(h, "Bearer ")
		}
	}
	if token == "" {
		return models.Principal{}, errUnauthorized
	}
	return app.parseToken(token)
}

func (app *application) close() {
	for _, c := range app.closers {
		if err := c(); err != nil {
			app.logger.Errorf("shutdown: %v", err)
		}
	}
}
