package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"automation-service/internal/amazonads"
	"automation-service/internal/config"
	"automation-service/internal/database/minio"
	"automation-service/internal/database/postgres"
	redisdb "automation-service/internal/database/redis"
	"automation-service/internal/event"
	"automation-service/internal/handlers"
	"automation-service/internal/metrics"
	"automation-service/internal/models"
	"automation-service/internal/repository"
	"automation-service/internal/services"
	"automation-service/internal/worker"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// automationApp is the fully wired engine shared by every command.
type automationApp struct {
	cfg          *config.AutomationServiceConfig
	db           *sqlx.DB
	redis        *redisdb.Client
	rabbit       *event.RabbitMQConnection
	registry     *prometheus.Registry
	lease        worker.Lease
	reportingLoc *time.Location
	scheduleLoc  *time.Location

	logs      *repository.AutomationLogRepository
	processor *services.RuleProcessor
	runner    exclusiveRunner
	resetter  *services.BudgetResetService
}

// exclusiveRunner runs one rule under the scheduler lease, so a manual run never
// overlaps a tick.
type exclusiveRunner struct {
	rules handlers.RuleRunner
	lease worker.Lease
	ttl   time.Duration
}

func (r exclusiveRunner) RunRuleByID(ctx context.Context, id uuid.UUID) (*models.AutomationLog, error) {
	var entry *models.AutomationLog
	err := worker.RunExclusive(ctx, r.lease, worker.SchedulerLeaseKey, r.ttl, func(ctx context.Context) error {
		var err error
		entry, err = r.rules.RunRuleByID(ctx, id)
		return err
	})
	return entry, err
}

// runDueRules runs one tick under the scheduler lease.
func (a *automationApp) runDueRules(ctx context.Context) error {
	return worker.RunExclusive(ctx, a.lease, worker.SchedulerLeaseKey, a.cfg.EngineCfg.SchedulerLeaseTTL, a.processor.RunDueRules)
}

func buildApp(cfg *config.AutomationServiceConfig) (*automationApp, error) {
	reportingLoc, err := cfg.EngineCfg.ReportingLocation()
	if err != nil {
		return nil, err
	}
	scheduleLoc, err := cfg.EngineCfg.ScheduleLocation()
	if err != nil {
		return nil, err
	}

	slog.Info("Connecting to PostgreSQL",
		"host", cfg.PostgresCfg.Host, "port", cfg.PostgresCfg.Port, "dbname", cfg.PostgresCfg.DBname)
	db, err := postgres.ConnectAndCreateDB(cfg.PostgresCfg)
	if err != nil {
		return nil, fmt.Errorf("error connecting to PostgreSQL: %w", err)
	}

	app := &automationApp{
		cfg:          cfg,
		db:           db,
		registry:     prometheus.NewRegistry(),
		lease:        worker.NewLocalLease(),
		reportingLoc: reportingLoc,
		scheduleLoc:  scheduleLoc,
	}
	app.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	engineMetrics := metrics.NewEngineMetrics(app.registry)

	tokens := amazonads.NewLWATokenProvider(amazonads.LWAConfig{
		ClientID:     cfg.AdsAPICfg.ClientID,
		ClientSecret: cfg.AdsAPICfg.ClientSecret,
		RefreshToken: cfg.AdsAPICfg.RefreshToken,
		TokenURL:     cfg.AdsAPICfg.TokenURL,
	}, &http.Client{Timeout: cfg.AdsAPICfg.HTTPTimeout})

	if cfg.RedisCfg.Enabled {
		app.redis, err = redisdb.NewRedisClient(cfg.RedisCfg)
		if err != nil {
			slog.Warn("Redis unavailable, token cache and scheduler lease stay in-process", "error", err)
		} else {
			tokens.Cache = amazonads.NewRedisTokenCache(app.redis.GetClient())
			app.lease = worker.NewRedisLease(app.redis.GetClient())
		}
	}

	var publisher services.LogPublisher
	if cfg.RabbitMQCfg.Enabled {
		app.rabbit, err = event.ConnectRabbitMQ(cfg.RabbitMQCfg)
		if err != nil {
			slog.Warn("RabbitMQ unavailable, automation log events will not be published", "error", err)
		} else {
			publisher = event.NewAutomationLogPublisher(app.rabbit)
		}
	}

	var archive services.Archiver
	if cfg.MinioCfg.Enabled {
		minioClient, err := minio.NewMinioClient(cfg.MinioCfg)
		if err != nil {
			slog.Warn("MinIO unavailable, budget reset manifests will not be archived", "error", err)
		} else {
			archive = minio.BudgetResetArchive{Client: minioClient}
		}
	}

	if cfg.AdsAPICfg.ClientID == "" || cfg.AdsAPICfg.RefreshToken == "" {
		slog.Warn("Amazon Ads credentials are not configured, every API call will fail")
	}
	adsClient := amazonads.NewClient(cfg.AdsAPICfg.Endpoint,
		amazonads.BearerAuthorizer{ClientID: cfg.AdsAPICfg.ClientID, Tokens: tokens},
		cfg.AdsAPICfg.HTTPTimeout)
	sp := amazonads.NewSponsoredProducts(adsClient, cfg.EngineCfg.LookupChunkSize)

	// repositories
	ruleRepository := repository.NewRuleRepository(db)
	app.logs = repository.NewAutomationLogRepository(db)
	throttleRepository := repository.NewThrottleRepository(db)
	overrideRepository := repository.NewBudgetOverrideRepository(db)
	performanceRepository := repository.NewPerformanceRepository(db)

	// services
	cal := services.NewCalendar(reportingLoc)
	engine := cfg.EngineCfg
	app.processor = services.NewRuleProcessor(services.RuleProcessorDeps{
		Rules:       ruleRepository,
		Logs:        app.logs,
		Publisher:   publisher,
		Fetcher:     services.NewDataFetcher(performanceRepository, sp, cal, engine.StreamCoverageDays, engine.ReportSettlementLagDays),
		Throttle:    services.NewThrottleTracker(throttleRepository, nil),
		BidRules:    services.NewBidAdjustmentEvaluator(sp, cal, engine.BidFloor),
		SearchTerms: services.NewSearchTermNegationEvaluator(sp, cal, engine.ReportSettlementLagDays),
		Budgets:     services.NewBudgetAccelerationEvaluator(sp, overrideRepository, cal),
		Metrics:     engineMetrics,
		ScheduleLoc: scheduleLoc,
	})
	app.runner = exclusiveRunner{rules: app.processor, lease: app.lease, ttl: engine.SchedulerLeaseTTL}
	app.resetter = services.NewBudgetResetService(overrideRepository, sp, archive, cal, engineMetrics)

	return app, nil
}

func (a *automationApp) Close() {
	if a.rabbit != nil {
		_ = a.rabbit.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			slog.Error("failed to close Redis client", "error", err)
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			slog.Error("failed to close database", "error", err)
		}
	}
}
