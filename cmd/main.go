package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"automation-service/internal/config"
	"automation-service/internal/handlers"
	"automation-service/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/urfave/cli/v2"
)

func setupLogging(logDir, level string) (*os.File, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}

	if err := os.MkdirAll(logDir, 0o755); err != nil {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, opts)))
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	logFile := filepath.Join(logDir, fmt.Sprintf("log_%s.log", time.Now().Format("2006-01-02")))
	file, err := os.OpenFile(logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, opts)))
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(io.MultiWriter(os.Stdout, file), opts)))
	return file, nil
}

func main() {
	cfg := config.New()

	logFile, err := setupLogging(cfg.LogDir, cfg.LogLevel)
	if err != nil {
		slog.Warn("Logging to stdout only", "error", err)
	} else {
		defer logFile.Close()
	}

	app := &cli.App{
		Name:  "automation-service",
		Usage: "evaluates Amazon Ads automation rules and applies bid, negative and budget actions",
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the rule scheduler, nightly budget restoration and HTTP API",
				Action: func(c *cli.Context) error { return serve(c.Context, cfg) },
			},
			{
				Name:  "tick",
				Usage: "run every rule that is due right now, once",
				Action: func(c *cli.Context) error {
					return withApp(cfg, func(a *automationApp) error {
						return a.runDueRules(c.Context)
					})
				},
			},
			{
				Name:  "run-rule",
				Usage: "run one rule immediately regardless of its schedule",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "id", Usage: "rule UUID", Required: true},
				},
				Action: func(c *cli.Context) error {
					ruleID, err := uuid.Parse(c.String("id"))
					if err != nil {
						return cli.Exit(fmt.Sprintf("invalid rule id %q", c.String("id")), 2)
					}
					return withApp(cfg, func(a *automationApp) error {
						entry, err := a.runner.RunRuleByID(c.Context, ruleID)
						if err != nil {
							return err
						}
						if entry == nil {
							fmt.Fprintln(c.App.Writer, "rule skipped: empty campaign scope")
							return nil
						}
						return printJSON(c.App.Writer, entry)
					})
				},
			},
			{
				Name:  "reset-budgets",
				Usage: "restore today's accelerated campaign budgets now",
				Action: func(c *cli.Context) error {
					return withApp(cfg, func(a *automationApp) error {
						report, err := a.resetter.ResetBudgets(c.Context)
						if err != nil {
							return err
						}
						return printJSON(c.App.Writer, report)
					})
				},
			},
		},
		DefaultCommand: "serve",
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.RunContext(ctx, os.Args); err != nil {
		slog.Error("automation-service exited with error", "error", err)
		os.Exit(1)
	}
}

func withApp(cfg *config.AutomationServiceConfig, fn func(a *automationApp) error) error {
	a, err := buildApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func serve(ctx context.Context, cfg *config.AutomationServiceConfig) error {
	a, err := buildApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	manager := worker.NewWorkerManager(ctx)

	tick := worker.NewJobScheduler("rule-tick", cfg.EngineCfg.TickInterval, a.processor.RunDueRules).
		WithLease(a.lease, cfg.EngineCfg.SchedulerLeaseTTL)
	manager.Start(tick)

	nightly := worker.NewCronWorker("nightly-budget-reset", a.reportingLoc, a.lease)
	err = nightly.AddJob(manager.ManagerContext(), "budget-reset", cfg.EngineCfg.BudgetResetCron, func(ctx context.Context) error {
		_, err := a.resetter.ResetBudgets(ctx)
		return err
	})
	if err != nil {
		manager.Shutdown()
		return err
	}
	manager.Start(nightly)

	if strings.EqualFold(cfg.LogLevel, "debug") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	handlers.NewAutomationHandler(a.runner, a.resetter, a.logs, a.registry).RegisterRoutes(r)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("Starting automation-service", "port", cfg.Port,
			"tick_interval", cfg.EngineCfg.TickInterval, "reporting_timezone", cfg.EngineCfg.ReportingTimezone)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		slog.Info("Shutdown signal received")
	case err = <-serverErr:
		slog.Error("HTTP server failed", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if shutdownErr := server.Shutdown(shutdownCtx); shutdownErr != nil {
		slog.Error("HTTP server shutdown failed", "error", shutdownErr)
	}
	manager.Shutdown()
	return err
}
