package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"automation-service/internal/amazonads"
	"automation-service/internal/models"
	"automation-service/internal/repository"
	"automation-service/internal/services"
	"automation-service/internal/utils"
	"automation-service/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type RuleRunner interface {
	RunRuleByID(ctx context.Context, id uuid.UUID) (*models.AutomationLog, error)
}

type BudgetResetter interface {
	ResetBudgets(ctx context.Context) (*services.BudgetResetReport, error)
}

type AutomationLogReader interface {
	ListByRule(ctx context.Context, ruleID uuid.UUID, limit int) ([]models.AutomationLog, error)
}

type AutomationHandler struct {
	runner   RuleRunner
	resetter BudgetResetter
	logs     AutomationLogReader
	gatherer prometheus.Gatherer
}

// NewAutomationHandler creates the handler. A nil gatherer disables /metrics.
func NewAutomationHandler(runner RuleRunner, resetter BudgetResetter, logs AutomationLogReader, gatherer prometheus.Gatherer) *AutomationHandler {
	return &AutomationHandler{runner: runner, resetter: resetter, logs: logs, gatherer: gatherer}
}

func (h *AutomationHandler) RegisterRoutes(router *gin.Engine) {
	router.GET("/checkhealth", h.CheckHealth)
	if h.gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{})))
	}

	automationGr := router.Group("/automation")
	automationGr.POST("/rules/:id/run", h.RunRule)
	automationGr.GET("/rules/:id/logs", h.ListRuleLogs)
	automationGr.POST("/budgets/reset", h.ResetBudgets)
}

func (h *AutomationHandler) CheckHealth(c *gin.Context) {
	c.JSON(http.StatusOK, utils.CreateSuccessResponse(gin.H{"status": "healthy"}))
}

// RunRule processes one rule immediately, ignoring its schedule.
func (h *AutomationHandler) RunRule(c *gin.Context) {
	ruleID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, utils.CreateErrorResponse("INVALID_UUID", "Invalid rule ID format"))
		return
	}

	entry, err := h.runner.RunRuleByID(c.Request.Context(), ruleID)
	if err != nil {
		if errors.Is(err, repository.ErrRuleNotFound) {
			c.JSON(http.StatusNotFound, utils.CreateErrorResponse("NOT_FOUND", "Rule not found"))
			return
		}
		if errors.Is(err, worker.ErrLeaseHeld) {
			c.JSON(http.StatusConflict, utils.CreateErrorResponse("RUN_IN_PROGRESS", "A scheduler tick or another manual run is in progress, retry shortly"))
			return
		}
		slog.Error("Manual rule run failed", "rule_id", ruleID, "error", err)
		c.JSON(http.StatusInternalServerError, utils.CreateErrorResponse("RUN_FAILED", "Failed to run rule"))
		return
	}

	if entry == nil {
		c.JSON(http.StatusOK, utils.CreateSuccessResponse(gin.H{
			"rule_id": ruleID,
			"skipped": true,
		}))
		return
	}
	c.JSON(http.StatusOK, utils.CreateSuccessResponse(entry))
}

func (h *AutomationHandler) ListRuleLogs(c *gin.Context) {
	ruleID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, utils.CreateErrorResponse("INVALID_UUID", "Invalid rule ID format"))
		return
	}

	limit := 50
	if raw := c.Query("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit <= 0 || limit > 500 {
			c.JSON(http.StatusBadRequest, utils.CreateErrorResponse("INVALID_LIMIT", "limit must be between 1 and 500"))
			return
		}
	}

	entries, err := h.logs.ListByRule(c.Request.Context(), ruleID, limit)
	if err != nil {
		slog.Error("Failed to list automation logs", "rule_id", ruleID, "error", err)
		c.JSON(http.StatusInternalServerError, utils.CreateErrorResponse("RETRIEVAL_FAILED", "Failed to retrieve automation logs"))
		return
	}

	c.JSON(http.StatusOK, utils.CreateListResponse(gin.H{
		"logs":    entries,
		"rule_id": ruleID,
	}, len(entries), limit))
}

// ResetBudgets triggers the budget restoration sweep out of schedule.
func (h *AutomationHandler) ResetBudgets(c *gin.Context) {
	report, err := h.resetter.ResetBudgets(c.Request.Context())
	if err != nil {
		slog.Error("Manual budget reset failed", "error", err)
		c.JSON(http.StatusBadGateway, utils.CreateUpstreamErrorResponse("RESET_FAILED", err.Error(), upstreamDetails(err)))
		return
	}
	c.JSON(http.StatusOK, utils.CreateSuccessResponse(report))
}

// upstreamDetails exposes the ads platform status behind err, if any.
func upstreamDetails(err error) any {
	apiErr, ok := amazonads.AsAPIError(err)
	if !ok {
		return nil
	}
	return gin.H{
		"status": apiErr.Status,
		"method": apiErr.Method,
		"path":   apiErr.Path,
	}
}
