package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"automation-service/internal/amazonads"
	"automation-service/internal/metrics"
	"automation-service/internal/models"
	"automation-service/internal/repository"
	"automation-service/internal/services"
	"automation-service/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	entry *models.AutomationLog
	err   error
	got   uuid.UUID
}

func (f *fakeRunner) RunRuleByID(_ context.Context, id uuid.UUID) (*models.AutomationLog, error) {
	f.got = id
	return f.entry, f.err
}

type fakeResetter struct {
	report *services.BudgetResetReport
	err    error
}

func (f *fakeResetter) ResetBudgets(context.Context) (*services.BudgetResetReport, error) {
	return f.report, f.err
}

type fakeLogReader struct {
	entries []models.AutomationLog
	limit   int
}

func (f *fakeLogReader) ListByRule(_ context.Context, _ uuid.UUID, limit int) ([]models.AutomationLog, error) {
	f.limit = limit
	return f.entries, nil
}

func newRouter(h *AutomationHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h.RegisterRoutes(r)
	return r
}

func do(r http.Handler, method, path string) (*httptest.ResponseRecorder, map[string]any) {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	var body map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	return w, body
}

// ============================================================================
// TEST SUITE 1: MANUAL RUNS
// ============================================================================

func TestRunRule(t *testing.T) {
	ruleID := uuid.New()
	runner := &fakeRunner{entry: &models.AutomationLog{ID: uuid.New(), RuleID: ruleID, Status: models.LogStatusSuccess}}
	r := newRouter(NewAutomationHandler(runner, &fakeResetter{}, &fakeLogReader{}, nil))

	w, body := do(r, http.MethodPost, "/automation/rules/"+ruleID.String()+"/run")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, ruleID, runner.got)
	assert.Equal(t, true, body["success"])
	data := body["data"].(map[string]any)
	assert.Equal(t, "SUCCESS", data["status"])
}

func TestRunRule_Errors(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		err    error
		status int
		code   string
	}{
		{"bad id", "/automation/rules/not-a-uuid/run", nil, http.StatusBadRequest, "INVALID_UUID"},
		{"missing rule", "/automation/rules/" + uuid.NewString() + "/run", fmt.Errorf("lookup: %w", repository.ErrRuleNotFound), http.StatusNotFound, "NOT_FOUND"},
		{"store down", "/automation/rules/" + uuid.NewString() + "/run", errors.New("db down"), http.StatusInternalServerError, "RUN_FAILED"},
		{"tick in progress", "/automation/rules/" + uuid.NewString() + "/run", worker.ErrLeaseHeld, http.StatusConflict, "RUN_IN_PROGRESS"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRouter(NewAutomationHandler(&fakeRunner{err: tt.err}, &fakeResetter{}, &fakeLogReader{}, nil))

			w, body := do(r, http.MethodPost, tt.path)

			assert.Equal(t, tt.status, w.Code)
			errBody := body["error"].(map[string]any)
			assert.Equal(t, tt.code, errBody["code"])
		})
	}
}

func TestRunRule_SkippedRun(t *testing.T) {
	r := newRouter(NewAutomationHandler(&fakeRunner{}, &fakeResetter{}, &fakeLogReader{}, nil))

	w, body := do(r, http.MethodPost, "/automation/rules/"+uuid.NewString()+"/run")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["data"].(map[string]any)["skipped"])
}

// ============================================================================
// TEST SUITE 2: LOGS, SWEEP AND HEALTH
// ============================================================================

func TestListRuleLogs(t *testing.T) {
	reader := &fakeLogReader{entries: []models.AutomationLog{{ID: uuid.New()}, {ID: uuid.New()}}}
	r := newRouter(NewAutomationHandler(&fakeRunner{}, &fakeResetter{}, reader, nil))

	w, body := do(r, http.MethodGet, "/automation/rules/"+uuid.NewString()+"/logs?limit=10")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 10, reader.limit)
	assert.Len(t, body["data"].(map[string]any)["logs"], 2)
	meta := body["meta"].(map[string]any)
	assert.Equal(t, float64(2), meta["count"])
	assert.Equal(t, float64(10), meta["limit"])

	w, _ = do(r, http.MethodGet, "/automation/rules/"+uuid.NewString()+"/logs?limit=0")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestResetBudgets(t *testing.T) {
	report := &services.BudgetResetReport{Date: "2026-03-10", Restored: 3, Profiles: 2}
	r := newRouter(NewAutomationHandler(&fakeRunner{}, &fakeResetter{report: report}, &fakeLogReader{}, nil))

	w, body := do(r, http.MethodPost, "/automation/budgets/reset")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(3), body["data"].(map[string]any)["restored"])

	r = newRouter(NewAutomationHandler(&fakeRunner{}, &fakeResetter{err: services.ErrBudgetResetRejected}, &fakeLogReader{}, nil))
	w, body = do(r, http.MethodPost, "/automation/budgets/reset")
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.NotContains(t, body["error"].(map[string]any), "details")

	upstream := fmt.Errorf("restore profile p1: %w", &amazonads.APIError{Status: 429, Method: "PUT", Path: "/sp/campaigns"})
	r = newRouter(NewAutomationHandler(&fakeRunner{}, &fakeResetter{err: upstream}, &fakeLogReader{}, nil))
	w, body = do(r, http.MethodPost, "/automation/budgets/reset")
	assert.Equal(t, http.StatusBadGateway, w.Code)
	details := body["error"].(map[string]any)["details"].(map[string]any)
	assert.Equal(t, float64(429), details["status"])
	assert.Equal(t, "/sp/campaigns", details["path"])
}

func TestCheckHealthAndMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewEngineMetrics(reg)
	m.AddBudgetResets("restored", 1)
	r := newRouter(NewAutomationHandler(&fakeRunner{}, &fakeResetter{}, &fakeLogReader{}, reg))

	w, body := do(r, http.MethodGet, "/checkhealth")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", body["data"].(map[string]any)["status"])

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "automation_budget_resets_total"))
}
