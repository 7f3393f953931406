package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"automation-service/internal/models"
	"automation-service/internal/worker"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupLogging_CreatesDailyFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")

	file, err := setupLogging(dir, "debug")
	require.NoError(t, err)
	defer file.Close()

	_, err = os.Stat(filepath.Join(dir, "log_"+time.Now().Format("2006-01-02")+".log"))
	assert.NoError(t, err)
}

func TestSetupLogging_UnwritableDirFallsBack(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	file, err := setupLogging(filepath.Join(blocker, "logs"), "info")
	assert.Error(t, err)
	assert.Nil(t, file)
}

func TestPrintJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printJSON(&buf, map[string]int{"restored": 3}))
	assert.JSONEq(t, `{"restored":3}`, buf.String())
}

type recordingRunner struct {
	calls int
}

func (r *recordingRunner) RunRuleByID(_ context.Context, id uuid.UUID) (*models.AutomationLog, error) {
	r.calls++
	return &models.AutomationLog{RuleID: id, Status: models.LogStatusSuccess}, nil
}

func TestExclusiveRunner_WaitsForTick(t *testing.T) {
	lease := worker.NewLocalLease()
	rules := &recordingRunner{}
	runner := exclusiveRunner{rules: rules, lease: lease, ttl: time.Minute}

	_, release, ok, err := lease.Acquire(context.Background(), worker.SchedulerLeaseKey, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = runner.RunRuleByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, worker.ErrLeaseHeld)
	assert.Zero(t, rules.calls)

	release()
	id := uuid.New()
	entry, err := runner.RunRuleByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, id, entry.RuleID)
	assert.Equal(t, 1, rules.calls)
}
