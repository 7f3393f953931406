package repository

import (
	"context"
	"fmt"
	"log/slog"

	"automation-service/internal/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type AutomationLogRepository struct {
	db *sqlx.DB
}

// NewAutomationLogRepository creates a repository over automation_logs
func NewAutomationLogRepository(db *sqlx.DB) *AutomationLogRepository {
	return &AutomationLogRepository{db: db}
}

func (r *AutomationLogRepository) Create(ctx context.Context, entry *models.AutomationLog) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}

	query := `
		INSERT INTO automation_logs (id, rule_id, status, summary, details, run_at)
		VALUES (:id, :rule_id, :status, :summary, :details, :run_at)`

	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		slog.Error("Failed to create automation log", "rule_id", entry.RuleID, "status", entry.Status, "error", err)
		return fmt.Errorf("failed to create automation log: %w", err)
	}
	return nil
}

func (r *AutomationLogRepository) ListByRule(ctx context.Context, ruleID uuid.UUID, limit int) ([]models.AutomationLog, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	var logs []models.AutomationLog
	query := `
		SELECT id, rule_id, status, summary, details, run_at
		FROM automation_logs
		WHERE rule_id = $1
		ORDER BY run_at DESC
		LIMIT $2`
	if err := r.db.SelectContext(ctx, &logs, query, ruleID, limit); err != nil {
		return nil, fmt.Errorf("failed to list automation logs for rule %s: %w", ruleID, err)
	}
	return logs, nil
}
