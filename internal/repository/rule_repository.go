package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"automation-service/internal/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

var ErrRuleNotFound = errors.New("rule not found")

type RuleRepository struct {
	db *sqlx.DB
}

// NewRuleRepository creates a repository over automation_rules
func NewRuleRepository(db *sqlx.DB) *RuleRepository {
	return &RuleRepository{db: db}
}

const ruleColumns = `id, name, profile_id, ad_type, rule_type, is_active, last_run_at, scope, config, created_at, updated_at`

// ListActive returns active rules undecoded; callers decode each one separately.
func (r *RuleRepository) ListActive(ctx context.Context) ([]models.RuleRecord, error) {
	var rules []models.RuleRecord
	query := `SELECT ` + ruleColumns + ` FROM automation_rules WHERE is_active = TRUE ORDER BY created_at`
	if err := r.db.SelectContext(ctx, &rules, query); err != nil {
		return nil, fmt.Errorf("failed to list active rules: %w", err)
	}
	return rules, nil
}

func (r *RuleRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.RuleRecord, error) {
	var rule models.RuleRecord
	query := `SELECT ` + ruleColumns + ` FROM automation_rules WHERE id = $1`
	if err := r.db.GetContext(ctx, &rule, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRuleNotFound
		}
		return nil, fmt.Errorf("failed to get rule %s: %w", id, err)
	}
	return &rule, nil
}

func (r *RuleRepository) UpdateLastRunAt(ctx context.Context, id uuid.UUID, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE automation_rules SET last_run_at = $2, updated_at = NOW() WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("failed to update last_run_at for rule %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrRuleNotFound
	}
	return nil
}
