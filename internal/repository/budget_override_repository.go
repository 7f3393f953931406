package repository

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"automation-service/internal/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

type BudgetOverrideRepository struct {
	db *sqlx.DB
}

// NewBudgetOverrideRepository creates a repository over daily_budget_overrides
func NewBudgetOverrideRepository(db *sqlx.DB) *BudgetOverrideRepository {
	return &BudgetOverrideRepository{db: db}
}

// InsertIfAbsent records the pre-acceleration budget. The first write of the day wins,
// so inserted is false when a row for (campaign, date) already exists.
func (r *BudgetOverrideRepository) InsertIfAbsent(ctx context.Context, o *models.DailyBudgetOverride) (bool, error) {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}

	query := `
		INSERT INTO daily_budget_overrides (id, profile_id, campaign_id, original_budget, override_date)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (campaign_id, override_date) DO NOTHING`

	res, err := r.db.ExecContext(ctx, query, o.ID, o.ProfileID, o.CampaignID, o.OriginalBudget, o.OverrideDate.Format(time.DateOnly))
	if err != nil {
		return false, fmt.Errorf("failed to insert budget override for campaign %s: %w", o.CampaignID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n > 0, nil
}

func (r *BudgetOverrideRepository) ListPending(ctx context.Context, date time.Time) ([]models.DailyBudgetOverride, error) {
	var overrides []models.DailyBudgetOverride
	query := `
		SELECT id, profile_id, campaign_id, original_budget, override_date, reverted_at, created_at
		FROM daily_budget_overrides
		WHERE override_date = $1 AND reverted_at IS NULL
		ORDER BY profile_id, campaign_id`
	if err := r.db.SelectContext(ctx, &overrides, query, date.Format(time.DateOnly)); err != nil {
		return nil, fmt.Errorf("failed to list pending budget overrides: %w", err)
	}
	return overrides, nil
}

func (r *BudgetOverrideRepository) MarkReverted(ctx context.Context, ids []uuid.UUID, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	strIDs := make([]string, len(ids))
	for i, id := range ids {
		strIDs[i] = id.String()
	}

	res, err := r.db.ExecContext(ctx,
		`UPDATE daily_budget_overrides SET reverted_at = $2 WHERE id = ANY($1::uuid[])`,
		pq.Array(strIDs), at)
	if err != nil {
		return fmt.Errorf("failed to mark budget overrides reverted: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && int(n) != len(ids) {
		slog.Warn("Budget override revert touched fewer rows than expected", "expected", len(ids), "updated", n)
	}
	return nil
}
