package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// ThrottleRepository stores per (rule, entity) cooldowns in automation_action_throttle.
type ThrottleRepository struct {
	db *sqlx.DB
}

// NewThrottleRepository creates a repository over automation_action_throttle
func NewThrottleRepository(db *sqlx.DB) *ThrottleRepository {
	return &ThrottleRepository{db: db}
}

func (r *ThrottleRepository) ListThrottled(ctx context.Context, ruleID uuid.UUID, now time.Time) ([]string, error) {
	var ids []string
	query := `SELECT entity_id FROM automation_action_throttle WHERE rule_id = $1 AND throttle_until > $2`
	if err := r.db.SelectContext(ctx, &ids, query, ruleID, now); err != nil {
		return nil, fmt.Errorf("failed to list throttled entities: %w", err)
	}
	return ids, nil
}

// Upsert sets throttle_until for every entity id. Duplicate ids are collapsed first
// since ON CONFLICT cannot touch the same row twice in one statement.
func (r *ThrottleRepository) Upsert(ctx context.Context, ruleID uuid.UUID, entityIDs []string, until time.Time) error {
	ids := dedupe(entityIDs)
	if len(ids) == 0 {
		return nil
	}

	query := `
		INSERT INTO automation_action_throttle (rule_id, entity_id, throttle_until)
		SELECT $1, unnest($2::text[]), $3
		ON CONFLICT (rule_id, entity_id) DO UPDATE
		SET throttle_until = EXCLUDED.throttle_until`

	if _, err := r.db.ExecContext(ctx, query, ruleID, pq.Array(ids), until); err != nil {
		return fmt.Errorf("failed to upsert throttles: %w", err)
	}
	return nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
