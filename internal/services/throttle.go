package services

import (
	"context"
	"time"

	"automation-service/internal/models"
)

// ThrottleTracker enforces the per-entity cooldown of a rule.
type ThrottleTracker struct {
	store ThrottleStore
	now   func() time.Time
}

func NewThrottleTracker(store ThrottleStore, now func() time.Time) *ThrottleTracker {
	if now == nil {
		now = time.Now
	}
	return &ThrottleTracker{store: store, now: now}
}

// participates is false for zero cooldowns and for budget acceleration, which is
// exempt from cooldowns.
func participates(rule *models.Rule) bool {
	return rule.Config.Cooldown.Enabled() && rule.RuleType != models.RuleTypeBudgetAcceleration
}

func (t *ThrottleTracker) Throttled(ctx context.Context, rule *models.Rule) (map[string]struct{}, error) {
	throttled := map[string]struct{}{}
	if !participates(rule) {
		return throttled, nil
	}

	ids, err := t.store.ListThrottled(ctx, rule.ID, t.now())
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		throttled[id] = struct{}{}
	}
	return throttled, nil
}

// Apply puts every acted-on entity on cooldown until now + the rule's cooldown.
func (t *ThrottleTracker) Apply(ctx context.Context, rule *models.Rule, entityIDs []string) error {
	if !participates(rule) || len(entityIDs) == 0 {
		return nil
	}
	until := t.now().Add(rule.Config.Cooldown.Duration())
	return t.store.Upsert(ctx, rule.ID, entityIDs, until)
}
