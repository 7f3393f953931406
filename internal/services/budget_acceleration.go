package services

import (
	"context"
	"fmt"
	"log/slog"

	"automation-service/internal/amazonads"
	"automation-service/internal/models"
)

// BudgetAccelerationEvaluator raises daily budgets for campaigns that are performing
// well and close to exhausting their budget. It does not take part in cooldowns; the
// nightly sweep restores the original budgets instead.
type BudgetAccelerationEvaluator struct {
	ads       AdsAPI
	overrides BudgetOverrideStore
	cal       Calendar
}

// NewBudgetAccelerationEvaluator creates the evaluator for BUDGET_ACCELERATION rules
func NewBudgetAccelerationEvaluator(ads AdsAPI, overrides BudgetOverrideStore, cal Calendar) *BudgetAccelerationEvaluator {
	return &BudgetAccelerationEvaluator{ads: ads, overrides: overrides, cal: cal}
}

// BudgetUtilization is today's spend as a percentage of budget, 0 for a zero budget.
func BudgetUtilization(spend, budget float64) float64 {
	if budget <= 0 {
		return 0
	}
	return spend / budget * 100
}

type pendingBudget struct {
	entity *models.PerformanceEntity
	change models.ChangeEntry
}

func (e *BudgetAccelerationEvaluator) Evaluate(ctx context.Context, rule *models.Rule, perf models.PerformanceMap, _ map[string]struct{}) (*models.ActionResult, error) {
	today := e.cal.Today()

	var pending []pendingBudget
	for _, entity := range activeEntities(perf, nil) {
		if entity.CurrentBudget == nil {
			continue
		}
		budget := *entity.CurrentBudget
		todayTotals := Aggregate(entity.DailyData, models.Today, today)
		utilization := BudgetUtilization(todayTotals.Spend, budget)

		daily := entity.DailyData
		match, ok := FirstMatch(rule.Config.ConditionGroups, func(w models.TimeWindow) models.Totals {
			t := Aggregate(daily, w, today)
			t.BudgetUtilization = utilization
			return t
		})
		if !ok {
			continue
		}

		action := match.Group.Action
		if action.Type != models.ActionIncreaseBudgetPercent && action.Type != models.ActionSetBudgetAmount {
			continue
		}

		newBudget := ComputeNewBudget(budget, action)
		if newBudget <= budget || SameCents(newBudget, budget) {
			continue
		}

		inserted, err := e.overrides.InsertIfAbsent(ctx, &models.DailyBudgetOverride{
			ProfileID:      rule.ProfileID,
			CampaignID:     entity.CampaignID,
			OriginalBudget: budget,
			OverrideDate:   today,
		})
		if err != nil {
			slog.Error("Failed to record budget override, skipping campaign",
				"rule_id", rule.ID, "campaign_id", entity.CampaignID, "error", err)
			continue
		}
		if !inserted {
			slog.Debug("Budget override already recorded for today", "campaign_id", entity.CampaignID)
		}

		pending = append(pending, pendingBudget{
			entity: entity,
			change: models.NewBudgetChange(entity, budget, newBudget, match.TriggeringMetrics),
		})
	}

	details := models.NewActionDetails()
	if len(pending) == 0 {
		return &models.ActionResult{Summary: "No campaign budgets needed acceleration.", Details: details}, nil
	}

	updates := make([]amazonads.CampaignBudgetUpdate, len(pending))
	for i, p := range pending {
		updates[i] = amazonads.CampaignBudgetUpdate{
			CampaignID: p.entity.CampaignID,
			Budget:     amazonads.CampaignBudget{Budget: *p.change.NewBudget, BudgetType: "DAILY"},
		}
	}

	result, err := e.ads.UpdateCampaignBudgets(ctx, rule.ProfileID, updates)
	if err != nil {
		return nil, fmt.Errorf("failed to update campaign budgets: %w", err)
	}

	var acted []string
	for i, p := range pending {
		if msg, failed := result.FailedAt(i); failed {
			slog.Warn("Budget update rejected", "campaign_id", p.entity.CampaignID, "error", msg)
			continue
		}
		ca := details.Campaign(p.entity.CampaignID)
		ca.Changes = append(ca.Changes, p.change)
		acted = append(acted, p.entity.CampaignID)
	}
	if rejected := len(pending) - len(acted); rejected > 0 {
		details.BatchErrors = append(details.BatchErrors, models.BatchError{
			Operation: "update_campaign_budgets",
			Count:     rejected,
			Error:     "rejected by ads platform",
			Details:   result.Failed,
		})
	}

	summary := fmt.Sprintf("Accelerated budgets for %d campaign(s).", len(acted))
	return &models.ActionResult{Summary: summary, Details: details, ActedOnEntities: acted}, nil
}
