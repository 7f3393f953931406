package services

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"automation-service/internal/amazonads"
	"automation-service/internal/models"
)

var asinPattern = regexp.MustCompile(`(?i)^b0[a-z0-9]{8}$`)

// IsASIN reports whether a search term looks like an Amazon product id.
func IsASIN(term string) bool {
	return asinPattern.MatchString(strings.TrimSpace(term))
}

type SearchTermNegationEvaluator struct {
	ads               AdsAPI
	cal               Calendar
	settlementLagDays int
}

// NewSearchTermNegationEvaluator creates the evaluator for SEARCH_TERM_AUTOMATION rules
func NewSearchTermNegationEvaluator(ads AdsAPI, cal Calendar, settlementLagDays int) *SearchTermNegationEvaluator {
	return &SearchTermNegationEvaluator{ads: ads, cal: cal, settlementLagDays: settlementLagDays}
}

type pendingNegative struct {
	entity *models.PerformanceEntity
	entry  models.NegativeEntry
}

func (e *SearchTermNegationEvaluator) Evaluate(ctx context.Context, rule *models.Rule, perf models.PerformanceMap, throttled map[string]struct{}) (*models.ActionResult, error) {
	ref := AddDays(e.cal.Today(), -e.settlementLagDays)

	var keywordNegs, targetNegs []pendingNegative
	for _, entity := range activeEntities(perf, throttled) {
		if entity.CampaignID == "" || entity.AdGroupID == "" {
			continue
		}

		daily := entity.DailyData
		match, ok := FirstMatch(rule.Config.ConditionGroups, func(w models.TimeWindow) models.Totals {
			return Aggregate(daily, w, ref)
		})
		if !ok || match.Group.Action.Type != models.ActionNegateSearchTerm {
			continue
		}

		term := strings.TrimSpace(entity.EntityText)
		entry := models.NegativeEntry{
			SearchTerm:        term,
			CampaignID:        entity.CampaignID,
			AdGroupID:         entity.AdGroupID,
			MatchType:         match.Group.Action.MatchType,
			TriggeringMetrics: match.TriggeringMetrics,
		}
		if IsASIN(term) {
			entry.MatchType = models.MatchTypeNegativeProductTarget
			targetNegs = append(targetNegs, pendingNegative{entity: entity, entry: entry})
		} else {
			keywordNegs = append(keywordNegs, pendingNegative{entity: entity, entry: entry})
		}
	}

	details := models.NewActionDetails()
	var acted []string

	if len(keywordNegs) > 0 {
		negatives := make([]amazonads.NegativeKeyword, len(keywordNegs))
		for i, p := range keywordNegs {
			negatives[i] = amazonads.NegativeKeyword{
				CampaignID:  p.entry.CampaignID,
				AdGroupID:   p.entry.AdGroupID,
				KeywordText: p.entry.SearchTerm,
				MatchType:   string(p.entry.MatchType),
				State:       "ENABLED",
			}
		}
		result, err := e.ads.CreateNegativeKeywords(ctx, rule.ProfileID, negatives)
		acted = append(acted, collectNegativeResults(&details, "create_negative_keywords", keywordNegs, result, err)...)
	}

	if len(targetNegs) > 0 {
		negatives := make([]amazonads.NegativeTarget, len(targetNegs))
		for i, p := range targetNegs {
			negatives[i] = amazonads.NegativeTarget{
				CampaignID: p.entry.CampaignID,
				AdGroupID:  p.entry.AdGroupID,
				Expression: []amazonads.TargetExpression{{Type: "ASIN_SAME_AS", Value: strings.ToUpper(p.entry.SearchTerm)}},
				State:      "ENABLED",
			}
		}
		result, err := e.ads.CreateNegativeTargets(ctx, rule.ProfileID, negatives)
		acted = append(acted, collectNegativeResults(&details, "create_negative_targets", targetNegs, result, err)...)
	}

	_, negatives := details.CountChanges()
	summary := "No search terms met the negation criteria."
	if negatives > 0 {
		summary = fmt.Sprintf("Created %d new negative keyword(s)/target(s).", negatives)
	}
	if len(details.BatchErrors) > 0 {
		summary += fmt.Sprintf(" %d bulk create(s) failed.", len(details.BatchErrors))
	}

	return &models.ActionResult{Summary: summary, Details: details, ActedOnEntities: acted}, nil
}

func collectNegativeResults(details *models.ActionDetails, operation string, pending []pendingNegative, result amazonads.BulkResult, err error) []string {
	if err != nil {
		slog.Error("Bulk negative creation failed", "operation", operation, "count", len(pending), "error", err)
		details.BatchErrors = append(details.BatchErrors, batchError(operation, len(pending), err))
		return nil
	}

	acted := make([]string, 0, len(pending))
	for i, p := range pending {
		if msg, failed := result.FailedAt(i); failed {
			slog.Warn("Negative creation rejected", "operation", operation, "search_term", p.entry.SearchTerm, "error", msg)
			continue
		}
		ca := details.Campaign(p.entry.CampaignID)
		ca.NewNegatives = append(ca.NewNegatives, p.entry)
		acted = append(acted, p.entity.EntityID)
	}
	if rejected := len(pending) - len(acted); rejected > 0 {
		details.BatchErrors = append(details.BatchErrors, models.BatchError{
			Operation: operation,
			Count:     rejected,
			Error:     "rejected by ads platform",
			Details:   result.Failed,
		})
	}
	return acted
}
