package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"automation-service/internal/amazonads"
	"automation-service/internal/models"
)

type BidAdjustmentEvaluator struct {
	ads      AdsAPI
	cal      Calendar
	bidFloor float64
}

// NewBidAdjustmentEvaluator creates the evaluator for BID_ADJUSTMENT rules. A non-positive
// bidFloor uses DefaultBidFloor.
func NewBidAdjustmentEvaluator(ads AdsAPI, cal Calendar, bidFloor float64) *BidAdjustmentEvaluator {
	if bidFloor <= 0 {
		bidFloor = DefaultBidFloor
	}
	return &BidAdjustmentEvaluator{ads: ads, cal: cal, bidFloor: bidFloor}
}

type pendingBid struct {
	entity *models.PerformanceEntity
	change models.ChangeEntry
}

func (e *BidAdjustmentEvaluator) Evaluate(ctx context.Context, rule *models.Rule, perf models.PerformanceMap, throttled map[string]struct{}) (*models.ActionResult, error) {
	candidates := activeEntities(perf, throttled)
	if len(candidates) == 0 {
		return &models.ActionResult{Summary: "No bid changes were needed.", Details: models.NewActionDetails()}, nil
	}

	e.resolveCurrentBids(ctx, rule.ProfileID, candidates)

	ref := e.cal.Today()
	var keywordBids, targetBids []pendingBid
	for _, entity := range candidates {
		if entity.CurrentBid == nil {
			slog.Debug("Skipping entity without a resolvable bid", "rule_id", rule.ID, "entity_id", entity.EntityID)
			continue
		}

		daily := entity.DailyData
		match, ok := FirstMatch(rule.Config.ConditionGroups, func(w models.TimeWindow) models.Totals {
			return Aggregate(daily, w, ref)
		})
		if !ok {
			continue
		}

		action := match.Group.Action
		if action.Type != models.ActionAdjustBidPercent {
			continue
		}

		oldBid := *entity.CurrentBid
		newBid := ComputeNewBid(oldBid, action.Value, e.bidFloor, action.MinBid, action.MaxBid)
		if SameCents(newBid, oldBid) {
			continue
		}

		p := pendingBid{entity: entity, change: models.NewBidChange(entity, oldBid, newBid, match.TriggeringMetrics)}
		if entity.EntityType == models.EntityTypeKeyword {
			keywordBids = append(keywordBids, p)
		} else {
			targetBids = append(targetBids, p)
		}
	}

	details := models.NewActionDetails()
	var acted []string

	if len(keywordBids) > 0 {
		updates := make([]amazonads.KeywordBidUpdate, len(keywordBids))
		for i, p := range keywordBids {
			updates[i] = amazonads.KeywordBidUpdate{KeywordID: p.entity.EntityID, Bid: *p.change.NewBid}
		}
		result, err := e.ads.UpdateKeywordBids(ctx, rule.ProfileID, updates)
		acted = append(acted, collectBidResults(&details, "update_keyword_bids", keywordBids, result, err)...)
	}

	if len(targetBids) > 0 {
		updates := make([]amazonads.TargetBidUpdate, len(targetBids))
		for i, p := range targetBids {
			updates[i] = amazonads.TargetBidUpdate{TargetID: p.entity.EntityID, Bid: *p.change.NewBid}
		}
		result, err := e.ads.UpdateTargetBids(ctx, rule.ProfileID, updates)
		acted = append(acted, collectBidResults(&details, "update_target_bids", targetBids, result, err)...)
	}

	changes, _ := details.CountChanges()
	summary := "No bid changes were needed."
	if changes > 0 {
		summary = fmt.Sprintf("Adjusted bids for %d keyword(s)/target(s).", changes)
	}
	if len(details.BatchErrors) > 0 {
		summary += fmt.Sprintf(" %d bulk update(s) failed.", len(details.BatchErrors))
	}

	return &models.ActionResult{Summary: summary, Details: details, ActedOnEntities: acted}, nil
}

// collectBidResults records accepted changes and drops the ones the platform rejected.
func collectBidResults(details *models.ActionDetails, operation string, pending []pendingBid, result amazonads.BulkResult, err error) []string {
	if err != nil {
		slog.Error("Bulk bid update failed", "operation", operation, "count", len(pending), "error", err)
		details.BatchErrors = append(details.BatchErrors, batchError(operation, len(pending), err))
		return nil
	}

	acted := make([]string, 0, len(pending))
	for i, p := range pending {
		if msg, failed := result.FailedAt(i); failed {
			slog.Warn("Bid update rejected", "operation", operation, "entity_id", p.entity.EntityID, "error", msg)
			continue
		}
		ca := details.Campaign(p.entity.CampaignID)
		ca.Changes = append(ca.Changes, p.change)
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

// resolveCurrentBids fills CurrentBid from keyword/target lookups. The ad group
// default bid is used only for ids a successful lookup returned without a bid or
// did not return at all. Ids from a failed lookup stay unresolved and are skipped.
func (e *BidAdjustmentEvaluator) resolveCurrentBids(ctx context.Context, profileID string, entities []*models.PerformanceEntity) {
	var keywordIDs, targetIDs []string
	for _, entity := range entities {
		if entity.EntityType == models.EntityTypeKeyword {
			keywordIDs = append(keywordIDs, entity.EntityID)
		} else {
			targetIDs = append(targetIDs, entity.EntityID)
		}
	}

	bids := map[string]float64{}
	adGroups := map[string]string{}
	unresolved := map[string]struct{}{}

	if len(keywordIDs) > 0 {
		keywords, err := e.ads.ListKeywords(ctx, profileID, keywordIDs)
		if err != nil {
			failed := amazonads.FailedIDs(err, keywordIDs)
			slog.Error("Failed to look up keyword bids", "profile_id", profileID, "failed", len(failed), "error", err)
			for _, id := range failed {
				unresolved[id] = struct{}{}
			}
		}
		for _, k := range keywords {
			if k.Bid != nil {
				bids[string(k.KeywordID)] = *k.Bid
			}
			adGroups[string(k.KeywordID)] = string(k.AdGroupID)
		}
	}

	if len(targetIDs) > 0 {
		targets, err := e.ads.ListTargets(ctx, profileID, targetIDs)
		if err != nil {
			failed := amazonads.FailedIDs(err, targetIDs)
			slog.Error("Failed to look up target bids", "profile_id", profileID, "failed", len(failed), "error", err)
			for _, id := range failed {
				unresolved[id] = struct{}{}
			}
		}
		for _, t := range targets {
			if t.Bid != nil {
				bids[string(t.TargetID)] = *t.Bid
			}
			adGroups[string(t.TargetID)] = string(t.AdGroupID)
		}
	}

	fallbackAdGroup := func(entity *models.PerformanceEntity) string {
		if _, ok := bids[entity.EntityID]; ok {
			return ""
		}
		if _, failed := unresolved[entity.EntityID]; failed {
			return ""
		}
		if adGroupID := adGroups[entity.EntityID]; adGroupID != "" {
			return adGroupID
		}
		return entity.AdGroupID
	}

	var missingAdGroups []string
	seen := map[string]struct{}{}
	for _, entity := range entities {
		adGroupID := fallbackAdGroup(entity)
		if adGroupID == "" {
			continue
		}
		if _, dup := seen[adGroupID]; !dup {
			seen[adGroupID] = struct{}{}
			missingAdGroups = append(missingAdGroups, adGroupID)
		}
	}

	defaultBids := map[string]float64{}
	if len(missingAdGroups) > 0 {
		groups, err := e.ads.ListAdGroups(ctx, profileID, missingAdGroups)
		if err != nil {
			slog.Error("Failed to look up ad group default bids", "profile_id", profileID, "count", len(missingAdGroups), "error", err)
		}
		for _, g := range groups {
			if g.DefaultBid != nil {
				defaultBids[string(g.AdGroupID)] = *g.DefaultBid
			}
		}
	}

	for _, entity := range entities {
		if bid, ok := bids[entity.EntityID]; ok {
			entity.CurrentBid = &bid
			continue
		}
		if bid, ok := defaultBids[fallbackAdGroup(entity)]; ok {
			entity.CurrentBid = &bid
		}
	}
}

// activeEntities returns the non-throttled entities in a stable order.
func activeEntities(perf models.PerformanceMap, throttled map[string]struct{}) []*models.PerformanceEntity {
	keys := make([]string, 0, len(perf))
	for key := range perf {
		if _, skip := throttled[key]; skip {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	out := make([]*models.PerformanceEntity, len(keys))
	for i, key := range keys {
		out[i] = perf[key]
	}
	return out
}

func batchError(operation string, count int, err error) models.BatchError {
	be := models.BatchError{Operation: operation, Count: count, Error: err.Error()}
	if apiErr, ok := amazonads.AsAPIError(err); ok {
		be.Details = map[string]any{"status": apiErr.Status, "details": apiErr.DetailsValue()}
	}
	return be
}
