package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"automation-service/internal/models"
)

// DataFetcher assembles per-entity daily samples. Bid rules combine the near real-time
// stream for the most recent days with the settled report for older days, search term
// rules read only the settled report, budget rules read today's stream plus live
// campaign budgets.
type DataFetcher struct {
	store              PerformanceStore
	ads                AdsAPI
	cal                Calendar
	streamCoverageDays int
	settlementLagDays  int
}

// NewDataFetcher creates a fetcher that splits each lookback between the stream and
// the settled report tables
func NewDataFetcher(store PerformanceStore, ads AdsAPI, cal Calendar, streamCoverageDays, settlementLagDays int) *DataFetcher {
	if streamCoverageDays < 1 {
		streamCoverageDays = 1
	}
	if settlementLagDays < 0 {
		settlementLagDays = 0
	}
	return &DataFetcher{
		store:              store,
		ads:                ads,
		cal:                cal,
		streamCoverageDays: streamCoverageDays,
		settlementLagDays:  settlementLagDays,
	}
}

func (f *DataFetcher) Fetch(ctx context.Context, rule *models.Rule) (models.PerformanceMap, error) {
	campaignIDs := []string(rule.Scope.CampaignIDs)
	if len(campaignIDs) == 0 {
		return models.PerformanceMap{}, nil
	}

	var (
		perf models.PerformanceMap
		err  error
	)
	switch rule.RuleType {
	case models.RuleTypeBidAdjustment:
		perf, err = f.fetchBidAdjustment(ctx, rule, campaignIDs)
	case models.RuleTypeSearchTermAutomation:
		perf, err = f.fetchSearchTerms(ctx, rule, campaignIDs)
	case models.RuleTypeBudgetAcceleration:
		perf, err = f.fetchBudgetAcceleration(ctx, rule, campaignIDs)
	default:
		return nil, fmt.Errorf("%w: %q", models.ErrUnknownRuleType, rule.RuleType)
	}
	if err != nil {
		return nil, err
	}

	slog.Debug("Aggregated performance data", "rule_id", rule.ID, "entities", len(perf))
	return perf, nil
}

func (f *DataFetcher) fetchBidAdjustment(ctx context.Context, rule *models.Rule, campaignIDs []string) (models.PerformanceMap, error) {
	today := f.cal.Today()
	lookback := MaxLookbackDays(rule.Config)

	streamStart := AddDays(today, -(f.streamCoverageDays - 1))
	rows, err := f.store.StreamEntityDaily(ctx, campaignIDs, streamStart, today, f.cal.ZoneName())
	if err != nil {
		return nil, err
	}

	// the report only covers days strictly older than the stream window
	reportEnd := AddDays(today, -f.streamCoverageDays)
	reportStart := AddDays(today, -(lookback - 1))
	if !reportStart.After(reportEnd) {
		reportRows, err := f.store.ReportEntityDaily(ctx, campaignIDs, reportStart, reportEnd)
		if err != nil {
			return nil, err
		}
		rows = append(rows, reportRows...)
	}

	perf := models.PerformanceMap{}
	for _, row := range rows {
		if row.EntityID == "" {
			continue
		}
		matchType := models.MatchType(strings.ToUpper(strings.TrimSpace(row.MatchType)))
		entity, ok := perf[row.EntityID]
		if !ok {
			entity = &models.PerformanceEntity{
				EntityID:   row.EntityID,
				EntityType: models.EntityTypeTarget,
				EntityText: row.EntityText,
				CampaignID: row.CampaignID,
				AdGroupID:  row.AdGroupID,
			}
			perf[row.EntityID] = entity
		}
		// any row with a keyword match type makes the entity a keyword
		if matchType.IsKeywordMatch() && entity.EntityType != models.EntityTypeKeyword {
			entity.EntityType = models.EntityTypeKeyword
			entity.MatchType = matchType
		}
		if entity.EntityText == "" {
			entity.EntityText = row.EntityText
		}
		if entity.AdGroupID == "" {
			entity.AdGroupID = row.AdGroupID
		}
		entity.DailyData = append(entity.DailyData, row.Sample())
	}
	return perf, nil
}

func (f *DataFetcher) fetchSearchTerms(ctx context.Context, rule *models.Rule, campaignIDs []string) (models.PerformanceMap, error) {
	end := f.SearchTermReferenceDate()
	start := AddDays(end, -(MaxLookbackDays(rule.Config) - 1))

	rows, err := f.store.ReportSearchTermDaily(ctx, campaignIDs, start, end)
	if err != nil {
		return nil, err
	}

	perf := models.PerformanceMap{}
	for _, row := range rows {
		term := row.EntityText
		if strings.TrimSpace(term) == "" {
			continue
		}
		entity, ok := perf[term]
		if !ok {
			entity = &models.PerformanceEntity{
				EntityID:   term,
				EntityType: models.EntityTypeSearchTerm,
				EntityText: term,
				CampaignID: row.CampaignID,
				AdGroupID:  row.AdGroupID,
			}
			perf[term] = entity
		}
		entity.DailyData = append(entity.DailyData, row.Sample())
	}
	return perf, nil
}

// SearchTermReferenceDate is the newest settled report date.
func (f *DataFetcher) SearchTermReferenceDate() time.Time {
	return AddDays(f.cal.Today(), -f.settlementLagDays)
}

func (f *DataFetcher) fetchBudgetAcceleration(ctx context.Context, rule *models.Rule, campaignIDs []string) (models.PerformanceMap, error) {
	campaigns, err := f.ads.ListCampaigns(ctx, rule.ProfileID, campaignIDs)
	if err != nil {
		slog.Error("Failed to fetch campaign budgets for budget acceleration", "rule_id", rule.ID, "error", err)
		return models.PerformanceMap{}, nil
	}

	type campaignInfo struct {
		name   string
		budget float64
	}
	budgets := make(map[string]campaignInfo, len(campaigns))
	for _, c := range campaigns {
		if c.Budget == nil {
			continue
		}
		budgets[string(c.CampaignID)] = campaignInfo{name: c.Name, budget: c.Budget.Budget}
	}

	today := f.cal.Today()
	totals, err := f.store.StreamCampaignDay(ctx, campaignIDs, today, f.cal.ZoneName())
	if err != nil {
		return nil, err
	}
	byCampaign := make(map[string]models.CampaignDayTotals, len(totals))
	for _, t := range totals {
		byCampaign[t.CampaignID] = t
	}

	perf := models.PerformanceMap{}
	for _, id := range campaignIDs {
		info, ok := budgets[id]
		if !ok {
			continue
		}
		budget := info.budget
		day := byCampaign[id]
		perf[id] = &models.PerformanceEntity{
			EntityID:      id,
			EntityType:    models.EntityTypeCampaign,
			EntityText:    info.name,
			CampaignID:    id,
			CurrentBudget: &budget,
			DailyData: []models.DailySample{{
				Date:   today,
				Spend:  day.Spend,
				Sales:  day.Sales,
				Orders: day.Orders,
			}},
		}
	}
	return perf, nil
}
