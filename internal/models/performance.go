package models

import "time"

// DailySample is one calendar day of delivery for an entity. Date is midnight UTC of
// the reporting-zone calendar day.
type DailySample struct {
	Date        time.Time `json:"date"`
	Impressions int64     `json:"impressions"`
	Clicks      int64     `json:"clicks"`
	Spend       float64   `json:"spend"`
	Sales       float64   `json:"sales"`
	Orders      int64     `json:"orders"`
}

// PerformanceEntity is the per-run view of a keyword, target, search term or campaign.
type PerformanceEntity struct {
	EntityID      string        `json:"entityId"`
	EntityType    EntityType    `json:"entityType"`
	EntityText    string        `json:"entityText"`
	MatchType     MatchType     `json:"matchType,omitempty"`
	CampaignID    string        `json:"campaignId"`
	AdGroupID     string        `json:"adGroupId,omitempty"`
	CurrentBid    *float64      `json:"currentBid,omitempty"`
	CurrentBudget *float64      `json:"currentBudget,omitempty"`
	DailyData     []DailySample `json:"dailyData"`
}

// PerformanceMap is keyed by entity id (or search term text).
type PerformanceMap map[string]*PerformanceEntity

type Totals struct {
	Impressions       int64   `json:"impressions"`
	Clicks            int64   `json:"clicks"`
	Spend             float64 `json:"spend"`
	Sales             float64 `json:"sales"`
	Orders            int64   `json:"orders"`
	ACoS              float64 `json:"acos"`
	ROAS              float64 `json:"roas"`
	BudgetUtilization float64 `json:"budgetUtilization"`
}

// Get returns the value a condition compares against.
func (t Totals) Get(m Metric) float64 {
	switch m {
	case MetricSpend:
		return t.Spend
	case MetricSales:
		return t.Sales
	case MetricACoS:
		return t.ACoS
	case MetricROAS:
		return t.ROAS
	case MetricOrders:
		return float64(t.Orders)
	case MetricClicks:
		return float64(t.Clicks)
	case MetricImpressions:
		return float64(t.Impressions)
	case MetricBudgetUtilization:
		return t.BudgetUtilization
	}
	return 0
}

// PerformanceRow is one aggregated (entity, day) row from the stream or the report.
type PerformanceRow struct {
	Date        time.Time `db:"performance_date"`
	EntityID    string    `db:"entity_id"`
	EntityText  string    `db:"entity_text"`
	MatchType   string    `db:"match_type"`
	CampaignID  string    `db:"campaign_id"`
	AdGroupID   string    `db:"ad_group_id"`
	Impressions int64     `db:"impressions"`
	Clicks      int64     `db:"clicks"`
	Spend       float64   `db:"spend"`
	Sales       float64   `db:"sales"`
	Orders      int64     `db:"orders"`
}

func (r PerformanceRow) Sample() DailySample {
	return DailySample{
		Date:        r.Date,
		Impressions: r.Impressions,
		Clicks:      r.Clicks,
		Spend:       r.Spend,
		Sales:       r.Sales,
		Orders:      r.Orders,
	}
}

// CampaignDayTotals is today's stream delivery for one campaign.
type CampaignDayTotals struct {
	CampaignID string  `db:"campaign_id"`
	Spend      float64 `db:"spend"`
	Sales      float64 `db:"sales"`
	Orders     int64   `db:"orders"`
}
