package services

import (
	"testing"
	"time"

	"automation-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// TEST SUITE 1: WINDOW AGGREGATION
// ============================================================================

func TestAggregate_TrailingWindowInclusive(t *testing.T) {
	ref := day(2026, 3, 10)
	daily := []models.DailySample{
		{Date: day(2026, 3, 10), Spend: 1, Sales: 4, Clicks: 2, Orders: 1},
		{Date: day(2026, 3, 4), Spend: 2, Sales: 0, Clicks: 3},
		{Date: day(2026, 3, 3), Spend: 10, Sales: 10, Clicks: 9, Orders: 3},
		{Date: day(2026, 3, 11), Spend: 50},
	}

	totals := Aggregate(daily, models.Days(7), ref)

	assert.Equal(t, 3.0, totals.Spend)
	assert.Equal(t, 4.0, totals.Sales)
	assert.Equal(t, int64(5), totals.Clicks)
	assert.Equal(t, int64(1), totals.Orders)
	assert.InDelta(t, 0.75, totals.ACoS, 1e-9)
	assert.InDelta(t, 4.0/3.0, totals.ROAS, 1e-9)
}

func TestAggregate_TodayOnly(t *testing.T) {
	ref := day(2026, 3, 10)
	daily := []models.DailySample{
		{Date: day(2026, 3, 10), Spend: 40, Sales: 120},
		{Date: day(2026, 3, 9), Spend: 100, Sales: 1},
	}

	totals := Aggregate(daily, models.Today, ref)

	assert.Equal(t, 40.0, totals.Spend)
	assert.InDelta(t, 3.0, totals.ROAS, 1e-9)
}

func TestAggregate_ZeroDenominators(t *testing.T) {
	totals := Aggregate([]models.DailySample{{Date: day(2026, 3, 10), Spend: 5}}, models.Days(1), day(2026, 3, 10))
	assert.Equal(t, 0.0, totals.ACoS)
	assert.Equal(t, 0.0, totals.ROAS)

	totals = Aggregate(nil, models.Days(30), day(2026, 3, 10))
	assert.Equal(t, models.Totals{}, totals)
}

func TestAggregate_IgnoresClockAndZone(t *testing.T) {
	loc := time.FixedZone("PST", -8*3600)
	sample := models.DailySample{Date: time.Date(2026, 3, 10, 23, 30, 0, 0, loc), Spend: 7}

	totals := Aggregate([]models.DailySample{sample}, models.Today, day(2026, 3, 10))
	assert.Equal(t, 7.0, totals.Spend)
}

func TestMaxLookbackDays(t *testing.T) {
	cfg := models.RuleConfig{ConditionGroups: []models.ConditionGroup{
		{Conditions: []models.Condition{{TimeWindow: models.Days(7)}, {TimeWindow: models.Today}}},
		{Conditions: []models.Condition{{TimeWindow: models.Days(30)}}},
	}}
	assert.Equal(t, 30, MaxLookbackDays(cfg))

	onlyToday := models.RuleConfig{ConditionGroups: []models.ConditionGroup{
		{Conditions: []models.Condition{{TimeWindow: models.Today}}},
	}}
	assert.Equal(t, 1, MaxLookbackDays(onlyToday))
}

// ============================================================================
// TEST SUITE 2: CONDITION GROUPS
// ============================================================================

func TestCompare(t *testing.T) {
	assert.True(t, Compare(5, models.OperatorGreaterThan, 4))
	assert.False(t, Compare(4, models.OperatorGreaterThan, 4))
	assert.True(t, Compare(3, models.OperatorLessThan, 4))
	assert.True(t, Compare(0, models.OperatorEqual, 0))
	assert.False(t, Compare(0.1, models.OperatorEqual, 0))
	assert.False(t, Compare(1, models.Operator(">="), 0))
}

func TestFirstMatch_FirstGroupWins(t *testing.T) {
	groups := []models.ConditionGroup{
		{
			Conditions: []models.Condition{{Metric: models.MetricSpend, TimeWindow: models.Days(7), Operator: models.OperatorGreaterThan, Value: 1}},
			Action:     models.RuleAction{Type: models.ActionAdjustBidPercent, Value: -10},
		},
		{
			Conditions: []models.Condition{{Metric: models.MetricSpend, TimeWindow: models.Days(7), Operator: models.OperatorGreaterThan, Value: 0}},
			Action:     models.RuleAction{Type: models.ActionAdjustBidPercent, Value: -90},
		},
	}

	calls := 0
	match, ok := FirstMatch(groups, func(models.TimeWindow) models.Totals {
		calls++
		return models.Totals{Spend: 5}
	})

	require.True(t, ok)
	assert.Equal(t, 0, match.Index)
	assert.Equal(t, -10.0, match.Group.Action.Value)
	assert.Equal(t, 1, calls, "window totals are computed once per window")
	require.Len(t, match.TriggeringMetrics, 1)
	assert.Equal(t, "> 1", match.TriggeringMetrics[0].Condition)
	assert.Equal(t, 5.0, match.TriggeringMetrics[0].Value)
}

func TestFirstMatch_AllConditionsMustHold(t *testing.T) {
	groups := []models.ConditionGroup{
		{Conditions: []models.Condition{
			{Metric: models.MetricSpend, TimeWindow: models.Days(30), Operator: models.OperatorGreaterThan, Value: 4},
			{Metric: models.MetricOrders, TimeWindow: models.Days(30), Operator: models.OperatorEqual, Value: 0},
		}},
		{Conditions: []models.Condition{
			{Metric: models.MetricClicks, TimeWindow: models.Days(7), Operator: models.OperatorGreaterThan, Value: 10},
		}},
	}

	totals := map[models.TimeWindow]models.Totals{
		models.Days(30): {Spend: 5.2, Orders: 1},
		models.Days(7):  {Clicks: 12},
	}
	match, ok := FirstMatch(groups, func(w models.TimeWindow) models.Totals { return totals[w] })

	require.True(t, ok)
	assert.Equal(t, 1, match.Index)
}

func TestFirstMatch_NoGroupMatches(t *testing.T) {
	groups := []models.ConditionGroup{
		{Conditions: []models.Condition{{Metric: models.MetricSales, TimeWindow: models.Days(7), Operator: models.OperatorLessThan, Value: 0}}},
		{},
	}
	_, ok := FirstMatch(groups, func(models.TimeWindow) models.Totals { return models.Totals{} })
	assert.False(t, ok)
}

// ============================================================================
// TEST SUITE 3: BID AND BUDGET ARITHMETIC
// ============================================================================

func TestComputeNewBid(t *testing.T) {
	tests := []struct {
		name    string
		current float64
		percent float64
		minBid  *float64
		maxBid  *float64
		want    float64
	}{
		{"halved with rule floor", 0.40, -50, floatPtr(0.15), nil, 0.20},
		{"decrease rounds down", 0.33, -10, nil, nil, 0.29},
		{"increase rounds up", 0.33, 10, nil, nil, 0.37},
		{"platform floor", 0.03, -50, nil, nil, 0.02},
		{"rule floor above result", 0.40, -90, floatPtr(0.15), nil, 0.15},
		{"rule ceiling", 1.00, 50, nil, floatPtr(1.20), 1.20},
		{"zero change", 0.75, 0, nil, nil, 0.75},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeNewBid(tt.current, tt.percent, DefaultBidFloor, tt.minBid, tt.maxBid)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestComputeNewBudget(t *testing.T) {
	assert.Equal(t, 75.0, ComputeNewBudget(50, models.RuleAction{Type: models.ActionIncreaseBudgetPercent, Value: 50}))
	assert.Equal(t, 33.33, ComputeNewBudget(33.333, models.RuleAction{Type: models.ActionIncreaseBudgetPercent, Value: 0}))
	assert.Equal(t, 120.0, ComputeNewBudget(50, models.RuleAction{Type: models.ActionSetBudgetAmount, Value: 120}))
}

func TestSameCents(t *testing.T) {
	assert.True(t, SameCents(0.2, 0.200001))
	assert.False(t, SameCents(0.2, 0.21))
}

func TestBudgetUtilization(t *testing.T) {
	assert.Equal(t, 80.0, BudgetUtilization(40, 50))
	assert.Equal(t, 0.0, BudgetUtilization(40, 0))
}

func TestIsASIN(t *testing.T) {
	assert.True(t, IsASIN("B0ABCDEF12"))
	assert.True(t, IsASIN(" b0abcdef12 "))
	assert.False(t, IsASIN("B1ABCDEF12"))
	assert.False(t, IsASIN("B0ABCDEF1"))
	assert.False(t, IsASIN("running shoes"))
}
