package services

import (
	"time"

	"automation-service/internal/models"
)

// Aggregate sums daily samples over the trailing window ending on ref (inclusive) and
// derives ACoS and ROAS from the sums.
func Aggregate(daily []models.DailySample, window models.TimeWindow, ref time.Time) models.Totals {
	end := CalendarDay(ref)
	start := AddDays(end, -(window.LengthDays() - 1))

	var t models.Totals
	for _, s := range daily {
		day := CalendarDay(s.Date)
		if day.Before(start) || day.After(end) {
			continue
		}
		t.Impressions += s.Impressions
		t.Clicks += s.Clicks
		t.Spend += s.Spend
		t.Sales += s.Sales
		t.Orders += s.Orders
	}

	if t.Sales > 0 {
		t.ACoS = t.Spend / t.Sales
	}
	if t.Spend > 0 {
		t.ROAS = t.Sales / t.Spend
	}
	return t
}

// MaxLookbackDays is the longest non-TODAY window across all groups, at least 1.
func MaxLookbackDays(cfg models.RuleConfig) int {
	maxDays := 1
	for _, g := range cfg.ConditionGroups {
		for _, c := range g.Conditions {
			if c.TimeWindow.Today {
				continue
			}
			maxDays = max(maxDays, c.TimeWindow.Days)
		}
	}
	return maxDays
}
