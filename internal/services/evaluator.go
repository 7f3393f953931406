package services

import (
	"automation-service/internal/models"
)

// Compare applies a condition operator. Equality is exact.
func Compare(actual float64, op models.Operator, expected float64) bool {
	switch op {
	case models.OperatorGreaterThan:
		return actual > expected
	case models.OperatorLessThan:
		return actual < expected
	case models.OperatorEqual:
		return actual == expected
	}
	return false
}

// TotalsFunc returns the window totals a condition is evaluated against.
type TotalsFunc func(window models.TimeWindow) models.Totals

type GroupMatch struct {
	Index             int
	Group             *models.ConditionGroup
	TriggeringMetrics []models.TriggeringMetric
}

// FirstMatch walks groups in order and returns the first one whose conditions all hold.
// Later groups are not evaluated once a group fires.
func FirstMatch(groups []models.ConditionGroup, totals TotalsFunc) (GroupMatch, bool) {
	cache := map[models.TimeWindow]models.Totals{}
	lookup := func(w models.TimeWindow) models.Totals {
		if t, ok := cache[w]; ok {
			return t
		}
		t := totals(w)
		cache[w] = t
		return t
	}

	for i := range groups {
		group := &groups[i]
		if len(group.Conditions) == 0 {
			continue
		}

		matched := true
		for _, cond := range group.Conditions {
			if !Compare(lookup(cond.TimeWindow).Get(cond.Metric), cond.Operator, cond.Value) {
				matched = false
				break
			}
		}
		if !matched {
			continue
		}

		triggering := make([]models.TriggeringMetric, 0, len(group.Conditions))
		for _, cond := range group.Conditions {
			triggering = append(triggering, models.TriggeringMetric{
				Metric:     cond.Metric,
				TimeWindow: cond.TimeWindow,
				Value:      lookup(cond.TimeWindow).Get(cond.Metric),
				Condition:  cond.String(),
			})
		}
		return GroupMatch{Index: i, Group: group, TriggeringMetrics: triggering}, true
	}
	return GroupMatch{}, false
}
