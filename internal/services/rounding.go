package services

import (
	"automation-service/internal/models"

	"github.com/shopspring/decimal"
)

const DefaultBidFloor = 0.02

var hundred = decimal.NewFromInt(100)

// ComputeNewBid applies a percentage change to current. Decreases round down to the
// cent and increases round up, then the platform floor and the optional rule bounds
// are applied in that order.
func ComputeNewBid(current, percent, floor float64, minBid, maxBid *float64) float64 {
	factor := decimal.NewFromInt(1).Add(decimal.NewFromFloat(percent).Div(hundred))
	bid := decimal.NewFromFloat(current).Mul(factor)

	if percent < 0 {
		bid = bid.RoundFloor(2)
	} else {
		bid = bid.RoundCeil(2)
	}

	bid = decimal.Max(bid, decimal.NewFromFloat(floor))
	if minBid != nil {
		bid = decimal.Max(bid, decimal.NewFromFloat(*minBid))
	}
	if maxBid != nil {
		bid = decimal.Min(bid, decimal.NewFromFloat(*maxBid))
	}

	f, _ := bid.Round(2).Float64()
	return f
}

// ComputeNewBudget returns the budget an acceleration action asks for, to the cent.
func ComputeNewBudget(current float64, action models.RuleAction) float64 {
	var budget decimal.Decimal
	switch action.Type {
	case models.ActionSetBudgetAmount:
		budget = decimal.NewFromFloat(action.Value)
	case models.ActionIncreaseBudgetPercent:
		factor := decimal.NewFromInt(1).Add(decimal.NewFromFloat(action.Value).Div(hundred))
		budget = decimal.NewFromFloat(current).Mul(factor)
	default:
		budget = decimal.NewFromFloat(current)
	}
	f, _ := budget.Round(2).Float64()
	return f
}

// SameCents reports whether a and b are equal once rounded to the cent.
func SameCents(a, b float64) bool {
	return decimal.NewFromFloat(a).Round(2).Equal(decimal.NewFromFloat(b).Round(2))
}
