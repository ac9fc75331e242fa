package services

import "github.com/shopspring/decimal"

// DefaultCostFallbackRatio is the share of the unit price assumed as unit
// cost when no positive cost is on record.
var DefaultCostFallbackRatio = decimal.RequireFromString("0.70")

// ResolveUnitCost returns cost when it is positive, otherwise price × ratio.
// A missing cost is passed as the zero decimal.
//
//	cost > 0          -> cost
//	cost <= 0/missing -> price × ratio
func ResolveUnitCost(price, cost, ratio decimal.Decimal) decimal.Decimal {
	if cost.IsPositive() {
		return cost
	}
	return price.Mul(ratio)
}
