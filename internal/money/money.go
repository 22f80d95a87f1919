// Package money centralizes the decimal rounding rules every component
// touching prices, quantities, or balances must follow: floor to 8
// digits on quantity, round-half-up to 8 digits on price.
package money

import "github.com/shopspring/decimal"

const Scale = 8

// FloorQty truncates d to 8 fractional digits without rounding up,
// per spec §3's "floor to 8 digits on quantity."
func FloorQty(d decimal.Decimal) decimal.Decimal {
	return d.Truncate(Scale)
}

// RoundPrice rounds d to 8 fractional digits, per spec §3's "round to
// 8 digits on price."
func RoundPrice(d decimal.Decimal) decimal.Decimal {
	return d.Round(Scale)
}

// MinNotional returns the minimum order value after applying the
// exchange's safety margin, e.g. MinNotional(5, 1.15) == 5.75.
func MinNotional(floor, safetyMargin decimal.Decimal) decimal.Decimal {
	return floor.Mul(safetyMargin)
}

// DefaultMinNotionalFloor is the exchange-side minimum-notional floor
// used across the module absent a per-pair override (spec §3: "≈ 5
// quote units").
var DefaultMinNotionalFloor = decimal.NewFromInt(5)

// DefaultSafetyMargin is the multiplier applied to the exchange floor
// before comparing an order's value against it (spec §3: "1.15 safety
// margin").
var DefaultSafetyMargin = decimal.NewFromFloat(1.15)
