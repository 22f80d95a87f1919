package trading

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"gatescalp/internal/money"
	"gatescalp/internal/trading/indicators"
)

// aggressivenessFactor returns spec §4.11's hour-of-day multiplier:
// Asia hours run conservative, US hours aggressive.
func aggressivenessFactor(hourUTC int) float64 {
	switch {
	case hourUTC >= 0 && hourUTC < 8: // Asia session, UTC
		return 0.7
	case hourUTC >= 8 && hourUTC < 13: // Europe session
		return 1.0
	default: // US session
		return 1.2
	}
}

// kellyFraction implements spec §4.11's Kelly-fraction-lite sizing:
// max(0.01, min(0.20, confidence - (1-confidence)/(volatility*100))).
func kellyFraction(confidence, volatility float64) float64 {
	if volatility <= 0 {
		return 0.01
	}
	f := confidence - (1-confidence)/(volatility*100)
	return math.Max(0.01, math.Min(0.20, f))
}

// PositionSize computes the quote-currency amount to risk on entry,
// floored at the minimum notional and capped at perTradeBudget.
func PositionSize(sig indicators.Signal, capital, perTradeBudget decimal.Decimal, now time.Time) decimal.Decimal {
	fraction := kellyFraction(sig.Confidence, sig.Volatility) * aggressivenessFactor(now.UTC().Hour())

	amount := capital.Mul(decimal.NewFromFloat(fraction))

	floor := money.MinNotional(money.DefaultMinNotionalFloor, money.DefaultSafetyMargin)
	if amount.LessThan(floor) {
		amount = floor
	}
	if amount.GreaterThan(perTradeBudget) {
		amount = perTradeBudget
	}
	return amount
}
