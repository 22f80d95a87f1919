package config

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Conservative mirrors ConfigurationPresets.conservative_scalping.
func Conservative(pair string, budget decimal.Decimal) Model {
	return Model{
		Trading: TradingConfig{
			Pair: pair, BudgetPerTrade: budget,
			TargetProfitPercent: decimal.NewFromFloat(1.0),
			MaxTradesPerSession: 50,
			Strategy:            StrategyScalping,
			RiskLevel:           RiskConservative,
			StopLossPercent:     decimal.NewFromFloat(3.0),
		},
		Security: SecurityConfig{
			MaxConsecutiveFailures: 3,
			FailureCooldown:        10 * time.Minute,
			MaxDailyLossPercent:    decimal.NewFromFloat(5.0),
			MinWinRatePercent:      decimal.NewFromFloat(40.0),
			MaxDrawdownPercent:     decimal.NewFromFloat(15.0),
			MaxPositionSizePercent: decimal.NewFromFloat(20.0),
			MinTradeAmount:         decimal.NewFromFloat(10.0),
			MaxTradeAmount:         decimal.NewFromFloat(1000.0),
			MaxAPICallsPerMinute:   100,
			APITimeout:             10 * time.Second,
			RetryAttempts:          3,
		},
		DCA: DCAConfig{
			Enabled:              true,
			Level1TriggerPercent: decimal.NewFromFloat(-1.5),
			Level1Multiplier:     decimal.NewFromFloat(2.0),
			Level2TriggerPercent: decimal.NewFromFloat(-3.0),
			Level2Multiplier:     decimal.NewFromFloat(3.0),
			Level3TriggerPercent: decimal.NewFromFloat(-5.0),
			MaxTotalDCATrades:    3,
			DCACooldown:          5 * time.Minute,
		},
		Performance: PerformanceConfig{
			SleepBetweenCycles:      2 * time.Second,
			OrderTimeout:            30 * time.Second,
			PriceUpdateInterval:     5 * time.Second,
			MaxSessionDuration:      240 * time.Minute,
			AutoRestartOnError:      true,
			GracefulShutdownTimeout: 60 * time.Second,
		},
		Version:     "1.0.0",
		Description: fmt.Sprintf("Conservative scalping for %s", pair),
	}
}

// Moderate mirrors ConfigurationPresets.moderate_swing, adapted to the
// scalping-only scope of this engine (spec §1 Non-goals excludes
// swing/HODL strategies, so the Strategy field stays Scalping even
// though the original's moderate preset used SWING).
func Moderate(pair string, budget decimal.Decimal) Model {
	return Model{
		Trading: TradingConfig{
			Pair: pair, BudgetPerTrade: budget,
			TargetProfitPercent: decimal.NewFromFloat(2.5),
			MaxTradesPerSession: 100,
			Strategy:            StrategyScalping,
			RiskLevel:           RiskModerate,
			StopLossPercent:     decimal.NewFromFloat(5.0),
		},
		Security: SecurityConfig{
			MaxConsecutiveFailures: 5,
			FailureCooldown:        10 * time.Minute,
			MaxDailyLossPercent:    decimal.NewFromFloat(10.0),
			MinWinRatePercent:      decimal.NewFromFloat(35.0),
			MaxDrawdownPercent:     decimal.NewFromFloat(25.0),
			MaxPositionSizePercent: decimal.NewFromFloat(20.0),
			MinTradeAmount:         decimal.NewFromFloat(10.0),
			MaxTradeAmount:         decimal.NewFromFloat(1000.0),
			MaxAPICallsPerMinute:   100,
			APITimeout:             10 * time.Second,
			RetryAttempts:          3,
		},
		DCA: DCAConfig{
			Enabled:              true,
			Level1TriggerPercent: decimal.NewFromFloat(-4.0),
			Level1Multiplier:     decimal.NewFromFloat(2.0),
			Level2TriggerPercent: decimal.NewFromFloat(-8.0),
			Level2Multiplier:     decimal.NewFromFloat(3.0),
			Level3TriggerPercent: decimal.NewFromFloat(-15.0),
			MaxTotalDCATrades:    5,
			DCACooldown:          5 * time.Minute,
		},
		Performance: PerformanceConfig{
			SleepBetweenCycles:      5 * time.Second,
			OrderTimeout:            30 * time.Second,
			PriceUpdateInterval:     5 * time.Second,
			MaxSessionDuration:      1440 * time.Minute,
			AutoRestartOnError:      true,
			GracefulShutdownTimeout: 60 * time.Second,
		},
		Version:     "1.0.0",
		Description: fmt.Sprintf("Moderate scalping for %s", pair),
	}
}

// Aggressive mirrors ConfigurationPresets.aggressive_scalping.
func Aggressive(pair string, budget decimal.Decimal) Model {
	return Model{
		Trading: TradingConfig{
			Pair: pair, BudgetPerTrade: budget,
			TargetProfitPercent: decimal.NewFromFloat(3.0),
			MaxTradesPerSession: 200,
			Strategy:            StrategyScalping,
			RiskLevel:           RiskAggressive,
			StopLossPercent:     decimal.NewFromFloat(8.0),
		},
		Security: SecurityConfig{
			MaxConsecutiveFailures: 8,
			FailureCooldown:        10 * time.Minute,
			MaxDailyLossPercent:    decimal.NewFromFloat(15.0),
			MinWinRatePercent:      decimal.NewFromFloat(25.0),
			MaxDrawdownPercent:     decimal.NewFromFloat(35.0),
			MaxPositionSizePercent: decimal.NewFromFloat(20.0),
			MinTradeAmount:         decimal.NewFromFloat(10.0),
			MaxTradeAmount:         decimal.NewFromFloat(1000.0),
			MaxAPICallsPerMinute:   100,
			APITimeout:             10 * time.Second,
			RetryAttempts:          3,
		},
		DCA: DCAConfig{
			Enabled:              true,
			Level1TriggerPercent: decimal.NewFromFloat(-3.0),
			Level1Multiplier:     decimal.NewFromFloat(2.0),
			Level2TriggerPercent: decimal.NewFromFloat(-7.0),
			Level2Multiplier:     decimal.NewFromFloat(3.0),
			Level3TriggerPercent: decimal.NewFromFloat(-12.0),
			MaxTotalDCATrades:    7,
			DCACooldown:          5 * time.Minute,
		},
		Performance: PerformanceConfig{
			SleepBetweenCycles:      500 * time.Millisecond,
			OrderTimeout:            30 * time.Second,
			PriceUpdateInterval:     5 * time.Second,
			MaxSessionDuration:      720 * time.Minute,
			AutoRestartOnError:      true,
			GracefulShutdownTimeout: 60 * time.Second,
		},
		Version:     "1.0.0",
		Description: fmt.Sprintf("Aggressive scalping for %s", pair),
	}
}

// ByName mirrors ConfigurationPresets.get_preset_by_name.
func ByName(name, pair string, budget decimal.Decimal) (Model, bool) {
	switch name {
	case "conservative":
		return Conservative(pair, budget), true
	case "moderate":
		return Moderate(pair, budget), true
	case "aggressive":
		return Aggressive(pair, budget), true
	default:
		return Model{}, false
	}
}
