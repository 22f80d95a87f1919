package trading

import (
	"time"

	"github.com/shopspring/decimal"
)

// Config holds one engine's trading parameters, distilled from
// ConfigModel's trading/dca sections (internal/config, L15).
type Config struct {
	Pair string

	TargetPct decimal.Decimal // take-profit threshold, percent

	DCALevel1 DCALevel
	DCALevel2 DCALevel

	// DCALevel3 is the stop-loss rung: multiplier is conventionally
	// zero (spec §3 — "Level 3 with multiplier 0 denotes a
	// stop-loss"), so hitting its trigger sells the whole position
	// instead of buying more.
	DCALevel3 DCALevel

	PositionTimeout time.Duration // 0 disables the timeout rule

	DustThreshold decimal.Decimal // base-asset balance below this is "no position"

	Capital        decimal.Decimal // baseline used by the Kelly-fraction sizer
	PerTradeBudget decimal.Decimal // hard cap on any single entry or DCA buy

	MaxDailyLoss decimal.Decimal
	MinWinRate   float64

	PollInterval      time.Duration
	MaxLoopIterations int
	BuyWaitPolls      int
	BuyWaitInterval   time.Duration
}

// DefaultConfig returns the engine's built-in defaults. They are not the
// values of internal/config's Moderate preset (target 1.5% here, DCA
// triggers -2/-4/-7%).
func DefaultConfig(pair string) Config {
	return Config{
		Pair:               pair,
		TargetPct:          decimal.NewFromFloat(1.5),
		DCALevel1:          DCALevel{TriggerPct: decimal.NewFromFloat(-2), Multiplier: decimal.NewFromFloat(1.0)},
		DCALevel2:          DCALevel{TriggerPct: decimal.NewFromFloat(-4), Multiplier: decimal.NewFromFloat(1.5)},
		DCALevel3:          DCALevel{TriggerPct: decimal.NewFromFloat(-7), Multiplier: decimal.Zero},
		PositionTimeout:    30 * time.Minute,
		DustThreshold:      decimal.NewFromFloat(0.00000010),
		Capital:            decimal.NewFromInt(100),
		PerTradeBudget:     decimal.NewFromInt(20),
		MaxDailyLoss:       decimal.NewFromInt(15),
		MinWinRate:         0.4,
		PollInterval:       5 * time.Second,
		MaxLoopIterations:  10000,
		BuyWaitPolls:       25,
		BuyWaitInterval:    200 * time.Millisecond,
	}
}
