package trading

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"gatescalp/internal/trading/indicators"
)

func TestAggressivenessFactorBySession(t *testing.T) {
	assert.Equal(t, 0.7, aggressivenessFactor(3))
	assert.Equal(t, 1.0, aggressivenessFactor(10))
	assert.Equal(t, 1.2, aggressivenessFactor(20))
}

func TestKellyFractionClampedToConfiguredRange(t *testing.T) {
	assert.Equal(t, 0.20, kellyFraction(0.99, 0.5))
	assert.Equal(t, 0.01, kellyFraction(0.01, 0.0001))
}

func TestPositionSizeNeverBelowMinimumNotional(t *testing.T) {
	sig := indicators.Signal{Confidence: 0.21, Volatility: 0.0002}
	size := PositionSize(sig, decimal.NewFromInt(10), decimal.NewFromInt(100), time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC))
	assert.True(t, size.GreaterThanOrEqual(decimal.NewFromFloat(5.75)))
}

func TestPositionSizeCappedAtPerTradeBudget(t *testing.T) {
	sig := indicators.Signal{Confidence: 0.9, Volatility: 0.01}
	size := PositionSize(sig, decimal.NewFromInt(100000), decimal.NewFromInt(20), time.Date(2026, 1, 1, 20, 0, 0, 0, time.UTC))
	assert.True(t, size.Equal(decimal.NewFromInt(20)))
}
