package trading

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestCheckTradeDeniesWhenDailyLossExceeded(t *testing.T) {
	s := NewSafetySystem(decimal.NewFromInt(10), 0.4)

	allowed, _ := s.CheckTrade(decimal.NewFromInt(-11))
	assert.False(t, allowed)
}

func TestCheckTradeDeniesOnLowRollingWinRate(t *testing.T) {
	s := NewSafetySystem(decimal.NewFromInt(1000), 0.5)

	losses := []decimal.Decimal{
		decimal.NewFromInt(-1), decimal.NewFromInt(-1), decimal.NewFromInt(-1),
		decimal.NewFromInt(-1), decimal.NewFromInt(1),
	}
	var allowed bool
	for _, pnl := range losses {
		allowed, _ = s.CheckTrade(pnl)
	}
	assert.False(t, allowed, "1/5 win rate is below the 0.5 minimum")
}

func TestCheckTradeAllowsBeforeFiveTradeWindowFills(t *testing.T) {
	s := NewSafetySystem(decimal.NewFromInt(1000), 0.9)

	allowed, _ := s.CheckTrade(decimal.NewFromInt(-1))
	assert.True(t, allowed, "win-rate gate only applies once 5 trades have accumulated")
}
