package trading

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestVWAPAveragesAcrossFills(t *testing.T) {
	var p Position
	p.AddFill(decimal.NewFromInt(1), decimal.NewFromInt(100))
	p.AddFill(decimal.NewFromInt(1), decimal.NewFromInt(80))

	assert.True(t, p.VWAP().Equal(decimal.NewFromInt(90)))
}

func TestPnLPctIsZeroWithNoPosition(t *testing.T) {
	var p Position
	assert.True(t, p.PnLPct(decimal.NewFromInt(100)).IsZero())
}

func TestPnLPctReflectsVWAPNotRawEntry(t *testing.T) {
	var p Position
	p.AddFill(decimal.NewFromInt(1), decimal.NewFromInt(100))
	p.AddFill(decimal.NewFromInt(1), decimal.NewFromInt(60)) // DCA drags VWAP to 80

	pct := p.PnLPct(decimal.NewFromInt(80))
	assert.True(t, pct.IsZero(), "price at VWAP must show 0%% even though it's below the original 100 entry")
}
