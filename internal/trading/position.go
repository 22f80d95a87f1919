package trading

import "github.com/shopspring/decimal"

// DCALevel is one rung of the averaging-down ladder.
type DCALevel struct {
	TriggerPct decimal.Decimal // P&L% at which this level fires (negative)
	Multiplier decimal.Decimal // budget multiplier for the averaging buy
}

// Position tracks the running VWAP entry across the original fill and
// any DCA buys, per spec §4.11's effectiveEntry definition. Grounded
// on the VWAP-on-fill mutation in
// market_maker/internal/trading/position/manager.go, generalized from
// per-slot fills to a single running position.
type Position struct {
	Qty          decimal.Decimal
	Cost         decimal.Decimal // cumulative quote spent across all fills
	Level1Active bool
	Level2Active bool
	Level3Active bool // stop-loss fired for this position
}

// AddFill folds a new buy fill into the running VWAP.
func (p *Position) AddFill(qty, price decimal.Decimal) {
	p.Qty = p.Qty.Add(qty)
	p.Cost = p.Cost.Add(qty.Mul(price))
}

// VWAP is the effectiveEntry: cumulative cost divided by cumulative
// quantity. Zero quantity returns zero.
func (p *Position) VWAP() decimal.Decimal {
	if p.Qty.IsZero() {
		return decimal.Zero
	}
	return p.Cost.Div(p.Qty)
}

// Reset clears the position for a fresh entry.
func (p *Position) Reset() {
	*p = Position{}
}

// PnLPct computes the percentage gain/loss of currentPrice against
// the running VWAP entry.
func (p *Position) PnLPct(currentPrice decimal.Decimal) decimal.Decimal {
	vwap := p.VWAP()
	if vwap.IsZero() {
		return decimal.Zero
	}
	return currentPrice.Sub(vwap).Div(vwap).Mul(decimal.NewFromInt(100))
}
