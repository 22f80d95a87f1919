package order

import (
	"github.com/shopspring/decimal"

	"gatescalp/internal/money"
)

// Calculator is spec §4.10's second collaborator: given a quote
// amount (or base qty, for sells) and the chosen price, it computes
// the rounded order terms.
type Calculator struct{}

// Calculate derives (qty, price, grossValue, feeEstimate) for req. feeRate
// is the exchange's effective taker/maker fee for the pair.
func (Calculator) Calculate(req Request, feeRate decimal.Decimal) CalcResult {
	price := money.RoundPrice(req.Price)

	var qty decimal.Decimal
	if !req.BaseQty.IsZero() {
		qty = money.FloorQty(req.BaseQty)
	} else {
		qty = money.FloorQty(req.QuoteAmount.Div(price))
	}

	gross := money.RoundPrice(qty.Mul(price))

	return CalcResult{
		Qty:         qty,
		Price:       price,
		GrossValue:  gross,
		FeeRate:     feeRate,
		FeeEstimate: money.RoundPrice(gross.Mul(feeRate)),
	}
}
