package order

import (
	"github.com/shopspring/decimal"

	"gatescalp/internal/money"
	"gatescalp/internal/xerrors"
)

// Validator enforces spec §4.10's first collaborator: positive
// balance, sufficiency, minimum notional.
type Validator struct {
	MinNotionalFloor decimal.Decimal
	SafetyMargin     decimal.Decimal
}

func NewValidator() Validator {
	return Validator{
		MinNotionalFloor: money.DefaultMinNotionalFloor,
		SafetyMargin:     money.DefaultSafetyMargin,
	}
}

func (v Validator) minNotional() decimal.Decimal {
	return money.MinNotional(v.MinNotionalFloor, v.SafetyMargin)
}

// Validate checks a computed order against the caller's available
// balance, in the currency the order spends (quote on buy, base on
// sell). It returns an *xerrors.Error classified insufficientBalance,
// minOrderValue, or validation, nil when the order is safe to submit.
func (v Validator) Validate(calc CalcResult, spend, available decimal.Decimal) error {
	if available.LessThanOrEqual(decimal.Zero) {
		return xerrors.New(xerrors.KindInsufficientBalance, "available balance is zero or negative")
	}
	if calc.GrossValue.LessThan(v.minNotional()) {
		return xerrors.New(xerrors.KindMinOrderValue, "order value below minimum notional")
	}
	if spend.GreaterThan(available) {
		return xerrors.New(xerrors.KindInsufficientBalance, "order spend exceeds available balance")
	}
	if calc.Qty.LessThanOrEqual(decimal.Zero) || calc.Price.LessThanOrEqual(decimal.Zero) {
		return xerrors.New(xerrors.KindValidation, "computed qty or price is non-positive")
	}
	return nil
}
