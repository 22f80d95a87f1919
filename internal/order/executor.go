package order

import (
	"context"

	"github.com/shopspring/decimal"

	"gatescalp/internal/exchange/gate"
)

// Executor is spec §4.10's third collaborator. It is satisfied
// directly by *internal/exchange/gate.Client.
type Executor interface {
	PlaceSpotOrder(ctx context.Context, pair, side, orderType string, amount, price decimal.Decimal) (*gate.Order, error)
	GetOrderStatus(ctx context.Context, pair, orderID string) (*gate.Order, error)
}

// BalanceChecker is satisfied by *internal/wallet.View.
type BalanceChecker interface {
	Available(ctx context.Context, asset string, forceRefresh bool) (decimal.Decimal, error)
	IsBlocked(pair string) (string, bool)
	SuggestAffordable(ctx context.Context, quoteAsset string, requested decimal.Decimal, pair string) (decimal.Decimal, error)
}

// FeeRateSource is satisfied by *internal/exchange/gate.Client.
type FeeRateSource interface {
	EffectiveFeeRate(ctx context.Context, pair, orderType string, notional decimal.Decimal) (decimal.Decimal, error)
}

// execute submits calc to the exchange and interprets the response,
// per spec §4.10 ("submits to ExchangeClient, interprets response").
func execute(ctx context.Context, ex Executor, req Request, calc CalcResult) (*gate.Order, error) {
	ord, err := ex.PlaceSpotOrder(ctx, req.Pair, req.Side, "limit", calc.Qty, calc.Price)
	if err != nil {
		return nil, err
	}
	return ord, nil
}
