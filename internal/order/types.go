// Package order implements OrderService: the four-collaborator
// pipeline (Validator, Calculator, Executor, Logger) that turns a
// sizing decision from the trading engine into a signed exchange
// order and a structured audit record, generalized from
// order/executor_adapter.go's compute-then-submit-then-interpret shape.
package order

import (
	"time"

	"github.com/shopspring/decimal"
)

// Request describes one order the trading engine wants placed.
// QuoteAmount drives buys (spend this much quote currency); BaseQty
// drives sells (dispose of this much base currency). Exactly one of
// the two is expected to be non-zero.
type Request struct {
	SessionID     string
	Pair          string
	Side          string // "buy" or "sell"
	OperationType string // entry, dca1, dca2, stopLoss, timeout, targetSell, ...
	Price         decimal.Decimal
	QuoteAmount   decimal.Decimal
	BaseQty       decimal.Decimal
	PriceSource   string // e.g. "bestAsk*1.002", "bestBid", "market"
}

// CalcResult is the Calculator's output: the rounded order terms.
type CalcResult struct {
	Qty        decimal.Decimal
	Price      decimal.Decimal
	GrossValue decimal.Decimal
	FeeRate    decimal.Decimal
	FeeEstimate decimal.Decimal
}

// Result is OrderService's return value, carrying everything the
// audit log and the engine need.
type Result struct {
	OrderID        string
	Status         string
	Calc           CalcResult
	BalanceBefore  decimal.Decimal
	BalanceAfter   decimal.Decimal
	ExecTime       time.Duration
	Err            error
}

// Record is one row of the per-day audit log, matching spec §6's
// field list exactly.
type Record struct {
	Timestamp     time.Time
	SessionID     string
	OperationType string
	Pair          string
	Percentage    decimal.Decimal
	Qty           decimal.Decimal
	Price         decimal.Decimal
	GrossValue    decimal.Decimal
	OrderID       string
	Status        string
	FeeEstimated  decimal.Decimal
	FeeRate       decimal.Decimal
	GtUsed        decimal.Decimal
	BalanceBefore decimal.Decimal
	BalanceAfter  decimal.Decimal
	PriceSource   string
	ExecTimeMs    int64
	UserAction    string
	Notes         string
}

func (r Record) csvRow() []string {
	return []string{
		r.Timestamp.UTC().Format(time.RFC3339Nano),
		r.SessionID,
		r.OperationType,
		r.Pair,
		r.Percentage.String(),
		r.Qty.String(),
		r.Price.String(),
		r.GrossValue.String(),
		r.OrderID,
		r.Status,
		r.FeeEstimated.String(),
		r.FeeRate.String(),
		r.GtUsed.String(),
		r.BalanceBefore.String(),
		r.BalanceAfter.String(),
		r.PriceSource,
		decimal.NewFromInt(r.ExecTimeMs).String(),
		r.UserAction,
		r.Notes,
	}
}

var csvHeader = []string{
	"timestamp", "sessionId", "operationType", "pair", "percentage", "qty", "price",
	"grossValue", "orderId", "status", "feeEstimated", "feeRate", "gtUsed",
	"balanceBefore", "balanceAfter", "priceSource", "execTimeMs", "userAction", "notes",
}
