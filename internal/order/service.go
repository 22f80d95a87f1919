package order

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"gatescalp/internal/breaker"
	"gatescalp/internal/xerrors"
)

// BusRecorder is satisfied by *internal/monitor.Bus.
type BusRecorder interface {
	RecordTradeEvent(success bool, pair string, profit float64, executionTime time.Duration, errMessage string)
}

// Service is OrderService: it orchestrates Validator, Calculator,
// Executor and AuditLogger across one order, per spec §4.10.
type Service struct {
	Validator  Validator
	Calculator Calculator
	Executor   Executor
	FeeSource  FeeRateSource
	Balances   BalanceChecker
	Audit      *AuditLogger
	Bus        BusRecorder
	Breaker    *breaker.CircuitBreaker // per-pair, owned by the caller; nil disables tallying
	Logger     *slog.Logger
}

func New(ex Executor, fees FeeRateSource, balances BalanceChecker, audit *AuditLogger, bus BusRecorder, cb *breaker.CircuitBreaker, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		Validator:  NewValidator(),
		Calculator: Calculator{},
		Executor:   ex,
		FeeSource:  fees,
		Balances:   balances,
		Audit:      audit,
		Bus:        bus,
		Breaker:    cb,
		Logger:     logger,
	}
}

func splitPair(pair string) (base, quote string) {
	parts := strings.SplitN(pair, "_", 2)
	if len(parts) != 2 {
		return pair, ""
	}
	return parts[0], parts[1]
}

// spendAsset returns the currency debited by req.Side and the amount
// spent, given the computed order terms.
func spendAsset(pair, side string, calc CalcResult) (asset string, amount decimal.Decimal) {
	base, quote := splitPair(pair)
	if side == "sell" {
		return base, calc.Qty
	}
	return quote, calc.GrossValue
}

// Place validates, computes, submits and logs one order. On any
// failure it publishes a tradeFailure-shaped event to Bus and
// increments Breaker for every kind but validation, per spec §4.10.
func (s *Service) Place(ctx context.Context, req Request) (*Result, error) {
	if reason, blocked := s.Balances.IsBlocked(req.Pair); blocked {
		return s.fail(req, CalcResult{}, decimal.Zero, 0, xerrors.New(xerrors.KindValidation, "pair blocked: "+reason))
	}

	if req.Side == "buy" && !req.QuoteAmount.IsZero() {
		_, quote := splitPair(req.Pair)
		affordable, err := s.Balances.SuggestAffordable(ctx, quote, req.QuoteAmount, req.Pair)
		if err != nil {
			return s.fail(req, CalcResult{}, decimal.Zero, 0, xerrors.Wrap(xerrors.KindAPI, "check affordability", err))
		}
		if affordable.IsZero() {
			return s.fail(req, CalcResult{}, decimal.Zero, 0, xerrors.New(xerrors.KindValidation, "order blocked by affordability policy"))
		}
		req.QuoteAmount = affordable
	}

	notional := req.QuoteAmount
	if req.Side == "sell" {
		notional = req.BaseQty.Mul(req.Price)
	}
	feeRate, err := s.FeeSource.EffectiveFeeRate(ctx, req.Pair, "limit", notional)
	if err != nil {
		return s.fail(req, CalcResult{}, decimal.Zero, 0, xerrors.Wrap(xerrors.KindAPI, "fetch fee rate", err))
	}

	calc := s.Calculator.Calculate(req, feeRate)
	asset, spend := spendAsset(req.Pair, req.Side, calc)

	balanceBefore, err := s.Balances.Available(ctx, asset, false)
	if err != nil {
		return s.fail(req, calc, decimal.Zero, 0, xerrors.Wrap(xerrors.KindAPI, "fetch balance", err))
	}

	if verr := s.Validator.Validate(calc, spend, balanceBefore); verr != nil {
		return s.fail(req, calc, balanceBefore, 0, verr)
	}

	start := time.Now()
	ord, err := execute(ctx, s.Executor, req, calc)
	execTime := time.Since(start)
	if err != nil {
		return s.fail(req, calc, balanceBefore, execTime, xerrors.Wrap(xerrors.KindOf(err), "place order", err))
	}

	if s.Breaker != nil {
		s.Breaker.RecordSuccess()
	}

	balanceAfter, err := s.Balances.Available(ctx, asset, true)
	if err != nil {
		balanceAfter = balanceBefore
	}

	s.logRecord(req, calc, ord.ID, ord.Status, balanceBefore, balanceAfter, execTime, "")

	if s.Bus != nil {
		s.Bus.RecordTradeEvent(true, req.Pair, 0, execTime, "")
	}

	return &Result{
		OrderID:       ord.ID,
		Status:        ord.Status,
		Calc:          calc,
		BalanceBefore: balanceBefore,
		BalanceAfter:  balanceAfter,
		ExecTime:      execTime,
	}, nil
}

func (s *Service) fail(req Request, calc CalcResult, balanceBefore decimal.Decimal, execTime time.Duration, err error) (*Result, error) {
	kind := xerrors.KindOf(err)
	if s.Breaker != nil && kind != xerrors.KindValidation {
		s.Breaker.RecordFailure(kind)
	}

	s.logRecord(req, calc, "", "rejected", balanceBefore, balanceBefore, execTime, err.Error())

	if s.Bus != nil {
		s.Bus.RecordTradeEvent(false, req.Pair, 0, execTime, err.Error())
	}
	if s.Logger != nil {
		s.Logger.Warn("order rejected", "pair", req.Pair, "op", req.OperationType, "kind", kind, "error", err)
	}

	return &Result{Calc: calc, BalanceBefore: balanceBefore, BalanceAfter: balanceBefore, ExecTime: execTime, Err: err}, err
}

func (s *Service) logRecord(req Request, calc CalcResult, orderID, status string, before, after decimal.Decimal, execTime time.Duration, notes string) {
	if s.Audit == nil {
		return
	}
	rec := Record{
		Timestamp:     time.Now(),
		SessionID:     req.SessionID,
		OperationType: req.OperationType,
		Pair:          req.Pair,
		Percentage:    decimal.Zero,
		Qty:           calc.Qty,
		Price:         calc.Price,
		GrossValue:    calc.GrossValue,
		OrderID:       orderID,
		Status:        status,
		FeeEstimated:  calc.FeeEstimate,
		FeeRate:       calc.FeeRate,
		GtUsed:        decimal.Zero,
		BalanceBefore: before,
		BalanceAfter:  after,
		PriceSource:   req.PriceSource,
		ExecTimeMs:    execTime.Milliseconds(),
		UserAction:    "auto",
		Notes:         notes,
	}
	if err := s.Audit.Log(rec); err != nil && s.Logger != nil {
		s.Logger.Error("audit log write failed", "error", err)
	}
}
