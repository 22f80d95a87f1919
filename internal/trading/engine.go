// Package trading implements TradingEngine: the waitingToBuy /
// positionOpen / waitingForSell state machine, its DCA ladder, and the
// SafetySystem that gates it, per spec §4.11. Grounded on the
// VWAP-on-fill idiom of
// market_maker/internal/trading/position/manager.go and the
// Check*-returns-error pattern of
// market_maker/internal/safety/checker.go, assembled around the
// transition table spec.md states directly.
package trading

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"gatescalp/internal/exchange/gate"
	"gatescalp/internal/order"
	"gatescalp/internal/sleep"
	"gatescalp/internal/trading/indicators"
)

// State is one of the three TradingEngine states.
type State string

const (
	StateWaitingToBuy  State = "waitingToBuy"
	StatePositionOpen  State = "positionOpen"
	StateWaitingToSell State = "waitingForSell"
)

// PriceSource is satisfied by *internal/exchange/gate.Client.
type PriceSource interface {
	BestBookPrice(ctx context.Context, pair, side string) (decimal.Decimal, error)
	GetCandles(ctx context.Context, pair, interval string, limit int) ([]gate.Candle, error)
	GetOrderStatus(ctx context.Context, pair, orderID string) (*gate.Order, error)
}

// BalanceChecker is satisfied by *internal/wallet.View.
type BalanceChecker interface {
	Available(ctx context.Context, asset string, forceRefresh bool) (decimal.Decimal, error)
}

// Engine is one TradingEngine instance, trading a single pair.
type Engine struct {
	cfg       Config
	baseAsset string
	quote     string

	exchange PriceSource
	orders   *order.Service
	balances BalanceChecker
	sleeper  *sleep.Manager
	safety   *SafetySystem
	logger   *slog.Logger

	// mu guards every field below: Run's loop goroutine mutates them on
	// each step, while a status-emitter goroutine calls Snapshot
	// concurrently (cmd/gatescalp's runWorker wires both through an
	// errgroup), so a step's entire set of transitions must appear
	// atomic to the reader.
	mu               sync.Mutex
	state            State
	position         Position
	openedAt         time.Time
	pendingSellID    string
	missingSellPolls int
	lastAction       string
	lastActionAt     time.Time
}

// Snapshot is the read-only view of an engine's current state and
// recent activity, published into SharedState's BotStatus by the
// worker's status emitter (spec §2: "the engine periodically writes
// its status to SharedState").
type Snapshot struct {
	State        State
	HasPosition  bool
	EntryPrice   decimal.Decimal
	Quantity     decimal.Decimal
	OpenedAt     time.Time
	PnLPercent   decimal.Decimal
	TradesToday  int
	LastAction   string
	LastActionAt time.Time
}

// Snapshot returns a copy of the engine's current state. Safe to call
// from a goroutine other than the one driving Run.
func (e *Engine) Snapshot(currentPrice decimal.Decimal) Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	tradesToday, _ := e.safety.Snapshot()
	snap := Snapshot{
		State:        e.state,
		HasPosition:  !e.position.Qty.IsZero(),
		EntryPrice:   e.position.VWAP(),
		Quantity:     e.position.Qty,
		OpenedAt:     e.openedAt,
		TradesToday:  tradesToday,
		LastAction:   e.lastAction,
		LastActionAt: e.lastActionAt,
	}
	if snap.HasPosition && currentPrice.IsPositive() {
		snap.PnLPercent = e.position.PnLPct(currentPrice)
	}
	return snap
}

// recordAction sets the last meaningful action taken by the engine.
// Callers must already hold mu.
func (e *Engine) recordAction(action string) {
	e.lastAction = action
	e.lastActionAt = time.Now()
}

func New(cfg Config, exchange PriceSource, orders *order.Service, balances BalanceChecker, sleeper *sleep.Manager, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	base, quote := splitPair(cfg.Pair)
	return &Engine{
		cfg:       cfg,
		baseAsset: base,
		quote:     quote,
		exchange:  exchange,
		orders:    orders,
		balances:  balances,
		sleeper:   sleeper,
		safety:    NewSafetySystem(cfg.MaxDailyLoss, cfg.MinWinRate),
		logger:    logger.With("pair", cfg.Pair, "component", "trading_engine"),
		state:     StateWaitingToBuy,
	}
}

func splitPair(pair string) (base, quote string) {
	parts := strings.SplitN(pair, "_", 2)
	if len(parts) != 2 {
		return pair, ""
	}
	return parts[0], parts[1]
}

// Run drives the state machine until ctx is canceled, the safety
// system denies further trading, the per-session sleep budget is
// exhausted, or the iteration cap is hit — whichever comes first, per
// spec §4.11's absolute loop bounds.
func (e *Engine) Run(ctx context.Context) error {
	for i := 0; i < e.cfg.MaxLoopIterations; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if allowed, reason := e.safety.Allowed(); !allowed {
			e.logger.Warn("safety system denied further trading", "reason", reason)
			return fmt.Errorf("safety system denied trading: %s", reason)
		}

		if err := e.step(ctx); err != nil {
			e.logger.Error("engine step failed", "state", e.state, "error", err)
		}

		if !e.sleeper.Sleep(ctx, e.cfg.PollInterval, sleep.ContextTradingCycle, true) {
			return errors.New("sleep budget exhausted")
		}
	}
	return fmt.Errorf("iteration cap of %d reached", e.cfg.MaxLoopIterations)
}

func (e *Engine) step(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.state {
	case StateWaitingToBuy:
		return e.stepWaitingToBuy(ctx)
	case StatePositionOpen:
		return e.stepPositionOpen(ctx)
	case StateWaitingToSell:
		return e.stepWaitingToSell(ctx)
	default:
		return fmt.Errorf("unknown state %q", e.state)
	}
}

func (e *Engine) baseBalance(ctx context.Context) (decimal.Decimal, error) {
	return e.balances.Available(ctx, e.baseAsset, false)
}

func (e *Engine) stepWaitingToBuy(ctx context.Context) error {
	baseBal, err := e.baseBalance(ctx)
	if err != nil {
		return err
	}

	if baseBal.GreaterThan(e.cfg.DustThreshold) {
		price, err := e.exchange.BestBookPrice(ctx, e.cfg.Pair, "buy")
		if err != nil {
			return err
		}
		e.position.Reset()
		e.position.AddFill(baseBal, price)
		e.openedAt = time.Now()
		e.state = StatePositionOpen
		e.recordAction("virtualEntry")
		e.logger.Info("adopted existing balance as virtual entry", "qty", baseBal, "price", price)
		return nil
	}

	sig, err := e.entrySignal(ctx)
	if err != nil {
		return err
	}
	if !sig.Enter() {
		return nil
	}

	ask, err := e.exchange.BestBookPrice(ctx, e.cfg.Pair, "buy")
	if err != nil {
		return err
	}
	buyPrice := ask.Mul(decimal.NewFromFloat(1.002))
	quoteAmount := PositionSize(sig, e.cfg.Capital, e.cfg.PerTradeBudget, time.Now())

	res, err := e.orders.Place(ctx, order.Request{
		Pair: e.cfg.Pair, Side: "buy", OperationType: "entry",
		Price: buyPrice, QuoteAmount: quoteAmount, PriceSource: "bestAsk*1.002",
	})
	if err != nil {
		return err
	}

	if e.waitForFill(ctx, res.OrderID) {
		e.position.Reset()
		e.position.AddFill(res.Calc.Qty, res.Calc.Price)
		e.openedAt = time.Now()
		e.state = StatePositionOpen
		e.recordAction("entry")
		e.logger.Info("entry filled", "qty", res.Calc.Qty, "price", res.Calc.Price)
	}
	return nil
}

// waitForFill polls orderID up to cfg.BuyWaitPolls times (≤5s total)
// and reports whether it observed a filled/closed status.
func (e *Engine) waitForFill(ctx context.Context, orderID string) bool {
	if orderID == "" {
		return false
	}
	for i := 0; i < e.cfg.BuyWaitPolls; i++ {
		ord, err := e.exchange.GetOrderStatus(ctx, e.cfg.Pair, orderID)
		if err == nil && (ord.Status == "closed" || ord.Status == "filled") {
			return true
		}
		if !e.sleeper.Sleep(ctx, e.cfg.BuyWaitInterval, sleep.ContextDataPolling, false) {
			return false
		}
	}
	return false
}

func (e *Engine) entrySignal(ctx context.Context) (indicators.Signal, error) {
	candles, err := e.exchange.GetCandles(ctx, e.cfg.Pair, "1m", 20)
	if err != nil {
		return indicators.Signal{}, err
	}
	closes := make([]float64, len(candles))
	volumes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i], _ = c.Close.Float64()
		volumes[i], _ = c.Volume.Float64()
	}
	return indicators.Compute(closes, volumes), nil
}

func (e *Engine) stepPositionOpen(ctx context.Context) error {
	price, err := e.exchange.BestBookPrice(ctx, e.cfg.Pair, "sell")
	if err != nil {
		return err
	}

	entry := e.position.VWAP()
	pnlPct := e.position.PnLPct(price)

	target := entry.Mul(decimal.NewFromInt(1).Add(e.cfg.TargetPct.Div(decimal.NewFromInt(100))))
	if price.GreaterThanOrEqual(target) {
		return e.placeSell(ctx, "targetSell", price.Round(8))
	}

	if !e.position.Level3Active && pnlPct.LessThanOrEqual(e.cfg.DCALevel3.TriggerPct) {
		e.position.Level3Active = true
		stopPrice := price.Mul(decimal.NewFromFloat(0.995))
		return e.placeSell(ctx, "stopLoss", stopPrice)
	}

	if e.cfg.PositionTimeout > 0 && time.Since(e.openedAt) >= e.cfg.PositionTimeout {
		return e.placeSell(ctx, "timeout", price)
	}

	if !e.position.Level1Active && pnlPct.LessThanOrEqual(e.cfg.DCALevel1.TriggerPct) {
		return e.dcaBuy(ctx, e.cfg.DCALevel1, "dca1", &e.position.Level1Active)
	}
	if e.position.Level1Active && !e.position.Level2Active && pnlPct.LessThanOrEqual(e.cfg.DCALevel2.TriggerPct) {
		return e.dcaBuy(ctx, e.cfg.DCALevel2, "dca2", &e.position.Level2Active)
	}

	return nil
}

func (e *Engine) dcaBuy(ctx context.Context, level DCALevel, op string, activate *bool) error {
	ask, err := e.exchange.BestBookPrice(ctx, e.cfg.Pair, "buy")
	if err != nil {
		return err
	}
	price := ask.Mul(decimal.NewFromFloat(1.002))
	quoteAmount := e.cfg.PerTradeBudget.Mul(level.Multiplier)

	res, err := e.orders.Place(ctx, order.Request{
		Pair: e.cfg.Pair, Side: "buy", OperationType: op,
		Price: price, QuoteAmount: quoteAmount, PriceSource: "market+0.2%",
	})
	if err != nil {
		return err
	}

	if e.waitForFill(ctx, res.OrderID) {
		e.position.AddFill(res.Calc.Qty, res.Calc.Price)
		*activate = true
		e.recordAction(op)
		e.logger.Info("dca level filled", "op", op, "new_vwap", e.position.VWAP())
	}
	return nil
}

func (e *Engine) placeSell(ctx context.Context, op string, price decimal.Decimal) error {
	res, err := e.orders.Place(ctx, order.Request{
		Pair: e.cfg.Pair, Side: "sell", OperationType: op,
		Price: price.Round(8), BaseQty: e.position.Qty, PriceSource: op,
	})
	if err != nil {
		return err
	}
	e.pendingSellID = res.OrderID
	e.missingSellPolls = 0
	e.state = StateWaitingToSell
	e.recordAction(op)
	return nil
}

func (e *Engine) stepWaitingToSell(ctx context.Context) error {
	baseBal, err := e.baseBalance(ctx)
	if err != nil {
		return err
	}

	if baseBal.LessThan(e.cfg.DustThreshold) {
		pnl := e.realizedPnL(ctx)
		allowed, reason := e.safety.CheckTrade(pnl)
		e.logger.Info("trade complete", "pnl", pnl, "safety_allowed", allowed, "reason", reason)
		e.position.Reset()
		e.pendingSellID = ""
		e.missingSellPolls = 0
		e.state = StateWaitingToBuy
		e.recordAction("tradeComplete")
		return nil
	}

	if e.pendingSellID != "" {
		ord, err := e.exchange.GetOrderStatus(ctx, e.cfg.Pair, e.pendingSellID)
		if err != nil || ord.Status == "cancelled" {
			// The exchange may report the order gone for a single poll while
			// its own fill settlement is still catching up (spec §9); require
			// two consecutive misses before concluding it was genuinely lost.
			e.missingSellPolls++
			if e.missingSellPolls >= 2 {
				e.missingSellPolls = 0
				e.pendingSellID = ""
				e.state = StatePositionOpen
			}
			return nil
		}
		e.missingSellPolls = 0
	}
	return nil
}

// realizedPnL looks up the closing sell's fill to compute proceeds
// net of fees against the position's cost basis. If the sell order
// can't be read (already purged by the exchange) it falls back to 0,
// which is conservative for the win-rate gate but not for the P&L
// ledger — the audit log's balanceBefore/After columns carry the
// exact figure regardless.
func (e *Engine) realizedPnL(ctx context.Context) decimal.Decimal {
	if e.pendingSellID == "" {
		return decimal.Zero
	}
	ord, err := e.exchange.GetOrderStatus(ctx, e.cfg.Pair, e.pendingSellID)
	if err != nil {
		return decimal.Zero
	}
	proceeds := ord.FilledTotal.Sub(ord.Fee)
	return proceeds.Sub(e.position.Cost)
}

// State exposes the current state for monitoring/tests.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}
