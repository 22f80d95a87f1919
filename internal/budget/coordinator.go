// Package budget coordinates USDT allocation across the bots a
// SessionManager supervises, so two bots trading different pairs
// never overcommit the same exchange balance. Grounded on
// original_source/session_manager.py's BudgetCoordinator.
package budget

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"gatescalp/internal/exchange/gate"
)

// minTradeable is the floor below which a partial allocation isn't
// worth granting, per the original's "Minimo 10 USDT per fare trading".
var minTradeable = decimal.NewFromInt(10)

// partialMargin is the fraction of remaining headroom granted on a
// partial allocation, leaving the rest as margin.
var partialMargin = decimal.NewFromFloat(0.9)

// BalanceSource reports the account's balance for one asset. Satisfied
// by *internal/exchange/gate.Client.
type BalanceSource interface {
	GetBalance(ctx context.Context, currency string) (*gate.Balance, error)
}

// Info is a snapshot of the shared USDT budget.
type Info struct {
	TotalUSDT     decimal.Decimal
	AllocatedUSDT decimal.Decimal
	AvailableUSDT decimal.Decimal
}

// Coordinator tracks per-pair allocations against a shared USDT pool.
// Safe for concurrent use; callers from multiple bot sessions share one
// instance. Allocations are held in this instance's memory only and are
// not shared across OS processes.
type Coordinator struct {
	balances BalanceSource
	asset    string

	mu        sync.Mutex
	allocated map[string]decimal.Decimal
}

func New(balances BalanceSource, asset string) *Coordinator {
	return &Coordinator{
		balances:  balances,
		asset:     asset,
		allocated: make(map[string]decimal.Decimal),
	}
}

// totalAllocated sums allocated. Callers must hold mu.
func (c *Coordinator) totalAllocated() decimal.Decimal {
	sum := decimal.Zero
	for _, v := range c.allocated {
		sum = sum.Add(v)
	}
	return sum
}

// Update refreshes Info from the exchange balance and current
// allocations.
func (c *Coordinator) Update(ctx context.Context) (Info, error) {
	bal, err := c.balances.GetBalance(ctx, c.asset)
	if err != nil {
		return Info{}, err
	}
	total := bal.Available.Add(bal.Locked)

	c.mu.Lock()
	allocated := c.totalAllocated()
	c.mu.Unlock()

	available := total.Sub(allocated)
	if available.IsNegative() {
		available = decimal.Zero
	}
	return Info{TotalUSDT: total, AllocatedUSDT: allocated, AvailableUSDT: available}, nil
}

// Allocate grants budget to pair, up to requested. If the full amount
// isn't available but more than minTradeable is, it grants 90% of
// what's left as a partial allocation. Returns (false, 0) if neither
// condition holds.
func (c *Coordinator) Allocate(ctx context.Context, pair string, requested decimal.Decimal) (bool, decimal.Decimal, error) {
	info, err := c.Update(ctx)
	if err != nil {
		return false, decimal.Zero, err
	}

	var granted decimal.Decimal
	switch {
	case requested.LessThanOrEqual(info.AvailableUSDT):
		granted = requested
	case info.AvailableUSDT.GreaterThan(minTradeable):
		granted = info.AvailableUSDT.Mul(partialMargin)
	default:
		return false, decimal.Zero, nil
	}

	c.mu.Lock()
	c.allocated[pair] = granted
	c.mu.Unlock()
	return true, granted, nil
}

// Deallocate releases pair's allocation back to the shared pool.
func (c *Coordinator) Deallocate(pair string) {
	c.mu.Lock()
	delete(c.allocated, pair)
	c.mu.Unlock()
}

// Allocated returns the currently granted budget for pair, or zero if
// none is allocated.
func (c *Coordinator) Allocated(pair string) decimal.Decimal {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.allocated[pair]
}
