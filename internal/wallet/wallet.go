// Package wallet implements WalletView: a cached balance reader with
// an affordability/minimum-notional policy and a blocked-pair
// registry, generalized on the decimal+mutex idiom used throughout
// this module (no direct teacher equivalent; see DESIGN.md).
package wallet

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"gatescalp/internal/exchange/gate"
	"gatescalp/internal/money"
)

// BalanceReader is satisfied by *internal/exchange/gate.Client.
type BalanceReader interface {
	GetBalance(ctx context.Context, currency string) (*gate.Balance, error)
}

// Confirmer resolves the spec's "consult user" steps. The default,
// AutoDenyConfirmer, always declines: this bot runs headless, so an
// unresolved confirmation must fail safe rather than block forever on
// a terminal nobody is watching.
type Confirmer interface {
	Confirm(prompt string) bool
}

type AutoDenyConfirmer struct{}

func (AutoDenyConfirmer) Confirm(string) bool { return false }

type cachedBalance struct {
	amount decimal.Decimal
	at     time.Time
}

// View is WalletView.
type View struct {
	reader    BalanceReader
	confirmer Confirmer
	ttl       time.Duration

	minNotionalFloor  decimal.Decimal
	safetyMargin      decimal.Decimal

	mu    sync.Mutex
	cache map[string]cachedBalance

	blockMu sync.Mutex
	blocked map[string]string
}

func New(reader BalanceReader, confirmer Confirmer) *View {
	if confirmer == nil {
		confirmer = AutoDenyConfirmer{}
	}
	return &View{
		reader:           reader,
		confirmer:        confirmer,
		ttl:              5 * time.Second,
		minNotionalFloor: money.DefaultMinNotionalFloor,
		safetyMargin:     money.DefaultSafetyMargin,
		cache:            make(map[string]cachedBalance),
		blocked:          make(map[string]string),
	}
}

// Available returns the balance for asset, refreshed from the
// exchange unless a cache entry is fresh and forceRefresh is false.
func (v *View) Available(ctx context.Context, asset string, forceRefresh bool) (decimal.Decimal, error) {
	v.mu.Lock()
	if !forceRefresh {
		if c, ok := v.cache[asset]; ok && time.Since(c.at) < v.ttl {
			v.mu.Unlock()
			return c.amount, nil
		}
	}
	v.mu.Unlock()

	bal, err := v.reader.GetBalance(ctx, asset)
	if err != nil {
		return decimal.Zero, err
	}

	v.mu.Lock()
	v.cache[asset] = cachedBalance{amount: bal.Available, at: time.Now()}
	v.mu.Unlock()

	return bal.Available, nil
}

// CanAfford reports whether the quote-currency balance covers
// quoteAmount.
func (v *View) CanAfford(ctx context.Context, quoteAsset string, quoteAmount decimal.Decimal) (bool, error) {
	avail, err := v.Available(ctx, quoteAsset, false)
	if err != nil {
		return false, err
	}
	return avail.GreaterThanOrEqual(quoteAmount), nil
}

// minNotionalWithMargin is the floor below which Gate.io rejects an
// order, padded by safetyMargin so rounding never lands us under it.
func (v *View) minNotionalWithMargin() decimal.Decimal {
	return money.MinNotional(v.minNotionalFloor, v.safetyMargin)
}

// SuggestAffordable implements the spec's minimum-notional policy: it
// returns the quote amount actually safe to trade, 0 meaning "do not
// trade and the pair has been blocked".
func (v *View) SuggestAffordable(ctx context.Context, quoteAsset string, requested decimal.Decimal, pair string) (decimal.Decimal, error) {
	minWithMargin := v.minNotionalWithMargin()

	if requested.GreaterThanOrEqual(minWithMargin) {
		ok, err := v.CanAfford(ctx, quoteAsset, requested)
		if err != nil {
			return decimal.Zero, err
		}
		if ok {
			return requested, nil
		}
		if v.confirmer.Confirm("insufficient funds for " + pair + ": proceed anyway?") {
			return requested, nil
		}
		v.Block(pair, "insufficient funds for requested trade amount")
		return decimal.Zero, nil
	}

	canAffordMin, err := v.CanAfford(ctx, quoteAsset, minWithMargin)
	if err != nil {
		return decimal.Zero, err
	}
	if canAffordMin {
		if v.confirmer.Confirm("requested amount below minimum notional for " + pair + ": upscale to minimum?") {
			return minWithMargin, nil
		}
		return decimal.Zero, nil
	}

	v.Block(pair, "cannot afford even the minimum notional")
	return decimal.Zero, nil
}

// Block disables a pair from further order placement. Concurrent
// callers racing on the same pair is last-writer-wins.
func (v *View) Block(pair, reason string) {
	v.blockMu.Lock()
	defer v.blockMu.Unlock()
	v.blocked[pair] = reason
}

func (v *View) Unblock(pair string) {
	v.blockMu.Lock()
	defer v.blockMu.Unlock()
	delete(v.blocked, pair)
}

// IsBlocked reports whether pair is blocked and, if so, why.
func (v *View) IsBlocked(pair string) (string, bool) {
	v.blockMu.Lock()
	defer v.blockMu.Unlock()
	reason, ok := v.blocked[pair]
	return reason, ok
}

// InvalidateCache drops the cached balance for asset, e.g. right
// before a trade decision that must see a fresh number.
func (v *View) InvalidateCache(asset string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.cache, asset)
}
