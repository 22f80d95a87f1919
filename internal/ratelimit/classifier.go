package ratelimit

import (
	"strings"
	"sync"
)

// literalEndpoints maps exact paths to their category; entries with
// method-sensitive behavior (spot/futures order mutation) are resolved
// in Classify rather than here.
var literalEndpoints = map[string]Category{
	"/spot/currencies":     CategoryPublic,
	"/spot/currency_pairs": CategoryPublic,
	"/spot/tickers":        CategoryPublic,
	"/spot/order_book":     CategoryPublic,
	"/spot/trades":         CategoryPublic,
	"/spot/candlesticks":   CategoryPublic,
	"/spot/accounts":       CategorySpotOther,
	"/spot/my_trades":      CategorySpotOther,
	"/wallet/fee":          CategoryWalletOther,
}

type classifyKey struct {
	method, path string
}

// Classifier is the EndpointClassifier: a pure (path, method) -> Category
// function, cached per (method, path).
type Classifier struct {
	cache sync.Map // classifyKey -> Category
}

func NewClassifier() *Classifier {
	return &Classifier{}
}

// Classify returns the rate-limit category for method+path. Results are
// cached; the underlying rule function is pure so the cache never goes
// stale.
func (c *Classifier) Classify(method, path string) Category {
	key := classifyKey{method: strings.ToUpper(method), path: path}
	if v, ok := c.cache.Load(key); ok {
		return v.(Category)
	}
	cat := classify(key.method, key.path)
	c.cache.Store(key, cat)
	return cat
}

func classify(method, path string) Category {
	clean := path
	if i := strings.IndexByte(clean, '?'); i >= 0 {
		clean = clean[:i]
	}

	if cat, ok := literalEndpoints[clean]; ok {
		return cat
	}

	// Spot order mutations: path-prefixed, not a literal match (e.g.
	// /spot/orders/{id}).
	if strings.HasPrefix(clean, "/spot/orders") || strings.HasPrefix(clean, "/spot/batch_orders") ||
		strings.HasPrefix(clean, "/spot/cancel_batch_orders") {
		switch method {
		case "POST", "PUT":
			return CategorySpotOrderPlace
		case "DELETE":
			return CategorySpotOrderCancel
		default:
			return CategorySpotOther
		}
	}
	if strings.HasPrefix(clean, "/spot/") {
		return CategorySpotOther
	}

	if strings.HasPrefix(clean, "/wallet/withdrawals") || strings.HasPrefix(clean, "/withdrawals") {
		return CategoryWalletWithdraw
	}
	if strings.HasPrefix(clean, "/wallet/") {
		return CategoryWalletOther
	}

	if strings.HasPrefix(clean, "/futures/") {
		if strings.Contains(clean, "orders") {
			switch method {
			case "POST", "PUT":
				return CategoryFuturesOrder
			case "DELETE":
				return CategoryFuturesCancel
			default:
				return CategoryFuturesOther
			}
		}
		return CategoryFuturesOther
	}

	return CategoryPublic
}
