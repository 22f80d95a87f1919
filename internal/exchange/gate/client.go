package gate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"gatescalp/internal/cache"
	"gatescalp/internal/ratelimit"
	"gatescalp/internal/retry"
	"gatescalp/internal/sleep"
	"gatescalp/internal/xerrors"
)

const BaseURL = "https://api.gate.io/api/v4"
const apiPrefix = "/api/v4"

const (
	balanceCacheTTL = 5 * time.Second
	fillsCacheTTL   = 10 * time.Second
	tickerCacheTTL  = 5 * time.Second
	bookCacheTTL    = 5 * time.Second
	candleCacheTTL  = 10 * time.Second
)

// Config configures a Client.
type Config struct {
	APIKey    string
	SecretKey string
	BaseURL   string
	Timeout   time.Duration
}

// Client is the ExchangeClient: signed Gate.io spot REST access wired
// through retry, circuit breaking is the caller's responsibility
// (internal/trading consults its own breaker before calling out), rate
// limiting, and response caching.
type Client struct {
	http    *http.Client
	signer  *Signer
	baseURL string

	retry      *retry.Manager
	limiter    *ratelimit.Enforcer
	classifier *ratelimit.Classifier
	sleeper    *sleep.Manager
	cache      *cache.Cache
}

func New(cfg Config, limiter *ratelimit.Enforcer, sleeper *sleep.Manager) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = BaseURL
	}

	return &Client{
		http:       &http.Client{Timeout: timeout},
		signer:     NewSigner(cfg.APIKey, cfg.SecretKey),
		baseURL:    baseURL,
		retry:      retry.NewManager(retry.DefaultConfig(), func(err error) xerrors.Kind { return xerrors.KindOf(err) }),
		limiter:    limiter,
		classifier: ratelimit.NewClassifier(),
		sleeper:    sleeper,
		cache:      cache.New(),
	}
}

type categoryChecker struct {
	limiter  *ratelimit.Enforcer
	category ratelimit.Category
}

func (c categoryChecker) CanMakeRequest() bool { return c.limiter.CanMakeRequest(c.category) }

// do executes one signed request with retry, rate-limit consultation,
// and JSON decoding of the result into out (nil to discard the body).
func (c *Client) do(ctx context.Context, method, path, query string, body, out any) error {
	cat := c.classifier.Classify(method, path)
	checker := categoryChecker{limiter: c.limiter, category: cat}

	var respBody []byte
	_, err := c.retry.Do(ctx, c.sleeper, checker, nil, func() error {
		c.limiter.RecordRequest(cat)
		b, reqErr := c.doOnce(ctx, method, path, query, body)
		if reqErr != nil {
			return reqErr
		}
		respBody = b
		return nil
	})
	if err != nil {
		return err
	}
	if out == nil || len(respBody) == 0 {
		return nil
	}
	if jsonErr := json.Unmarshal(respBody, out); jsonErr != nil {
		return xerrors.Wrap(xerrors.KindUnknown, "decode response", jsonErr)
	}
	return nil
}

func (c *Client) doOnce(ctx context.Context, method, path, query string, body any) ([]byte, error) {
	var bodyBytes []byte
	var err error
	if body != nil {
		bodyBytes, err = json.Marshal(body)
		if err != nil {
			return nil, xerrors.Wrap(xerrors.KindValidation, "marshal request body", err)
		}
	}

	timestamp := c.signer.Timestamp()
	signature := c.signer.SignREST(method, apiPrefix+path, query, string(bodyBytes), timestamp)

	fullURL := c.baseURL + path
	if query != "" {
		fullURL += "?" + query
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, bytes.NewBuffer(bodyBytes))
	if err != nil {
		return nil, xerrors.Wrap(xerrors.KindValidation, "build request", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("KEY", c.signer.APIKey())
	req.Header.Set("SIGN", signature)
	req.Header.Set("Timestamp", strconv.FormatInt(timestamp, 10))

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.KindNetwork, "http request failed", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.KindNetwork, "read response body", err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return respBody, nil
	}

	return nil, classifyHTTPError(resp, respBody)
}

func classifyHTTPError(resp *http.Response, body []byte) error {
	var apiErr apiError
	_ = json.Unmarshal(body, &apiErr)
	msg := fmt.Sprintf("%s: %s (status %d)", apiErr.Label, apiErr.Message, resp.StatusCode)

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		e := xerrors.New(xerrors.KindRateLimit, msg)
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if secs, err := strconv.ParseFloat(ra, 64); err == nil {
				e = e.WithRetryAfter(secs)
			}
		}
		return e
	case resp.StatusCode >= 500:
		return xerrors.New(xerrors.KindServer, msg)
	case resp.StatusCode == http.StatusRequestTimeout || resp.StatusCode == http.StatusGatewayTimeout:
		return xerrors.New(xerrors.KindTimeout, msg)
	case apiErr.Label == "BALANCE_NOT_ENOUGH":
		return xerrors.New(xerrors.KindInsufficientBalance, msg)
	case apiErr.Label == "TOO_LITTLE" || apiErr.Label == "ORDER_VALUE_TOO_SMALL":
		return xerrors.New(xerrors.KindMinOrderValue, msg)
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return xerrors.New(xerrors.KindValidation, msg)
	default:
		return xerrors.New(xerrors.KindAPI, msg)
	}
}

// GetTicker fetches the public ticker for a currency pair, cached for
// tickerCacheTTL per spec §4.8.
func (c *Client) GetTicker(ctx context.Context, pair string) (*Ticker, error) {
	cacheKey := "ticker:" + pair
	if v, ok := c.cache.Get(cacheKey, tickerCacheTTL); ok {
		t := v.(Ticker)
		return &t, nil
	}

	q := url.Values{"currency_pair": {pair}}.Encode()
	var tickers []Ticker
	if err := c.do(ctx, http.MethodGet, "/spot/tickers", q, nil, &tickers); err != nil {
		return nil, err
	}
	if len(tickers) == 0 {
		return nil, xerrors.New(xerrors.KindUnknown, "no ticker returned for "+pair)
	}
	c.cache.Set(cacheKey, tickers[0])
	return &tickers[0], nil
}

// GetOrderBook fetches the public order book at the given depth,
// cached for bookCacheTTL per spec §4.8.
func (c *Client) GetOrderBook(ctx context.Context, pair string, depth int) (*OrderBook, error) {
	cacheKey := fmt.Sprintf("book:%s:%d", pair, depth)
	if v, ok := c.cache.Get(cacheKey, bookCacheTTL); ok {
		b := v.(OrderBook)
		return &b, nil
	}

	q := url.Values{"currency_pair": {pair}, "limit": {strconv.Itoa(depth)}}.Encode()
	var book OrderBook
	if err := c.do(ctx, http.MethodGet, "/spot/order_book", q, nil, &book); err != nil {
		return nil, err
	}
	c.cache.Set(cacheKey, book)
	return &book, nil
}

// GetCandles fetches historical candlesticks, cached for
// candleCacheTTL per spec §4.8.
func (c *Client) GetCandles(ctx context.Context, pair, interval string, limit int) ([]Candle, error) {
	cacheKey := fmt.Sprintf("candles:%s:%s:%d", pair, interval, limit)
	if v, ok := c.cache.Get(cacheKey, candleCacheTTL); ok {
		return v.([]Candle), nil
	}

	q := url.Values{"currency_pair": {pair}, "interval": {interval}, "limit": {strconv.Itoa(limit)}}.Encode()
	var candles []Candle
	if err := c.do(ctx, http.MethodGet, "/spot/candlesticks", q, nil, &candles); err != nil {
		return nil, err
	}
	c.cache.Set(cacheKey, candles)
	return candles, nil
}

// GetBalance returns the spot balance for one currency, cached for
// balanceCacheTTL and invalidated by PlaceSpotOrder.
func (c *Client) GetBalance(ctx context.Context, currency string) (*Balance, error) {
	if v, ok := c.cache.Get("balances", balanceCacheTTL); ok {
		for _, b := range v.([]Balance) {
			if b.Currency == currency {
				bCopy := b
				return &bCopy, nil
			}
		}
		return &Balance{Currency: currency}, nil
	}

	var balances []Balance
	if err := c.do(ctx, http.MethodGet, "/spot/accounts", "", nil, &balances); err != nil {
		return nil, err
	}
	c.cache.Set("balances", balances)

	for _, b := range balances {
		if b.Currency == currency {
			bCopy := b
			return &bCopy, nil
		}
	}
	return &Balance{Currency: currency}, nil
}

// ListMyTrades returns fills for pair, most recent last. side filters
// client-side if non-empty ("buy" or "sell").
func (c *Client) ListMyTrades(ctx context.Context, pair string, limit int, side string) ([]Trade, error) {
	cacheKey := "fills:" + pair
	var trades []Trade
	if v, ok := c.cache.Get(cacheKey, fillsCacheTTL); ok {
		trades = v.([]Trade)
	} else {
		q := url.Values{"currency_pair": {pair}, "limit": {strconv.Itoa(limit)}}.Encode()
		if err := c.do(ctx, http.MethodGet, "/spot/my_trades", q, nil, &trades); err != nil {
			return nil, err
		}
		c.cache.Set(cacheKey, trades)
	}

	if side == "" {
		return trades, nil
	}
	filtered := make([]Trade, 0, len(trades))
	for _, t := range trades {
		if t.Side == side {
			filtered = append(filtered, t)
		}
	}
	return filtered, nil
}

// ListBuyFills is ListMyTrades filtered to buy-side fills, used to
// reconstruct a DCA ladder's cost basis.
func (c *Client) ListBuyFills(ctx context.Context, pair string, limit int) ([]Trade, error) {
	return c.ListMyTrades(ctx, pair, limit, "buy")
}

// PlaceSpotOrder submits a limit or market order and invalidates the
// balance and fill caches, since both are now stale.
func (c *Client) PlaceSpotOrder(ctx context.Context, pair, side, orderType string, amount, price decimal.Decimal) (*Order, error) {
	priceDecimals := int(-price.Exponent())
	if priceDecimals < 0 {
		priceDecimals = 0
	}
	priceFloat, _ := price.Float64()

	req := map[string]any{
		"currency_pair": pair,
		"type":          orderType,
		"account":       "spot",
		"side":          side,
		"amount":        amount.String(),
		"text":          nextClientOrderID(priceFloat, side, priceDecimals),
	}
	if orderType == "limit" {
		req["price"] = price.String()
		req["time_in_force"] = "gtc"
	}

	var order Order
	if err := c.do(ctx, http.MethodPost, "/spot/orders", "", req, &order); err != nil {
		return nil, err
	}

	c.cache.Invalidate("balances")
	c.cache.Invalidate("fills:" + pair)
	return &order, nil
}

// GetOrderStatus fetches a single order by id.
func (c *Client) GetOrderStatus(ctx context.Context, pair, orderID string) (*Order, error) {
	q := url.Values{"currency_pair": {pair}}.Encode()
	var order Order
	if err := c.do(ctx, http.MethodGet, "/spot/orders/"+orderID, q, nil, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// CancelOrder cancels an open order.
func (c *Client) CancelOrder(ctx context.Context, pair, orderID string) (*Order, error) {
	q := url.Values{"currency_pair": {pair}}.Encode()
	var order Order
	if err := c.do(ctx, http.MethodDelete, "/spot/orders/"+orderID, q, nil, &order); err != nil {
		return nil, err
	}
	c.cache.Invalidate("balances")
	return &order, nil
}

// BestBookPrice returns the best price on the relevant side ("buy"
// looks at asks, "sell" at bids), choosing between the top two levels
// whichever has the smaller size, to reduce price impact per spec §4.8.
func (c *Client) BestBookPrice(ctx context.Context, pair, side string) (decimal.Decimal, error) {
	book, err := c.GetOrderBook(ctx, pair, 2)
	if err != nil {
		return decimal.Zero, err
	}
	levels := book.Asks
	emptyMsg := "empty ask book for " + pair
	if side == "sell" {
		levels = book.Bids
		emptyMsg = "empty bid book for " + pair
	}
	if len(levels) == 0 {
		return decimal.Zero, xerrors.New(xerrors.KindUnknown, emptyMsg)
	}
	if len(levels) == 1 {
		return levels[0][0], nil
	}
	if levels[1][1].LessThan(levels[0][1]) {
		return levels[1][0], nil
	}
	return levels[0][0], nil
}

// EffectiveFeeRate returns the fee rate that applies to an order of
// orderType ("limit" or "market") against notional quote value, per
// spec §4.8: the GT-discounted rate if the account has GT-discount
// enabled and enough GT balance to cover the estimated fee
// (notional·discountedRate/tokenPrice), otherwise the normal rate.
func (c *Client) EffectiveFeeRate(ctx context.Context, pair, orderType string, notional decimal.Decimal) (decimal.Decimal, error) {
	q := url.Values{"currency_pair": {pair}}.Encode()
	var fee FeeRate
	if err := c.do(ctx, http.MethodGet, "/wallet/fee", q, nil, &fee); err != nil {
		return decimal.Zero, err
	}

	normalRate := fee.TakerFee
	discountedRate := fee.GTTakerFee
	if orderType == "limit" {
		normalRate = fee.MakerFee
		discountedRate = fee.GTMakerFee
	}

	if !fee.GTDiscount {
		return normalRate, nil
	}

	gtBalance, err := c.GetBalance(ctx, "GT")
	if err != nil || !gtBalance.Available.IsPositive() {
		return normalRate, nil
	}

	gtTicker, err := c.GetTicker(ctx, "GT_USDT")
	if err != nil || gtTicker.Last.IsZero() {
		return normalRate, nil
	}

	estimatedFeeInGT := notional.Mul(discountedRate).Div(gtTicker.Last)
	if gtBalance.Available.GreaterThanOrEqual(estimatedFeeInGT) {
		return discountedRate, nil
	}
	return normalRate, nil
}

// GetCurrencyPair fetches trading-rule metadata (precision, minimums).
func (c *Client) GetCurrencyPair(ctx context.Context, pair string) (*CurrencyPairInfo, error) {
	var info CurrencyPairInfo
	if err := c.do(ctx, http.MethodGet, "/spot/currency_pairs/"+pair, "", nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}
