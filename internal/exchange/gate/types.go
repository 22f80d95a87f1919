package gate

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// apiError is Gate.io's error envelope, returned on non-2xx responses.
type apiError struct {
	Label   string `json:"label"`
	Message string `json:"message"`
}

// Ticker is GET /spot/tickers.
type Ticker struct {
	CurrencyPair     string          `json:"currency_pair"`
	Last             decimal.Decimal `json:"last"`
	LowestAsk        decimal.Decimal `json:"lowest_ask"`
	HighestBid       decimal.Decimal `json:"highest_bid"`
	ChangePercentage decimal.Decimal `json:"change_percentage"`
	BaseVolume       decimal.Decimal `json:"base_volume"`
	QuoteVolume      decimal.Decimal `json:"quote_volume"`
}

// OrderBook is GET /spot/order_book.
type OrderBook struct {
	ID      int64              `json:"id"`
	Current int64              `json:"current"`
	Update  int64              `json:"update"`
	Asks    [][2]decimal.Decimal `json:"asks"`
	Bids    [][2]decimal.Decimal `json:"bids"`
}

// Candle is one GET /spot/candlesticks bar. Gate encodes each bar as a
// JSON array of strings rather than an object, so UnmarshalJSON maps
// positionally: [time, volume, close, high, low, open, quoteVolume].
type Candle struct {
	Timestamp   int64
	Volume      decimal.Decimal
	Close       decimal.Decimal
	High        decimal.Decimal
	Low         decimal.Decimal
	Open        decimal.Decimal
	QuoteVolume decimal.Decimal
}

func (c *Candle) UnmarshalJSON(data []byte) error {
	var raw []string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) < 6 {
		return fmt.Errorf("gate: candlestick row has %d fields, want at least 6", len(raw))
	}

	var err error
	if c.Timestamp, err = parseUnix(raw[0]); err != nil {
		return err
	}
	if c.Volume, err = decimal.NewFromString(raw[1]); err != nil {
		return err
	}
	if c.Close, err = decimal.NewFromString(raw[2]); err != nil {
		return err
	}
	if c.High, err = decimal.NewFromString(raw[3]); err != nil {
		return err
	}
	if c.Low, err = decimal.NewFromString(raw[4]); err != nil {
		return err
	}
	if c.Open, err = decimal.NewFromString(raw[5]); err != nil {
		return err
	}
	if len(raw) >= 7 {
		if c.QuoteVolume, err = decimal.NewFromString(raw[6]); err != nil {
			return err
		}
	}
	return nil
}

func parseUnix(s string) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, err
	}
	return d.IntPart(), nil
}

// Balance is one entry of GET /spot/accounts.
type Balance struct {
	Currency  string          `json:"currency"`
	Available decimal.Decimal `json:"available"`
	Locked    decimal.Decimal `json:"locked"`
}

// Order is the shape of GET/POST/DELETE /spot/orders.
type Order struct {
	ID           string          `json:"id"`
	Text         string          `json:"text"`
	CurrencyPair string          `json:"currency_pair"`
	Status       string          `json:"status"`
	Type         string          `json:"type"`
	Side         string          `json:"side"`
	Amount       decimal.Decimal `json:"amount"`
	Price        decimal.Decimal `json:"price"`
	Left         decimal.Decimal `json:"left"`
	FilledTotal  decimal.Decimal `json:"filled_total"`
	Fee          decimal.Decimal `json:"fee"`
	FeeCurrency  string          `json:"fee_currency"`
	CreateTime   string          `json:"create_time"`
	UpdateTime   string          `json:"update_time"`
}

// Trade is one fill from GET /spot/my_trades.
type Trade struct {
	ID           string          `json:"id"`
	OrderID      string          `json:"order_id"`
	CurrencyPair string          `json:"currency_pair"`
	Side         string          `json:"side"`
	Role         string          `json:"role"`
	Amount       decimal.Decimal `json:"amount"`
	Price        decimal.Decimal `json:"price"`
	Fee          decimal.Decimal `json:"fee"`
	FeeCurrency  string          `json:"fee_currency"`
	CreateTime   string          `json:"create_time"`
}

// FeeRate is GET /wallet/fee. GTDiscount reports whether the account
// has GT (the exchange token) fee-discount enabled, in which case
// GTTakerFee/GTMakerFee are the discounted rates applied when the GT
// balance covers the estimated fee.
type FeeRate struct {
	TakerFee   decimal.Decimal `json:"taker_fee"`
	MakerFee   decimal.Decimal `json:"maker_fee"`
	GTDiscount bool            `json:"gt_discount"`
	GTTakerFee decimal.Decimal `json:"gt_taker_fee"`
	GTMakerFee decimal.Decimal `json:"gt_maker_fee"`
}

// CurrencyPairInfo is one entry of GET /spot/currency_pairs.
type CurrencyPairInfo struct {
	ID              string          `json:"id"`
	Base            string          `json:"base"`
	Quote           string          `json:"quote"`
	MinBaseAmount   decimal.Decimal `json:"min_base_amount"`
	MinQuoteAmount  decimal.Decimal `json:"min_quote_amount"`
	AmountPrecision int             `json:"amount_precision"`
	Precision       int             `json:"precision"`
	TradeStatus     string          `json:"trade_status"`
}
