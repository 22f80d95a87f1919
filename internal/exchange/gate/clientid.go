package gate

import (
	"fmt"
	"math"
	"sync"
	"time"
)

// clientOrderIDGenerator builds compact, time-ordered client order ids
// for Gate.io's spot_orders "text" field, which must start with "t-"
// and stay within 30 characters. Grounded on utils/orderid.go's
// GenerateOrderID/AddBrokerPrefix, narrowed to the Gate.io-only prefix
// and length budget (the original's Binance/multi-exchange branches
// don't apply here).
type clientOrderIDGenerator struct {
	mu       sync.Mutex
	lastSec  int64
	sequence int
}

var globalClientOrderIDGen = &clientOrderIDGenerator{}

const gateTextPrefix = "t-"
const gateTextMaxLen = 30

// nextClientOrderID encodes price, side, and a per-second sequence
// number into a short id, then applies Gate.io's required "t-" prefix.
func nextClientOrderID(price float64, side string, priceDecimals int) string {
	globalClientOrderIDGen.mu.Lock()
	defer globalClientOrderIDGen.mu.Unlock()

	multiplier := math.Pow(10, float64(priceDecimals))
	priceInt := int64(math.Round(price * multiplier))

	sideCode := "B"
	if side == "sell" {
		sideCode = "S"
	}

	now := time.Now().Unix()
	if now != globalClientOrderIDGen.lastSec {
		globalClientOrderIDGen.lastSec = now
		globalClientOrderIDGen.sequence = 0
	}
	globalClientOrderIDGen.sequence++

	id := fmt.Sprintf("%d_%s_%d%03d", priceInt, sideCode, now, globalClientOrderIDGen.sequence)

	result := gateTextPrefix + id
	if len(result) > gateTextMaxLen {
		maxIDLen := gateTextMaxLen - len(gateTextPrefix)
		if maxIDLen <= 0 {
			return gateTextPrefix
		}
		result = gateTextPrefix + id[:maxIDLen]
	}
	return result
}
