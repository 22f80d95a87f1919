package gate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNextClientOrderIDHasGateTextPrefixAndLengthBudget(t *testing.T) {
	id := nextClientOrderID(65000.5, "buy", 2)
	assert.True(t, strings.HasPrefix(id, gateTextPrefix))
	assert.LessOrEqual(t, len(id), gateTextMaxLen)
}

func TestNextClientOrderIDEncodesSide(t *testing.T) {
	buy := nextClientOrderID(100, "buy", 0)
	sell := nextClientOrderID(100, "sell", 0)
	assert.Contains(t, buy, "_B_")
	assert.Contains(t, sell, "_S_")
}

func TestNextClientOrderIDIncrementsSequenceWithinSameSecond(t *testing.T) {
	first := nextClientOrderID(100, "buy", 0)
	second := nextClientOrderID(100, "buy", 0)
	assert.NotEqual(t, first, second)
}
