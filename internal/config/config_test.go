package config

import (
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPresetsAreValid(t *testing.T) {
	for _, preset := range []Model{
		Conservative("BTC_USDT", decimal.NewFromInt(30)),
		Moderate("BTC_USDT", decimal.NewFromInt(50)),
		Aggressive("BTC_USDT", decimal.NewFromInt(100)),
	} {
		assert.Empty(t, preset.Validate(), preset.Description)
	}
}

func TestByNameResolvesKnownPresets(t *testing.T) {
	m, ok := ByName("aggressive", "ETH_USDT", decimal.NewFromInt(100))
	require.True(t, ok)
	assert.Equal(t, RiskAggressive, m.Trading.RiskLevel)

	_, ok = ByName("bogus", "ETH_USDT", decimal.NewFromInt(100))
	assert.False(t, ok)
}

func TestValidateCatchesStopLossBelowTargetProfit(t *testing.T) {
	m := Moderate("BTC_USDT", decimal.NewFromInt(50))
	m.Trading.StopLossPercent = decimal.NewFromFloat(1.0) // below target of 2.5
	errs := m.Validate()
	require.NotEmpty(t, errs)
	found := false
	for _, e := range errs {
		if e.Error() == "trading.stop_loss_percent should be > trading.target_profit_percent" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestValidateCatchesMaxTradeAmountBelowBudget(t *testing.T) {
	m := Moderate("BTC_USDT", decimal.NewFromInt(50))
	m.Security.MaxTradeAmount = decimal.NewFromInt(10)
	errs := m.Validate()
	require.NotEmpty(t, errs)
}

func TestSaveAndLoadYAMLRoundTrips(t *testing.T) {
	m := Moderate("BTC_USDT", decimal.NewFromInt(50))
	path := filepath.Join(t.TempDir(), "bot.yaml")

	require.NoError(t, SaveYAML(path, m))

	loaded, err := LoadYAML(path)
	require.NoError(t, err)
	assert.Equal(t, m.Trading.Pair, loaded.Trading.Pair)
	assert.True(t, loaded.Trading.BudgetPerTrade.Equal(m.Trading.BudgetPerTrade))
}

func TestToEngineConfigCarriesDCALadder(t *testing.T) {
	m := Moderate("BTC_USDT", decimal.NewFromInt(50))
	engineCfg := m.ToEngineConfig(decimal.NewFromInt(500))

	assert.True(t, engineCfg.DCALevel1.TriggerPct.Equal(m.DCA.Level1TriggerPercent))
	assert.True(t, engineCfg.DCALevel3.TriggerPct.Equal(m.Trading.StopLossPercent.Neg()))
	assert.True(t, engineCfg.DCALevel3.Multiplier.IsZero(), "DCA level 3 denotes stop-loss with a zero multiplier")
}
