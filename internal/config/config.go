// Package config implements the composite bot configuration: trading
// parameters, security limits, the DCA ladder, and performance
// timing, plus named presets. Grounded on
// original_source/unified_bot_config.py's UnifiedBotConfig /
// ConfigurationPresets, restructured around
// market_maker/internal/config/config.go's YAML-load +
// hand-written-Validate()-methods idiom (env var expansion, plain
// `validate() []string` per section combined by `Model.Validate() []error`,
// no struct-tag validation library).
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"gatescalp/internal/trading"
)

// RiskLevel mirrors the original's RiskLevel enum.
type RiskLevel string

const (
	RiskConservative RiskLevel = "conservative"
	RiskModerate      RiskLevel = "moderate"
	RiskAggressive    RiskLevel = "aggressive"
	RiskCustom        RiskLevel = "custom"
)

// Strategy mirrors the original's TradingStrategy enum.
type Strategy string

const (
	StrategyScalping Strategy = "scalping"
	StrategySwing    Strategy = "swing"
	StrategyHodl     Strategy = "hodl"
	StrategyDCAOnly  Strategy = "dca_only"
)

// TradingConfig is the core trading section.
type TradingConfig struct {
	Pair                     string          `yaml:"pair" json:"pair"`
	BudgetPerTrade           decimal.Decimal `yaml:"budget_per_trade" json:"budgetPerTrade"`
	TargetProfitPercent      decimal.Decimal `yaml:"target_profit_percent" json:"targetProfitPercent"`
	MaxTradesPerSession      int             `yaml:"max_trades_per_session" json:"maxTradesPerSession"`
	Strategy                 Strategy        `yaml:"strategy" json:"strategy"`
	RiskLevel                RiskLevel       `yaml:"risk_level" json:"riskLevel"`
	StopLossPercent          decimal.Decimal `yaml:"stop_loss_percent" json:"stopLossPercent"`
	TrailingStopEnabled      bool            `yaml:"trailing_stop_enabled" json:"trailingStopEnabled"`
	TrailingStopPercent      decimal.Decimal `yaml:"trailing_stop_percent" json:"trailingStopPercent"`
	SlippageTolerancePercent decimal.Decimal `yaml:"slippage_tolerance_percent" json:"slippageTolerancePercent"`
}

func (t TradingConfig) validate() []string {
	var errs []string
	if t.Pair == "" {
		errs = append(errs, "trading.pair is required")
	}
	if !t.BudgetPerTrade.IsPositive() {
		errs = append(errs, "trading.budget_per_trade must be > 0")
	}
	if t.TargetProfitPercent.LessThan(decimal.NewFromFloat(0.1)) || t.TargetProfitPercent.GreaterThan(decimal.NewFromInt(50)) {
		errs = append(errs, "trading.target_profit_percent must be between 0.1 and 50")
	}
	if t.MaxTradesPerSession < 1 {
		errs = append(errs, "trading.max_trades_per_session must be >= 1")
	}
	return errs
}

// SecurityConfig is the circuit-breaker / safety-limit section.
type SecurityConfig struct {
	MaxConsecutiveFailures int             `yaml:"max_consecutive_failures" json:"maxConsecutiveFailures"`
	FailureCooldown        time.Duration   `yaml:"failure_cooldown" json:"failureCooldown"`
	MaxDailyLossPercent    decimal.Decimal `yaml:"max_daily_loss_percent" json:"maxDailyLossPercent"`
	MinWinRatePercent      decimal.Decimal `yaml:"min_win_rate_percent" json:"minWinRatePercent"`
	MaxDrawdownPercent     decimal.Decimal `yaml:"max_drawdown_percent" json:"maxDrawdownPercent"`
	MaxPositionSizePercent decimal.Decimal `yaml:"max_position_size_percent" json:"maxPositionSizePercent"`
	MinTradeAmount         decimal.Decimal `yaml:"min_trade_amount" json:"minTradeAmount"`
	MaxTradeAmount         decimal.Decimal `yaml:"max_trade_amount" json:"maxTradeAmount"`
	MaxAPICallsPerMinute   int             `yaml:"max_api_calls_per_minute" json:"maxApiCallsPerMinute"`
	APITimeout             time.Duration   `yaml:"api_timeout" json:"apiTimeout"`
	RetryAttempts          int             `yaml:"retry_attempts" json:"retryAttempts"`
}

func (s SecurityConfig) validate() []string {
	var errs []string
	if s.MaxConsecutiveFailures < 1 {
		errs = append(errs, "security.max_consecutive_failures must be >= 1")
	}
	if s.MaxDailyLossPercent.LessThan(decimal.NewFromFloat(0.1)) || s.MaxDailyLossPercent.GreaterThan(decimal.NewFromInt(50)) {
		errs = append(errs, "security.max_daily_loss_percent must be between 0.1 and 50")
	}
	if s.MinWinRatePercent.LessThan(decimal.NewFromInt(1)) || s.MinWinRatePercent.GreaterThan(decimal.NewFromInt(100)) {
		errs = append(errs, "security.min_win_rate_percent must be between 1 and 100")
	}
	if s.MinTradeAmount.GreaterThanOrEqual(s.MaxTradeAmount) {
		errs = append(errs, "security.min_trade_amount must be < security.max_trade_amount")
	}
	return errs
}

// DCAConfig is the dollar-cost-averaging ladder section.
type DCAConfig struct {
	Enabled             bool            `yaml:"enabled" json:"enabled"`
	Level1TriggerPercent decimal.Decimal `yaml:"level1_trigger_percent" json:"level1TriggerPercent"`
	Level1Multiplier     decimal.Decimal `yaml:"level1_multiplier" json:"level1Multiplier"`
	Level2TriggerPercent decimal.Decimal `yaml:"level2_trigger_percent" json:"level2TriggerPercent"`
	Level2Multiplier     decimal.Decimal `yaml:"level2_multiplier" json:"level2Multiplier"`
	Level3TriggerPercent decimal.Decimal `yaml:"level3_trigger_percent" json:"level3TriggerPercent"`
	MaxTotalDCATrades    int             `yaml:"max_total_dca_trades" json:"maxTotalDcaTrades"`
	DCACooldown          time.Duration   `yaml:"dca_cooldown" json:"dcaCooldown"`
}

func (d DCAConfig) validate() []string {
	var errs []string
	if d.Level1TriggerPercent.GreaterThanOrEqual(decimal.Zero) {
		errs = append(errs, "dca.level1_trigger_percent must be negative")
	}
	if d.Level2TriggerPercent.GreaterThanOrEqual(d.Level1TriggerPercent) {
		errs = append(errs, "dca.level2_trigger_percent must be < dca.level1_trigger_percent")
	}
	if d.Level3TriggerPercent.GreaterThanOrEqual(d.Level2TriggerPercent) {
		errs = append(errs, "dca.level3_trigger_percent must be < dca.level2_trigger_percent")
	}
	if d.MaxTotalDCATrades < 1 {
		errs = append(errs, "dca.max_total_dca_trades must be >= 1")
	}
	return errs
}

// PerformanceConfig is the execution-timing section.
type PerformanceConfig struct {
	SleepBetweenCycles      time.Duration `yaml:"sleep_between_cycles" json:"sleepBetweenCycles"`
	OrderTimeout            time.Duration `yaml:"order_timeout" json:"orderTimeout"`
	PriceUpdateInterval     time.Duration `yaml:"price_update_interval" json:"priceUpdateInterval"`
	MaxSessionDuration      time.Duration `yaml:"max_session_duration" json:"maxSessionDuration"`
	AutoRestartOnError      bool          `yaml:"auto_restart_on_error" json:"autoRestartOnError"`
	GracefulShutdownTimeout time.Duration `yaml:"graceful_shutdown_timeout" json:"gracefulShutdownTimeout"`
}

func (p PerformanceConfig) validate() []string {
	var errs []string
	if p.SleepBetweenCycles < 100*time.Millisecond || p.SleepBetweenCycles > 60*time.Second {
		errs = append(errs, "performance.sleep_between_cycles must be between 100ms and 60s")
	}
	if p.MaxSessionDuration < 10*time.Minute {
		errs = append(errs, "performance.max_session_duration must be >= 10m")
	}
	return errs
}

// Model is the full composite configuration for one bot.
type Model struct {
	Trading     TradingConfig     `yaml:"trading" json:"trading"`
	Security    SecurityConfig    `yaml:"security" json:"security"`
	DCA         DCAConfig         `yaml:"dca" json:"dca"`
	Performance PerformanceConfig `yaml:"performance" json:"performance"`

	Version     string `yaml:"config_version" json:"configVersion"`
	Description string `yaml:"description" json:"description"`
}

// Validate runs every section's checks plus cross-section invariants,
// returning every violation rather than stopping at the first.
func (m Model) Validate() []error {
	var errs []string
	errs = append(errs, m.Trading.validate()...)
	errs = append(errs, m.Security.validate()...)
	errs = append(errs, m.DCA.validate()...)
	errs = append(errs, m.Performance.validate()...)

	if m.Trading.StopLossPercent.LessThanOrEqual(m.Trading.TargetProfitPercent) {
		errs = append(errs, "trading.stop_loss_percent should be > trading.target_profit_percent")
	}
	if m.Security.MaxTradeAmount.LessThan(m.Trading.BudgetPerTrade) {
		errs = append(errs, "security.max_trade_amount should be >= trading.budget_per_trade")
	}

	out := make([]error, len(errs))
	for i, e := range errs {
		out[i] = fmt.Errorf("%s", e)
	}
	return out
}

// IsValid reports whether Validate found no violations.
func (m Model) IsValid() bool { return len(m.Validate()) == 0 }

// ToEngineConfig bridges the operator-facing Model into the
// internal/trading.Config the Engine actually consumes, filling in the
// absolute loop bounds and polling cadence that aren't operator-tunable.
func (m Model) ToEngineConfig(capital decimal.Decimal) trading.Config {
	cfg := trading.DefaultConfig(m.Trading.Pair)
	cfg.TargetPct = m.Trading.TargetProfitPercent
	cfg.DCALevel1 = trading.DCALevel{TriggerPct: m.DCA.Level1TriggerPercent, Multiplier: m.DCA.Level1Multiplier}
	cfg.DCALevel2 = trading.DCALevel{TriggerPct: m.DCA.Level2TriggerPercent, Multiplier: m.DCA.Level2Multiplier}
	cfg.DCALevel3 = trading.DCALevel{TriggerPct: m.Trading.StopLossPercent.Neg(), Multiplier: decimal.Zero}
	cfg.Capital = capital
	cfg.PerTradeBudget = m.Trading.BudgetPerTrade
	cfg.MaxDailyLoss = capital.Mul(m.Security.MaxDailyLossPercent).Div(decimal.NewFromInt(100))
	cfg.MinWinRate = mustFloat(m.Security.MinWinRatePercent) / 100
	cfg.PollInterval = m.Performance.SleepBetweenCycles
	return cfg
}

func mustFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}

// expandEnvVars substitutes ${VAR} references before YAML parsing, so
// secrets can be injected at deploy time without living in the file.
func expandEnvVars(raw string) string {
	return os.Expand(raw, os.Getenv)
}

// LoadYAML reads and validates a Model from a YAML file.
func LoadYAML(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var m Model
	if err := yaml.Unmarshal([]byte(expandEnvVars(string(data))), &m); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if errs := m.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("config validation failed: %s", joinErrors(errs))
	}
	return &m, nil
}

// SaveYAML writes m to path. It does not create parent directories;
// the directory of path must already exist.
func SaveYAML(path string, m Model) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func joinErrors(errs []error) string {
	parts := make([]string, len(errs))
	for i, e := range errs {
		parts[i] = e.Error()
	}
	return strings.Join(parts, "; ")
}
