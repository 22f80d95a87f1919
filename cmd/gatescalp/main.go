// Command gatescalp runs the Gate.io scalping engine, either as the
// multi-bot supervisor or, with --worker-mode, as a single pair's
// trading worker. Grounded on
// market_maker/cmd/live_server/main.go's flag-parse/bootstrap/signal-
// context lifecycle and original_source/session_manager.py's
// supervisor/worker split (the original's `--worker-mode --pair
// --budget --target` subprocess contract is preserved verbatim).
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"gatescalp/internal/breaker"
	"gatescalp/internal/budget"
	"gatescalp/internal/config"
	"gatescalp/internal/exchange/gate"
	"gatescalp/internal/logging"
	"gatescalp/internal/monitor"
	"gatescalp/internal/order"
	"gatescalp/internal/ratelimit"
	"gatescalp/internal/session"
	"gatescalp/internal/sleep"
	"gatescalp/internal/state"
	"gatescalp/internal/trading"
	"gatescalp/internal/wallet"
)

func main() {
	workerMode := flag.Bool("worker-mode", false, "run as a single-pair trading worker (spawned by the supervisor)")
	pair := flag.String("pair", "", "trading pair, e.g. BTC_USDT")
	budgetFlag := flag.String("budget", "0", "quote-asset budget allocated to this worker")
	target := flag.String("target", "2.0", "take-profit target percent")
	preset := flag.String("preset", "moderate", "conservative | moderate | aggressive")
	configPath := flag.String("config", "", "optional YAML config file overriding the preset")
	statePath := flag.String("state", "shared_state.json", "path to the shared state document")
	logDir := flag.String("log-dir", "trading_logs", "directory for audit CSV/NDJSON and alerts")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "warning: failed to load .env: %v\n", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *workerMode {
		if *pair == "" {
			fmt.Fprintln(os.Stderr, "--worker-mode requires --pair")
			os.Exit(1)
		}
		logger := logging.New(os.Getenv("LOG_LEVEL"), "component", "worker", "pair", *pair)
		budgetAmount, err := decimal.NewFromString(*budgetFlag)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid --budget: %v\n", err)
			os.Exit(1)
		}
		targetPct, err := decimal.NewFromString(*target)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid --target: %v\n", err)
			os.Exit(1)
		}
		if err := runWorker(ctx, *pair, budgetAmount, targetPct, *preset, *configPath, *statePath, *logDir, logger); err != nil {
			logger.Error("worker exited with error", "pair", *pair, "error", err)
			os.Exit(1)
		}
		return
	}

	logger := logging.New(os.Getenv("LOG_LEVEL"), "component", "supervisor")
	if err := runSupervisor(ctx, *statePath, logger); err != nil {
		logger.Error("supervisor exited with error", "error", err)
		os.Exit(1)
	}
}

func newGateClient() *gate.Client {
	limiter := ratelimit.NewEnforcer(ratelimit.StrategySlidingWindow, ratelimit.VIP0Quotas())
	sleeper := sleep.New(sleep.DefaultAPILimits())
	return gate.New(gate.Config{
		APIKey:    os.Getenv("GATE_API_KEY"),
		SecretKey: os.Getenv("GATE_SECRET_KEY"),
	}, limiter, sleeper)
}

// statusEmitInterval is how often the worker publishes its status into
// SharedState, matching spec §2's "periodically writes its status."
const statusEmitInterval = 5 * time.Second

// logAnalysisInterval/logAnalysisLookback govern the worker's
// background log-anomaly poller (spec §4.7).
const (
	logAnalysisInterval = time.Minute
	logAnalysisLookback = 15 * time.Minute
)

// runWorker drives one Engine for one pair until ctx is canceled or
// the engine's own loop bounds stop it, matching the original's
// dash01_refactored.py --worker-mode entry point. Alongside the
// trading loop itself, an errgroup (market_maker/cmd/live_server's
// pattern) runs a status emitter that republishes BotStatus into
// SharedState and a monitoring loop that rescans recent logs for
// anomalies.
func runWorker(ctx context.Context, pair string, budgetAmount, targetPct decimal.Decimal, preset, configPath, statePath, logDir string, logger *slog.Logger) error {
	model, ok := config.ByName(preset, pair, budgetAmount)
	if !ok {
		return fmt.Errorf("unknown preset %q", preset)
	}
	if configPath != "" {
		loaded, err := config.LoadYAML(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		model = *loaded
	}
	model.Trading.TargetProfitPercent = targetPct
	if errs := model.Validate(); len(errs) > 0 {
		return fmt.Errorf("invalid config: %v", errs)
	}

	st, err := state.New(statePath)
	if err != nil {
		return fmt.Errorf("open shared state: %w", err)
	}

	client := newGateClient()
	wv := wallet.New(client, wallet.AutoDenyConfirmer{})

	alertHandlers := []monitor.AlertHandler{
		monitor.NewConsoleAlertHandler(logger),
		monitor.NewFileAlertHandler(logDir + "/alerts.log"),
	}
	bus := monitor.NewBus(alertHandlers)
	defer bus.Stop(context.Background())

	cb := breaker.New(breaker.ProductionConfig())
	audit := order.NewAuditLogger(logDir)

	orderSvc := order.New(client, client, wv, audit, bus, cb, logger)
	sleeper := sleep.New(sleep.DefaultTradingLimits())

	engineCfg := model.ToEngineConfig(budgetAmount)
	engineCfg.Pair = pair

	engine := trading.New(engineCfg, client, orderSvc, wv, sleeper, logger)
	logger.Info("worker starting", "pair", pair, "budget", budgetAmount, "session", uuid.NewString())

	analyzer := monitor.NewLogAnalyzer(logDir)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return engine.Run(ctx) })
	g.Go(func() error { emitStatus(ctx, st, pair, client, engine); return nil })
	g.Go(func() error { bus.RunLogAnalysis(ctx, analyzer, logAnalysisInterval, logAnalysisLookback); return nil })

	err = g.Wait()
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// emitStatus republishes pair's BotStatus into st on a fixed cadence,
// preserving the lifecycle fields the supervisor already set (Status,
// PID, StartTime, AllocatedBudget, ErrorsCount) and refreshing the
// trading-specific ones from the engine's own Snapshot.
func emitStatus(ctx context.Context, st *state.Store, pair string, client *gate.Client, engine *trading.Engine) {
	ticker := time.NewTicker(statusEmitInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			var price decimal.Decimal
			if t, err := client.GetTicker(ctx, pair); err == nil {
				price = t.Last
			}

			snap := engine.Snapshot(price)

			bs, _, err := st.GetBotStatus(pair)
			if err != nil {
				continue
			}
			bs.Pair = pair
			bs.TradesToday = snap.TradesToday
			bs.PnLPercent = snap.PnLPercent
			bs.LastAction = snap.LastAction
			bs.LastActionTime = snap.LastActionAt
			bs.CurrentPosition = nil
			if snap.HasPosition {
				bs.CurrentPosition = &state.PositionSnapshot{
					EntryPrice: snap.EntryPrice,
					Quantity:   snap.Quantity,
					OpenedAt:   snap.OpenedAt,
				}
			}
			_ = st.SetBotStatus(bs)
		}
	}
}

// runSupervisor starts the SessionManager's health loop. Operators
// drive StartBot/StopBot through whatever front-end wraps this
// process (CLI, dashboard); the supervisor itself only needs to stay
// up and keep the shared budget/state documents current.
func runSupervisor(ctx context.Context, statePath string, logger *slog.Logger) error {
	st, err := state.New(statePath)
	if err != nil {
		return fmt.Errorf("open shared state: %w", err)
	}

	client := newGateClient()
	coord := budget.New(client, "USDT")

	self, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolve own executable: %w", err)
	}

	mgr := session.New(self, st, coord, logger)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return mgr.Run(ctx) })

	logger.Info("supervisor running", "state_path", statePath)
	err = g.Wait()
	if ctx.Err() != nil {
		return nil
	}
	return err
}
