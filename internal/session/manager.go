// Package session implements the multi-bot supervisor: one process
// per trading pair, spawned as a worker subprocess, coordinated
// through a shared USDT budget and a shared state document. Grounded
// on original_source/session_manager.py's SessionManager/BotWorker
// (process spawn, health loop, signal-driven shutdown), restructured
// around market_maker/internal/bootstrap/app.go's signal-context
// lifecycle.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"github.com/shopspring/decimal"

	"gatescalp/internal/budget"
	"gatescalp/internal/state"
)

// healthInterval matches the original's 5-second monitor loop cadence.
const healthInterval = 5 * time.Second

// workerStopSignal is sent to request graceful shutdown, matching the
// original's process.terminate() (SIGTERM).
var workerStopSignal = syscall.SIGTERM

// worker tracks one running (or exited) bot subprocess.
type worker struct {
	pair   string
	cmd    *exec.Cmd
	cancel context.CancelFunc
	done   chan struct{}
}

// Manager supervises one BotWorker subprocess per trading pair.
type Manager struct {
	binary string // path to the worker executable (this same binary, run with --worker-mode)

	state   *state.Store
	budgets *budget.Coordinator
	spawn   failsafe.Executor[*exec.Cmd]
	logger  *slog.Logger

	mu      sync.Mutex
	workers map[string]*worker
}

// New returns a Manager that spawns binary with --worker-mode for each
// pair it starts.
func New(binary string, st *state.Store, budgets *budget.Coordinator, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}

	retryPolicy := retrypolicy.NewBuilder[*exec.Cmd]().
		HandleIf(func(_ *exec.Cmd, err error) bool { return err != nil }).
		WithBackoff(200*time.Millisecond, 2*time.Second).
		WithMaxRetries(3).
		Build()

	return &Manager{
		binary:  binary,
		state:   st,
		budgets: budgets,
		spawn:   failsafe.NewExecutor[*exec.Cmd](retryPolicy),
		logger:  logger.With("component", "session_manager"),
		workers: make(map[string]*worker),
	}
}

// StartBot allocates budget for pair and spawns its worker
// subprocess. Returns false (no error) if pair is already running or
// budget allocation fails outright.
func (m *Manager) StartBot(ctx context.Context, pair string, requestedBudget decimal.Decimal, targetPercent decimal.Decimal) (bool, error) {
	m.mu.Lock()
	if _, exists := m.workers[pair]; exists {
		m.mu.Unlock()
		return false, nil
	}
	m.mu.Unlock()

	ok, allocated, err := m.budgets.Allocate(ctx, pair, requestedBudget)
	if err != nil {
		return false, fmt.Errorf("allocate budget: %w", err)
	}
	if !ok {
		return false, nil
	}

	if err := m.state.SetBotStatus(state.BotStatus{
		Pair: pair, Status: "STARTING", StartTime: time.Now(), AllocatedBudget: allocated,
	}); err != nil {
		m.budgets.Deallocate(pair)
		return false, err
	}

	workerCtx, cancel := context.WithCancel(context.Background())
	cmd, err := m.spawn.Get(func() (*exec.Cmd, error) {
		return m.spawnWorker(workerCtx, pair, allocated, targetPercent)
	})
	if err != nil {
		cancel()
		m.budgets.Deallocate(pair)
		_ = m.state.SetBotStatus(state.BotStatus{Pair: pair, Status: "ERROR", ErrorsCount: 1})
		return false, fmt.Errorf("spawn worker %s: %w", pair, err)
	}

	w := &worker{pair: pair, cmd: cmd, cancel: cancel, done: make(chan struct{})}
	m.mu.Lock()
	m.workers[pair] = w
	m.mu.Unlock()

	go m.waitForExit(w)

	pid := 0
	if cmd.Process != nil {
		pid = cmd.Process.Pid
	}
	if err := m.state.SetBotStatus(state.BotStatus{
		Pair: pair, Status: "RUNNING", PID: pid, StartTime: time.Now(), AllocatedBudget: allocated,
	}); err != nil {
		m.logger.Error("failed to record running status", "pair", pair, "error", err)
	}

	m.logger.Info("bot started", "pair", pair, "pid", pid, "allocated_budget", allocated)
	return true, nil
}

func (m *Manager) spawnWorker(ctx context.Context, pair string, allocated, targetPercent decimal.Decimal) (*exec.Cmd, error) {
	cmd := exec.CommandContext(ctx, m.binary,
		"--worker-mode",
		"--pair", pair,
		"--budget", allocated.String(),
		"--target", targetPercent.String(),
	)
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return cmd, nil
}

func (m *Manager) waitForExit(w *worker) {
	defer close(w.done)
	err := w.cmd.Wait()

	m.mu.Lock()
	delete(m.workers, w.pair)
	m.mu.Unlock()

	status := "STOPPED"
	if err != nil {
		status = "ERROR"
		m.logger.Warn("worker exited with error", "pair", w.pair, "error", err)
	}

	bs, ok, rerr := m.state.GetBotStatus(w.pair)
	if rerr == nil && ok {
		bs.Status = status
		bs.PID = 0
		if status == "ERROR" {
			bs.ErrorsCount++
		}
		_ = m.state.SetBotStatus(bs)
	}
	m.budgets.Deallocate(w.pair)
}

// StopBot signals pair's worker to terminate and waits up to 10s for
// a graceful exit before the subprocess's own context cancellation
// forces it, matching the original's terminate-then-kill escalation.
func (m *Manager) StopBot(pair string) bool {
	m.mu.Lock()
	w, ok := m.workers[pair]
	m.mu.Unlock()
	if !ok {
		return false
	}

	if w.cmd.Process != nil {
		_ = w.cmd.Process.Signal(workerStopSignal)
	}

	select {
	case <-w.done:
	case <-time.After(10 * time.Second):
		w.cancel() // force kill via the exec context
		<-w.done
	}
	return true
}

// Stop signals every running bot to stop.
func (m *Manager) Stop() {
	m.mu.Lock()
	pairs := make([]string, 0, len(m.workers))
	for p := range m.workers {
		pairs = append(pairs, p)
	}
	m.mu.Unlock()

	for _, pair := range pairs {
		m.StopBot(pair)
	}
}

// Run drives the health-check loop until ctx is canceled, matching
// the original's 5-second _monitor_loop cadence.
func (m *Manager) Run(ctx context.Context) error {
	ticker := time.NewTicker(healthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.Stop()
			return ctx.Err()
		case <-ticker.C:
			m.checkWorkersHealth()
			info, err := m.budgets.Update(ctx)
			if err != nil {
				m.logger.Warn("budget refresh failed", "error", err)
				continue
			}
			if err := m.state.SetBudgetInfo(state.BudgetInfo{
				TotalUSDT:     info.TotalUSDT,
				AllocatedUSDT: info.AllocatedUSDT,
				AvailableUSDT: info.AvailableUSDT,
			}); err != nil {
				m.logger.Warn("budget publish failed", "error", err)
			}
		}
	}
}

func (m *Manager) checkWorkersHealth() {
	m.mu.Lock()
	workers := make([]*worker, 0, len(m.workers))
	for _, w := range m.workers {
		workers = append(workers, w)
	}
	m.mu.Unlock()

	for _, w := range workers {
		select {
		case <-w.done:
			m.logger.Warn("worker found dead during health check", "pair", w.pair)
		default:
		}
	}
}

// StatusSummary returns every bot's current status alongside the
// shared budget snapshot, for a dashboard or CLI status command.
func (m *Manager) StatusSummary() (map[string]state.BotStatus, state.BudgetInfo, error) {
	bots, err := m.state.AllBots()
	if err != nil {
		return nil, state.BudgetInfo{}, err
	}
	info, err := m.state.GetBudgetInfo()
	if err != nil {
		return nil, state.BudgetInfo{}, err
	}
	return bots, info, nil
}
