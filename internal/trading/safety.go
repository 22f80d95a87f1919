package trading

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// SafetySystem wraps the state machine with daily P&L tracking and a
// rolling win-rate gate, per spec §4.11. Grounded on the
// Check*-returns-error idiom of market_maker/internal/safety/checker.go,
// generalized from a pre-trade-only check to a per-iteration gate since
// this engine runs one pair continuously rather than re-initializing
// a grid.
type SafetySystem struct {
	maxDailyLoss decimal.Decimal
	minWinRate   float64

	mu       sync.Mutex
	day      string // UTC date, YYYY-MM-DD
	dailyPnl decimal.Decimal
	trades   []decimal.Decimal
}

func NewSafetySystem(maxDailyLoss decimal.Decimal, minWinRate float64) *SafetySystem {
	return &SafetySystem{
		maxDailyLoss: maxDailyLoss,
		minWinRate:   minWinRate,
		day:          utcDay(time.Now()),
	}
}

func utcDay(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// CheckTrade appends pnl to today's history (resetting counters on a
// new UTC day first) and reports whether trading may continue.
func (s *SafetySystem) CheckTrade(pnl decimal.Decimal) (allowed bool, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	today := utcDay(time.Now())
	if today != s.day {
		s.day = today
		s.dailyPnl = decimal.Zero
		s.trades = nil
	}

	s.trades = append(s.trades, pnl)
	s.dailyPnl = s.dailyPnl.Add(pnl)

	if s.dailyPnl.LessThan(s.maxDailyLoss.Neg()) {
		return false, "daily loss limit exceeded"
	}

	if len(s.trades) >= 5 {
		if s.winRate() < s.minWinRate {
			return false, "rolling win rate below minimum"
		}
	}

	return true, ""
}

func (s *SafetySystem) winRate() float64 {
	if len(s.trades) == 0 {
		return 1
	}
	wins := 0
	for _, t := range s.trades {
		if t.GreaterThan(decimal.Zero) {
			wins++
		}
	}
	return float64(wins) / float64(len(s.trades))
}

// Snapshot reports today's trade count and cumulative realized P&L,
// for status reporting. On a new UTC day it reports zero; the stored
// counters are reset only by the next CheckTrade call, and neither
// Snapshot nor Allowed rolls the day over.
func (s *SafetySystem) Snapshot() (tradesToday int, dailyPnl decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if utcDay(time.Now()) != s.day {
		return 0, decimal.Zero
	}
	return len(s.trades), s.dailyPnl
}

// Allowed reports whether a new trading iteration may proceed without
// recording a trade outcome (used at the top of the engine loop).
func (s *SafetySystem) Allowed() (allowed bool, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	today := utcDay(time.Now())
	if today != s.day {
		return true, ""
	}
	if s.dailyPnl.LessThan(s.maxDailyLoss.Neg()) {
		return false, "daily loss limit exceeded"
	}
	if len(s.trades) >= 5 && s.winRate() < s.minWinRate {
		return false, "rolling win rate below minimum"
	}
	return true, ""
}
