// Package state implements the JSON document shared between a
// SessionManager and its bot workers, guarded by an exclusive-create
// lock file. Grounded verbatim on
// original_source/session_manager.py's SharedState: same lock file
// next to the state file, same atomic-create-as-lock trick, same
// 10ms poll interval and 5s default timeout.
package state

import (
	"encoding/json"
	"errors"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// BotStatus mirrors one bot's lifecycle, mirroring the original's
// BotStatus dataclass.
type BotStatus struct {
	Pair            string            `json:"pair"`
	Status          string            `json:"status"` // STARTING, RUNNING, PAUSED, STOPPED, ERROR
	PID             int               `json:"pid,omitempty"`
	StartTime       time.Time         `json:"startTime,omitempty"`
	AllocatedBudget decimal.Decimal   `json:"allocatedBudget"`
	CurrentPosition *PositionSnapshot `json:"currentPosition,omitempty"`
	TradesToday     int               `json:"tradesToday"`
	PnLPercent      decimal.Decimal   `json:"pnlPercent"`
	LastAction      string            `json:"lastAction,omitempty"`
	LastActionTime  time.Time         `json:"lastActionTime,omitempty"`
	ErrorsCount     int               `json:"errorsCount"`
}

// PositionSnapshot is the read-only view of an open position published
// into BotStatus, matching spec §3's Position shape (entryPrice,
// quantity, openedAt); runtime-only, cleared whenever a worker has no
// open position.
type PositionSnapshot struct {
	EntryPrice decimal.Decimal `json:"entryPrice"`
	Quantity   decimal.Decimal `json:"quantity"`
	OpenedAt   time.Time       `json:"openedAt"`
}

// BudgetInfo is the shared-budget snapshot that internal/session's
// health loop copies from internal/budget.Coordinator.Update for
// dashboard/other-process visibility.
type BudgetInfo struct {
	TotalUSDT     decimal.Decimal `json:"totalUsdt"`
	AllocatedUSDT decimal.Decimal `json:"allocatedUsdt"`
	AvailableUSDT decimal.Decimal `json:"availableUsdt"`
}

// document is the on-disk shape of the state file.
type document struct {
	Bots         map[string]BotStatus `json:"bots"`
	GlobalBudget BudgetInfo           `json:"globalBudget"`
	SystemStatus string               `json:"systemStatus"`
	LastUpdate   time.Time            `json:"lastUpdate"`
}

// Store is a process-local handle onto the shared state file. Multiple
// Store instances, in the same process or different ones, pointed at
// the same path coordinate safely via the lock file.
type Store struct {
	statePath string
	lockPath  string
	localMu   sync.Mutex // serializes this process's own attempts
	lockWait  time.Duration
}

// New returns a Store for path, creating an empty document if one
// doesn't already exist.
func New(path string) (*Store, error) {
	s := &Store{
		statePath: path,
		lockPath:  path + ".lock",
		lockWait:  5 * time.Second,
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := s.writeState(document{
			Bots:         make(map[string]BotStatus),
			SystemStatus: "IDLE",
		}); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}
	return s, nil
}

var errLockTimeout = errors.New("state: timed out acquiring shared state lock")

func (s *Store) acquireLock() error {
	deadline := time.Now().Add(s.lockWait)
	for {
		f, err := os.OpenFile(s.lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			_, _ = f.WriteString(strconv.Itoa(os.Getpid()))
			return f.Close()
		}
		if !errors.Is(err, os.ErrExist) {
			return err
		}
		if time.Now().After(deadline) {
			return errLockTimeout
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func (s *Store) releaseLock() {
	_ = os.Remove(s.lockPath)
}

// readDoc and writeDoc are the unlocked file I/O primitives. Callers
// must hold both localMu and the lock file (see withLock) before
// calling either.
func (s *Store) readDoc() (document, error) {
	data, err := os.ReadFile(s.statePath)
	if errors.Is(err, os.ErrNotExist) {
		return document{Bots: make(map[string]BotStatus)}, nil
	}
	if err != nil {
		return document{}, err
	}
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return document{}, err
	}
	if doc.Bots == nil {
		doc.Bots = make(map[string]BotStatus)
	}
	return doc, nil
}

func (s *Store) writeDoc(doc document) error {
	doc.LastUpdate = time.Now()
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.statePath, data, 0o644)
}

// writeState writes doc as a one-shot operation (used only by New to
// seed an empty document, before any reader could observe a gap).
func (s *Store) writeState(doc document) error {
	s.localMu.Lock()
	defer s.localMu.Unlock()

	if err := s.acquireLock(); err != nil {
		return err
	}
	defer s.releaseLock()

	return s.writeDoc(doc)
}

// withLock acquires the lock once, reads the current document, lets fn
// mutate it in place, then writes the result back before releasing —
// so a read-modify-write sequence is never interleaved with another
// reader or writer, in this process or another.
func (s *Store) withLock(fn func(doc *document) error) error {
	s.localMu.Lock()
	defer s.localMu.Unlock()

	if err := s.acquireLock(); err != nil {
		return err
	}
	defer s.releaseLock()

	doc, err := s.readDoc()
	if err != nil {
		return err
	}
	if err := fn(&doc); err != nil {
		return err
	}
	return s.writeDoc(doc)
}

// GetBotStatus returns the status for pair, or (BotStatus{}, false) if
// none is recorded.
func (s *Store) GetBotStatus(pair string) (BotStatus, bool, error) {
	var bs BotStatus
	var ok bool
	err := s.withLock(func(doc *document) error {
		bs, ok = doc.Bots[pair]
		return nil
	})
	return bs, ok, err
}

// SetBotStatus records status, read-modify-write under a single lock
// acquisition.
func (s *Store) SetBotStatus(status BotStatus) error {
	return s.withLock(func(doc *document) error {
		doc.Bots[status.Pair] = status
		return nil
	})
}

// AllBots returns every bot's current status.
func (s *Store) AllBots() (map[string]BotStatus, error) {
	var bots map[string]BotStatus
	err := s.withLock(func(doc *document) error {
		bots = doc.Bots
		return nil
	})
	return bots, err
}

// GetBudgetInfo returns the last-published shared budget snapshot.
func (s *Store) GetBudgetInfo() (BudgetInfo, error) {
	var info BudgetInfo
	err := s.withLock(func(doc *document) error {
		info = doc.GlobalBudget
		return nil
	})
	return info, err
}

// SetBudgetInfo publishes a new shared budget snapshot.
func (s *Store) SetBudgetInfo(info BudgetInfo) error {
	return s.withLock(func(doc *document) error {
		doc.GlobalBudget = info
		return nil
	})
}

// RemoveBot deletes pair's entry entirely, used once a worker has
// fully stopped and its slot shouldn't linger in the dashboard.
func (s *Store) RemoveBot(pair string) error {
	return s.withLock(func(doc *document) error {
		delete(doc.Bots, pair)
		return nil
	})
}
