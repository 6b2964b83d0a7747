package risk

import (
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
)

// ErrPositionLimit is returned when an order would push a net position
// beyond the configured per-symbol limit.
var ErrPositionLimit = errors.New("position limit exceeded")

// LimitConfig holds per-symbol position limits and exemptions.
type LimitConfig struct {
	symbolLimits   map[string]decimal.Decimal
	exemptAccounts map[string]struct{}
	mu             sync.RWMutex
}

func NewLimitConfig() *LimitConfig {
	return &LimitConfig{
		symbolLimits:   make(map[string]decimal.Decimal),
		exemptAccounts: make(map[string]struct{}),
	}
}

func (lc *LimitConfig) SetSymbolLimit(symbol string, max decimal.Decimal) {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	lc.symbolLimits[symbol] = max
}

func (lc *LimitConfig) GetSymbolLimit(symbol string) decimal.Decimal {
	lc.mu.RLock()
	defer lc.mu.RUnlock()
	return lc.symbolLimits[symbol]
}

func (lc *LimitConfig) AddExemptAccount(userID string) {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	lc.exemptAccounts[userID] = struct{}{}
}

func (lc *LimitConfig) IsExempt(userID string) bool {
	lc.mu.RLock()
	defer lc.mu.RUnlock()
	_, ok := lc.exemptAccounts[userID]
	return ok
}

// PositionTracker keeps the working set of net positions per user and symbol
// and enforces per-symbol limits.
type PositionTracker struct {
	positions map[string]map[string]decimal.Decimal // userID -> symbol -> net quantity
	cfg       *LimitConfig
	mu        sync.RWMutex
}

func NewPositionTracker(cfg *LimitConfig) *PositionTracker {
	return &PositionTracker{
		positions: make(map[string]map[string]decimal.Decimal),
		cfg:       cfg,
	}
}

// Update should be called after every fill. Buys are positive deltas.
func (pt *PositionTracker) Update(userID, symbol string, delta decimal.Decimal) {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	if pt.positions[userID] == nil {
		pt.positions[userID] = make(map[string]decimal.Decimal)
	}
	pt.positions[userID][symbol] = pt.positions[userID][symbol].Add(delta)
}

// Get returns the tracked net position for a user and symbol.
func (pt *PositionTracker) Get(userID, symbol string) decimal.Decimal {
	pt.mu.RLock()
	defer pt.mu.RUnlock()
	if pt.positions[userID] == nil {
		return decimal.Zero
	}
	return pt.positions[userID][symbol]
}

// CheckLimit enforces per-symbol limits for non-exempt users. A zero limit
// means no limit is set for the symbol.
func (pt *PositionTracker) CheckLimit(userID, symbol string, intendedDelta decimal.Decimal) error {
	if pt.cfg.IsExempt(userID) {
		return nil
	}
	max := pt.cfg.GetSymbolLimit(symbol)
	if max.IsZero() {
		return nil
	}
	next := pt.Get(userID, symbol).Add(intendedDelta)
	if next.GreaterThan(max) || next.LessThan(max.Neg()) {
		return fmt.Errorf("%w for %s: limit %s, attempted %s", ErrPositionLimit, symbol, max, next)
	}
	return nil
}
