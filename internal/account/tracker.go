package account

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"futuresGuard/internal/domain"
	"futuresGuard/internal/ports"
)

const (
	defaultMaxSnapshots = 1000
)

var (
	safetyFloorRatio = decimal.NewFromFloat(0.10) // Available balance must stay above 10% of equity
	highRiskDrawdown = decimal.NewFromInt(10)
	medRiskDrawdown  = decimal.NewFromInt(5)
)

// StateSource is the slice of the exchange client the tracker needs.
type StateSource interface {
	GetAccountState(ctx context.Context) (*ports.AccountState, error)
}

// Config holds tracker settings.
type Config struct {
	MaxSnapshots int
	Logger       ports.Logger
	Metrics      ports.Metrics
	Now          func() time.Time // Defaults to time.Now().UTC()
}

// Tracker owns the authoritative view of account equity and its history.
type Tracker struct {
	source  StateSource
	logger  ports.Logger
	metrics ports.Metrics
	now     func() time.Time
	maxSnap int

	mu                 sync.RWMutex
	initialized        bool
	initialEquity      decimal.Decimal
	sessionStartEquity decimal.Decimal
	sessionStart       time.Time
	current            domain.AccountSnapshot
	peak               domain.PeakState
	snapshots          []domain.AccountSnapshot
	realizedPnL        decimal.Decimal
	fees               decimal.Decimal
	tradeCount         int
}

// NewTracker creates an account tracker reading from source.
func NewTracker(source StateSource, cfg Config) (*Tracker, error) {
	if source == nil || cfg.Logger == nil {
		return nil, fmt.Errorf("account tracker requires a state source and a logger")
	}
	if cfg.MaxSnapshots <= 0 {
		cfg.MaxSnapshots = defaultMaxSnapshots
	}
	if cfg.Metrics == nil {
		cfg.Metrics = ports.NopMetrics{}
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	return &Tracker{
		source:  source,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
		now:     cfg.Now,
		maxSnap: cfg.MaxSnapshots,
	}, nil
}

// Initialize pulls the current account state and seeds initial, peak and session equity.
func (t *Tracker) Initialize(ctx context.Context) error {
	op := "account.Initialize"
	state, err := t.source.GetAccountState(ctx)
	if err != nil {
		t.logger.Error(ctx, err, op+": Failed to fetch account state")
		return fmt.Errorf("%s: %w: %w", op, ports.ErrConnectivity, err)
	}

	now := t.now()
	t.mu.Lock()
	t.seedLocked(state, now)
	snap := t.current
	t.mu.Unlock()

	t.metrics.SetEquity(snap.Equity)
	t.logger.Info(ctx, op+": Account tracker initialized", map[string]interface{}{
		"equity":    snap.Equity.String(),
		"available": snap.AvailableBalance.String(),
	})
	return nil
}

func (t *Tracker) seedLocked(state *ports.AccountState, now time.Time) {
	t.initialized = true
	t.initialEquity = state.Equity
	t.sessionStartEquity = state.Equity
	t.sessionStart = now
	t.peak = domain.PeakState{Equity: state.Equity, Time: now}
	t.snapshots = t.snapshots[:0]
	t.appendLocked(t.snapshotLocked(state, now))
}

// Refresh re-queries the account and appends a snapshot.
// On failure the previous state is kept and false is returned.
func (t *Tracker) Refresh(ctx context.Context) bool {
	op := "account.Refresh"
	state, err := t.source.GetAccountState(ctx)
	if err != nil {
		t.logger.Warn(ctx, op+": Account query failed, keeping previous state", map[string]interface{}{"error": err.Error()})
		return false
	}

	now := t.now()
	t.mu.Lock()
	if !t.initialized {
		t.seedLocked(state, now)
	} else {
		t.peak.Observe(state.Equity, now)
		t.appendLocked(t.snapshotLocked(state, now))
	}
	snap := t.current
	drawdown := domain.Drawdown(t.peak.Equity, snap.Equity)
	t.mu.Unlock()

	t.metrics.SetEquity(snap.Equity)
	t.metrics.SetDrawdownPct(drawdown.Mul(decimal.NewFromInt(100)))
	t.logger.Debug(ctx, op+": Snapshot recorded", map[string]interface{}{
		"equity":     snap.Equity.String(),
		"sessionPnl": snap.SessionPnL.String(),
	})
	return true
}

func (t *Tracker) snapshotLocked(state *ports.AccountState, now time.Time) domain.AccountSnapshot {
	positionsValue := decimal.Zero
	for _, p := range state.Positions {
		positionsValue = positionsValue.Add(p.Size.Mul(p.MarkPrice))
	}
	leverage := decimal.Zero
	if state.Equity.IsPositive() {
		leverage = state.MarginUsed.Div(state.Equity)
	}
	return domain.AccountSnapshot{
		Timestamp:        now,
		Equity:           state.Equity,
		AvailableBalance: state.AvailableMargin,
		MarginUsed:       state.MarginUsed,
		UnrealizedPnL:    state.UnrealizedPnL,
		RealizedPnL:      t.realizedPnL,
		SessionPnL:       state.Equity.Sub(t.sessionStartEquity),
		PositionsValue:   positionsValue,
		Leverage:         leverage,
	}
}

// appendLocked appends and evicts in one critical section.
func (t *Tracker) appendLocked(s domain.AccountSnapshot) {
	t.current = s
	t.snapshots = append(t.snapshots, s)
	if len(t.snapshots) > t.maxSnap {
		t.snapshots = append(t.snapshots[:0:0], t.snapshots[len(t.snapshots)-t.maxSnap:]...)
	}
}

// RecordTrade accumulates realized P&L and fees. Called once per position close.
func (t *Tracker) RecordTrade(pnl, fees decimal.Decimal) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.realizedPnL = t.realizedPnL.Add(pnl)
	t.fees = t.fees.Add(fees)
	t.tradeCount++
}

// CanTrade reports whether requiredMargin can be committed.
func (t *Tracker) CanTrade(requiredMargin decimal.Decimal) (bool, string) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if !t.initialized {
		return false, "account state not initialized"
	}
	available := t.current.AvailableBalance
	equity := t.current.Equity
	if requiredMargin.GreaterThan(available) {
		return false, fmt.Sprintf("insufficient margin: required %s, available %s", requiredMargin.StringFixed(2), available.StringFixed(2))
	}
	floor := equity.Mul(safetyFloorRatio)
	if available.LessThan(floor) {
		return false, fmt.Sprintf("available balance %s below safety floor %s (10%% of equity)", available.StringFixed(2), floor.StringFixed(2))
	}
	return true, "ok"
}

// ResetSession re-bases session P&L and trade counters on the current equity.
// The peak is kept.
func (t *Tracker) ResetSession() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sessionStartEquity = t.current.Equity
	t.sessionStart = t.now()
	t.realizedPnL = decimal.Zero
	t.fees = decimal.Zero
	t.tradeCount = 0
}

// Initialized reports whether the tracker has been seeded.
func (t *Tracker) Initialized() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.initialized
}

// State returns the latest snapshot.
func (t *Tracker) State() domain.AccountSnapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.current
}

// Peak returns the current peak state.
func (t *Tracker) Peak() domain.PeakState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.peak
}

// Snapshots returns a copy of the retained history, oldest first.
func (t *Tracker) Snapshots() []domain.AccountSnapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]domain.AccountSnapshot(nil), t.snapshots...)
}

// Drawdown returns (peak - current) / peak as a fraction.
func (t *Tracker) Drawdown() decimal.Decimal {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return domain.Drawdown(t.peak.Equity, t.current.Equity)
}
