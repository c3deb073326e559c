package risk

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"futuresGuard/internal/domain"
	"futuresGuard/internal/ports"
)

const (
	defaultInterval   = 10 * time.Second
	defaultMaxEvents  = 1000
	defaultStaleAfter = 60 * time.Second
)

// PositionExposure is one open position as seen by the risk checks.
type PositionExposure struct {
	Symbol        string
	Side          domain.PositionSide
	Size          decimal.Decimal
	EntryPrice    decimal.Decimal
	MarkPrice     decimal.Decimal
	UnrealizedPnL decimal.Decimal
	Leverage      int
	EntryTime     time.Time
}

// PortfolioState is the read-only snapshot the monitor evaluates.
type PortfolioState struct {
	Equity      decimal.Decimal
	Available   decimal.Decimal
	MarginUsed  decimal.Decimal
	DrawdownPct decimal.Decimal
	PeakEquity  decimal.Decimal
	Positions   []PositionExposure
}

// PortfolioView is the watched portfolio. The monitor only reads through it.
type PortfolioView interface {
	RefreshState(ctx context.Context) error
	RiskSnapshot() PortfolioState
}

// ConnectivitySource reports exchange connectivity.
type ConnectivitySource interface {
	GetConnectionStatus() ports.ConnectionStatus
}

// Callback is invoked once when a new event of the registered level is created.
type Callback func(ctx context.Context, event domain.RiskEvent)

// Config holds monitor settings.
type Config struct {
	Limits     domain.RiskLimits
	Interval   time.Duration
	MaxEvents  int           // Retained event history
	StaleAfter time.Duration // Exchange inactivity that raises a connectivity warning
	Logger     ports.Logger
	Metrics    ports.Metrics
	Journal    ports.RiskJournal // Optional
	Now        func() time.Time
}

type namedCheck struct {
	name string
	fn   func(ctx context.Context, st PortfolioState)
}

// Monitor evaluates portfolio risk on an interval, deduplicates risk events and owns
// the kill switch.
type Monitor struct {
	view     PortfolioView
	conn     ConnectivitySource
	shutdown ports.EmergencyShutdown
	journal  ports.RiskJournal
	logger   ports.Logger
	metrics  ports.Metrics
	limits   domain.RiskLimits
	cfg      Config
	now      func() time.Time
	checks   []namedCheck

	// latch serializes kill switch transitions and is held across the emergency
	// shutdown call. Order validation never takes it.
	latch  sync.Mutex
	killed atomic.Bool
	paused atomic.Bool

	mu                sync.Mutex
	active            map[string]*domain.RiskEvent // unresolved, by type_level key
	history           []*domain.RiskEvent
	totalEvents       int
	callbacks         map[domain.RiskLevel][]Callback
	dailyDate         string
	dailyStartEquity  decimal.Decimal
	lastEquity        decimal.Decimal
	consecutiveLosses int
	killReason        string
	killedAt          time.Time
	pauseReason       string
}

// NewMonitor creates a risk monitor. conn may be nil, in which case the
// connectivity check is skipped.
func NewMonitor(view PortfolioView, conn ConnectivitySource, shutdown ports.EmergencyShutdown, cfg Config) (*Monitor, error) {
	if view == nil || shutdown == nil || cfg.Logger == nil {
		return nil, fmt.Errorf("risk monitor requires a portfolio view, an emergency shutdown and a logger")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	if cfg.MaxEvents <= 0 {
		cfg.MaxEvents = defaultMaxEvents
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = defaultStaleAfter
	}
	if cfg.Limits.MaxPositions <= 0 {
		cfg.Limits = domain.DefaultRiskLimits()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = ports.NopMetrics{}
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	m := &Monitor{
		view:      view,
		conn:      conn,
		shutdown:  shutdown,
		journal:   cfg.Journal,
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
		limits:    cfg.Limits,
		cfg:       cfg,
		now:       cfg.Now,
		active:    make(map[string]*domain.RiskEvent),
		callbacks: make(map[domain.RiskLevel][]Callback),
	}
	m.checks = []namedCheck{
		{"drawdown", m.checkDrawdown},
		{"leverage", m.checkLeverage},
		{"positions", m.checkPositions},
		{"daily_loss", m.checkDailyLoss},
		{"concentration", m.checkConcentration},
		{"connectivity", m.checkConnectivity},
		{"consecutive_losses", m.checkConsecutiveLosses},
	}
	return m, nil
}

// Run evaluates on every tick until ctx is done.
func (m *Monitor) Run(ctx context.Context) error {
	op := "riskMonitor.Run"
	m.logger.Info(ctx, op+": Risk monitor started", map[string]interface{}{"interval": m.cfg.Interval.String()})
	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			m.logger.Info(ctx, op+": Risk monitor stopped")
			return nil
		case <-ticker.C:
			m.Evaluate(ctx)
		}
	}
}

// Evaluate runs one risk cycle: refresh, daily rollover, isolated checks, then
// kill-switch handling for unacknowledged critical events.
func (m *Monitor) Evaluate(ctx context.Context) {
	op := "evaluate"
	if err := m.view.RefreshState(ctx); err != nil {
		m.logger.Warn(ctx, op+": Portfolio refresh failed, evaluating stale state", map[string]interface{}{"error": err.Error()})
	}
	st := m.view.RiskSnapshot()
	m.rollDaily(ctx, st)

	for _, c := range m.checks {
		m.runCheck(ctx, c, st)
	}

	m.processCritical(ctx)
	m.metrics.SetRiskScore(m.Score())
}

func (m *Monitor) runCheck(ctx context.Context, c namedCheck, st PortfolioState) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error(ctx, fmt.Errorf("panic: %v", r), "evaluate: Risk check failed", map[string]interface{}{"check": c.name})
		}
	}()
	c.fn(ctx, st)
}

// rollDaily re-bases the daily start equity on the first cycle and on UTC date change.
func (m *Monitor) rollDaily(ctx context.Context, st PortfolioState) {
	today := m.now().UTC().Format("2006-01-02")
	m.mu.Lock()
	m.lastEquity = st.Equity
	if m.dailyDate == today || !st.Equity.IsPositive() {
		m.mu.Unlock()
		return
	}
	first := m.dailyDate == ""
	m.dailyDate = today
	m.dailyStartEquity = st.Equity
	m.mu.Unlock()

	if !first {
		m.logger.Info(ctx, "evaluate: Daily risk counters reset", map[string]interface{}{"date": today, "startEquity": st.Equity.String()})
	}
}

// raise creates or refreshes the event for (riskType, level).
func (m *Monitor) raise(ctx context.Context, riskType domain.RiskType, level domain.RiskLevel, message string, details map[string]interface{}) {
	if ev, created := m.record(riskType, level, message, details, false); created {
		m.dispatch(ctx, ev)
	}
}

// record inserts a new event, or merges details into the active one with the same key.
// It returns a copy of the event and whether it was newly created.
func (m *Monitor) record(riskType domain.RiskType, level domain.RiskLevel, message string, details map[string]interface{}, acknowledged bool) (domain.RiskEvent, bool) {
	now := m.now()
	key := domain.EventKey(riskType, level)

	m.mu.Lock()
	defer m.mu.Unlock()
	if ev, ok := m.active[key]; ok {
		for k, v := range details {
			ev.Details[k] = v
		}
		ev.Message = message
		ev.Timestamp = now
		return ev.Clone(), false
	}

	ev := &domain.RiskEvent{
		ID:           uuid.NewString(),
		Type:         riskType,
		Level:        level,
		Message:      message,
		Details:      make(map[string]interface{}, len(details)),
		Timestamp:    now,
		Acknowledged: acknowledged,
	}
	for k, v := range details {
		ev.Details[k] = v
	}
	m.active[key] = ev
	m.history = append(m.history, ev)
	if len(m.history) > m.cfg.MaxEvents {
		m.history = append(m.history[:0:0], m.history[len(m.history)-m.cfg.MaxEvents:]...)
	}
	m.totalEvents++
	return ev.Clone(), true
}

// dispatch logs, counts, journals and fans out a newly created event. Never called under m.mu.
func (m *Monitor) dispatch(ctx context.Context, ev domain.RiskEvent) {
	op := "riskEvent"
	fields := map[string]interface{}{"type": ev.Type, "level": ev.Level, "eventID": ev.ID}
	switch ev.Level {
	case domain.LevelCritical:
		m.logger.Error(ctx, ports.ErrLimitExceeded, op+": CRITICAL RISK: "+ev.Message, fields)
	case domain.LevelHigh:
		m.logger.Warn(ctx, op+": HIGH RISK: "+ev.Message, fields)
	case domain.LevelMedium:
		m.logger.Warn(ctx, op+": MEDIUM RISK: "+ev.Message, fields)
	default:
		m.logger.Info(ctx, op+": LOW RISK: "+ev.Message, fields)
	}
	m.metrics.IncRiskEvent(string(ev.Type), string(ev.Level))
	m.persist(ctx, ev)

	m.mu.Lock()
	callbacks := append([]Callback(nil), m.callbacks[ev.Level]...)
	m.mu.Unlock()
	for _, cb := range callbacks {
		m.invoke(ctx, cb, ev)
	}
}

func (m *Monitor) invoke(ctx context.Context, cb Callback, ev domain.RiskEvent) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error(ctx, fmt.Errorf("panic: %v", r), "riskEvent: Callback failed", map[string]interface{}{"eventID": ev.ID})
		}
	}()
	cb(ctx, ev.Clone())
}

func (m *Monitor) persist(ctx context.Context, ev domain.RiskEvent) {
	if m.journal == nil {
		return
	}
	if err := m.journal.RecordRiskEvent(ctx, &ev); err != nil {
		m.logger.Warn(ctx, "riskEvent: Failed to journal risk event", map[string]interface{}{"eventID": ev.ID, "error": err.Error()})
	}
}

// AddCallback registers fn for new events of level.
func (m *Monitor) AddCallback(level domain.RiskLevel, fn Callback) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks[level] = append(m.callbacks[level], fn)
}

// ActiveRisks returns the unresolved events ordered by time.
func (m *Monitor) ActiveRisks() []domain.RiskEvent {
	m.mu.Lock()
	out := make([]domain.RiskEvent, 0, len(m.active))
	for _, ev := range m.active {
		out = append(out, ev.Clone())
	}
	m.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].ID < out[j].ID
		}
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}

// RecentEvents returns up to limit events from the retained history, newest first.
func (m *Monitor) RecentEvents(limit int) []domain.RiskEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit <= 0 || limit > len(m.history) {
		limit = len(m.history)
	}
	out := make([]domain.RiskEvent, 0, limit)
	for i := len(m.history) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.history[i].Clone())
	}
	return out
}

// Acknowledge marks an active event acknowledged.
func (m *Monitor) Acknowledge(ctx context.Context, eventID string) error {
	ev, err := m.mutateActive(eventID, func(key string, ev *domain.RiskEvent) {
		ev.Acknowledged = true
	})
	if err != nil {
		return err
	}
	m.logger.Info(ctx, "acknowledgeRisk: Risk event acknowledged", map[string]interface{}{"eventID": eventID, "message": ev.Message})
	m.persist(ctx, ev)
	return nil
}

// Resolve marks an active event resolved and removes it from the active set.
func (m *Monitor) Resolve(ctx context.Context, eventID string) error {
	ev, err := m.mutateActive(eventID, func(key string, ev *domain.RiskEvent) {
		ev.Resolved = true
		delete(m.active, key)
	})
	if err != nil {
		return err
	}
	m.logger.Info(ctx, "resolveRisk: Risk event resolved", map[string]interface{}{"eventID": eventID, "message": ev.Message})
	m.persist(ctx, ev)
	m.metrics.SetRiskScore(m.Score())
	return nil
}

func (m *Monitor) mutateActive(eventID string, fn func(key string, ev *domain.RiskEvent)) (domain.RiskEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, ev := range m.active {
		if ev.ID == eventID {
			fn(key, ev)
			return ev.Clone(), nil
		}
	}
	return domain.RiskEvent{}, fmt.Errorf("risk event %s: %w", eventID, ports.ErrEventNotFound)
}

// RecordTradeResult feeds a closed trade into the consecutive-loss counter.
func (m *Monitor) RecordTradeResult(pnl decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch {
	case pnl.IsNegative():
		m.consecutiveLosses++
	case pnl.IsPositive():
		m.consecutiveLosses = 0
	}
}

// PauseTrading blocks new orders without closing anything.
func (m *Monitor) PauseTrading(ctx context.Context, reason string) {
	m.mu.Lock()
	m.pauseReason = reason
	m.mu.Unlock()
	m.paused.Store(true)
	m.metrics.SetTradingPaused(true)
	m.logger.Warn(ctx, "pauseTrading: Trading paused", map[string]interface{}{"reason": reason})
}

// ResumeTrading lifts a pause. It does nothing while the kill switch is active.
func (m *Monitor) ResumeTrading(ctx context.Context, reason string) bool {
	m.latch.Lock()
	defer m.latch.Unlock()
	if m.killed.Load() {
		m.logger.Warn(ctx, "resumeTrading: Kill switch active, trading stays paused", map[string]interface{}{"reason": reason})
		return false
	}
	m.mu.Lock()
	m.pauseReason = ""
	m.mu.Unlock()
	m.paused.Store(false)
	m.metrics.SetTradingPaused(false)
	m.logger.Info(ctx, "resumeTrading: Trading resumed", map[string]interface{}{"reason": reason})
	return true
}

// TradingPaused reports whether new orders are blocked.
func (m *Monitor) TradingPaused() bool {
	return m.paused.Load()
}

// Limits returns the configured limits.
func (m *Monitor) Limits() domain.RiskLimits {
	return m.limits
}
