package position

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"futuresGuard/internal/domain"
	"futuresGuard/internal/ports"
)

const (
	defaultMaxPositions     = 10
	defaultMaxClosedHistory = 1000
	defaultMaxPriceHistory  = 1000
)

// PositionSource is the slice of the exchange client the ledger polls.
type PositionSource interface {
	GetPositions(ctx context.Context) ([]ports.PositionInfo, error)
}

// TradeRecorder receives realized P&L once per close (the account tracker).
type TradeRecorder interface {
	RecordTrade(pnl, fees decimal.Decimal)
}

// CloseHandler is notified after a position has been closed and the ledger lock released.
type CloseHandler func(ctx context.Context, closed domain.ManagedPosition)

// Config holds ledger settings.
type Config struct {
	MaxPositions     int
	MaxClosedHistory int
	MaxPriceHistory  int
	FeeRate          decimal.Decimal // Taker fee applied to entry and exit notional
	Logger           ports.Logger
	Metrics          ports.Metrics
	Now              func() time.Time
}

// OpenRequest describes a newly filled entry.
type OpenRequest struct {
	Symbol     string
	Side       domain.PositionSide
	EntryPrice decimal.Decimal
	Size       decimal.Decimal
	StopLoss   decimal.NullDecimal
	TakeProfit decimal.NullDecimal
	Leverage   int
	Strategy   string
}

// Ledger owns open and closed managed positions.
type Ledger struct {
	source   PositionSource
	recorder TradeRecorder
	logger   ports.Logger
	metrics  ports.Metrics
	cfg      Config
	now      func() time.Time

	mu            sync.Mutex
	open          map[string]*domain.ManagedPosition
	closed        []*domain.ManagedPosition
	wins          int
	losses        int
	totalOpened   int
	totalClosed   int
	totalRealized decimal.Decimal
	totalFees     decimal.Decimal
	handlers      []CloseHandler
}

// NewLedger creates a position ledger.
func NewLedger(source PositionSource, recorder TradeRecorder, cfg Config) (*Ledger, error) {
	if source == nil || recorder == nil || cfg.Logger == nil {
		return nil, fmt.Errorf("position ledger requires a position source, trade recorder and logger")
	}
	if cfg.MaxPositions <= 0 {
		cfg.MaxPositions = defaultMaxPositions
	}
	if cfg.MaxClosedHistory <= 0 {
		cfg.MaxClosedHistory = defaultMaxClosedHistory
	}
	if cfg.MaxPriceHistory <= 0 {
		cfg.MaxPriceHistory = defaultMaxPriceHistory
	}
	if cfg.Metrics == nil {
		cfg.Metrics = ports.NopMetrics{}
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	return &Ledger{
		source:   source,
		recorder: recorder,
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
		cfg:      cfg,
		now:      cfg.Now,
		open:     make(map[string]*domain.ManagedPosition),
	}, nil
}

// OnClose registers a handler run after every close.
func (l *Ledger) OnClose(h CloseHandler) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.handlers = append(l.handlers, h)
}

// Open starts tracking a position for a symbol.
func (l *Ledger) Open(ctx context.Context, req OpenRequest) (domain.ManagedPosition, error) {
	op := "ledger.Open"
	if req.Symbol == "" || !req.Size.IsPositive() || !req.EntryPrice.IsPositive() {
		return domain.ManagedPosition{}, fmt.Errorf("%s: %w: symbol, positive size and entry price are required", op, ports.ErrValidation)
	}
	if req.Side != domain.Long && req.Side != domain.Short {
		return domain.ManagedPosition{}, fmt.Errorf("%s: %w: unknown side %q", op, ports.ErrValidation, req.Side)
	}

	l.mu.Lock()
	if _, exists := l.open[req.Symbol]; exists {
		l.mu.Unlock()
		return domain.ManagedPosition{}, fmt.Errorf("%s %s: %w: %w", op, req.Symbol, ports.ErrDuplicateSymbol, ports.ErrValidation)
	}
	if len(l.open) >= l.cfg.MaxPositions {
		l.mu.Unlock()
		return domain.ManagedPosition{}, fmt.Errorf("%s %s: %w (%d): %w", op, req.Symbol, ports.ErrLimitExceeded, l.cfg.MaxPositions, ports.ErrValidation)
	}

	now := l.now()
	pos := &domain.ManagedPosition{
		ID:         uuid.NewString(),
		Symbol:     req.Symbol,
		Side:       req.Side,
		EntryPrice: req.EntryPrice,
		Size:       req.Size,
		Leverage:   req.Leverage,
		Strategy:   req.Strategy,
		EntryTime:  now,
		StopLoss:   req.StopLoss,
		TakeProfit: req.TakeProfit,
		Fees:       req.EntryPrice.Mul(req.Size).Mul(l.cfg.FeeRate),
		Status:     domain.StatusOpen,
	}
	pos.UpdatePrice(req.EntryPrice, now, l.cfg.MaxPriceHistory)
	l.open[req.Symbol] = pos
	l.totalOpened++
	openCount := len(l.open)
	out := pos.Clone()
	l.mu.Unlock()

	l.metrics.SetOpenPositions(openCount)
	l.logger.Info(ctx, op+": Position opened", map[string]interface{}{
		"symbol": req.Symbol,
		"side":   req.Side,
		"size":   req.Size.String(),
		"entry":  req.EntryPrice.String(),
	})
	return out, nil
}

// UpdateAll marks every tracked position from one exchange snapshot.
// Positions the exchange reports as flat are closed as external_close; positions
// missing from the response are logged and left open.
func (l *Ledger) UpdateAll(ctx context.Context) error {
	op := "ledger.UpdateAll"
	l.mu.Lock()
	empty := len(l.open) == 0
	l.mu.Unlock()
	if empty {
		return nil
	}

	infos, err := l.source.GetPositions(ctx)
	if err != nil {
		l.logger.Warn(ctx, op+": Failed to fetch positions", map[string]interface{}{"error": err.Error()})
		return fmt.Errorf("%s: %w: %w", op, ports.ErrConnectivity, err)
	}
	bySymbol := make(map[string]ports.PositionInfo, len(infos))
	for _, info := range infos {
		bySymbol[info.Symbol] = info
	}

	now := l.now()
	var closed []domain.ManagedPosition
	var missing []string

	l.mu.Lock()
	for symbol, pos := range l.open {
		info, ok := bySymbol[symbol]
		if !ok {
			missing = append(missing, symbol)
			continue
		}
		if info.Size.IsZero() {
			exit := info.MarkPrice
			if !exit.IsPositive() {
				exit = pos.CurrentPrice
			}
			closed = append(closed, l.closeLocked(pos, exit, domain.CloseReasonExternalClose, now))
			continue
		}
		if info.MarkPrice.IsPositive() {
			pos.UpdatePrice(info.MarkPrice, now, l.cfg.MaxPriceHistory)
		}
	}
	handlers := l.handlers
	openCount := len(l.open)
	l.mu.Unlock()

	for _, symbol := range missing {
		l.logger.Warn(ctx, op+": Tracked position absent from exchange response", map[string]interface{}{"symbol": symbol})
	}
	for _, c := range closed {
		l.logger.Warn(ctx, op+": Position closed externally", map[string]interface{}{"symbol": c.Symbol, "realizedPnl": c.RealizedPnL.String()})
	}
	l.metrics.SetOpenPositions(openCount)
	l.notify(ctx, handlers, closed)
	return nil
}

// CheckStopTakeProfit closes every position whose stop, target or trailing stop has been
// crossed by its current mark. It does not schedule itself.
func (l *Ledger) CheckStopTakeProfit(ctx context.Context) []domain.ManagedPosition {
	op := "ledger.CheckStopTakeProfit"
	now := l.now()
	var closed []domain.ManagedPosition

	l.mu.Lock()
	for _, pos := range l.open {
		reason, exit, hit := pos.Trigger()
		if !hit {
			continue
		}
		closed = append(closed, l.closeLocked(pos, exit, reason, now))
	}
	handlers := l.handlers
	openCount := len(l.open)
	l.mu.Unlock()

	for _, c := range closed {
		l.logger.Info(ctx, op+": Protective level triggered", map[string]interface{}{
			"symbol":      c.Symbol,
			"reason":      c.CloseReason,
			"exitPrice":   c.ClosePrice.String(),
			"realizedPnl": c.RealizedPnL.String(),
		})
	}
	if len(closed) > 0 {
		l.metrics.SetOpenPositions(openCount)
		l.notify(ctx, handlers, closed)
	}
	return closed
}

// Close closes the open position for symbol at exitPrice.
func (l *Ledger) Close(ctx context.Context, symbol string, exitPrice decimal.Decimal, reason domain.CloseReason) (domain.ManagedPosition, error) {
	op := "ledger.Close"
	l.mu.Lock()
	pos, ok := l.open[symbol]
	if !ok {
		l.mu.Unlock()
		return domain.ManagedPosition{}, fmt.Errorf("%s %s: %w", op, symbol, ports.ErrPositionNotFound)
	}
	if !exitPrice.IsPositive() {
		exitPrice = pos.CurrentPrice
	}
	closed := l.closeLocked(pos, exitPrice, reason, l.now())
	handlers := l.handlers
	openCount := len(l.open)
	l.mu.Unlock()

	l.logger.Info(ctx, op+": Position closed", map[string]interface{}{
		"symbol":      symbol,
		"reason":      reason,
		"exitPrice":   exitPrice.String(),
		"realizedPnl": closed.RealizedPnL.String(),
	})
	l.metrics.SetOpenPositions(openCount)
	l.notify(ctx, handlers, []domain.ManagedPosition{closed})
	return closed, nil
}

// closeLocked finalizes pos, updates counters, forwards to the recorder and moves the
// record to the bounded closed log. Caller holds l.mu.
func (l *Ledger) closeLocked(pos *domain.ManagedPosition, exit decimal.Decimal, reason domain.CloseReason, now time.Time) domain.ManagedPosition {
	pos.Fees = pos.Fees.Add(exit.Mul(pos.Size).Mul(l.cfg.FeeRate))
	pos.RealizedPnL = pos.PnLAt(exit).Sub(pos.Fees)
	pos.ClosePrice = exit
	pos.CloseTime = now
	pos.CloseReason = reason
	pos.Status = domain.StatusClosed
	pos.CurrentPrice = exit
	pos.UnrealizedPnL = decimal.Zero
	pos.UnrealizedPnLPct = decimal.Zero

	l.totalClosed++
	l.totalRealized = l.totalRealized.Add(pos.RealizedPnL)
	l.totalFees = l.totalFees.Add(pos.Fees)
	switch {
	case pos.RealizedPnL.IsPositive():
		l.wins++
	case pos.RealizedPnL.IsNegative():
		l.losses++
	}

	l.recorder.RecordTrade(pos.RealizedPnL, pos.Fees)

	delete(l.open, pos.Symbol)
	l.closed = append(l.closed, pos)
	if len(l.closed) > l.cfg.MaxClosedHistory {
		l.closed = append(l.closed[:0:0], l.closed[len(l.closed)-l.cfg.MaxClosedHistory:]...)
	}
	return pos.Clone()
}

func (l *Ledger) notify(ctx context.Context, handlers []CloseHandler, closed []domain.ManagedPosition) {
	for _, c := range closed {
		for _, h := range handlers {
			h(ctx, c)
		}
	}
}

// SetStops replaces the stop-loss and take-profit levels of an open position.
// An invalid NullDecimal clears the level.
func (l *Ledger) SetStops(symbol string, stopLoss, takeProfit decimal.NullDecimal) (domain.ManagedPosition, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	pos, ok := l.open[symbol]
	if !ok {
		return domain.ManagedPosition{}, fmt.Errorf("set stops %s: %w", symbol, ports.ErrPositionNotFound)
	}
	pos.StopLoss = stopLoss
	pos.TakeProfit = takeProfit
	return pos.Clone(), nil
}

// SetTrailingStop enables a trailing stop distancePct away from the mark.
// The level only ever tightens afterwards.
func (l *Ledger) SetTrailingStop(symbol string, distancePct decimal.Decimal) (domain.ManagedPosition, error) {
	if !distancePct.IsPositive() {
		return domain.ManagedPosition{}, fmt.Errorf("set trailing stop %s: %w: distance must be positive", symbol, ports.ErrValidation)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	pos, ok := l.open[symbol]
	if !ok {
		return domain.ManagedPosition{}, fmt.Errorf("set trailing stop %s: %w", symbol, ports.ErrPositionNotFound)
	}
	pos.TrailingDistancePct = distancePct
	pos.TrailingStop = decimal.NullDecimal{}
	if pos.CurrentPrice.IsPositive() {
		pos.UpdatePrice(pos.CurrentPrice, l.now(), l.cfg.MaxPriceHistory)
	}
	return pos.Clone(), nil
}

// Get returns a copy of the open position for symbol.
func (l *Ledger) Get(symbol string) (domain.ManagedPosition, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	pos, ok := l.open[symbol]
	if !ok {
		return domain.ManagedPosition{}, false
	}
	return pos.Clone(), true
}

// Count returns the number of open positions.
func (l *Ledger) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.open)
}

// OpenPositions returns copies of all open positions.
func (l *Ledger) OpenPositions() []domain.ManagedPosition {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]domain.ManagedPosition, 0, len(l.open))
	for _, pos := range l.open {
		out = append(out, pos.Clone())
	}
	return out
}

// ClosedPositions returns copies of the retained closed log, oldest first.
func (l *Ledger) ClosedPositions() []domain.ManagedPosition {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]domain.ManagedPosition, 0, len(l.closed))
	for _, pos := range l.closed {
		out = append(out, pos.Clone())
	}
	return out
}

// Summaries returns the presentation view of every open position.
func (l *Ledger) Summaries() []domain.PositionSummary {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]domain.PositionSummary, 0, len(l.open))
	for _, pos := range l.open {
		out = append(out, pos.Summary(now))
	}
	return out
}
