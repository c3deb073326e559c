package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"futuresGuard/config"
	"futuresGuard/internal/account"
	"futuresGuard/internal/domain"
	"futuresGuard/internal/order"
	"futuresGuard/internal/ports"
	"futuresGuard/internal/position"
	"futuresGuard/internal/risk"
)

// Journal persists closed trades and risk events. Optional.
type Journal interface {
	ports.TradeJournal
	ports.RiskJournal
}

// Intent is a request to open a position.
type Intent struct {
	Symbol     string
	Side       domain.OrderSide
	Size       decimal.Decimal
	Price      decimal.Decimal // Limit price, or the reference price of a market entry
	StopLoss   decimal.NullDecimal
	TakeProfit decimal.NullDecimal
	Leverage   int           // Zero keeps the exchange setting
	Timeout    time.Duration // See order.UseDefaultTimeout
	Setup      *domain.Setup
	Strategy   string
}

// Portfolio wires the account tracker, position ledger, order manager and risk
// monitor together and drives their schedules.
type Portfolio struct {
	cfg      *config.Config
	logger   ports.Logger
	exchange ports.ExchangeClient
	journal  Journal
	metrics  ports.Metrics

	tracker *account.Tracker
	ledger  *position.Ledger
	orders  *order.Manager
	monitor *risk.Monitor

	mu      sync.Mutex
	pending map[string]Intent // resting limit entries by order id
}

// New creates a portfolio. journal and metrics may be nil.
func New(cfg *config.Config, logger ports.Logger, exchange ports.ExchangeClient, journal Journal, metrics ports.Metrics) (*Portfolio, error) {
	if cfg == nil || logger == nil || exchange == nil {
		return nil, fmt.Errorf("missing required dependencies for Portfolio")
	}
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}

	p := &Portfolio{
		cfg:      cfg,
		logger:   logger,
		exchange: exchange,
		journal:  journal,
		metrics:  metrics,
		pending:  make(map[string]Intent),
	}

	var err error
	p.tracker, err = account.NewTracker(exchange, account.Config{
		MaxSnapshots: cfg.MaxSnapshots,
		Logger:       logger,
		Metrics:      metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("account tracker: %w", err)
	}

	p.ledger, err = position.NewLedger(exchange, p.tracker, position.Config{
		MaxPositions:     cfg.MaxPositionsTracked,
		MaxClosedHistory: cfg.ClosedHistory,
		MaxPriceHistory:  cfg.PriceHistory,
		FeeRate:          cfg.TakerFeeRate,
		Logger:           logger,
		Metrics:          metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("position ledger: %w", err)
	}

	p.orders, err = order.NewManager(exchange, order.Config{
		DefaultTimeout:    cfg.OrderDefaultTimeout,
		GraceInterval:     cfg.ProtectGraceInterval,
		RetryBaseDelay:    cfg.ProtectRetryBase,
		MaxRetries:        cfg.ProtectMaxRetries,
		MaxPriceMovePct:   cfg.SetupMaxPriceMovePct,
		MomentumTolerance: cfg.SetupMomentumTolerance,
		MinLotSize:        cfg.MinLotSize,
		Logger:            logger,
		Metrics:           metrics,
		OnRetired:         p.forgetPending,
	})
	if err != nil {
		return nil, fmt.Errorf("order manager: %w", err)
	}

	var riskJournal ports.RiskJournal
	if journal != nil {
		riskJournal = journal
	}
	p.monitor, err = risk.NewMonitor(p, exchange, p, risk.Config{
		Limits:   cfg.Risk,
		Interval: cfg.RiskCheckInterval,
		Logger:   logger,
		Metrics:  metrics,
		Journal:  riskJournal,
	})
	if err != nil {
		return nil, fmt.Errorf("risk monitor: %w", err)
	}

	p.ledger.OnClose(p.onPositionClosed)
	return p, nil
}

// Start initializes the account and runs the schedulers until ctx is cancelled or a
// termination signal arrives.
func (p *Portfolio) Start(ctx context.Context) error {
	p.logger.Info(ctx, "Starting portfolio...")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			p.logger.Info(ctx, "Received shutdown signal", map[string]interface{}{"signal": sig.String()})
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := p.tracker.Initialize(ctx); err != nil {
		p.logger.Error(ctx, err, "Failed to initialize account state")
		return fmt.Errorf("failed to initialize account: %w", err)
	}
	p.logger.Info(ctx, "Account initialized", map[string]interface{}{"equity": p.tracker.State().Equity.String()})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return p.every(gctx, p.cfg.AccountRefreshInterval, func(ctx context.Context) { p.tracker.Refresh(ctx) })
	})
	g.Go(func() error {
		return p.every(gctx, p.cfg.PositionSweepInterval, p.Sweep)
	})
	g.Go(func() error {
		return p.monitor.Run(gctx)
	})

	err := g.Wait()
	p.orders.Close()
	p.logger.Info(context.Background(), "Portfolio stopped")
	return err
}

func (p *Portfolio) every(ctx context.Context, interval time.Duration, fn func(context.Context)) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			fn(ctx)
		}
	}
}

// Sweep marks positions from the exchange, applies local stop, target and trailing
// triggers, and flattens anything closed locally.
func (p *Portfolio) Sweep(ctx context.Context) {
	op := "positionSweep"
	if err := p.ledger.UpdateAll(ctx); err != nil {
		p.logger.Warn(ctx, op+": Position update failed", map[string]interface{}{"error": err.Error()})
	}
	for _, closed := range p.ledger.CheckStopTakeProfit(ctx) {
		matched := p.orders.OnProtectiveTrigger(ctx, closed.Symbol, closed.CloseReason)
		// The exchange leg may already have flattened the position; a flat close is a no-op.
		if _, err := p.exchange.ClosePosition(ctx, closed.Symbol); err != nil {
			p.logger.Error(ctx, err, op+": Failed to flatten locally triggered position", map[string]interface{}{
				"symbol": closed.Symbol,
				"reason": closed.CloseReason,
			})
			continue
		}
		p.logger.Info(ctx, op+": Locally triggered position flattened", map[string]interface{}{
			"symbol":      closed.Symbol,
			"reason":      closed.CloseReason,
			"exchangeLeg": matched,
		})
	}
}

func (p *Portfolio) onPositionClosed(ctx context.Context, closed domain.ManagedPosition) {
	p.monitor.RecordTradeResult(closed.RealizedPnL)
	if closed.CloseReason == domain.CloseReasonExternalClose {
		// Flattened outside our knowledge; drop whatever protection is left.
		p.orders.OnProtectiveTrigger(ctx, closed.Symbol, closed.CloseReason)
	}
	if p.journal == nil {
		return
	}
	if err := p.journal.RecordClosedPosition(ctx, &closed); err != nil {
		p.logger.Warn(ctx, "positionClosed: Failed to journal closed position", map[string]interface{}{
			"symbol": closed.Symbol,
			"error":  err.Error(),
		})
	}
}

// RefreshState re-queries the account. It is the risk monitor's refresh hook.
func (p *Portfolio) RefreshState(ctx context.Context) error {
	if !p.tracker.Refresh(ctx) {
		return fmt.Errorf("refreshState: %w", ports.ErrConnectivity)
	}
	return nil
}

// RiskSnapshot is the read-only view the risk monitor evaluates.
func (p *Portfolio) RiskSnapshot() risk.PortfolioState {
	st := p.tracker.State()
	peak := p.tracker.Peak()
	open := p.ledger.OpenPositions()
	out := risk.PortfolioState{
		Equity:      st.Equity,
		Available:   st.AvailableBalance,
		MarginUsed:  st.MarginUsed,
		DrawdownPct: p.tracker.Drawdown().Mul(decimal.NewFromInt(100)),
		PeakEquity:  peak.Equity,
		Positions:   make([]risk.PositionExposure, 0, len(open)),
	}
	for _, pos := range open {
		mark := pos.CurrentPrice
		if !mark.IsPositive() {
			mark = pos.EntryPrice
		}
		out.Positions = append(out.Positions, risk.PositionExposure{
			Symbol:        pos.Symbol,
			Side:          pos.Side,
			Size:          pos.Size,
			EntryPrice:    pos.EntryPrice,
			MarkPrice:     mark,
			UnrealizedPnL: pos.UnrealizedPnL,
			Leverage:      pos.Leverage,
			EntryTime:     pos.EntryTime,
		})
	}
	return out
}

// admit runs the shared pre-trade checks for an intent.
func (p *Portfolio) admit(in Intent, needPrice bool) (domain.OrderResult, error) {
	res := domain.OrderResult{Symbol: in.Symbol, Side: in.Side, Status: domain.OrderRejected}
	switch {
	case in.Symbol == "":
		res.Reason = "symbol is required"
	case !in.Side.Valid():
		res.Reason = fmt.Sprintf("invalid side %q", in.Side)
	case !in.Size.IsPositive():
		res.Reason = "size must be positive"
	case needPrice && !in.Price.IsPositive():
		res.Reason = "price must be positive"
	case in.Leverage < 0:
		res.Reason = "leverage cannot be negative"
	}
	if res.Reason != "" {
		return res, fmt.Errorf("%w: %s", ports.ErrValidation, res.Reason)
	}

	if ok, reason := p.monitor.ValidateOrder(in.Symbol, in.Side, in.Size, in.Price); !ok {
		res.Reason = reason
		if p.monitor.KillSwitchActive() {
			return res, fmt.Errorf("%w: %s", ports.ErrKillSwitch, reason)
		}
		return res, fmt.Errorf("%w: %s", ports.ErrValidation, reason)
	}

	if _, held := p.ledger.Get(in.Symbol); held {
		res.Reason = "position already open for " + in.Symbol
		return res, fmt.Errorf("%w: %w", ports.ErrDuplicateSymbol, ports.ErrValidation)
	}

	lev := in.Leverage
	if lev <= 0 {
		lev = 1
	}
	margin := in.Size.Mul(in.Price).Div(decimal.NewFromInt(int64(lev)))
	if ok, reason := p.tracker.CanTrade(margin); !ok {
		res.Reason = reason
		return res, fmt.Errorf("%w: %s", ports.ErrInsufficientFunds, reason)
	}
	return res, nil
}

func (p *Portfolio) applyLeverage(ctx context.Context, in Intent) error {
	if in.Leverage <= 0 {
		return nil
	}
	return p.orders.SetLeverage(ctx, in.Symbol, in.Leverage)
}

// SubmitMarketOrder validates and places a market entry, attaching protection when a
// stop or target is given. A filled entry is opened in the ledger.
func (p *Portfolio) SubmitMarketOrder(ctx context.Context, in Intent) (domain.OrderResult, error) {
	op := "submitMarketOrder"
	if res, err := p.admit(in, true); err != nil {
		p.logger.Warn(ctx, op+": Order rejected", map[string]interface{}{"symbol": in.Symbol, "reason": res.Reason})
		return res, err
	}
	if err := p.applyLeverage(ctx, in); err != nil {
		return domain.OrderResult{Symbol: in.Symbol, Side: in.Side, Status: domain.OrderRejected, Reason: err.Error()}, err
	}

	res, err := p.orders.PlaceMarketOrder(ctx, order.MarketOrderRequest{
		Symbol:     in.Symbol,
		Side:       in.Side,
		Size:       in.Size,
		StopLoss:   in.StopLoss,
		TakeProfit: in.TakeProfit,
		Timeout:    in.Timeout,
		Setup:      in.Setup,
	})
	if err != nil || !res.Success {
		return res, err
	}
	filled := res.FilledSize
	if !filled.IsPositive() {
		if res.Status != domain.OrderFilled {
			return res, nil
		}
		filled = in.Size
	}

	entry := res.AvgPrice
	if !entry.IsPositive() {
		entry = in.Price
	}
	p.openEntry(ctx, op, in, domain.SideForOrder(in.Side), entry, filled)
	return res, nil
}

// SubmitLimitOrder validates and places a resting limit entry. The position is opened
// and protected when OnOrderFilled reports the fill.
func (p *Portfolio) SubmitLimitOrder(ctx context.Context, in Intent) (domain.OrderResult, error) {
	op := "submitLimitOrder"
	if res, err := p.admit(in, true); err != nil {
		p.logger.Warn(ctx, op+": Order rejected", map[string]interface{}{"symbol": in.Symbol, "reason": res.Reason})
		return res, err
	}
	if err := p.applyLeverage(ctx, in); err != nil {
		return domain.OrderResult{Symbol: in.Symbol, Side: in.Side, Status: domain.OrderRejected, Reason: err.Error()}, err
	}

	res, err := p.orders.PlaceLimitOrder(ctx, order.LimitOrderRequest{
		Symbol:  in.Symbol,
		Side:    in.Side,
		Size:    in.Size,
		Price:   in.Price,
		Timeout: in.Timeout,
		Setup:   in.Setup,
	})
	if err != nil || !res.Success {
		return res, err
	}
	if res.Status == domain.OrderFilled {
		p.openEntry(ctx, op, in, domain.SideForOrder(in.Side), in.Price, in.Size)
		if in.StopLoss.Valid || in.TakeProfit.Valid {
			if _, err := p.orders.Protect(ctx, in.Symbol, domain.SideForOrder(in.Side), in.Size, in.StopLoss, in.TakeProfit); err != nil {
				p.logger.Warn(ctx, op+": Protection not attached", map[string]interface{}{"symbol": in.Symbol, "error": err.Error()})
			}
		}
		return res, nil
	}

	p.mu.Lock()
	p.pending[res.OrderID] = in
	p.mu.Unlock()
	if _, active := p.orders.Order(res.OrderID); !active {
		// Retired before the intent was recorded.
		p.forgetPending(domain.Order{ID: res.OrderID})
	}
	return res, nil
}

func (p *Portfolio) openEntry(ctx context.Context, op string, in Intent, side domain.PositionSide, entry, size decimal.Decimal) {
	_, err := p.ledger.Open(ctx, position.OpenRequest{
		Symbol:     in.Symbol,
		Side:       side,
		EntryPrice: entry,
		Size:       size,
		StopLoss:   in.StopLoss,
		TakeProfit: in.TakeProfit,
		Leverage:   in.Leverage,
		Strategy:   in.Strategy,
	})
	if err != nil {
		// The exchange now holds a position the ledger does not track.
		p.logger.Error(ctx, err, op+": Filled entry not tracked by ledger", map[string]interface{}{"symbol": in.Symbol})
	}
}

// OnOrderFilled routes an exchange fill notification. A protective leg closes its
// position in the ledger; a resting entry is opened and protected.
func (p *Portfolio) OnOrderFilled(ctx context.Context, orderID string, fillPrice decimal.Decimal) error {
	op := "onOrderFilled"
	o, ok := p.orders.OnFill(ctx, orderID)
	if !ok {
		return fmt.Errorf("%s %s: %w", op, orderID, ports.ErrOrderNotFound)
	}

	if o.Kind.IsProtective() {
		reason := domain.CloseReasonTakeProfit
		if o.Kind == domain.KindStopMarket {
			reason = domain.CloseReasonStopLoss
		}
		if _, err := p.ledger.Close(ctx, o.Symbol, fillPrice, reason); err != nil && !errors.Is(err, ports.ErrPositionNotFound) {
			return fmt.Errorf("%s %s: %w", op, orderID, err)
		}
		return nil
	}

	p.mu.Lock()
	in, ok := p.pending[orderID]
	delete(p.pending, orderID)
	p.mu.Unlock()
	if !ok {
		in = Intent{Symbol: o.Symbol, Side: o.Side, Size: o.Size, Price: o.Price}
	}
	entry := fillPrice
	if !entry.IsPositive() {
		entry = o.Price
	}
	side := domain.SideForOrder(o.Side)
	p.openEntry(ctx, op, in, side, entry, o.Size)

	if in.StopLoss.Valid || in.TakeProfit.Valid {
		if _, err := p.orders.Protect(ctx, o.Symbol, side, o.Size, in.StopLoss, in.TakeProfit); err != nil {
			return fmt.Errorf("%s %s: %w", op, orderID, err)
		}
	}
	return nil
}

// CancelOrder cancels a tracked order. Its pending intent is dropped by forgetPending.
func (p *Portfolio) CancelOrder(ctx context.Context, symbol, orderID string) error {
	return p.orders.CancelOrder(ctx, symbol, orderID)
}

// forgetPending drops the intent of a resting entry that expired or was cancelled.
func (p *Portfolio) forgetPending(o domain.Order) {
	p.mu.Lock()
	delete(p.pending, o.ID)
	p.mu.Unlock()
}

// ClosePosition cancels protection, flattens on the exchange and closes the ledger record.
func (p *Portfolio) ClosePosition(ctx context.Context, symbol string) (domain.ManagedPosition, error) {
	return p.flatten(ctx, symbol, domain.CloseReasonManual)
}

func (p *Portfolio) flatten(ctx context.Context, symbol string, reason domain.CloseReason) (domain.ManagedPosition, error) {
	op := "closePosition"
	emergency := reason == domain.CloseReasonEmergency
	pos, ok := p.ledger.Get(symbol)
	if !ok && !emergency {
		return domain.ManagedPosition{}, fmt.Errorf("%s %s: %w", op, symbol, ports.ErrPositionNotFound)
	}
	if err := p.orders.CancelProtection(ctx, symbol); err != nil {
		p.logger.Warn(ctx, op+": Protection not fully cancelled", map[string]interface{}{"symbol": symbol, "error": err.Error()})
	}
	resp, err := p.exchange.ClosePosition(ctx, symbol)
	if err != nil {
		p.logger.Error(ctx, err, op+": Exchange close failed", map[string]interface{}{"symbol": symbol})
		return pos, fmt.Errorf("%s %s: %w", op, symbol, err)
	}
	exit := pos.CurrentPrice
	if resp != nil && resp.AvgPrice.IsPositive() {
		exit = resp.AvgPrice
	}
	closed, err := p.ledger.Close(ctx, symbol, exit, reason)
	if err != nil {
		// Closed concurrently by a sweep or a fill. The exchange is flat, which is
		// all an emergency flatten needs.
		if emergency && errors.Is(err, ports.ErrPositionNotFound) {
			p.logger.Info(ctx, op+": Position already closed locally", map[string]interface{}{"symbol": symbol})
			return pos, nil
		}
		return pos, fmt.Errorf("%s %s: %w", op, symbol, err)
	}
	return closed, nil
}

// SetStopLoss moves the stop of an open position and replaces its protection.
func (p *Portfolio) SetStopLoss(ctx context.Context, symbol string, price decimal.Decimal) (domain.ManagedPosition, error) {
	pos, ok := p.ledger.Get(symbol)
	if !ok {
		return domain.ManagedPosition{}, fmt.Errorf("setStopLoss %s: %w", symbol, ports.ErrPositionNotFound)
	}
	return p.SetStops(ctx, symbol, domain.Price(price), pos.TakeProfit)
}

// SetTakeProfit moves the target of an open position and replaces its protection.
func (p *Portfolio) SetTakeProfit(ctx context.Context, symbol string, price decimal.Decimal) (domain.ManagedPosition, error) {
	pos, ok := p.ledger.Get(symbol)
	if !ok {
		return domain.ManagedPosition{}, fmt.Errorf("setTakeProfit %s: %w", symbol, ports.ErrPositionNotFound)
	}
	return p.SetStops(ctx, symbol, pos.StopLoss, domain.Price(price))
}

// SetStops replaces both levels. An invalid NullDecimal clears the level.
func (p *Portfolio) SetStops(ctx context.Context, symbol string, stopLoss, takeProfit decimal.NullDecimal) (domain.ManagedPosition, error) {
	op := "setStops"
	pos, ok := p.ledger.Get(symbol)
	if !ok {
		return domain.ManagedPosition{}, fmt.Errorf("%s %s: %w", op, symbol, ports.ErrPositionNotFound)
	}
	if err := validateStops(pos, stopLoss, takeProfit); err != nil {
		return pos, fmt.Errorf("%s %s: %w", op, symbol, err)
	}
	updated, err := p.ledger.SetStops(symbol, stopLoss, takeProfit)
	if err != nil {
		return pos, err
	}
	if _, err := p.orders.ModifyStops(ctx, symbol, pos.Side, pos.Size, stopLoss, takeProfit); err != nil {
		return updated, fmt.Errorf("%s %s: %w", op, symbol, err)
	}
	return updated, nil
}

func validateStops(pos domain.ManagedPosition, stopLoss, takeProfit decimal.NullDecimal) error {
	long := pos.Side == domain.Long
	if stopLoss.Valid {
		if !stopLoss.Decimal.IsPositive() {
			return fmt.Errorf("%w: stop loss must be positive", ports.ErrValidation)
		}
		if (long && stopLoss.Decimal.GreaterThanOrEqual(pos.EntryPrice)) || (!long && stopLoss.Decimal.LessThanOrEqual(pos.EntryPrice)) {
			return fmt.Errorf("%w: stop loss %s is on the wrong side of entry %s", ports.ErrValidation, stopLoss.Decimal, pos.EntryPrice)
		}
	}
	if takeProfit.Valid {
		if !takeProfit.Decimal.IsPositive() {
			return fmt.Errorf("%w: take profit must be positive", ports.ErrValidation)
		}
		if (long && takeProfit.Decimal.LessThanOrEqual(pos.EntryPrice)) || (!long && takeProfit.Decimal.GreaterThanOrEqual(pos.EntryPrice)) {
			return fmt.Errorf("%w: take profit %s is on the wrong side of entry %s", ports.ErrValidation, takeProfit.Decimal, pos.EntryPrice)
		}
	}
	return nil
}

// SetTrailingStop enables a local trailing stop distancePct away from the mark.
func (p *Portfolio) SetTrailingStop(symbol string, distancePct decimal.Decimal) (domain.ManagedPosition, error) {
	return p.ledger.SetTrailingStop(symbol, distancePct)
}

// EmergencyShutdown cancels every order and flattens every position, tracked or not.
// It is invoked by the kill switch. Failures are joined; nothing is retried.
func (p *Portfolio) EmergencyShutdown(ctx context.Context, reason string) error {
	op := "emergencyShutdown"
	p.logger.Error(ctx, ports.ErrKillSwitch, op+": Flattening account", map[string]interface{}{"reason": reason})

	var (
		mu   sync.Mutex
		errs []error
	)
	collect := func(err error) {
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
	}

	if err := p.orders.CancelAll(ctx); err != nil {
		collect(err)
	}
	p.mu.Lock()
	p.pending = make(map[string]Intent)
	p.mu.Unlock()

	tracked := make(map[string]bool)
	var g errgroup.Group
	for _, pos := range p.ledger.OpenPositions() {
		symbol := pos.Symbol
		tracked[symbol] = true
		g.Go(func() error {
			if _, err := p.flatten(ctx, symbol, domain.CloseReasonEmergency); err != nil {
				collect(err)
			}
			return nil
		})
	}
	_ = g.Wait()

	// Positions the exchange holds that the ledger never saw.
	exchangePositions, err := p.exchange.GetPositions(ctx)
	if err != nil {
		collect(fmt.Errorf("%s: list exchange positions: %w", op, err))
	}
	for _, info := range exchangePositions {
		if tracked[info.Symbol] || info.Size.IsZero() {
			continue
		}
		symbol := info.Symbol
		g.Go(func() error {
			if _, err := p.exchange.ClosePosition(ctx, symbol); err != nil {
				collect(fmt.Errorf("%s: close untracked %s: %w", op, symbol, err))
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := errors.Join(errs...); err != nil {
		p.logger.Error(ctx, err, op+": Emergency shutdown incomplete", map[string]interface{}{"failures": len(errs)})
		return err
	}
	p.logger.Info(ctx, op+": Account flattened", map[string]interface{}{"positions": len(tracked)})
	return nil
}

// --- Summaries ---

// AccountSummary combines the tracker's risk and performance views.
type AccountSummary struct {
	Account     domain.AccountSnapshot     `json:"account"`
	Risk        account.RiskMetrics        `json:"risk"`
	Performance account.PerformanceMetrics `json:"performance"`
}

func (p *Portfolio) AccountSummary() AccountSummary {
	return AccountSummary{
		Account:     p.tracker.State(),
		Risk:        p.tracker.RiskMetrics(),
		Performance: p.tracker.PerformanceMetrics(),
	}
}

func (p *Portfolio) PositionSummaries() []domain.PositionSummary {
	return p.ledger.Summaries()
}

// Position returns a copy of the open position for symbol.
func (p *Portfolio) Position(symbol string) (domain.ManagedPosition, bool) {
	return p.ledger.Get(symbol)
}

func (p *Portfolio) PositionStats() position.Stats {
	return p.ledger.Stats()
}

func (p *Portfolio) ClosedPositions() []domain.ManagedPosition {
	return p.ledger.ClosedPositions()
}

func (p *Portfolio) RiskSummary() risk.Summary {
	return p.monitor.Summary()
}

func (p *Portfolio) ExecutionSummary() order.ExecutionSummary {
	return p.orders.ExecutionSummary()
}

func (p *Portfolio) ActiveOrders() []domain.Order {
	return p.orders.ActiveOrders()
}

// --- Risk controls ---

func (p *Portfolio) ActiveRisks() []domain.RiskEvent {
	return p.monitor.ActiveRisks()
}

// RecentRiskEvents returns up to limit events from the in-memory history, newest first.
func (p *Portfolio) RecentRiskEvents(limit int) []domain.RiskEvent {
	return p.monitor.RecentEvents(limit)
}

func (p *Portfolio) AcknowledgeRisk(ctx context.Context, eventID string) error {
	return p.monitor.Acknowledge(ctx, eventID)
}

func (p *Portfolio) ResolveRisk(ctx context.Context, eventID string) error {
	return p.monitor.Resolve(ctx, eventID)
}

func (p *Portfolio) ActivateKillSwitch(ctx context.Context, reason string) error {
	return p.monitor.ActivateKillSwitch(ctx, reason)
}

func (p *Portfolio) DeactivateKillSwitch(ctx context.Context, reason string) {
	p.monitor.DeactivateKillSwitch(ctx, reason)
}

func (p *Portfolio) PauseTrading(ctx context.Context, reason string) {
	p.monitor.PauseTrading(ctx, reason)
}

func (p *Portfolio) ResumeTrading(ctx context.Context, reason string) bool {
	return p.monitor.ResumeTrading(ctx, reason)
}

// EvaluateRisk runs one risk cycle outside the schedule.
func (p *Portfolio) EvaluateRisk(ctx context.Context) {
	p.monitor.Evaluate(ctx)
}
