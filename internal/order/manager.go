package order

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"futuresGuard/internal/domain"
	"futuresGuard/internal/ports"
)

// UseDefaultTimeout arms the expiry timer with Config.DefaultTimeout.
const UseDefaultTimeout time.Duration = -1

const (
	defaultOrderTimeout      = 30 * time.Second
	defaultGraceInterval     = 2 * time.Second
	defaultRetryBaseDelay    = time.Second
	defaultMaxRetries        = 3
	defaultCancelCallTimeout = 10 * time.Second
)

var (
	defaultSizeTolerance     = decimal.New(1, -8)
	defaultMaxPriceMovePct   = decimal.NewFromFloat(0.5)
	defaultMomentumTolerance = decimal.NewFromFloat(0.1)
	defaultMinLotSize        = decimal.New(1, -3)
)

// Exchange is the slice of the exchange client the manager drives.
type Exchange interface {
	PlaceOrder(ctx context.Context, req ports.OrderRequest) (*ports.OrderResponse, error)
	PlaceStopMarketOrder(ctx context.Context, symbol string, side domain.OrderSide, size, triggerPrice decimal.Decimal, reduceOnly bool) (*ports.OrderResponse, error)
	PlaceTakeProfitOrder(ctx context.Context, symbol string, side domain.OrderSide, size, triggerPrice decimal.Decimal, reduceOnly bool) (*ports.OrderResponse, error)
	CancelOrder(ctx context.Context, symbol string, orderID string) (*ports.OrderResponse, error)
	GetPositions(ctx context.Context) ([]ports.PositionInfo, error)
	SetLeverage(ctx context.Context, symbol string, leverage int) error
}

// Config holds manager settings. Zero values fall back to defaults.
type Config struct {
	DefaultTimeout    time.Duration
	GraceInterval     time.Duration // Wait between entry fill and position confirmation
	RetryBaseDelay    time.Duration // First protective retry delay; doubles per attempt
	MaxRetries        int
	SizeTolerance     decimal.Decimal // Max |reported - expected| size to confirm a position
	MaxPriceMovePct   decimal.Decimal
	MomentumTolerance decimal.Decimal
	MinLotSize        decimal.Decimal
	Logger            ports.Logger
	Metrics           ports.Metrics
	Now               func() time.Time

	// OnRetired, if set, is called outside the lock for every order that leaves the
	// registry by expiry or cancellation through CancelOrder.
	OnRetired func(o domain.Order)
}

// MarketOrderRequest describes a market entry with optional protection.
type MarketOrderRequest struct {
	Symbol     string
	Side       domain.OrderSide
	Size       decimal.Decimal
	StopLoss   decimal.NullDecimal
	TakeProfit decimal.NullDecimal
	Timeout    time.Duration // Zero disables expiry, UseDefaultTimeout arms the default
	Setup      *domain.Setup
}

// LimitOrderRequest describes a resting limit entry.
type LimitOrderRequest struct {
	Symbol  string
	Side    domain.OrderSide
	Size    decimal.Decimal
	Price   decimal.Decimal
	Timeout time.Duration
	Setup   *domain.Setup
}

// ExecutionSummary reports registry sizes and final-status counts.
type ExecutionSummary struct {
	ActiveOrders       int `json:"active_orders"`
	OCOPairs           int `json:"oco_pairs"`
	PendingProtections int `json:"pending_protections"`
	Placed             int `json:"placed"`
	Filled             int `json:"filled"`
	Cancelled          int `json:"cancelled"`
	Expired            int `json:"expired"`
	Rejected           int `json:"rejected"`
}

// Manager tracks active orders, their expiry timers, OCO pairs and pending
// protective retries under a single lock. Exchange calls never run under it.
type Manager struct {
	exchange Exchange
	logger   ports.Logger
	metrics  ports.Metrics
	cfg      Config
	now      func() time.Time

	// Base context for timer and retry callbacks. Cancelled by Close.
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	orders  map[string]*domain.Order
	timers  map[string]*time.Timer
	pairs   map[string]*domain.OCOPair
	retries map[string]*retryState // by symbol
	counts  map[domain.OrderStatus]int
	placed  int
	closed  bool
}

// NewManager creates an order lifecycle manager.
func NewManager(exchange Exchange, cfg Config) (*Manager, error) {
	if exchange == nil || cfg.Logger == nil {
		return nil, fmt.Errorf("order manager requires an exchange and a logger")
	}
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = defaultOrderTimeout
	}
	if cfg.GraceInterval <= 0 {
		cfg.GraceInterval = defaultGraceInterval
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = defaultRetryBaseDelay
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if !cfg.SizeTolerance.IsPositive() {
		cfg.SizeTolerance = defaultSizeTolerance
	}
	if !cfg.MaxPriceMovePct.IsPositive() {
		cfg.MaxPriceMovePct = defaultMaxPriceMovePct
	}
	if cfg.MomentumTolerance.IsNegative() || cfg.MomentumTolerance.IsZero() {
		cfg.MomentumTolerance = defaultMomentumTolerance
	}
	if !cfg.MinLotSize.IsPositive() {
		cfg.MinLotSize = defaultMinLotSize
	}
	if cfg.Metrics == nil {
		cfg.Metrics = ports.NopMetrics{}
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		exchange: exchange,
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
		cfg:      cfg,
		now:      cfg.Now,
		ctx:      ctx,
		cancel:   cancel,
		orders:   make(map[string]*domain.Order),
		timers:   make(map[string]*time.Timer),
		pairs:    make(map[string]*domain.OCOPair),
		retries:  make(map[string]*retryState),
		counts:   make(map[domain.OrderStatus]int),
	}, nil
}

// PlaceMarketOrder submits a market entry. When a stop or target is given it waits
// the grace interval, confirms the position and attaches protection, retrying in the
// background if that fails. The entry is never rolled back.
//
// Exchange-side rejections come back as an unsuccessful result with a nil error.
// Connectivity and parameter failures return both a result and an error.
func (m *Manager) PlaceMarketOrder(ctx context.Context, req MarketOrderRequest) (domain.OrderResult, error) {
	op := "placeMarketOrder"
	result := domain.OrderResult{Symbol: req.Symbol, Side: req.Side, Kind: domain.KindMarket, Status: domain.OrderRejected}

	if err := validateEntry(req.Symbol, req.Side, req.Size); err != nil {
		result.Reason = err.Error()
		return result, fmt.Errorf("%s: %w", op, err)
	}
	if err := validateProtection(req.Side, req.StopLoss, req.TakeProfit); err != nil {
		result.Reason = err.Error()
		return result, fmt.Errorf("%s: %w", op, err)
	}

	resp, err := m.submit(ctx, ports.OrderRequest{
		Symbol:        req.Symbol,
		Side:          req.Side,
		Kind:          domain.KindMarket,
		Size:          req.Size,
		ClientOrderID: uuid.NewString(),
	}, &result)
	if err != nil || !result.Success {
		return result, err
	}

	o := m.newOrder(resp, req.Symbol, req.Side, domain.KindMarket, req.Size, decimal.Zero, req.Setup)
	if resp.Status == ports.ExchangeStatusFilled {
		m.recordFinal(domain.OrderFilled)
		result.Status = domain.OrderFilled
	} else {
		m.track(o, req.Timeout)
		result.Status = domain.OrderActive
	}

	m.logger.Info(ctx, op+": Entry order placed", map[string]interface{}{
		"symbol":   req.Symbol,
		"side":     req.Side,
		"orderID":  resp.OrderID,
		"avgPrice": resp.AvgPrice.String(),
		"filled":   resp.ExecutedQty.String(),
	})

	if !req.StopLoss.Valid && !req.TakeProfit.Valid {
		return result, nil
	}

	pr := &protectRequest{
		symbol:     req.Symbol,
		side:       domain.SideForOrder(req.Side),
		size:       req.Size,
		stopLoss:   req.StopLoss,
		takeProfit: req.TakeProfit,
	}
	if !m.waitGrace(ctx) {
		m.logger.Warn(ctx, op+": Context done during grace interval, protection deferred to retry", map[string]interface{}{"symbol": req.Symbol})
		m.scheduleRetry(pr)
		return result, nil
	}

	pairID, _, err := m.attemptProtect(ctx, pr)
	if errors.Is(err, errLegResolved) {
		return result, nil
	}
	if err != nil {
		m.logger.Warn(ctx, op+": Protection not attached, scheduling retry", map[string]interface{}{
			"symbol": req.Symbol,
			"error":  err.Error(),
		})
		m.scheduleRetry(pr)
		return result, nil
	}
	result.Protected = true
	result.OCOPairID = pairID
	return result, nil
}

// PlaceLimitOrder submits a resting limit entry. Protection is attached later through Protect.
func (m *Manager) PlaceLimitOrder(ctx context.Context, req LimitOrderRequest) (domain.OrderResult, error) {
	op := "placeLimitOrder"
	result := domain.OrderResult{Symbol: req.Symbol, Side: req.Side, Kind: domain.KindLimit, Status: domain.OrderRejected}

	if err := validateEntry(req.Symbol, req.Side, req.Size); err != nil {
		result.Reason = err.Error()
		return result, fmt.Errorf("%s: %w", op, err)
	}
	if !req.Price.IsPositive() {
		result.Reason = "limit price must be positive"
		return result, fmt.Errorf("%s: %w: %s", op, ports.ErrValidation, result.Reason)
	}

	resp, err := m.submit(ctx, ports.OrderRequest{
		Symbol:        req.Symbol,
		Side:          req.Side,
		Kind:          domain.KindLimit,
		Size:          req.Size,
		Price:         req.Price,
		ClientOrderID: uuid.NewString(),
	}, &result)
	if err != nil || !result.Success {
		return result, err
	}

	o := m.newOrder(resp, req.Symbol, req.Side, domain.KindLimit, req.Size, req.Price, req.Setup)
	if resp.Status == ports.ExchangeStatusFilled {
		m.recordFinal(domain.OrderFilled)
		result.Status = domain.OrderFilled
	} else {
		m.track(o, req.Timeout)
		result.Status = domain.OrderActive
	}
	m.logger.Info(ctx, op+": Limit order placed", map[string]interface{}{
		"symbol":  req.Symbol,
		"side":    req.Side,
		"orderID": resp.OrderID,
		"price":   req.Price.String(),
	})
	return result, nil
}

// submit sends the order and fills in result. A non-nil error is only returned for
// connectivity failures; exchange rejections leave result.Success false.
func (m *Manager) submit(ctx context.Context, req ports.OrderRequest, result *domain.OrderResult) (*ports.OrderResponse, error) {
	op := "submitOrder"
	result.ClientOrderID = req.ClientOrderID
	kind := string(req.Kind)

	resp, err := m.exchange.PlaceOrder(ctx, req)
	if err != nil {
		result.Reason = err.Error()
		m.recordFinal(domain.OrderRejected)
		m.metrics.IncOrder(kind, "rejected")
		if ports.IsConnectivity(err) {
			m.logger.Error(ctx, err, op+": Exchange unreachable", map[string]interface{}{"symbol": req.Symbol})
			return nil, fmt.Errorf("%s %s: %w: %w", op, req.Symbol, ports.ErrConnectivity, err)
		}
		m.logger.Error(ctx, err, op+": Exchange rejected order", map[string]interface{}{"symbol": req.Symbol, "side": req.Side})
		return nil, nil
	}
	if resp.Rejected() {
		result.OrderID = resp.OrderID
		result.Reason = fmt.Sprintf("exchange reported status %s", resp.Status)
		m.recordFinal(domain.OrderRejected)
		m.metrics.IncOrder(kind, "rejected")
		m.logger.Error(ctx, ports.ErrOrderPlacementFailed, op+": Order not accepted", map[string]interface{}{
			"symbol":  req.Symbol,
			"orderID": resp.OrderID,
			"status":  resp.Status,
		})
		return resp, nil
	}

	m.mu.Lock()
	m.placed++
	m.mu.Unlock()
	m.metrics.IncOrder(kind, "placed")

	result.Success = true
	result.OrderID = resp.OrderID
	result.AvgPrice = resp.AvgPrice
	result.FilledSize = resp.ExecutedQty
	result.Reason = ""
	return resp, nil
}

func (m *Manager) newOrder(resp *ports.OrderResponse, symbol string, side domain.OrderSide, kind domain.OrderKind, size, price decimal.Decimal, setup *domain.Setup) *domain.Order {
	var s *domain.Setup
	if setup != nil {
		cp := *setup
		s = &cp
	}
	return &domain.Order{
		ID:        resp.OrderID,
		ClientID:  resp.ClientOrderID,
		Symbol:    symbol,
		Side:      side,
		Kind:      kind,
		Size:      size,
		Price:     price,
		CreatedAt: m.now(),
		Setup:     s,
		Status:    domain.OrderActive,
	}
}

// expiryFor resolves the requested timeout into a timer duration; zero means none.
func (m *Manager) expiryFor(timeout time.Duration) time.Duration {
	switch {
	case timeout == 0:
		return 0
	case timeout < 0:
		return m.cfg.DefaultTimeout
	}
	return timeout
}

// track registers o as active and arms its expiry timer.
func (m *Manager) track(o *domain.Order, timeout time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[o.ID] = o
	if d := m.expiryFor(timeout); d > 0 && !m.closed {
		o.ExpiresAt = o.CreatedAt.Add(d)
		id := o.ID
		m.timers[id] = time.AfterFunc(d, func() { m.expire(id) })
	}
}

// expire claims the order under the lock and cancels it on the exchange outside it.
// The order is purged even if the cancel fails.
func (m *Manager) expire(orderID string) {
	op := "expireOrder"
	m.mu.Lock()
	o, ok := m.orders[orderID]
	if !ok {
		m.mu.Unlock()
		return
	}
	delete(m.orders, orderID)
	delete(m.timers, orderID)
	o.Status = domain.OrderExpired
	o.Setup = nil
	m.counts[domain.OrderExpired]++
	m.mu.Unlock()

	m.metrics.IncOrder(string(o.Kind), "expired")
	m.retired(*o)
	ctx, cancel := context.WithTimeout(m.ctx, defaultCancelCallTimeout)
	defer cancel()
	if _, err := m.exchange.CancelOrder(ctx, o.Symbol, orderID); err != nil && !errors.Is(err, ports.ErrOrderNotFound) {
		m.logger.Warn(ctx, op+": Cancel on expiry failed, order purged locally", map[string]interface{}{
			"symbol":  o.Symbol,
			"orderID": orderID,
			"error":   err.Error(),
		})
		return
	}
	m.logger.Info(ctx, op+": Order expired and cancelled", map[string]interface{}{"symbol": o.Symbol, "orderID": orderID})
}

// stopTimerLocked disarms the expiry timer of orderID, if any. Caller holds m.mu.
func (m *Manager) stopTimerLocked(orderID string) {
	if t, ok := m.timers[orderID]; ok {
		t.Stop()
		delete(m.timers, orderID)
	}
}

// removeLocked drops orderID from the registry with the given final status.
func (m *Manager) removeLocked(orderID string, status domain.OrderStatus) (*domain.Order, bool) {
	o, ok := m.orders[orderID]
	if !ok {
		return nil, false
	}
	m.stopTimerLocked(orderID)
	delete(m.orders, orderID)
	o.Status = status
	m.counts[status]++
	return o, true
}

func (m *Manager) retired(o domain.Order) {
	if m.cfg.OnRetired != nil {
		m.cfg.OnRetired(o)
	}
}

func (m *Manager) recordFinal(status domain.OrderStatus) {
	m.mu.Lock()
	m.counts[status]++
	m.mu.Unlock()
}

// OnFill handles a fill notification. The order leaves the registry, its timer is
// stopped and, for an OCO leg, the pair is removed and the sibling cancelled.
// A repeated or unknown id is a no-op.
func (m *Manager) OnFill(ctx context.Context, orderID string) (domain.Order, bool) {
	op := "onFill"
	m.mu.Lock()
	o, ok := m.removeLocked(orderID, domain.OrderFilled)
	if !ok {
		m.mu.Unlock()
		return domain.Order{}, false
	}
	filled := *o
	var sibling *domain.Order
	if pair, exists := m.pairs[o.OCOPairID]; exists {
		delete(m.pairs, pair.ID)
		if sibID, isLeg := pair.Sibling(orderID); isLeg {
			sibling, _ = m.removeLocked(sibID, domain.OrderCancelled)
		}
	}
	m.mu.Unlock()

	m.metrics.IncOrder(string(filled.Kind), "filled")
	m.logger.Info(ctx, op+": Order filled", map[string]interface{}{"symbol": filled.Symbol, "orderID": orderID, "kind": filled.Kind})
	if sibling != nil {
		if err := m.cancelQuiet(ctx, sibling.Symbol, sibling.ID, string(sibling.Kind)); err != nil {
			m.logger.Error(ctx, err, op+": OCO sibling may still be live on the exchange", map[string]interface{}{
				"symbol":  sibling.Symbol,
				"orderID": sibling.ID,
				"type":    sibling.Kind,
			})
		}
	}
	return filled, true
}

// CancelOrder cancels orderID on the exchange and purges it locally. An OCO pair
// containing it is dissolved; the sibling stays active.
func (m *Manager) CancelOrder(ctx context.Context, symbol, orderID string) error {
	op := "cancelOrder"
	_, err := m.exchange.CancelOrder(ctx, symbol, orderID)
	notFound := errors.Is(err, ports.ErrOrderNotFound)
	if err != nil && !notFound {
		m.logger.Error(ctx, err, op+": Failed to cancel order", map[string]interface{}{"symbol": symbol, "orderID": orderID})
		if ports.IsConnectivity(err) {
			return fmt.Errorf("%s %s: %w: %w", op, orderID, ports.ErrConnectivity, err)
		}
		return fmt.Errorf("%s %s: %w", op, orderID, err)
	}

	m.mu.Lock()
	o, ok := m.removeLocked(orderID, domain.OrderCancelled)
	if ok && o.OCOPairID != "" {
		if pair, exists := m.pairs[o.OCOPairID]; exists {
			delete(m.pairs, pair.ID)
			if sibID, isLeg := pair.Sibling(orderID); isLeg {
				if sib, present := m.orders[sibID]; present {
					sib.OCOPairID = ""
				}
			}
		}
	}
	m.mu.Unlock()

	if !ok && notFound {
		return fmt.Errorf("%s %s: %w", op, orderID, ports.ErrOrderNotFound)
	}
	if ok {
		m.metrics.IncOrder(string(o.Kind), "cancelled")
		m.retired(*o)
	}
	m.logger.Info(ctx, op+": Order cancelled", map[string]interface{}{"symbol": symbol, "orderID": orderID})
	return nil
}

// cancelQuiet cancels on the exchange and treats an already-gone order as success.
func (m *Manager) cancelQuiet(ctx context.Context, symbol, orderID, kind string) error {
	op := "cancelOrderWarn"
	_, err := m.exchange.CancelOrder(ctx, symbol, orderID)
	if err == nil {
		m.metrics.IncOrder(kind, "cancelled")
		return nil
	}
	if errors.Is(err, ports.ErrOrderNotFound) {
		m.logger.Debug(ctx, op+": Order not found, likely already filled or cancelled", map[string]interface{}{"orderID": orderID, "type": kind})
		return nil
	}
	m.logger.Warn(ctx, op+": Failed to cancel order", map[string]interface{}{"orderID": orderID, "type": kind, "error": err.Error()})
	return fmt.Errorf("cancel %s %s: %w", kind, orderID, err)
}

// CancelAll clears every registry, disarms timers and retries, then cancels the
// orders on the exchange concurrently.
func (m *Manager) CancelAll(ctx context.Context) error {
	op := "cancelAllOrders"
	m.mu.Lock()
	victims := make([]*domain.Order, 0, len(m.orders))
	for id := range m.orders {
		o, _ := m.removeLocked(id, domain.OrderCancelled)
		victims = append(victims, o)
	}
	m.pairs = make(map[string]*domain.OCOPair)
	m.stopRetriesLocked()
	m.mu.Unlock()

	errs := make([]error, len(victims))
	var g errgroup.Group
	for i, o := range victims {
		i, o := i, o
		g.Go(func() error {
			errs[i] = m.cancelQuiet(ctx, o.Symbol, o.ID, string(o.Kind))
			return nil
		})
	}
	_ = g.Wait()

	err := errors.Join(errs...)
	if err != nil {
		m.logger.Error(ctx, err, op+": Some cancellations failed", map[string]interface{}{"orders": len(victims)})
		return fmt.Errorf("%s: %w", op, err)
	}
	m.logger.Info(ctx, op+": All orders cancelled", map[string]interface{}{"orders": len(victims)})
	return nil
}

// SetLeverage sets the leverage of symbol on the exchange.
func (m *Manager) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	if leverage <= 0 {
		return fmt.Errorf("setLeverage %s: %w: leverage must be positive, got %d", symbol, ports.ErrValidation, leverage)
	}
	if err := m.exchange.SetLeverage(ctx, symbol, leverage); err != nil {
		return fmt.Errorf("setLeverage %s: %w", symbol, err)
	}
	return nil
}

// Order returns a copy of an active order.
func (m *Manager) Order(orderID string) (domain.Order, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return domain.Order{}, false
	}
	return *o, true
}

// ActiveOrders returns copies of every active order.
func (m *Manager) ActiveOrders() []domain.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Order, 0, len(m.orders))
	for _, o := range m.orders {
		out = append(out, *o)
	}
	return out
}

// OCOPairs returns copies of every registered pair.
func (m *Manager) OCOPairs() []domain.OCOPair {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.OCOPair, 0, len(m.pairs))
	for _, p := range m.pairs {
		out = append(out, *p)
	}
	return out
}

// ExecutionSummary reports registry sizes and final-status counts.
func (m *Manager) ExecutionSummary() ExecutionSummary {
	m.mu.Lock()
	defer m.mu.Unlock()
	return ExecutionSummary{
		ActiveOrders:       len(m.orders),
		OCOPairs:           len(m.pairs),
		PendingProtections: len(m.retries),
		Placed:             m.placed,
		Filled:             m.counts[domain.OrderFilled],
		Cancelled:          m.counts[domain.OrderCancelled],
		Expired:            m.counts[domain.OrderExpired],
		Rejected:           m.counts[domain.OrderRejected],
	}
}

// Close disarms every timer and pending retry. Tracked orders are left as they are.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	for id, t := range m.timers {
		t.Stop()
		delete(m.timers, id)
	}
	m.stopRetriesLocked()
	m.mu.Unlock()
	m.cancel()
}

func (m *Manager) waitGrace(ctx context.Context) bool {
	t := time.NewTimer(m.cfg.GraceInterval)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func validateEntry(symbol string, side domain.OrderSide, size decimal.Decimal) error {
	switch {
	case symbol == "":
		return fmt.Errorf("%w: symbol is required", ports.ErrValidation)
	case !side.Valid():
		return fmt.Errorf("%w: unknown side %q", ports.ErrValidation, side)
	case !size.IsPositive():
		return fmt.Errorf("%w: size must be positive", ports.ErrValidation)
	}
	return nil
}

// validateProtection checks that stop and target sit on the correct sides of each other.
func validateProtection(entrySide domain.OrderSide, sl, tp decimal.NullDecimal) error {
	if sl.Valid && !sl.Decimal.IsPositive() {
		return fmt.Errorf("%w: stop loss must be positive", ports.ErrValidation)
	}
	if tp.Valid && !tp.Decimal.IsPositive() {
		return fmt.Errorf("%w: take profit must be positive", ports.ErrValidation)
	}
	if sl.Valid && tp.Valid {
		long := entrySide == domain.Buy
		if (long && sl.Decimal.GreaterThanOrEqual(tp.Decimal)) || (!long && sl.Decimal.LessThanOrEqual(tp.Decimal)) {
			return fmt.Errorf("%w: stop loss %s and take profit %s are inverted for %s", ports.ErrValidation, sl.Decimal, tp.Decimal, entrySide)
		}
	}
	return nil
}
