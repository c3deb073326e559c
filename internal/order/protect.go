package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jpillora/backoff"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"futuresGuard/internal/domain"
	"futuresGuard/internal/ports"
)

var (
	errPositionUnconfirmed = errors.New("position not confirmed at expected size")
	errPositionGone        = errors.New("position closed before protection was attached")
	errLegResolved         = errors.New("protective leg filled or cancelled during placement")
)

// protectRequest is the protective intent for one symbol's position.
type protectRequest struct {
	symbol     string
	side       domain.PositionSide
	size       decimal.Decimal
	stopLoss   decimal.NullDecimal
	takeProfit decimal.NullDecimal
	confirmed  bool // Position was seen at the expected size at least once
}

// retryState is a pending, cancellable protective retry sequence for one symbol.
type retryState struct {
	req     *protectRequest
	backoff *backoff.Backoff
	attempt int
	timer   *time.Timer
}

// Protect attaches stop-loss and take-profit legs to an already-filled position,
// scheduling retries if the first attempt fails.
func (m *Manager) Protect(ctx context.Context, symbol string, side domain.PositionSide, size decimal.Decimal, stopLoss, takeProfit decimal.NullDecimal) (domain.OrderResult, error) {
	op := "protectPosition"
	result := domain.OrderResult{Symbol: symbol, Side: side.ExitSide(), Kind: domain.KindStopMarket, Status: domain.OrderRejected}
	if symbol == "" || !size.IsPositive() {
		result.Reason = "symbol and positive size are required"
		return result, fmt.Errorf("%s: %w: %s", op, ports.ErrValidation, result.Reason)
	}
	if !stopLoss.Valid && !takeProfit.Valid {
		result.Reason = "no protective level given"
		return result, fmt.Errorf("%s: %w: %s", op, ports.ErrValidation, result.Reason)
	}
	if err := validateProtection(side.EntrySide(), stopLoss, takeProfit); err != nil {
		result.Reason = err.Error()
		return result, fmt.Errorf("%s: %w", op, err)
	}

	pr := &protectRequest{symbol: symbol, side: side, size: size, stopLoss: stopLoss, takeProfit: takeProfit}
	result.Success = true
	pairID, _, err := m.attemptProtect(ctx, pr)
	if errors.Is(err, errLegResolved) {
		result.Status = domain.OrderCancelled
		result.Reason = err.Error()
		return result, nil
	}
	if err != nil {
		m.logger.Warn(ctx, op+": Protection not attached, scheduling retry", map[string]interface{}{"symbol": symbol, "error": err.Error()})
		result.Status = domain.OrderActive
		result.Reason = err.Error()
		m.scheduleRetry(pr)
		return result, nil
	}
	result.Status = domain.OrderActive
	result.Protected = true
	result.OCOPairID = pairID
	return result, nil
}

// attemptProtect confirms the position and places the protective legs. Each leg is
// registered as soon as its placement returns, so a fill that races the sibling's
// placement is seen by OnFill. The OCO pair is registered only when both legs are
// placed and still active; a lone surviving leg is cancelled.
// It returns the pair id (empty for a single leg) and the ids of the placed legs.
func (m *Manager) attemptProtect(ctx context.Context, pr *protectRequest) (string, []string, error) {
	op := "attemptProtect"
	if err := m.confirmPosition(ctx, pr); err != nil {
		return "", nil, err
	}

	exitSide := pr.side.ExitSide()
	now := m.now()
	var slResp, tpResp *ports.OrderResponse
	var slErr, tpErr error

	var g errgroup.Group
	if pr.stopLoss.Valid {
		g.Go(func() error {
			slResp, slErr = m.exchange.PlaceStopMarketOrder(ctx, pr.symbol, exitSide, pr.size, pr.stopLoss.Decimal, true)
			if slErr == nil && slResp.Rejected() {
				slErr = fmt.Errorf("%w: stop loss status %s", ports.ErrOrderPlacementFailed, slResp.Status)
			}
			if slErr == nil {
				m.registerLeg(m.legOrder(slResp, pr, domain.KindStopMarket, pr.stopLoss.Decimal, now))
			}
			return nil
		})
	}
	if pr.takeProfit.Valid {
		g.Go(func() error {
			tpResp, tpErr = m.exchange.PlaceTakeProfitOrder(ctx, pr.symbol, exitSide, pr.size, pr.takeProfit.Decimal, true)
			if tpErr == nil && tpResp.Rejected() {
				tpErr = fmt.Errorf("%w: take profit status %s", ports.ErrOrderPlacementFailed, tpResp.Status)
			}
			if tpErr == nil {
				m.registerLeg(m.legOrder(tpResp, pr, domain.KindTakeProfit, pr.takeProfit.Decimal, now))
			}
			return nil
		})
	}
	_ = g.Wait()

	var placed []string
	if pr.stopLoss.Valid && slErr == nil {
		placed = append(placed, slResp.OrderID)
	}
	if pr.takeProfit.Valid && tpErr == nil {
		placed = append(placed, tpResp.OrderID)
	}

	if err := errors.Join(slErr, tpErr); err != nil {
		m.dropLegs(ctx, pr.symbol, placed)
		m.metrics.IncOrder("protection", "failed")
		return "", nil, fmt.Errorf("%s %s: %w", op, pr.symbol, err)
	}

	var pairID string
	var live, stray []string
	m.mu.Lock()
	for _, id := range placed {
		if _, ok := m.orders[id]; ok {
			live = append(live, id)
		}
	}
	switch {
	case len(live) < len(placed):
		// A leg filled or was cancelled before its sibling was placed.
		stray = live
	case len(placed) == 2:
		pairID = uuid.NewString()
		m.pairs[pairID] = &domain.OCOPair{
			ID:                pairID,
			Symbol:            pr.symbol,
			StopLossOrderID:   slResp.OrderID,
			TakeProfitOrderID: tpResp.OrderID,
			CreatedAt:         now,
		}
		for _, id := range placed {
			m.orders[id].OCOPairID = pairID
		}
	}
	m.mu.Unlock()

	if len(live) < len(placed) {
		m.logger.Info(ctx, op+": Protective leg resolved during placement, cancelling sibling", map[string]interface{}{
			"symbol": pr.symbol,
			"placed": len(placed),
			"active": len(live),
		})
		m.dropLegs(ctx, pr.symbol, stray)
		return "", nil, fmt.Errorf("%s %s: %w", op, pr.symbol, errLegResolved)
	}

	m.metrics.IncOrder("protection", "attached")
	m.logger.Info(ctx, op+": Protective orders placed", map[string]interface{}{
		"symbol":    pr.symbol,
		"ocoPairID": pairID,
		"legs":      len(placed),
	})
	return pairID, placed, nil
}

// registerLeg makes a freshly placed leg visible to OnFill and CancelProtection.
func (m *Manager) registerLeg(leg *domain.Order) {
	m.mu.Lock()
	m.orders[leg.ID] = leg
	m.mu.Unlock()
}

// dropLegs purges the given legs locally and cancels them on the exchange.
// Legs already gone from the registry are skipped.
func (m *Manager) dropLegs(ctx context.Context, symbol string, ids []string) {
	op := "dropLegs"
	var legs []*domain.Order
	m.mu.Lock()
	for _, id := range ids {
		if leg, ok := m.removeLocked(id, domain.OrderCancelled); ok {
			legs = append(legs, leg)
		}
	}
	m.mu.Unlock()
	for _, leg := range legs {
		if err := m.cancelQuiet(ctx, symbol, leg.ID, string(leg.Kind)); err != nil {
			m.logger.Error(ctx, err, op+": Reduce-only leg may still be live on the exchange", map[string]interface{}{
				"symbol":  symbol,
				"orderID": leg.ID,
				"type":    leg.Kind,
			})
		}
	}
}

func (m *Manager) legOrder(resp *ports.OrderResponse, pr *protectRequest, kind domain.OrderKind, trigger decimal.Decimal, now time.Time) *domain.Order {
	return &domain.Order{
		ID:         resp.OrderID,
		ClientID:   resp.ClientOrderID,
		Symbol:     pr.symbol,
		Side:       pr.side.ExitSide(),
		Kind:       kind,
		Size:       pr.size,
		Price:      trigger,
		ReduceOnly: true,
		CreatedAt:  now,
		Status:     domain.OrderActive,
	}
}

// confirmPosition checks that the exchange reports pr.symbol at the expected size.
func (m *Manager) confirmPosition(ctx context.Context, pr *protectRequest) error {
	positions, err := m.exchange.GetPositions(ctx)
	if err != nil {
		return fmt.Errorf("confirm position %s: %w: %w", pr.symbol, ports.ErrConnectivity, err)
	}
	for _, p := range positions {
		if p.Symbol != pr.symbol || p.Size.IsZero() {
			continue
		}
		if p.Size.Sub(pr.size).Abs().LessThan(m.cfg.SizeTolerance) {
			pr.confirmed = true
			return nil
		}
		return fmt.Errorf("%w: %s reported %s, expected %s", errPositionUnconfirmed, pr.symbol, p.Size, pr.size)
	}
	if pr.confirmed {
		return errPositionGone
	}
	return fmt.Errorf("%w: %s not reported", errPositionUnconfirmed, pr.symbol)
}

// scheduleRetry arms the next protective attempt for pr.symbol, replacing any pending one.
func (m *Manager) scheduleRetry(pr *protectRequest) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	if old, ok := m.retries[pr.symbol]; ok {
		old.timer.Stop()
	}
	st := &retryState{
		req: pr,
		backoff: &backoff.Backoff{
			Min:    m.cfg.RetryBaseDelay,
			Max:    m.cfg.RetryBaseDelay << uint(m.cfg.MaxRetries),
			Factor: 2,
			Jitter: false,
		},
	}
	m.retries[pr.symbol] = st
	m.armRetryLocked(st)
}

func (m *Manager) armRetryLocked(st *retryState) {
	st.timer = time.AfterFunc(st.backoff.Duration(), func() { m.runRetry(st) })
}

// runRetry performs one retry attempt unless the sequence was cancelled or replaced.
func (m *Manager) runRetry(st *retryState) {
	op := "protectRetry"
	symbol := st.req.symbol

	m.mu.Lock()
	if m.retries[symbol] != st {
		m.mu.Unlock()
		return
	}
	st.attempt++
	attempt := st.attempt
	m.mu.Unlock()

	pairID, legIDs, err := m.attemptProtect(m.ctx, st.req)

	m.mu.Lock()
	if m.retries[symbol] != st {
		m.mu.Unlock()
		// Cancelled while the attempt was in flight; the legs it placed must not survive.
		for _, id := range legIDs {
			if cerr := m.CancelOrder(m.ctx, symbol, id); cerr != nil {
				m.logger.Warn(m.ctx, op+": Failed to cancel leg of a cancelled retry", map[string]interface{}{"symbol": symbol, "orderID": id, "error": cerr.Error()})
			}
		}
		return
	}
	switch {
	case err == nil:
		delete(m.retries, symbol)
		m.mu.Unlock()
		m.logger.Info(m.ctx, op+": Protection attached on retry", map[string]interface{}{
			"symbol":    symbol,
			"attempt":   attempt,
			"ocoPairID": pairID,
		})
	case errors.Is(err, errPositionGone), errors.Is(err, errLegResolved):
		delete(m.retries, symbol)
		m.mu.Unlock()
		m.logger.Info(m.ctx, op+": Position closed out-of-band, retry stopped", map[string]interface{}{"symbol": symbol, "attempt": attempt})
	case attempt >= m.cfg.MaxRetries:
		delete(m.retries, symbol)
		m.mu.Unlock()
		m.metrics.IncOrder("protection", "exhausted")
		m.logger.Error(m.ctx, err, op+": Retries exhausted, position remains UNPROTECTED", map[string]interface{}{
			"symbol":   symbol,
			"attempts": attempt,
		})
	default:
		m.armRetryLocked(st)
		m.mu.Unlock()
		m.logger.Warn(m.ctx, op+": Protection attempt failed", map[string]interface{}{
			"symbol":  symbol,
			"attempt": attempt,
			"error":   err.Error(),
		})
	}
}

func (m *Manager) stopRetriesLocked() {
	for symbol, st := range m.retries {
		st.timer.Stop()
		delete(m.retries, symbol)
	}
}

// CancelProtection cancels the protective legs of symbol and any pending retry.
func (m *Manager) CancelProtection(ctx context.Context, symbol string) error {
	m.mu.Lock()
	if st, ok := m.retries[symbol]; ok {
		st.timer.Stop()
		delete(m.retries, symbol)
	}
	m.mu.Unlock()
	return m.cancelProtectionLegs(ctx, symbol)
}

func (m *Manager) cancelProtectionLegs(ctx context.Context, symbol string) error {
	op := "cancelProtection"
	m.mu.Lock()
	var legs []*domain.Order
	for id, o := range m.orders {
		if o.Symbol == symbol && o.Kind.IsProtective() {
			leg, _ := m.removeLocked(id, domain.OrderCancelled)
			legs = append(legs, leg)
		}
	}
	for id, p := range m.pairs {
		if p.Symbol == symbol {
			delete(m.pairs, id)
		}
	}
	m.mu.Unlock()

	if len(legs) == 0 {
		return nil
	}
	errs := make([]error, len(legs))
	var g errgroup.Group
	for i, leg := range legs {
		i, leg := i, leg
		g.Go(func() error {
			errs[i] = m.cancelQuiet(ctx, symbol, leg.ID, string(leg.Kind))
			return nil
		})
	}
	_ = g.Wait()
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%s %s: %w", op, symbol, err)
	}
	m.logger.Info(ctx, op+": Protective orders cancelled", map[string]interface{}{"symbol": symbol, "legs": len(legs)})
	return nil
}

// OnProtectiveTrigger resolves the protection of symbol after the ledger closed it
// locally. A stop-loss or take-profit close fills the matching leg so the sibling is
// cancelled; any other reason cancels the remaining protection. It reports whether a
// matching exchange leg existed.
func (m *Manager) OnProtectiveTrigger(ctx context.Context, symbol string, reason domain.CloseReason) bool {
	var kind domain.OrderKind
	switch reason {
	case domain.CloseReasonStopLoss:
		kind = domain.KindStopMarket
	case domain.CloseReasonTakeProfit:
		kind = domain.KindTakeProfit
	}

	m.mu.Lock()
	if st, ok := m.retries[symbol]; ok {
		st.timer.Stop()
		delete(m.retries, symbol)
	}
	var legID string
	if kind != "" {
		for id, o := range m.orders {
			if o.Symbol == symbol && o.Kind == kind {
				legID = id
				break
			}
		}
	}
	m.mu.Unlock()

	if legID != "" {
		m.OnFill(ctx, legID)
	}
	if err := m.cancelProtectionLegs(ctx, symbol); err != nil {
		m.logger.Warn(ctx, "onProtectiveTrigger: Leftover protection not cancelled", map[string]interface{}{"symbol": symbol, "error": err.Error()})
	}
	return legID != ""
}

// ModifyStops replaces the protection of symbol with new levels.
func (m *Manager) ModifyStops(ctx context.Context, symbol string, side domain.PositionSide, size decimal.Decimal, stopLoss, takeProfit decimal.NullDecimal) (domain.OrderResult, error) {
	if err := m.CancelProtection(ctx, symbol); err != nil {
		return domain.OrderResult{Symbol: symbol, Side: side.ExitSide(), Kind: domain.KindStopMarket, Status: domain.OrderRejected, Reason: err.Error()}, err
	}
	if !stopLoss.Valid && !takeProfit.Valid {
		return domain.OrderResult{Success: true, Symbol: symbol, Side: side.ExitSide(), Kind: domain.KindStopMarket, Status: domain.OrderCancelled}, nil
	}
	return m.Protect(ctx, symbol, side, size, stopLoss, takeProfit)
}
