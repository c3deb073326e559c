package order

import (
	"context"

	"github.com/shopspring/decimal"

	"futuresGuard/internal/domain"
)

// ValidateSetup reports whether the signal an order was placed under still holds.
// Orders without a recorded setup are valid. A setup is invalid when price has moved
// more than MaxPriceMovePct from the recorded entry, or when momentum has flipped sign
// by more than MomentumTolerance.
func (m *Manager) ValidateSetup(orderID string, snap domain.MarketSnapshot) bool {
	m.mu.Lock()
	o, ok := m.orders[orderID]
	var setup *domain.Setup
	if ok && o.Setup != nil {
		cp := *o.Setup
		setup = &cp
	}
	m.mu.Unlock()

	if setup == nil {
		return true
	}
	return setupHolds(*setup, snap, m.cfg.MaxPriceMovePct, m.cfg.MomentumTolerance)
}

func setupHolds(setup domain.Setup, snap domain.MarketSnapshot, maxMovePct, momentumTolerance decimal.Decimal) bool {
	if setup.EntryPrice.IsPositive() && snap.Price.IsPositive() {
		move := domain.Pct(snap.Price.Sub(setup.EntryPrice).Abs(), setup.EntryPrice)
		if move.GreaterThan(maxMovePct) {
			return false
		}
	}
	recorded := setup.Momentum.Sign()
	if recorded != 0 && snap.Momentum.Sign() == -recorded && snap.Momentum.Abs().GreaterThan(momentumTolerance) {
		return false
	}
	return true
}

// CheckAndCancelInvalidSetup cancels orderID when its setup no longer holds.
// It reports whether the order was found invalid.
func (m *Manager) CheckAndCancelInvalidSetup(ctx context.Context, orderID string, snap domain.MarketSnapshot) (bool, error) {
	op := "checkAndCancelInvalidSetup"
	if m.ValidateSetup(orderID, snap) {
		return false, nil
	}

	m.mu.Lock()
	o, ok := m.orders[orderID]
	var symbol string
	if ok {
		o.Setup = nil
		symbol = o.Symbol
	}
	m.mu.Unlock()
	if !ok {
		// Filled or expired since validation.
		return false, nil
	}

	m.logger.Info(ctx, op+": Setup invalidated, cancelling order", map[string]interface{}{
		"symbol":   symbol,
		"orderID":  orderID,
		"price":    snap.Price.String(),
		"momentum": snap.Momentum.String(),
	})
	if err := m.CancelOrder(ctx, symbol, orderID); err != nil {
		return true, err
	}
	return true, nil
}
