package risk

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"futuresGuard/internal/domain"
)

var (
	leverageHighFactor   = decimal.RequireFromString("1.1")
	leverageMediumFactor = decimal.RequireFromString("0.9")
	criticalStopFactor   = decimal.RequireFromString("1.5")
)

func (m *Monitor) checkDrawdown(ctx context.Context, st PortfolioState) {
	if !st.PeakEquity.IsPositive() {
		return
	}
	drawdown := domain.Pct(st.PeakEquity.Sub(st.Equity), st.PeakEquity)
	details := map[string]interface{}{
		"drawdown_pct":   drawdown.StringFixed(2),
		"peak_equity":    st.PeakEquity.String(),
		"current_equity": st.Equity.String(),
	}
	switch {
	case drawdown.GreaterThanOrEqual(m.limits.CriticalDrawdownPct):
		details["limit"] = m.limits.CriticalDrawdownPct.String()
		m.raise(ctx, domain.RiskDrawdown, domain.LevelCritical,
			fmt.Sprintf("Critical drawdown reached: %s%%", drawdown.StringFixed(1)), details)
	case drawdown.GreaterThanOrEqual(m.limits.MaxDrawdownPct):
		details["limit"] = m.limits.MaxDrawdownPct.String()
		m.raise(ctx, domain.RiskDrawdown, domain.LevelHigh,
			fmt.Sprintf("Maximum drawdown exceeded: %s%%", drawdown.StringFixed(1)), details)
	}
}

func exposure(positions []PositionExposure) decimal.Decimal {
	total := decimal.Zero
	for _, p := range positions {
		total = total.Add(p.Size.Mul(p.MarkPrice))
	}
	return total
}

func (m *Monitor) checkLeverage(ctx context.Context, st PortfolioState) {
	if !st.Equity.IsPositive() {
		return
	}
	lev := exposure(st.Positions).Div(st.Equity)
	details := map[string]interface{}{
		"current_leverage": lev.StringFixed(2),
		"limit":            m.limits.MaxLeverage.String(),
	}
	switch {
	case lev.GreaterThanOrEqual(m.limits.MaxLeverage.Mul(leverageHighFactor)):
		m.raise(ctx, domain.RiskLeverage, domain.LevelHigh,
			fmt.Sprintf("Leverage limit exceeded: %sx", lev.StringFixed(1)), details)
	case lev.GreaterThanOrEqual(m.limits.MaxLeverage.Mul(leverageMediumFactor)):
		m.raise(ctx, domain.RiskLeverage, domain.LevelMedium,
			fmt.Sprintf("Leverage approaching limit: %sx", lev.StringFixed(1)), details)
	}
}

type positionAssessment struct {
	level    domain.RiskLevel
	riskType domain.RiskType
	reason   string
	pnlPct   decimal.Decimal
	sizePct  decimal.Decimal
}

// assessPosition grades one position. The first matching rule wins.
func (m *Monitor) assessPosition(p PositionExposure, equity decimal.Decimal) positionAssessment {
	a := positionAssessment{level: domain.LevelLow, riskType: domain.RiskPositionSize}
	if p.EntryPrice.IsPositive() {
		move := p.MarkPrice.Sub(p.EntryPrice)
		if p.Side == domain.Short {
			move = move.Neg()
		}
		a.pnlPct = domain.Pct(move, p.EntryPrice)
	}
	if equity.IsPositive() {
		a.sizePct = domain.Pct(p.Size.Mul(p.MarkPrice), equity)
	}

	sl := m.limits.StopLossPct
	switch {
	case a.pnlPct.LessThanOrEqual(sl.Mul(criticalStopFactor).Neg()):
		a.level, a.riskType, a.reason = domain.LevelCritical, domain.RiskDrawdown,
			fmt.Sprintf("Position loss %s%% beyond 1.5x stop distance", a.pnlPct.StringFixed(2))
	case a.pnlPct.LessThanOrEqual(sl.Neg()):
		a.level, a.riskType, a.reason = domain.LevelHigh, domain.RiskDrawdown,
			fmt.Sprintf("Position loss %s%% beyond stop distance", a.pnlPct.StringFixed(2))
	case a.sizePct.GreaterThan(m.limits.MaxPositionSizePct):
		a.level, a.riskType, a.reason = domain.LevelMedium, domain.RiskPositionSize,
			fmt.Sprintf("Position size %s%% of equity exceeds limit", a.sizePct.StringFixed(2))
	case decimal.NewFromInt(int64(p.Leverage)).GreaterThan(m.limits.MaxLeverage):
		a.level, a.riskType, a.reason = domain.LevelHigh, domain.RiskLeverage,
			fmt.Sprintf("Position leverage %dx exceeds limit", p.Leverage)
	}
	return a
}

func (m *Monitor) checkPositions(ctx context.Context, st PortfolioState) {
	for _, p := range st.Positions {
		a := m.assessPosition(p, st.Equity)
		if a.level == domain.LevelLow {
			continue
		}
		m.raise(ctx, a.riskType, a.level, fmt.Sprintf("%s: %s", p.Symbol, a.reason), map[string]interface{}{
			"symbol":       p.Symbol,
			"pnl_pct":      a.pnlPct.StringFixed(2),
			"size_pct":     a.sizePct.StringFixed(2),
			"leverage":     p.Leverage,
			"unrealized":   p.UnrealizedPnL.String(),
			"mark_price":   p.MarkPrice.String(),
			"entry_price":  p.EntryPrice.String(),
			"position_age": m.now().Sub(p.EntryTime).Round(time.Second).String(),
		})
	}
}

func (m *Monitor) checkDailyLoss(ctx context.Context, st PortfolioState) {
	m.mu.Lock()
	start := m.dailyStartEquity
	m.mu.Unlock()
	if !start.IsPositive() {
		return
	}
	dailyPnL := st.Equity.Sub(start)
	if !dailyPnL.IsNegative() {
		return
	}
	loss := dailyPnL.Abs()
	lossPct := domain.Pct(loss, start)
	details := map[string]interface{}{
		"daily_pnl":     dailyPnL.String(),
		"daily_loss":    loss.String(),
		"daily_pct":     lossPct.StringFixed(2),
		"start_equity":  start.String(),
		"pct_limit":     m.limits.MaxDailyLossPct.String(),
		"emergency_cap": m.limits.EmergencyLossAmount.String(),
	}
	if lossPct.GreaterThanOrEqual(m.limits.MaxDailyLossPct) {
		m.raise(ctx, domain.RiskDrawdown, domain.LevelCritical,
			fmt.Sprintf("Daily loss limit reached: %s%%", lossPct.StringFixed(1)), details)
	}
	if m.limits.EmergencyLossAmount.IsPositive() && loss.GreaterThanOrEqual(m.limits.EmergencyLossAmount) {
		m.raise(ctx, domain.RiskDrawdown, domain.LevelCritical,
			fmt.Sprintf("Emergency loss amount reached: %s", loss.StringFixed(2)), details)
	}
}

func (m *Monitor) checkConcentration(ctx context.Context, st PortfolioState) {
	if m.limits.MaxPositions <= 0 || len(st.Positions) < m.limits.MaxPositions {
		return
	}
	m.raise(ctx, domain.RiskCorrelation, domain.LevelMedium,
		fmt.Sprintf("Maximum positions reached: %d", len(st.Positions)), map[string]interface{}{
			"position_count": len(st.Positions),
			"limit":          m.limits.MaxPositions,
		})
}

func (m *Monitor) checkConnectivity(ctx context.Context, _ PortfolioState) {
	if m.conn == nil {
		return
	}
	status := m.conn.GetConnectionStatus()
	if !status.Connected {
		m.raise(ctx, domain.RiskConnectivity, domain.LevelHigh, "Exchange connection lost", map[string]interface{}{
			"connected": false,
		})
		return
	}
	if status.LastRequestTime.IsZero() {
		return
	}
	if idle := m.now().Sub(status.LastRequestTime); idle > m.cfg.StaleAfter {
		m.raise(ctx, domain.RiskConnectivity, domain.LevelMedium,
			fmt.Sprintf("No exchange activity for %s", idle.Round(time.Second)), map[string]interface{}{
				"last_request": status.LastRequestTime,
				"idle":         idle.String(),
			})
	}
}

func (m *Monitor) checkConsecutiveLosses(ctx context.Context, _ PortfolioState) {
	m.mu.Lock()
	losses := m.consecutiveLosses
	m.mu.Unlock()
	if m.limits.MaxConsecutiveLosses <= 0 || losses < m.limits.MaxConsecutiveLosses {
		return
	}
	m.raise(ctx, domain.RiskExecution, domain.LevelHigh,
		fmt.Sprintf("%d consecutive losing trades", losses), map[string]interface{}{
			"consecutive_losses": losses,
			"limit":              m.limits.MaxConsecutiveLosses,
		})
	if !m.paused.Load() {
		m.PauseTrading(ctx, fmt.Sprintf("%d consecutive losses", losses))
	}
}

// ValidateOrder checks a prospective order against the kill switch, the pause flag
// and the portfolio limits. It reports whether the order may proceed and why not.
func (m *Monitor) ValidateOrder(symbol string, side domain.OrderSide, size, price decimal.Decimal) (bool, string) {
	if m.killed.Load() {
		return false, "Kill switch is active"
	}
	if m.paused.Load() {
		return false, "Trading is paused"
	}
	if !side.Valid() {
		return false, fmt.Sprintf("Invalid order side %q", side)
	}

	st := m.view.RiskSnapshot()
	if !st.Equity.IsPositive() {
		return false, "Account equity unknown"
	}

	held := false
	for _, p := range st.Positions {
		if p.Symbol == symbol {
			held = true
			break
		}
	}
	if !held && len(st.Positions) >= m.limits.MaxPositions {
		return false, fmt.Sprintf("Maximum positions reached: %d", len(st.Positions))
	}

	value := size.Mul(price)
	newLev := exposure(st.Positions).Add(value).Div(st.Equity)
	if newLev.GreaterThan(m.limits.MaxLeverage) {
		return false, fmt.Sprintf("Leverage limit exceeded: %sx > %sx", newLev.StringFixed(1), m.limits.MaxLeverage)
	}

	sizePct := domain.Pct(value, st.Equity)
	if sizePct.GreaterThan(m.limits.MaxPositionSizePct) {
		return false, fmt.Sprintf("Position size too large: %s%% > %s%%", sizePct.StringFixed(1), m.limits.MaxPositionSizePct)
	}
	return true, "Order validated"
}
