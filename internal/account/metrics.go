package account

import (
	"time"

	"github.com/shopspring/decimal"

	"futuresGuard/internal/domain"
)

// RiskMetrics is the risk-facing view of the account.
type RiskMetrics struct {
	Equity           decimal.Decimal `json:"equity"`
	AvailableBalance decimal.Decimal `json:"available_balance"`
	MarginUsed       decimal.Decimal `json:"margin_used"`
	MarginRatioPct   decimal.Decimal `json:"margin_ratio_pct"`
	Leverage         decimal.Decimal `json:"leverage"`
	DrawdownPct      decimal.Decimal `json:"drawdown_pct"`
	PeakEquity       decimal.Decimal `json:"peak_equity"`
	PeakTime         time.Time       `json:"peak_time"`
	SessionPnL       decimal.Decimal `json:"session_pnl"`
	SessionPnLPct    decimal.Decimal `json:"session_pnl_pct"`
	RiskLevel        string          `json:"risk_level"`
}

// PerformanceMetrics summarizes the session from the snapshot history.
type PerformanceMetrics struct {
	SessionDuration time.Duration   `json:"session_duration"`
	InitialEquity   decimal.Decimal `json:"initial_equity"`
	CurrentEquity   decimal.Decimal `json:"current_equity"`
	TotalReturn     decimal.Decimal `json:"total_return"`
	TotalReturnPct  decimal.Decimal `json:"total_return_pct"`
	HourlyReturnPct decimal.Decimal `json:"hourly_return_pct"`
	MaxEquity       decimal.Decimal `json:"max_equity"`
	MinEquity       decimal.Decimal `json:"min_equity"`
	AvgEquity       decimal.Decimal `json:"avg_equity"`
	MaxDrawdownPct  decimal.Decimal `json:"max_drawdown_pct"`
	TradeCount      int             `json:"trade_count"`
	RealizedPnL     decimal.Decimal `json:"realized_pnl"`
	Fees            decimal.Decimal `json:"fees"`
	AvgPnLPerTrade  decimal.Decimal `json:"avg_pnl_per_trade"`
}

// RiskMetrics derives the current risk view. No side effects.
func (t *Tracker) RiskMetrics() RiskMetrics {
	t.mu.RLock()
	defer t.mu.RUnlock()

	cur := t.current
	ddPct := domain.Drawdown(t.peak.Equity, cur.Equity).Mul(decimal.NewFromInt(100))
	level := "LOW"
	switch {
	case ddPct.GreaterThan(highRiskDrawdown):
		level = "HIGH"
	case ddPct.GreaterThan(medRiskDrawdown):
		level = "MEDIUM"
	}
	return RiskMetrics{
		Equity:           cur.Equity,
		AvailableBalance: cur.AvailableBalance,
		MarginUsed:       cur.MarginUsed,
		MarginRatioPct:   domain.Pct(cur.MarginUsed, cur.Equity),
		Leverage:         cur.Leverage,
		DrawdownPct:      ddPct,
		PeakEquity:       t.peak.Equity,
		PeakTime:         t.peak.Time,
		SessionPnL:       cur.SessionPnL,
		SessionPnLPct:    domain.Pct(cur.SessionPnL, t.sessionStartEquity),
		RiskLevel:        level,
	}
}

// PerformanceMetrics derives session performance from history. No side effects.
func (t *Tracker) PerformanceMetrics() PerformanceMetrics {
	t.mu.RLock()
	defer t.mu.RUnlock()

	m := PerformanceMetrics{
		InitialEquity: t.sessionStartEquity,
		CurrentEquity: t.current.Equity,
		TradeCount:    t.tradeCount,
		RealizedPnL:   t.realizedPnL,
		Fees:          t.fees,
	}
	if !t.initialized {
		return m
	}

	m.SessionDuration = t.now().Sub(t.sessionStart)
	m.TotalReturn = t.current.Equity.Sub(t.sessionStartEquity)
	m.TotalReturnPct = domain.Pct(m.TotalReturn, t.sessionStartEquity)
	if hours := decimal.NewFromFloat(m.SessionDuration.Hours()); hours.IsPositive() {
		m.HourlyReturnPct = m.TotalReturnPct.Div(hours)
	}
	if t.tradeCount > 0 {
		m.AvgPnLPerTrade = t.realizedPnL.Div(decimal.NewFromInt(int64(t.tradeCount)))
	}

	if len(t.snapshots) == 0 {
		return m
	}
	sum := decimal.Zero
	runningPeak := t.snapshots[0].Equity
	m.MaxEquity = runningPeak
	m.MinEquity = runningPeak
	for _, s := range t.snapshots {
		sum = sum.Add(s.Equity)
		if s.Equity.GreaterThan(m.MaxEquity) {
			m.MaxEquity = s.Equity
		}
		if s.Equity.LessThan(m.MinEquity) {
			m.MinEquity = s.Equity
		}
		if s.Equity.GreaterThan(runningPeak) {
			runningPeak = s.Equity
		}
		dd := domain.Drawdown(runningPeak, s.Equity).Mul(decimal.NewFromInt(100))
		if dd.GreaterThan(m.MaxDrawdownPct) {
			m.MaxDrawdownPct = dd
		}
	}
	m.AvgEquity = sum.Div(decimal.NewFromInt(int64(len(t.snapshots))))
	return m
}
