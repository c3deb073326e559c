package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountSnapshot is a point-in-time copy of the account as reported by the exchange.
// Equity is mirrored, never re-derived from the other fields.
type AccountSnapshot struct {
	Timestamp        time.Time       `json:"timestamp"`
	Equity           decimal.Decimal `json:"equity"`
	AvailableBalance decimal.Decimal `json:"available_balance"`
	MarginUsed       decimal.Decimal `json:"margin_used"`
	UnrealizedPnL    decimal.Decimal `json:"unrealized_pnl"`
	RealizedPnL      decimal.Decimal `json:"realized_pnl"` // Session realized P&L at snapshot time
	SessionPnL       decimal.Decimal `json:"session_pnl"`  // Equity minus session-start equity
	PositionsValue   decimal.Decimal `json:"positions_value"`
	Leverage         decimal.Decimal `json:"leverage"` // MarginUsed / Equity
}

// PeakState tracks the highest equity observed and when it was reached.
type PeakState struct {
	Equity decimal.Decimal
	Time   time.Time
}

// Observe raises the peak if equity is a new high. Returns true when the peak moved.
func (p *PeakState) Observe(equity decimal.Decimal, at time.Time) bool {
	if equity.GreaterThan(p.Equity) {
		p.Equity = equity
		p.Time = at
		return true
	}
	return false
}

// Drawdown returns (peak - current) / peak as a fraction.
// It is zero when the peak is not positive or current is at or above it.
func Drawdown(peak, current decimal.Decimal) decimal.Decimal {
	if !peak.IsPositive() || current.GreaterThanOrEqual(peak) {
		return decimal.Zero
	}
	return peak.Sub(current).Div(peak)
}
