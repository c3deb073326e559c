package position

import (
	"fmt"

	"github.com/shopspring/decimal"

	"futuresGuard/internal/domain"
)

// Stats aggregates ledger performance.
type Stats struct {
	OpenPositions    int             `json:"open_positions"`
	ClosedPositions  int             `json:"closed_positions"`
	TotalOpened      int             `json:"total_opened"`
	Wins             int             `json:"wins"`
	Losses           int             `json:"losses"`
	WinRatePct       decimal.Decimal `json:"win_rate_pct"`
	ProfitFactor     decimal.Decimal `json:"profit_factor"`
	AvgWin           decimal.Decimal `json:"avg_win"`
	AvgLoss          decimal.Decimal `json:"avg_loss"`
	LargestWin       decimal.Decimal `json:"largest_win"`
	LargestLoss      decimal.Decimal `json:"largest_loss"`
	TotalRealizedPnL decimal.Decimal `json:"total_realized_pnl"`
	TotalFees        decimal.Decimal `json:"total_fees"`
	TotalExposure    decimal.Decimal `json:"total_exposure"`
	TotalUnrealized  decimal.Decimal `json:"total_unrealized"`
}

// Stats computes aggregate statistics from the counters and the retained closed log.
func (l *Ledger) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()

	s := Stats{
		OpenPositions:    len(l.open),
		ClosedPositions:  l.totalClosed,
		TotalOpened:      l.totalOpened,
		Wins:             l.wins,
		Losses:           l.losses,
		TotalRealizedPnL: l.totalRealized,
		TotalFees:        l.totalFees,
	}
	for _, pos := range l.open {
		s.TotalExposure = s.TotalExposure.Add(pos.Notional())
		s.TotalUnrealized = s.TotalUnrealized.Add(pos.UnrealizedPnL)
	}
	// Breakeven closes count against the win rate.
	if l.totalClosed > 0 {
		s.WinRatePct = domain.Pct(decimal.NewFromInt(int64(l.wins)), decimal.NewFromInt(int64(l.totalClosed)))
	}

	grossWin, grossLoss := decimal.Zero, decimal.Zero
	var nWin, nLoss int64
	for _, pos := range l.closed {
		pnl := pos.RealizedPnL
		switch {
		case pnl.IsPositive():
			nWin++
			grossWin = grossWin.Add(pnl)
			if pnl.GreaterThan(s.LargestWin) {
				s.LargestWin = pnl
			}
		case pnl.IsNegative():
			nLoss++
			grossLoss = grossLoss.Add(pnl)
			if pnl.LessThan(s.LargestLoss) {
				s.LargestLoss = pnl
			}
		}
	}
	if nWin > 0 {
		s.AvgWin = grossWin.Div(decimal.NewFromInt(nWin))
	}
	if nLoss > 0 {
		s.AvgLoss = grossLoss.Div(decimal.NewFromInt(nLoss))
		if !s.AvgLoss.IsZero() {
			s.ProfitFactor = s.AvgWin.Div(s.AvgLoss.Abs())
		}
	}
	return s
}

// VerifyCounters recomputes wins, losses, realized P&L and fees from the closed log
// and compares them with the incremental counters. It only holds while the log has
// not been truncated.
func (l *Ledger) VerifyCounters() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.closed) != l.totalClosed {
		return fmt.Errorf("closed log truncated: %d retained of %d closed", len(l.closed), l.totalClosed)
	}
	var wins, losses int
	realized, fees := decimal.Zero, decimal.Zero
	for _, pos := range l.closed {
		realized = realized.Add(pos.RealizedPnL)
		fees = fees.Add(pos.Fees)
		switch {
		case pos.RealizedPnL.IsPositive():
			wins++
		case pos.RealizedPnL.IsNegative():
			losses++
		}
	}
	if wins != l.wins || losses != l.losses {
		return fmt.Errorf("win/loss counters %d/%d disagree with log %d/%d", l.wins, l.losses, wins, losses)
	}
	if !realized.Equal(l.totalRealized) {
		return fmt.Errorf("realized pnl counter %s disagrees with log %s", l.totalRealized, realized)
	}
	if !fees.Equal(l.totalFees) {
		return fmt.Errorf("fee counter %s disagrees with log %s", l.totalFees, fees)
	}
	return nil
}
