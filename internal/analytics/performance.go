// Package analytics summarises journaled trades into a performance report.
package analytics

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"futuresGuard/internal/domain"
)

// Report holds performance figures for a set of closed positions.
// Percentages are expressed in percent, not fractions.
type Report struct {
	TotalTrades     int
	WinningTrades   int
	LosingTrades    int
	BreakevenTrades int
	WinRatePct      decimal.Decimal

	TotalPnL     decimal.Decimal
	GrossProfit  decimal.Decimal
	GrossLoss    decimal.Decimal // Negative or zero
	TotalFees    decimal.Decimal
	ProfitFactor decimal.Decimal // Zero when there are no losses
	AverageWin   decimal.Decimal
	AverageLoss  decimal.Decimal // Negative or zero
	RiskReward   decimal.Decimal
	Expectancy   decimal.Decimal // Average P&L per trade

	InitialBalance decimal.Decimal
	FinalBalance   decimal.Decimal
	ReturnPct      decimal.Decimal
	MaxDrawdownPct decimal.Decimal
	RecoveryFactor decimal.Decimal

	MaxConsecutiveWins   int
	MaxConsecutiveLosses int
	AverageDuration      time.Duration

	MonthlyReturns map[string]decimal.Decimal // Keyed by YYYY-MM of the close time (UTC)
	ByReason       map[domain.CloseReason]ReasonStats
	Drawdowns      []Drawdown
	EquityCurve    []EquityPoint
}

// ReasonStats aggregates trades sharing a close reason.
type ReasonStats struct {
	Count    int
	TotalPnL decimal.Decimal
}

// AveragePnL is TotalPnL over Count.
func (s ReasonStats) AveragePnL() decimal.Decimal {
	if s.Count == 0 {
		return decimal.Zero
	}
	return s.TotalPnL.Div(decimal.NewFromInt(int64(s.Count)))
}

// Drawdown is one peak-to-recovery period of the equity curve.
type Drawdown struct {
	StartTime  time.Time
	EndTime    time.Time
	StartValue decimal.Decimal
	EndValue   decimal.Decimal
	DepthPct   decimal.Decimal
	Recovered  bool
}

// Duration of the drawdown period.
func (d Drawdown) Duration() time.Duration {
	return d.EndTime.Sub(d.StartTime)
}

// EquityPoint is the balance after one closed position.
type EquityPoint struct {
	Time        time.Time
	Value       decimal.Decimal
	DrawdownPct decimal.Decimal
}

// MonthlyReturn is one entry of Report.Months.
type MonthlyReturn struct {
	Month  time.Time
	Return decimal.Decimal
}

// Analyze computes a report over closed positions, replaying realized P&L
// in close-time order on top of initialBalance. Open positions are ignored.
// The input slice is not reordered.
func Analyze(positions []*domain.ManagedPosition, initialBalance decimal.Decimal) *Report {
	r := &Report{
		InitialBalance: initialBalance,
		FinalBalance:   initialBalance,
		MonthlyReturns: make(map[string]decimal.Decimal),
		ByReason:       make(map[domain.CloseReason]ReasonStats),
	}

	closed := make([]*domain.ManagedPosition, 0, len(positions))
	for _, p := range positions {
		if p != nil && !p.IsOpen() {
			closed = append(closed, p)
		}
	}
	if len(closed) == 0 {
		return r
	}
	sort.SliceStable(closed, func(i, j int) bool {
		return closed[i].CloseTime.Before(closed[j].CloseTime)
	})

	balance := initialBalance
	peak := initialBalance
	var current *Drawdown
	var wins, losses int
	var totalDuration time.Duration

	for _, p := range closed {
		pnl := p.RealizedPnL
		r.TotalTrades++
		r.TotalPnL = r.TotalPnL.Add(pnl)
		r.TotalFees = r.TotalFees.Add(p.Fees)

		switch {
		case pnl.IsPositive():
			r.WinningTrades++
			r.GrossProfit = r.GrossProfit.Add(pnl)
			wins++
			losses = 0
		case pnl.IsNegative():
			r.LosingTrades++
			r.GrossLoss = r.GrossLoss.Add(pnl)
			losses++
			wins = 0
		default:
			r.BreakevenTrades++
		}
		if wins > r.MaxConsecutiveWins {
			r.MaxConsecutiveWins = wins
		}
		if losses > r.MaxConsecutiveLosses {
			r.MaxConsecutiveLosses = losses
		}

		if !p.EntryTime.IsZero() && p.CloseTime.After(p.EntryTime) {
			totalDuration += p.CloseTime.Sub(p.EntryTime)
		}

		month := p.CloseTime.UTC().Format("2006-01")
		r.MonthlyReturns[month] = r.MonthlyReturns[month].Add(pnl)

		rs := r.ByReason[p.CloseReason]
		rs.Count++
		rs.TotalPnL = rs.TotalPnL.Add(pnl)
		r.ByReason[p.CloseReason] = rs

		balance = balance.Add(pnl)
		if balance.GreaterThanOrEqual(peak) {
			peak = balance
			if current != nil {
				current.EndTime = p.CloseTime
				current.EndValue = balance
				current.Recovered = true
				r.Drawdowns = append(r.Drawdowns, *current)
				current = nil
			}
		} else {
			depth := domain.Pct(peak.Sub(balance), peak)
			if current == nil {
				current = &Drawdown{StartTime: p.CloseTime, StartValue: peak}
			}
			current.DepthPct = decimal.Max(current.DepthPct, depth)
			r.MaxDrawdownPct = decimal.Max(r.MaxDrawdownPct, depth)
		}

		r.EquityCurve = append(r.EquityCurve, EquityPoint{
			Time:        p.CloseTime,
			Value:       balance,
			DrawdownPct: domain.Pct(peak.Sub(balance), peak),
		})
	}

	if current != nil {
		current.EndTime = closed[len(closed)-1].CloseTime
		current.EndValue = balance
		r.Drawdowns = append(r.Drawdowns, *current)
	}

	n := decimal.NewFromInt(int64(r.TotalTrades))
	r.FinalBalance = balance
	r.WinRatePct = domain.Pct(decimal.NewFromInt(int64(r.WinningTrades)), n)
	r.ReturnPct = domain.Pct(balance.Sub(initialBalance), initialBalance)
	r.Expectancy = r.TotalPnL.Div(n)
	r.AverageDuration = totalDuration / time.Duration(r.TotalTrades)

	if r.WinningTrades > 0 {
		r.AverageWin = r.GrossProfit.Div(decimal.NewFromInt(int64(r.WinningTrades)))
	}
	if r.LosingTrades > 0 {
		r.AverageLoss = r.GrossLoss.Div(decimal.NewFromInt(int64(r.LosingTrades)))
		r.ProfitFactor = r.GrossProfit.Div(r.GrossLoss.Neg())
		if r.WinningTrades > 0 {
			r.RiskReward = r.AverageWin.Div(r.AverageLoss.Neg())
		}
	}
	if r.MaxDrawdownPct.IsPositive() && initialBalance.IsPositive() {
		maxLoss := initialBalance.Mul(domain.FromPct(r.MaxDrawdownPct))
		r.RecoveryFactor = r.TotalPnL.Div(maxLoss)
	}

	return r
}

// Months returns the monthly returns in chronological order.
func (r *Report) Months() []MonthlyReturn {
	out := make([]MonthlyReturn, 0, len(r.MonthlyReturns))
	for month, pnl := range r.MonthlyReturns {
		t, err := time.Parse("2006-01", month)
		if err != nil {
			continue
		}
		out = append(out, MonthlyReturn{Month: t, Return: pnl})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Month.Before(out[j].Month)
	})
	return out
}

// Reasons returns the close reasons present in the report, sorted by name.
func (r *Report) Reasons() []domain.CloseReason {
	out := make([]domain.CloseReason, 0, len(r.ByReason))
	for reason := range r.ByReason {
		out = append(out, reason)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i] < out[j]
	})
	return out
}
