package order

import (
	"github.com/shopspring/decimal"

	"futuresGuard/internal/domain"
)

// Stop distances at or below this fraction of the entry price are treated as degenerate.
var degenerateStopRatio = decimal.New(1, -6)

// CalculatePositionSize sizes a position so that hitting the stop loses riskPct of equity,
// scaled by leverage. A degenerate stop distance yields minLot instead of dividing by zero.
// The result is not rounded to the lot step.
func CalculatePositionSize(equity, riskPct, entryPrice, stopPrice decimal.Decimal, leverage int, minLot decimal.Decimal) decimal.Decimal {
	if !equity.IsPositive() || !riskPct.IsPositive() || !entryPrice.IsPositive() {
		return decimal.Zero
	}
	if leverage <= 0 {
		leverage = 1
	}
	riskAmount := equity.Mul(domain.FromPct(riskPct))
	diff := entryPrice.Sub(stopPrice).Abs()
	if diff.LessThanOrEqual(entryPrice.Mul(degenerateStopRatio)) {
		return minLot
	}
	return riskAmount.Div(diff).Mul(decimal.NewFromInt(int64(leverage)))
}

// CalculatePositionSize applies the package helper with the configured minimum lot.
func (m *Manager) CalculatePositionSize(equity, riskPct, entryPrice, stopPrice decimal.Decimal, leverage int) decimal.Decimal {
	return CalculatePositionSize(equity, riskPct, entryPrice, stopPrice, leverage, m.cfg.MinLotSize)
}

// CalculateStopTakeProfit derives side-aware stop and target levels from percentages.
func CalculateStopTakeProfit(entryPrice decimal.Decimal, side domain.PositionSide, stopPct, takeProfitPct decimal.Decimal) (stopLoss, takeProfit decimal.Decimal) {
	sl := domain.FromPct(stopPct)
	tp := domain.FromPct(takeProfitPct)
	one := decimal.NewFromInt(1)
	if side == domain.Short {
		return entryPrice.Mul(one.Add(sl)), entryPrice.Mul(one.Sub(tp))
	}
	return entryPrice.Mul(one.Sub(sl)), entryPrice.Mul(one.Add(tp))
}

// RoundToLot floors size to a multiple of step. A non-positive step returns size unchanged.
func RoundToLot(size, step decimal.Decimal) decimal.Decimal {
	if !step.IsPositive() {
		return size
	}
	return size.Div(step).Floor().Mul(step)
}
