package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PricePoint is one mark-price observation for a position.
type PricePoint struct {
	Time  time.Time
	Price decimal.Decimal
	PnL   decimal.Decimal
}

// ManagedPosition represents a position tracked by the ledger.
type ManagedPosition struct {
	ID         string          // Ledger-assigned identifier
	Symbol     string          // Trading symbol (e.g., "BTCUSDT")
	Side       PositionSide    // long or short
	EntryPrice decimal.Decimal // Average entry price
	Size       decimal.Decimal // Absolute position size
	Leverage   int             // Leverage the position was opened with
	Strategy   string          // Tag of the producing strategy, if any
	EntryTime  time.Time

	StopLoss            decimal.NullDecimal
	TakeProfit          decimal.NullDecimal
	TrailingStop        decimal.NullDecimal // Current trailing stop level
	TrailingDistancePct decimal.Decimal     // Zero disables trailing
	CurrentPrice        decimal.Decimal
	UnrealizedPnL       decimal.Decimal
	UnrealizedPnLPct    decimal.Decimal
	MaxPnL              decimal.Decimal
	MinPnL              decimal.Decimal
	LastUpdate          time.Time
	PriceHistory        []PricePoint

	Fees        decimal.Decimal
	Status      PositionStatus
	ClosePrice  decimal.Decimal
	CloseTime   time.Time
	CloseReason CloseReason
	RealizedPnL decimal.Decimal
}

// IsOpen checks if the position status is open.
func (p *ManagedPosition) IsOpen() bool {
	return p.Status == StatusOpen
}

// Notional is entry price times size.
func (p *ManagedPosition) Notional() decimal.Decimal {
	return p.EntryPrice.Mul(p.Size)
}

// PnLAt computes gross P&L at price, honouring the side.
func (p *ManagedPosition) PnLAt(price decimal.Decimal) decimal.Decimal {
	diff := price.Sub(p.EntryPrice)
	if p.Side == Short {
		diff = diff.Neg()
	}
	return diff.Mul(p.Size)
}

// UpdatePrice marks the position, refreshes P&L watermarks, tightens the trailing
// stop and appends to the bounded price history.
func (p *ManagedPosition) UpdatePrice(price decimal.Decimal, at time.Time, historyCap int) {
	p.CurrentPrice = price
	p.LastUpdate = at
	p.UnrealizedPnL = p.PnLAt(price)
	p.UnrealizedPnLPct = Pct(p.UnrealizedPnL, p.Notional())

	if len(p.PriceHistory) == 0 || p.UnrealizedPnL.GreaterThan(p.MaxPnL) {
		p.MaxPnL = p.UnrealizedPnL
	}
	if len(p.PriceHistory) == 0 || p.UnrealizedPnL.LessThan(p.MinPnL) {
		p.MinPnL = p.UnrealizedPnL
	}

	p.tightenTrailing(price)

	p.PriceHistory = append(p.PriceHistory, PricePoint{Time: at, Price: price, PnL: p.UnrealizedPnL})
	if historyCap > 0 && len(p.PriceHistory) > historyCap {
		p.PriceHistory = p.PriceHistory[len(p.PriceHistory)-historyCap:]
	}
}

// tightenTrailing moves the trailing stop toward price; it never loosens.
func (p *ManagedPosition) tightenTrailing(price decimal.Decimal) {
	if !p.TrailingDistancePct.IsPositive() {
		return
	}
	offset := price.Mul(FromPct(p.TrailingDistancePct))
	var candidate decimal.Decimal
	if p.Side == Long {
		candidate = price.Sub(offset)
		if !p.TrailingStop.Valid || candidate.GreaterThan(p.TrailingStop.Decimal) {
			p.TrailingStop = Price(candidate)
		}
		return
	}
	candidate = price.Add(offset)
	if !p.TrailingStop.Valid || candidate.LessThan(p.TrailingStop.Decimal) {
		p.TrailingStop = Price(candidate)
	}
}

// Trigger evaluates stop-loss, take-profit and trailing stop against the current price.
// It returns the reason and the trigger level used as exit price.
func (p *ManagedPosition) Trigger() (CloseReason, decimal.Decimal, bool) {
	price := p.CurrentPrice
	if !price.IsPositive() {
		return "", decimal.Zero, false
	}
	long := p.Side == Long

	if p.StopLoss.Valid {
		sl := p.StopLoss.Decimal
		if (long && price.LessThanOrEqual(sl)) || (!long && price.GreaterThanOrEqual(sl)) {
			return CloseReasonStopLoss, sl, true
		}
	}
	if p.TakeProfit.Valid {
		tp := p.TakeProfit.Decimal
		if (long && price.GreaterThanOrEqual(tp)) || (!long && price.LessThanOrEqual(tp)) {
			return CloseReasonTakeProfit, tp, true
		}
	}
	if p.TrailingStop.Valid {
		ts := p.TrailingStop.Decimal
		if (long && price.LessThanOrEqual(ts)) || (!long && price.GreaterThanOrEqual(ts)) {
			return CloseReasonTrailingStop, ts, true
		}
	}
	return "", decimal.Zero, false
}

// Clone returns a deep copy safe to hand outside the ledger lock.
func (p *ManagedPosition) Clone() ManagedPosition {
	c := *p
	c.PriceHistory = append([]PricePoint(nil), p.PriceHistory...)
	return c
}

// PositionSummary is the flattened view handed to the presentation layer.
type PositionSummary struct {
	Symbol           string          `json:"symbol"`
	Side             PositionSide    `json:"side"`
	Size             decimal.Decimal `json:"size"`
	EntryPrice       decimal.Decimal `json:"entry_price"`
	CurrentPrice     decimal.Decimal `json:"current_price"`
	UnrealizedPnL    decimal.Decimal `json:"unrealized_pnl"`
	UnrealizedPnLPct decimal.Decimal `json:"unrealized_pnl_pct"`
	Duration         time.Duration   `json:"duration"`
	Strategy         string          `json:"strategy"`
}

// Summary builds the presentation view of the position.
func (p *ManagedPosition) Summary(now time.Time) PositionSummary {
	return PositionSummary{
		Symbol:           p.Symbol,
		Side:             p.Side,
		Size:             p.Size,
		EntryPrice:       p.EntryPrice,
		CurrentPrice:     p.CurrentPrice,
		UnrealizedPnL:    p.UnrealizedPnL,
		UnrealizedPnLPct: p.UnrealizedPnLPct,
		Duration:         now.Sub(p.EntryTime),
		Strategy:         p.Strategy,
	}
}
