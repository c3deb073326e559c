package domain

import (
	"github.com/shopspring/decimal"
)

// OrderSide represents the side of an order (BUY or SELL).
type OrderSide string

const (
	Buy  OrderSide = "BUY"
	Sell OrderSide = "SELL"
)

// Opposite returns the other side of the book.
func (s OrderSide) Opposite() OrderSide {
	if s == Buy {
		return Sell
	}
	return Buy
}

// Valid reports whether s is one of the known sides.
func (s OrderSide) Valid() bool {
	return s == Buy || s == Sell
}

// PositionSide is the direction of a managed position.
type PositionSide string

const (
	Long  PositionSide = "long"
	Short PositionSide = "short"
)

// EntrySide is the order side that opens a position of this direction.
func (s PositionSide) EntrySide() OrderSide {
	if s == Short {
		return Sell
	}
	return Buy
}

// ExitSide is the order side that reduces a position of this direction.
func (s PositionSide) ExitSide() OrderSide {
	return s.EntrySide().Opposite()
}

// SideForOrder maps an entry order side to the position it opens.
func SideForOrder(side OrderSide) PositionSide {
	if side == Sell {
		return Short
	}
	return Long
}

// PositionStatus represents the status of a trading position.
type PositionStatus string

const (
	StatusOpen   PositionStatus = "open"
	StatusClosed PositionStatus = "closed"
)

// CloseReason indicates why a position was closed.
type CloseReason string

const (
	CloseReasonManual        CloseReason = "manual"
	CloseReasonStopLoss      CloseReason = "stop_loss"
	CloseReasonTakeProfit    CloseReason = "take_profit"
	CloseReasonTrailingStop  CloseReason = "trailing_stop"
	CloseReasonExternalClose CloseReason = "external_close"
	CloseReasonEmergency     CloseReason = "emergency"
)

var hundred = decimal.NewFromInt(100)

// Pct returns part/whole*100, or zero when whole is not positive.
func Pct(part, whole decimal.Decimal) decimal.Decimal {
	if !whole.IsPositive() {
		return decimal.Zero
	}
	return part.Div(whole).Mul(hundred)
}

// FromPct converts a percentage to a fraction (2 -> 0.02).
func FromPct(pct decimal.Decimal) decimal.Decimal {
	return pct.Div(hundred)
}

// Price wraps a decimal as an optional price.
func Price(d decimal.Decimal) decimal.NullDecimal {
	return decimal.NewNullDecimal(d)
}
