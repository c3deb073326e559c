package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderKind is the order type as tracked by the lifecycle manager.
type OrderKind string

const (
	KindMarket     OrderKind = "market"
	KindLimit      OrderKind = "limit"
	KindStopMarket OrderKind = "stop_market"
	KindTakeProfit OrderKind = "take_profit"
)

// IsProtective reports whether the kind is a stop-loss or take-profit leg.
func (k OrderKind) IsProtective() bool {
	return k == KindStopMarket || k == KindTakeProfit
}

// OrderStatus is the lifecycle state of a tracked order.
type OrderStatus string

const (
	OrderActive    OrderStatus = "active"
	OrderFilled    OrderStatus = "filled"
	OrderCancelled OrderStatus = "cancelled"
	OrderExpired   OrderStatus = "expired"
	OrderRejected  OrderStatus = "rejected"
)

// Setup is the signal context an order was placed under.
// Only entry price and momentum are read back for invalidation.
type Setup struct {
	EntryPrice decimal.Decimal
	Momentum   decimal.Decimal
	Timestamp  time.Time
}

// MarketSnapshot is the current market view compared against a Setup.
type MarketSnapshot struct {
	Price    decimal.Decimal
	Momentum decimal.Decimal
}

// Order is the subset of an exchange order the manager tracks.
type Order struct {
	ID         string
	ClientID   string
	Symbol     string
	Side       OrderSide
	Kind       OrderKind
	Size       decimal.Decimal
	Price      decimal.Decimal // Limit or trigger price, zero for market
	ReduceOnly bool
	OCOPairID  string
	CreatedAt  time.Time
	ExpiresAt  time.Time // Zero when no expiry is armed
	Setup      *Setup
	Status     OrderStatus
}

// OCOPair links a stop-loss and a take-profit order for one symbol.
type OCOPair struct {
	ID                string
	Symbol            string
	StopLossOrderID   string
	TakeProfitOrderID string
	CreatedAt         time.Time
}

// Sibling returns the other leg of the pair.
func (p *OCOPair) Sibling(orderID string) (string, bool) {
	switch orderID {
	case p.StopLossOrderID:
		return p.TakeProfitOrderID, true
	case p.TakeProfitOrderID:
		return p.StopLossOrderID, true
	}
	return "", false
}

// OrderResult is what order-submission callers always receive.
type OrderResult struct {
	Success       bool            `json:"success"`
	OrderID       string          `json:"order_id,omitempty"`
	ClientOrderID string          `json:"client_order_id,omitempty"`
	Symbol        string          `json:"symbol"`
	Side          OrderSide       `json:"side"`
	Kind          OrderKind       `json:"kind"`
	Status        OrderStatus     `json:"status"`
	AvgPrice      decimal.Decimal `json:"avg_price"`
	FilledSize    decimal.Decimal `json:"filled_size"`
	Reason        string          `json:"reason,omitempty"`
	Protected     bool            `json:"protected"`
	OCOPairID     string          `json:"oco_pair_id,omitempty"`
}
