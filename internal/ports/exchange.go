package ports

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"futuresGuard/internal/domain"
)

// OrderRequest describes an entry or exit order for PlaceOrder.
type OrderRequest struct {
	Symbol        string
	Side          domain.OrderSide
	Kind          domain.OrderKind // market or limit
	Size          decimal.Decimal
	Price         decimal.Decimal // Required for limit orders
	ReduceOnly    bool
	ClientOrderID string
}

// OrderResponse represents the essential details returned after placing an order.
type OrderResponse struct {
	OrderID       string           // Exchange's order ID
	Symbol        string           // Symbol for the order
	ClientOrderID string           // User-defined order ID
	Side          domain.OrderSide // Order side
	Type          string           // Exchange order type (e.g., MARKET, STOP_MARKET)
	Status        string           // Order status (e.g., NEW, FILLED, CANCELED, REJECTED)
	Price         decimal.Decimal  // Price of the order (zero for market orders)
	StopPrice     decimal.Decimal  // Trigger price for conditional orders
	AvgPrice      decimal.Decimal  // Average filled price
	OrigQuantity  decimal.Decimal  // Original quantity requested
	ExecutedQty   decimal.Decimal  // Quantity filled
	Timestamp     time.Time        // Time the order response was generated
}

// Exchange order status values used by the core.
const (
	ExchangeStatusNew      = "NEW"
	ExchangeStatusFilled   = "FILLED"
	ExchangeStatusCanceled = "CANCELED"
	ExchangeStatusRejected = "REJECTED"
	ExchangeStatusExpired  = "EXPIRED"
)

// Rejected reports whether the exchange accepted the request but refused the order.
func (r *OrderResponse) Rejected() bool {
	return r.Status == ExchangeStatusRejected || r.Status == ExchangeStatusExpired
}

// PositionInfo is one exchange-reported position. Size is absolute; zero means flat.
type PositionInfo struct {
	Symbol        string
	Side          domain.PositionSide
	Size          decimal.Decimal
	EntryPrice    decimal.Decimal
	MarkPrice     decimal.Decimal
	UnrealizedPnL decimal.Decimal
	Leverage      int
	Timestamp     time.Time
}

// AccountState is the account-wide view reported by the exchange.
type AccountState struct {
	Equity          decimal.Decimal
	AvailableMargin decimal.Decimal
	MarginUsed      decimal.Decimal
	UnrealizedPnL   decimal.Decimal
	Positions       []PositionInfo
}

// ConnectionStatus reports exchange reachability as observed by the client.
type ConnectionStatus struct {
	Connected       bool
	LastRequestTime time.Time
}

// ExchangeClient defines the interface for interacting with a derivatives exchange.
// Every call is fallible and is expected to enforce its own timeout.
type ExchangeClient interface {
	// PlaceOrder submits a market or limit order.
	PlaceOrder(ctx context.Context, req OrderRequest) (*OrderResponse, error)

	// PlaceStopMarketOrder places a stop-market order triggered at triggerPrice.
	PlaceStopMarketOrder(ctx context.Context, symbol string, side domain.OrderSide, size, triggerPrice decimal.Decimal, reduceOnly bool) (*OrderResponse, error)

	// PlaceTakeProfitOrder places a take-profit-market order triggered at triggerPrice.
	PlaceTakeProfitOrder(ctx context.Context, symbol string, side domain.OrderSide, size, triggerPrice decimal.Decimal, reduceOnly bool) (*OrderResponse, error)

	// CancelOrder cancels an existing open order by its ID.
	// Returns an error wrapping ErrOrderNotFound when the order no longer exists.
	CancelOrder(ctx context.Context, symbol string, orderID string) (*OrderResponse, error)

	// GetAccountState retrieves balances, margin and open positions.
	GetAccountState(ctx context.Context) (*AccountState, error)

	// GetPositions retrieves all positions, including flat ones.
	GetPositions(ctx context.Context) ([]PositionInfo, error)

	// GetMarkPrice retrieves the current mark price for a given symbol.
	GetMarkPrice(ctx context.Context, symbol string) (decimal.Decimal, error)

	// SetLeverage sets the leverage for a specific symbol.
	SetLeverage(ctx context.Context, symbol string, leverage int) error

	// ClosePosition flattens the position for symbol with a reduce-only market order.
	ClosePosition(ctx context.Context, symbol string) (*OrderResponse, error)

	// GetConnectionStatus reports the last observed connectivity state.
	GetConnectionStatus() ConnectionStatus

	// Ping checks the connectivity to the exchange API.
	Ping(ctx context.Context) error
}
