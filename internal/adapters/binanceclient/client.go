package binanceclient

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/adshao/go-binance/v2/common"
	"github.com/adshao/go-binance/v2/futures"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"futuresGuard/internal/domain"
	"futuresGuard/internal/ports"
)

const (
	// Base URLs
	baseURLProduction = "https://fapi.binance.com"
	baseURLTestnet    = "https://testnet.binancefuture.com"

	defaultRequestTimeout = 10 * time.Second
)

// Client implements the ports.ExchangeClient interface using the go-binance futures API.
type Client struct {
	futuresClient  *futures.Client
	logger         ports.Logger
	metrics        ports.Metrics
	requestTimeout time.Duration

	connected   atomic.Bool
	lastRequest atomic.Int64 // unix nanos of the last successful call
}

// Config holds configuration specific to the Binance client adapter.
type Config struct {
	APIKey         string
	SecretKey      string
	UseTestnet     bool
	RequestTimeout time.Duration // Applied to every call that carries no earlier deadline
	Logger         ports.Logger
	Metrics        ports.Metrics
}

// New creates a new Binance client adapter.
func New(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for Binance client")
	}
	if cfg.APIKey == "" || cfg.SecretKey == "" {
		cfg.Logger.Warn(context.Background(), "APIKey or SecretKey is empty. Client will only work for public endpoints.")
	}

	client := futures.NewClient(cfg.APIKey, cfg.SecretKey)
	if cfg.UseTestnet {
		client.BaseURL = baseURLTestnet
		cfg.Logger.Info(context.Background(), "Binance client configured for Testnet", map[string]interface{}{"baseURL": client.BaseURL})
	} else {
		client.BaseURL = baseURLProduction
		cfg.Logger.Info(context.Background(), "Binance client configured for Production", map[string]interface{}{"baseURL": client.BaseURL})
	}

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	m := cfg.Metrics
	if m == nil {
		m = ports.NopMetrics{}
	}

	return &Client{
		futuresClient:  client,
		logger:         cfg.Logger,
		metrics:        m,
		requestTimeout: timeout,
	}, nil
}

// call runs fn under the request timeout and records latency and connectivity.
func (c *Client) call(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	start := time.Now()
	err := fn(ctx)
	c.metrics.ObserveExchangeCall(op, time.Since(start), err)
	if err != nil {
		mapped := c.handleError(ctx, err, op)
		if ports.IsConnectivity(mapped) {
			c.connected.Store(false)
		}
		return mapped
	}
	c.connected.Store(true)
	c.lastRequest.Store(time.Now().UnixNano())
	return nil
}

// handleError translates common Binance API errors into standardized ports errors.
func (c *Client) handleError(ctx context.Context, err error, operation string) error {
	if err == nil {
		return nil
	}

	fields := map[string]interface{}{"operation": operation, "originalError": err.Error()}

	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		fields["apiErrorCode"] = apiErr.Code
		fields["apiErrorMessage"] = apiErr.Message

		mappedErr := mapAPICode(apiErr.Code)
		c.logger.Error(ctx, err, fmt.Sprintf("%s failed with API error", operation), fields)
		if errors.Is(mappedErr, ports.ErrRateLimited) {
			return fmt.Errorf("%s failed: %w: %w: %w", operation, ports.ErrConnectivity, mappedErr, err)
		}
		return fmt.Errorf("%s failed: %w: %w", operation, mappedErr, err)
	}

	// Non-API errors: network, context cancellation, parsing.
	var finalErr error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		finalErr = fmt.Errorf("%s failed: %w: %w: %w", operation, ports.ErrConnectivity, ports.ErrTimeout, err)
	case errors.Is(err, context.Canceled):
		finalErr = fmt.Errorf("%s operation canceled: %w: %w", operation, ports.ErrContextCanceled, err)
	case isNetworkError(err):
		finalErr = fmt.Errorf("%s failed: %w: %w: %w", operation, ports.ErrConnectivity, ports.ErrConnectionFailed, err)
	default:
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrUnknown, err)
	}

	c.logger.Error(ctx, err, fmt.Sprintf("%s failed", operation), fields)
	return finalErr
}

func mapAPICode(code int64) error {
	switch code {
	case -1001: // Internal error; unable to process your request
		return ports.ErrConnectionFailed
	case -1003: // Too many requests
		return ports.ErrRateLimited
	case -1007: // Timeout waiting for response from backend server
		return ports.ErrTimeout
	case -1021: // Timestamp for this request is outside of the recvWindow
		return ports.ErrTimeout
	case -1022: // Signature for this request is not valid
		return ports.ErrAuthenticationFailed
	case -1101, -1102, -1103, -1104, -1105, -1106, -1111, -1115, -1116, -1117, -1120, -1121, -1125, -1127, -1128, -1130:
		return ports.ErrInvalidRequest
	case -2010: // New order rejected
		return ports.ErrOrderPlacementFailed
	case -2011: // Cancel order rejected
		return ports.ErrOrderCancelFailed
	case -2013: // Order does not exist
		return ports.ErrOrderNotFound
	case -2014, -2015: // API-key format invalid / invalid key, IP, or permissions
		return ports.ErrInvalidAPIKeys
	case -2019, -3005, -3041, -4047: // Margin or balance insufficient
		return ports.ErrInsufficientFunds
	case -2022: // ReduceOnly Order is rejected
		return ports.ErrOrderPlacementFailed
	case -4003, -4014, -4015: // Qty, price or leverage out of range
		return ports.ErrInvalidRequest
	case -4044: // Position not found
		return ports.ErrPositionNotFound
	default:
		return ports.ErrUnknown
	}
}

func isNetworkError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "use of closed network connection") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection reset by peer") ||
		strings.Contains(msg, "no such host") ||
		strings.Contains(msg, "i/o timeout")
}

// GetConnectionStatus reports the state observed by the most recent call.
func (c *Client) GetConnectionStatus() ports.ConnectionStatus {
	st := ports.ConnectionStatus{Connected: c.connected.Load()}
	if ns := c.lastRequest.Load(); ns > 0 {
		st.LastRequestTime = time.Unix(0, ns)
	}
	return st
}

// Ping checks the connectivity to the exchange API.
func (c *Client) Ping(ctx context.Context) error {
	op := "Ping"
	err := c.call(ctx, op, func(ctx context.Context) error {
		return c.futuresClient.NewPingService().Do(ctx)
	})
	if err != nil {
		return err
	}
	c.logger.Debug(ctx, op+" successful")
	return nil
}

// GetMarkPrice retrieves the current mark price for a given symbol.
func (c *Client) GetMarkPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	op := "GetMarkPrice"
	var price decimal.Decimal
	err := c.call(ctx, op, func(ctx context.Context) error {
		tickers, err := c.futuresClient.NewPremiumIndexService().Symbol(symbol).Do(ctx)
		if err != nil {
			return err
		}
		if len(tickers) == 0 {
			return fmt.Errorf("no price data returned for symbol %s", symbol)
		}
		price, err = decimal.NewFromString(tickers[0].MarkPrice)
		if err != nil {
			return fmt.Errorf("could not parse price '%s': %w", tickers[0].MarkPrice, err)
		}
		return nil
	})
	if err != nil {
		return decimal.Zero, err
	}
	return price, nil
}

// SetLeverage sets the leverage for a specific symbol.
func (c *Client) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	op := "SetLeverage"
	err := c.call(ctx, op, func(ctx context.Context) error {
		_, err := c.futuresClient.NewChangeLeverageService().
			Symbol(symbol).
			Leverage(leverage).
			Do(ctx)
		return err
	})
	if err != nil {
		return err
	}
	c.logger.Info(ctx, op+" successful", map[string]interface{}{"symbol": symbol, "leverage": leverage})
	return nil
}

// PlaceOrder submits a market or limit order. Limit orders rest as GTC.
func (c *Client) PlaceOrder(ctx context.Context, req ports.OrderRequest) (*ports.OrderResponse, error) {
	op := "PlaceOrder"
	if !req.Side.Valid() {
		return nil, fmt.Errorf("%s failed: %w: unknown side %q", op, ports.ErrInvalidRequest, req.Side)
	}

	var resp *ports.OrderResponse
	err := c.call(ctx, op, func(ctx context.Context) error {
		svc := c.futuresClient.NewCreateOrderService().
			Symbol(req.Symbol).
			Side(futures.SideType(req.Side)).
			Quantity(req.Size.String())

		switch req.Kind {
		case domain.KindLimit:
			if !req.Price.IsPositive() {
				return fmt.Errorf("%w: limit order requires a price", ports.ErrInvalidRequest)
			}
			svc = svc.Type(futures.OrderTypeLimit).
				TimeInForce(futures.TimeInForceTypeGTC).
				Price(req.Price.String())
		default:
			svc = svc.Type(futures.OrderTypeMarket).
				NewOrderResponseType(futures.NewOrderRespTypeRESULT)
		}
		if req.ReduceOnly {
			svc = svc.ReduceOnly(true)
		}
		if req.ClientOrderID != "" {
			svc = svc.NewClientOrderID(req.ClientOrderID)
		}

		order, err := svc.Do(ctx)
		if err != nil {
			return err
		}
		resp = translateOrderResponse(order)
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info(ctx, op+" successful", map[string]interface{}{
		"symbol": req.Symbol, "side": req.Side, "kind": req.Kind, "quantity": req.Size.String(),
		"orderID": resp.OrderID, "status": resp.Status, "avgPrice": resp.AvgPrice.String(),
	})
	return resp, nil
}

// PlaceStopMarketOrder places a stop-market order triggered on the mark price.
func (c *Client) PlaceStopMarketOrder(ctx context.Context, symbol string, side domain.OrderSide, size, triggerPrice decimal.Decimal, reduceOnly bool) (*ports.OrderResponse, error) {
	return c.placeConditional(ctx, "PlaceStopMarketOrder", futures.OrderTypeStopMarket, symbol, side, size, triggerPrice, reduceOnly)
}

// PlaceTakeProfitOrder places a take-profit-market order triggered on the mark price.
func (c *Client) PlaceTakeProfitOrder(ctx context.Context, symbol string, side domain.OrderSide, size, triggerPrice decimal.Decimal, reduceOnly bool) (*ports.OrderResponse, error) {
	return c.placeConditional(ctx, "PlaceTakeProfitOrder", futures.OrderTypeTakeProfitMarket, symbol, side, size, triggerPrice, reduceOnly)
}

func (c *Client) placeConditional(ctx context.Context, op string, kind futures.OrderType, symbol string, side domain.OrderSide, size, triggerPrice decimal.Decimal, reduceOnly bool) (*ports.OrderResponse, error) {
	fields := map[string]interface{}{
		"symbol":    symbol,
		"side":      side,
		"quantity":  size.String(),
		"stopPrice": triggerPrice.String(),
		"type":      string(kind),
	}
	clientID := uuid.NewString()
	fields["clientOrderID"] = clientID
	c.logger.Debug(ctx, op+": Attempting to place conditional order", fields)

	var resp *ports.OrderResponse
	err := c.call(ctx, op, func(ctx context.Context) error {
		svc := c.futuresClient.NewCreateOrderService().
			Symbol(symbol).
			Side(futures.SideType(side)).
			Type(kind).
			Quantity(size.String()).
			StopPrice(triggerPrice.String()).
			WorkingType(futures.WorkingTypeMarkPrice).
			NewClientOrderID(clientID)
		if reduceOnly {
			svc = svc.ReduceOnly(true)
		}
		order, err := svc.Do(ctx)
		if err != nil {
			return err
		}
		resp = translateOrderResponse(order)
		return nil
	})
	if err != nil {
		return nil, err
	}

	fields["orderID"] = resp.OrderID
	fields["status"] = resp.Status
	c.logger.Info(ctx, op+" successful", fields)
	return resp, nil
}

// CancelOrder cancels an open order on Binance.
func (c *Client) CancelOrder(ctx context.Context, symbol string, orderID string) (*ports.OrderResponse, error) {
	op := "CancelOrder"
	id, err := strconv.ParseInt(orderID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%s failed: %w: order id %q: %w", op, ports.ErrInvalidRequest, orderID, err)
	}
	c.logger.Debug(ctx, "Attempting to cancel order", map[string]interface{}{"symbol": symbol, "orderID": orderID})

	var resp *ports.OrderResponse
	err = c.call(ctx, op, func(ctx context.Context) error {
		res, err := c.futuresClient.NewCancelOrderService().
			Symbol(symbol).
			OrderID(id).
			Do(ctx)
		if err != nil {
			return err
		}
		// CancelOrderResponse cannot be converted directly.
		resp = translateOrderResponse(&futures.CreateOrderResponse{
			OrderID:       res.OrderID,
			Symbol:        res.Symbol,
			ClientOrderID: res.ClientOrderID,
			Price:         res.Price,
			OrigQuantity:  res.OrigQuantity,
			Status:        res.Status,
			TimeInForce:   res.TimeInForce,
			Type:          res.Type,
			Side:          res.Side,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info(ctx, op+" successful", map[string]interface{}{"symbol": symbol, "orderID": orderID, "status": resp.Status})
	return resp, nil
}

// GetAccountState retrieves margin balances and the non-flat positions.
func (c *Client) GetAccountState(ctx context.Context) (*ports.AccountState, error) {
	op := "GetAccountState"
	var account *futures.Account
	err := c.call(ctx, op, func(ctx context.Context) error {
		var err error
		account, err = c.futuresClient.NewGetAccountService().Do(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}

	state, err := translateAccount(account)
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}

	positions, err := c.GetPositions(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range positions {
		if !p.Size.IsZero() {
			state.Positions = append(state.Positions, p)
		}
	}
	return state, nil
}

// GetPositions retrieves all positions, including flat ones.
func (c *Client) GetPositions(ctx context.Context) ([]ports.PositionInfo, error) {
	op := "GetPositions"
	var risks []*futures.PositionRisk
	err := c.call(ctx, op, func(ctx context.Context) error {
		var err error
		risks, err = c.futuresClient.NewGetPositionRiskService().Do(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}

	now := time.Now()
	out := make([]ports.PositionInfo, 0, len(risks))
	for _, r := range risks {
		info, err := translatePositionRisk(r, now)
		if err != nil {
			return nil, c.handleError(ctx, err, op)
		}
		out = append(out, info)
	}
	return out, nil
}

// ClosePosition flattens symbol with a reduce-only market order.
// A flat symbol yields a nil response and no error.
func (c *Client) ClosePosition(ctx context.Context, symbol string) (*ports.OrderResponse, error) {
	op := "ClosePosition"
	var risks []*futures.PositionRisk
	err := c.call(ctx, op, func(ctx context.Context) error {
		var err error
		risks, err = c.futuresClient.NewGetPositionRiskService().Symbol(symbol).Do(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}

	for _, r := range risks {
		info, err := translatePositionRisk(r, time.Now())
		if err != nil {
			return nil, c.handleError(ctx, err, op)
		}
		if info.Size.IsZero() {
			continue
		}
		c.logger.Info(ctx, op+": flattening position", map[string]interface{}{
			"symbol": symbol, "side": info.Side, "size": info.Size.String(),
		})
		return c.PlaceOrder(ctx, ports.OrderRequest{
			Symbol:     symbol,
			Side:       info.Side.ExitSide(),
			Kind:       domain.KindMarket,
			Size:       info.Size,
			ReduceOnly: true,
		})
	}

	c.logger.Debug(ctx, op+": no open position", map[string]interface{}{"symbol": symbol})
	return nil, nil
}

// --- Translation Helpers ---

func parseDecimal(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func translateOrderResponse(order *futures.CreateOrderResponse) *ports.OrderResponse {
	if order == nil {
		return nil
	}
	ts := time.Now()
	if order.UpdateTime > 0 {
		ts = time.UnixMilli(order.UpdateTime)
	}
	return &ports.OrderResponse{
		OrderID:       strconv.FormatInt(order.OrderID, 10),
		Symbol:        order.Symbol,
		ClientOrderID: order.ClientOrderID,
		Side:          domain.OrderSide(order.Side),
		Type:          string(order.Type),
		Status:        string(order.Status),
		Price:         parseDecimal(order.Price),
		StopPrice:     parseDecimal(order.StopPrice),
		AvgPrice:      parseDecimal(order.AvgPrice),
		OrigQuantity:  parseDecimal(order.OrigQuantity),
		ExecutedQty:   parseDecimal(order.ExecutedQuantity),
		Timestamp:     ts,
	}
}

func translateAccount(a *futures.Account) (*ports.AccountState, error) {
	if a == nil {
		return nil, errors.New("received nil account")
	}
	equity, err := decimal.NewFromString(a.TotalMarginBalance)
	if err != nil {
		return nil, fmt.Errorf("parsing margin balance '%s': %w", a.TotalMarginBalance, err)
	}
	available, err := decimal.NewFromString(a.AvailableBalance)
	if err != nil {
		return nil, fmt.Errorf("parsing available balance '%s': %w", a.AvailableBalance, err)
	}
	return &ports.AccountState{
		Equity:          equity,
		AvailableMargin: available,
		MarginUsed:      parseDecimal(a.TotalInitialMargin),
		UnrealizedPnL:   parseDecimal(a.TotalUnrealizedProfit),
	}, nil
}

func translatePositionRisk(pos *futures.PositionRisk, now time.Time) (ports.PositionInfo, error) {
	if pos == nil {
		return ports.PositionInfo{}, errors.New("received nil position risk")
	}
	amt, err := decimal.NewFromString(pos.PositionAmt)
	if err != nil {
		return ports.PositionInfo{}, fmt.Errorf("parsing position amount '%s': %w", pos.PositionAmt, err)
	}
	side := domain.Long
	if amt.IsNegative() {
		side = domain.Short
	}
	leverage, _ := strconv.Atoi(pos.Leverage)

	return ports.PositionInfo{
		Symbol:        pos.Symbol,
		Side:          side,
		Size:          amt.Abs(),
		EntryPrice:    parseDecimal(pos.EntryPrice),
		MarkPrice:     parseDecimal(pos.MarkPrice),
		UnrealizedPnL: parseDecimal(pos.UnRealizedProfit),
		Leverage:      leverage,
		Timestamp:     now,
	}, nil
}
