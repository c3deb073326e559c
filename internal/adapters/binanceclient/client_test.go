package binanceclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/adshao/go-binance/v2/common"
	"github.com/adshao/go-binance/v2/futures"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"futuresGuard/internal/domain"
	"futuresGuard/internal/ports"
)

type mockLogger struct{}

func (mockLogger) Debug(context.Context, string, ...map[string]interface{})        {}
func (mockLogger) Info(context.Context, string, ...map[string]interface{})         {}
func (mockLogger) Warn(context.Context, string, ...map[string]interface{})         {}
func (mockLogger) Error(context.Context, error, string, ...map[string]interface{}) {}

type recordingMetrics struct {
	ports.NopMetrics
	ops []string
}

func (m *recordingMetrics) ObserveExchangeCall(op string, _ time.Duration, _ error) {
	m.ops = append(m.ops, op)
}

func newTestClient(t *testing.T, m ports.Metrics) *Client {
	t.Helper()
	c, err := New(Config{APIKey: "k", SecretKey: "s", UseTestnet: true, Logger: mockLogger{}, Metrics: m})
	require.NoError(t, err)
	return c
}

func TestNew(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)

	c := newTestClient(t, nil)
	assert.Equal(t, baseURLTestnet, c.futuresClient.BaseURL)
	assert.Equal(t, defaultRequestTimeout, c.requestTimeout)
	assert.False(t, c.GetConnectionStatus().Connected)
	assert.True(t, c.GetConnectionStatus().LastRequestTime.IsZero())
}

func TestHandleError(t *testing.T) {
	c := newTestClient(t, nil)
	ctx := context.Background()

	tests := []struct {
		name         string
		err          error
		want         error
		connectivity bool
	}{
		{"rate limited", &common.APIError{Code: -1003, Message: "too many"}, ports.ErrRateLimited, true},
		{"insufficient margin", &common.APIError{Code: -2019, Message: "margin"}, ports.ErrInsufficientFunds, false},
		{"unknown order", &common.APIError{Code: -2013, Message: "gone"}, ports.ErrOrderNotFound, false},
		{"bad keys", &common.APIError{Code: -2015, Message: "keys"}, ports.ErrInvalidAPIKeys, false},
		{"unmapped code", &common.APIError{Code: -9999, Message: "?"}, ports.ErrUnknown, false},
		{"deadline", fmt.Errorf("wrapped: %w", context.DeadlineExceeded), ports.ErrTimeout, true},
		{"refused", errors.New("dial tcp: connection refused"), ports.ErrConnectionFailed, true},
		{"canceled", context.Canceled, ports.ErrContextCanceled, false},
		{"other", errors.New("boom"), ports.ErrUnknown, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.handleError(ctx, tt.err, "op")
			require.Error(t, got)
			assert.ErrorIs(t, got, tt.want)
			assert.Equal(t, tt.connectivity, ports.IsConnectivity(got))
			assert.Contains(t, got.Error(), "op")
		})
	}
	assert.NoError(t, c.handleError(ctx, nil, "op"))
}

func TestCall_TracksConnectivity(t *testing.T) {
	m := &recordingMetrics{}
	c := newTestClient(t, m)
	ctx := context.Background()

	require.NoError(t, c.call(ctx, "Ping", func(context.Context) error { return nil }))
	st := c.GetConnectionStatus()
	assert.True(t, st.Connected)
	assert.False(t, st.LastRequestTime.IsZero())

	// Business errors leave the link marked up.
	err := c.call(ctx, "PlaceOrder", func(context.Context) error {
		return &common.APIError{Code: -2019, Message: "margin"}
	})
	require.ErrorIs(t, err, ports.ErrInsufficientFunds)
	assert.True(t, c.GetConnectionStatus().Connected)

	err = c.call(ctx, "GetAccountState", func(context.Context) error {
		return errors.New("read: connection reset by peer")
	})
	require.ErrorIs(t, err, ports.ErrConnectivity)
	assert.False(t, c.GetConnectionStatus().Connected)

	assert.Equal(t, []string{"Ping", "PlaceOrder", "GetAccountState"}, m.ops)
}

func TestCall_AppliesRequestTimeout(t *testing.T) {
	c := newTestClient(t, nil)
	c.requestTimeout = 20 * time.Millisecond

	err := c.call(context.Background(), "GetMarkPrice", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	require.ErrorIs(t, err, ports.ErrTimeout)
	assert.True(t, ports.IsConnectivity(err))
}

func TestPlaceOrder_RejectsBadInput(t *testing.T) {
	c := newTestClient(t, nil)
	_, err := c.PlaceOrder(context.Background(), ports.OrderRequest{Symbol: "BTCUSDT", Side: "HOLD"})
	assert.ErrorIs(t, err, ports.ErrInvalidRequest)

	_, err = c.CancelOrder(context.Background(), "BTCUSDT", "not-a-number")
	assert.ErrorIs(t, err, ports.ErrInvalidRequest)
}

func TestPlaceConditional_SendsClientOrderID(t *testing.T) {
	var (
		mu  sync.Mutex
		got []map[string]string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		mu.Lock()
		defer mu.Unlock()
		got = append(got, map[string]string{
			"type":          r.Form.Get("type"),
			"clientOrderId": r.Form.Get("newClientOrderId"),
			"reduceOnly":    r.Form.Get("reduceOnly"),
			"workingType":   r.Form.Get("workingType"),
		})
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"orderId":%d,"symbol":"BTCUSDT","clientOrderId":%q,"status":"NEW","type":%q,"side":"SELL","stopPrice":"90","origQty":"1"}`,
			len(got), r.Form.Get("newClientOrderId"), r.Form.Get("type"))
	}))
	defer srv.Close()

	c := newTestClient(t, nil)
	c.futuresClient.BaseURL = srv.URL
	ctx := context.Background()

	stop, err := c.PlaceStopMarketOrder(ctx, "BTCUSDT", domain.Sell, decimal.NewFromInt(1), decimal.NewFromInt(90), true)
	require.NoError(t, err)
	tp, err := c.PlaceTakeProfitOrder(ctx, "BTCUSDT", domain.Sell, decimal.NewFromInt(1), decimal.NewFromInt(120), true)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 2)
	assert.Equal(t, "STOP_MARKET", got[0]["type"])
	assert.Equal(t, "TAKE_PROFIT_MARKET", got[1]["type"])
	for i, form := range got {
		assert.NotEmpty(t, form["clientOrderId"], "leg %d", i)
		assert.Equal(t, "true", form["reduceOnly"], "leg %d", i)
		assert.Equal(t, "MARK_PRICE", form["workingType"], "leg %d", i)
	}
	assert.NotEqual(t, got[0]["clientOrderId"], got[1]["clientOrderId"])
	assert.Equal(t, got[0]["clientOrderId"], stop.ClientOrderID)
	assert.Equal(t, got[1]["clientOrderId"], tp.ClientOrderID)
	assert.Equal(t, "1", stop.OrderID)
}

func TestTranslateOrderResponse(t *testing.T) {
	assert.Nil(t, translateOrderResponse(nil))

	resp := translateOrderResponse(&futures.CreateOrderResponse{
		OrderID:          42,
		Symbol:           "BTCUSDT",
		Side:             futures.SideTypeSell,
		Type:             futures.OrderTypeStopMarket,
		Status:           futures.OrderStatusTypeNew,
		StopPrice:        "49000.5",
		AvgPrice:         "0",
		OrigQuantity:     "0.010",
		ExecutedQuantity: "",
		UpdateTime:       1700000000000,
	})
	require.NotNil(t, resp)
	assert.Equal(t, "42", resp.OrderID)
	assert.Equal(t, domain.Sell, resp.Side)
	assert.Equal(t, ports.ExchangeStatusNew, resp.Status)
	assert.True(t, decimal.RequireFromString("49000.5").Equal(resp.StopPrice))
	assert.True(t, decimal.RequireFromString("0.01").Equal(resp.OrigQuantity))
	assert.True(t, resp.ExecutedQty.IsZero())
	assert.Equal(t, time.UnixMilli(1700000000000), resp.Timestamp)
}

func TestTranslatePositionRisk(t *testing.T) {
	now := time.Now()
	info, err := translatePositionRisk(&futures.PositionRisk{
		Symbol:           "ETHUSDT",
		PositionAmt:      "-1.5",
		EntryPrice:       "3000",
		MarkPrice:        "2900",
		UnRealizedProfit: "150",
		Leverage:         "5",
	}, now)
	require.NoError(t, err)
	assert.Equal(t, domain.Short, info.Side)
	assert.True(t, decimal.RequireFromString("1.5").Equal(info.Size))
	assert.True(t, decimal.NewFromInt(2900).Equal(info.MarkPrice))
	assert.Equal(t, 5, info.Leverage)
	assert.Equal(t, now, info.Timestamp)

	_, err = translatePositionRisk(&futures.PositionRisk{PositionAmt: "x"}, now)
	assert.Error(t, err)
}

func TestTranslateAccount(t *testing.T) {
	st, err := translateAccount(&futures.Account{
		TotalMarginBalance:    "10150",
		AvailableBalance:      "8000",
		TotalInitialMargin:    "2150",
		TotalUnrealizedProfit: "150",
	})
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(10150).Equal(st.Equity))
	assert.True(t, decimal.NewFromInt(8000).Equal(st.AvailableMargin))
	assert.True(t, decimal.NewFromInt(2150).Equal(st.MarginUsed))

	_, err = translateAccount(&futures.Account{TotalMarginBalance: "bad"})
	assert.Error(t, err)
}
