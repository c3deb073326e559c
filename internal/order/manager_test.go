package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"futuresGuard/internal/domain"
	"futuresGuard/internal/ports"
)

type mockLogger struct {
	mu        sync.Mutex
	errorMsgs []string
	warnMsgs  []string
}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.warnMsgs = append(m.warnMsgs, msg)
}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorMsgs = append(m.errorMsgs, msg)
}

func (m *mockLogger) hasError(fragment string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, msg := range m.errorMsgs {
		if strings.Contains(msg, fragment) {
			return true
		}
	}
	return false
}

// mockExchange answers placement calls from keyed responses ("market_BUY", "stop_SELL",
// "tp_SELL", "limit_BUY") and counts every call.
type mockExchange struct {
	mu             sync.Mutex
	nextID         int
	orderStatus    map[string]string // Status reported for a key; default NEW
	orderErrors    map[string]error
	cancelErrors   map[string]error
	positions      []ports.PositionInfo
	positionsErr   error
	cancelCalls    map[string]int
	placeCalls     map[string]int
	positionCalls  int
	leverageCalled int
	beforePlace    map[string]func() // Runs outside the lock before a keyed placement answers
}

// Market entries fill immediately unless a test overrides the status.
func newMockExchange() *mockExchange {
	return &mockExchange{
		orderStatus:  map[string]string{"market_BUY": ports.ExchangeStatusFilled, "market_SELL": ports.ExchangeStatusFilled},
		orderErrors:  make(map[string]error),
		cancelErrors: make(map[string]error),
		cancelCalls:  make(map[string]int),
		placeCalls:   make(map[string]int),
		beforePlace:  make(map[string]func()),
	}
}

func (m *mockExchange) respond(key, symbol string, side domain.OrderSide, size decimal.Decimal) (*ports.OrderResponse, error) {
	m.mu.Lock()
	hook := m.beforePlace[key]
	m.mu.Unlock()
	if hook != nil {
		hook()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.placeCalls[key]++
	if err := m.orderErrors[key]; err != nil {
		return nil, err
	}
	m.nextID++
	status := m.orderStatus[key]
	if status == "" {
		status = ports.ExchangeStatusNew
	}
	executed := decimal.Zero
	if status == ports.ExchangeStatusFilled {
		executed = size
	}
	return &ports.OrderResponse{
		OrderID:      fmt.Sprintf("%d", m.nextID),
		Symbol:       symbol,
		Side:         side,
		Status:       status,
		AvgPrice:     decimal.NewFromInt(100),
		OrigQuantity: size,
		ExecutedQty:  executed,
	}, nil
}

func (m *mockExchange) PlaceOrder(ctx context.Context, req ports.OrderRequest) (*ports.OrderResponse, error) {
	return m.respond(string(req.Kind)+"_"+string(req.Side), req.Symbol, req.Side, req.Size)
}

func (m *mockExchange) PlaceStopMarketOrder(ctx context.Context, symbol string, side domain.OrderSide, size, trigger decimal.Decimal, reduceOnly bool) (*ports.OrderResponse, error) {
	return m.respond("stop_"+string(side), symbol, side, size)
}

func (m *mockExchange) PlaceTakeProfitOrder(ctx context.Context, symbol string, side domain.OrderSide, size, trigger decimal.Decimal, reduceOnly bool) (*ports.OrderResponse, error) {
	return m.respond("tp_"+string(side), symbol, side, size)
}

func (m *mockExchange) CancelOrder(ctx context.Context, symbol string, orderID string) (*ports.OrderResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelCalls[orderID]++
	if err := m.cancelErrors[orderID]; err != nil {
		return nil, err
	}
	return &ports.OrderResponse{OrderID: orderID, Symbol: symbol, Status: ports.ExchangeStatusCanceled}, nil
}

func (m *mockExchange) GetPositions(ctx context.Context) ([]ports.PositionInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.positionCalls++
	if m.positionsErr != nil {
		return nil, m.positionsErr
	}
	return append([]ports.PositionInfo(nil), m.positions...), nil
}

func (m *mockExchange) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.leverageCalled++
	return nil
}

func (m *mockExchange) setPositions(infos ...ports.PositionInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.positions = infos
}

func (m *mockExchange) cancels(orderID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cancelCalls[orderID]
}

func (m *mockExchange) totalCancels() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.cancelCalls {
		n += c
	}
	return n
}

func (m *mockExchange) places(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.placeCalls[key]
}

func (m *mockExchange) positionQueries() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.positionCalls
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newTestManager(t *testing.T, ex *mockExchange, opts ...func(*Config)) (*Manager, *mockLogger) {
	t.Helper()
	logger := &mockLogger{}
	cfg := Config{
		DefaultTimeout: 50 * time.Millisecond,
		GraceInterval:  time.Millisecond,
		RetryBaseDelay: 5 * time.Millisecond,
		MaxRetries:     3,
		Logger:         logger,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	m, err := NewManager(ex, cfg)
	require.NoError(t, err)
	t.Cleanup(m.Close)
	return m, logger
}

func btcPosition(size string) ports.PositionInfo {
	return ports.PositionInfo{Symbol: "BTCUSDT", Side: domain.Long, Size: d(size), MarkPrice: d("50000")}
}

func protectedEntry(t *testing.T, m *Manager) domain.OrderResult {
	t.Helper()
	res, err := m.PlaceMarketOrder(context.Background(), MarketOrderRequest{
		Symbol:     "BTCUSDT",
		Side:       domain.Buy,
		Size:       d("1"),
		StopLoss:   domain.Price(d("49000")),
		TakeProfit: domain.Price(d("52000")),
	})
	require.NoError(t, err)
	require.True(t, res.Success)
	return res
}

func TestManager_PlaceMarketOrderWithOCO(t *testing.T) {
	ex := newMockExchange()
	ex.setPositions(btcPosition("1"))
	m, _ := newTestManager(t, ex)

	res := protectedEntry(t, m)
	assert.True(t, res.Protected)
	assert.NotEmpty(t, res.OCOPairID)
	assert.Equal(t, domain.OrderFilled, res.Status)
	assert.True(t, d("1").Equal(res.FilledSize))

	pairs := m.OCOPairs()
	require.Len(t, pairs, 1)
	assert.Equal(t, "BTCUSDT", pairs[0].Symbol)
	assert.Len(t, m.ActiveOrders(), 2, "only the two protective legs stay active")
	assert.Equal(t, 1, ex.places("stop_SELL"))
	assert.Equal(t, 1, ex.places("tp_SELL"))
}

func TestManager_OCOSingleSurvivor(t *testing.T) {
	for _, filledLeg := range []string{"stop", "tp"} {
		t.Run(filledLeg, func(t *testing.T) {
			ex := newMockExchange()
			ex.setPositions(btcPosition("1"))
			m, _ := newTestManager(t, ex)
			protectedEntry(t, m)

			pair := m.OCOPairs()[0]
			filled, other := pair.StopLossOrderID, pair.TakeProfitOrderID
			if filledLeg == "tp" {
				filled, other = other, filled
			}

			o, ok := m.OnFill(context.Background(), filled)
			require.True(t, ok)
			assert.Equal(t, domain.OrderFilled, o.Status)
			assert.Equal(t, 1, ex.cancels(other))
			assert.Equal(t, 0, ex.cancels(filled))
			assert.Empty(t, m.OCOPairs())
			_, stillActive := m.Order(other)
			assert.False(t, stillActive)

			// Sibling fill arriving late is a no-op.
			_, ok = m.OnFill(context.Background(), other)
			assert.False(t, ok)
			assert.Equal(t, 1, ex.cancels(other))
		})
	}
}

func TestManager_ConcurrentLegFills(t *testing.T) {
	ex := newMockExchange()
	ex.setPositions(btcPosition("1"))
	m, _ := newTestManager(t, ex)
	protectedEntry(t, m)
	pair := m.OCOPairs()[0]

	var wg sync.WaitGroup
	results := make([]bool, 2)
	for i, id := range []string{pair.StopLossOrderID, pair.TakeProfitOrderID} {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			_, results[i] = m.OnFill(context.Background(), id)
		}(i, id)
	}
	wg.Wait()

	assert.NotEqual(t, results[0], results[1], "exactly one fill wins")
	assert.Equal(t, 1, ex.totalCancels())
	assert.Empty(t, m.OCOPairs())
	assert.Empty(t, m.ActiveOrders())
}

// activeLeg polls until a leg of kind is registered, or gives up after a second.
func activeLeg(m *Manager, kind domain.OrderKind) (domain.Order, bool) {
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		for _, o := range m.ActiveOrders() {
			if o.Kind == kind {
				return o, true
			}
		}
		time.Sleep(time.Millisecond)
	}
	return domain.Order{}, false
}

func TestManager_LegFillDuringSiblingPlacement(t *testing.T) {
	for _, tc := range []struct {
		name     string
		heldKey  string
		fillKind domain.OrderKind
	}{
		{name: "stop fills while target is placed", heldKey: "tp_SELL", fillKind: domain.KindStopMarket},
		{name: "target fills while stop is placed", heldKey: "stop_SELL", fillKind: domain.KindTakeProfit},
	} {
		t.Run(tc.name, func(t *testing.T) {
			ex := newMockExchange()
			ex.setPositions(btcPosition("1"))
			m, _ := newTestManager(t, ex, func(c *Config) { c.RetryBaseDelay = time.Hour })
			ctx := context.Background()

			var filled domain.Order
			var handled bool
			ex.beforePlace[tc.heldKey] = func() {
				leg, ok := activeLeg(m, tc.fillKind)
				if ok {
					filled, handled = m.OnFill(ctx, leg.ID)
				}
			}

			res, err := m.Protect(ctx, "BTCUSDT", domain.Long, d("1"), domain.Price(d("49000")), domain.Price(d("52000")))
			require.NoError(t, err)

			require.True(t, handled, "the early fill must find its leg")
			assert.Equal(t, tc.fillKind, filled.Kind)
			assert.False(t, res.Protected)
			assert.Empty(t, m.OCOPairs())
			assert.Empty(t, m.ActiveOrders(), "the late sibling is cancelled, not paired")
			assert.Equal(t, 1, ex.totalCancels())
			assert.Equal(t, 0, ex.cancels(filled.ID))
			assert.Equal(t, 0, m.ExecutionSummary().PendingProtections)
		})
	}
}

func TestManager_SiblingCancelFailureIsLogged(t *testing.T) {
	ex := newMockExchange()
	ex.setPositions(btcPosition("1"))
	m, logger := newTestManager(t, ex)
	protectedEntry(t, m)
	pair := m.OCOPairs()[0]
	ex.cancelErrors[pair.TakeProfitOrderID] = ports.ErrConnectivity

	_, ok := m.OnFill(context.Background(), pair.StopLossOrderID)
	require.True(t, ok)
	assert.Equal(t, 1, ex.cancels(pair.TakeProfitOrderID))
	assert.True(t, logger.hasError("OCO sibling may still be live"))
}

func TestManager_OnRetiredReportsExpiryAndCancel(t *testing.T) {
	ex := newMockExchange()
	var mu sync.Mutex
	retired := make(map[string]domain.OrderStatus)
	m, _ := newTestManager(t, ex, func(c *Config) {
		c.OnRetired = func(o domain.Order) {
			mu.Lock()
			defer mu.Unlock()
			retired[o.ID] = o.Status
		}
	})
	ctx := context.Background()
	limit := func(timeout time.Duration) string {
		res, err := m.PlaceLimitOrder(ctx, LimitOrderRequest{Symbol: "BTCUSDT", Side: domain.Buy, Size: d("1"), Price: d("49000"), Timeout: timeout})
		require.NoError(t, err)
		return res.OrderID
	}

	expiring := limit(10 * time.Millisecond)
	cancelled := limit(0)
	filled := limit(0)
	require.NoError(t, m.CancelOrder(ctx, "BTCUSDT", cancelled))
	_, ok := m.OnFill(ctx, filled)
	require.True(t, ok)

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return retired[expiring] == domain.OrderExpired
	}, time.Second, 5*time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, domain.OrderCancelled, retired[cancelled])
	_, reported := retired[filled]
	assert.False(t, reported, "fills are not retirements")
}

func TestManager_OneLegFailsCancelsSurvivor(t *testing.T) {
	ex := newMockExchange()
	ex.setPositions(btcPosition("1"))
	ex.orderErrors["tp_SELL"] = fmt.Errorf("%w: -2021 would immediately trigger", ports.ErrOrderPlacementFailed)
	m, _ := newTestManager(t, ex, func(c *Config) { c.RetryBaseDelay = time.Hour })

	res := protectedEntry(t, m)
	assert.False(t, res.Protected)
	assert.Empty(t, m.OCOPairs())
	assert.Equal(t, 1, ex.totalCancels(), "surviving stop leg cancelled")
	assert.Equal(t, 1, m.ExecutionSummary().PendingProtections)

	require.NoError(t, m.CancelProtection(context.Background(), "BTCUSDT"))
	assert.Equal(t, 0, m.ExecutionSummary().PendingProtections)
}

func TestManager_ExpiryCancelsExactlyOnce(t *testing.T) {
	ex := newMockExchange()
	m, _ := newTestManager(t, ex)

	res, err := m.PlaceLimitOrder(context.Background(), LimitOrderRequest{
		Symbol:  "ETHUSDT",
		Side:    domain.Buy,
		Size:    d("2"),
		Price:   d("3000"),
		Timeout: 10 * time.Millisecond,
	})
	require.NoError(t, err)
	require.True(t, res.Success)

	assert.Eventually(t, func() bool { return ex.cancels(res.OrderID) == 1 }, time.Second, 2*time.Millisecond)
	_, ok := m.Order(res.OrderID)
	assert.False(t, ok)

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 1, ex.cancels(res.OrderID))
	assert.Equal(t, 1, m.ExecutionSummary().Expired)

	// A fill notification after expiry does nothing.
	_, ok = m.OnFill(context.Background(), res.OrderID)
	assert.False(t, ok)
}

func TestManager_ExpiryPurgesOnCancelFailure(t *testing.T) {
	ex := newMockExchange()
	m, logger := newTestManager(t, ex)
	ex.cancelErrors["1"] = fmt.Errorf("%w: i/o timeout", ports.ErrTimeout)

	res, err := m.PlaceLimitOrder(context.Background(), LimitOrderRequest{
		Symbol: "ETHUSDT", Side: domain.Sell, Size: d("1"), Price: d("3100"), Timeout: UseDefaultTimeout,
	})
	require.NoError(t, err)
	require.Equal(t, "1", res.OrderID)

	assert.Eventually(t, func() bool { return ex.cancels("1") == 1 }, time.Second, 2*time.Millisecond)
	assert.Eventually(t, func() bool { return len(m.ActiveOrders()) == 0 }, time.Second, 2*time.Millisecond)
	assert.False(t, logger.hasError("expire"), "cancel failure on expiry is a warning, not an error")
}

func TestManager_FillBeforeExpiryStopsTimer(t *testing.T) {
	ex := newMockExchange()
	m, _ := newTestManager(t, ex)

	res, err := m.PlaceLimitOrder(context.Background(), LimitOrderRequest{
		Symbol: "ETHUSDT", Side: domain.Buy, Size: d("1"), Price: d("3000"), Timeout: 20 * time.Millisecond,
	})
	require.NoError(t, err)

	_, ok := m.OnFill(context.Background(), res.OrderID)
	require.True(t, ok)

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, 0, ex.cancels(res.OrderID))
	assert.Equal(t, 0, m.ExecutionSummary().Expired)
	assert.Equal(t, 1, m.ExecutionSummary().Filled)
}

func TestManager_ExpiryRacesFill(t *testing.T) {
	for i := 0; i < 20; i++ {
		ex := newMockExchange()
		m, _ := newTestManager(t, ex)
		res, err := m.PlaceLimitOrder(context.Background(), LimitOrderRequest{
			Symbol: "ETHUSDT", Side: domain.Buy, Size: d("1"), Price: d("3000"), Timeout: time.Millisecond,
		})
		require.NoError(t, err)

		time.Sleep(time.Millisecond)
		_, filled := m.OnFill(context.Background(), res.OrderID)

		assert.Eventually(t, func() bool { return len(m.ActiveOrders()) == 0 }, time.Second, time.Millisecond)
		time.Sleep(5 * time.Millisecond)
		sum := m.ExecutionSummary()
		assert.Equal(t, 1, sum.Filled+sum.Expired, "exactly one outcome wins")
		if filled {
			assert.Equal(t, 0, ex.cancels(res.OrderID))
		} else {
			assert.Equal(t, 1, ex.cancels(res.OrderID))
		}
	}
}

func TestManager_RetryStopsWhenPositionDisappears(t *testing.T) {
	ex := newMockExchange()
	ex.setPositions(btcPosition("1"))
	ex.orderErrors["stop_SELL"] = fmt.Errorf("%w: temporarily unavailable", ports.ErrOrderPlacementFailed)
	m, _ := newTestManager(t, ex)

	res := protectedEntry(t, m)
	assert.False(t, res.Protected)
	ex.setPositions()

	assert.Eventually(t, func() bool { return m.ExecutionSummary().PendingProtections == 0 }, time.Second, 2*time.Millisecond)
	assert.Equal(t, 1, ex.places("stop_SELL"), "no further leg placement once the position is gone")
	assert.Equal(t, 0, ex.places("market_SELL"), "entry never rolled back")
}

func TestManager_UnprotectedAfterRetriesExhausted(t *testing.T) {
	ex := newMockExchange()
	m, logger := newTestManager(t, ex)

	res := protectedEntry(t, m)
	assert.True(t, res.Success)
	assert.False(t, res.Protected)

	assert.Eventually(t, func() bool { return m.ExecutionSummary().PendingProtections == 0 }, time.Second, 2*time.Millisecond)
	assert.Equal(t, 4, ex.positionQueries(), "initial attempt plus three retries")
	assert.Equal(t, 0, ex.places("stop_SELL"))
	assert.Equal(t, 0, ex.totalCancels(), "entry is not rolled back")
	assert.True(t, logger.hasError("UNPROTECTED"))
}

func TestManager_RetrySucceedsOncePositionAppears(t *testing.T) {
	ex := newMockExchange()
	m, _ := newTestManager(t, ex)

	protectedEntry(t, m)
	ex.setPositions(btcPosition("1"))

	assert.Eventually(t, func() bool { return len(m.OCOPairs()) == 1 }, time.Second, 2*time.Millisecond)
	assert.Equal(t, 0, m.ExecutionSummary().PendingProtections)
}

func TestManager_PlacementFailureIsAResult(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		status    string
		wantErrIs error
	}{
		{name: "insufficient funds", err: fmt.Errorf("%w: -2019", ports.ErrInsufficientFunds)},
		{name: "rejected status", status: ports.ExchangeStatusRejected},
		{name: "connectivity", err: fmt.Errorf("%w: dial tcp", ports.ErrConnectionFailed), wantErrIs: ports.ErrConnectivity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ex := newMockExchange()
			if tt.err != nil {
				ex.orderErrors["market_BUY"] = tt.err
			}
			ex.orderStatus["market_BUY"] = tt.status
			m, _ := newTestManager(t, ex)

			res, err := m.PlaceMarketOrder(context.Background(), MarketOrderRequest{Symbol: "BTCUSDT", Side: domain.Buy, Size: d("1")})
			assert.False(t, res.Success)
			assert.Equal(t, domain.OrderRejected, res.Status)
			assert.NotEmpty(t, res.Reason)
			if tt.wantErrIs != nil {
				assert.ErrorIs(t, err, tt.wantErrIs)
			} else {
				assert.NoError(t, err)
			}
			assert.Empty(t, m.ActiveOrders())
		})
	}
}

func TestManager_ValidationRejectsBeforeSubmission(t *testing.T) {
	ex := newMockExchange()
	m, _ := newTestManager(t, ex)

	tests := []struct {
		name string
		req  MarketOrderRequest
	}{
		{name: "no symbol", req: MarketOrderRequest{Side: domain.Buy, Size: d("1")}},
		{name: "bad side", req: MarketOrderRequest{Symbol: "BTCUSDT", Side: "HOLD", Size: d("1")}},
		{name: "zero size", req: MarketOrderRequest{Symbol: "BTCUSDT", Side: domain.Buy, Size: decimal.Zero}},
		{name: "inverted stops", req: MarketOrderRequest{Symbol: "BTCUSDT", Side: domain.Buy, Size: d("1"), StopLoss: domain.Price(d("52000")), TakeProfit: domain.Price(d("49000"))}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := m.PlaceMarketOrder(context.Background(), tt.req)
			assert.ErrorIs(t, err, ports.ErrValidation)
			assert.False(t, res.Success)
			assert.NotEmpty(t, res.Reason)
		})
	}
	assert.Equal(t, 0, ex.places("market_BUY"))
}

func TestManager_CancelOrder(t *testing.T) {
	ex := newMockExchange()
	ex.setPositions(btcPosition("1"))
	m, _ := newTestManager(t, ex)
	protectedEntry(t, m)
	pair := m.OCOPairs()[0]

	require.NoError(t, m.CancelOrder(context.Background(), "BTCUSDT", pair.StopLossOrderID))
	assert.Empty(t, m.OCOPairs(), "pair dissolved")
	tp, ok := m.Order(pair.TakeProfitOrderID)
	require.True(t, ok, "sibling stays active")
	assert.Empty(t, tp.OCOPairID)

	ex.cancelErrors["missing"] = fmt.Errorf("%w: -2011", ports.ErrOrderNotFound)
	err := m.CancelOrder(context.Background(), "BTCUSDT", "missing")
	assert.ErrorIs(t, err, ports.ErrOrderNotFound)

	ex.cancelErrors[pair.TakeProfitOrderID] = fmt.Errorf("%w: i/o timeout", ports.ErrTimeout)
	err = m.CancelOrder(context.Background(), "BTCUSDT", pair.TakeProfitOrderID)
	assert.ErrorIs(t, err, ports.ErrConnectivity)
	_, ok = m.Order(pair.TakeProfitOrderID)
	assert.True(t, ok, "order stays tracked when the exchange cancel fails")
}

func TestManager_OnProtectiveTrigger(t *testing.T) {
	ex := newMockExchange()
	ex.setPositions(btcPosition("1"))
	m, _ := newTestManager(t, ex)
	protectedEntry(t, m)
	pair := m.OCOPairs()[0]

	matched := m.OnProtectiveTrigger(context.Background(), "BTCUSDT", domain.CloseReasonStopLoss)
	assert.True(t, matched)
	assert.Equal(t, 0, ex.cancels(pair.StopLossOrderID))
	assert.Equal(t, 1, ex.cancels(pair.TakeProfitOrderID))
	assert.Empty(t, m.ActiveOrders())
	assert.Empty(t, m.OCOPairs())

	assert.False(t, m.OnProtectiveTrigger(context.Background(), "BTCUSDT", domain.CloseReasonTrailingStop))
}

func TestManager_ModifyStops(t *testing.T) {
	ex := newMockExchange()
	ex.setPositions(btcPosition("1"))
	m, _ := newTestManager(t, ex)
	protectedEntry(t, m)
	old := m.OCOPairs()[0]

	res, err := m.ModifyStops(context.Background(), "BTCUSDT", domain.Long, d("1"), domain.Price(d("49500")), domain.Price(d("53000")))
	require.NoError(t, err)
	assert.True(t, res.Protected)

	assert.Equal(t, 1, ex.cancels(old.StopLossOrderID))
	assert.Equal(t, 1, ex.cancels(old.TakeProfitOrderID))
	pairs := m.OCOPairs()
	require.Len(t, pairs, 1)
	assert.NotEqual(t, old.ID, pairs[0].ID)
}

func TestManager_CancelAll(t *testing.T) {
	ex := newMockExchange()
	ex.setPositions(btcPosition("1"))
	m, _ := newTestManager(t, ex)
	protectedEntry(t, m)
	_, err := m.PlaceLimitOrder(context.Background(), LimitOrderRequest{
		Symbol: "ETHUSDT", Side: domain.Buy, Size: d("1"), Price: d("3000"), Timeout: time.Hour,
	})
	require.NoError(t, err)

	require.NoError(t, m.CancelAll(context.Background()))
	assert.Empty(t, m.ActiveOrders())
	assert.Empty(t, m.OCOPairs())
	assert.Equal(t, 3, ex.totalCancels())
}

func TestManager_CancelAllJoinsErrors(t *testing.T) {
	ex := newMockExchange()
	m, _ := newTestManager(t, ex)
	res, err := m.PlaceLimitOrder(context.Background(), LimitOrderRequest{
		Symbol: "ETHUSDT", Side: domain.Buy, Size: d("1"), Price: d("3000"),
	})
	require.NoError(t, err)
	ex.cancelErrors[res.OrderID] = errors.New("exchange down")

	err = m.CancelAll(context.Background())
	assert.Error(t, err)
	assert.Empty(t, m.ActiveOrders(), "registry cleared regardless")
}

func TestManager_SetLeverage(t *testing.T) {
	ex := newMockExchange()
	m, _ := newTestManager(t, ex)
	assert.ErrorIs(t, m.SetLeverage(context.Background(), "BTCUSDT", 0), ports.ErrValidation)
	assert.NoError(t, m.SetLeverage(context.Background(), "BTCUSDT", 5))
	assert.Equal(t, 1, ex.leverageCalled)
}
