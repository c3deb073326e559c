package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"futuresGuard/internal/app"
	"futuresGuard/internal/domain"
	"futuresGuard/internal/order"
	"futuresGuard/internal/ports"
	"futuresGuard/internal/position"
	"futuresGuard/internal/risk"
)

type mockLogger struct{}

func (mockLogger) Debug(context.Context, string, ...map[string]interface{})        {}
func (mockLogger) Info(context.Context, string, ...map[string]interface{})         {}
func (mockLogger) Warn(context.Context, string, ...map[string]interface{})         {}
func (mockLogger) Error(context.Context, error, string, ...map[string]interface{}) {}

type mockService struct {
	mu          sync.Mutex
	positions   map[string]domain.ManagedPosition
	killed      bool
	paused      bool
	killErr     error
	submitErr   error
	submitRes   domain.OrderResult
	lastIntent  app.Intent
	lastStops   [2]decimal.NullDecimal
	events      []domain.RiskEvent
	cancelErr   error
	panicOnRisk bool
}

var _ Service = (*app.Portfolio)(nil)

func newMockService() *mockService {
	return &mockService{positions: map[string]domain.ManagedPosition{
		"BTCUSDT": {
			ID: "p-1", Symbol: "BTCUSDT", Side: domain.Long, Size: decimal.RequireFromString("0.01"),
			EntryPrice: decimal.NewFromInt(50000), StopLoss: domain.Price(decimal.NewFromInt(49000)),
			TakeProfit: domain.Price(decimal.NewFromInt(52000)), Status: domain.StatusOpen,
		},
	}}
}

func (m *mockService) AccountSummary() app.AccountSummary {
	return app.AccountSummary{Account: domain.AccountSnapshot{Equity: decimal.NewFromInt(10000)}}
}
func (m *mockService) PositionSummaries() []domain.PositionSummary { return nil }
func (m *mockService) Position(symbol string) (domain.ManagedPosition, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.positions[symbol]
	return p, ok
}
func (m *mockService) PositionStats() position.Stats { return position.Stats{OpenPositions: len(m.positions)} }
func (m *mockService) RiskSummary() risk.Summary {
	if m.panicOnRisk {
		panic("boom")
	}
	return risk.Summary{Status: "LOW", KillSwitchActive: m.killed}
}
func (m *mockService) ActiveRisks() []domain.RiskEvent { return m.events[:1] }
func (m *mockService) RecentRiskEvents(limit int) []domain.RiskEvent {
	if limit > len(m.events) {
		limit = len(m.events)
	}
	return m.events[:limit]
}
func (m *mockService) AcknowledgeRisk(_ context.Context, id string) error {
	for _, e := range m.events {
		if e.ID == id {
			return nil
		}
	}
	return fmt.Errorf("acknowledge %s: %w", id, ports.ErrEventNotFound)
}
func (m *mockService) ResolveRisk(ctx context.Context, id string) error {
	return m.AcknowledgeRisk(ctx, id)
}
func (m *mockService) ActivateKillSwitch(context.Context, string) error {
	m.killed = true
	return m.killErr
}
func (m *mockService) DeactivateKillSwitch(context.Context, string) { m.killed = false }
func (m *mockService) PauseTrading(context.Context, string)         { m.paused = true }
func (m *mockService) ResumeTrading(context.Context, string) bool {
	if m.killed {
		return false
	}
	m.paused = false
	return true
}
func (m *mockService) SubmitMarketOrder(_ context.Context, in app.Intent) (domain.OrderResult, error) {
	m.lastIntent = in
	return m.submitRes, m.submitErr
}
func (m *mockService) SubmitLimitOrder(ctx context.Context, in app.Intent) (domain.OrderResult, error) {
	return m.SubmitMarketOrder(ctx, in)
}
func (m *mockService) CancelOrder(context.Context, string, string) error { return m.cancelErr }
func (m *mockService) ClosePosition(_ context.Context, symbol string) (domain.ManagedPosition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.positions[symbol]
	if !ok {
		return domain.ManagedPosition{}, fmt.Errorf("close %s: %w", symbol, ports.ErrPositionNotFound)
	}
	delete(m.positions, symbol)
	p.ClosePrice = decimal.NewFromInt(51000)
	p.RealizedPnL = decimal.NewFromInt(10)
	p.CloseReason = domain.CloseReasonManual
	return p, nil
}
func (m *mockService) SetStops(_ context.Context, symbol string, sl, tp decimal.NullDecimal) (domain.ManagedPosition, error) {
	m.lastStops = [2]decimal.NullDecimal{sl, tp}
	p := m.positions[symbol]
	p.StopLoss, p.TakeProfit = sl, tp
	return p, nil
}
func (m *mockService) SetTrailingStop(symbol string, pct decimal.Decimal) (domain.ManagedPosition, error) {
	p := m.positions[symbol]
	p.TrailingDistancePct = pct
	return p, nil
}
func (m *mockService) ExecutionSummary() order.ExecutionSummary { return order.ExecutionSummary{Placed: 3} }
func (m *mockService) ActiveOrders() []domain.Order              { return nil }

func serve(t *testing.T, svc Service, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	router := NewRouter(svc, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("metrics"))
	}), mockLogger{})
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("x: %w", ports.ErrEventNotFound), http.StatusNotFound},
		{fmt.Errorf("x: %w", ports.ErrPositionNotFound), http.StatusNotFound},
		{fmt.Errorf("x: %w", ports.ErrValidation), http.StatusBadRequest},
		{fmt.Errorf("%w: %w", ports.ErrDuplicateSymbol, ports.ErrValidation), http.StatusBadRequest},
		{fmt.Errorf("x: %w: %w", ports.ErrConnectivity, ports.ErrTimeout), http.StatusServiceUnavailable},
		{fmt.Errorf("x: %w", ports.ErrRateLimited), http.StatusServiceUnavailable},
		{fmt.Errorf("x: %w", ports.ErrKillSwitch), http.StatusConflict},
		{fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}

func TestRouter_ReadEndpoints(t *testing.T) {
	svc := newMockService()
	svc.events = []domain.RiskEvent{{ID: "e-1"}, {ID: "e-2"}, {ID: "e-3"}}

	rec := serve(t, svc, http.MethodGet, "/api/v1/account", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"equity":"10000"`)

	rec = serve(t, svc, http.MethodGet, "/api/v1/execution", "")
	assert.Contains(t, rec.Body.String(), `"placed":3`)

	rec = serve(t, svc, http.MethodGet, "/api/v1/risk/events?limit=2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "e-2")
	assert.NotContains(t, rec.Body.String(), "e-3")

	rec = serve(t, svc, http.MethodGet, "/api/v1/risk/events?limit=zero", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(t, svc, http.MethodGet, "/metrics", "")
	assert.Equal(t, "metrics", rec.Body.String())

	rec = serve(t, svc, http.MethodPost, "/api/v1/account", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRouter_RiskEventNotFound(t *testing.T) {
	svc := newMockService()
	svc.events = []domain.RiskEvent{{ID: "e-1"}}

	assert.Equal(t, http.StatusOK, serve(t, svc, http.MethodPost, "/api/v1/risk/events/e-1/ack", "").Code)
	assert.Equal(t, http.StatusNotFound, serve(t, svc, http.MethodPost, "/api/v1/risk/events/nope/resolve", "").Code)
}

func TestRouter_KillSwitchAndResume(t *testing.T) {
	svc := newMockService()

	rec := serve(t, svc, http.MethodPost, "/api/v1/killswitch", `{"reason":"operator"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "operator")
	assert.True(t, svc.killed)

	rec = serve(t, svc, http.MethodPost, "/api/v1/trading/resume", "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = serve(t, svc, http.MethodDelete, "/api/v1/killswitch", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, svc.killed)

	assert.Equal(t, http.StatusOK, serve(t, svc, http.MethodPost, "/api/v1/trading/pause", "").Code)
	assert.True(t, svc.paused)
	assert.Equal(t, http.StatusOK, serve(t, svc, http.MethodPost, "/api/v1/trading/resume", "").Code)
	assert.False(t, svc.paused)

	svc.killErr = fmt.Errorf("activate: %w: flatten failed", ports.ErrKillSwitch)
	rec = serve(t, svc, http.MethodPost, "/api/v1/killswitch", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), `"active":true`)
}

func TestRouter_SubmitOrder(t *testing.T) {
	svc := newMockService()
	svc.submitRes = domain.OrderResult{Success: true, OrderID: "1", Symbol: "ETHUSDT"}

	rec := serve(t, svc, http.MethodPost, "/api/v1/orders",
		`{"symbol":"ethusdt","side":"buy","size":"0.5","price":"3000","stop_loss":"2900","leverage":3}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "ETHUSDT", svc.lastIntent.Symbol)
	assert.Equal(t, domain.Buy, svc.lastIntent.Side)
	assert.True(t, decimal.RequireFromString("0.5").Equal(svc.lastIntent.Size))
	assert.True(t, svc.lastIntent.StopLoss.Valid)
	assert.False(t, svc.lastIntent.TakeProfit.Valid)
	assert.Equal(t, order.UseDefaultTimeout, svc.lastIntent.Timeout)

	svc.submitErr = fmt.Errorf("%w: Kill switch is active", ports.ErrKillSwitch)
	rec = serve(t, svc, http.MethodPost, "/api/v1/orders", `{"symbol":"BTCUSDT","side":"BUY","size":"1"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	svc.submitErr = nil
	svc.submitRes = domain.OrderResult{Success: false, Reason: "rejected"}
	rec = serve(t, svc, http.MethodPost, "/api/v1/orders", `{"symbol":"BTCUSDT","side":"BUY","size":"1"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	assert.Equal(t, http.StatusBadRequest, serve(t, svc, http.MethodPost, "/api/v1/orders", `{"type":"iceberg"}`).Code)
	assert.Equal(t, http.StatusBadRequest, serve(t, svc, http.MethodPost, "/api/v1/orders", `{not json`).Code)
}

func TestRouter_PositionOperations(t *testing.T) {
	svc := newMockService()

	rec := serve(t, svc, http.MethodPatch, "/api/v1/positions/BTCUSDT/stops", `{"stop_loss":"49500"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decimal.NewFromInt(49500).Equal(svc.lastStops[0].Decimal))
	assert.True(t, decimal.NewFromInt(52000).Equal(svc.lastStops[1].Decimal), "absent key keeps the target")

	rec = serve(t, svc, http.MethodPatch, "/api/v1/positions/BTCUSDT/stops", `{"take_profit":null}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, svc.lastStops[1].Valid, "explicit null clears the target")

	rec = serve(t, svc, http.MethodPatch, "/api/v1/positions/BTCUSDT/stops", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(t, svc, http.MethodPatch, "/api/v1/positions/DOGEUSDT/stops", `{"stop_loss":"1"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(t, svc, http.MethodDelete, "/api/v1/positions/btcusdt", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"close_reason":"manual"`)

	rec = serve(t, svc, http.MethodDelete, "/api/v1/positions/BTCUSDT", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	svc.cancelErr = fmt.Errorf("cancel: %w: %w", ports.ErrConnectivity, ports.ErrTimeout)
	rec = serve(t, svc, http.MethodDelete, "/api/v1/orders/BTCUSDT/42", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRouter_RecoversPanics(t *testing.T) {
	svc := newMockService()
	svc.panicOnRisk = true
	rec := serve(t, svc, http.MethodGet, "/api/v1/risk", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
