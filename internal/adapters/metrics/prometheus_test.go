package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"futuresGuard/internal/ports"
)

var _ ports.Metrics = (*Prometheus)(nil)

func TestPrometheus_Gauges(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.SetRiskScore(45)
	m.SetKillSwitch(true)
	m.SetTradingPaused(false)
	m.SetEquity(decimal.RequireFromString("10150.5"))
	m.SetDrawdownPct(decimal.RequireFromString("2.5"))
	m.SetOpenPositions(3)

	assert.Equal(t, 45.0, testutil.ToFloat64(m.riskScore))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.killSwitch))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.tradingPaused))
	assert.Equal(t, 10150.5, testutil.ToFloat64(m.equity))
	assert.Equal(t, 2.5, testutil.ToFloat64(m.drawdownPct))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.openPositions))

	m.SetKillSwitch(false)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.killSwitch))
}

func TestPrometheus_Counters(t *testing.T) {
	m := New(nil)

	m.IncRiskEvent("leverage", "high")
	m.IncRiskEvent("leverage", "high")
	m.IncRiskEvent("account", "critical")
	m.IncOrder("market", "filled")
	m.ObserveExchangeCall("PlaceOrder", 120*time.Millisecond, nil)
	m.ObserveExchangeCall("PlaceOrder", 80*time.Millisecond, errors.New("down"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.riskEvents.WithLabelValues("leverage", "high")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.riskEvents.WithLabelValues("account", "critical")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.orders.WithLabelValues("market", "filled")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.exchangeErrors.WithLabelValues("PlaceOrder")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.exchangeLatency))
}

func TestPrometheus_Handler(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.SetRiskScore(10)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "futures_guard_risk_score 10")
	assert.Contains(t, string(body), "futures_guard_kill_switch_active 0")
}
