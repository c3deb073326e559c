package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

const namespace = "futures_guard"

// Prometheus implements ports.Metrics on a prometheus registry.
type Prometheus struct {
	gatherer prometheus.Gatherer

	riskScore       prometheus.Gauge
	killSwitch      prometheus.Gauge
	tradingPaused   prometheus.Gauge
	equity          prometheus.Gauge
	drawdownPct     prometheus.Gauge
	openPositions   prometheus.Gauge
	riskEvents      *prometheus.CounterVec
	orders          *prometheus.CounterVec
	exchangeLatency *prometheus.HistogramVec
	exchangeErrors  *prometheus.CounterVec
}

// New registers the collectors on reg. A nil reg uses a fresh registry.
func New(reg *prometheus.Registry) *Prometheus {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)

	return &Prometheus{
		gatherer: reg,
		riskScore: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "risk_score",
			Help:      "Aggregate risk score over active events (0-100)",
		}),
		killSwitch: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "kill_switch_active",
			Help:      "Kill switch state (1=active)",
		}),
		tradingPaused: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "trading_paused",
			Help:      "Trading pause state (1=paused)",
		}),
		equity: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "equity",
			Help:      "Account equity in quote currency",
		}),
		drawdownPct: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "drawdown_pct",
			Help:      "Drawdown from peak equity in percent",
		}),
		openPositions: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "open_positions",
			Help:      "Number of positions held by the ledger",
		}),
		riskEvents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "risk_events_total",
			Help:      "Risk events raised",
		}, []string{"type", "level"}),
		orders: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_total",
			Help:      "Orders submitted by kind and outcome",
		}, []string{"kind", "outcome"}),
		exchangeLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "exchange_latency_seconds",
			Help:      "Exchange call latency",
			Buckets:   []float64{0.05, 0.1, 0.2, 0.3, 0.5, 1, 2, 5, 10},
		}, []string{"operation"}),
		exchangeErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exchange_errors_total",
			Help:      "Failed exchange calls",
		}, []string{"operation"}),
	}
}

// Handler serves the registry in the prometheus text format.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.gatherer, promhttp.HandlerOpts{})
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func (p *Prometheus) SetRiskScore(score int)   { p.riskScore.Set(float64(score)) }
func (p *Prometheus) SetKillSwitch(active bool) { p.killSwitch.Set(boolGauge(active)) }
func (p *Prometheus) SetTradingPaused(paused bool) {
	p.tradingPaused.Set(boolGauge(paused))
}

func (p *Prometheus) IncRiskEvent(riskType, level string) {
	p.riskEvents.WithLabelValues(riskType, level).Inc()
}

func (p *Prometheus) IncOrder(kind, outcome string) {
	p.orders.WithLabelValues(kind, outcome).Inc()
}

func (p *Prometheus) SetEquity(equity decimal.Decimal) { p.equity.Set(equity.InexactFloat64()) }
func (p *Prometheus) SetDrawdownPct(pct decimal.Decimal) {
	p.drawdownPct.Set(pct.InexactFloat64())
}
func (p *Prometheus) SetOpenPositions(n int) { p.openPositions.Set(float64(n)) }

// ObserveExchangeCall records latency for every call and counts failures.
func (p *Prometheus) ObserveExchangeCall(operation string, d time.Duration, err error) {
	p.exchangeLatency.WithLabelValues(operation).Observe(d.Seconds())
	if err != nil {
		p.exchangeErrors.WithLabelValues(operation).Inc()
	}
}
