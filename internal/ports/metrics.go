package ports

import (
	"time"

	"github.com/shopspring/decimal"
)

// Metrics receives operational measurements from the core.
type Metrics interface {
	SetRiskScore(score int)
	SetKillSwitch(active bool)
	SetTradingPaused(paused bool)
	IncRiskEvent(riskType, level string)
	IncOrder(kind, outcome string)
	SetEquity(equity decimal.Decimal)
	SetDrawdownPct(pct decimal.Decimal)
	SetOpenPositions(n int)
	ObserveExchangeCall(operation string, d time.Duration, err error)
}

// NopMetrics discards everything. Used when no metrics sink is wired.
type NopMetrics struct{}

func (NopMetrics) SetRiskScore(int) {}
func (NopMetrics) SetKillSwitch(bool) {}
func (NopMetrics) SetTradingPaused(bool) {}
func (NopMetrics) IncRiskEvent(string, string) {}
func (NopMetrics) IncOrder(string, string) {}
func (NopMetrics) SetEquity(decimal.Decimal) {}
func (NopMetrics) SetDrawdownPct(decimal.Decimal) {}
func (NopMetrics) SetOpenPositions(int) {}
func (NopMetrics) ObserveExchangeCall(string, time.Duration, error) {}
