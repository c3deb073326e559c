package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// RiskType classifies a risk event.
type RiskType string

const (
	RiskDrawdown         RiskType = "drawdown"
	RiskLeverage         RiskType = "leverage"
	RiskPositionSize     RiskType = "position_size"
	RiskCorrelation      RiskType = "correlation"
	RiskConnectivity     RiskType = "connectivity"
	RiskAccount          RiskType = "account"
	RiskMarketConditions RiskType = "market_conditions"
	RiskExecution        RiskType = "execution"
)

// RiskLevel is the severity of a risk event.
type RiskLevel string

const (
	LevelLow      RiskLevel = "low"
	LevelMedium   RiskLevel = "medium"
	LevelHigh     RiskLevel = "high"
	LevelCritical RiskLevel = "critical"
)

// RiskLevels lists every level from least to most severe.
var RiskLevels = []RiskLevel{LevelLow, LevelMedium, LevelHigh, LevelCritical}

// Weight is the level's contribution to the risk score.
func (l RiskLevel) Weight() int {
	switch l {
	case LevelCritical:
		return 40
	case LevelHigh:
		return 20
	case LevelMedium:
		return 10
	case LevelLow:
		return 5
	}
	return 0
}

// RiskEvent is a raised risk condition.
type RiskEvent struct {
	ID           string                 `json:"id"`
	Type         RiskType               `json:"type"`
	Level        RiskLevel              `json:"level"`
	Message      string                 `json:"message"`
	Details      map[string]interface{} `json:"details"`
	Timestamp    time.Time              `json:"timestamp"`
	Acknowledged bool                   `json:"acknowledged"`
	Resolved     bool                   `json:"resolved"`
}

// Key is the deduplication key of the event class.
func (e *RiskEvent) Key() string {
	return EventKey(e.Type, e.Level)
}

// EventKey builds the deduplication key for a type and level.
func EventKey(t RiskType, l RiskLevel) string {
	return string(t) + "_" + string(l)
}

// Clone copies the event including its details map.
func (e *RiskEvent) Clone() RiskEvent {
	c := *e
	c.Details = make(map[string]interface{}, len(e.Details))
	for k, v := range e.Details {
		c.Details[k] = v
	}
	return c
}

// RiskLimits holds the per-session risk thresholds. Percentages are in percent units.
type RiskLimits struct {
	MaxDrawdownPct       decimal.Decimal `json:"max_drawdown_pct"`
	CriticalDrawdownPct  decimal.Decimal `json:"critical_drawdown_pct"`
	MaxDailyLossPct      decimal.Decimal `json:"max_daily_loss_pct"`
	EmergencyLossAmount  decimal.Decimal `json:"emergency_loss_amount"`
	MaxLeverage          decimal.Decimal `json:"max_leverage"`
	MaxPositionSizePct   decimal.Decimal `json:"max_position_size_pct"`
	MaxPositions         int             `json:"max_positions"`
	MaxConsecutiveLosses int             `json:"max_consecutive_losses"`
	StopLossPct          decimal.Decimal `json:"stop_loss_pct"`
	TakeProfitPct        decimal.Decimal `json:"take_profit_pct"`
	MaxCorrelationPct    decimal.Decimal `json:"max_correlation_pct"`
	MaxVolatilityPct     decimal.Decimal `json:"max_volatility_pct"`
	MinLiquidity         decimal.Decimal `json:"min_liquidity"`
	MaxSpreadPct         decimal.Decimal `json:"max_spread_pct"`
}

// DefaultRiskLimits returns the conservative defaults.
func DefaultRiskLimits() RiskLimits {
	return RiskLimits{
		MaxDrawdownPct:       decimal.NewFromInt(10),
		CriticalDrawdownPct:  decimal.NewFromInt(15),
		MaxDailyLossPct:      decimal.NewFromInt(5),
		EmergencyLossAmount:  decimal.NewFromInt(1000),
		MaxLeverage:          decimal.NewFromInt(10),
		MaxPositionSizePct:   decimal.NewFromInt(20),
		MaxPositions:         5,
		MaxConsecutiveLosses: 5,
		StopLossPct:          decimal.NewFromInt(2),
		TakeProfitPct:        decimal.NewFromInt(4),
		MaxCorrelationPct:    decimal.NewFromInt(50),
		MaxVolatilityPct:     decimal.NewFromInt(20),
		MinLiquidity:         decimal.NewFromInt(10000),
		MaxSpreadPct:         decimal.NewFromInt(1),
	}
}

// Risk status labels derived from the score.
const (
	StatusLow      = "LOW"
	StatusMedium   = "MEDIUM"
	StatusHigh     = "HIGH"
	StatusCritical = "CRITICAL"
)

// RiskStatus maps a 0-100 score to its label.
func RiskStatus(score int) string {
	switch {
	case score >= 80:
		return StatusCritical
	case score >= 60:
		return StatusHigh
	case score >= 30:
		return StatusMedium
	}
	return StatusLow
}
