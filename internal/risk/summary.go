package risk

import (
	"time"

	"github.com/shopspring/decimal"

	"futuresGuard/internal/domain"
)

// Summary is the monitor's point-in-time report.
type Summary struct {
	Status            string                   `json:"status"`
	Score             int                      `json:"risk_score"`
	ActiveByLevel     map[domain.RiskLevel]int `json:"active_risks"`
	KillSwitchActive  bool                     `json:"kill_switch_active"`
	KillSwitchReason  string                   `json:"kill_switch_reason,omitempty"`
	KillSwitchAt      *time.Time               `json:"kill_switch_at,omitempty"`
	TradingPaused     bool                     `json:"trading_paused"`
	PauseReason       string                   `json:"pause_reason,omitempty"`
	Limits            domain.RiskLimits        `json:"limits"`
	ConsecutiveLosses int                      `json:"consecutive_losses"`
	DailyLossAmount   decimal.Decimal          `json:"daily_loss_amount"`
	DailyStartEquity  decimal.Decimal          `json:"daily_start_equity"`
	TotalEvents       int                      `json:"total_events"`
	Timestamp         time.Time                `json:"timestamp"`
}

// Score sums level weights over active events into 0..100.
func (m *Monitor) Score() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.scoreLocked()
}

func (m *Monitor) scoreLocked() int {
	score := 0
	for _, ev := range m.active {
		score += ev.Level.Weight()
	}
	if score > 100 {
		score = 100
	}
	return score
}

// Summary reports status, score and counters.
func (m *Monitor) Summary() Summary {
	m.mu.Lock()
	defer m.mu.Unlock()

	byLevel := make(map[domain.RiskLevel]int, len(domain.RiskLevels))
	for _, l := range domain.RiskLevels {
		byLevel[l] = 0
	}
	for _, ev := range m.active {
		byLevel[ev.Level]++
	}

	dailyLoss := decimal.Zero
	if m.dailyStartEquity.IsPositive() && m.lastEquity.LessThan(m.dailyStartEquity) {
		dailyLoss = m.dailyStartEquity.Sub(m.lastEquity)
	}

	score := m.scoreLocked()
	s := Summary{
		Status:            domain.RiskStatus(score),
		Score:             score,
		ActiveByLevel:     byLevel,
		KillSwitchActive:  m.killed.Load(),
		KillSwitchReason:  m.killReason,
		TradingPaused:     m.paused.Load(),
		PauseReason:       m.pauseReason,
		Limits:            m.limits,
		ConsecutiveLosses: m.consecutiveLosses,
		DailyLossAmount:   dailyLoss,
		DailyStartEquity:  m.dailyStartEquity,
		TotalEvents:       m.totalEvents,
		Timestamp:         m.now(),
	}
	if !m.killedAt.IsZero() {
		at := m.killedAt
		s.KillSwitchAt = &at
	}
	return s
}
