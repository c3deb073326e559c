package risk

import (
	"context"
	"fmt"
	"time"

	"futuresGuard/internal/domain"
	"futuresGuard/internal/ports"
)

// ActivateKillSwitch pauses trading and flattens the account through the emergency
// shutdown. Concurrent and repeated activations perform the shutdown once. If the
// shutdown fails the switch stays active and the error is returned.
// The shutdown ignores ctx cancellation and deadline; only the exchange's own
// request timeouts bound it.
func (m *Monitor) ActivateKillSwitch(ctx context.Context, reason string) error {
	op := "activateKillSwitch"

	m.latch.Lock()
	if m.killed.Load() {
		m.latch.Unlock()
		return nil
	}
	m.killed.Store(true)
	m.paused.Store(true)
	m.mu.Lock()
	m.killReason = reason
	m.killedAt = m.now()
	m.pauseReason = "kill switch: " + reason
	m.mu.Unlock()
	m.metrics.SetKillSwitch(true)
	m.metrics.SetTradingPaused(true)

	m.logger.Error(ctx, ports.ErrKillSwitch, op+": KILL SWITCH ACTIVATED", map[string]interface{}{"reason": reason})

	shutdownErr := m.shutdown.EmergencyShutdown(context.WithoutCancel(ctx), reason)
	details := map[string]interface{}{"reason": reason}
	if shutdownErr != nil {
		details["shutdown_error"] = shutdownErr.Error()
		m.logger.Error(ctx, shutdownErr, op+": KILL SWITCH emergency shutdown FAILED, manual intervention required",
			map[string]interface{}{"reason": reason})
	}
	ev, created := m.record(domain.RiskAccount, domain.LevelCritical, "Kill switch activated: "+reason, details, true)
	m.latch.Unlock()

	if created {
		m.dispatch(ctx, ev)
	}
	m.metrics.SetRiskScore(m.Score())
	if shutdownErr != nil {
		return fmt.Errorf("%s: %w: %w", op, ports.ErrKillSwitch, shutdownErr)
	}
	return nil
}

// DeactivateKillSwitch clears the kill switch and the pause flag and drops acknowledged
// events. It waits for an in-flight activation to finish.
func (m *Monitor) DeactivateKillSwitch(ctx context.Context, reason string) {
	m.latch.Lock()
	defer m.latch.Unlock()
	if !m.killed.Load() {
		return
	}

	m.mu.Lock()
	for key, ev := range m.active {
		if ev.Acknowledged {
			delete(m.active, key)
		}
	}
	m.killReason = ""
	m.killedAt = time.Time{}
	m.pauseReason = ""
	m.mu.Unlock()

	m.killed.Store(false)
	m.paused.Store(false)
	m.metrics.SetKillSwitch(false)
	m.metrics.SetTradingPaused(false)
	m.metrics.SetRiskScore(m.Score())
	m.logger.Warn(ctx, "deactivateKillSwitch: Kill switch deactivated", map[string]interface{}{"reason": reason})
}

// KillSwitchActive reports the kill switch state without blocking.
func (m *Monitor) KillSwitchActive() bool {
	return m.killed.Load()
}

// processCritical acknowledges new critical events and activates the kill switch once for them.
func (m *Monitor) processCritical(ctx context.Context) {
	var messages []string
	m.mu.Lock()
	for _, ev := range m.active {
		if ev.Level == domain.LevelCritical && !ev.Acknowledged {
			ev.Acknowledged = true
			messages = append(messages, ev.Message)
		}
	}
	m.mu.Unlock()
	if len(messages) == 0 {
		return
	}

	reason := "Critical risk: " + messages[0]
	if len(messages) > 1 {
		reason = fmt.Sprintf("%s (+%d more)", reason, len(messages)-1)
	}
	if err := m.ActivateKillSwitch(ctx, reason); err != nil {
		m.logger.Error(ctx, err, "evaluate: Kill switch activation incomplete")
	}
}
