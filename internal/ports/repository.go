package ports

import (
	"context"

	"futuresGuard/internal/domain"
)

// TradeJournal persists closed positions beyond the in-memory history.
type TradeJournal interface {
	// RecordClosedPosition stores a closed position. Re-recording the same ID overwrites it.
	RecordClosedPosition(ctx context.Context, pos *domain.ManagedPosition) error
	// ClosedPositions returns the most recent closed positions, newest first.
	ClosedPositions(ctx context.Context, limit int) ([]*domain.ManagedPosition, error)
}

// RiskJournal persists the audit trail of risk events.
type RiskJournal interface {
	// RecordRiskEvent inserts or updates an event by ID.
	RecordRiskEvent(ctx context.Context, event *domain.RiskEvent) error
	// RiskEvents returns the most recent events, newest first.
	RiskEvents(ctx context.Context, limit int) ([]*domain.RiskEvent, error)
}
