package ports

import "context"

// EmergencyShutdown halts new orders and flattens all exposure.
// It is provided by the orchestrating portfolio and invoked by the kill switch.
type EmergencyShutdown interface {
	EmergencyShutdown(ctx context.Context, reason string) error
}
