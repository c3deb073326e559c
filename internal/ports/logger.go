package ports

import "context"

// Logger is the logging contract used across the core.
// Implementations live in internal/adapters/logger (text and zap JSON).
type Logger interface {
	Debug(ctx context.Context, msg string, fields ...map[string]interface{})
	Info(ctx context.Context, msg string, fields ...map[string]interface{})
	Warn(ctx context.Context, msg string, fields ...map[string]interface{})
	// Error logs err with msg. Use for failures that need an operator's attention.
	Error(ctx context.Context, err error, msg string, fields ...map[string]interface{})
}
