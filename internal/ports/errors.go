package ports

import (
	"errors"
	"fmt"
)

// Standard application-level errors.
// Adapters should wrap underlying infrastructure errors with these standard errors.
var (
	// General Errors
	ErrUnknown            = errors.New("unknown error occurred")
	ErrInvalidRequest     = errors.New("invalid request parameters or format")
	ErrNotFound           = errors.New("resource not found")
	ErrValidation         = errors.New("validation failed")
	ErrTimeout            = errors.New("operation timed out")
	ErrContextCanceled    = errors.New("operation canceled via context")
	ErrConfigurationError = errors.New("invalid or missing configuration")

	// Exchange Specific Errors
	ErrConnectivity         = errors.New("exchange connectivity error")
	ErrConnectionFailed     = errors.New("failed to connect to the exchange")
	ErrRateLimited          = errors.New("API rate limit exceeded")
	ErrAuthenticationFailed = errors.New("exchange authentication failed (check API keys)")
	ErrInvalidAPIKeys       = errors.New("invalid API keys or permissions")
	ErrInsufficientFunds    = errors.New("insufficient funds for operation")
	ErrOrderNotFound        = fmt.Errorf("order not found on the exchange: %w", ErrNotFound)
	ErrPositionNotFound     = fmt.Errorf("position not found: %w", ErrNotFound)
	ErrOrderPlacementFailed = errors.New("failed to place order")
	ErrOrderCancelFailed    = errors.New("failed to cancel order")

	// Ledger / Risk Errors
	ErrDuplicateSymbol = errors.New("position already open for symbol")
	ErrLimitExceeded   = errors.New("open position limit reached")
	ErrEventNotFound   = fmt.Errorf("risk event not found: %w", ErrNotFound)
	ErrKillSwitch      = errors.New("kill switch active")

	// Database Specific Errors
	ErrDBConnection = errors.New("database connection error")
	ErrQueryFailed  = errors.New("database query failed")
)

// IsConnectivity reports whether err is a transient exchange connectivity failure.
func IsConnectivity(err error) bool {
	return errors.Is(err, ErrConnectivity) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrConnectionFailed) ||
		errors.Is(err, ErrRateLimited)
}
