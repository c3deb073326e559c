package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"futuresGuard/internal/adapters/logger"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("BINANCE_API_KEY", "key")
	t.Setenv("BINANCE_API_SECRET", "secret")
}

func TestLoadConfig_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.True(t, cfg.IsTestnet)
	assert.Equal(t, 5*time.Second, cfg.AccountRefreshInterval)
	assert.Equal(t, 2*time.Second, cfg.PositionSweepInterval)
	assert.Equal(t, 10*time.Second, cfg.RiskCheckInterval)
	assert.Equal(t, 30*time.Second, cfg.OrderDefaultTimeout)
	assert.Equal(t, 3, cfg.ProtectMaxRetries)
	assert.Equal(t, 5, cfg.Risk.MaxPositions)
	assert.True(t, decimal.NewFromInt(1000).Equal(cfg.Risk.EmergencyLossAmount))
	assert.True(t, cfg.TakerFeeRate.IsZero())
	assert.Equal(t, logger.LevelInfo, cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
}

func TestLoadConfig_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("RISK_EMERGENCY_LOSS_AMOUNT", "500")
	t.Setenv("RISK_MAX_POSITIONS", "3")
	t.Setenv("ORDER_DEFAULT_TIMEOUT", "45")
	t.Setenv("PROTECT_RETRY_BASE", "250ms")
	t.Setenv("TAKER_FEE_RATE", "0.0004")
	t.Setenv("LOG_FORMAT", "JSON")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(500).Equal(cfg.Risk.EmergencyLossAmount))
	assert.Equal(t, 3, cfg.Risk.MaxPositions)
	assert.Equal(t, 45*time.Second, cfg.OrderDefaultTimeout)
	assert.Equal(t, 250*time.Millisecond, cfg.ProtectRetryBase)
	assert.True(t, decimal.RequireFromString("0.0004").Equal(cfg.TakerFeeRate))
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoadConfig_CollectsErrors(t *testing.T) {
	t.Setenv("BINANCE_API_KEY", "")
	t.Setenv("BINANCE_API_SECRET", "")
	t.Setenv("RISK_MAX_LEVERAGE", "abc")
	t.Setenv("RISK_MAX_POSITIONS", "0")
	t.Setenv("POSITION_SWEEP_INTERVAL", "soon")
	t.Setenv("TAKER_FEE_RATE", "1.5")

	_, err := LoadConfig()
	require.Error(t, err)
	msg := err.Error()
	for _, want := range []string{
		"BINANCE_API_KEY must be set",
		"BINANCE_API_SECRET must be set",
		"invalid RISK_MAX_LEVERAGE",
		"RISK_MAX_POSITIONS must be positive",
		"invalid POSITION_SWEEP_INTERVAL",
		"TAKER_FEE_RATE must be between",
	} {
		assert.Contains(t, msg, want)
	}
}

func TestLoadConfig_CriticalBelowMaxDrawdown(t *testing.T) {
	setRequired(t)
	t.Setenv("RISK_MAX_DRAWDOWN_PCT", "20")
	t.Setenv("RISK_CRITICAL_DRAWDOWN_PCT", "15")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RISK_CRITICAL_DRAWDOWN_PCT")
}
