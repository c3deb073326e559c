package logger

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"futuresGuard/internal/ports"
)

var (
	_ ports.Logger = (*StdLogger)(nil)
	_ ports.Logger = (*ZapLogger)(nil)
)

func TestParseLevel(t *testing.T) {
	tests := map[string]LogLevel{
		"debug":   LevelDebug,
		"INFO":    LevelInfo,
		"Warning": LevelWarn,
		"error":   LevelError,
		"verbose": LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
	assert.Equal(t, "WARN", LevelWarn.String())
}

func TestStdLogger_SortsFieldsAndFilters(t *testing.T) {
	var buf bytes.Buffer
	l := NewStdLoggerTo(&buf, LevelInfo)
	ctx := context.Background()

	l.Debug(ctx, "hidden")
	l.Info(ctx, "placeOrder: submitted", map[string]interface{}{"symbol": "BTCUSDT", "id": 7, "kind": "market"})
	l.Error(ctx, errors.New("boom"), "KILL SWITCH", map[string]interface{}{"b": 1}, map[string]interface{}{"a": 2})

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "[INFO] placeOrder: submitted | id=7 kind=market symbol=BTCUSDT")
	assert.Contains(t, out, "[ERROR] KILL SWITCH | error: boom | a=2 b=1")
}

func TestZapLogger_WritesJSON(t *testing.T) {
	var buf bytes.Buffer
	l := NewZapLoggerTo(&buf, LevelWarn)
	ctx := context.Background()

	l.Info(ctx, "dropped")
	l.Warn(ctx, "evaluate: refresh failed", map[string]interface{}{"symbol": "ETHUSDT"})
	l.Error(ctx, errors.New("exchange down"), "shutdown failed")
	require.NoError(t, l.Sync())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var first map[string]interface{}
	require.NoError(t, jsoniter.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "warn", first["level"])
	assert.Equal(t, "evaluate: refresh failed", first["msg"])
	assert.Equal(t, "ETHUSDT", first["symbol"])

	var second map[string]interface{}
	require.NoError(t, jsoniter.Unmarshal([]byte(lines[1]), &second))
	assert.Equal(t, "error", second["level"])
	assert.Equal(t, "exchange down", second["error"])
}
