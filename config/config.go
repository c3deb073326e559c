package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"futuresGuard/internal/adapters/logger" // Import the logger package for LogLevel
	"futuresGuard/internal/domain"
)

// Config holds all application configuration.
type Config struct {
	// Binance API
	APIKey         string
	SecretKey      string
	IsTestnet      bool
	RequestTimeout time.Duration // Per exchange call

	// Risk limits
	Risk domain.RiskLimits

	// Scheduler intervals
	AccountRefreshInterval time.Duration
	PositionSweepInterval  time.Duration
	RiskCheckInterval      time.Duration

	// Order lifecycle
	OrderDefaultTimeout    time.Duration
	ProtectGraceInterval   time.Duration
	ProtectRetryBase       time.Duration
	ProtectMaxRetries      int
	MinLotSize             decimal.Decimal
	SetupMaxPriceMovePct   decimal.Decimal
	SetupMomentumTolerance decimal.Decimal

	// Position ledger
	MaxPositionsTracked int
	ClosedHistory       int
	PriceHistory        int
	TakerFeeRate        decimal.Decimal

	// Account tracker
	MaxSnapshots int

	// Database
	DBPath string

	// Logging
	LogLevel  logger.LogLevel // Use the LogLevel type from the logger adapter
	LogFormat string          // "text" or "json"

	// HTTP control surface
	HTTPAddr string
}

// LoadConfig loads configuration from environment variables (.env file).
func LoadConfig() (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()

	cfg := &Config{}
	var errs []string // Collect validation errors

	// Binance API
	cfg.APIKey = getEnv("BINANCE_API_KEY", "")
	cfg.SecretKey = getEnv("BINANCE_API_SECRET", "")
	cfg.IsTestnet = getEnvAsBool("IS_TESTNET", true) // Default to testnet for safety
	if cfg.APIKey == "" {
		errs = append(errs, "BINANCE_API_KEY must be set")
	}
	if cfg.SecretKey == "" {
		errs = append(errs, "BINANCE_API_SECRET must be set")
	}
	cfg.RequestTimeout = durationField(&errs, "REQUEST_TIMEOUT", 10*time.Second)

	// Risk
	def := domain.DefaultRiskLimits()
	cfg.Risk = domain.RiskLimits{
		MaxDrawdownPct:       positiveDecimal(&errs, "RISK_MAX_DRAWDOWN_PCT", def.MaxDrawdownPct),
		CriticalDrawdownPct:  positiveDecimal(&errs, "RISK_CRITICAL_DRAWDOWN_PCT", def.CriticalDrawdownPct),
		MaxDailyLossPct:      positiveDecimal(&errs, "RISK_MAX_DAILY_LOSS_PCT", def.MaxDailyLossPct),
		EmergencyLossAmount:  positiveDecimal(&errs, "RISK_EMERGENCY_LOSS_AMOUNT", def.EmergencyLossAmount),
		MaxLeverage:          positiveDecimal(&errs, "RISK_MAX_LEVERAGE", def.MaxLeverage),
		MaxPositionSizePct:   positiveDecimal(&errs, "RISK_MAX_POSITION_SIZE_PCT", def.MaxPositionSizePct),
		MaxPositions:         positiveInt(&errs, "RISK_MAX_POSITIONS", def.MaxPositions),
		MaxConsecutiveLosses: positiveInt(&errs, "RISK_MAX_CONSECUTIVE_LOSSES", def.MaxConsecutiveLosses),
		StopLossPct:          positiveDecimal(&errs, "RISK_STOP_LOSS_PCT", def.StopLossPct),
		TakeProfitPct:        positiveDecimal(&errs, "RISK_TAKE_PROFIT_PCT", def.TakeProfitPct),
		MaxCorrelationPct:    positiveDecimal(&errs, "RISK_CORRELATION_LIMIT_PCT", def.MaxCorrelationPct),
		MaxVolatilityPct:     positiveDecimal(&errs, "RISK_VOLATILITY_LIMIT_PCT", def.MaxVolatilityPct),
		MinLiquidity:         positiveDecimal(&errs, "RISK_MIN_LIQUIDITY", def.MinLiquidity),
		MaxSpreadPct:         positiveDecimal(&errs, "RISK_MAX_SPREAD_PCT", def.MaxSpreadPct),
	}
	if cfg.Risk.CriticalDrawdownPct.LessThan(cfg.Risk.MaxDrawdownPct) {
		errs = append(errs, "RISK_CRITICAL_DRAWDOWN_PCT must not be below RISK_MAX_DRAWDOWN_PCT")
	}

	// Intervals
	cfg.AccountRefreshInterval = durationField(&errs, "ACCOUNT_REFRESH_INTERVAL", 5*time.Second)
	cfg.PositionSweepInterval = durationField(&errs, "POSITION_SWEEP_INTERVAL", 2*time.Second)
	cfg.RiskCheckInterval = durationField(&errs, "RISK_CHECK_INTERVAL", 10*time.Second)

	// Orders
	cfg.OrderDefaultTimeout = durationField(&errs, "ORDER_DEFAULT_TIMEOUT", 30*time.Second)
	cfg.ProtectGraceInterval = durationField(&errs, "PROTECT_GRACE_INTERVAL", 2*time.Second)
	cfg.ProtectRetryBase = durationField(&errs, "PROTECT_RETRY_BASE", time.Second)
	cfg.ProtectMaxRetries = positiveInt(&errs, "PROTECT_MAX_RETRIES", 3)
	cfg.MinLotSize = positiveDecimal(&errs, "MIN_LOT_SIZE", decimal.RequireFromString("0.001"))
	cfg.SetupMaxPriceMovePct = positiveDecimal(&errs, "SETUP_MAX_PRICE_MOVE_PCT", decimal.RequireFromString("0.5"))
	cfg.SetupMomentumTolerance = positiveDecimal(&errs, "SETUP_MOMENTUM_TOLERANCE", decimal.RequireFromString("0.1"))

	// Ledger
	cfg.MaxPositionsTracked = positiveInt(&errs, "MAX_POSITIONS_TRACKED", 10)
	cfg.ClosedHistory = positiveInt(&errs, "CLOSED_HISTORY", 1000)
	cfg.PriceHistory = positiveInt(&errs, "PRICE_HISTORY", 1000)
	var err error
	cfg.TakerFeeRate, err = getEnvAsDecimalRequired("TAKER_FEE_RATE", decimal.Zero)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid TAKER_FEE_RATE: %v", err))
	} else if cfg.TakerFeeRate.IsNegative() || cfg.TakerFeeRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		errs = append(errs, "TAKER_FEE_RATE must be between 0.0 (inclusive) and 1.0 (exclusive)")
	}

	// Account
	cfg.MaxSnapshots = positiveInt(&errs, "MAX_SNAPSHOTS", 1000)

	// Database
	cfg.DBPath = getEnv("DB_PATH", "./data/futures_guard.db")
	if cfg.DBPath == "" {
		errs = append(errs, "DB_PATH must be set")
	}

	// Logging
	logLevelStr := getEnv("LOG_LEVEL", "INFO")
	cfg.LogLevel = logger.ParseLevel(logLevelStr) // Use the parser from the logger package
	cfg.LogFormat = strings.ToLower(getEnv("LOG_FORMAT", "text"))
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		errs = append(errs, "LOG_FORMAT must be text or json")
	}

	cfg.HTTPAddr = getEnv("HTTP_ADDR", ":8080")

	// Combine validation errors
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}

	return cfg, nil
}

func positiveInt(errs *[]string, key string, def int) int {
	v, err := getEnvAsIntRequired(key, def)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("invalid %s: %v", key, err))
		return def
	}
	if v <= 0 {
		*errs = append(*errs, key+" must be positive")
	}
	return v
}

func positiveDecimal(errs *[]string, key string, def decimal.Decimal) decimal.Decimal {
	v, err := getEnvAsDecimalRequired(key, def)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("invalid %s: %v", key, err))
		return def
	}
	if !v.IsPositive() {
		*errs = append(*errs, key+" must be positive")
	}
	return v
}

func durationField(errs *[]string, key string, def time.Duration) time.Duration {
	v, err := getEnvAsDuration(key, def)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("invalid %s: %v", key, err))
		return def
	}
	if v <= 0 {
		*errs = append(*errs, key+" must be positive")
	}
	return v
}

// --- Env Var Helpers ---

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsIntRequired(key string, defaultValue int) (int, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		// Use default if env var is not set at all
		return defaultValue, nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		// Return error if env var is set but invalid
		return 0, fmt.Errorf("invalid integer value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsDecimalRequired(key string, defaultValue decimal.Decimal) (decimal.Decimal, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := decimal.NewFromString(valueStr)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid decimal value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

// getEnvAsDuration accepts Go duration strings ("5s", "1m30s") or a bare number of seconds.
func getEnvAsDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	if secs, err := strconv.Atoi(valueStr); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return 0, fmt.Errorf("invalid duration value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
