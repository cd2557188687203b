package config

import (
	"os"
	"strconv"
)

// Config is the engine's full runtime configuration, assembled from
// environment variables with spec-mandated defaults.
type Config struct {
	Metrics MetricsConfig
	Risk    RiskConfig
	Pricing PricingConfig
	Logging LoggingConfig
}

// MetricsConfig controls the /metrics and /healthz HTTP server.
type MetricsConfig struct {
	Addr string
}

// RiskConfig mirrors the Risk Manager's admission/sizing parameters.
type RiskConfig struct {
	InitialCapital     float64
	MaxRiskPerTrade    float64
	MaxTotalExposure   float64
	MaxSinglePosition  float64
	StopLossPct        float64
	TakeProfitPct      float64
	MaxDailyLoss       float64
	MinTradeSize       float64
	MaxLeverage        float64
	MinProfitThreshold float64
	MinConfidence      float64
}

// PricingConfig mirrors the Synthetic Pricing Engine, Volatility Analyzer,
// and Cross-Asset Analyzer tunables.
type PricingConfig struct {
	CalculationIntervalMs int
	HistoryWindowVol      int
	HistoryWindowRatio    int
	MinMispricingPct      float64
	MaxMispricingPct      float64
	DefaultFundingRate    float64
	RiskFreeRate          float64
	MinVolSpreadBps       float64
	MaxVolSpreadBps       float64
	MinRatioSpreadPct     float64
	MaxRatioSpreadPct     float64
	FreshnessWindowS      int
}

// LoggingConfig controls the process-wide structured logger.
type LoggingConfig struct {
	Level  string
	Format string
}

// Load reads the engine configuration from the environment, falling back
// to the spec-mandated defaults for anything unset.
func Load() *Config {
	return &Config{
		Metrics: MetricsConfig{
			Addr: getEnv("METRICS_ADDR", ":9090"),
		},
		Risk: RiskConfig{
			InitialCapital:     getEnvAsFloat("INITIAL_CAPITAL", 10000),
			MaxRiskPerTrade:    getEnvAsFloat("MAX_RISK_PER_TRADE", 0.01),
			MaxTotalExposure:   getEnvAsFloat("MAX_TOTAL_EXPOSURE", 0.20),
			MaxSinglePosition:  getEnvAsFloat("MAX_SINGLE_POSITION", 0.05),
			StopLossPct:        getEnvAsFloat("STOP_LOSS_PCT", 0.02),
			TakeProfitPct:      getEnvAsFloat("TAKE_PROFIT_PCT", 0.05),
			MaxDailyLoss:       getEnvAsFloat("MAX_DAILY_LOSS", 0.05),
			MinTradeSize:       getEnvAsFloat("MIN_TRADE_SIZE", 0.001),
			MaxLeverage:        getEnvAsFloat("MAX_LEVERAGE", 3),
			MinProfitThreshold: getEnvAsFloat("MIN_PROFIT_THRESHOLD", 0.0005),
			MinConfidence:      getEnvAsFloat("MIN_CONFIDENCE", 0.7),
		},
		Pricing: PricingConfig{
			CalculationIntervalMs: getEnvAsInt("CALCULATION_INTERVAL_MS", 1000),
			HistoryWindowVol:      getEnvAsInt("HISTORY_WINDOW_VOL", 30),
			HistoryWindowRatio:    getEnvAsInt("HISTORY_WINDOW_RATIO", 20),
			MinMispricingPct:      getEnvAsFloat("MIN_MISPRICING_PCT", 0.01),
			MaxMispricingPct:      getEnvAsFloat("MAX_MISPRICING_PCT", 5.0),
			DefaultFundingRate:    getEnvAsFloat("DEFAULT_FUNDING_RATE", 1e-4),
			RiskFreeRate:          getEnvAsFloat("RISK_FREE_RATE", 0.05),
			MinVolSpreadBps:       getEnvAsFloat("MIN_VOL_SPREAD_BPS", 20),
			MaxVolSpreadBps:       getEnvAsFloat("MAX_VOL_SPREAD_BPS", 500),
			MinRatioSpreadPct:     getEnvAsFloat("MIN_RATIO_SPREAD_PCT", 0.01),
			MaxRatioSpreadPct:     getEnvAsFloat("MAX_RATIO_SPREAD_PCT", 2.0),
			FreshnessWindowS:      getEnvAsInt("FRESHNESS_WINDOW_S", 30),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}
