package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds environment-driven settings for the trading loop.
type Config struct {
	Port string

	// Binance
	BinanceAPIKey    string
	BinanceAPISecret string
	BinanceTestnet   bool

	// Market scope
	QuoteAsset  string
	Timeframe   string
	CandleLimit int

	// Selection
	TopByVolume   int
	MaxCandidates int
	DepthLevels   int
	MinDepth      float64

	// Trading
	MaxPositions     int
	TradeNotional    float64 // quote units committed per entry
	Leverage         int
	ProfitTarget     float64 // quote units of PnL that closes a position
	LossLimit        float64 // quote units of loss that closes a position
	TargetBalance    float64
	MinNotional      float64
	FeeRate          float64
	ProtectiveOrders bool // exchange-side TP/SL instead of manual PnL close

	// Cadence
	PollInterval    time.Duration
	OpenPause       time.Duration
	CapWait         time.Duration
	TargetWait      time.Duration
	ErrorBackoff    time.Duration
	SettlePause     time.Duration
	ProtectionGrace time.Duration

	// Database
	DBPath string

	// Analyzer
	AnalyzerConfigPath string

	// Dashboard
	JWTSecret         string
	DashboardPassword string

	// Localization
	Language string // "en" or "zh"
}

// ErrMissingCredentials is returned when exchange credentials are absent;
// this is the only fatal configuration error.
var ErrMissingCredentials = errors.New("missing exchange credentials")

// Load reads environment variables (optionally via .env) into Config.
func Load() (*Config, error) {
	// Ignore error so the app still starts when .env is missing.
	_ = godotenv.Load()

	cfg := &Config{
		Port:             getEnv("PORT", "8080"),
		BinanceAPIKey:    os.Getenv("BINANCE_API_KEY"),
		BinanceAPISecret: os.Getenv("BINANCE_API_SECRET"),
		BinanceTestnet:   getEnv("BINANCE_TESTNET", "false") == "true",

		QuoteAsset:  strings.ToUpper(getEnv("QUOTE_ASSET", "USDT")),
		Timeframe:   getEnv("TIMEFRAME", "30m"),
		CandleLimit: getEnvInt("CANDLE_LIMIT", 50),

		TopByVolume:   getEnvInt("TOP_BY_VOLUME", 30),
		MaxCandidates: getEnvInt("MAX_CANDIDATES", 20),
		DepthLevels:   getEnvInt("DEPTH_LEVELS", 10),
		MinDepth:      getEnvFloat("MIN_DEPTH", 100_000),

		MaxPositions:     getEnvInt("MAX_POSITIONS", 4),
		TradeNotional:    getEnvFloat("TRADE_NOTIONAL", 20),
		Leverage:         getEnvInt("LEVERAGE", 10),
		ProfitTarget:     getEnvFloat("PROFIT_TARGET", 1),
		LossLimit:        getEnvFloat("LOSS_LIMIT", 3),
		TargetBalance:    getEnvFloat("TARGET_BALANCE", 1000),
		MinNotional:      getEnvFloat("MIN_NOTIONAL", 5),
		FeeRate:          getEnvFloat("FEE_RATE", 0.0004),
		ProtectiveOrders: getEnv("PROTECTIVE_ORDERS", "false") == "true",

		PollInterval:    getEnvDuration("POLL_INTERVAL", 15*time.Second),
		OpenPause:       getEnvDuration("OPEN_PAUSE", 2*time.Second),
		CapWait:         getEnvDuration("CAP_WAIT", 30*time.Second),
		TargetWait:      getEnvDuration("TARGET_WAIT", time.Minute),
		ErrorBackoff:    getEnvDuration("ERROR_BACKOFF", 10*time.Second),
		SettlePause:     getEnvDuration("SETTLE_PAUSE", 500*time.Millisecond),
		ProtectionGrace: getEnvDuration("PROTECTION_GRACE", 10*time.Second),

		DBPath: getEnv("DB_PATH", "./data/futures.db"),

		AnalyzerConfigPath: getEnv("ANALYZER_CONFIG", "analyzer.yaml"),

		JWTSecret:         getEnv("JWT_SECRET", "dev-secret"),
		DashboardPassword: os.Getenv("DASHBOARD_PASSWORD"),

		Language: getEnv("LANGUAGE", "en"),
	}

	if cfg.BinanceAPIKey == "" || cfg.BinanceAPISecret == "" {
		return nil, ErrMissingCredentials
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
