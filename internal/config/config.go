package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

const (
	envDevelopment = "development"

	defaultDBPath   = "./dev.db"
	defaultPort     = "8080"
	defaultLogLevel = "info"
)

// Config holds application configuration sourced from environment variables.
type Config struct {
	Env      string
	DBPath   string
	Port     string
	LogLevel string
	// GlobalIndirectPct is the last-resort indirect percentage, used when neither the
	// request nor the stored settings provide one. Either 0.18 or 18 means 18%.
	GlobalIndirectPct decimal.Decimal
	PayrollWeekStart  time.Weekday
}

// IsDev reports whether the application runs in development mode.
func (c Config) IsDev() bool {
	return c.Env == envDevelopment
}

// Load reads environment variables and returns a populated Config.
func Load() Config {
	// Best-effort: a missing .env is fine, real deployments inject the environment.
	_ = godotenv.Load()

	cfg := Config{
		Env:               getEnv("APP_ENV", envDevelopment),
		DBPath:            getEnv("DB_PATH", defaultDBPath),
		Port:              getEnv("PORT", defaultPort),
		LogLevel:          getEnv("LOG_LEVEL", defaultLogLevel),
		GlobalIndirectPct: decimal.Zero,
		PayrollWeekStart:  time.Monday,
	}

	if raw := os.Getenv("GLOBAL_INDIRECT_PCT"); raw != "" {
		pct, err := decimal.NewFromString(raw)
		if err != nil || pct.IsNegative() {
			log.Warn().Str("value", raw).Msg("GLOBAL_INDIRECT_PCT is not a non-negative number, using 0")
		} else {
			cfg.GlobalIndirectPct = pct
		}
	}

	if raw := os.Getenv("PAYROLL_WEEK_START"); raw != "" {
		day, ok := parseWeekday(raw)
		if !ok {
			log.Warn().Str("value", raw).Msg("PAYROLL_WEEK_START is not a weekday, using monday")
		} else {
			cfg.PayrollWeekStart = day
		}
	}

	return cfg
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseWeekday(raw string) (time.Weekday, bool) {
	name := strings.ToLower(strings.TrimSpace(raw))
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.ToLower(d.String()) == name {
			return d, true
		}
	}
	return time.Sunday, false
}
