package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig holds all configuration for the application
type AppConfig struct {
	DatabaseURL    string
	MigrateOnStart bool
	LogLevel       string
	Environment    string
	LogFile        string
	LogMaxSizeMB   int
	LogMaxBackups  int
	LogMaxAgeDays  int

	CronSpecDailyCharges  string // contribution sweep, midnight by default
	CronSpecOverdueLoans  string
	Location              *time.Location
	TelegramToken         string
	OperatorTelegramID    int64
	OnTimePaymentPoints   int
	CycleCompletionPoints int
}

// UsesMemoryStore reports whether the process runs without a database.
func (c *AppConfig) UsesMemoryStore() bool {
	return c.DatabaseURL == ""
}

// Load reads configuration from environment variables and .env file (if present).
func Load() (*AppConfig, error) {
	// godotenv.Load will not override existing env variables.
	_ = godotenv.Load()

	cfg := &AppConfig{}
	var err error

	cfg.Environment = strings.ToLower(os.Getenv("ENVIRONMENT"))
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" && cfg.Environment != "development" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}

	if cfg.MigrateOnStart, err = boolEnv("MIGRATE_ON_START", true); err != nil {
		return nil, err
	}

	cfg.LogLevel = strings.ToLower(os.Getenv("LOG_LEVEL"))
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	cfg.LogFile = os.Getenv("LOG_FILE")
	if cfg.LogMaxSizeMB, err = intEnv("LOG_MAX_SIZE_MB", 100); err != nil {
		return nil, err
	}
	if cfg.LogMaxBackups, err = intEnv("LOG_MAX_BACKUPS", 5); err != nil {
		return nil, err
	}
	if cfg.LogMaxAgeDays, err = intEnv("LOG_MAX_AGE_DAYS", 30); err != nil {
		return nil, err
	}

	cfg.CronSpecDailyCharges = os.Getenv("CRON_SPEC_DAILY_CHARGES")
	if cfg.CronSpecDailyCharges == "" {
		cfg.CronSpecDailyCharges = "0 0 * * *"
	}
	cfg.CronSpecOverdueLoans = os.Getenv("CRON_SPEC_OVERDUE_LOANS")
	if cfg.CronSpecOverdueLoans == "" {
		cfg.CronSpecOverdueLoans = "30 0 * * *"
	}

	tz := os.Getenv("TIMEZONE")
	if tz == "" {
		tz = "Local"
	}
	cfg.Location, err = time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE: %w", err)
	}

	cfg.TelegramToken = os.Getenv("TELEGRAM_TOKEN")
	if cfg.TelegramToken != "" {
		operatorIDStr := os.Getenv("OPERATOR_TELEGRAM_ID")
		if operatorIDStr == "" {
			return nil, fmt.Errorf("OPERATOR_TELEGRAM_ID is not set")
		}
		cfg.OperatorTelegramID, err = strconv.ParseInt(operatorIDStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid OPERATOR_TELEGRAM_ID: %w", err)
		}
	}

	if cfg.OnTimePaymentPoints, err = intEnv("ON_TIME_PAYMENT_POINTS", 5); err != nil {
		return nil, err
	}
	if cfg.CycleCompletionPoints, err = intEnv("CYCLE_COMPLETION_POINTS", 50); err != nil {
		return nil, err
	}

	return cfg, nil
}

func intEnv(key string, def int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if v < 0 {
		return 0, fmt.Errorf("invalid %s: must not be negative", key)
	}
	return v, nil
}

func boolEnv(key string, def bool) (bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}
