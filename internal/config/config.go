package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Backend selection: "sqlite" or "memory".
	DataBackend  string
	SQLiteDBPath string

	// AMQP. An empty URL disables publishing; commits then evaluate alerts inline.
	AMQPURL                string
	AMQPExchange           string
	AMQPEventsQueue        string
	AMQPNotificationsQueue string

	// Google Sheets export and import source.
	GoogleSpreadsheetID string
	GoogleSheetName     string

	// Periodic re-evaluation in budgetd.
	EvaluationInterval time.Duration

	// HTTPAddr is where budgetd serves its JSON API; empty disables it.
	HTTPAddr string

	ReportCacheSize int
	ReportCacheTTL  time.Duration

	LogLevel  string
	LogFormat string

	// LedgerKey is the ledger budgetctl operates on.
	LedgerKey string
}

func Load() *Config {
	return &Config{
		DataBackend:  getEnv("DATA_BACKEND", "sqlite"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/budget.db"),

		AMQPURL:                getEnv("AMQP_URL", ""),
		AMQPExchange:           getEnv("AMQP_EXCHANGE", "budget"),
		AMQPEventsQueue:        getEnv("AMQP_EVENTS_QUEUE", "ledger_events"),
		AMQPNotificationsQueue: getEnv("AMQP_NOTIFICATIONS_QUEUE", "budget_notifications"),

		GoogleSpreadsheetID: getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:     getEnv("GOOGLE_SHEET_NAME", "Budget"),

		EvaluationInterval: getEnvDuration("EVALUATION_INTERVAL", 15*time.Minute),

		HTTPAddr: lookupEnv("HTTP_ADDR", ":8081"),

		ReportCacheSize: getEnvInt("REPORT_CACHE_SIZE", 64),
		ReportCacheTTL:  getEnvDuration("REPORT_CACHE_TTL", 5*time.Minute),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),

		LedgerKey: getEnv("LEDGER_KEY", "default"),
	}
}

// AMQPEnabled reports whether a broker is configured.
func (c *Config) AMQPEnabled() bool { return strings.TrimSpace(c.AMQPURL) != "" }

// HTTPEnabled reports whether budgetd should serve its JSON API.
func (c *Config) HTTPEnabled() bool { return c.HTTPAddr != "" }

// SheetsEnabled reports whether a spreadsheet is configured.
func (c *Config) SheetsEnabled() bool { return strings.TrimSpace(c.GoogleSpreadsheetID) != "" }

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var problems []string

	switch c.DataBackend {
	case "sqlite":
		if strings.TrimSpace(c.SQLiteDBPath) == "" {
			problems = append(problems, "SQLite database path cannot be empty when using sqlite backend")
		}
	case "memory":
	default:
		problems = append(problems, fmt.Sprintf("invalid data backend '%s': must be one of [memory sqlite]", c.DataBackend))
	}

	if c.AMQPEnabled() {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			problems = append(problems, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			problems = append(problems, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			problems = append(problems, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPEventsQueue == "" || c.AMQPNotificationsQueue == "" {
			problems = append(problems, "AMQP queue names cannot be empty when AMQP URL is provided")
		}
		if c.AMQPEventsQueue != "" && c.AMQPEventsQueue == c.AMQPNotificationsQueue {
			problems = append(problems, "AMQP events and notifications queues must differ")
		}
	}

	if c.EvaluationInterval < time.Second {
		problems = append(problems, fmt.Sprintf("invalid evaluation interval %v: must be at least 1 second", c.EvaluationInterval))
	} else if c.EvaluationInterval > 24*time.Hour {
		problems = append(problems, fmt.Sprintf("invalid evaluation interval %v: must be at most 24 hours", c.EvaluationInterval))
	}

	if c.ReportCacheSize < 1 {
		problems = append(problems, fmt.Sprintf("invalid report cache size %d: must be at least 1", c.ReportCacheSize))
	}
	if c.ReportCacheTTL <= 0 {
		problems = append(problems, fmt.Sprintf("invalid report cache TTL %v: must be positive", c.ReportCacheTTL))
	}

	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		problems = append(problems, fmt.Sprintf("invalid log format '%s': must be text or json", c.LogFormat))
	}

	if strings.TrimSpace(c.LedgerKey) == "" {
		problems = append(problems, "ledger key cannot be empty")
	}

	if len(problems) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(problems, "\n- "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// lookupEnv is getEnv except that a variable set to "" is kept.
func lookupEnv(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return strings.TrimSpace(value)
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
