package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"saldo/internal/ledger"
)

type Config struct {
	// HTTP Server
	Port string

	// Backend selection: sheets, csv, sqlite or memory
	DataBackend string

	// Google Sheets
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string

	// CSV export
	CSVPath      string
	CSVDelimiter string

	// Database
	SQLiteDBPath string

	// Mirror worker: how often the sheet is copied into SQLite
	SyncInterval time.Duration

	// AMQP (optional)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Ledger
	LedgerTTL       time.Duration
	RetryBackoff    time.Duration
	DirectionSource string
	StrictAmounts   bool
	Columns         ledger.Columns

	// HTTP view cache
	ViewCacheSize int

	LogLevel  string
	LogFormat string
}

func Load() *Config {
	defaults := ledger.DefaultColumns()
	cfg := &Config{
		Port:        getEnv("PORT", "8081"),
		DataBackend: getEnv("DATA_BACKEND", "memory"),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:          getEnv("GOOGLE_SHEET_NAME", "Controle de Gastos"),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", getEnv("GOOGLE_APPLICATION_CREDENTIALS", "")),

		CSVPath:      getEnv("CSV_PATH", ""),
		CSVDelimiter: getEnv("CSV_DELIMITER", ""),

		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/saldo.db"),
		SyncInterval: getEnvDuration("SYNC_INTERVAL", 5*time.Minute),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "saldo"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "ledger_refresh"),

		LedgerTTL:       getEnvDuration("LEDGER_TTL", 60*time.Second),
		RetryBackoff:    getEnvDuration("LEDGER_RETRY_BACKOFF", 5*time.Second),
		DirectionSource: getEnv("DIRECTION_SOURCE", string(ledger.DirectionFromSign)),
		StrictAmounts:   getEnvBool("STRICT_AMOUNTS", false),
		Columns: ledger.Columns{
			Date:        getEnv("COLUMN_DATE", defaults.Date),
			Amount:      getEnv("COLUMN_AMOUNT", defaults.Amount),
			Category:    getEnv("COLUMN_CATEGORY", defaults.Category),
			Type:        getEnv("COLUMN_TYPE", defaults.Type),
			Recurrence:  getEnv("COLUMN_RECURRENCE", defaults.Recurrence),
			Description: getEnv("COLUMN_DESCRIPTION", defaults.Description),
		},

		ViewCacheSize: getEnvInt("VIEW_CACHE_SIZE", 256),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}

	return cfg
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	validBackends := []string{"sheets", "csv", "sqlite", "memory"}
	isValidBackend := false
	for _, backend := range validBackends {
		if c.DataBackend == backend {
			isValidBackend = true
			break
		}
	}
	if !isValidBackend {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	switch c.DataBackend {
	case "sqlite":
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}

	case "csv":
		if c.CSVPath == "" {
			errors = append(errors, "CSV_PATH is required when using csv backend")
		} else if _, err := os.Stat(c.CSVPath); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("CSV file does not exist: %s", c.CSVPath))
		}

	case "sheets":
		if c.GoogleSpreadsheetID == "" {
			errors = append(errors, "Google Spreadsheet ID is required when using sheets backend")
		}
		if c.GoogleSheetName == "" {
			errors = append(errors, "Google Sheet name is required when using sheets backend")
		}
		hasJSON := c.GoogleServiceAccountJSON != ""
		hasFile := c.GoogleServiceAccountFile != ""
		if !hasJSON && !hasFile {
			errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE must be provided for sheets backend")
		}
		if hasFile && !hasJSON {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
	}

	if c.CSVDelimiter != "" && utf8.RuneCountInString(c.CSVDelimiter) != 1 {
		errors = append(errors, fmt.Sprintf("invalid CSV delimiter '%s': must be a single character", c.CSVDelimiter))
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.LedgerTTL < 0 {
		errors = append(errors, fmt.Sprintf("invalid ledger TTL %v: must not be negative", c.LedgerTTL))
	} else if c.LedgerTTL > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid ledger TTL %v: must be at most 24 hours", c.LedgerTTL))
	}

	if c.RetryBackoff < 0 {
		errors = append(errors, fmt.Sprintf("invalid ledger retry backoff %v: must not be negative", c.RetryBackoff))
	} else if c.RetryBackoff > time.Hour {
		errors = append(errors, fmt.Sprintf("invalid ledger retry backoff %v: must be at most 1 hour", c.RetryBackoff))
	}

	if c.SyncInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid sync interval %v: must be at least 1 second", c.SyncInterval))
	} else if c.SyncInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid sync interval %v: must be at most 24 hours", c.SyncInterval))
	}

	if err := c.LedgerConfig().Validate(); err != nil {
		errors = append(errors, err.Error())
	}

	if c.ViewCacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid view cache size %d: must be at least 1", c.ViewCacheSize))
	}

	if _, ok := parseLevel(c.LogLevel); !ok {
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of debug, info, warn, error", c.LogLevel))
	}

	if f := strings.ToLower(c.LogFormat); f != "text" && f != "json" {
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be text or json", c.LogFormat))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// LedgerConfig returns the normalization settings.
func (c *Config) LedgerConfig() ledger.Config {
	return ledger.Config{
		Columns:         c.Columns,
		DirectionSource: ledger.DirectionSource(c.DirectionSource),
		StrictAmounts:   c.StrictAmounts,
	}
}

// Delimiter returns the configured CSV delimiter, or 0 to sniff it.
func (c *Config) Delimiter() rune {
	if c.CSVDelimiter == "" {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(c.CSVDelimiter)
	return r
}

// SlogLevel returns LOG_LEVEL as a slog level, info when unknown.
func (c *Config) SlogLevel() slog.Level {
	level, _ := parseLevel(c.LogLevel)
	return level
}

func parseLevel(s string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, true
	case "info", "":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	}
	return slog.LevelInfo, false
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
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

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
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
