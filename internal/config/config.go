package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Data backends.
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendSheets   = "sheets"
	BackendMemory   = "memory"
)

var validBackends = []string{BackendSQLite, BackendPostgres, BackendSheets, BackendMemory}

type Config struct {
	// HTTP Server
	Port     string
	LogLevel string

	// Backend selection
	DataBackend string

	// SQLite
	SQLiteDBPath string

	// Postgres; HISPostgresDSN defaults to PostgresDSN
	PostgresDSN    string
	HISPostgresDSN string

	// Memory backend: directory of CSV exports
	DataDirectory string

	// Google Sheets
	GoogleSpreadsheetID      string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
	GoogleEquipmentSheet     string
	GoogleServicesSheet      string
	GoogleCostsSheet         string
	GoogleLedgerSheet        string
	GoogleProceduresSheet    string

	// AMQP; reload notifications are disabled when AMQPURL is empty
	AMQPURL       string
	AMQPExchange  string
	AMQPReloadKey string

	// Reference loading and aggregation
	LoadTimeout          time.Duration
	CostFallbackRatio    decimal.Decimal
	TimelineFutureMonths int
	TimelineMaxMonths    int

	MetricsEnabled bool
}

func Load() *Config {
	cfg := &Config{
		Port:     getEnv("PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DataBackend: getEnv("DATA_BACKEND", BackendSQLite),

		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/bmeutil.db"),

		PostgresDSN:    getEnv("POSTGRES_DSN", ""),
		HISPostgresDSN: getEnv("HIS_POSTGRES_DSN", ""),

		DataDirectory: getEnv("DATA_DIRECTORY", "./data"),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),
		GoogleEquipmentSheet:     getEnv("GOOGLE_EQUIPMENT_SHEET", ""),
		GoogleServicesSheet:      getEnv("GOOGLE_SERVICES_SHEET", ""),
		GoogleCostsSheet:         getEnv("GOOGLE_COSTS_SHEET", ""),
		GoogleLedgerSheet:        getEnv("GOOGLE_LEDGER_SHEET", ""),
		GoogleProceduresSheet:    getEnv("GOOGLE_PROCEDURES_SHEET", ""),

		AMQPURL:       getEnv("AMQP_URL", ""),
		AMQPExchange:  getEnv("AMQP_EXCHANGE", "bmeutil"),
		AMQPReloadKey: getEnv("AMQP_RELOAD_ROUTING_KEY", "reference.reload"),

		LoadTimeout:          getEnvDuration("LOAD_TIMEOUT", 2*time.Minute),
		CostFallbackRatio:    getEnvDecimal("COST_FALLBACK_RATIO", decimal.RequireFromString("0.70")),
		TimelineFutureMonths: getEnvInt("TIMELINE_FUTURE_MONTHS", 3),
		TimelineMaxMonths:    getEnvInt("TIMELINE_MAX_MONTHS", 84),

		MetricsEnabled: getEnvBool("METRICS_ENABLED", true),
	}

	if cfg.HISPostgresDSN == "" {
		cfg.HISPostgresDSN = cfg.PostgresDSN
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

	if !slices.Contains(validBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	switch c.DataBackend {
	case BackendSQLite:
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

	case BackendPostgres:
		if c.PostgresDSN == "" {
			errors = append(errors, "POSTGRES_DSN is required when using postgres backend")
		}
		for name, dsn := range map[string]string{"POSTGRES_DSN": c.PostgresDSN, "HIS_POSTGRES_DSN": c.HISPostgresDSN} {
			if dsn == "" {
				continue
			}
			// key=value connection strings are accepted as-is
			if !strings.Contains(dsn, "://") {
				continue
			}
			if u, err := url.Parse(dsn); err != nil || (u.Scheme != "postgres" && u.Scheme != "postgresql") {
				errors = append(errors, fmt.Sprintf("invalid %s: URL scheme must be postgres or postgresql", name))
			}
		}

	case BackendSheets:
		if c.GoogleSpreadsheetID == "" {
			errors = append(errors, "Google Spreadsheet ID is required when using sheets backend")
		}
		if c.GoogleServiceAccountJSON == "" && c.GoogleServiceAccountFile == "" && os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") == "" {
			errors = append(errors, "one of GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_APPLICATION_CREDENTIALS must be provided for sheets backend")
		}
		if c.GoogleServiceAccountFile != "" {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}

	case BackendMemory:
		if info, err := os.Stat(c.DataDirectory); err != nil || !info.IsDir() {
			errors = append(errors, fmt.Sprintf("data directory '%s' must be an existing directory when using memory backend", c.DataDirectory))
		}
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
		if c.AMQPReloadKey == "" {
			errors = append(errors, "AMQP reload routing key cannot be empty when AMQP URL is provided")
		}
	}

	if c.LoadTimeout < time.Second {
		errors = append(errors, fmt.Sprintf("invalid load timeout %v: must be at least 1 second", c.LoadTimeout))
	}
	if c.CostFallbackRatio.IsNegative() || c.CostFallbackRatio.GreaterThan(decimal.NewFromInt(1)) {
		errors = append(errors, fmt.Sprintf("invalid cost fallback ratio %s: must be between 0 and 1", c.CostFallbackRatio))
	}
	if c.TimelineFutureMonths < 0 {
		errors = append(errors, fmt.Sprintf("invalid timeline future months %d: must not be negative", c.TimelineFutureMonths))
	}
	if c.TimelineMaxMonths > 0 && c.TimelineMaxMonths <= c.TimelineFutureMonths {
		errors = append(errors, fmt.Sprintf("invalid timeline max months %d: must exceed future months %d (or be 0 for no cap)", c.TimelineMaxMonths, c.TimelineFutureMonths))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// AMQPEnabled reports whether reload notifications are configured.
func (c *Config) AMQPEnabled() bool {
	return c.AMQPURL != ""
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

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
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

func getEnvDecimal(key string, defaultValue decimal.Decimal) decimal.Decimal {
	if value := os.Getenv(key); value != "" {
		if d, err := decimal.NewFromString(strings.TrimSpace(value)); err == nil {
			return d
		}
	}
	return defaultValue
}
