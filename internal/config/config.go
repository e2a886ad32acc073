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
)

// Backend selections.
const (
	DataMemory = "memory"
	DataSQLite = "sqlite"
	DataMySQL  = "mysql"

	CacheDB     = "db"
	CacheRedis  = "redis"
	CacheMemory = "memory"

	LedgerDB     = "db"
	LedgerSheets = "sheets"
)

var (
	validDataBackends  = []string{DataMemory, DataSQLite, DataMySQL}
	validCacheBackends = []string{CacheDB, CacheRedis, CacheMemory}
	validLedgerSources = []string{LedgerDB, LedgerSheets}
)

type Config struct {
	// HTTP Server
	Port     string
	LogLevel string

	// Storage
	DataBackend   string
	SQLiteDBPath  string
	DataDirectory string

	MySQLHost            string
	MySQLPort            string
	MySQLUser            string
	MySQLPassword        string
	MySQLDatabase        string
	MySQLMaxOpenConns    int
	MySQLMaxIdleConns    int
	MySQLConnMaxLifetime time.Duration

	// Result cache
	CacheBackend         string
	CacheTTL             time.Duration
	CacheCleanupInterval time.Duration
	CacheMaxEntries      int
	RedisAddr            string
	RedisPassword        string
	RedisDB              int

	// Ledger source
	LedgerSource             string
	GoogleSpreadsheetID      string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
	SheetsUserID             int64
	SheetsYear               int
	SheetsCacheTTL           time.Duration

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Worker
	WorkerRecompute bool
	WorkerLockTTL   time.Duration

	// Refresh endpoint limit per user
	RefreshPerMinute int

	// Optional TOML file overriding analytics heuristics
	TuningFile     string
	// Upper bound of one shared analytics computation
	ComputeTimeout time.Duration
}

func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8081"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DataBackend:   getEnv("DATA_BACKEND", DataMemory),
		SQLiteDBPath:  getEnv("SQLITE_DB_PATH", "./data/finpulse.db"),
		DataDirectory: getEnv("DATA_DIRECTORY", "data"),

		MySQLHost:            getEnv("DB_HOST", "localhost"),
		MySQLPort:            getEnv("DB_PORT", "3306"),
		MySQLUser:            getEnv("DB_USER", "finpulse"),
		MySQLPassword:        getEnv("DB_PASSWORD", ""),
		MySQLDatabase:        getEnv("DB_NAME", "finpulse"),
		MySQLMaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 20),
		MySQLMaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
		MySQLConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),

		CacheBackend:         getEnv("CACHE_BACKEND", CacheDB),
		CacheTTL:             getEnvDuration("CACHE_TTL", 60*time.Minute),
		CacheCleanupInterval: getEnvDuration("CACHE_CLEANUP_INTERVAL", 10*time.Minute),
		CacheMaxEntries:      getEnvInt("CACHE_MAX_ENTRIES", 1000),
		RedisAddr:            getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:        getEnv("REDIS_PASSWORD", ""),
		RedisDB:              getEnvInt("REDIS_DB", 0),

		LedgerSource:             getEnv("LEDGER_SOURCE", LedgerDB),
		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),
		SheetsUserID:             int64(getEnvInt("SHEETS_USER_ID", 1)),
		SheetsYear:               getEnvInt("SHEETS_YEAR", 0),
		SheetsCacheTTL:           getEnvDuration("SHEETS_CACHE_TTL", 5*time.Minute),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "finpulse"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "ledger_changed"),

		WorkerRecompute: getEnvBool("WORKER_RECOMPUTE", false),
		WorkerLockTTL:   getEnvDuration("WORKER_LOCK_TTL", 30*time.Second),

		RefreshPerMinute: getEnvInt("REFRESH_PER_MINUTE", 6),

		TuningFile:     getEnv("ANALYTICS_TUNING_FILE", ""),
		ComputeTimeout: getEnvDuration("ANALYTICS_COMPUTE_TIMEOUT", 2*time.Minute),
	}
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if !slices.Contains(validDataBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validDataBackends))
	}
	if !slices.Contains(validCacheBackends, c.CacheBackend) {
		errors = append(errors, fmt.Sprintf("invalid cache backend '%s': must be one of %v", c.CacheBackend, validCacheBackends))
	}
	if !slices.Contains(validLedgerSources, c.LedgerSource) {
		errors = append(errors, fmt.Sprintf("invalid ledger source '%s': must be one of %v", c.LedgerSource, validLedgerSources))
	}

	switch c.DataBackend {
	case DataSQLite:
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
	case DataMySQL:
		if c.MySQLHost == "" {
			errors = append(errors, "DB_HOST is required when using mysql backend")
		}
		if c.MySQLDatabase == "" {
			errors = append(errors, "DB_NAME is required when using mysql backend")
		}
		if c.MySQLUser == "" {
			errors = append(errors, "DB_USER is required when using mysql backend")
		}
		if c.MySQLMaxOpenConns < 1 {
			errors = append(errors, fmt.Sprintf("invalid DB_MAX_OPEN_CONNS %d: must be at least 1", c.MySQLMaxOpenConns))
		}
	}

	if c.CacheBackend == CacheRedis && c.RedisAddr == "" {
		errors = append(errors, "REDIS_ADDR is required when using redis cache backend")
	}
	if c.CacheTTL < time.Second {
		errors = append(errors, fmt.Sprintf("invalid cache TTL %v: must be at least 1 second", c.CacheTTL))
	}
	if c.CacheCleanupInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid cache cleanup interval %v: must be at least 1 second", c.CacheCleanupInterval))
	} else if c.CacheCleanupInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid cache cleanup interval %v: must be at most 24 hours", c.CacheCleanupInterval))
	}

	if c.LedgerSource == LedgerSheets {
		if c.GoogleSpreadsheetID == "" {
			errors = append(errors, "Google Spreadsheet ID is required when using sheets ledger")
		}
		if c.GoogleServiceAccountJSON == "" && c.GoogleServiceAccountFile == "" && os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") == "" {
			errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_APPLICATION_CREDENTIALS must be provided for sheets ledger")
		}
		if c.GoogleServiceAccountFile != "" {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
		if c.SheetsUserID < 1 {
			errors = append(errors, fmt.Sprintf("invalid sheets user id %d: must be positive", c.SheetsUserID))
		}
		if c.SheetsYear != 0 && (c.SheetsYear < 1970 || c.SheetsYear > 9999) {
			errors = append(errors, fmt.Sprintf("invalid sheets year %d", c.SheetsYear))
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
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.WorkerLockTTL < time.Second {
		errors = append(errors, fmt.Sprintf("invalid worker lock TTL %v: must be at least 1 second", c.WorkerLockTTL))
	}
	if c.RefreshPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid refresh limit %d: must be at least 1 per minute", c.RefreshPerMinute))
	}

	if c.TuningFile != "" {
		if _, err := os.Stat(c.TuningFile); err != nil {
			errors = append(errors, fmt.Sprintf("analytics tuning file not readable: %v", err))
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
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
