package backend

import (
	"fmt"
	"time"

	"finpulse/internal/analytics"
	"finpulse/internal/config"
	"finpulse/internal/gormstore"
	"finpulse/internal/sheets/google"
)

// BackendType represents the type of data backend
type BackendType string

const (
	MemoryBackend BackendType = config.DataMemory
	SQLiteBackend BackendType = config.DataSQLite
	MySQLBackend  BackendType = config.DataMySQL
)

func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case MemoryBackend, SQLiteBackend, MySQLBackend:
		return true
	default:
		return false
	}
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// memory
	DataDirectory string
	SeedUserID    int64

	// sqlite
	SQLiteDBPath string

	// mysql
	MySQL gormstore.Config

	// result cache
	CacheBackend    string
	CacheMaxEntries int
	RedisAddr       string
	RedisPassword   string
	RedisDB         int

	// ledger source
	LedgerSource   string
	Sheets         google.Config
	SheetsUserID   int64
	SheetsYear     int
	SheetsCacheTTL time.Duration

	// AMQP is optional
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	Tuning analytics.Tuning
}

// FromAppConfig converts the application config to backend config. The
// tuning file, if any, is read here.
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	backendType := BackendType(appConfig.DataBackend)
	if !backendType.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", appConfig.DataBackend)
	}

	tuning, err := appConfig.LoadTuning()
	if err != nil {
		return Config{}, err
	}

	return Config{
		Type: backendType,

		DataDirectory: appConfig.DataDirectory,
		SeedUserID:    appConfig.SheetsUserID,
		SQLiteDBPath:  appConfig.SQLiteDBPath,
		MySQL: gormstore.Config{
			User:            appConfig.MySQLUser,
			Password:        appConfig.MySQLPassword,
			Host:            appConfig.MySQLHost,
			Port:            appConfig.MySQLPort,
			Name:            appConfig.MySQLDatabase,
			MaxOpenConns:    appConfig.MySQLMaxOpenConns,
			MaxIdleConns:    appConfig.MySQLMaxIdleConns,
			ConnMaxLifetime: appConfig.MySQLConnMaxLifetime,
		},

		CacheBackend:    appConfig.CacheBackend,
		CacheMaxEntries: appConfig.CacheMaxEntries,
		RedisAddr:       appConfig.RedisAddr,
		RedisPassword:   appConfig.RedisPassword,
		RedisDB:         appConfig.RedisDB,

		LedgerSource: appConfig.LedgerSource,
		Sheets: google.Config{
			SpreadsheetID:   appConfig.GoogleSpreadsheetID,
			CredentialsJSON: appConfig.GoogleServiceAccountJSON,
			CredentialsFile: appConfig.GoogleServiceAccountFile,
		},
		SheetsUserID:   appConfig.SheetsUserID,
		SheetsYear:     appConfig.SheetsYear,
		SheetsCacheTTL: appConfig.SheetsCacheTTL,

		AMQPURL:      appConfig.AMQPURL,
		AMQPExchange: appConfig.AMQPExchange,
		AMQPQueue:    appConfig.AMQPQueue,

		Tuning: tuning,
	}, nil
}
