// Package backend assembles the stores, result cache, ledger source, event
// publisher and analytics engine selected by configuration.
package backend

import (
	"context"

	"finpulse/internal/amqp"
	"finpulse/internal/analytics"
	"finpulse/internal/cache"
	"finpulse/internal/services"

	"github.com/redis/go-redis/v9"
)

// DataStore is implemented by every relational/in-memory store: the ledger,
// its write side and the analytics tables.
type DataStore interface {
	analytics.Ledger
	analytics.Store
	services.LedgerWriter
	Ping(ctx context.Context) error
	Close() error
}

// SnapshotInvalidator is a ledger that keeps a local copy of remote data.
type SnapshotInvalidator interface {
	Invalidate()
}

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// Check reports whether a dependency is reachable.
type Check func(ctx context.Context) error

// BackendResult holds everything a binary needs. Optional parts are nil
// when not configured.
type BackendResult struct {
	Engine *analytics.Engine
	Ledger *services.LedgerService
	Store  DataStore
	Cache  *cache.ResultCache

	// Snapshot is set when the ledger is read from a spreadsheet.
	Snapshot SnapshotInvalidator
	// Redis is set when the result cache lives in Redis.
	Redis *redis.Client
	// AMQP is set when AMQP_URL is configured and the broker was reachable.
	AMQP *amqp.Client

	Checks  map[string]Check
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}
