package backend

import (
	"context"
	"errors"
	"fmt"

	"finpulse/internal/amqp"
	"finpulse/internal/analytics"
	"finpulse/internal/cache"
	"finpulse/internal/config"
	"finpulse/internal/gormstore"
	"finpulse/internal/log"
	"finpulse/internal/memstore"
	"finpulse/internal/services"
	"finpulse/internal/sheets"
	gsheet "finpulse/internal/sheets/google"
	"finpulse/internal/storage"
)

var (
	_ DataStore = (*storage.SQLiteRepository)(nil)
	_ DataStore = (*gormstore.Store)(nil)
	_ DataStore = (*memstore.Store)(nil)
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &DefaultFactory{logger: logger.WithComponent(log.ComponentBackend)}
}

// cleanups closes resources in reverse order of creation.
type cleanups []func() error

func (c cleanups) run() error {
	var errs []error
	for i := len(c) - 1; i >= 0; i-- {
		if err := c[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, cfg Config) (res *BackendResult, err error) {
	if !cfg.Type.IsValid() {
		return nil, fmt.Errorf("invalid backend type: %s", cfg.Type)
	}

	var closers cleanups
	defer func() {
		if err != nil {
			_ = closers.run()
		}
	}()

	res = &BackendResult{Checks: make(map[string]Check)}

	store, err := f.createStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	closers = append(closers, store.Close)
	res.Store = store
	res.Checks["store"] = store.Ping

	cacheStore, err := f.createCacheStore(ctx, cfg, store, res)
	if err != nil {
		return nil, err
	}
	if res.Redis != nil {
		closers = append(closers, res.Redis.Close)
	}
	res.Cache = cache.NewResultCache(cacheStore, nil)

	var ledger analytics.Ledger = store
	if cfg.LedgerSource == config.LedgerSheets {
		sl, err := f.createSheetsLedger(ctx, cfg)
		if err != nil {
			return nil, err
		}
		ledger = sl
		res.Snapshot = sl
	}

	res.Engine = analytics.NewEngine(ledger, store, res.Cache, analytics.Options{
		Tuning: cfg.Tuning,
		Logger: f.logger,
	})

	// AMQP is optional; a broker that is down at startup only costs the
	// cross-process notifications.
	var publisher services.Publisher
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, f.logger)
		if err != nil {
			f.logger.WarnContext(ctx, "Failed to initialize AMQP client, continuing without ledger events", log.FieldError, err)
		} else {
			res.AMQP = client
			publisher = client
			f.logger.InfoContext(ctx, "Initialized AMQP client",
				"exchange", cfg.AMQPExchange,
				"queue", cfg.AMQPQueue)
		}
	}

	res.Ledger = services.NewLedgerService(store, publisher, res.Engine, f.logger)
	if res.AMQP != nil {
		closers = append(closers, res.AMQP.Close)
	}

	f.logger.InfoContext(ctx, "Initialized backend",
		log.FieldBackend, cfg.Type.String(),
		"cache_backend", cfg.CacheBackend,
		"ledger_source", ledgerSource(cfg),
		"amqp_enabled", res.AMQP != nil)

	res.Cleanup = closers.run
	return res, nil
}

func ledgerSource(cfg Config) string {
	if cfg.LedgerSource == "" {
		return config.LedgerDB
	}
	return cfg.LedgerSource
}

func (f *DefaultFactory) createStore(ctx context.Context, cfg Config) (DataStore, error) {
	switch cfg.Type {
	case SQLiteBackend:
		repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		f.logger.InfoContext(ctx, "Initialized SQLite store", "db_path", cfg.SQLiteDBPath)
		return repo, nil

	case MySQLBackend:
		st, err := gormstore.Open(cfg.MySQL)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize MySQL store: %w", err)
		}
		if err := st.Migrate(ctx); err != nil {
			_ = st.Close()
			return nil, fmt.Errorf("failed to migrate MySQL store: %w", err)
		}
		f.logger.InfoContext(ctx, "Initialized MySQL store", "host", cfg.MySQL.Host, "database", cfg.MySQL.Name)
		return st, nil

	default:
		dataDir := cfg.DataDirectory
		if dataDir == "" {
			dataDir = "data"
		}
		seedUser := cfg.SeedUserID
		if seedUser <= 0 {
			seedUser = 1
		}
		f.logger.InfoContext(ctx, "Initialized memory store", "data_directory", dataDir)
		return memstore.NewFromFiles(dataDir, seedUser), nil
	}
}

// createCacheStore picks where bundles are memoized. "db" reuses the data
// store's analytics_cache table; the memory data store has none, so it falls
// back to the in-process LRU.
func (f *DefaultFactory) createCacheStore(ctx context.Context, cfg Config, store DataStore, res *BackendResult) (cache.Store, error) {
	switch cfg.CacheBackend {
	case config.CacheRedis:
		client, err := cache.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Redis cache: %w", err)
		}
		res.Redis = client
		res.Checks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
		return cache.NewRedisStore(client), nil

	case config.CacheMemory:
		return cache.NewMemoryStore(cfg.CacheMaxEntries), nil

	default:
		if cs, ok := store.(cache.Store); ok {
			return cs, nil
		}
		f.logger.InfoContext(ctx, "Data store has no cache table, using in-process cache", log.FieldBackend, cfg.Type.String())
		return cache.NewMemoryStore(cfg.CacheMaxEntries), nil
	}
}

func (f *DefaultFactory) createSheetsLedger(ctx context.Context, cfg Config) (*sheets.Ledger, error) {
	client, err := gsheet.New(ctx, cfg.Sheets, f.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}
	layout := sheets.DefaultLayout()
	if cfg.SheetsYear != 0 {
		layout = layout.ForYear(cfg.SheetsYear)
	}
	f.logger.InfoContext(ctx, "Initialized Google Sheets ledger",
		log.FieldUserID, cfg.SheetsUserID,
		"year", cfg.SheetsYear)
	return sheets.NewLedger(client, layout, cfg.SheetsUserID, cfg.SheetsCacheTTL, f.logger), nil
}

// Build is the usual entry point: convert the app config and create the
// backend with a default factory.
func Build(ctx context.Context, appConfig *config.Config, logger *log.Logger) (*BackendResult, error) {
	cfg, err := FromAppConfig(appConfig)
	if err != nil {
		return nil, err
	}
	return NewFactory(logger).CreateBackend(ctx, cfg)
}

// RegisterCleanup adds the result cache to m when the configured store keeps
// expired rows around.
func (r *BackendResult) RegisterCleanup(m *cache.Manager) {
	if r.Cache != nil {
		m.Register(r.Cache)
	}
}
