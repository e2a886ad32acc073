// Package gormstore keeps the ledger, analytics results and the result cache
// in MySQL through gorm.
package gormstore

import (
	"context"
	"errors"
	"fmt"
	stdlog "log"
	"os"
	"strings"
	"time"

	"finpulse/internal/core"

	"github.com/shopspring/decimal"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Config holds connection and pool settings.
type Config struct {
	User     string
	Password string
	Host     string
	Port     string
	Name     string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	SlowThreshold   time.Duration
}

// DSN builds a go-sql-driver DSN. A host of the form /cloudsql/<instance>
// connects over a unix socket.
func (c Config) DSN() string {
	network := "tcp"
	address := fmt.Sprintf("%s:%s", c.Host, c.Port)
	if strings.HasPrefix(c.Host, "/cloudsql/") {
		network = "unix"
		address = c.Host
	}
	return fmt.Sprintf("%s:%s@%s(%s)/%s?parseTime=true&loc=UTC&charset=utf8mb4",
		c.User, c.Password, network, address, c.Name)
}

// Store implements the ledger, the analytics store and cache.Store.
type Store struct {
	db *gorm.DB
}

// Open connects to MySQL and tunes the connection pool.
func Open(cfg Config) (*Store, error) {
	db, err := gorm.Open(mysql.Open(cfg.DSN()), gormConfig(cfg.SlowThreshold))
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("mysql pool: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns >= 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if cfg.ConnMaxIdleTime > 0 {
		sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}
	return &Store{db: db}, nil
}

// NewWithDB wraps an already opened gorm handle.
func NewWithDB(db *gorm.DB) *Store {
	return &Store{db: db}
}

func gormConfig(slow time.Duration) *gorm.Config {
	if slow <= 0 {
		slow = time.Second
	}
	return &gorm.Config{
		Logger: logger.New(
			stdlog.New(os.Stdout, "\r\n", stdlog.LstdFlags),
			logger.Config{
				Colorful:                  false,
				LogLevel:                  logger.Error,
				SlowThreshold:             slow,
				IgnoreRecordNotFoundError: true,
			},
		),
		NowFunc: func() time.Time { return time.Now().UTC() },
	}
}

// Migrate creates or updates every table.
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(allModels()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ---- ledger reads ----

func (s *Store) ListTransactions(ctx context.Context, userID int64, from time.Time) ([]core.Transaction, error) {
	var rows []Transaction
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND occurred_at >= ?", userID, from.UTC()).
		Order("occurred_at, id").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	out := make([]core.Transaction, 0, len(rows))
	for _, r := range rows {
		out = append(out, transactionFromModel(r))
	}
	return out, nil
}

func (s *Store) ListBudgets(ctx context.Context, userID int64, startFrom time.Time) ([]core.Budget, error) {
	var rows []Budget
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND start_date >= ?", userID, startFrom.UTC()).
		Order("start_date, id").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	out := make([]core.Budget, 0, len(rows))
	for _, r := range rows {
		out = append(out, budgetFromModel(r))
	}
	return out, nil
}

func (s *Store) GetCategory(ctx context.Context, categoryID int64) (core.Category, bool, error) {
	var c Category
	err := s.db.WithContext(ctx).First(&c, categoryID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return core.Category{}, false, nil
	}
	if err != nil {
		return core.Category{}, false, fmt.Errorf("get category %d: %w", categoryID, err)
	}
	return core.Category{ID: c.ID, UserID: c.UserID, Name: c.Name}, true, nil
}

func (s *Store) SumTransactions(ctx context.Context, userID int64, categoryID *int64, from, to time.Time) (decimal.Decimal, error) {
	q := s.db.WithContext(ctx).Model(&Transaction{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("user_id = ? AND occurred_at BETWEEN ? AND ?", userID, from.UTC(), to.UTC())
	if categoryID != nil {
		q = q.Where("category_id = ?", *categoryID)
	}
	var total decimal.Decimal
	if err := q.Row().Scan(&total); err != nil {
		return decimal.Zero, fmt.Errorf("sum transactions: %w", err)
	}
	return total, nil
}

// ---- ledger writes ----

func (s *Store) CreateCategory(ctx context.Context, userID int64, name string) (core.Category, error) {
	c := Category{UserID: userID, Name: name}
	err := s.db.WithContext(ctx).
		Where(Category{UserID: userID, Name: name}).
		FirstOrCreate(&c).Error
	if err != nil {
		return core.Category{}, fmt.Errorf("create category: %w", err)
	}
	return core.Category{ID: c.ID, UserID: c.UserID, Name: c.Name}, nil
}

func (s *Store) CreateTransaction(ctx context.Context, t core.Transaction) (int64, error) {
	if err := t.Validate(); err != nil {
		return 0, err
	}
	m := transactionToModel(t)
	if err := s.db.WithContext(ctx).Create(&m).Error; err != nil {
		return 0, fmt.Errorf("create transaction: %w", err)
	}
	return m.ID, nil
}

// ImportTransactions inserts the batch in one database transaction.
func (s *Store) ImportTransactions(ctx context.Context, txs []core.Transaction) (int, error) {
	rows := make([]Transaction, 0, len(txs))
	for i, t := range txs {
		if err := t.Validate(); err != nil {
			return 0, fmt.Errorf("row %d: %w", i, err)
		}
		rows = append(rows, transactionToModel(t))
	}
	if len(rows) == 0 {
		return 0, nil
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(rows, 200).Error
	})
	if err != nil {
		return 0, fmt.Errorf("import transactions: %w", err)
	}
	return len(rows), nil
}

func (s *Store) CreateBudget(ctx context.Context, b core.Budget) (int64, error) {
	if err := b.Validate(); err != nil {
		return 0, err
	}
	th := b.Thresholds()
	m := Budget{
		UserID:           b.UserID,
		CategoryID:       b.CategoryID,
		Amount:           b.Amount.Round(2),
		Period:           string(b.Period),
		StartDate:        b.StartDate.UTC(),
		WarningThreshold: th.Warning,
		DangerThreshold:  th.Danger,
	}
	if !b.EndDate.IsZero() {
		end := b.EndDate.UTC()
		m.EndDate = &end
	}
	if err := s.db.WithContext(ctx).Create(&m).Error; err != nil {
		return 0, fmt.Errorf("create budget: %w", err)
	}
	return m.ID, nil
}

// ---- analytics persistence ----

func patternUpsert() clause.OnConflict {
	return clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "pattern_type"}, {Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"description", "pattern_data", "frequency_days", "confidence_score",
			"impact_amount", "last_detected", "is_active",
		}),
	}
}

func (s *Store) UpsertPattern(ctx context.Context, p core.SpendingPattern) error {
	m := patternToModel(p)
	if err := s.db.WithContext(ctx).Clauses(patternUpsert()).Create(&m).Error; err != nil {
		return fmt.Errorf("upsert pattern %q: %w", p.Name, err)
	}
	return nil
}

func (s *Store) ListActivePatterns(ctx context.Context, userID int64, minConfidence float64) ([]core.SpendingPattern, error) {
	var rows []SpendingPattern
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND is_active = ? AND confidence_score >= ?", userID, true, minConfidence).
		Order("confidence_score DESC, name").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list patterns: %w", err)
	}
	out := make([]core.SpendingPattern, 0, len(rows))
	for _, r := range rows {
		out = append(out, patternFromModel(r))
	}
	return out, nil
}

func healthScoreUpsert() clause.OnConflict {
	return clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "score_date"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"overall_score",
			"budget_adherence_score", "budget_adherence_computed",
			"spending_consistency_score", "spending_consistency_computed",
			"savings_rate_score", "savings_rate_computed",
			"category_balance_score", "category_balance_computed",
			"score_breakdown", "recommendations", "updated_at",
		}),
	}
}

func (s *Store) UpsertHealthScore(ctx context.Context, sc core.HealthScore) error {
	m := healthScoreToModel(sc)
	if err := s.db.WithContext(ctx).Clauses(healthScoreUpsert()).Create(&m).Error; err != nil {
		return fmt.Errorf("upsert health score: %w", err)
	}
	return nil
}

func insightUpsert() clause.OnConflict {
	return clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "insight_type"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"title", "description", "data", "confidence_score", "is_read", "generated_at",
		}),
	}
}

func (s *Store) UpsertInsight(ctx context.Context, i core.UserInsight) error {
	m := insightToModel(i)
	if err := s.db.WithContext(ctx).Clauses(insightUpsert()).Create(&m).Error; err != nil {
		return fmt.Errorf("upsert insight %q: %w", i.Type, err)
	}
	return nil
}

// ---- cache store ----

func cacheUpsert() clause.OnConflict {
	return clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "cache_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"cached_data", "expires_at"}),
	}
}

func (s *Store) GetEntry(ctx context.Context, key core.CacheKey) (core.CacheEntry, bool, error) {
	var m AnalyticsCacheEntry
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND cache_key = ?", key.UserID, key.Key).
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return core.CacheEntry{}, false, nil
	}
	if err != nil {
		return core.CacheEntry{}, false, err
	}
	return core.CacheEntry{UserID: m.UserID, Key: m.CacheKey, Data: m.CachedData, ExpiresAt: m.ExpiresAt.UTC()}, true, nil
}

func (s *Store) PutEntry(ctx context.Context, e core.CacheEntry) error {
	data := e.Data
	if data == nil {
		data = []byte{}
	}
	m := AnalyticsCacheEntry{UserID: e.UserID, CacheKey: e.Key, CachedData: data, ExpiresAt: e.ExpiresAt.UTC()}
	return s.db.WithContext(ctx).Clauses(cacheUpsert()).Create(&m).Error
}

func (s *Store) DeleteEntry(ctx context.Context, key core.CacheKey) error {
	return s.db.WithContext(ctx).
		Where("user_id = ? AND cache_key = ?", key.UserID, key.Key).
		Delete(&AnalyticsCacheEntry{}).Error
}

func (s *Store) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Where("expires_at <= ?", now.UTC()).Delete(&AnalyticsCacheEntry{})
	return res.RowsAffected, res.Error
}
