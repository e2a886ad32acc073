package services

import (
	"context"
	"fmt"
	"io"

	"finpulse/internal/amqp"
	"finpulse/internal/core"
	"finpulse/internal/log"
)

// LedgerWriter is the write side of a ledger store.
type LedgerWriter interface {
	CreateCategory(ctx context.Context, userID int64, name string) (core.Category, error)
	CreateTransaction(ctx context.Context, t core.Transaction) (int64, error)
	ImportTransactions(ctx context.Context, txs []core.Transaction) (int, error)
	CreateBudget(ctx context.Context, b core.Budget) (int64, error)
}

// Publisher announces ledger writes to other processes.
type Publisher interface {
	PublishLedgerChanged(ctx context.Context, msg *amqp.LedgerChangedMessage) error
}

// Invalidator drops a user's cached analytics in-process.
type Invalidator interface {
	InvalidateUser(ctx context.Context, userID int64) error
}

// LedgerService records ledger writes and tells the analytics side about
// them. The store write is authoritative; notification failures are logged
// and never fail the write.
type LedgerService struct {
	store       LedgerWriter
	publisher   Publisher
	invalidator Invalidator
	logger      *log.Logger
}

// NewLedgerService builds the service. publisher and invalidator are both
// optional; when the publish fails or there is no publisher, invalidator is
// used so the local cache never serves stale bundles.
func NewLedgerService(store LedgerWriter, publisher Publisher, invalidator Invalidator, logger *log.Logger) *LedgerService {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &LedgerService{
		store:       store,
		publisher:   publisher,
		invalidator: invalidator,
		logger:      logger.WithComponent(log.ComponentLedger),
	}
}

func (s *LedgerService) CreateCategory(ctx context.Context, userID int64, name string) (core.Category, error) {
	c, err := s.store.CreateCategory(ctx, userID, name)
	if err != nil {
		return core.Category{}, fmt.Errorf("save category: %w", err)
	}
	s.notify(ctx, amqp.NewLedgerChangedMessage(userID, amqp.EntityCategory, c.ID))
	return c, nil
}

func (s *LedgerService) RecordTransaction(ctx context.Context, t core.Transaction) (int64, error) {
	id, err := s.store.CreateTransaction(ctx, t)
	if err != nil {
		return 0, fmt.Errorf("save transaction: %w", err)
	}
	s.notify(ctx, amqp.NewLedgerChangedMessage(t.UserID, amqp.EntityTransaction, id))
	return id, nil
}

// ImportTransactions stores txs atomically and sends one notification per
// affected user.
func (s *LedgerService) ImportTransactions(ctx context.Context, txs []core.Transaction) (int, error) {
	if len(txs) == 0 {
		return 0, nil
	}
	n, err := s.store.ImportTransactions(ctx, txs)
	if err != nil {
		return 0, fmt.Errorf("import transactions: %w", err)
	}
	seen := make(map[int64]bool)
	for _, t := range txs {
		if seen[t.UserID] {
			continue
		}
		seen[t.UserID] = true
		s.notify(ctx, amqp.NewLedgerChangedMessage(t.UserID, amqp.EntityImport, 0))
	}
	s.logger.InfoContext(ctx, "Imported transactions", "count", n, "users", len(seen))
	return n, nil
}

func (s *LedgerService) RecordBudget(ctx context.Context, b core.Budget) (int64, error) {
	id, err := s.store.CreateBudget(ctx, b)
	if err != nil {
		return 0, fmt.Errorf("save budget: %w", err)
	}
	s.notify(ctx, amqp.NewLedgerChangedMessage(b.UserID, amqp.EntityBudget, id))
	return id, nil
}

func (s *LedgerService) notify(ctx context.Context, msg *amqp.LedgerChangedMessage) {
	if s.publisher != nil {
		err := s.publisher.PublishLedgerChanged(ctx, msg)
		if err == nil {
			return
		}
		s.logger.ErrorContext(ctx, "Failed to publish ledger change",
			log.FieldUserID, msg.UserID,
			log.FieldEntity, msg.Entity,
			log.FieldError, err)
	}
	if s.invalidator == nil {
		return
	}
	if err := s.invalidator.InvalidateUser(ctx, msg.UserID); err != nil {
		s.logger.WarnContext(ctx, "Failed to invalidate analytics cache",
			log.FieldUserID, msg.UserID,
			log.FieldError, err)
	}
}

// Close closes the store and publisher when they hold resources.
func (s *LedgerService) Close() error {
	var errs []error

	if c, ok := s.store.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}
	if c, ok := s.publisher.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close ledger service: %v", errs)
	}
	return nil
}
