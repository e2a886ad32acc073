package worker

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"finpulse/internal/amqp"
	"finpulse/internal/analytics"
	"finpulse/internal/core"
	"finpulse/internal/log"
)

// Analytics is the part of the engine the worker drives.
type Analytics interface {
	InvalidateUser(ctx context.Context, userID int64) error
	RefreshAnalytics(ctx context.Context, userID int64, period core.Period) (analytics.Bundle, error)
}

// LedgerInvalidator drops a cached ledger snapshot, e.g. the sheets ledger.
type LedgerInvalidator interface {
	Invalidate()
}

type Options struct {
	// Recompute warms the cache for Periods after invalidating.
	Recompute bool
	Periods   []core.Period
	LockTTL   time.Duration
}

// LedgerWorker reacts to ledger change events by dropping the user's cached
// analytics and optionally recomputing them.
type LedgerWorker struct {
	engine  Analytics
	locker  Locker
	ledger  LedgerInvalidator
	opts    Options
	logger  *log.Logger
	handled atomic.Int64
}

func NewLedgerWorker(engine Analytics, locker Locker, ledger LedgerInvalidator, opts Options, logger *log.Logger) *LedgerWorker {
	if locker == nil {
		locker = NewLocalLocker()
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = 30 * time.Second
	}
	if len(opts.Periods) == 0 {
		opts.Periods = []core.Period{core.PeriodMonthly}
	}
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &LedgerWorker{
		engine: engine,
		locker: locker,
		ledger: ledger,
		opts:   opts,
		logger: logger.WithComponent(log.ComponentWorker),
	}
}

func lockKey(userID int64) string {
	return fmt.Sprintf("lock:analytics:%d", userID)
}

// HandleLedgerChanged processes one ledger change message. A returned error
// makes the consumer requeue the message.
func (w *LedgerWorker) HandleLedgerChanged(ctx context.Context, msg *amqp.LedgerChangedMessage) error {
	logger := w.logger.With(log.FieldUserID, msg.UserID, log.FieldEntity, msg.Entity)
	logger.InfoContext(ctx, "Processing ledger change", log.FieldEntityID, msg.EntityID)

	if w.ledger != nil {
		w.ledger.Invalidate()
	}
	if err := w.engine.InvalidateUser(ctx, msg.UserID); err != nil {
		return fmt.Errorf("invalidate user %d: %w", msg.UserID, err)
	}
	w.handled.Add(1)

	if !w.opts.Recompute {
		return nil
	}

	lock, err := w.locker.Obtain(ctx, lockKey(msg.UserID), w.opts.LockTTL)
	if errors.Is(err, ErrNotObtained) {
		// the holder is already recomputing this user
		logger.InfoContext(ctx, "Recompute in progress elsewhere, skipping")
		return nil
	}
	if err != nil {
		logger.WarnContext(ctx, "Could not obtain lock, skipping recompute", log.FieldError, err)
		return nil
	}
	defer func() {
		if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
			logger.WarnContext(ctx, "Failed to release lock", log.FieldError, err)
		}
	}()

	for _, p := range w.opts.Periods {
		b, err := w.engine.RefreshAnalytics(ctx, msg.UserID, p)
		if err != nil {
			return fmt.Errorf("recompute %s analytics for user %d: %w", p, msg.UserID, err)
		}
		logger.InfoContext(ctx, "Recomputed analytics",
			log.FieldPeriod, p,
			log.FieldOverallScore, b.FinancialHealth.Overall,
			"warnings", len(b.Warnings))
	}
	return nil
}

// Handled returns the number of messages that invalidated a cache.
func (w *LedgerWorker) Handled() int64 {
	return w.handled.Load()
}

// Consumer delivers ledger change messages, e.g. *amqp.Client.
type Consumer interface {
	ConsumeLedgerChanges(ctx context.Context, handler amqp.Handler) error
}

// Run consumes until ctx is cancelled. Cancellation is not an error.
func (w *LedgerWorker) Run(ctx context.Context, c Consumer) error {
	w.logger.InfoContext(ctx, "Ledger worker started",
		"recompute", w.opts.Recompute, "periods", len(w.opts.Periods))
	err := c.ConsumeLedgerChanges(ctx, w.HandleLedgerChanged)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
