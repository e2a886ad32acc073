package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"finpulse/internal/amqp"
	"finpulse/internal/analytics"
	"finpulse/internal/core"
	"finpulse/internal/log"
)

type fakeEngine struct {
	invalidated []int64
	refreshed   []core.Period
	invErr      error
	refreshErr  error
}

func (f *fakeEngine) InvalidateUser(_ context.Context, userID int64) error {
	f.invalidated = append(f.invalidated, userID)
	return f.invErr
}

func (f *fakeEngine) RefreshAnalytics(_ context.Context, userID int64, p core.Period) (analytics.Bundle, error) {
	if f.refreshErr != nil {
		return analytics.Bundle{}, f.refreshErr
	}
	f.refreshed = append(f.refreshed, p)
	return analytics.Bundle{UserID: userID, Period: p}, nil
}

type fakeLedger struct{ invalidations int }

func (f *fakeLedger) Invalidate() { f.invalidations++ }

type failingLocker struct{ err error }

func (f failingLocker) Obtain(context.Context, string, time.Duration) (Lock, error) {
	return nil, f.err
}

func TestHandleLedgerChanged(t *testing.T) {
	msg := amqp.NewLedgerChangedMessage(7, amqp.EntityTransaction, 1)

	tests := []struct {
		name          string
		engine        *fakeEngine
		locker        Locker
		opts          Options
		wantErr       bool
		wantRefreshed int
	}{
		{
			name:   "invalidate only",
			engine: &fakeEngine{},
		},
		{
			name:          "recompute default period",
			engine:        &fakeEngine{},
			opts:          Options{Recompute: true},
			wantRefreshed: 1,
		},
		{
			name:          "recompute listed periods",
			engine:        &fakeEngine{},
			opts:          Options{Recompute: true, Periods: []core.Period{core.PeriodMonthly, core.PeriodYearly}},
			wantRefreshed: 2,
		},
		{
			name:    "invalidate failure requeues",
			engine:  &fakeEngine{invErr: errors.New("redis down")},
			wantErr: true,
		},
		{
			name:    "recompute failure requeues",
			engine:  &fakeEngine{refreshErr: analytics.ErrDataAccess},
			opts:    Options{Recompute: true},
			wantErr: true,
		},
		{
			name:   "lock held elsewhere skips recompute",
			engine: &fakeEngine{},
			locker: failingLocker{err: ErrNotObtained},
			opts:   Options{Recompute: true},
		},
		{
			name:   "lock backend error skips recompute",
			engine: &fakeEngine{},
			locker: failingLocker{err: errors.New("dial tcp: refused")},
			opts:   Options{Recompute: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ledger := &fakeLedger{}
			w := NewLedgerWorker(tt.engine, tt.locker, ledger, tt.opts, log.Discard())

			err := w.HandleLedgerChanged(context.Background(), msg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if len(tt.engine.invalidated) != 1 || tt.engine.invalidated[0] != 7 {
				t.Errorf("invalidated = %v", tt.engine.invalidated)
			}
			if ledger.invalidations != 1 {
				t.Errorf("ledger snapshot invalidations = %d", ledger.invalidations)
			}
			if len(tt.engine.refreshed) != tt.wantRefreshed {
				t.Errorf("refreshed = %v, want %d", tt.engine.refreshed, tt.wantRefreshed)
			}
		})
	}
}

func TestHandleLedgerChangedReleasesLock(t *testing.T) {
	locker := NewLocalLocker()
	w := NewLedgerWorker(&fakeEngine{}, locker, nil, Options{Recompute: true}, log.Discard())
	ctx := context.Background()
	msg := amqp.NewLedgerChangedMessage(7, amqp.EntityBudget, 2)

	for i := 0; i < 2; i++ {
		if err := w.HandleLedgerChanged(ctx, msg); err != nil {
			t.Fatal(err)
		}
	}
	if w.Handled() != 2 {
		t.Errorf("handled = %d", w.Handled())
	}
	if _, err := locker.Obtain(ctx, lockKey(7), time.Second); err != nil {
		t.Errorf("lock still held after handling: %v", err)
	}
}

func TestLocalLocker(t *testing.T) {
	l := NewLocalLocker()
	clock := time.Date(2025, 10, 19, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return clock }
	ctx := context.Background()

	first, err := l.Obtain(ctx, "k", time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := l.Obtain(ctx, "k", time.Minute); !errors.Is(err, ErrNotObtained) {
		t.Fatalf("second obtain err = %v, want ErrNotObtained", err)
	}
	if _, err := l.Obtain(ctx, "other", time.Minute); err != nil {
		t.Errorf("independent key blocked: %v", err)
	}

	clock = clock.Add(2 * time.Minute)
	second, err := l.Obtain(ctx, "k", time.Minute)
	if err != nil {
		t.Fatalf("expired lock not reclaimed: %v", err)
	}
	// stale release must not free the new holder's lock
	_ = first.Release(ctx)
	if _, err := l.Obtain(ctx, "k", time.Minute); !errors.Is(err, ErrNotObtained) {
		t.Error("stale release freed the new holder's lock")
	}
	_ = second.Release(ctx)
	if _, err := l.Obtain(ctx, "k", time.Minute); err != nil {
		t.Errorf("release did not free the lock: %v", err)
	}
}

type fakeConsumer struct {
	msgs []*amqp.LedgerChangedMessage
	err  error
}

func (f *fakeConsumer) ConsumeLedgerChanges(ctx context.Context, handler amqp.Handler) error {
	for _, m := range f.msgs {
		if err := handler(ctx, m); err != nil {
			return err
		}
	}
	return f.err
}

func TestRun(t *testing.T) {
	engine := &fakeEngine{}
	w := NewLedgerWorker(engine, nil, nil, Options{}, log.Discard())
	c := &fakeConsumer{
		msgs: []*amqp.LedgerChangedMessage{
			amqp.NewLedgerChangedMessage(7, amqp.EntityTransaction, 1),
			amqp.NewLedgerChangedMessage(8, amqp.EntityTransaction, 2),
		},
		err: context.Canceled,
	}
	if err := w.Run(context.Background(), c); err != nil {
		t.Fatalf("cancellation should end Run cleanly: %v", err)
	}
	if len(engine.invalidated) != 2 {
		t.Errorf("invalidated = %v", engine.invalidated)
	}

	c = &fakeConsumer{err: errors.New("access refused")}
	if err := w.Run(context.Background(), c); err == nil {
		t.Error("expected consumer error")
	}
}
