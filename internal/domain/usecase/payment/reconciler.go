package payment

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lekhanhduc/qrpay/internal/domain/entity"
	errs "github.com/lekhanhduc/qrpay/internal/domain/error"
	coreport "github.com/lekhanhduc/qrpay/internal/domain/port/core"
	"github.com/lekhanhduc/qrpay/internal/domain/port/gateway"
	"github.com/lekhanhduc/qrpay/internal/domain/port/persistence"
)

// Recorder receives reconciliation counters. The prometheus adapter
// implements it; NoopRecorder keeps tests and minimal deployments quiet.
type Recorder interface {
	CycleCompleted(duration time.Duration)
	CycleSkipped()
	FetchFailed()
	IntentExpired()
	PaymentMatched(kind string)
	PaymentDeduplicated()
}

// NoopRecorder discards all reconciliation counters.
type NoopRecorder struct{}

func (NoopRecorder) CycleCompleted(time.Duration) {}
func (NoopRecorder) CycleSkipped()                {}
func (NoopRecorder) FetchFailed()                 {}
func (NoopRecorder) IntentExpired()               {}
func (NoopRecorder) PaymentMatched(string)        {}
func (NoopRecorder) PaymentDeduplicated()         {}

// Reconciler drives the periodic fetch-evaluate-apply-cleanup pass over all
// pending intents. It owns no records itself; everything it touches lives in
// the injected stores.
type Reconciler struct {
	transactions persistence.TransactionStore
	source       gateway.StatementSource
	fulfiller    *Fulfiller
	notifier     coreport.Notifier
	timeProvider coreport.TimeProvider
	logger       coreport.Logger
	metrics      Recorder
	interval     time.Duration

	// inCycle guards against overlapping cycles: a slow fetch must not let a
	// second evaluation loop run against the same stores.
	inCycle atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewReconciler creates the reconciliation loop. metrics may be nil.
func NewReconciler(
	transactions persistence.TransactionStore,
	source gateway.StatementSource,
	fulfiller *Fulfiller,
	notifier coreport.Notifier,
	timeProvider coreport.TimeProvider,
	logger coreport.Logger,
	metrics Recorder,
	interval time.Duration,
) *Reconciler {
	if metrics == nil {
		metrics = NoopRecorder{}
	}
	return &Reconciler{
		transactions: transactions,
		source:       source,
		fulfiller:    fulfiller,
		notifier:     notifier,
		timeProvider: timeProvider,
		logger:       logger,
		metrics:      metrics,
		interval:     interval,
	}
}

// Start launches the polling loop. It returns immediately; Stop waits for
// any in-flight cycle to finish.
func (r *Reconciler) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)
	ticker := r.timeProvider.NewTicker(r.interval)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer ticker.Stop()

		r.logger.Info("Reconciliation loop started", map[string]any{
			"interval": r.interval.String(),
		})

		for {
			select {
			case <-ctx.Done():
				r.logger.Info("Reconciliation loop stopped", nil)
				return
			case <-ticker.C():
				r.RunCycle(ctx)
			}
		}
	}()
}

// Stop cancels the loop and blocks until the current cycle has finished.
func (r *Reconciler) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
}

// RunCycle executes one reconciliation pass. When a previous cycle is still
// running the call is skipped; the fixed interval retries soon enough.
func (r *Reconciler) RunCycle(ctx context.Context) {
	if !r.inCycle.CompareAndSwap(false, true) {
		r.logger.Warn("Previous reconciliation cycle still running, skipping", nil)
		r.metrics.CycleSkipped()
		return
	}
	defer r.inCycle.Store(false)

	started := r.timeProvider.Now()

	// One fetch shared across every intent this cycle. A total fetch failure
	// yields an empty list: expiry handling below must still run.
	lines, err := r.source.Fetch(ctx)
	if err != nil {
		r.logger.Error("Statement fetch failed, proceeding with empty statement", map[string]any{
			"error": err.Error(),
		})
		r.metrics.FetchFailed()
		lines = nil
	}

	// Snapshot at cycle start; intents created mid-cycle wait for the next one.
	intents, err := r.transactions.ListAll(ctx)
	if err != nil {
		r.logger.Error("Listing pending transactions failed", map[string]any{
			"error": err.Error(),
		})
		return
	}

	for _, intent := range intents {
		if err := r.processIntent(ctx, intent, lines); err != nil {
			// One intent's failure must not block the others.
			r.logger.Error("Intent evaluation failed", logFields(err))
		}
	}

	if swept, err := r.transactions.SweepExpiredRefs(ctx, r.timeProvider.Now()); err != nil {
		r.logger.Error("Ref ledger sweep failed", map[string]any{
			"error": err.Error(),
		})
	} else if swept > 0 {
		r.logger.Info("Swept expired statement references", map[string]any{
			"count": swept,
		})
	}

	r.metrics.CycleCompleted(r.timeProvider.Now().Sub(started))
}

// processIntent evaluates a single pending intent against this cycle's
// statement lines. Panics are contained here so a malformed record cannot
// take down the loop.
func (r *Reconciler) processIntent(ctx context.Context, intent *entity.PendingTransaction, lines []entity.StatementLine) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = errs.NewReconcileError(intent.ID, intent.UserID, "panic", fmt.Errorf("%v", rec))
		}
	}()

	now := r.timeProvider.Now()

	// Expiry is checked before matching and regardless of fetch outcome.
	if intent.IsExpired(now) {
		return r.expire(ctx, intent)
	}

	line := Match(intent, lines)
	if line == nil {
		// Not cleared yet; the intent stays for a future cycle.
		return nil
	}

	ref, err := r.transactions.GetRef(ctx, line.RefNo)
	if err != nil {
		return errs.NewReconcileError(intent.ID, intent.UserID, "ref lookup", err)
	}
	if ref != nil && ref.TransactionID != intent.ID {
		// The feed row was already consumed by a different intent, so this
		// match is a true duplicate: drop the intent without applying effects.
		r.logger.Info("Statement reference already processed, clearing intent", map[string]any{
			"transaction_id": intent.ID,
			"attributed_to":  ref.TransactionID,
			"ref_no":         line.RefNo,
		})
		r.metrics.PaymentDeduplicated()
		if _, err := r.transactions.Remove(ctx, intent.ID); err != nil {
			return errs.NewReconcileError(intent.ID, intent.UserID, "remove", err)
		}
		return nil
	}

	if ref == nil {
		// Write-ahead: the refNo is recorded before any side effect so a crash
		// between here and fulfillment can never attribute the payment twice.
		if err := r.transactions.RecordRef(ctx, line.RefNo, intent.ID); err != nil {
			return errs.NewReconcileError(intent.ID, intent.UserID, "record ref", err)
		}
		r.metrics.PaymentMatched(string(intent.Kind))
	} else {
		// The refNo is attributed to this very intent and the intent is still
		// pending, so an earlier fulfillment attempt failed after the
		// write-ahead record. The stores apply their mutations transactionally,
		// meaning the failed attempt committed nothing: run fulfillment again
		// rather than strand a cleared payment without a terminal outcome.
		r.logger.Warn("Retrying fulfillment for recorded statement reference", map[string]any{
			"transaction_id": intent.ID,
			"ref_no":         line.RefNo,
		})
	}

	switch intent.Kind {
	case entity.KindPurchase:
		err = r.fulfiller.FulfillPurchase(ctx, intent)
	default:
		err = r.fulfiller.FulfillTopUp(ctx, intent)
	}
	if err != nil {
		// The refNo stays recorded and the intent stays pending; the next
		// cycle finds them attributed to each other and retries.
		return errs.NewReconcileError(intent.ID, intent.UserID, "fulfillment", err)
	}

	if _, err := r.transactions.Remove(ctx, intent.ID); err != nil {
		return errs.NewReconcileError(intent.ID, intent.UserID, "remove", err)
	}

	r.logger.Info("Pending transaction reconciled", map[string]any{
		"transaction_id": intent.ID,
		"user_id":        intent.UserID,
		"kind":           string(intent.Kind),
		"ref_no":         line.RefNo,
	})
	return nil
}

// expire removes a timed-out intent and tells the user their QR is no longer
// valid.
func (r *Reconciler) expire(ctx context.Context, intent *entity.PendingTransaction) error {
	removed, err := r.transactions.Remove(ctx, intent.ID)
	if err != nil {
		return errs.NewReconcileError(intent.ID, intent.UserID, "expire", err)
	}
	if !removed {
		// Already cancelled by the user between snapshot and now.
		return nil
	}

	r.metrics.IntentExpired()
	r.logger.Info("Pending transaction expired", map[string]any{
		"transaction_id": intent.ID,
		"user_id":        intent.UserID,
		"kind":           string(intent.Kind),
	})

	if err := r.notifier.Send(ctx, intent.ChatID, fmt.Sprintf(
		"QR code expired.\nAmount: %d\nCode: %s\nThe payment request was cancelled after %s without a transfer.",
		intent.Amount, intent.Code, entity.PendingTTL)); err != nil {
		r.logger.Warn("Expiry notification failed", map[string]any{
			"chat_id": intent.ChatID,
			"error":   err.Error(),
		})
	}
	return nil
}

// logFields extracts structured fields from rich errors, falling back to the
// bare message.
func logFields(err error) map[string]any {
	type fielder interface {
		LogFields() map[string]any
	}
	if f, ok := err.(fielder); ok {
		return f.LogFields()
	}
	return map[string]any{"error": err.Error()}
}
