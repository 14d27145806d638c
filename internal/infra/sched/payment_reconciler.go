package sched

import (
	"context"
	"errors"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"opticalfiber-backend/internal/config"
	"opticalfiber-backend/internal/infra/logging"
	red "opticalfiber-backend/internal/infra/redis"
)

const reconcileLockKey = "lock:payment_reconciler"

// PendingReconciler is the part of the payment use case the reconciler drives.
type PendingReconciler interface {
	ReconcilePending(ctx context.Context, olderThan time.Time, limit int) (int, error)
}

// PaymentReconciler periodically re-verifies payments that stayed pending
// longer than staleAfter. This covers a lost webhook, a customer who never
// came back through the return url, or a crash between order creation and
// settlement. A redis lock keeps concurrent instances from sweeping twice.
type PaymentReconciler struct {
	uc         PendingReconciler
	locker     red.Locker // nil runs without cross-instance exclusion
	spec       string
	staleAfter time.Duration
	batch      int
	timeout    time.Duration
	now        func() time.Time
	log        *zerolog.Logger
}

func NewPaymentReconciler(uc PendingReconciler, locker red.Locker, cfg config.SchedulerConfig, logger *zerolog.Logger) *PaymentReconciler {
	staleAfter := cfg.StaleAfter
	if staleAfter <= 0 {
		staleAfter = 10 * time.Minute
	}
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = 200
	}
	spec := cfg.ReconcileCron
	if spec == "" {
		spec = "@every 5m"
	}
	l := logging.Component(logger, "PaymentReconciler")
	return &PaymentReconciler{
		uc:         uc,
		locker:     locker,
		spec:       spec,
		staleAfter: staleAfter,
		batch:      batch,
		timeout:    2 * time.Minute,
		now:        time.Now,
		log:        l,
	}
}

// Run schedules Tick on the cron spec and blocks until ctx ends. A sweep in
// flight is allowed to finish before Run returns.
func (w *PaymentReconciler) Run(ctx context.Context) error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(w.spec, func() { w.Tick(ctx) }); err != nil {
		return err
	}
	w.log.Info().Str("schedule", w.spec).Dur("stale_after", w.staleAfter).Msg("Starting payment reconciler")
	c.Start()

	<-ctx.Done()
	w.log.Info().Msg("Stopping payment reconciler")
	<-c.Stop().Done()
	return nil
}

// Tick runs one sweep. It returns the number of payments settled.
func (w *PaymentReconciler) Tick(ctx context.Context) int {
	if ctx.Err() != nil {
		return 0
	}
	runCtx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	if w.locker != nil {
		token, err := w.locker.TryLock(runCtx, reconcileLockKey, w.timeout)
		if err != nil {
			if errors.Is(err, red.ErrLockHeld) {
				w.log.Debug().Msg("reconcile skipped; another instance holds the lock")
			} else {
				w.log.Warn().Err(err).Msg("reconcile skipped; lock unavailable")
			}
			return 0
		}
		defer func() {
			if err := w.locker.Unlock(context.WithoutCancel(ctx), reconcileLockKey, token); err != nil {
				w.log.Warn().Err(err).Msg("reconcile lock release failed")
			}
		}()
	}

	cutoff := w.now().Add(-w.staleAfter)
	n, err := w.uc.ReconcilePending(runCtx, cutoff, w.batch)
	if err != nil {
		w.log.Error().Err(err).Msg("payment reconciler error")
	}
	if n > 0 {
		w.log.Info().Int("count", n).Msg("stale payments settled")
	}
	return n
}
