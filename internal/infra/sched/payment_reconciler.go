package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/pravartak01/shlokayug-enrollment/internal/domain/ports/repository"
	"github.com/pravartak01/shlokayug-enrollment/internal/infra/metrics"
	"github.com/pravartak01/shlokayug-enrollment/internal/usecase"
)

// PaymentReconciler periodically scans for stale pending transactions
// and fails them. This covers checkouts the learner abandoned and
// confirms lost to a crash mid-flow; a late webhook for a failed
// transaction is rejected by the status guard and surfaces in logs.
type PaymentReconciler struct {
	uc         usecase.PaymentUseCase
	payments   repository.PaymentRepository
	interval   time.Duration // how often to scan
	staleAfter time.Duration // how old a pending transaction must be to fail
	log        *zerolog.Logger
}

func NewPaymentReconciler(uc usecase.PaymentUseCase, payments repository.PaymentRepository, interval, staleAfter time.Duration, logger *zerolog.Logger) *PaymentReconciler {
	if interval <= 0 {
		interval = time.Minute
	}
	if staleAfter <= 0 {
		staleAfter = 10 * time.Minute
	}
	recLog := logger.With().Str("component", "PaymentReconciler").Logger()
	return &PaymentReconciler{uc: uc, payments: payments, interval: interval, staleAfter: staleAfter, log: &recLog}
}

func (w *PaymentReconciler) Run(ctx context.Context) error {
	w.log.Info().Msg("Starting payment reconciler")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping payment reconciler")
			return ctx.Err()
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *PaymentReconciler) tick(ctx context.Context) {
	cutoff := time.Now().Add(-w.staleAfter)
	pending, err := w.payments.ListPendingOlderThan(ctx, repository.NoTX, cutoff, 200)
	if err != nil {
		w.log.Error().Err(err).Msg("list pending error")
		return
	}
	for _, p := range pending {
		if err := w.uc.MarkFailed(ctx, p.ID, "abandoned: no completion before timeout"); err != nil {
			w.log.Error().Err(err).Str("transaction_id", p.ID).Msg("failed to close stale transaction")
			continue
		}
		metrics.IncPayment("failed")
		w.log.Info().Str("transaction_id", p.ID).Str("order_id", p.Gateway.OrderID).Msg("stale pending transaction failed")
	}
}
