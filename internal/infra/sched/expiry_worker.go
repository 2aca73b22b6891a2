package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/pravartak01/shlokayug-enrollment/internal/infra/metrics"
	"github.com/pravartak01/shlokayug-enrollment/internal/usecase"
)

// ExpiryWorker periodically finishes lapsed enrollments via the use case.
// Expiry is also applied lazily on read; the sweep keeps listings and
// stats honest for enrollments nobody touches.
type ExpiryWorker struct {
	interval time.Duration
	subUC    usecase.SubscriptionUseCase
	log      *zerolog.Logger
}

func NewExpiryWorker(interval time.Duration, subUC usecase.SubscriptionUseCase, logger *zerolog.Logger) *ExpiryWorker {
	exprLog := logger.With().Str("component", "ExpiryWorker").Logger()
	return &ExpiryWorker{
		interval: interval,
		subUC:    subUC,
		log:      &exprLog,
	}
}

func (w *ExpiryWorker) Run(ctx context.Context) error {
	w.log.Info().Msg("Starting expiry worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping expiry worker")
			return ctx.Err()
		case <-ticker.C:
			n, err := w.subUC.FinishExpired(ctx)
			if err != nil {
				w.log.Error().Err(err).Msg("expiry worker error")
			}
			if n > 0 {
				metrics.AddExpiredSweep(n)
				w.log.Info().Int("count", n).Msg("expired enrollments finished")
			}
		}
	}
}
