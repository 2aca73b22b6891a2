// File: internal/usecase/stats_uc.go
package usecase

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/pravartak01/shlokayug-enrollment/internal/domain/model"
	"github.com/pravartak01/shlokayug-enrollment/internal/domain/ports/repository"
)

var _ StatsUseCase = (*statsUC)(nil)

// RevenueStats is the admin rollup of ledger totals in minor units.
type RevenueStats struct {
	SuccessWeek   int64 `json:"success_week"`
	SuccessMonth  int64 `json:"success_month"`
	SuccessYear   int64 `json:"success_year"`
	RefundedMonth int64 `json:"refunded_month"`
	Undistributed int64 `json:"undistributed"`
}

type EnrollmentStats struct {
	ByStatus map[model.EnrollmentStatus]int `json:"by_status"`
}

type StatsUseCase interface {
	Revenue(ctx context.Context) (*RevenueStats, error)
	Enrollments(ctx context.Context) (*EnrollmentStats, error)
}

type statsUC struct {
	payments    repository.PaymentRepository
	enrollments repository.EnrollmentRepository
	log         *zerolog.Logger
}

func NewStatsUseCase(payments repository.PaymentRepository, enrollments repository.EnrollmentRepository, logger *zerolog.Logger) *statsUC {
	l := logger.With().Str("component", "StatsUC").Logger()
	return &statsUC{payments: payments, enrollments: enrollments, log: &l}
}

func (u *statsUC) Revenue(ctx context.Context) (*RevenueStats, error) {
	out := &RevenueStats{}
	var err error
	if out.SuccessWeek, err = u.payments.SumByStatusAndPeriod(ctx, repository.NoTX, model.PaymentStatusSuccess, "week"); err != nil {
		return nil, err
	}
	if out.SuccessMonth, err = u.payments.SumByStatusAndPeriod(ctx, repository.NoTX, model.PaymentStatusSuccess, "month"); err != nil {
		return nil, err
	}
	if out.SuccessYear, err = u.payments.SumByStatusAndPeriod(ctx, repository.NoTX, model.PaymentStatusSuccess, "year"); err != nil {
		return nil, err
	}
	if out.RefundedMonth, err = u.payments.SumByStatusAndPeriod(ctx, repository.NoTX, model.PaymentStatusRefunded, "month"); err != nil {
		return nil, err
	}
	if out.Undistributed, err = u.payments.SumUndistributed(ctx, repository.NoTX); err != nil {
		return nil, err
	}
	return out, nil
}

func (u *statsUC) Enrollments(ctx context.Context) (*EnrollmentStats, error) {
	byStatus, err := u.enrollments.CountByStatus(ctx, repository.NoTX)
	if err != nil {
		return nil, err
	}
	return &EnrollmentStats{ByStatus: byStatus}, nil
}
