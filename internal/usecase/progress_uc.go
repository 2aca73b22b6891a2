// File: internal/usecase/progress_uc.go
package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"github.com/pravartak01/shlokayug-enrollment/internal/domain"
	"github.com/pravartak01/shlokayug-enrollment/internal/domain/model"
	"github.com/pravartak01/shlokayug-enrollment/internal/domain/ports/repository"
)

var _ ProgressUseCase = (*progressUC)(nil)

// ProgressUseCase records completed content units and keeps the derived
// snapshot (percentage, time, certificate eligibility) on the aggregate.
// The total unit count comes from the caller since course structure is
// owned elsewhere.
type ProgressUseCase interface {
	Update(ctx context.Context, enrollmentID, unitID string, timeSpentSeconds int64, totalUnits int, actor, ip string) (*model.Enrollment, error)
	ListUnits(ctx context.Context, enrollmentID string) ([]*model.CompletedUnit, error)
}

type progressUC struct {
	enrollments repository.EnrollmentRepository
	progress    repository.ProgressRepository
	audits      repository.AuditRepository
	tm          repository.TransactionManager
	log         *zerolog.Logger
}

func NewProgressUseCase(enrollments repository.EnrollmentRepository, progress repository.ProgressRepository, audits repository.AuditRepository, tm repository.TransactionManager, logger *zerolog.Logger) *progressUC {
	l := logger.With().Str("component", "ProgressUC").Logger()
	return &progressUC{enrollments: enrollments, progress: progress, audits: audits, tm: tm, log: &l}
}

func (u *progressUC) Update(ctx context.Context, enrollmentID, unitID string, timeSpentSeconds int64, totalUnits int, actor, ip string) (*model.Enrollment, error) {
	if enrollmentID == "" || unitID == "" || timeSpentSeconds < 0 || totalUnits <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	var out *model.Enrollment
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if err := lockAggregate(ctx, tx, enrollmentID); err != nil {
			return err
		}
		e, err := u.enrollments.FindByID(ctx, tx, enrollmentID)
		if err != nil {
			return err
		}
		if e.RefreshExpiry(time.Now()) {
			if err := u.enrollments.Save(ctx, tx, e); err != nil {
				return err
			}
		}
		if err := e.CheckAccess(time.Now()); err != nil {
			return err
		}

		unit := &model.CompletedUnit{
			EnrollmentID:     enrollmentID,
			UnitID:           unitID,
			TimeSpentSeconds: timeSpentSeconds,
			CompletedAt:      time.Now(),
		}
		if err := u.progress.UpsertUnit(ctx, tx, unit); err != nil {
			return err
		}
		completed, err := u.progress.CountUnits(ctx, tx, enrollmentID)
		if err != nil {
			return err
		}
		total, err := u.progress.SumTimeSeconds(ctx, tx, enrollmentID)
		if err != nil {
			return err
		}
		e.Progress.Recompute(completed, totalUnits, total, time.Now())
		if err := u.enrollments.Save(ctx, tx, e); err != nil {
			return err
		}
		entry := &model.AuditEntry{
			EnrollmentID: enrollmentID,
			Action:       model.AuditActionProgressUpdated,
			Actor:        actor,
			Details:      fmt.Sprintf("unit %s; %.1f%% complete", unitID, e.Progress.PercentComplete),
			IPAddress:    ip,
		}
		if err := u.audits.Append(ctx, tx, entry); err != nil {
			return err
		}
		out = e
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (u *progressUC) ListUnits(ctx context.Context, enrollmentID string) ([]*model.CompletedUnit, error) {
	if enrollmentID == "" {
		return nil, domain.ErrInvalidArgument
	}
	return u.progress.ListUnits(ctx, repository.NoTX, enrollmentID)
}
