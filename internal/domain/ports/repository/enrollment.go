package repository

import (
	"context"
	"time"

	"github.com/pravartak01/shlokayug-enrollment/internal/domain/model"
)

// -----------------------------
// Enrollments
// -----------------------------

type EnrollmentRepository interface {
	// Save upserts the aggregate. Implementations bump Version and fail
	// with domain.ErrOperationFailed when the optimistic check loses.
	Save(ctx context.Context, tx Tx, e *model.Enrollment) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Enrollment, error)
	FindByLearnerAndCourse(ctx context.Context, tx Tx, learnerID, courseID string) (*model.Enrollment, error)
	ListByLearner(ctx context.Context, tx Tx, learnerID string, offset, limit int) ([]*model.Enrollment, error)
	ListExpiredActive(ctx context.Context, tx Tx, asOf time.Time, limit int) ([]*model.Enrollment, error)
	CountByStatus(ctx context.Context, tx Tx) (map[model.EnrollmentStatus]int, error)
}

// -----------------------------
// Progress units
// -----------------------------

type ProgressRepository interface {
	// UpsertUnit records one completed unit, accumulating time on conflict.
	UpsertUnit(ctx context.Context, tx Tx, u *model.CompletedUnit) error
	CountUnits(ctx context.Context, tx Tx, enrollmentID string) (int, error)
	SumTimeSeconds(ctx context.Context, tx Tx, enrollmentID string) (int64, error)
	ListUnits(ctx context.Context, tx Tx, enrollmentID string) ([]*model.CompletedUnit, error)
}
