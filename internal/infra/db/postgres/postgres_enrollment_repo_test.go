//go:build integration

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/pravartak01/shlokayug-enrollment/internal/domain"
	"github.com/pravartak01/shlokayug-enrollment/internal/domain/model"
)

func newTestEnrollment(t *testing.T, learnerID, courseID string) *model.Enrollment {
	t.Helper()
	summary := model.PaymentSummary{
		TransactionID: uuid.NewString(),
		Method:        "upi",
		Amount:        model.Amount{Total: 99900, Base: 99900, Currency: "INR"},
		Revenue:       model.SplitRevenue(99900, 80),
		IsCompleted:   true,
		OrderID:       "order-" + uuid.NewString(),
	}
	e, err := model.NewEnrollment(uuid.NewString(), learnerID, courseID, "guru-1", model.EnrollmentTypeOneTime, summary, nil, 3)
	if err != nil {
		t.Fatalf("NewEnrollment: %v", err)
	}
	return e
}

func TestEnrollmentRepo_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}
	ctx := context.Background()
	repo := NewPostgresEnrollmentRepo(testPool)

	t.Run("should save and find with nested documents intact", func(t *testing.T) {
		cleanup(t)
		e := newTestEnrollment(t, "learner-1", "course-1")

		if err := repo.Save(ctx, nil, e); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		if e.Version != 1 {
			t.Errorf("version after insert = %d, want 1", e.Version)
		}

		found, err := repo.FindByID(ctx, nil, e.ID)
		if err != nil {
			t.Fatalf("FindByID failed: %v", err)
		}
		if found.Payment.Revenue.GuruShare != 79920 {
			t.Errorf("payment summary round-tripped wrong: %+v", found.Payment)
		}
		if found.Access.DeviceLimit != 3 || !found.Access.IsActive {
			t.Errorf("access round-tripped wrong: %+v", found.Access)
		}

		byPair, err := repo.FindByLearnerAndCourse(ctx, nil, "learner-1", "course-1")
		if err != nil || byPair.ID != e.ID {
			t.Fatalf("FindByLearnerAndCourse = %v, %v", byPair, err)
		}
	})

	t.Run("should reject a second enrollment for the same learner and course", func(t *testing.T) {
		cleanup(t)
		if err := repo.Save(ctx, nil, newTestEnrollment(t, "learner-1", "course-1")); err != nil {
			t.Fatalf("first Save failed: %v", err)
		}
		err := repo.Save(ctx, nil, newTestEnrollment(t, "learner-1", "course-1"))
		if !errors.Is(err, domain.ErrAlreadyEnrolled) {
			t.Errorf("duplicate Save err = %v, want ErrAlreadyEnrolled", err)
		}
	})

	t.Run("version check loses a concurrent update", func(t *testing.T) {
		cleanup(t)
		e := newTestEnrollment(t, "learner-1", "course-1")
		if err := repo.Save(ctx, nil, e); err != nil {
			t.Fatal(err)
		}

		winner, _ := repo.FindByID(ctx, nil, e.ID)
		loser, _ := repo.FindByID(ctx, nil, e.ID)

		winner.Status = model.EnrollmentStatusSuspended
		if err := repo.Save(ctx, nil, winner); err != nil {
			t.Fatalf("winner Save failed: %v", err)
		}

		loser.Status = model.EnrollmentStatusCancelled
		if err := repo.Save(ctx, nil, loser); !errors.Is(err, domain.ErrOperationFailed) {
			t.Errorf("stale Save err = %v, want ErrOperationFailed", err)
		}

		found, _ := repo.FindByID(ctx, nil, e.ID)
		if found.Status != model.EnrollmentStatusSuspended || found.Version != 2 {
			t.Errorf("stored = %s v%d, want suspended v2", found.Status, found.Version)
		}
	})

	t.Run("sweep queries see only lapsed rows", func(t *testing.T) {
		cleanup(t)
		past := time.Now().Add(-time.Hour)
		lapsed := newTestEnrollment(t, "learner-1", "course-1")
		lapsed.Access.ExpiresAt = &past
		fresh := newTestEnrollment(t, "learner-2", "course-1")
		for _, e := range []*model.Enrollment{lapsed, fresh} {
			if err := repo.Save(ctx, nil, e); err != nil {
				t.Fatal(err)
			}
		}

		expired, err := repo.ListExpiredActive(ctx, nil, time.Now(), 10)
		if err != nil {
			t.Fatalf("ListExpiredActive failed: %v", err)
		}
		if len(expired) != 1 || expired[0].ID != lapsed.ID {
			t.Errorf("expired = %+v", expired)
		}

		counts, err := repo.CountByStatus(ctx, nil)
		if err != nil || counts[model.EnrollmentStatusActive] != 2 {
			t.Errorf("counts = %v (%v)", counts, err)
		}

		mine, err := repo.ListByLearner(ctx, nil, "learner-1", 0, 10)
		if err != nil || len(mine) != 1 {
			t.Errorf("ListByLearner = %d rows (%v), want 1", len(mine), err)
		}
	})
}
