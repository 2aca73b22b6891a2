//go:build integration

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/pravartak01/shlokayug-enrollment/internal/domain"
	"github.com/pravartak01/shlokayug-enrollment/internal/domain/model"
)

func newTestTransaction(t *testing.T) *model.PaymentTransaction {
	t.Helper()
	amount := model.Amount{Total: 99900, Base: 99900, Currency: "INR"}
	tx, err := model.NewPaymentTransaction(ulid.Make().String(), "learner-1", "course-1", "guru-1", "order-"+ulid.Make().String(), amount, 80, 0)
	if err != nil {
		t.Fatalf("NewPaymentTransaction: %v", err)
	}
	tx.Meta = map[string]string{"enrollment_type": "one_time", "method": "upi"}
	return tx
}

func TestPaymentRepo_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}
	ctx := context.Background()
	repo := NewPostgresPaymentRepo(testPool)

	t.Run("should save and find a transaction with its JSON fields", func(t *testing.T) {
		cleanup(t)
		tx := newTestTransaction(t)

		if err := repo.Save(ctx, nil, tx); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		found, err := repo.FindByID(ctx, nil, tx.ID)
		if err != nil {
			t.Fatalf("FindByID failed: %v", err)
		}
		if found.Revenue.GuruShare != 79920 || found.Revenue.PlatformShare != 19980 {
			t.Errorf("split round-tripped wrong: %+v", found.Revenue)
		}
		if found.Meta["method"] != "upi" {
			t.Errorf("meta round-tripped wrong: %v", found.Meta)
		}

		byOrder, err := repo.FindByOrderID(ctx, nil, tx.Gateway.OrderID)
		if err != nil || byOrder.ID != tx.ID {
			t.Fatalf("FindByOrderID = %v, %v", byOrder, err)
		}
		if _, err := repo.FindByID(ctx, nil, "missing"); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("missing id err = %v, want ErrNotFound", err)
		}
	})

	t.Run("UpdateStatusIfPending guards terminal states", func(t *testing.T) {
		cleanup(t)
		tx := newTestTransaction(t)
		if err := repo.Save(ctx, nil, tx); err != nil {
			t.Fatalf("Save failed: %v", err)
		}

		payID := "pay-1"
		sig := "sig-1"
		now := time.Now()
		ok, err := repo.UpdateStatusIfPending(ctx, nil, tx.ID, model.PaymentStatusSuccess, &payID, &sig, &now)
		if err != nil || !ok {
			t.Fatalf("first update = %v, %v", ok, err)
		}

		ok, err = repo.UpdateStatusIfPending(ctx, nil, tx.ID, model.PaymentStatusFailed, nil, nil, nil)
		if err != nil {
			t.Fatalf("second update errored: %v", err)
		}
		if ok {
			t.Error("second update reported a row change on a terminal transaction")
		}

		found, _ := repo.FindByID(ctx, nil, tx.ID)
		if found.Status != model.PaymentStatusSuccess || found.Gateway.PaymentID != "pay-1" {
			t.Errorf("stored = %s / %s", found.Status, found.Gateway.PaymentID)
		}
	})

	t.Run("event log appends in order", func(t *testing.T) {
		cleanup(t)
		tx := newTestTransaction(t)
		if err := repo.Save(ctx, nil, tx); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		for i := range tx.Events {
			ev := tx.Events[i]
			if err := repo.AppendEvent(ctx, nil, &ev); err != nil {
				t.Fatalf("AppendEvent failed: %v", err)
			}
		}
		if err := tx.MarkSuccess("pay-1", "sig-1"); err != nil {
			t.Fatal(err)
		}
		ev := tx.Events[len(tx.Events)-1]
		if err := repo.AppendEvent(ctx, nil, &ev); err != nil {
			t.Fatalf("AppendEvent failed: %v", err)
		}

		events, err := repo.ListEvents(ctx, nil, tx.ID)
		if err != nil {
			t.Fatalf("ListEvents failed: %v", err)
		}
		if len(events) != 2 {
			t.Fatalf("events = %d, want 2", len(events))
		}
		if events[1].ToStatus != model.PaymentStatusSuccess {
			t.Errorf("last event to = %s", events[1].ToStatus)
		}
	})

	t.Run("aggregates pendings and sums", func(t *testing.T) {
		cleanup(t)
		stale := newTestTransaction(t)
		stale.CreatedAt = time.Now().Add(-time.Hour)
		if err := repo.Save(ctx, nil, stale); err != nil {
			t.Fatal(err)
		}
		fresh := newTestTransaction(t)
		if err := repo.Save(ctx, nil, fresh); err != nil {
			t.Fatal(err)
		}

		pending, err := repo.ListPendingOlderThan(ctx, nil, time.Now().Add(-30*time.Minute), 10)
		if err != nil {
			t.Fatalf("ListPendingOlderThan failed: %v", err)
		}
		if len(pending) != 1 || pending[0].ID != stale.ID {
			t.Errorf("pending = %+v", pending)
		}

		n, err := repo.CountRecentByLearnerAndCourse(ctx, nil, "learner-1", "course-1", time.Now().Add(-24*time.Hour))
		if err != nil || n != 2 {
			t.Errorf("recent count = %d (%v), want 2", n, err)
		}

		payID, sig, now := "pay-1", "sig-1", time.Now()
		if _, err := repo.UpdateStatusIfPending(ctx, nil, fresh.ID, model.PaymentStatusSuccess, &payID, &sig, &now); err != nil {
			t.Fatal(err)
		}
		sum, err := repo.SumByStatusAndPeriod(ctx, nil, model.PaymentStatusSuccess, "month")
		if err != nil || sum != 99900 {
			t.Errorf("month sum = %d (%v), want 99900", sum, err)
		}
		und, err := repo.SumUndistributed(ctx, nil)
		if err != nil || und != 99900 {
			t.Errorf("undistributed = %d (%v), want 99900", und, err)
		}
	})
}
