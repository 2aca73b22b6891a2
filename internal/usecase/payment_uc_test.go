//go:build !integration

// File: internal/usecase/payment_uc_test.go
package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/pravartak01/shlokayug-enrollment/internal/domain"
	"github.com/pravartak01/shlokayug-enrollment/internal/domain/model"
	"github.com/pravartak01/shlokayug-enrollment/internal/domain/ports/repository"
)

func testAmount(total int64) model.Amount {
	return model.Amount{Total: total, Base: total, Currency: "INR"}
}

func TestCreatePendingComputesSplit(t *testing.T) {
	env := newUCEnv()
	ctx := context.Background()

	tx, err := env.payments.CreatePending(ctx, repository.NoTX, "learner-1", "course-1", "guru-1", "order_001", testAmount(99900), nil)
	if err != nil {
		t.Fatalf("CreatePending failed: %v", err)
	}
	if tx.Status != model.PaymentStatusPending {
		t.Errorf("status = %s, want pending", tx.Status)
	}
	if tx.Revenue.GuruShare != 79920 || tx.Revenue.PlatformShare != 19980 {
		t.Errorf("split = %d/%d, want 79920/19980", tx.Revenue.GuruShare, tx.Revenue.PlatformShare)
	}
	if tx.Revenue.GuruShare+tx.Revenue.PlatformShare != tx.Amount.Total {
		t.Errorf("shares do not sum to total")
	}

	events, err := env.paymentRepo.ListEvents(ctx, repository.NoTX, tx.ID)
	if err != nil || len(events) != 1 {
		t.Fatalf("events = %d (%v), want 1 creation event", len(events), err)
	}
	if events[0].ToStatus != model.PaymentStatusPending {
		t.Errorf("creation event to = %s, want pending", events[0].ToStatus)
	}
}

func TestCreatePendingRejectsBrokenBreakdown(t *testing.T) {
	env := newUCEnv()
	amount := model.Amount{Total: 99900, Base: 99900, Tax: 500, Currency: "INR"} // total != base + tax

	_, err := env.payments.CreatePending(context.Background(), repository.NoTX, "learner-1", "course-1", "guru-1", "order_001", amount, nil)
	if !errors.Is(err, domain.ErrInvalidAmount) {
		t.Fatalf("err = %v, want ErrInvalidAmount", err)
	}
}

func TestMarkSuccessTransitionsOnce(t *testing.T) {
	env := newUCEnv()
	ctx := context.Background()
	tx, _ := env.payments.CreatePending(ctx, repository.NoTX, "learner-1", "course-1", "guru-1", "order_001", testAmount(49900), nil)

	got, err := env.payments.MarkSuccess(ctx, tx.ID, "pay_001", "sig")
	if err != nil {
		t.Fatalf("MarkSuccess failed: %v", err)
	}
	if got.Status != model.PaymentStatusSuccess || got.CompletedAt == nil {
		t.Errorf("status = %s, completedAt = %v", got.Status, got.CompletedAt)
	}
	if got.Gateway.PaymentID != "pay_001" {
		t.Errorf("payment id not pinned: %q", got.Gateway.PaymentID)
	}

	if _, err := env.payments.MarkSuccess(ctx, tx.ID, "pay_001", "sig"); !errors.Is(err, domain.ErrInvalidState) {
		t.Errorf("second MarkSuccess err = %v, want ErrInvalidState", err)
	}
}

func TestMarkFailedIsTerminal(t *testing.T) {
	env := newUCEnv()
	ctx := context.Background()
	tx, _ := env.payments.CreatePending(ctx, repository.NoTX, "learner-1", "course-1", "guru-1", "order_001", testAmount(49900), nil)

	if err := env.payments.MarkFailed(ctx, tx.ID, "card declined"); err != nil {
		t.Fatalf("MarkFailed failed: %v", err)
	}
	if _, err := env.payments.MarkSuccess(ctx, tx.ID, "pay_001", "sig"); !errors.Is(err, domain.ErrInvalidState) {
		t.Errorf("MarkSuccess after failure err = %v, want ErrInvalidState", err)
	}
	if err := env.payments.MarkFailed(ctx, tx.ID, "again"); !errors.Is(err, domain.ErrInvalidState) {
		t.Errorf("double MarkFailed err = %v, want ErrInvalidState", err)
	}
}

func TestProcessRefundPartialThenFull(t *testing.T) {
	env := newUCEnv()
	ctx := context.Background()
	tx, _ := env.payments.CreatePending(ctx, repository.NoTX, "learner-1", "course-1", "guru-1", "order_001", testAmount(100000), nil)
	if _, err := env.payments.MarkSuccess(ctx, tx.ID, "pay_001", "sig"); err != nil {
		t.Fatalf("MarkSuccess failed: %v", err)
	}

	got, err := env.payments.ProcessRefund(ctx, tx.ID, 30000, "partial content issue", "admin")
	if err != nil {
		t.Fatalf("partial refund failed: %v", err)
	}
	if got.Status != model.PaymentStatusPartiallyRefunded {
		t.Errorf("status = %s, want partially_refunded", got.Status)
	}

	if _, err := env.payments.ProcessRefund(ctx, tx.ID, 80000, "too much", "admin"); !errors.Is(err, domain.ErrInvalidRefundAmount) {
		t.Errorf("over-refund err = %v, want ErrInvalidRefundAmount", err)
	}

	got, err = env.payments.ProcessRefund(ctx, tx.ID, 70000, "remaining balance", "admin")
	if err != nil {
		t.Fatalf("closing refund failed: %v", err)
	}
	if got.Status != model.PaymentStatusRefunded {
		t.Errorf("status = %s, want refunded", got.Status)
	}
	if got.RefundedTotal() != 100000 {
		t.Errorf("refunded total = %d, want 100000", got.RefundedTotal())
	}

	if _, err := env.payments.ProcessRefund(ctx, tx.ID, 1, "empty", "admin"); !errors.Is(err, domain.ErrInvalidState) {
		t.Errorf("refund after full refund err = %v, want ErrInvalidState", err)
	}
}

func TestRefundBeforeSuccessRejected(t *testing.T) {
	env := newUCEnv()
	ctx := context.Background()
	tx, _ := env.payments.CreatePending(ctx, repository.NoTX, "learner-1", "course-1", "guru-1", "order_001", testAmount(49900), nil)

	if _, err := env.payments.ProcessRefund(ctx, tx.ID, 100, "premature", "admin"); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("err = %v, want ErrInvalidState", err)
	}
}

func TestDistributeRevenueExactlyOnce(t *testing.T) {
	env := newUCEnv()
	ctx := context.Background()
	tx, _ := env.payments.CreatePending(ctx, repository.NoTX, "learner-1", "course-1", "guru-1", "order_001", testAmount(99900), nil)

	if _, err := env.payments.DistributeRevenue(ctx, tx.ID, "system"); !errors.Is(err, domain.ErrNotSuccessful) {
		t.Fatalf("distribute on pending err = %v, want ErrNotSuccessful", err)
	}

	if _, err := env.payments.MarkSuccess(ctx, tx.ID, "pay_001", "sig"); err != nil {
		t.Fatalf("MarkSuccess failed: %v", err)
	}
	got, err := env.payments.DistributeRevenue(ctx, tx.ID, "system")
	if err != nil {
		t.Fatalf("DistributeRevenue failed: %v", err)
	}
	if !got.Revenue.IsDistributed || got.Revenue.DistributedAt == nil {
		t.Errorf("distribution not recorded: %+v", got.Revenue)
	}

	if _, err := env.payments.DistributeRevenue(ctx, tx.ID, "system"); !errors.Is(err, domain.ErrAlreadyDistributed) {
		t.Errorf("second distribute err = %v, want ErrAlreadyDistributed", err)
	}
}

func TestHighTicketFlagsManualReview(t *testing.T) {
	env := newUCEnv()
	ctx := context.Background()

	// Three prior attempts plus a Rs 60,000 ticket pushes the score past
	// the manual-review line.
	for i := 0; i < 3; i++ {
		if _, err := env.payments.CreatePending(ctx, repository.NoTX, "learner-1", "course-1", "guru-1", NewTransactionID(), testAmount(49900), nil); err != nil {
			t.Fatalf("seed attempt %d failed: %v", i, err)
		}
	}
	tx, err := env.payments.CreatePending(ctx, repository.NoTX, "learner-1", "course-1", "guru-1", "order_big", testAmount(60_000_00), nil)
	if err != nil {
		t.Fatalf("CreatePending failed: %v", err)
	}
	if tx.Risk.Level != model.RiskLevelHigh || !tx.Risk.ManualReview {
		t.Errorf("risk = %+v, want high with manual review", tx.Risk)
	}
}

func TestGetLoadsEventHistory(t *testing.T) {
	env := newUCEnv()
	ctx := context.Background()
	tx, _ := env.payments.CreatePending(ctx, repository.NoTX, "learner-1", "course-1", "guru-1", "order_001", testAmount(49900), nil)
	if _, err := env.payments.MarkSuccess(ctx, tx.ID, "pay_001", "sig"); err != nil {
		t.Fatalf("MarkSuccess failed: %v", err)
	}

	got, err := env.payments.Get(ctx, tx.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if len(got.Events) != 2 {
		t.Fatalf("events = %d, want creation + success", len(got.Events))
	}
	if got.Events[1].FromStatus != model.PaymentStatusPending || got.Events[1].ToStatus != model.PaymentStatusSuccess {
		t.Errorf("second event = %s -> %s", got.Events[1].FromStatus, got.Events[1].ToStatus)
	}
}
