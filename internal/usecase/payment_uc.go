// File: internal/usecase/payment_uc.go
package usecase

import (
	"context"
	"hash/fnv"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/pravartak01/shlokayug-enrollment/internal/domain"
	"github.com/pravartak01/shlokayug-enrollment/internal/domain/model"
	"github.com/pravartak01/shlokayug-enrollment/internal/domain/ports/adapter"
	"github.com/pravartak01/shlokayug-enrollment/internal/domain/ports/repository"
)

// Compile-time check
var _ PaymentUseCase = (*paymentUC)(nil)

// PaymentUseCase is the ledger: append-only transaction records with
// verified status transitions, refunds and revenue distribution.
type PaymentUseCase interface {
	// CreatePending opens a ledger entry for a new payment attempt.
	CreatePending(ctx context.Context, tx repository.Tx, learnerID, courseID, guruID, orderID string, amount model.Amount, meta map[string]string) (*model.PaymentTransaction, error)
	// MarkSuccess transitions pending/processing to success.
	MarkSuccess(ctx context.Context, transactionID, gatewayPaymentID, signature string) (*model.PaymentTransaction, error)
	// MarkFailed terminally fails a transaction with a reason code.
	MarkFailed(ctx context.Context, transactionID, reason string) error
	// VerifySignature checks the gateway proof for an order/payment pair.
	VerifySignature(orderID, paymentID, signature string) bool
	ProcessRefund(ctx context.Context, transactionID string, amount int64, reason, actor string) (*model.PaymentTransaction, error)
	DistributeRevenue(ctx context.Context, transactionID, actor string) (*model.PaymentTransaction, error)
	Get(ctx context.Context, transactionID string) (*model.PaymentTransaction, error)
	GetByOrderID(ctx context.Context, orderID string) (*model.PaymentTransaction, error)
}

type paymentUC struct {
	payments    repository.PaymentRepository
	audits      repository.AuditRepository
	gateway     adapter.PaymentGateway
	tm          repository.TransactionManager
	guruPercent int
	log         *zerolog.Logger
}

func NewPaymentUseCase(payments repository.PaymentRepository, audits repository.AuditRepository, gateway adapter.PaymentGateway, tm repository.TransactionManager, guruPercent int, logger *zerolog.Logger) *paymentUC {
	l := logger.With().Str("component", "PaymentUC").Logger()
	return &paymentUC{payments: payments, audits: audits, gateway: gateway, tm: tm, guruPercent: guruPercent, log: &l}
}

// hashToInt64 derives the advisory-lock key for per-aggregate
// serialization inside a transaction.
func hashToInt64(s string) int64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return int64(h.Sum64() & ((1 << 63) - 1))
}

// lockAggregate serializes concurrent mutations of one aggregate via a
// transaction-scoped advisory lock. A nil tx (in-memory tests) skips it.
func lockAggregate(ctx context.Context, tx repository.Tx, key string) error {
	ptx, ok := tx.(pgx.Tx)
	if !ok {
		return nil
	}
	_, err := ptx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", hashToInt64(key))
	return err
}

// NewTransactionID returns a ULID: unique, generated server-side, and
// sortable by creation time for reconciliation scans.
func NewTransactionID() string {
	return ulid.Make().String()
}

func (u *paymentUC) CreatePending(ctx context.Context, tx repository.Tx, learnerID, courseID, guruID, orderID string, amount model.Amount, meta map[string]string) (*model.PaymentTransaction, error) {
	recent, err := u.payments.CountRecentByLearnerAndCourse(ctx, tx, learnerID, courseID, time.Now().Add(-24*time.Hour))
	if err != nil {
		recent = 0 // risk scoring degrades gracefully
	}
	t, err := model.NewPaymentTransaction(NewTransactionID(), learnerID, courseID, guruID, orderID, amount, u.guruPercent, recent)
	if err != nil {
		return nil, err
	}
	t.Meta = meta
	if err := u.payments.Save(ctx, tx, t); err != nil {
		return nil, err
	}
	if err := u.appendNewEvents(ctx, tx, t, 0); err != nil {
		return nil, err
	}
	u.log.Info().Str("transaction_id", t.ID).Str("order_id", orderID).Int64("total", amount.Total).Str("risk", string(t.Risk.Level)).Msg("pending transaction created")
	return t, nil
}

// appendNewEvents persists events the aggregate accumulated past index from.
func (u *paymentUC) appendNewEvents(ctx context.Context, tx repository.Tx, t *model.PaymentTransaction, from int) error {
	for i := from; i < len(t.Events); i++ {
		ev := t.Events[i]
		if err := u.payments.AppendEvent(ctx, tx, &ev); err != nil {
			return err
		}
	}
	return nil
}

func (u *paymentUC) MarkSuccess(ctx context.Context, transactionID, gatewayPaymentID, signature string) (*model.PaymentTransaction, error) {
	var out *model.PaymentTransaction
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if err := lockAggregate(ctx, tx, transactionID); err != nil {
			return err
		}
		t, err := u.payments.FindByID(ctx, tx, transactionID)
		if err != nil {
			return err
		}
		before := len(t.Events)
		if err := t.MarkSuccess(gatewayPaymentID, signature); err != nil {
			return err
		}
		ok, err := u.payments.UpdateStatusIfPending(ctx, tx, t.ID, model.PaymentStatusSuccess, &gatewayPaymentID, &signature, t.CompletedAt)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrInvalidState
		}
		if err := u.appendNewEvents(ctx, tx, t, before); err != nil {
			return err
		}
		out = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	u.log.Info().Str("transaction_id", transactionID).Msg("transaction marked success")
	return out, nil
}

func (u *paymentUC) MarkFailed(ctx context.Context, transactionID, reason string) error {
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if err := lockAggregate(ctx, tx, transactionID); err != nil {
			return err
		}
		t, err := u.payments.FindByID(ctx, tx, transactionID)
		if err != nil {
			return err
		}
		before := len(t.Events)
		if err := t.MarkFailed(reason); err != nil {
			return err
		}
		ok, err := u.payments.UpdateStatusIfPending(ctx, tx, t.ID, model.PaymentStatusFailed, nil, nil, nil)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrInvalidState
		}
		return u.appendNewEvents(ctx, tx, t, before)
	})
	if err != nil {
		return err
	}
	u.log.Warn().Str("transaction_id", transactionID).Str("reason", reason).Msg("transaction marked failed")
	return nil
}

func (u *paymentUC) VerifySignature(orderID, paymentID, signature string) bool {
	return u.gateway.VerifySignature(orderID, paymentID, signature)
}

func (u *paymentUC) ProcessRefund(ctx context.Context, transactionID string, amount int64, reason, actor string) (*model.PaymentTransaction, error) {
	var out *model.PaymentTransaction
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if err := lockAggregate(ctx, tx, transactionID); err != nil {
			return err
		}
		t, err := u.payments.FindByID(ctx, tx, transactionID)
		if err != nil {
			return err
		}
		before := len(t.Events)
		if err := t.ApplyRefund(amount, reason, actor); err != nil {
			return err
		}
		if err := u.payments.Save(ctx, tx, t); err != nil {
			return err
		}
		if err := u.appendNewEvents(ctx, tx, t, before); err != nil {
			return err
		}
		if t.EnrollmentID != nil {
			entry := &model.AuditEntry{
				EnrollmentID: *t.EnrollmentID,
				Action:       model.AuditActionRefundProcessed,
				Actor:        actor,
				Details:      reason,
			}
			if err := u.audits.Append(ctx, tx, entry); err != nil {
				return err
			}
		}
		out = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	u.log.Info().Str("transaction_id", transactionID).Int64("amount", amount).Str("status", string(out.Status)).Msg("refund processed")
	return out, nil
}

func (u *paymentUC) DistributeRevenue(ctx context.Context, transactionID, actor string) (*model.PaymentTransaction, error) {
	var out *model.PaymentTransaction
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if err := lockAggregate(ctx, tx, transactionID); err != nil {
			return err
		}
		t, err := u.payments.FindByID(ctx, tx, transactionID)
		if err != nil {
			return err
		}
		before := len(t.Events)
		if err := t.Distribute(); err != nil {
			return err
		}
		if err := u.payments.Save(ctx, tx, t); err != nil {
			return err
		}
		if err := u.appendNewEvents(ctx, tx, t, before); err != nil {
			return err
		}
		if t.EnrollmentID != nil {
			entry := &model.AuditEntry{
				EnrollmentID: *t.EnrollmentID,
				Action:       model.AuditActionRevenueDistributed,
				Actor:        actor,
			}
			if err := u.audits.Append(ctx, tx, entry); err != nil {
				return err
			}
		}
		out = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	u.log.Info().Str("transaction_id", transactionID).Int64("guru_share", out.Revenue.GuruShare).Msg("revenue distributed")
	return out, nil
}

func (u *paymentUC) Get(ctx context.Context, transactionID string) (*model.PaymentTransaction, error) {
	t, err := u.payments.FindByID(ctx, repository.NoTX, transactionID)
	if err != nil {
		return nil, err
	}
	events, err := u.payments.ListEvents(ctx, repository.NoTX, transactionID)
	if err == nil {
		t.Events = t.Events[:0]
		for _, ev := range events {
			t.Events = append(t.Events, *ev)
		}
	}
	return t, nil
}

func (u *paymentUC) GetByOrderID(ctx context.Context, orderID string) (*model.PaymentTransaction, error) {
	return u.payments.FindByOrderID(ctx, repository.NoTX, orderID)
}
