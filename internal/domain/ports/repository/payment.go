package repository

import (
	"context"
	"time"

	"github.com/pravartak01/shlokayug-enrollment/internal/domain/model"
)

// -----------------------------
// Payment ledger
// -----------------------------

type PaymentRepository interface {
	Save(ctx context.Context, tx Tx, t *model.PaymentTransaction) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.PaymentTransaction, error)
	FindByOrderID(ctx context.Context, tx Tx, orderID string) (*model.PaymentTransaction, error)
	// UpdateStatusIfPending atomically moves a pending/processing
	// transaction to the given status; reports whether a row changed.
	UpdateStatusIfPending(ctx context.Context, tx Tx, id string, status model.PaymentStatus, paymentID, signature *string, completedAt *time.Time) (bool, error)
	AppendEvent(ctx context.Context, tx Tx, ev *model.TransactionEvent) error
	ListEvents(ctx context.Context, tx Tx, transactionID string) ([]*model.TransactionEvent, error)
	CountRecentByLearnerAndCourse(ctx context.Context, tx Tx, learnerID, courseID string, since time.Time) (int, error)
	ListPendingOlderThan(ctx context.Context, tx Tx, olderThan time.Time, limit int) ([]*model.PaymentTransaction, error)
	SumByStatusAndPeriod(ctx context.Context, tx Tx, status model.PaymentStatus, period string) (int64, error)
	SumUndistributed(ctx context.Context, tx Tx) (int64, error)
}
