package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/pravartak01/shlokayug-enrollment/internal/domain"
	"github.com/pravartak01/shlokayug-enrollment/internal/domain/model"
	"github.com/pravartak01/shlokayug-enrollment/internal/domain/ports/repository"
)

var _ repository.PaymentRepository = (*paymentRepo)(nil)

type paymentRepo struct{ pool *pgxpool.Pool }

func NewPostgresPaymentRepo(pool *pgxpool.Pool) *paymentRepo {
	return &paymentRepo{pool: pool}
}

const paymentColumns = `id, learner_id, course_id, guru_id, enrollment_id,
  amount_total, amount_base, amount_discount, amount_tax, amount_fee, currency,
  guru_share, platform_share, guru_percent, platform_percent, is_distributed, distributed_at,
  status, order_id, payment_id, signature, refunds, risk, meta,
  created_at, updated_at, completed_at`

func (r *paymentRepo) Save(ctx context.Context, tx repository.Tx, t *model.PaymentTransaction) error {
	refunds, err := json.Marshal(t.Refunds)
	if err != nil {
		return domain.ErrInvalidArgument
	}
	risk, err := json.Marshal(t.Risk)
	if err != nil {
		return domain.ErrInvalidArgument
	}
	meta, err := json.Marshal(t.Meta)
	if err != nil {
		return domain.ErrInvalidArgument
	}

	const q = `
INSERT INTO payments (` + paymentColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26,$27)
ON CONFLICT (id) DO UPDATE SET
  enrollment_id=$5, is_distributed=$16, distributed_at=$17,
  status=$18, payment_id=$20, signature=$21, refunds=$22, risk=$23, meta=$24,
  updated_at=$26, completed_at=$27;`

	_, err = execSQL(ctx, r.pool, tx, q,
		t.ID, t.LearnerID, t.CourseID, t.GuruID, t.EnrollmentID,
		t.Amount.Total, t.Amount.Base, t.Amount.Discount, t.Amount.Tax, t.Amount.ProcessingFee, t.Amount.Currency,
		t.Revenue.GuruShare, t.Revenue.PlatformShare, t.Revenue.GuruPercent, t.Revenue.PlatformPercent, t.Revenue.IsDistributed, t.Revenue.DistributedAt,
		t.Status, t.Gateway.OrderID, t.Gateway.PaymentID, t.Gateway.Signature, refunds, risk, meta,
		t.CreatedAt, t.UpdatedAt, t.CompletedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func scanPayment(row pgx.Row) (*model.PaymentTransaction, error) {
	t := &model.PaymentTransaction{}
	var refunds, risk, meta []byte
	err := row.Scan(&t.ID, &t.LearnerID, &t.CourseID, &t.GuruID, &t.EnrollmentID,
		&t.Amount.Total, &t.Amount.Base, &t.Amount.Discount, &t.Amount.Tax, &t.Amount.ProcessingFee, &t.Amount.Currency,
		&t.Revenue.GuruShare, &t.Revenue.PlatformShare, &t.Revenue.GuruPercent, &t.Revenue.PlatformPercent, &t.Revenue.IsDistributed, &t.Revenue.DistributedAt,
		&t.Status, &t.Gateway.OrderID, &t.Gateway.PaymentID, &t.Gateway.Signature, &refunds, &risk, &meta,
		&t.CreatedAt, &t.UpdatedAt, &t.CompletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	if len(refunds) > 0 {
		if err := json.Unmarshal(refunds, &t.Refunds); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
	}
	if len(risk) > 0 {
		if err := json.Unmarshal(risk, &t.Risk); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &t.Meta); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
	}
	return t, nil
}

func (r *paymentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.PaymentTransaction, error) {
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE id=$1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanPayment(row)
}

func (r *paymentRepo) FindByOrderID(ctx context.Context, tx repository.Tx, orderID string) (*model.PaymentTransaction, error) {
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE order_id=$1 LIMIT 1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, orderID)
	if err != nil {
		return nil, err
	}
	return scanPayment(row)
}

// UpdateStatusIfPending atomically updates status only when the current
// status is 'pending' or 'processing'.
func (r *paymentRepo) UpdateStatusIfPending(ctx context.Context, tx repository.Tx, id string, status model.PaymentStatus, paymentID, signature *string, completedAt *time.Time) (bool, error) {
	const q = `
UPDATE payments
   SET status = $2,
       payment_id = COALESCE($3, payment_id),
       signature = COALESCE($4, signature),
       completed_at = COALESCE($5, completed_at),
       updated_at = NOW()
 WHERE id = $1
   AND status IN ('pending','processing');`

	cmd, err := execSQL(ctx, r.pool, tx, q, id, string(status), paymentID, signature, completedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return false, err
		}
		return false, domain.ErrOperationFailed
	}
	return cmd.RowsAffected() >= 1, nil
}

func (r *paymentRepo) AppendEvent(ctx context.Context, tx repository.Tx, ev *model.TransactionEvent) error {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	const q = `
INSERT INTO transaction_events (id, transaction_id, from_status, to_status, note, created_at)
VALUES ($1,$2,$3,$4,$5,$6);`
	_, err := execSQL(ctx, r.pool, tx, q, ev.ID, ev.TransactionID, string(ev.FromStatus), string(ev.ToStatus), ev.Note, ev.CreatedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *paymentRepo) ListEvents(ctx context.Context, tx repository.Tx, transactionID string) ([]*model.TransactionEvent, error) {
	const q = `
SELECT id, transaction_id, from_status, to_status, note, created_at
  FROM transaction_events
 WHERE transaction_id=$1
 ORDER BY created_at ASC, id ASC;`
	rows, err := queryRows(ctx, r.pool, tx, q, transactionID)
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return nil, err
		default:
			return nil, domain.ErrOperationFailed
		}
	}
	defer rows.Close()

	var out []*model.TransactionEvent
	for rows.Next() {
		ev := new(model.TransactionEvent)
		if err := rows.Scan(&ev.ID, &ev.TransactionID, &ev.FromStatus, &ev.ToStatus, &ev.Note, &ev.CreatedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}

func (r *paymentRepo) CountRecentByLearnerAndCourse(ctx context.Context, tx repository.Tx, learnerID, courseID string, since time.Time) (int, error) {
	const q = `SELECT COUNT(*) FROM payments WHERE learner_id=$1 AND course_id=$2 AND created_at >= $3;`
	row, err := pickRow(ctx, r.pool, tx, q, learnerID, courseID, since)
	if err != nil {
		return 0, err
	}
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, domain.ErrReadDatabaseRow
	}
	return n, nil
}

func (r *paymentRepo) ListPendingOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.PaymentTransaction, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `SELECT ` + paymentColumns + ` FROM payments WHERE status='pending' AND created_at < $1 ORDER BY created_at ASC LIMIT $2;`
	rows, err := queryRows(ctx, r.pool, tx, q, olderThan, limit)
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return nil, err
		default:
			return nil, domain.ErrOperationFailed
		}
	}
	defer rows.Close()

	var out []*model.PaymentTransaction
	for rows.Next() {
		t, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}

func (r *paymentRepo) SumByStatusAndPeriod(ctx context.Context, tx repository.Tx, status model.PaymentStatus, period string) (int64, error) {
	const q = `
SELECT COALESCE(SUM(amount_total),0)
  FROM payments
 WHERE status=$1 AND completed_at >= DATE_TRUNC($2, NOW());`
	row, err := pickRow(ctx, r.pool, tx, q, string(status), period)
	if err != nil {
		return 0, err
	}
	var sum int64
	if err := row.Scan(&sum); err != nil {
		return 0, domain.ErrReadDatabaseRow
	}
	return sum, nil
}

func (r *paymentRepo) SumUndistributed(ctx context.Context, tx repository.Tx) (int64, error) {
	const q = `SELECT COALESCE(SUM(amount_total),0) FROM payments WHERE status='success' AND is_distributed=FALSE;`
	row, err := pickRow(ctx, r.pool, tx, q)
	if err != nil {
		return 0, err
	}
	var sum int64
	if err := row.Scan(&sum); err != nil {
		return 0, domain.ErrReadDatabaseRow
	}
	return sum, nil
}
