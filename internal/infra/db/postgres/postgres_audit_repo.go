package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/pravartak01/shlokayug-enrollment/internal/domain"
	"github.com/pravartak01/shlokayug-enrollment/internal/domain/model"
	"github.com/pravartak01/shlokayug-enrollment/internal/domain/ports/repository"
)

var _ repository.AuditRepository = (*auditRepo)(nil)

// auditRepo is insert-only; there is no update or delete path.
type auditRepo struct{ pool *pgxpool.Pool }

func NewPostgresAuditRepo(pool *pgxpool.Pool) *auditRepo {
	return &auditRepo{pool: pool}
}

func (r *auditRepo) Append(ctx context.Context, tx repository.Tx, entry *model.AuditEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	const q = `
INSERT INTO audit_entries (id, enrollment_id, action, actor, details, ip_address, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7);`
	_, err := execSQL(ctx, r.pool, tx, q, entry.ID, entry.EnrollmentID, entry.Action, entry.Actor, entry.Details, entry.IPAddress, entry.CreatedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *auditRepo) ListByEnrollment(ctx context.Context, tx repository.Tx, enrollmentID string, offset, limit int) ([]*model.AuditEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	const q = `
SELECT id, enrollment_id, action, actor, details, ip_address, created_at
  FROM audit_entries
 WHERE enrollment_id=$1
 ORDER BY created_at DESC
 OFFSET $2 LIMIT $3;`
	rows, err := queryRows(ctx, r.pool, tx, q, enrollmentID, offset, limit)
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return nil, err
		default:
			return nil, domain.ErrOperationFailed
		}
	}
	defer rows.Close()

	var out []*model.AuditEntry
	for rows.Next() {
		e := new(model.AuditEntry)
		if err := rows.Scan(&e.ID, &e.EnrollmentID, &e.Action, &e.Actor, &e.Details, &e.IPAddress, &e.CreatedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}
