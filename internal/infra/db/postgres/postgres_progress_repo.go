package postgres

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/pravartak01/shlokayug-enrollment/internal/domain"
	"github.com/pravartak01/shlokayug-enrollment/internal/domain/model"
	"github.com/pravartak01/shlokayug-enrollment/internal/domain/ports/repository"
)

var _ repository.ProgressRepository = (*progressRepo)(nil)

type progressRepo struct{ pool *pgxpool.Pool }

func NewPostgresProgressRepo(pool *pgxpool.Pool) *progressRepo {
	return &progressRepo{pool: pool}
}

// UpsertUnit accumulates time on re-completion of the same unit instead
// of inserting a duplicate row.
func (r *progressRepo) UpsertUnit(ctx context.Context, tx repository.Tx, u *model.CompletedUnit) error {
	const q = `
INSERT INTO completed_units (enrollment_id, unit_id, time_spent_seconds, completed_at)
VALUES ($1,$2,$3,$4)
ON CONFLICT (enrollment_id, unit_id) DO UPDATE SET
  time_spent_seconds = completed_units.time_spent_seconds + EXCLUDED.time_spent_seconds,
  completed_at = EXCLUDED.completed_at;`
	_, err := execSQL(ctx, r.pool, tx, q, u.EnrollmentID, u.UnitID, u.TimeSpentSeconds, u.CompletedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *progressRepo) CountUnits(ctx context.Context, tx repository.Tx, enrollmentID string) (int, error) {
	const q = `SELECT COUNT(*) FROM completed_units WHERE enrollment_id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, enrollmentID)
	if err != nil {
		return 0, err
	}
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, domain.ErrReadDatabaseRow
	}
	return n, nil
}

func (r *progressRepo) SumTimeSeconds(ctx context.Context, tx repository.Tx, enrollmentID string) (int64, error) {
	const q = `SELECT COALESCE(SUM(time_spent_seconds),0) FROM completed_units WHERE enrollment_id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, enrollmentID)
	if err != nil {
		return 0, err
	}
	var sum int64
	if err := row.Scan(&sum); err != nil {
		return 0, domain.ErrReadDatabaseRow
	}
	return sum, nil
}

func (r *progressRepo) ListUnits(ctx context.Context, tx repository.Tx, enrollmentID string) ([]*model.CompletedUnit, error) {
	const q = `
SELECT enrollment_id, unit_id, time_spent_seconds, completed_at
  FROM completed_units
 WHERE enrollment_id=$1
 ORDER BY completed_at ASC;`
	rows, err := queryRows(ctx, r.pool, tx, q, enrollmentID)
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return nil, err
		default:
			return nil, domain.ErrOperationFailed
		}
	}
	defer rows.Close()

	var out []*model.CompletedUnit
	for rows.Next() {
		u := new(model.CompletedUnit)
		if err := rows.Scan(&u.EnrollmentID, &u.UnitID, &u.TimeSpentSeconds, &u.CompletedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}
