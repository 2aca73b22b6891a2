package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/pravartak01/shlokayug-enrollment/internal/domain"
	"github.com/pravartak01/shlokayug-enrollment/internal/domain/model"
	"github.com/pravartak01/shlokayug-enrollment/internal/domain/ports/repository"
)

var _ repository.EnrollmentRepository = (*enrollmentRepo)(nil)

type enrollmentRepo struct{ pool *pgxpool.Pool }

func NewPostgresEnrollmentRepo(pool *pgxpool.Pool) *enrollmentRepo {
	return &enrollmentRepo{pool: pool}
}

const enrollmentColumns = `id, learner_id, course_id, guru_id, type, status,
  payment, subscription, device_limit, expires_at, access_active, progress,
  version, created_at, updated_at`

// Save upserts the aggregate with an optimistic version check: the update
// applies only when the stored version still matches the loaded one, and
// the version is bumped on every write.
func (r *enrollmentRepo) Save(ctx context.Context, tx repository.Tx, e *model.Enrollment) error {
	payment, err := json.Marshal(e.Payment)
	if err != nil {
		return domain.ErrInvalidArgument
	}
	var subscription []byte
	if e.Subscription != nil {
		subscription, err = json.Marshal(e.Subscription)
		if err != nil {
			return domain.ErrInvalidArgument
		}
	}
	progress, err := json.Marshal(e.Progress)
	if err != nil {
		return domain.ErrInvalidArgument
	}

	const q = `
INSERT INTO enrollments (` + enrollmentColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13 + 1,$14,$15)
ON CONFLICT (id) DO UPDATE SET
  status=$6, payment=$7, subscription=$8, device_limit=$9,
  expires_at=$10, access_active=$11, progress=$12,
  version=enrollments.version + 1, updated_at=$15
WHERE enrollments.version = $13;`

	cmd, err := execSQL(ctx, r.pool, tx, q,
		e.ID, e.LearnerID, e.CourseID, e.GuruID, string(e.Type), string(e.Status),
		payment, subscription, e.Access.DeviceLimit, e.Access.ExpiresAt, e.Access.IsActive, progress,
		e.Version, e.CreatedAt, e.UpdatedAt)
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return err
		default:
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				return domain.ErrAlreadyEnrolled
			}
			return domain.ErrOperationFailed
		}
	}
	if cmd.RowsAffected() == 0 {
		// Lost the optimistic race; the caller reloads and retries.
		return domain.ErrOperationFailed
	}
	e.Version++
	return nil
}

func scanEnrollment(row pgx.Row) (*model.Enrollment, error) {
	e := &model.Enrollment{}
	var payment, subscription, progress []byte
	err := row.Scan(&e.ID, &e.LearnerID, &e.CourseID, &e.GuruID, &e.Type, &e.Status,
		&payment, &subscription, &e.Access.DeviceLimit, &e.Access.ExpiresAt, &e.Access.IsActive, &progress,
		&e.Version, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	if len(payment) > 0 {
		if err := json.Unmarshal(payment, &e.Payment); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
	}
	if len(subscription) > 0 {
		e.Subscription = &model.Subscription{}
		if err := json.Unmarshal(subscription, e.Subscription); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
	}
	if len(progress) > 0 {
		if err := json.Unmarshal(progress, &e.Progress); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
	}
	return e, nil
}

func (r *enrollmentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Enrollment, error) {
	q := `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE id=$1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanEnrollment(row)
}

func (r *enrollmentRepo) FindByLearnerAndCourse(ctx context.Context, tx repository.Tx, learnerID, courseID string) (*model.Enrollment, error) {
	q := `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE learner_id=$1 AND course_id=$2 LIMIT 1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, learnerID, courseID)
	if err != nil {
		return nil, err
	}
	return scanEnrollment(row)
}

func (r *enrollmentRepo) ListByLearner(ctx context.Context, tx repository.Tx, learnerID string, offset, limit int) ([]*model.Enrollment, error) {
	if limit <= 0 {
		limit = 50
	}
	const q = `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE learner_id=$1 ORDER BY created_at DESC OFFSET $2 LIMIT $3;`
	return r.list(ctx, tx, q, learnerID, offset, limit)
}

func (r *enrollmentRepo) ListExpiredActive(ctx context.Context, tx repository.Tx, asOf time.Time, limit int) ([]*model.Enrollment, error) {
	if limit <= 0 {
		limit = 200
	}
	const q = `
SELECT ` + enrollmentColumns + `
  FROM enrollments
 WHERE status='active' AND expires_at IS NOT NULL AND expires_at <= $1
 ORDER BY expires_at ASC
 LIMIT $2;`
	return r.list(ctx, tx, q, asOf, limit)
}

func (r *enrollmentRepo) list(ctx context.Context, tx repository.Tx, q string, args ...interface{}) ([]*model.Enrollment, error) {
	rows, err := queryRows(ctx, r.pool, tx, q, args...)
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return nil, err
		default:
			return nil, domain.ErrOperationFailed
		}
	}
	defer rows.Close()

	var out []*model.Enrollment
	for rows.Next() {
		e, err := scanEnrollment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}

func (r *enrollmentRepo) CountByStatus(ctx context.Context, tx repository.Tx) (map[model.EnrollmentStatus]int, error) {
	const q = `SELECT status, COUNT(*) FROM enrollments GROUP BY status;`
	rows, err := queryRows(ctx, r.pool, tx, q)
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return nil, err
		default:
			return nil, domain.ErrOperationFailed
		}
	}
	defer rows.Close()

	out := make(map[model.EnrollmentStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out[model.EnrollmentStatus(status)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}
