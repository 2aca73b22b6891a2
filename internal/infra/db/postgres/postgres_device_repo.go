package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/pravartak01/shlokayug-enrollment/internal/domain"
	"github.com/pravartak01/shlokayug-enrollment/internal/domain/model"
	"github.com/pravartak01/shlokayug-enrollment/internal/domain/ports/repository"
)

var _ repository.DeviceRepository = (*deviceRepo)(nil)

type deviceRepo struct{ pool *pgxpool.Pool }

func NewPostgresDeviceRepo(pool *pgxpool.Pool) *deviceRepo {
	return &deviceRepo{pool: pool}
}

const deviceColumns = `id, enrollment_id, fingerprint, platform, client_meta, is_active, registered_at, last_seen_at`

func (r *deviceRepo) Save(ctx context.Context, tx repository.Tx, d *model.Device) error {
	const q = `
INSERT INTO devices (` + deviceColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (id) DO UPDATE SET
  platform=$4, client_meta=$5, is_active=$6, last_seen_at=$8;`
	_, err := execSQL(ctx, r.pool, tx, q, d.ID, d.EnrollmentID, d.Fingerprint, d.Platform, d.ClientMeta, d.IsActive, d.RegisteredAt, d.LastSeenAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func scanDevice(row pgx.Row) (*model.Device, error) {
	d := &model.Device{}
	err := row.Scan(&d.ID, &d.EnrollmentID, &d.Fingerprint, &d.Platform, &d.ClientMeta, &d.IsActive, &d.RegisteredAt, &d.LastSeenAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return d, nil
}

func (r *deviceRepo) FindByID(ctx context.Context, tx repository.Tx, enrollmentID, deviceID string) (*model.Device, error) {
	const q = `SELECT ` + deviceColumns + ` FROM devices WHERE id=$1 AND enrollment_id=$2;`
	row, err := pickRow(ctx, r.pool, tx, q, deviceID, enrollmentID)
	if err != nil {
		return nil, err
	}
	return scanDevice(row)
}

func (r *deviceRepo) FindByFingerprint(ctx context.Context, tx repository.Tx, enrollmentID, fingerprint string) (*model.Device, error) {
	q := `SELECT ` + deviceColumns + ` FROM devices WHERE enrollment_id=$1 AND fingerprint=$2 LIMIT 1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, enrollmentID, fingerprint)
	if err != nil {
		return nil, err
	}
	return scanDevice(row)
}

func (r *deviceRepo) ListByEnrollment(ctx context.Context, tx repository.Tx, enrollmentID string) ([]*model.Device, error) {
	const q = `SELECT ` + deviceColumns + ` FROM devices WHERE enrollment_id=$1 ORDER BY registered_at ASC;`
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

	var out []*model.Device
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}

func (r *deviceRepo) CountActive(ctx context.Context, tx repository.Tx, enrollmentID string) (int, error) {
	const q = `SELECT COUNT(*) FROM devices WHERE enrollment_id=$1 AND is_active=TRUE;`
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
