// File: internal/usecase/device_uc.go
package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"github.com/pravartak01/shlokayug-enrollment/internal/domain"
	"github.com/pravartak01/shlokayug-enrollment/internal/domain/model"
	"github.com/pravartak01/shlokayug-enrollment/internal/domain/ports/repository"
)

var _ DeviceUseCase = (*deviceUC)(nil)

// DeviceUseCase enforces the per-enrollment concurrent-device ceiling.
// Adds and removals for one enrollment serialize on the same advisory
// lock the other enrollment mutations take, so two concurrent adds at
// the limit cannot both succeed.
type DeviceUseCase interface {
	AddDevice(ctx context.Context, enrollmentID, fingerprint, platform, clientMeta, actor, ip string) (*model.Device, error)
	RemoveDevice(ctx context.Context, enrollmentID, deviceID, actor, ip string) error
	ListDevices(ctx context.Context, enrollmentID string) ([]*model.Device, error)
}

type deviceUC struct {
	enrollments repository.EnrollmentRepository
	devices     repository.DeviceRepository
	audits      repository.AuditRepository
	tm          repository.TransactionManager
	log         *zerolog.Logger
}

func NewDeviceUseCase(enrollments repository.EnrollmentRepository, devices repository.DeviceRepository, audits repository.AuditRepository, tm repository.TransactionManager, logger *zerolog.Logger) *deviceUC {
	l := logger.With().Str("component", "DeviceUC").Logger()
	return &deviceUC{enrollments: enrollments, devices: devices, audits: audits, tm: tm, log: &l}
}

func (u *deviceUC) AddDevice(ctx context.Context, enrollmentID, fingerprint, platform, clientMeta, actor, ip string) (*model.Device, error) {
	if enrollmentID == "" || fingerprint == "" {
		return nil, domain.ErrInvalidArgument
	}
	var out *model.Device
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if err := lockAggregate(ctx, tx, enrollmentID); err != nil {
			return err
		}
		e, err := u.enrollments.FindByID(ctx, tx, enrollmentID)
		if err != nil {
			return err
		}
		prior := e.Status
		if e.RefreshExpiry(time.Now()) {
			if err := u.enrollments.Save(ctx, tx, e); err != nil {
				return err
			}
			if err := u.audits.Append(ctx, tx, expiryEntry(e, prior)); err != nil {
				return err
			}
		}
		if err := e.CheckAccess(time.Now()); err != nil {
			return err
		}

		// Same active fingerprint: idempotent refresh, never a duplicate.
		existing, err := u.devices.FindByFingerprint(ctx, tx, enrollmentID, fingerprint)
		if err == nil && existing != nil && existing.IsActive {
			existing.Touch(platform, clientMeta)
			if err := u.devices.Save(ctx, tx, existing); err != nil {
				return err
			}
			out = existing
			return nil
		}

		active, err := u.devices.CountActive(ctx, tx, enrollmentID)
		if err != nil {
			return err
		}
		if active >= e.Access.DeviceLimit {
			return domain.ErrDeviceLimitExceeded
		}

		if existing != nil {
			// Previously revoked device re-registering under the freed slot.
			existing.IsActive = true
			existing.Touch(platform, clientMeta)
			if err := u.devices.Save(ctx, tx, existing); err != nil {
				return err
			}
			out = existing
		} else {
			d, err := model.NewDevice(uuid.NewString(), enrollmentID, fingerprint, platform, clientMeta)
			if err != nil {
				return err
			}
			if err := u.devices.Save(ctx, tx, d); err != nil {
				return err
			}
			out = d
		}
		entry := &model.AuditEntry{
			EnrollmentID: enrollmentID,
			Action:       model.AuditActionDeviceAdded,
			Actor:        actor,
			Details:      "device " + out.ID,
			IPAddress:    ip,
		}
		return u.audits.Append(ctx, tx, entry)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (u *deviceUC) RemoveDevice(ctx context.Context, enrollmentID, deviceID, actor, ip string) error {
	if enrollmentID == "" || deviceID == "" {
		return domain.ErrInvalidArgument
	}
	return u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if err := lockAggregate(ctx, tx, enrollmentID); err != nil {
			return err
		}
		d, err := u.devices.FindByID(ctx, tx, enrollmentID, deviceID)
		if err != nil || d == nil {
			return domain.ErrDeviceNotFound
		}
		// Revocation frees a slot immediately; the row stays for audit.
		d.IsActive = false
		d.LastSeenAt = time.Now()
		if err := u.devices.Save(ctx, tx, d); err != nil {
			return err
		}
		entry := &model.AuditEntry{
			EnrollmentID: enrollmentID,
			Action:       model.AuditActionDeviceRemoved,
			Actor:        actor,
			Details:      "device " + deviceID,
			IPAddress:    ip,
		}
		return u.audits.Append(ctx, tx, entry)
	})
}

func (u *deviceUC) ListDevices(ctx context.Context, enrollmentID string) ([]*model.Device, error) {
	if enrollmentID == "" {
		return nil, domain.ErrInvalidArgument
	}
	return u.devices.ListByEnrollment(ctx, repository.NoTX, enrollmentID)
}
