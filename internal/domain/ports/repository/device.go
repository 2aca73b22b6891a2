package repository

import (
	"context"

	"github.com/pravartak01/shlokayug-enrollment/internal/domain/model"
)

// -----------------------------
// Devices
// -----------------------------

type DeviceRepository interface {
	Save(ctx context.Context, tx Tx, d *model.Device) error
	FindByID(ctx context.Context, tx Tx, enrollmentID, deviceID string) (*model.Device, error)
	FindByFingerprint(ctx context.Context, tx Tx, enrollmentID, fingerprint string) (*model.Device, error)
	ListByEnrollment(ctx context.Context, tx Tx, enrollmentID string) ([]*model.Device, error)
	CountActive(ctx context.Context, tx Tx, enrollmentID string) (int, error)
}
