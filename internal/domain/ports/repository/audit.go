package repository

import (
	"context"

	"github.com/pravartak01/shlokayug-enrollment/internal/domain/model"
)

// -----------------------------
// Audit trail
// -----------------------------

// AuditRepository is append-only; entries are never updated or deleted.
type AuditRepository interface {
	Append(ctx context.Context, tx Tx, entry *model.AuditEntry) error
	ListByEnrollment(ctx context.Context, tx Tx, enrollmentID string, offset, limit int) ([]*model.AuditEntry, error)
}
