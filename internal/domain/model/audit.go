package model

import "time"

// Audit actions recorded against an enrollment.
const (
	AuditActionCreated            = "created"
	AuditActionExpired            = "expired"
	AuditActionAccessValidated    = "access_validated"
	AuditActionDeviceAdded        = "device_added"
	AuditActionDeviceRemoved      = "device_removed"
	AuditActionProgressUpdated    = "progress_updated"
	AuditActionSubscriptionChange = "subscription_status_changed"
	AuditActionPreferencesUpdated = "preferences_updated"
	AuditActionRefundProcessed    = "refund_processed"
	AuditActionRevenueDistributed = "revenue_distributed"
)

// AuditEntry is one append-only record of a consequential action taken on
// an enrollment or its payments, kept for dispute resolution.
type AuditEntry struct {
	ID           string
	EnrollmentID string
	Action       string
	Actor        string
	Details      string
	IPAddress    string
	CreatedAt    time.Time
}
