package web

import (
	"time"

	"github.com/pravartak01/shlokayug-enrollment/internal/domain/model"
)

// Response DTOs. The wire shape is decoupled from the aggregates so
// model changes never leak into the API accidentally.

type amountDTO struct {
	Total    int64  `json:"total"`
	Base     int64  `json:"base"`
	Discount int64  `json:"discount"`
	Tax      int64  `json:"tax"`
	Currency string `json:"currency"`
}

type transactionDTO struct {
	ID             string     `json:"id"`
	LearnerID      string     `json:"learner_id"`
	CourseID       string     `json:"course_id"`
	Status         string     `json:"status"`
	Amount         amountDTO  `json:"amount"`
	OrderID        string     `json:"order_id"`
	GuruShare      int64      `json:"guru_share"`
	PlatformShare  int64      `json:"platform_share"`
	IsDistributed  bool       `json:"is_distributed"`
	RefundedAmount int64      `json:"refunded_amount"`
	RiskLevel      string     `json:"risk_level"`
	CreatedAt      time.Time  `json:"created_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

func toTransactionDTO(t *model.PaymentTransaction) transactionDTO {
	return transactionDTO{
		ID:        t.ID,
		LearnerID: t.LearnerID,
		CourseID:  t.CourseID,
		Status:    string(t.Status),
		Amount: amountDTO{
			Total:    t.Amount.Total,
			Base:     t.Amount.Base,
			Discount: t.Amount.Discount,
			Tax:      t.Amount.Tax,
			Currency: t.Amount.Currency,
		},
		OrderID:        t.Gateway.OrderID,
		GuruShare:      t.Revenue.GuruShare,
		PlatformShare:  t.Revenue.PlatformShare,
		IsDistributed:  t.Revenue.IsDistributed,
		RefundedAmount: t.RefundedTotal(),
		RiskLevel:      string(t.Risk.Level),
		CreatedAt:      t.CreatedAt,
		CompletedAt:    t.CompletedAt,
	}
}

type subscriptionDTO struct {
	Status             string     `json:"status"`
	BillingCycle       string     `json:"billing_cycle"`
	CurrentPeriodStart time.Time  `json:"current_period_start"`
	CurrentPeriodEnd   time.Time  `json:"current_period_end"`
	RenewalDate        time.Time  `json:"renewal_date"`
	AutoRenew          bool       `json:"auto_renew"`
	CancelAtPeriodEnd  bool       `json:"cancel_at_period_end"`
	PausedAt           *time.Time `json:"paused_at,omitempty"`
	PauseEndDate       *time.Time `json:"pause_end_date,omitempty"`
	CancelledAt        *time.Time `json:"cancelled_at,omitempty"`
}

type progressDTO struct {
	PercentComplete     float64    `json:"percent_complete"`
	CompletedUnits      int        `json:"completed_units"`
	TotalTimeSeconds    int64      `json:"total_time_seconds"`
	LastAccessedAt      *time.Time `json:"last_accessed_at,omitempty"`
	CertificateEligible bool       `json:"certificate_eligible"`
	CertificateIssued   bool       `json:"certificate_issued"`
}

type enrollmentDTO struct {
	ID            string           `json:"id"`
	LearnerID     string           `json:"learner_id"`
	CourseID      string           `json:"course_id"`
	GuruID        string           `json:"guru_id"`
	Type          string           `json:"type"`
	Status        string           `json:"status"`
	TransactionID string           `json:"transaction_id"`
	DeviceLimit   int              `json:"device_limit"`
	ExpiresAt     *time.Time       `json:"expires_at,omitempty"`
	AccessActive  bool             `json:"access_active"`
	Subscription  *subscriptionDTO `json:"subscription,omitempty"`
	Progress      progressDTO      `json:"progress"`
	CreatedAt     time.Time        `json:"created_at"`
}

func toEnrollmentDTO(e *model.Enrollment) enrollmentDTO {
	out := enrollmentDTO{
		ID:            e.ID,
		LearnerID:     e.LearnerID,
		CourseID:      e.CourseID,
		GuruID:        e.GuruID,
		Type:          string(e.Type),
		Status:        string(e.Status),
		TransactionID: e.Payment.TransactionID,
		DeviceLimit:   e.Access.DeviceLimit,
		ExpiresAt:     e.Access.ExpiresAt,
		AccessActive:  e.Access.IsActive,
		Progress: progressDTO{
			PercentComplete:     e.Progress.PercentComplete,
			CompletedUnits:      e.Progress.CompletedUnits,
			TotalTimeSeconds:    e.Progress.TotalTimeSeconds,
			LastAccessedAt:      e.Progress.LastAccessedAt,
			CertificateEligible: e.Progress.CertificateEligible,
			CertificateIssued:   e.Progress.CertificateIssued,
		},
		CreatedAt: e.CreatedAt,
	}
	if s := e.Subscription; s != nil {
		out.Subscription = &subscriptionDTO{
			Status:             string(s.Status),
			BillingCycle:       string(s.BillingCycle),
			CurrentPeriodStart: s.CurrentPeriodStart,
			CurrentPeriodEnd:   s.CurrentPeriodEnd,
			RenewalDate:        s.RenewalDate,
			AutoRenew:          s.AutoRenew,
			CancelAtPeriodEnd:  s.CancelAtPeriodEnd,
			PausedAt:           s.PausedAt,
			PauseEndDate:       s.PauseEndDate,
			CancelledAt:        s.CancelledAt,
		}
	}
	return out
}

func toEnrollmentDTOs(es []*model.Enrollment) []enrollmentDTO {
	out := make([]enrollmentDTO, 0, len(es))
	for _, e := range es {
		out = append(out, toEnrollmentDTO(e))
	}
	return out
}

type deviceDTO struct {
	ID           string    `json:"id"`
	Fingerprint  string    `json:"fingerprint"`
	Platform     string    `json:"platform,omitempty"`
	IsActive     bool      `json:"is_active"`
	RegisteredAt time.Time `json:"registered_at"`
	LastSeenAt   time.Time `json:"last_seen_at"`
}

func toDeviceDTO(d *model.Device) deviceDTO {
	return deviceDTO{
		ID:           d.ID,
		Fingerprint:  d.Fingerprint,
		Platform:     d.Platform,
		IsActive:     d.IsActive,
		RegisteredAt: d.RegisteredAt,
		LastSeenAt:   d.LastSeenAt,
	}
}

type auditDTO struct {
	ID        string    `json:"id"`
	Action    string    `json:"action"`
	Actor     string    `json:"actor"`
	Details   string    `json:"details,omitempty"`
	IPAddress string    `json:"ip_address,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func toAuditDTO(a *model.AuditEntry) auditDTO {
	return auditDTO{
		ID:        a.ID,
		Action:    a.Action,
		Actor:     a.Actor,
		Details:   a.Details,
		IPAddress: a.IPAddress,
		CreatedAt: a.CreatedAt,
	}
}
