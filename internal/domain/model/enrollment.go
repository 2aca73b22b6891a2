package model

import (
	"time"

	"github.com/pravartak01/shlokayug-enrollment/internal/domain"
)

type EnrollmentType string

const (
	EnrollmentTypeOneTime      EnrollmentType = "one_time"
	EnrollmentTypeSubscription EnrollmentType = "subscription"
)

func (t EnrollmentType) Valid() bool {
	return t == EnrollmentTypeOneTime || t == EnrollmentTypeSubscription
}

type EnrollmentStatus string

const (
	EnrollmentStatusPending   EnrollmentStatus = "pending"
	EnrollmentStatusActive    EnrollmentStatus = "active"
	EnrollmentStatusSuspended EnrollmentStatus = "suspended"
	EnrollmentStatusExpired   EnrollmentStatus = "expired"
	EnrollmentStatusCancelled EnrollmentStatus = "cancelled"
)

var enrollmentTransitions = map[EnrollmentStatus][]EnrollmentStatus{
	EnrollmentStatusPending:   {EnrollmentStatusActive, EnrollmentStatusCancelled},
	EnrollmentStatusActive:    {EnrollmentStatusSuspended, EnrollmentStatusExpired, EnrollmentStatusCancelled},
	EnrollmentStatusSuspended: {EnrollmentStatusActive, EnrollmentStatusExpired, EnrollmentStatusCancelled},
	EnrollmentStatusExpired:   {EnrollmentStatusActive}, // via confirmed renewal
	EnrollmentStatusCancelled: {EnrollmentStatusActive},
}

func (s EnrollmentStatus) CanTransitionTo(to EnrollmentStatus) bool {
	for _, t := range enrollmentTransitions[s] {
		if t == to {
			return true
		}
	}
	return false
}

const (
	DeviceLimitMin     = 1
	DeviceLimitMax     = 10
	DeviceLimitDefault = 3
)

// Access controls whether and from where the enrollment can be used.
// Registered devices live in their own table; the aggregate only carries
// the ceiling, the absolute expiry and the overall flag.
type Access struct {
	DeviceLimit int
	ExpiresAt   *time.Time // nil for one-time purchases
	IsActive    bool
}

// PaymentSummary duplicates the ledger fields needed on every read so
// access checks never join the payments table. The ledger entry stays
// the source of truth.
type PaymentSummary struct {
	TransactionID string
	Method        string
	Amount        Amount
	Revenue       RevenueSplit
	IsCompleted   bool
	OrderID       string
	PaymentID     string
	Signature     string
}

// Enrollment binds a learner to a course. One per (learner, course) pair.
type Enrollment struct {
	ID           string
	LearnerID    string
	CourseID     string
	GuruID       string
	Type         EnrollmentType // immutable after creation
	Status       EnrollmentStatus
	Payment      PaymentSummary
	Subscription *Subscription // present iff Type == subscription
	Access       Access
	Progress     Progress
	Version      int // optimistic concurrency check on save
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewEnrollment constructs an active enrollment from a confirmed payment.
// For subscriptions the access expiry follows the current period end.
func NewEnrollment(id, learnerID, courseID, guruID string, typ EnrollmentType, summary PaymentSummary, sub *Subscription, deviceLimit int) (*Enrollment, error) {
	if id == "" || learnerID == "" || courseID == "" || guruID == "" || !typ.Valid() {
		return nil, domain.ErrInvalidArgument
	}
	if typ == EnrollmentTypeSubscription && sub == nil {
		return nil, domain.ErrInvalidArgument
	}
	if typ == EnrollmentTypeOneTime && sub != nil {
		return nil, domain.ErrInvalidArgument
	}
	if deviceLimit < DeviceLimitMin || deviceLimit > DeviceLimitMax {
		deviceLimit = DeviceLimitDefault
	}
	now := time.Now()
	e := &Enrollment{
		ID:        id,
		LearnerID: learnerID,
		CourseID:  courseID,
		GuruID:    guruID,
		Type:      typ,
		Status:    EnrollmentStatusActive,
		Payment:   summary,
		Access:    Access{DeviceLimit: deviceLimit, IsActive: true},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if sub != nil {
		e.Subscription = sub
		end := sub.CurrentPeriodEnd
		e.Access.ExpiresAt = &end
	}
	return e, nil
}

// RefreshExpiry enforces the lazy expiry invariant: a past access expiry
// flips the enrollment (and its subscription) to expired and disables
// access. Returns true when anything changed so callers know to save.
func (e *Enrollment) RefreshExpiry(now time.Time) bool {
	if e.Access.ExpiresAt == nil || now.Before(*e.Access.ExpiresAt) {
		return false
	}
	if e.Status == EnrollmentStatusExpired && !e.Access.IsActive {
		return false
	}
	e.Status = EnrollmentStatusExpired
	e.Access.IsActive = false
	if e.Subscription != nil && e.Subscription.Status != SubscriptionStatusExpired {
		e.Subscription.Status = SubscriptionStatusExpired
	}
	e.UpdatedAt = now
	return true
}

// CheckAccess validates that the enrollment is usable right now.
func (e *Enrollment) CheckAccess(now time.Time) error {
	e.RefreshExpiry(now)
	if e.Access.ExpiresAt != nil && !now.Before(*e.Access.ExpiresAt) {
		return domain.ErrAccessExpired
	}
	if e.Status != EnrollmentStatusActive || !e.Access.IsActive {
		return domain.ErrNotActive
	}
	return nil
}

// ApplyRenewal moves an expired/cancelled enrollment back to active with
// the subscription's fresh billing period.
func (e *Enrollment) ApplyRenewal(now time.Time) error {
	if e.Subscription == nil {
		return domain.ErrNotSubscription
	}
	if e.Status != EnrollmentStatusActive {
		if !e.Status.CanTransitionTo(EnrollmentStatusActive) {
			return domain.ErrInvalidState
		}
		e.Status = EnrollmentStatusActive
	}
	end := e.Subscription.CurrentPeriodEnd
	e.Access.ExpiresAt = &end
	e.Access.IsActive = true
	e.UpdatedAt = now
	return nil
}
