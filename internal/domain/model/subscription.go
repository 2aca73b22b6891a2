package model

import (
	"time"

	"github.com/pravartak01/shlokayug-enrollment/internal/domain"
)

type SubscriptionStatus string

const (
	SubscriptionStatusTrialing  SubscriptionStatus = "trialing"
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusPaused    SubscriptionStatus = "paused"
	SubscriptionStatusPastDue   SubscriptionStatus = "past_due"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
	SubscriptionStatusExpired   SubscriptionStatus = "expired"
)

// subscriptionTransitions lists every legal edge of the subscription
// state machine. cancelled/expired -> active happens only through an
// explicit renew confirming payment for a fresh billing period.
var subscriptionTransitions = map[SubscriptionStatus][]SubscriptionStatus{
	SubscriptionStatusTrialing:  {SubscriptionStatusActive, SubscriptionStatusPaused, SubscriptionStatusCancelled, SubscriptionStatusExpired},
	SubscriptionStatusActive:    {SubscriptionStatusPaused, SubscriptionStatusCancelled, SubscriptionStatusPastDue, SubscriptionStatusExpired},
	SubscriptionStatusPaused:    {SubscriptionStatusActive, SubscriptionStatusCancelled, SubscriptionStatusExpired},
	SubscriptionStatusPastDue:   {SubscriptionStatusActive, SubscriptionStatusExpired},
	SubscriptionStatusCancelled: {SubscriptionStatusActive},
	SubscriptionStatusExpired:   {SubscriptionStatusActive},
}

func (s SubscriptionStatus) CanTransitionTo(to SubscriptionStatus) bool {
	for _, t := range subscriptionTransitions[s] {
		if t == to {
			return true
		}
	}
	return false
}

// Subscription holds the recurring-billing schedule of an enrollment.
// Present only when the enrollment type is subscription.
type Subscription struct {
	Status             SubscriptionStatus
	BillingCycle       BillingCycle
	CurrentPeriodStart time.Time
	CurrentPeriodEnd   time.Time
	RenewalDate        time.Time
	AutoRenew          bool
	CancelAtPeriodEnd  bool
	PausedAt           *time.Time
	PauseEndDate       *time.Time
	CancelledAt        *time.Time
	CancelReason       string
}

// NewSubscription starts a fresh billing period from now.
func NewSubscription(cycle BillingCycle, now time.Time) (*Subscription, error) {
	if !cycle.Valid() {
		return nil, domain.ErrInvalidBillingCycle
	}
	end := cycle.PeriodEnd(now)
	return &Subscription{
		Status:             SubscriptionStatusActive,
		BillingCycle:       cycle,
		CurrentPeriodStart: now,
		CurrentPeriodEnd:   end,
		RenewalDate:        end,
		AutoRenew:          true,
	}, nil
}

func (s *Subscription) transition(to SubscriptionStatus) error {
	if !s.Status.CanTransitionTo(to) {
		return domain.ErrInvalidState
	}
	s.Status = to
	return nil
}

// Pause suspends billing. Allowed only from active or trialing.
func (s *Subscription) Pause(reason string, durationDays int, now time.Time) error {
	if s.Status != SubscriptionStatusActive && s.Status != SubscriptionStatusTrialing {
		return domain.ErrInvalidState
	}
	if err := s.transition(SubscriptionStatusPaused); err != nil {
		return err
	}
	s.AutoRenew = false
	s.PausedAt = &now
	if durationDays > 0 {
		end := now.AddDate(0, 0, durationDays)
		s.PauseEndDate = &end
	}
	_ = reason // recorded in the audit trail by the caller
	return nil
}

// Resume restores active status and auto-renew, leaving the current
// period boundaries untouched.
func (s *Subscription) Resume() error {
	if s.Status != SubscriptionStatusPaused {
		return domain.ErrInvalidState
	}
	if err := s.transition(SubscriptionStatusActive); err != nil {
		return err
	}
	s.AutoRenew = true
	s.PausedAt = nil
	s.PauseEndDate = nil
	return nil
}

// Cancel ends the subscription. Immediate cancellation takes effect now;
// otherwise the subscription stays active until the period end finalizes it.
func (s *Subscription) Cancel(reason string, immediate bool, now time.Time) error {
	if s.Status == SubscriptionStatusCancelled || s.Status == SubscriptionStatusExpired {
		return domain.ErrAlreadyCancelled
	}
	s.AutoRenew = false
	s.CancelReason = reason
	s.CancelledAt = &now
	if immediate {
		s.Status = SubscriptionStatusCancelled
		return nil
	}
	s.CancelAtPeriodEnd = true
	return nil
}

// Renewable reports whether an explicit renew is allowed from the current
// status. Active and trialing subscriptions do not need renewal.
func (s *Subscription) Renewable() error {
	switch s.Status {
	case SubscriptionStatusExpired, SubscriptionStatusPastDue, SubscriptionStatusCancelled:
		return nil
	case SubscriptionStatusActive, SubscriptionStatusTrialing:
		return domain.ErrRenewalNotNeeded
	default:
		return domain.ErrInvalidState
	}
}

// StartNewPeriod applies a confirmed renewal: fresh period from now,
// cleared cancel/pause metadata, active status.
func (s *Subscription) StartNewPeriod(cycle BillingCycle, now time.Time) error {
	if !cycle.Valid() {
		return domain.ErrInvalidBillingCycle
	}
	if err := s.transition(SubscriptionStatusActive); err != nil {
		return err
	}
	s.BillingCycle = cycle
	s.CurrentPeriodStart = now
	s.CurrentPeriodEnd = cycle.PeriodEnd(now)
	s.RenewalDate = s.CurrentPeriodEnd
	s.AutoRenew = true
	s.CancelAtPeriodEnd = false
	s.CancelledAt = nil
	s.CancelReason = ""
	s.PausedAt = nil
	s.PauseEndDate = nil
	return nil
}
