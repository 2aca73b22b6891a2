package model

import (
	"time"

	"github.com/pravartak01/shlokayug-enrollment/internal/domain"
)

type BillingCycle string

const (
	BillingCycleMonthly   BillingCycle = "monthly"
	BillingCycleQuarterly BillingCycle = "quarterly"
	BillingCycleYearly    BillingCycle = "yearly"
)

// Valid reports whether the cycle is one of the recognized values.
func (c BillingCycle) Valid() bool {
	switch c {
	case BillingCycleMonthly, BillingCycleQuarterly, BillingCycleYearly:
		return true
	}
	return false
}

// Months returns the calendar length of one billing period.
func (c BillingCycle) Months() int {
	switch c {
	case BillingCycleQuarterly:
		return 3
	case BillingCycleYearly:
		return 12
	default:
		return 1
	}
}

// PeriodEnd computes the end of a billing period starting at from.
func (c BillingCycle) PeriodEnd(from time.Time) time.Time {
	return from.AddDate(0, c.Months(), 0)
}

// CoursePricing is the catalog's pricing contract for one course.
// Amounts are integer paise; a nil OneTimeAmount means the course is
// subscription-only, an empty SubscriptionRates map means one-time only.
type CoursePricing struct {
	CourseID            string
	GuruID              string
	OneTimeAmount       *int64
	SubscriptionRates   map[BillingCycle]int64
	DiscountPercent     int // standing discount re-applied on renewals
	TaxPercent          int
	IsOpenForEnrollment bool
}

// Supports reports whether the course sells under the given enrollment type.
func (p CoursePricing) Supports(t EnrollmentType) bool {
	switch t {
	case EnrollmentTypeOneTime:
		return p.OneTimeAmount != nil && *p.OneTimeAmount > 0
	case EnrollmentTypeSubscription:
		return len(p.SubscriptionRates) > 0
	}
	return false
}

// Quote builds a reconciled amount breakdown for the given enrollment
// type and cycle, applying the standing discount and tax percentages.
func (p CoursePricing) Quote(t EnrollmentType, cycle BillingCycle, currency string) (Amount, error) {
	var base int64
	switch t {
	case EnrollmentTypeOneTime:
		if p.OneTimeAmount == nil {
			return Amount{}, domain.ErrUnsupportedEnrollmentType
		}
		base = *p.OneTimeAmount
	case EnrollmentTypeSubscription:
		if !cycle.Valid() {
			return Amount{}, domain.ErrInvalidBillingCycle
		}
		rate, ok := p.SubscriptionRates[cycle]
		if !ok {
			return Amount{}, domain.ErrInvalidBillingCycle
		}
		base = rate
	default:
		return Amount{}, domain.ErrUnsupportedEnrollmentType
	}
	discount := base * int64(p.DiscountPercent) / 100
	tax := (base - discount) * int64(p.TaxPercent) / 100
	return Amount{
		Total:    base - discount + tax,
		Base:     base,
		Discount: discount,
		Tax:      tax,
		Currency: currency,
	}, nil
}
