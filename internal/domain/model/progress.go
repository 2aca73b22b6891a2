package model

import "time"

// certificateThreshold is the completion percentage at which an
// enrollment becomes certificate-eligible.
const certificateThreshold = 95.0

// Progress is the learner's snapshot on one enrollment. Completed units
// live in their own table; the aggregate carries the derived totals.
type Progress struct {
	PercentComplete     float64
	CompletedUnits      int
	TotalTimeSeconds    int64
	LastAccessedAt      *time.Time
	CertificateEligible bool
	CertificateIssued   bool
}

// CompletedUnit is one finished content unit with the time spent on it.
type CompletedUnit struct {
	EnrollmentID     string
	UnitID           string
	TimeSpentSeconds int64
	CompletedAt      time.Time
}

// Recompute refreshes the derived fields from the unit table counts.
// Certificate eligibility is derived and never revoked once issued.
func (p *Progress) Recompute(completedUnits, totalUnits int, totalSeconds int64, now time.Time) {
	p.CompletedUnits = completedUnits
	p.TotalTimeSeconds = totalSeconds
	if totalUnits > 0 {
		p.PercentComplete = float64(completedUnits) * 100 / float64(totalUnits)
	}
	p.LastAccessedAt = &now
	if p.PercentComplete >= certificateThreshold {
		p.CertificateEligible = true
	}
}
