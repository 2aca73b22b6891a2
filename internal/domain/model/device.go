package model

import (
	"time"

	"github.com/pravartak01/shlokayug-enrollment/internal/domain"
)

// Device is one registered client of an enrollment. The fingerprint is an
// opaque stable string computed by the calling layer; the core never
// hashes or interprets it.
type Device struct {
	ID           string
	EnrollmentID string
	Fingerprint  string
	Platform     string
	ClientMeta   string
	IsActive     bool
	RegisteredAt time.Time
	LastSeenAt   time.Time
}

func NewDevice(id, enrollmentID, fingerprint, platform, clientMeta string) (*Device, error) {
	if id == "" || enrollmentID == "" || fingerprint == "" {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &Device{
		ID:           id,
		EnrollmentID: enrollmentID,
		Fingerprint:  fingerprint,
		Platform:     platform,
		ClientMeta:   clientMeta,
		IsActive:     true,
		RegisteredAt: now,
		LastSeenAt:   now,
	}, nil
}

// Touch refreshes last-seen metadata on an already-registered device.
func (d *Device) Touch(platform, clientMeta string) {
	if platform != "" {
		d.Platform = platform
	}
	if clientMeta != "" {
		d.ClientMeta = clientMeta
	}
	d.LastSeenAt = time.Now()
}
