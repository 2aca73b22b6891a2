//go:build integration

package postgres

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pravartak01/shlokayug-enrollment/internal/domain"
	"github.com/pravartak01/shlokayug-enrollment/internal/domain/model"
	"github.com/pravartak01/shlokayug-enrollment/internal/usecase"
)

// Two adds racing for the last device slot must serialize on the
// per-enrollment advisory lock so only one of them lands.
func TestDeviceCeilingConcurrency_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}
	cleanup(t)
	ctx := context.Background()

	enrollments := NewPostgresEnrollmentRepo(testPool)
	devices := NewPostgresDeviceRepo(testPool)
	audits := NewPostgresAuditRepo(testPool)
	tm := NewTxManager(testPool)
	log := zerolog.Nop()
	uc := usecase.NewDeviceUseCase(enrollments, devices, audits, tm, &log)

	e := newTestEnrollment(t, "learner-1", "course-1")
	if err := enrollments.Save(ctx, nil, e); err != nil {
		t.Fatalf("Save enrollment: %v", err)
	}
	for _, fp := range []string{"fp-primary", "fp-laptop"} {
		d, err := model.NewDevice(uuid.NewString(), e.ID, fp, "web", "")
		if err != nil {
			t.Fatal(err)
		}
		if err := devices.Save(ctx, nil, d); err != nil {
			t.Fatalf("Save device %s: %v", fp, err)
		}
	}

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = uc.AddDevice(ctx, e.ID, fmt.Sprintf("fp-race-%d", i), "web", "", "learner-1", "")
		}(i)
	}
	wg.Wait()

	var wins, limited int
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, domain.ErrDeviceLimitExceeded):
			limited++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 || limited != 1 {
		t.Fatalf("wins = %d, limited = %d; exactly one racer may take the last slot", wins, limited)
	}

	n, err := devices.CountActive(ctx, nil, e.ID)
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("active devices = %d, want 3", n)
	}
}
