// File: internal/usecase/subscription_uc.go
package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"github.com/pravartak01/shlokayug-enrollment/internal/domain"
	"github.com/pravartak01/shlokayug-enrollment/internal/domain/model"
	"github.com/pravartak01/shlokayug-enrollment/internal/domain/ports/adapter"
	"github.com/pravartak01/shlokayug-enrollment/internal/domain/ports/repository"
)

var _ SubscriptionUseCase = (*subscriptionUC)(nil)

// SubscriptionUseCase drives the subscription state machine on the
// enrollment aggregate. Every transition is applied in one transaction
// under a per-enrollment advisory lock and leaves an audit entry.
type SubscriptionUseCase interface {
	Pause(ctx context.Context, enrollmentID, reason string, durationDays int, actor, ip string) (*model.Enrollment, error)
	Resume(ctx context.Context, enrollmentID, actor, ip string) (*model.Enrollment, error)
	Cancel(ctx context.Context, enrollmentID, reason string, immediate bool, actor, ip string) (*model.Enrollment, error)
	// Renew re-prices the chosen (or current) cycle from the catalog and
	// opens a fresh pending transaction; the subscription status does not
	// change until that payment confirms.
	Renew(ctx context.Context, enrollmentID string, cycle model.BillingCycle, actor string) (*model.PaymentTransaction, error)
	UpdatePreferences(ctx context.Context, enrollmentID string, autoRenew *bool, cycle *model.BillingCycle, actor, ip string) (*model.Enrollment, error)
	// FinishExpired sweeps subscriptions whose access expiry passed
	// without renewal. Returns how many enrollments were expired.
	FinishExpired(ctx context.Context) (int, error)
}

type subscriptionUC struct {
	enrollments repository.EnrollmentRepository
	audits      repository.AuditRepository
	payments    PaymentUseCase
	catalog     adapter.CourseCatalog
	gateway     adapter.PaymentGateway
	tm          repository.TransactionManager
	log         *zerolog.Logger
}

func NewSubscriptionUseCase(
	enrollments repository.EnrollmentRepository,
	audits repository.AuditRepository,
	payments PaymentUseCase,
	catalog adapter.CourseCatalog,
	gateway adapter.PaymentGateway,
	tm repository.TransactionManager,
	logger *zerolog.Logger,
) *subscriptionUC {
	l := logger.With().Str("component", "SubscriptionUC").Logger()
	return &subscriptionUC{
		enrollments: enrollments,
		audits:      audits,
		payments:    payments,
		catalog:     catalog,
		gateway:     gateway,
		tm:          tm,
		log:         &l,
	}
}

// withSubscription runs fn against a freshly loaded, lazily-expired
// subscription enrollment inside a locked transaction, then saves and
// audits the transition.
func (u *subscriptionUC) withSubscription(ctx context.Context, enrollmentID, actor, ip, reason string, fn func(e *model.Enrollment) error) (*model.Enrollment, error) {
	if enrollmentID == "" {
		return nil, domain.ErrInvalidArgument
	}
	var out *model.Enrollment
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if err := lockAggregate(ctx, tx, enrollmentID); err != nil {
			return err
		}
		e, err := u.enrollments.FindByID(ctx, tx, enrollmentID)
		if err != nil {
			return err
		}
		if e.Subscription == nil {
			return domain.ErrNotSubscription
		}
		prior := e.Subscription.Status
		e.RefreshExpiry(time.Now())

		if err := fn(e); err != nil {
			return err
		}
		e.UpdatedAt = time.Now()
		if err := u.enrollments.Save(ctx, tx, e); err != nil {
			return err
		}
		entry := &model.AuditEntry{
			EnrollmentID: e.ID,
			Action:       model.AuditActionSubscriptionChange,
			Actor:        actor,
			Details:      fmt.Sprintf("%s -> %s; %s", prior, e.Subscription.Status, reason),
			IPAddress:    ip,
		}
		if err := u.audits.Append(ctx, tx, entry); err != nil {
			return err
		}
		out = e
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (u *subscriptionUC) Pause(ctx context.Context, enrollmentID, reason string, durationDays int, actor, ip string) (*model.Enrollment, error) {
	e, err := u.withSubscription(ctx, enrollmentID, actor, ip, reason, func(e *model.Enrollment) error {
		return e.Subscription.Pause(reason, durationDays, time.Now())
	})
	if err != nil {
		return nil, err
	}
	u.log.Info().Str("enrollment_id", enrollmentID).Msg("subscription paused")
	return e, nil
}

func (u *subscriptionUC) Resume(ctx context.Context, enrollmentID, actor, ip string) (*model.Enrollment, error) {
	e, err := u.withSubscription(ctx, enrollmentID, actor, ip, "resume", func(e *model.Enrollment) error {
		return e.Subscription.Resume()
	})
	if err != nil {
		return nil, err
	}
	u.log.Info().Str("enrollment_id", enrollmentID).Msg("subscription resumed")
	return e, nil
}

func (u *subscriptionUC) Cancel(ctx context.Context, enrollmentID, reason string, immediate bool, actor, ip string) (*model.Enrollment, error) {
	e, err := u.withSubscription(ctx, enrollmentID, actor, ip, reason, func(e *model.Enrollment) error {
		if err := e.Subscription.Cancel(reason, immediate, time.Now()); err != nil {
			return err
		}
		if immediate {
			// Access is revoked now; deferred cancels keep access until
			// the current period ends and lazy expiry finalizes them.
			e.Access.IsActive = false
			if e.Status.CanTransitionTo(model.EnrollmentStatusCancelled) {
				e.Status = model.EnrollmentStatusCancelled
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	u.log.Info().Str("enrollment_id", enrollmentID).Bool("immediate", immediate).Msg("subscription cancelled")
	return e, nil
}

func (u *subscriptionUC) Renew(ctx context.Context, enrollmentID string, cycle model.BillingCycle, actor string) (*model.PaymentTransaction, error) {
	if enrollmentID == "" {
		return nil, domain.ErrInvalidArgument
	}
	e, err := u.enrollments.FindByID(ctx, repository.NoTX, enrollmentID)
	if err != nil {
		return nil, err
	}
	if e.Subscription == nil {
		return nil, domain.ErrNotSubscription
	}
	prior := e.Status
	if e.RefreshExpiry(time.Now()) {
		if err := u.enrollments.Save(ctx, repository.NoTX, e); err != nil {
			return nil, err
		}
		if err := u.audits.Append(ctx, repository.NoTX, expiryEntry(e, prior)); err != nil {
			u.log.Warn().Err(err).Str("enrollment_id", e.ID).Msg("lazy expiry audit failed")
		}
	}
	if err := e.Subscription.Renewable(); err != nil {
		return nil, err
	}
	if cycle == "" {
		cycle = e.Subscription.BillingCycle
	}
	if !cycle.Valid() {
		return nil, domain.ErrInvalidBillingCycle
	}

	// Renewal pricing re-reads the current catalog rate and re-applies
	// any standing discount; prices are not grandfathered.
	pricing, err := u.catalog.GetPricing(ctx, e.CourseID)
	if err != nil {
		return nil, err
	}
	amount, err := pricing.Quote(model.EnrollmentTypeSubscription, cycle, currencyINR)
	if err != nil {
		return nil, err
	}

	receipt := "rnwl_" + e.ID
	orderID, err := u.gateway.CreateOrder(ctx, amount.Total, amount.Currency, receipt, map[string]string{
		"enrollment_id": e.ID,
		"renewal":       "true",
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}

	meta := map[string]string{
		metaEnrollmentType: string(model.EnrollmentTypeSubscription),
		metaBillingCycle:   string(cycle),
		metaMethod:         e.Payment.Method,
	}
	t, err := u.payments.CreatePending(ctx, repository.NoTX, e.LearnerID, e.CourseID, e.GuruID, orderID, amount, meta)
	if err != nil {
		return nil, err
	}
	u.log.Info().Str("enrollment_id", enrollmentID).Str("transaction_id", t.ID).Str("cycle", string(cycle)).Msg("renewal initiated")
	return t, nil
}

func (u *subscriptionUC) UpdatePreferences(ctx context.Context, enrollmentID string, autoRenew *bool, cycle *model.BillingCycle, actor, ip string) (*model.Enrollment, error) {
	if autoRenew == nil && cycle == nil {
		return nil, domain.ErrInvalidArgument
	}
	if cycle != nil && !cycle.Valid() {
		return nil, domain.ErrInvalidBillingCycle
	}
	return u.withSubscription(ctx, enrollmentID, actor, ip, "preferences", func(e *model.Enrollment) error {
		if autoRenew != nil {
			e.Subscription.AutoRenew = *autoRenew
		}
		if cycle != nil {
			// Takes effect at the next renewal; the running period keeps
			// its boundaries.
			e.Subscription.BillingCycle = *cycle
		}
		return nil
	})
}

func (u *subscriptionUC) FinishExpired(ctx context.Context) (int, error) {
	expired, err := u.enrollments.ListExpiredActive(ctx, repository.NoTX, time.Now(), 200)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, e := range expired {
		_, err := u.withSubscription(ctx, e.ID, "system", "", "billing period ended without renewal", func(e *model.Enrollment) error {
			// RefreshExpiry in withSubscription already applied the
			// transition; nothing more to do for this enrollment.
			return nil
		})
		if err != nil {
			u.log.Error().Err(err).Str("enrollment_id", e.ID).Msg("expiry sweep failed for enrollment")
			continue
		}
		n++
	}
	return n, nil
}
