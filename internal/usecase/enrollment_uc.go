// File: internal/usecase/enrollment_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"github.com/pravartak01/shlokayug-enrollment/internal/domain"
	"github.com/pravartak01/shlokayug-enrollment/internal/domain/model"
	"github.com/pravartak01/shlokayug-enrollment/internal/domain/ports/adapter"
	"github.com/pravartak01/shlokayug-enrollment/internal/domain/ports/repository"
	"github.com/pravartak01/shlokayug-enrollment/internal/infra/logging"
)

// Meta keys carried on a pending transaction between initiate and confirm.
const (
	metaEnrollmentType = "enrollment_type"
	metaBillingCycle   = "billing_cycle"
	metaMethod         = "method"
)

const currencyINR = "INR"

// Locker guards the initiate flow against duplicate concurrent attempts
// for the same (learner, course) pair.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}

// InitiateRequest is the typed, boundary-validated input for a purchase.
type InitiateRequest struct {
	LearnerID    string
	CourseID     string
	Type         model.EnrollmentType
	BillingCycle model.BillingCycle // required iff Type == subscription
	Method       string
}

func (r InitiateRequest) Validate() error {
	if r.LearnerID == "" || r.CourseID == "" || !r.Type.Valid() {
		return domain.ErrInvalidArgument
	}
	if r.Type == model.EnrollmentTypeSubscription && !r.BillingCycle.Valid() {
		return domain.ErrInvalidBillingCycle
	}
	return nil
}

// ConfirmRequest carries the gateway proof plus the confirming device.
type ConfirmRequest struct {
	TransactionID     string
	GatewayPaymentID  string
	Signature         string
	DeviceFingerprint string
	DevicePlatform    string
	DeviceMeta        string
	Actor             string
	IPAddress         string
}

func (r ConfirmRequest) Validate() error {
	if r.TransactionID == "" || r.GatewayPaymentID == "" || r.Signature == "" {
		return domain.ErrInvalidArgument
	}
	return nil
}

var _ EnrollmentUseCase = (*enrollmentUC)(nil)

type EnrollmentUseCase interface {
	// Initiate validates the purchase, creates the gateway order and a
	// pending ledger entry. The transaction carries the order id.
	Initiate(ctx context.Context, req InitiateRequest) (*model.PaymentTransaction, error)
	// Confirm atomically verifies the proof, finalizes the ledger entry,
	// and creates (or reactivates) the enrollment with its first device.
	Confirm(ctx context.Context, req ConfirmRequest) (*model.Enrollment, error)
	// ValidateAccess checks the enrollment (and optionally one device)
	// is usable right now, refreshing device last-seen on success.
	ValidateAccess(ctx context.Context, enrollmentID, deviceID string) (*model.Enrollment, error)
	Get(ctx context.Context, enrollmentID string) (*model.Enrollment, error)
	ListByLearner(ctx context.Context, learnerID string, offset, limit int) ([]*model.Enrollment, error)
}

type enrollmentUC struct {
	enrollments repository.EnrollmentRepository
	devices     repository.DeviceRepository
	audits      repository.AuditRepository
	payments    PaymentUseCase
	paymentRepo repository.PaymentRepository
	catalog     adapter.CourseCatalog
	gateway     adapter.PaymentGateway
	tm          repository.TransactionManager
	locker      Locker
	deviceLimit int
	log         *zerolog.Logger
}

func NewEnrollmentUseCase(
	enrollments repository.EnrollmentRepository,
	devices repository.DeviceRepository,
	audits repository.AuditRepository,
	payments PaymentUseCase,
	paymentRepo repository.PaymentRepository,
	catalog adapter.CourseCatalog,
	gateway adapter.PaymentGateway,
	tm repository.TransactionManager,
	locker Locker,
	defaultDeviceLimit int,
	logger *zerolog.Logger,
) *enrollmentUC {
	l := logger.With().Str("component", "EnrollmentUC").Logger()
	if defaultDeviceLimit < model.DeviceLimitMin || defaultDeviceLimit > model.DeviceLimitMax {
		defaultDeviceLimit = model.DeviceLimitDefault
	}
	return &enrollmentUC{
		enrollments: enrollments,
		devices:     devices,
		audits:      audits,
		payments:    payments,
		paymentRepo: paymentRepo,
		catalog:     catalog,
		gateway:     gateway,
		tm:          tm,
		locker:      locker,
		deviceLimit: defaultDeviceLimit,
		log:         &l,
	}
}

func (u *enrollmentUC) Initiate(ctx context.Context, req InitiateRequest) (*model.PaymentTransaction, error) {
	defer logging.TraceDuration(u.log, "EnrollmentUC.Initiate")()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	// One initiate in flight per (learner, course); retries after the TTL
	// reuse the same receipt so the gateway can deduplicate the order.
	lockKey := "initiate:" + req.LearnerID + ":" + req.CourseID
	token, err := u.locker.TryLock(ctx, lockKey, 30*time.Second)
	if err != nil {
		if errors.Is(err, domain.ErrConcurrentAttempt) {
			return nil, err
		}
		// A lock-store failure is an infrastructure fault, not a conflict.
		return nil, fmt.Errorf("%w: acquire initiate lock: %v", domain.ErrOperationFailed, err)
	}
	defer func() { _ = u.locker.Unlock(ctx, lockKey, token) }()

	existing, err := u.enrollments.FindByLearnerAndCourse(ctx, repository.NoTX, req.LearnerID, req.CourseID)
	if err == nil && existing != nil {
		u.refreshLazy(ctx, existing)
		if existing.Status != model.EnrollmentStatusExpired && existing.Status != model.EnrollmentStatusCancelled {
			return nil, fmt.Errorf("%w: enrollment %s", domain.ErrAlreadyEnrolled, existing.ID)
		}
	}

	pricing, err := u.catalog.GetPricing(ctx, req.CourseID)
	if err != nil {
		return nil, err
	}
	if !pricing.IsOpenForEnrollment {
		return nil, domain.ErrCourseClosed
	}
	if !pricing.Supports(req.Type) {
		return nil, domain.ErrUnsupportedEnrollmentType
	}
	amount, err := pricing.Quote(req.Type, req.BillingCycle, currencyINR)
	if err != nil {
		return nil, err
	}

	// The only network boundary inside a core operation. No automatic
	// retry here; the receipt is the caller's idempotency key.
	receipt := "rcpt_" + req.LearnerID + "_" + req.CourseID
	orderID, err := u.gateway.CreateOrder(ctx, amount.Total, amount.Currency, receipt, map[string]string{
		"learner_id": req.LearnerID,
		"course_id":  req.CourseID,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}

	meta := map[string]string{
		metaEnrollmentType: string(req.Type),
		metaMethod:         req.Method,
	}
	if req.Type == model.EnrollmentTypeSubscription {
		meta[metaBillingCycle] = string(req.BillingCycle)
	}
	return u.payments.CreatePending(ctx, repository.NoTX, req.LearnerID, req.CourseID, pricing.GuruID, orderID, amount, meta)
}

func (u *enrollmentUC) Confirm(ctx context.Context, req ConfirmRequest) (*model.Enrollment, error) {
	defer logging.TraceDuration(u.log, "EnrollmentUC.Confirm")()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	t, err := u.payments.Get(ctx, req.TransactionID)
	if err != nil {
		return nil, err
	}

	// Idempotent retry: a confirmed transaction returns its enrollment.
	if t.Status == model.PaymentStatusSuccess {
		return u.enrollmentFor(ctx, t)
	}
	if t.Status.IsTerminal() {
		return nil, domain.ErrInvalidState
	}

	// Integrity check happens before any state change. A mismatch
	// terminates the transaction; it never silently proceeds.
	if !u.gateway.VerifySignature(t.Gateway.OrderID, req.GatewayPaymentID, req.Signature) {
		if err := u.payments.MarkFailed(ctx, t.ID, "SIGNATURE_MISMATCH"); err != nil {
			u.log.Error().Err(err).Str("transaction_id", t.ID).Msg("failed to record signature mismatch")
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrPaymentVerificationFailed, domain.ErrSignatureMismatch)
	}

	var out *model.Enrollment
	err = u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if err := lockAggregate(ctx, tx, t.LearnerID+":"+t.CourseID); err != nil {
			return err
		}
		return u.confirmInTx(ctx, tx, t, req, &out)
	})
	if err != nil {
		return nil, err
	}
	u.log.Info().Str("enrollment_id", out.ID).Str("transaction_id", t.ID).Msg("enrollment confirmed")
	return out, nil
}

// confirmInTx is the single all-or-nothing step: ledger success, the
// enrollment, its first device and the audit entry commit together.
func (u *enrollmentUC) confirmInTx(ctx context.Context, tx repository.Tx, stale *model.PaymentTransaction, req ConfirmRequest, out **model.Enrollment) error {
	payments := u.paymentRepo

	t, err := payments.FindByID(ctx, tx, stale.ID)
	if err != nil {
		return err
	}
	if t.Status == model.PaymentStatusSuccess { // lost a race with another confirm
		e, err := u.enrollmentFor(ctx, t)
		if err != nil {
			return err
		}
		*out = e
		return nil
	}
	before := len(t.Events)
	if err := t.MarkSuccess(req.GatewayPaymentID, req.Signature); err != nil {
		return err
	}
	ok, err := payments.UpdateStatusIfPending(ctx, tx, t.ID, model.PaymentStatusSuccess, &req.GatewayPaymentID, &req.Signature, t.CompletedAt)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrInvalidState
	}

	now := time.Now()
	summary := model.PaymentSummary{
		TransactionID: t.ID,
		Method:        t.Meta[metaMethod],
		Amount:        t.Amount,
		Revenue:       t.Revenue,
		IsCompleted:   true,
		OrderID:       t.Gateway.OrderID,
		PaymentID:     req.GatewayPaymentID,
		Signature:     req.Signature,
	}
	typ := model.EnrollmentType(t.Meta[metaEnrollmentType])
	cycle := model.BillingCycle(t.Meta[metaBillingCycle])

	e, findErr := u.enrollments.FindByLearnerAndCourse(ctx, tx, t.LearnerID, t.CourseID)
	action := model.AuditActionCreated
	if findErr == nil && e != nil {
		// Reactivation: a confirmed renewal (or re-purchase) of an
		// expired/cancelled enrollment starts a fresh period.
		e.Payment = summary
		if e.Subscription != nil {
			renewCycle := cycle
			if !renewCycle.Valid() {
				renewCycle = e.Subscription.BillingCycle
			}
			if err := e.Subscription.StartNewPeriod(renewCycle, now); err != nil {
				return err
			}
			if err := e.ApplyRenewal(now); err != nil {
				return err
			}
		} else {
			if !e.Status.CanTransitionTo(model.EnrollmentStatusActive) {
				return domain.ErrInvalidState
			}
			e.Status = model.EnrollmentStatusActive
			e.Access.IsActive = true
			e.UpdatedAt = now
		}
		action = model.AuditActionSubscriptionChange
	} else {
		var sub *model.Subscription
		if typ == model.EnrollmentTypeSubscription {
			sub, err = model.NewSubscription(cycle, now)
			if err != nil {
				return err
			}
		}
		e, err = model.NewEnrollment(uuid.NewString(), t.LearnerID, t.CourseID, t.GuruID, typ, summary, sub, u.deviceLimit)
		if err != nil {
			return err
		}
	}
	if err := u.enrollments.Save(ctx, tx, e); err != nil {
		return err
	}

	t.EnrollmentID = &e.ID
	if err := payments.Save(ctx, tx, t); err != nil {
		return err
	}
	for i := before; i < len(t.Events); i++ {
		ev := t.Events[i]
		if err := payments.AppendEvent(ctx, tx, &ev); err != nil {
			return err
		}
	}

	// Register the confirming device as the first device.
	if req.DeviceFingerprint != "" {
		if err := u.registerDeviceInTx(ctx, tx, e, req); err != nil {
			return err
		}
	}

	entry := &model.AuditEntry{
		EnrollmentID: e.ID,
		Action:       action,
		Actor:        req.Actor,
		Details:      "transaction " + t.ID,
		IPAddress:    req.IPAddress,
	}
	if err := u.audits.Append(ctx, tx, entry); err != nil {
		return err
	}
	*out = e
	return nil
}

func (u *enrollmentUC) registerDeviceInTx(ctx context.Context, tx repository.Tx, e *model.Enrollment, req ConfirmRequest) error {
	existing, err := u.devices.FindByFingerprint(ctx, tx, e.ID, req.DeviceFingerprint)
	if err == nil && existing != nil && existing.IsActive {
		existing.Touch(req.DevicePlatform, req.DeviceMeta)
		return u.devices.Save(ctx, tx, existing)
	}
	// The ceiling holds on reactivation too: a renewal confirmed from a
	// new device skips registration instead of exceeding the limit, and
	// the payment still completes.
	active, err := u.devices.CountActive(ctx, tx, e.ID)
	if err != nil {
		return err
	}
	if active >= e.Access.DeviceLimit {
		u.log.Warn().Str("enrollment_id", e.ID).Int("active", active).Msg("confirming device not registered: device limit reached")
		return nil
	}
	if existing != nil {
		existing.IsActive = true
		existing.Touch(req.DevicePlatform, req.DeviceMeta)
		return u.devices.Save(ctx, tx, existing)
	}
	d, err := model.NewDevice(uuid.NewString(), e.ID, req.DeviceFingerprint, req.DevicePlatform, req.DeviceMeta)
	if err != nil {
		return err
	}
	return u.devices.Save(ctx, tx, d)
}

// enrollmentFor resolves the enrollment of a confirmed transaction.
func (u *enrollmentUC) enrollmentFor(ctx context.Context, t *model.PaymentTransaction) (*model.Enrollment, error) {
	if t.EnrollmentID != nil {
		return u.enrollments.FindByID(ctx, repository.NoTX, *t.EnrollmentID)
	}
	return u.enrollments.FindByLearnerAndCourse(ctx, repository.NoTX, t.LearnerID, t.CourseID)
}

// expiryEntry records the autonomous expiry transition with its prior
// and new status, like every other transition on the aggregate.
func expiryEntry(e *model.Enrollment, prior model.EnrollmentStatus) *model.AuditEntry {
	return &model.AuditEntry{
		EnrollmentID: e.ID,
		Action:       model.AuditActionExpired,
		Actor:        "system",
		Details:      fmt.Sprintf("%s -> %s; access period ended", prior, e.Status),
	}
}

// refreshLazy enforces the expiry invariant on load; save is best effort
// since the next transactional mutation re-applies it.
func (u *enrollmentUC) refreshLazy(ctx context.Context, e *model.Enrollment) {
	prior := e.Status
	if !e.RefreshExpiry(time.Now()) {
		return
	}
	if err := u.enrollments.Save(ctx, repository.NoTX, e); err != nil {
		u.log.Warn().Err(err).Str("enrollment_id", e.ID).Msg("lazy expiry save failed")
		return
	}
	if err := u.audits.Append(ctx, repository.NoTX, expiryEntry(e, prior)); err != nil {
		u.log.Warn().Err(err).Str("enrollment_id", e.ID).Msg("lazy expiry audit failed")
	}
}

func (u *enrollmentUC) ValidateAccess(ctx context.Context, enrollmentID, deviceID string) (*model.Enrollment, error) {
	if enrollmentID == "" {
		return nil, domain.ErrInvalidArgument
	}
	e, err := u.enrollments.FindByID(ctx, repository.NoTX, enrollmentID)
	if err != nil {
		return nil, err
	}
	u.refreshLazy(ctx, e)
	if err := e.CheckAccess(time.Now()); err != nil {
		return nil, err
	}
	if deviceID != "" {
		d, err := u.devices.FindByID(ctx, repository.NoTX, enrollmentID, deviceID)
		if err != nil || d == nil || !d.IsActive {
			return nil, domain.ErrDeviceNotRegistered
		}
		d.Touch("", "")
		if err := u.devices.Save(ctx, repository.NoTX, d); err != nil {
			u.log.Warn().Err(err).Str("device_id", deviceID).Msg("device last-seen update failed")
		}
	}
	return e, nil
}

func (u *enrollmentUC) Get(ctx context.Context, enrollmentID string) (*model.Enrollment, error) {
	if enrollmentID == "" {
		return nil, domain.ErrInvalidArgument
	}
	e, err := u.enrollments.FindByID(ctx, repository.NoTX, enrollmentID)
	if err != nil {
		return nil, err
	}
	u.refreshLazy(ctx, e)
	return e, nil
}

func (u *enrollmentUC) ListByLearner(ctx context.Context, learnerID string, offset, limit int) ([]*model.Enrollment, error) {
	if learnerID == "" {
		return nil, domain.ErrInvalidArgument
	}
	if limit <= 0 {
		limit = 50
	}
	list, err := u.enrollments.ListByLearner(ctx, repository.NoTX, learnerID, offset, limit)
	if err != nil {
		return nil, err
	}
	for _, e := range list {
		u.refreshLazy(ctx, e)
	}
	return list, nil
}
