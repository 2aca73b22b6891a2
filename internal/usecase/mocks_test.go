//go:build !integration

// File: internal/usecase/mocks_test.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"github.com/pravartak01/shlokayug-enrollment/internal/domain"
	"github.com/pravartak01/shlokayug-enrollment/internal/domain/model"
	"github.com/pravartak01/shlokayug-enrollment/internal/domain/ports/repository"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

// mockTxManager runs the function with a nil tx handle; the in-memory
// repositories below accept it like the real ones accept NoTX.
type mockTxManager struct{}

func (m *mockTxManager) WithTx(ctx context.Context, _ pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	return fn(ctx, nil)
}

// serialTxManager serializes transactions the way the per-aggregate
// advisory lock does in postgres.
type serialTxManager struct{ mu sync.Mutex }

func (m *serialTxManager) WithTx(ctx context.Context, _ pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(ctx, nil)
}

// -----------------------------
// Payments
// -----------------------------

type mockPaymentRepo struct {
	mu     sync.Mutex
	byID   map[string]*model.PaymentTransaction
	events []*model.TransactionEvent

	SaveFunc func(t *model.PaymentTransaction) error
}

func newMockPaymentRepo() *mockPaymentRepo {
	return &mockPaymentRepo{byID: make(map[string]*model.PaymentTransaction)}
}

func clonePayment(t *model.PaymentTransaction) *model.PaymentTransaction {
	c := *t
	c.Events = append([]model.TransactionEvent(nil), t.Events...)
	c.Refunds = append([]model.Refund(nil), t.Refunds...)
	if t.EnrollmentID != nil {
		v := *t.EnrollmentID
		c.EnrollmentID = &v
	}
	if t.CompletedAt != nil {
		v := *t.CompletedAt
		c.CompletedAt = &v
	}
	if t.Meta != nil {
		c.Meta = make(map[string]string, len(t.Meta))
		for k, v := range t.Meta {
			c.Meta[k] = v
		}
	}
	return &c
}

func (m *mockPaymentRepo) Save(_ context.Context, _ repository.Tx, t *model.PaymentTransaction) error {
	if m.SaveFunc != nil {
		if err := m.SaveFunc(t); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[t.ID] = clonePayment(t)
	return nil
}

func (m *mockPaymentRepo) FindByID(_ context.Context, _ repository.Tx, id string) (*model.PaymentTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return clonePayment(t), nil
}

func (m *mockPaymentRepo) FindByOrderID(_ context.Context, _ repository.Tx, orderID string) (*model.PaymentTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.byID {
		if t.Gateway.OrderID == orderID {
			return clonePayment(t), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockPaymentRepo) UpdateStatusIfPending(_ context.Context, _ repository.Tx, id string, status model.PaymentStatus, paymentID, signature *string, completedAt *time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.byID[id]
	if !ok {
		return false, domain.ErrNotFound
	}
	if t.Status != model.PaymentStatusPending && t.Status != model.PaymentStatusProcessing {
		return false, nil
	}
	t.Status = status
	if paymentID != nil {
		t.Gateway.PaymentID = *paymentID
	}
	if signature != nil {
		t.Gateway.Signature = *signature
	}
	if completedAt != nil {
		v := *completedAt
		t.CompletedAt = &v
	}
	t.UpdatedAt = time.Now()
	return true, nil
}

func (m *mockPaymentRepo) AppendEvent(_ context.Context, _ repository.Tx, ev *model.TransactionEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *ev
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	m.events = append(m.events, &c)
	return nil
}

func (m *mockPaymentRepo) ListEvents(_ context.Context, _ repository.Tx, transactionID string) ([]*model.TransactionEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.TransactionEvent
	for _, ev := range m.events {
		if ev.TransactionID == transactionID {
			c := *ev
			out = append(out, &c)
		}
	}
	return out, nil
}

func (m *mockPaymentRepo) CountRecentByLearnerAndCourse(_ context.Context, _ repository.Tx, learnerID, courseID string, since time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.byID {
		if t.LearnerID == learnerID && t.CourseID == courseID && t.CreatedAt.After(since) {
			n++
		}
	}
	return n, nil
}

func (m *mockPaymentRepo) ListPendingOlderThan(_ context.Context, _ repository.Tx, olderThan time.Time, limit int) ([]*model.PaymentTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.PaymentTransaction
	for _, t := range m.byID {
		if t.Status == model.PaymentStatusPending && t.CreatedAt.Before(olderThan) {
			out = append(out, clonePayment(t))
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (m *mockPaymentRepo) SumByStatusAndPeriod(_ context.Context, _ repository.Tx, status model.PaymentStatus, _ string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var sum int64
	for _, t := range m.byID {
		if t.Status == status {
			sum += t.Amount.Total
		}
	}
	return sum, nil
}

func (m *mockPaymentRepo) SumUndistributed(_ context.Context, _ repository.Tx) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var sum int64
	for _, t := range m.byID {
		if t.Status == model.PaymentStatusSuccess && !t.Revenue.IsDistributed {
			sum += t.Amount.Total
		}
	}
	return sum, nil
}

// -----------------------------
// Enrollments
// -----------------------------

type mockEnrollmentRepo struct {
	mu   sync.Mutex
	byID map[string]*model.Enrollment

	SaveFunc func(e *model.Enrollment) error
}

func newMockEnrollmentRepo() *mockEnrollmentRepo {
	return &mockEnrollmentRepo{byID: make(map[string]*model.Enrollment)}
}

func cloneEnrollment(e *model.Enrollment) *model.Enrollment {
	c := *e
	if e.Subscription != nil {
		s := *e.Subscription
		c.Subscription = &s
	}
	if e.Access.ExpiresAt != nil {
		v := *e.Access.ExpiresAt
		c.Access.ExpiresAt = &v
	}
	if e.Progress.LastAccessedAt != nil {
		v := *e.Progress.LastAccessedAt
		c.Progress.LastAccessedAt = &v
	}
	return &c
}

func (m *mockEnrollmentRepo) Save(_ context.Context, _ repository.Tx, e *model.Enrollment) error {
	if m.SaveFunc != nil {
		if err := m.SaveFunc(e); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e.Version++
	m.byID[e.ID] = cloneEnrollment(e)
	return nil
}

func (m *mockEnrollmentRepo) FindByID(_ context.Context, _ repository.Tx, id string) (*model.Enrollment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneEnrollment(e), nil
}

func (m *mockEnrollmentRepo) FindByLearnerAndCourse(_ context.Context, _ repository.Tx, learnerID, courseID string) (*model.Enrollment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.byID {
		if e.LearnerID == learnerID && e.CourseID == courseID {
			return cloneEnrollment(e), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockEnrollmentRepo) ListByLearner(_ context.Context, _ repository.Tx, learnerID string, _, limit int) ([]*model.Enrollment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Enrollment
	for _, e := range m.byID {
		if e.LearnerID == learnerID {
			out = append(out, cloneEnrollment(e))
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (m *mockEnrollmentRepo) ListExpiredActive(_ context.Context, _ repository.Tx, asOf time.Time, limit int) ([]*model.Enrollment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Enrollment
	for _, e := range m.byID {
		if e.Status == model.EnrollmentStatusActive && e.Access.ExpiresAt != nil && !asOf.Before(*e.Access.ExpiresAt) {
			out = append(out, cloneEnrollment(e))
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (m *mockEnrollmentRepo) CountByStatus(_ context.Context, _ repository.Tx) (map[model.EnrollmentStatus]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[model.EnrollmentStatus]int)
	for _, e := range m.byID {
		out[e.Status]++
	}
	return out, nil
}

// -----------------------------
// Devices
// -----------------------------

type mockDeviceRepo struct {
	mu   sync.Mutex
	byID map[string]*model.Device
}

func newMockDeviceRepo() *mockDeviceRepo {
	return &mockDeviceRepo{byID: make(map[string]*model.Device)}
}

func (m *mockDeviceRepo) Save(_ context.Context, _ repository.Tx, d *model.Device) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *d
	m.byID[d.ID] = &c
	return nil
}

func (m *mockDeviceRepo) FindByID(_ context.Context, _ repository.Tx, enrollmentID, deviceID string) (*model.Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.byID[deviceID]
	if !ok || d.EnrollmentID != enrollmentID {
		return nil, domain.ErrNotFound
	}
	c := *d
	return &c, nil
}

func (m *mockDeviceRepo) FindByFingerprint(_ context.Context, _ repository.Tx, enrollmentID, fingerprint string) (*model.Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.byID {
		if d.EnrollmentID == enrollmentID && d.Fingerprint == fingerprint {
			c := *d
			return &c, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockDeviceRepo) ListByEnrollment(_ context.Context, _ repository.Tx, enrollmentID string) ([]*model.Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Device
	for _, d := range m.byID {
		if d.EnrollmentID == enrollmentID {
			c := *d
			out = append(out, &c)
		}
	}
	return out, nil
}

func (m *mockDeviceRepo) CountActive(_ context.Context, _ repository.Tx, enrollmentID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, d := range m.byID {
		if d.EnrollmentID == enrollmentID && d.IsActive {
			n++
		}
	}
	return n, nil
}

// -----------------------------
// Audit trail
// -----------------------------

type mockAuditRepo struct {
	mu      sync.Mutex
	entries []*model.AuditEntry
}

func newMockAuditRepo() *mockAuditRepo { return &mockAuditRepo{} }

func (m *mockAuditRepo) Append(_ context.Context, _ repository.Tx, entry *model.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *entry
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	m.entries = append(m.entries, &c)
	return nil
}

func (m *mockAuditRepo) ListByEnrollment(_ context.Context, _ repository.Tx, enrollmentID string, _, limit int) ([]*model.AuditEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.AuditEntry
	for _, e := range m.entries {
		if e.EnrollmentID == enrollmentID {
			c := *e
			out = append(out, &c)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

// actions returns the recorded action names for one enrollment, in order.
func (m *mockAuditRepo) actions(enrollmentID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, e := range m.entries {
		if e.EnrollmentID == enrollmentID {
			out = append(out, e.Action)
		}
	}
	return out
}

// -----------------------------
// Gateway, catalog, locker
// -----------------------------

type mockGateway struct {
	mu         sync.Mutex
	orders     int
	failCreate bool
}

func (g *mockGateway) Name() string { return "mockpay" }

func (g *mockGateway) CreateOrder(_ context.Context, amount int64, _, receipt string, _ map[string]string) (string, error) {
	if g.failCreate {
		return "", errors.New("gateway unreachable")
	}
	if amount <= 0 || receipt == "" {
		return "", errors.New("bad order request")
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.orders++
	return fmt.Sprintf("order_%03d", g.orders), nil
}

func (g *mockGateway) sign(orderID, paymentID string) string {
	return "sig|" + orderID + "|" + paymentID
}

func (g *mockGateway) VerifySignature(orderID, paymentID, signature string) bool {
	return signature == g.sign(orderID, paymentID)
}

type mockCatalog struct {
	pricing map[string]*model.CoursePricing
	err     error
}

func (c *mockCatalog) GetPricing(_ context.Context, courseID string) (*model.CoursePricing, error) {
	if c.err != nil {
		return nil, c.err
	}
	p, ok := c.pricing[courseID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

type mockLocker struct {
	mu   sync.Mutex
	held map[string]string

	TryLockErr error // overrides acquisition when set
}

func newMockLocker() *mockLocker { return &mockLocker{held: make(map[string]string)} }

func (l *mockLocker) TryLock(_ context.Context, key string, _ time.Duration) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.TryLockErr != nil {
		return "", l.TryLockErr
	}
	if _, ok := l.held[key]; ok {
		return "", domain.ErrConcurrentAttempt
	}
	token := uuid.NewString()
	l.held[key] = token
	return token, nil
}

func (l *mockLocker) Unlock(_ context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] != token {
		return errors.New("not the holder")
	}
	delete(l.held, key)
	return nil
}

// -----------------------------
// Wiring
// -----------------------------

// ucEnv wires every use case against the in-memory backends with the
// default 80/20 split and a device limit of 3.
type ucEnv struct {
	paymentRepo    *mockPaymentRepo
	enrollmentRepo *mockEnrollmentRepo
	deviceRepo     *mockDeviceRepo
	auditRepo      *mockAuditRepo
	gateway        *mockGateway
	catalog        *mockCatalog
	locker         *mockLocker

	payments    PaymentUseCase
	enrollments EnrollmentUseCase
	subs        SubscriptionUseCase
	devices     DeviceUseCase
	progress    ProgressUseCase
}

func newUCEnv() *ucEnv {
	env := &ucEnv{
		paymentRepo:    newMockPaymentRepo(),
		enrollmentRepo: newMockEnrollmentRepo(),
		deviceRepo:     newMockDeviceRepo(),
		auditRepo:      newMockAuditRepo(),
		gateway:        &mockGateway{},
		catalog:        &mockCatalog{pricing: map[string]*model.CoursePricing{}},
		locker:         newMockLocker(),
	}
	tm := &mockTxManager{}
	log := newTestLogger()
	env.payments = NewPaymentUseCase(env.paymentRepo, env.auditRepo, env.gateway, tm, 80, log)
	env.enrollments = NewEnrollmentUseCase(env.enrollmentRepo, env.deviceRepo, env.auditRepo, env.payments, env.paymentRepo, env.catalog, env.gateway, tm, env.locker, 3, log)
	env.subs = NewSubscriptionUseCase(env.enrollmentRepo, env.auditRepo, env.payments, env.catalog, env.gateway, tm, log)
	env.devices = NewDeviceUseCase(env.enrollmentRepo, env.deviceRepo, env.auditRepo, tm, log)
	env.progress = NewProgressUseCase(env.enrollmentRepo, newMockProgressRepo(), env.auditRepo, tm, log)
	return env
}

func (env *ucEnv) addCourse(courseID, guruID string, oneTime int64, monthly int64) {
	p := &model.CoursePricing{
		CourseID:            courseID,
		GuruID:              guruID,
		SubscriptionRates:   map[model.BillingCycle]int64{},
		IsOpenForEnrollment: true,
	}
	if oneTime > 0 {
		p.OneTimeAmount = &oneTime
	}
	if monthly > 0 {
		p.SubscriptionRates[model.BillingCycleMonthly] = monthly
		p.SubscriptionRates[model.BillingCycleYearly] = monthly * 10
	}
	env.catalog.pricing[courseID] = p
}

// enroll drives the full initiate+confirm flow and returns the active
// enrollment plus its confirmed transaction.
func (env *ucEnv) enroll(ctx context.Context, learner, course string, typ model.EnrollmentType, cycle model.BillingCycle) (*model.Enrollment, *model.PaymentTransaction, error) {
	t, err := env.enrollments.Initiate(ctx, InitiateRequest{
		LearnerID:    learner,
		CourseID:     course,
		Type:         typ,
		BillingCycle: cycle,
		Method:       "upi",
	})
	if err != nil {
		return nil, nil, err
	}
	payID := "pay_" + strings.TrimPrefix(t.Gateway.OrderID, "order_")
	e, err := env.enrollments.Confirm(ctx, ConfirmRequest{
		TransactionID:     t.ID,
		GatewayPaymentID:  payID,
		Signature:         env.gateway.sign(t.Gateway.OrderID, payID),
		DeviceFingerprint: "fp-primary",
		DevicePlatform:    "android",
		Actor:             learner,
	})
	if err != nil {
		return nil, nil, err
	}
	t, err = env.payments.Get(ctx, t.ID)
	return e, t, err
}

// -----------------------------
// Progress units
// -----------------------------

type mockProgressRepo struct {
	mu    sync.Mutex
	units map[string]*model.CompletedUnit // key enrollmentID|unitID
}

func newMockProgressRepo() *mockProgressRepo {
	return &mockProgressRepo{units: make(map[string]*model.CompletedUnit)}
}

func (m *mockProgressRepo) UpsertUnit(_ context.Context, _ repository.Tx, u *model.CompletedUnit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := u.EnrollmentID + "|" + u.UnitID
	if prev, ok := m.units[key]; ok {
		prev.TimeSpentSeconds += u.TimeSpentSeconds
		prev.CompletedAt = u.CompletedAt
		return nil
	}
	c := *u
	m.units[key] = &c
	return nil
}

func (m *mockProgressRepo) CountUnits(_ context.Context, _ repository.Tx, enrollmentID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, u := range m.units {
		if u.EnrollmentID == enrollmentID {
			n++
		}
	}
	return n, nil
}

func (m *mockProgressRepo) SumTimeSeconds(_ context.Context, _ repository.Tx, enrollmentID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var sum int64
	for _, u := range m.units {
		if u.EnrollmentID == enrollmentID {
			sum += u.TimeSpentSeconds
		}
	}
	return sum, nil
}

func (m *mockProgressRepo) ListUnits(_ context.Context, _ repository.Tx, enrollmentID string) ([]*model.CompletedUnit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.CompletedUnit
	for _, u := range m.units {
		if u.EnrollmentID == enrollmentID {
			c := *u
			out = append(out, &c)
		}
	}
	return out, nil
}
