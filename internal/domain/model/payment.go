package model

import (
	"time"

	"github.com/pravartak01/shlokayug-enrollment/internal/domain"
)

type PaymentStatus string

const (
	PaymentStatusPending           PaymentStatus = "pending"            // order created on gateway side; awaiting confirmation
	PaymentStatusProcessing        PaymentStatus = "processing"         // confirmation in flight
	PaymentStatusSuccess           PaymentStatus = "success"            // signature verified, money captured
	PaymentStatusFailed            PaymentStatus = "failed"             // verification failed or gateway reported failure
	PaymentStatusRefunded          PaymentStatus = "refunded"           // fully refunded
	PaymentStatusPartiallyRefunded PaymentStatus = "partially_refunded" // part of the total refunded
	PaymentStatusCancelled         PaymentStatus = "cancelled"          // admin/user cancel before capture
)

// paymentTransitions is the single source of truth for ledger status edges.
// Any mutation that does not correspond to a listed edge is rejected.
var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusPending:           {PaymentStatusProcessing, PaymentStatusSuccess, PaymentStatusFailed, PaymentStatusCancelled},
	PaymentStatusProcessing:        {PaymentStatusSuccess, PaymentStatusFailed, PaymentStatusCancelled},
	PaymentStatusSuccess:           {PaymentStatusRefunded, PaymentStatusPartiallyRefunded},
	PaymentStatusPartiallyRefunded: {PaymentStatusRefunded, PaymentStatusPartiallyRefunded},
}

// IsTerminal reports whether no further status transition is possible.
// Success is terminal unless refunded.
func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentStatusFailed || s == PaymentStatusRefunded || s == PaymentStatusCancelled
}

func (s PaymentStatus) canTransitionTo(to PaymentStatus) bool {
	for _, t := range paymentTransitions[s] {
		if t == to {
			return true
		}
	}
	return false
}

// Amount is the price breakdown of a payment attempt.
// All values are integer paise to avoid float errors.
type Amount struct {
	Total         int64
	Base          int64
	Discount      int64
	Tax           int64
	ProcessingFee int64
	Currency      string
}

// Reconciles checks total == base - discount + tax + fee. Integer paise,
// so the rounding tolerance of the money contract is exact equality here.
func (a Amount) Reconciles() bool {
	return a.Total == a.Base-a.Discount+a.Tax+a.ProcessingFee
}

// RevenueSplit records how a successful payment divides between the
// content owner (guru) and the platform. Percentages are stored per
// transaction so a configuration change never rewrites history.
type RevenueSplit struct {
	GuruShare       int64
	PlatformShare   int64
	GuruPercent     int
	PlatformPercent int
	IsDistributed   bool
	DistributedAt   *time.Time
}

// SplitRevenue divides total by the guru percentage. The rounding
// remainder goes to the platform share so the two always sum to total.
func SplitRevenue(total int64, guruPercent int) RevenueSplit {
	guru := total * int64(guruPercent) / 100
	return RevenueSplit{
		GuruShare:       guru,
		PlatformShare:   total - guru,
		GuruPercent:     guruPercent,
		PlatformPercent: 100 - guruPercent,
	}
}

type RiskLevel string

const (
	RiskLevelLow    RiskLevel = "low"
	RiskLevelMedium RiskLevel = "medium"
	RiskLevelHigh   RiskLevel = "high"
)

type RiskAssessment struct {
	Score        int
	Level        RiskLevel
	Factors      []string
	ManualReview bool
}

// AssessRisk scores a payment attempt from the signals available at
// creation time: large tickets and repeated recent attempts push the
// score up, high scores flag the transaction for manual review.
func AssessRisk(amount Amount, recentAttempts int) RiskAssessment {
	score := 0
	var factors []string
	if amount.Total >= 50_000_00 { // >= Rs 50,000
		score += 40
		factors = append(factors, "high_ticket_amount")
	} else if amount.Total >= 10_000_00 {
		score += 15
		factors = append(factors, "elevated_ticket_amount")
	}
	if recentAttempts >= 3 {
		score += 30
		factors = append(factors, "repeated_payment_attempts")
	}
	if amount.Discount > 0 && amount.Discount*2 > amount.Base {
		score += 20
		factors = append(factors, "discount_over_half_base")
	}
	level := RiskLevelLow
	switch {
	case score >= 60:
		level = RiskLevelHigh
	case score >= 30:
		level = RiskLevelMedium
	}
	return RiskAssessment{Score: score, Level: level, Factors: factors, ManualReview: level == RiskLevelHigh}
}

// GatewayRefs holds the external identifiers tying a ledger entry to the
// gateway order. PaymentID and Signature are set only on success.
type GatewayRefs struct {
	OrderID   string
	PaymentID string
	Signature string
}

type Refund struct {
	Amount     int64
	Reason     string
	RefundedAt time.Time
	Actor      string
}

// TransactionEvent is one append-only entry in a transaction's event log.
type TransactionEvent struct {
	ID            string
	TransactionID string
	FromStatus    PaymentStatus
	ToStatus      PaymentStatus
	Note          string
	CreatedAt     time.Time
}

// PaymentTransaction is one payment attempt in the ledger. History is
// immutable once CompletedAt is set; only refund and distribution fields
// may change afterwards.
type PaymentTransaction struct {
	ID           string // ULID, sortable by creation time
	LearnerID    string
	CourseID     string
	GuruID       string
	EnrollmentID *string // set once the enrollment exists
	Amount       Amount
	Revenue      RevenueSplit
	Status       PaymentStatus
	Gateway      GatewayRefs
	Refunds      []Refund
	Risk         RiskAssessment
	Events       []TransactionEvent
	Meta         map[string]string // enrollment type, billing cycle, method; serialized as JSONB
	CreatedAt    time.Time
	UpdatedAt    time.Time
	CompletedAt  *time.Time
}

// NewPaymentTransaction validates the breakdown and constructs a pending
// ledger entry with the revenue split computed from guruPercent.
func NewPaymentTransaction(id, learnerID, courseID, guruID, orderID string, amount Amount, guruPercent int, recentAttempts int) (*PaymentTransaction, error) {
	if id == "" || learnerID == "" || courseID == "" || guruID == "" {
		return nil, domain.ErrInvalidArgument
	}
	if guruPercent <= 0 || guruPercent >= 100 {
		return nil, domain.ErrInvalidArgument
	}
	if amount.Total <= 0 || !amount.Reconciles() {
		return nil, domain.ErrInvalidAmount
	}
	now := time.Now()
	t := &PaymentTransaction{
		ID:        id,
		LearnerID: learnerID,
		CourseID:  courseID,
		GuruID:    guruID,
		Amount:    amount,
		Revenue:   SplitRevenue(amount.Total, guruPercent),
		Status:    PaymentStatusPending,
		Gateway:   GatewayRefs{OrderID: orderID},
		Risk:      AssessRisk(amount, recentAttempts),
		CreatedAt: now,
		UpdatedAt: now,
	}
	t.appendEvent("", PaymentStatusPending, "transaction created")
	return t, nil
}

func (t *PaymentTransaction) appendEvent(from, to PaymentStatus, note string) {
	t.Events = append(t.Events, TransactionEvent{
		TransactionID: t.ID,
		FromStatus:    from,
		ToStatus:      to,
		Note:          note,
		CreatedAt:     time.Now(),
	})
}

func (t *PaymentTransaction) transition(to PaymentStatus, note string) error {
	if !t.Status.canTransitionTo(to) {
		return domain.ErrInvalidState
	}
	from := t.Status
	t.Status = to
	t.UpdatedAt = time.Now()
	t.appendEvent(from, to, note)
	return nil
}

// MarkSuccess moves pending/processing to success and pins the gateway
// payment id and signature used for verification.
func (t *PaymentTransaction) MarkSuccess(paymentID, signature string) error {
	if err := t.transition(PaymentStatusSuccess, "payment verified"); err != nil {
		return err
	}
	now := time.Now()
	t.Gateway.PaymentID = paymentID
	t.Gateway.Signature = signature
	t.CompletedAt = &now
	return nil
}

func (t *PaymentTransaction) MarkFailed(reason string) error {
	return t.transition(PaymentStatusFailed, reason)
}

// RefundedTotal sums all refunds applied so far.
func (t *PaymentTransaction) RefundedTotal() int64 {
	var sum int64
	for _, r := range t.Refunds {
		sum += r.Amount
	}
	return sum
}

// ApplyRefund records a refund against a successful transaction and moves
// status to refunded or partially_refunded.
func (t *PaymentTransaction) ApplyRefund(amount int64, reason, actor string) error {
	if t.Status != PaymentStatusSuccess && t.Status != PaymentStatusPartiallyRefunded {
		return domain.ErrInvalidState
	}
	if amount <= 0 || amount > t.Amount.Total-t.RefundedTotal() {
		return domain.ErrInvalidRefundAmount
	}
	t.Refunds = append(t.Refunds, Refund{Amount: amount, Reason: reason, RefundedAt: time.Now(), Actor: actor})
	to := PaymentStatusPartiallyRefunded
	if t.RefundedTotal() == t.Amount.Total {
		to = PaymentStatusRefunded
	}
	return t.transition(to, "refund: "+reason)
}

// Distribute marks the revenue split as paid out.
// A second call returns ErrAlreadyDistributed.
func (t *PaymentTransaction) Distribute() error {
	if t.Status != PaymentStatusSuccess {
		return domain.ErrNotSuccessful
	}
	if t.Revenue.IsDistributed {
		return domain.ErrAlreadyDistributed
	}
	now := time.Now()
	t.Revenue.IsDistributed = true
	t.Revenue.DistributedAt = &now
	t.UpdatedAt = now
	t.appendEvent(t.Status, t.Status, "revenue distributed")
	return nil
}
