package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrOperationFailed    = errors.New("operation failed")
	ErrInvalidExecContext = errors.New("invalid execution context for query")
	ErrReadDatabaseRow    = errors.New("failed to read database row")

	// Payment ledger errors
	ErrInvalidAmount       = errors.New("amount breakdown does not reconcile")
	ErrInvalidState        = errors.New("operation not allowed in current state")
	ErrInvalidRefundAmount = errors.New("refund amount exceeds refundable balance")
	ErrAlreadyDistributed  = errors.New("revenue already distributed")
	ErrNotSuccessful       = errors.New("transaction is not successful")
	ErrSignatureMismatch   = errors.New("payment signature mismatch")

	// Enrollment errors
	ErrAlreadyEnrolled           = errors.New("learner is already enrolled in this course")
	ErrUnsupportedEnrollmentType = errors.New("course does not support this enrollment type")
	ErrCourseClosed              = errors.New("course is not open for enrollment")
	ErrPaymentVerificationFailed = errors.New("payment verification failed")
	ErrNotActive                 = errors.New("enrollment is not active")
	ErrAccessExpired             = errors.New("enrollment access has expired")
	ErrGatewayUnavailable        = errors.New("payment gateway unavailable")
	ErrConcurrentAttempt         = errors.New("another attempt for this enrollment is in progress")

	// Subscription errors
	ErrAlreadyCancelled    = errors.New("subscription already cancelled or expired")
	ErrInvalidBillingCycle = errors.New("unrecognized billing cycle")
	ErrRenewalNotNeeded    = errors.New("subscription does not need renewal")
	ErrNotSubscription     = errors.New("enrollment is not a subscription")

	// Device errors
	ErrDeviceLimitExceeded = errors.New("device limit exceeded")
	ErrDeviceNotFound      = errors.New("device not found")
	ErrDeviceNotRegistered = errors.New("device not registered for this enrollment")
)

// Code maps a domain error to the stable code returned in API envelopes.
// Unknown errors map to INTERNAL so diagnostic detail never leaks to callers.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, ErrInvalidArgument):
		return "VALIDATION_FAILED"
	case errors.Is(err, ErrInvalidAmount):
		return "INVALID_AMOUNT"
	case errors.Is(err, ErrInvalidState):
		return "INVALID_STATE"
	case errors.Is(err, ErrInvalidRefundAmount):
		return "INVALID_REFUND_AMOUNT"
	case errors.Is(err, ErrAlreadyDistributed):
		return "ALREADY_DISTRIBUTED"
	case errors.Is(err, ErrNotSuccessful):
		return "NOT_SUCCESSFUL"
	case errors.Is(err, ErrPaymentVerificationFailed):
		return "PAYMENT_VERIFICATION_FAILED"
	case errors.Is(err, ErrSignatureMismatch):
		return "SIGNATURE_MISMATCH"
	case errors.Is(err, ErrAlreadyEnrolled):
		return "ALREADY_ENROLLED"
	case errors.Is(err, ErrUnsupportedEnrollmentType):
		return "UNSUPPORTED_ENROLLMENT_TYPE"
	case errors.Is(err, ErrCourseClosed):
		return "COURSE_CLOSED"
	case errors.Is(err, ErrNotActive):
		return "NOT_ACTIVE"
	case errors.Is(err, ErrAccessExpired):
		return "ACCESS_EXPIRED"
	case errors.Is(err, ErrGatewayUnavailable):
		return "GATEWAY_UNAVAILABLE"
	case errors.Is(err, ErrConcurrentAttempt):
		return "CONCURRENT_ATTEMPT"
	case errors.Is(err, ErrAlreadyCancelled):
		return "ALREADY_CANCELLED"
	case errors.Is(err, ErrInvalidBillingCycle):
		return "INVALID_BILLING_CYCLE"
	case errors.Is(err, ErrRenewalNotNeeded):
		return "RENEWAL_NOT_NEEDED"
	case errors.Is(err, ErrNotSubscription):
		return "NOT_SUBSCRIPTION"
	case errors.Is(err, ErrDeviceLimitExceeded):
		return "DEVICE_LIMIT_EXCEEDED"
	case errors.Is(err, ErrDeviceNotFound):
		return "DEVICE_NOT_FOUND"
	case errors.Is(err, ErrDeviceNotRegistered):
		return "DEVICE_NOT_REGISTERED"
	default:
		return "INTERNAL"
	}
}
