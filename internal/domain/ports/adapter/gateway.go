package adapter

import "context"

// PaymentGateway is the hex port for the external payment provider.
// Order creation is the only network call a core operation makes; the
// adapter owns its own timeout and the receipt doubles as the
// idempotency key for retries.
type PaymentGateway interface {
	Name() string

	// CreateOrder registers a payment intent with the provider and
	// returns the provider order id.
	CreateOrder(ctx context.Context, amount int64, currency, receipt string, notes map[string]string) (orderID string, err error)

	// VerifySignature checks the provider's HMAC proof for a completed
	// payment. Pure computation; implementations must compare in
	// constant time.
	VerifySignature(orderID, paymentID, signature string) bool
}
