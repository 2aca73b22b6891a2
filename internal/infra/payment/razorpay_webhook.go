package payment

// VerifyWebhookSignature checks the X-Razorpay-Signature header: an
// HMAC-SHA256 of the raw request body keyed with the webhook secret.
func VerifyWebhookSignature(secret string, body []byte, signature string) bool {
	return verifyHMAC(secret, string(body), signature)
}
