package web

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/pravartak01/shlokayug-enrollment/internal/domain"
)

// envelope is the uniform response shape. Errors carry stable codes so
// clients branch on code, never on message text.
type envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
	Errors  []apiError  `json:"errors,omitempty"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

func writeData(w http.ResponseWriter, status int, data interface{}, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Success: true, Data: data, Message: message})
}

// statusFor maps stable error codes to HTTP statuses. State conflicts
// are 409s: the request was well-formed, the aggregate just is not in a
// state that allows it.
func statusFor(code string) int {
	switch code {
	case "NOT_FOUND", "DEVICE_NOT_FOUND":
		return http.StatusNotFound
	case "VALIDATION_FAILED", "INVALID_AMOUNT", "INVALID_REFUND_AMOUNT", "INVALID_BILLING_CYCLE",
		"UNSUPPORTED_ENROLLMENT_TYPE", "COURSE_CLOSED":
		return http.StatusUnprocessableEntity
	case "INVALID_STATE", "ALREADY_ENROLLED", "ALREADY_DISTRIBUTED", "ALREADY_CANCELLED",
		"RENEWAL_NOT_NEEDED", "NOT_SUBSCRIPTION", "NOT_SUCCESSFUL", "DEVICE_LIMIT_EXCEEDED",
		"DEVICE_NOT_REGISTERED", "CONCURRENT_ATTEMPT":
		return http.StatusConflict
	case "PAYMENT_VERIFICATION_FAILED", "SIGNATURE_MISMATCH":
		return http.StatusBadRequest
	case "NOT_ACTIVE", "ACCESS_EXPIRED":
		return http.StatusForbidden
	case "GATEWAY_UNAVAILABLE":
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeDomainError translates a use-case error into the envelope.
// Internal errors get a generic message; everything else passes the
// sentinel's text through.
func writeDomainError(w http.ResponseWriter, log *zerolog.Logger, err error) {
	code := domain.Code(err)
	status := statusFor(code)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Msg("request failed")
		msg = "internal error"
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Success: false, Errors: []apiError{{Code: code, Message: msg}}})
}

func writeBadRequest(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	_ = json.NewEncoder(w).Encode(envelope{Success: false, Errors: []apiError{{Code: "BAD_REQUEST", Message: message}}})
}

// writeFieldErrors reports request-shape problems with field detail.
func writeFieldErrors(w http.ResponseWriter, errs []apiError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnprocessableEntity)
	_ = json.NewEncoder(w).Encode(envelope{Success: false, Errors: errs})
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(envelope{Success: false, Errors: []apiError{{Code: "UNAUTHORIZED", Message: message}}})
}

func writeForbidden(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusForbidden)
	_ = json.NewEncoder(w).Encode(envelope{Success: false, Errors: []apiError{{Code: "FORBIDDEN", Message: message}}})
}
