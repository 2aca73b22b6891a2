package web

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/pravartak01/shlokayug-enrollment/internal/infra/metrics"
	"github.com/pravartak01/shlokayug-enrollment/internal/infra/payment"
)

const (
	webhookSignatureHeader = "X-Razorpay-Signature"
	webhookEventIDHeader   = "X-Razorpay-Event-Id"
	webhookDedupeTTL       = 24 * time.Hour
	webhookMaxBody         = 1 << 20
)

// webhookEvent mirrors the provider's event envelope; only the fields
// the engine reacts to are decoded.
type webhookEvent struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity struct {
				ID          string `json:"id"`
				OrderID     string `json:"order_id"`
				ErrorReason string `json:"error_reason"`
			} `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

// handleWebhook ingests gateway notifications. Checkout confirmation
// stays with the confirm endpoint; the webhook records provider-side
// failures so abandoned checkouts close without waiting for the
// reconciler sweep. Deliveries are deduped by event id.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, webhookMaxBody))
	if err != nil {
		writeBadRequest(w, "unreadable body")
		return
	}
	if !payment.VerifyWebhookSignature(s.webhookSecret, body, r.Header.Get(webhookSignatureHeader)) {
		metrics.IncWebhookEvent("invalid")
		s.log.Warn().Msg("webhook signature verification failed")
		writeUnauthorized(w, "invalid webhook signature")
		return
	}

	if eventID := r.Header.Get(webhookEventIDHeader); eventID != "" && s.cache != nil {
		fresh, err := s.cache.SetNX(r.Context(), "webhook:"+eventID, 1, webhookDedupeTTL)
		if err != nil {
			s.log.Error().Err(err).Msg("webhook dedupe check failed")
		} else if !fresh {
			metrics.IncWebhookEvent("duplicate")
			writeData(w, http.StatusOK, nil, "duplicate delivery ignored")
			return
		}
	}

	var ev webhookEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		metrics.IncWebhookEvent("invalid")
		writeBadRequest(w, "invalid event payload")
		return
	}

	entity := ev.Payload.Payment.Entity
	switch ev.Event {
	case "payment.failed":
		t, err := s.payUC.GetByOrderID(r.Context(), entity.OrderID)
		if err != nil {
			s.log.Warn().Err(err).Str("order_id", entity.OrderID).Msg("webhook for unknown order")
			break
		}
		reason := entity.ErrorReason
		if reason == "" {
			reason = "gateway reported failure"
		}
		if err := s.payUC.MarkFailed(r.Context(), t.ID, reason); err != nil {
			// Terminal already: the confirm flow or reconciler won the race.
			s.log.Info().Err(err).Str("transaction_id", t.ID).Msg("webhook failure already recorded")
		} else {
			metrics.IncPayment("failed")
		}
	case "payment.captured":
		s.log.Info().Str("order_id", entity.OrderID).Str("payment_id", entity.ID).Msg("capture notification received")
	default:
		s.log.Debug().Str("event", ev.Event).Msg("unhandled webhook event")
	}

	metrics.IncWebhookEvent("processed")
	writeData(w, http.StatusOK, nil, "event processed")
}
