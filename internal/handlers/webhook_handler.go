package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"leadgenBack/internal/billing"
)

const maxWebhookBody = 64 << 10

// EventProcessor verifies and applies one vendor event.
type EventProcessor interface {
	Process(ctx context.Context, payload []byte, signature string) (billing.Outcome, error)
}

type WebhookHandler struct {
	Processor EventProcessor
	Logger    ErrorLogger
}

// Stripe answers 400 only for unreadable or unsigned payloads. Once the signature is
// valid the vendor always gets 200, even when processing failed.
func (h *WebhookHandler) Stripe(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "payload too large or unreadable")
		return
	}
	out, err := h.Processor.Process(r.Context(), payload, r.Header.Get("Stripe-Signature"))
	if errors.Is(err, billing.ErrInvalidSignature) {
		writeError(w, http.StatusBadRequest, "invalid signature")
		return
	}
	if err != nil {
		if h.Logger != nil {
			h.Logger.Errorf("webhooks: stripe: %v", err)
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "failed"})
		return
	}
	if out.Duplicate {
		writeJSON(w, http.StatusOK, map[string]string{"status": "duplicate"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": out.Status, "event_id": out.EventID})
}
