package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"starling-server/src/logger"
	"starling-server/src/middleware"
	"starling-server/src/providers/plaid"
)

const maxWebhookBody = 1 << 20

type WebhookVerifier interface {
	Verify(ctx context.Context, body []byte, header http.Header) error
}

type webhookPayload struct {
	WebhookType string `json:"webhook_type"`
	WebhookCode string `json:"webhook_code"`
	ItemID      string `json:"item_id"`
}

// PlaidWebhook verifies a Plaid webhook and calls refresh for transaction
// updates. refresh must not block.
func PlaidWebhook(v WebhookVerifier, refresh func(ctx context.Context)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logger.FromContext(r.Context())

		body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "failed to read body")
			return
		}
		if err := v.Verify(r.Context(), body, r.Header); err != nil {
			if errors.Is(err, plaid.ErrInvalidWebhook) {
				log.Warn().Err(err).Msg("Rejected Plaid webhook")
				middleware.WriteError(w, http.StatusUnauthorized, "invalid webhook")
				return
			}
			log.Error().Err(err).Msg("Failed to verify Plaid webhook")
			middleware.WriteError(w, http.StatusBadGateway, "webhook verification unavailable")
			return
		}

		var payload webhookPayload
		if err := json.Unmarshal(body, &payload); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "invalid request")
			return
		}
		log.Info().Str("type", payload.WebhookType).Str("code", payload.WebhookCode).Str("item_id", payload.ItemID).
			Msg("Plaid webhook received")

		if payload.WebhookType != "TRANSACTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		refresh(r.Context())
		w.WriteHeader(http.StatusAccepted)
	}
}
