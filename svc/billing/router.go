package billing

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/billingkit/pkg/eventstore"
	"github.com/dmitrymomot/billingkit/pkg/reconcile"
	"github.com/dmitrymomot/billingkit/pkg/webhookauth"
)

// Payloads larger than this are rejected before signature verification.
const maxWebhookBody = 1 << 20 // 1 MiB

// signatureHeaders maps each provider to the header its deliveries carry the
// signature in.
var signatureHeaders = map[eventstore.Provider]string{
	eventstore.ProviderCardProcessor:   "Paddle-Signature",
	eventstore.ProviderDigitalReseller: "X-Signature",
	eventstore.ProviderIAPAggregator:   "Authorization",
}

// Router returns the webhook ingestion endpoints, one per provider, for the
// host to mount under its own prefix.
func (s *Service) Router() http.Handler {
	r := chi.NewRouter()
	r.Post("/webhooks/{provider}", s.handleWebhook)
	return r
}

func (s *Service) handleWebhook(w http.ResponseWriter, r *http.Request) {
	provider := eventstore.Provider(chi.URLParam(r, "provider"))
	header, ok := signatureHeaders[provider]
	if !ok {
		http.Error(w, "unknown provider", http.StatusNotFound)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody+1))
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}
	if len(body) > maxWebhookBody {
		http.Error(w, "payload too large", http.StatusRequestEntityTooLarge)
		return
	}

	err = s.HandleWebhook(r.Context(), provider, body, r.Header.Get(header))
	switch {
	case err == nil:
		w.WriteHeader(http.StatusOK)
	case errors.Is(err, webhookauth.ErrAuthenticationFailed),
		errors.Is(err, webhookauth.ErrMissingSecret),
		errors.Is(err, webhookauth.ErrUnknownProvider):
		http.Error(w, "signature verification failed", http.StatusUnauthorized)
	case errors.Is(err, reconcile.ErrMalformedPayload):
		http.Error(w, "malformed payload", http.StatusBadRequest)
	default:
		// Storage failed before the event was durable: ask the provider to
		// redeliver.
		http.Error(w, "temporarily unavailable", http.StatusInternalServerError)
	}
}
