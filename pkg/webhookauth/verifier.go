package webhookauth

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"

	paddle "github.com/PaddleHQ/paddle-go-sdk/v4"

	"github.com/dmitrymomot/billingkit/pkg/eventstore"
)

// Verifier authenticates one provider's inbound webhooks. Verify returns nil
// only when the payload is proven to come from the provider; any other
// outcome, including misconfiguration, is ErrAuthenticationFailed.
type Verifier interface {
	Verify(ctx context.Context, rawBody []byte, signature string) error
}

// Config holds the per-provider webhook secrets loaded from the environment.
type Config struct {
	CardProcessorSecret   string `env:"CARD_WEBHOOK_SECRET,required"`     // card processor's notification secret (SDK-verified)
	DigitalResellerSecret string `env:"RESELLER_WEBHOOK_SECRET,required"` // shared HMAC secret for the digital reseller
	IAPAggregatorSecret   string `env:"IAP_WEBHOOK_SECRET,required"`      // shared header secret for the IAP aggregator
}

// Registry dispatches verification by provider tag.
type Registry struct {
	verifiers map[eventstore.Provider]Verifier
}

// NewRegistry builds the default registry with one verifier per supported
// provider. Returns an error when the card processor secret is missing since
// its SDK verifier cannot be constructed without one; the other verifiers fail
// closed at verification time instead.
func NewRegistry(cfg Config) (*Registry, error) {
	card, err := NewCardProcessorVerifier(cfg.CardProcessorSecret)
	if err != nil {
		return nil, err
	}
	return &Registry{
		verifiers: map[eventstore.Provider]Verifier{
			eventstore.ProviderCardProcessor:   card,
			eventstore.ProviderDigitalReseller: NewHMACVerifier(cfg.DigitalResellerSecret),
			eventstore.ProviderIAPAggregator:   NewSharedSecretVerifier(cfg.IAPAggregatorSecret),
		},
	}, nil
}

// Register overrides or adds a verifier for a provider. Used by tests and by
// hosts that need to swap a scheme.
func (r *Registry) Register(provider eventstore.Provider, v Verifier) {
	if r.verifiers == nil {
		r.verifiers = make(map[eventstore.Provider]Verifier)
	}
	r.verifiers[provider] = v
}

// Verify dispatches to the provider's verifier.
func (r *Registry) Verify(ctx context.Context, provider eventstore.Provider, rawBody []byte, signature string) error {
	v, ok := r.verifiers[provider]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownProvider, provider)
	}
	return v.Verify(ctx, rawBody, signature)
}

// CardProcessorVerifier delegates to the provider SDK's own signed-payload
// verification. The SDK binds the signature to both payload and timestamp;
// reimplementing that scheme here would only create drift.
type CardProcessorVerifier struct {
	verifier *paddle.WebhookVerifier
}

// NewCardProcessorVerifier builds the SDK-backed verifier. The secret is
// required up front: there is no fail-closed fallback inside the SDK.
func NewCardProcessorVerifier(secret string) (*CardProcessorVerifier, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}
	return &CardProcessorVerifier{verifier: paddle.NewWebhookVerifier(secret)}, nil
}

func (v *CardProcessorVerifier) Verify(ctx context.Context, rawBody []byte, signature string) error {
	// The SDK verifies http.Request objects, so wrap the raw body we already
	// read. The request never leaves this function.
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "/", bytes.NewReader(rawBody))
	if err != nil {
		return errors.Join(ErrAuthenticationFailed, err)
	}
	req.Header.Set("Paddle-Signature", signature)

	ok, err := v.verifier.Verify(req)
	if err != nil {
		return errors.Join(ErrAuthenticationFailed, err)
	}
	if !ok {
		return ErrAuthenticationFailed
	}
	return nil
}

// HMACVerifier checks an HMAC-SHA256 hex digest of the raw request body
// against the signature header. Used by the digital reseller.
type HMACVerifier struct {
	secret string
}

// NewHMACVerifier builds the HMAC verifier. An empty secret is accepted here
// and rejected on every Verify call so a misconfigured deployment rejects
// traffic instead of crashing at startup.
func NewHMACVerifier(secret string) *HMACVerifier {
	return &HMACVerifier{secret: secret}
}

func (v *HMACVerifier) Verify(ctx context.Context, rawBody []byte, signature string) error {
	if v.secret == "" {
		return errors.Join(ErrAuthenticationFailed, ErrMissingSecret)
	}
	if signature == "" {
		return ErrAuthenticationFailed
	}

	mac := hmac.New(sha256.New, []byte(v.secret))
	mac.Write(rawBody)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrAuthenticationFailed
	}
	return nil
}

// SharedSecretVerifier compares the signature header against a shared secret.
// The IAP aggregator does not sign payloads, so this is the strongest check
// available for it; the comparison is still constant time.
type SharedSecretVerifier struct {
	secret string
}

// NewSharedSecretVerifier builds the shared-secret verifier. As with the HMAC
// verifier, an empty secret fails closed at verification time.
func NewSharedSecretVerifier(secret string) *SharedSecretVerifier {
	return &SharedSecretVerifier{secret: secret}
}

func (v *SharedSecretVerifier) Verify(ctx context.Context, rawBody []byte, signature string) error {
	if v.secret == "" {
		return errors.Join(ErrAuthenticationFailed, ErrMissingSecret)
	}
	if subtle.ConstantTimeCompare([]byte(v.secret), []byte(signature)) != 1 {
		return ErrAuthenticationFailed
	}
	return nil
}
