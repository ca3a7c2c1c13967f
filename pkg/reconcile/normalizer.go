package reconcile

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrymomot/billingkit/pkg/eventstore"
)

// anonymousSubjectPrefix marks purchaser identities the IAP aggregator issues
// before the purchaser has authenticated with the host application.
const anonymousSubjectPrefix = "$RCAnonymousID:"

// Meta is the minimal information extracted from a raw payload at ingest time,
// before the event is stored. Extraction doubles as schema validation: a
// payload that fails here is rejected with a 400 and never persisted.
type Meta struct {
	EventType       string
	ProviderEventID string
	SubjectID       string
}

// Normalizer translates stored webhook events into canonical events via
// per-provider mapping functions. The zero value is not usable; construct with
// NewNormalizer.
type Normalizer struct {
	mappers map[eventstore.Provider]func(*eventstore.Event) (*Event, error)
}

// NewNormalizer builds the default normalizer covering all three providers.
func NewNormalizer() *Normalizer {
	return &Normalizer{
		mappers: map[eventstore.Provider]func(*eventstore.Event) (*Event, error){
			eventstore.ProviderIAPAggregator:   normalizeIAP,
			eventstore.ProviderCardProcessor:   normalizeCard,
			eventstore.ProviderDigitalReseller: normalizeReseller,
		},
	}
}

// Normalize maps a stored event to its canonical form. ErrUnknownEventType
// means the provider is recognized but the event type has no mapping; callers
// mark the stored event failed without auto-retry.
func (n *Normalizer) Normalize(stored *eventstore.Event) (*Event, error) {
	mapper, ok := n.mappers[stored.Provider]
	if !ok {
		return nil, fmt.Errorf("%w: %s", eventstore.ErrInvalidProvider, stored.Provider)
	}
	return mapper(stored)
}

// ExtractMeta parses just enough of a raw payload to store the event: the
// provider-native event type, the provider's event id for transport-level
// dedup, and the purchaser identity. Runs before persistence, so errors here
// are validation failures the HTTP layer turns into a 400.
func ExtractMeta(provider eventstore.Provider, rawBody []byte) (Meta, error) {
	switch provider {
	case eventstore.ProviderIAPAggregator:
		var p iapPayload
		if err := json.Unmarshal(rawBody, &p); err != nil {
			return Meta{}, errors.Join(ErrMalformedPayload, err)
		}
		if p.Event.Type == "" || p.Event.AppUserID == "" {
			return Meta{}, fmt.Errorf("%w: missing event type or app_user_id", ErrMalformedPayload)
		}
		return Meta{EventType: p.Event.Type, ProviderEventID: p.Event.ID, SubjectID: p.Event.AppUserID}, nil

	case eventstore.ProviderCardProcessor:
		var p cardPayload
		if err := json.Unmarshal(rawBody, &p); err != nil {
			return Meta{}, errors.Join(ErrMalformedPayload, err)
		}
		if p.EventType == "" || p.Data.ID == "" {
			return Meta{}, fmt.Errorf("%w: missing event type or data id", ErrMalformedPayload)
		}
		return Meta{EventType: p.EventType, ProviderEventID: p.EventID, SubjectID: p.Data.CustomData.UserID}, nil

	case eventstore.ProviderDigitalReseller:
		var p resellerPayload
		if err := json.Unmarshal(rawBody, &p); err != nil {
			return Meta{}, errors.Join(ErrMalformedPayload, err)
		}
		if p.Event == "" || p.SubscriptionID == "" {
			return Meta{}, fmt.Errorf("%w: missing event or subscription_id", ErrMalformedPayload)
		}
		return Meta{EventType: p.Event, ProviderEventID: p.NotificationID, SubjectID: p.BuyerID}, nil
	}

	return Meta{}, fmt.Errorf("%w: %s", eventstore.ErrInvalidProvider, provider)
}

// --- IAP aggregator -------------------------------------------------------

// iapPayload mirrors the aggregator's webhook envelope. Timestamps arrive as
// millisecond epochs; expiry is aggregator-owned, so a zero expiration means
// the subscription outlives what this payload can tell us.
type iapPayload struct {
	Event struct {
		ID                    string `json:"id"`
		Type                  string `json:"type"`
		AppUserID             string `json:"app_user_id"`
		OriginalTransactionID string `json:"original_transaction_id"`
		EventTimestampMs      int64  `json:"event_timestamp_ms"`
		ExpirationAtMs        int64  `json:"expiration_at_ms"`
		Store                 string `json:"store"`
	} `json:"event"`
}

var iapKinds = map[string]Kind{
	"INITIAL_PURCHASE": KindPurchase,
	"RENEWAL":          KindRenewal,
	"PRODUCT_CHANGE":   KindPlanChange,
	"CANCELLATION":     KindCancellation,
	"EXPIRATION":       KindExpiration,
	"BILLING_ISSUE":    KindBillingIssue,
}

func normalizeIAP(stored *eventstore.Event) (*Event, error) {
	var p iapPayload
	if err := json.Unmarshal(stored.RawPayload, &p); err != nil {
		return nil, errors.Join(ErrMalformedPayload, err)
	}

	kind, ok := iapKinds[p.Event.Type]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEventType, p.Event.Type)
	}
	if p.Event.OriginalTransactionID == "" || p.Event.AppUserID == "" {
		return nil, fmt.Errorf("%w: missing transaction or subject id", ErrMalformedPayload)
	}

	platform := PlatformIOS
	if p.Event.Store == "PLAY_STORE" {
		platform = PlatformAndroid
	}

	ev := &Event{
		Kind:                   kind,
		Provider:               stored.Provider,
		ProviderSubscriptionID: p.Event.OriginalTransactionID,
		SubjectID:              p.Event.AppUserID,
		OccurredAt:             time.UnixMilli(p.Event.EventTimestampMs).UTC(),
		Platform:               platform,
		AnonymousSubject:       strings.HasPrefix(p.Event.AppUserID, anonymousSubjectPrefix),
	}
	if p.Event.ExpirationAtMs > 0 {
		end := time.UnixMilli(p.Event.ExpirationAtMs).UTC()
		ev.PeriodEnd = &end
	}
	return ev, nil
}

// --- Card processor -------------------------------------------------------

type cardPayload struct {
	EventID    string `json:"event_id"`
	EventType  string `json:"event_type"`
	OccurredAt string `json:"occurred_at"`
	Data       struct {
		ID             string `json:"id"`
		SubscriptionID string `json:"subscription_id"` // set on transaction events
		Status         string `json:"status"`
		CustomData     struct {
			UserID string `json:"user_id"`
		} `json:"custom_data"`
		CurrentBillingPeriod struct {
			EndsAt string `json:"ends_at"`
		} `json:"current_billing_period"`
	} `json:"data"`
}

var cardKinds = map[string]Kind{
	"subscription.created":   KindPurchase,
	"subscription.activated": KindPurchase,
	"subscription.updated":   KindPlanChange,
	"transaction.completed":  KindRenewal,
	"subscription.canceled":  KindCancellation,
	"subscription.past_due":  KindBillingIssue,
}

func normalizeCard(stored *eventstore.Event) (*Event, error) {
	var p cardPayload
	if err := json.Unmarshal(stored.RawPayload, &p); err != nil {
		return nil, errors.Join(ErrMalformedPayload, err)
	}

	kind, ok := cardKinds[p.EventType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEventType, p.EventType)
	}

	occurredAt, err := time.Parse(time.RFC3339, p.OccurredAt)
	if err != nil {
		return nil, fmt.Errorf("%w: occurred_at: %v", ErrMalformedPayload, err)
	}

	// Transaction events reference the subscription indirectly.
	subID := p.Data.ID
	if p.Data.SubscriptionID != "" {
		subID = p.Data.SubscriptionID
	}
	if subID == "" {
		return nil, fmt.Errorf("%w: missing subscription id", ErrMalformedPayload)
	}

	ev := &Event{
		Kind:                   kind,
		Provider:               stored.Provider,
		ProviderSubscriptionID: subID,
		SubjectID:              p.Data.CustomData.UserID,
		OccurredAt:             occurredAt.UTC(),
		Platform:               PlatformWeb,
	}
	if p.Data.CurrentBillingPeriod.EndsAt != "" {
		end, err := time.Parse(time.RFC3339, p.Data.CurrentBillingPeriod.EndsAt)
		if err != nil {
			return nil, fmt.Errorf("%w: current_billing_period.ends_at: %v", ErrMalformedPayload, err)
		}
		endUTC := end.UTC()
		ev.PeriodEnd = &endUTC
	}
	return ev, nil
}

// --- Digital reseller -----------------------------------------------------

type resellerPayload struct {
	Event          string `json:"event"`
	NotificationID string `json:"notification_id"`
	SubscriptionID string `json:"subscription_id"`
	BuyerID        string `json:"buyer_id"`
	OccurredAt     string `json:"occurred_at"`
	PeriodEnd      string `json:"period_end"`
}

var resellerKinds = map[string]Kind{
	"sale":                   KindPurchase,
	"subscription_payment":   KindRenewal,
	"subscription_updated":   KindPlanChange,
	"subscription_cancelled": KindCancellation,
	"subscription_ended":     KindExpiration,
	"payment_failed":         KindBillingIssue,
}

func normalizeReseller(stored *eventstore.Event) (*Event, error) {
	var p resellerPayload
	if err := json.Unmarshal(stored.RawPayload, &p); err != nil {
		return nil, errors.Join(ErrMalformedPayload, err)
	}

	kind, ok := resellerKinds[p.Event]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEventType, p.Event)
	}
	if p.SubscriptionID == "" {
		return nil, fmt.Errorf("%w: missing subscription_id", ErrMalformedPayload)
	}

	occurredAt, err := time.Parse(time.RFC3339, p.OccurredAt)
	if err != nil {
		return nil, fmt.Errorf("%w: occurred_at: %v", ErrMalformedPayload, err)
	}

	ev := &Event{
		Kind:                   kind,
		Provider:               stored.Provider,
		ProviderSubscriptionID: p.SubscriptionID,
		SubjectID:              p.BuyerID,
		OccurredAt:             occurredAt.UTC(),
		Platform:               PlatformWeb,
	}
	if p.PeriodEnd != "" {
		end, err := time.Parse(time.RFC3339, p.PeriodEnd)
		if err != nil {
			return nil, fmt.Errorf("%w: period_end: %v", ErrMalformedPayload, err)
		}
		endUTC := end.UTC()
		ev.PeriodEnd = &endUTC
	}
	return ev, nil
}
