package eventstore

import (
	"time"

	"github.com/google/uuid"
)

// Provider identifies one of the supported payment providers. Each has its own
// signature scheme and event vocabulary; everything downstream of
// normalization is provider-agnostic.
type Provider string

const (
	// ProviderCardProcessor is the card-processor-style provider (web checkout).
	ProviderCardProcessor Provider = "card_processor"
	// ProviderIAPAggregator is the mobile in-app-purchase aggregator.
	ProviderIAPAggregator Provider = "iap_aggregator"
	// ProviderDigitalReseller is the digital-goods reseller.
	ProviderDigitalReseller Provider = "digital_reseller"
)

// Valid reports whether the provider is one of the known values.
func (p Provider) Valid() bool {
	switch p {
	case ProviderCardProcessor, ProviderIAPAggregator, ProviderDigitalReseller:
		return true
	}
	return false
}

// Status is the processing state of a stored event.
type Status string

const (
	// StatusUnprocessed marks a stored event awaiting its first processing attempt.
	StatusUnprocessed Status = "unprocessed"
	// StatusProcessed is terminal; the event's effect has been applied (or superseded).
	StatusProcessed Status = "processed"
	// StatusFailed marks an event whose last processing attempt failed.
	StatusFailed Status = "failed"
	// StatusRetrying marks an event claimed by a retry sweep. The claim keeps a
	// concurrent provider redelivery and the sweep from applying the same stored
	// event twice. A claim left behind by a crashed sweep becomes eligible again
	// once it is older than the sweep's staleness bound.
	StatusRetrying Status = "retrying"
)

// Event is the immutable record of one inbound webhook notification. The raw
// payload is stored verbatim so failed events can be replayed through the
// normalizer without re-delivery from the provider.
type Event struct {
	ID                uuid.UUID
	Provider          Provider
	EventType         string // provider-native type, e.g. "INITIAL_PURCHASE"
	ProviderEventID   string // provider-native event id; empty when the provider supplies none
	ExternalSubjectID string // provider's user/customer identifier, extracted at ingest
	RawPayload        []byte
	Status            Status
	FailureReason     string
	Retryable         bool // false for failures needing operator attention
	Attempts          int
	ReceivedAt        time.Time
	ProcessedAt       *time.Time
	ClaimedAt         *time.Time // set when a retry sweep claims the event
}
