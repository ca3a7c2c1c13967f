package reconcile_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/billingkit/pkg/eventstore"
	"github.com/dmitrymomot/billingkit/pkg/reconcile"
)

func storedEvent(provider eventstore.Provider, payload string) *eventstore.Event {
	return &eventstore.Event{Provider: provider, RawPayload: []byte(payload)}
}

func TestNormalizer_IAPAggregator(t *testing.T) {
	t.Parallel()

	n := reconcile.NewNormalizer()

	t.Run("initial purchase on ios", func(t *testing.T) {
		t.Parallel()

		ev, err := n.Normalize(storedEvent(eventstore.ProviderIAPAggregator, `{
			"event": {
				"id": "evt-1",
				"type": "INITIAL_PURCHASE",
				"app_user_id": "$RCAnonymousID:abc123",
				"original_transaction_id": "txn_900",
				"event_timestamp_ms": 1735689600000,
				"expiration_at_ms": 1738368000000,
				"store": "APP_STORE"
			}
		}`))
		require.NoError(t, err)

		assert.Equal(t, reconcile.KindPurchase, ev.Kind)
		assert.Equal(t, "txn_900", ev.ProviderSubscriptionID)
		assert.Equal(t, "$RCAnonymousID:abc123", ev.SubjectID)
		assert.True(t, ev.AnonymousSubject)
		assert.Equal(t, reconcile.PlatformIOS, ev.Platform)
		assert.Equal(t, time.UnixMilli(1735689600000).UTC(), ev.OccurredAt)
		require.NotNil(t, ev.PeriodEnd)
		assert.Equal(t, time.UnixMilli(1738368000000).UTC(), *ev.PeriodEnd)
	})

	t.Run("play store maps to android", func(t *testing.T) {
		t.Parallel()

		ev, err := n.Normalize(storedEvent(eventstore.ProviderIAPAggregator, `{
			"event": {
				"type": "RENEWAL",
				"app_user_id": "user-1",
				"original_transaction_id": "txn_901",
				"event_timestamp_ms": 1735689600000,
				"store": "PLAY_STORE"
			}
		}`))
		require.NoError(t, err)

		assert.Equal(t, reconcile.KindRenewal, ev.Kind)
		assert.Equal(t, reconcile.PlatformAndroid, ev.Platform)
		assert.False(t, ev.AnonymousSubject)
		assert.Nil(t, ev.PeriodEnd, "no expiration means the aggregator owns expiry")
	})

	t.Run("unknown event type", func(t *testing.T) {
		t.Parallel()

		_, err := n.Normalize(storedEvent(eventstore.ProviderIAPAggregator, `{
			"event": {
				"type": "TRANSFER",
				"app_user_id": "user-1",
				"original_transaction_id": "txn_901",
				"event_timestamp_ms": 1735689600000
			}
		}`))
		assert.ErrorIs(t, err, reconcile.ErrUnknownEventType)
	})

	t.Run("missing transaction id", func(t *testing.T) {
		t.Parallel()

		_, err := n.Normalize(storedEvent(eventstore.ProviderIAPAggregator, `{
			"event": {"type": "RENEWAL", "app_user_id": "user-1"}
		}`))
		assert.ErrorIs(t, err, reconcile.ErrMalformedPayload)
	})
}

func TestNormalizer_CardProcessor(t *testing.T) {
	t.Parallel()

	n := reconcile.NewNormalizer()

	t.Run("subscription created", func(t *testing.T) {
		t.Parallel()

		ev, err := n.Normalize(storedEvent(eventstore.ProviderCardProcessor, `{
			"event_id": "evt_01",
			"event_type": "subscription.created",
			"occurred_at": "2025-01-01T00:00:00Z",
			"data": {
				"id": "sub_001",
				"status": "active",
				"custom_data": {"user_id": "8d7f9c4a-2f3b-4e6d-9a1c-5b8e7f6d4c3a"},
				"current_billing_period": {"ends_at": "2025-02-01T00:00:00Z"}
			}
		}`))
		require.NoError(t, err)

		assert.Equal(t, reconcile.KindPurchase, ev.Kind)
		assert.Equal(t, "sub_001", ev.ProviderSubscriptionID)
		assert.Equal(t, "8d7f9c4a-2f3b-4e6d-9a1c-5b8e7f6d4c3a", ev.SubjectID)
		assert.Equal(t, reconcile.PlatformWeb, ev.Platform)
		require.NotNil(t, ev.PeriodEnd)
		assert.Equal(t, time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC), *ev.PeriodEnd)
	})

	t.Run("transaction references subscription indirectly", func(t *testing.T) {
		t.Parallel()

		ev, err := n.Normalize(storedEvent(eventstore.ProviderCardProcessor, `{
			"event_type": "transaction.completed",
			"occurred_at": "2025-01-15T12:00:00Z",
			"data": {"id": "txn_500", "subscription_id": "sub_001"}
		}`))
		require.NoError(t, err)

		assert.Equal(t, reconcile.KindRenewal, ev.Kind)
		assert.Equal(t, "sub_001", ev.ProviderSubscriptionID)
	})

	t.Run("past due maps to billing issue", func(t *testing.T) {
		t.Parallel()

		ev, err := n.Normalize(storedEvent(eventstore.ProviderCardProcessor, `{
			"event_type": "subscription.past_due",
			"occurred_at": "2025-01-15T12:00:00Z",
			"data": {"id": "sub_001"}
		}`))
		require.NoError(t, err)
		assert.Equal(t, reconcile.KindBillingIssue, ev.Kind)
	})

	t.Run("bad timestamp", func(t *testing.T) {
		t.Parallel()

		_, err := n.Normalize(storedEvent(eventstore.ProviderCardProcessor, `{
			"event_type": "subscription.created",
			"occurred_at": "yesterday",
			"data": {"id": "sub_001"}
		}`))
		assert.ErrorIs(t, err, reconcile.ErrMalformedPayload)
	})
}

func TestNormalizer_DigitalReseller(t *testing.T) {
	t.Parallel()

	n := reconcile.NewNormalizer()

	t.Run("subscription cancelled", func(t *testing.T) {
		t.Parallel()

		ev, err := n.Normalize(storedEvent(eventstore.ProviderDigitalReseller, `{
			"event": "subscription_cancelled",
			"notification_id": "ntf-42",
			"subscription_id": "rsl-77",
			"buyer_id": "3c9e6f2d-8a4b-4c1e-b7d5-1f2a3b4c5d6e",
			"occurred_at": "2025-03-01T09:30:00Z"
		}`))
		require.NoError(t, err)

		assert.Equal(t, reconcile.KindCancellation, ev.Kind)
		assert.Equal(t, "rsl-77", ev.ProviderSubscriptionID)
		assert.Nil(t, ev.PeriodEnd)
	})

	t.Run("missing subscription id", func(t *testing.T) {
		t.Parallel()

		_, err := n.Normalize(storedEvent(eventstore.ProviderDigitalReseller, `{
			"event": "sale",
			"occurred_at": "2025-03-01T09:30:00Z"
		}`))
		assert.ErrorIs(t, err, reconcile.ErrMalformedPayload)
	})
}

func TestExtractMeta(t *testing.T) {
	t.Parallel()

	t.Run("card processor", func(t *testing.T) {
		t.Parallel()

		meta, err := reconcile.ExtractMeta(eventstore.ProviderCardProcessor, []byte(`{
			"event_id": "evt_01",
			"event_type": "subscription.created",
			"data": {"id": "sub_001", "custom_data": {"user_id": "u-1"}}
		}`))
		require.NoError(t, err)
		assert.Equal(t, "subscription.created", meta.EventType)
		assert.Equal(t, "evt_01", meta.ProviderEventID)
		assert.Equal(t, "u-1", meta.SubjectID)
	})

	t.Run("iap aggregator", func(t *testing.T) {
		t.Parallel()

		meta, err := reconcile.ExtractMeta(eventstore.ProviderIAPAggregator, []byte(`{
			"event": {"id": "evt-1", "type": "RENEWAL", "app_user_id": "user-1"}
		}`))
		require.NoError(t, err)
		assert.Equal(t, "RENEWAL", meta.EventType)
		assert.Equal(t, "evt-1", meta.ProviderEventID)
	})

	t.Run("not json", func(t *testing.T) {
		t.Parallel()

		_, err := reconcile.ExtractMeta(eventstore.ProviderDigitalReseller, []byte("<xml/>"))
		assert.ErrorIs(t, err, reconcile.ErrMalformedPayload)
	})

	t.Run("missing required field", func(t *testing.T) {
		t.Parallel()

		_, err := reconcile.ExtractMeta(eventstore.ProviderCardProcessor, []byte(`{"event_type": "subscription.created", "data": {}}`))
		assert.ErrorIs(t, err, reconcile.ErrMalformedPayload)
	})

	t.Run("unknown provider", func(t *testing.T) {
		t.Parallel()

		_, err := reconcile.ExtractMeta(eventstore.Provider("smoke_signals"), []byte(`{}`))
		assert.ErrorIs(t, err, eventstore.ErrInvalidProvider)
	})
}
