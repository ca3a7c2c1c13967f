package eventstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/billingkit/pkg/eventstore"
)

func newEvent(provider eventstore.Provider, providerEventID string) *eventstore.Event {
	return &eventstore.Event{
		Provider:          provider,
		EventType:         "INITIAL_PURCHASE",
		ProviderEventID:   providerEventID,
		ExternalSubjectID: "user-123",
		RawPayload:        []byte(`{"type":"INITIAL_PURCHASE"}`),
	}
}

func TestMemoryStore_AppendAndGet(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := eventstore.NewMemoryStore()

	id, err := store.Append(ctx, newEvent(eventstore.ProviderIAPAggregator, "evt-1"))
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, id)

	event, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, eventstore.StatusUnprocessed, event.Status)
	assert.Equal(t, "INITIAL_PURCHASE", event.EventType)
	assert.False(t, event.ReceivedAt.IsZero())
	assert.Zero(t, event.Attempts)
}

func TestMemoryStore_AppendRejectsInvalidProvider(t *testing.T) {
	t.Parallel()

	store := eventstore.NewMemoryStore()
	_, err := store.Append(context.Background(), newEvent("paypal", "evt-1"))
	assert.ErrorIs(t, err, eventstore.ErrInvalidProvider)
}

func TestMemoryStore_AppendDeduplicatesProviderEventID(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := eventstore.NewMemoryStore()

	first, err := store.Append(ctx, newEvent(eventstore.ProviderCardProcessor, "evt-dup"))
	require.NoError(t, err)

	second, err := store.Append(ctx, newEvent(eventstore.ProviderCardProcessor, "evt-dup"))
	assert.ErrorIs(t, err, eventstore.ErrDuplicateEvent)
	assert.Equal(t, first, second, "duplicate append must return the stored id")

	// Same provider-native id from a different provider is a distinct event.
	_, err = store.Append(ctx, newEvent(eventstore.ProviderDigitalReseller, "evt-dup"))
	require.NoError(t, err)

	// Events without a provider-native id are never deduplicated.
	a, err := store.Append(ctx, newEvent(eventstore.ProviderIAPAggregator, ""))
	require.NoError(t, err)
	b, err := store.Append(ctx, newEvent(eventstore.ProviderIAPAggregator, ""))
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestMemoryStore_ProcessedIsImmutable(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := eventstore.NewMemoryStore()

	id, err := store.Append(ctx, newEvent(eventstore.ProviderIAPAggregator, "evt-1"))
	require.NoError(t, err)
	require.NoError(t, store.MarkProcessed(ctx, id))

	assert.ErrorIs(t, store.MarkProcessed(ctx, id), eventstore.ErrAlreadyProcessed)
	assert.ErrorIs(t, store.MarkFailed(ctx, id, "late failure", true), eventstore.ErrAlreadyProcessed)

	event, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, eventstore.StatusProcessed, event.Status)
	require.NotNil(t, event.ProcessedAt)
}

func TestMemoryStore_MarkFailedIncrementsAttempts(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := eventstore.NewMemoryStore()

	id, err := store.Append(ctx, newEvent(eventstore.ProviderDigitalReseller, "evt-1"))
	require.NoError(t, err)

	require.NoError(t, store.MarkFailed(ctx, id, "db unavailable", true))
	require.NoError(t, store.MarkFailed(ctx, id, "db unavailable", true))

	event, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, eventstore.StatusFailed, event.Status)
	assert.Equal(t, 2, event.Attempts)
	assert.Equal(t, "db unavailable", event.FailureReason)
	assert.True(t, event.Retryable)
}

func TestMemoryStore_ClaimRetryable(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := eventstore.NewMemoryStore()

	unprocessed, err := store.Append(ctx, newEvent(eventstore.ProviderIAPAggregator, "evt-1"))
	require.NoError(t, err)

	failed, err := store.Append(ctx, newEvent(eventstore.ProviderIAPAggregator, "evt-2"))
	require.NoError(t, err)
	require.NoError(t, store.MarkFailed(ctx, failed, "transient", true))

	permanent, err := store.Append(ctx, newEvent(eventstore.ProviderIAPAggregator, "evt-3"))
	require.NoError(t, err)
	require.NoError(t, store.MarkFailed(ctx, permanent, "unknown event type", false))

	exhausted, err := store.Append(ctx, newEvent(eventstore.ProviderIAPAggregator, "evt-4"))
	require.NoError(t, err)
	for range 5 {
		require.NoError(t, store.MarkFailed(ctx, exhausted, "transient", true))
	}

	claimed, err := store.ClaimRetryable(ctx, 10, 5, time.Minute)
	require.NoError(t, err)

	ids := make([]uuid.UUID, 0, len(claimed))
	for _, e := range claimed {
		ids = append(ids, e.ID)
		assert.Equal(t, eventstore.StatusRetrying, e.Status)
		require.NotNil(t, e.ClaimedAt)
	}
	assert.ElementsMatch(t, []uuid.UUID{unprocessed, failed}, ids)

	// A second sweep sees nothing: claimed events are invisible to it.
	again, err := store.ClaimRetryable(ctx, 10, 5, time.Minute)
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestMemoryStore_ClaimRetryableReclaimsStaleClaims(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := eventstore.NewMemoryStore()

	id, err := store.Append(ctx, newEvent(eventstore.ProviderIAPAggregator, "evt-1"))
	require.NoError(t, err)

	// First sweep claims the event and then dies without marking it.
	claimed, err := store.ClaimRetryable(ctx, 10, 5, time.Minute)
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	// While the claim is fresh the event stays invisible.
	again, err := store.ClaimRetryable(ctx, 10, 5, time.Minute)
	require.NoError(t, err)
	assert.Empty(t, again)

	// Once the claim passes the staleness bound the next sweep picks it up.
	reclaimed, err := store.ClaimRetryable(ctx, 10, 5, 0)
	require.NoError(t, err)
	require.Len(t, reclaimed, 1)
	assert.Equal(t, id, reclaimed[0].ID)
	assert.Equal(t, eventstore.StatusRetrying, reclaimed[0].Status)
}
