package billing_test

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/billingkit/pkg/entitlement"
)

func postWebhook(t *testing.T, handler http.Handler, provider string, body []byte, header, signature string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/"+provider, bytes.NewReader(body))
	if header != "" {
		req.Header.Set(header, signature)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestRouter_Webhooks(t *testing.T) {
	t.Parallel()

	t.Run("valid reseller delivery", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, entitlement.ModeSubscription)
		now := time.Now().UTC().Truncate(time.Second)
		body := resellerSale("ntf-1", uuid.New(), now, now.Add(30*24*time.Hour))

		rec := postWebhook(t, f.service.Router(), "digital_reseller", body, "X-Signature", hmacSign(body))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("bad signature", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, entitlement.ModeSubscription)
		body := resellerSale("ntf-1", uuid.New(), time.Now().UTC(), time.Now().UTC().Add(time.Hour))

		rec := postWebhook(t, f.service.Router(), "digital_reseller", body, "X-Signature", "forged")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("missing signature header", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, entitlement.ModeSubscription)
		body := resellerSale("ntf-1", uuid.New(), time.Now().UTC(), time.Now().UTC().Add(time.Hour))

		rec := postWebhook(t, f.service.Router(), "digital_reseller", body, "", "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("malformed payload", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, entitlement.ModeSubscription)
		body := []byte(`{"event": "sale"}`)

		rec := postWebhook(t, f.service.Router(), "digital_reseller", body, "X-Signature", hmacSign(body))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown provider", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, entitlement.ModeSubscription)
		rec := postWebhook(t, f.service.Router(), "carrier_pigeon", []byte(`{}`), "X-Signature", "sig")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("iap aggregator authorization header", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, entitlement.ModeSubscription)
		now := time.Now().UTC().Truncate(time.Second)
		body := []byte(`{
			"event": {
				"id": "evt-1",
				"type": "RENEWAL",
				"app_user_id": "` + uuid.New().String() + `",
				"original_transaction_id": "txn_900",
				"event_timestamp_ms": ` + timestampMs(now) + `,
				"store": "APP_STORE"
			}
		}`)

		rec := postWebhook(t, f.service.Router(), "iap_aggregator", body, "Authorization", testIAPSecret)
		assert.Equal(t, http.StatusOK, rec.Code)

		rec = postWebhook(t, f.service.Router(), "iap_aggregator", body, "Authorization", "wrong")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("oversized payload", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, entitlement.ModeSubscription)
		body := bytes.Repeat([]byte("a"), 1<<20+1)

		rec := postWebhook(t, f.service.Router(), "digital_reseller", body, "X-Signature", hmacSign(body))
		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	})

	t.Run("redelivery still returns 200", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, entitlement.ModeSubscription)
		now := time.Now().UTC().Truncate(time.Second)
		body := resellerSale("ntf-1", uuid.New(), now, now.Add(30*24*time.Hour))

		router := f.service.Router()
		require.Equal(t, http.StatusOK, postWebhook(t, router, "digital_reseller", body, "X-Signature", hmacSign(body)).Code)
		assert.Equal(t, http.StatusOK, postWebhook(t, router, "digital_reseller", body, "X-Signature", hmacSign(body)).Code)
	})
}

func timestampMs(t time.Time) string {
	return fmt.Sprintf("%d", t.UnixMilli())
}
