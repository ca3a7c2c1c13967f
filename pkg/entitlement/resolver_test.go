package entitlement_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/billingkit/pkg/entitlement"
)

func ptr(t time.Time) *time.Time { return &t }

func TestResolve_BillingModeOverride(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	expired := []entitlement.SubscriptionGrant{{Active: false, PeriodEnd: ptr(now.Add(-time.Hour))}}

	// Disabled and freemium grant premium regardless of grant state.
	for _, mode := range []entitlement.BillingMode{entitlement.ModeDisabled, entitlement.ModeFreemium} {
		t.Run(string(mode), func(t *testing.T) {
			t.Parallel()
			ent := entitlement.Resolve(mode, expired, nil, now)
			assert.True(t, ent.IsPremium)
			assert.Equal(t, entitlement.PremiumLimits, ent.Limits)

			ent = entitlement.Resolve(mode, nil, nil, now)
			assert.True(t, ent.IsPremium)
		})
	}
}

func TestResolve_SubscriptionGrants(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()

	tests := []struct {
		name string
		subs []entitlement.SubscriptionGrant
		want bool
	}{
		{"no grants", nil, false},
		{"active without period end", []entitlement.SubscriptionGrant{{Active: true}}, true},
		{"active with future period end", []entitlement.SubscriptionGrant{{Active: true, PeriodEnd: ptr(now.Add(time.Second))}}, true},
		{"active expiring exactly now", []entitlement.SubscriptionGrant{{Active: true, PeriodEnd: ptr(now)}}, true},
		{"active with past period end", []entitlement.SubscriptionGrant{{Active: true, PeriodEnd: ptr(now.Add(-time.Second))}}, false},
		{"inactive with future period end", []entitlement.SubscriptionGrant{{Active: false, PeriodEnd: ptr(now.Add(time.Hour))}}, false},
		{"one stale one live", []entitlement.SubscriptionGrant{
			{Active: true, PeriodEnd: ptr(now.Add(-time.Hour))},
			{Active: true, PeriodEnd: ptr(now.Add(time.Hour))},
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ent := entitlement.Resolve(entitlement.ModeSubscription, tt.subs, nil, now)
			assert.Equal(t, tt.want, ent.IsPremium)
			assert.Equal(t, entitlement.LimitsFor(tt.want), ent.Limits)
		})
	}
}

func TestResolve_LicenseGrants(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()

	tests := []struct {
		name     string
		licenses []entitlement.LicenseGrant
		want     bool
	}{
		{"perpetual license", []entitlement.LicenseGrant{{}}, true},
		{"future expiry", []entitlement.LicenseGrant{{ValidUntil: ptr(now.Add(time.Second))}}, true},
		{"expiry exactly now", []entitlement.LicenseGrant{{ValidUntil: ptr(now)}}, true},
		{"past expiry", []entitlement.LicenseGrant{{ValidUntil: ptr(now.Add(-time.Second))}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ent := entitlement.Resolve(entitlement.ModeLicenseKey, nil, tt.licenses, now)
			assert.Equal(t, tt.want, ent.IsPremium)
		})
	}
}

func TestBillingMode_UnmarshalText(t *testing.T) {
	t.Parallel()

	var mode entitlement.BillingMode
	require.NoError(t, mode.UnmarshalText([]byte("freemium")))
	assert.Equal(t, entitlement.ModeFreemium, mode)

	err := mode.UnmarshalText([]byte("pay_what_you_want"))
	require.Error(t, err)
	assert.ErrorIs(t, err, entitlement.ErrInvalidBillingMode)
}

func TestLicense_ValidAt(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()

	perpetual := entitlement.License{}
	assert.True(t, perpetual.ValidAt(now))

	expiring := entitlement.License{ValidUntil: ptr(now)}
	assert.True(t, expiring.ValidAt(now))
	assert.False(t, expiring.ValidAt(now.Add(time.Second)))
}
