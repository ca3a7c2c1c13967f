package entitlement

import "fmt"

// BillingMode is the deployment-wide billing configuration. It can override
// per-user entitlement entirely: disabled and freemium deployments grant
// premium to everyone regardless of subscription or license state.
type BillingMode string

const (
	// ModeDisabled turns billing off; every user is premium.
	ModeDisabled BillingMode = "disabled"
	// ModeFreemium keeps billing machinery running but grants premium to everyone.
	ModeFreemium BillingMode = "freemium"
	// ModeLicenseKey gates premium on manually issued licenses.
	ModeLicenseKey BillingMode = "license_key"
	// ModeSubscription gates premium on provider-managed subscriptions.
	ModeSubscription BillingMode = "subscription"
)

// GrantsUnconditionally reports whether the mode grants premium to every user
// without consulting subscription or license state.
func (m BillingMode) GrantsUnconditionally() bool {
	return m == ModeDisabled || m == ModeFreemium
}

// Valid reports whether the mode is one of the known values.
func (m BillingMode) Valid() bool {
	switch m {
	case ModeDisabled, ModeFreemium, ModeLicenseKey, ModeSubscription:
		return true
	}
	return false
}

// UnmarshalText lets BillingMode be parsed directly from env configuration
// via caarlos0/env.
func (m *BillingMode) UnmarshalText(text []byte) error {
	mode := BillingMode(text)
	if !mode.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidBillingMode, text)
	}
	*m = mode
	return nil
}

// Config holds the billing-mode configuration loaded from the environment.
type Config struct {
	Mode BillingMode `env:"BILLING_MODE" envDefault:"subscription"` // Mode is the deployment-wide billing mode: disabled, freemium, license_key or subscription.
}
