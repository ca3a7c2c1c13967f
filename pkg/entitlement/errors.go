package entitlement

import "errors"

var (
	ErrInvalidBillingMode = errors.New("invalid billing mode")
	ErrLicenseNotFound    = errors.New("license not found")
	ErrCacheUnavailable   = errors.New("premium cache unavailable")
)
