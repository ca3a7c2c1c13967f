package webhookauth

import "errors"

var (
	ErrAuthenticationFailed = errors.New("webhook signature verification failed")
	ErrMissingSecret        = errors.New("webhook secret is not configured")
	ErrUnknownProvider      = errors.New("no verifier registered for provider")
)
