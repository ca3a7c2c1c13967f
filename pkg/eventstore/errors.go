package eventstore

import "errors"

var (
	ErrEventNotFound    = errors.New("webhook event not found")
	ErrDuplicateEvent   = errors.New("webhook event already stored")
	ErrAlreadyProcessed = errors.New("webhook event already processed")
	ErrInvalidProvider  = errors.New("invalid payment provider")
)
