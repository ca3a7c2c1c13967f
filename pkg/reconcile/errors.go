package reconcile

import "errors"

var (
	ErrUnknownEventType    = errors.New("unknown provider event type")
	ErrMalformedPayload    = errors.New("malformed webhook payload")
	ErrInvalidSubject      = errors.New("subject id is not a valid user id")
	ErrSubscriptionExists  = errors.New("subscription already exists")
	ErrSubscriptionMissing = errors.New("subscription not found")
)
