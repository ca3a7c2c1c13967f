// Package webhookauth authenticates inbound payment webhooks before anything
// is persisted.
//
// Each provider uses a different scheme, so the package exposes a small
// Verifier capability and a Registry that dispatches on the provider tag:
//
//   - card processor: delegated to the provider SDK's own signed-payload
//     verification (payload- and timestamp-bound)
//   - digital reseller: HMAC-SHA256 over the raw request body with a shared
//     secret, compared in constant time
//   - IAP aggregator: constant-time shared-secret equality against a header
//     value; the aggregator offers no payload binding, which is a documented
//     weakness of the scheme, not of this implementation
//
// Verification failure is a hard boundary: callers must reject the request
// and must not write the payload to the event store. A missing secret makes a
// verifier fail closed rather than pass silently.
package webhookauth
