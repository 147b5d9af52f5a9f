// Package gateway delivers SMS and push messages through an HTTP gateway.
//
// notifyd does not talk to carriers or push services directly. Each channel is
// pointed at a gateway URL that accepts a signed JSON POST:
//
//	{"channel":"SMS","to":"+15550100","message":"Your child was marked absent"}
//
// Requests carry X-Gateway-Signature, X-Gateway-Timestamp and X-Gateway-ID
// headers when a secret is configured. The signature is
// hex(HMAC-SHA256(secret, timestamp + "." + body)); gateways check it with Verify.
//
// Temporary failures (network errors, 5xx, 408, 425, 429) are retried with a
// fixed interval. Consecutive failures open a circuit breaker, after which
// sends fail fast with ErrCircuitOpen until the recovery timeout passes.
package gateway
