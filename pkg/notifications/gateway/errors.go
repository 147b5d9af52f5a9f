package gateway

import "errors"

var (
	ErrInvalidConfiguration = errors.New("invalid gateway configuration")
	ErrDeliveryFailed       = errors.New("gateway delivery failed")
	ErrPermanentFailure     = errors.New("gateway rejected message")
	ErrCircuitOpen          = errors.New("gateway circuit breaker is open")
	ErrInvalidSignature     = errors.New("invalid gateway signature")
)
