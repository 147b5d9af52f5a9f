package notifications

import "errors"

var (
	// ErrStoreUnavailable wraps any read/write failure against a preference, notification or rule store.
	ErrStoreUnavailable = errors.New("notification store unavailable")

	// ErrPersistFailed is returned when an admitted notification could not be stored.
	// Delivery never proceeds after this error.
	ErrPersistFailed = errors.New("failed to persist notification")

	// ErrChannelNotConfigured is returned by senders that have no provider behind them.
	ErrChannelNotConfigured = errors.New("delivery channel not configured")

	// ErrNoDestination is returned when a user has no address for the requested channel.
	ErrNoDestination = errors.New("no destination for channel")

	// ErrDigestSendFailed is returned when the digest email could not be sent.
	ErrDigestSendFailed = errors.New("failed to send digest")

	// ErrInvalidPolicy is returned by Policy.Validate.
	ErrInvalidPolicy = errors.New("invalid notification policy")

	// ErrInvalidCandidate is returned for candidates missing required fields.
	ErrInvalidCandidate = errors.New("invalid notification candidate")

	// ErrNotificationNotFound is returned when a notification is not found.
	ErrNotificationNotFound = errors.New("notification not found")
)
