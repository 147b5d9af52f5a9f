package notifications

import (
	"context"
	"time"
)

// PreferenceStore reads user preferences.
type PreferenceStore interface {
	// GetPreferences returns nil, nil when the user has no stored record.
	GetPreferences(ctx context.Context, userID string) (*Preferences, error)
}

// NotificationStore is the append-only notification log the frequency and
// dedup checks query against.
type NotificationStore interface {
	// CountToday counts the user's notifications of the given priority created at or after dayStart.
	CountToday(ctx context.Context, userID string, priority Priority, dayStart time.Time) (int, error)

	// FindRecent returns the most recent notification of notifType created at or after since,
	// or nil, nil when there is none.
	FindRecent(ctx context.Context, userID, notifType string, since time.Time) (*Notification, error)

	// Insert stores a new notification and returns its ID.
	Insert(ctx context.Context, notif Notification) (string, error)

	// FindUnreadLowPriority returns unread LOW and INFO notifications created at or after since.
	FindUnreadLowPriority(ctx context.Context, userID string, since time.Time) ([]Notification, error)

	// MarkRead marks notification(s) as read.
	MarkRead(ctx context.Context, userID string, ids ...string) error
}

// RuleStore reads tenant rules.
type RuleStore interface {
	// ActiveRulesFor returns active rules for a school and event type, highest Priority first.
	ActiveRulesFor(ctx context.Context, schoolID, eventType string) ([]Rule, error)
}

// ContactDirectory resolves channel destinations for a user.
type ContactDirectory interface {
	Contact(ctx context.Context, userID string) (Contact, error)
}

// DigestSubscriberLister lists stored preference records with digests enabled.
type DigestSubscriberLister interface {
	DigestSubscribers(ctx context.Context) ([]Preferences, error)
}

// Locker serialises admission decisions per user.
type Locker interface {
	// Lock blocks until the user's lock is held or ctx is done.
	Lock(ctx context.Context, userID string) (unlock func(), err error)
}
