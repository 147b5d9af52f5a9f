package notifications

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dmitrymomot/schoolnotify/pkg/email"
	"github.com/dmitrymomot/schoolnotify/pkg/logger"
)

// DigestGroup is one notification type's section of a digest, newest first.
type DigestGroup struct {
	Type  string
	Items []Notification
}

// DigestBatch is the grouped content of a single digest. It is never persisted.
type DigestBatch []DigestGroup

// Len returns the number of notifications across all groups.
func (b DigestBatch) Len() int {
	n := 0
	for _, g := range b {
		n += len(g.Items)
	}
	return n
}

// IDs returns every notification ID in the batch.
func (b DigestBatch) IDs() []string {
	ids := make([]string, 0, b.Len())
	for _, g := range b {
		for _, n := range g.Items {
			ids = append(ids, n.ID)
		}
	}
	return ids
}

// BuildDigest keeps unread LOW and INFO notifications created at or after since
// and groups them by type. Groups appear in order of their newest item.
func BuildDigest(items []Notification, since time.Time) DigestBatch {
	kept := make([]Notification, 0, len(items))
	for _, n := range items {
		if n.Read || !n.Priority.Digestible() || n.CreatedAt.Before(since) {
			continue
		}
		kept = append(kept, n)
	}
	sortNewestFirst(kept)

	var batch DigestBatch
	index := make(map[string]int)
	for _, n := range kept {
		i, ok := index[n.Type]
		if !ok {
			i = len(batch)
			index[n.Type] = i
			batch = append(batch, DigestGroup{Type: n.Type})
		}
		batch[i].Items = append(batch[i].Items, n)
	}
	return batch
}

// DigestResult reports the outcome of one digest run.
type DigestResult struct {
	Sent  bool `json:"sent"`
	Count int  `json:"count"`
}

// DigestBatcher sends periodic summaries of low-priority notifications.
type DigestBatcher struct {
	store    NotificationStore
	contacts ContactDirectory
	prefs    PreferenceStore
	mailer   email.EmailSender
	now      func() time.Time
	logger   *slog.Logger
}

// DigestBatcherOption configures a DigestBatcher.
type DigestBatcherOption func(*DigestBatcher)

// WithDigestLogger sets the logger for the DigestBatcher.
func WithDigestLogger(logger *slog.Logger) DigestBatcherOption {
	return func(b *DigestBatcher) {
		b.logger = logger
	}
}

// WithDigestPreferences lets the batcher show timestamps in each user's timezone.
// Without it digests use UTC.
func WithDigestPreferences(prefs PreferenceStore) DigestBatcherOption {
	return func(b *DigestBatcher) {
		b.prefs = prefs
	}
}

// WithDigestClock overrides the time source.
func WithDigestClock(now func() time.Time) DigestBatcherOption {
	return func(b *DigestBatcher) {
		if now != nil {
			b.now = now
		}
	}
}

// NewDigestBatcher creates a digest batcher.
func NewDigestBatcher(store NotificationStore, contacts ContactDirectory, mailer email.EmailSender, opts ...DigestBatcherOption) *DigestBatcher {
	b := &DigestBatcher{
		store:    store,
		contacts: contacts,
		mailer:   mailer,
		now:      time.Now,
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		opt(b)
	}

	return b
}

// BuildAndSendDigest emails the user's unread low-priority notifications from the
// last day or week and marks them read. Nothing is marked read unless the email
// was accepted; an empty window sends nothing.
func (b *DigestBatcher) BuildAndSendDigest(ctx context.Context, userID string, freq Frequency) (DigestResult, error) {
	window, err := freq.Window()
	if err != nil {
		return DigestResult{}, err
	}
	since := b.now().Add(-window)

	items, err := b.store.FindUnreadLowPriority(ctx, userID, since)
	if err != nil {
		return DigestResult{}, errors.Join(ErrStoreUnavailable, err)
	}

	batch := BuildDigest(items, since)
	count := batch.Len()
	if count == 0 {
		return DigestResult{}, nil
	}

	contact, err := b.contacts.Contact(ctx, userID)
	if err != nil {
		return DigestResult{Count: count}, errors.Join(ErrStoreUnavailable, err)
	}
	if contact.Email == "" {
		return DigestResult{Count: count}, fmt.Errorf("%w: %w", ErrDigestSendFailed, ErrNoDestination)
	}

	params, err := digestEmailParams(ctx, contact.Email, freq, batch, b.location(ctx, userID))
	if err != nil {
		return DigestResult{Count: count}, errors.Join(ErrDigestSendFailed, err)
	}
	if err := b.mailer.SendEmail(ctx, params); err != nil {
		b.logger.LogAttrs(ctx, slog.LevelWarn, "Digest email failed",
			logger.UserID(userID),
			logger.Count(count),
			logger.Error(err),
		)
		return DigestResult{Count: count}, errors.Join(ErrDigestSendFailed, err)
	}

	if err := b.store.MarkRead(ctx, userID, batch.IDs()...); err != nil {
		b.logger.LogAttrs(ctx, slog.LevelWarn, "Digest sent but notifications were not marked read",
			logger.UserID(userID),
			logger.Count(count),
			logger.Error(err),
		)
		return DigestResult{Sent: true, Count: count}, errors.Join(ErrStoreUnavailable, err)
	}

	b.logger.LogAttrs(ctx, slog.LevelInfo, "Digest sent",
		logger.UserID(userID),
		slog.String("frequency", string(freq)),
		logger.Count(count),
	)
	return DigestResult{Sent: true, Count: count}, nil
}

// location resolves the user's timezone. Lookup failures fall back to UTC.
func (b *DigestBatcher) location(ctx context.Context, userID string) *time.Location {
	if b.prefs == nil {
		return time.UTC
	}
	p, err := b.prefs.GetPreferences(ctx, userID)
	if err != nil {
		b.logger.LogAttrs(ctx, slog.LevelWarn, "Digest preferences unavailable, using UTC",
			logger.UserID(userID),
			logger.Error(err),
		)
		return time.UTC
	}
	if p == nil {
		return time.UTC
	}
	return p.Location(time.UTC)
}
