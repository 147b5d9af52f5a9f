package pgstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dmitrymomot/schoolnotify/pkg/notifications"
	"github.com/dmitrymomot/schoolnotify/pkg/pg"
)

// DB is the subset of *pgxpool.Pool the store needs. pgx.Tx satisfies it too.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store is the PostgreSQL backed notification storage.
type Store struct {
	db  DB
	now func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for created_at and read_at.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates a store on top of db.
func New(db DB, opts ...Option) *Store {
	s := &Store{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var (
	_ notifications.NotificationStore      = (*Store)(nil)
	_ notifications.PreferenceStore        = (*Store)(nil)
	_ notifications.RuleStore              = (*Store)(nil)
	_ notifications.ContactDirectory       = (*Store)(nil)
	_ notifications.DigestSubscriberLister = (*Store)(nil)
	_ notifications.NotificationReader     = (*Store)(nil)
)

const notificationColumns = `id::text, user_id, school_id, type, title, message, priority, metadata, channels, read, read_at, created_at`

func (s *Store) Insert(ctx context.Context, notif notifications.Notification) (string, error) {
	if notif.UserID == "" {
		return "", fmt.Errorf("insert notification: %w", notifications.ErrInvalidCandidate)
	}
	if _, err := uuid.Parse(notif.ID); err != nil {
		notif.ID = uuid.NewString()
	}
	if notif.CreatedAt.IsZero() {
		notif.CreatedAt = s.now()
	}
	md, err := encodeMetadata(notif.Metadata)
	if err != nil {
		return "", fmt.Errorf("insert notification: %w", err)
	}

	var id string
	err = s.db.QueryRow(ctx, `
		INSERT INTO notifications (id, user_id, school_id, type, title, message, priority, metadata, channels, read, read_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id::text
	`, notif.ID, notif.UserID, notif.SchoolID, notif.Type, notif.Title, notif.Message,
		int16(notif.Priority), md, channelStrings(notif.Channels), notif.Read, notif.ReadAt, notif.CreatedAt,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("insert notification: %w", err)
	}
	return id, nil
}

func (s *Store) CountToday(ctx context.Context, userID string, priority notifications.Priority, dayStart time.Time) (int, error) {
	var count int
	err := s.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM notifications
		WHERE user_id = $1 AND priority = $2 AND created_at >= $3
	`, userID, int16(priority), dayStart).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count notifications: %w", err)
	}
	return count, nil
}

func (s *Store) FindRecent(ctx context.Context, userID, notifType string, since time.Time) (*notifications.Notification, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+notificationColumns+` FROM notifications
		WHERE user_id = $1 AND type = $2 AND created_at >= $3
		ORDER BY created_at DESC
		LIMIT 1
	`, userID, notifType, since)

	n, err := scanNotification(row)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("find recent notification: %w", err)
	}
	return &n, nil
}

func (s *Store) FindUnreadLowPriority(ctx context.Context, userID string, since time.Time) ([]notifications.Notification, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+notificationColumns+` FROM notifications
		WHERE user_id = $1 AND read = FALSE AND priority IN ($2, $3) AND created_at >= $4
		ORDER BY created_at DESC
	`, userID, int16(notifications.PriorityLow), int16(notifications.PriorityInfo), since)
	if err != nil {
		return nil, fmt.Errorf("find unread notifications: %w", err)
	}
	return collectNotifications(rows)
}

func (s *Store) MarkRead(ctx context.Context, userID string, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.db.Exec(ctx, `
		UPDATE notifications SET read = TRUE, read_at = $3
		WHERE user_id = $1 AND id::text = ANY($2) AND read = FALSE
	`, userID, ids, s.now())
	if err != nil {
		return fmt.Errorf("mark notifications read: %w", err)
	}
	return nil
}

func (s *Store) List(ctx context.Context, userID string, opts notifications.ListOptions) ([]notifications.Notification, error) {
	query, args := listQuery(userID, opts)
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return collectNotifications(rows)
}

func (s *Store) CountUnread(ctx context.Context, userID string) (int, error) {
	var count int
	err := s.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND read = FALSE
	`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return count, nil
}

// listQuery builds the feed query. Filters are appended in a fixed order so the
// placeholder numbering is predictable.
func listQuery(userID string, opts notifications.ListOptions) (string, []any) {
	var b strings.Builder
	args := []any{userID}
	b.WriteString("SELECT " + notificationColumns + " FROM notifications WHERE user_id = $1")

	if opts.OnlyUnread {
		b.WriteString(" AND read = FALSE")
	}
	if len(opts.Types) > 0 {
		args = append(args, opts.Types)
		fmt.Fprintf(&b, " AND type = ANY($%d)", len(args))
	}
	if opts.Since != nil {
		args = append(args, *opts.Since)
		fmt.Fprintf(&b, " AND created_at >= $%d", len(args))
	}
	b.WriteString(" ORDER BY created_at DESC")
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		fmt.Fprintf(&b, " LIMIT $%d", len(args))
	}
	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		fmt.Fprintf(&b, " OFFSET $%d", len(args))
	}
	return b.String(), args
}

func scanNotification(row pgx.Row) (notifications.Notification, error) {
	var (
		n        notifications.Notification
		priority int16
		md       []byte
		channels []string
	)
	if err := row.Scan(&n.ID, &n.UserID, &n.SchoolID, &n.Type, &n.Title, &n.Message,
		&priority, &md, &channels, &n.Read, &n.ReadAt, &n.CreatedAt); err != nil {
		return notifications.Notification{}, err
	}

	meta, err := decodeMetadata(md)
	if err != nil {
		return notifications.Notification{}, err
	}
	n.Priority = notifications.Priority(priority)
	n.Metadata = meta
	n.Channels = toChannels(channels)
	return n, nil
}

func collectNotifications(rows pgx.Rows) ([]notifications.Notification, error) {
	defer rows.Close()

	out := []notifications.Notification{}
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func encodeMetadata(md notifications.Metadata) ([]byte, error) {
	if len(md) == 0 {
		return []byte("{}"), nil
	}
	return json.Marshal(md)
}

func decodeMetadata(data []byte) (notifications.Metadata, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	var md notifications.Metadata
	if err := json.Unmarshal(data, &md); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	if len(md) == 0 {
		return nil, nil
	}
	return md, nil
}

func channelStrings(cs notifications.Channels) []string {
	if cs == nil {
		return []string{}
	}
	return cs.Strings()
}

func toChannels(ss []string) notifications.Channels {
	cs := make([]notifications.Channel, len(ss))
	for i, s := range ss {
		cs[i] = notifications.Channel(s)
	}
	return notifications.NewChannels(cs...)
}
