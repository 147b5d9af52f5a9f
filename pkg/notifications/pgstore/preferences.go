package pgstore

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/dmitrymomot/schoolnotify/pkg/notifications"
	"github.com/dmitrymomot/schoolnotify/pkg/pg"
)

const preferenceColumns = `user_id, email_enabled, push_enabled, sms_enabled, in_app_enabled,
	quiet_hours_start, quiet_hours_end, enabled_types,
	digest_enabled, digest_frequency, digest_time, timezone`

func (s *Store) GetPreferences(ctx context.Context, userID string) (*notifications.Preferences, error) {
	row := s.db.QueryRow(ctx, `SELECT `+preferenceColumns+` FROM notification_preferences WHERE user_id = $1`, userID)
	p, err := scanPreferences(row)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get preferences: %w", err)
	}
	return &p, nil
}

func (s *Store) DigestSubscribers(ctx context.Context) ([]notifications.Preferences, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+preferenceColumns+` FROM notification_preferences
		WHERE digest_enabled = TRUE
		ORDER BY user_id
	`)
	if err != nil {
		return nil, fmt.Errorf("list digest subscribers: %w", err)
	}
	defer rows.Close()

	var out []notifications.Preferences
	for rows.Next() {
		p, err := scanPreferences(rows)
		if err != nil {
			return nil, fmt.Errorf("list digest subscribers: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// SavePreferences creates or replaces a user's preference record.
func (s *Store) SavePreferences(ctx context.Context, p notifications.Preferences) error {
	types := p.EnabledTypes
	if types == nil {
		types = []string{}
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO notification_preferences (`+preferenceColumns+`, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (user_id) DO UPDATE SET
			email_enabled = EXCLUDED.email_enabled,
			push_enabled = EXCLUDED.push_enabled,
			sms_enabled = EXCLUDED.sms_enabled,
			in_app_enabled = EXCLUDED.in_app_enabled,
			quiet_hours_start = EXCLUDED.quiet_hours_start,
			quiet_hours_end = EXCLUDED.quiet_hours_end,
			enabled_types = EXCLUDED.enabled_types,
			digest_enabled = EXCLUDED.digest_enabled,
			digest_frequency = EXCLUDED.digest_frequency,
			digest_time = EXCLUDED.digest_time,
			timezone = EXCLUDED.timezone,
			updated_at = EXCLUDED.updated_at
	`, p.UserID, p.Email, p.Push, p.SMS, p.InApp,
		int16(p.QuietHoursStart), int16(p.QuietHoursEnd), types,
		p.Digest.Enabled, string(p.Digest.Frequency), p.Digest.Time, p.Timezone, s.now())
	if err != nil {
		return fmt.Errorf("save preferences: %w", err)
	}
	return nil
}

func scanPreferences(row pgx.Row) (notifications.Preferences, error) {
	var (
		p          notifications.Preferences
		start, end int16
		frequency  string
	)
	if err := row.Scan(&p.UserID, &p.Email, &p.Push, &p.SMS, &p.InApp,
		&start, &end, &p.EnabledTypes,
		&p.Digest.Enabled, &frequency, &p.Digest.Time, &p.Timezone); err != nil {
		return notifications.Preferences{}, err
	}
	p.QuietHoursStart = int(start)
	p.QuietHoursEnd = int(end)
	p.Digest.Frequency = notifications.Frequency(frequency)
	return p, nil
}

func (s *Store) Contact(ctx context.Context, userID string) (notifications.Contact, error) {
	var c notifications.Contact
	err := s.db.QueryRow(ctx, `
		SELECT email, phone, push_token FROM user_contacts WHERE user_id = $1
	`, userID).Scan(&c.Email, &c.Phone, &c.PushToken)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return notifications.Contact{}, nil
		}
		return notifications.Contact{}, fmt.Errorf("get contact: %w", err)
	}
	return c, nil
}

// SaveContact creates or replaces a user's channel destinations.
func (s *Store) SaveContact(ctx context.Context, userID string, c notifications.Contact) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO user_contacts (user_id, email, phone, push_token, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id) DO UPDATE SET
			email = EXCLUDED.email,
			phone = EXCLUDED.phone,
			push_token = EXCLUDED.push_token,
			updated_at = EXCLUDED.updated_at
	`, userID, c.Email, c.Phone, c.PushToken, s.now())
	if err != nil {
		return fmt.Errorf("save contact: %w", err)
	}
	return nil
}
