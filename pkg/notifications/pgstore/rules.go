package pgstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/dmitrymomot/schoolnotify/pkg/notifications"
)

func (s *Store) ActiveRulesFor(ctx context.Context, schoolID, eventType string) ([]notifications.Rule, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id::text, school_id, event_type, notification_type, conditions,
			title_template, message_template, channels, active, priority
		FROM notification_rules
		WHERE school_id = $1 AND event_type = $2 AND active = TRUE
		ORDER BY priority DESC, created_at ASC
	`, schoolID, eventType)
	if err != nil {
		return nil, fmt.Errorf("list active rules: %w", err)
	}
	defer rows.Close()

	var out []notifications.Rule
	for rows.Next() {
		var (
			r          notifications.Rule
			conditions []byte
			channels   []string
		)
		if err := rows.Scan(&r.ID, &r.SchoolID, &r.EventType, &r.NotificationType, &conditions,
			&r.TitleTemplate, &r.MessageTemplate, &channels, &r.Active, &r.Priority); err != nil {
			return nil, fmt.Errorf("list active rules: %w", err)
		}
		tree, err := decodeConditions(conditions)
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", r.ID, err)
		}
		r.Conditions = tree
		if len(channels) > 0 {
			r.Channels = toChannels(channels)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// SaveRule creates or replaces a rule and returns its ID.
func (s *Store) SaveRule(ctx context.Context, r notifications.Rule) (string, error) {
	if _, err := uuid.Parse(r.ID); err != nil {
		r.ID = uuid.NewString()
	}
	conditions, err := json.Marshal(r.Conditions.Document())
	if err != nil {
		return "", fmt.Errorf("save rule: %w", err)
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO notification_rules (id, school_id, event_type, notification_type, conditions,
			title_template, message_template, channels, active, priority, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			school_id = EXCLUDED.school_id,
			event_type = EXCLUDED.event_type,
			notification_type = EXCLUDED.notification_type,
			conditions = EXCLUDED.conditions,
			title_template = EXCLUDED.title_template,
			message_template = EXCLUDED.message_template,
			channels = EXCLUDED.channels,
			active = EXCLUDED.active,
			priority = EXCLUDED.priority
	`, r.ID, r.SchoolID, r.EventType, r.NotificationType, conditions,
		r.TitleTemplate, r.MessageTemplate, channelStrings(r.Channels), r.Active, r.Priority, s.now())
	if err != nil {
		return "", fmt.Errorf("save rule: %w", err)
	}
	return r.ID, nil
}

func decodeConditions(data []byte) (notifications.ConditionTree, error) {
	if len(data) == 0 || string(data) == "null" {
		return notifications.ConditionTree{}, nil
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode conditions: %w", err)
	}
	return notifications.ParseConditions(raw), nil
}
