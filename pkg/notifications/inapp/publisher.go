// Package inapp pushes stored notifications to connected clients.
// Publisher sends them over Redis pub/sub, where websocket or SSE gateways
// subscribe to Channel(userID). Hub does the same within one process.
package inapp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/schoolnotify/pkg/notifications"
	rediskeys "github.com/dmitrymomot/schoolnotify/pkg/redis"
)

// Client is the part of the go-redis API the publisher uses.
type Client interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

// Message is the payload published for each notification.
type Message struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	Priority  notifications.Priority `json:"priority"`
	Title     string                 `json:"title"`
	Message   string                 `json:"message"`
	Metadata  notifications.Metadata `json:"metadata,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

// Publisher implements notifications.InAppPublisher.
type Publisher struct {
	client Client
	prefix string
}

// New creates a publisher. Channels are namespaced by prefix.
func New(client Client, prefix string) *Publisher {
	return &Publisher{client: client, prefix: prefix}
}

var _ notifications.InAppPublisher = (*Publisher)(nil)

// Channel returns the pub/sub channel for userID.
func (p *Publisher) Channel(userID string) string {
	return rediskeys.Key(p.prefix, "notifications", userID)
}

func (p *Publisher) Publish(ctx context.Context, notif notifications.Notification) error {
	payload, err := json.Marshal(newMessage(notif))
	if err != nil {
		return fmt.Errorf("encode in-app message: %w", err)
	}
	if err := p.client.Publish(ctx, p.Channel(notif.UserID), payload).Err(); err != nil {
		return fmt.Errorf("publish in-app message: %w", err)
	}
	return nil
}

func newMessage(notif notifications.Notification) Message {
	return Message{
		ID:        notif.ID,
		Type:      notif.Type,
		Priority:  notif.Priority,
		Title:     notif.Title,
		Message:   notif.Message,
		Metadata:  notif.Metadata,
		CreatedAt: notif.CreatedAt,
	}
}
