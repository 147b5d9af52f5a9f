package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dmitrymomot/schoolnotify/pkg/logger"
	"github.com/dmitrymomot/schoolnotify/pkg/notifications"
)

// Routing keys bound to the consumer queue.
const (
	EventKeyPattern = "event.#"
	EventKeyPrefix  = "event."
	SendKey         = "notification.send"
)

// Handler is implemented by notifications.Service.
type Handler interface {
	Send(ctx context.Context, c notifications.Candidate) (notifications.Outcome, error)
	HandleEvent(ctx context.Context, event notifications.Event) ([]notifications.Outcome, error)
}

// Action is what the consumer does with a delivery after routing it.
type Action uint8

const (
	// Ack removes the message from the queue.
	Ack Action = iota
	// Requeue returns the message to the queue for another attempt.
	Requeue
	// Reject drops the message, dead-lettering it when the queue has a DLX.
	Reject
)

func (a Action) String() string {
	switch a {
	case Ack:
		return "ack"
	case Requeue:
		return "requeue"
	default:
		return "reject"
	}
}

// Router decodes message bodies and dispatches them to a Handler.
type Router struct {
	handler Handler
	logger  *slog.Logger
}

// NewRouter creates a router.
func NewRouter(handler Handler, log *slog.Logger) *Router {
	if log == nil {
		log = slog.Default()
	}
	return &Router{handler: handler, logger: log}
}

// Route handles one message body. Undecodable and invalid payloads are
// rejected; transient failures are requeued unless part of the work was
// already admitted, in which case a retry would duplicate it.
func (r *Router) Route(ctx context.Context, routingKey string, body []byte) Action {
	switch {
	case routingKey == SendKey:
		return r.routeSend(ctx, body)
	case strings.HasPrefix(routingKey, EventKeyPrefix):
		return r.routeEvent(ctx, routingKey, body)
	default:
		r.logger.LogAttrs(ctx, slog.LevelWarn, "Dropping message with unknown routing key",
			slog.String("routing_key", routingKey),
		)
		return Reject
	}
}

func (r *Router) routeSend(ctx context.Context, body []byte) Action {
	var c notifications.Candidate
	if err := decode(body, &c); err != nil {
		r.logger.LogAttrs(ctx, slog.LevelWarn, "Rejecting undecodable candidate", logger.Error(err))
		return Reject
	}

	out, err := r.handler.Send(ctx, c)
	if err != nil {
		if errors.Is(err, notifications.ErrInvalidCandidate) {
			r.logger.LogAttrs(ctx, slog.LevelWarn, "Rejecting invalid candidate",
				logger.UserID(c.UserID),
				logger.Error(err),
			)
			return Reject
		}
		r.logger.LogAttrs(ctx, slog.LevelError, "Candidate send failed, requeueing",
			logger.UserID(c.UserID),
			logger.NotificationType(c.Type),
			logger.Error(err),
		)
		return Requeue
	}

	r.logger.LogAttrs(ctx, slog.LevelDebug, "Candidate processed",
		logger.UserID(c.UserID),
		logger.NotificationType(c.Type),
		slog.Bool("admitted", out.Admitted),
		slog.String("reason", string(out.Reason)),
	)
	return Ack
}

func (r *Router) routeEvent(ctx context.Context, routingKey string, body []byte) Action {
	var event notifications.Event
	if err := decode(body, &event); err != nil {
		r.logger.LogAttrs(ctx, slog.LevelWarn, "Rejecting undecodable event",
			slog.String("routing_key", routingKey),
			logger.Error(err),
		)
		return Reject
	}
	if event.EventType == "" {
		event.EventType = strings.TrimPrefix(routingKey, EventKeyPrefix)
	}
	if event.SchoolID == "" {
		r.logger.LogAttrs(ctx, slog.LevelWarn, "Rejecting event without school id",
			logger.EventType(event.EventType),
		)
		return Reject
	}

	outcomes, err := r.handler.HandleEvent(ctx, event)
	if err != nil {
		admitted := 0
		for _, o := range outcomes {
			if o.Admitted {
				admitted++
			}
		}
		if admitted == 0 {
			// only invalid candidates: redelivery cannot help
			if errors.Is(err, notifications.ErrInvalidCandidate) &&
				!errors.Is(err, notifications.ErrPersistFailed) && !errors.Is(err, notifications.ErrStoreUnavailable) {
				r.logger.LogAttrs(ctx, slog.LevelWarn, "Rejecting event with invalid candidates",
					logger.SchoolID(event.SchoolID),
					logger.EventType(event.EventType),
					logger.Error(err),
				)
				return Reject
			}
			r.logger.LogAttrs(ctx, slog.LevelError, "Event handling failed, requeueing",
				logger.SchoolID(event.SchoolID),
				logger.EventType(event.EventType),
				logger.Error(err),
			)
			return Requeue
		}
		r.logger.LogAttrs(ctx, slog.LevelWarn, "Event handled with failures",
			logger.SchoolID(event.SchoolID),
			logger.EventType(event.EventType),
			logger.Count(admitted),
			logger.Error(err),
		)
		return Ack
	}

	r.logger.LogAttrs(ctx, slog.LevelDebug, "Event processed",
		logger.SchoolID(event.SchoolID),
		logger.EventType(event.EventType),
		logger.Count(len(outcomes)),
	)
	return Ack
}

func decode(body []byte, v any) error {
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%w: %w", ErrDecodeFailed, err)
	}
	return nil
}
