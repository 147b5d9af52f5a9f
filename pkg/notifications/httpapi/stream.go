package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/schoolnotify/pkg/logger"
	"github.com/dmitrymomot/schoolnotify/pkg/notifications/inapp"
)

// Streamer hands out per-user in-app subscriptions. *inapp.Hub implements it.
type Streamer interface {
	Subscribe(ctx context.Context, userID string) *inapp.Subscription
}

// WithStream enables GET /users/{userID}/stream, a server-sent events feed of
// in-app notifications.
func WithStream(s Streamer) Option {
	return func(a *API) {
		a.stream = s
	}
}

func (a *API) streamNotifications(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	rc := http.NewResponseController(w)
	_ = rc.SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		a.logger.LogAttrs(r.Context(), slog.LevelError, "Streaming unsupported", logger.Error(err))
		return
	}

	sub := a.stream.Subscribe(r.Context(), userID)
	defer sub.Close()

	for {
		select {
		case <-r.Context().Done():
			return
		case msg, ok := <-sub.C():
			if !ok {
				return
			}
			data, err := json.Marshal(msg)
			if err != nil {
				continue
			}
			if _, err := fmt.Fprintf(w, "id: %s\nevent: notification\ndata: %s\n\n", msg.ID, data); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}
