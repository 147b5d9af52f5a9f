package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrymomot/schoolnotify/pkg/httpserver"
	"github.com/dmitrymomot/schoolnotify/pkg/notifications"
)

// Notifier is implemented by notifications.Service.
type Notifier interface {
	Send(ctx context.Context, c notifications.Candidate) (notifications.Outcome, error)
	HandleEvent(ctx context.Context, event notifications.Event) ([]notifications.Outcome, error)
	MarkRead(ctx context.Context, userID string, ids ...string) error
	SendDigest(ctx context.Context, userID string, freq notifications.Frequency) (notifications.DigestResult, error)
}

const (
	defaultPageSize = 50
	maxPageSize     = 200
	maxOffset       = 10000
	defaultMaxBody  = 1 << 20
)

// API serves the notification HTTP endpoints.
type API struct {
	svc            Notifier
	feed           notifications.NotificationReader
	logger         *slog.Logger
	checks         []httpserver.Check
	stream         Streamer
	readyTimeout   time.Duration
	requestTimeout time.Duration
	maxBody        int64
}

// Option configures an API.
type Option func(*API)

// WithLogger sets the logger used for request and error logs.
func WithLogger(l *slog.Logger) Option {
	return func(a *API) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithReadinessChecks registers dependency probes for /health/ready.
func WithReadinessChecks(checks ...httpserver.Check) Option {
	return func(a *API) {
		a.checks = append(a.checks, checks...)
	}
}

// WithReadinessTimeout bounds each readiness probe run.
func WithReadinessTimeout(d time.Duration) Option {
	return func(a *API) {
		if d > 0 {
			a.readyTimeout = d
		}
	}
}

// WithRequestTimeout bounds every API request.
func WithRequestTimeout(d time.Duration) Option {
	return func(a *API) {
		if d > 0 {
			a.requestTimeout = d
		}
	}
}

// WithMaxBodySize limits request bodies in bytes.
func WithMaxBodySize(n int64) Option {
	return func(a *API) {
		if n > 0 {
			a.maxBody = n
		}
	}
}

// New creates the API.
func New(svc Notifier, feed notifications.NotificationReader, opts ...Option) *API {
	a := &API{
		svc:            svc,
		feed:           feed,
		logger:         slog.Default(),
		readyTimeout:   2 * time.Second,
		requestTimeout: 30 * time.Second,
		maxBody:        defaultMaxBody,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Routes returns the chi router with every endpoint mounted.
func (a *API) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(a.logger))
	r.Use(middleware.Recoverer)

	r.Get("/health/live", httpserver.LivenessHandler())
	r.Get("/health/ready", httpserver.ReadinessHandler(a.logger, a.readyTimeout, a.checks...))

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(a.requestTimeout))
		r.Use(middleware.AllowContentType("application/json"))

		r.Post("/events", a.handleEvent)
		r.Post("/notifications", a.sendNotification)

		r.Route("/users/{userID}", func(r chi.Router) {
			r.Post("/digest", a.sendDigest)
			r.Post("/read", a.markRead)
		})
	})

	r.With(middleware.Timeout(a.requestTimeout)).Get("/users/{userID}/notifications", a.listNotifications)
	if a.stream != nil {
		r.Get("/users/{userID}/stream", a.streamNotifications)
	}

	return r
}
