package notifications

import (
	"context"
	"errors"
	"log/slog"

	"github.com/dmitrymomot/schoolnotify/pkg/logger"
)

// Outcome is the result of sending one candidate.
type Outcome struct {
	Admitted     bool           `json:"admitted"`
	Reason       Reason         `json:"reason"`
	Priority     Priority       `json:"priority"`
	Notification *Notification  `json:"notification,omitempty"`
	Delivery     DeliveryResult `json:"delivery"`
	Degraded     []error        `json:"-"`
}

// Service ties admission, persistence, delivery and digests together.
type Service struct {
	pipeline     *Pipeline
	rules        *RuleEvaluator
	orchestrator *Orchestrator
	digests      *DigestBatcher
	store        NotificationStore
	locker       Locker
	logger       *slog.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithServiceLogger sets the logger for the Service.
func WithServiceLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithLocker serialises admission and insert per user. Without a locker,
// concurrent sends for one user may overshoot a daily cap.
func WithLocker(l Locker) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.locker = l
		}
	}
}

// NewService creates a notification service.
func NewService(pipeline *Pipeline, rules *RuleEvaluator, orchestrator *Orchestrator, digests *DigestBatcher, store NotificationStore, opts ...ServiceOption) *Service {
	s := &Service{
		pipeline:     pipeline,
		rules:        rules,
		orchestrator: orchestrator,
		digests:      digests,
		store:        store,
		locker:       noopLocker{},
		logger:       slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Send admits, stores and delivers a single candidate. Rejections are not errors.
// Errors are returned for invalid candidates, persist failures and a cancelled context.
func (s *Service) Send(ctx context.Context, c Candidate) (Outcome, error) {
	var degraded []error

	unlock, err := s.locker.Lock(ctx, c.UserID)
	if err != nil {
		if ctx.Err() != nil {
			return Outcome{}, ctx.Err()
		}
		s.logger.LogAttrs(ctx, slog.LevelWarn, "Admission lock unavailable, continuing unlocked",
			logger.UserID(c.UserID),
			logger.Error(err),
		)
		degraded = append(degraded, err)
		unlock = func() {}
	}

	d := s.pipeline.ShouldSend(ctx, c)
	out := Outcome{
		Admitted: d.Admit,
		Reason:   d.Reason,
		Priority: d.Priority,
		Degraded: append(degraded, d.Degraded...),
	}
	if !d.Admit {
		unlock()
		if d.Reason == ReasonInvalid && len(d.Degraded) > 0 {
			return out, d.Degraded[0]
		}
		return out, nil
	}

	notif, err := s.orchestrator.Persist(ctx, c, d.Priority)
	unlock()
	if err != nil {
		out.Admitted = false
		return out, err
	}

	out.Notification = &notif
	out.Delivery = s.orchestrator.Fanout(ctx, notif)

	s.logger.LogAttrs(ctx, slog.LevelInfo, "Notification sent",
		logger.UserID(notif.UserID),
		logger.NotificationID(notif.ID),
		logger.NotificationType(notif.Type),
		logger.Priority(notif.Priority.String()),
	)
	return out, nil
}

// HandleEvent expands a business event through the tenant rules and sends every
// resulting candidate. A failure for one candidate does not stop the others; all
// failures are joined into the returned error.
func (s *Service) HandleEvent(ctx context.Context, event Event) ([]Outcome, error) {
	candidates, err := s.rules.Expand(ctx, event)
	if err != nil {
		return nil, err
	}

	outcomes := make([]Outcome, 0, len(candidates))
	var errs []error
	for _, c := range candidates {
		out, err := s.Send(ctx, c)
		if err != nil {
			errs = append(errs, err)
		}
		outcomes = append(outcomes, out)
	}

	s.logger.LogAttrs(ctx, slog.LevelDebug, "Event handled",
		logger.SchoolID(event.SchoolID),
		logger.EventType(event.EventType),
		logger.Count(len(candidates)),
	)
	return outcomes, errors.Join(errs...)
}

// MarkRead records read receipts.
func (s *Service) MarkRead(ctx context.Context, userID string, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := s.store.MarkRead(ctx, userID, ids...); err != nil {
		return errors.Join(ErrStoreUnavailable, err)
	}
	return nil
}

// SendDigest builds and sends the user's digest now.
func (s *Service) SendDigest(ctx context.Context, userID string, freq Frequency) (DigestResult, error) {
	return s.digests.BuildAndSendDigest(ctx, userID, freq)
}
