package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/dmitrymomot/schoolnotify/pkg/logger"
)

// Schedule determines when a periodic digest should run.
type Schedule interface {
	Next(from time.Time) time.Time
	String() string
}

type dailySchedule struct {
	hour   int
	minute int
}

func (s dailySchedule) Next(from time.Time) time.Time {
	next := time.Date(from.Year(), from.Month(), from.Day(), s.hour, s.minute, 0, 0, from.Location())
	if !next.After(from) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

func (s dailySchedule) String() string {
	return fmt.Sprintf("daily at %02d:%02d", s.hour, s.minute)
}

type weeklySchedule struct {
	weekday time.Weekday
	hour    int
	minute  int
}

func (s weeklySchedule) Next(from time.Time) time.Time {
	daysUntil := (int(s.weekday) - int(from.Weekday()) + 7) % 7

	next := from.AddDate(0, 0, daysUntil)
	next = time.Date(next.Year(), next.Month(), next.Day(), s.hour, s.minute, 0, 0, next.Location())
	if !next.After(from) {
		next = next.AddDate(0, 0, 7)
	}
	return next
}

func (s weeklySchedule) String() string {
	return fmt.Sprintf("weekly on %s at %02d:%02d", s.weekday, s.hour, s.minute)
}

// DailyAt runs once a day at hour:minute in the location of the time passed to Next.
func DailyAt(hour, minute int) Schedule {
	return dailySchedule{hour: hour, minute: minute}
}

// WeeklyOn runs once a week on weekday at hour:minute.
func WeeklyOn(weekday time.Weekday, hour, minute int) Schedule {
	return weeklySchedule{weekday: weekday, hour: hour, minute: minute}
}

// DigestSchedule maps digest settings to a schedule. Weekly digests go out on Mondays.
func DigestSchedule(d DigestSettings) Schedule {
	hour, minute := d.Clock()
	if Frequency(strings.ToUpper(string(d.Frequency))) == FrequencyWeekly {
		return WeeklyOn(time.Monday, hour, minute)
	}
	return DailyAt(hour, minute)
}

// DigestSender is satisfied by DigestBatcher.
type DigestSender interface {
	BuildAndSendDigest(ctx context.Context, userID string, freq Frequency) (DigestResult, error)
}

// SchedulerConfig holds digest scheduler settings.
type SchedulerConfig struct {
	CheckInterval time.Duration `env:"DIGEST_CHECK_INTERVAL" envDefault:"1m"`
}

type subscriberState struct {
	schedule string
	nextRun  time.Time
}

// DigestScheduler periodically sends digests to every subscriber whose
// scheduled time has passed.
type DigestScheduler struct {
	subscribers DigestSubscriberLister
	digests     DigestSender
	interval    time.Duration
	now         func() time.Time
	logger      *slog.Logger

	mu    sync.Mutex
	state map[string]subscriberState
}

// DigestSchedulerOption configures a DigestScheduler.
type DigestSchedulerOption func(*DigestScheduler)

// WithCheckInterval sets how often the scheduler looks for due digests.
func WithCheckInterval(d time.Duration) DigestSchedulerOption {
	return func(s *DigestScheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithSchedulerLogger sets the logger for the scheduler.
func WithSchedulerLogger(logger *slog.Logger) DigestSchedulerOption {
	return func(s *DigestScheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithSchedulerClock overrides the time source.
func WithSchedulerClock(now func() time.Time) DigestSchedulerOption {
	return func(s *DigestScheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// NewDigestScheduler creates a digest scheduler.
func NewDigestScheduler(subscribers DigestSubscriberLister, digests DigestSender, opts ...DigestSchedulerOption) *DigestScheduler {
	s := &DigestScheduler{
		subscribers: subscribers,
		digests:     digests,
		interval:    time.Minute,
		now:         time.Now,
		logger:      slog.Default(),
		state:       make(map[string]subscriberState),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start checks immediately and then on every tick until ctx is done.
func (s *DigestScheduler) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.Tick(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.LogAttrs(ctx, slog.LevelInfo, "Digest scheduler shutting down")
			return ctx.Err()
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick runs one scheduling pass. A subscriber seen for the first time is
// scheduled for its next slot rather than sent immediately.
func (s *DigestScheduler) Tick(ctx context.Context) {
	subs, err := s.subscribers.DigestSubscribers(ctx)
	if err != nil {
		s.logger.LogAttrs(ctx, slog.LevelWarn, "Failed to list digest subscribers", logger.Error(err))
		return
	}

	now := s.now()
	seen := make(map[string]struct{}, len(subs))

	for _, p := range subs {
		if !p.Digest.Enabled {
			continue
		}
		seen[p.UserID] = struct{}{}

		schedule := DigestSchedule(p.Digest)
		local := now.In(p.Location(now.Location()))

		s.mu.Lock()
		st, ok := s.state[p.UserID]
		s.mu.Unlock()

		if !ok || st.schedule != schedule.String() {
			s.setState(p.UserID, subscriberState{schedule: schedule.String(), nextRun: schedule.Next(local)})
			continue
		}
		if now.Before(st.nextRun) {
			continue
		}

		res, err := s.digests.BuildAndSendDigest(ctx, p.UserID, p.Digest.Frequency)
		if err != nil {
			s.logger.LogAttrs(ctx, slog.LevelWarn, "Scheduled digest failed",
				logger.UserID(p.UserID),
				logger.Error(err),
			)
		} else if res.Sent {
			s.logger.LogAttrs(ctx, slog.LevelDebug, "Scheduled digest delivered",
				logger.UserID(p.UserID),
				logger.Count(res.Count),
			)
		}
		s.setState(p.UserID, subscriberState{schedule: schedule.String(), nextRun: schedule.Next(local)})
	}

	s.mu.Lock()
	for userID := range s.state {
		if _, ok := seen[userID]; !ok {
			delete(s.state, userID)
		}
	}
	s.mu.Unlock()
}

// NextRun returns when the user's digest is next due, if scheduled.
func (s *DigestScheduler) NextRun(userID string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.state[userID]
	return st.nextRun, ok
}

func (s *DigestScheduler) setState(userID string, st subscriberState) {
	s.mu.Lock()
	s.state[userID] = st
	s.mu.Unlock()
}
