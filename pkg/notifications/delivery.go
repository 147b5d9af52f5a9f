package notifications

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/schoolnotify/pkg/email"
	"github.com/dmitrymomot/schoolnotify/pkg/logger"
)

// MessageSender delivers a short text to a destination (phone number or push token).
type MessageSender interface {
	Send(ctx context.Context, destination, message string) error
}

// InAppPublisher pushes a stored notification to connected clients.
// Publishing is best-effort: the stored record is the in-app delivery.
type InAppPublisher interface {
	Publish(ctx context.Context, notif Notification) error
}

// UnconfiguredSender stands in for a channel with no provider behind it.
type UnconfiguredSender struct {
	Channel Channel
}

func (s UnconfiguredSender) Send(context.Context, string, string) error {
	return fmt.Errorf("%w: %s", ErrChannelNotConfigured, s.Channel)
}

// DeliveryConfig holds delivery settings loaded from the environment.
type DeliveryConfig struct {
	ChannelTimeout time.Duration `env:"NOTIFY_CHANNEL_TIMEOUT" envDefault:"10s"`
}

// Orchestrator persists admitted candidates and fans them out to channels.
type Orchestrator struct {
	store    NotificationStore
	prefs    PreferenceStore
	contacts ContactDirectory
	mailer   email.EmailSender
	sms      MessageSender
	push     MessageSender
	inApp    InAppPublisher
	timeout  time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithOrchestratorLogger sets the logger for the Orchestrator.
func WithOrchestratorLogger(logger *slog.Logger) OrchestratorOption {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// WithSMSSender sets the SMS provider.
func WithSMSSender(s MessageSender) OrchestratorOption {
	return func(o *Orchestrator) {
		if s != nil {
			o.sms = s
		}
	}
}

// WithPushSender sets the push provider.
func WithPushSender(s MessageSender) OrchestratorOption {
	return func(o *Orchestrator) {
		if s != nil {
			o.push = s
		}
	}
}

// WithInAppPublisher enables realtime in-app push.
func WithInAppPublisher(p InAppPublisher) OrchestratorOption {
	return func(o *Orchestrator) {
		o.inApp = p
	}
}

// WithChannelTimeout bounds each channel call.
func WithChannelTimeout(d time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithOrchestratorClock overrides the time source used for CreatedAt.
func WithOrchestratorClock(now func() time.Time) OrchestratorOption {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// NewOrchestrator creates an orchestrator. SMS and push default to UnconfiguredSender.
func NewOrchestrator(store NotificationStore, prefs PreferenceStore, contacts ContactDirectory, mailer email.EmailSender, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		store:    store,
		prefs:    prefs,
		contacts: contacts,
		mailer:   mailer,
		sms:      UnconfiguredSender{Channel: ChannelSMS},
		push:     UnconfiguredSender{Channel: ChannelPush},
		timeout:  10 * time.Second,
		now:      time.Now,
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		opt(o)
	}

	return o
}

// Deliver persists the candidate and then fans it out. A persist failure is the
// only error; channel failures show up as false in the result.
func (o *Orchestrator) Deliver(ctx context.Context, c Candidate, priority Priority) (Notification, DeliveryResult, error) {
	notif, err := o.Persist(ctx, c, priority)
	if err != nil {
		return Notification{}, DeliveryResult{}, err
	}
	return notif, o.Fanout(ctx, notif), nil
}

// Persist stores the notification record for an admitted candidate.
func (o *Orchestrator) Persist(ctx context.Context, c Candidate, priority Priority) (Notification, error) {
	notif := Notification{
		ID:        uuid.NewString(),
		UserID:    c.UserID,
		SchoolID:  c.SchoolID,
		Type:      c.Type,
		Title:     c.Title,
		Message:   c.Message,
		Priority:  priority,
		Metadata:  c.Metadata.Clone(),
		Channels:  NewChannels(c.Channels...),
		CreatedAt: o.now(),
	}

	id, err := o.store.Insert(ctx, notif)
	if err != nil {
		o.logger.LogAttrs(ctx, slog.LevelError, "Failed to persist notification",
			logger.UserID(c.UserID),
			logger.NotificationType(c.Type),
			logger.Error(err),
		)
		return Notification{}, errors.Join(ErrPersistFailed, err)
	}
	if id != "" {
		notif.ID = id
	}
	return notif, nil
}

// Fanout delivers a stored notification on each requested channel concurrently.
func (o *Orchestrator) Fanout(ctx context.Context, notif Notification) DeliveryResult {
	stored, prefs := o.loadPreferences(ctx, notif.UserID)
	contact := o.loadContact(ctx, notif)

	var (
		mu     sync.Mutex
		result DeliveryResult
		g      errgroup.Group
	)
	record := func(c Channel, ok bool) {
		mu.Lock()
		result.set(c, ok)
		mu.Unlock()
	}

	for _, ch := range notif.Channels {
		g.Go(func() error {
			chCtx, cancel := context.WithTimeout(ctx, o.timeout)
			defer cancel()

			switch ch {
			case ChannelInApp:
				record(ch, o.deliverInApp(chCtx, notif))
			case ChannelEmail:
				record(ch, prefs.Email && o.deliverEmail(chCtx, notif, contact.Email))
			case ChannelSMS:
				record(ch, stored != nil && stored.SMS && o.deliverMessage(chCtx, ch, o.sms, notif, contact.Phone))
			case ChannelPush:
				record(ch, stored != nil && stored.Push && o.deliverMessage(chCtx, ch, o.push, notif, contact.PushToken))
			}
			return nil
		})
	}
	_ = g.Wait()

	return result
}

// loadPreferences returns the stored record (nil when absent or on error) and the
// effective preferences. A failed lookup falls back to defaults.
func (o *Orchestrator) loadPreferences(ctx context.Context, userID string) (*Preferences, Preferences) {
	stored, err := o.prefs.GetPreferences(ctx, userID)
	if err != nil {
		o.logger.LogAttrs(ctx, slog.LevelWarn, "Preference lookup failed, using defaults for delivery",
			logger.UserID(userID),
			logger.Error(err),
		)
		return nil, DefaultPreferences(userID)
	}
	if stored == nil {
		return nil, DefaultPreferences(userID)
	}
	return stored, *stored
}

func (o *Orchestrator) loadContact(ctx context.Context, notif Notification) Contact {
	if !notif.Channels.Has(ChannelEmail) && !notif.Channels.Has(ChannelSMS) && !notif.Channels.Has(ChannelPush) {
		return Contact{}
	}
	contact, err := o.contacts.Contact(ctx, notif.UserID)
	if err != nil {
		o.logger.LogAttrs(ctx, slog.LevelWarn, "Contact lookup failed",
			logger.UserID(notif.UserID),
			logger.NotificationID(notif.ID),
			logger.Error(err),
		)
		return Contact{}
	}
	return contact
}

func (o *Orchestrator) deliverInApp(ctx context.Context, notif Notification) bool {
	if o.inApp == nil {
		return true
	}
	if err := o.inApp.Publish(ctx, notif); err != nil {
		o.logger.LogAttrs(ctx, slog.LevelWarn, "In-app publish failed",
			logger.UserID(notif.UserID),
			logger.NotificationID(notif.ID),
			logger.Error(err),
		)
	}
	return true
}

func (o *Orchestrator) deliverEmail(ctx context.Context, notif Notification, to string) bool {
	if to == "" {
		o.logger.LogAttrs(ctx, slog.LevelDebug, "Skipping email delivery",
			logger.UserID(notif.UserID),
			logger.NotificationID(notif.ID),
			logger.Error(ErrNoDestination),
		)
		return false
	}

	params, err := notificationEmailParams(ctx, to, notif)
	if err == nil {
		err = o.mailer.SendEmail(ctx, params)
	}
	if err != nil {
		o.logger.LogAttrs(ctx, slog.LevelWarn, "Email delivery failed",
			logger.UserID(notif.UserID),
			logger.NotificationID(notif.ID),
			logger.Channel(string(ChannelEmail)),
			logger.Error(err),
		)
		return false
	}
	return true
}

func (o *Orchestrator) deliverMessage(ctx context.Context, ch Channel, sender MessageSender, notif Notification, destination string) bool {
	if destination == "" {
		return false
	}
	if err := sender.Send(ctx, destination, shortText(notif)); err != nil {
		if !errors.Is(err, ErrChannelNotConfigured) {
			o.logger.LogAttrs(ctx, slog.LevelWarn, "Channel delivery failed",
				logger.UserID(notif.UserID),
				logger.NotificationID(notif.ID),
				logger.Channel(string(ch)),
				logger.Error(err),
			)
		}
		return false
	}
	return true
}
