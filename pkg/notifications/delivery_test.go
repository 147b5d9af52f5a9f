package notifications

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/schoolnotify/pkg/email"
)

type stubPublisher struct {
	mu        sync.Mutex
	published []Notification
	err       error
}

func (p *stubPublisher) Publish(_ context.Context, n Notification) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, n)
	return p.err
}

func allChannels() Channels {
	return NewChannels(ChannelInApp, ChannelEmail, ChannelSMS, ChannelPush)
}

func TestOrchestrator_Deliver(t *testing.T) {
	t.Parallel()

	candidate := Candidate{
		UserID:   "u1",
		SchoolID: "s1",
		Type:     TypeGradePublished,
		Title:    "Grade posted",
		Message:  "You scored 45",
		Metadata: Metadata{"grade": 45, "actionUrl": "https://school.example/grades/1"},
		Channels: allChannels(),
	}

	t.Run("persists then delivers on every enabled channel", func(t *testing.T) {
		t.Parallel()
		store := NewMemoryStorage()
		prefs := DefaultPreferences("u1")
		prefs.SMS = true
		store.SetPreferences(prefs)
		store.SetContact("u1", Contact{Email: "student@example.com", Phone: "+15550001", PushToken: "tok-1"})

		mailer := &recordingMailer{}
		sms := &MockMessageSender{}
		sms.On("Send", mock.Anything, "+15550001", "Grade posted: You scored 45").Return(nil)
		push := &MockMessageSender{}
		push.On("Send", mock.Anything, "tok-1", "Grade posted: You scored 45").Return(nil)
		publisher := &stubPublisher{}

		o := NewOrchestrator(store, store, store, mailer,
			WithSMSSender(sms), WithPushSender(push), WithInAppPublisher(publisher),
			WithOrchestratorClock(fixedClock(noon)),
		)

		notif, result, err := o.Deliver(context.Background(), candidate, PriorityHigh)
		require.NoError(t, err)
		assert.NotEmpty(t, notif.ID)
		assert.Equal(t, PriorityHigh, notif.Priority)
		assert.Equal(t, noon, notif.CreatedAt)
		assert.False(t, notif.Read)
		assert.Equal(t, DeliveryResult{InApp: true, Email: true, SMS: true, Push: true}, result)

		stored, err := store.List(context.Background(), "u1", ListOptions{})
		require.NoError(t, err)
		require.Len(t, stored, 1)
		assert.Equal(t, notif.ID, stored[0].ID)

		sent := mailer.Sent()
		require.Len(t, sent, 1)
		assert.Equal(t, "student@example.com", sent[0].SendTo)
		assert.Equal(t, "Grade posted", sent[0].Subject)
		assert.Contains(t, sent[0].BodyHTML, "#ea580c")
		assert.Contains(t, sent[0].BodyHTML, "https://school.example/grades/1")
		assert.Contains(t, sent[0].BodyText, "[HIGH] Grade posted")

		require.Len(t, publisher.published, 1)
		sms.AssertExpectations(t)
		push.AssertExpectations(t)
	})

	t.Run("persist failure stops delivery", func(t *testing.T) {
		t.Parallel()
		store := &MockNotificationStore{}
		store.On("Insert", mock.Anything, mock.Anything).Return("", errors.New("disk full"))
		mailer := &MockEmailSender{}

		o := NewOrchestrator(store, NewMemoryStorage(), NewMemoryStorage(), mailer)
		_, result, err := o.Deliver(context.Background(), candidate, PriorityHigh)

		assert.ErrorIs(t, err, ErrPersistFailed)
		assert.Equal(t, DeliveryResult{}, result)
		mailer.AssertNotCalled(t, "SendEmail", mock.Anything, mock.Anything)
	})

	t.Run("store assigned id wins", func(t *testing.T) {
		t.Parallel()
		store := &MockNotificationStore{}
		store.On("Insert", mock.Anything, mock.Anything).Return("db-42", nil)
		in := candidate
		in.Channels = NewChannels(ChannelInApp)

		notif, result, err := NewOrchestrator(store, NewMemoryStorage(), NewMemoryStorage(), &recordingMailer{}).
			Deliver(context.Background(), in, PriorityMedium)
		require.NoError(t, err)
		assert.Equal(t, "db-42", notif.ID)
		assert.True(t, result.InApp)
	})

	t.Run("sms and push require explicit opt-in", func(t *testing.T) {
		t.Parallel()
		store := NewMemoryStorage()
		store.SetContact("u1", Contact{Email: "student@example.com", Phone: "+15550001", PushToken: "tok-1"})
		sms := &MockMessageSender{}
		push := &MockMessageSender{}

		o := NewOrchestrator(store, store, store, &recordingMailer{}, WithSMSSender(sms), WithPushSender(push))
		_, result, err := o.Deliver(context.Background(), candidate, PriorityHigh)
		require.NoError(t, err)

		assert.Equal(t, DeliveryResult{InApp: true, Email: true}, result)
		sms.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything)
		push.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("email disabled by preferences", func(t *testing.T) {
		t.Parallel()
		store := NewMemoryStorage()
		prefs := DefaultPreferences("u1")
		prefs.Email = false
		store.SetPreferences(prefs)
		store.SetContact("u1", Contact{Email: "student@example.com"})
		mailer := &recordingMailer{}

		_, result, err := NewOrchestrator(store, store, store, mailer).Deliver(context.Background(), candidate, PriorityHigh)
		require.NoError(t, err)
		assert.False(t, result.Email)
		assert.Empty(t, mailer.Sent())
	})

	t.Run("missing destinations are false", func(t *testing.T) {
		t.Parallel()
		store := NewMemoryStorage()
		prefs := DefaultPreferences("u1")
		prefs.SMS = true
		store.SetPreferences(prefs)

		_, result, err := NewOrchestrator(store, store, store, &recordingMailer{}).Deliver(context.Background(), candidate, PriorityHigh)
		require.NoError(t, err)
		assert.Equal(t, DeliveryResult{InApp: true}, result)
	})

	t.Run("channel failures are isolated", func(t *testing.T) {
		t.Parallel()
		store := NewMemoryStorage()
		prefs := DefaultPreferences("u1")
		prefs.SMS = true
		store.SetPreferences(prefs)
		store.SetContact("u1", Contact{Email: "student@example.com", Phone: "+15550001", PushToken: "tok-1"})
		push := &MockMessageSender{}
		push.On("Send", mock.Anything, "tok-1", mock.Anything).Return(errors.New("apns rejected token"))

		o := NewOrchestrator(store, store, store, &recordingMailer{err: email.ErrFailedToSendEmail},
			WithPushSender(push), WithInAppPublisher(&stubPublisher{err: errors.New("redis down")}))
		_, result, err := o.Deliver(context.Background(), candidate, PriorityHigh)
		require.NoError(t, err)

		// SMS has no provider configured; in-app publish failures do not affect the stored record.
		assert.Equal(t, DeliveryResult{InApp: true}, result)
	})

	t.Run("slow channel is cut off by the timeout", func(t *testing.T) {
		t.Parallel()
		store := NewMemoryStorage()
		prefs := DefaultPreferences("u1")
		store.SetPreferences(prefs)
		store.SetContact("u1", Contact{PushToken: "tok-1"})
		push := &MockMessageSender{}
		push.On("Send", mock.Anything, "tok-1", mock.Anything).Return(context.DeadlineExceeded).
			Run(func(args mock.Arguments) {
				<-args.Get(0).(context.Context).Done()
			})

		in := candidate
		in.Channels = NewChannels(ChannelInApp, ChannelPush)
		o := NewOrchestrator(store, store, store, &recordingMailer{}, WithPushSender(push), WithChannelTimeout(20*time.Millisecond))

		start := time.Now()
		_, result, err := o.Deliver(context.Background(), in, PriorityHigh)
		require.NoError(t, err)
		assert.Less(t, time.Since(start), 2*time.Second)
		assert.Equal(t, DeliveryResult{InApp: true}, result)
	})

	t.Run("preference lookup failure uses defaults", func(t *testing.T) {
		t.Parallel()
		store := NewMemoryStorage()
		store.SetContact("u1", Contact{Email: "student@example.com", Phone: "+15550001"})
		prefs := &MockPreferenceStore{}
		prefs.On("GetPreferences", mock.Anything, "u1").Return(nil, errors.New("timeout"))
		sms := &MockMessageSender{}

		_, result, err := NewOrchestrator(store, prefs, store, &recordingMailer{}, WithSMSSender(sms)).
			Deliver(context.Background(), candidate, PriorityHigh)
		require.NoError(t, err)
		assert.Equal(t, DeliveryResult{InApp: true, Email: true}, result)
	})
}

func TestUnconfiguredSender(t *testing.T) {
	t.Parallel()

	err := UnconfiguredSender{Channel: ChannelSMS}.Send(context.Background(), "+1555", "hi")
	assert.ErrorIs(t, err, ErrChannelNotConfigured)
	assert.Contains(t, err.Error(), "SMS")
}
