package notifications

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/dmitrymomot/schoolnotify/pkg/email"
)

type MockNotificationStore struct {
	mock.Mock
}

func (m *MockNotificationStore) CountToday(ctx context.Context, userID string, priority Priority, dayStart time.Time) (int, error) {
	args := m.Called(ctx, userID, priority, dayStart)
	return args.Int(0), args.Error(1)
}

func (m *MockNotificationStore) FindRecent(ctx context.Context, userID, notifType string, since time.Time) (*Notification, error) {
	args := m.Called(ctx, userID, notifType, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Notification), args.Error(1)
}

func (m *MockNotificationStore) Insert(ctx context.Context, notif Notification) (string, error) {
	args := m.Called(ctx, notif)
	return args.String(0), args.Error(1)
}

func (m *MockNotificationStore) FindUnreadLowPriority(ctx context.Context, userID string, since time.Time) ([]Notification, error) {
	args := m.Called(ctx, userID, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Notification), args.Error(1)
}

func (m *MockNotificationStore) MarkRead(ctx context.Context, userID string, ids ...string) error {
	args := m.Called(ctx, userID, ids)
	return args.Error(0)
}

type MockPreferenceStore struct {
	mock.Mock
}

func (m *MockPreferenceStore) GetPreferences(ctx context.Context, userID string) (*Preferences, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Preferences), args.Error(1)
}

type MockRuleStore struct {
	mock.Mock
}

func (m *MockRuleStore) ActiveRulesFor(ctx context.Context, schoolID, eventType string) ([]Rule, error) {
	args := m.Called(ctx, schoolID, eventType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Rule), args.Error(1)
}

type MockContactDirectory struct {
	mock.Mock
}

func (m *MockContactDirectory) Contact(ctx context.Context, userID string) (Contact, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(Contact), args.Error(1)
}

type MockEmailSender struct {
	mock.Mock
}

func (m *MockEmailSender) SendEmail(ctx context.Context, params email.SendEmailParams) error {
	args := m.Called(ctx, params)
	return args.Error(0)
}

type MockMessageSender struct {
	mock.Mock
}

func (m *MockMessageSender) Send(ctx context.Context, destination, message string) error {
	args := m.Called(ctx, destination, message)
	return args.Error(0)
}

// recordingMailer captures sent emails without expectations.
type recordingMailer struct {
	mu   sync.Mutex
	sent []email.SendEmailParams
	err  error
}

func (r *recordingMailer) SendEmail(_ context.Context, params email.SendEmailParams) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, params)
	return nil
}

func (r *recordingMailer) Sent() []email.SendEmailParams {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]email.SendEmailParams(nil), r.sent...)
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func priorityPtr(p Priority) *Priority {
	return &p
}
