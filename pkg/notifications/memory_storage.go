package notifications

import (
	"context"
	"errors"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ListOptions filters List results.
type ListOptions struct {
	OnlyUnread bool
	Types      []string
	Since      *time.Time
	Limit      int
	Offset     int
}

// NotificationReader serves the user-facing notification feed.
type NotificationReader interface {
	List(ctx context.Context, userID string, opts ListOptions) ([]Notification, error)
	CountUnread(ctx context.Context, userID string) (int, error)
}

// MemoryStorage keeps every store in process memory.
// Suitable for development and testing.
type MemoryStorage struct {
	mu            sync.RWMutex
	notifications map[string][]Notification // userID -> notifications, oldest first
	preferences   map[string]Preferences
	contacts      map[string]Contact
	rules         []Rule
	now           func() time.Time
}

// NewMemoryStorage creates an empty in-memory storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		notifications: make(map[string][]Notification),
		preferences:   make(map[string]Preferences),
		contacts:      make(map[string]Contact),
		now:           time.Now,
	}
}

// SetPreferences stores a user's preference record.
func (s *MemoryStorage) SetPreferences(p Preferences) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.EnabledTypes = slices.Clone(p.EnabledTypes)
	s.preferences[p.UserID] = p
}

// SetContact stores a user's channel destinations.
func (s *MemoryStorage) SetContact(userID string, c Contact) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contacts[userID] = c
}

// AddRule appends a rule.
func (s *MemoryStorage) AddRule(r Rule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules = append(s.rules, r)
}

func (s *MemoryStorage) GetPreferences(_ context.Context, userID string) (*Preferences, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.preferences[userID]
	if !ok {
		return nil, nil
	}
	p.EnabledTypes = slices.Clone(p.EnabledTypes)
	return &p, nil
}

func (s *MemoryStorage) DigestSubscribers(_ context.Context) ([]Preferences, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Preferences
	for _, p := range s.preferences {
		if p.Digest.Enabled {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (s *MemoryStorage) Contact(_ context.Context, userID string) (Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.contacts[userID], nil
}

func (s *MemoryStorage) ActiveRulesFor(_ context.Context, schoolID, eventType string) ([]Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Rule
	for _, r := range s.rules {
		if r.Active && r.SchoolID == schoolID && r.EventType == eventType {
			out = append(out, r)
		}
	}
	SortRules(out)
	return out, nil
}

func (s *MemoryStorage) Insert(_ context.Context, notif Notification) (string, error) {
	if notif.UserID == "" {
		return "", errors.New("user ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if notif.ID == "" {
		notif.ID = uuid.NewString()
	}
	if notif.CreatedAt.IsZero() {
		notif.CreatedAt = s.now()
	}
	notif.Metadata = notif.Metadata.Clone()

	s.notifications[notif.UserID] = append(s.notifications[notif.UserID], notif)
	return notif.ID, nil
}

func (s *MemoryStorage) CountToday(_ context.Context, userID string, priority Priority, dayStart time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, n := range s.notifications[userID] {
		if n.Priority == priority && !n.CreatedAt.Before(dayStart) {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStorage) FindRecent(_ context.Context, userID, notifType string, since time.Time) (*Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *Notification
	for i, n := range s.notifications[userID] {
		if n.Type != notifType || n.CreatedAt.Before(since) {
			continue
		}
		if latest == nil || !n.CreatedAt.Before(latest.CreatedAt) {
			latest = &s.notifications[userID][i]
		}
	}
	if latest == nil {
		return nil, nil
	}
	// Return a copy to prevent external mutation of stored data
	found := *latest
	return &found, nil
}

func (s *MemoryStorage) FindUnreadLowPriority(_ context.Context, userID string, since time.Time) ([]Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Notification
	for _, n := range s.notifications[userID] {
		if !n.Read && n.Priority.Digestible() && !n.CreatedAt.Before(since) {
			out = append(out, n)
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (s *MemoryStorage) MarkRead(_ context.Context, userID string, ids ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	notifications, exists := s.notifications[userID]
	if !exists {
		return nil
	}

	idMap := make(map[string]bool, len(ids))
	for _, id := range ids {
		idMap[id] = true
	}

	now := s.now()
	for i := range notifications {
		if idMap[notifications[i].ID] && !notifications[i].Read {
			notifications[i].MarkAsRead(now)
		}
	}
	return nil
}

func (s *MemoryStorage) List(_ context.Context, userID string, opts ListOptions) ([]Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var filtered []Notification
	for _, n := range s.notifications[userID] {
		if opts.OnlyUnread && n.Read {
			continue
		}
		if len(opts.Types) > 0 && !slices.Contains(opts.Types, n.Type) {
			continue
		}
		if opts.Since != nil && n.CreatedAt.Before(*opts.Since) {
			continue
		}
		filtered = append(filtered, n)
	}
	sortNewestFirst(filtered)

	start := opts.Offset
	if start > len(filtered) {
		return []Notification{}, nil
	}
	end := start + opts.Limit
	if opts.Limit == 0 || end > len(filtered) {
		end = len(filtered)
	}
	return filtered[start:end], nil
}

func (s *MemoryStorage) CountUnread(_ context.Context, userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, n := range s.notifications[userID] {
		if !n.Read {
			count++
		}
	}
	return count, nil
}

func sortNewestFirst(ns []Notification) {
	sort.SliceStable(ns, func(i, j int) bool { return ns[i].CreatedAt.After(ns[j].CreatedAt) })
}
