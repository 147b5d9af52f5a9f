package notifications

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStorage(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("insert assigns id and timestamp", func(t *testing.T) {
		t.Parallel()
		s := NewMemoryStorage()
		id, err := s.Insert(ctx, Notification{UserID: "u1", Type: TypeParentMessage, Priority: PriorityMedium})
		require.NoError(t, err)
		assert.NotEmpty(t, id)

		list, err := s.List(ctx, "u1", ListOptions{})
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, id, list[0].ID)
		assert.False(t, list[0].CreatedAt.IsZero())
	})

	t.Run("insert requires user", func(t *testing.T) {
		t.Parallel()
		_, err := NewMemoryStorage().Insert(ctx, Notification{Type: TypeParentMessage})
		assert.Error(t, err)
	})

	t.Run("count today filters by priority and day start", func(t *testing.T) {
		t.Parallel()
		s := NewMemoryStorage()
		day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
		seed(t, s, Notification{UserID: "u1", Priority: PriorityHigh, CreatedAt: day.Add(time.Hour)})
		seed(t, s, Notification{UserID: "u1", Priority: PriorityHigh, CreatedAt: day})
		seed(t, s, Notification{UserID: "u1", Priority: PriorityHigh, CreatedAt: day.Add(-time.Second)})
		seed(t, s, Notification{UserID: "u1", Priority: PriorityLow, CreatedAt: day.Add(time.Hour)})
		seed(t, s, Notification{UserID: "u2", Priority: PriorityHigh, CreatedAt: day.Add(time.Hour)})

		n, err := s.CountToday(ctx, "u1", PriorityHigh, day)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	})

	t.Run("find recent returns newest match", func(t *testing.T) {
		t.Parallel()
		s := NewMemoryStorage()
		seed(t, s, Notification{ID: "old", UserID: "u1", Type: TypeGradePublished, CreatedAt: noon.Add(-2 * time.Hour)})
		seed(t, s, Notification{ID: "new", UserID: "u1", Type: TypeGradePublished, CreatedAt: noon.Add(-time.Hour)})
		seed(t, s, Notification{ID: "other", UserID: "u1", Type: TypeParentMessage, CreatedAt: noon})

		found, err := s.FindRecent(ctx, "u1", TypeGradePublished, noon.Add(-3*time.Hour))
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, "new", found.ID)

		found, err = s.FindRecent(ctx, "u1", TypeGradePublished, noon)
		require.NoError(t, err)
		assert.Nil(t, found)
	})

	t.Run("mark read is scoped to the user", func(t *testing.T) {
		t.Parallel()
		s := NewMemoryStorage()
		seed(t, s, Notification{ID: "a", UserID: "u1"})
		seed(t, s, Notification{ID: "a", UserID: "u2"})

		require.NoError(t, s.MarkRead(ctx, "u1", "a", "missing"))

		n1, _ := s.CountUnread(ctx, "u1")
		n2, _ := s.CountUnread(ctx, "u2")
		assert.Equal(t, 0, n1)
		assert.Equal(t, 1, n2)

		list, _ := s.List(ctx, "u1", ListOptions{})
		require.NotNil(t, list[0].ReadAt)
	})

	t.Run("list filters and paginates newest first", func(t *testing.T) {
		t.Parallel()
		s := NewMemoryStorage()
		for i, typ := range []string{"A", "B", "A", "A"} {
			seed(t, s, Notification{ID: string(rune('1' + i)), UserID: "u1", Type: typ, CreatedAt: noon.Add(time.Duration(i) * time.Minute)})
		}
		require.NoError(t, s.MarkRead(ctx, "u1", "3"))

		list, err := s.List(ctx, "u1", ListOptions{Types: []string{"A"}, OnlyUnread: true})
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "4", list[0].ID)
		assert.Equal(t, "1", list[1].ID)

		page, err := s.List(ctx, "u1", ListOptions{Limit: 2, Offset: 1})
		require.NoError(t, err)
		require.Len(t, page, 2)
		assert.Equal(t, "3", page[0].ID)

		empty, err := s.List(ctx, "u1", ListOptions{Offset: 10})
		require.NoError(t, err)
		assert.Empty(t, empty)
	})

	t.Run("preferences are copied", func(t *testing.T) {
		t.Parallel()
		s := NewMemoryStorage()
		p, err := s.GetPreferences(ctx, "u1")
		require.NoError(t, err)
		assert.Nil(t, p)

		s.SetPreferences(DefaultPreferences("u1"))
		p, err = s.GetPreferences(ctx, "u1")
		require.NoError(t, err)
		p.EnabledTypes[0] = "CHANGED"

		again, _ := s.GetPreferences(ctx, "u1")
		assert.Equal(t, TypeSafetyAlert, again.EnabledTypes[0])
	})

	t.Run("active rules filtered and sorted", func(t *testing.T) {
		t.Parallel()
		s := NewMemoryStorage()
		s.AddRule(Rule{ID: "low", SchoolID: "s1", EventType: "e", Active: true, Priority: 1})
		s.AddRule(Rule{ID: "high", SchoolID: "s1", EventType: "e", Active: true, Priority: 9})
		s.AddRule(Rule{ID: "off", SchoolID: "s1", EventType: "e", Active: false})
		s.AddRule(Rule{ID: "elsewhere", SchoolID: "s2", EventType: "e", Active: true})

		rules, err := s.ActiveRulesFor(ctx, "s1", "e")
		require.NoError(t, err)
		require.Len(t, rules, 2)
		assert.Equal(t, "high", rules[0].ID)
		assert.Equal(t, "low", rules[1].ID)
	})

	t.Run("digest subscribers", func(t *testing.T) {
		t.Parallel()
		s := NewMemoryStorage()
		s.SetPreferences(DefaultPreferences("b"))
		s.SetPreferences(DefaultPreferences("a"))
		off := DefaultPreferences("c")
		off.Digest.Enabled = false
		s.SetPreferences(off)

		subs, err := s.DigestSubscribers(ctx)
		require.NoError(t, err)
		require.Len(t, subs, 2)
		assert.Equal(t, "a", subs[0].UserID)
	})
}

func TestKeyedLocker(t *testing.T) {
	t.Parallel()

	t.Run("serialises the same key", func(t *testing.T) {
		t.Parallel()
		l := NewKeyedLocker()
		unlock, err := l.Lock(context.Background(), "u1")
		require.NoError(t, err)

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		_, err = l.Lock(ctx, "u1")
		assert.ErrorIs(t, err, context.DeadlineExceeded)

		unlock()
		unlock() // idempotent

		again, err := l.Lock(context.Background(), "u1")
		require.NoError(t, err)
		again()

		l.mu.Lock()
		assert.Empty(t, l.locks)
		l.mu.Unlock()
	})

	t.Run("different keys do not block", func(t *testing.T) {
		t.Parallel()
		l := NewKeyedLocker()
		u1, err := l.Lock(context.Background(), "u1")
		require.NoError(t, err)
		defer u1()

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		u2, err := l.Lock(ctx, "u2")
		require.NoError(t, err)
		u2()
	})
}
