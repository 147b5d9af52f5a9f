package notifications

import (
	"context"
	"errors"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var noon = time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)

func newTestPipeline(store *MemoryStorage, now time.Time) *Pipeline {
	return NewPipeline(DefaultPolicy(), store, store, WithPipelineClock(fixedClock(now)))
}

func seed(t *testing.T, store *MemoryStorage, n Notification) {
	t.Helper()
	_, err := store.Insert(context.Background(), n)
	require.NoError(t, err)
}

func TestPipeline_ShouldSend(t *testing.T) {
	t.Parallel()

	t.Run("admits with no history and no preferences", func(t *testing.T) {
		t.Parallel()
		store := NewMemoryStorage()
		d := newTestPipeline(store, noon).ShouldSend(context.Background(), Candidate{UserID: "u1", Type: TypeParentMessage})
		assert.True(t, d.Admit)
		assert.Equal(t, ReasonAdmitted, d.Reason)
		assert.Equal(t, PriorityMedium, d.Priority)
		assert.Empty(t, d.Degraded)
	})

	t.Run("rejects invalid candidate", func(t *testing.T) {
		t.Parallel()
		d := newTestPipeline(NewMemoryStorage(), noon).ShouldSend(context.Background(), Candidate{Type: TypeParentMessage})
		assert.False(t, d.Admit)
		assert.Equal(t, ReasonInvalid, d.Reason)
		require.Len(t, d.Degraded, 1)
		assert.ErrorIs(t, d.Degraded[0], ErrInvalidCandidate)
	})

	t.Run("explicit priority wins over classifier", func(t *testing.T) {
		t.Parallel()
		d := newTestPipeline(NewMemoryStorage(), noon).ShouldSend(context.Background(), Candidate{
			UserID: "u1", Type: TypeParentMessage, ExplicitPriority: priorityPtr(PriorityLow),
		})
		assert.Equal(t, PriorityLow, d.Priority)
	})

	t.Run("preference gate rejects disabled type", func(t *testing.T) {
		t.Parallel()
		store := NewMemoryStorage()
		prefs := DefaultPreferences("u1")
		prefs.EnabledTypes = []string{TypeGradePublished}
		store.SetPreferences(prefs)

		d := newTestPipeline(store, noon).ShouldSend(context.Background(), Candidate{UserID: "u1", Type: TypeParentMessage})
		assert.False(t, d.Admit)
		assert.Equal(t, ReasonTypeDisabled, d.Reason)
		assert.Equal(t, "preference", d.Gate)
	})

	t.Run("safety types bypass preferences", func(t *testing.T) {
		t.Parallel()
		store := NewMemoryStorage()
		prefs := DefaultPreferences("u1")
		prefs.EnabledTypes = nil
		store.SetPreferences(prefs)

		for _, typ := range []string{TypeSafetyAlert, TypeEmergency, TypeRiskAlert} {
			d := newTestPipeline(store, noon).ShouldSend(context.Background(), Candidate{UserID: "u1", Type: typ})
			assert.True(t, d.Admit, typ)
		}
	})

	t.Run("critical priority bypasses preferences", func(t *testing.T) {
		t.Parallel()
		store := NewMemoryStorage()
		prefs := DefaultPreferences("u1")
		prefs.EnabledTypes = []string{TypeGradePublished}
		store.SetPreferences(prefs)

		d := newTestPipeline(store, noon).ShouldSend(context.Background(), Candidate{
			UserID: "u1", Type: TypeParentMessage, ExplicitPriority: priorityPtr(PriorityCritical),
		})
		assert.True(t, d.Admit)
		assert.Equal(t, PriorityCritical, d.Priority)
	})

	t.Run("frequency cap reached", func(t *testing.T) {
		t.Parallel()
		store := NewMemoryStorage()
		for i := 0; i < 5; i++ {
			seed(t, store, Notification{UserID: "u1", Type: "OTHER", Priority: PriorityMedium, CreatedAt: noon.Add(-time.Duration(i+1) * time.Minute)})
		}

		d := newTestPipeline(store, noon).ShouldSend(context.Background(), Candidate{UserID: "u1", Type: TypeParentMessage})
		assert.False(t, d.Admit)
		assert.Equal(t, ReasonDailyCap, d.Reason)
		assert.Equal(t, "frequency", d.Gate)
	})

	t.Run("yesterday does not count toward the cap", func(t *testing.T) {
		t.Parallel()
		store := NewMemoryStorage()
		for i := 0; i < 5; i++ {
			seed(t, store, Notification{UserID: "u1", Type: "OTHER", Priority: PriorityMedium, CreatedAt: noon.Add(-13 * time.Hour)})
		}

		d := newTestPipeline(store, noon).ShouldSend(context.Background(), Candidate{UserID: "u1", Type: TypeParentMessage})
		assert.True(t, d.Admit)
	})

	t.Run("critical is never capped", func(t *testing.T) {
		t.Parallel()
		store := NewMemoryStorage()
		for i := 0; i < 50; i++ {
			seed(t, store, Notification{UserID: "u1", Type: "OTHER", Priority: PriorityCritical, CreatedAt: noon.Add(-time.Minute)})
		}

		d := newTestPipeline(store, noon).ShouldSend(context.Background(), Candidate{UserID: "u1", Type: TypeSafetyAlert})
		assert.True(t, d.Admit)
	})

	t.Run("duplicate within window", func(t *testing.T) {
		t.Parallel()
		store := NewMemoryStorage()
		seed(t, store, Notification{UserID: "u1", Type: TypeParentMessage, Priority: PriorityMedium, CreatedAt: noon.Add(-time.Hour)})

		d := newTestPipeline(store, noon).ShouldSend(context.Background(), Candidate{UserID: "u1", Type: TypeParentMessage})
		assert.False(t, d.Admit)
		assert.Equal(t, ReasonDuplicate, d.Reason)
		assert.Equal(t, "dedup", d.Gate)
	})

	t.Run("same type outside window is not a duplicate", func(t *testing.T) {
		t.Parallel()
		store := NewMemoryStorage()
		seed(t, store, Notification{UserID: "u1", Type: TypeParentMessage, Priority: PriorityInfo, CreatedAt: noon.Add(-7 * time.Hour)})

		d := newTestPipeline(store, noon).ShouldSend(context.Background(), Candidate{UserID: "u1", Type: TypeParentMessage})
		assert.True(t, d.Admit)
	})

	t.Run("different assignment is not a duplicate", func(t *testing.T) {
		t.Parallel()
		store := NewMemoryStorage()
		seed(t, store, Notification{
			UserID: "u1", Type: TypeAssignmentCreated, Priority: PriorityLow,
			Metadata: Metadata{"assignmentId": "a-1"}, CreatedAt: noon.Add(-time.Hour),
		})

		pipeline := newTestPipeline(store, noon)
		d := pipeline.ShouldSend(context.Background(), Candidate{UserID: "u1", Type: TypeAssignmentCreated, Metadata: Metadata{"assignmentId": "a-2"}})
		assert.True(t, d.Admit)

		d = pipeline.ShouldSend(context.Background(), Candidate{UserID: "u1", Type: TypeAssignmentCreated, Metadata: Metadata{"assignmentId": "a-1"}})
		assert.False(t, d.Admit)
		assert.Equal(t, ReasonDuplicate, d.Reason)
	})

	t.Run("quiet hours drop non-critical", func(t *testing.T) {
		t.Parallel()
		late := time.Date(2025, time.March, 10, 23, 0, 0, 0, time.UTC)
		d := newTestPipeline(NewMemoryStorage(), late).ShouldSend(context.Background(), Candidate{UserID: "u1", Type: TypeParentMessage})
		assert.False(t, d.Admit)
		assert.Equal(t, ReasonQuietHours, d.Reason)
		assert.Equal(t, "quiet_hours", d.Gate)
	})

	t.Run("quiet hours use the user's timezone", func(t *testing.T) {
		t.Parallel()
		store := NewMemoryStorage()
		prefs := DefaultPreferences("u1")
		prefs.Timezone = "Asia/Tokyo"
		store.SetPreferences(prefs)

		// 12:00 UTC is 21:00 in Tokyo, 14:00 UTC is 23:00.
		assert.True(t, newTestPipeline(store, noon).ShouldSend(context.Background(), Candidate{UserID: "u1", Type: TypeParentMessage}).Admit)
		d := newTestPipeline(store, noon.Add(2*time.Hour)).ShouldSend(context.Background(), Candidate{UserID: "u1", Type: TypeParentMessage})
		assert.Equal(t, ReasonQuietHours, d.Reason)
	})

	t.Run("critical ignores quiet hours", func(t *testing.T) {
		t.Parallel()
		late := time.Date(2025, time.March, 10, 3, 0, 0, 0, time.UTC)
		d := newTestPipeline(NewMemoryStorage(), late).ShouldSend(context.Background(), Candidate{UserID: "u1", Type: TypeEmergency})
		assert.True(t, d.Admit)
	})

	t.Run("first rejecting gate wins", func(t *testing.T) {
		t.Parallel()
		store := NewMemoryStorage()
		prefs := DefaultPreferences("u1")
		prefs.EnabledTypes = nil
		store.SetPreferences(prefs)
		seed(t, store, Notification{UserID: "u1", Type: TypeParentMessage, Priority: PriorityMedium, CreatedAt: noon.Add(-time.Minute)})

		late := time.Date(2025, time.March, 10, 23, 0, 0, 0, time.UTC)
		d := newTestPipeline(store, late).ShouldSend(context.Background(), Candidate{UserID: "u1", Type: TypeParentMessage})
		assert.Equal(t, ReasonTypeDisabled, d.Reason)
	})
}

func TestPipeline_FailOpen(t *testing.T) {
	t.Parallel()

	storeErr := errors.New("connection reset")

	t.Run("notification store errors admit with degraded lookups", func(t *testing.T) {
		t.Parallel()
		prefs := &MockPreferenceStore{}
		prefs.On("GetPreferences", mock.Anything, "u1").Return(nil, nil)
		store := &MockNotificationStore{}
		store.On("CountToday", mock.Anything, "u1", PriorityMedium, mock.Anything).Return(0, storeErr)
		store.On("FindRecent", mock.Anything, "u1", TypeParentMessage, noon.Add(-6*time.Hour)).Return(nil, storeErr)

		d := NewPipeline(DefaultPolicy(), prefs, store, WithPipelineClock(fixedClock(noon))).
			ShouldSend(context.Background(), Candidate{UserID: "u1", Type: TypeParentMessage})

		assert.True(t, d.Admit)
		require.Len(t, d.Degraded, 2)
		for _, err := range d.Degraded {
			assert.ErrorIs(t, err, ErrStoreUnavailable)
			assert.ErrorIs(t, err, storeErr)
		}
		store.AssertExpectations(t)
	})

	t.Run("preference lookup failure skips preference and quiet hours", func(t *testing.T) {
		t.Parallel()
		prefs := &MockPreferenceStore{}
		prefs.On("GetPreferences", mock.Anything, "u1").Return(nil, storeErr)
		store := NewMemoryStorage()

		late := time.Date(2025, time.March, 10, 23, 0, 0, 0, time.UTC)
		d := NewPipeline(DefaultPolicy(), prefs, store, WithPipelineClock(fixedClock(late))).
			ShouldSend(context.Background(), Candidate{UserID: "u1", Type: TypeParentMessage})

		assert.True(t, d.Admit)
		assert.NotEmpty(t, d.Degraded)
		assert.ErrorIs(t, d.Degraded[0], ErrStoreUnavailable)
	})

	t.Run("store errors never override a later rejection", func(t *testing.T) {
		t.Parallel()
		prefs := &MockPreferenceStore{}
		prefs.On("GetPreferences", mock.Anything, "u1").Return(nil, nil)
		store := &MockNotificationStore{}
		store.On("CountToday", mock.Anything, "u1", PriorityMedium, mock.Anything).Return(0, storeErr)
		store.On("FindRecent", mock.Anything, "u1", TypeParentMessage, mock.Anything).
			Return(&Notification{UserID: "u1", Type: TypeParentMessage}, nil)

		d := NewPipeline(DefaultPolicy(), prefs, store, WithPipelineClock(fixedClock(noon))).
			ShouldSend(context.Background(), Candidate{UserID: "u1", Type: TypeParentMessage})

		assert.False(t, d.Admit)
		assert.Equal(t, ReasonDuplicate, d.Reason)
		assert.Len(t, d.Degraded, 1)
	})
}

func TestIsDuplicate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		c    Candidate
		prev Notification
		want bool
	}{
		{
			name: "same assignment",
			c:    Candidate{Type: TypeAssignmentDue, Metadata: Metadata{"assignmentId": "a1"}},
			prev: Notification{Type: TypeAssignmentDue, Metadata: Metadata{"assignmentId": "a1"}},
			want: true,
		},
		{
			name: "different assignment",
			c:    Candidate{Type: TypeAssignmentDue, Metadata: Metadata{"assignmentId": "a1"}},
			prev: Notification{Type: TypeAssignmentDue, Metadata: Metadata{"assignmentId": "a2"}},
			want: false,
		},
		{
			name: "numeric and string ids compare equal",
			c:    Candidate{Type: TypeAssignmentCreated, Metadata: Metadata{"assignmentId": 42}},
			prev: Notification{Type: TypeAssignmentCreated, Metadata: Metadata{"assignmentId": "42"}},
			want: true,
		},
		{
			name: "both ids absent",
			c:    Candidate{Type: TypeAssignmentDue},
			prev: Notification{Type: TypeAssignmentDue},
			want: true,
		},
		{
			name: "one id absent",
			c:    Candidate{Type: TypeAssignmentDue, Metadata: Metadata{"assignmentId": "a1"}},
			prev: Notification{Type: TypeAssignmentDue},
			want: false,
		},
		{
			name: "same submission",
			c:    Candidate{Type: TypeGradePublished, Metadata: Metadata{"submissionId": "s1"}},
			prev: Notification{Type: TypeGradePublished, Metadata: Metadata{"submissionId": "s1"}},
			want: true,
		},
		{
			name: "different submission",
			c:    Candidate{Type: TypeGradePublished, Metadata: Metadata{"submissionId": "s1"}},
			prev: Notification{Type: TypeGradePublished, Metadata: Metadata{"submissionId": "s2"}},
			want: false,
		},
		{
			name: "other types always duplicate",
			c:    Candidate{Type: TypePaymentDue, Metadata: Metadata{"invoice": 1}},
			prev: Notification{Type: TypePaymentDue, Metadata: Metadata{"invoice": 2}},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, IsDuplicate(tt.c, tt.prev))
		})
	}
}

func TestPreferences_InQuietHours(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		start, end int
		hour       int
		want       bool
	}{
		{"wraparound late evening", 22, 7, 23, true},
		{"wraparound at start", 22, 7, 22, true},
		{"wraparound early morning", 22, 7, 3, true},
		{"wraparound at end", 22, 7, 7, false},
		{"wraparound daytime", 22, 7, 12, false},
		{"wraparound hour six", 22, 7, 6, true},
		{"school day hour ten", 9, 17, 10, true},
		{"school day evening", 9, 17, 20, false},
		{"same day window inside", 13, 15, 14, true},
		{"same day window end", 13, 15, 15, false},
		{"same day window before", 13, 15, 12, false},
		{"equal bounds is empty", 8, 8, 8, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := Preferences{QuietHoursStart: tt.start, QuietHoursEnd: tt.end}
			assert.Equal(t, tt.want, p.InQuietHours(tt.hour))
		})
	}
}

func TestDefaultPreferences(t *testing.T) {
	t.Parallel()

	p := DefaultPreferences("u1")
	assert.True(t, p.Email)
	assert.True(t, p.Push)
	assert.True(t, p.InApp)
	assert.False(t, p.SMS)
	assert.Equal(t, 22, p.QuietHoursStart)
	assert.Equal(t, 7, p.QuietHoursEnd)
	assert.True(t, p.Digest.Enabled)
	assert.Equal(t, FrequencyDaily, p.Digest.Frequency)
	for _, typ := range KnownTypes {
		assert.True(t, p.TypeEnabled(typ), typ)
	}

	hour, minute := DigestSettings{Time: "bogus"}.Clock()
	assert.Equal(t, 8, hour)
	assert.Equal(t, 0, minute)
}
