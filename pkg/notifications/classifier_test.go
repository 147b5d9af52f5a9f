package notifications

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifier_Classify(t *testing.T) {
	t.Parallel()

	c := NewClassifier(DefaultPolicy())

	tests := []struct {
		name     string
		notif    string
		metadata Metadata
		want     Priority
	}{
		{"safety alert", TypeSafetyAlert, nil, PriorityCritical},
		{"emergency", TypeEmergency, Metadata{"anything": 1}, PriorityCritical},
		{"critical risk", TypeRiskAlert, Metadata{"riskLevel": "CRITICAL"}, PriorityCritical},
		{"non-critical risk falls through", TypeRiskAlert, Metadata{"riskLevel": "HIGH"}, PriorityInfo},
		{"risk without level", TypeRiskAlert, nil, PriorityInfo},

		{"assignment due within a day", TypeAssignmentDue, Metadata{"hoursRemaining": 24}, PriorityHigh},
		{"assignment due within three days", TypeAssignmentDue, Metadata{"hoursRemaining": 48}, PriorityMedium},
		{"assignment due at 72h boundary", TypeAssignmentDue, Metadata{"hoursRemaining": 72}, PriorityMedium},
		{"assignment due later", TypeAssignmentDue, Metadata{"hoursRemaining": 100}, PriorityInfo},
		{"assignment due without hours", TypeAssignmentDue, nil, PriorityInfo},
		{"assignment due with non-numeric hours", TypeAssignmentDue, Metadata{"hoursRemaining": "soon"}, PriorityInfo},
		{"assignment due with numeric string", TypeAssignmentDue, Metadata{"hoursRemaining": "12"}, PriorityHigh},

		{"failing grade", TypeGradePublished, Metadata{"grade": 59.5}, PriorityHigh},
		{"passing grade", TypeGradePublished, Metadata{"grade": 60}, PriorityMedium},
		{"grade without value", TypeGradePublished, nil, PriorityMedium},

		{"low attendance", TypeAttendanceWarning, Metadata{"attendanceRate": 74}, PriorityHigh},
		{"attendance at threshold", TypeAttendanceWarning, Metadata{"attendanceRate": 75}, PriorityInfo},

		{"payment long overdue", TypePaymentDue, Metadata{"daysOverdue": 8}, PriorityHigh},
		{"payment recently overdue", TypePaymentDue, Metadata{"daysOverdue": 7}, PriorityInfo},

		{"event tomorrow", TypeEventReminder, Metadata{"daysUntil": 1}, PriorityMedium},
		{"event this week", TypeEventReminder, Metadata{"daysUntil": 5}, PriorityLow},
		{"event far away", TypeEventReminder, Metadata{"daysUntil": 30}, PriorityInfo},

		{"parent message", TypeParentMessage, nil, PriorityMedium},
		{"assignment created", TypeAssignmentCreated, nil, PriorityLow},
		{"resource recommendation", TypeResourceRecommendation, nil, PriorityLow},
		{"unknown type", "CLUB_NEWSLETTER", Metadata{"grade": 10}, PriorityInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, c.Classify(tt.notif, tt.metadata))
		})
	}
}

func TestPriority(t *testing.T) {
	t.Parallel()

	t.Run("ordering", func(t *testing.T) {
		assert.Greater(t, PriorityCritical, PriorityHigh)
		assert.Greater(t, PriorityHigh, PriorityMedium)
		assert.Greater(t, PriorityMedium, PriorityLow)
		assert.Greater(t, PriorityLow, PriorityInfo)
	})

	t.Run("parse", func(t *testing.T) {
		p, err := ParsePriority("high")
		assert.NoError(t, err)
		assert.Equal(t, PriorityHigh, p)

		_, err = ParsePriority("urgent")
		assert.ErrorIs(t, err, ErrInvalidCandidate)
	})

	t.Run("text round trip", func(t *testing.T) {
		b, err := PriorityLow.MarshalText()
		assert.NoError(t, err)
		assert.Equal(t, "LOW", string(b))

		var p Priority
		assert.NoError(t, p.UnmarshalText([]byte("critical")))
		assert.Equal(t, PriorityCritical, p)

		_, err = Priority(9).MarshalText()
		assert.Error(t, err)
	})

	t.Run("digestible", func(t *testing.T) {
		assert.True(t, PriorityLow.Digestible())
		assert.True(t, PriorityInfo.Digestible())
		assert.False(t, PriorityMedium.Digestible())
		assert.False(t, PriorityCritical.Digestible())
	})
}

func TestPolicy(t *testing.T) {
	t.Parallel()

	t.Run("defaults", func(t *testing.T) {
		p := DefaultPolicy()
		assert.NoError(t, p.Validate())
		assert.Equal(t, Unlimited, p.DailyCap(PriorityCritical))
		assert.Equal(t, 10, p.DailyCap(PriorityHigh))
		assert.Equal(t, 5, p.DailyCap(PriorityMedium))
		assert.Equal(t, 3, p.DailyCap(PriorityLow))
		assert.Equal(t, 2, p.DailyCap(PriorityInfo))
		assert.True(t, p.BypassesPreferences(TypeRiskAlert))
		assert.False(t, p.BypassesPreferences(TypeParentMessage))
	})

	t.Run("config", func(t *testing.T) {
		cfg := PolicyConfig{CapHigh: 20, CapMedium: 8, CapLow: 4, CapInfo: 1, DedupWindow: 0}
		p, err := cfg.Policy()
		assert.NoError(t, err)
		assert.Equal(t, 20, p.DailyCap(PriorityHigh))
		assert.Equal(t, DefaultPolicy().DedupWindow(), p.DedupWindow())
	})

	t.Run("caps must not decrease with importance", func(t *testing.T) {
		cfg := PolicyConfig{CapHigh: 2, CapMedium: 5, CapLow: 3, CapInfo: 2}
		_, err := cfg.Policy()
		assert.ErrorIs(t, err, ErrInvalidPolicy)
		assert.ErrorIs(t, (&cfg).Validate(), ErrInvalidPolicy)
	})

	t.Run("negative cap", func(t *testing.T) {
		cfg := PolicyConfig{CapHigh: 10, CapMedium: 5, CapLow: 3, CapInfo: -1}
		_, err := cfg.Policy()
		assert.ErrorIs(t, err, ErrInvalidPolicy)
	})
}
