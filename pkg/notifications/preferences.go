package notifications

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Frequency is the digest cadence.
type Frequency string

const (
	FrequencyDaily  Frequency = "DAILY"
	FrequencyWeekly Frequency = "WEEKLY"
)

// Window returns the look-back span of a digest with this cadence.
func (f Frequency) Window() (time.Duration, error) {
	switch Frequency(strings.ToUpper(string(f))) {
	case FrequencyDaily:
		return 24 * time.Hour, nil
	case FrequencyWeekly:
		return 7 * 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("%w: unknown digest frequency %q", ErrInvalidCandidate, f)
	}
}

// DigestSettings configures digest batching for a user.
type DigestSettings struct {
	Enabled   bool      `json:"enabled"`
	Frequency Frequency `json:"frequency"`
	Time      string    `json:"time"` // HH:MM, user's local time
}

// Clock parses Time. Malformed values fall back to 08:00.
func (d DigestSettings) Clock() (hour, minute int) {
	t, err := time.Parse("15:04", d.Time)
	if err != nil {
		return 8, 0
	}
	return t.Hour(), t.Minute()
}

// Preferences is a user's notification configuration. The core only reads it.
type Preferences struct {
	UserID          string         `json:"user_id"`
	Email           bool           `json:"email"`
	Push            bool           `json:"push"`
	SMS             bool           `json:"sms"`
	InApp           bool           `json:"in_app"`
	QuietHoursStart int            `json:"quiet_hours_start"`
	QuietHoursEnd   int            `json:"quiet_hours_end"`
	EnabledTypes    []string       `json:"enabled_types"`
	Digest          DigestSettings `json:"digest"`
	Timezone        string         `json:"timezone,omitempty"`
}

// DefaultPreferences is applied whenever a user has no stored record:
// every channel except SMS, quiet hours 22:00-07:00, daily digest, all known types.
func DefaultPreferences(userID string) Preferences {
	return Preferences{
		UserID:          userID,
		Email:           true,
		Push:            true,
		SMS:             false,
		InApp:           true,
		QuietHoursStart: 22,
		QuietHoursEnd:   7,
		EnabledTypes:    slices.Clone(KnownTypes),
		Digest: DigestSettings{
			Enabled:   true,
			Frequency: FrequencyDaily,
			Time:      "08:00",
		},
	}
}

// TypeEnabled reports whether notifications of type t are enabled.
func (p Preferences) TypeEnabled(t string) bool {
	return slices.Contains(p.EnabledTypes, t)
}

// Location resolves the user's timezone, falling back to fallback when unset or unknown.
func (p Preferences) Location(fallback *time.Location) *time.Location {
	if p.Timezone == "" {
		return fallback
	}
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return fallback
	}
	return loc
}

// InQuietHours reports whether hour falls inside [QuietHoursStart, QuietHoursEnd).
// A window whose start is after its end spans midnight; equal bounds mean no window.
func (p Preferences) InQuietHours(hour int) bool {
	start, end := p.QuietHoursStart, p.QuietHoursEnd
	if start > end {
		return hour >= start || hour < end
	}
	return hour >= start && hour < end
}
