package notifications

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Notification types known to the classifier and the default preference record.
const (
	TypeSafetyAlert            = "SAFETY_ALERT"
	TypeEmergency              = "EMERGENCY"
	TypeRiskAlert              = "RISK_ALERT"
	TypeAssignmentDue          = "ASSIGNMENT_DUE"
	TypeAssignmentCreated      = "ASSIGNMENT_CREATED"
	TypeGradePublished         = "GRADE_PUBLISHED"
	TypeAttendanceWarning      = "ATTENDANCE_WARNING"
	TypePaymentDue             = "PAYMENT_DUE"
	TypeEventReminder          = "EVENT_REMINDER"
	TypeParentMessage          = "PARENT_MESSAGE"
	TypeResourceRecommendation = "RESOURCE_RECOMMENDATION"
)

// KnownTypes lists every notification type the platform emits.
var KnownTypes = []string{
	TypeSafetyAlert,
	TypeEmergency,
	TypeRiskAlert,
	TypeAssignmentDue,
	TypeAssignmentCreated,
	TypeGradePublished,
	TypeAttendanceWarning,
	TypePaymentDue,
	TypeEventReminder,
	TypeParentMessage,
	TypeResourceRecommendation,
}

// Channel is a delivery channel.
type Channel string

const (
	ChannelInApp Channel = "IN_APP"
	ChannelEmail Channel = "EMAIL"
	ChannelSMS   Channel = "SMS"
	ChannelPush  Channel = "PUSH"
)

// Valid reports whether c is a known channel.
func (c Channel) Valid() bool {
	switch c {
	case ChannelInApp, ChannelEmail, ChannelSMS, ChannelPush:
		return true
	}
	return false
}

// Channels is a set of delivery channels, kept as a sorted, de-duplicated slice.
type Channels []Channel

// NewChannels builds a normalised channel set.
func NewChannels(cs ...Channel) Channels {
	out := make(Channels, 0, len(cs))
	for _, c := range cs {
		c = Channel(strings.ToUpper(string(c)))
		if !slices.Contains(out, c) {
			out = append(out, c)
		}
	}
	slices.Sort(out)
	return out
}

// Has reports whether the set contains c.
func (cs Channels) Has(c Channel) bool {
	return slices.Contains(cs, c)
}

// Strings returns the channel names.
func (cs Channels) Strings() []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = string(c)
	}
	return out
}

// Candidate is an unpersisted notification under evaluation.
type Candidate struct {
	UserID           string    `json:"user_id"`
	SchoolID         string    `json:"school_id,omitempty"`
	Type             string    `json:"type"`
	ExplicitPriority *Priority `json:"priority,omitempty"`
	Title            string    `json:"title"`
	Message          string    `json:"message"`
	Metadata         Metadata  `json:"metadata,omitempty"`
	Channels         Channels  `json:"channels"`
}

// Validate checks the fields every candidate needs.
func (c Candidate) Validate() error {
	if c.UserID == "" {
		return fmt.Errorf("%w: user id is required", ErrInvalidCandidate)
	}
	if c.Type == "" {
		return fmt.Errorf("%w: type is required", ErrInvalidCandidate)
	}
	for _, ch := range c.Channels {
		if !ch.Valid() {
			return fmt.Errorf("%w: unknown channel %q", ErrInvalidCandidate, ch)
		}
	}
	if c.ExplicitPriority != nil && !c.ExplicitPriority.Valid() {
		return fmt.Errorf("%w: invalid priority %d", ErrInvalidCandidate, int(*c.ExplicitPriority))
	}
	return nil
}

// Notification is the persisted, append-only record of an admitted candidate.
// Only Read and ReadAt ever change after creation.
type Notification struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	SchoolID  string     `json:"school_id,omitempty"`
	Type      string     `json:"type"`
	Title     string     `json:"title"`
	Message   string     `json:"message"`
	Priority  Priority   `json:"priority"`
	Metadata  Metadata   `json:"metadata,omitempty"`
	Channels  Channels   `json:"channels"`
	Read      bool       `json:"read"`
	ReadAt    *time.Time `json:"read_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// MarkAsRead marks the notification as read at the given time.
func (n *Notification) MarkAsRead(at time.Time) {
	n.Read = true
	n.ReadAt = &at
}

// DeliveryResult records which channels accepted the notification.
type DeliveryResult struct {
	InApp bool `json:"in_app"`
	Email bool `json:"email"`
	SMS   bool `json:"sms"`
	Push  bool `json:"push"`
}

func (r *DeliveryResult) set(c Channel, ok bool) {
	switch c {
	case ChannelInApp:
		r.InApp = ok
	case ChannelEmail:
		r.Email = ok
	case ChannelSMS:
		r.SMS = ok
	case ChannelPush:
		r.Push = ok
	}
}

// Event is a tenant-scoped business event that rules expand into candidates.
type Event struct {
	SchoolID   string   `json:"school_id"`
	EventType  string   `json:"event_type"`
	Recipients []string `json:"recipients"`
	Metadata   Metadata `json:"metadata,omitempty"`
}

// Contact holds a user's channel destinations.
type Contact struct {
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
	PushToken string `json:"push_token,omitempty"`
}
