package mongorules

import (
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/dmitrymomot/schoolnotify/pkg/notifications"
)

type ruleDocument struct {
	ID               bson.RawValue `bson:"_id,omitempty"`
	SchoolID         string        `bson:"school_id"`
	EventType        string        `bson:"event_type"`
	NotificationType string        `bson:"notification_type"`
	Conditions       bson.D        `bson:"conditions,omitempty"`
	TitleTemplate    string        `bson:"title_template"`
	MessageTemplate  string        `bson:"message_template"`
	Channels         []string      `bson:"channels,omitempty"`
	Active           bool          `bson:"active"`
	Priority         int           `bson:"priority"`
}

// writeDocument is the shape written by SaveRule. Conditions use the
// {key: {op: value}} form produced by ConditionTree.Document.
type writeDocument struct {
	ID               string         `bson:"_id"`
	SchoolID         string         `bson:"school_id"`
	EventType        string         `bson:"event_type"`
	NotificationType string         `bson:"notification_type"`
	Conditions       map[string]any `bson:"conditions"`
	TitleTemplate    string         `bson:"title_template"`
	MessageTemplate  string         `bson:"message_template"`
	Channels         []string       `bson:"channels,omitempty"`
	Active           bool           `bson:"active"`
	Priority         int            `bson:"priority"`
}

func newRuleDocument(r notifications.Rule) writeDocument {
	return writeDocument{
		ID:               r.ID,
		SchoolID:         r.SchoolID,
		EventType:        r.EventType,
		NotificationType: r.NotificationType,
		Conditions:       r.Conditions.Document(),
		TitleTemplate:    r.TitleTemplate,
		MessageTemplate:  r.MessageTemplate,
		Channels:         r.Channels.Strings(),
		Active:           r.Active,
		Priority:         r.Priority,
	}
}

func (d ruleDocument) rule() (notifications.Rule, error) {
	id, err := documentID(d.ID)
	if err != nil {
		return notifications.Rule{}, err
	}

	r := notifications.Rule{
		ID:               id,
		SchoolID:         d.SchoolID,
		EventType:        d.EventType,
		NotificationType: d.NotificationType,
		Conditions:       notifications.ParseConditions(normalize(d.Conditions).(map[string]any)),
		TitleTemplate:    d.TitleTemplate,
		MessageTemplate:  d.MessageTemplate,
		Active:           d.Active,
		Priority:         d.Priority,
	}
	if len(d.Channels) > 0 {
		cs := make([]notifications.Channel, len(d.Channels))
		for i, c := range d.Channels {
			cs[i] = notifications.Channel(c)
		}
		r.Channels = notifications.NewChannels(cs...)
	}
	return r, nil
}

func documentID(v bson.RawValue) (string, error) {
	if s, ok := v.StringValueOK(); ok {
		return s, nil
	}
	if oid, ok := v.ObjectIDOK(); ok {
		return oid.Hex(), nil
	}
	if v.Type == 0 {
		return "", nil
	}
	return "", fmt.Errorf("%w: unsupported _id type %s", ErrInvalidRuleDocument, v.Type)
}

// normalize converts driver document types into the map and slice shapes
// the condition parser understands.
func normalize(x any) any {
	switch t := x.(type) {
	case bson.D:
		out := make(map[string]any, len(t))
		for _, e := range t {
			out[e.Key] = normalize(e.Value)
		}
		return out
	case bson.M:
		out := make(map[string]any, len(t))
		for k, v := range t {
			out[k] = normalize(v)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, v := range t {
			out[k] = normalize(v)
		}
		return out
	case bson.A:
		out := make([]any, len(t))
		for i, v := range t {
			out[i] = normalize(v)
		}
		return out
	case nil:
		return nil
	default:
		return t
	}
}
