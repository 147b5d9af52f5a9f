package yamlrules

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dmitrymomot/schoolnotify/pkg/notifications"
)

// ErrInvalidRule is returned for rule entries that cannot be used.
var ErrInvalidRule = errors.New("invalid rule definition")

type file struct {
	Rules []ruleSpec `yaml:"rules"`
}

type ruleSpec struct {
	ID               string         `yaml:"id"`
	SchoolID         string         `yaml:"school_id"`
	EventType        string         `yaml:"event_type"`
	NotificationType string         `yaml:"notification_type"`
	Conditions       map[string]any `yaml:"conditions"`
	Title            string         `yaml:"title"`
	Message          string         `yaml:"message"`
	Channels         []string       `yaml:"channels"`
	Active           *bool          `yaml:"active"`
	Priority         int            `yaml:"priority"`
}

func (s ruleSpec) rule(index int) (notifications.Rule, error) {
	if s.SchoolID == "" || s.EventType == "" || s.NotificationType == "" {
		return notifications.Rule{}, fmt.Errorf("%w: rule #%d needs school_id, event_type and notification_type", ErrInvalidRule, index)
	}

	id := s.ID
	if id == "" {
		id = fmt.Sprintf("%s:%s:%d", s.SchoolID, s.EventType, index)
	}

	tree := notifications.ParseConditions(s.Conditions)
	if !tree.Valid() {
		return notifications.Rule{}, fmt.Errorf("%w: rule %s uses an unknown condition operator", ErrInvalidRule, id)
	}

	var channels notifications.Channels
	if len(s.Channels) > 0 {
		cs := make([]notifications.Channel, len(s.Channels))
		for i, c := range s.Channels {
			cs[i] = notifications.Channel(strings.ToUpper(c))
			if !cs[i].Valid() {
				return notifications.Rule{}, fmt.Errorf("%w: rule %s has unknown channel %q", ErrInvalidRule, id, c)
			}
		}
		channels = notifications.NewChannels(cs...)
	}

	active := true
	if s.Active != nil {
		active = *s.Active
	}

	return notifications.Rule{
		ID:               id,
		SchoolID:         s.SchoolID,
		EventType:        s.EventType,
		NotificationType: strings.ToUpper(s.NotificationType),
		Conditions:       tree,
		TitleTemplate:    s.Title,
		MessageTemplate:  s.Message,
		Channels:         channels,
		Active:           active,
		Priority:         s.Priority,
	}, nil
}

// Parse decodes a rules document.
func Parse(data []byte) ([]notifications.Rule, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.Join(ErrInvalidRule, err)
	}

	rules := make([]notifications.Rule, 0, len(f.Rules))
	for i, spec := range f.Rules {
		r, err := spec.rule(i)
		if err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	return rules, nil
}

// Store serves rules loaded once at startup.
type Store struct {
	rules map[string][]notifications.Rule // "school|event" -> active rules, highest Priority first
}

// NewStore indexes rules for lookup. Inactive rules are dropped.
func NewStore(rules []notifications.Rule) *Store {
	s := &Store{rules: make(map[string][]notifications.Rule)}
	for _, r := range rules {
		if !r.Active {
			continue
		}
		k := key(r.SchoolID, r.EventType)
		s.rules[k] = append(s.rules[k], r)
	}
	for _, rs := range s.rules {
		notifications.SortRules(rs)
	}
	return s
}

// Load reads and parses the file at path.
func Load(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	rules, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return NewStore(rules), nil
}

var _ notifications.RuleStore = (*Store)(nil)

func (s *Store) ActiveRulesFor(_ context.Context, schoolID, eventType string) ([]notifications.Rule, error) {
	rs := s.rules[key(schoolID, eventType)]
	out := make([]notifications.Rule, len(rs))
	copy(out, rs)
	return out, nil
}

func key(schoolID, eventType string) string {
	return schoolID + "|" + eventType
}
