package notifications

import (
	"context"
	"errors"
	"log/slog"
	"sort"

	"github.com/dmitrymomot/schoolnotify/pkg/logger"
)

// DefaultRuleChannels is used for rules that do not name their channels.
var DefaultRuleChannels = Channels{ChannelEmail, ChannelInApp}

// Rule turns a tenant business event into notifications. Rules are managed by
// tenant admins; the core only reads them.
type Rule struct {
	ID               string        `json:"id"`
	SchoolID         string        `json:"school_id"`
	EventType        string        `json:"event_type"`
	NotificationType string        `json:"notification_type"`
	Conditions       ConditionTree `json:"conditions"`
	TitleTemplate    string        `json:"title_template"`
	MessageTemplate  string        `json:"message_template"`
	Channels         Channels      `json:"channels,omitempty"`
	Active           bool          `json:"active"`
	Priority         int           `json:"priority"` // ordering hint, higher first
}

// SortRules orders rules by Priority, highest first, keeping store order for ties.
func SortRules(rules []Rule) {
	sort.SliceStable(rules, func(i, j int) bool { return rules[i].Priority > rules[j].Priority })
}

// RuleEvaluator expands events into candidates.
type RuleEvaluator struct {
	rules      RuleStore
	classifier *Classifier
	logger     *slog.Logger
}

// RuleEvaluatorOption configures a RuleEvaluator.
type RuleEvaluatorOption func(*RuleEvaluator)

// WithRuleEvaluatorLogger sets the logger for the RuleEvaluator.
func WithRuleEvaluatorLogger(logger *slog.Logger) RuleEvaluatorOption {
	return func(e *RuleEvaluator) {
		e.logger = logger
	}
}

// NewRuleEvaluator creates a rule evaluator.
func NewRuleEvaluator(policy Policy, rules RuleStore, opts ...RuleEvaluatorOption) *RuleEvaluator {
	e := &RuleEvaluator{
		rules:      rules,
		classifier: NewClassifier(policy),
		logger:     slog.Default(),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Expand returns one candidate per matching rule and recipient. The candidate
// priority comes from the classifier over the rule's notification type.
func (e *RuleEvaluator) Expand(ctx context.Context, event Event) ([]Candidate, error) {
	rules, err := e.rules.ActiveRulesFor(ctx, event.SchoolID, event.EventType)
	if err != nil {
		return nil, errors.Join(ErrStoreUnavailable, err)
	}

	var candidates []Candidate
	for _, rule := range rules {
		if !rule.Active {
			continue
		}
		if !rule.Conditions.Valid() {
			e.logger.LogAttrs(ctx, slog.LevelWarn, "Skipping rule with unknown condition operator",
				slog.String("rule_id", rule.ID),
				logger.SchoolID(event.SchoolID),
				logger.EventType(event.EventType),
			)
			continue
		}
		if !rule.Conditions.Match(event.Metadata) {
			continue
		}

		priority := e.classifier.Classify(rule.NotificationType, event.Metadata)
		channels := rule.Channels
		if len(channels) == 0 {
			channels = DefaultRuleChannels
		}
		title := RenderTemplate(rule.TitleTemplate, event.Metadata)
		message := RenderTemplate(rule.MessageTemplate, event.Metadata)

		for _, userID := range event.Recipients {
			p := priority
			candidates = append(candidates, Candidate{
				UserID:           userID,
				SchoolID:         event.SchoolID,
				Type:             rule.NotificationType,
				ExplicitPriority: &p,
				Title:            title,
				Message:          message,
				Metadata:         event.Metadata.Clone(),
				Channels:         NewChannels(channels...),
			})
		}
	}

	return candidates, nil
}
