package notifications

import (
	"fmt"
	"math"
	"slices"
	"time"
)

// Unlimited marks a priority without a daily cap.
const Unlimited = math.MaxInt

// Policy is the immutable admission configuration shared by the classifier and gates.
// Build it with DefaultPolicy or PolicyConfig.Policy and never mutate it afterwards.
type Policy struct {
	dailyCaps             map[Priority]int
	dedupWindow           time.Duration
	preferenceBypassTypes []string
	rules                 []classificationRule
}

// DefaultPolicy returns the platform defaults:
// CRITICAL unlimited, HIGH 10, MEDIUM 5, LOW 3, INFO 2 per user per day, 6h dedup window.
func DefaultPolicy() Policy {
	return Policy{
		dailyCaps: map[Priority]int{
			PriorityCritical: Unlimited,
			PriorityHigh:     10,
			PriorityMedium:   5,
			PriorityLow:      3,
			PriorityInfo:     2,
		},
		dedupWindow:           6 * time.Hour,
		preferenceBypassTypes: []string{TypeSafetyAlert, TypeEmergency, TypeRiskAlert},
		rules:                 defaultClassificationRules(),
	}
}

// PolicyConfig exposes the tunable parts of Policy through the environment.
type PolicyConfig struct {
	CapHigh     int           `env:"NOTIFY_CAP_HIGH" envDefault:"10"`
	CapMedium   int           `env:"NOTIFY_CAP_MEDIUM" envDefault:"5"`
	CapLow      int           `env:"NOTIFY_CAP_LOW" envDefault:"3"`
	CapInfo     int           `env:"NOTIFY_CAP_INFO" envDefault:"2"`
	DedupWindow time.Duration `env:"NOTIFY_DEDUP_WINDOW" envDefault:"6h"`
}

// Policy builds and validates a Policy from the config.
func (c PolicyConfig) Policy() (Policy, error) {
	p := DefaultPolicy()
	p.dailyCaps = map[Priority]int{
		PriorityCritical: Unlimited,
		PriorityHigh:     c.CapHigh,
		PriorityMedium:   c.CapMedium,
		PriorityLow:      c.CapLow,
		PriorityInfo:     c.CapInfo,
	}
	if c.DedupWindow > 0 {
		p.dedupWindow = c.DedupWindow
	}
	if err := p.Validate(); err != nil {
		return Policy{}, err
	}
	return p, nil
}

// Validate checks that caps never decrease with importance and that CRITICAL is unlimited.
func (p Policy) Validate() error {
	if p.dailyCaps[PriorityCritical] != Unlimited {
		return fmt.Errorf("%w: CRITICAL must be unlimited", ErrInvalidPolicy)
	}
	prev := -1
	for i := len(Priorities) - 1; i >= 0; i-- {
		level := Priorities[i]
		limit, ok := p.dailyCaps[level]
		if !ok || limit < 0 {
			return fmt.Errorf("%w: missing or negative cap for %s", ErrInvalidPolicy, level)
		}
		if limit < prev {
			return fmt.Errorf("%w: cap for %s (%d) is below a less important level (%d)", ErrInvalidPolicy, level, limit, prev)
		}
		prev = limit
	}
	if p.dedupWindow <= 0 {
		return fmt.Errorf("%w: dedup window must be positive", ErrInvalidPolicy)
	}
	return nil
}

// DailyCap returns the per-user daily send cap for a priority.
func (p Policy) DailyCap(level Priority) int {
	limit, ok := p.dailyCaps[level]
	if !ok {
		return 0
	}
	return limit
}

// DedupWindow is the trailing span within which a same-type notification counts as a duplicate.
func (p Policy) DedupWindow() time.Duration {
	return p.dedupWindow
}

// BypassesPreferences reports whether a type ignores the user's enabled-types list.
func (p Policy) BypassesPreferences(notifType string) bool {
	return slices.Contains(p.preferenceBypassTypes, notifType)
}

// Validate lets config.Load reject an inconsistent policy at startup.
func (c *PolicyConfig) Validate() error {
	_, err := c.Policy()
	return err
}
