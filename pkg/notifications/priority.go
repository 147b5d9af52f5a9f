package notifications

import (
	"fmt"
	"strings"
)

// Priority represents the notification priority level.
// Higher values are more important.
type Priority int

const (
	PriorityInfo     Priority = 1
	PriorityLow      Priority = 2
	PriorityMedium   Priority = 3
	PriorityHigh     Priority = 4
	PriorityCritical Priority = 5
)

// Priorities lists every level from most to least important.
var Priorities = []Priority{PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow, PriorityInfo}

func (p Priority) String() string {
	switch p {
	case PriorityCritical:
		return "CRITICAL"
	case PriorityHigh:
		return "HIGH"
	case PriorityMedium:
		return "MEDIUM"
	case PriorityLow:
		return "LOW"
	case PriorityInfo:
		return "INFO"
	default:
		return fmt.Sprintf("Priority(%d)", int(p))
	}
}

// Valid reports whether p is one of the five defined levels.
func (p Priority) Valid() bool {
	return p >= PriorityInfo && p <= PriorityCritical
}

// Digestible reports whether notifications of this priority may be batched into digests.
func (p Priority) Digestible() bool {
	return p == PriorityLow || p == PriorityInfo
}

// ParsePriority converts a level name (case-insensitive) to a Priority.
func ParsePriority(s string) (Priority, error) {
	for _, p := range Priorities {
		if strings.EqualFold(s, p.String()) {
			return p, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown priority %q", ErrInvalidCandidate, s)
}

func (p Priority) MarshalText() ([]byte, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("%w: invalid priority %d", ErrInvalidCandidate, int(p))
	}
	return []byte(p.String()), nil
}

func (p *Priority) UnmarshalText(text []byte) error {
	v, err := ParsePriority(string(text))
	if err != nil {
		return err
	}
	*p = v
	return nil
}
