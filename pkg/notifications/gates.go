package notifications

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Reason explains an admission decision.
type Reason string

const (
	ReasonAdmitted     Reason = "admitted"
	ReasonTypeDisabled Reason = "type_disabled"
	ReasonDailyCap     Reason = "daily_cap_reached"
	ReasonDuplicate    Reason = "duplicate"
	ReasonQuietHours   Reason = "quiet_hours"
	ReasonInvalid      Reason = "invalid_candidate"
)

// Verdict is a single gate's answer. A gate whose lookup failed answers
// Allowed=true with Err set, so callers can tell a fail-open pass from a clean one.
type Verdict struct {
	Allowed bool
	Reason  Reason
	Err     error
}

func allow() Verdict { return Verdict{Allowed: true, Reason: ReasonAdmitted} }
func allowDespite(err error) Verdict { return Verdict{Allowed: true, Reason: ReasonAdmitted, Err: err} }
func reject(r Reason) Verdict { return Verdict{Allowed: false, Reason: r} }

// Admission is the input every gate sees.
type Admission struct {
	Candidate Candidate
	Priority  Priority
	Now       time.Time
	Stored    *Preferences // nil when the user has no record
	PrefsErr  error        // set when the preference lookup failed
}

// Preferences returns the stored record or the documented defaults.
func (a Admission) Preferences() Preferences {
	if a.Stored != nil {
		return *a.Stored
	}
	return DefaultPreferences(a.Candidate.UserID)
}

// LocalNow is Now in the user's timezone.
func (a Admission) LocalNow() time.Time {
	return a.Now.In(a.Preferences().Location(a.Now.Location()))
}

// Gate is a single admit/reject policy check.
type Gate interface {
	Name() string
	Check(ctx context.Context, a Admission) Verdict
}

// PreferenceGate rejects types the user disabled. Bypass types always pass.
type PreferenceGate struct {
	policy Policy
}

func NewPreferenceGate(policy Policy) *PreferenceGate {
	return &PreferenceGate{policy: policy}
}

func (g *PreferenceGate) Name() string { return "preference" }

func (g *PreferenceGate) Check(_ context.Context, a Admission) Verdict {
	if g.policy.BypassesPreferences(a.Candidate.Type) || a.Priority == PriorityCritical {
		return allow()
	}
	if a.PrefsErr != nil {
		return allowDespite(a.PrefsErr)
	}
	if a.Stored == nil {
		return allow()
	}
	if !a.Stored.TypeEnabled(a.Candidate.Type) {
		return reject(ReasonTypeDisabled)
	}
	return allow()
}

// FrequencyLimiter enforces the per-user, per-priority, per-day cap.
// The count and the later insert are not atomic; see Service for per-user serialisation.
type FrequencyLimiter struct {
	policy Policy
	store  NotificationStore
}

func NewFrequencyLimiter(policy Policy, store NotificationStore) *FrequencyLimiter {
	return &FrequencyLimiter{policy: policy, store: store}
}

func (g *FrequencyLimiter) Name() string { return "frequency" }

func (g *FrequencyLimiter) Check(ctx context.Context, a Admission) Verdict {
	limit := g.policy.DailyCap(a.Priority)
	if limit == Unlimited {
		return allow()
	}
	count, err := g.store.CountToday(ctx, a.Candidate.UserID, a.Priority, startOfDay(a.LocalNow()))
	if err != nil {
		return allowDespite(errors.Join(ErrStoreUnavailable, err))
	}
	if count >= limit {
		return reject(ReasonDailyCap)
	}
	return allow()
}

// DeduplicationGuard suppresses a candidate when a similar notification was
// stored for the same user within the dedup window.
type DeduplicationGuard struct {
	policy Policy
	store  NotificationStore
}

func NewDeduplicationGuard(policy Policy, store NotificationStore) *DeduplicationGuard {
	return &DeduplicationGuard{policy: policy, store: store}
}

func (g *DeduplicationGuard) Name() string { return "dedup" }

func (g *DeduplicationGuard) Check(ctx context.Context, a Admission) Verdict {
	c := a.Candidate
	recent, err := g.store.FindRecent(ctx, c.UserID, c.Type, a.Now.Add(-g.policy.DedupWindow()))
	if err != nil {
		return allowDespite(errors.Join(ErrStoreUnavailable, err))
	}
	if recent == nil {
		return allow()
	}
	if IsDuplicate(c, *recent) {
		return reject(ReasonDuplicate)
	}
	return allow()
}

// IsDuplicate decides whether prev, a same-type notification inside the window,
// duplicates c. Assignment types compare assignmentId, grades compare submissionId,
// every other type is a duplicate on any match. Two absent keys compare equal.
func IsDuplicate(c Candidate, prev Notification) bool {
	switch {
	case strings.HasPrefix(c.Type, "ASSIGNMENT_"):
		return sameKey(c.Metadata, prev.Metadata, "assignmentId")
	case c.Type == TypeGradePublished:
		return sameKey(c.Metadata, prev.Metadata, "submissionId")
	default:
		return true
	}
}

func sameKey(a, b Metadata, key string) bool {
	return a.Get(key).Equal(b.Get(key))
}

// QuietHoursGate drops non-critical candidates inside the user's do-not-disturb window.
// Dropped candidates are not queued for later delivery.
type QuietHoursGate struct{}

func NewQuietHoursGate() *QuietHoursGate { return &QuietHoursGate{} }

func (g *QuietHoursGate) Name() string { return "quiet_hours" }

func (g *QuietHoursGate) Check(_ context.Context, a Admission) Verdict {
	if a.Priority == PriorityCritical {
		return allow()
	}
	if a.PrefsErr != nil {
		return allowDespite(a.PrefsErr)
	}
	if a.Preferences().InQuietHours(a.LocalNow().Hour()) {
		return reject(ReasonQuietHours)
	}
	return allow()
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
