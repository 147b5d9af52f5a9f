package notifications

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dmitrymomot/schoolnotify/pkg/logger"
)

// Decision is the pipeline's answer for one candidate.
type Decision struct {
	Admit    bool
	Reason   Reason
	Gate     string   // gate that rejected; empty when admitted
	Priority Priority // resolved priority
	Degraded []error  // lookups that failed open
}

// Pipeline runs the admission gates in order and stops at the first rejection:
// preference, frequency, dedup, quiet hours.
type Pipeline struct {
	classifier *Classifier
	prefs      PreferenceStore
	gates      []Gate
	now        func() time.Time
	logger     *slog.Logger
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithPipelineLogger sets the logger for the Pipeline.
func WithPipelineLogger(logger *slog.Logger) PipelineOption {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithPipelineClock overrides the time source.
func WithPipelineClock(now func() time.Time) PipelineOption {
	return func(p *Pipeline) {
		if now != nil {
			p.now = now
		}
	}
}

// NewPipeline wires the four standard gates around the given stores.
func NewPipeline(policy Policy, prefs PreferenceStore, store NotificationStore, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		classifier: NewClassifier(policy),
		prefs:      prefs,
		gates: []Gate{
			NewPreferenceGate(policy),
			NewFrequencyLimiter(policy, store),
			NewDeduplicationGuard(policy, store),
			NewQuietHoursGate(),
		},
		now:    time.Now,
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Classify resolves a candidate's priority: the explicit one if set, otherwise the classifier's.
func (p *Pipeline) Classify(c Candidate) Priority {
	if c.ExplicitPriority != nil && c.ExplicitPriority.Valid() {
		return *c.ExplicitPriority
	}
	return p.classifier.Classify(c.Type, c.Metadata)
}

// ShouldSend decides whether the candidate is admitted. Store failures never turn
// into rejections; they are logged and reported in Decision.Degraded.
func (p *Pipeline) ShouldSend(ctx context.Context, c Candidate) Decision {
	priority := p.Classify(c)
	if err := c.Validate(); err != nil {
		return Decision{Admit: false, Reason: ReasonInvalid, Priority: priority, Degraded: []error{err}}
	}

	a := Admission{
		Candidate: c,
		Priority:  priority,
		Now:       p.now(),
	}
	stored, err := p.prefs.GetPreferences(ctx, c.UserID)
	if err != nil {
		a.PrefsErr = errors.Join(ErrStoreUnavailable, err)
	} else {
		a.Stored = stored
	}

	d := Decision{Admit: true, Reason: ReasonAdmitted, Priority: priority}
	for _, g := range p.gates {
		v := g.Check(ctx, a)
		if v.Err != nil {
			d.Degraded = append(d.Degraded, v.Err)
			p.logger.LogAttrs(ctx, slog.LevelWarn, "Admission gate lookup failed, allowing notification",
				logger.UserID(c.UserID),
				logger.NotificationType(c.Type),
				logger.Priority(priority.String()),
				logger.Gate(g.Name()),
				logger.Error(v.Err),
			)
		}
		if !v.Allowed {
			d.Admit = false
			d.Reason = v.Reason
			d.Gate = g.Name()
			p.logger.LogAttrs(ctx, slog.LevelDebug, "Notification rejected",
				logger.UserID(c.UserID),
				logger.NotificationType(c.Type),
				logger.Priority(priority.String()),
				logger.Gate(g.Name()),
				slog.String("reason", string(v.Reason)),
			)
			return d
		}
	}

	return d
}
