// Package notifications decides which notifications reach a user and delivers
// the ones that do.
//
// Candidates come either directly from callers or from tenant rules that expand
// business events (RuleEvaluator). Each candidate is classified into a priority
// and passed through the admission pipeline:
//
//   - PreferenceGate: the user's enabled notification types
//   - FrequencyLimiter: per-user, per-priority daily caps
//   - DeduplicationGuard: same-type notifications inside the dedup window
//   - QuietHoursGate: the user's do-not-disturb hours
//
// The first rejecting gate wins. Store failures never reject: the gate lets the
// candidate through and the failure is reported in Decision.Degraded.
//
// Admitted candidates are stored first and then fanned out concurrently to
// IN_APP, EMAIL, SMS and PUSH by the Orchestrator. Channel failures only show up
// as false in DeliveryResult. LOW and INFO notifications left unread are
// summarised by the DigestBatcher, which DigestScheduler runs on each user's
// digest schedule.
//
// # Basic Usage
//
//	store := notifications.NewMemoryStorage()
//	policy := notifications.DefaultPolicy()
//
//	pipeline := notifications.NewPipeline(policy, store, store)
//	rules := notifications.NewRuleEvaluator(policy, store)
//	orchestrator := notifications.NewOrchestrator(store, store, store, mailer)
//	digests := notifications.NewDigestBatcher(store, store, mailer)
//
//	svc := notifications.NewService(pipeline, rules, orchestrator, digests, store,
//	    notifications.WithLocker(notifications.NewKeyedLocker()),
//	)
//
//	out, err := svc.Send(ctx, notifications.Candidate{
//	    UserID:   "student-1",
//	    Type:     notifications.TypeGradePublished,
//	    Title:    "Math grade published",
//	    Metadata: notifications.Metadata{"grade": 55, "submissionId": "sub-9"},
//	    Channels: notifications.NewChannels(notifications.ChannelInApp, notifications.ChannelEmail),
//	})
//
// Storage adapters live in subpackages: pgstore (PostgreSQL), mongorules and
// yamlrules (rule sources), redislock (distributed per-user lock) and inapp
// (Redis pub/sub realtime push).
package notifications
