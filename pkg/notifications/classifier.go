package notifications

// classificationRule is one predicate of the ordered classification table.
type classificationRule struct {
	level Priority
	match func(notifType string, md Metadata) bool
}

func isType(t string) func(string, Metadata) bool {
	return func(notifType string, _ Metadata) bool { return notifType == t }
}

// numberAtMost matches when md[key] is present, numeric and <= limit.
func numberAtMost(t, key string, limit float64) func(string, Metadata) bool {
	return func(notifType string, md Metadata) bool {
		if notifType != t {
			return false
		}
		v, ok := md.Number(key)
		return ok && v <= limit
	}
}

func numberBelow(t, key string, limit float64) func(string, Metadata) bool {
	return func(notifType string, md Metadata) bool {
		if notifType != t {
			return false
		}
		v, ok := md.Number(key)
		return ok && v < limit
	}
}

func numberAbove(t, key string, limit float64) func(string, Metadata) bool {
	return func(notifType string, md Metadata) bool {
		if notifType != t {
			return false
		}
		v, ok := md.Number(key)
		return ok && v > limit
	}
}

// defaultClassificationRules is evaluated top to bottom; the first match wins,
// so the more specific predicates of a type must precede its fallbacks.
func defaultClassificationRules() []classificationRule {
	return []classificationRule{
		{PriorityCritical, isType(TypeSafetyAlert)},
		{PriorityCritical, isType(TypeEmergency)},
		{PriorityCritical, func(t string, md Metadata) bool {
			return t == TypeRiskAlert && md.Get("riskLevel").Equal(String("CRITICAL"))
		}},

		{PriorityHigh, numberAtMost(TypeAssignmentDue, "hoursRemaining", 24)},
		{PriorityHigh, numberBelow(TypeGradePublished, "grade", 60)},
		{PriorityHigh, numberBelow(TypeAttendanceWarning, "attendanceRate", 75)},
		{PriorityHigh, numberAbove(TypePaymentDue, "daysOverdue", 7)},

		{PriorityMedium, numberAtMost(TypeAssignmentDue, "hoursRemaining", 72)},
		{PriorityMedium, isType(TypeGradePublished)},
		{PriorityMedium, numberAtMost(TypeEventReminder, "daysUntil", 1)},
		{PriorityMedium, isType(TypeParentMessage)},

		{PriorityLow, isType(TypeAssignmentCreated)},
		{PriorityLow, numberAtMost(TypeEventReminder, "daysUntil", 7)},
		{PriorityLow, isType(TypeResourceRecommendation)},
	}
}

// Classifier maps a notification type and its metadata to a priority level.
type Classifier struct {
	rules []classificationRule
}

// NewClassifier creates a classifier over the policy's rule table.
func NewClassifier(policy Policy) *Classifier {
	rules := policy.rules
	if rules == nil {
		rules = defaultClassificationRules()
	}
	return &Classifier{rules: rules}
}

// Classify returns the level of the first matching rule, or PriorityInfo.
func (c *Classifier) Classify(notifType string, md Metadata) Priority {
	for _, r := range c.rules {
		if r.match(notifType, md) {
			return r.level
		}
	}
	return PriorityInfo
}
