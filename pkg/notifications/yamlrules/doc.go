// Package yamlrules loads tenant notification rules from a YAML file.
//
// It is the rule source for deployments without a rules database:
//
//	rules:
//	  - school_id: school-1
//	    event_type: grade.recorded
//	    notification_type: GRADE_PUBLISHED
//	    conditions:
//	      score: {lt: 50}
//	    title: "Low grade in {{subject}}"
//	    message: "{{student}} scored {{score}}"
//	    channels: [EMAIL, IN_APP]
//	    priority: 10
//
// Rules are active unless "active: false" is set. Unknown operators and
// channels are rejected at load time.
package yamlrules
