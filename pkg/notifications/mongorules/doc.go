// Package mongorules reads tenant notification rules from a MongoDB collection.
//
// Rules are plain documents:
//
//	{
//	  "_id": "3f1c...",
//	  "school_id": "school-1",
//	  "event_type": "grade.recorded",
//	  "notification_type": "GRADE_PUBLISHED",
//	  "conditions": {"score": {"lt": 50}},
//	  "title_template": "New grade in {{subject}}",
//	  "message_template": "{{student}} scored {{score}}",
//	  "channels": ["EMAIL", "IN_APP"],
//	  "active": true,
//	  "priority": 10
//	}
//
// Condition documents decode as bson.D and are normalised into plain maps
// before notifications.ParseConditions sees them.
package mongorules
