// Package events feeds school business events from RabbitMQ into the
// notification service.
//
// The consumer declares a durable topic exchange (AMQP_EXCHANGE, default
// "school.events") and a durable queue bound with two routing keys:
//
//	event.#            body is a notifications.Event, expanded through tenant rules
//	notification.send  body is a notifications.Candidate, sent directly
//
// For "event.*" messages without an event_type field the routing key suffix is
// used, so "event.grade.recorded" becomes "grade.recorded".
//
// Messages are acknowledged manually. Undecodable or invalid payloads are
// rejected without requeue; store failures are requeued. When AMQP_URL is
// empty Run logs a warning and returns immediately.
package events
