// Package httpapi exposes the notification service over HTTP.
//
// Routes:
//
//	GET  /health/live
//	GET  /health/ready
//	POST /events                         expand a school event through tenant rules
//	POST /notifications                  admit and deliver one candidate
//	POST /users/{userID}/digest          send a digest now (?frequency=DAILY|WEEKLY)
//	POST /users/{userID}/read            mark notifications read ({"ids":[...]})
//	GET  /users/{userID}/notifications   notification feed
//	GET  /users/{userID}/stream          server-sent in-app notifications (WithStream)
//
// Every JSON answer uses the envelope {"data":...,"meta":...,"error":...}.
// Rejected candidates are not errors: POST /notifications answers 200 with
// admitted=false and the rejecting reason, and 201 when the candidate was admitted.
package httpapi
