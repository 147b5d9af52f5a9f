// Package email sends transactional email for the notification core.
//
// Everything goes through the EmailSender interface. Two implementations exist:
//
//   - the Postmark client, used in production (Driver "postmark")
//   - DevSender, which writes each message to disk for local inspection (Driver "dev")
//
// Select one from configuration with New:
//
//	var cfg email.Config
//	config.MustLoad(&cfg)
//	sender, err := email.New(cfg)
//
// SendEmailParams carries an HTML body and an optional plain-text alternative.
// Every implementation validates params first and wraps provider failures in
// ErrFailedToSendEmail.
package email
