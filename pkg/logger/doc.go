// Package logger builds *slog.Logger instances for the notification service and
// provides attribute helpers so every component logs the same keys.
//
// New takes functional options for format, level, static attributes and
// context extractors. FromConfig reads the same settings from a Config loaded
// with pkg/config:
//
//	var cfg logger.Config
//	config.MustLoad(&cfg)
//	log, err := logger.FromConfig(cfg, logger.WithContextValue("request_id", middleware.RequestIDKey))
//
// Helpers such as UserID, NotificationType, Priority and Gate return slog.Attr
// values for use with LogAttrs. Error and the identifier helpers return an empty
// Attr for nil or empty input, so callers can pass them unconditionally.
package logger
