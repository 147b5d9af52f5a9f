package httpserver

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/dmitrymomot/schoolnotify/pkg/logger"
)

// Check is a named readiness dependency such as a database ping.
type Check struct {
	Name string
	Fn   func(context.Context) error
}

// HealthReport is the JSON body returned by the health handlers.
type HealthReport struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// LivenessHandler always answers 200 {"status":"alive"}.
func LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeHealth(w, http.StatusOK, HealthReport{Status: "alive"})
	}
}

// ReadinessHandler runs every check with the given timeout and answers 200
// when all pass, 503 otherwise. Failed checks carry their error text.
func ReadinessHandler(log *slog.Logger, timeout time.Duration, checks ...Check) http.HandlerFunc {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		report := HealthReport{Status: "ready", Checks: make(map[string]string, len(checks))}
		status := http.StatusOK
		for _, c := range checks {
			if err := c.Fn(ctx); err != nil {
				log.LogAttrs(ctx, slog.LevelError, "Readiness check failed",
					logger.Component(c.Name),
					logger.Error(err),
				)
				report.Checks[c.Name] = err.Error()
				report.Status = "not_ready"
				status = http.StatusServiceUnavailable
				continue
			}
			report.Checks[c.Name] = "ok"
		}
		writeHealth(w, status, report)
	}
}

func writeHealth(w http.ResponseWriter, status int, report HealthReport) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(report)
}
