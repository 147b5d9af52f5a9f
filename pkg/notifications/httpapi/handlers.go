package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrymomot/schoolnotify/pkg/logger"
	"github.com/dmitrymomot/schoolnotify/pkg/notifications"
	"github.com/dmitrymomot/schoolnotify/pkg/validator"
)

var (
	errMalformedBody = errors.New("malformed request body")

	frequencies = []string{string(notifications.FrequencyDaily), string(notifications.FrequencyWeekly)}
)

// maxBatchSize bounds recipients per event and ids per read receipt.
const maxBatchSize = 1000

type markReadRequest struct {
	IDs []string `json:"ids"`
}

func (a *API) handleEvent(w http.ResponseWriter, r *http.Request) {
	var event notifications.Event
	if err := a.decode(w, r, &event); err != nil {
		a.fail(w, r, err)
		return
	}

	if err := validateEvent(event); err != nil {
		a.fail(w, r, err)
		return
	}

	outcomes, err := a.svc.HandleEvent(r.Context(), event)
	if err != nil && admittedCount(outcomes) == 0 {
		a.fail(w, r, err)
		return
	}

	meta := map[string]any{"candidates": len(outcomes), "admitted": admittedCount(outcomes)}
	if err != nil {
		a.logger.LogAttrs(r.Context(), slog.LevelWarn, "Event partially handled",
			logger.RequestID(middleware.GetReqID(r.Context())),
			logger.SchoolID(event.SchoolID),
			logger.EventType(event.EventType),
			logger.Error(err),
		)
		meta["partial"] = true
	}
	writeJSON(w, http.StatusOK, Response{Data: outcomes, Meta: meta})
}

func (a *API) sendNotification(w http.ResponseWriter, r *http.Request) {
	var c notifications.Candidate
	if err := a.decode(w, r, &c); err != nil {
		a.fail(w, r, err)
		return
	}

	out, err := a.svc.Send(r.Context(), c)
	if err != nil {
		a.fail(w, r, err)
		return
	}

	status := http.StatusOK
	if out.Admitted {
		status = http.StatusCreated
	}
	writeJSON(w, status, Response{Data: out})
}

func (a *API) sendDigest(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	freq := notifications.FrequencyDaily
	if v := r.URL.Query().Get("frequency"); v != "" {
		if err := validator.Apply(validator.InListCaseInsensitive("frequency", v, frequencies)); err != nil {
			a.fail(w, r, err)
			return
		}
		freq = notifications.Frequency(strings.ToUpper(v))
	}

	res, err := a.svc.SendDigest(r.Context(), userID, freq)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Response{Data: res})
}

func (a *API) markRead(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var req markReadRequest
	if err := a.decode(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	if err := validator.Apply(
		validator.RequiredSlice("ids", req.IDs),
		validator.MaxLenSlice("ids", req.IDs, maxBatchSize),
		validator.EachString("ids", req.IDs, "ids must not be blank", notBlank),
	); err != nil {
		a.fail(w, r, err)
		return
	}

	if err := a.svc.MarkRead(r.Context(), userID, req.IDs...); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) listNotifications(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	opts, err := parseListOptions(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}

	items, err := a.feed.List(r.Context(), userID, opts)
	if err != nil {
		a.fail(w, r, errors.Join(notifications.ErrStoreUnavailable, err))
		return
	}
	unread, err := a.feed.CountUnread(r.Context(), userID)
	if err != nil {
		a.fail(w, r, errors.Join(notifications.ErrStoreUnavailable, err))
		return
	}
	if items == nil {
		items = []notifications.Notification{}
	}

	writeJSON(w, http.StatusOK, Response{
		Data: items,
		Meta: map[string]any{
			"unread": unread,
			"limit":  opts.Limit,
			"offset": opts.Offset,
		},
	})
}

// parseListOptions reads the feed query. Every malformed parameter is reported.
func parseListOptions(r *http.Request) (notifications.ListOptions, error) {
	q := r.URL.Query()
	opts := notifications.ListOptions{Limit: defaultPageSize}
	var rules []validator.Rule

	if v := q.Get("unread"); v != "" {
		b, err := strconv.ParseBool(v)
		rules = append(rules, validator.Custom("unread", "must be a boolean", func() bool { return err == nil }))
		opts.OnlyUnread = b
	}
	for _, t := range q["type"] {
		if t = strings.TrimSpace(t); t != "" {
			opts.Types = append(opts.Types, t)
		}
	}
	if v := q.Get("since"); v != "" {
		since, err := time.Parse(time.RFC3339, v)
		rules = append(rules, validator.Custom("since", "must be an RFC3339 timestamp", func() bool { return err == nil }))
		if err == nil {
			rules = append(rules, validator.NotFutureDate("since", since, time.Now()))
			opts.Since = &since
		}
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		rules = append(rules, validator.Custom("limit", "must be an integer", func() bool { return err == nil }))
		if err == nil {
			rules = append(rules, validator.MinNum("limit", n, 1))
			opts.Limit = min(n, maxPageSize)
		}
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		rules = append(rules, validator.Custom("offset", "must be an integer", func() bool { return err == nil }))
		if err == nil {
			rules = append(rules, validator.MinNum("offset", n, 0), validator.MaxNum("offset", n, maxOffset))
			opts.Offset = n
		}
	}
	return opts, validator.Apply(rules...)
}

func validateEvent(event notifications.Event) error {
	return validator.Apply(
		validator.RequiredString("school_id", event.SchoolID),
		validator.RequiredString("event_type", event.EventType),
		validator.MaxLenString("event_type", event.EventType, 128),
		validator.RequiredSlice("recipients", event.Recipients),
		validator.MaxLenSlice("recipients", event.Recipients, maxBatchSize),
		validator.EachString("recipients", event.Recipients, "recipients must not be blank", notBlank),
	)
}

func notBlank(s string) bool {
	return strings.TrimSpace(s) != ""
}

func (a *API) decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, a.maxBody))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errMalformedBody, err)
	}
	return nil
}

func (a *API) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, detail := errorStatus(err)
	if status >= http.StatusInternalServerError {
		a.logger.LogAttrs(r.Context(), slog.LevelError, "Request failed",
			logger.RequestID(middleware.GetReqID(r.Context())),
			slog.String("path", r.URL.Path),
			logger.Error(err),
		)
	}
	writeJSON(w, status, Response{Error: detail})
}

func admittedCount(outcomes []notifications.Outcome) int {
	n := 0
	for _, o := range outcomes {
		if o.Admitted {
			n++
		}
	}
	return n
}
