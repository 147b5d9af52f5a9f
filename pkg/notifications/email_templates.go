package notifications

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/a-h/templ"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/dmitrymomot/schoolnotify/pkg/email"
	"github.com/dmitrymomot/schoolnotify/pkg/email/templates"
)

// actionURLKey is the metadata key rendered as the email call-to-action link.
const actionURLKey = "actionUrl"

const digestTimeLayout = "Mon, Jan 2 15:04 MST"

var priorityColors = map[Priority]string{
	PriorityCritical: "#dc2626",
	PriorityHigh:     "#ea580c",
	PriorityMedium:   "#ca8a04",
	PriorityLow:      "#2563eb",
	PriorityInfo:     "#6b7280",
}

// PriorityColor returns the badge colour used for p in emails.
func PriorityColor(p Priority) string {
	if c, ok := priorityColors[p]; ok {
		return c
	}
	return priorityColors[PriorityInfo]
}

var typeTitler = cases.Title(language.English)

// TypeHeading turns GRADE_PUBLISHED into "Grade Published".
func TypeHeading(notifType string) string {
	return typeTitler.String(strings.ReplaceAll(strings.ToLower(notifType), "_", " "))
}

func writeAll(w io.Writer, parts ...string) error {
	for _, p := range parts {
		if _, err := io.WriteString(w, p); err != nil {
			return err
		}
	}
	return nil
}

func emailLayout(title string, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if err := writeAll(w,
			`<!DOCTYPE html><html><head><meta charset="utf-8"><title>`, templ.EscapeString(title), `</title></head>`,
			`<body style="font-family:Arial,Helvetica,sans-serif;background:#f9fafb;margin:0;padding:24px;">`,
			`<div style="max-width:600px;margin:0 auto;background:#ffffff;border-radius:8px;padding:24px;">`,
		); err != nil {
			return err
		}
		if err := body.Render(ctx, w); err != nil {
			return err
		}
		return writeAll(w, `</div></body></html>`)
	})
}

func priorityBadge(p Priority) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		return writeAll(w,
			`<span style="display:inline-block;padding:2px 8px;border-radius:4px;color:#ffffff;font-size:12px;font-weight:bold;background:`,
			PriorityColor(p), `">`, templ.EscapeString(p.String()), `</span>`,
		)
	})
}

func actionLink(md Metadata) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		v := md.Get(actionURLKey)
		if v.Kind() != KindString || v.Text() == "" {
			return nil
		}
		return writeAll(w,
			`<p style="margin-top:24px;"><a href="`, templ.EscapeString(string(templ.URL(v.Text()))),
			`" style="background:#111827;color:#ffffff;padding:10px 16px;border-radius:6px;text-decoration:none;">View details</a></p>`,
		)
	})
}

// NotificationEmail renders a single notification.
func NotificationEmail(n Notification) templ.Component {
	body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if err := priorityBadge(n.Priority).Render(ctx, w); err != nil {
			return err
		}
		if err := writeAll(w,
			`<h1 style="font-size:20px;color:#111827;">`, templ.EscapeString(n.Title), `</h1>`,
			`<p style="font-size:15px;color:#374151;line-height:1.5;">`, templ.EscapeString(n.Message), `</p>`,
		); err != nil {
			return err
		}
		return actionLink(n.Metadata).Render(ctx, w)
	})
	return emailLayout(n.Title, body)
}

// digestTime formats a digest entry's creation time in loc, UTC when loc is nil.
func digestTime(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(digestTimeLayout)
}

// DigestEmail renders a batch of low-priority notifications grouped by type.
// Timestamps are shown in loc.
func DigestEmail(freq Frequency, batch DigestBatch, loc *time.Location) templ.Component {
	title := digestSubject(freq, batch.Len())
	body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if err := writeAll(w, `<h1 style="font-size:20px;color:#111827;">`, templ.EscapeString(title), `</h1>`); err != nil {
			return err
		}
		for _, g := range batch {
			if err := writeAll(w,
				`<h2 style="font-size:16px;color:#111827;border-bottom:1px solid #e5e7eb;padding-bottom:4px;">`,
				templ.EscapeString(TypeHeading(g.Type)), fmt.Sprintf(" (%d)", len(g.Items)), `</h2><ul style="padding-left:18px;">`,
			); err != nil {
				return err
			}
			for _, n := range g.Items {
				if err := writeAll(w,
					`<li style="margin-bottom:8px;"><strong>`, templ.EscapeString(n.Title), `</strong><br>`,
					`<span style="color:#4b5563;">`, templ.EscapeString(n.Message), `</span><br>`,
					`<span style="color:#9ca3af;font-size:12px;">`, templ.EscapeString(digestTime(n.CreatedAt, loc)), `</span></li>`,
				); err != nil {
					return err
				}
			}
			if err := writeAll(w, `</ul>`); err != nil {
				return err
			}
		}
		return nil
	})
	return emailLayout(title, body)
}

func digestSubject(freq Frequency, count int) string {
	period := "daily"
	if Frequency(strings.ToUpper(string(freq))) == FrequencyWeekly {
		period = "weekly"
	}
	if count == 1 {
		return fmt.Sprintf("Your %s digest: 1 update", period)
	}
	return fmt.Sprintf("Your %s digest: %d updates", period, count)
}

func notificationText(n Notification) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s\n\n%s\n", n.Priority, n.Title, n.Message)
	if v := n.Metadata.Get(actionURLKey); v.Kind() == KindString && v.Text() != "" {
		fmt.Fprintf(&b, "\nView details: %s\n", v.Text())
	}
	return b.String()
}

func digestText(freq Frequency, batch DigestBatch, loc *time.Location) string {
	var b strings.Builder
	b.WriteString(digestSubject(freq, batch.Len()))
	b.WriteString("\n")
	for _, g := range batch {
		fmt.Fprintf(&b, "\n%s (%d)\n", TypeHeading(g.Type), len(g.Items))
		for _, n := range g.Items {
			fmt.Fprintf(&b, "- %s: %s (%s)\n", n.Title, n.Message, digestTime(n.CreatedAt, loc))
		}
	}
	return b.String()
}

// shortText is the body used for SMS and push.
func shortText(n Notification) string {
	if n.Message == "" {
		return n.Title
	}
	return n.Title + ": " + n.Message
}

func notificationEmailParams(ctx context.Context, to string, n Notification) (email.SendEmailParams, error) {
	html, err := templates.Render(ctx, NotificationEmail(n))
	if err != nil {
		return email.SendEmailParams{}, err
	}
	subject := n.Title
	if strings.TrimSpace(subject) == "" {
		subject = TypeHeading(n.Type)
	}
	return email.SendEmailParams{
		SendTo:   to,
		Subject:  subject,
		BodyHTML: html,
		BodyText: notificationText(n),
		Tag:      strings.ToLower(n.Type),
	}, nil
}

func digestEmailParams(ctx context.Context, to string, freq Frequency, batch DigestBatch, loc *time.Location) (email.SendEmailParams, error) {
	html, err := templates.Render(ctx, DigestEmail(freq, batch, loc))
	if err != nil {
		return email.SendEmailParams{}, err
	}
	return email.SendEmailParams{
		SendTo:   to,
		Subject:  digestSubject(freq, batch.Len()),
		BodyHTML: html,
		BodyText: digestText(freq, batch, loc),
		Tag:      "digest_" + strings.ToLower(string(freq)),
	}, nil
}
