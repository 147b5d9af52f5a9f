package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dmitrymomot/schoolnotify/pkg/notifications"
)

// Payload is the JSON body posted to a gateway.
type Payload struct {
	Channel notifications.Channel `json:"channel"`
	To      string                `json:"to"`
	Message string                `json:"message"`
}

// Sender implements notifications.MessageSender for one channel.
type Sender struct {
	url           string
	channel       notifications.Channel
	client        *http.Client
	secret        string
	timeout       time.Duration
	maxRetries    int
	retryInterval time.Duration
	breaker       *CircuitBreaker
	now           func() time.Time
}

// Option configures a Sender.
type Option func(*Sender)

// WithSecret signs every request with secret. Empty disables signing.
func WithSecret(secret string) Option {
	return func(s *Sender) {
		s.secret = secret
	}
}

// WithTimeout bounds each HTTP attempt.
func WithTimeout(d time.Duration) Option {
	return func(s *Sender) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithRetries sets how many times a temporary failure is retried and the pause between attempts.
func WithRetries(n int, interval time.Duration) Option {
	return func(s *Sender) {
		if n >= 0 {
			s.maxRetries = n
		}
		if interval > 0 {
			s.retryInterval = interval
		}
	}
}

// WithCircuitBreaker guards the gateway with cb.
func WithCircuitBreaker(cb *CircuitBreaker) Option {
	return func(s *Sender) {
		s.breaker = cb
	}
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Sender) {
		if c != nil {
			s.client = c
		}
	}
}

// New creates a sender posting channel messages to gatewayURL.
func New(gatewayURL string, channel notifications.Channel, opts ...Option) (*Sender, error) {
	u, err := url.Parse(gatewayURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %s gateway URL %q", ErrInvalidConfiguration, channel, gatewayURL)
	}

	s := &Sender{
		url:     gatewayURL,
		channel: channel,
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        50,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		timeout:       3 * time.Second,
		maxRetries:    2,
		retryInterval: 250 * time.Millisecond,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

var _ notifications.MessageSender = (*Sender)(nil)

// Send posts the message for destination, retrying temporary failures.
func (s *Sender) Send(ctx context.Context, destination, message string) error {
	body, err := json.Marshal(Payload{Channel: s.channel, To: destination, Message: message})
	if err != nil {
		return fmt.Errorf("encode gateway payload: %w", err)
	}

	if s.breaker != nil && !s.breaker.Allow() {
		return ErrCircuitOpen
	}

	var lastErr error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.retryInterval):
			}
		}

		status, err := s.attempt(ctx, body)
		if s.breaker != nil {
			if err == nil {
				s.breaker.RecordSuccess()
			} else {
				s.breaker.RecordFailure()
			}
		}
		if err == nil {
			return nil
		}
		lastErr = err

		if isPermanent(status) {
			return errors.Join(ErrPermanentFailure, err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	return errors.Join(ErrDeliveryFailed, fmt.Errorf("%d attempts: %w", s.maxRetries+1, lastErr))
}

func (s *Sender) attempt(ctx context.Context, body []byte) (int, error) {
	reqCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "notifyd-gateway/1.0")
	if s.secret != "" {
		Sign(req.Header, s.secret, body, s.now())
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, nil
	}

	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	msg := strings.ReplaceAll(strings.TrimSpace(string(snippet)), "\n", " ")
	if len(msg) > 200 {
		msg = msg[:200] + "..."
	}
	return resp.StatusCode, fmt.Errorf("gateway returned status %d: %s", resp.StatusCode, msg)
}

// isPermanent reports whether a status will not change on retry.
func isPermanent(status int) bool {
	if status < 400 || status >= 500 {
		return false
	}
	switch status {
	case http.StatusRequestTimeout, http.StatusTooEarly, http.StatusTooManyRequests:
		return false
	}
	return true
}
