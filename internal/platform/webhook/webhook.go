// Package webhook delivers signed JSON events to a single configured URL with
// HMAC-SHA256 signing and bounded retries.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	HeaderSignature = "X-Webhook-Signature"
	HeaderEventID   = "X-Webhook-ID"
	HeaderTimestamp = "X-Webhook-Timestamp"
)

// Event is the envelope posted to the endpoint.
type Event struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	TenantID  string          `json:"tenant_id,omitempty"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// DeliveryAttempt records the last attempt made for an event.
type DeliveryAttempt struct {
	EventID      string        `json:"event_id"`
	StatusCode   int           `json:"status_code"`
	ResponseBody string        `json:"response_body"`
	Duration     time.Duration `json:"duration_ns"`
	Attempt      int           `json:"attempt"`
	Error        string        `json:"error,omitempty"`
}

// SignPayload computes the hex-encoded HMAC-SHA256 of payload.
func SignPayload(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func VerifySignature(payload []byte, secret, signature string) bool {
	expected := SignPayload(payload, secret)
	return hmac.Equal([]byte(expected), []byte(strings.TrimPrefix(signature, "sha256=")))
}

// Option configures a Sender.
type Option func(*Sender)

func WithHTTPClient(c *http.Client) Option {
	return func(s *Sender) { s.httpClient = c }
}

// WithRetries sets how many times a failed delivery is retried and the
// delay before each retry.
func WithRetries(n int, delay time.Duration) Option {
	return func(s *Sender) {
		s.maxRetries = n
		s.retryDelay = delay
	}
}

type Sender struct {
	url        string
	secret     string
	httpClient *http.Client
	maxRetries int
	retryDelay time.Duration
	now        func() time.Time
}

// NewSender validates the endpoint URL. The secret may be empty, in which
// case no signature header is sent.
func NewSender(rawURL, secret string, opts ...Option) (*Sender, error) {
	if err := validateURL(rawURL); err != nil {
		return nil, err
	}
	s := &Sender{
		url:        rawURL,
		secret:     secret,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		maxRetries: 2,
		retryDelay: 5 * time.Second,
		now:        time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

func validateURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("url is required")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return fmt.Errorf("url scheme must be http or https, got %q", u.Scheme)
	}
	return nil
}

// Send wraps payload in an Event and posts it. Transport errors and 5xx
// responses are retried; 4xx responses are not.
func (s *Sender) Send(ctx context.Context, eventType, tenantID string, payload any) (*DeliveryAttempt, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode webhook payload: %w", err)
	}
	event := Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		TenantID:  tenantID,
		Payload:   raw,
		Timestamp: s.now().UTC(),
	}
	body, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("encode webhook event: %w", err)
	}

	var attempt *DeliveryAttempt
	for n := 1; n <= s.maxRetries+1; n++ {
		attempt = s.post(ctx, event, body)
		attempt.Attempt = n
		if attempt.Error == "" {
			return attempt, nil
		}
		if attempt.StatusCode >= 400 && attempt.StatusCode < 500 {
			break
		}
		if n <= s.maxRetries {
			select {
			case <-ctx.Done():
				return attempt, ctx.Err()
			case <-time.After(s.retryDelay):
			}
		}
	}
	return attempt, fmt.Errorf("webhook delivery failed after %d attempts: %s", attempt.Attempt, attempt.Error)
}

func (s *Sender) post(ctx context.Context, event Event, body []byte) *DeliveryAttempt {
	attempt := &DeliveryAttempt{EventID: event.ID}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		attempt.Error = err.Error()
		return attempt
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderEventID, event.ID)
	req.Header.Set(HeaderTimestamp, event.Timestamp.Format(time.RFC3339))
	if s.secret != "" {
		req.Header.Set(HeaderSignature, "sha256="+SignPayload(body, s.secret))
	}

	start := time.Now()
	resp, err := s.httpClient.Do(req)
	attempt.Duration = time.Since(start)
	if err != nil {
		attempt.Error = err.Error()
		return attempt
	}
	defer resp.Body.Close()

	attempt.StatusCode = resp.StatusCode
	// Read at most 1KB of response body.
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	attempt.ResponseBody = string(b)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		attempt.Error = fmt.Sprintf("non-2xx response: %d", resp.StatusCode)
	}
	return attempt
}
