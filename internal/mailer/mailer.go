// Package mailer abstracts out-of-band delivery of signup verification
// codes. The core only requires that, given an address and a code, the
// recipient can learn the code within its validity window.
package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Dispatcher sends a verification code to an email address.
type Dispatcher interface {
	SendVerificationCode(ctx context.Context, email, code string) error
}

// Webhook posts verification messages to a configured transactional
// endpoint.
type Webhook struct {
	endpoint   string
	httpClient *http.Client
	logger     *slog.Logger
}

// WebhookOption customises webhook instantiation.
type WebhookOption func(*Webhook)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(h *http.Client) WebhookOption {
	return func(w *Webhook) {
		if h != nil {
			w.httpClient = h
		}
	}
}

// NewWebhook constructs a Webhook dispatcher for the endpoint.
func NewWebhook(endpoint string, logger *slog.Logger, opts ...WebhookOption) (*Webhook, error) {
	trimmed := strings.TrimSpace(endpoint)
	if trimmed == "" {
		return nil, errors.New("mailer: empty webhook endpoint")
	}
	w := &Webhook{
		endpoint:   trimmed,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// SendVerificationCode posts the message payload; any non-success status
// fails the send with the server-provided message when one exists.
func (w *Webhook) SendVerificationCode(ctx context.Context, email, code string) error {
	payload, err := json.Marshal(map[string]any{
		"to":       email,
		"template": "signup_verification",
		"variables": map[string]string{
			"code": code,
		},
	})
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create message request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	if msg := extractError(resp.Body); msg != "" {
		return fmt.Errorf("mailer: %s", msg)
	}
	return fmt.Errorf("mailer: message dispatch failed with status %d", resp.StatusCode)
}

func extractError(body io.Reader) string {
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(body).Decode(&payload); err != nil {
		return ""
	}
	if payload.Error != "" {
		return payload.Error
	}
	return payload.Message
}

// Local holds codes in memory when no dispatch channel is configured.
// The code is discoverable only through LastCode; it is never logged.
type Local struct {
	mu    sync.Mutex
	codes map[string]string
}

// NewLocal constructs an empty local dispatcher.
func NewLocal() *Local {
	return &Local{codes: make(map[string]string)}
}

// SendVerificationCode records the code as delivered locally.
func (l *Local) SendVerificationCode(_ context.Context, email, code string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.codes[strings.ToLower(email)] = code
	return nil
}

// LastCode returns the most recently delivered code for the address.
func (l *Local) LastCode(email string) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	code, ok := l.codes[strings.ToLower(email)]
	return code, ok
}

// FromConfig returns the webhook dispatcher when an endpoint is
// configured, the local fallback otherwise.
func FromConfig(endpoint string, logger *slog.Logger) Dispatcher {
	if strings.TrimSpace(endpoint) == "" {
		return NewLocal()
	}
	w, err := NewWebhook(endpoint, logger)
	if err != nil {
		return NewLocal()
	}
	return w
}
