// Package notify delivers sync notifications to external build systems.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/starford/chasqui/internal/engine"
)

// DeliveryHeader carries a unique id per webhook delivery.
const DeliveryHeader = "X-Chasqui-Delivery"

// Payload is the JSON body posted to the webhook.
type Payload struct {
	Event    string    `json:"event"`
	Full     bool      `json:"full"`
	Upserted []string  `json:"upserted"`
	Deleted  []string  `json:"deleted"`
	SentAt   time.Time `json:"sent_at"`
}

// Webhook posts a Payload to URL after every changed pass.
type Webhook struct {
	url        string
	secret     string
	httpClient *http.Client
	logger     *slog.Logger
}

var _ engine.Notifier = (*Webhook)(nil)

// NewWebhook creates a webhook notifier. An empty secret sends no
// Authorization header.
func NewWebhook(url, secret string, timeout time.Duration, logger *slog.Logger) *Webhook {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Webhook{
		url:        url,
		secret:     secret,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Notify sends one POST. Non-2xx responses are errors; there is no retry,
// the next changed pass notifies again.
func (w *Webhook) Notify(ctx context.Context, s engine.Summary) error {
	body, err := json.Marshal(Payload{
		Event:    "pages.synced",
		Full:     s.Full,
		Upserted: nonNil(s.Upserted),
		Deleted:  nonNil(s.Deleted),
		SentAt:   time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("notify: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("notify: new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(DeliveryHeader, uuid.NewString())
	if w.secret != "" {
		req.Header.Set("Authorization", "Bearer "+w.secret)
	}

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("notify: post %s: %w", w.url, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("notify: webhook rejected build request: %s", resp.Status)
	}
	w.logger.Info("notify: webhook delivered", slog.String("url", w.url), slog.Int("status", resp.StatusCode))
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
