// SPDX-License-Identifier: MIT

package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/jsj9346/makenaide-sub006/internal/log"
)

// WebhookNotifier POSTs notifications as JSON to a single endpoint (the alert
// fan-out behind it is someone else's problem). One attempt, short timeout,
// no retry: the notification channel is best-effort by contract.
type WebhookNotifier struct {
	url    string
	client *http.Client
	logger zerolog.Logger
}

// NewWebhookNotifier builds a webhook notifier. timeout bounds the whole
// request including connection setup.
func NewWebhookNotifier(url string, timeout time.Duration) *WebhookNotifier {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: timeout},
		logger: log.WithComponent("notify"),
	}
}

func (w *WebhookNotifier) Publish(ctx context.Context, n Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		w.logger.Warn().Err(err).Str("subject", n.Subject).Msg("notification publish failed")
		return fmt.Errorf("publish notification: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= 300 {
		w.logger.Warn().Int("status", resp.StatusCode).Str("subject", n.Subject).Msg("notification endpoint rejected message")
		return fmt.Errorf("publish notification: unexpected status %d", resp.StatusCode)
	}

	w.logger.Debug().Str("subject", n.Subject).Str("severity", string(n.Severity)).Msg("notification published")
	return nil
}

var _ Notifier = (*WebhookNotifier)(nil)
