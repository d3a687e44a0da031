package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/marcelsud/jobgate/alert"
	"github.com/marcelsud/jobgate/webhook/signature"
)

// SignatureHeader carries the HMAC of outbound alert bodies
const SignatureHeader = "X-Signature-256"

// Webhook posts alerts as JSON to an HTTP endpoint, signed when a secret is set
type Webhook struct {
	url    string
	secret string
	client *http.Client
}

// NewWebhook creates a webhook channel
func NewWebhook(url, secret string) *Webhook {
	return &Webhook{
		url:    url,
		secret: secret,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (w *Webhook) Name() string { return "webhook" }

type webhookPayload struct {
	Event     string       `json:"event"`
	Timestamp string       `json:"timestamp"`
	Text      string       `json:"text"`
	Alert     alert.Record `json:"alert"`
}

func (w *Webhook) Send(ctx context.Context, m alert.Message) error {
	body, err := json.Marshal(webhookPayload{
		Event:     "jobgate.alert",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Text:      m.Text,
		Alert:     m.Record,
	})
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "jobgate/1.0")
	if w.secret != "" {
		req.Header.Set(SignatureHeader, signature.BuildSignatureHeader(body, w.secret))
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("send webhook alert: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
