package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/marcelsud/jobgate/alert"
)

// Slack posts alerts to an incoming webhook
type Slack struct {
	webhookURL string
	channel    string
	client     *http.Client
}

// NewSlack creates a Slack channel
func NewSlack(webhookURL, channel string) *Slack {
	return &Slack{
		webhookURL: webhookURL,
		channel:    channel,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *Slack) Name() string { return "slack" }

func (s *Slack) Send(ctx context.Context, m alert.Message) error {
	color := "#ff9900"
	switch m.Record.Severity {
	case alert.High:
		color = "#ff0000"
	case alert.Critical:
		color = "#cc0000"
	}

	fields := []slackField{
		{Title: "Tenant", Value: m.Record.TenantID, Short: true},
		{Title: "Class", Value: string(m.Record.Class), Short: true},
		{Title: "Severity", Value: m.Record.Severity.String(), Short: true},
	}
	if m.Record.Ratio > 0 {
		fields = append(fields, slackField{Title: "Usage", Value: fmt.Sprintf("%.1f%%", m.Record.Ratio*100), Short: true})
	}

	payload := slackPayload{
		Channel: s.channel,
		Text:    m.Text,
		Attachments: []slackAttachment{{
			Color:  color,
			Title:  fmt.Sprintf("jobgate: %s", m.Record.Class),
			Fields: fields,
			Footer: "jobgate",
			Ts:     m.Record.At.Unix(),
		}},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send slack alert: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack returned status %d", resp.StatusCode)
	}
	return nil
}

type slackPayload struct {
	Channel     string            `json:"channel,omitempty"`
	Text        string            `json:"text"`
	Attachments []slackAttachment `json:"attachments"`
}

type slackAttachment struct {
	Color  string       `json:"color"`
	Title  string       `json:"title"`
	Fields []slackField `json:"fields"`
	Footer string       `json:"footer"`
	Ts     int64        `json:"ts"`
}

type slackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}
