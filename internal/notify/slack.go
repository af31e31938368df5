package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Slack posts alerts to an incoming webhook as Block Kit messages.
type Slack struct {
	Webhook string
	Client  *http.Client
}

// NewSlack returns nil when no webhook is configured.
func NewSlack(webhook string) *Slack {
	if webhook == "" {
		return nil
	}
	return &Slack{
		Webhook: webhook,
		Client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type slackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type slackBlock struct {
	Type     string      `json:"type"`
	Text     *slackText  `json:"text,omitempty"`
	Fields   []slackText `json:"fields,omitempty"`
	Elements []slackText `json:"elements,omitempty"`
}

type slackMessage struct {
	Text   string       `json:"text"` // notification fallback
	Blocks []slackBlock `json:"blocks"`
}

func mrkdwn(label, value string) slackText {
	return slackText{Type: "mrkdwn", Text: "*" + label + "*\n" + value}
}

func slackMessageFor(a Alert) slackMessage {
	service := a.Service
	if a.Category != "" {
		service += " (" + a.Category + ")"
	}
	return slackMessage{
		Text: fmt.Sprintf("%s: %s is %s", a.Title(), a.Service, a.Status),
		Blocks: []slackBlock{
			{Type: "header", Text: &slackText{Type: "plain_text", Text: a.Title()}},
			{Type: "section", Fields: []slackText{
				mrkdwn("Service", service),
				mrkdwn("Status", string(a.Status)),
				mrkdwn("Latency", fmt.Sprintf("%.0f ms", a.LatencyMS)),
				mrkdwn("Reason", a.reason()),
			}},
			{Type: "context", Elements: []slackText{
				{Type: "mrkdwn", Text: "Checked " + a.CheckedAt.UTC().Format(time.RFC3339)},
			}},
		},
	}
}

func (s *Slack) Send(ctx context.Context, a Alert) error {
	if s == nil || s.Webhook == "" {
		return errors.New("slack disabled")
	}
	body, err := json.Marshal(slackMessageFor(a))
	if err != nil {
		return fmt.Errorf("encode slack payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.Webhook, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.Client.Do(req)
	if err != nil {
		return fmt.Errorf("post slack webhook %s: %w", a.Service, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("slack webhook returned %d for %s", resp.StatusCode, a.Service)
	}
	return nil
}
