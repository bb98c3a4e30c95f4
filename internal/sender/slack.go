package sender

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"message_dispatch/internal/models"
)

// SlackSender posts through the chat.postMessage API. Slack has no bulk
// endpoint, so multi-recipient sends fall back to the orchestrator's
// per-recipient fan-out.
type SlackSender struct {
	baseURL string
	token   string
	client  *http.Client
}

func NewSlackSender(baseURL, token string, timeout time.Duration) *SlackSender {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &SlackSender{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: timeout},
	}
}

func (s *SlackSender) Platform() string { return models.PlatformSlack }

func (s *SlackSender) SendOne(ctx context.Context, recipient, content, fileURL string) Result {
	if s.token == "" {
		return Result{Message: "slack: bot token is not configured"}
	}

	payload := map[string]any{
		"channel": recipient,
		"text":    content,
	}
	if fileURL != "" {
		payload["attachments"] = []map[string]any{
			{"fallback": "attachment", "image_url": fileURL},
		}
	}

	b, err := json.Marshal(payload)
	if err != nil {
		return Result{Message: fmt.Sprintf("slack: marshal payload: %v", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/api/chat.postMessage", bytes.NewReader(b))
	if err != nil {
		return Result{Message: fmt.Sprintf("slack: build request: %v", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.token)

	resp, err := s.client.Do(req)
	if err != nil {
		return Result{Message: fmt.Sprintf("slack: request failed: %v", err)}
	}
	defer resp.Body.Close()

	var body struct {
		OK    bool   `json:"ok"`
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Result{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("slack: decode response: %v", err),
		}
	}

	if !body.OK {
		msg := body.Error
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return Result{
			StatusCode: resp.StatusCode,
			Message:    "slack: " + msg,
		}
	}

	return Result{Success: true, StatusCode: resp.StatusCode, Message: "delivered"}
}
