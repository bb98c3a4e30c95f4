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

// WhatsAppSender uses a gateway with a native broadcast endpoint, so it
// implements the bulk capability with a single API call instead of
// per-recipient fan-out.
type WhatsAppSender struct {
	baseURL string
	token   string
	client  *http.Client
}

func NewWhatsAppSender(baseURL, token string, timeout time.Duration) *WhatsAppSender {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &WhatsAppSender{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: timeout},
	}
}

func (s *WhatsAppSender) Platform() string { return models.PlatformWhatsApp }

func (s *WhatsAppSender) SendOne(ctx context.Context, recipient, content, fileURL string) Result {
	payload := map[string]any{
		"to":   recipient,
		"body": content,
	}
	if fileURL != "" {
		payload["media_url"] = fileURL
	}
	return s.post(ctx, "/v1/messages", payload)
}

func (s *WhatsAppSender) SendMany(ctx context.Context, recipients []string, content, fileURL string) Result {
	payload := map[string]any{
		"to":   recipients,
		"body": content,
	}
	if fileURL != "" {
		payload["media_url"] = fileURL
	}
	res := s.post(ctx, "/v1/messages/broadcast", payload)
	if res.Success && res.Message == "delivered" {
		res.Message = fmt.Sprintf("%d/%d delivered", len(recipients), len(recipients))
	}
	return res
}

func (s *WhatsAppSender) post(ctx context.Context, path string, payload map[string]any) Result {
	if s.token == "" {
		return Result{Message: "whatsapp: api token is not configured"}
	}

	b, err := json.Marshal(payload)
	if err != nil {
		return Result{Message: fmt.Sprintf("whatsapp: marshal payload: %v", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(b))
	if err != nil {
		return Result{Message: fmt.Sprintf("whatsapp: build request: %v", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.token)

	resp, err := s.client.Do(req)
	if err != nil {
		return Result{Message: fmt.Sprintf("whatsapp: request failed: %v", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var body struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&body)
		msg := body.Error
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return Result{
			StatusCode: resp.StatusCode,
			Message:    "whatsapp: " + msg,
		}
	}

	return Result{Success: true, StatusCode: resp.StatusCode, Message: "delivered"}
}
