package sender

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"message_dispatch/internal/models"
)

// DiscordSender posts channel messages via the Discord REST API. The API has
// no bulk endpoint, but the sender implements the bulk capability itself by
// issuing per-recipient sends concurrently: Success is the AND over all
// outcomes and Message carries the delivered ratio.
type DiscordSender struct {
	baseURL string
	token   string
	client  *http.Client
}

func NewDiscordSender(baseURL, token string, timeout time.Duration) *DiscordSender {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &DiscordSender{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: timeout},
	}
}

func (s *DiscordSender) Platform() string { return models.PlatformDiscord }

func (s *DiscordSender) SendOne(ctx context.Context, recipient, content, fileURL string) Result {
	if s.token == "" {
		return Result{Message: "discord: bot token is not configured"}
	}

	text := content
	if fileURL != "" {
		text = content + "\n" + fileURL
	}

	b, err := json.Marshal(map[string]any{"content": text})
	if err != nil {
		return Result{Message: fmt.Sprintf("discord: marshal payload: %v", err)}
	}

	url := fmt.Sprintf("%s/channels/%s/messages", s.baseURL, recipient)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return Result{Message: fmt.Sprintf("discord: build request: %v", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bot "+s.token)

	resp, err := s.client.Do(req)
	if err != nil {
		return Result{Message: fmt.Sprintf("discord: request failed: %v", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var body struct {
			Message string `json:"message"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&body)
		msg := body.Message
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return Result{
			StatusCode: resp.StatusCode,
			Message:    "discord: " + msg,
		}
	}

	return Result{Success: true, StatusCode: resp.StatusCode, Message: "delivered"}
}

func (s *DiscordSender) SendMany(ctx context.Context, recipients []string, content, fileURL string) Result {
	results := make([]Result, len(recipients))

	var wg sync.WaitGroup
	for i, rcpt := range recipients {
		wg.Add(1)
		go func(i int, rcpt string) {
			defer wg.Done()
			results[i] = s.SendOne(ctx, rcpt, content, fileURL)
		}(i, rcpt)
	}
	wg.Wait()

	delivered := 0
	firstFailure := ""
	for _, r := range results {
		if r.Success {
			delivered++
		} else if firstFailure == "" {
			firstFailure = r.Message
		}
	}

	if delivered == len(recipients) {
		return Result{
			Success: true,
			Message: fmt.Sprintf("%d/%d delivered", delivered, len(recipients)),
		}
	}
	return Result{
		Message: fmt.Sprintf("%d/%d delivered; first failure: %s", delivered, len(recipients), firstFailure),
	}
}
