package sender

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"message_dispatch/internal/models"
)

// TelegramSender talks to the Telegram Bot API. A file attachment is a
// follow-up sendDocument call after the text message is confirmed: if the
// follow-up fails, the text portion still counts as delivered and the
// failure is only logged.
type TelegramSender struct {
	baseURL string
	token   string
	client  *http.Client
	logger  *log.Logger
}

func NewTelegramSender(baseURL, token string, timeout time.Duration, logger *log.Logger) *TelegramSender {
	if logger == nil {
		logger = log.Default()
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &TelegramSender{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

func (s *TelegramSender) Platform() string { return models.PlatformTelegram }

func (s *TelegramSender) SendOne(ctx context.Context, recipient, content, fileURL string) Result {
	if s.token == "" {
		return Result{Message: "telegram: bot token is not configured"}
	}

	res := s.call(ctx, "sendMessage", map[string]any{
		"chat_id": recipient,
		"text":    content,
	})
	if !res.Success {
		return res
	}

	if fileURL != "" {
		doc := s.call(ctx, "sendDocument", map[string]any{
			"chat_id":  recipient,
			"document": fileURL,
		})
		if !doc.Success {
			s.logger.Printf("telegram sendDocument failed for %s: %s", recipient, doc.Message)
		}
	}

	return res
}

func (s *TelegramSender) call(ctx context.Context, method string, payload map[string]any) Result {
	b, err := json.Marshal(payload)
	if err != nil {
		return Result{Message: fmt.Sprintf("telegram: marshal %s payload: %v", method, err)}
	}

	url := fmt.Sprintf("%s/bot%s/%s", s.baseURL, s.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return Result{Message: fmt.Sprintf("telegram: build %s request: %v", method, err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return Result{Message: fmt.Sprintf("telegram: %s request failed: %v", method, err)}
	}
	defer resp.Body.Close()

	var body struct {
		OK          bool   `json:"ok"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Result{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("telegram: decode %s response: %v", method, err),
		}
	}

	if !body.OK {
		msg := body.Description
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return Result{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("telegram: %s: %s", method, msg),
		}
	}

	return Result{Success: true, StatusCode: resp.StatusCode, Message: "delivered"}
}
