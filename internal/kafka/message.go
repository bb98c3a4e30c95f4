package kafka

import (
	"time"

	"message_dispatch/internal/models"
)

// DispatchEvent is the payload published after a dispatch is persisted.
// Consumers key on owner_id, so events for one user stay ordered within a
// partition.
type DispatchEvent struct {
	MessageID  int       `json:"message_id"`
	OwnerID    string    `json:"owner_id"`
	Platform   string    `json:"platform"`
	Recipients int       `json:"recipients"`
	Sent       bool      `json:"sent"`
	CreatedAt  time.Time `json:"created_at"`
}

func NewDispatchEvent(msg *models.Message) *DispatchEvent {
	return &DispatchEvent{
		MessageID:  msg.ID,
		OwnerID:    msg.OwnerID,
		Platform:   msg.Platform,
		Recipients: len(msg.Recipients),
		Sent:       msg.Sent,
		CreatedAt:  msg.CreatedAt,
	}
}
