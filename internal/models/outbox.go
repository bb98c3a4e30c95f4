package models

import (
	"encoding/json"
	"time"
)

type OutboxEvent struct {
	ID      int             `db:"id"`
	EventID string          `db:"event_id"` // UUID assigned by the database
	Topic   string          `db:"topic"`
	Payload json.RawMessage `db:"payload"` // stored as JSONB

	Status     string     `db:"status"` // pending, sent, failed
	RetryCount int        `db:"retry_count"`
	CreatedAt  time.Time  `db:"created_at"`
	SentAt     *time.Time `db:"sent_at"`
	LastError  *string    `db:"last_error"`
}
