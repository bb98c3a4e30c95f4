package models

import "time"

const (
	PlatformTelegram = "telegram"
	PlatformSlack    = "slack"
	PlatformWhatsApp = "whatsapp"
	PlatformDiscord  = "discord"
)

// SupportedPlatforms is the closed set of platform tags a message may target.
var SupportedPlatforms = []string{
	PlatformTelegram,
	PlatformSlack,
	PlatformWhatsApp,
	PlatformDiscord,
}

func IsSupportedPlatform(p string) bool {
	for _, s := range SupportedPlatforms {
		if p == s {
			return true
		}
	}
	return false
}

// Message is the persisted outcome of one dispatch. It is written exactly
// once, after the delivery attempt settles, and never updated afterwards.
type Message struct {
	ID            int        `json:"id" db:"id"`
	OwnerID       string     `json:"owner_id" db:"owner_id"`
	Recipients    []string   `json:"recipients" db:"recipients"`
	Platform      string     `json:"platform" db:"platform"`
	Content       string     `json:"content" db:"content"`
	FileURL       *string    `json:"file_url,omitempty" db:"file_url"`
	Sent          bool       `json:"sent" db:"sent"`
	ResultMessage *string    `json:"result_message,omitempty" db:"result_message"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
}

// MessagePage is the snapshot stored in the cache for one (owner, limit,
// offset) window. Total is captured at write time so pagination metadata can
// be rebuilt on a cache hit.
type MessagePage struct {
	Items []Message `json:"items"`
	Total int       `json:"total"`
}

type Pagination struct {
	Total       int  `json:"total"`
	Limit       int  `json:"limit"`
	Offset      int  `json:"offset"`
	HasNext     bool `json:"has_next"`
	HasPrevious bool `json:"has_previous"`
}

type MessageListResponse struct {
	Items      []Message  `json:"items"`
	FromCache  bool       `json:"from_cache"`
	Pagination Pagination `json:"pagination"`
}

// PlatformStats is one row of the per-owner group-by aggregate.
type PlatformStats struct {
	Platform string `json:"platform"`
	Sent     int    `json:"sent"`
	Failed   int    `json:"failed"`
}
