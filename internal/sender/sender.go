package sender

import "context"

// Result is the uniform outcome of a delivery attempt. Ordinary delivery
// failures (remote rejection, timeout, bad recipient) and configuration
// problems both land here with Success=false; a Sender never aborts the
// caller.
type Result struct {
	Success    bool   `json:"success"`
	StatusCode int    `json:"status_code,omitempty"`
	Message    string `json:"message,omitempty"`
}

// Sender delivers a message to a single recipient on one platform.
// Implementations are stateless singletons: credentials are loaded at
// construction and no per-call state is kept, so one instance is safe to
// share across concurrent dispatches. A Sender makes exactly one delivery
// attempt per recipient per call.
type Sender interface {
	Platform() string
	SendOne(ctx context.Context, recipient, content, fileURL string) Result
}

// BulkSender marks senders with a multi-recipient path of their own, either
// the platform's native bulk endpoint or internal per-recipient fan-out.
// Callers branch on this capability, not on platform identity. When the bulk
// path is built from individual sends, Success is the AND over all
// per-recipient outcomes and Message carries the delivered ratio.
type BulkSender interface {
	Sender
	SendMany(ctx context.Context, recipients []string, content, fileURL string) Result
}
