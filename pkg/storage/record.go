package storage

import (
	"time"

	"github.com/google/uuid"
)

// UsageRecord is one row in the usage ledger: a single chat completion,
// streamed or not, with the token counts the backend reported (or the
// gateway estimated when the backend reported none).
type UsageRecord struct {
	ID               string    `json:"id"`
	RequestID        string    `json:"request_id"`
	Model            string    `json:"model"`
	Streamed         bool      `json:"streamed"`
	FinishReason     string    `json:"finish_reason"`
	PromptTokens     int       `json:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens"`
	TotalTokens      int       `json:"total_tokens"`
	DurationMS       int64     `json:"duration_ms"`
	CreatedAt        time.Time `json:"created_at"`
}

// Stamp fills ID and CreatedAt when the caller left them unset.
// Drivers call it before inserting so callers may leave both fields zero.
func (r *UsageRecord) Stamp() {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
}

// Totals aggregates the ledger into request and token counts.
type Totals struct {
	Requests         int `json:"requests"`
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}
