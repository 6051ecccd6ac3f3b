// Package openai holds the caller-facing wire types for the OpenAI-style
// chat completion protocol, plus the parsing and validation applied at the
// gateway edge.
package openai

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Finish reasons in the caller vocabulary. Backend finish signals are
// mapped onto exactly these three values.
const (
	FinishStop          = "stop"
	FinishLength        = "length"
	FinishContentFilter = "content_filter"
)

// Message roles accepted from callers.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single conversation message after normalization. Content is
// an array of blocks so multimodal messages (text plus image parts) survive
// parsing in one shape.
type Message struct {
	Role    string         `json:"role"`
	Content []ContentBlock `json:"content"`
}

// ContentBlock is one piece of content within a message. Type determines
// which fields are populated.
type ContentBlock struct {
	Type string `json:"type"` // "text" or "image"

	Text string `json:"text,omitempty"`

	ImageURL  string `json:"image_url,omitempty"`
	MediaType string `json:"media_type,omitempty"`
}

// NewTextMessage creates a simple text message with the given role.
func NewTextMessage(role, text string) Message {
	return Message{
		Role: role,
		Content: []ContentBlock{
			{Type: "text", Text: text},
		},
	}
}

// GetText returns the concatenated text content from all text blocks.
func (m *Message) GetText() string {
	var result string
	for _, block := range m.Content {
		if block.Type == "text" {
			result += block.Text
		}
	}
	return result
}

// ChatRequest is a parsed chat completion request. Immutable once parsed;
// the trimming and translation stages work on copies.
type ChatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`

	Stream *bool `json:"stream,omitempty"`

	MaxTokens   *int     `json:"max_tokens,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	TopP        *float64 `json:"top_p,omitempty"`
	Stop        []string `json:"stop,omitempty"`

	// RawRequest preserves the original payload for debugging.
	RawRequest json.RawMessage `json:"raw_request,omitempty"`
}

// Streaming reports whether the caller asked for a streamed response.
func (r *ChatRequest) Streaming() bool {
	return r.Stream != nil && *r.Stream
}

// Usage is the token accounting block of a completion response.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ResponseMessage is the assistant message inside a completion choice.
type ResponseMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Choice is one completion choice. The gateway always produces exactly one.
type Choice struct {
	Index        int             `json:"index"`
	Message      ResponseMessage `json:"message"`
	FinishReason string          `json:"finish_reason"`
}

// CompletionResponse is the non-streaming response body.
type CompletionResponse struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   *Usage   `json:"usage,omitempty"`
}

// Delta is the incremental content of one stream event.
type Delta struct {
	Role    string `json:"role,omitempty"`
	Content string `json:"content,omitempty"`
}

// ChunkChoice is one choice of a stream event. FinishReason is null until
// the terminal event.
type ChunkChoice struct {
	Index        int     `json:"index"`
	Delta        Delta   `json:"delta"`
	FinishReason *string `json:"finish_reason"`
}

// StreamEvent is one caller-facing delta event, serialized as an SSE data
// frame.
type StreamEvent struct {
	ID      string        `json:"id"`
	Object  string        `json:"object"`
	Created int64         `json:"created"`
	Model   string        `json:"model"`
	Choices []ChunkChoice `json:"choices"`
}

// ModelInfo describes one supported model.
type ModelInfo struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	OwnedBy string `json:"owned_by"`
}

// ModelList is the /v1/models response body.
type ModelList struct {
	Object string      `json:"object"`
	Data   []ModelInfo `json:"data"`
}

// NewCompletionID generates a chat completion identifier shared by a
// response and all of its stream events.
func NewCompletionID() string {
	return "chatcmpl-" + uuid.NewString()
}

// Now returns the unix timestamp stamped onto responses and events.
func Now() int64 {
	return time.Now().Unix()
}
