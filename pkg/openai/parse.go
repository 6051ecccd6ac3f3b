package openai

import (
	"encoding/json"

	"github.com/papercomputeco/patchbay/pkg/apierror"
)

// wireRequest is the raw inbound shape. Content is decoded as `any` because
// callers send either a plain string or an array of typed parts.
type wireRequest struct {
	Model       string        `json:"model"`
	Messages    []wireMessage `json:"messages"`
	MaxTokens   *int          `json:"max_tokens,omitempty"`
	Temperature *float64      `json:"temperature,omitempty"`
	TopP        *float64      `json:"top_p,omitempty"`
	Stop        any           `json:"stop,omitempty"` // string or []string
	Stream      *bool         `json:"stream,omitempty"`
}

type wireMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

// ParseRequest decodes and validates a chat completion payload. All
// failures are classified InvalidRequest; the request is never mutated after
// this returns.
func ParseRequest(payload []byte) (*ChatRequest, error) {
	return parse(payload, "")
}

// ParseRequestForModel decodes payload like ParseRequest but forces the
// model identifier, so path-addressed routes may omit it from the body.
func ParseRequestForModel(payload []byte, model string) (*ChatRequest, error) {
	return parse(payload, model)
}

func parse(payload []byte, modelOverride string) (*ChatRequest, error) {
	var req wireRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, apierror.InvalidRequest("Invalid JSON body", "")
	}

	messages := make([]Message, 0, len(req.Messages))
	for _, msg := range req.Messages {
		converted := Message{Role: msg.Role}

		switch content := msg.Content.(type) {
		case string:
			converted.Content = []ContentBlock{{Type: "text", Text: content}}
		case []any:
			// Multimodal content (e.g., vision)
			for _, item := range content {
				part, ok := item.(map[string]any)
				if !ok {
					continue
				}
				cb := ContentBlock{}
				if t, ok := part["type"].(string); ok {
					cb.Type = t
				}
				if text, ok := part["text"].(string); ok {
					cb.Text = text
				}
				if imageURL, ok := part["image_url"].(map[string]any); ok {
					cb.Type = "image"
					if url, ok := imageURL["url"].(string); ok {
						cb.ImageURL = url
					}
				}
				converted.Content = append(converted.Content, cb)
			}
		case nil:
			converted.Content = []ContentBlock{}
		}

		messages = append(messages, converted)
	}

	var stop []string
	switch s := req.Stop.(type) {
	case string:
		stop = []string{s}
	case []any:
		for _, item := range s {
			if str, ok := item.(string); ok {
				stop = append(stop, str)
			}
		}
	}

	result := &ChatRequest{
		Model:       req.Model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		Stop:        stop,
		Stream:      req.Stream,
		RawRequest:  payload,
	}

	if modelOverride != "" {
		result.Model = modelOverride
	}

	if err := result.Validate(); err != nil {
		return nil, err
	}

	return result, nil
}

// Validate enforces the request invariants: a model identifier, a non-empty
// message list, known roles, and parameter ranges.
func (r *ChatRequest) Validate() error {
	if r.Model == "" {
		return apierror.InvalidRequest("'model' is required", "model")
	}
	if len(r.Messages) == 0 {
		return apierror.InvalidRequest("'messages' must not be empty", "messages")
	}
	for _, msg := range r.Messages {
		switch msg.Role {
		case RoleSystem, RoleUser, RoleAssistant:
		default:
			return apierror.InvalidRequest("invalid message role '"+msg.Role+"'", "messages")
		}
	}
	if r.Temperature != nil && (*r.Temperature < 0 || *r.Temperature > 2) {
		return apierror.InvalidRequest("'temperature' must be between 0 and 2", "temperature")
	}
	if r.TopP != nil && (*r.TopP < 0 || *r.TopP > 1) {
		return apierror.InvalidRequest("'top_p' must be between 0 and 1", "top_p")
	}
	if r.MaxTokens != nil && *r.MaxTokens <= 0 {
		return apierror.InvalidRequest("'max_tokens' must be positive", "max_tokens")
	}
	return nil
}
