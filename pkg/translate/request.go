// Package translate maps the caller-facing chat completion protocol onto the
// Vertex AI generateContent protocol and back. Both directions are pure
// value transforms; nothing here touches the network.
package translate

import (
	"strings"

	"github.com/papercomputeco/patchbay/pkg/apierror"
	"github.com/papercomputeco/patchbay/pkg/gemini"
	"github.com/papercomputeco/patchbay/pkg/openai"
)

// RequestTranslator maps chat requests onto Vertex requests for a fixed
// supported model set.
type RequestTranslator struct {
	order     []string
	supported map[string]bool
}

// NewRequestTranslator creates a translator accepting exactly the given
// model identifiers. Duplicates are collapsed; order is preserved.
func NewRequestTranslator(models []string) *RequestTranslator {
	supported := make(map[string]bool, len(models))
	order := make([]string, 0, len(models))
	for _, model := range models {
		if supported[model] {
			continue
		}
		supported[model] = true
		order = append(order, model)
	}

	return &RequestTranslator{order: order, supported: supported}
}

// Models returns the supported model identifiers in configuration order.
func (t *RequestTranslator) Models() []string {
	out := make([]string, len(t.order))
	copy(out, t.order)
	return out
}

// Supports reports whether model is in the supported set.
func (t *RequestTranslator) Supports(model string) bool {
	return t.supported[model]
}

// Translate maps a parsed chat request onto a Vertex GenerateRequest.
// System messages travel as systemInstruction, user turns keep the user
// role, and assistant turns become the Vertex "model" role. Messages with
// no usable content are dropped.
func (t *RequestTranslator) Translate(req *openai.ChatRequest) (*gemini.GenerateRequest, error) {
	if !t.supported[req.Model] {
		return nil, apierror.InvalidModel(req.Model)
	}

	var system []string
	contents := make([]gemini.Content, 0, len(req.Messages))

	for _, msg := range req.Messages {
		if msg.Role == openai.RoleSystem {
			if text := msg.GetText(); text != "" {
				system = append(system, text)
			}
			continue
		}

		parts, err := translateParts(msg.Content)
		if err != nil {
			return nil, err
		}
		if len(parts) == 0 {
			continue
		}

		contents = append(contents, gemini.Content{
			Role:  translateRole(msg.Role),
			Parts: parts,
		})
	}

	if len(contents) == 0 {
		return nil, apierror.InvalidRequest("at least one user or assistant message with content is required", "messages")
	}

	out := &gemini.GenerateRequest{Contents: contents}

	if len(system) > 0 {
		out.SystemInstruction = &gemini.Content{
			Parts: []gemini.Part{{Text: strings.Join(system, "\n")}},
		}
	}

	out.GenerationConfig = translateGenerationConfig(req)

	return out, nil
}

// translateRole maps a caller role onto the Vertex role vocabulary. The
// assistant role is called "model" on the Vertex side.
func translateRole(role string) string {
	if role == openai.RoleAssistant {
		return gemini.RoleModel
	}
	return gemini.RoleUser
}

func translateParts(blocks []openai.ContentBlock) ([]gemini.Part, error) {
	parts := make([]gemini.Part, 0, len(blocks))
	for _, block := range blocks {
		switch block.Type {
		case "text":
			if block.Text == "" {
				continue
			}
			parts = append(parts, gemini.Part{Text: block.Text})
		case "image":
			blob, err := parseDataURL(block.ImageURL)
			if err != nil {
				return nil, err
			}
			parts = append(parts, gemini.Part{InlineData: blob})
		}
	}

	return parts, nil
}

// parseDataURL decodes a data: URL into an inline blob. Remote image URLs
// are rejected; the gateway never fetches caller-supplied links.
func parseDataURL(url string) (*gemini.Blob, error) {
	rest, ok := strings.CutPrefix(url, "data:")
	if !ok {
		return nil, apierror.InvalidRequest("image URLs must be data: URLs", "messages")
	}

	meta, data, ok := strings.Cut(rest, ",")
	if !ok || !strings.HasSuffix(meta, ";base64") {
		return nil, apierror.InvalidRequest("image data URLs must be base64 encoded", "messages")
	}

	mimeType := strings.TrimSuffix(meta, ";base64")
	if mimeType == "" {
		mimeType = "image/png"
	}

	return &gemini.Blob{MimeType: mimeType, Data: data}, nil
}

// translateGenerationConfig maps sampling parameters. Returns nil when the
// caller set none, leaving Vertex defaults untouched.
func translateGenerationConfig(req *openai.ChatRequest) *gemini.GenerationConfig {
	if req.Temperature == nil && req.TopP == nil && req.MaxTokens == nil && len(req.Stop) == 0 {
		return nil
	}

	return &gemini.GenerationConfig{
		Temperature:     req.Temperature,
		TopP:            req.TopP,
		MaxOutputTokens: req.MaxTokens,
		StopSequences:   req.Stop,
	}
}
