package gemini

// Role values accepted by the Vertex AI generateContent API. Note that the
// assistant role is called "model" on the Vertex side; the caller-facing
// "system" role has no Vertex equivalent and travels as systemInstruction.
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// Finish reasons reported by Vertex AI candidates.
const (
	FinishReasonStop              = "STOP"
	FinishReasonMaxTokens         = "MAX_TOKENS"
	FinishReasonSafety            = "SAFETY"
	FinishReasonRecitation        = "RECITATION"
	FinishReasonBlocklist         = "BLOCKLIST"
	FinishReasonProhibitedContent = "PROHIBITED_CONTENT"
	FinishReasonSPII              = "SPII"
)

// GenerateRequest is the request body for generateContent and
// streamGenerateContent.
type GenerateRequest struct {
	Contents          []Content         `json:"contents"`
	SystemInstruction *Content          `json:"systemInstruction,omitempty"`
	GenerationConfig  *GenerationConfig `json:"generationConfig,omitempty"`
}

// Content is a single conversation turn: a role plus ordered parts.
// The systemInstruction content carries no role.
type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

// Part is one piece of turn content. Only text parts are produced by the
// gateway today.
type Part struct {
	Text string `json:"text,omitempty"`

	InlineData *Blob `json:"inlineData,omitempty"`
}

// Blob is base64-encoded inline media.
type Blob struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

// GenerationConfig tunes sampling for a single request. Pointer fields are
// omitted entirely when the caller did not set them, deferring to Vertex
// defaults.
type GenerationConfig struct {
	Temperature     *float64 `json:"temperature,omitempty"`
	TopP            *float64 `json:"topP,omitempty"`
	MaxOutputTokens *int     `json:"maxOutputTokens,omitempty"`
	StopSequences   []string `json:"stopSequences,omitempty"`
}

// GenerateResponse is a full generateContent response, and also the shape of
// each SSE data event from streamGenerateContent.
type GenerateResponse struct {
	Candidates     []Candidate     `json:"candidates"`
	PromptFeedback *PromptFeedback `json:"promptFeedback,omitempty"`
	UsageMetadata  *UsageMetadata  `json:"usageMetadata,omitempty"`
}

// Candidate is one generated completion.
type Candidate struct {
	Content      Content `json:"content"`
	FinishReason string  `json:"finishReason,omitempty"`
	Index        int     `json:"index"`
}

// PromptFeedback reports prompt-level blocking. A non-empty BlockReason means
// no candidates were generated at all.
type PromptFeedback struct {
	BlockReason string `json:"blockReason,omitempty"`
}

// UsageMetadata is the backend token accounting for a request.
type UsageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

// apiErrorEnvelope is the standard Google API error body.
type apiErrorEnvelope struct {
	Error *apiErrorDetail `json:"error"`
}

type apiErrorDetail struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

// streamEvent is a streamGenerateContent SSE payload. Mid-stream failures
// arrive as an error envelope instead of candidates.
type streamEvent struct {
	GenerateResponse
	Error *apiErrorDetail `json:"error,omitempty"`
}
