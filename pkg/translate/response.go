package translate

import (
	"strings"

	"github.com/papercomputeco/patchbay/pkg/apierror"
	"github.com/papercomputeco/patchbay/pkg/gemini"
	"github.com/papercomputeco/patchbay/pkg/openai"
	"github.com/papercomputeco/patchbay/pkg/tokens"
)

// FinishReason maps a Vertex finish reason onto the caller vocabulary of
// stop, length, and content_filter.
func FinishReason(reason string) string {
	switch reason {
	case gemini.FinishReasonMaxTokens:
		return openai.FinishLength
	case gemini.FinishReasonSafety, gemini.FinishReasonRecitation,
		gemini.FinishReasonBlocklist, gemini.FinishReasonProhibitedContent,
		gemini.FinishReasonSPII:
		return openai.FinishContentFilter
	default:
		// STOP, absent, and unrecognized reasons all read as a normal stop.
		return openai.FinishStop
	}
}

// Completion builds the caller-facing completion response from a full Vertex
// response. prompt is the trimmed message window that was sent upstream,
// used only for fallback usage estimation when the backend omits
// usageMetadata.
func Completion(model string, prompt []openai.Message, resp *gemini.GenerateResponse) (*openai.CompletionResponse, error) {
	text, finish, err := candidateText(resp)
	if err != nil {
		return nil, err
	}

	return &openai.CompletionResponse{
		ID:      openai.NewCompletionID(),
		Object:  "chat.completion",
		Created: openai.Now(),
		Model:   model,
		Choices: []openai.Choice{{
			Index: 0,
			Message: openai.ResponseMessage{
				Role:    openai.RoleAssistant,
				Content: text,
			},
			FinishReason: finish,
		}},
		Usage: usageFrom(prompt, text, resp.UsageMetadata),
	}, nil
}

// candidateText extracts the primary candidate text and its mapped finish
// reason. A prompt blocked by safety filters yields an empty content_filter
// choice rather than an error.
func candidateText(resp *gemini.GenerateResponse) (string, string, error) {
	if len(resp.Candidates) == 0 {
		if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
			return "", openai.FinishContentFilter, nil
		}
		return "", "", apierror.New(apierror.KindUpstreamError, "vertex returned no candidates")
	}

	var builder strings.Builder
	candidate := resp.Candidates[0]
	for _, part := range candidate.Content.Parts {
		builder.WriteString(part.Text)
	}

	return builder.String(), FinishReason(candidate.FinishReason), nil
}

// usageFrom prefers the backend accounting verbatim, falling back to the
// char-ratio estimate only when the backend omitted it entirely.
func usageFrom(prompt []openai.Message, completion string, meta *gemini.UsageMetadata) *openai.Usage {
	if meta != nil {
		return &openai.Usage{
			PromptTokens:     meta.PromptTokenCount,
			CompletionTokens: meta.CandidatesTokenCount,
			TotalTokens:      meta.TotalTokenCount,
		}
	}

	return EstimateUsage(prompt, completion)
}

// EstimateUsage approximates token usage with the char-ratio estimator.
// Used when the backend reports no usage, and for streamed completions
// whose final chunk carried none.
func EstimateUsage(prompt []openai.Message, completion string) *openai.Usage {
	chars := tokens.NewChars()

	promptTokens := 0
	for _, msg := range prompt {
		promptTokens += chars.EstimateText(msg.GetText())
	}
	completionTokens := chars.EstimateText(completion)

	return &openai.Usage{
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
		TotalTokens:      promptTokens + completionTokens,
	}
}
