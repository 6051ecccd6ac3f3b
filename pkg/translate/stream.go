package translate

import (
	"strings"

	"github.com/papercomputeco/patchbay/pkg/gemini"
	"github.com/papercomputeco/patchbay/pkg/openai"
)

// ChunkStream translates a sequence of Vertex stream chunks into caller
// stream events sharing one completion identity. The first emitted event
// carries the assistant role delta, content events follow in arrival order,
// and exactly one terminal event carries the finish reason.
//
// Not safe for concurrent use; the relay owns exactly one per request.
type ChunkStream struct {
	id      string
	model   string
	created int64

	sentRole bool
	finished bool
	finish   string

	completion strings.Builder
	usage      *gemini.UsageMetadata
}

// NewChunkStream creates a translator for one streaming completion.
func NewChunkStream(model string) *ChunkStream {
	return &ChunkStream{
		id:      openai.NewCompletionID(),
		model:   model,
		created: openai.Now(),
	}
}

// ID returns the completion identifier shared by all events.
func (s *ChunkStream) ID() string {
	return s.id
}

// Translate maps one Vertex chunk onto zero or more caller events, in
// arrival order. After the terminal event has been produced, further chunks
// yield nothing.
func (s *ChunkStream) Translate(chunk *gemini.GenerateResponse) []openai.StreamEvent {
	// The final Vertex chunk carries cumulative usage for the whole stream,
	// sometimes trailing the finish reason. Capture it even after the
	// terminal event so the usage record stays accurate.
	if chunk.UsageMetadata != nil {
		s.usage = chunk.UsageMetadata
	}

	if s.finished {
		return nil
	}

	var events []openai.StreamEvent

	if len(chunk.Candidates) == 0 {
		// A blocked prompt produces a terminal content_filter event; bare
		// usage-only chunks produce nothing.
		if chunk.PromptFeedback != nil && chunk.PromptFeedback.BlockReason != "" {
			events = s.appendRole(events)
			events = append(events, s.terminal(openai.FinishContentFilter))
		}
		return events
	}

	candidate := chunk.Candidates[0]

	var text strings.Builder
	for _, part := range candidate.Content.Parts {
		text.WriteString(part.Text)
	}

	events = s.appendRole(events)

	if text.Len() > 0 {
		s.completion.WriteString(text.String())
		events = append(events, s.event(openai.Delta{Content: text.String()}, nil))
	}

	if candidate.FinishReason != "" {
		events = append(events, s.terminal(FinishReason(candidate.FinishReason)))
	}

	return events
}

// Finish closes out a stream that ended without a terminal finish reason,
// yielding the final stop event. Returns nothing if the terminal event was
// already produced.
func (s *ChunkStream) Finish() []openai.StreamEvent {
	if s.finished {
		return nil
	}

	var events []openai.StreamEvent
	events = s.appendRole(events)
	events = append(events, s.terminal(openai.FinishStop))
	return events
}

// FinishReason returns the mapped terminal reason, or empty while the
// stream is still open.
func (s *ChunkStream) FinishReason() string {
	return s.finish
}

// CompletionText returns the assistant text accumulated so far.
func (s *ChunkStream) CompletionText() string {
	return s.completion.String()
}

// Usage returns the backend usage if any chunk carried it, otherwise nil.
func (s *ChunkStream) Usage() *openai.Usage {
	if s.usage == nil {
		return nil
	}

	return &openai.Usage{
		PromptTokens:     s.usage.PromptTokenCount,
		CompletionTokens: s.usage.CandidatesTokenCount,
		TotalTokens:      s.usage.TotalTokenCount,
	}
}

// appendRole prepends the one-time assistant role event.
func (s *ChunkStream) appendRole(events []openai.StreamEvent) []openai.StreamEvent {
	if s.sentRole {
		return events
	}
	s.sentRole = true
	return append(events, s.event(openai.Delta{Role: openai.RoleAssistant}, nil))
}

func (s *ChunkStream) terminal(reason string) openai.StreamEvent {
	s.finished = true
	s.finish = reason
	return s.event(openai.Delta{}, &reason)
}

func (s *ChunkStream) event(delta openai.Delta, finish *string) openai.StreamEvent {
	return openai.StreamEvent{
		ID:      s.id,
		Object:  "chat.completion.chunk",
		Created: s.created,
		Model:   s.model,
		Choices: []openai.ChunkChoice{{
			Index:        0,
			Delta:        delta,
			FinishReason: finish,
		}},
	}
}
