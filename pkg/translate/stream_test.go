package translate_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/patchbay/pkg/gemini"
	"github.com/papercomputeco/patchbay/pkg/openai"
	"github.com/papercomputeco/patchbay/pkg/translate"
)

func textChunk(text, finishReason string) *gemini.GenerateResponse {
	return &gemini.GenerateResponse{
		Candidates: []gemini.Candidate{{
			Content: gemini.Content{
				Role:  gemini.RoleModel,
				Parts: []gemini.Part{{Text: text}},
			},
			FinishReason: finishReason,
		}},
	}
}

var _ = Describe("ChunkStream", func() {
	var stream *translate.ChunkStream

	BeforeEach(func() {
		stream = translate.NewChunkStream("gemini-2.5-pro")
	})

	It("emits the assistant role delta before any content", func() {
		events := stream.Translate(textChunk("Hello", ""))

		Expect(events).To(HaveLen(2))
		Expect(events[0].Choices[0].Delta.Role).To(Equal(openai.RoleAssistant))
		Expect(events[0].Choices[0].Delta.Content).To(BeEmpty())
		Expect(events[0].Choices[0].FinishReason).To(BeNil())
		Expect(events[1].Choices[0].Delta.Content).To(Equal("Hello"))
	})

	It("emits the role delta only once", func() {
		first := stream.Translate(textChunk("Hello", ""))
		second := stream.Translate(textChunk(" world", ""))

		Expect(first).To(HaveLen(2))
		Expect(second).To(HaveLen(1))
		Expect(second[0].Choices[0].Delta.Role).To(BeEmpty())
		Expect(second[0].Choices[0].Delta.Content).To(Equal(" world"))
	})

	It("stamps every event with the shared completion identity", func() {
		events := stream.Translate(textChunk("Hello", ""))
		events = append(events, stream.Translate(textChunk(" world", gemini.FinishReasonStop))...)

		for _, ev := range events {
			Expect(ev.ID).To(Equal(stream.ID()))
			Expect(ev.ID).To(HavePrefix("chatcmpl-"))
			Expect(ev.Object).To(Equal("chat.completion.chunk"))
			Expect(ev.Model).To(Equal("gemini-2.5-pro"))
			Expect(ev.Created).To(Equal(events[0].Created))
		}
	})

	It("ends with a terminal event carrying the finish reason and empty delta", func() {
		stream.Translate(textChunk("Hello", ""))
		events := stream.Translate(textChunk(" world", gemini.FinishReasonStop))

		Expect(events).To(HaveLen(2))
		Expect(events[0].Choices[0].Delta.Content).To(Equal(" world"))

		terminal := events[1]
		Expect(terminal.Choices[0].Delta).To(Equal(openai.Delta{}))
		Expect(terminal.Choices[0].FinishReason).NotTo(BeNil())
		Expect(*terminal.Choices[0].FinishReason).To(Equal(openai.FinishStop))

		Expect(stream.FinishReason()).To(Equal(openai.FinishStop))
	})

	It("maps a truncated stream to finish_reason length", func() {
		events := stream.Translate(textChunk("partial", gemini.FinishReasonMaxTokens))

		terminal := events[len(events)-1]
		Expect(*terminal.Choices[0].FinishReason).To(Equal(openai.FinishLength))
	})

	It("ignores chunks after the terminal event", func() {
		stream.Translate(textChunk("done", gemini.FinishReasonStop))
		Expect(stream.Translate(textChunk("late", ""))).To(BeEmpty())
	})

	It("accumulates the completion text across chunks", func() {
		stream.Translate(textChunk("Hello", ""))
		stream.Translate(textChunk(" world", gemini.FinishReasonStop))

		Expect(stream.CompletionText()).To(Equal("Hello world"))
	})

	It("captures usage from the final chunk", func() {
		stream.Translate(textChunk("Hello", ""))
		final := textChunk(" world", gemini.FinishReasonStop)
		final.UsageMetadata = &gemini.UsageMetadata{
			PromptTokenCount:     5,
			CandidatesTokenCount: 2,
			TotalTokenCount:      7,
		}
		stream.Translate(final)

		usage := stream.Usage()
		Expect(usage).NotTo(BeNil())
		Expect(usage.PromptTokens).To(Equal(5))
		Expect(usage.CompletionTokens).To(Equal(2))
		Expect(usage.TotalTokens).To(Equal(7))
	})

	It("reports nil usage when no chunk carried it", func() {
		stream.Translate(textChunk("Hello", gemini.FinishReasonStop))
		Expect(stream.Usage()).To(BeNil())
	})

	It("translates a blocked prompt into a terminal content_filter event", func() {
		events := stream.Translate(&gemini.GenerateResponse{
			PromptFeedback: &gemini.PromptFeedback{BlockReason: "SAFETY"},
		})

		Expect(events).To(HaveLen(2))
		Expect(events[0].Choices[0].Delta.Role).To(Equal(openai.RoleAssistant))
		Expect(*events[1].Choices[0].FinishReason).To(Equal(openai.FinishContentFilter))
	})

	Describe("Finish", func() {
		It("emits a terminal stop event when the stream ended without one", func() {
			stream.Translate(textChunk("Hello", ""))
			events := stream.Finish()

			Expect(events).To(HaveLen(1))
			Expect(*events[0].Choices[0].FinishReason).To(Equal(openai.FinishStop))
		})

		It("emits the role delta for a stream that produced nothing", func() {
			events := stream.Finish()

			Expect(events).To(HaveLen(2))
			Expect(events[0].Choices[0].Delta.Role).To(Equal(openai.RoleAssistant))
			Expect(*events[1].Choices[0].FinishReason).To(Equal(openai.FinishStop))
		})

		It("is a no-op after the terminal event", func() {
			stream.Translate(textChunk("done", gemini.FinishReasonStop))
			Expect(stream.Finish()).To(BeEmpty())
		})
	})
})
