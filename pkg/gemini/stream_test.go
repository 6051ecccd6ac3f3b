package gemini_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/patchbay/pkg/apierror"
	"github.com/papercomputeco/patchbay/pkg/gemini"
)

// sseUpstream serves a fixed SSE body for streamGenerateContent requests.
func sseUpstream(body string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		Expect(r.URL.Query().Get("alt")).To(Equal("sse"))
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte(body))
	}))
}

var _ = Describe("Stream", func() {
	Describe("Read", func() {
		It("yields chunks in order and ends with EOF", func() {
			upstream := sseUpstream(
				"data: {\"candidates\":[{\"content\":{\"role\":\"model\",\"parts\":[{\"text\":\"Hello\"}]}}]}\n\n" +
					"data: {\"candidates\":[{\"content\":{\"role\":\"model\",\"parts\":[{\"text\":\" world\"}]},\"finishReason\":\"STOP\"}],\"usageMetadata\":{\"promptTokenCount\":5,\"candidatesTokenCount\":2,\"totalTokenCount\":7}}\n\n")
			defer upstream.Close()

			client := newClient(upstream.URL)
			stream, err := client.GenerateStream(context.Background(), "gemini-2.5-pro", &gemini.GenerateRequest{})
			Expect(err).NotTo(HaveOccurred())
			defer stream.Close()

			chunk1, err := stream.Read(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(chunk1.Candidates[0].Content.Parts[0].Text).To(Equal("Hello"))
			Expect(chunk1.Candidates[0].FinishReason).To(BeEmpty())

			chunk2, err := stream.Read(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(chunk2.Candidates[0].Content.Parts[0].Text).To(Equal(" world"))
			Expect(chunk2.Candidates[0].FinishReason).To(Equal(gemini.FinishReasonStop))
			Expect(chunk2.UsageMetadata.TotalTokenCount).To(Equal(7))

			_, err = stream.Read(context.Background())
			Expect(err).To(Equal(io.EOF))
		})

		It("classifies a mid-stream error envelope", func() {
			upstream := sseUpstream(
				"data: {\"candidates\":[{\"content\":{\"role\":\"model\",\"parts\":[{\"text\":\"partial\"}]}}]}\n\n" +
					"data: {\"error\":{\"code\":429,\"message\":\"Quota exceeded\",\"status\":\"RESOURCE_EXHAUSTED\"}}\n\n")
			defer upstream.Close()

			client := newClient(upstream.URL)
			stream, err := client.GenerateStream(context.Background(), "gemini-2.5-pro", &gemini.GenerateRequest{})
			Expect(err).NotTo(HaveOccurred())
			defer stream.Close()

			chunk, err := stream.Read(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(chunk.Candidates[0].Content.Parts[0].Text).To(Equal("partial"))

			_, err = stream.Read(context.Background())
			Expect(err).To(HaveOccurred())
			Expect(apierror.KindOf(err)).To(Equal(apierror.KindRateLimited))
			Expect(err).To(MatchError(ContainSubstring("Quota exceeded")))
		})

		It("returns the context error once canceled", func() {
			upstream := sseUpstream("data: {\"candidates\":[]}\n\n")
			defer upstream.Close()

			client := newClient(upstream.URL)
			stream, err := client.GenerateStream(context.Background(), "gemini-2.5-pro", &gemini.GenerateRequest{})
			Expect(err).NotTo(HaveOccurred())
			defer stream.Close()

			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			_, err = stream.Read(ctx)
			Expect(err).To(MatchError(context.Canceled))
		})

		It("returns EOF after Close", func() {
			upstream := sseUpstream("data: {\"candidates\":[]}\n\n")
			defer upstream.Close()

			client := newClient(upstream.URL)
			stream, err := client.GenerateStream(context.Background(), "gemini-2.5-pro", &gemini.GenerateRequest{})
			Expect(err).NotTo(HaveOccurred())

			Expect(stream.Close()).To(Succeed())
			Expect(stream.Close()).To(Succeed())

			_, err = stream.Read(context.Background())
			Expect(err).To(Equal(io.EOF))
		})
	})

	Describe("GenerateStream", func() {
		It("classifies a rejected connect before returning a stream", func() {
			upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusForbidden)
				_, _ = w.Write([]byte(`{"error": {"code": 403, "message": "Caller lacks permission", "status": "PERMISSION_DENIED"}}`))
			}))
			defer upstream.Close()

			client := newClient(upstream.URL)
			_, err := client.GenerateStream(context.Background(), "gemini-2.5-pro", &gemini.GenerateRequest{})

			Expect(err).To(HaveOccurred())
			Expect(apierror.KindOf(err)).To(Equal(apierror.KindUpstreamAuth))
		})
	})
})
