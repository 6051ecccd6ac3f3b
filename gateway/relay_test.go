package gateway

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/patchbay/pkg/storage/inmemory"
)

var _ = Describe("Streaming Relay", func() {
	var (
		g        *Gateway
		driver   *inmemory.Driver
		upstream *httptest.Server
	)

	AfterEach(func() {
		if g != nil {
			g.Close()
		}
		if upstream != nil {
			upstream.Close()
		}
	})

	// newStreamStub serves the given SSE frames for streamGenerateContent.
	newStreamStub := func(frames []string) {
		upstream = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			Expect(r.URL.Path).To(ContainSubstring(":streamGenerateContent"))
			Expect(r.URL.Query().Get("alt")).To(Equal("sse"))

			w.Header().Set("Content-Type", "text/event-stream")
			flusher, ok := w.(http.Flusher)
			Expect(ok).To(BeTrue())

			for _, frame := range frames {
				fmt.Fprint(w, frame)
				flusher.Flush()
			}
		}))
		g, driver = newTestGateway(testConfig(upstream.URL))
	}

	streamChat := func() (*http.Response, string) {
		body := makeChatRequestBody(testModel, []chatTestMessage{
			{Role: "user", Content: "Say hello"},
		}, boolPtr(true))

		req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(string(body)))
		req.Header.Set("Content-Type", "application/json")
		resp, err := g.server.Test(req, -1)
		Expect(err).NotTo(HaveOccurred())

		raw, err := io.ReadAll(resp.Body)
		Expect(err).NotTo(HaveOccurred())
		resp.Body.Close()
		return resp, string(raw)
	}

	Context("when the backend streams chunks", func() {
		BeforeEach(func() {
			newStreamStub([]string{
				"data: {\"candidates\":[{\"content\":{\"role\":\"model\",\"parts\":[{\"text\":\"Hello\"}]},\"index\":0}]}\n\n",
				"data: {\"candidates\":[{\"content\":{\"role\":\"model\",\"parts\":[{\"text\":\" world\"}]},\"index\":0}]}\n\n",
				"data: {\"candidates\":[{\"content\":{\"role\":\"model\",\"parts\":[{\"text\":\"!\"}]},\"finishReason\":\"STOP\",\"index\":0}],\"usageMetadata\":{\"promptTokenCount\":10,\"candidatesTokenCount\":3,\"totalTokenCount\":13}}\n\n",
			})
		})

		It("responds with SSE headers", func() {
			resp, _ := streamChat()

			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Content-Type")).To(Equal("text/event-stream"))
			Expect(resp.Header.Get("Cache-Control")).To(Equal("no-cache"))
		})

		It("relays the role and content deltas in arrival order", func() {
			_, body := streamChat()

			Expect(body).To(ContainSubstring(`"delta":{"role":"assistant"}`))
			Expect(body).To(ContainSubstring(`"content":"Hello"`))
			Expect(body).To(ContainSubstring(`"content":" world"`))
			Expect(body).To(ContainSubstring(`"content":"!"`))

			Expect(strings.Index(body, `"content":"Hello"`)).To(BeNumerically("<", strings.Index(body, `"content":" world"`)))
			Expect(strings.Index(body, `"content":" world"`)).To(BeNumerically("<", strings.Index(body, `"content":"!"`)))
		})

		It("terminates with the finish reason and the [DONE] sentinel", func() {
			_, body := streamChat()

			Expect(body).To(ContainSubstring(`"finish_reason":"stop"`))
			Expect(body).To(HaveSuffix("data: [DONE]\n\n"))
		})

		It("preserves SSE event boundaries with \\n\\n delimiters", func() {
			_, body := streamChat()

			// role + 3 content deltas + terminal + [DONE]
			Expect(strings.Count(body, "\n\n")).To(BeNumerically(">=", 6))
			Expect(strings.Count(body, "data: ")).To(BeNumerically(">=", 6))
		})

		It("shares one completion id across all events", func() {
			_, body := streamChat()

			var firstID string
			for _, frame := range strings.Split(body, "\n\n") {
				payload, found := strings.CutPrefix(frame, "data: ")
				if !found || payload == "[DONE]" || payload == "" {
					continue
				}

				var event struct {
					ID string `json:"id"`
				}
				Expect(json.Unmarshal([]byte(payload), &event)).To(Succeed())

				if firstID == "" {
					firstID = event.ID
					Expect(firstID).To(HavePrefix("chatcmpl-"))
					continue
				}
				Expect(event.ID).To(Equal(firstID))
			}
			Expect(firstID).NotTo(BeEmpty())
		})

		It("records a streamed usage row with backend token counts", func() {
			streamChat()

			// Drain the worker pool to ensure async persistence completes
			g.Close()
			g = nil

			ctx := GinkgoT().Context()
			records, err := driver.RecentUsage(ctx, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(HaveLen(1))
			Expect(records[0].Streamed).To(BeTrue())
			Expect(records[0].FinishReason).To(Equal("stop"))
			Expect(records[0].PromptTokens).To(Equal(10))
			Expect(records[0].CompletionTokens).To(Equal(3))
			Expect(records[0].TotalTokens).To(Equal(13))
		})
	})

	Context("when the stream ends without a finish reason", func() {
		BeforeEach(func() {
			newStreamStub([]string{
				"data: {\"candidates\":[{\"content\":{\"role\":\"model\",\"parts\":[{\"text\":\"partial answer\"}]},\"index\":0}]}\n\n",
			})
		})

		It("closes the stream with finish_reason stop", func() {
			_, body := streamChat()

			Expect(body).To(ContainSubstring(`"content":"partial answer"`))
			Expect(body).To(ContainSubstring(`"finish_reason":"stop"`))
			Expect(body).To(HaveSuffix("data: [DONE]\n\n"))
		})

		It("falls back to estimated usage for the record", func() {
			streamChat()

			g.Close()
			g = nil

			ctx := GinkgoT().Context()
			records, err := driver.RecentUsage(ctx, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(HaveLen(1))
			Expect(records[0].Streamed).To(BeTrue())
			Expect(records[0].TotalTokens).To(BeNumerically(">", 0))
		})
	})

	Context("when the backend blocks the completion mid-stream", func() {
		BeforeEach(func() {
			newStreamStub([]string{
				"data: {\"candidates\":[{\"content\":{\"role\":\"model\",\"parts\":[{\"text\":\"I was going\"}]},\"index\":0}]}\n\n",
				"data: {\"candidates\":[{\"content\":{\"role\":\"model\",\"parts\":[]},\"finishReason\":\"SAFETY\",\"index\":0}]}\n\n",
			})
		})

		It("reports finish_reason content_filter", func() {
			_, body := streamChat()

			Expect(body).To(ContainSubstring(`"finish_reason":"content_filter"`))
			Expect(body).To(HaveSuffix("data: [DONE]\n\n"))
		})
	})

	Context("when the backend fails mid-stream", func() {
		BeforeEach(func() {
			newStreamStub([]string{
				"data: {\"candidates\":[{\"content\":{\"role\":\"model\",\"parts\":[{\"text\":\"partial\"}]},\"index\":0}]}\n\n",
				"data: {\"error\":{\"code\":500,\"message\":\"backend exploded\",\"status\":\"INTERNAL\"}}\n\n",
			})
		})

		It("emits one error frame and then [DONE]", func() {
			resp, body := streamChat()

			// The stream already started, so the status stays 200
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			Expect(body).To(ContainSubstring(`"content":"partial"`))
			Expect(body).To(ContainSubstring("backend exploded"))
			Expect(strings.Count(body, `"type":"server_error"`)).To(Equal(1))
			Expect(body).To(HaveSuffix("data: [DONE]\n\n"))
		})

		It("does not record usage for the failed stream", func() {
			streamChat()

			g.Close()
			g = nil

			ctx := GinkgoT().Context()
			records, err := driver.RecentUsage(ctx, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(BeEmpty())
		})
	})

	Context("when the backend errors after the terminal event", func() {
		BeforeEach(func() {
			newStreamStub([]string{
				"data: {\"candidates\":[{\"content\":{\"role\":\"model\",\"parts\":[{\"text\":\"done\"}]},\"finishReason\":\"STOP\",\"index\":0}]}\n\n",
				"data: {\"error\":{\"code\":500,\"message\":\"trailing failure\",\"status\":\"INTERNAL\"}}\n\n",
			})
		})

		It("ends the stream cleanly without a second terminal frame", func() {
			resp, body := streamChat()

			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(strings.Count(body, `"finish_reason":"stop"`)).To(Equal(1))
			Expect(body).NotTo(ContainSubstring(`"type":"server_error"`))
			Expect(body).To(HaveSuffix("data: [DONE]\n\n"))
		})

		It("still records the completed stream", func() {
			streamChat()

			g.Close()
			g = nil

			ctx := GinkgoT().Context()
			records, err := driver.RecentUsage(ctx, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(HaveLen(1))
			Expect(records[0].Streamed).To(BeTrue())
			Expect(records[0].FinishReason).To(Equal("stop"))
		})
	})

	Context("when the client disconnects mid-stream", func() {
		var (
			ln       net.Listener
			canceled chan struct{}
		)

		// The backend keeps emitting deltas until its request context is
		// canceled, signaling the cancellation on the channel.
		BeforeEach(func() {
			canceled = make(chan struct{})
			upstream = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "text/event-stream")
				flusher, ok := w.(http.Flusher)
				Expect(ok).To(BeTrue())

				for i := 0; ; i++ {
					select {
					case <-r.Context().Done():
						close(canceled)
						return
					case <-time.After(20 * time.Millisecond):
					}
					fmt.Fprintf(w, "data: {\"candidates\":[{\"content\":{\"role\":\"model\",\"parts\":[{\"text\":\"piece %d\"}]},\"index\":0}]}\n\n", i)
					flusher.Flush()
				}
			}))
			g, driver = newTestGateway(testConfig(upstream.URL))

			var err error
			ln, err = net.Listen("tcp", "127.0.0.1:0")
			Expect(err).NotTo(HaveOccurred())
			go func() {
				defer GinkgoRecover()
				_ = g.RunWithListener(ln)
			}()
		})

		AfterEach(func() {
			if ln != nil {
				_ = ln.Close()
			}
		})

		// dropAfterDeltas opens a raw connection, reads frames until count
		// content deltas have arrived, then drops the connection.
		dropAfterDeltas := func(count int) {
			body := makeChatRequestBody(testModel, []chatTestMessage{
				{Role: "user", Content: "Say hello"},
			}, boolPtr(true))

			conn, err := net.Dial("tcp", ln.Addr().String())
			Expect(err).NotTo(HaveOccurred())

			_, err = fmt.Fprintf(conn,
				"POST /v1/chat/completions HTTP/1.1\r\nHost: patchbay.test\r\nContent-Type: application/json\r\nContent-Length: %d\r\n\r\n%s",
				len(body), body)
			Expect(err).NotTo(HaveOccurred())

			reader := bufio.NewReader(conn)
			deltas := 0
			for deltas < count {
				line, rerr := reader.ReadString('\n')
				Expect(rerr).NotTo(HaveOccurred())
				if strings.Contains(line, `"content":"piece`) {
					deltas++
				}
			}
			Expect(conn.Close()).To(Succeed())
		}

		It("cancels the backend read once the caller is gone", func() {
			dropAfterDeltas(2)

			Eventually(canceled, "5s").Should(BeClosed())
		})

		It("records no usage for the aborted stream", func() {
			dropAfterDeltas(2)
			Eventually(canceled, "5s").Should(BeClosed())

			g.Close()
			g = nil

			ctx := GinkgoT().Context()
			records, err := driver.RecentUsage(ctx, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(BeEmpty())
		})
	})

	Context("when the caller vanishes while the backend is quiet", func() {
		var (
			ln       net.Listener
			canceled chan struct{}
		)

		// The backend emits one delta and then stalls until its request
		// context is canceled; only the heartbeat can notice the disconnect.
		BeforeEach(func() {
			canceled = make(chan struct{})
			upstream = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "text/event-stream")
				flusher, ok := w.(http.Flusher)
				Expect(ok).To(BeTrue())

				fmt.Fprint(w, "data: {\"candidates\":[{\"content\":{\"role\":\"model\",\"parts\":[{\"text\":\"opening\"}]},\"index\":0}]}\n\n")
				flusher.Flush()

				<-r.Context().Done()
				close(canceled)
			}))
			g, driver = newTestGateway(testConfig(upstream.URL))
			g.heartbeat = 20 * time.Millisecond

			var err error
			ln, err = net.Listen("tcp", "127.0.0.1:0")
			Expect(err).NotTo(HaveOccurred())
			go func() {
				defer GinkgoRecover()
				_ = g.RunWithListener(ln)
			}()
		})

		AfterEach(func() {
			if ln != nil {
				_ = ln.Close()
			}
		})

		It("tears the backend read down via the heartbeat probe", func() {
			body := makeChatRequestBody(testModel, []chatTestMessage{
				{Role: "user", Content: "Say hello"},
			}, boolPtr(true))

			conn, err := net.Dial("tcp", ln.Addr().String())
			Expect(err).NotTo(HaveOccurred())

			_, err = fmt.Fprintf(conn,
				"POST /v1/chat/completions HTTP/1.1\r\nHost: patchbay.test\r\nContent-Type: application/json\r\nContent-Length: %d\r\n\r\n%s",
				len(body), body)
			Expect(err).NotTo(HaveOccurred())

			reader := bufio.NewReader(conn)
			for {
				line, rerr := reader.ReadString('\n')
				Expect(rerr).NotTo(HaveOccurred())
				if strings.Contains(line, `"content":"opening"`) {
					break
				}
			}
			Expect(conn.Close()).To(Succeed())

			Eventually(canceled, "5s").Should(BeClosed())
		})
	})

	Context("when the backend rejects the stream before it starts", func() {
		BeforeEach(func() {
			upstream = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusServiceUnavailable)
				fmt.Fprint(w, `{"error":{"code":503,"message":"overloaded","status":"UNAVAILABLE"}}`)
			}))
			g, driver = newTestGateway(testConfig(upstream.URL))
		})

		It("returns a plain JSON error instead of an event stream", func() {
			resp, body := streamChat()

			Expect(resp.StatusCode).To(Equal(http.StatusServiceUnavailable))
			Expect(resp.Header.Get("Content-Type")).NotTo(Equal("text/event-stream"))
			Expect(body).NotTo(ContainSubstring("data: "))
			Expect(body).To(ContainSubstring(`"type":"server_error"`))
		})
	})
})
