package gateway

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/papercomputeco/patchbay/pkg/apierror"
	"github.com/papercomputeco/patchbay/pkg/contextwindow"
	"github.com/papercomputeco/patchbay/pkg/gemini"
	"github.com/papercomputeco/patchbay/pkg/openai"
	"github.com/papercomputeco/patchbay/pkg/sse"
	"github.com/papercomputeco/patchbay/pkg/translate"
)

// defaultStreamHeartbeat is how often the relay probes an idle stream with
// an SSE comment frame. The probe carries no event data; its only job is to
// make a vanished caller surface as a write failure while the backend is
// quiet.
const defaultStreamHeartbeat = 15 * time.Second

// relayState tracks a streaming session through its lifecycle.
type relayState int

const (
	relayIdle relayState = iota
	relayConnecting
	relayStreaming
	relayCompleted
	relayAborted
	relayFailed
)

func (s relayState) String() string {
	switch s {
	case relayConnecting:
		return "connecting"
	case relayStreaming:
		return "streaming"
	case relayCompleted:
		return "completed"
	case relayAborted:
		return "aborted"
	case relayFailed:
		return "failed"
	default:
		return "idle"
	}
}

// relay owns one streaming chat session: it pulls chunks from the backend
// stream, translates them in arrival order, and frames caller events into
// the response pipe. Exactly one relay exists per streaming request and it
// is never shared across goroutines.
type relay struct {
	gateway *Gateway
	model   string
	prompt  []openai.Message
	chunks  *translate.ChunkStream
	state   relayState
	start   time.Time
	logger  *zap.Logger
}

func newRelay(g *Gateway, model string, prompt []openai.Message, start time.Time) *relay {
	chunks := translate.NewChunkStream(model)
	return &relay{
		gateway: g,
		model:   model,
		prompt:  prompt,
		chunks:  chunks,
		state:   relayIdle,
		start:   start,
		logger:  g.logger.With(zap.String("completion_id", chunks.ID())),
	}
}

// setState advances the session lifecycle.
func (r *relay) setState(next relayState) {
	r.logger.Debug("stream state change",
		zap.String("from", r.state.String()),
		zap.String("to", next.String()),
	)
	r.state = next
}

// streamChat serves the streaming branch of the chat pipeline. The backend
// dial happens before any response bytes are written, so dial failures still
// surface as plain mapped error responses; once the stream opens, the relay
// goroutine owns the session and failures become terminal frames.
func (g *Gateway) streamChat(c *fiber.Ctx, model string, trimmed contextwindow.Trimmed, breq *gemini.GenerateRequest, start time.Time) error {
	r := newRelay(g, model, trimmed.Messages, start)

	// The stream outlives this handler: fasthttp recycles its RequestCtx
	// after the handler returns, while the relay goroutine keeps reading
	// from the backend. A cancelable background context lets a client
	// disconnect tear the backend read down.
	ctx, cancel := context.WithCancel(context.Background())

	stream, err := r.connect(ctx, breq)
	if err != nil {
		cancel()
		return g.respondError(c, err)
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")

	pr, pw := io.Pipe()
	go r.run(ctx, cancel, stream, pw)

	// Set the pipe reader as the body stream with unknown size (-1),
	// which triggers chunked transfer encoding in fasthttp. pw.Write in the
	// relay goroutine blocks until fasthttp flushes to the socket, giving
	// direct backpressure and true per-chunk streaming.
	c.Context().Response.SetBodyStream(pr, -1)

	return nil
}

// connect dials the backend stream. The session stays Connecting until the
// dial resolves or fails.
func (r *relay) connect(ctx context.Context, breq *gemini.GenerateRequest) (*gemini.Stream, error) {
	r.setState(relayConnecting)

	stream, err := r.gateway.backend.GenerateStream(ctx, r.model, breq)
	if err != nil {
		r.setState(relayFailed)
		return nil, err
	}

	return stream, nil
}

// run pumps the backend stream into the response pipe until a terminal
// state is reached. It owns both ends of the session: the backend stream
// and the pipe writer are always released on exit, which ends the chunked
// response.
func (r *relay) run(ctx context.Context, cancel context.CancelFunc, stream *gemini.Stream, pw *io.PipeWriter) {
	defer cancel()
	defer stream.Close()
	defer pw.Close()

	r.gateway.recorder.StreamStarted()
	defer r.gateway.recorder.StreamEnded()

	r.setState(relayStreaming)
	w := sse.NewWriter(pw)

	go r.heartbeatLoop(ctx, cancel, w)

	for {
		chunk, err := stream.Read(ctx)
		if errors.Is(err, io.EOF) {
			r.finish(w)
			return
		}
		if err != nil {
			// The relay context is canceled only when the caller went away,
			// via a failed heartbeat write.
			if errors.Is(err, context.Canceled) {
				r.abort(err)
				return
			}
			// Once the terminal event reached the caller, a trailing read
			// error (typically on the cumulative usage chunk) cannot be
			// surfaced without a second terminal frame. End the stream
			// normally instead.
			if r.chunks.FinishReason() != "" {
				r.logger.Warn("backend stream errored after terminal event", zap.Error(err))
				r.finish(w)
				return
			}
			r.fail(w, err)
			return
		}

		for _, event := range r.chunks.Translate(chunk) {
			if werr := w.WriteJSON(event); werr != nil {
				// The pipe write fails only when fasthttp closed the read
				// side, which means the caller went away.
				r.abort(werr)
				return
			}
		}
	}
}

// heartbeatLoop writes comment frames while the stream is open. Pipe writes
// are gated sequentially, so probes never interleave inside an event frame.
// A failed probe means the caller is gone; canceling the context tears the
// backend read down even when no chunks are arriving.
func (r *relay) heartbeatLoop(ctx context.Context, cancel context.CancelFunc, w *sse.Writer) {
	ticker := time.NewTicker(r.gateway.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.WriteComment("ping"); err != nil {
				cancel()
				return
			}
		}
	}
}

// finish closes out a stream whose backend ended normally: the terminal
// event is emitted here when the backend never sent a finish reason, then
// the [DONE] sentinel ends the response.
func (r *relay) finish(w *sse.Writer) {
	for _, event := range r.chunks.Finish() {
		if err := w.WriteJSON(event); err != nil {
			r.abort(err)
			return
		}
	}
	if err := w.WriteDone(); err != nil {
		r.abort(err)
		return
	}

	r.setState(relayCompleted)
	r.logger.Debug("stream completed",
		zap.String("finish_reason", r.chunks.FinishReason()),
		zap.Duration("duration", time.Since(r.start)),
	)

	r.gateway.enqueueUsage(streamRecord(r.chunks, r.model, r.prompt, r.start))
}

// fail emits exactly one terminal error frame followed by the [DONE]
// sentinel. The frame reuses the non-streaming error body shape.
func (r *relay) fail(w *sse.Writer, err error) {
	r.setState(relayFailed)
	r.logger.Error("backend stream failed", zap.Error(err))

	_, body := apierror.Map(err)
	if werr := w.WriteJSON(body); werr != nil {
		// Caller vanished while the backend was failing; nothing to emit.
		return
	}
	_ = w.WriteDone()
}

// abort handles a caller disconnect: the deferred teardown cancels the
// backend read and releases the session. Not an error, and no further
// frames are emitted.
func (r *relay) abort(err error) {
	r.setState(relayAborted)
	r.logger.Debug("client disconnected mid-stream",
		zap.Error(err),
		zap.Duration("duration", time.Since(r.start)),
	)
}
