package gemini

import (
	"context"
	"encoding/json"
	"io"

	"github.com/papercomputeco/patchbay/pkg/apierror"
	"github.com/papercomputeco/patchbay/pkg/sse"
)

// Stream is a pull reader over a streamGenerateContent SSE response. Each
// Read returns one response chunk; the caller drains the stream and must
// Close it when done.
type Stream struct {
	body   io.ReadCloser
	reader *sse.Reader
	closed bool
}

func newStream(body io.ReadCloser) *Stream {
	return &Stream{
		body:   body,
		reader: sse.NewReader(body),
	}
}

// Read returns the next response chunk from the stream. It returns io.EOF
// when the upstream stream ends normally, ctx.Err() when the context is
// canceled, and a classified error when the upstream fails mid-stream.
func (s *Stream) Read(ctx context.Context) (*GenerateResponse, error) {
	if s.closed {
		return nil, io.EOF
	}

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		ev, err := s.reader.Next()
		if err != nil {
			// The transport aborts the body read when ctx is canceled,
			// which surfaces here as a read error.
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, apierror.Wrap(apierror.KindUpstreamUnavailable, "reading vertex stream", err)
		}
		if ev == nil {
			return nil, io.EOF
		}
		if ev.Data == "" {
			continue
		}

		var chunk streamEvent
		if err := json.Unmarshal([]byte(ev.Data), &chunk); err != nil {
			return nil, apierror.Wrap(apierror.KindUpstreamError, "decoding vertex stream chunk", err)
		}

		// Mid-stream failures arrive as an error envelope event.
		if chunk.Error != nil {
			return nil, classify(chunk.Error.Code, chunk.Error.Message)
		}

		return &chunk.GenerateResponse, nil
	}
}

// Close releases the underlying response body. Safe to call more than once.
func (s *Stream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.body.Close()
}
