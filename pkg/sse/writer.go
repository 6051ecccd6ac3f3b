package sse

import (
	"encoding/json"
	"io"
)

// doneData is the sentinel payload that terminates an OpenAI-style stream.
const doneData = "[DONE]"

// Writer frames payloads as data-only SSE events on an underlying io.Writer.
// It is the send side of a streaming chat completion: each translated chunk
// becomes a "data: <json>" frame, and the stream ends with "data: [DONE]".
//
// The destination is typically the write end of an io.Pipe connected to the
// HTTP response body, so each frame is written in a single Write call.
type Writer struct {
	dst io.Writer
}

// NewWriter returns a Writer that frames events onto dst.
func NewWriter(dst io.Writer) *Writer {
	return &Writer{dst: dst}
}

// WriteData writes a single data-only event frame containing payload.
func (w *Writer) WriteData(payload []byte) error {
	frame := make([]byte, 0, len(payload)+8)
	frame = append(frame, "data: "...)
	frame = append(frame, payload...)
	frame = append(frame, '\n', '\n')

	_, err := w.dst.Write(frame)
	return err
}

// WriteJSON marshals v and writes it as a single data-only event frame.
func (w *Writer) WriteJSON(v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}

	return w.WriteData(payload)
}

// WriteComment writes a comment frame. Comment frames carry no event data
// and are skipped by conforming parsers, which makes them usable as
// keep-alive probes on an otherwise idle stream.
func (w *Writer) WriteComment(text string) error {
	frame := make([]byte, 0, len(text)+4)
	frame = append(frame, ": "...)
	frame = append(frame, text...)
	frame = append(frame, '\n', '\n')

	_, err := w.dst.Write(frame)
	return err
}

// WriteDone writes the terminal [DONE] sentinel frame.
func (w *Writer) WriteDone() error {
	return w.WriteData([]byte(doneData))
}
