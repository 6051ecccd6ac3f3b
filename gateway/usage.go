package gateway

import (
	"time"

	"github.com/papercomputeco/patchbay/gateway/worker"
	"github.com/papercomputeco/patchbay/pkg/openai"
	"github.com/papercomputeco/patchbay/pkg/storage"
	"github.com/papercomputeco/patchbay/pkg/translate"
)

// enqueueUsage hands a usage record to the worker pool. Non-blocking; a
// full queue drops the record with a logged error and never fails the
// request that produced it.
func (g *Gateway) enqueueUsage(rec *storage.UsageRecord) {
	g.workerPool.Enqueue(worker.Job{Record: rec})
}

// completionRecord builds the ledger record for a non-streaming completion.
func completionRecord(resp *openai.CompletionResponse, start time.Time) *storage.UsageRecord {
	rec := &storage.UsageRecord{
		RequestID:  resp.ID,
		Model:      resp.Model,
		DurationMS: time.Since(start).Milliseconds(),
	}

	if len(resp.Choices) > 0 {
		rec.FinishReason = resp.Choices[0].FinishReason
	}
	if resp.Usage != nil {
		rec.PromptTokens = resp.Usage.PromptTokens
		rec.CompletionTokens = resp.Usage.CompletionTokens
		rec.TotalTokens = resp.Usage.TotalTokens
	}

	return rec
}

// streamRecord builds the ledger record for a completed stream. Backend
// usage from the final chunk wins; the char-ratio estimate covers streams
// whose chunks carried none.
func streamRecord(chunks *translate.ChunkStream, model string, prompt []openai.Message, start time.Time) *storage.UsageRecord {
	usage := chunks.Usage()
	if usage == nil {
		usage = translate.EstimateUsage(prompt, chunks.CompletionText())
	}

	return &storage.UsageRecord{
		RequestID:        chunks.ID(),
		Model:            model,
		Streamed:         true,
		FinishReason:     chunks.FinishReason(),
		PromptTokens:     usage.PromptTokens,
		CompletionTokens: usage.CompletionTokens,
		TotalTokens:      usage.TotalTokens,
		DurationMS:       time.Since(start).Milliseconds(),
	}
}
