// Package worker provides an asynchronous worker pool for persisting usage
// records, publishing usage events, and recording token metrics using the
// provided storage.Driver, eventstream.Publisher, and metrics.Recorder.
//
// The pool decouples the usage pipeline from the gateway's HTTP hot path so
// that ledger writes and event publishes never delay a caller's response.
package worker

import (
	"context"
	"fmt"
	"math"
	"sync"

	"go.uber.org/zap"

	"github.com/papercomputeco/patchbay/pkg/eventstream"
	"github.com/papercomputeco/patchbay/pkg/metrics"
	"github.com/papercomputeco/patchbay/pkg/storage"
)

var (
	defaultNumWorkers   uint = 3
	defaultJobQueueSize uint = 256
)

// Job is a unit of work for the worker pool to execute against.
type Job struct {
	Record *storage.UsageRecord
}

// Config is the configuration options for the worker pool.
type Config struct {
	// Driver is the storage backend for persisting usage records.
	Driver storage.Driver

	// Publisher is the optional event stream publisher for usage events.
	Publisher eventstream.Publisher

	// Source identifies this deployment on published usage events.
	Source eventstream.EventSource

	// Recorder is the optional metrics recorder for token distributions.
	Recorder *metrics.Recorder

	// NumWorkers is the number of background workers in the pool.
	NumWorkers uint

	// QueueSize is the capacity of the buffered job channel (defaults to 256).
	QueueSize uint

	// Logger is the provided zap logger
	Logger *zap.Logger
}

// Pool processes usage jobs asynchronously via a worker pool.
type Pool struct {
	config *Config
	queue  chan Job
	wg     sync.WaitGroup
	logger *zap.Logger
}

// NewPool creates a new Pool and starts its worker goroutines.
func NewPool(c *Config) (*Pool, error) {
	if c.Driver == nil {
		return nil, fmt.Errorf("storage driver is required")
	}

	if c.NumWorkers == 0 {
		c.NumWorkers = defaultNumWorkers
	}

	if c.QueueSize == 0 {
		c.QueueSize = defaultJobQueueSize
	}

	if c.NumWorkers > uint(math.MaxInt) {
		return nil, fmt.Errorf("NumWorkers %d exceeds max int", c.NumWorkers)
	}

	wp := &Pool{
		config: c,
		queue:  make(chan Job, c.QueueSize),
		logger: c.Logger,
	}

	wp.wg.Add(int(c.NumWorkers))
	for i := range c.NumWorkers {
		go wp.worker(i)
	}

	return wp, nil
}

// Enqueue submits a job for processing by the worker pool.
// Returns true if enqueued, false if the queue is full, resulting in the job being dropped
func (p *Pool) Enqueue(job Job) bool {
	select {
	case p.queue <- job:
		p.logger.Debug("usage job queued",
			zap.String("model", job.Record.Model),
		)
		return true
	default:
		p.logger.Error("job not queued, queue full, job dropped",
			zap.String("model", job.Record.Model),
		)
		return false
	}
}

// Close signals workers to stop and waits for in-flight jobs to drain.
// Call this during graceful shutdown after the gateway HTTP server has stopped.
func (p *Pool) Close() {
	close(p.queue)
	p.wg.Wait()
}

// worker is the inner worker thread that continuously pulls jobs off the jobs queue
func (p *Pool) worker(id uint) {
	defer p.wg.Done()
	p.logger.Debug("worker started", zap.Uint("worker_id", id))

	for job := range p.queue {
		p.processJob(job)
	}

	p.logger.Debug("usage worker stopped", zap.Uint("worker_id", id))
}

// processJob persists the usage record, then records token metrics and
// publishes the usage event. Metrics and publishing are skipped when the
// ledger write fails so downstream consumers never see usage the ledger
// doesn't hold.
func (p *Pool) processJob(job Job) {
	ctx := context.Background()

	if err := p.config.Driver.RecordUsage(ctx, job.Record); err != nil {
		p.logger.Error("async usage persistence failed",
			zap.String("model", job.Record.Model),
			zap.Error(err),
		)
		return
	}

	p.logger.Info("usage recorded",
		zap.String("id", job.Record.ID),
		zap.String("model", job.Record.Model),
		zap.Int("total_tokens", job.Record.TotalTokens),
	)

	if p.config.Recorder != nil {
		p.config.Recorder.RecordTokens(job.Record.Model, job.Record.PromptTokens, job.Record.CompletionTokens)
	}

	if p.config.Publisher != nil {
		event := eventstream.NewUsageRecorded(p.config.Source, job.Record)
		if err := p.config.Publisher.PublishUsage(ctx, event); err != nil {
			p.logger.Warn("failed to publish usage event",
				zap.String("id", job.Record.ID),
				zap.Error(err),
			)
		}
	}
}
