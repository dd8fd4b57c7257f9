package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/storm-data-shared/retry"

	"github.com/alexandrecuer/postprocess/internal/observability"
	"github.com/alexandrecuer/postprocess/internal/process"
)

// BatchExtractor reads up to batchSize queued jobs.
type BatchExtractor interface {
	ExtractBatch(ctx context.Context, batchSize int) ([]RawJob, error)
}

// Executor runs one queued job.
type Executor interface {
	Execute(ctx context.Context, raw RawJob) (process.Result, error)
}

// BatchLoader publishes the results of completed jobs.
type BatchLoader interface {
	LoadBatch(ctx context.Context, results []process.Result) error
}

const (
	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 5 * time.Second
)

// Pipeline orchestrates the extract-execute-load loop.
type Pipeline struct {
	extractor BatchExtractor
	executor  Executor
	loader    BatchLoader
	logger    *slog.Logger
	metrics   *observability.Metrics
	ready     atomic.Bool
	batchSize int
}

// New creates a Pipeline with the given stages and observability.
func New(e BatchExtractor, x Executor, l BatchLoader, logger *slog.Logger, metrics *observability.Metrics, batchSize int) *Pipeline {
	return &Pipeline{
		extractor: e,
		executor:  x,
		loader:    l,
		logger:    logger,
		metrics:   metrics,
		batchSize: batchSize,
	}
}

// CheckReadiness returns nil once the pipeline has handled at least one job.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not processed any jobs yet")
	}
	return nil
}

// Run executes the batch loop until the context is cancelled.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("pipeline started", "batch_size", p.batchSize)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	backoff := initialBackoff
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("pipeline stopping", "reason", ctx.Err())
			return nil
		default:
		}

		if !p.processBatch(ctx, &backoff) {
			return nil
		}
	}
}

// processBatch runs one extract-execute-load cycle. Returns false if the
// pipeline should stop.
func (p *Pipeline) processBatch(ctx context.Context, backoff *time.Duration) bool {
	start := time.Now()

	rawBatch, err := p.extractor.ExtractBatch(ctx, p.batchSize)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		p.logger.Error("extract batch failed", "error", err)
		return p.backoffOrStop(ctx, backoff)
	}

	if len(rawBatch) == 0 {
		return ctx.Err() == nil
	}

	p.metrics.JobsConsumed.Add(float64(len(rawBatch)))
	p.metrics.BatchSize.Observe(float64(len(rawBatch)))
	*backoff = initialBackoff

	if !p.executeAndLoad(ctx, rawBatch) {
		return false
	}

	p.metrics.BatchProcessingDuration.Observe(time.Since(start).Seconds())
	p.ready.Store(true)
	return true
}

// executeAndLoad runs every job of the batch, publishes the results and
// commits the offsets in batch order once the load succeeded. Jobs that fail
// or have nothing to write are committed without a result. Returns false if
// the pipeline should stop.
func (p *Pipeline) executeAndLoad(ctx context.Context, rawBatch []RawJob) bool {
	results := make([]process.Result, 0, len(rawBatch))
	done := make([]RawJob, 0, len(rawBatch))

	for _, raw := range rawBatch {
		if ctx.Err() != nil {
			return false
		}
		res, err := p.executor.Execute(ctx, raw)
		switch {
		case err == nil:
			p.metrics.JobsCompleted.WithLabelValues(res.Process).Inc()
			results = append(results, res)
		case errors.Is(err, process.ErrUpToDate):
			p.logger.Info("nothing to write", "job_id", res.JobID, "process", res.Process, "output", res.Output)
			p.metrics.JobsUpToDate.Inc()
		case ctx.Err() != nil:
			return false
		default:
			p.logger.Warn("job failed, skipping message",
				"error", err,
				"process", res.Process,
				"topic", raw.Topic,
				"partition", raw.Partition,
				"offset", raw.Offset,
			)
			p.metrics.JobsFailed.WithLabelValues(processLabel(res.Process), failureReason(err)).Inc()
		}
		done = append(done, raw)
	}

	// A completed run cannot be replayed: retry the load instead of dropping
	// the batch.
	backoff := initialBackoff
	for len(results) > 0 {
		err := p.loader.LoadBatch(ctx, results)
		if err == nil {
			break
		}
		p.logger.Error("load batch failed", "error", err, "batch_size", len(results))
		if !p.backoffOrStop(ctx, &backoff) {
			return false
		}
	}

	for _, raw := range done {
		p.commitOffset(ctx, raw)
	}
	return true
}

// backoffOrStop sleeps with the current backoff and advances it. Returns
// false if the pipeline should stop.
func (p *Pipeline) backoffOrStop(ctx context.Context, backoff *time.Duration) bool {
	if ctx.Err() != nil {
		return false
	}
	if !retry.SleepWithContext(ctx, *backoff) {
		return false
	}
	*backoff = retry.NextBackoff(*backoff, maxBackoff)
	return true
}

// commitOffset commits the message offset if a commit function is available.
func (p *Pipeline) commitOffset(ctx context.Context, raw RawJob) {
	if raw.Commit == nil {
		return
	}
	if err := raw.Commit(ctx); err != nil {
		p.logger.Warn("commit offset failed", "error", err,
			"topic", raw.Topic, "partition", raw.Partition, "offset", raw.Offset)
	}
}

func processLabel(name string) string {
	if name == "" {
		return "unknown"
	}
	return name
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, process.ErrInvalidItem):
		return "invalid"
	case errors.Is(err, process.ErrUnknownProcess):
		return "unknown_process"
	default:
		return "run"
	}
}
