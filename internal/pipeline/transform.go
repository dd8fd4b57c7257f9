package pipeline

import (
	"context"
	"time"

	"github.com/alexandrecuer/postprocess/internal/process"
)

// RawJob is an unprocessed message from the queue topic.
type RawJob struct {
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Commit    func(ctx context.Context) error
}

// JobRunner runs one decoded item.
type JobRunner interface {
	Run(ctx context.Context, item process.Item) (process.Result, error)
}

// JobExecutor implements Executor by decoding the message value as a
// process item and running it.
type JobExecutor struct {
	runner JobRunner
}

// NewExecutor creates a JobExecutor.
func NewExecutor(runner JobRunner) *JobExecutor {
	return &JobExecutor{runner: runner}
}

// Execute decodes raw and runs the item. The returned result names the
// process even when the run fails.
func (e *JobExecutor) Execute(ctx context.Context, raw RawJob) (process.Result, error) {
	item, err := process.DecodeItem(raw.Value)
	if err != nil {
		return process.Result{}, err
	}
	res, err := e.runner.Run(ctx, item)
	res.JobID, res.Process, res.UserID = item.ID, item.Process, item.UserID
	return res, err
}
