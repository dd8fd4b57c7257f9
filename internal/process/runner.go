package process

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/alexandrecuer/postprocess/internal/building"
	"github.com/alexandrecuer/postprocess/internal/feed"
	"github.com/alexandrecuer/postprocess/internal/observability"
)

// ErrUpToDate means the output feed already covers every input sample.
var ErrUpToDate = errors.New("nothing to write - all is up to date")

// Result summarizes one process run.
type Result struct {
	JobID         string `json:"job_id"`
	Process       string `json:"process"`
	UserID        int    `json:"userid"`
	Output        int    `json:"output_feed"`
	PointsWritten int    `json:"points_written"`
	// Missing counts samples written as NaN because an input was missing.
	Missing int `json:"missing"`
	// Failures counts samples written as NaN because the solver failed.
	Failures   int       `json:"failures"`
	LastTime   int64     `json:"last_time"`
	LastValue  *float64  `json:"last_value"`
	Message    string    `json:"message"`
	FinishedAt time.Time `json:"finished_at"`
}

func (r *Result) setLast(t int64, v float64) {
	r.LastTime = t
	if math.IsNaN(v) || math.IsInf(v, 0) {
		r.LastValue = nil
		return
	}
	r.LastValue = &v
}

// LastValuePublisher announces the newest sample of an output feed.
type LastValuePublisher interface {
	PublishLastValue(ctx context.Context, feedID int, t int64, v *float64) error
}

// Env is what a process runs against.
type Env struct {
	Feeds   feed.Store
	Logger  *slog.Logger
	Metrics *observability.Metrics
	// Building configures the envelope models built by simulation processes.
	Building []building.Option
}

// Runner executes queued items.
type Runner struct {
	registry  *Registry
	env       Env
	publisher LastValuePublisher
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithPublisher announces the last value of every output written.
func WithPublisher(p LastValuePublisher) RunnerOption {
	return func(r *Runner) { r.publisher = p }
}

// WithBuildingOptions configures the envelope models.
func WithBuildingOptions(opts ...building.Option) RunnerOption {
	return func(r *Runner) { r.env.Building = append(r.env.Building, opts...) }
}

// NewRunner creates a Runner.
func NewRunner(registry *Registry, feeds feed.Store, logger *slog.Logger, metrics *observability.Metrics, opts ...RunnerOption) *Runner {
	r := &Runner{
		registry: registry,
		env:      Env{Feeds: feeds, Logger: logger, Metrics: metrics},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes one item. ErrUpToDate is returned with a Result naming the
// output feed.
func (r *Runner) Run(ctx context.Context, item Item) (Result, error) {
	p, err := r.registry.Get(item.Process)
	if err != nil {
		return Result{}, err
	}

	logger := r.env.Logger.With("job_id", item.ID, "process", item.Process, "userid", item.UserID)
	env := r.env
	env.Logger = logger

	start := clock.Now()
	res, err := p.Run(ctx, env, item)
	res.JobID, res.Process, res.UserID = item.ID, item.Process, item.UserID
	res.FinishedAt = clock.Now().UTC()
	if err != nil {
		if errors.Is(err, ErrUpToDate) {
			res.Message = err.Error()
			return res, err
		}
		return res, fmt.Errorf("%s: %w", item.Process, err)
	}

	r.env.Metrics.SamplesWritten.WithLabelValues(item.Process).Add(float64(res.PointsWritten))
	logger.Info("process completed",
		"output", res.Output,
		"points_written", res.PointsWritten,
		"missing", res.Missing,
		"failures", res.Failures,
		"duration", clock.Since(start),
	)

	if r.publisher != nil && res.PointsWritten > 0 {
		if err := r.publisher.PublishLastValue(ctx, res.Output, res.LastTime, res.LastValue); err != nil {
			logger.Warn("publish last value failed", "error", err, "output", res.Output)
		}
	}
	return res, nil
}

// openInputs opens the named feed settings of item. On error every series
// already opened is closed.
func openInputs(env Env, item Item, keys ...string) ([]*feed.Series, error) {
	out := make([]*feed.Series, 0, len(keys))
	for _, key := range keys {
		id, err := item.FeedID(key)
		if err != nil {
			closeSeries(out)
			return nil, err
		}
		s, err := env.Feeds.Open(id)
		if err != nil {
			closeSeries(out)
			return nil, fmt.Errorf("open %s feed: %w", key, err)
		}
		out = append(out, s)
	}
	return out, nil
}

func closeSeries(series []*feed.Series) {
	for _, s := range series {
		s.Close()
	}
}

// outputMeta returns the header an output feed is extended with: an empty
// output takes the interval and start of the input window.
func outputMeta(info feed.Info, w feed.Window) feed.Meta {
	m := info.Meta
	if m.NPoints == 0 {
		m.Interval = w.Interval
		m.StartTime = w.StartTime
	}
	return m
}

// cancelCheckEvery is how many timesteps run between context checks.
const cancelCheckEvery = 1024
