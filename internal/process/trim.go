package process

import (
	"context"
	"errors"
	"fmt"
	"math"
)

// TrimFeedStart drops the samples of a feed before a given time.
const TrimFeedStart = "trimfeedstart"

// ErrTrimTime rejects a trim time outside the feed.
var ErrTrimTime = errors.New("invalid trim time")

func trimFeedStart() Process {
	return Process{
		Description: Description{
			Name:        "trimfeedstart",
			Group:       "Main",
			Description: "Trim the start of a feed",
			Settings: []Setting{
				feedSetting("feedid", "Select feed to trim:"),
				valueSetting("trimtime", "Enter start time to trim from:"),
			},
		},
		Run: runTrimFeedStart,
	}
}

// runTrimFeedStart moves the start of a feed to trimtime rounded down to the
// feed interval.
func runTrimFeedStart(_ context.Context, env Env, item Item) (Result, error) {
	id, err := item.FeedID("feedid")
	if err != nil {
		return Result{}, err
	}
	trimtime, err := item.Value("trimtime")
	if err != nil {
		return Result{}, err
	}
	res := Result{Output: id}

	series, err := env.Feeds.Open(id)
	if err != nil {
		return res, err
	}
	defer series.Close()
	m := series.Meta
	if err := m.Validate(); err != nil {
		return res, err
	}

	aligned := int64(math.Floor(trimtime/float64(m.Interval))) * m.Interval
	switch {
	case aligned == m.StartTime:
		return res, fmt.Errorf("feed start_time is already equal to trim time: %w", ErrUpToDate)
	case aligned < m.StartTime:
		return res, fmt.Errorf("%w: feed start_time %d is more recent than trim time %d", ErrTrimTime, m.StartTime, aligned)
	case aligned >= m.End():
		return res, fmt.Errorf("%w: trim time %d is past the last sample at %d", ErrTrimTime, aligned, m.End()-m.Interval)
	}

	pos := m.Index(aligned)
	values, err := series.Values(pos)
	if err != nil {
		return res, err
	}
	series.Close()

	m.StartTime = aligned
	if _, err := env.Feeds.Rewrite(id, m, values); err != nil {
		return res, fmt.Errorf("rewrite feed %d: %w", id, err)
	}

	env.Logger.Info("feed trimmed", "feed", id, "start_time", aligned, "dropped", pos, "kept", len(values))
	res.Message = fmt.Sprintf("trimmed %d samples, feed now starts at %d", pos, aligned)
	return res, nil
}
