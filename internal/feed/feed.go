// Package feed describes fixed-interval time series ("feeds") and the storage
// contract the post-processes read from and append to.
package feed

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrNotFound means no feed has the requested id.
	ErrNotFound = errors.New("feed does not exist")
	// ErrExists means a feed with the requested name already exists.
	ErrExists = errors.New("feed already exists")
	// ErrInvalidMeta rejects a zero interval or an inconsistent header.
	ErrInvalidMeta = errors.New("invalid feed meta")
)

// DefaultInterval is the interval given to feeds created before a process
// has aligned them on their inputs.
const DefaultInterval = 3600

// Meta is the header of a feed: samples are Interval seconds apart, the first
// one stamped StartTime (unix seconds).
type Meta struct {
	Interval  int64 `json:"interval"`
	StartTime int64 `json:"start_time"`
	NPoints   int64 `json:"npoints"`
}

// End is the timestamp right after the last sample.
func (m Meta) End() int64 {
	return m.StartTime + m.Interval*m.NPoints
}

// Index is the sample position covering t, floor((t-StartTime)/Interval).
// The result may fall outside [0, NPoints).
func (m Meta) Index(t int64) int64 {
	d := t - m.StartTime
	q := d / m.Interval
	if d < 0 && d%m.Interval != 0 {
		q--
	}
	return q
}

// TimeAt is the timestamp of sample i.
func (m Meta) TimeAt(i int64) int64 {
	return m.StartTime + i*m.Interval
}

// Validate rejects headers no sample lookup can be made against.
func (m Meta) Validate() error {
	if m.Interval <= 0 {
		return fmt.Errorf("%w: interval %d", ErrInvalidMeta, m.Interval)
	}
	if m.NPoints < 0 || m.StartTime < 0 {
		return fmt.Errorf("%w: start %d, %d points", ErrInvalidMeta, m.StartTime, m.NPoints)
	}
	return nil
}

// Info is the catalog entry of a feed.
type Info struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	UserID int    `json:"userid"`
	Meta
}

// Window is the common span of a set of input feeds.
type Window struct {
	Interval   int64 `json:"interval"`
	StartTime  int64 `json:"start_time"`
	WritingEnd int64 `json:"writing_end_time"`
}

// ComputeWindow aligns input feeds: the coarsest interval wins, the start is
// the latest start rounded down to that interval and writing stops at the
// earliest end.
func ComputeWindow(metas ...Meta) (Window, error) {
	if len(metas) == 0 {
		return Window{}, fmt.Errorf("%w: no input feed", ErrInvalidMeta)
	}
	var w Window
	w.WritingEnd = math.MaxInt64
	for _, m := range metas {
		if err := m.Validate(); err != nil {
			return Window{}, err
		}
		w.Interval = max(w.Interval, m.Interval)
		w.StartTime = max(w.StartTime, m.StartTime)
		w.WritingEnd = min(w.WritingEnd, m.End())
	}
	w.StartTime = (w.StartTime / w.Interval) * w.Interval
	return w, nil
}
