package feed

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/gocarina/gocsv"
)

// ErrInvalidCSV rejects CSV rows that do not form a fixed-interval series.
var ErrInvalidCSV = errors.New("invalid csv feed")

// Row is one CSV line: a unix timestamp and a value, "NaN" or empty when
// missing.
type Row struct {
	Time  int64  `csv:"time"`
	Value string `csv:"value"`
}

// ExportCSV writes every sample of s as a time,value row.
func ExportCSV(w io.Writer, s *Series) error {
	values, err := s.Values(0)
	if err != nil {
		return err
	}
	rows := make([]*Row, len(values))
	for i, v := range values {
		rows[i] = &Row{
			Time:  s.Meta.TimeAt(int64(i)),
			Value: strconv.FormatFloat(v, 'g', -1, 32),
		}
	}
	if err := gocsv.Marshal(rows, w); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

// ImportCSV reads time,value rows into a header and samples. Rows must be in
// increasing time order and aligned on the interval; gaps are filled with
// NaN. A zero interval is inferred from the first two rows.
func ImportCSV(r io.Reader, interval int64) (Meta, []float64, error) {
	var rows []*Row
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return Meta{}, nil, fmt.Errorf("%w: %v", ErrInvalidCSV, err)
	}
	if len(rows) == 0 {
		return Meta{}, nil, fmt.Errorf("%w: no rows", ErrInvalidCSV)
	}
	if interval <= 0 {
		if len(rows) < 2 {
			return Meta{}, nil, fmt.Errorf("%w: cannot infer the interval of a single row", ErrInvalidCSV)
		}
		interval = rows[1].Time - rows[0].Time
	}

	m := Meta{Interval: interval, StartTime: rows[0].Time}
	if err := m.Validate(); err != nil {
		return Meta{}, nil, fmt.Errorf("%w: %v", ErrInvalidCSV, err)
	}

	var values []float64
	for n, row := range rows {
		if (row.Time-m.StartTime)%interval != 0 {
			return Meta{}, nil, fmt.Errorf("%w: row %d at %d is not aligned on %ds", ErrInvalidCSV, n+1, row.Time, interval)
		}
		i := m.Index(row.Time)
		if i < int64(len(values)) {
			return Meta{}, nil, fmt.Errorf("%w: row %d at %d is out of order", ErrInvalidCSV, n+1, row.Time)
		}
		for int64(len(values)) < i {
			values = append(values, math.NaN())
		}
		v, err := parseValue(row.Value)
		if err != nil {
			return Meta{}, nil, fmt.Errorf("%w: row %d: %v", ErrInvalidCSV, n+1, err)
		}
		values = append(values, v)
	}
	m.NPoints = int64(len(values))
	return m, values, nil
}

func parseValue(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "nan") || strings.EqualFold(s, "null") {
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, 64)
}
