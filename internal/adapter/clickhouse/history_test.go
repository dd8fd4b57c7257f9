package clickhouse

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexandrecuer/postprocess/internal/process"
)

type call struct {
	query string
	args  []any
}

type fakeConn struct {
	calls []call
	err   error
}

func (c *fakeConn) Exec(_ context.Context, query string, args ...any) error {
	if c.err != nil {
		return c.err
	}
	c.calls = append(c.calls, call{query, args})
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunHistory_InitSchema(t *testing.T) {
	conn := &fakeConn{}
	require.NoError(t, NewRunHistory(conn, discardLogger()).InitSchema(context.Background()))
	require.Len(t, conn.calls, 1)
	assert.Contains(t, conn.calls[0].query, "ENGINE = MergeTree()")
}

func TestRunHistory_LoadBatch(t *testing.T) {
	conn := &fakeConn{}
	h := NewRunHistory(conn, discardLogger())
	finished := time.Date(2024, 1, 15, 8, 0, 0, 0, time.UTC)
	v := 3.5

	err := h.LoadBatch(context.Background(), []process.Result{
		{JobID: "a", Process: process.PowerToKWh, UserID: 1, Output: 4, PointsWritten: 10, LastTime: 100, LastValue: &v, FinishedAt: finished},
		{JobID: "b", Process: process.InfiltrationLosses, UserID: 2, Output: 5, Failures: 1, FinishedAt: finished},
	})
	require.NoError(t, err)
	require.Len(t, conn.calls, 2)

	first := conn.calls[0].args
	assert.Equal(t, insertRun, conn.calls[0].query)
	assert.Equal(t, finished, first[0])
	assert.Equal(t, "a", first[1])
	assert.Equal(t, uint32(4), first[4])
	assert.Equal(t, 3.5, first[9])

	assert.True(t, math.IsNaN(conn.calls[1].args[9].(float64)))
	assert.Equal(t, uint32(1), conn.calls[1].args[7])
}

func TestRunHistory_LoadBatchError(t *testing.T) {
	conn := &fakeConn{err: errors.New("timeout")}
	err := NewRunHistory(conn, discardLogger()).LoadBatch(context.Background(), []process.Result{{JobID: "a"}})
	assert.ErrorContains(t, err, "insert run a: timeout")
}
