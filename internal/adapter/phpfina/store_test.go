package phpfina

import (
	"encoding/binary"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexandrecuer/postprocess/internal/feed"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestStore_CreateAppendReopen(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, discardLogger())
	require.NoError(t, err)

	id, err := s.Create(3, "losses", feed.DefaultInterval)
	require.NoError(t, err)
	assert.Equal(t, 1, id)

	info, err := s.Get(id)
	require.NoError(t, err)
	assert.Equal(t, feed.Info{ID: 1, Name: "losses", UserID: 3, Meta: feed.Meta{Interval: 3600}}, info)

	m, err := s.Append(id, feed.Meta{Interval: 600, StartTime: 1_699_999_800}, []float64{1.25, math.NaN()})
	require.NoError(t, err)
	assert.Equal(t, feed.Meta{Interval: 600, StartTime: 1_699_999_800, NPoints: 2}, m)

	header, err := os.ReadFile(filepath.Join(dir, "1.meta"))
	require.NoError(t, err)
	require.Len(t, header, 16)
	assert.Zero(t, binary.LittleEndian.Uint32(header[0:4]))
	assert.Zero(t, binary.LittleEndian.Uint32(header[4:8]))
	assert.Equal(t, uint32(600), binary.LittleEndian.Uint32(header[8:12]))
	assert.Equal(t, uint32(1_699_999_800), binary.LittleEndian.Uint32(header[12:16]))

	data, err := os.ReadFile(filepath.Join(dir, "1.dat"))
	require.NoError(t, err)
	assert.Len(t, data, 8)

	reopened, err := Open(dir, discardLogger())
	require.NoError(t, err)
	got, ok := reopened.IDByName(3, "losses")
	require.True(t, ok)
	assert.Equal(t, id, got)

	series, err := reopened.Open(id)
	require.NoError(t, err)
	defer series.Close()

	v, err := series.ValueAt(1_699_999_800 + 599)
	require.NoError(t, err)
	assert.Equal(t, 1.25, v)
	v, err = series.ValueAt(1_700_000_400)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(v))
}

func TestStore_AppendOverwritesPartialTail(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, discardLogger())
	require.NoError(t, err)
	id, err := s.Create(1, "f", 10)
	require.NoError(t, err)

	_, err = s.Append(id, feed.Meta{Interval: 10, StartTime: 100}, []float64{1})
	require.NoError(t, err)

	// a crashed writer left two stray bytes
	f, err := os.OpenFile(filepath.Join(dir, "1.dat"), os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.Write([]byte{0xff, 0xff})
	require.NoError(t, err)
	require.NoError(t, f.Close())

	m, err := s.Append(id, feed.Meta{Interval: 10, StartTime: 100}, []float64{2})
	require.NoError(t, err)
	assert.Equal(t, int64(2), m.NPoints)

	v, ok, err := feed.LastValue(s, id)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2.0, v)
}

func TestStore_Rewrite(t *testing.T) {
	s, err := Open(t.TempDir(), discardLogger())
	require.NoError(t, err)
	id, err := s.Create(1, "f", 10)
	require.NoError(t, err)
	_, err = s.Append(id, feed.Meta{Interval: 10, StartTime: 100}, []float64{1, 2, 3, 4})
	require.NoError(t, err)

	m, err := s.Rewrite(id, feed.Meta{Interval: 10, StartTime: 120}, []float64{3, 4})
	require.NoError(t, err)
	assert.Equal(t, feed.Meta{Interval: 10, StartTime: 120, NPoints: 2}, m)
}

func TestStore_Errors(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, discardLogger())
	require.NoError(t, err)

	_, err = s.Get(7)
	assert.ErrorIs(t, err, feed.ErrNotFound)
	_, err = s.Append(7, feed.Meta{Interval: 10}, []float64{1})
	assert.ErrorIs(t, err, feed.ErrNotFound)

	_, err = s.Create(1, "dup", 10)
	require.NoError(t, err)
	_, err = s.Create(1, "dup", 10)
	assert.ErrorIs(t, err, feed.ErrExists)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "9.meta"), []byte{1, 2, 3}, 0o644))
	reopened, err := Open(dir, discardLogger())
	require.NoError(t, err)
	assert.Equal(t, []int{1, 9}, reopened.IDs())
	_, err = reopened.Get(9)
	assert.ErrorIs(t, err, feed.ErrInvalidMeta)
}
