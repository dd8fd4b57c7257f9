package feed

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// SampleSize is the on-disk size of one sample, a little-endian float32.
const SampleSize = 4

// Series gives random access to the samples of one feed.
type Series struct {
	Meta Meta
	r    io.ReaderAt
	c    io.Closer
}

// NewSeries wraps r, which holds m.NPoints encoded samples. If r is also an
// io.Closer, Close releases it.
func NewSeries(m Meta, r io.ReaderAt) *Series {
	s := &Series{Meta: m, r: r}
	if c, ok := r.(io.Closer); ok {
		s.c = c
	}
	return s
}

// ValueAt returns the sample covering t. Timestamps outside the feed yield
// NaN with no error.
func (s *Series) ValueAt(t int64) (float64, error) {
	i := s.Meta.Index(t)
	if i < 0 || i >= s.Meta.NPoints {
		return math.NaN(), nil
	}
	return s.At(i)
}

// At returns sample i.
func (s *Series) At(i int64) (float64, error) {
	var buf [SampleSize]byte
	if _, err := s.r.ReadAt(buf[:], i*SampleSize); err != nil {
		return math.NaN(), fmt.Errorf("read sample %d: %w", i, err)
	}
	return float64(math.Float32frombits(binary.LittleEndian.Uint32(buf[:]))), nil
}

// Values returns samples [from, NPoints).
func (s *Series) Values(from int64) ([]float64, error) {
	if from < 0 {
		from = 0
	}
	if from >= s.Meta.NPoints {
		return nil, nil
	}
	buf := make([]byte, (s.Meta.NPoints-from)*SampleSize)
	n, err := s.r.ReadAt(buf, from*SampleSize)
	if err != nil && !(errors.Is(err, io.EOF) && n == len(buf)) {
		return nil, fmt.Errorf("read samples from %d: %w", from, err)
	}
	return DecodeSamples(buf), nil
}

// Close releases the underlying reader.
func (s *Series) Close() error {
	if s.c == nil {
		return nil
	}
	return s.c.Close()
}

// EncodeSamples packs values as little-endian float32.
func EncodeSamples(values []float64) []byte {
	buf := make([]byte, len(values)*SampleSize)
	for i, v := range values {
		binary.LittleEndian.PutUint32(buf[i*SampleSize:], math.Float32bits(float32(v)))
	}
	return buf
}

// DecodeSamples unpacks little-endian float32 samples. A trailing partial
// sample is ignored.
func DecodeSamples(buf []byte) []float64 {
	out := make([]float64, len(buf)/SampleSize)
	for i := range out {
		out[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(buf[i*SampleSize:])))
	}
	return out
}
