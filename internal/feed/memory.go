package feed

import (
	"bytes"
	"fmt"
	"sort"
	"sync"
)

type memFeed struct {
	info Info
	data []byte
}

// MemoryStore keeps feeds in memory.
type MemoryStore struct {
	mu     sync.RWMutex
	feeds  map[int]*memFeed
	nextID int
}

// NewMemoryStore returns an empty store. Ids start at 1.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{feeds: make(map[int]*memFeed), nextID: 1}
}

// Get implements Store.
func (s *MemoryStore) Get(id int) (Info, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, ok := s.feeds[id]
	if !ok {
		return Info{}, fmt.Errorf("feed %d: %w", id, ErrNotFound)
	}
	return f.info, nil
}

// IDByName implements Store.
func (s *MemoryStore) IDByName(userID int, name string) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for id, f := range s.feeds {
		if f.info.UserID == userID && f.info.Name == name {
			return id, true
		}
	}
	return 0, false
}

// Create implements Store.
func (s *MemoryStore) Create(userID int, name string, interval int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, f := range s.feeds {
		if f.info.UserID == userID && f.info.Name == name {
			return 0, fmt.Errorf("%w with name %s", ErrExists, name)
		}
	}
	id := s.nextID
	s.nextID++
	s.feeds[id] = &memFeed{info: Info{ID: id, Name: name, UserID: userID, Meta: Meta{Interval: interval}}}
	return id, nil
}

// Put stores a complete feed under a fixed id, replacing any previous one.
func (s *MemoryStore) Put(info Info, values []float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	info.NPoints = int64(len(values))
	s.feeds[info.ID] = &memFeed{info: info, data: EncodeSamples(values)}
	if info.ID >= s.nextID {
		s.nextID = info.ID + 1
	}
}

// Open implements Store. The series reads a snapshot of the feed.
func (s *MemoryStore) Open(id int) (*Series, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, ok := s.feeds[id]
	if !ok {
		return nil, fmt.Errorf("feed %d: %w", id, ErrNotFound)
	}
	snapshot := bytes.Clone(f.data)
	return NewSeries(f.info.Meta, bytes.NewReader(snapshot)), nil
}

// Append implements Store.
func (s *MemoryStore) Append(id int, m Meta, values []float64) (Meta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.feeds[id]
	if !ok {
		return Meta{}, fmt.Errorf("feed %d: %w", id, ErrNotFound)
	}
	f.data = append(f.data, EncodeSamples(values)...)
	f.info.Interval, f.info.StartTime = m.Interval, m.StartTime
	f.info.NPoints = int64(len(f.data) / SampleSize)
	return f.info.Meta, nil
}

// Rewrite implements Store.
func (s *MemoryStore) Rewrite(id int, m Meta, values []float64) (Meta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.feeds[id]
	if !ok {
		return Meta{}, fmt.Errorf("feed %d: %w", id, ErrNotFound)
	}
	f.data = EncodeSamples(values)
	f.info.Interval, f.info.StartTime = m.Interval, m.StartTime
	f.info.NPoints = int64(len(values))
	return f.info.Meta, nil
}

// List returns every feed sorted by id.
func (s *MemoryStore) List() []Info {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Info, 0, len(s.feeds))
	for _, f := range s.feeds {
		out = append(out, f.info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
