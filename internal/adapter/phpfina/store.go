// Package phpfina stores feeds in the PHPFina layout: for every feed id a
// 16-byte <id>.meta header and a <id>.dat file of little-endian float32
// samples. Feed names and owners live in a catalog.json file next to them.
package phpfina

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"

	"github.com/alexandrecuer/postprocess/internal/feed"
)

const (
	metaSize    = 16
	catalogFile = "catalog.json"
)

type catalogEntry struct {
	Name   string `json:"name"`
	UserID int    `json:"userid"`
}

// Store is a feed.Store backed by a directory.
type Store struct {
	dir    string
	logger *slog.Logger

	mu      sync.RWMutex
	catalog map[int]catalogEntry
}

// Open loads the catalog of dir, creating the directory if needed.
func Open(dir string, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create feed directory: %w", err)
	}
	s := &Store{dir: dir, logger: logger, catalog: make(map[int]catalogEntry)}

	data, err := os.ReadFile(filepath.Join(dir, catalogFile))
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read feed catalog: %w", err)
	default:
		raw := make(map[string]catalogEntry)
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("decode feed catalog: %w", err)
		}
		for k, e := range raw {
			id, err := strconv.Atoi(k)
			if err != nil {
				return nil, fmt.Errorf("decode feed catalog: bad id %q", k)
			}
			s.catalog[id] = e
		}
	}

	// feeds copied in without a catalog entry are still usable by id
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list feed directory: %w", err)
	}
	for _, e := range entries {
		if filepath.Ext(e.Name()) != ".meta" {
			continue
		}
		id, err := strconv.Atoi(e.Name()[:len(e.Name())-len(".meta")])
		if err != nil || id < 1 {
			continue
		}
		if _, ok := s.catalog[id]; !ok {
			s.catalog[id] = catalogEntry{Name: strconv.Itoa(id)}
		}
	}

	logger.Info("phpfina store opened", "dir", dir, "feeds", len(s.catalog))
	return s, nil
}

func (s *Store) metaPath(id int) string { return filepath.Join(s.dir, strconv.Itoa(id)+".meta") }
func (s *Store) dataPath(id int) string { return filepath.Join(s.dir, strconv.Itoa(id)+".dat") }

// Get implements feed.Store.
func (s *Store) Get(id int) (feed.Info, error) {
	s.mu.RLock()
	e, ok := s.catalog[id]
	s.mu.RUnlock()
	if !ok {
		return feed.Info{}, fmt.Errorf("feed %d: %w", id, feed.ErrNotFound)
	}
	m, err := s.readMeta(id)
	if err != nil {
		return feed.Info{}, err
	}
	return feed.Info{ID: id, Name: e.Name, UserID: e.UserID, Meta: m}, nil
}

// IDByName implements feed.Store.
func (s *Store) IDByName(userID int, name string) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for id, e := range s.catalog {
		if e.UserID == userID && e.Name == name {
			return id, true
		}
	}
	return 0, false
}

// Create implements feed.Store.
func (s *Store) Create(userID int, name string, interval int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := 1
	for existing, e := range s.catalog {
		if e.UserID == userID && e.Name == name {
			return 0, fmt.Errorf("%w with name %s", feed.ErrExists, name)
		}
		id = max(id, existing+1)
	}

	if err := writeMeta(s.metaPath(id), feed.Meta{Interval: interval}); err != nil {
		return 0, err
	}
	if err := os.WriteFile(s.dataPath(id), nil, 0o644); err != nil {
		return 0, fmt.Errorf("create feed data: %w", err)
	}
	s.catalog[id] = catalogEntry{Name: name, UserID: userID}
	if err := s.saveCatalog(); err != nil {
		return 0, err
	}
	s.logger.Info("feed created", "id", id, "name", name, "userid", userID, "interval", interval)
	return id, nil
}

// Open implements feed.Store.
func (s *Store) Open(id int) (*feed.Series, error) {
	if _, err := s.Get(id); err != nil {
		return nil, err
	}
	m, err := s.readMeta(id)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(s.dataPath(id))
	if err != nil {
		return nil, fmt.Errorf("open feed %d data: %w", id, err)
	}
	return feed.NewSeries(m, f), nil
}

// Append implements feed.Store. Samples land at offset NPoints*4 so that a
// partially written tail is overwritten.
func (s *Store) Append(id int, m feed.Meta, values []float64) (feed.Meta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.catalog[id]; !ok {
		return feed.Meta{}, fmt.Errorf("feed %d: %w", id, feed.ErrNotFound)
	}
	cur, err := s.readMeta(id)
	if err != nil {
		return feed.Meta{}, err
	}

	f, err := os.OpenFile(s.dataPath(id), os.O_WRONLY|os.O_CREATE, 0o644)
	if err != nil {
		return feed.Meta{}, fmt.Errorf("open feed %d data: %w", id, err)
	}
	n, werr := f.WriteAt(feed.EncodeSamples(values), cur.NPoints*feed.SampleSize)
	if cerr := f.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		return feed.Meta{}, fmt.Errorf("write feed %d: %d bytes written: %w", id, n, werr)
	}

	// the header is only updated once the samples are on disk
	m.NPoints = cur.NPoints + int64(len(values))
	if err := writeMeta(s.metaPath(id), m); err != nil {
		return feed.Meta{}, err
	}
	return s.readMeta(id)
}

// Rewrite implements feed.Store.
func (s *Store) Rewrite(id int, m feed.Meta, values []float64) (feed.Meta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.catalog[id]; !ok {
		return feed.Meta{}, fmt.Errorf("feed %d: %w", id, feed.ErrNotFound)
	}
	if err := os.WriteFile(s.dataPath(id), feed.EncodeSamples(values), 0o644); err != nil {
		return feed.Meta{}, fmt.Errorf("rewrite feed %d: %w", id, err)
	}
	if err := writeMeta(s.metaPath(id), m); err != nil {
		return feed.Meta{}, err
	}
	return s.readMeta(id)
}

// IDs returns every catalogued feed id in increasing order.
func (s *Store) IDs() []int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]int, 0, len(s.catalog))
	for id := range s.catalog {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// readMeta decodes the header of a feed. NPoints comes from the data file
// size.
func (s *Store) readMeta(id int) (feed.Meta, error) {
	buf, err := os.ReadFile(s.metaPath(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return feed.Meta{}, fmt.Errorf("feed %d meta: %w", id, feed.ErrNotFound)
		}
		return feed.Meta{}, fmt.Errorf("read feed %d meta: %w", id, err)
	}
	if len(buf) < metaSize {
		return feed.Meta{}, fmt.Errorf("%w: feed %d header is %d bytes", feed.ErrInvalidMeta, id, len(buf))
	}
	m := feed.Meta{
		Interval:  int64(binary.LittleEndian.Uint32(buf[8:12])),
		StartTime: int64(binary.LittleEndian.Uint32(buf[12:16])),
	}

	st, err := os.Stat(s.dataPath(id))
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return feed.Meta{}, fmt.Errorf("stat feed %d data: %w", id, err)
	default:
		m.NPoints = st.Size() / feed.SampleSize
	}
	return m, nil
}

func writeMeta(path string, m feed.Meta) error {
	buf := make([]byte, metaSize)
	binary.LittleEndian.PutUint32(buf[8:12], uint32(m.Interval))
	binary.LittleEndian.PutUint32(buf[12:16], uint32(m.StartTime))
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return fmt.Errorf("write meta %s: %w", filepath.Base(path), err)
	}
	return nil
}

// saveCatalog persists the catalog. Callers hold s.mu.
func (s *Store) saveCatalog() error {
	raw := make(map[string]catalogEntry, len(s.catalog))
	for id, e := range s.catalog {
		raw[strconv.Itoa(id)] = e
	}
	data, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return fmt.Errorf("encode feed catalog: %w", err)
	}
	tmp := filepath.Join(s.dir, catalogFile+".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write feed catalog: %w", err)
	}
	if err := os.Rename(tmp, filepath.Join(s.dir, catalogFile)); err != nil {
		return fmt.Errorf("write feed catalog: %w", err)
	}
	return nil
}
