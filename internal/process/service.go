package process

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/alexandrecuer/postprocess/internal/feed"
)

// ErrNotRegistered means an update names an item that was never created.
var ErrNotRegistered = errors.New("process does not exist, please create")

// ListStore persists the registered items of every user. Append and Remove
// are atomic with respect to each other.
type ListStore interface {
	Load(ctx context.Context, userID int) ([]Item, error)
	Append(ctx context.Context, userID int, item Item) error
	Remove(ctx context.Context, userID int, ids ...string) error
}

// Queue hands items to the worker.
type Queue interface {
	Enqueue(ctx context.Context, item Item) error
}

// ListedItem is a registered item with the catalog entry of each feed it
// references.
type ListedItem struct {
	Item
	Feeds map[string]feed.Info `json:"feeds"`
}

// Service registers items and queues them for processing.
type Service struct {
	registry *Registry
	feeds    feed.Store
	lists    ListStore
	queue    Queue
	logger   *slog.Logger
}

// NewService creates a Service.
func NewService(registry *Registry, feeds feed.Store, lists ListStore, queue Queue, logger *slog.Logger) *Service {
	return &Service{registry: registry, feeds: feeds, lists: lists, queue: queue, logger: logger}
}

// Descriptions lists the available processes.
func (s *Service) Descriptions() map[string]Description {
	return s.registry.Descriptions()
}

// Create validates params, creates the output feeds, registers the item and
// queues it.
func (s *Service) Create(ctx context.Context, userID int, process string, params map[string]string) (Item, error) {
	p, err := s.registry.Get(process)
	if err != nil {
		return Item{}, err
	}
	valid, err := Validate(p.Description, userID, params, s.feeds, ModeCreate)
	if err != nil {
		return Item{}, err
	}

	item := Item{ID: uuid.NewString(), Process: process, UserID: userID, Params: valid}

	if err := s.lists.Append(ctx, userID, item); err != nil {
		return Item{}, fmt.Errorf("save process list: %w", err)
	}
	if err := s.queue.Enqueue(ctx, item); err != nil {
		return Item{}, fmt.Errorf("enqueue: %w", err)
	}

	s.logger.Info("process created", "job_id", item.ID, "process", process, "userid", userID)
	return item, nil
}

// Update queues an already registered item again. params must match the
// registered settings exactly.
func (s *Service) Update(ctx context.Context, userID int, process string, params map[string]string) (Item, error) {
	p, err := s.registry.Get(process)
	if err != nil {
		return Item{}, err
	}
	valid, err := Validate(p.Description, userID, params, s.feeds, ModeUpdate)
	if err != nil {
		return Item{}, err
	}

	items, err := s.lists.Load(ctx, userID)
	if err != nil {
		return Item{}, fmt.Errorf("load process list: %w", err)
	}
	want := Item{Process: process, UserID: userID, Params: valid}
	i := slices.IndexFunc(items, want.SameAs)
	if i < 0 {
		return Item{}, ErrNotRegistered
	}

	item := items[i]
	if err := s.queue.Enqueue(ctx, item); err != nil {
		return Item{}, fmt.Errorf("enqueue: %w", err)
	}
	s.logger.Info("process queued", "job_id", item.ID, "process", process, "userid", userID)
	return item, nil
}

// List returns the valid registered items of a user. Items whose process is
// gone or whose feeds no longer exist are dropped from the stored list.
func (s *Service) List(ctx context.Context, userID int) ([]ListedItem, error) {
	items, err := s.lists.Load(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load process list: %w", err)
	}

	listed := make([]ListedItem, 0, len(items))
	var stale []string
	for _, it := range items {
		li, ok := s.describe(it, userID)
		if !ok {
			s.logger.Info("dropping stale process", "job_id", it.ID, "process", it.Process, "userid", userID)
			stale = append(stale, it.ID)
			continue
		}
		listed = append(listed, li)
	}

	if len(stale) > 0 {
		if err := s.lists.Remove(ctx, userID, stale...); err != nil {
			return nil, fmt.Errorf("save process list: %w", err)
		}
	}
	return listed, nil
}

func (s *Service) describe(it Item, userID int) (ListedItem, bool) {
	p, err := s.registry.Get(it.Process)
	if err != nil {
		return ListedItem{}, false
	}
	li := ListedItem{Item: it, Feeds: make(map[string]feed.Info)}
	for _, st := range p.Description.Settings {
		if st.Type != SettingFeed && st.Type != SettingNewFeed {
			continue
		}
		id, err := it.FeedID(st.Key)
		if err != nil {
			return ListedItem{}, false
		}
		info, err := s.feeds.Get(id)
		if err != nil || info.UserID != userID {
			return ListedItem{}, false
		}
		li.Feeds[st.Key] = info
	}
	return li, true
}

// MemoryListStore keeps process lists in memory.
type MemoryListStore struct {
	mu    sync.RWMutex
	lists map[int][]Item
}

// NewMemoryListStore returns an empty store.
func NewMemoryListStore() *MemoryListStore {
	return &MemoryListStore{lists: make(map[int][]Item)}
}

// Load implements ListStore.
func (m *MemoryListStore) Load(_ context.Context, userID int) ([]Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.lists[userID]), nil
}

// Append implements ListStore.
func (m *MemoryListStore) Append(_ context.Context, userID int, item Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lists[userID] = append(m.lists[userID], item)
	return nil
}

// Remove implements ListStore.
func (m *MemoryListStore) Remove(_ context.Context, userID int, ids ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lists[userID] = slices.DeleteFunc(m.lists[userID], func(it Item) bool {
		return slices.Contains(ids, it.ID)
	})
	return nil
}
