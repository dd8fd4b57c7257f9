package process_test

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexandrecuer/postprocess/internal/feed"
	"github.com/alexandrecuer/postprocess/internal/process"
)

type mockQueue struct {
	items []process.Item
	err   error
}

func (q *mockQueue) Enqueue(_ context.Context, item process.Item) error {
	if q.err != nil {
		return q.err
	}
	q.items = append(q.items, item)
	return nil
}

func newService(store feed.Store, queue process.Queue) (*process.Service, *process.MemoryListStore) {
	lists := process.NewMemoryListStore()
	return process.NewService(process.DefaultRegistry(), store, lists, queue, discardLogger()), lists
}

func TestService_CreateListUpdate(t *testing.T) {
	ctx := context.Background()
	store := feed.NewMemoryStore()
	input, _ := store.Create(1, "power", 10)
	queue := &mockQueue{}
	svc, _ := newService(store, queue)

	item, err := svc.Create(ctx, 1, process.PowerToKWh, map[string]string{"input": strconv.Itoa(input), "output": "energy"})
	require.NoError(t, err)
	assert.NotEmpty(t, item.ID)
	require.Len(t, queue.items, 1)
	assert.Equal(t, item, queue.items[0])

	out, ok := store.IDByName(1, "energy")
	require.True(t, ok)
	assert.Equal(t, strconv.Itoa(out), item.Params["output"])

	listed, err := svc.List(ctx, 1)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, "power", listed[0].Feeds["input"].Name)
	assert.Equal(t, "energy", listed[0].Feeds["output"].Name)

	again, err := svc.Update(ctx, 1, process.PowerToKWh, map[string]string{"input": strconv.Itoa(input), "output": strconv.Itoa(out)})
	require.NoError(t, err)
	assert.Equal(t, item.ID, again.ID)
	assert.Len(t, queue.items, 2)

	// creating the same item twice fails on the output name
	_, err = svc.Create(ctx, 1, process.PowerToKWh, map[string]string{"input": strconv.Itoa(input), "output": "energy"})
	assert.EqualError(t, err, "feed already exists with name energy")
}

func TestService_UpdateUnregistered(t *testing.T) {
	store := feed.NewMemoryStore()
	input, _ := store.Create(1, "power", 10)
	out, _ := store.Create(1, "energy", 10)
	svc, _ := newService(store, &mockQueue{})

	_, err := svc.Update(context.Background(), 1, process.PowerToKWh, map[string]string{"input": strconv.Itoa(input), "output": strconv.Itoa(out)})
	assert.ErrorIs(t, err, process.ErrNotRegistered)
}

func TestService_UnknownProcess(t *testing.T) {
	svc, _ := newService(feed.NewMemoryStore(), &mockQueue{})
	_, err := svc.Create(context.Background(), 1, "nope", nil)
	assert.ErrorIs(t, err, process.ErrUnknownProcess)
}

func TestService_ListDropsStaleItems(t *testing.T) {
	ctx := context.Background()
	store := feed.NewMemoryStore()
	input, _ := store.Create(1, "power", 10)
	svc, lists := newService(store, &mockQueue{})

	_, err := svc.Create(ctx, 1, process.PowerToKWh, map[string]string{"input": strconv.Itoa(input), "output": "energy"})
	require.NoError(t, err)

	stale := process.Item{ID: "gone", Process: process.PowerToKWh, UserID: 1, Params: map[string]string{"input": "42", "output": "43"}}
	removed := process.Item{ID: "removed", Process: "basic_formula", UserID: 1}
	require.NoError(t, lists.Append(ctx, 1, stale))
	require.NoError(t, lists.Append(ctx, 1, removed))

	listed, err := svc.List(ctx, 1)
	require.NoError(t, err)
	require.Len(t, listed, 1)

	kept, err := lists.Load(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, kept, 1)
}

func TestService_EnqueueFailure(t *testing.T) {
	store := feed.NewMemoryStore()
	input, _ := store.Create(1, "power", 10)
	svc, _ := newService(store, &mockQueue{err: errors.New("broker down")})

	_, err := svc.Create(context.Background(), 1, process.PowerToKWh, map[string]string{"input": strconv.Itoa(input), "output": "energy"})
	assert.ErrorContains(t, err, "broker down")
}

type lockedQueue struct {
	mu    sync.Mutex
	items []process.Item
}

func (q *lockedQueue) Enqueue(_ context.Context, item process.Item) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, item)
	return nil
}

func TestService_ConcurrentCreatesKeepEveryItem(t *testing.T) {
	ctx := context.Background()
	store := feed.NewMemoryStore()
	input, _ := store.Create(1, "power", 10)
	queue := &lockedQueue{}
	svc, lists := newService(store, queue)

	const n = 32
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Create(ctx, 1, process.PowerToKWh, map[string]string{
				"input":  strconv.Itoa(input),
				"output": fmt.Sprintf("energy%d", i),
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	stored, err := lists.Load(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, stored, n)
	assert.Len(t, queue.items, n)
}
