package storetest

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/nidoapp/nido-api/internal/store"
)

type entry struct {
	value       []byte
	modRevision int64
}

type watcher struct {
	prefix string
	ch     chan store.WatchEvent
	done   <-chan struct{}
}

// FakeClient is an in-memory stand-in for the etcd client wrapper with the
// same revision and pagination semantics. Hook, when set, runs before every
// operation and can inject failures.
type FakeClient struct {
	mu       sync.Mutex
	rev      int64
	data     map[string]entry
	watchers []*watcher

	Hook func(op string, key string) error
}

func NewFakeClient() *FakeClient {
	return &FakeClient{
		data: make(map[string]entry),
	}
}

func (f *FakeClient) hook(op, key string) error {
	if f.Hook != nil {
		return f.Hook(op, key)
	}
	return nil
}

func (f *FakeClient) Put(ctx context.Context, key string, value string) error {
	if err := f.hook("put", key); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.put(key, value)
	return nil
}

func (f *FakeClient) put(key, value string) {
	f.rev++
	f.data[key] = entry{value: []byte(value), modRevision: f.rev}
	f.broadcast(store.WatchEvent{Key: key, Value: []byte(value)})
}

// broadcast is called with f.mu held; slow watchers drop events, matching
// the best-effort wakeup the poller backstops.
func (f *FakeClient) broadcast(event store.WatchEvent) {
	for _, w := range f.watchers {
		if !strings.HasPrefix(event.Key, w.prefix) {
			continue
		}
		select {
		case <-w.done:
		case w.ch <- event:
		default:
		}
	}
}

func (f *FakeClient) Get(ctx context.Context, key string) ([]byte, int64, error) {
	if err := f.hook("get", key); err != nil {
		return nil, 0, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	e, ok := f.data[key]
	if !ok {
		return nil, 0, store.NewNotFoundError(key)
	}
	value := make([]byte, len(e.value))
	copy(value, e.value)
	return value, e.modRevision, nil
}

func (f *FakeClient) Delete(ctx context.Context, key string) error {
	if err := f.hook("delete", key); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.data, key)
	f.broadcast(store.WatchEvent{Key: key, Deleted: true})
	return nil
}

func (f *FakeClient) DeleteBatch(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := f.hook("delete-batch", keys[0]); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for _, key := range keys {
		delete(f.data, key)
		f.broadcast(store.WatchEvent{Key: key, Deleted: true})
	}
	return nil
}

func (f *FakeClient) List(ctx context.Context, paging store.Paging) (*store.Batch, error) {
	if err := f.hook("list", paging.Prefix); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	var keys []string
	for key := range f.data {
		if !strings.HasPrefix(key, paging.Prefix) {
			continue
		}
		if paging.From != "" && key <= paging.From {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	batch := &store.Batch{}
	for i, key := range keys {
		if paging.Limit > 0 && i >= paging.Limit {
			batch.More = true
			break
		}
		e := f.data[key]
		value := make([]byte, len(e.value))
		copy(value, e.value)
		batch.KVs = append(batch.KVs, store.KeyValue{Key: key, Value: value})
	}

	return batch, nil
}

func (f *FakeClient) PutIfAbsent(ctx context.Context, key string, value string) (bool, error) {
	if err := f.hook("put-if-absent", key); err != nil {
		return false, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.data[key]; ok {
		return false, nil
	}
	f.put(key, value)
	return true, nil
}

func (f *FakeClient) PutIfRevision(ctx context.Context, key string, value string, modRevision int64) (bool, error) {
	if err := f.hook("put-if-revision", key); err != nil {
		return false, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	e, ok := f.data[key]
	if !ok {
		// mod revision of an absent key compares equal to zero
		if modRevision != 0 {
			return false, nil
		}
		f.put(key, value)
		return true, nil
	}
	if e.modRevision != modRevision {
		return false, nil
	}
	f.put(key, value)
	return true, nil
}

func (f *FakeClient) Watch(ctx context.Context, prefix string) (<-chan store.WatchEvent, error) {
	w := &watcher{
		prefix: prefix,
		ch:     make(chan store.WatchEvent, 64),
		done:   ctx.Done(),
	}

	f.mu.Lock()
	f.watchers = append(f.watchers, w)
	f.mu.Unlock()

	go func() {
		<-ctx.Done()
		f.mu.Lock()
		defer f.mu.Unlock()
		for i, other := range f.watchers {
			if other == w {
				f.watchers = append(f.watchers[:i], f.watchers[i+1:]...)
				break
			}
		}
	}()

	return w.ch, nil
}

// Keys returns the sorted keys currently stored under a prefix.
func (f *FakeClient) Keys(prefix string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	var keys []string
	for key := range f.data {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}

// HasKey reports whether a key is currently stored.
func (f *FakeClient) HasKey(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.data[key]
	return ok
}

var _ store.ClientWrapper = (*FakeClient)(nil)
