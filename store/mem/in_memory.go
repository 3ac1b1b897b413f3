package mem

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/quantgrid/stratflow/store"
)

var (
	_ store.Store = &memoryStore{}
)

// NewMemStore returns an in-memory store for tests and development.
// Nothing survives a process restart; never use it in production.
func NewMemStore() store.Store {
	return &memoryStore{
		entries: make(map[string][]byte),
		failure: neverFail,
	}
}

// NewMemStoreWithErrHandler returns a memory store whose every operation
// additionally reports whatever failure() returns. Tests use it to drive
// the engine through store-failure paths.
func NewMemStoreWithErrHandler(failure func() error) store.Store {
	return &memoryStore{
		entries: make(map[string][]byte),
		failure: failure,
	}
}

func neverFail() error {
	return nil
}

type memoryStore struct {
	mu sync.Mutex

	failure func() error

	entries map[string][]byte
}

func compose(prefix, key string) string {
	return prefix + "|" + key
}

func (m *memoryStore) Get(ctx context.Context, prefix, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.entries[compose(prefix, key)], m.failure()
}

func (m *memoryStore) Set(ctx context.Context, prefix, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[compose(prefix, key)] = value
	return m.failure()
}

func (m *memoryStore) Remove(ctx context.Context, prefix, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, compose(prefix, key))
	return m.failure()
}

func (m *memoryStore) List(ctx context.Context, prefix string, iterator func(key string) bool) error {
	m.mu.Lock()
	composedPrefix := compose(prefix, "")
	matched := make([]string, 0)
	for key := range m.entries {
		if strings.HasPrefix(key, composedPrefix) {
			matched = append(matched, strings.TrimPrefix(key, composedPrefix))
		}
	}
	m.mu.Unlock()

	// map iteration order is random; keep listing deterministic
	sort.Strings(matched)

	for _, key := range matched {
		if !iterator(key) {
			break
		}
	}
	return m.failure()
}
