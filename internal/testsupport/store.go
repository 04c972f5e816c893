package testsupport

import (
	"context"
	"sync"
	"testing"

	"github.com/CopyPasteFail/articles-rss-to-podcast/internal/catalog"
	"github.com/CopyPasteFail/articles-rss-to-podcast/internal/config"
)

// MustOpenCatalog opens a catalog.Store for tests and registers cleanup.
func MustOpenCatalog(t testing.TB, cfg *config.Config) *catalog.Store {
	t.Helper()

	store, err := catalog.Open(cfg)
	if err != nil {
		t.Fatalf("catalog.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// MemoryStateStore is an in-memory stand-in for the durable state store.
type MemoryStateStore struct {
	mu   sync.Mutex
	data map[string][]byte

	// PutErr, when set, is returned by every Put to simulate persistence
	// failures.
	PutErr error
	// Puts counts successful writes.
	Puts int
}

// NewMemoryStateStore returns an empty in-memory store.
func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{data: make(map[string][]byte)}
}

// Get implements statestore.Store.
func (m *MemoryStateStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	value, ok := m.data[key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(value))
	copy(out, value)
	return out, true, nil
}

// Put implements statestore.Store.
func (m *MemoryStateStore) Put(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PutErr != nil {
		return m.PutErr
	}
	stored := make([]byte, len(value))
	copy(stored, value)
	m.data[key] = stored
	m.Puts++
	return nil
}
