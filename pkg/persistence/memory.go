package persistence

import (
	"context"
	"sync"

	"github.com/backsoul/spotit/pkg/models"
)

type memoryStore struct {
	mu    sync.RWMutex
	items map[string][]byte
}

// NewMemoryStore keeps snapshots in process memory. Snapshots are stored
// encoded so callers never share slices with the store.
func NewMemoryStore() SnapshotStore {
	return &memoryStore{items: map[string][]byte{}}
}

func (m *memoryStore) Save(_ context.Context, sessionID string, snap models.Snapshot) error {
	data, err := Encode(snap)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[Key(sessionID)] = data
	return nil
}

func (m *memoryStore) Load(_ context.Context, sessionID string) (models.Snapshot, bool, error) {
	m.mu.RLock()
	data, ok := m.items[Key(sessionID)]
	m.mu.RUnlock()
	if !ok {
		return models.Snapshot{}, false, nil
	}
	snap, ok, err := Decode(data)
	if err != nil {
		// Un registro ilegible se descarta y la sesión arranca limpia
		m.mu.Lock()
		delete(m.items, Key(sessionID))
		m.mu.Unlock()
		return models.Snapshot{}, false, nil
	}
	return snap, ok, nil
}

func (m *memoryStore) Clear(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, Key(sessionID))
	return nil
}

func (m *memoryStore) Ping(context.Context) error { return nil }

func (m *memoryStore) Close() error { return nil }
