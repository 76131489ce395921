// Package printstore serves printable document files.
package printstore

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/fieldsync/internal/common"
)

// Store keeps printable document files. Get returns common.ErrNotFound
// for a document without one.
type Store interface {
	Get(ctx context.Context, guid string) ([]byte, error)
	Put(ctx context.Context, guid string, file []byte) error
}

// Key is the object key of a document's printable file.
func Key(guid string) string { return "print/" + guid }

// MemoryStore keeps files in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	files map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{files: map[string][]byte{}}
}

func (m *MemoryStore) Put(_ context.Context, guid string, b []byte) error {
	m.mu.Lock()
	m.files[Key(guid)] = b
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Get(_ context.Context, guid string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.files[Key(guid)]
	if !ok {
		return nil, common.ErrNotFound
	}
	return b, nil
}
