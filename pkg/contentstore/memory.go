package contentstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/prividocs/privistream/pkg/types"
)

// MemoryStore keeps blobs in process memory, addressed by the hex
// SHA-256 of their content. Useful for tests and single-node setups.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string][]byte)}
}

func (m *MemoryStore) Put(_ context.Context, data []byte) (string, error) {
	sum := sha256.Sum256(data)
	cid := hex.EncodeToString(sum[:])

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.blobs[cid]; !ok {
		m.blobs[cid] = append([]byte(nil), data...)
	}
	return cid, nil
}

func (m *MemoryStore) Get(_ context.Context, cid string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.blobs[cid]
	if !ok {
		return nil, fmt.Errorf("%w: content %s", types.ErrNotFound, cid)
	}
	return append([]byte(nil), data...), nil
}

// Len reports how many distinct blobs are stored.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.blobs)
}
