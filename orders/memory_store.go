package orders

import (
	"context"
	"encoding/json"
	"sync"
)

// MemoryStore is an in-process Store, used by tests and single-node setups
type MemoryStore struct {
	mu     sync.RWMutex
	drafts map[string][]byte
}

// NewMemoryStore creates an empty memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{drafts: make(map[string][]byte)}
}

// Load returns a copy of the stored draft
func (m *MemoryStore) Load(ctx context.Context, id string) (*Draft, error) {
	m.mu.RLock()
	raw, ok := m.drafts[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrDraftNotFound
	}

	var d Draft
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// Save stores a copy of the draft
func (m *MemoryStore) Save(ctx context.Context, id string, d *Draft) error {
	raw, err := json.Marshal(d)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.drafts[id] = raw
	m.mu.Unlock()
	return nil
}

// Delete removes the draft
func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.drafts[id]; !ok {
		return ErrDraftNotFound
	}
	delete(m.drafts, id)
	return nil
}

// Len returns the number of open drafts
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.drafts)
}
