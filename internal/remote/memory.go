package remote

import (
	"context"
	"sort"
	"sync"
)

// MemoryClient is an in-process DocumentClient. It performs no I/O and is
// used by tests and dry runs.
type MemoryClient struct {
	mu    sync.RWMutex
	docs  map[string]map[string][]byte
	calls int
}

var _ DocumentClient = (*MemoryClient)(nil)

// NewMemoryClient returns an empty MemoryClient.
func NewMemoryClient() *MemoryClient {
	return &MemoryClient{docs: make(map[string]map[string][]byte)}
}

// Calls returns the number of document operations served so far.
func (m *MemoryClient) Calls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls
}

// Get returns a copy of the stored body.
func (m *MemoryClient) Get(ctx context.Context, collection, id string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++

	body, ok := m.docs[collection][id]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), body...), true, nil
}

// Put stores a copy of body.
func (m *MemoryClient) Put(ctx context.Context, collection, id string, body []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++

	coll, ok := m.docs[collection]
	if !ok {
		coll = make(map[string][]byte)
		m.docs[collection] = coll
	}
	coll[id] = append([]byte(nil), body...)
	return nil
}

// Delete removes a document.
func (m *MemoryClient) Delete(ctx context.Context, collection, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++

	delete(m.docs[collection], id)
	return nil
}

// List returns every body in collection ordered by document ID.
func (m *MemoryClient) List(ctx context.Context, collection string) ([][]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++

	ids := make([]string, 0, len(m.docs[collection]))
	for id := range m.docs[collection] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([][]byte, 0, len(ids))
	for _, id := range ids {
		out = append(out, append([]byte(nil), m.docs[collection][id]...))
	}
	return out, nil
}

// Close is a no-op.
func (m *MemoryClient) Close() error {
	return nil
}
