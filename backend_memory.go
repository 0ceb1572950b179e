package ridb

import (
	"context"
	"fmt"
	"sync"
)

// MemoryBackend is an in-process StorageBackend backed by a map per
// collection. It is intended for tests and ephemeral databases; no
// data survives past Close.
type MemoryBackend struct {
	mu          sync.RWMutex
	primaryKeys map[string]string
	collections map[string]map[string]map[string]any
	closed      bool
}

// NewMemoryBackend constructs an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{}
}

func (b *MemoryBackend) Start(_ context.Context, _ string, primaryKeys map[string]string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.primaryKeys = primaryKeys
	b.collections = make(map[string]map[string]map[string]any, len(primaryKeys))
	for name := range primaryKeys {
		b.collections[name] = make(map[string]map[string]any)
	}
	b.closed = false
	return nil
}

func (b *MemoryBackend) Close(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

func (b *MemoryBackend) Write(_ context.Context, op Operation) (any, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, fmt.Errorf("%w: backend is closed", ErrStorage)
	}

	store, ok := b.collections[op.Collection]
	if !ok {
		return nil, fmt.Errorf("%w: unknown collection %s", ErrStorage, op.Collection)
	}
	pkField := b.primaryKeys[op.Collection]

	switch op.Type {
	case OpCreate, OpUpdate:
		doc, ok := op.Data.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: expected document for %s", ErrStorage, op.Type)
		}
		pk, ok := doc[pkField].(string)
		if !ok || pk == "" {
			return nil, fmt.Errorf("%w: document missing primary key %s", ErrStorage, pkField)
		}
		store[pk] = doc
		return doc, nil
	case OpDelete:
		pk, ok := op.Data.(string)
		if !ok || pk == "" {
			return nil, fmt.Errorf("%w: expected primary key for DELETE", ErrStorage)
		}
		delete(store, pk)
		return deletedSentinel, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedOperation, op.Type)
	}
}

func (b *MemoryBackend) FindDocumentByID(_ context.Context, collection, id string) (map[string]any, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, fmt.Errorf("%w: backend is closed", ErrStorage)
	}
	store, ok := b.collections[collection]
	if !ok {
		return nil, fmt.Errorf("%w: unknown collection %s", ErrStorage, collection)
	}
	doc, ok := store[id]
	if !ok {
		return nil, fmt.Errorf("%w: document %s", ErrNotFound, id)
	}
	return doc, nil
}

func (b *MemoryBackend) Find(_ context.Context, collection string, query *Query) ([]map[string]any, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, fmt.Errorf("%w: backend is closed", ErrStorage)
	}
	store, ok := b.collections[collection]
	if !ok {
		return nil, fmt.Errorf("%w: unknown collection %s", ErrStorage, collection)
	}
	var out []map[string]any
	for _, doc := range store {
		if query == nil || query.Matches(doc) {
			out = append(out, doc)
		}
	}
	return out, nil
}

func (b *MemoryBackend) Count(ctx context.Context, collection string, query *Query) (int, error) {
	docs, err := b.Find(ctx, collection, query)
	if err != nil {
		return 0, err
	}
	return len(docs), nil
}
