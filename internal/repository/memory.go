package repository

import (
	"context"
	"sync"
)

// MemoryRecordStore keeps documents in process memory. Used as the failover
// fallback and in tests. Update serializes writers per key, so the
// read-modify-write cycle never loses an update within a single process.
type MemoryRecordStore struct {
	mu   sync.RWMutex
	docs map[string][]byte
	keys sync.Map // map[string]*sync.Mutex, one writer lock per key
}

func NewMemoryRecordStore() *MemoryRecordStore {
	return &MemoryRecordStore{
		docs: make(map[string][]byte),
	}
}

func (r *MemoryRecordStore) Get(ctx context.Context, key string) ([]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	data, ok := r.docs[key]
	if !ok {
		return nil, nil
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (r *MemoryRecordStore) Set(ctx context.Context, key string, data []byte) error {
	stored := make([]byte, len(data))
	copy(stored, data)

	r.mu.Lock()
	r.docs[key] = stored
	r.mu.Unlock()
	return nil
}

func (r *MemoryRecordStore) Update(ctx context.Context, key string, fn func(old []byte) ([]byte, error)) error {
	lock := r.keyLock(key)
	lock.Lock()
	defer lock.Unlock()

	old, err := r.Get(ctx, key)
	if err != nil {
		return err
	}

	updated, err := fn(old)
	if err != nil {
		return &fnAbort{err: err}
	}

	return r.Set(ctx, key, updated)
}

func (r *MemoryRecordStore) keyLock(key string) *sync.Mutex {
	if v, ok := r.keys.Load(key); ok {
		return v.(*sync.Mutex)
	}
	lock := &sync.Mutex{}
	actual, _ := r.keys.LoadOrStore(key, lock)
	return actual.(*sync.Mutex)
}
