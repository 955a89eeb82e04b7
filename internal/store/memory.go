package store

import (
	"context"
	"sync"
)

// MemoryKV is an in-process KV. Batches are applied under one lock, matching
// the batch atomicity of the Redis implementation, and every call fails with
// the context's error once it is done, as a Redis round trip would.
type MemoryKV struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemoryKV() *MemoryKV {
	return &MemoryKV{data: make(map[string][]byte)}
}

func (m *MemoryKV) GetMany(ctx context.Context, keys []string) (map[string][]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string][]byte, len(keys))
	for _, k := range keys {
		if v, ok := m.data[k]; ok {
			out[k] = clone(v)
		}
	}
	return out, nil
}

func (m *MemoryKV) SetMany(ctx context.Context, updates map[string][]byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range updates {
		m.data[k] = clone(v)
	}
	return nil
}

func (m *MemoryKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return nil, false, nil
	}
	return clone(v), true, nil
}

func (m *MemoryKV) Set(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = clone(value)
	return nil
}

// Len returns the number of stored keys.
func (m *MemoryKV) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

// Keys returns a snapshot of the stored keys in no particular order.
func (m *MemoryKV) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	return keys
}

func clone(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// Memory is a Provider backed by one MemoryKV per namespace.
type Memory struct {
	spaces map[Namespace]*MemoryKV
}

func NewMemory() *Memory {
	m := &Memory{spaces: make(map[Namespace]*MemoryKV, len(AllNamespaces))}
	for _, ns := range AllNamespaces {
		m.spaces[ns] = NewMemoryKV()
	}
	return m
}

func (m *Memory) Namespace(ns Namespace) KV {
	return m.spaces[ns]
}

// KV returns the concrete in-memory namespace, for inspection in tests and
// dry runs.
func (m *Memory) KV(ns Namespace) *MemoryKV {
	return m.spaces[ns]
}
