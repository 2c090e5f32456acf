package kv

import (
	"bytes"
	"context"
	"sort"
	"sync"
)

// Memory is a map-backed DB for tests, tooling and stateless evaluation.
type Memory struct {
	mu     sync.RWMutex
	data   map[string][]byte
	closed bool
}

// NewMemory creates an empty in-memory backend.
func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

var _ DB = (*Memory)(nil)

func (m *Memory) Get(ctx context.Context, key []byte) ([]byte, error) {
	if err := check(ctx, key); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrDBClosed
	}
	value, ok := m.data[string(key)]
	if !ok {
		return nil, ErrKeyNotFound
	}
	out := make([]byte, len(value))
	copy(out, value)
	return out, nil
}

func (m *Memory) Put(ctx context.Context, key, value []byte) error {
	if err := check(ctx, key); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrDBClosed
	}
	stored := make([]byte, len(value))
	copy(stored, value)
	m.data[string(key)] = stored
	return nil
}

func (m *Memory) Delete(ctx context.Context, key []byte) error {
	if err := check(ctx, key); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrDBClosed
	}
	delete(m.data, string(key))
	return nil
}

func (m *Memory) Has(ctx context.Context, key []byte) (bool, error) {
	if err := check(ctx, key); err != nil {
		return false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return false, ErrDBClosed
	}
	_, ok := m.data[string(key)]
	return ok, nil
}

func (m *Memory) Batch(ctx context.Context, ops []Op) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrDBClosed
	}
	for _, op := range ops {
		if len(op.Key) == 0 {
			return ErrNilKey
		}
	}
	for _, op := range ops {
		switch op.Type {
		case OpPut:
			stored := make([]byte, len(op.Value))
			copy(stored, op.Value)
			m.data[string(op.Key)] = stored
		case OpDelete:
			delete(m.data, string(op.Key))
		}
	}
	return nil
}

// Iterator returns a sorted snapshot of the range taken at call time;
// later writes are not observed.
func (m *Memory) Iterator(ctx context.Context, start, end []byte) (Iterator, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrDBClosed
	}

	keys := make([]string, 0, len(m.data))
	for key := range m.data {
		if start != nil && bytes.Compare([]byte(key), start) < 0 {
			continue
		}
		if end != nil && bytes.Compare([]byte(key), end) >= 0 {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	entries := make([]memEntry, len(keys))
	for i, key := range keys {
		value := make([]byte, len(m.data[key]))
		copy(value, m.data[key])
		entries[i] = memEntry{key: []byte(key), value: value}
	}
	return &memIterator{entries: entries, pos: -1}, nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.data = make(map[string][]byte)
	return nil
}

// Len returns the number of stored keys.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

func check(ctx context.Context, key []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(key) == 0 {
		return ErrNilKey
	}
	return nil
}

type memEntry struct {
	key   []byte
	value []byte
}

type memIterator struct {
	entries []memEntry
	pos     int
}

func (it *memIterator) Next() bool {
	if it.pos+1 >= len(it.entries) {
		return false
	}
	it.pos++
	return true
}

func (it *memIterator) Key() []byte {
	if it.pos < 0 || it.pos >= len(it.entries) {
		return nil
	}
	return it.entries[it.pos].key
}

func (it *memIterator) Value() []byte {
	if it.pos < 0 || it.pos >= len(it.entries) {
		return nil
	}
	return it.entries[it.pos].value
}

func (it *memIterator) Error() error { return nil }
func (it *memIterator) Close() error { return nil }
