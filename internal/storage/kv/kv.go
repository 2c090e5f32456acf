// Package kv provides the key-value storage layer: a small context-aware
// DB interface with pluggable backends (in-memory, PebbleDB, LevelDB)
// selected by name through a factory registry.
package kv

import (
	"context"
)

// DB defines the operations every key-value backend must support.
type DB interface {
	// Get returns the value stored under key, ErrKeyNotFound when absent.
	Get(ctx context.Context, key []byte) ([]byte, error)

	// Put stores value under key, replacing any previous value.
	Put(ctx context.Context, key []byte, value []byte) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key []byte) error

	// Has reports whether key is present.
	Has(ctx context.Context, key []byte) (bool, error)

	// Batch applies ops atomically, in order.
	Batch(ctx context.Context, ops []Op) error

	// Iterator traverses keys in [start, end) in ascending byte order.
	// A nil start begins at the first key, a nil end runs to the last.
	Iterator(ctx context.Context, start, end []byte) (Iterator, error)

	// Close releases the backend's resources.
	Close() error
}

// Iterator allows traversing over key-value entries. Key and Value are
// only valid after Next has returned true and are safe to retain.
type Iterator interface {
	Next() bool
	Key() []byte
	Value() []byte
	Error() error
	Close() error
}

// Op represents a single operation in a batch.
type Op struct {
	Type  OpType
	Key   []byte
	Value []byte
}

// OpType selects the kind of a batch operation.
type OpType int

const (
	OpPut OpType = iota
	OpDelete
)

// PrefixEnd returns the smallest key greater than every key with the
// given prefix, for use as an Iterator end bound. A nil result means the
// prefix covers the end of the keyspace.
func PrefixEnd(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xFF {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}
