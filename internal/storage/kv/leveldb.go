package kv

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/iterator"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// LevelDB is a goleveldb-backed DB, kept as the conservative alternative
// to pebble. Values are stored raw; leveldb applies its own block
// compression.
type LevelDB struct {
	db   *leveldb.DB
	open int64
}

var _ DB = (*LevelDB)(nil)

// NewLevelDB opens (creating if missing) a leveldb store at cfg.Path.
func NewLevelDB(cfg Config) (DB, error) {
	db, err := leveldb.OpenFile(cfg.Path, nil)
	if err != nil {
		return nil, fmt.Errorf("kv: open leveldb at %s: %w", cfg.Path, err)
	}
	l := &LevelDB{db: db}
	atomic.StoreInt64(&l.open, 1)
	return l, nil
}

func (l *LevelDB) isOpen() bool {
	return atomic.LoadInt64(&l.open) != 0
}

func (l *LevelDB) Get(ctx context.Context, key []byte) ([]byte, error) {
	if err := check(ctx, key); err != nil {
		return nil, err
	}
	if !l.isOpen() {
		return nil, ErrDBClosed
	}
	value, err := l.db.Get(key, nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return nil, ErrKeyNotFound
		}
		return nil, fmt.Errorf("kv: leveldb get: %w", err)
	}
	return value, nil
}

func (l *LevelDB) Put(ctx context.Context, key, value []byte) error {
	if err := check(ctx, key); err != nil {
		return err
	}
	if !l.isOpen() {
		return ErrDBClosed
	}
	if err := l.db.Put(key, value, nil); err != nil {
		return fmt.Errorf("kv: leveldb put: %w", err)
	}
	return nil
}

func (l *LevelDB) Delete(ctx context.Context, key []byte) error {
	if err := check(ctx, key); err != nil {
		return err
	}
	if !l.isOpen() {
		return ErrDBClosed
	}
	if err := l.db.Delete(key, nil); err != nil {
		return fmt.Errorf("kv: leveldb delete: %w", err)
	}
	return nil
}

func (l *LevelDB) Has(ctx context.Context, key []byte) (bool, error) {
	if err := check(ctx, key); err != nil {
		return false, err
	}
	if !l.isOpen() {
		return false, ErrDBClosed
	}
	ok, err := l.db.Has(key, nil)
	if err != nil {
		return false, fmt.Errorf("kv: leveldb has: %w", err)
	}
	return ok, nil
}

func (l *LevelDB) Batch(ctx context.Context, ops []Op) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !l.isOpen() {
		return ErrDBClosed
	}

	batch := new(leveldb.Batch)
	for _, op := range ops {
		if len(op.Key) == 0 {
			return ErrNilKey
		}
		switch op.Type {
		case OpPut:
			batch.Put(op.Key, op.Value)
		case OpDelete:
			batch.Delete(op.Key)
		}
	}
	if err := l.db.Write(batch, nil); err != nil {
		return fmt.Errorf("kv: leveldb batch: %w", err)
	}
	return nil
}

func (l *LevelDB) Iterator(ctx context.Context, start, end []byte) (Iterator, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !l.isOpen() {
		return nil, ErrDBClosed
	}
	iter := l.db.NewIterator(&util.Range{Start: start, Limit: end}, nil)
	return &levelIterator{iter: iter}, nil
}

func (l *LevelDB) Close() error {
	if !atomic.CompareAndSwapInt64(&l.open, 1, 0) {
		return nil
	}
	if err := l.db.Close(); err != nil {
		return fmt.Errorf("kv: leveldb close: %w", err)
	}
	return nil
}

type levelIterator struct {
	iter iterator.Iterator
}

func (it *levelIterator) Next() bool {
	return it.iter.Next()
}

// Key copies the current key; goleveldb reuses its buffers.
func (it *levelIterator) Key() []byte {
	key := it.iter.Key()
	out := make([]byte, len(key))
	copy(out, key)
	return out
}

func (it *levelIterator) Value() []byte {
	value := it.iter.Value()
	out := make([]byte, len(value))
	copy(out, value)
	return out
}

func (it *levelIterator) Error() error { return it.iter.Error() }

func (it *levelIterator) Close() error {
	it.iter.Release()
	return it.iter.Error()
}
