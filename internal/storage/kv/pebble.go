package kv

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"sync/atomic"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/bloom"

	"github.com/halvalla/stabled/internal/storage/kv/compression"
)

const (
	// Values below this size are stored raw; compression overhead would
	// outweigh the savings.
	minCompressSize = 128

	flagRaw        = 0
	flagCompressed = 1
)

// Pebble is an LSM-tree backend over cockroachdb/pebble with optional
// per-value compression. Values carry a one-byte flag so the store stays
// readable when the configured compressor changes between runs: the flag
// names the codec, not the current configuration.
type Pebble struct {
	db   *pebble.DB
	comp compression.Compressor
	lz4  compression.Compressor
	open int64
}

var _ DB = (*Pebble)(nil)

// NewPebble opens (creating if missing) a pebble store at cfg.Path.
func NewPebble(cfg Config) (DB, error) {
	name := cfg.Compression
	if name == "" {
		name = "none"
	}
	comp, err := compression.Get(name)
	if err != nil {
		return nil, fmt.Errorf("kv: %w", err)
	}
	lz4c, err := compression.Get("lz4")
	if err != nil {
		return nil, fmt.Errorf("kv: %w", err)
	}

	if err := os.MkdirAll(cfg.Path, 0o755); err != nil {
		return nil, fmt.Errorf("kv: create directory %s: %w", cfg.Path, err)
	}

	db, err := pebble.Open(cfg.Path, pebbleOptions(cfg))
	if err != nil {
		return nil, fmt.Errorf("kv: open pebble at %s: %w", cfg.Path, err)
	}

	p := &Pebble{db: db, comp: comp, lz4: lz4c}
	atomic.StoreInt64(&p.open, 1)
	return p, nil
}

// pebbleOptions tunes pebble for the UTXO workload: point lookups by
// fixed-size keys, batch writes, modest value sizes.
func pebbleOptions(cfg Config) *pebble.Options {
	cacheBytes := int64(cfg.CacheMB) << 20
	if cacheBytes <= 0 {
		cacheBytes = 128 << 20
	}

	opts := &pebble.Options{
		Cache:                       pebble.NewCache(cacheBytes),
		MaxOpenFiles:                10000,
		MemTableSize:                64 << 20,
		MemTableStopWritesThreshold: 4,
		MaxConcurrentCompactions:    runtime.NumCPU,
		L0CompactionThreshold:       4,
		L0StopWritesThreshold:       20,
		LBaseMaxBytes:               256 << 20,
		Levels:                      make([]pebble.LevelOptions, 7),
	}

	for i := range opts.Levels {
		opts.Levels[i] = pebble.LevelOptions{
			BlockSize:      32 << 10,
			IndexBlockSize: 256 << 10,
			FilterPolicy:   bloom.FilterPolicy(10),
			FilterType:     pebble.TableFilter,
			TargetFileSize: int64(8<<20) << uint(i),
			// Values are compressed before they reach pebble.
			Compression: pebble.NoCompression,
		}
		if opts.Levels[i].TargetFileSize > 256<<20 {
			opts.Levels[i].TargetFileSize = 256 << 20
		}
	}
	return opts
}

func (p *Pebble) isOpen() bool {
	return atomic.LoadInt64(&p.open) != 0
}

func (p *Pebble) Get(ctx context.Context, key []byte) ([]byte, error) {
	if err := check(ctx, key); err != nil {
		return nil, err
	}
	if !p.isOpen() {
		return nil, ErrDBClosed
	}

	value, closer, err := p.db.Get(key)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, ErrKeyNotFound
		}
		return nil, fmt.Errorf("kv: pebble get: %w", err)
	}
	defer closer.Close()

	return p.decodeValue(value)
}

func (p *Pebble) Put(ctx context.Context, key, value []byte) error {
	if err := check(ctx, key); err != nil {
		return err
	}
	if !p.isOpen() {
		return ErrDBClosed
	}

	encoded, err := p.encodeValue(value)
	if err != nil {
		return err
	}
	if err := p.db.Set(key, encoded, pebble.NoSync); err != nil {
		return fmt.Errorf("kv: pebble set: %w", err)
	}
	return nil
}

func (p *Pebble) Delete(ctx context.Context, key []byte) error {
	if err := check(ctx, key); err != nil {
		return err
	}
	if !p.isOpen() {
		return ErrDBClosed
	}
	if err := p.db.Delete(key, pebble.NoSync); err != nil {
		return fmt.Errorf("kv: pebble delete: %w", err)
	}
	return nil
}

func (p *Pebble) Has(ctx context.Context, key []byte) (bool, error) {
	if err := check(ctx, key); err != nil {
		return false, err
	}
	if !p.isOpen() {
		return false, ErrDBClosed
	}

	_, closer, err := p.db.Get(key)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("kv: pebble get: %w", err)
	}
	closer.Close()
	return true, nil
}

func (p *Pebble) Batch(ctx context.Context, ops []Op) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !p.isOpen() {
		return ErrDBClosed
	}

	batch := p.db.NewBatch()
	defer batch.Close()

	for _, op := range ops {
		if len(op.Key) == 0 {
			return ErrNilKey
		}
		switch op.Type {
		case OpPut:
			encoded, err := p.encodeValue(op.Value)
			if err != nil {
				return err
			}
			if err := batch.Set(op.Key, encoded, nil); err != nil {
				return fmt.Errorf("kv: pebble batch set: %w", err)
			}
		case OpDelete:
			if err := batch.Delete(op.Key, nil); err != nil {
				return fmt.Errorf("kv: pebble batch delete: %w", err)
			}
		}
	}

	if err := batch.Commit(pebble.NoSync); err != nil {
		return fmt.Errorf("kv: pebble batch commit: %w", err)
	}
	return nil
}

func (p *Pebble) Iterator(ctx context.Context, start, end []byte) (Iterator, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !p.isOpen() {
		return nil, ErrDBClosed
	}

	iter, err := p.db.NewIter(&pebble.IterOptions{LowerBound: start, UpperBound: end})
	if err != nil {
		return nil, fmt.Errorf("kv: pebble iterator: %w", err)
	}
	return &pebbleIterator{iter: iter, decode: p.decodeValue}, nil
}

func (p *Pebble) Close() error {
	if !atomic.CompareAndSwapInt64(&p.open, 1, 0) {
		return nil
	}
	if err := p.db.Flush(); err != nil {
		p.db.Close()
		return fmt.Errorf("kv: pebble flush: %w", err)
	}
	if err := p.db.Close(); err != nil {
		return fmt.Errorf("kv: pebble close: %w", err)
	}
	return nil
}

// encodeValue prefixes the value with a compression flag, compressing
// when the configured compressor and size make it worthwhile.
func (p *Pebble) encodeValue(value []byte) ([]byte, error) {
	if p.comp.Name() != "none" && len(value) > minCompressSize {
		compressed, err := p.comp.Compress(value)
		if err != nil {
			return nil, fmt.Errorf("kv: compress value: %w", err)
		}
		if len(compressed) < len(value) {
			return append([]byte{flagCompressed}, compressed...), nil
		}
	}
	return append([]byte{flagRaw}, value...), nil
}

func (p *Pebble) decodeValue(stored []byte) ([]byte, error) {
	if len(stored) == 0 {
		return nil, fmt.Errorf("kv: empty stored value")
	}
	payload := stored[1:]
	switch stored[0] {
	case flagRaw:
		out := make([]byte, len(payload))
		copy(out, payload)
		return out, nil
	case flagCompressed:
		out, err := p.lz4.Decompress(payload)
		if err != nil {
			return nil, fmt.Errorf("kv: decompress value: %w", err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("kv: unknown value flag %d", stored[0])
	}
}

type pebbleIterator struct {
	iter    *pebble.Iterator
	decode  func([]byte) ([]byte, error)
	started bool
	err     error

	key   []byte
	value []byte
}

func (it *pebbleIterator) Next() bool {
	if it.err != nil {
		return false
	}
	var ok bool
	if !it.started {
		it.started = true
		ok = it.iter.First()
	} else {
		ok = it.iter.Next()
	}
	if !ok {
		return false
	}

	it.key = append(it.key[:0], it.iter.Key()...)
	decoded, err := it.decode(it.iter.Value())
	if err != nil {
		it.err = err
		return false
	}
	it.value = decoded
	return true
}

func (it *pebbleIterator) Key() []byte {
	out := make([]byte, len(it.key))
	copy(out, it.key)
	return out
}

func (it *pebbleIterator) Value() []byte {
	return it.value
}

func (it *pebbleIterator) Error() error {
	if it.err != nil {
		return it.err
	}
	return it.iter.Error()
}

func (it *pebbleIterator) Close() error {
	return it.iter.Close()
}
