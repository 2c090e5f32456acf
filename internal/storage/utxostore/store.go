// Package utxostore persists the live UTXO set in a key-value backend
// with a read-through LRU cache in front of it.
package utxostore

import (
	"context"
	"errors"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/halvalla/stabled/internal/core/datum"
	"github.com/halvalla/stabled/internal/core/engine"
	"github.com/halvalla/stabled/internal/core/ledger"
	"github.com/halvalla/stabled/internal/storage/kv"
)

// keyPrefix namespaces UTXO entries within the shared key-value store.
const keyPrefix = "u/"

// DefaultCacheSize is the cache entry count used when none is configured.
const DefaultCacheSize = 4096

// ErrNilDB is returned when constructing a store without a backend.
var ErrNilDB = errors.New("utxostore: nil database")

// Store is the engine.Store implementation: outputs are stored as
// canonical CBOR under their 36-byte reference key. The store owns the
// backend and closes it.
type Store struct {
	db    kv.DB
	cache *lru.Cache[ledger.OutputRef, ledger.Output]

	mu     sync.Mutex
	hits   uint64
	misses uint64
}

var _ engine.Store = (*Store)(nil)

// New builds a store over db. cacheSize <= 0 selects DefaultCacheSize.
func New(db kv.DB, cacheSize int) (*Store, error) {
	if db == nil {
		return nil, ErrNilDB
	}
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, err := lru.New[ledger.OutputRef, ledger.Output](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("utxostore: build cache: %w", err)
	}
	return &Store{db: db, cache: cache}, nil
}

func storageKey(ref ledger.OutputRef) []byte {
	return append([]byte(keyPrefix), ref.Key()...)
}

// Get resolves an output reference, consulting the cache first.
func (s *Store) Get(ref ledger.OutputRef) (ledger.Output, bool, error) {
	if out, ok := s.cache.Get(ref); ok {
		s.count(true)
		return out.Clone(), true, nil
	}

	raw, err := s.db.Get(context.Background(), storageKey(ref))
	if err != nil {
		if errors.Is(err, kv.ErrKeyNotFound) {
			s.count(false)
			return ledger.Output{}, false, nil
		}
		return ledger.Output{}, false, fmt.Errorf("utxostore: get %s: %w", ref, err)
	}
	s.count(false)

	var out ledger.Output
	if err := datum.Unmarshal(raw, &out); err != nil {
		return ledger.Output{}, false, fmt.Errorf("utxostore: decode %s: %w", ref, err)
	}
	s.cache.Add(ref, out.Clone())
	return out, true, nil
}

// Contains reports whether the reference is live.
func (s *Store) Contains(ref ledger.OutputRef) (bool, error) {
	if s.cache.Contains(ref) {
		return true, nil
	}
	ok, err := s.db.Has(context.Background(), storageKey(ref))
	if err != nil {
		return false, fmt.Errorf("utxostore: contains %s: %w", ref, err)
	}
	return ok, nil
}

// ApplyTx removes the consumed references and inserts the produced
// outputs under txHash, as one atomic batch. The cache is only touched
// after the batch commits.
func (s *Store) ApplyTx(txHash [32]byte, consumed []ledger.OutputRef, produced []ledger.Output) error {
	ops := make([]kv.Op, 0, len(consumed)+len(produced))
	for _, ref := range consumed {
		ops = append(ops, kv.Op{Type: kv.OpDelete, Key: storageKey(ref)})
	}

	refs := make([]ledger.OutputRef, len(produced))
	for i, out := range produced {
		refs[i] = ledger.OutputRef{TxHash: txHash, Index: uint32(i)}
		raw, err := datum.Marshal(out)
		if err != nil {
			return fmt.Errorf("utxostore: encode output %d: %w", i, err)
		}
		ops = append(ops, kv.Op{Type: kv.OpPut, Key: storageKey(refs[i]), Value: raw})
	}

	if err := s.db.Batch(context.Background(), ops); err != nil {
		return fmt.Errorf("utxostore: apply tx %x: %w", txHash[:8], err)
	}

	for _, ref := range consumed {
		s.cache.Remove(ref)
	}
	for i, out := range produced {
		s.cache.Add(refs[i], out.Clone())
	}
	return nil
}

// Seed inserts pre-existing outputs, for genesis state and tests.
func (s *Store) Seed(utxos []ledger.Input) error {
	ops := make([]kv.Op, 0, len(utxos))
	for _, u := range utxos {
		raw, err := datum.Marshal(u.Output)
		if err != nil {
			return fmt.Errorf("utxostore: encode %s: %w", u.Ref, err)
		}
		ops = append(ops, kv.Op{Type: kv.OpPut, Key: storageKey(u.Ref), Value: raw})
	}
	if err := s.db.Batch(context.Background(), ops); err != nil {
		return fmt.Errorf("utxostore: seed: %w", err)
	}
	for _, u := range utxos {
		s.cache.Add(u.Ref, u.Output.Clone())
	}
	return nil
}

// ForEach walks every live output. The order is the key order of the
// backend. The callback's error stops the walk and is returned.
func (s *Store) ForEach(fn func(ledger.Input) error) error {
	iter, err := s.db.Iterator(context.Background(), []byte(keyPrefix), kv.PrefixEnd([]byte(keyPrefix)))
	if err != nil {
		return fmt.Errorf("utxostore: iterate: %w", err)
	}
	defer iter.Close()

	for iter.Next() {
		key := iter.Key()
		ref, err := ledger.OutputRefFromKey(key[len(keyPrefix):])
		if err != nil {
			return fmt.Errorf("utxostore: bad key %x: %w", key, err)
		}
		var out ledger.Output
		if err := datum.Unmarshal(iter.Value(), &out); err != nil {
			return fmt.Errorf("utxostore: decode %s: %w", ref, err)
		}
		if err := fn(ledger.Input{Ref: ref, Output: out}); err != nil {
			return err
		}
	}
	return iter.Error()
}

// Len counts the live outputs with a full scan.
func (s *Store) Len() (int, error) {
	n := 0
	err := s.ForEach(func(ledger.Input) error {
		n++
		return nil
	})
	return n, err
}

// Stats reports cache effectiveness.
func (s *Store) Stats() CacheStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := s.hits + s.misses
	rate := float64(0)
	if total > 0 {
		rate = float64(s.hits) / float64(total)
	}
	return CacheStats{Hits: s.hits, Misses: s.misses, HitRate: rate, Entries: s.cache.Len()}
}

// Close closes the underlying backend.
func (s *Store) Close() error {
	s.cache.Purge()
	return s.db.Close()
}

func (s *Store) count(hit bool) {
	s.mu.Lock()
	if hit {
		s.hits++
	} else {
		s.misses++
	}
	s.mu.Unlock()
}

// CacheStats holds cache performance metrics.
type CacheStats struct {
	Hits    uint64
	Misses  uint64
	HitRate float64
	Entries int
}
