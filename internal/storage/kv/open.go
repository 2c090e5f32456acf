package kv

import (
	"fmt"
	"sort"
	"sync"
)

// Config selects and tunes a backend.
type Config struct {
	// Backend is the registered backend name: memory, pebble or leveldb.
	Backend string

	// Path is the on-disk location for persistent backends.
	Path string

	// Compression names the value compressor for backends that support
	// one: none or lz4.
	Compression string

	// CacheMB is the block cache budget in megabytes for backends that
	// keep one.
	CacheMB int
}

// DefaultConfig returns the configuration used when nothing is set:
// an lz4-compressed pebble store with a modest cache.
func DefaultConfig(path string) Config {
	return Config{
		Backend:     "pebble",
		Path:        path,
		Compression: "lz4",
		CacheMB:     128,
	}
}

// Factory creates a backend instance from a configuration.
type Factory func(cfg Config) (DB, error)

var (
	backendMu sync.RWMutex
	backends  = make(map[string]Factory)
)

// Register registers a backend factory under a name.
func Register(name string, factory Factory) {
	backendMu.Lock()
	defer backendMu.Unlock()
	backends[name] = factory
}

// Open creates the backend named by cfg.Backend.
func Open(cfg Config) (DB, error) {
	backendMu.RLock()
	factory, ok := backends[cfg.Backend]
	backendMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
	return factory(cfg)
}

// Available returns the registered backend names, sorted.
func Available() []string {
	backendMu.RLock()
	defer backendMu.RUnlock()
	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func init() {
	Register("memory", func(Config) (DB, error) { return NewMemory(), nil })
	Register("pebble", NewPebble)
	Register("leveldb", NewLevelDB)
}
