// Package history keeps the audit log of policy evaluations in a
// relational store, selected by driver name.
package history

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Record is one persisted policy evaluation.
type Record struct {
	ID        string
	TxHash    string
	PolicyID  string
	Mode      string
	Code      string
	Detail    string
	MintDelta int64
	CreatedAt time.Time
}

// Store persists and queries evaluation records.
type Store interface {
	SaveEvaluation(ctx context.Context, rec Record) error
	ListEvaluations(ctx context.Context, limit, offset int) ([]Record, error)
	EvaluationsByTx(ctx context.Context, txHash string) ([]Record, error)
	Close() error
}

// Config selects the history backend.
type Config struct {
	// Driver is none, sqlite or postgres.
	Driver string

	// Path is the sqlite database file; ":memory:" keeps it in process.
	Path string

	// DSN is the postgres connection string.
	DSN string
}

// ErrUnknownDriver is returned when opening an unrecognized driver name.
var ErrUnknownDriver = errors.New("history: unknown driver")

// DefaultListLimit bounds ListEvaluations when no limit is given.
const DefaultListLimit = 100

// Open builds the store named by cfg.Driver. The none driver discards
// everything and lists nothing.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Driver {
	case "", "none":
		return NoneStore{}, nil
	case "sqlite":
		return openSQLite(ctx, cfg.Path)
	case "postgres":
		return openPostgres(ctx, cfg.DSN)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
}

// NoneStore discards records and lists nothing.
type NoneStore struct{}

var _ Store = NoneStore{}

func (NoneStore) SaveEvaluation(context.Context, Record) error { return nil }

func (NoneStore) ListEvaluations(context.Context, int, int) ([]Record, error) {
	return nil, nil
}

func (NoneStore) EvaluationsByTx(context.Context, string) ([]Record, error) {
	return nil, nil
}

func (NoneStore) Close() error { return nil }
