package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"  // postgres driver
	_ "modernc.org/sqlite" // pure-Go sqlite driver
)

const openTimeout = 10 * time.Second

// queries carries the per-driver SQL text; the drivers differ only in
// placeholder syntax.
type queries struct {
	insert string
	list   string
	byTx   string
}

var sqliteQueries = queries{
	insert: `INSERT INTO evaluations (id, tx_hash, policy_id, mode, code, detail, mint_delta, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
	list: `SELECT id, tx_hash, policy_id, mode, code, detail, mint_delta, created_at
		FROM evaluations ORDER BY created_at DESC, id LIMIT ? OFFSET ?`,
	byTx: `SELECT id, tx_hash, policy_id, mode, code, detail, mint_delta, created_at
		FROM evaluations WHERE tx_hash = ? ORDER BY created_at, id`,
}

var postgresQueries = queries{
	insert: `INSERT INTO evaluations (id, tx_hash, policy_id, mode, code, detail, mint_delta, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
	list: `SELECT id, tx_hash, policy_id, mode, code, detail, mint_delta, created_at
		FROM evaluations ORDER BY created_at DESC, id LIMIT $1 OFFSET $2`,
	byTx: `SELECT id, tx_hash, policy_id, mode, code, detail, mint_delta, created_at
		FROM evaluations WHERE tx_hash = $1 ORDER BY created_at, id`,
}

// schema is shared between the drivers. Timestamps are unix nanoseconds
// so no driver-specific time handling is involved.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS evaluations (
		id TEXT PRIMARY KEY,
		tx_hash TEXT NOT NULL,
		policy_id TEXT NOT NULL,
		mode TEXT NOT NULL,
		code TEXT NOT NULL,
		detail TEXT NOT NULL,
		mint_delta BIGINT NOT NULL,
		created_at BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_evaluations_tx_hash ON evaluations(tx_hash)`,
	`CREATE INDEX IF NOT EXISTS idx_evaluations_created_at ON evaluations(created_at)`,
}

// sqlStore implements Store over database/sql for both drivers.
type sqlStore struct {
	db *sql.DB
	q  queries
}

var _ Store = (*sqlStore)(nil)

func openSQLite(ctx context.Context, path string) (Store, error) {
	if path == "" {
		path = ":memory:"
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("history: open sqlite %s: %w", path, err)
	}
	// One connection: a single writer, and :memory: databases are
	// per-connection.
	db.SetMaxOpenConns(1)
	return newSQLStore(ctx, db, sqliteQueries)
}

func openPostgres(ctx context.Context, dsn string) (Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("history: open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)
	return newSQLStore(ctx, db, postgresQueries)
}

func newSQLStore(ctx context.Context, db *sql.DB, q queries) (Store, error) {
	ctx, cancel := context.WithTimeout(ctx, openTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: ping: %w", err)
	}
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("history: init schema: %w", err)
		}
	}
	return &sqlStore{db: db, q: q}, nil
}

func (s *sqlStore) SaveEvaluation(ctx context.Context, rec Record) error {
	_, err := s.db.ExecContext(ctx, s.q.insert,
		rec.ID, rec.TxHash, rec.PolicyID, rec.Mode, rec.Code, rec.Detail,
		rec.MintDelta, rec.CreatedAt.UTC().UnixNano())
	if err != nil {
		return fmt.Errorf("history: save evaluation %s: %w", rec.ID, err)
	}
	return nil
}

func (s *sqlStore) ListEvaluations(ctx context.Context, limit, offset int) ([]Record, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := s.db.QueryContext(ctx, s.q.list, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("history: list evaluations: %w", err)
	}
	return scanRecords(rows)
}

func (s *sqlStore) EvaluationsByTx(ctx context.Context, txHash string) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, s.q.byTx, txHash)
	if err != nil {
		return nil, fmt.Errorf("history: evaluations by tx: %w", err)
	}
	return scanRecords(rows)
}

func (s *sqlStore) Close() error {
	return s.db.Close()
}

func scanRecords(rows *sql.Rows) ([]Record, error) {
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		var createdAt int64
		if err := rows.Scan(&rec.ID, &rec.TxHash, &rec.PolicyID, &rec.Mode,
			&rec.Code, &rec.Detail, &rec.MintDelta, &createdAt); err != nil {
			return nil, fmt.Errorf("history: scan record: %w", err)
		}
		rec.CreatedAt = time.Unix(0, createdAt).UTC()
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: iterate records: %w", err)
	}
	return records, nil
}
