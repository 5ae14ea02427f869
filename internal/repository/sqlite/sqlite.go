// Package sqlite implements the repository interfaces using SQLite as the
// storage backend.
//
// WHY modernc.org/sqlite INSTEAD OF github.com/mattn/go-sqlite3?
// mattn/go-sqlite3 uses CGo, which means you need a C compiler installed and
// cross-compilation becomes painful. modernc.org/sqlite is a pure Go
// translation of the SQLite C code — no C compiler needed, works everywhere
// Go works.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sakif/places-api/internal/repository"

	// Blank import: the driver registers itself with database/sql under the
	// name "sqlite" at init time.
	_ "modernc.org/sqlite"
)

// querier is the subset of database/sql shared by *sql.DB and *sql.Tx.
// Repository methods run against a querier, so the same code serves both
// pool-scoped reads and transaction-scoped writes.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// DB wraps a sql.DB connection pool and hands out repositories bound to it.
type DB struct {
	conn *sql.DB
}

// compile-time checks that the pool and transaction views satisfy the
// repository contracts.
var (
	_ repository.Store         = (*DB)(nil)
	_ repository.RepositorySet = (*txSet)(nil)
)

// New creates a new SQLite database connection and runs migrations.
//
// dbPath examples:
//   - "data/places.db" → file-based database (persistent)
//   - ":memory:"       → in-memory database (used by tests, lost on close)
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// One connection only. SQLite allows a single writer anyway, and with
	// ":memory:" every additional pool connection would be a separate empty
	// database.
	conn.SetMaxOpenConns(1)

	// Ping forces an immediate connection so a bad path or permissions
	// problem surfaces here, not on the first query.
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL mode allows concurrent reads while a write is in progress, which
	// matters for a web server where multiple requests hit the DB.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	// Foreign keys are OFF by default in SQLite. The places→users and
	// user_places→users references depend on them.
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Users returns a user repository running against the connection pool.
func (db *DB) Users() repository.UserRepository {
	return &UserRepo{q: db.conn}
}

// Places returns a place repository running against the connection pool.
func (db *DB) Places() repository.PlaceRepository {
	return &PlaceRepo{q: db.conn}
}

// InTx runs fn inside a single transaction. The RepositorySet passed to fn
// is bound to that transaction, so place and user writes issued through it
// commit or roll back together. Any error from fn (or from commit) leaves
// the database exactly as it was before InTx was called.
func (db *DB) InTx(ctx context.Context, fn func(tx repository.RepositorySet) error) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning transaction: %w", err)
	}

	if err := fn(&txSet{tx: tx}); err != nil {
		// Rollback errors are secondary; the fn error is the one the caller
		// needs to act on.
		if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
			return fmt.Errorf("sqlite: rolling back after %v: %w", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing transaction: %w", err)
	}
	return nil
}

// txSet is a RepositorySet whose repositories share one open transaction.
type txSet struct {
	tx *sql.Tx
}

func (t *txSet) Users() repository.UserRepository {
	return &UserRepo{q: t.tx}
}

func (t *txSet) Places() repository.PlaceRepository {
	return &PlaceRepo{q: t.tx}
}

// migrate creates the schema. CREATE TABLE IF NOT EXISTS keeps it idempotent,
// safe to run on every startup.
//
// user_places is the stored back-reference set: one row per (owner, place).
// places.creator_id already encodes ownership, but the explicit set is what
// the transactional create/delete path maintains in lockstep with the places
// table, and what User.Places is read from.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			name          TEXT NOT NULL,
			email         TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			image         TEXT NOT NULL DEFAULT '',
			created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS places (
			id          TEXT PRIMARY KEY,
			title       TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			address     TEXT NOT NULL DEFAULT '',
			lat         REAL NOT NULL DEFAULT 0,
			lng         REAL NOT NULL DEFAULT 0,
			image       TEXT NOT NULL DEFAULT '',
			creator_id  TEXT NOT NULL REFERENCES users(id),
			created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_places_creator_id ON places(creator_id);
	`)
	if err != nil {
		return fmt.Errorf("creating places table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS user_places (
			user_id  TEXT NOT NULL REFERENCES users(id),
			place_id TEXT NOT NULL,
			PRIMARY KEY (user_id, place_id)
		);
	`)
	if err != nil {
		return fmt.Errorf("creating user_places table: %w", err)
	}

	return nil
}
