package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/chatdata/internal/apperrors"
)

// SQLiteDB is a SQLite database holding any number of record collections
// in one table. Each record is stored as its JSON encoding.
type SQLiteDB struct {
	db *sql.DB
}

// OpenSQLite opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func OpenSQLite(dbPath string) (*SQLiteDB, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("%w: create database directory: %w", apperrors.ErrStorageUnavailable, err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("%w: open database: %w", apperrors.ErrStorageUnavailable, err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: enable WAL: %w", apperrors.ErrStorageUnavailable, err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: set busy timeout: %w", apperrors.ErrStorageUnavailable, err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: initialize schema: %w", apperrors.ErrStorageUnavailable, err)
	}

	return &SQLiteDB{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS records (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		collection TEXT NOT NULL,
		id TEXT NOT NULL,
		body TEXT NOT NULL,
		UNIQUE (collection, id)
	);

	CREATE INDEX IF NOT EXISTS idx_records_collection ON records(collection, seq);
	`
	_, err := db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteDB) Close() error {
	return s.db.Close()
}

// SQLiteCollection is a Collection backed by rows of a SQLiteDB.
type SQLiteCollection[T any, P RecordPtr[T]] struct {
	db   *sql.DB
	name string
	// serializes writers; SQLite allows only one at a time anyway
	mu   sync.Mutex
	opts collectionOptions
}

// NewSQLiteCollection returns the collection called name inside db.
func NewSQLiteCollection[T any, P RecordPtr[T]](db *SQLiteDB, name string, opts ...CollectionOption) *SQLiteCollection[T, P] {
	return &SQLiteCollection[T, P]{db: db.db, name: name, opts: buildOptions(opts)}
}

func decodeRecord[T any](body string) (*T, error) {
	rec := new(T)
	if err := json.Unmarshal([]byte(body), rec); err != nil {
		return nil, fmt.Errorf("%w: decode record: %w", apperrors.ErrStorageUnavailable, err)
	}
	return rec, nil
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", apperrors.ErrStorageUnavailable, op, err)
}

// List returns all records of the collection in insertion order.
func (c *SQLiteCollection[T, P]) List(ctx context.Context) ([]*T, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT body FROM records WHERE collection = ? ORDER BY seq`, c.name)
	if err != nil {
		return nil, unavailable("list "+c.name, err)
	}
	defer rows.Close()

	items := []*T{}
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, unavailable("scan "+c.name, err)
		}
		rec, err := decodeRecord[T](body)
		if err != nil {
			return nil, err
		}
		items = append(items, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list "+c.name, err)
	}
	return items, nil
}

// Get returns the record with the given id.
func (c *SQLiteCollection[T, P]) Get(ctx context.Context, id string) (*T, error) {
	var body string
	err := c.db.QueryRowContext(ctx,
		`SELECT body FROM records WHERE collection = ? AND id = ?`, c.name, id,
	).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("record %s: %w", id, apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, unavailable("get "+c.name, err)
	}
	return decodeRecord[T](body)
}

// Create stamps rec with a new id and timestamps and inserts it.
func (c *SQLiteCollection[T, P]) Create(ctx context.Context, rec *T) (*T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	P(rec).Init(c.opts.newID(), c.opts.now())
	body, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	if _, err := c.db.ExecContext(ctx,
		`INSERT INTO records (collection, id, body) VALUES (?, ?, ?)`,
		c.name, P(rec).RecordID(), string(body),
	); err != nil {
		return nil, unavailable("insert "+c.name, err)
	}
	return rec, nil
}

// Update patches the record inside a transaction.
func (c *SQLiteCollection[T, P]) Update(ctx context.Context, id string, patch func(*T) error) (*T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, unavailable("begin", err)
	}
	defer tx.Rollback()

	var body string
	err = tx.QueryRowContext(ctx,
		`SELECT body FROM records WHERE collection = ? AND id = ?`, c.name, id,
	).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("record %s: %w", id, apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, unavailable("get "+c.name, err)
	}
	rec, err := decodeRecord[T](body)
	if err != nil {
		return nil, err
	}
	if err := patch(rec); err != nil {
		return nil, err
	}
	if P(rec).RecordID() != id {
		return nil, fmt.Errorf("%w: record id is immutable", apperrors.ErrValidation)
	}
	P(rec).Touch(c.opts.now())

	updated, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE records SET body = ? WHERE collection = ? AND id = ?`,
		string(updated), c.name, id,
	); err != nil {
		return nil, unavailable("update "+c.name, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, unavailable("commit", err)
	}
	return rec, nil
}

// Delete removes the record with the given id.
func (c *SQLiteCollection[T, P]) Delete(ctx context.Context, id string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	result, err := c.db.ExecContext(ctx,
		`DELETE FROM records WHERE collection = ? AND id = ?`, c.name, id)
	if err != nil {
		return false, unavailable("delete "+c.name, err)
	}
	n, _ := result.RowsAffected()
	return n > 0, nil
}

// Count returns the number of records in the collection.
func (c *SQLiteCollection[T, P]) Count(ctx context.Context) (int, error) {
	var count int
	err := c.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM records WHERE collection = ?`, c.name).Scan(&count)
	if err != nil {
		return 0, unavailable("count "+c.name, err)
	}
	return count, nil
}
