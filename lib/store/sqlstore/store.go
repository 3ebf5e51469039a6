package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"github.com/ValentinKolb/wbKV/lib/store"
	"github.com/lni/dragonboat/v4/logger"
	"strings"
	"sync/atomic"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

var Logger = logger.GetLogger("store")

// Supported database/sql driver names
const (
	DriverModernc = "sqlite"  // modernc.org/sqlite (pure go)
	DriverMattn   = "sqlite3" // github.com/mattn/go-sqlite3 (cgo)
)

// TableName is the name of the single table used by the store
const TableName = "saved_objects"

const schemaSQL = `CREATE TABLE IF NOT EXISTS saved_objects (
	key  TEXT PRIMARY KEY,
	data TEXT NOT NULL
)`

const (
	upsertSQL = `INSERT INTO saved_objects (key, data) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET data = excluded.data`
	selectSQL = "SELECT data FROM saved_objects WHERE key = ?"
	existsSQL = "SELECT 1 FROM saved_objects WHERE key = ?"
	deleteSQL = "DELETE FROM saved_objects WHERE key = ?"
	countSQL  = "SELECT COUNT(*) FROM saved_objects"
)

var pragmas = []string{
	"PRAGMA journal_mode = WAL",
	"PRAGMA synchronous = NORMAL",
	"PRAGMA busy_timeout = 5000",
	"PRAGMA cache_size = 10000",
	"PRAGMA mmap_size = 268435456",
}

// Options configures the sql store
type Options struct {
	Path   string // Database file (":memory:" for an in-memory database)
	Driver string // database/sql driver name ("" = DriverModernc)
}

// Store is the SQLite backed implementation of store.IStore
type Store struct {
	db     *sql.DB
	path   string
	driver string
	closed atomic.Bool
}

// Column describes one column of the store table
type Column struct {
	Name       string `json:"name" yaml:"name"`
	Type       string `json:"type" yaml:"type"`
	PrimaryKey bool   `json:"primary_key" yaml:"primary_key"`
}

// --------------------------------------------------------------------------
// Initialization and Setup
// --------------------------------------------------------------------------

// Open creates or opens a SQLite database at the configured path and applies
// pragmas and schema. This function is idempotent.
func Open(opts Options) (*Store, error) {
	driver := opts.Driver
	if driver == "" {
		driver = DriverModernc
	}
	if driver != DriverModernc && driver != DriverMattn {
		return nil, fmt.Errorf("unsupported sqlite driver %q (expected %s or %s)", driver, DriverModernc, DriverMattn)
	}
	if strings.TrimSpace(opts.Path) == "" {
		return nil, fmt.Errorf("store path must not be empty")
	}

	db, err := sql.Open(driver, opts.Path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", opts.Path, err)
	}

	// Verify connection works
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to sqlite %q: %w", opts.Path, err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("execute %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	Logger.Infof("opened %s store at %s", driver, opts.Path)

	return &Store{db: db, path: opts.Path, driver: driver}, nil
}

// NewFactory returns a store.Factory that opens a sql store with the given options
func NewFactory(opts Options) store.Factory {
	return func() (store.IStore, error) {
		return Open(opts)
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

func (s *Store) UpsertBatch(ctx context.Context, records []store.Record) (err error) {
	if err := s.check(""); err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin batch: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, upsertSQL)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		if _, err = stmt.ExecContext(ctx, r.Key, r.Data); err != nil {
			return fmt.Errorf("upsert %q: %w", r.Key, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit batch of %d: %w", len(records), err)
	}
	return nil
}

func (s *Store) Select(ctx context.Context, key string) (string, bool, error) {
	if err := s.check(key); err != nil {
		return "", false, err
	}

	var data string
	err := s.db.QueryRowContext(ctx, selectSQL, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("select %q: %w", key, err)
	}
	return data, true, nil
}

func (s *Store) Delete(ctx context.Context, key string) (bool, error) {
	if err := s.check(key); err != nil {
		return false, err
	}

	res, err := s.db.ExecContext(ctx, deleteSQL, key)
	if err != nil {
		return false, fmt.Errorf("delete %q: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete %q: %w", key, err)
	}
	return n > 0, nil
}

func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	if err := s.check(key); err != nil {
		return false, err
	}

	var one int
	err := s.db.QueryRowContext(ctx, existsSQL, key).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("exists %q: %w", key, err)
	}
	return true, nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	if err := s.check(""); err != nil {
		return 0, err
	}

	var n int
	if err := s.db.QueryRowContext(ctx, countSQL).Scan(&n); err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return n, nil
}

func (s *Store) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	Logger.Infof("closing store at %s", s.path)
	return s.db.Close()
}

// --------------------------------------------------------------------------
// Inspection (used by diagnostics)
// --------------------------------------------------------------------------

// Path returns the location of the database
func (s *Store) Path() string {
	return s.path
}

// Driver returns the database/sql driver name in use
func (s *Store) Driver() string {
	return s.driver
}

// Columns returns the structure of the store table
func (s *Store) Columns(ctx context.Context) ([]Column, error) {
	if err := s.check(""); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, "SELECT name, type, pk FROM pragma_table_info(?)", TableName)
	if err != nil {
		return nil, fmt.Errorf("table info: %w", err)
	}
	defer rows.Close()

	var cols []Column
	for rows.Next() {
		var (
			c  Column
			pk int
		)
		if err := rows.Scan(&c.Name, &c.Type, &pk); err != nil {
			return nil, fmt.Errorf("table info: %w", err)
		}
		c.PrimaryKey = pk > 0
		cols = append(cols, c)
	}
	return cols, rows.Err()
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// check rejects calls on a closed store and (if key is given) empty keys.
// Pass "" for operations without a key.
func (s *Store) check(key string) error {
	if s.closed.Load() {
		return store.NewError(store.RetCClosed, "store is closed")
	}
	if key == "" {
		return nil
	}
	if strings.TrimSpace(key) == "" {
		return store.NewError(store.RetCInvalidOperation, "key must not be blank")
	}
	return nil
}
