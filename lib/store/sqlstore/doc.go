// Package sqlstore implements store.IStore on SQLite through database/sql.
//
// Schema:
//
//	CREATE TABLE IF NOT EXISTS saved_objects (
//	    key  TEXT PRIMARY KEY,
//	    data TEXT NOT NULL
//	);
//
// The schema is created on Open if it does not exist, so Open is idempotent and safe
// to call on an existing database file.
//
// Drivers:
//   - "sqlite" (default): modernc.org/sqlite, a pure Go port, works without cgo
//   - "sqlite3": github.com/mattn/go-sqlite3, requires cgo
//
// Connection Setup:
//   - One open connection (SQLite has a single writer, this avoids SQLITE_BUSY)
//   - WAL journal, NORMAL synchronous mode, 5 second busy timeout
//   - larger page cache and memory mapped I/O
//
// Batch writes run inside one transaction with a prepared statement, so a failing
// batch leaves no partial state behind.
package sqlstore
