// Package store defines the durable storage layer behind the save service: a single
// table mapping a unique key to a text payload.
//
// The package focuses on:
//   - A small interface (IStore) with batch upsert, point lookup, point delete and
//     point existence check
//   - Pluggable backends through the Factory pattern
//   - Unified error reporting via the Error type and its RetCode
//
// Key Components:
//
//   - IStore Interface: All methods take a context.Context so callers can bound
//     the time spent on store I/O. UpsertBatch is idempotent, which makes the
//     at-least-once retries of the flush scheduler safe.
//
//   - Error System: Errors that are caused by misuse of the store (e.g. calls after
//     Close) are reported as *Error with a RetCode. Driver failures are returned
//     wrapped, so errors.Is/As keep working.
//
//   - Factory: A function type that opens an IStore. The save service calls it once
//     at startup; if it fails, the service runs permanently offline.
//
// Implementations:
//
//	- SQL Store (sqlstore): a database/sql implementation on SQLite with a
//	  selectable driver (modernc.org/sqlite or mattn/go-sqlite3).
//	  Available in the "github.com/ValentinKolb/wbKV/lib/store/sqlstore" package.
package store
