package store

import (
	"context"
	"fmt"
)

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// Record is one persistent row: a unique key and the serialized payload.
type Record struct {
	Key  string
	Data string
}

// Factory is a function type that opens the durable store used by the save service.
// This is used to abstract the creation of the store from the service implementation.
type Factory func() (IStore, error)

// IStore is the interface of the durable key–text store behind the save service.
// Read operations return the requested data along with an error (nil on success).
// Absence of a key is never an error.
type IStore interface {
	// UpsertBatch inserts or replaces every record in one atomic unit.
	// Repeating the same batch has no additional effect. An empty batch is a no-op.
	UpsertBatch(ctx context.Context, records []Record) (err error)
	// Select returns the stored text for a key. The boolean reports whether the key was found.
	Select(ctx context.Context, key string) (data string, found bool, err error)
	// Delete removes the row of a key and reports whether a row existed.
	Delete(ctx context.Context, key string) (existed bool, err error)
	// Exists reports whether a row for the key exists.
	Exists(ctx context.Context, key string) (found bool, err error)
	// Count returns the number of stored rows.
	Count(ctx context.Context) (n int, err error)
	// Close releases the underlying connection. All later calls fail with RetCClosed.
	Close() (err error)
}

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is a custom error type that wraps a return code (of type RetCode)
// and an error message.
type Error struct {
	Code RetCode // The return code
	Msg  string  // The error message.
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("StoreError (code %s): %s", e.Code, e.Msg)
}

// NewError creates a new store error with the given code and message.
func NewError(code RetCode, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

type RetCode uint64

const (
	RetCInternalError    RetCode = iota // 0: Operation failed due to an internal error.
	RetCClosed                          // 1: The store was already closed.
	RetCInvalidOperation                // 2: Invalid operation (e.g. empty key).
)

func (c RetCode) String() string {
	switch c {
	case RetCInternalError:
		return "InternalError"
	case RetCClosed:
		return "Closed"
	case RetCInvalidOperation:
		return "InvalidOperation"
	default:
		return "Unknown"
	}
}
