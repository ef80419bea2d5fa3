// Package repository holds the SQL data access for the auction ledger.
// Methods that must run inside a caller-owned transaction carry a Tx
// suffix and take *sql.Tx; read helpers that are useful both inside and
// outside a transaction accept a DBTX.
//
// The sentinel errors below let the service layer tell failure scenarios
// apart without inspecting driver errors.
package repository

import "errors"

// ErrNotFound is returned when the requested row does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a conditional write matched no row because
// the row is not in the expected state (e.g. re-selling a sold lot).
var ErrConflict = errors.New("conflict")

// ErrDuplicate is returned when an insert violates a uniqueness
// constraint, such as a second payment for the same intent.
var ErrDuplicate = errors.New("duplicate")
