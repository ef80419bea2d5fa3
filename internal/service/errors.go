package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/coastie-uk/convention-auction/internal/model"
)

// Failure kinds surfaced by the ledger. Handlers map them to HTTP
// statuses with errors.Is; the structured carriers below unwrap to them.
var (
	ErrNotFound          = errors.New("not found")
	ErrStateConflict     = errors.New("state conflict")
	ErrBalanceViolation  = errors.New("amount exceeds outstanding balance")
	ErrChannelDisabled   = errors.New("payment channel disabled")
	ErrTransientProvider = errors.New("payment provider unavailable, retry later")
	ErrIntegrity         = errors.New("ledger integrity violation")
	ErrInvalidInput      = errors.New("invalid input")
	ErrForbidden         = errors.New("forbidden")
)

// StateConflictError reports an operation refused in the auction's
// current lifecycle state, or a request whose identifiers disagree.
type StateConflictError struct {
	Current model.AuctionStatus
	Allowed []model.AuctionStatus
	Reason  string
}

func (e *StateConflictError) Error() string {
	if e.Reason != "" {
		return "state conflict: " + e.Reason
	}
	allowed := make([]string, len(e.Allowed))
	for i, s := range e.Allowed {
		allowed[i] = string(s)
	}
	return fmt.Sprintf("state conflict: auction is %s, operation allowed in [%s]", e.Current, strings.Join(allowed, ", "))
}

func (e *StateConflictError) Unwrap() error { return ErrStateConflict }

func conflict(format string, args ...any) error {
	return &StateConflictError{Reason: fmt.Sprintf(format, args...)}
}

// BalanceError carries the outstanding amount, in minor units, that the
// rejected request exceeded.
type BalanceError struct {
	OutstandingMinor int64
}

func (e *BalanceError) Error() string {
	return fmt.Sprintf("%s (outstanding %s)", ErrBalanceViolation, model.MinorToMajor(e.OutstandingMinor).StringFixed(2))
}

func (e *BalanceError) Unwrap() error { return ErrBalanceViolation }

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

func notFound(what string) error {
	return fmt.Errorf("%w: %s", ErrNotFound, what)
}
