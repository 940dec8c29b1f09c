// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrDuplicateClient    = errors.New("client already exists")
	ErrDuplicateUsername  = errors.New("username already taken")
	ErrUnknownClient      = errors.New("unknown client")
	ErrUnknownInstrument  = errors.New("unknown instrument")
	ErrInvalidOrder       = errors.New("invalid order")
	ErrPriceMismatch      = errors.New("order price does not match live quote")
	ErrNoHedgeProvider    = errors.New("no liquidity provider carries the instrument")
	ErrStorageUnavailable = errors.New("ledger storage unavailable")
	ErrConfigInvalid      = errors.New("invalid configuration")
)

// LedgerError represents a failure at the ledger boundary.
type LedgerError struct {
	Op  string
	Err error
}

func (e *LedgerError) Error() string {
	return fmt.Sprintf("ledger %s: %v", e.Op, e.Err)
}

func (e *LedgerError) Unwrap() error {
	return e.Err
}

// NewLedgerError creates a new LedgerError.
func NewLedgerError(op string, err error) *LedgerError {
	return &LedgerError{Op: op, Err: err}
}

// OrderError represents an error related to order processing.
type OrderError struct {
	ClientID     string
	InstrumentID string
	Message      string
	Err          error
}

func (e *OrderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("order %s/%s: %s: %v", e.ClientID, e.InstrumentID, e.Message, e.Err)
	}
	return fmt.Sprintf("order %s/%s: %s", e.ClientID, e.InstrumentID, e.Message)
}

func (e *OrderError) Unwrap() error {
	return e.Err
}

// Is reports whether target matches via the standard errors.Is chain.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain matching target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
