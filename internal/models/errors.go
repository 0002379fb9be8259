package models

import (
	"errors"
	"fmt"
)

// ErrNotFound indicates the item/variant has no tracked stock record.
var ErrNotFound = errors.New("stock record not found")

// ValidationError rejects a malformed request before touching storage.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation failed: %s", e.Message)
	}
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}

// InsufficientStockError is returned when an adjustment would drive the
// on-hand quantity below the guard floor. No movement is written.
type InsufficientStockError struct {
	ItemID    string
	VariantID string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s/%s: requested=%d, available=%d",
		e.ItemID, e.VariantID, e.Requested, e.Available)
}

// InsufficientAvailableError is returned when a reservation would drive
// available (on-hand minus reserved) negative.
type InsufficientAvailableError struct {
	ItemID    string
	VariantID string
	Requested int
	Available int
}

func (e *InsufficientAvailableError) Error() string {
	return fmt.Sprintf("insufficient available for %s/%s: requested=%d, available=%d",
		e.ItemID, e.VariantID, e.Requested, e.Available)
}

// ReconciliationMismatchError reports a ledger replay that disagrees with the
// live stock record. Resolution requires an explicit correction movement.
type ReconciliationMismatchError struct {
	ItemID         string
	VariantID      string
	LedgerQuantity int
	LiveQuantity   int
}

func (e *ReconciliationMismatchError) Error() string {
	return fmt.Sprintf("reconciliation mismatch for %s/%s: ledger=%d, live=%d",
		e.ItemID, e.VariantID, e.LedgerQuantity, e.LiveQuantity)
}
