/*
errors.go - Centralized error types for the ledger engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Higher layers wrap these errors with additional context.

ERROR CATEGORIES (each distinguishable by the UI):
  1. Validation errors - malformed or semantically invalid input caught
     BEFORE any mutation (insufficient batch stock, godown consumption,
     identical transfer endpoints, headroom breaches)
  2. Lock violations - deletion/edit refused because a dependent record
     exists (a payment settles the batch being removed or retargeted)
  3. Persistence errors - the external store could not be reached; the
     in-memory document already changed, so these surface as a sticky
     out-of-sync condition, never as a rollback

USAGE:
  if ledger.IsValidation(err) { ... 400 ... }
  if ledger.IsLockViolation(err) { ... 409 with explanation ... }

SEE ALSO:
  - stock/processor.go, payments/allocator.go: producers of these errors
  - syncer/: sticky persistence error handling
  - api/handlers.go: error-to-status mapping
*/
package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInsufficientStock is returned when a usage or transfer-out would
	// draw a batch below zero at the source location.
	ErrInsufficientStock = errors.New("insufficient stock in batch")

	// ErrSameLocation is returned when a transfer names identical source and
	// destination locations.
	ErrSameLocation = errors.New("transfer source and destination are the same")

	// ErrGodownConsumption is returned when usage targets a godown. Godown
	// stock may only leave via Transfer.
	ErrGodownConsumption = errors.New("cannot record usage at a godown location")

	// ErrVendorHeadroom is returned when a manual payment exceeds the
	// vendor's total outstanding balance.
	ErrVendorHeadroom = errors.New("payment exceeds vendor outstanding balance")

	// ErrBillHeadroom is returned when a manual payment exceeds the targeted
	// bill's remaining amount.
	ErrBillHeadroom = errors.New("payment exceeds bill remaining amount")

	// ErrInvalidQuantity is returned for zero or wrongly-signed quantities.
	ErrInvalidQuantity = errors.New("invalid quantity")

	// ErrInvalidAmount is returned for negative or non-positive amounts
	// where a positive amount is required.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrAllocationRow is returned when a caller tries to edit or delete a
	// machine-generated allocation child directly.
	ErrAllocationRow = errors.New("allocation rows cannot be modified directly")

	// ErrRecordLocked is returned when a bill cannot be deleted or
	// retargeted because a payment has been settled against it.
	ErrRecordLocked = errors.New("record is locked by dependent payments")

	// ErrMaterialNotFound / friends indicate dangling references.
	ErrMaterialNotFound = errors.New("material not found")
	ErrExpenseNotFound  = errors.New("expense not found")
	ErrPaymentNotFound  = errors.New("payment not found")
	ErrVendorNotFound   = errors.New("vendor not found")
	ErrProjectNotFound  = errors.New("project not found")
	ErrBatchNotFound    = errors.New("batch not found")

	// ErrDocumentNotFound is returned by stores for an unknown sync id.
	ErrDocumentNotFound = errors.New("document not found")

	// ErrRevisionConflict is returned by stores when the expected revision
	// does not match: another client wrote the document first.
	ErrRevisionConflict = errors.New("document revision conflict")

	// ErrOutOfSync marks the sticky persistence-failure condition. The
	// in-memory document stays authoritative; the next successful flush
	// clears the flag.
	ErrOutOfSync = errors.New("local changes not yet persisted")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationFailure is a generic validation error with a machine-readable
// code, for cases not covered by a dedicated type.
type ValidationFailure struct {
	Code    string
	Message string
}

func (e *ValidationFailure) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// InsufficientStockError details a batch availability shortage.
type InsufficientStockError struct {
	MaterialID MaterialID
	BatchID    BatchID
	ProjectID  ProjectID
	Available  decimal.Decimal
	Requested  decimal.Decimal
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock in batch %s at %s: available %s, requested %s",
		e.BatchID, e.ProjectID, e.Available, e.Requested)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

// LockViolationError details why a bill is locked.
type LockViolationError struct {
	ExpenseID  ExpenseID
	EntryID    EntryID
	PaymentIDs []PaymentID
}

func (e *LockViolationError) Error() string {
	return fmt.Sprintf("bill %s is locked: %d payment(s) settled against batch %s",
		e.ExpenseID, len(e.PaymentIDs), e.EntryID)
}

func (e *LockViolationError) Unwrap() error { return ErrRecordLocked }

// HeadroomScope distinguishes the two headroom checks.
type HeadroomScope string

const (
	HeadroomVendor HeadroomScope = "vendor"
	HeadroomBill   HeadroomScope = "bill"
)

// HeadroomError details a payment exceeding vendor- or bill-level headroom.
type HeadroomError struct {
	Scope     HeadroomScope
	VendorID  VendorID
	BillID    ExpenseID // set for bill-scope only
	Available decimal.Decimal
	Requested decimal.Decimal
}

func (e *HeadroomError) Error() string {
	if e.Scope == HeadroomBill {
		return fmt.Sprintf("payment %s exceeds remaining %s on bill %s",
			e.Requested, e.Available, e.BillID)
	}
	return fmt.Sprintf("payment %s exceeds vendor %s outstanding %s",
		e.Requested, e.VendorID, e.Available)
}

func (e *HeadroomError) Unwrap() error {
	if e.Scope == HeadroomBill {
		return ErrBillHeadroom
	}
	return ErrVendorHeadroom
}

// SyncError wraps a persistence failure with the sync id it affects.
type SyncError struct {
	SyncID string
	Err    error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("sync %s: %v", e.SyncID, e.Err)
}

func (e *SyncError) Unwrap() error { return ErrOutOfSync }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsValidation returns true if the error is due to invalid input, caught
// before any state mutation.
func IsValidation(err error) bool {
	var vf *ValidationFailure
	if errors.As(err, &vf) {
		return true
	}
	return errors.Is(err, ErrInsufficientStock) ||
		errors.Is(err, ErrSameLocation) ||
		errors.Is(err, ErrGodownConsumption) ||
		errors.Is(err, ErrVendorHeadroom) ||
		errors.Is(err, ErrBillHeadroom) ||
		errors.Is(err, ErrInvalidQuantity) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrAllocationRow)
}

// IsLockViolation returns true if the error is a dependent-record lock.
// Distinguishable from validation so the UI can explain the specific reason.
func IsLockViolation(err error) bool {
	return errors.Is(err, ErrRecordLocked)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrMaterialNotFound) ||
		errors.Is(err, ErrExpenseNotFound) ||
		errors.Is(err, ErrPaymentNotFound) ||
		errors.Is(err, ErrVendorNotFound) ||
		errors.Is(err, ErrProjectNotFound) ||
		errors.Is(err, ErrBatchNotFound) ||
		errors.Is(err, ErrDocumentNotFound)
}
