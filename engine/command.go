/*
Package engine exposes the pure state-transition surface of the ledger:

    next, err := engine.Apply(doc, cmd)

PURPOSE:
  Every UI action becomes one Command; Apply computes the next document
  deterministically from the previous one. The command set is a closed
  tagged union - one variant per operation, each carrying exactly the
  fields that operation needs - so "usage has no vendor-balance effect" is
  a structural fact, not an incidental code path.

KEY CONCEPTS IN THIS FILE (command.go):
  - Command: sealed interface; variants below are the complete set
  - Creation commands carry optional ids so callers (and tests) can make
    application deterministic; empty ids are generated

SEE ALSO:
  - engine.go: clone-first dispatch
  - reconcile.go: aggregate drift detection
*/
package engine

import (
	"github.com/sitebook/ledger-engine/ledger"
	"github.com/sitebook/ledger-engine/payments"
	"github.com/sitebook/ledger-engine/stock"
)

// Command is the closed set of document operations. Implementations live in
// this file only.
type Command interface {
	isCommand()
}

// =============================================================================
// REGISTRY COMMANDS
// =============================================================================

// CreateProject registers a stock location.
type CreateProject struct {
	ID   ledger.ProjectID // generated when empty
	Name string
	Kind ledger.ProjectKind
}

// CreateVendor registers a vendor with zero balance.
type CreateVendor struct {
	ID   ledger.VendorID // generated when empty
	Name string
}

// CreateMaterial registers a material without stock.
type CreateMaterial struct {
	Spec stock.MaterialSpec
}

// =============================================================================
// EXPENSE COMMANDS
// =============================================================================

// ProcureStock records a purchase (new batch + vendor liability).
type ProcureStock struct {
	Intent stock.ProcureIntent
}

// ConsumeStock records usage of a batch at a site.
type ConsumeStock struct {
	Intent stock.ConsumeIntent
}

// TransferStock moves batch stock between locations.
type TransferStock struct {
	Intent stock.TransferIntent
}

// CreateExpense appends a plain, non-inventory expense.
type CreateExpense struct {
	Expense ledger.Expense
}

// UpdateExpense replaces an expense, reverting old effects first.
type UpdateExpense struct {
	Expense ledger.Expense
}

// DeleteExpense removes an expense and its owned stock entry.
type DeleteExpense struct {
	ID ledger.ExpenseID
}

// =============================================================================
// PAYMENT COMMANDS
// =============================================================================

// RecordPayment stores a payment, auto-allocating unless a batch is pinned.
type RecordPayment struct {
	Input payments.PaymentInput
}

// UpdatePayment re-enters a payment, regenerating its allocation children.
type UpdatePayment struct {
	ID    ledger.PaymentID
	Input payments.PaymentInput
}

// DeletePayment removes a parent payment and its allocation children.
type DeletePayment struct {
	ID ledger.PaymentID
}

func (CreateProject) isCommand() {}

func (CreateVendor) isCommand()   {}
func (CreateMaterial) isCommand() {}
func (ProcureStock) isCommand()   {}
func (ConsumeStock) isCommand()   {}
func (TransferStock) isCommand()  {}
func (CreateExpense) isCommand()  {}
func (UpdateExpense) isCommand()  {}
func (DeleteExpense) isCommand()  {}
func (RecordPayment) isCommand()  {}
func (UpdatePayment) isCommand()  {}
func (DeletePayment) isCommand()  {}
