/*
Package ledger defines the core document model for the site-ledger engine.

PURPOSE:
  This package contains the data representations for the construction
  business ledger: materials with their batch histories, inventory-affecting
  expenses, vendor payments (including machine-generated allocation rows),
  vendors with running balances, and project locations. The whole state is
  one Document - an in-memory JSON-shaped value that higher layers mutate
  via pure state transitions and persist wholesale.

KEY CONCEPTS IN THIS FILE (types.go):
  - Document: the complete replicated application state
  - Material / StockEntry: a material and its append-style batch event log
  - Expense: the financial record users create/edit/delete directly
  - Payment: a vendor settlement, possibly expanded into allocation children
  - Vendor / Project: counterparties and stock locations

DESIGN PRINCIPLES:
  1. Precision: decimal.Decimal for every quantity, price, and amount
  2. Type Safety: distinct ID types prevent mixing expense/payment/batch ids
  3. Explicit linkage: StockEntry carries SourceExpenseID as a typed field;
     the "sh-exp-" id convention survives only for document compatibility
     and is generated/stripped in exactly one place (see id helpers below)

SEE ALSO:
  - errors.go: error taxonomy (validation, lock violation, persistence)
  - document.go: Document container, deep clone, lookups
  - stock/: accounting and transaction processing over these types
  - payments/: payment allocation and vendor balance maintenance
*/
package ledger

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type MaterialID string
type ExpenseID string
type PaymentID string
type VendorID string
type ProjectID string

// EntryID identifies a stock-history entry. Entries generated from an
// Expense use the id "sh-exp-<expenseID>", establishing a 1:1 link.
type EntryID string

// BatchID identifies an inventory batch: the id of the purchase Expense
// that created the inward entry. Outward entries reference their batch via
// ParentPurchaseID.
type BatchID string

// entryIDPrefix is the serialized-document convention linking a stock entry
// to its source expense. Only the helpers below may apply or strip it.
const entryIDPrefix = "sh-exp-"

// EntryIDForExpense derives the stock-history entry id for an expense.
func EntryIDForExpense(id ExpenseID) EntryID {
	return EntryID(entryIDPrefix + string(id))
}

// BatchID strips the entry-id prefix, yielding the batch identifier.
func (id EntryID) BatchID() BatchID {
	return BatchID(strings.TrimPrefix(string(id), entryIDPrefix))
}

// EntryID is the inverse of EntryID.BatchID.
func (id BatchID) EntryID() EntryID {
	return EntryID(entryIDPrefix + string(id))
}

// ExpenseID returns the source expense id encoded in a batch id.
func (id BatchID) ExpenseID() ExpenseID {
	return ExpenseID(id)
}

// =============================================================================
// ENTRY TYPE - The three inventory actions
// =============================================================================

// EntryType selects the inventory effect of an entry or expense.
// The processor treats these as a closed set: Purchase and Transfer-in are
// inward (positive quantity), Usage and Transfer-out are outward (negative).
type EntryType string

const (
	EntryPurchase EntryType = "Purchase"
	EntryUsage    EntryType = "Usage"
	EntryTransfer EntryType = "Transfer"
)

// Valid reports whether t is one of the three known inventory actions.
func (t EntryType) Valid() bool {
	return t == EntryPurchase || t == EntryUsage || t == EntryTransfer
}

// =============================================================================
// PROJECT - Stock location (consuming site or non-consuming godown)
// =============================================================================

type ProjectKind string

const (
	// ProjectSite is an active construction site. Stock may be consumed here.
	ProjectSite ProjectKind = "site"
	// ProjectGodown is a warehouse. Stock may only leave via Transfer.
	ProjectGodown ProjectKind = "godown"
)

type Project struct {
	ID   ProjectID   `json:"id"`
	Name string      `json:"name"`
	Kind ProjectKind `json:"kind"`
}

// IsGodown reports whether consumption at this location is forbidden.
func (p Project) IsGodown() bool { return p.Kind == ProjectGodown }

// =============================================================================
// MATERIAL & STOCK ENTRY - Batch event log
// =============================================================================

// StockEntry is one batch event in a material's history.
//
// Sign convention: positive quantity is inward (Purchase or Transfer-in),
// negative is outward (Usage or Transfer-out). Outward entries carry
// ParentPurchaseID naming the inward batch they draw down.
//
// INVARIANT: for every inward entry, the outward quantities referencing its
// batch never exceed the inward quantity (no negative batch balance).
type StockEntry struct {
	ID               EntryID          `json:"id"`
	Date             time.Time        `json:"date"`
	Type             EntryType        `json:"type"`
	Quantity         decimal.Decimal  `json:"quantity"`
	ProjectID        ProjectID        `json:"projectId,omitempty"`
	VendorID         VendorID         `json:"vendorId,omitempty"`
	UnitPrice        *decimal.Decimal `json:"unitPrice,omitempty"`
	ParentPurchaseID BatchID          `json:"parentPurchaseId,omitempty"`
	SourceExpenseID  ExpenseID        `json:"sourceExpenseId,omitempty"`
	Note             string           `json:"note,omitempty"`
}

// Inward reports whether the entry adds stock at its location.
func (e StockEntry) Inward() bool { return e.Quantity.IsPositive() }

// Outward reports whether the entry removes stock from its location.
func (e StockEntry) Outward() bool { return e.Quantity.IsNegative() }

// Batch resolves the batch this entry belongs to: the parent batch when one
// is recorded (usage, both transfer halves), otherwise the entry's own batch
// (a purchase is the head of its own batch).
func (e StockEntry) Batch() BatchID {
	if e.ParentPurchaseID != "" {
		return e.ParentPurchaseID
	}
	return e.ID.BatchID()
}

// Material is a tracked construction material. TotalPurchased and TotalUsed
// are cached aggregates recomputed from History on every mutation - they are
// never independently authoritative. Transfers count in neither.
type Material struct {
	ID                MaterialID      `json:"id"`
	Name              string          `json:"name"`
	Unit              string          `json:"unit"`
	CostPerUnit       decimal.Decimal `json:"costPerUnit"`
	TotalPurchased    decimal.Decimal `json:"totalPurchased"`
	TotalUsed         decimal.Decimal `json:"totalUsed"`
	LowStockThreshold decimal.Decimal `json:"lowStockThreshold"`
	History           []StockEntry    `json:"history"`
}

// =============================================================================
// EXPENSE - The financial/transactional record
// =============================================================================

// Expense is the only entity the UI lets users directly create, edit, and
// delete for inventory events. When MaterialID and MaterialQuantity are set,
// exactly one StockEntry with id EntryIDForExpense(ID) exists and is kept in
// lockstep on every edit; deleting the expense deletes that entry too.
type Expense struct {
	ID               ExpenseID        `json:"id"`
	Date             time.Time        `json:"date"`
	ProjectID        ProjectID        `json:"projectId"`
	VendorID         VendorID         `json:"vendorId,omitempty"`
	Amount           decimal.Decimal  `json:"amount"`
	Category         string           `json:"category,omitempty"`
	MaterialID       MaterialID       `json:"materialId,omitempty"`
	MaterialQuantity decimal.Decimal  `json:"materialQuantity,omitempty"`
	UnitPrice        *decimal.Decimal `json:"unitPrice,omitempty"`
	InventoryAction  EntryType        `json:"inventoryAction,omitempty"`
	ParentPurchaseID BatchID          `json:"parentPurchaseId,omitempty"`
	Note             string           `json:"note,omitempty"`
}

// HasInventoryEffect reports whether this expense owns a stock entry.
func (e Expense) HasInventoryEffect() bool {
	return e.MaterialID != "" && e.InventoryAction != ""
}

// IsPurchaseBill reports whether this expense is a vendor purchase bill,
// i.e. a settleable liability.
func (e Expense) IsPurchaseBill() bool {
	return e.InventoryAction == EntryPurchase && e.VendorID != ""
}

// EntryID returns the id of the stock entry owned by this expense.
func (e Expense) EntryID() EntryID { return EntryIDForExpense(e.ID) }

// =============================================================================
// VENDOR - Counterparty with running balance
// =============================================================================

// Vendor carries a signed running balance of the amount owed: purchases tied
// to the vendor increase it, payments decrease it (clamped at zero on the
// payment side). The balance is maintained incrementally; see
// engine.Reconcile for the recompute-and-compare drift check.
type Vendor struct {
	ID      VendorID        `json:"id"`
	Name    string          `json:"name"`
	Balance decimal.Decimal `json:"balance"`
}

// =============================================================================
// PAYMENT - Vendor settlement
// =============================================================================

// Payment settles vendor liability. A user-entered payment without
// MaterialBatchID is auto-allocated across outstanding bills at creation
// time, producing allocation children tagged IsAllocation with
// MasterPaymentID pointing at the parent. Children are bookkeeping detail:
// excluded from top-level listings and never vendor-balance-adjusted again.
type Payment struct {
	ID              PaymentID       `json:"id"`
	Date            time.Time       `json:"date"`
	VendorID        VendorID        `json:"vendorId"`
	ProjectID       ProjectID       `json:"projectId,omitempty"`
	Amount          decimal.Decimal `json:"amount"`
	Method          string          `json:"method,omitempty"`
	Reference       string          `json:"reference,omitempty"`
	MaterialBatchID EntryID         `json:"materialBatchId,omitempty"`
	MasterPaymentID PaymentID       `json:"masterPaymentId,omitempty"`
	IsAllocation    bool            `json:"isAllocation,omitempty"`
}
