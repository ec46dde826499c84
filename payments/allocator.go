/*
allocator.go - Payment allocation engine

PURPOSE:
  When a user records a lump-sum payment against a vendor without pinning
  it to one batch, this engine distributes the amount across the vendor's
  outstanding purchase bills. The policy is deterministic and must be
  reproduced exactly for document compatibility:

  1. Enumerate the vendor's Purchase bills.
  2. remaining = bill.amount - sum(payments whose materialBatchId is the
     bill's entry id).
  3. Discard bills with remaining <= 0.01 (settled; exact epsilon).
  4. Sort ascending by remaining - smallest-outstanding-first pays small
     bills off completely before touching large ones.
  5. Greedily allocate min(amountLeft, remaining) per bill as an
     allocation-child payment tagged "(Auto-Adjusted)".
  6. Any amount left above 0.01 becomes one "(Advance)" child with no
     batch - an unapplied credit.
  7. The parent plus all children persist as one batch; the vendor balance
     moves by the parent amount exactly once.

  Editing a parent discards and regenerates all children; deleting a
  parent removes its children in the same operation.

SEE ALSO:
  - vendor.go: bill remainders, ordering, balance helpers
  - stock/processor.go: the purchase bills being settled
*/
package payments

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sitebook/ledger-engine/ledger"
)

// =============================================================================
// INPUT
// =============================================================================

// PaymentInput carries the user-entered fields of a payment. When
// MaterialBatchID is set the payment settles that batch directly (manual
// allocation); otherwise it is auto-allocated.
type PaymentInput struct {
	ID              ledger.PaymentID // generated when empty
	Date            time.Time
	VendorID        ledger.VendorID
	ProjectID       ledger.ProjectID
	Amount          decimal.Decimal
	Method          string
	Reference       string
	MaterialBatchID ledger.EntryID
}

func orNewPaymentID(id ledger.PaymentID) ledger.PaymentID {
	if id != "" {
		return id
	}
	return ledger.PaymentID(uuid.NewString())
}

// =============================================================================
// RECORD
// =============================================================================

// Record stores a new payment. Manual single-batch payments bypass the
// allocation algorithm but are held to vendor- and bill-level headroom;
// auto-allocated payments may exceed outstanding bills, with the excess
// recorded as an advance.
func Record(doc *ledger.Document, in PaymentInput) (ledger.PaymentID, error) {
	if !in.Amount.IsPositive() {
		return "", ledger.ErrInvalidAmount
	}
	v, ok := doc.VendorByID(in.VendorID)
	if !ok {
		return "", ledger.ErrVendorNotFound
	}

	parent := ledger.Payment{
		ID:              orNewPaymentID(in.ID),
		Date:            in.Date,
		VendorID:        in.VendorID,
		ProjectID:       in.ProjectID,
		Amount:          in.Amount,
		Method:          in.Method,
		Reference:       in.Reference,
		MaterialBatchID: in.MaterialBatchID,
	}

	if in.MaterialBatchID != "" {
		if err := checkManualHeadroom(doc, v, in, decimal.Zero); err != nil {
			return "", err
		}
		doc.Payments = append(doc.Payments, parent)
	} else {
		children := allocate(doc, parent)
		doc.Payments = append(doc.Payments, parent)
		doc.Payments = append(doc.Payments, children...)
	}

	applyPaymentToBalance(v, parent.Amount)
	return parent.ID, nil
}

// checkManualHeadroom enforces the vendor-level and bill-level limits for a
// manually targeted payment. extraHeadroom widens the vendor check during
// an update, where the old amount has already been reverted from the
// balance by the caller.
func checkManualHeadroom(doc *ledger.Document, v *ledger.Vendor, in PaymentInput, extraHeadroom decimal.Decimal) error {
	headroom := v.Balance.Add(extraHeadroom)
	if in.Amount.GreaterThan(headroom.Add(ledger.SettleEpsilon)) {
		return &ledger.HeadroomError{
			Scope:     ledger.HeadroomVendor,
			VendorID:  in.VendorID,
			Available: headroom,
			Requested: in.Amount,
		}
	}

	billID := in.MaterialBatchID.BatchID().ExpenseID()
	bill, ok := doc.ExpenseByID(billID)
	if !ok || bill.InventoryAction != ledger.EntryPurchase {
		return ledger.ErrBatchNotFound
	}
	remaining := BillRemaining(doc, *bill)
	if in.Amount.GreaterThan(remaining.Add(ledger.SettleEpsilon)) {
		return &ledger.HeadroomError{
			Scope:     ledger.HeadroomBill,
			VendorID:  in.VendorID,
			BillID:    billID,
			Available: remaining,
			Requested: in.Amount,
		}
	}
	return nil
}

// allocate runs steps 4-6 of the settlement policy against the current
// payment set and returns the allocation children for a parent.
func allocate(doc *ledger.Document, parent ledger.Payment) []ledger.Payment {
	left := parent.Amount
	var children []ledger.Payment

	for _, bill := range OutstandingBills(doc, parent.VendorID) {
		if ledger.IsSettled(left) {
			break
		}
		portion := decimal.Min(left, bill.Remaining)
		children = append(children, ledger.Payment{
			ID:              ledger.PaymentID(uuid.NewString()),
			Date:            parent.Date,
			VendorID:        parent.VendorID,
			ProjectID:       parent.ProjectID,
			Amount:          portion,
			Method:          parent.Method,
			Reference:       annotate(parent.Reference, "(Auto-Adjusted)"),
			MaterialBatchID: bill.EntryID,
			MasterPaymentID: parent.ID,
			IsAllocation:    true,
		})
		left = left.Sub(portion)
	}

	if left.GreaterThan(ledger.SettleEpsilon) {
		children = append(children, ledger.Payment{
			ID:              ledger.PaymentID(uuid.NewString()),
			Date:            parent.Date,
			VendorID:        parent.VendorID,
			ProjectID:       parent.ProjectID,
			Amount:          left,
			Method:          parent.Method,
			Reference:       annotate(parent.Reference, "(Advance)"),
			MasterPaymentID: parent.ID,
			IsAllocation:    true,
		})
	}
	return children
}

func annotate(reference, tag string) string {
	if reference == "" {
		return tag
	}
	return reference + " " + tag
}

// =============================================================================
// UPDATE
// =============================================================================

// Update re-enters a payment: the old parent's balance effect is reverted,
// all prior children are discarded, and the payment is recorded afresh with
// the new fields. Tolerates the amount shrinking, growing, or a switch
// to/from manual allocation.
func Update(doc *ledger.Document, id ledger.PaymentID, in PaymentInput) error {
	parent, ok := doc.PaymentByID(id)
	if !ok {
		return ledger.ErrPaymentNotFound
	}
	if parent.IsAllocation {
		return ledger.ErrAllocationRow
	}
	if !in.Amount.IsPositive() {
		return ledger.ErrInvalidAmount
	}
	if in.VendorID == "" {
		in.VendorID = parent.VendorID
	}
	v, ok := doc.VendorByID(in.VendorID)
	if !ok {
		return ledger.ErrVendorNotFound
	}

	old := *parent

	// Manual headroom is checked against the balance as it stands with the
	// old payment still applied, so the old amount widens the check.
	if in.MaterialBatchID != "" && in.VendorID == old.VendorID {
		doc.RemoveAllocationChildren(old.ID)
		if err := checkManualHeadroomExcluding(doc, v, in, old); err != nil {
			return err
		}
	} else {
		if in.MaterialBatchID != "" {
			if err := checkManualHeadroom(doc, v, in, decimal.Zero); err != nil {
				return err
			}
		}
		doc.RemoveAllocationChildren(old.ID)
	}

	// Revert the old parent's vendor effect.
	if oldVendor, ok := doc.VendorByID(old.VendorID); ok {
		revertPaymentFromBalance(oldVendor, old.Amount)
	}

	next := ledger.Payment{
		ID:              old.ID,
		Date:            in.Date,
		VendorID:        in.VendorID,
		ProjectID:       in.ProjectID,
		Amount:          in.Amount,
		Method:          in.Method,
		Reference:       in.Reference,
		MaterialBatchID: in.MaterialBatchID,
	}

	// The lookup above may be stale after child removal reslices Payments.
	parent, _ = doc.PaymentByID(id)
	*parent = next

	if in.MaterialBatchID == "" {
		children := allocate(doc, next)
		doc.Payments = append(doc.Payments, children...)
	}

	applyPaymentToBalance(v, next.Amount)
	return nil
}

// checkManualHeadroomExcluding checks manual headroom for an update: the
// old parent's amount is about to be reverted, so it counts as headroom,
// and the old payment itself must not count against the target bill.
func checkManualHeadroomExcluding(doc *ledger.Document, v *ledger.Vendor, in PaymentInput, old ledger.Payment) error {
	headroom := v.Balance.Add(old.Amount)
	if in.Amount.GreaterThan(headroom.Add(ledger.SettleEpsilon)) {
		return &ledger.HeadroomError{
			Scope:     ledger.HeadroomVendor,
			VendorID:  in.VendorID,
			Available: headroom,
			Requested: in.Amount,
		}
	}

	billID := in.MaterialBatchID.BatchID().ExpenseID()
	bill, ok := doc.ExpenseByID(billID)
	if !ok || bill.InventoryAction != ledger.EntryPurchase {
		return ledger.ErrBatchNotFound
	}
	remaining := BillRemaining(doc, *bill)
	if old.MaterialBatchID == in.MaterialBatchID {
		remaining = remaining.Add(old.Amount)
	}
	if in.Amount.GreaterThan(remaining.Add(ledger.SettleEpsilon)) {
		return &ledger.HeadroomError{
			Scope:     ledger.HeadroomBill,
			VendorID:  in.VendorID,
			BillID:    billID,
			Available: remaining,
			Requested: in.Amount,
		}
	}
	return nil
}

// =============================================================================
// DELETE
// =============================================================================

// Delete removes a parent payment and every allocation child in the same
// operation. The vendor balance is restored by the parent amount only -
// children were never separately counted.
func Delete(doc *ledger.Document, id ledger.PaymentID) error {
	parent, ok := doc.PaymentByID(id)
	if !ok {
		return ledger.ErrPaymentNotFound
	}
	if parent.IsAllocation {
		return ledger.ErrAllocationRow
	}

	old := *parent
	doc.RemoveAllocationChildren(old.ID)
	doc.RemovePayment(old.ID)

	if v, ok := doc.VendorByID(old.VendorID); ok {
		revertPaymentFromBalance(v, old.Amount)
	}
	return nil
}
