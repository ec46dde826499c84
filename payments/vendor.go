/*
Package payments implements vendor settlement: the payment allocation
engine and the vendor balance ledger.

PURPOSE:
  - vendor.go: incremental vendor balance maintenance (+purchase /
    -payment with a zero clamp on the payment side), outstanding-bill
    enumeration, and headroom checks
  - allocator.go: splitting a lump-sum payment across outstanding purchase
    bills smallest-remaining-first, regenerating allocations on edit, and
    cascading deletes

BALANCE INVARIANT (maintained incrementally, verified by engine.Reconcile):
  balance = sum(Purchase-bill amounts for the vendor)
          - sum(non-allocation payment amounts for the vendor)
  clamped to >= 0 on the payment-reduction side only. A payment cannot
  drive the balance negative; excess is not tracked as vendor credit here
  (auto-allocation records it as an Advance child instead).

SEE ALSO:
  - ledger/types.go: Payment/Vendor definitions
  - allocator.go: the settlement algorithm
  - engine/reconcile.go: recompute-and-compare drift detection
*/
package payments

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/sitebook/ledger-engine/ledger"
)

// =============================================================================
// INCREMENTAL BALANCE MAINTENANCE
// =============================================================================

// applyPaymentToBalance reduces the vendor balance by a payment amount,
// clamped at zero. The purchase side (stock.Procure) deliberately does not
// clamp; the asymmetry is specified and pinned by tests.
func applyPaymentToBalance(v *ledger.Vendor, amount decimal.Decimal) {
	v.Balance = ledger.ClampZero(v.Balance.Sub(amount))
}

// revertPaymentFromBalance restores the vendor balance after a payment is
// removed or re-entered.
func revertPaymentFromBalance(v *ledger.Vendor, amount decimal.Decimal) {
	v.Balance = v.Balance.Add(amount)
}

// =============================================================================
// OUTSTANDING BILLS
// =============================================================================

// Bill is one purchase expense with its unsettled remainder.
type Bill struct {
	Expense   ledger.Expense
	EntryID   ledger.EntryID
	Remaining decimal.Decimal
}

// BillRemaining computes a bill's unsettled remainder: the bill amount
// minus every payment settled against the bill's batch.
func BillRemaining(doc *ledger.Document, bill ledger.Expense) decimal.Decimal {
	remaining := bill.Amount
	for _, p := range doc.PaymentsAgainstBatch(bill.EntryID()) {
		remaining = remaining.Sub(p.Amount)
	}
	return remaining
}

// OutstandingBills enumerates the vendor's purchase bills with a remainder
// above the settlement tolerance, ordered smallest-remaining-first (ties:
// oldest bill first, then id) - the allocation order.
func OutstandingBills(doc *ledger.Document, vendor ledger.VendorID) []Bill {
	var bills []Bill
	for _, e := range doc.Expenses {
		if e.VendorID != vendor || e.InventoryAction != ledger.EntryPurchase {
			continue
		}
		remaining := BillRemaining(doc, e)
		if ledger.IsSettled(remaining) {
			continue
		}
		bills = append(bills, Bill{Expense: e, EntryID: e.EntryID(), Remaining: remaining})
	}
	sort.SliceStable(bills, func(i, j int) bool {
		if c := bills[i].Remaining.Cmp(bills[j].Remaining); c != 0 {
			return c < 0
		}
		if !bills[i].Expense.Date.Equal(bills[j].Expense.Date) {
			return bills[i].Expense.Date.Before(bills[j].Expense.Date)
		}
		return bills[i].Expense.ID < bills[j].Expense.ID
	})
	return bills
}

// VendorOutstanding returns the vendor's total outstanding balance, the
// vendor-level headroom for a new payment.
func VendorOutstanding(doc *ledger.Document, vendor ledger.VendorID) (decimal.Decimal, error) {
	v, ok := doc.VendorByID(vendor)
	if !ok {
		return decimal.Zero, ledger.ErrVendorNotFound
	}
	return v.Balance, nil
}
