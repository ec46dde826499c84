/*
reconcile.go - Recompute-from-history drift detection

PURPOSE:
  Material totals and vendor balances are cached fields maintained
  incrementally, which is exactly where a replicated document is most at
  risk of drifting (a stale client, a partial historical import, a bug in
  an old app version). Reconcile recomputes every aggregate from first
  principles and reports where the cached values disagree beyond the
  settlement tolerance. It never mutates; Repair applies the recomputed
  values.

VENDOR RECOMPUTATION:
  expected = sum(Purchase-bill amounts) - sum(non-allocation payments),
  floored at zero. Because live balance application clamps at zero
  payment-by-payment, a vendor that ever hit the clamp can legitimately
  differ from this formula - that is the drift this report exists to make
  visible.
*/
package engine

import (
	"github.com/shopspring/decimal"

	"github.com/sitebook/ledger-engine/ledger"
	"github.com/sitebook/ledger-engine/stock"
)

// MaterialDrift reports a cached aggregate disagreeing with history.
type MaterialDrift struct {
	MaterialID       ledger.MaterialID
	CachedPurchased  decimal.Decimal
	DerivedPurchased decimal.Decimal
	CachedUsed       decimal.Decimal
	DerivedUsed      decimal.Decimal
}

// VendorDrift reports a cached balance disagreeing with the ledger formula.
type VendorDrift struct {
	VendorID ledger.VendorID
	Cached   decimal.Decimal
	Derived  decimal.Decimal
}

// Report is the outcome of a reconciliation pass.
type Report struct {
	Materials []MaterialDrift
	Vendors   []VendorDrift
}

// Clean reports whether no drift was found.
func (r Report) Clean() bool {
	return len(r.Materials) == 0 && len(r.Vendors) == 0
}

// Reconcile recomputes aggregates from history and compares them with the
// cached fields. Read-only.
func Reconcile(doc *ledger.Document) Report {
	var report Report

	for i := range doc.Materials {
		m := &doc.Materials[i]
		purchased, used := stock.Totals(m)
		if !ledger.WithinEpsilon(purchased, m.TotalPurchased) || !ledger.WithinEpsilon(used, m.TotalUsed) {
			report.Materials = append(report.Materials, MaterialDrift{
				MaterialID:       m.ID,
				CachedPurchased:  m.TotalPurchased,
				DerivedPurchased: purchased,
				CachedUsed:       m.TotalUsed,
				DerivedUsed:      used,
			})
		}
	}

	for _, v := range doc.Vendors {
		derived := DeriveVendorBalance(doc, v.ID)
		if !ledger.WithinEpsilon(derived, v.Balance) {
			report.Vendors = append(report.Vendors, VendorDrift{
				VendorID: v.ID,
				Cached:   v.Balance,
				Derived:  derived,
			})
		}
	}
	return report
}

// DeriveVendorBalance computes a vendor balance from first principles.
func DeriveVendorBalance(doc *ledger.Document, vendor ledger.VendorID) decimal.Decimal {
	total := decimal.Zero
	for _, e := range doc.Expenses {
		if e.VendorID == vendor && e.InventoryAction == ledger.EntryPurchase {
			total = total.Add(e.Amount)
		}
	}
	for _, p := range doc.Payments {
		if p.VendorID == vendor && !p.IsAllocation {
			total = total.Sub(p.Amount)
		}
	}
	return ledger.ClampZero(total)
}

// Repair overwrites cached aggregates with their derived values and returns
// the pre-repair report.
func Repair(doc *ledger.Document) Report {
	report := Reconcile(doc)
	for i := range doc.Materials {
		stock.RecomputeAggregates(&doc.Materials[i])
	}
	for i := range doc.Vendors {
		doc.Vendors[i].Balance = DeriveVendorBalance(doc, doc.Vendors[i].ID)
	}
	return report
}
