/*
Package stock implements stock accounting and inventory transaction
processing over the ledger document.

PURPOSE:
  Two responsibilities live here:
  - accounting.go: derive aggregates and availability from a material's
    batch history (quantity on hand, per-batch availability, per-location
    balance and valuation)
  - processor.go: turn user intents (procure, consume, transfer) into
    consistent {Expense, StockEntry, aggregate, vendor-balance} mutations,
    and reverse them symmetrically on edit/delete

KEY RULES (accounting.go):
  - totalPurchased counts Purchase entries with positive quantity;
    totalUsed counts Usage entries with negative quantity (absolute value).
    Transfers count in NEITHER: a transfer moves stock between locations
    without changing total owned quantity. On-hand = purchased - used.
  - Per-batch availability comes in two views:
      Available:   the batch head quantity minus all outward draws
      AvailableAt: a location's stake in the batch (signed sum of that
                   location's entries resolving to the batch)
    Consumption and transfer-out validate against AvailableAt at the
    source, which is what makes transferred stock consumable at the
    destination and gone from the source.
  - Effective unit price = entry.UnitPrice, falling back to the material's
    CostPerUnit. The fallback applies everywhere value is computed.

SEE ALSO:
  - ledger/types.go: StockEntry sign conventions and batch resolution
  - processor.go: the mutations these calculations validate
*/
package stock

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sitebook/ledger-engine/ledger"
)

// =============================================================================
// AGGREGATES - totalPurchased / totalUsed
// =============================================================================

// Totals derives the cached material aggregates from history.
func Totals(m *ledger.Material) (purchased, used decimal.Decimal) {
	purchased, used = decimal.Zero, decimal.Zero
	for _, e := range m.History {
		switch {
		case e.Type == ledger.EntryPurchase && e.Quantity.IsPositive():
			purchased = purchased.Add(e.Quantity)
		case e.Type == ledger.EntryUsage && e.Quantity.IsNegative():
			used = used.Add(e.Quantity.Abs())
		}
	}
	return purchased, used
}

// RecomputeAggregates refreshes the cached aggregate fields from history.
// Called after every history mutation.
func RecomputeAggregates(m *ledger.Material) {
	m.TotalPurchased, m.TotalUsed = Totals(m)
}

// OnHand returns the total pool quantity regardless of location.
func OnHand(m *ledger.Material) decimal.Decimal {
	return m.TotalPurchased.Sub(m.TotalUsed)
}

// =============================================================================
// PER-BATCH AVAILABILITY
// =============================================================================

// InwardEntry returns the purchase entry heading a batch.
func InwardEntry(m *ledger.Material, batch ledger.BatchID) (*ledger.StockEntry, bool) {
	e, ok := m.EntryByID(batch.EntryID())
	if !ok || !e.Inward() {
		return nil, false
	}
	return e, true
}

// Available computes the batch-wide remaining quantity: the inward entry's
// quantity minus the absolute sum of all outward draws referencing the
// batch. INVARIANT: never negative after an accepted operation.
func Available(m *ledger.Material, batch ledger.BatchID) (decimal.Decimal, bool) {
	head, ok := InwardEntry(m, batch)
	if !ok {
		return decimal.Zero, false
	}
	drawn := decimal.Zero
	for _, e := range m.History {
		if e.ParentPurchaseID == batch && e.Outward() {
			drawn = drawn.Add(e.Quantity.Abs())
		}
	}
	return head.Quantity.Sub(drawn), true
}

// AvailableAt computes a location's stake in a batch: the signed sum of the
// location's entries that resolve to the batch. A purchase contributes at
// its own location; a transfer moves stake from source to destination while
// the batch identity is preserved.
func AvailableAt(m *ledger.Material, batch ledger.BatchID, project ledger.ProjectID) decimal.Decimal {
	total := decimal.Zero
	for _, e := range m.History {
		if e.ProjectID == project && e.Batch() == batch {
			total = total.Add(e.Quantity)
		}
	}
	return total
}

// =============================================================================
// PER-LOCATION BALANCE & VALUATION
// =============================================================================

// EffectiveUnitPrice returns the entry's unit price, falling back to the
// material's reference cost when absent.
func EffectiveUnitPrice(m *ledger.Material, e ledger.StockEntry) decimal.Decimal {
	if e.UnitPrice != nil {
		return *e.UnitPrice
	}
	return m.CostPerUnit
}

// LocationBalance returns the signed quantity on hand at one location.
func LocationBalance(m *ledger.Material, project ledger.ProjectID) decimal.Decimal {
	total := decimal.Zero
	for _, e := range m.History {
		if e.ProjectID == project {
			total = total.Add(e.Quantity)
		}
	}
	return total
}

// LocationValue returns the stock value at one location: quantity times
// effective unit price, summed over the location's entries.
func LocationValue(m *ledger.Material, project ledger.ProjectID) decimal.Decimal {
	total := decimal.Zero
	for _, e := range m.History {
		if e.ProjectID == project {
			total = total.Add(e.Quantity.Mul(EffectiveUnitPrice(m, e)))
		}
	}
	return total
}

// =============================================================================
// SELECTABLE LOTS - Stock lots presented to the user
// =============================================================================

// Lot is one selectable stock lot at a location.
type Lot struct {
	BatchID   ledger.BatchID
	Date      time.Time
	VendorID  ledger.VendorID
	UnitPrice decimal.Decimal
	Available decimal.Decimal
}

// LotsAt lists batches with positive availability at a location, oldest
// first. This is what the UI offers when recording usage or a transfer.
func LotsAt(m *ledger.Material, project ledger.ProjectID) []Lot {
	seen := make(map[ledger.BatchID]bool)
	var lots []Lot
	for _, e := range m.History {
		if e.ProjectID != project {
			continue
		}
		batch := e.Batch()
		if seen[batch] {
			continue
		}
		seen[batch] = true

		avail := AvailableAt(m, batch, project)
		if !avail.IsPositive() {
			continue
		}
		head, ok := InwardEntry(m, batch)
		if !ok {
			continue
		}
		lots = append(lots, Lot{
			BatchID:   batch,
			Date:      head.Date,
			VendorID:  head.VendorID,
			UnitPrice: EffectiveUnitPrice(m, *head),
			Available: avail,
		})
	}
	sort.Slice(lots, func(i, j int) bool { return lots[i].Date.Before(lots[j].Date) })
	return lots
}
