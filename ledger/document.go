/*
document.go - The whole-application state container

PURPOSE:
  Document is the single replicated state the engine operates on: every
  mutation is "compute next Document from previous Document". The container
  provides deep cloning (so transitions never alias the previous state),
  indexed lookups, and the structural edits the processors need.

CLONING DISCIPLINE:
  engine.Apply clones the document before dispatching a command, so a
  failed operation leaves the caller's document untouched and a successful
  one returns a fresh value. Clone copies every slice and every pointer
  field; decimal values are immutable and safe to share.

SEE ALSO:
  - types.go: the entity definitions
  - engine/: the pure state-transition surface over Document
  - store/: whole-document persistence by sync id
*/
package ledger

import "time"

// Document is the complete application state for one sync id.
type Document struct {
	SyncID    string     `json:"syncId"`
	Materials []Material `json:"materials"`
	Expenses  []Expense  `json:"expenses"`
	Payments  []Payment  `json:"payments"`
	Vendors   []Vendor   `json:"vendors"`
	Projects  []Project  `json:"projects"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// NewDocument creates an empty document for a sync id.
func NewDocument(syncID string) Document {
	return Document{SyncID: syncID, UpdatedAt: time.Now().UTC()}
}

// =============================================================================
// DEEP CLONE
// =============================================================================

// Clone returns a deep copy. Mutating the copy never affects the original.
func (d Document) Clone() Document {
	out := d
	out.Materials = make([]Material, len(d.Materials))
	for i, m := range d.Materials {
		out.Materials[i] = m.clone()
	}
	out.Expenses = make([]Expense, len(d.Expenses))
	for i, e := range d.Expenses {
		out.Expenses[i] = e.clone()
	}
	out.Payments = append([]Payment(nil), d.Payments...)
	out.Vendors = append([]Vendor(nil), d.Vendors...)
	out.Projects = append([]Project(nil), d.Projects...)
	return out
}

func (m Material) clone() Material {
	out := m
	out.History = make([]StockEntry, len(m.History))
	for i, e := range m.History {
		out.History[i] = e.clone()
	}
	return out
}

func (e StockEntry) clone() StockEntry {
	out := e
	if e.UnitPrice != nil {
		p := *e.UnitPrice
		out.UnitPrice = &p
	}
	return out
}

func (e Expense) clone() Expense {
	out := e
	if e.UnitPrice != nil {
		p := *e.UnitPrice
		out.UnitPrice = &p
	}
	return out
}

// =============================================================================
// LOOKUPS - Pointers into the document's own slices
// =============================================================================

func (d *Document) MaterialByID(id MaterialID) (*Material, bool) {
	for i := range d.Materials {
		if d.Materials[i].ID == id {
			return &d.Materials[i], true
		}
	}
	return nil, false
}

func (d *Document) ExpenseByID(id ExpenseID) (*Expense, bool) {
	for i := range d.Expenses {
		if d.Expenses[i].ID == id {
			return &d.Expenses[i], true
		}
	}
	return nil, false
}

func (d *Document) PaymentByID(id PaymentID) (*Payment, bool) {
	for i := range d.Payments {
		if d.Payments[i].ID == id {
			return &d.Payments[i], true
		}
	}
	return nil, false
}

func (d *Document) VendorByID(id VendorID) (*Vendor, bool) {
	for i := range d.Vendors {
		if d.Vendors[i].ID == id {
			return &d.Vendors[i], true
		}
	}
	return nil, false
}

func (d *Document) ProjectByID(id ProjectID) (*Project, bool) {
	for i := range d.Projects {
		if d.Projects[i].ID == id {
			return &d.Projects[i], true
		}
	}
	return nil, false
}

// =============================================================================
// MATERIAL HISTORY EDITS
// =============================================================================

// EntryByID finds a history entry by id.
func (m *Material) EntryByID(id EntryID) (*StockEntry, bool) {
	for i := range m.History {
		if m.History[i].ID == id {
			return &m.History[i], true
		}
	}
	return nil, false
}

// AppendEntry appends a history entry.
func (m *Material) AppendEntry(e StockEntry) {
	m.History = append(m.History, e)
}

// ReplaceEntry replaces the entry with the same id in place, preserving its
// position in the history. Returns false if no such entry exists.
func (m *Material) ReplaceEntry(e StockEntry) bool {
	for i := range m.History {
		if m.History[i].ID == e.ID {
			m.History[i] = e
			return true
		}
	}
	return false
}

// RemoveEntry removes the entry with the given id. Returns false if absent.
func (m *Material) RemoveEntry(id EntryID) bool {
	for i := range m.History {
		if m.History[i].ID == id {
			m.History = append(m.History[:i], m.History[i+1:]...)
			return true
		}
	}
	return false
}

// =============================================================================
// COLLECTION EDITS
// =============================================================================

// RemoveExpense removes an expense by id. Returns false if absent.
func (d *Document) RemoveExpense(id ExpenseID) bool {
	for i := range d.Expenses {
		if d.Expenses[i].ID == id {
			d.Expenses = append(d.Expenses[:i], d.Expenses[i+1:]...)
			return true
		}
	}
	return false
}

// RemovePayment removes a payment by id. Returns false if absent.
func (d *Document) RemovePayment(id PaymentID) bool {
	for i := range d.Payments {
		if d.Payments[i].ID == id {
			d.Payments = append(d.Payments[:i], d.Payments[i+1:]...)
			return true
		}
	}
	return false
}

// AllocationChildren returns all allocation rows generated for a parent
// payment.
func (d *Document) AllocationChildren(parent PaymentID) []Payment {
	var out []Payment
	for _, p := range d.Payments {
		if p.IsAllocation && p.MasterPaymentID == parent {
			out = append(out, p)
		}
	}
	return out
}

// RemoveAllocationChildren removes every allocation row of a parent payment
// and returns how many were removed.
func (d *Document) RemoveAllocationChildren(parent PaymentID) int {
	kept := d.Payments[:0]
	removed := 0
	for _, p := range d.Payments {
		if p.IsAllocation && p.MasterPaymentID == parent {
			removed++
			continue
		}
		kept = append(kept, p)
	}
	d.Payments = kept
	return removed
}

// PaymentsAgainstBatch returns every payment (manual or allocation child)
// settled against a specific stock entry.
func (d *Document) PaymentsAgainstBatch(entry EntryID) []Payment {
	var out []Payment
	for _, p := range d.Payments {
		if p.MaterialBatchID == entry {
			out = append(out, p)
		}
	}
	return out
}

// TopLevelPayments returns user-entered payments, excluding allocation rows.
func (d *Document) TopLevelPayments() []Payment {
	var out []Payment
	for _, p := range d.Payments {
		if !p.IsAllocation {
			out = append(out, p)
		}
	}
	return out
}
