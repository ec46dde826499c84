/*
processor.go - Inventory transaction processor

PURPOSE:
  Translates the three user intents (procure, consume, transfer) into a
  consistent pair of {Expense, StockEntry} mutations plus the material
  aggregate and vendor balance updates they imply, and reverses the effects
  symmetrically on edit and delete.

MUTATION DISCIPLINE:
  Every operation validates fully before touching the document where that
  is possible; operations that must revert-then-reapply (Update, Delete)
  verify the batch non-negativity and per-location stake invariants after
  reapplying and report a validation error on violation. Callers reach these functions through engine.Apply,
  which works on a clone - an error discards the scratch document, so the
  caller's state is never half-updated.

EFFECT TABLE:
  Procure:   +Expense(Purchase), +entry(+qty, price=amount/qty unless given),
             vendor.balance += amount, recompute aggregates
  Consume:   +Expense(Usage, amount=qty*batch price), +entry(-qty, parent=batch,
             vendor carried from batch), NO vendor balance effect
  Transfer:  two linked pairs, amount 0 both sides, batch id preserved,
             destination entry priced at the source batch's unit price
  Update:    revert old effects (using the OLD expense), apply new, recompute
  Delete:    revert, remove expense + owned entry; refused with a lock error
             when any payment settles the owned entry

SEE ALSO:
  - accounting.go: the availability checks used here
  - payments/vendor.go: balance application helpers
  - engine/engine.go: the clone-first dispatch wrapper
*/
package stock

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sitebook/ledger-engine/ledger"
)

// =============================================================================
// INTENTS
// =============================================================================

// MaterialSpec describes a material created on first procurement or via
// asset registration.
type MaterialSpec struct {
	ID                ledger.MaterialID // generated when empty
	Name              string
	Unit              string
	CostPerUnit       decimal.Decimal
	LowStockThreshold decimal.Decimal
}

// ProcureIntent records a purchase into a location. Exactly one of
// MaterialID / NewMaterial must be set.
type ProcureIntent struct {
	ExpenseID   ledger.ExpenseID // generated when empty
	Date        time.Time
	ProjectID   ledger.ProjectID
	VendorID    ledger.VendorID
	MaterialID  ledger.MaterialID
	NewMaterial *MaterialSpec
	Quantity    decimal.Decimal
	Amount      decimal.Decimal
	UnitPrice   *decimal.Decimal // explicit batch price; derived from Amount/Quantity when nil
	Category    string
	Note        string
}

// ConsumeIntent records usage of a specific batch at a site.
type ConsumeIntent struct {
	ExpenseID  ledger.ExpenseID // generated when empty
	Date       time.Time
	ProjectID  ledger.ProjectID
	MaterialID ledger.MaterialID
	BatchID    ledger.BatchID
	Quantity   decimal.Decimal // positive; stored negated
	Note       string
}

// TransferIntent moves batch stock between locations.
type TransferIntent struct {
	OutExpenseID ledger.ExpenseID // generated when empty
	InExpenseID  ledger.ExpenseID // generated when empty
	Date         time.Time
	FromProject  ledger.ProjectID
	ToProject    ledger.ProjectID
	MaterialID   ledger.MaterialID
	BatchID      ledger.BatchID
	Quantity     decimal.Decimal // positive
	Note         string
}

func orNewExpenseID(id ledger.ExpenseID) ledger.ExpenseID {
	if id != "" {
		return id
	}
	return ledger.ExpenseID(uuid.NewString())
}

// =============================================================================
// CREATE MATERIAL
// =============================================================================

// CreateMaterial registers a material without stock (asset registration).
func CreateMaterial(doc *ledger.Document, spec MaterialSpec) (ledger.MaterialID, error) {
	if spec.Name == "" {
		return "", &ledger.ValidationFailure{Code: "missing_name", Message: "material name is required"}
	}
	id := spec.ID
	if id == "" {
		id = ledger.MaterialID(uuid.NewString())
	}
	if _, exists := doc.MaterialByID(id); exists {
		return "", &ledger.ValidationFailure{Code: "duplicate_material", Message: "material id already exists"}
	}
	doc.Materials = append(doc.Materials, ledger.Material{
		ID:                id,
		Name:              spec.Name,
		Unit:              spec.Unit,
		CostPerUnit:       spec.CostPerUnit,
		LowStockThreshold: spec.LowStockThreshold,
	})
	return id, nil
}

// =============================================================================
// PROCURE
// =============================================================================

// Procure records a purchase: a new batch enters stock at the intent's
// location and the vendor's liability grows by the bill amount.
func Procure(doc *ledger.Document, in ProcureIntent) (ledger.ExpenseID, error) {
	if !in.Quantity.IsPositive() {
		return "", ledger.ErrInvalidQuantity
	}
	if in.Amount.IsNegative() {
		return "", ledger.ErrInvalidAmount
	}
	if _, ok := doc.ProjectByID(in.ProjectID); !ok {
		return "", ledger.ErrProjectNotFound
	}
	if in.VendorID != "" {
		if _, ok := doc.VendorByID(in.VendorID); !ok {
			return "", ledger.ErrVendorNotFound
		}
	}

	materialID := in.MaterialID
	if in.NewMaterial != nil {
		id, err := CreateMaterial(doc, *in.NewMaterial)
		if err != nil {
			return "", err
		}
		materialID = id
	}
	m, ok := doc.MaterialByID(materialID)
	if !ok {
		return "", ledger.ErrMaterialNotFound
	}

	expenseID := orNewExpenseID(in.ExpenseID)
	unitPrice := in.Amount.Div(in.Quantity)
	if in.UnitPrice != nil {
		unitPrice = *in.UnitPrice
	}

	exp := ledger.Expense{
		ID:               expenseID,
		Date:             in.Date,
		ProjectID:        in.ProjectID,
		VendorID:         in.VendorID,
		Amount:           in.Amount,
		Category:         in.Category,
		MaterialID:       materialID,
		MaterialQuantity: in.Quantity,
		UnitPrice:        &unitPrice,
		InventoryAction:  ledger.EntryPurchase,
		Note:             in.Note,
	}
	doc.Expenses = append(doc.Expenses, exp)

	price := unitPrice
	m.AppendEntry(ledger.StockEntry{
		ID:              exp.EntryID(),
		Date:            in.Date,
		Type:            ledger.EntryPurchase,
		Quantity:        in.Quantity,
		ProjectID:       in.ProjectID,
		VendorID:        in.VendorID,
		UnitPrice:       &price,
		SourceExpenseID: expenseID,
		Note:            in.Note,
	})
	RecomputeAggregates(m)

	if in.VendorID != "" {
		v, _ := doc.VendorByID(in.VendorID)
		v.Balance = v.Balance.Add(in.Amount)
	}
	return expenseID, nil
}

// =============================================================================
// CONSUME
// =============================================================================

// Consume records usage of a batch at a site. The expense amount is derived
// from the batch's unit price, and the batch vendor is carried over for
// traceability; usage creates no new vendor liability.
func Consume(doc *ledger.Document, in ConsumeIntent) (ledger.ExpenseID, error) {
	if !in.Quantity.IsPositive() {
		return "", ledger.ErrInvalidQuantity
	}
	project, ok := doc.ProjectByID(in.ProjectID)
	if !ok {
		return "", ledger.ErrProjectNotFound
	}
	if project.IsGodown() {
		return "", ledger.ErrGodownConsumption
	}
	m, ok := doc.MaterialByID(in.MaterialID)
	if !ok {
		return "", ledger.ErrMaterialNotFound
	}
	head, ok := InwardEntry(m, in.BatchID)
	if !ok {
		return "", ledger.ErrBatchNotFound
	}

	avail := AvailableAt(m, in.BatchID, in.ProjectID)
	if avail.LessThan(in.Quantity) {
		return "", &ledger.InsufficientStockError{
			MaterialID: in.MaterialID,
			BatchID:    in.BatchID,
			ProjectID:  in.ProjectID,
			Available:  avail,
			Requested:  in.Quantity,
		}
	}

	price := EffectiveUnitPrice(m, *head)
	expenseID := orNewExpenseID(in.ExpenseID)

	exp := ledger.Expense{
		ID:               expenseID,
		Date:             in.Date,
		ProjectID:        in.ProjectID,
		VendorID:         head.VendorID,
		Amount:           in.Quantity.Mul(price),
		MaterialID:       in.MaterialID,
		MaterialQuantity: in.Quantity.Neg(),
		UnitPrice:        &price,
		InventoryAction:  ledger.EntryUsage,
		ParentPurchaseID: in.BatchID,
		Note:             in.Note,
	}
	doc.Expenses = append(doc.Expenses, exp)

	entryPrice := price
	m.AppendEntry(ledger.StockEntry{
		ID:               exp.EntryID(),
		Date:             in.Date,
		Type:             ledger.EntryUsage,
		Quantity:         in.Quantity.Neg(),
		ProjectID:        in.ProjectID,
		VendorID:         head.VendorID,
		UnitPrice:        &entryPrice,
		ParentPurchaseID: in.BatchID,
		SourceExpenseID:  expenseID,
		Note:             in.Note,
	})
	RecomputeAggregates(m)
	return expenseID, nil
}

// =============================================================================
// TRANSFER
// =============================================================================

// Transfer moves batch stock between two distinct locations as one logical
// operation: an out pair at the source and an in pair at the destination,
// both amount 0, both referencing the source batch, the destination priced
// at the source batch's unit price so valuation is preserved.
func Transfer(doc *ledger.Document, in TransferIntent) (outID, inID ledger.ExpenseID, err error) {
	if !in.Quantity.IsPositive() {
		return "", "", ledger.ErrInvalidQuantity
	}
	if in.FromProject == in.ToProject {
		return "", "", ledger.ErrSameLocation
	}
	if _, ok := doc.ProjectByID(in.FromProject); !ok {
		return "", "", ledger.ErrProjectNotFound
	}
	if _, ok := doc.ProjectByID(in.ToProject); !ok {
		return "", "", ledger.ErrProjectNotFound
	}
	m, ok := doc.MaterialByID(in.MaterialID)
	if !ok {
		return "", "", ledger.ErrMaterialNotFound
	}
	head, ok := InwardEntry(m, in.BatchID)
	if !ok {
		return "", "", ledger.ErrBatchNotFound
	}

	avail := AvailableAt(m, in.BatchID, in.FromProject)
	if avail.LessThan(in.Quantity) {
		return "", "", &ledger.InsufficientStockError{
			MaterialID: in.MaterialID,
			BatchID:    in.BatchID,
			ProjectID:  in.FromProject,
			Available:  avail,
			Requested:  in.Quantity,
		}
	}

	price := EffectiveUnitPrice(m, *head)
	outID = orNewExpenseID(in.OutExpenseID)
	inID = orNewExpenseID(in.InExpenseID)

	outExp := ledger.Expense{
		ID:               outID,
		Date:             in.Date,
		ProjectID:        in.FromProject,
		Amount:           decimal.Zero,
		MaterialID:       in.MaterialID,
		MaterialQuantity: in.Quantity.Neg(),
		InventoryAction:  ledger.EntryTransfer,
		ParentPurchaseID: in.BatchID,
		Note:             in.Note,
	}
	inExp := ledger.Expense{
		ID:               inID,
		Date:             in.Date,
		ProjectID:        in.ToProject,
		Amount:           decimal.Zero,
		MaterialID:       in.MaterialID,
		MaterialQuantity: in.Quantity,
		UnitPrice:        &price,
		InventoryAction:  ledger.EntryTransfer,
		ParentPurchaseID: in.BatchID,
		Note:             in.Note,
	}
	doc.Expenses = append(doc.Expenses, outExp, inExp)

	outPrice, inPrice := price, price
	m.AppendEntry(ledger.StockEntry{
		ID:               outExp.EntryID(),
		Date:             in.Date,
		Type:             ledger.EntryTransfer,
		Quantity:         in.Quantity.Neg(),
		ProjectID:        in.FromProject,
		UnitPrice:        &outPrice,
		ParentPurchaseID: in.BatchID,
		SourceExpenseID:  outID,
		Note:             in.Note,
	})
	m.AppendEntry(ledger.StockEntry{
		ID:               inExp.EntryID(),
		Date:             in.Date,
		Type:             ledger.EntryTransfer,
		Quantity:         in.Quantity,
		ProjectID:        in.ToProject,
		UnitPrice:        &inPrice,
		ParentPurchaseID: in.BatchID,
		SourceExpenseID:  inID,
		Note:             in.Note,
	})
	RecomputeAggregates(m)
	return outID, inID, nil
}

// =============================================================================
// PLAIN EXPENSE (no inventory effect)
// =============================================================================

// CreateExpense appends a non-inventory expense. Only Purchase-type
// inventory bills move vendor balances, so none move here.
func CreateExpense(doc *ledger.Document, exp ledger.Expense) (ledger.ExpenseID, error) {
	if exp.HasInventoryEffect() {
		return "", &ledger.ValidationFailure{Code: "inventory_expense",
			Message: "inventory expenses must be created via procure/consume/transfer"}
	}
	if exp.Amount.IsNegative() {
		return "", ledger.ErrInvalidAmount
	}
	if exp.ProjectID != "" {
		if _, ok := doc.ProjectByID(exp.ProjectID); !ok {
			return "", ledger.ErrProjectNotFound
		}
	}
	if exp.ID == "" {
		exp.ID = ledger.ExpenseID(uuid.NewString())
	}
	doc.Expenses = append(doc.Expenses, exp)
	return exp.ID, nil
}

// =============================================================================
// UPDATE
// =============================================================================

// lockedFieldChange reports whether an update touches a field that is
// frozen once a payment has settled against the expense's batch.
func lockedFieldChange(old, next ledger.Expense) bool {
	return !old.Amount.Equal(next.Amount) ||
		old.MaterialID != next.MaterialID ||
		!old.MaterialQuantity.Equal(next.MaterialQuantity) ||
		old.InventoryAction != next.InventoryAction ||
		old.ParentPurchaseID != next.ParentPurchaseID
}

// UpdateExpense reverts the old expense's financial and stock effects
// (keyed off the OLD field values) and applies the new ones. The owning
// entry is replaced in place when it already exists, appended when the edit
// newly attaches inventory data, and removed when it detaches it.
// Aggregates are recomputed once after revert+apply.
func UpdateExpense(doc *ledger.Document, next ledger.Expense) error {
	old, ok := doc.ExpenseByID(next.ID)
	if !ok {
		return ledger.ErrExpenseNotFound
	}

	if deps := doc.PaymentsAgainstBatch(old.EntryID()); len(deps) > 0 && lockedFieldChange(*old, next) {
		ids := make([]ledger.PaymentID, len(deps))
		for i, p := range deps {
			ids[i] = p.ID
		}
		return &ledger.LockViolationError{ExpenseID: old.ID, EntryID: old.EntryID(), PaymentIDs: ids}
	}

	if err := validateExpense(doc, next); err != nil {
		return err
	}

	prev := *old

	// Revert old financial effect.
	if prev.IsPurchaseBill() {
		if v, ok := doc.VendorByID(prev.VendorID); ok {
			v.Balance = v.Balance.Sub(prev.Amount)
		}
	}

	// Revert/replace the owned stock entry.
	var oldMat *ledger.Material
	if prev.MaterialID != "" {
		oldMat, _ = doc.MaterialByID(prev.MaterialID)
	}
	if oldMat != nil && (next.MaterialID != prev.MaterialID || !next.HasInventoryEffect()) {
		oldMat.RemoveEntry(prev.EntryID())
	}

	*old = next

	if next.HasInventoryEffect() {
		m, ok := doc.MaterialByID(next.MaterialID)
		if !ok {
			return ledger.ErrMaterialNotFound
		}
		entry := entryForExpense(next)
		if !m.ReplaceEntry(entry) {
			m.AppendEntry(entry)
		}
		RecomputeAggregates(m)
		if err := checkStockInvariants(m); err != nil {
			return err
		}
	}
	if oldMat != nil {
		RecomputeAggregates(oldMat)
		if err := checkStockInvariants(oldMat); err != nil {
			return err
		}
	}

	// Apply new financial effect.
	if next.IsPurchaseBill() {
		v, ok := doc.VendorByID(next.VendorID)
		if !ok {
			return ledger.ErrVendorNotFound
		}
		v.Balance = v.Balance.Add(next.Amount)
	}
	return nil
}

// validateExpense applies the per-action rules before any mutation.
func validateExpense(doc *ledger.Document, exp ledger.Expense) error {
	if exp.Amount.IsNegative() {
		return ledger.ErrInvalidAmount
	}
	if exp.ProjectID != "" {
		if _, ok := doc.ProjectByID(exp.ProjectID); !ok {
			return ledger.ErrProjectNotFound
		}
	}
	if exp.VendorID != "" {
		if _, ok := doc.VendorByID(exp.VendorID); !ok {
			return ledger.ErrVendorNotFound
		}
	}
	if !exp.HasInventoryEffect() {
		return nil
	}
	if !exp.InventoryAction.Valid() {
		return &ledger.ValidationFailure{Code: "invalid_action", Message: "unknown inventory action"}
	}
	switch exp.InventoryAction {
	case ledger.EntryPurchase:
		if !exp.MaterialQuantity.IsPositive() {
			return ledger.ErrInvalidQuantity
		}
	case ledger.EntryUsage:
		if !exp.MaterialQuantity.IsNegative() {
			return ledger.ErrInvalidQuantity
		}
		if exp.ParentPurchaseID == "" {
			return &ledger.ValidationFailure{Code: "missing_batch", Message: "usage requires a source batch"}
		}
		if p, ok := doc.ProjectByID(exp.ProjectID); ok && p.IsGodown() {
			return ledger.ErrGodownConsumption
		}
	case ledger.EntryTransfer:
		if exp.MaterialQuantity.IsZero() {
			return ledger.ErrInvalidQuantity
		}
		if exp.ParentPurchaseID == "" {
			return &ledger.ValidationFailure{Code: "missing_batch", Message: "transfer requires a source batch"}
		}
	}
	return nil
}

// entryForExpense builds the stock entry kept in lockstep with an expense.
func entryForExpense(exp ledger.Expense) ledger.StockEntry {
	entry := ledger.StockEntry{
		ID:               exp.EntryID(),
		Date:             exp.Date,
		Type:             exp.InventoryAction,
		Quantity:         exp.MaterialQuantity,
		ProjectID:        exp.ProjectID,
		VendorID:         exp.VendorID,
		ParentPurchaseID: exp.ParentPurchaseID,
		SourceExpenseID:  exp.ID,
		Note:             exp.Note,
	}
	if exp.UnitPrice != nil {
		p := *exp.UnitPrice
		entry.UnitPrice = &p
	} else if exp.InventoryAction == ledger.EntryPurchase && exp.MaterialQuantity.IsPositive() {
		p := exp.Amount.Div(exp.MaterialQuantity)
		entry.UnitPrice = &p
	}
	return entry
}

// checkStockInvariants runs every post-mutation stock check: global batch
// non-negativity and the per-location stakes. Used by the revert-then-
// reapply paths (Update, Delete), which cannot validate up front.
func checkStockInvariants(m *ledger.Material) error {
	if err := checkBatchNonNegative(m); err != nil {
		return err
	}
	return checkLocationNonNegative(m)
}

// checkBatchNonNegative verifies the no-negative-batch invariant for every
// inward entry of a material, and that no draw references a missing batch.
func checkBatchNonNegative(m *ledger.Material) error {
	for _, e := range m.History {
		if e.ParentPurchaseID != "" {
			if _, ok := InwardEntry(m, e.ParentPurchaseID); !ok {
				return &ledger.ValidationFailure{Code: "batch_in_use",
					Message: "entries still reference batch " + string(e.ParentPurchaseID)}
			}
			continue
		}
		if !e.Inward() {
			continue
		}
		batch := e.ID.BatchID()
		avail, ok := Available(m, batch)
		if ok && avail.IsNegative() {
			return &ledger.InsufficientStockError{
				MaterialID: m.ID,
				BatchID:    batch,
				ProjectID:  e.ProjectID,
				Available:  avail,
				Requested:  decimal.Zero,
			}
		}
	}
	return nil
}

// checkLocationNonNegative verifies that no location's stake in any batch
// has gone negative. Create-path operations validate AvailableAt before
// mutating; after a revert-then-reapply the same bound must still hold at
// every (batch, location) the history touches.
func checkLocationNonNegative(m *ledger.Material) error {
	type stake struct {
		batch   ledger.BatchID
		project ledger.ProjectID
	}
	seen := make(map[stake]bool)
	for _, e := range m.History {
		k := stake{e.Batch(), e.ProjectID}
		if seen[k] {
			continue
		}
		seen[k] = true
		avail := AvailableAt(m, k.batch, k.project)
		if avail.IsNegative() {
			return &ledger.InsufficientStockError{
				MaterialID: m.ID,
				BatchID:    k.batch,
				ProjectID:  k.project,
				Available:  avail,
				Requested:  decimal.Zero,
			}
		}
	}
	return nil
}

// =============================================================================
// DELETE
// =============================================================================

// DeleteExpense reverts the expense's financial and stock effects and
// removes both the expense and its owned entry. Refused with a lock
// violation when any payment settles this expense's batch: a bill cannot be
// deleted once money has been applied to it specifically.
func DeleteExpense(doc *ledger.Document, id ledger.ExpenseID) error {
	exp, ok := doc.ExpenseByID(id)
	if !ok {
		return ledger.ErrExpenseNotFound
	}

	if deps := doc.PaymentsAgainstBatch(exp.EntryID()); len(deps) > 0 {
		ids := make([]ledger.PaymentID, len(deps))
		for i, p := range deps {
			ids[i] = p.ID
		}
		return &ledger.LockViolationError{ExpenseID: exp.ID, EntryID: exp.EntryID(), PaymentIDs: ids}
	}

	prev := *exp
	if prev.HasInventoryEffect() {
		if m, ok := doc.MaterialByID(prev.MaterialID); ok {
			m.RemoveEntry(prev.EntryID())
			RecomputeAggregates(m)
			if err := checkStockInvariants(m); err != nil {
				return err
			}
		}
	}
	if prev.IsPurchaseBill() {
		if v, ok := doc.VendorByID(prev.VendorID); ok {
			v.Balance = v.Balance.Sub(prev.Amount)
		}
	}
	doc.RemoveExpense(id)
	return nil
}
