/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the document model from the external API contract.

NUMERIC FIELDS:
  Every user-entered numeric field travels as a string and is parsed with
  ledger.ParseDecimal. Malformed input is rejected with 400; it is never
  coerced to zero. Optional numeric fields are pointers; nil means
  "not provided", which is distinct from "0".

VALIDATION:
  Structural validation (required fields, enum membership) is declared
  with go-playground/validator tags and run in the handlers before any
  parsing. Domain validation (stock availability, headroom, locks) lives
  in the engine.

SEE ALSO:
  - handlers.go: uses these types
  - ledger/money.go: the strict numeric policy
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/sitebook/ledger-engine/ledger"
	"github.com/sitebook/ledger-engine/payments"
	"github.com/sitebook/ledger-engine/stock"
	"github.com/sitebook/ledger-engine/syncer"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

// CreateProjectRequest registers a stock location.
type CreateProjectRequest struct {
	ID   string `json:"id"`
	Name string `json:"name" validate:"required"`
	Kind string `json:"kind" validate:"omitempty,oneof=site godown"`
}

// CreateVendorRequest registers a vendor.
type CreateVendorRequest struct {
	ID   string `json:"id"`
	Name string `json:"name" validate:"required"`
}

// MaterialSpecRequest describes a material, inline in a purchase or on its
// own.
type MaterialSpecRequest struct {
	ID                string  `json:"id"`
	Name              string  `json:"name" validate:"required"`
	Unit              string  `json:"unit"`
	CostPerUnit       *string `json:"costPerUnit"`
	LowStockThreshold *string `json:"lowStockThreshold"`
}

// ExpenseRequest is the single write shape for expenses. InventoryAction
// selects the operation: "Purchase", "Usage", "Transfer", or empty for a
// plain non-inventory expense.
type ExpenseRequest struct {
	ID               string               `json:"id"`
	Date             string               `json:"date" validate:"required"`
	ProjectID        string               `json:"projectId" validate:"required"`
	VendorID         string               `json:"vendorId"`
	Amount           *string              `json:"amount"`
	Category         string               `json:"category"`
	InventoryAction  string               `json:"inventoryAction" validate:"omitempty,oneof=Purchase Usage Transfer"`
	MaterialID       string               `json:"materialId"`
	NewMaterial      *MaterialSpecRequest `json:"newMaterial"`
	MaterialQuantity *string              `json:"materialQuantity"`
	UnitPrice        *string              `json:"unitPrice"`
	ParentPurchaseID string               `json:"parentPurchaseId"`
	ToProjectID      string               `json:"toProjectId"`
	Note             string               `json:"note"`
}

// PaymentRequest records or re-enters a vendor payment. An empty
// materialBatchId means auto-allocation.
type PaymentRequest struct {
	Date            string `json:"date" validate:"required"`
	VendorID        string `json:"vendorId" validate:"required"`
	ProjectID       string `json:"projectId"`
	Amount          string `json:"amount" validate:"required"`
	Method          string `json:"method"`
	Reference       string `json:"reference"`
	MaterialBatchID string `json:"materialBatchId"`
}

// LoadScenarioRequest selects a demo scenario.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenarioId" validate:"required"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// DocumentResponse wraps a document with its persistence state.
type DocumentResponse struct {
	Document ledger.Document `json:"document"`
	Sync     SyncStatusDTO   `json:"sync"`
}

// SyncStatusDTO reports a document's persistence state.
type SyncStatusDTO struct {
	SyncID     string `json:"syncId"`
	Revision   int64  `json:"revision"`
	Pending    bool   `json:"pending"`
	LastSyncAt string `json:"lastSyncAt,omitempty"`
	OutOfSync  bool   `json:"outOfSync"`
	LastError  string `json:"lastError,omitempty"`
}

// LotDTO is one selectable stock lot at a location.
type LotDTO struct {
	BatchID   string          `json:"batchId"`
	Date      string          `json:"date"`
	VendorID  string          `json:"vendorId,omitempty"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Available decimal.Decimal `json:"available"`
}

// BillDTO is one open purchase bill with its unsettled remainder.
type BillDTO struct {
	ExpenseID string          `json:"expenseId"`
	EntryID   string          `json:"entryId"`
	Date      string          `json:"date"`
	Amount    decimal.Decimal `json:"amount"`
	Remaining decimal.Decimal `json:"remaining"`
}

// ScenarioDTO describes a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toSyncStatusDTO(s syncer.Status) SyncStatusDTO {
	dto := SyncStatusDTO{
		SyncID:    s.SyncID,
		Revision:  int64(s.Revision),
		Pending:   s.Pending,
		OutOfSync: s.LastError != nil,
	}
	if !s.LastSyncAt.IsZero() {
		dto.LastSyncAt = s.LastSyncAt.Format(time.RFC3339)
	}
	if s.LastError != nil {
		dto.LastError = s.LastError.Error()
	}
	return dto
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, &ledger.ValidationFailure{Code: "invalid_date", Message: "not a valid date: " + s}
	}
	return t, nil
}

// parseOptional parses a pointer numeric field; nil stays nil.
func parseOptional(s *string) (*decimal.Decimal, error) {
	if s == nil {
		return nil, nil
	}
	d, err := ledger.ParseDecimal(*s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// parseOrZero parses a pointer numeric field; nil means zero. Used where
// omitting the field is legitimate (thresholds, plain-expense amounts).
func parseOrZero(s *string) (decimal.Decimal, error) {
	if s == nil {
		return decimal.Zero, nil
	}
	return ledger.ParseDecimal(*s)
}

func (r MaterialSpecRequest) toSpec() (stock.MaterialSpec, error) {
	cost, err := parseOrZero(r.CostPerUnit)
	if err != nil {
		return stock.MaterialSpec{}, err
	}
	threshold, err := parseOrZero(r.LowStockThreshold)
	if err != nil {
		return stock.MaterialSpec{}, err
	}
	return stock.MaterialSpec{
		ID:                ledger.MaterialID(r.ID),
		Name:              r.Name,
		Unit:              r.Unit,
		CostPerUnit:       cost,
		LowStockThreshold: threshold,
	}, nil
}

func (r ExpenseRequest) toProcureIntent() (stock.ProcureIntent, error) {
	date, err := parseDate(r.Date)
	if err != nil {
		return stock.ProcureIntent{}, err
	}
	qty, err := parseOrZero(r.MaterialQuantity)
	if err != nil {
		return stock.ProcureIntent{}, err
	}
	amount, err := parseOrZero(r.Amount)
	if err != nil {
		return stock.ProcureIntent{}, err
	}
	unitPrice, err := parseOptional(r.UnitPrice)
	if err != nil {
		return stock.ProcureIntent{}, err
	}
	intent := stock.ProcureIntent{
		ExpenseID: ledger.ExpenseID(r.ID),
		Date:      date,
		ProjectID: ledger.ProjectID(r.ProjectID),
		VendorID:  ledger.VendorID(r.VendorID),
		Quantity:  qty,
		Amount:    amount,
		UnitPrice: unitPrice,
		Category:  r.Category,
		Note:      r.Note,
	}
	if r.NewMaterial != nil {
		spec, err := r.NewMaterial.toSpec()
		if err != nil {
			return stock.ProcureIntent{}, err
		}
		intent.NewMaterial = &spec
	} else {
		intent.MaterialID = ledger.MaterialID(r.MaterialID)
	}
	return intent, nil
}

func (r ExpenseRequest) toConsumeIntent() (stock.ConsumeIntent, error) {
	date, err := parseDate(r.Date)
	if err != nil {
		return stock.ConsumeIntent{}, err
	}
	qty, err := parseOrZero(r.MaterialQuantity)
	if err != nil {
		return stock.ConsumeIntent{}, err
	}
	return stock.ConsumeIntent{
		ExpenseID:  ledger.ExpenseID(r.ID),
		Date:       date,
		ProjectID:  ledger.ProjectID(r.ProjectID),
		MaterialID: ledger.MaterialID(r.MaterialID),
		BatchID:    ledger.BatchID(r.ParentPurchaseID),
		Quantity:   qty.Abs(),
		Note:       r.Note,
	}, nil
}

func (r ExpenseRequest) toTransferIntent() (stock.TransferIntent, error) {
	date, err := parseDate(r.Date)
	if err != nil {
		return stock.TransferIntent{}, err
	}
	qty, err := parseOrZero(r.MaterialQuantity)
	if err != nil {
		return stock.TransferIntent{}, err
	}
	return stock.TransferIntent{
		Date:        date,
		FromProject: ledger.ProjectID(r.ProjectID),
		ToProject:   ledger.ProjectID(r.ToProjectID),
		MaterialID:  ledger.MaterialID(r.MaterialID),
		BatchID:     ledger.BatchID(r.ParentPurchaseID),
		Quantity:    qty.Abs(),
		Note:        r.Note,
	}, nil
}

// toExpense builds the full expense record, used for plain expenses and
// for updates where the engine re-derives the stock entry.
func (r ExpenseRequest) toExpense(id ledger.ExpenseID) (ledger.Expense, error) {
	date, err := parseDate(r.Date)
	if err != nil {
		return ledger.Expense{}, err
	}
	amount, err := parseOrZero(r.Amount)
	if err != nil {
		return ledger.Expense{}, err
	}
	qty, err := parseOrZero(r.MaterialQuantity)
	if err != nil {
		return ledger.Expense{}, err
	}
	unitPrice, err := parseOptional(r.UnitPrice)
	if err != nil {
		return ledger.Expense{}, err
	}
	return ledger.Expense{
		ID:               id,
		Date:             date,
		ProjectID:        ledger.ProjectID(r.ProjectID),
		VendorID:         ledger.VendorID(r.VendorID),
		Amount:           amount,
		Category:         r.Category,
		MaterialID:       ledger.MaterialID(r.MaterialID),
		MaterialQuantity: qty,
		UnitPrice:        unitPrice,
		InventoryAction:  ledger.EntryType(r.InventoryAction),
		ParentPurchaseID: ledger.BatchID(r.ParentPurchaseID),
		Note:             r.Note,
	}, nil
}

func (r PaymentRequest) toInput(id ledger.PaymentID) (payments.PaymentInput, error) {
	date, err := parseDate(r.Date)
	if err != nil {
		return payments.PaymentInput{}, err
	}
	amount, err := ledger.ParseDecimal(r.Amount)
	if err != nil {
		return payments.PaymentInput{}, err
	}
	return payments.PaymentInput{
		ID:              id,
		Date:            date,
		VendorID:        ledger.VendorID(r.VendorID),
		ProjectID:       ledger.ProjectID(r.ProjectID),
		Amount:          amount,
		Method:          r.Method,
		Reference:       r.Reference,
		MaterialBatchID: ledger.EntryID(r.MaterialBatchID),
	}, nil
}
