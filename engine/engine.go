/*
engine.go - Clone-first command dispatch

PURPOSE:
  Apply is the single mutation entry point: it deep-clones the previous
  document, dispatches the command against the clone, and returns the
  clone as the next state. On any error the caller's document is untouched
  and no next state is produced - validation and lock errors therefore
  leave the document a strict no-op, as required.

ATOMICITY:
  Operations composed of several writes (a transfer's two pairs, a
  payment's parent plus children) happen inside one Apply call, so they
  are atomic from the caller's perspective: one state replacement.

SEE ALSO:
  - command.go: the command union
  - stock/processor.go, payments/allocator.go: the per-command logic
*/
package engine

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sitebook/ledger-engine/ledger"
	"github.com/sitebook/ledger-engine/payments"
	"github.com/sitebook/ledger-engine/stock"
)

// Apply computes the next document from the previous one. Pure with respect
// to doc: the input is never mutated, on error no next state exists.
func Apply(doc ledger.Document, cmd Command) (ledger.Document, error) {
	next := doc.Clone()
	if err := dispatch(&next, cmd); err != nil {
		return ledger.Document{}, err
	}
	next.UpdatedAt = time.Now().UTC()
	return next, nil
}

func dispatch(doc *ledger.Document, cmd Command) error {
	switch c := cmd.(type) {
	case CreateProject:
		return createProject(doc, c)
	case CreateVendor:
		return createVendor(doc, c)
	case CreateMaterial:
		_, err := stock.CreateMaterial(doc, c.Spec)
		return err
	case ProcureStock:
		_, err := stock.Procure(doc, c.Intent)
		return err
	case ConsumeStock:
		_, err := stock.Consume(doc, c.Intent)
		return err
	case TransferStock:
		_, _, err := stock.Transfer(doc, c.Intent)
		return err
	case CreateExpense:
		_, err := stock.CreateExpense(doc, c.Expense)
		return err
	case UpdateExpense:
		return stock.UpdateExpense(doc, c.Expense)
	case DeleteExpense:
		return stock.DeleteExpense(doc, c.ID)
	case RecordPayment:
		_, err := payments.Record(doc, c.Input)
		return err
	case UpdatePayment:
		return payments.Update(doc, c.ID, c.Input)
	case DeletePayment:
		return payments.Delete(doc, c.ID)
	default:
		return fmt.Errorf("unknown command %T", cmd)
	}
}

func createProject(doc *ledger.Document, c CreateProject) error {
	if c.Name == "" {
		return &ledger.ValidationFailure{Code: "missing_name", Message: "project name is required"}
	}
	kind := c.Kind
	if kind == "" {
		kind = ledger.ProjectSite
	}
	if kind != ledger.ProjectSite && kind != ledger.ProjectGodown {
		return &ledger.ValidationFailure{Code: "invalid_kind", Message: "project kind must be site or godown"}
	}
	id := c.ID
	if id == "" {
		id = ledger.ProjectID(uuid.NewString())
	}
	if _, exists := doc.ProjectByID(id); exists {
		return &ledger.ValidationFailure{Code: "duplicate_project", Message: "project id already exists"}
	}
	doc.Projects = append(doc.Projects, ledger.Project{ID: id, Name: c.Name, Kind: kind})
	return nil
}

func createVendor(doc *ledger.Document, c CreateVendor) error {
	if c.Name == "" {
		return &ledger.ValidationFailure{Code: "missing_name", Message: "vendor name is required"}
	}
	id := c.ID
	if id == "" {
		id = ledger.VendorID(uuid.NewString())
	}
	if _, exists := doc.VendorByID(id); exists {
		return &ledger.ValidationFailure{Code: "duplicate_vendor", Message: "vendor id already exists"}
	}
	doc.Vendors = append(doc.Vendors, ledger.Vendor{ID: id, Name: c.Name})
	return nil
}
