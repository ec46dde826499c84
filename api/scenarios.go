/*
scenarios.go - Demo scenario loaders

PURPOSE:
  Pre-built documents with realistic construction-business data for demos
  and manual testing. Each scenario is a command script folded over an
  empty document, so loading one exercises the same engine paths as live
  edits.

AVAILABLE SCENARIOS:
  site-setup:        Locations, vendors, materials, opening purchases
  cement-flow:       Godown purchase, transfer to site, site usage
  vendor-settlement: Outstanding bills plus an auto-allocated payment
                     and an advance

USAGE VIA API:
  POST /api/documents/{syncID}/scenarios/load
  {"scenarioId": "cement-flow"}

NOTE:
  Loading a scenario replaces the target document. Development only.

SEE ALSO:
  - handlers.go: session plumbing
  - engine/command.go: the commands scripted here
*/
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sitebook/ledger-engine/engine"
	"github.com/sitebook/ledger-engine/ledger"
	"github.com/sitebook/ledger-engine/payments"
	"github.com/sitebook/ledger-engine/stock"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "site-setup",
		Name:        "Site Setup",
		Description: "Two locations, two vendors, opening material purchases",
	},
	{
		ID:          "cement-flow",
		Name:        "Cement Flow",
		Description: "Purchase into godown, transfer to site, site usage",
	},
	{
		ID:          "vendor-settlement",
		Name:        "Vendor Settlement",
		Description: "Outstanding bills, auto-allocated payment, advance",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// LoadScenario replaces the target document with a scenario's data.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if !h.decode(w, r, &req) {
		return
	}

	syncID := chi.URLParam(r, "syncID")
	script, ok := scenarioScripts[req.ScenarioID]
	if !ok {
		writeError(w, http.StatusNotFound, "Unknown scenario", nil)
		return
	}

	doc := ledger.NewDocument(syncID)
	for _, cmd := range script() {
		next, err := engine.Apply(doc, cmd)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Scenario failed to load", err)
			return
		}
		doc = next
	}

	s, err := h.session(r, syncID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load document", err)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.doc = doc
	h.Sync.Enqueue(syncID, doc)
	h.Log.Info().Str("scenario", req.ScenarioID).Str("syncId", syncID).Msg("scenario loaded")

	writeJSON(w, http.StatusOK, DocumentResponse{
		Document: doc,
		Sync:     toSyncStatusDTO(h.Sync.Status(syncID)),
	})
}

// =============================================================================
// SCRIPTS
// =============================================================================

var scenarioScripts = map[string]func() []engine.Command{
	"site-setup":        siteSetupScript,
	"cement-flow":       cementFlowScript,
	"vendor-settlement": vendorSettlementScript,
}

func day(offset int) time.Time {
	return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, offset)
}

func siteSetupScript() []engine.Command {
	return []engine.Command{
		engine.CreateProject{ID: "proj-godown", Name: "Main Godown", Kind: ledger.ProjectGodown},
		engine.CreateProject{ID: "proj-site-a", Name: "Riverside Apartments", Kind: ledger.ProjectSite},
		engine.CreateVendor{ID: "ven-sharma", Name: "Sharma Building Supplies"},
		engine.CreateVendor{ID: "ven-steel", Name: "Natio Steel Traders"},
		engine.ProcureStock{Intent: stock.ProcureIntent{
			ExpenseID: "exp-setup-1",
			Date:      day(0),
			ProjectID: "proj-site-a",
			VendorID:  "ven-steel",
			NewMaterial: &stock.MaterialSpec{
				ID: "mat-rebar", Name: "TMT Rebar 12mm", Unit: "kg",
				LowStockThreshold: ledger.DecInt(200),
			},
			Quantity: ledger.DecInt(1000),
			Amount:   ledger.DecInt(65000),
			Category: "Material",
			Note:     "Opening stock",
		}},
		engine.ProcureStock{Intent: stock.ProcureIntent{
			ExpenseID: "exp-setup-2",
			Date:      day(1),
			ProjectID: "proj-godown",
			VendorID:  "ven-sharma",
			NewMaterial: &stock.MaterialSpec{
				ID: "mat-sand", Name: "River Sand", Unit: "cft",
				LowStockThreshold: ledger.DecInt(50),
			},
			Quantity: ledger.DecInt(500),
			Amount:   ledger.DecInt(27500),
			Category: "Material",
		}},
	}
}

// cementFlowScript walks a batch through all three entry types: 100 bags
// into the godown, 40 moved to the site, 25 used there. Leaves 60 in the
// godown and 15 at the site from the same batch.
func cementFlowScript() []engine.Command {
	return []engine.Command{
		engine.CreateProject{ID: "proj-godown", Name: "Main Godown", Kind: ledger.ProjectGodown},
		engine.CreateProject{ID: "proj-site-a", Name: "Riverside Apartments", Kind: ledger.ProjectSite},
		engine.CreateVendor{ID: "ven-sharma", Name: "Sharma Building Supplies"},
		engine.ProcureStock{Intent: stock.ProcureIntent{
			ExpenseID: "exp-cement-buy",
			Date:      day(0),
			ProjectID: "proj-godown",
			VendorID:  "ven-sharma",
			NewMaterial: &stock.MaterialSpec{
				ID: "mat-cement", Name: "OPC 53 Cement", Unit: "bag",
				LowStockThreshold: ledger.DecInt(20),
			},
			Quantity: ledger.DecInt(100),
			Amount:   ledger.DecInt(35000),
			Category: "Material",
		}},
		engine.TransferStock{Intent: stock.TransferIntent{
			OutExpenseID: "exp-cement-out",
			InExpenseID:  "exp-cement-in",
			Date:         day(3),
			FromProject:  "proj-godown",
			ToProject:    "proj-site-a",
			MaterialID:   "mat-cement",
			BatchID:      "exp-cement-buy",
			Quantity:     ledger.DecInt(40),
		}},
		engine.ConsumeStock{Intent: stock.ConsumeIntent{
			ExpenseID:  "exp-cement-use",
			Date:       day(5),
			ProjectID:  "proj-site-a",
			MaterialID: "mat-cement",
			BatchID:    "exp-cement-buy",
			Quantity:   ledger.DecInt(25),
			Note:       "Footing pour",
		}},
	}
}

// vendorSettlementScript leaves three open bills (500, 100, 300), one
// auto-allocated payment of 150 (settles the 100 bill, chips 50 off the
// 300), and a 900 payment producing an advance.
func vendorSettlementScript() []engine.Command {
	bill := func(id string, offset int, qty, amount int64) engine.Command {
		return engine.ProcureStock{Intent: stock.ProcureIntent{
			ExpenseID:  ledger.ExpenseID(id),
			Date:       day(offset),
			ProjectID:  "proj-site-a",
			VendorID:   "ven-sharma",
			MaterialID: "mat-brick",
			Quantity:   ledger.DecInt(qty),
			Amount:     ledger.DecInt(amount),
			Category:   "Material",
		}}
	}
	return []engine.Command{
		engine.CreateProject{ID: "proj-site-a", Name: "Riverside Apartments", Kind: ledger.ProjectSite},
		engine.CreateVendor{ID: "ven-sharma", Name: "Sharma Building Supplies"},
		engine.CreateMaterial{Spec: stock.MaterialSpec{
			ID: "mat-brick", Name: "Red Clay Brick", Unit: "pc",
		}},
		bill("exp-bill-1", 0, 100, 500),
		bill("exp-bill-2", 1, 20, 100),
		bill("exp-bill-3", 2, 60, 300),
		engine.RecordPayment{Input: payments.PaymentInput{
			ID:       "pay-part",
			Date:     day(4),
			VendorID: "ven-sharma",
			Amount:   ledger.DecInt(150),
			Method:   "UPI",
		}},
		engine.RecordPayment{Input: payments.PaymentInput{
			ID:        "pay-advance",
			Date:      day(6),
			VendorID:  "ven-sharma",
			Amount:    ledger.DecInt(900),
			Method:    "Bank Transfer",
			Reference: "NEFT 8841",
		}},
	}
}
