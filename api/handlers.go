/*
handlers.go - HTTP handlers for the document sync backend

PURPOSE:
  Exposes the ledger engine as a thin sync backend. Every mutation is one
  engine command applied to the in-memory document; persistence happens
  behind the response through the debounced syncer.

ENDPOINTS:
  Documents:
    GET    /api/documents/{syncID}          Load (or materialize) a document
    PUT    /api/documents/{syncID}          Replace the whole document
    GET    /api/documents/{syncID}/sync     Persistence status
    POST   /api/documents/{syncID}/flush    Force a synchronous flush
    GET    /api/documents/{syncID}/reconcile Aggregate drift report

  Records:
    POST   /api/documents/{syncID}/projects
    POST   /api/documents/{syncID}/vendors
    GET    /api/documents/{syncID}/vendors/{id}/outstanding
    POST   /api/documents/{syncID}/materials
    GET    /api/documents/{syncID}/materials/{id}/batches?projectId=
    POST   /api/documents/{syncID}/expenses
    PUT    /api/documents/{syncID}/expenses/{id}
    DELETE /api/documents/{syncID}/expenses/{id}
    POST   /api/documents/{syncID}/payments
    PUT    /api/documents/{syncID}/payments/{id}
    DELETE /api/documents/{syncID}/payments/{id}

  Scenarios:
    GET    /api/scenarios                   List demo scenarios
    POST   /api/documents/{syncID}/scenarios/load

REQUEST FLOW:
  1. Decode and validate the DTO (structure only)
  2. Parse numeric strings strictly
  3. Build the engine command and apply it against the session document
  4. On success: swap the session document, enqueue persistence, return
     the new document
  5. On error: the document is untouched; map the error to a status

ERROR HANDLING:
  - 400: validation errors (malformed input, stock/headroom breaches)
  - 404: unknown record or document
  - 409: lock violations, revision conflicts
  - 503: persistence failures surfaced by explicit flushes
  - 500: everything else

SECURITY NOTE:
  No authentication. Sync ids are capability tokens: knowing one grants
  access to its document.

SEE ALSO:
  - dto.go: request/response shapes
  - engine/engine.go: the command dispatch being driven
  - syncer/syncer.go: write-behind persistence
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sitebook/ledger-engine/engine"
	"github.com/sitebook/ledger-engine/ledger"
	"github.com/sitebook/ledger-engine/payments"
	"github.com/sitebook/ledger-engine/stock"
	"github.com/sitebook/ledger-engine/store"
	"github.com/sitebook/ledger-engine/syncer"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store store.DocumentStore
	Sync  *syncer.Syncer
	Log   zerolog.Logger

	validate *validator.Validate

	// One session per sync id: the live document plus a mutex serializing
	// command application. The session document is authoritative; the
	// store trails it through the syncer.
	mu       sync.Mutex
	sessions map[string]*session
}

type session struct {
	mu  sync.Mutex
	doc ledger.Document
}

// NewHandler creates a handler backed by the given store and syncer.
func NewHandler(st store.DocumentStore, sy *syncer.Syncer, log zerolog.Logger) *Handler {
	return &Handler{
		Store:    st,
		Sync:     sy,
		Log:      log,
		validate: validator.New(),
		sessions: make(map[string]*session),
	}
}

// session returns the live session for a sync id, loading the document
// from the store on first touch and materializing an empty one when the
// store has never seen the id.
func (h *Handler) session(r *http.Request, syncID string) (*session, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if s, ok := h.sessions[syncID]; ok {
		return s, nil
	}

	doc, rev, err := h.Store.Load(r.Context(), syncID)
	switch {
	case errors.Is(err, ledger.ErrDocumentNotFound):
		doc = ledger.NewDocument(syncID)
		rev = 0
	case err != nil:
		return nil, err
	}

	h.Sync.Track(syncID, rev)
	s := &session{doc: doc}
	h.sessions[syncID] = s
	return s, nil
}

// apply runs one command against the session document and, on success,
// makes the result the new live document and schedules persistence.
func (h *Handler) apply(w http.ResponseWriter, r *http.Request, status int, cmd engine.Command) {
	syncID := chi.URLParam(r, "syncID")
	s, err := h.session(r, syncID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load document", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := engine.Apply(s.doc, cmd)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	s.doc = next
	h.Sync.Enqueue(syncID, next)

	writeJSON(w, status, DocumentResponse{
		Document: next,
		Sync:     toSyncStatusDTO(h.Sync.Status(syncID)),
	})
}

// =============================================================================
// DOCUMENT HANDLERS
// =============================================================================

// GetDocument returns the live document, materializing an empty one for an
// unknown sync id.
func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	syncID := chi.URLParam(r, "syncID")
	s, err := h.session(r, syncID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load document", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, DocumentResponse{
		Document: s.doc,
		Sync:     toSyncStatusDTO(h.Sync.Status(syncID)),
	})
}

// PutDocument replaces the whole document with a client push. This is the
// sync path for clients that edited offline.
func (h *Handler) PutDocument(w http.ResponseWriter, r *http.Request) {
	syncID := chi.URLParam(r, "syncID")

	var doc ledger.Document
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid document body", err)
		return
	}
	doc.SyncID = syncID

	s, err := h.session(r, syncID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load document", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.doc = doc
	h.Sync.Enqueue(syncID, doc)

	writeJSON(w, http.StatusOK, DocumentResponse{
		Document: doc,
		Sync:     toSyncStatusDTO(h.Sync.Status(syncID)),
	})
}

// GetSyncStatus reports the persistence state without touching the
// document.
func (h *Handler) GetSyncStatus(w http.ResponseWriter, r *http.Request) {
	syncID := chi.URLParam(r, "syncID")
	writeJSON(w, http.StatusOK, toSyncStatusDTO(h.Sync.Status(syncID)))
}

// FlushDocument forces a synchronous write of any pending snapshot.
func (h *Handler) FlushDocument(w http.ResponseWriter, r *http.Request) {
	syncID := chi.URLParam(r, "syncID")
	if err := h.Sync.Flush(r.Context(), syncID); err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSyncStatusDTO(h.Sync.Status(syncID)))
}

// GetReconcileReport recomputes aggregates from history and reports drift.
func (h *Handler) GetReconcileReport(w http.ResponseWriter, r *http.Request) {
	syncID := chi.URLParam(r, "syncID")
	s, err := h.session(r, syncID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load document", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	report := engine.Reconcile(&s.doc)
	writeJSON(w, http.StatusOK, map[string]any{
		"clean":     report.Clean(),
		"materials": report.Materials,
		"vendors":   report.Vendors,
	})
}

// =============================================================================
// RECORD HANDLERS
// =============================================================================

// CreateProject registers a stock location.
func (h *Handler) CreateProject(w http.ResponseWriter, r *http.Request) {
	var req CreateProjectRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.apply(w, r, http.StatusCreated, engine.CreateProject{
		ID:   ledger.ProjectID(req.ID),
		Name: req.Name,
		Kind: ledger.ProjectKind(req.Kind),
	})
}

// CreateVendor registers a vendor with zero balance.
func (h *Handler) CreateVendor(w http.ResponseWriter, r *http.Request) {
	var req CreateVendorRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.apply(w, r, http.StatusCreated, engine.CreateVendor{
		ID:   ledger.VendorID(req.ID),
		Name: req.Name,
	})
}

// CreateMaterial registers a material without stock.
func (h *Handler) CreateMaterial(w http.ResponseWriter, r *http.Request) {
	var req MaterialSpecRequest
	if !h.decode(w, r, &req) {
		return
	}
	spec, err := req.toSpec()
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.apply(w, r, http.StatusCreated, engine.CreateMaterial{Spec: spec})
}

// CreateExpense dispatches on inventoryAction: purchase, usage, transfer,
// or a plain expense.
func (h *Handler) CreateExpense(w http.ResponseWriter, r *http.Request) {
	var req ExpenseRequest
	if !h.decode(w, r, &req) {
		return
	}

	var (
		cmd engine.Command
		err error
	)
	switch ledger.EntryType(req.InventoryAction) {
	case ledger.EntryPurchase:
		var intent stock.ProcureIntent
		intent, err = req.toProcureIntent()
		cmd = engine.ProcureStock{Intent: intent}
	case ledger.EntryUsage:
		var intent stock.ConsumeIntent
		intent, err = req.toConsumeIntent()
		cmd = engine.ConsumeStock{Intent: intent}
	case ledger.EntryTransfer:
		var intent stock.TransferIntent
		intent, err = req.toTransferIntent()
		cmd = engine.TransferStock{Intent: intent}
	default:
		var exp ledger.Expense
		exp, err = req.toExpense(ledger.ExpenseID(req.ID))
		cmd = engine.CreateExpense{Expense: exp}
	}
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.apply(w, r, http.StatusCreated, cmd)
}

// UpdateExpense replaces an expense record. The body uses the document
// model's sign conventions (usage quantities negative).
func (h *Handler) UpdateExpense(w http.ResponseWriter, r *http.Request) {
	var req ExpenseRequest
	if !h.decode(w, r, &req) {
		return
	}
	exp, err := req.toExpense(ledger.ExpenseID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.apply(w, r, http.StatusOK, engine.UpdateExpense{Expense: exp})
}

// DeleteExpense removes an expense and its owned stock entry.
func (h *Handler) DeleteExpense(w http.ResponseWriter, r *http.Request) {
	h.apply(w, r, http.StatusOK, engine.DeleteExpense{
		ID: ledger.ExpenseID(chi.URLParam(r, "id")),
	})
}

// CreatePayment records a payment, auto-allocating unless a batch is
// pinned.
func (h *Handler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	var req PaymentRequest
	if !h.decode(w, r, &req) {
		return
	}
	in, err := req.toInput(ledger.PaymentID(uuid.NewString()))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.apply(w, r, http.StatusCreated, engine.RecordPayment{Input: in})
}

// UpdatePayment re-enters a payment, regenerating its allocations.
func (h *Handler) UpdatePayment(w http.ResponseWriter, r *http.Request) {
	var req PaymentRequest
	if !h.decode(w, r, &req) {
		return
	}
	id := ledger.PaymentID(chi.URLParam(r, "id"))
	in, err := req.toInput(id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.apply(w, r, http.StatusOK, engine.UpdatePayment{ID: id, Input: in})
}

// DeletePayment removes a parent payment and its allocation children.
func (h *Handler) DeletePayment(w http.ResponseWriter, r *http.Request) {
	h.apply(w, r, http.StatusOK, engine.DeletePayment{
		ID: ledger.PaymentID(chi.URLParam(r, "id")),
	})
}

// =============================================================================
// READ HANDLERS
// =============================================================================

// GetMaterialLots lists a material's selectable lots at a location, the
// set the UI offers when recording usage or a transfer.
func (h *Handler) GetMaterialLots(w http.ResponseWriter, r *http.Request) {
	syncID := chi.URLParam(r, "syncID")
	s, err := h.session(r, syncID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load document", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.doc.MaterialByID(ledger.MaterialID(chi.URLParam(r, "id")))
	if !ok {
		h.writeDomainError(w, ledger.ErrMaterialNotFound)
		return
	}

	project := ledger.ProjectID(r.URL.Query().Get("projectId"))
	dtos := make([]LotDTO, 0)
	for _, lot := range stock.LotsAt(m, project) {
		dtos = append(dtos, LotDTO{
			BatchID:   string(lot.BatchID),
			Date:      lot.Date.Format(time.RFC3339),
			VendorID:  string(lot.VendorID),
			UnitPrice: lot.UnitPrice,
			Available: lot.Available,
		})
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetVendorOutstanding lists a vendor's open bills in allocation order.
func (h *Handler) GetVendorOutstanding(w http.ResponseWriter, r *http.Request) {
	syncID := chi.URLParam(r, "syncID")
	s, err := h.session(r, syncID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load document", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	vendorID := ledger.VendorID(chi.URLParam(r, "id"))
	if _, ok := s.doc.VendorByID(vendorID); !ok {
		h.writeDomainError(w, ledger.ErrVendorNotFound)
		return
	}

	dtos := make([]BillDTO, 0)
	for _, bill := range payments.OutstandingBills(&s.doc, vendorID) {
		dtos = append(dtos, BillDTO{
			ExpenseID: string(bill.Expense.ID),
			EntryID:   string(bill.EntryID),
			Date:      bill.Expense.Date.Format(time.RFC3339),
			Amount:    bill.Expense.Amount,
			Remaining: bill.Remaining,
		})
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// HELPERS
// =============================================================================

// decode unmarshals the body into dst and runs structural validation,
// writing a 400 and returning false on any failure.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", err)
		return false
	}
	return true
}

// writeDomainError maps engine and store errors onto HTTP statuses.
func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case ledger.IsValidation(err):
		var vf *ledger.ValidationFailure
		if errors.As(err, &vf) {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: vf.Message, Code: vf.Code})
			return
		}
		writeError(w, http.StatusBadRequest, "Validation failed", err)
	case ledger.IsLockViolation(err), errors.Is(err, ledger.ErrRevisionConflict):
		writeError(w, http.StatusConflict, "Conflict", err)
	case ledger.IsNotFound(err):
		writeError(w, http.StatusNotFound, "Not found", err)
	case errors.Is(err, ledger.ErrOutOfSync):
		writeError(w, http.StatusServiceUnavailable, "Persistence unavailable", err)
	default:
		h.Log.Error().Err(err).Msg("unhandled error")
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
