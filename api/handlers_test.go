package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitebook/ledger-engine/api"
	"github.com/sitebook/ledger-engine/ledger"
	"github.com/sitebook/ledger-engine/store/memory"
	"github.com/sitebook/ledger-engine/syncer"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

type testServer struct {
	srv *httptest.Server
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	st := memory.New()
	sy := syncer.New(st, time.Hour, zerolog.Nop())
	h := api.NewHandler(st, sy, zerolog.Nop())
	srv := httptest.NewServer(api.NewRouter(h))
	t.Cleanup(srv.Close)
	return &testServer{srv: srv}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) (*http.Response, []byte) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, ts.srv.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out bytes.Buffer
	_, err = out.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, out.Bytes()
}

func (ts *testServer) document(t *testing.T, raw []byte) ledger.Document {
	t.Helper()
	var dr struct {
		Document ledger.Document `json:"document"`
	}
	require.NoError(t, json.Unmarshal(raw, &dr))
	return dr.Document
}

// seed creates locations, a vendor, and a cement purchase under sync-1.
func (ts *testServer) seed(t *testing.T) {
	t.Helper()
	resp, _ := ts.do(t, "POST", "/api/documents/sync-1/projects",
		map[string]string{"id": "p-godown", "name": "Main Godown", "kind": "godown"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, _ = ts.do(t, "POST", "/api/documents/sync-1/projects",
		map[string]string{"id": "p-site", "name": "Site A", "kind": "site"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, _ = ts.do(t, "POST", "/api/documents/sync-1/vendors",
		map[string]string{"id": "v-1", "name": "Sharma Supplies"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, _ = ts.do(t, "POST", "/api/documents/sync-1/expenses", map[string]any{
		"id":              "e-buy",
		"date":            "2026-03-01",
		"projectId":       "p-godown",
		"vendorId":        "v-1",
		"inventoryAction": "Purchase",
		"newMaterial":     map[string]string{"id": "m-cement", "name": "Cement", "unit": "bag"},
		"materialQuantity": "100",
		"amount":           "35000",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
}

// =============================================================================
// DOCUMENT LIFECYCLE
// =============================================================================

func TestGetDocument_MaterializesEmpty(t *testing.T) {
	ts := newTestServer(t)

	resp, raw := ts.do(t, "GET", "/api/documents/fresh-id", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	doc := ts.document(t, raw)
	assert.Equal(t, "fresh-id", doc.SyncID)
	assert.Empty(t, doc.Materials)
}

func TestPutDocument_ReplacesWholeState(t *testing.T) {
	ts := newTestServer(t)
	ts.seed(t)

	push := ledger.NewDocument("ignored")
	push.Vendors = []ledger.Vendor{{ID: "v-new", Name: "Pushed Vendor"}}

	resp, raw := ts.do(t, "PUT", "/api/documents/sync-1", push)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	doc := ts.document(t, raw)
	assert.Equal(t, "sync-1", doc.SyncID, "sync id comes from the URL")
	require.Len(t, doc.Vendors, 1)
	assert.Equal(t, "Pushed Vendor", doc.Vendors[0].Name)
	assert.Empty(t, doc.Expenses)
}

// =============================================================================
// EXPENSE FLOW
// =============================================================================

func TestCreateExpense_PurchaseBuildsBatch(t *testing.T) {
	ts := newTestServer(t)
	ts.seed(t)

	resp, raw := ts.do(t, "GET", "/api/documents/sync-1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	doc := ts.document(t, raw)

	require.Len(t, doc.Materials, 1)
	assert.True(t, doc.Materials[0].TotalPurchased.Equal(ledger.DecInt(100)))
	require.Len(t, doc.Vendors, 1)
	assert.True(t, doc.Vendors[0].Balance.Equal(ledger.DecInt(35000)))
}

func TestCreateExpense_MalformedNumberRejected(t *testing.T) {
	// Strict parsing: "12,5" must 400, never become 0.
	ts := newTestServer(t)
	ts.seed(t)

	resp, raw := ts.do(t, "POST", "/api/documents/sync-1/expenses", map[string]any{
		"date":             "2026-03-02",
		"projectId":        "p-godown",
		"vendorId":         "v-1",
		"inventoryAction":  "Purchase",
		"materialId":       "m-cement",
		"materialQuantity": "12,5",
		"amount":           "100",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var er api.ErrorResponse
	require.NoError(t, json.Unmarshal(raw, &er))
	assert.Equal(t, "invalid_number", er.Code)
}

func TestCreateExpense_TransferAndUsage(t *testing.T) {
	ts := newTestServer(t)
	ts.seed(t)

	resp, _ := ts.do(t, "POST", "/api/documents/sync-1/expenses", map[string]any{
		"date":             "2026-03-03",
		"projectId":        "p-godown",
		"toProjectId":      "p-site",
		"inventoryAction":  "Transfer",
		"materialId":       "m-cement",
		"parentPurchaseId": "e-buy",
		"materialQuantity": "40",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, raw := ts.do(t, "POST", "/api/documents/sync-1/expenses", map[string]any{
		"date":             "2026-03-05",
		"projectId":        "p-site",
		"inventoryAction":  "Usage",
		"materialId":       "m-cement",
		"parentPurchaseId": "e-buy",
		"materialQuantity": "25",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	doc := ts.document(t, raw)
	require.Len(t, doc.Materials, 1)
	assert.True(t, doc.Materials[0].TotalUsed.Equal(ledger.DecInt(25)))
}

func TestCreateExpense_GodownUsageRejected(t *testing.T) {
	ts := newTestServer(t)
	ts.seed(t)

	resp, _ := ts.do(t, "POST", "/api/documents/sync-1/expenses", map[string]any{
		"date":             "2026-03-03",
		"projectId":        "p-godown",
		"inventoryAction":  "Usage",
		"materialId":       "m-cement",
		"parentPurchaseId": "e-buy",
		"materialQuantity": "5",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDeleteExpense_LockedBillIs409(t *testing.T) {
	// GIVEN: a bill with a payment pinned against its batch
	// WHEN: deleting the bill
	// THEN: 409 with the lock explanation

	ts := newTestServer(t)
	ts.seed(t)

	resp, _ := ts.do(t, "POST", "/api/documents/sync-1/payments", map[string]string{
		"date":            "2026-03-04",
		"vendorId":        "v-1",
		"amount":          "5000",
		"materialBatchId": string(ledger.EntryIDForExpense("e-buy")),
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, _ = ts.do(t, "DELETE", "/api/documents/sync-1/expenses/e-buy", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

// =============================================================================
// PAYMENT FLOW
// =============================================================================

func TestCreatePayment_AutoAllocates(t *testing.T) {
	ts := newTestServer(t)
	ts.seed(t)

	resp, raw := ts.do(t, "POST", "/api/documents/sync-1/payments", map[string]string{
		"date":     "2026-03-04",
		"vendorId": "v-1",
		"amount":   "10000",
		"method":   "UPI",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	doc := ts.document(t, raw)
	require.Len(t, doc.Payments, 2, "parent plus one allocation child")
	assert.True(t, doc.Vendors[0].Balance.Equal(ledger.DecInt(25000)))
}

func TestCreatePayment_MissingVendorIs400(t *testing.T) {
	ts := newTestServer(t)

	resp, _ := ts.do(t, "POST", "/api/documents/sync-1/payments", map[string]string{
		"date":   "2026-03-04",
		"amount": "100",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUpdatePayment_UnknownIs404(t *testing.T) {
	ts := newTestServer(t)
	ts.seed(t)

	resp, _ := ts.do(t, "PUT", "/api/documents/sync-1/payments/nope", map[string]string{
		"date":     "2026-03-04",
		"vendorId": "v-1",
		"amount":   "100",
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

// =============================================================================
// READ ENDPOINTS
// =============================================================================

func TestGetMaterialLots_PerLocation(t *testing.T) {
	ts := newTestServer(t)
	ts.seed(t)

	resp, _ := ts.do(t, "POST", "/api/documents/sync-1/expenses", map[string]any{
		"date":             "2026-03-03",
		"projectId":        "p-godown",
		"toProjectId":      "p-site",
		"inventoryAction":  "Transfer",
		"materialId":       "m-cement",
		"parentPurchaseId": "e-buy",
		"materialQuantity": "40",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, raw := ts.do(t, "GET", "/api/documents/sync-1/materials/m-cement/batches?projectId=p-godown", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var lots []api.LotDTO
	require.NoError(t, json.Unmarshal(raw, &lots))
	require.Len(t, lots, 1)
	assert.Equal(t, "e-buy", lots[0].BatchID)
	assert.True(t, lots[0].Available.Equal(ledger.DecInt(60)), "60 bags left at the godown")

	_, raw = ts.do(t, "GET", "/api/documents/sync-1/materials/m-cement/batches?projectId=p-site", nil)
	require.NoError(t, json.Unmarshal(raw, &lots))
	require.Len(t, lots, 1)
	assert.True(t, lots[0].Available.Equal(ledger.DecInt(40)))
}

func TestGetMaterialLots_UnknownMaterialIs404(t *testing.T) {
	ts := newTestServer(t)
	ts.seed(t)

	resp, _ := ts.do(t, "GET", "/api/documents/sync-1/materials/m-nope/batches", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGetVendorOutstanding_TracksPayments(t *testing.T) {
	ts := newTestServer(t)
	ts.seed(t)

	resp, raw := ts.do(t, "GET", "/api/documents/sync-1/vendors/v-1/outstanding", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var bills []api.BillDTO
	require.NoError(t, json.Unmarshal(raw, &bills))
	require.Len(t, bills, 1)
	assert.Equal(t, "e-buy", bills[0].ExpenseID)
	assert.True(t, bills[0].Remaining.Equal(ledger.DecInt(35000)))

	resp, _ = ts.do(t, "POST", "/api/documents/sync-1/payments", map[string]string{
		"date":     "2026-03-04",
		"vendorId": "v-1",
		"amount":   "10000",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	_, raw = ts.do(t, "GET", "/api/documents/sync-1/vendors/v-1/outstanding", nil)
	require.NoError(t, json.Unmarshal(raw, &bills))
	require.Len(t, bills, 1)
	assert.True(t, bills[0].Remaining.Equal(ledger.DecInt(25000)))
}

func TestGetVendorOutstanding_UnknownVendorIs404(t *testing.T) {
	ts := newTestServer(t)
	ts.seed(t)

	resp, _ := ts.do(t, "GET", "/api/documents/sync-1/vendors/v-nope/outstanding", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

// =============================================================================
// SYNC STATUS & SCENARIOS
// =============================================================================

func TestSyncStatus_PendingAfterEdit(t *testing.T) {
	ts := newTestServer(t)
	ts.seed(t)

	resp, raw := ts.do(t, "GET", "/api/documents/sync-1/sync", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var status struct {
		Pending   bool `json:"pending"`
		OutOfSync bool `json:"outOfSync"`
	}
	require.NoError(t, json.Unmarshal(raw, &status))
	assert.True(t, status.Pending, "debounced write not yet flushed")
	assert.False(t, status.OutOfSync)

	resp, _ = ts.do(t, "POST", "/api/documents/sync-1/flush", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	_, raw = ts.do(t, "GET", "/api/documents/sync-1/sync", nil)
	require.NoError(t, json.Unmarshal(raw, &status))
	assert.False(t, status.Pending)
}

func TestLoadScenario_CementFlow(t *testing.T) {
	ts := newTestServer(t)

	resp, raw := ts.do(t, "POST", "/api/documents/demo/scenarios/load",
		map[string]string{"scenarioId": "cement-flow"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	doc := ts.document(t, raw)
	require.Len(t, doc.Materials, 1)
	assert.True(t, doc.Materials[0].TotalPurchased.Equal(ledger.DecInt(100)))
	assert.True(t, doc.Materials[0].TotalUsed.Equal(ledger.DecInt(25)))
}

func TestLoadScenario_UnknownIs404(t *testing.T) {
	ts := newTestServer(t)
	resp, _ := ts.do(t, "POST", "/api/documents/demo/scenarios/load",
		map[string]string{"scenarioId": "nope"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestReconcileEndpoint_Clean(t *testing.T) {
	ts := newTestServer(t)
	ts.seed(t)

	resp, raw := ts.do(t, "GET", "/api/documents/sync-1/reconcile", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var report struct {
		Clean bool `json:"clean"`
	}
	require.NoError(t, json.Unmarshal(raw, &report))
	assert.True(t, report.Clean)
}
