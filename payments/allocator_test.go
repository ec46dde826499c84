package payments_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitebook/ledger-engine/ledger"
	"github.com/sitebook/ledger-engine/payments"
	"github.com/sitebook/ledger-engine/stock"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func date(day int) time.Time {
	return time.Date(2026, 3, day, 0, 0, 0, 0, time.UTC)
}

// newBilledDoc returns a document with one vendor holding three open bills
// of 500, 100, and 300 (oldest first), balance 900.
func newBilledDoc(t *testing.T) *ledger.Document {
	t.Helper()
	doc := ledger.NewDocument("sync-test")
	doc.Projects = []ledger.Project{{ID: "p-site", Name: "Site A", Kind: ledger.ProjectSite}}
	doc.Vendors = []ledger.Vendor{{ID: "v-1", Name: "Sharma Supplies"}}

	_, err := stock.CreateMaterial(&doc, stock.MaterialSpec{ID: "m-brick", Name: "Brick", Unit: "pc"})
	require.NoError(t, err)

	for i, bill := range []struct {
		id     ledger.ExpenseID
		amount int64
	}{
		{"e-bill-500", 500},
		{"e-bill-100", 100},
		{"e-bill-300", 300},
	} {
		_, err := stock.Procure(&doc, stock.ProcureIntent{
			ExpenseID:  bill.id,
			Date:       date(i + 1),
			ProjectID:  "p-site",
			VendorID:   "v-1",
			MaterialID: "m-brick",
			Quantity:   ledger.DecInt(10),
			Amount:     ledger.DecInt(bill.amount),
		})
		require.NoError(t, err)
	}
	return &doc
}

func pay(amount int64) payments.PaymentInput {
	return payments.PaymentInput{
		ID:       "pay-1",
		Date:     date(10),
		VendorID: "v-1",
		Amount:   ledger.DecInt(amount),
		Method:   "UPI",
	}
}

func childAmounts(doc *ledger.Document, parent ledger.PaymentID) []string {
	var out []string
	for _, c := range doc.AllocationChildren(parent) {
		out = append(out, c.Amount.String())
	}
	return out
}

// =============================================================================
// OUTSTANDING BILLS
// =============================================================================

func TestOutstandingBills_SmallestRemainingFirst(t *testing.T) {
	// GIVEN: bills of 500, 100, 300
	// WHEN: enumerating outstanding bills
	// THEN: ordered 100, 300, 500 regardless of entry order

	doc := newBilledDoc(t)
	bills := payments.OutstandingBills(doc, "v-1")
	require.Len(t, bills, 3)
	assert.True(t, bills[0].Remaining.Equal(ledger.DecInt(100)))
	assert.True(t, bills[1].Remaining.Equal(ledger.DecInt(300)))
	assert.True(t, bills[2].Remaining.Equal(ledger.DecInt(500)))
}

func TestOutstandingBills_SettledExcluded(t *testing.T) {
	// A bill within the 0.01 tolerance of zero no longer appears.
	doc := newBilledDoc(t)
	doc.Payments = append(doc.Payments, ledger.Payment{
		ID: "pay-x", VendorID: "v-1", Amount: ledger.Dec(99.995),
		MaterialBatchID: ledger.EntryIDForExpense("e-bill-100"),
	})

	bills := payments.OutstandingBills(doc, "v-1")
	require.Len(t, bills, 2)
	assert.True(t, bills[0].Remaining.Equal(ledger.DecInt(300)))
}

// =============================================================================
// AUTO ALLOCATION
// =============================================================================

func TestRecord_AutoAllocation_SmallestFirst(t *testing.T) {
	// GIVEN: open bills 500/100/300
	// WHEN: paying 150 without a target batch
	// THEN: the 100 bill is settled in full, 50 goes to the 300 bill,
	//       children sum to the parent, the balance drops by 150

	doc := newBilledDoc(t)
	id, err := payments.Record(doc, pay(150))
	require.NoError(t, err)

	children := doc.AllocationChildren(id)
	require.Len(t, children, 2)

	assert.True(t, children[0].Amount.Equal(ledger.DecInt(100)))
	assert.Equal(t, ledger.EntryIDForExpense("e-bill-100"), children[0].MaterialBatchID)
	assert.True(t, children[1].Amount.Equal(ledger.DecInt(50)))
	assert.Equal(t, ledger.EntryIDForExpense("e-bill-300"), children[1].MaterialBatchID)

	total := decimal.Zero
	for _, c := range children {
		total = total.Add(c.Amount)
		assert.True(t, c.IsAllocation)
		assert.Equal(t, id, c.MasterPaymentID)
		assert.Contains(t, c.Reference, "(Auto-Adjusted)")
	}
	assert.True(t, total.Equal(ledger.DecInt(150)), "children must sum to the parent")

	v, _ := doc.VendorByID("v-1")
	assert.True(t, v.Balance.Equal(ledger.DecInt(750)), "balance moves by the parent amount once")
}

func TestRecord_AutoAllocation_ExcessBecomesAdvance(t *testing.T) {
	// GIVEN: 900 outstanding across three bills
	// WHEN: paying 1000
	// THEN: every bill settles and a 100 advance child with no batch remains

	doc := newBilledDoc(t)
	id, err := payments.Record(doc, pay(1000))
	require.NoError(t, err)

	children := doc.AllocationChildren(id)
	require.Len(t, children, 4)

	last := children[len(children)-1]
	assert.True(t, last.Amount.Equal(ledger.DecInt(100)))
	assert.Empty(t, last.MaterialBatchID)
	assert.Contains(t, last.Reference, "(Advance)")

	assert.Empty(t, payments.OutstandingBills(doc, "v-1"))

	// Balance clamps at zero rather than going negative.
	v, _ := doc.VendorByID("v-1")
	assert.True(t, v.Balance.IsZero())
}

func TestRecord_AutoAllocation_ExactSettlement(t *testing.T) {
	doc := newBilledDoc(t)
	id, err := payments.Record(doc, pay(900))
	require.NoError(t, err)

	children := doc.AllocationChildren(id)
	require.Len(t, children, 3, "no advance child on exact settlement")
	assert.Equal(t, []string{"100", "300", "500"}, childAmounts(doc, id))
}

func TestRecord_RejectsBadInput(t *testing.T) {
	doc := newBilledDoc(t)

	in := pay(0)
	_, err := payments.Record(doc, in)
	assert.ErrorIs(t, err, ledger.ErrInvalidAmount)

	in = pay(100)
	in.VendorID = "v-missing"
	_, err = payments.Record(doc, in)
	assert.ErrorIs(t, err, ledger.ErrVendorNotFound)
}

// =============================================================================
// MANUAL ALLOCATION & HEADROOM
// =============================================================================

func TestRecord_Manual_SettlesPinnedBill(t *testing.T) {
	doc := newBilledDoc(t)

	in := pay(300)
	in.MaterialBatchID = ledger.EntryIDForExpense("e-bill-300")
	id, err := payments.Record(doc, in)
	require.NoError(t, err)

	assert.Empty(t, doc.AllocationChildren(id), "manual payments have no children")

	bills := payments.OutstandingBills(doc, "v-1")
	require.Len(t, bills, 2)
	v, _ := doc.VendorByID("v-1")
	assert.True(t, v.Balance.Equal(ledger.DecInt(600)))
}

func TestRecord_Manual_BillHeadroomEnforced(t *testing.T) {
	// A pinned payment may not exceed the bill's remainder (plus tolerance).
	doc := newBilledDoc(t)

	in := pay(301)
	in.MaterialBatchID = ledger.EntryIDForExpense("e-bill-300")
	_, err := payments.Record(doc, in)
	require.Error(t, err)
	assert.ErrorIs(t, err, ledger.ErrBillHeadroom)

	// Within the 0.01 tolerance it passes.
	in.Amount = ledger.Dec(300.01)
	_, err = payments.Record(doc, in)
	assert.NoError(t, err)
}

func TestRecord_Manual_VendorHeadroomEnforced(t *testing.T) {
	// GIVEN: vendor balance reduced to 100 by earlier payments
	// WHEN: pinning 300 to a bill that still has 300 remaining
	// THEN: the vendor-level check fires first

	doc := newBilledDoc(t)
	_, err := payments.Record(doc, pay(800))
	require.NoError(t, err)

	in := payments.PaymentInput{
		ID: "pay-2", Date: date(11), VendorID: "v-1",
		Amount:          ledger.DecInt(300),
		MaterialBatchID: ledger.EntryIDForExpense("e-bill-500"),
	}
	_, err = payments.Record(doc, in)
	require.Error(t, err)
	assert.ErrorIs(t, err, ledger.ErrVendorHeadroom)
}

// =============================================================================
// VENDOR BALANCE CLAMP
// =============================================================================

func TestVendorBalance_ClampAsymmetry(t *testing.T) {
	// GIVEN: an auto payment exceeding the balance (allowed, excess becomes
	//        an advance child) followed by a new purchase bill
	// WHEN: inspecting the balance after each step
	// THEN: the payment side clamps at zero, the purchase side adds in full;
	//       the over-payment is not remembered as credit

	doc := newBilledDoc(t)
	_, err := payments.Record(doc, pay(1000))
	require.NoError(t, err)

	v, _ := doc.VendorByID("v-1")
	require.True(t, v.Balance.IsZero(), "clamped, not -100")

	_, err = stock.Procure(doc, stock.ProcureIntent{
		ExpenseID: "e-bill-new", Date: date(20), ProjectID: "p-site",
		VendorID: "v-1", MaterialID: "m-brick",
		Quantity: ledger.DecInt(10), Amount: ledger.DecInt(200),
	})
	require.NoError(t, err)

	v, _ = doc.VendorByID("v-1")
	assert.True(t, v.Balance.Equal(ledger.DecInt(200)), "advance does not offset the new bill")
}

// =============================================================================
// UPDATE
// =============================================================================

func TestUpdate_RegeneratesAllocations(t *testing.T) {
	// GIVEN: an auto payment of 150 (children 100 + 50)
	// WHEN: raising it to 450
	// THEN: old children are discarded and re-derived (100 + 300 + 50),
	//       and the balance reflects only the new amount

	doc := newBilledDoc(t)
	id, err := payments.Record(doc, pay(150))
	require.NoError(t, err)

	in := pay(450)
	require.NoError(t, payments.Update(doc, id, in))

	assert.Equal(t, []string{"100", "300", "50"}, childAmounts(doc, id))

	v, _ := doc.VendorByID("v-1")
	assert.True(t, v.Balance.Equal(ledger.DecInt(450)))
}

func TestUpdate_RoundTripRestoresOriginalState(t *testing.T) {
	// GIVEN: an auto payment of 150
	// WHEN: raising it to 450 and then editing it back to 150
	// THEN: the original allocation children and vendor balance return
	//       exactly; revert and reapply leave no residue

	doc := newBilledDoc(t)
	id, err := payments.Record(doc, pay(150))
	require.NoError(t, err)

	require.NoError(t, payments.Update(doc, id, pay(450)))
	require.NoError(t, payments.Update(doc, id, pay(150)))

	assert.Equal(t, []string{"100", "50"}, childAmounts(doc, id))

	v, _ := doc.VendorByID("v-1")
	assert.True(t, v.Balance.Equal(ledger.DecInt(750)))

	bills := payments.OutstandingBills(doc, "v-1")
	require.Len(t, bills, 2, "the 100 bill is settled again, the rest reopen")
	assert.True(t, bills[0].Remaining.Equal(ledger.DecInt(250)))
	assert.True(t, bills[1].Remaining.Equal(ledger.DecInt(500)))
}

func TestUpdate_SwitchToManual(t *testing.T) {
	doc := newBilledDoc(t)
	id, err := payments.Record(doc, pay(150))
	require.NoError(t, err)

	in := pay(500)
	in.MaterialBatchID = ledger.EntryIDForExpense("e-bill-500")
	require.NoError(t, payments.Update(doc, id, in))

	assert.Empty(t, doc.AllocationChildren(id))
	p, ok := doc.PaymentByID(id)
	require.True(t, ok)
	assert.True(t, p.Amount.Equal(ledger.DecInt(500)))

	v, _ := doc.VendorByID("v-1")
	assert.True(t, v.Balance.Equal(ledger.DecInt(400)))
}

func TestUpdate_ManualHeadroomCountsRevertedAmount(t *testing.T) {
	// GIVEN: a manual payment of 500 against the 500 bill
	// WHEN: re-entering the same payment at 500 again
	// THEN: allowed; the old amount is being replaced, not stacked

	doc := newBilledDoc(t)
	in := pay(500)
	in.MaterialBatchID = ledger.EntryIDForExpense("e-bill-500")
	id, err := payments.Record(doc, in)
	require.NoError(t, err)

	require.NoError(t, payments.Update(doc, id, in))

	v, _ := doc.VendorByID("v-1")
	assert.True(t, v.Balance.Equal(ledger.DecInt(400)))
	assert.True(t, ledger.IsSettled(payments.BillRemaining(doc, mustExpense(t, doc, "e-bill-500"))))
}

func TestUpdate_AllocationChildRejected(t *testing.T) {
	doc := newBilledDoc(t)
	id, err := payments.Record(doc, pay(150))
	require.NoError(t, err)

	children := doc.AllocationChildren(id)
	require.NotEmpty(t, children)

	err = payments.Update(doc, children[0].ID, pay(10))
	assert.ErrorIs(t, err, ledger.ErrAllocationRow)
}

// =============================================================================
// DELETE
// =============================================================================

func TestDelete_RemovesChildrenAndRestoresBalance(t *testing.T) {
	// GIVEN: an auto payment of 150 with two children
	// WHEN: deleting the parent
	// THEN: children go with it and the balance is restored exactly once

	doc := newBilledDoc(t)
	id, err := payments.Record(doc, pay(150))
	require.NoError(t, err)

	require.NoError(t, payments.Delete(doc, id))

	assert.Empty(t, doc.AllocationChildren(id))
	_, ok := doc.PaymentByID(id)
	assert.False(t, ok)

	v, _ := doc.VendorByID("v-1")
	assert.True(t, v.Balance.Equal(ledger.DecInt(900)))

	bills := payments.OutstandingBills(doc, "v-1")
	assert.Len(t, bills, 3, "all bills open again")
}

func TestDelete_AllocationChildRejected(t *testing.T) {
	doc := newBilledDoc(t)
	id, err := payments.Record(doc, pay(150))
	require.NoError(t, err)

	children := doc.AllocationChildren(id)
	require.NotEmpty(t, children)
	assert.ErrorIs(t, payments.Delete(doc, children[0].ID), ledger.ErrAllocationRow)
}

func mustExpense(t *testing.T, doc *ledger.Document, id ledger.ExpenseID) ledger.Expense {
	t.Helper()
	e, ok := doc.ExpenseByID(id)
	require.True(t, ok)
	return *e
}
