package sqlite_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitebook/ledger-engine/ledger"
	"github.com/sitebook/ledger-engine/store/sqlite"
)

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	st, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func TestSQLite_SaveLoadRoundTrip(t *testing.T) {
	// GIVEN: a document with decimals and history
	// WHEN: saving and loading through the JSON envelope
	// THEN: the document survives intact with revision 1

	ctx := context.Background()
	st := newTestStore(t)

	price := ledger.DecInt(350)
	doc := ledger.NewDocument("sync-1")
	doc.Materials = []ledger.Material{{
		ID: "m-cement", Name: "Cement", Unit: "bag",
		TotalPurchased: ledger.DecInt(100),
		History: []ledger.StockEntry{{
			ID:        ledger.EntryIDForExpense("e-buy"),
			Type:      ledger.EntryPurchase,
			Quantity:  ledger.DecInt(100),
			ProjectID: "p-godown",
			UnitPrice: &price,
		}},
	}}

	rev, err := st.Save(ctx, "sync-1", doc, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, rev)

	got, gotRev, err := st.Load(ctx, "sync-1")
	require.NoError(t, err)
	assert.Equal(t, rev, gotRev)
	require.Len(t, got.Materials, 1)
	assert.True(t, got.Materials[0].TotalPurchased.Equal(ledger.DecInt(100)))
	require.Len(t, got.Materials[0].History, 1)
	require.NotNil(t, got.Materials[0].History[0].UnitPrice)
	assert.True(t, got.Materials[0].History[0].UnitPrice.Equal(ledger.DecInt(350)))
}

func TestSQLite_UnknownSyncID(t *testing.T) {
	st := newTestStore(t)
	_, _, err := st.Load(context.Background(), "nope")
	assert.ErrorIs(t, err, ledger.ErrDocumentNotFound)
}

func TestSQLite_RevisionConflict(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	doc := ledger.NewDocument("sync-1")

	rev1, err := st.Save(ctx, "sync-1", doc, 0)
	require.NoError(t, err)

	rev2, err := st.Save(ctx, "sync-1", doc, rev1)
	require.NoError(t, err)
	assert.Greater(t, rev2, rev1)

	// A writer still holding rev1 loses.
	_, err = st.Save(ctx, "sync-1", doc, rev1)
	assert.ErrorIs(t, err, ledger.ErrRevisionConflict)

	// Creating over an existing document fails too.
	_, err = st.Save(ctx, "sync-1", doc, 0)
	assert.ErrorIs(t, err, ledger.ErrRevisionConflict)
}

func TestSQLite_Delete(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	_, err := st.Save(ctx, "sync-1", ledger.NewDocument("sync-1"), 0)
	require.NoError(t, err)

	require.NoError(t, st.Delete(ctx, "sync-1"))
	assert.ErrorIs(t, st.Delete(ctx, "sync-1"), ledger.ErrDocumentNotFound)
}
