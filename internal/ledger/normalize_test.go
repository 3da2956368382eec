package ledger

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeClearsFlaggedPayments(t *testing.T) {
	engine := newTestEngine()
	flagged := paid(invoice("1", "Sysco", "杂货", "2024-03-01", 120), "2024-03-05", 120)
	flagged.ClearFlag = "1"
	flagged.Remarks = String("keep me")
	other := paid(invoice("2", "Metro", "杂货", "2024-03-01", 80), "2024-03-06", 80)
	other.ClearFlag = "0"

	out := engine.Normalize([]PurchaseRecord{flagged, other})
	require.Len(t, out, 2)

	require.Nil(t, out[0].CheckNumber)
	require.Nil(t, out[0].ActualPaidAmount)
	require.Nil(t, out[0].CheckTotalAmount)
	require.Nil(t, out[0].CheckDate)
	require.Equal(t, "keep me", *out[0].Remarks)
	require.Equal(t, 120.0, out[0].Amount())

	require.NotNil(t, out[1].CheckDate)
	require.Equal(t, 80.0, out[1].Paid())

	// the input slice is untouched
	require.NotNil(t, flagged.CheckDate)
}

func TestNormalizeDropsIncompleteRecords(t *testing.T) {
	engine := newTestEngine()
	noAmount := invoice("1", "Sysco", "杂货", "2024-03-01", 0)
	noAmount.InvoiceAmount = nil
	noDate := invoice("2", "Sysco", "杂货", "", 10)
	zero := invoice("3", "Sysco", "杂货", "2024-03-02", 0)
	ok := invoice("4", "Sysco", "杂货", "2024-03-03", 10)

	out := engine.Normalize([]PurchaseRecord{noAmount, noDate, zero, ok})
	require.Len(t, out, 2)
	require.Equal(t, "3", out[0].ID)
	require.Equal(t, "4", out[1].ID)
}

func TestNormalizeIsIdempotent(t *testing.T) {
	engine := newTestEngine()
	flagged := paid(invoice("1", "Sysco", "杂货", "2024-03-01", 120), "2024-03-05", 120)
	flagged.ClearFlag = "1"
	missing := invoice("2", "Sysco", "杂货", "", 10)
	input := []PurchaseRecord{flagged, missing, invoice("3", "Metro", "菜部", "2024-02-11", 55)}

	once := engine.Normalize(input)
	twice := engine.Normalize(once)
	require.Equal(t, once, twice)
	for _, rec := range twice {
		if rec.ClearFlag == "1" {
			require.Nil(t, rec.CheckNumber)
			require.Nil(t, rec.ActualPaidAmount)
			require.Nil(t, rec.CheckTotalAmount)
			require.Nil(t, rec.CheckDate)
		}
	}
}

func TestDateIssuesReportsFallbacks(t *testing.T) {
	engine := newTestEngine()
	bad := invoice("1", "Sysco", "杂货", "03/01/2024", 10)
	badCheck := paid(invoice("2", "Sysco", "杂货", "2024-03-01", 10), "soon", 10)
	good := paid(invoice("3", "Sysco", "杂货", "2024-03-01", 10), "2024-03-02", 10)

	issues := engine.DateIssues([]PurchaseRecord{bad, badCheck, good})
	require.Equal(t, []DateIssue{
		{RecordID: "1", Field: FieldInvoiceDate, Value: "03/01/2024"},
		{RecordID: "2", Field: FieldCheckDate, Value: "soon"},
	}, issues)
}
