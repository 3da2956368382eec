package ledger

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWeeklyKeyForThursday(t *testing.T) {
	engine := newTestEngine()
	weeks := engine.WeeklySummary([]PurchaseRecord{invoice("1", "Sysco", "杂货", "2024-03-14", 10)}, BasisInvoice, "")
	require.Len(t, weeks, 1)
	require.Equal(t, "2024-03-11 ~ 2024-03-17", weeks[0].WeekRange)
	require.Equal(t, "2024-03-11", weeks[0].WeekStart)
	require.Equal(t, "2024-03-17", weeks[0].WeekEnd)
}

func TestMonthlySummaryInvoiceBasis(t *testing.T) {
	engine := newTestEngine()
	input := []PurchaseRecord{
		invoice("1", "Sysco", "杂货", "2024-03-02", 100),
		invoice("2", "Metro", "菜部", "2024-01-15", 40),
		invoice("3", "Sysco", "菜部", "2024-03-20", 60.5),
		invoice("4", "Costco", "杂货", "2024-03-31T00:00:00", 20),
	}

	months := engine.MonthlySummary(input, BasisInvoice)
	require.Len(t, months, 2)
	require.Equal(t, "2024-01", months[0].Month)
	require.Equal(t, "2024-03", months[1].Month)

	march := months[1]
	require.InDelta(t, 180.5, march.TotalAmount, 1e-9)
	require.Equal(t, march.TotalAmount, march.TotalMonthlyAmount)
	require.Equal(t, map[string]float64{"杂货": 120, "菜部": 60.5}, march.ByDepartment)
	require.Len(t, march.Records, 3)

	for _, m := range months {
		var sum float64
		for _, v := range m.ByDepartment {
			sum += v
		}
		require.InDelta(t, m.TotalAmount, sum, 1e-9)
	}
}

func TestMonthlySummaryPaymentBasis(t *testing.T) {
	engine := newTestEngine()
	checkOnly := invoice("3", "Costco", "杂货", "2024-01-10", 30)
	checkOnly.CheckDate = String("2024-02-01")
	input := []PurchaseRecord{
		paid(invoice("1", "Sysco", "杂货", "2024-01-28", 100), "2024-02-03", 90),
		invoice("2", "Metro", "菜部", "2024-01-15", 40),
		checkOnly,
		paid(invoice("4", "Metro", "菜部", "2024-01-15", 10), "2024-03-01", 10),
	}

	months := engine.MonthlySummary(input, BasisPayment)
	require.Len(t, months, 2)
	require.Equal(t, "2024-02", months[0].Month)
	require.Equal(t, 90.0, months[0].TotalAmount)
	require.Equal(t, map[string]float64{"杂货": 90}, months[0].ByDepartment)
	require.Empty(t, months[0].Records)
	require.Equal(t, "2024-03", months[1].Month)
}

func TestWeeklySummaryMonthFilterAndCompanies(t *testing.T) {
	engine := newTestEngine()
	input := []PurchaseRecord{
		invoice("1", "Sysco", "杂货", "2024-02-29", 10),
		invoice("2", "Sysco", "杂货", "2024-03-01", 20),
		invoice("3", "Metro", "杂货", "2024-03-03", 5),
		invoice("4", "Metro", "菜部", "2024-03-04", 7),
		invoice("5", "Costco", "菜部", "2024-04-01", 99),
	}

	weeks := engine.WeeklySummary(input, BasisInvoice, "2024-03")
	require.Len(t, weeks, 2)

	first := weeks[0]
	require.Equal(t, "2024-02-26 ~ 2024-03-03", first.WeekRange)
	require.Equal(t, 25.0, first.TotalAmount, "Feb 29 is filtered out by month")
	require.Equal(t, map[string]float64{"Sysco": 20, "Metro": 5}, first.ByCompany)
	require.Equal(t, map[string]float64{"杂货": 25}, first.ByDepartment)

	require.Equal(t, "2024-03-04", weeks[1].WeekStart)
	require.Equal(t, 7.0, weeks[1].TotalWeeklyAmount)
}

func TestBucketsOmitZeroTotals(t *testing.T) {
	engine := newTestEngine()
	input := []PurchaseRecord{
		invoice("1", "Sysco", "杂货", "2024-03-12", 100),
		invoice("2", "Sysco", "杂货", "2024-03-13", -100),
		invoice("3", "Metro", "菜部", "2024-03-13", 30),
	}

	months := engine.MonthlySummary(input, BasisInvoice)
	require.Equal(t, map[string]float64{"菜部": 30}, months[0].ByDepartment)

	weeks := engine.WeeklySummary(input, BasisInvoice, "")
	require.Equal(t, map[string]float64{"菜部": 30}, weeks[0].ByDepartment)
	require.Equal(t, map[string]float64{"Metro": 30}, weeks[0].ByCompany)
}

func TestAggregatorsReturnEmptyCollections(t *testing.T) {
	engine := newTestEngine()
	require.NotNil(t, engine.MonthlySummary(nil, BasisInvoice))
	require.Empty(t, engine.MonthlySummary(nil, BasisInvoice))
	require.NotNil(t, engine.WeeklySummary(nil, BasisPayment, "2024-03"))
	dist := engine.Distribution(nil, DistributionQuery{Department: "杂货"})
	require.NotNil(t, dist.Points)
	require.NotNil(t, dist.OrderedCompanies)
	require.NotNil(t, engine.CycleMetrics(nil))
	require.NotNil(t, engine.Forecast(nil, nil).AllRecords)
}
