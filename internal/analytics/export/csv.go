// Package export renders dashboard views as CSV.
package export

import (
	"encoding/csv"
	"io"
	"sort"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/paydash/internal/ledger"
)

// WriteMonthlyCSV emits one row per month and department.
func WriteMonthlyCSV(w io.Writer, months []ledger.MonthlySummary) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"Month", "Department", "Amount", "Month Total"}); err != nil {
		return err
	}
	for _, m := range months {
		for _, dept := range sortedKeys(m.ByDepartment) {
			if err := writer.Write([]string{m.Month, dept, formatAmount(m.ByDepartment[dept]), formatAmount(m.TotalAmount)}); err != nil {
				return err
			}
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteWeeklyCSV emits one row per week and company.
func WriteWeeklyCSV(w io.Writer, weeks []ledger.WeeklySummary) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"Week", "Week Start", "Week End", "Company", "Amount", "Week Total"}); err != nil {
		return err
	}
	for _, wk := range weeks {
		for _, company := range sortedKeys(wk.ByCompany) {
			if err := writer.Write([]string{
				wk.WeekRange,
				wk.WeekStart,
				wk.WeekEnd,
				company,
				formatAmount(wk.ByCompany[company]),
				formatAmount(wk.TotalAmount),
			}); err != nil {
				return err
			}
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteCyclesCSV emits payment latency statistics.
func WriteCyclesCSV(w io.Writer, metrics []ledger.PaymentCycleMetric) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"Department", "Company", "Invoices", "Total Amount", "Median Days", "Min Days", "Max Days", "Avg Days"}); err != nil {
		return err
	}
	for _, m := range metrics {
		if err := writer.Write([]string{
			m.Department,
			m.CompanyName,
			strconv.Itoa(m.InvoiceCount),
			formatAmount(m.TotalAmount),
			formatDays(m.MedianDays),
			strconv.Itoa(m.MinDays),
			strconv.Itoa(m.MaxDays),
			formatDays(m.AvgDays),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteForecastCSV emits every outstanding record with its prediction.
func WriteForecastCSV(w io.Writer, summary ledger.ForecastSummary) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"Department", "Company", "Invoice", "Invoice Date", "Unpaid", "Median Days", "Predicted Date", "Due By " + summary.WeekEnd}); err != nil {
		return err
	}
	for _, p := range summary.AllRecords {
		median := ""
		if p.HasHistory {
			median = formatDays(p.MedianDays)
		}
		if err := writer.Write([]string{
			p.Department,
			p.CompanyName,
			p.InvoiceNumber,
			p.InvoiceDate,
			formatAmount(p.UnpaidAmount),
			median,
			p.PredictedDate,
			strconv.FormatBool(p.IsDueThisWeek),
		}); err != nil {
			return err
		}
	}
	if err := writer.Write([]string{"", "", "", "", "", "", "Total Due", formatAmount(summary.TotalDueThisWeek)}); err != nil {
		return err
	}
	writer.Flush()
	return writer.Error()
}

// WriteUnpaidCSV emits outstanding balances per department and company.
func WriteUnpaidCSV(w io.Writer, summary ledger.UnpaidSummary) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"Department", "Company", "Unpaid"}); err != nil {
		return err
	}
	for _, dept := range sortedKeys(summary.ByDeptCompany) {
		companies := summary.ByDeptCompany[dept]
		for _, company := range sortedKeys(companies) {
			if err := writer.Write([]string{dept, company, formatAmount(companies[company])}); err != nil {
				return err
			}
		}
	}
	if err := writer.Write([]string{"Total", "", formatAmount(summary.TotalUnpaid)}); err != nil {
		return err
	}
	writer.Flush()
	return writer.Error()
}

// formatAmount rounds currency half away from zero to cents.
func formatAmount(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}

func formatDays(v float64) string {
	return decimal.NewFromFloat(v).Round(1).String()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
