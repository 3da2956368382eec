package ledger

import "math"

// Forecast predicts payment dates for outstanding records from the median
// latency of their (department, company) pair and totals what falls due by the
// end of the current week. Records without history carry no prediction but
// stay in AllRecords.
func (e Engine) Forecast(records []PurchaseRecord, metrics []PaymentCycleMetric) ForecastSummary {
	type pairKey struct{ department, company string }
	medians := make(map[pairKey]float64, len(metrics))
	for _, m := range metrics {
		medians[pairKey{department: m.Department, company: m.CompanyName}] = m.MedianDays
	}
	weekEnd := e.CurrentWeekEnd()

	summary := ForecastSummary{
		WeekEnd:       formatDay(weekEnd),
		ByDept:        make(map[string]float64),
		ByDeptCompany: make(map[string]map[string]float64),
		AllRecords:    make([]PredictedPayment, 0),
	}

	for _, rec := range records {
		unpaid := rec.UnpaidAmount()
		if math.Abs(unpaid) <= e.policy.UnpaidEpsilon {
			continue
		}
		prediction := PredictedPayment{PurchaseRecord: rec, UnpaidAmount: unpaid}
		if median, ok := medians[pairKey{department: rec.Department, company: rec.CompanyName}]; ok {
			invoiceDay, _ := e.day(rec.InvoiceDate)
			predicted := invoiceDay.AddDate(0, 0, int(math.Trunc(median)))
			prediction.HasHistory = true
			prediction.MedianDays = median
			prediction.PredictedDate = formatDay(predicted)
			prediction.IsDueThisWeek = !predicted.After(weekEnd)
		}
		summary.AllRecords = append(summary.AllRecords, prediction)

		if !prediction.IsDueThisWeek {
			continue
		}
		summary.TotalDueThisWeek += unpaid
		summary.ByDept[rec.Department] += unpaid
		addNested(summary.ByDeptCompany, rec.Department, rec.CompanyName, unpaid)
	}
	return summary
}

// UnpaidSummary totals outstanding balances. Department maps skip balances
// under the epsilon; Details keeps balances strictly above it.
func (e Engine) UnpaidSummary(records []PurchaseRecord) UnpaidSummary {
	summary := UnpaidSummary{
		ByDepartment:  make(map[string]float64),
		ByDeptCompany: make(map[string]map[string]float64),
		Details:       make([]PurchaseRecord, 0),
	}
	for _, rec := range records {
		unpaid := rec.UnpaidAmount()
		summary.TotalUnpaid += unpaid
		if math.Abs(unpaid) < e.policy.UnpaidEpsilon {
			continue
		}
		summary.ByDepartment[rec.Department] += unpaid
		addNested(summary.ByDeptCompany, rec.Department, rec.CompanyName, unpaid)
		if math.Abs(unpaid) > e.policy.UnpaidEpsilon {
			summary.Details = append(summary.Details, rec)
		}
	}
	return summary
}

func addNested(m map[string]map[string]float64, outer, inner string, amount float64) {
	sub, ok := m[outer]
	if !ok {
		sub = make(map[string]float64)
		m[outer] = sub
	}
	sub[inner] += amount
}
