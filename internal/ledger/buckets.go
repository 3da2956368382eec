package ledger

import (
	"sort"
	"time"
)

// basisView resolves the bucketing day and amount of a record for a basis.
type basisView struct {
	engine Engine
	basis  Basis
}

func (v basisView) include(rec PurchaseRecord) bool {
	if v.basis == BasisPayment {
		return rec.IsPaid()
	}
	return true
}

func (v basisView) day(rec PurchaseRecord) time.Time {
	if v.basis == BasisPayment {
		d, _ := v.engine.day(stringOr(rec.CheckDate))
		return d
	}
	d, _ := v.engine.day(rec.InvoiceDate)
	return d
}

func (v basisView) amount(rec PurchaseRecord) float64 {
	if v.basis == BasisPayment {
		return rec.Paid()
	}
	return rec.Amount()
}

func (e Engine) view(basis Basis) basisView {
	if basis != BasisPayment {
		basis = BasisInvoice
	}
	return basisView{engine: e, basis: basis}
}

// MonthlySummary buckets records by calendar month, ascending. Invoice-basis
// buckets also carry their contributing records.
func (e Engine) MonthlySummary(records []PurchaseRecord, basis Basis) []MonthlySummary {
	v := e.view(basis)
	buckets := make(map[string]*MonthlySummary)
	for _, rec := range records {
		if !v.include(rec) {
			continue
		}
		key := formatMonth(v.day(rec))
		amount := v.amount(rec)
		bucket, ok := buckets[key]
		if !ok {
			bucket = &MonthlySummary{Month: key, ByDepartment: make(map[string]float64)}
			buckets[key] = bucket
		}
		bucket.TotalAmount += amount
		bucket.ByDepartment[rec.Department] += amount
		if v.basis == BasisInvoice {
			bucket.Records = append(bucket.Records, rec)
		}
	}

	out := make([]MonthlySummary, 0, len(buckets))
	for _, bucket := range buckets {
		bucket.TotalMonthlyAmount = bucket.TotalAmount
		dropZero(bucket.ByDepartment)
		out = append(out, *bucket)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out
}

// WeeklySummary buckets records by week, ascending by week start. A non-empty
// month keeps only records whose bucketing day falls in that YYYY-MM month.
func (e Engine) WeeklySummary(records []PurchaseRecord, basis Basis, month string) []WeeklySummary {
	v := e.view(basis)
	buckets := make(map[string]*WeeklySummary)
	for _, rec := range records {
		if !v.include(rec) {
			continue
		}
		day := v.day(rec)
		if month != "" && formatMonth(day) != month {
			continue
		}
		start, end := e.WeekBounds(day)
		key := WeekRange(start, end)
		amount := v.amount(rec)
		bucket, ok := buckets[key]
		if !ok {
			bucket = &WeeklySummary{
				WeekRange:    key,
				WeekStart:    formatDay(start),
				WeekEnd:      formatDay(end),
				ByDepartment: make(map[string]float64),
				ByCompany:    make(map[string]float64),
			}
			buckets[key] = bucket
		}
		bucket.TotalAmount += amount
		bucket.ByDepartment[rec.Department] += amount
		bucket.ByCompany[rec.CompanyName] += amount
	}

	out := make([]WeeklySummary, 0, len(buckets))
	for _, bucket := range buckets {
		bucket.TotalWeeklyAmount = bucket.TotalAmount
		dropZero(bucket.ByDepartment)
		dropZero(bucket.ByCompany)
		out = append(out, *bucket)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].WeekStart < out[j].WeekStart })
	return out
}

// WeekRange formats the week key "<start> ~ <end>".
func WeekRange(start, end time.Time) string {
	return formatDay(start) + " ~ " + formatDay(end)
}

func dropZero(m map[string]float64) {
	for k, v := range m {
		if v == 0 {
			delete(m, k)
		}
	}
}
