package ledger

// PurchaseRecord is one invoice/payment line of the purchase ledger. Optional
// payment facts are pointers: nil means "not yet paid" or "not recorded".
type PurchaseRecord struct {
	ID            string   `json:"id"`
	CompanyName   string   `json:"companyName"`
	Department    string   `json:"department"`
	InvoiceNumber string   `json:"invoiceNumber"`
	InvoiceDate   string   `json:"invoiceDate"`
	InvoiceAmount *float64 `json:"invoiceAmount"`
	TPS           float64  `json:"tps"`
	TVQ           float64  `json:"tvq"`
	NetAmount     float64  `json:"netAmount"`

	CheckNumber            *string  `json:"checkNumber,omitempty"`
	ActualPaidAmount       *float64 `json:"actualPaidAmount,omitempty"`
	CheckTotalAmount       *float64 `json:"checkTotalAmount,omitempty"`
	CheckDate              *string  `json:"checkDate,omitempty"`
	CheckMailedDate        *string  `json:"checkMailedDate,omitempty"`
	BankReconciliationDate *string  `json:"bankReconciliationDate,omitempty"`
	BankReconciliationNote *string  `json:"bankReconciliationNote,omitempty"`
	Difference             float64  `json:"difference"`
	Remarks                *string  `json:"remarks,omitempty"`

	ClearFlag string `json:"clearFlag,omitempty"`

	// Derived by Infer.
	Unpaid      *float64 `json:"unpaid,omitempty"`
	PaymentDays *int     `json:"paymentDays,omitempty"`
}

// Amount returns the invoice amount, zero when absent.
func (r PurchaseRecord) Amount() float64 {
	return floatOr(r.InvoiceAmount)
}

// Paid returns the actual paid amount, zero when absent.
func (r PurchaseRecord) Paid() float64 {
	return floatOr(r.ActualPaidAmount)
}

// UnpaidAmount returns the derived unpaid amount, zero when not yet computed.
func (r PurchaseRecord) UnpaidAmount() float64 {
	return floatOr(r.Unpaid)
}

// HasCheckDate reports whether a non-empty check date is recorded.
func (r PurchaseRecord) HasCheckDate() bool {
	return r.CheckDate != nil && *r.CheckDate != ""
}

// IsPaid reports whether the record qualifies for payment-basis views: a check
// date is present and the paid amount is recorded.
func (r PurchaseRecord) IsPaid() bool {
	return r.HasCheckDate() && r.ActualPaidAmount != nil
}

// WithoutPayment returns a copy with the redactable payment fields unset.
func (r PurchaseRecord) WithoutPayment() PurchaseRecord {
	r.CheckNumber = nil
	r.ActualPaidAmount = nil
	r.CheckTotalAmount = nil
	r.CheckDate = nil
	return r
}

// WithSettlement returns a copy settled in full on the given day.
func (r PurchaseRecord) WithSettlement(day string, amount float64) PurchaseRecord {
	r.CheckDate = String(day)
	r.ActualPaidAmount = Float(amount)
	r.CheckTotalAmount = Float(amount)
	return r
}

// Basis selects which date and amount drive an aggregation.
type Basis string

const (
	// BasisInvoice buckets by invoice date and sums invoice amounts.
	BasisInvoice Basis = "invoice"
	// BasisPayment buckets by check date and sums actual paid amounts.
	BasisPayment Basis = "payment"
)

// ParseBasis maps a query value to a Basis, defaulting to BasisInvoice.
func ParseBasis(value string) (Basis, bool) {
	switch Basis(value) {
	case "", BasisInvoice:
		return BasisInvoice, true
	case BasisPayment:
		return BasisPayment, true
	default:
		return "", false
	}
}

// MonthlySummary aggregates one calendar month.
type MonthlySummary struct {
	Month              string             `json:"month"`
	TotalAmount        float64            `json:"totalAmount"`
	Records            []PurchaseRecord   `json:"records,omitempty"`
	ByDepartment       map[string]float64 `json:"byDepartment"`
	TotalMonthlyAmount float64            `json:"totalMonthlyAmount"`
}

// WeeklySummary aggregates one week; WeekRange is "<start> ~ <end>".
type WeeklySummary struct {
	WeekRange         string             `json:"weekRange"`
	WeekStart         string             `json:"weekStart"`
	WeekEnd           string             `json:"weekEnd"`
	TotalAmount       float64            `json:"totalAmount"`
	ByDepartment      map[string]float64 `json:"byDepartment"`
	ByCompany         map[string]float64 `json:"byCompany"`
	TotalWeeklyAmount float64            `json:"totalWeeklyAmount"`
}

// DistributionQuery scopes the per-company daily distribution.
type DistributionQuery struct {
	Basis      Basis
	Department string
	Companies  []string
	Start      string
	End        string
}

// DistributionPoint is one (company, day) group.
type DistributionPoint struct {
	CompanyName        string  `json:"companyName"`
	Day                string  `json:"day"`
	Amount             float64 `json:"amount"`
	InvoiceCount       int     `json:"invoiceCount"`
	TotalCompanyAmount float64 `json:"totalCompanyAmount"`
}

// Distribution is the distribution aggregator output.
type Distribution struct {
	Points           []DistributionPoint `json:"points"`
	OrderedCompanies []string            `json:"orderedCompanies"`
}

// PaymentCycleMetric holds historical payment latency statistics for one
// (department, company) pair.
type PaymentCycleMetric struct {
	Department   string  `json:"department"`
	CompanyName  string  `json:"companyName"`
	InvoiceCount int     `json:"invoiceCount"`
	TotalAmount  float64 `json:"totalAmount"`
	MedianDays   float64 `json:"medianDays"`
	MinDays      int     `json:"minDays"`
	MaxDays      int     `json:"maxDays"`
	AvgDays      float64 `json:"avgDays"`
}

// PredictedPayment is an unpaid record enriched with its forecast.
type PredictedPayment struct {
	PurchaseRecord
	HasHistory    bool    `json:"hasHistory"`
	MedianDays    float64 `json:"medianDays"`
	PredictedDate string  `json:"predictedDate"`
	IsDueThisWeek bool    `json:"isDueThisWeek"`
	UnpaidAmount  float64 `json:"unpaidAmount"`
}

// ForecastSummary aggregates the amounts predicted due this week.
type ForecastSummary struct {
	WeekEnd          string                        `json:"weekEnd"`
	TotalDueThisWeek float64                       `json:"totalDueThisWeek"`
	ByDept           map[string]float64            `json:"byDept"`
	ByDeptCompany    map[string]map[string]float64 `json:"byDeptCompany"`
	AllRecords       []PredictedPayment            `json:"allRecords"`
}

// UnpaidSummary aggregates outstanding balances.
type UnpaidSummary struct {
	TotalUnpaid   float64                       `json:"totalUnpaid"`
	ByDepartment  map[string]float64            `json:"byDepartment"`
	ByDeptCompany map[string]map[string]float64 `json:"byDeptCompany"`
	Details       []PurchaseRecord              `json:"details"`
}

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

// String returns a pointer to v.
func String(v string) *string { return &v }

// Int returns a pointer to v.
func Int(v int) *int { return &v }

func floatOr(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

func stringOr(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
