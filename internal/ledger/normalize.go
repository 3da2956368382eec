package ledger

import "strings"

// Normalize applies the clear-flag redaction and drops records without an
// invoice amount or invoice date. Input order is preserved.
func (e Engine) Normalize(records []PurchaseRecord) []PurchaseRecord {
	out := make([]PurchaseRecord, 0, len(records))
	for _, rec := range records {
		if rec.ClearFlag == e.policy.ClearFlagValue {
			rec = rec.WithoutPayment()
		}
		if rec.InvoiceAmount == nil || strings.TrimSpace(rec.InvoiceDate) == "" {
			continue
		}
		out = append(out, rec)
	}
	return out
}

// DateField names a date-carrying field of PurchaseRecord.
type DateField string

const (
	// FieldInvoiceDate is PurchaseRecord.InvoiceDate.
	FieldInvoiceDate DateField = "invoice_date"
	// FieldCheckDate is PurchaseRecord.CheckDate.
	FieldCheckDate DateField = "check_date"
)

// DateIssue reports a present but unparseable date that the pipeline will
// silently read as today.
type DateIssue struct {
	RecordID string    `json:"recordId"`
	Field    DateField `json:"field"`
	Value    string    `json:"value"`
}

// DateIssues lists the dates that would trigger the today fallback.
func (e Engine) DateIssues(records []PurchaseRecord) []DateIssue {
	issues := make([]DateIssue, 0)
	for _, rec := range records {
		if v := strings.TrimSpace(rec.InvoiceDate); v != "" {
			if _, ok := parseDay(v); !ok {
				issues = append(issues, DateIssue{RecordID: rec.ID, Field: FieldInvoiceDate, Value: rec.InvoiceDate})
			}
		}
		if rec.HasCheckDate() {
			if _, ok := parseDay(*rec.CheckDate); !ok {
				issues = append(issues, DateIssue{RecordID: rec.ID, Field: FieldCheckDate, Value: *rec.CheckDate})
			}
		}
	}
	return issues
}
