package ledger

import "strings"

// Infer drops excluded vendors and void entries, settles overdue auto-pay
// invoices, and derives Unpaid and PaymentDays for the remaining records.
func (e Engine) Infer(records []PurchaseRecord) []PurchaseRecord {
	out := make([]PurchaseRecord, 0, len(records))
	for _, rec := range records {
		if e.policy.excluded(rec.CompanyName) {
			continue
		}
		if rec.Amount() == 0 && rec.Paid() == 0 {
			continue
		}
		out = append(out, e.inferOne(rec))
	}
	return out
}

func (e Engine) inferOne(rec PurchaseRecord) PurchaseRecord {
	invoiceDay, _ := e.day(rec.InvoiceDate)

	if e.isAutoPay(rec.CompanyName) && !rec.HasCheckDate() {
		due := invoiceDay.AddDate(0, 0, e.policy.AutoPayWindowDays)
		if due.Before(e.today) {
			rec = rec.WithSettlement(formatDay(due), rec.Amount())
		}
	}

	rec.Unpaid = Float(rec.Amount() - rec.Paid())

	rec.PaymentDays = nil
	if rec.HasCheckDate() && rec.InvoiceDate != "" {
		checkDay, _ := e.day(*rec.CheckDate)
		rec.PaymentDays = Int(daysBetween(invoiceDay, checkDay))
	}
	return rec
}

func (e Engine) isAutoPay(company string) bool {
	return strings.HasSuffix(strings.TrimSpace(company), e.policy.AutoPayMarker)
}
