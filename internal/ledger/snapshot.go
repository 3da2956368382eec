package ledger

// Snapshot holds both pipeline stages for one set of raw records: Cleaned
// feeds invoice-basis views, Processed feeds payment, cycle and forecast views.
type Snapshot struct {
	Cleaned   []PurchaseRecord
	Processed []PurchaseRecord
	Issues    []DateIssue
	Stats     SnapshotStats
}

// SnapshotStats counts the rows removed by each stage.
type SnapshotStats struct {
	Raw        int `json:"raw"`
	Dropped    int `json:"dropped"`
	Excluded   int `json:"excluded"`
	Processed  int `json:"processed"`
	DateIssues int `json:"dateIssues"`
}

// Prepare runs Normalize then Infer and collects date diagnostics.
func (e Engine) Prepare(raw []PurchaseRecord) Snapshot {
	cleaned := e.Normalize(raw)
	processed := e.Infer(cleaned)
	issues := e.DateIssues(cleaned)
	return Snapshot{
		Cleaned:   cleaned,
		Processed: processed,
		Issues:    issues,
		Stats: SnapshotStats{
			Raw:        len(raw),
			Dropped:    len(raw) - len(cleaned),
			Excluded:   len(cleaned) - len(processed),
			Processed:  len(processed),
			DateIssues: len(issues),
		},
	}
}

// Records returns the stage matching the basis.
func (s Snapshot) Records(basis Basis) []PurchaseRecord {
	if basis == BasisPayment {
		return s.Processed
	}
	return s.Cleaned
}

// ForecastSnapshot computes cycle metrics and the forecast from the processed
// stage.
func (e Engine) ForecastSnapshot(s Snapshot) ([]PaymentCycleMetric, ForecastSummary) {
	metrics := e.CycleMetrics(s.Processed)
	return metrics, e.Forecast(s.Processed, metrics)
}
