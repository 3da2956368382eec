package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskLedgerImport parses a queued workbook upload and stores its rows.
	TaskLedgerImport = "ledger:import"
	// TaskAnalyticsWarmup recomputes the dashboard views for the current day.
	TaskAnalyticsWarmup = "analytics:warmup"
)

// Import modes carried by LedgerImportPayload.
const (
	ModeAppend  = "append"
	ModeReplace = "replace"
)

// LedgerImportPayload describes one queued workbook.
type LedgerImportPayload struct {
	BatchID  string `json:"batch_id"`
	Filename string `json:"filename"`
	Mode     string `json:"mode"`
	Content  []byte `json:"content"`
}

// Replace reports whether the import should clear existing rows first.
func (p LedgerImportPayload) Replace() bool {
	return p.Mode == ModeReplace
}

// AnalyticsWarmupPayload carries the warm-up trigger context.
type AnalyticsWarmupPayload struct {
	Reason string `json:"reason"`
}

// NewLedgerImportTask constructs an import task.
func NewLedgerImportTask(payload LedgerImportPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLedgerImport, data), nil
}

// NewAnalyticsWarmupTask constructs a warm-up task.
func NewAnalyticsWarmupTask(reason string) (*asynq.Task, error) {
	data, err := json.Marshal(AnalyticsWarmupPayload{Reason: reason})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAnalyticsWarmup, data), nil
}
