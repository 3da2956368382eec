package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/paydash/internal/ingest"
	jobmetrics "github.com/odyssey-erp/paydash/internal/jobs"
)

// LedgerImporter stores a parsed workbook.
type LedgerImporter interface {
	Import(ctx context.Context, req ingest.Request) (ingest.Summary, error)
}

// LedgerImportJob processes queued workbook uploads.
type LedgerImportJob struct {
	Importer LedgerImporter
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
}

// NewLedgerImportJob wires dependencies for the import handler.
func NewLedgerImportJob(importer LedgerImporter, logger *slog.Logger, metrics *jobmetrics.Metrics) *LedgerImportJob {
	return &LedgerImportJob{Importer: importer, Logger: logger, Metrics: metrics}
}

// Handle processes ledger import tasks. Payload and workbook errors are not
// retried.
func (j *LedgerImportJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Importer == nil {
		return errors.New("ledger import: handler not configured")
	}
	var payload LedgerImportPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if len(payload.Content) == 0 || (payload.Mode != "" && payload.Mode != ModeAppend && payload.Mode != ModeReplace) {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track("ledger_import")
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.String("batch_id", payload.BatchID), slog.String("filename", payload.Filename))
	logger.Info("starting ledger import", slog.String("mode", payload.Mode), slog.Int("bytes", len(payload.Content)))

	summary, err := j.Importer.Import(ctx, ingest.Request{
		BatchID:  payload.BatchID,
		Filename: payload.Filename,
		Replace:  payload.Replace(),
		Content:  payload.Content,
	})
	if err != nil {
		logger.Error("ledger import", slog.Any("error", err))
		if ingest.IsInputError(err) {
			resultErr = fmt.Errorf("%w: %v", asynq.SkipRetry, err)
			return resultErr
		}
		resultErr = err
		return resultErr
	}

	j.metrics().AddImported(payload.Mode, summary.Inserted)
	logger.Info("completed ledger import", slog.Int("rows", summary.Inserted), slog.Int("warnings", len(summary.Warnings)))
	return resultErr
}

func (j *LedgerImportJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskLedgerImport))
	}
	return slog.Default().With(slog.String("job", TaskLedgerImport))
}

func (j *LedgerImportJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
