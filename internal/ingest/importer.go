package ingest

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/paydash/internal/ledger/store"
)

// Sink persists parsed batches.
type Sink interface {
	InsertRecords(ctx context.Context, batch store.Batch) (int, error)
}

// Invalidator drops cached dashboard views after a data change.
type Invalidator interface {
	Bump(ctx context.Context) error
}

// Request is one workbook upload.
type Request struct {
	BatchID  string
	Filename string
	Replace  bool
	Content  []byte
}

// Summary reports what an import did.
type Summary struct {
	BatchID  string        `json:"batchId"`
	Parsed   int           `json:"parsed"`
	Inserted int           `json:"inserted"`
	Blank    int           `json:"blank"`
	Replaced bool          `json:"replaced"`
	Warnings []string      `json:"warnings"`
	Duration time.Duration `json:"duration"`
}

// Importer parses workbooks and stores their rows.
type Importer struct {
	parser *Parser
	sink   Sink
	cache  Invalidator
	logger *slog.Logger
}

// NewImporter wires the importer. cache may be nil.
func NewImporter(parser *Parser, sink Sink, cache Invalidator, logger *slog.Logger) *Importer {
	if parser == nil {
		parser = NewParser("")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{parser: parser, sink: sink, cache: cache, logger: logger}
}

// Import parses the workbook and writes its rows in one transaction.
func (i *Importer) Import(ctx context.Context, req Request) (Summary, error) {
	start := time.Now()
	if req.BatchID == "" {
		req.BatchID = uuid.NewString()
	}
	logger := i.logger.With(slog.String("batch_id", req.BatchID), slog.String("filename", req.Filename))

	parsed, err := i.parser.Parse(bytes.NewReader(req.Content), req.Filename)
	if err != nil {
		return Summary{}, err
	}
	for _, w := range parsed.Warnings {
		logger.Warn("import cell", slog.String("detail", w))
	}

	inserted, err := i.sink.InsertRecords(ctx, store.Batch{ID: req.BatchID, Records: parsed.Records, Replace: req.Replace})
	if err != nil {
		return Summary{}, fmt.Errorf("ingest: store batch: %w", err)
	}
	if i.cache != nil {
		if err := i.cache.Bump(ctx); err != nil {
			logger.Warn("cache bump after import", slog.Any("error", err))
		}
	}

	summary := Summary{
		BatchID:  req.BatchID,
		Parsed:   len(parsed.Records),
		Inserted: inserted,
		Blank:    parsed.Blank,
		Replaced: req.Replace,
		Warnings: parsed.Warnings,
		Duration: time.Since(start),
	}
	if summary.Warnings == nil {
		summary.Warnings = []string{}
	}
	logger.Info("import complete", slog.Int("rows", inserted), slog.Bool("replace", req.Replace), slog.Duration("duration", summary.Duration))
	return summary, nil
}
