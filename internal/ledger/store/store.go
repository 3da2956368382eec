// Package store persists purchase ledger rows in PostgreSQL.
package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/paydash/internal/ledger"
	"github.com/odyssey-erp/paydash/internal/platform/db"
)

const (
	// PageSize is the number of rows fetched per round trip.
	PageSize = 1000
	// ChunkSize is the number of rows per INSERT statement.
	ChunkSize = 100
)

const schema = `
CREATE TABLE IF NOT EXISTS finance_data (
	id                       TEXT PRIMARY KEY,
	company_name             TEXT NOT NULL DEFAULT '',
	department               TEXT NOT NULL DEFAULT '',
	invoice_number           TEXT NOT NULL DEFAULT '',
	invoice_date             TEXT,
	invoice_amount           DOUBLE PRECISION,
	tps                      DOUBLE PRECISION NOT NULL DEFAULT 0,
	tvq                      DOUBLE PRECISION NOT NULL DEFAULT 0,
	net_amount               DOUBLE PRECISION NOT NULL DEFAULT 0,
	check_number             TEXT,
	clear_flag               TEXT NOT NULL DEFAULT '',
	actual_paid_amount       DOUBLE PRECISION,
	check_total_amount       DOUBLE PRECISION,
	check_date               TEXT,
	check_mailed_date        TEXT,
	bank_reconciliation_date TEXT,
	bank_reconciliation_note TEXT,
	difference               DOUBLE PRECISION NOT NULL DEFAULT 0,
	remarks                  TEXT,
	import_batch             TEXT NOT NULL DEFAULT '',
	imported_at              TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS finance_data_imported_at_idx ON finance_data (imported_at, id);
CREATE TABLE IF NOT EXISTS admin_audit (
	id          BIGSERIAL PRIMARY KEY,
	actor       TEXT NOT NULL,
	action      TEXT NOT NULL,
	batch_id    TEXT NOT NULL DEFAULT '',
	detail      JSONB NOT NULL DEFAULT '{}',
	occurred_at TIMESTAMPTZ NOT NULL DEFAULT now()
);`

var columns = []string{
	"id", "company_name", "department", "invoice_number", "invoice_date", "invoice_amount",
	"tps", "tvq", "net_amount", "check_number", "clear_flag", "actual_paid_amount",
	"check_total_amount", "check_date", "check_mailed_date", "bank_reconciliation_date",
	"bank_reconciliation_note", "difference", "remarks", "import_batch",
}

// Batch is one import request.
type Batch struct {
	ID      string
	Records []ledger.PurchaseRecord
	Replace bool
}

// ImportInfo describes the most recent import batch.
type ImportInfo struct {
	BatchID    string    `json:"batchId"`
	Rows       int64     `json:"rows"`
	ImportedAt time.Time `json:"importedAt"`
}

// Store is the pgx backed record repository.
type Store struct {
	pool *pgxpool.Pool
}

// New constructs a Store.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// EnsureSchema creates the finance_data and admin_audit tables when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("store: ensure schema: %w", err)
	}
	return nil
}

// ListRecords reads every row page by page, stopping on a short page.
func (s *Store) ListRecords(ctx context.Context) ([]ledger.PurchaseRecord, error) {
	query := "SELECT " + strings.Join(columns[:len(columns)-1], ", ") +
		" FROM finance_data ORDER BY imported_at, id LIMIT $1 OFFSET $2"

	records := make([]ledger.PurchaseRecord, 0, PageSize)
	for offset := 0; ; offset += PageSize {
		rows, err := s.pool.Query(ctx, query, PageSize, offset)
		if err != nil {
			return nil, fmt.Errorf("store: list records: %w", err)
		}
		page, err := pgx.CollectRows(rows, scanRecord)
		if err != nil {
			return nil, fmt.Errorf("store: scan records: %w", err)
		}
		records = append(records, page...)
		if len(page) < PageSize {
			return records, nil
		}
	}
}

func scanRecord(row pgx.CollectableRow) (ledger.PurchaseRecord, error) {
	var rec ledger.PurchaseRecord
	var invoiceDate *string
	err := row.Scan(
		&rec.ID, &rec.CompanyName, &rec.Department, &rec.InvoiceNumber, &invoiceDate, &rec.InvoiceAmount,
		&rec.TPS, &rec.TVQ, &rec.NetAmount, &rec.CheckNumber, &rec.ClearFlag, &rec.ActualPaidAmount,
		&rec.CheckTotalAmount, &rec.CheckDate, &rec.CheckMailedDate, &rec.BankReconciliationDate,
		&rec.BankReconciliationNote, &rec.Difference, &rec.Remarks,
	)
	if invoiceDate != nil {
		rec.InvoiceDate = *invoiceDate
	}
	return rec, err
}

// InsertRecords writes the batch in chunks inside one transaction, deleting
// existing rows first when Replace is set. It returns the inserted row count.
func (s *Store) InsertRecords(ctx context.Context, batch Batch) (int, error) {
	inserted := 0
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		if batch.Replace {
			if _, err := tx.Exec(ctx, "DELETE FROM finance_data"); err != nil {
				return fmt.Errorf("store: clear before replace: %w", err)
			}
		}
		for _, chunk := range chunks(batch.Records, ChunkSize) {
			query, args := insertStatement(batch.ID, chunk)
			tag, err := tx.Exec(ctx, query, args...)
			if err != nil {
				return fmt.Errorf("store: insert chunk at row %d: %w", inserted, err)
			}
			inserted += int(tag.RowsAffected())
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

// DeleteAll removes every row and reports how many were deleted.
func (s *Store) DeleteAll(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, "DELETE FROM finance_data")
	if err != nil {
		return 0, fmt.Errorf("store: delete all: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Count returns the number of stored rows.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, "SELECT count(*) FROM finance_data").Scan(&n); err != nil {
		return 0, fmt.Errorf("store: count: %w", err)
	}
	return n, nil
}

// LastImport returns the newest import batch, or a zero value when empty.
func (s *Store) LastImport(ctx context.Context) (ImportInfo, error) {
	const query = `SELECT import_batch, count(*), max(imported_at) FROM finance_data
GROUP BY import_batch ORDER BY max(imported_at) DESC LIMIT 1`
	var info ImportInfo
	err := s.pool.QueryRow(ctx, query).Scan(&info.BatchID, &info.Rows, &info.ImportedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ImportInfo{}, nil
	}
	if err != nil {
		return ImportInfo{}, fmt.Errorf("store: last import: %w", err)
	}
	return info, nil
}

func chunks(records []ledger.PurchaseRecord, size int) [][]ledger.PurchaseRecord {
	if size <= 0 {
		size = ChunkSize
	}
	out := make([][]ledger.PurchaseRecord, 0, (len(records)+size-1)/size)
	for start := 0; start < len(records); start += size {
		end := start + size
		if end > len(records) {
			end = len(records)
		}
		out = append(out, records[start:end])
	}
	return out
}

func insertStatement(batchID string, records []ledger.PurchaseRecord) (string, []any) {
	var b strings.Builder
	b.WriteString("INSERT INTO finance_data (")
	b.WriteString(strings.Join(columns, ", "))
	b.WriteString(") VALUES ")

	args := make([]any, 0, len(records)*len(columns))
	for i, rec := range records {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for j := range columns {
			if j > 0 {
				b.WriteString(", ")
			}
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(i*len(columns) + j + 1))
		}
		b.WriteByte(')')
		args = append(args, recordArgs(batchID, rec)...)
	}
	return b.String(), args
}

func recordArgs(batchID string, rec ledger.PurchaseRecord) []any {
	var invoiceDate *string
	if rec.InvoiceDate != "" {
		invoiceDate = &rec.InvoiceDate
	}
	return []any{
		rec.ID, rec.CompanyName, rec.Department, rec.InvoiceNumber, invoiceDate, rec.InvoiceAmount,
		rec.TPS, rec.TVQ, rec.NetAmount, rec.CheckNumber, rec.ClearFlag, rec.ActualPaidAmount,
		rec.CheckTotalAmount, rec.CheckDate, rec.CheckMailedDate, rec.BankReconciliationDate,
		rec.BankReconciliationNote, rec.Difference, rec.Remarks, batchID,
	}
}
