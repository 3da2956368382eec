// Package ingest turns uploaded workbooks into ledger records.
package ingest

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/width"

	"github.com/odyssey-erp/paydash/internal/ledger"
)

// DefaultSheet is the worksheet holding the ledger rows.
const DefaultSheet = "数据源"

var (
	// ErrUnsupportedFile is returned for uploads that are not Office Open XML workbooks.
	ErrUnsupportedFile = errors.New("ingest: unsupported file type")
	// ErrSheetNotFound is returned when the workbook lacks the configured sheet.
	ErrSheetNotFound = errors.New("ingest: sheet not found")
	// ErrEmptySheet is returned when the sheet has a header but no data rows.
	ErrEmptySheet = errors.New("ingest: sheet is empty")
)

// IsInputError reports whether err comes from the uploaded file rather than
// from storage, so retrying cannot help.
func IsInputError(err error) bool {
	return errors.Is(err, ErrUnsupportedFile) || errors.Is(err, ErrSheetNotFound) || errors.Is(err, ErrEmptySheet)
}

// Column headers as they appear in the workbook.
const (
	colCompany         = "公司名称"
	colDepartment      = "部门"
	colInvoiceNumber   = "发票号"
	colInvoiceDate     = "发票日期"
	colInvoiceAmount   = "发票金额"
	colTPS             = "TPS"
	colTVQ             = "TVQ"
	colNetAmount       = "税后净值"
	colCheckNumber     = "付款支票号"
	colClearFlag       = "特殊标记清除"
	colPaidAmount      = "实际支付金额"
	colCheckTotal      = "付款支票总额"
	colCheckDate       = "开支票日期"
	colCheckMailedDate = "支票寄出日期"
	colBankDate        = "银行对账日期"
	colBankNote        = "银行对账日期备注"
	colDifference      = "差额"
	colRemarks         = "备注"
)

var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"2006.01.02",
	"2006/1/2",
	"2006-1-2",
	"2006-01-02 15:04:05",
	"2006/01/02 15:04:05",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"01/02/2006",
	"1/2/2006",
	"2 Jan 2006",
	"Jan 2, 2006",
}

// Result is the outcome of parsing one workbook.
type Result struct {
	Records  []ledger.PurchaseRecord
	Blank    int
	Warnings []string
}

// Parser reads ledger rows from a worksheet.
type Parser struct {
	sheet string
	newID func() string
}

// NewParser builds a parser for the named sheet, DefaultSheet when empty.
func NewParser(sheet string) *Parser {
	if strings.TrimSpace(sheet) == "" {
		sheet = DefaultSheet
	}
	return &Parser{sheet: sheet, newID: uuid.NewString}
}

// Sheet returns the worksheet title the parser looks for.
func (p *Parser) Sheet() string {
	return p.sheet
}

// Parse reads every non-blank row of the configured sheet. Header cells are
// matched after trimming and width folding.
func (p *Parser) Parse(r io.Reader, filename string) (Result, error) {
	if filename != "" {
		if _, ok := ContentType(filename); !ok {
			return Result{}, fmt.Errorf("%w: %s", ErrUnsupportedFile, filepath.Ext(filename))
		}
	}
	f, err := excelize.OpenReader(r)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrUnsupportedFile, err)
	}
	defer func() { _ = f.Close() }()

	if idx, err := f.GetSheetIndex(p.sheet); err != nil || idx < 0 {
		return Result{}, fmt.Errorf("%w: %q", ErrSheetNotFound, p.sheet)
	}
	rows, err := f.GetRows(p.sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return Result{}, fmt.Errorf("ingest: read rows: %w", err)
	}
	if len(rows) < 2 {
		return Result{}, ErrEmptySheet
	}

	header := indexHeader(rows[0])
	res := Result{Records: make([]ledger.PurchaseRecord, 0, len(rows)-1)}
	for i, cells := range rows[1:] {
		if blankRow(cells) {
			res.Blank++
			continue
		}
		row := sheetRow{header: header, cells: cells, line: i + 2}
		res.Records = append(res.Records, p.record(&row))
		res.Warnings = append(res.Warnings, row.warnings...)
	}
	if len(res.Records) == 0 {
		return Result{}, ErrEmptySheet
	}
	return res, nil
}

func (p *Parser) record(row *sheetRow) ledger.PurchaseRecord {
	return ledger.PurchaseRecord{
		ID:                     p.newID(),
		CompanyName:            row.text(colCompany),
		Department:             row.text(colDepartment),
		InvoiceNumber:          row.text(colInvoiceNumber),
		InvoiceDate:            stringOr(row.date(colInvoiceDate)),
		InvoiceAmount:          ledger.Float(row.number(colInvoiceAmount)),
		TPS:                    row.number(colTPS),
		TVQ:                    row.number(colTVQ),
		NetAmount:              row.number(colNetAmount),
		CheckNumber:            row.optional(colCheckNumber),
		ClearFlag:              row.text(colClearFlag),
		ActualPaidAmount:       ledger.Float(row.number(colPaidAmount)),
		CheckTotalAmount:       ledger.Float(row.number(colCheckTotal)),
		CheckDate:              row.date(colCheckDate),
		CheckMailedDate:        row.date(colCheckMailedDate),
		BankReconciliationDate: row.date(colBankDate),
		BankReconciliationNote: row.optional(colBankNote),
		Difference:             row.number(colDifference),
		Remarks:                row.optional(colRemarks),
	}
}

type sheetRow struct {
	header   map[string]int
	cells    []string
	line     int
	warnings []string
}

func (r *sheetRow) raw(col string) string {
	idx, ok := r.header[col]
	if !ok || idx >= len(r.cells) {
		return ""
	}
	return strings.TrimSpace(r.cells[idx])
}

func (r *sheetRow) text(col string) string {
	return r.raw(col)
}

func (r *sheetRow) optional(col string) *string {
	if v := r.raw(col); v != "" {
		return &v
	}
	return nil
}

// number parses a numeric cell; blank or unreadable cells are 0.
func (r *sheetRow) number(col string) float64 {
	v := r.raw(col)
	if v == "" {
		return 0
	}
	d, err := parseDecimal(v)
	if err != nil {
		r.warnings = append(r.warnings, fmt.Sprintf("row %d: %s %q is not a number", r.line, col, v))
		return 0
	}
	return d.InexactFloat64()
}

// date normalises a date cell to YYYY-MM-DD, keeping unparseable text as is.
func (r *sheetRow) date(col string) *string {
	v := r.raw(col)
	if v == "" {
		return nil
	}
	day, ok := normalizeDate(v)
	if !ok {
		r.warnings = append(r.warnings, fmt.Sprintf("row %d: %s %q is not a date", r.line, col, v))
	}
	return &day
}

func normalizeDate(v string) (string, bool) {
	if serial, err := strconv.ParseFloat(v, 64); err == nil {
		if t, err := excelize.ExcelDateToTime(serial, false); err == nil {
			return t.Format(ledger.DayLayout), true
		}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.Format(ledger.DayLayout), true
		}
	}
	return v, false
}

func parseDecimal(v string) (decimal.Decimal, error) {
	cleaned := strings.NewReplacer(",", "", "$", "", " ", "").Replace(v)
	if strings.HasPrefix(cleaned, "(") && strings.HasSuffix(cleaned, ")") {
		cleaned = "-" + strings.Trim(cleaned, "()")
	}
	return decimal.NewFromString(cleaned)
}

func indexHeader(cells []string) map[string]int {
	header := make(map[string]int, len(cells))
	for i, cell := range cells {
		name := foldHeader(cell)
		if name == "" {
			continue
		}
		if _, dup := header[name]; !dup {
			header[name] = i
		}
	}
	return header
}

func foldHeader(cell string) string {
	return strings.TrimSpace(width.Narrow.String(strings.TrimSpace(cell)))
}

func blankRow(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func stringOr(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
