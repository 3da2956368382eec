package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/odyssey-erp/paydash/internal/ingest"
)

// Importer stores a workbook synchronously.
type Importer interface {
	Import(ctx context.Context, req ingest.Request) (ingest.Summary, error)
}

// ImportOptions defines available flags for the import command.
type ImportOptions struct {
	File       string
	Replace    bool
	JSONOutput bool
	Stdout     io.Writer
	Stderr     io.Writer
}

// Exit codes returned by ImportCommand.
const (
	ExitOK         = 0
	ExitFailure    = 1
	ExitInvalidXLS = 2
)

// ImportCommand loads a local workbook into the ledger store.
func ImportCommand(ctx context.Context, importer Importer, opts ImportOptions) int {
	stdout, stderr := writers(opts.Stdout, opts.Stderr)
	if opts.File == "" {
		_, _ = fmt.Fprintln(stderr, "import: --file is required")
		return ExitFailure
	}
	if _, ok := ingest.ContentType(opts.File); !ok {
		_, _ = fmt.Fprintf(stderr, "import: %s is not an excel workbook\n", opts.File)
		return ExitInvalidXLS
	}
	content, err := os.ReadFile(opts.File)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "import: %v\n", err)
		return ExitFailure
	}

	summary, err := importer.Import(ctx, ingest.Request{
		Filename: filepath.Base(opts.File),
		Replace:  opts.Replace,
		Content:  content,
	})
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "import: %v\n", err)
		if ingest.IsInputError(err) {
			return ExitInvalidXLS
		}
		return ExitFailure
	}

	if opts.JSONOutput {
		if err := json.NewEncoder(stdout).Encode(summary); err != nil {
			_, _ = fmt.Fprintf(stderr, "import: encode json: %v\n", err)
			return ExitFailure
		}
		return ExitOK
	}
	_, _ = fmt.Fprintf(stdout, "batch %s: %d rows stored (%d parsed, %d blank)", summary.BatchID, summary.Inserted, summary.Parsed, summary.Blank)
	if summary.Replaced {
		_, _ = fmt.Fprint(stdout, ", previous rows replaced")
	}
	_, _ = fmt.Fprintln(stdout)
	for _, w := range summary.Warnings {
		_, _ = fmt.Fprintf(stdout, "  warning: %s\n", w)
	}
	return ExitOK
}
