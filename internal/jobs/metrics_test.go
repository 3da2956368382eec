package jobmetrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestTrackerRecordsOutcome(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	if err := metrics.Track("ledger_import").End(nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	boom := errors.New("boom")
	if err := metrics.Track("ledger_import").End(boom); !errors.Is(err, boom) {
		t.Fatalf("expected error to be returned untouched, got %v", err)
	}

	if got := testutil.ToFloat64(metrics.runs.WithLabelValues("ledger_import", "success")); got != 1 {
		t.Fatalf("expected 1 success, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.runs.WithLabelValues("ledger_import", "failure")); got != 1 {
		t.Fatalf("expected 1 failure, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.failures.WithLabelValues("ledger_import")); got != 1 {
		t.Fatalf("expected failure counter 1, got %v", got)
	}
}

func TestAddImported(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())
	metrics.AddImported("replace", 120)
	metrics.AddImported("", 5)
	metrics.AddImported("append", 0)

	if got := testutil.ToFloat64(metrics.imported.WithLabelValues("replace")); got != 120 {
		t.Fatalf("expected 120 replaced rows, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.imported.WithLabelValues("append")); got != 5 {
		t.Fatalf("expected 5 appended rows, got %v", got)
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var metrics *Metrics
	metrics.AddImported("append", 3)
	if err := metrics.Track("noop").End(nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
