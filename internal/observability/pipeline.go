package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/odyssey-erp/paydash/internal/ledger"
)

// Pipeline exposes data-quality metrics of the ledger snapshot.
type Pipeline struct {
	fallbacks *prometheus.CounterVec
	rows      *prometheus.GaugeVec
	lastRun   prometheus.Gauge
	now       func() time.Time
}

// NewPipeline registers the pipeline collectors.
func NewPipeline(registerer prometheus.Registerer) *Pipeline {
	fallbacks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "paydash_ledger_date_fallbacks_total",
		Help: "Present but unparseable dates replaced by the current day, counted once per ledger version and day, by field.",
	}, []string{"field"})
	rows := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "paydash_ledger_rows",
		Help: "Rows in the current ledger version, by pipeline stage.",
	}, []string{"stage"})
	lastRun := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "paydash_ledger_snapshot_timestamp_seconds",
		Help: "Unix time the current ledger version was first prepared.",
	})
	registerer.MustRegister(fallbacks, rows, lastRun)
	return &Pipeline{fallbacks: fallbacks, rows: rows, lastRun: lastRun, now: time.Now}
}

// ObserveSnapshot records the stage sizes and date fallbacks of a snapshot.
func (p *Pipeline) ObserveSnapshot(stats ledger.SnapshotStats, issues []ledger.DateIssue) {
	if p == nil {
		return
	}
	p.rows.WithLabelValues("raw").Set(float64(stats.Raw))
	p.rows.WithLabelValues("dropped").Set(float64(stats.Dropped))
	p.rows.WithLabelValues("excluded").Set(float64(stats.Excluded))
	p.rows.WithLabelValues("processed").Set(float64(stats.Processed))
	for _, issue := range issues {
		p.fallbacks.WithLabelValues(string(issue.Field)).Inc()
	}
	p.lastRun.Set(float64(p.now().Unix()))
}
