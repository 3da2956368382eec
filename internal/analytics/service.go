package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/odyssey-erp/paydash/internal/ledger"
)

// RecordSource exposes the stored ledger rows.
type RecordSource interface {
	ListRecords(ctx context.Context) ([]ledger.PurchaseRecord, error)
}

// Observer receives data-quality facts about each prepared snapshot.
type Observer interface {
	ObserveSnapshot(stats ledger.SnapshotStats, issues []ledger.DateIssue)
}

// Service computes dashboard views from stored records. Each call builds one
// ledger.Engine so every view in a request shares the same "today".
type Service struct {
	source   RecordSource
	cache    *Cache
	policy   ledger.Policy
	logger   *slog.Logger
	observer Observer
	now      func() time.Time
	loads    singleflight.Group
	gen      atomic.Int64

	reportMu sync.Mutex
	reported string
}

// NewService wires a RecordSource with a Cache helper.
func NewService(source RecordSource, cache *Cache, policy ledger.Policy) *Service {
	return &Service{
		source: source,
		cache:  cache,
		policy: policy,
		logger: slog.Default(),
		now:    time.Now,
	}
}

// WithLogger sets the service logger.
func (s *Service) WithLogger(logger *slog.Logger) *Service {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// WithObserver registers a snapshot observer.
func (s *Service) WithObserver(o Observer) *Service {
	s.observer = o
	return s
}

// WithNow overrides the service clock for testing.
func (s *Service) WithNow(fn func() time.Time) *Service {
	if fn != nil {
		s.now = fn
	}
	return s
}

// Engine returns an engine bound to the current clock.
func (s *Service) Engine() ledger.Engine {
	return ledger.NewEngine(s.policy, s.now())
}

// Invalidate bumps the cache version. Loads already in flight keep their old
// data key, so later callers never join them.
func (s *Service) Invalidate(ctx context.Context) error {
	s.gen.Add(1)
	return s.cache.Bump(ctx)
}

// Bump satisfies ingest.Invalidator.
func (s *Service) Bump(ctx context.Context) error {
	return s.Invalidate(ctx)
}

// dataKey names one version of the stored ledger as seen on one day.
func (s *Service) dataKey(engine ledger.Engine, version int64) string {
	return fmt.Sprintf("snapshot:%s:%d:%d", engine.Today().Format(ledger.DayLayout), version, s.gen.Load())
}

// snapshot loads and prepares the records once per data key across concurrent
// callers.
func (s *Service) snapshot(ctx context.Context, engine ledger.Engine, dataKey string) (ledger.Snapshot, error) {
	v, err, _ := s.loads.Do(dataKey, func() (interface{}, error) {
		raw, err := s.source.ListRecords(ctx)
		if err != nil {
			return nil, fmt.Errorf("analytics: load records: %w", err)
		}
		snap := engine.Prepare(raw)
		if s.firstSeen(dataKey) {
			s.report(snap)
		}
		return snap, nil
	})
	if err != nil {
		return ledger.Snapshot{}, err
	}
	return v.(ledger.Snapshot), nil
}

// firstSeen reports whether dataKey differs from the last reported one, so
// date fallbacks are logged and counted once per ledger version and day.
func (s *Service) firstSeen(dataKey string) bool {
	s.reportMu.Lock()
	defer s.reportMu.Unlock()
	if s.reported == dataKey {
		return false
	}
	s.reported = dataKey
	return true
}

func (s *Service) report(snap ledger.Snapshot) {
	for _, issue := range snap.Issues {
		s.logger.Warn("unparseable date, using today",
			slog.String("record_id", issue.RecordID),
			slog.String("field", string(issue.Field)),
			slog.String("value", issue.Value))
	}
	if s.observer != nil {
		s.observer.ObserveSnapshot(snap.Stats, snap.Issues)
	}
}

func (s *Service) fetch(ctx context.Context, engine ledger.Engine, dest interface{}, parts []string, compute func(ledger.Snapshot) interface{}) error {
	version, err := s.cache.Version(ctx)
	if err != nil {
		return fmt.Errorf("analytics: cache version: %w", err)
	}
	key := s.cache.KeyAt(version, parts...)
	dataKey := s.dataKey(engine, version)
	return s.cache.FetchJSON(ctx, key, dest, func(ctx context.Context) (interface{}, error) {
		snap, err := s.snapshot(ctx, engine, dataKey)
		if err != nil {
			return nil, err
		}
		return compute(snap), nil
	})
}

// Defaults returns the initial dashboard selections.
func (s *Service) Defaults(ctx context.Context) (ledger.DashboardDefaults, error) {
	return s.defaults(ctx, s.Engine())
}

func (s *Service) defaults(ctx context.Context, engine ledger.Engine) (ledger.DashboardDefaults, error) {
	var out ledger.DashboardDefaults
	err := s.fetch(ctx, engine, &out, viewKey("defaults", engine.Today()), func(snap ledger.Snapshot) interface{} {
		return engine.Defaults(snap.Cleaned)
	})
	return out, err
}

// Monthly returns the monthly summary for the basis.
func (s *Service) Monthly(ctx context.Context, basis ledger.Basis) ([]ledger.MonthlySummary, error) {
	return s.monthly(ctx, s.Engine(), basis)
}

func (s *Service) monthly(ctx context.Context, engine ledger.Engine, basis ledger.Basis) ([]ledger.MonthlySummary, error) {
	var out []ledger.MonthlySummary
	err := s.fetch(ctx, engine, &out, viewKey("monthly", engine.Today(), string(basis)), func(snap ledger.Snapshot) interface{} {
		return engine.MonthlySummary(snap.Records(basis), basis)
	})
	return out, err
}

// Weekly returns weekly summaries, restricted to month when given.
func (s *Service) Weekly(ctx context.Context, basis ledger.Basis, month string) ([]ledger.WeeklySummary, error) {
	return s.weekly(ctx, s.Engine(), basis, month)
}

func (s *Service) weekly(ctx context.Context, engine ledger.Engine, basis ledger.Basis, month string) ([]ledger.WeeklySummary, error) {
	var out []ledger.WeeklySummary
	err := s.fetch(ctx, engine, &out, viewKey("weekly", engine.Today(), string(basis), month), func(snap ledger.Snapshot) interface{} {
		return engine.WeeklySummary(snap.Records(basis), basis, month)
	})
	return out, err
}

// Distribution returns the per-company daily distribution.
func (s *Service) Distribution(ctx context.Context, q ledger.DistributionQuery) (ledger.Distribution, error) {
	return s.distribution(ctx, s.Engine(), q)
}

func (s *Service) distribution(ctx context.Context, engine ledger.Engine, q ledger.DistributionQuery) (ledger.Distribution, error) {
	companies := append([]string(nil), q.Companies...)
	sort.Strings(companies)
	parts := viewKey("distribution", engine.Today(), string(q.Basis), q.Department, strings.Join(companies, ","), q.Start, q.End)

	var out ledger.Distribution
	err := s.fetch(ctx, engine, &out, parts, func(snap ledger.Snapshot) interface{} {
		return engine.Distribution(snap.Records(q.Basis), q)
	})
	return out, err
}

// CycleMetrics returns payment latency statistics.
func (s *Service) CycleMetrics(ctx context.Context) ([]ledger.PaymentCycleMetric, error) {
	return s.cycles(ctx, s.Engine())
}

func (s *Service) cycles(ctx context.Context, engine ledger.Engine) ([]ledger.PaymentCycleMetric, error) {
	var out []ledger.PaymentCycleMetric
	err := s.fetch(ctx, engine, &out, viewKey("cycles", engine.Today()), func(snap ledger.Snapshot) interface{} {
		return engine.CycleMetrics(snap.Processed)
	})
	return out, err
}

// Forecast returns the payment forecast for the current week.
func (s *Service) Forecast(ctx context.Context) (ledger.ForecastSummary, error) {
	return s.forecast(ctx, s.Engine())
}

func (s *Service) forecast(ctx context.Context, engine ledger.Engine) (ledger.ForecastSummary, error) {
	var out ledger.ForecastSummary
	err := s.fetch(ctx, engine, &out, viewKey("forecast", engine.Today()), func(snap ledger.Snapshot) interface{} {
		_, summary := engine.ForecastSnapshot(snap)
		return summary
	})
	return out, err
}

// Unpaid returns the outstanding balance summary.
func (s *Service) Unpaid(ctx context.Context) (ledger.UnpaidSummary, error) {
	return s.unpaid(ctx, s.Engine())
}

func (s *Service) unpaid(ctx context.Context, engine ledger.Engine) (ledger.UnpaidSummary, error) {
	var out ledger.UnpaidSummary
	err := s.fetch(ctx, engine, &out, viewKey("unpaid", engine.Today()), func(snap ledger.Snapshot) interface{} {
		return engine.UnpaidSummary(snap.Processed)
	})
	return out, err
}

// Stats returns the row counts of the current snapshot.
func (s *Service) Stats(ctx context.Context) (ledger.SnapshotStats, error) {
	engine := s.Engine()
	var out ledger.SnapshotStats
	err := s.fetch(ctx, engine, &out, viewKey("stats", engine.Today()), func(snap ledger.Snapshot) interface{} {
		return snap.Stats
	})
	return out, err
}

// OverviewQuery selects the parameterised views of an overview. Empty Month
// and Department fall back to the dashboard defaults.
type OverviewQuery struct {
	Basis      ledger.Basis
	Month      string
	Department string
	Companies  []string
	Start      string
	End        string
}

// Overview bundles every dashboard view computed under one clock.
type Overview struct {
	Today        string                      `json:"today"`
	Basis        ledger.Basis                `json:"basis"`
	Month        string                      `json:"month"`
	Department   string                      `json:"department"`
	Defaults     ledger.DashboardDefaults    `json:"defaults"`
	Monthly      []ledger.MonthlySummary     `json:"monthly"`
	Weekly       []ledger.WeeklySummary      `json:"weekly"`
	Distribution ledger.Distribution         `json:"distribution"`
	Cycles       []ledger.PaymentCycleMetric `json:"cycles"`
	Forecast     ledger.ForecastSummary      `json:"forecast"`
	Unpaid       ledger.UnpaidSummary        `json:"unpaid"`
}

// Overview computes every view concurrently.
func (s *Service) Overview(ctx context.Context, q OverviewQuery) (Overview, error) {
	engine := s.Engine()
	if q.Basis == "" {
		q.Basis = ledger.BasisInvoice
	}

	defaults, err := s.defaults(ctx, engine)
	if err != nil {
		return Overview{}, err
	}
	if q.Month == "" {
		q.Month = defaults.SelectedMonth
	}
	if q.Department == "" {
		q.Department = defaults.SelectedDepartment
	}

	out := Overview{
		Today:      engine.Today().Format(ledger.DayLayout),
		Basis:      q.Basis,
		Month:      q.Month,
		Department: q.Department,
		Defaults:   defaults,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		v, err := s.monthly(gctx, engine, q.Basis)
		out.Monthly = v
		return err
	})
	g.Go(func() error {
		v, err := s.weekly(gctx, engine, q.Basis, q.Month)
		out.Weekly = v
		return err
	})
	g.Go(func() error {
		v, err := s.distribution(gctx, engine, ledger.DistributionQuery{
			Basis:      q.Basis,
			Department: q.Department,
			Companies:  q.Companies,
			Start:      q.Start,
			End:        q.End,
		})
		out.Distribution = v
		return err
	})
	g.Go(func() error {
		v, err := s.cycles(gctx, engine)
		out.Cycles = v
		return err
	})
	g.Go(func() error {
		v, err := s.forecast(gctx, engine)
		out.Forecast = v
		return err
	})
	g.Go(func() error {
		v, err := s.unpaid(gctx, engine)
		out.Unpaid = v
		return err
	})
	if err := g.Wait(); err != nil {
		return Overview{}, err
	}
	return out, nil
}
