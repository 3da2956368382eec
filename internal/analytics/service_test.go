package analytics

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/paydash/internal/ledger"
)

var testNow = time.Date(2024, 3, 14, 9, 0, 0, 0, time.UTC)

type stubSource struct {
	mu      sync.Mutex
	records []ledger.PurchaseRecord
	err     error
	calls   int
}

func (s *stubSource) ListRecords(ctx context.Context) ([]ledger.PurchaseRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return append([]ledger.PurchaseRecord(nil), s.records...), nil
}

func (s *stubSource) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type recordingObserver struct {
	mu     sync.Mutex
	issues int
	stats  []ledger.SnapshotStats
}

func (o *recordingObserver) ObserveSnapshot(stats ledger.SnapshotStats, issues []ledger.DateIssue) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.issues += len(issues)
	o.stats = append(o.stats, stats)
}

func sampleRecords() []ledger.PurchaseRecord {
	paid := func(id, company, dept, invoice string, amount float64, check string) ledger.PurchaseRecord {
		return ledger.PurchaseRecord{
			ID: id, CompanyName: company, Department: dept, InvoiceDate: invoice,
			InvoiceAmount: ledger.Float(amount), ActualPaidAmount: ledger.Float(amount),
			CheckTotalAmount: ledger.Float(amount), CheckDate: ledger.String(check),
		}
	}
	open := func(id, company, dept, invoice string, amount float64) ledger.PurchaseRecord {
		return ledger.PurchaseRecord{ID: id, CompanyName: company, Department: dept, InvoiceDate: invoice, InvoiceAmount: ledger.Float(amount)}
	}
	return []ledger.PurchaseRecord{
		paid("1", "Sysco", "杂货", "2024-01-02", 100, "2024-01-09"),
		paid("2", "Sysco", "杂货", "2024-02-01", 200, "2024-02-08"),
		open("3", "Sysco", "杂货", "2024-03-08", 300),
		open("4", "Metro", "菜部", "2024-03-11", 50),
		open("5", "SLEEMAN", "酒水", "2024-03-01", 75),
		open("6", "Auto*", "杂货", "2024-02-20", 40),
		{ID: "7", CompanyName: "Broken", Department: "杂货", InvoiceDate: "2024-03-01", InvoiceAmount: ledger.Float(10), CheckDate: ledger.String("someday"), ActualPaidAmount: ledger.Float(10)},
	}
}

func newTestService(t *testing.T, source RecordSource) (*Service, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	svc := NewService(source, NewCache(client, time.Minute), ledger.DefaultPolicy())
	svc.WithNow(func() time.Time { return testNow })
	return svc, mr
}

func TestMonthlyCachesUntilBump(t *testing.T) {
	source := &stubSource{records: sampleRecords()}
	svc, _ := newTestService(t, source)
	ctx := context.Background()

	months, err := svc.Monthly(ctx, ledger.BasisInvoice)
	if err != nil {
		t.Fatalf("monthly: %v", err)
	}
	if len(months) != 3 {
		t.Fatalf("expected 3 months, got %d", len(months))
	}
	if source.callCount() != 1 {
		t.Fatalf("expected one load, got %d", source.callCount())
	}

	if _, err := svc.Monthly(ctx, ledger.BasisInvoice); err != nil {
		t.Fatalf("monthly cached: %v", err)
	}
	if source.callCount() != 1 {
		t.Fatalf("expected cached result, loads %d", source.callCount())
	}

	if err := svc.Invalidate(ctx); err != nil {
		t.Fatalf("bump: %v", err)
	}
	source.mu.Lock()
	source.records = source.records[:1]
	source.mu.Unlock()

	months, err = svc.Monthly(ctx, ledger.BasisInvoice)
	if err != nil {
		t.Fatalf("monthly after bump: %v", err)
	}
	if len(months) != 1 || source.callCount() != 2 {
		t.Fatalf("expected refreshed single month, got %d months after %d loads", len(months), source.callCount())
	}
}

func TestCacheKeysIncludeToday(t *testing.T) {
	source := &stubSource{records: sampleRecords()}
	svc, _ := newTestService(t, source)
	ctx := context.Background()

	if _, err := svc.Unpaid(ctx); err != nil {
		t.Fatalf("unpaid: %v", err)
	}
	svc.WithNow(func() time.Time { return testNow.AddDate(0, 0, 1) })
	if _, err := svc.Unpaid(ctx); err != nil {
		t.Fatalf("unpaid next day: %v", err)
	}
	if source.callCount() != 2 {
		t.Fatalf("expected a fresh computation for a new day, loads %d", source.callCount())
	}
}

func TestForecastUsesProcessedRecords(t *testing.T) {
	source := &stubSource{records: sampleRecords()}
	svc, _ := newTestService(t, source)

	forecast, err := svc.Forecast(context.Background())
	if err != nil {
		t.Fatalf("forecast: %v", err)
	}
	if forecast.WeekEnd != "2024-03-17" {
		t.Fatalf("unexpected week end %s", forecast.WeekEnd)
	}
	// Sysco median is 7 days: 2024-03-08 + 7 = 2024-03-15 falls due this week.
	if forecast.TotalDueThisWeek != 300 {
		t.Fatalf("expected 300 due, got %.2f", forecast.TotalDueThisWeek)
	}
	for _, p := range forecast.AllRecords {
		if p.CompanyName == "SLEEMAN" || p.CompanyName == "Auto*" {
			t.Fatalf("unexpected record in forecast: %s", p.CompanyName)
		}
	}
}

func TestSnapshotReportsDateIssues(t *testing.T) {
	source := &stubSource{records: sampleRecords()}
	svc, _ := newTestService(t, source)
	observer := &recordingObserver{}
	svc.WithObserver(observer)

	stats, err := svc.Stats(context.Background())
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Raw != 7 || stats.Excluded != 1 || stats.DateIssues != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if observer.issues != 1 || len(observer.stats) != 1 {
		t.Fatalf("observer not notified: %+v", observer)
	}
}

func TestOverviewFillsDefaults(t *testing.T) {
	source := &stubSource{records: sampleRecords()}
	svc, _ := newTestService(t, source)

	overview, err := svc.Overview(context.Background(), OverviewQuery{})
	if err != nil {
		t.Fatalf("overview: %v", err)
	}
	if overview.Today != "2024-03-14" {
		t.Fatalf("unexpected today %s", overview.Today)
	}
	if overview.Month != "2024-03" || overview.Department != "杂货" {
		t.Fatalf("defaults not applied: month=%s department=%s", overview.Month, overview.Department)
	}
	if overview.Basis != ledger.BasisInvoice {
		t.Fatalf("expected invoice basis, got %s", overview.Basis)
	}
	if len(overview.Distribution.OrderedCompanies) == 0 {
		t.Fatalf("expected distribution companies")
	}
	if overview.Cycles == nil || overview.Forecast.AllRecords == nil || overview.Unpaid.Details == nil {
		t.Fatalf("expected non-nil collections in overview")
	}
}

func TestLoadErrorPropagates(t *testing.T) {
	source := &stubSource{err: errors.New("database unavailable")}
	svc, _ := newTestService(t, source)
	if _, err := svc.CycleMetrics(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
}

func TestServiceWithoutRedis(t *testing.T) {
	source := &stubSource{records: sampleRecords()}
	svc := NewService(source, nil, ledger.DefaultPolicy()).WithNow(func() time.Time { return testNow })

	cycles, err := svc.CycleMetrics(context.Background())
	if err != nil {
		t.Fatalf("cycles: %v", err)
	}
	if len(cycles) == 0 {
		t.Fatalf("expected cycle metrics")
	}
	if err := svc.Invalidate(context.Background()); err != nil {
		t.Fatalf("nil cache bump: %v", err)
	}
}

// gatedSource holds its first load open until release is closed.
type gatedSource struct {
	mu      sync.Mutex
	records []ledger.PurchaseRecord
	calls   int
	entered chan struct{}
	release chan struct{}
}

func (s *gatedSource) ListRecords(ctx context.Context) ([]ledger.PurchaseRecord, error) {
	s.mu.Lock()
	s.calls++
	first := s.calls == 1
	out := append([]ledger.PurchaseRecord(nil), s.records...)
	s.mu.Unlock()
	if first {
		close(s.entered)
		<-s.release
	}
	return out, nil
}

func (s *gatedSource) add(rec ledger.PurchaseRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
}

func (s *gatedSource) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func monthTotal(t *testing.T, months []ledger.MonthlySummary) float64 {
	t.Helper()
	if len(months) != 1 {
		t.Fatalf("expected one month, got %d", len(months))
	}
	return months[0].TotalAmount
}

func TestInvalidateDetachesInflightLoad(t *testing.T) {
	open := func(id string, amount float64) ledger.PurchaseRecord {
		return ledger.PurchaseRecord{ID: id, CompanyName: "Sysco", Department: "杂货", InvoiceDate: "2024-03-08", InvoiceAmount: ledger.Float(amount)}
	}
	source := &gatedSource{
		records: []ledger.PurchaseRecord{open("1", 100)},
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	svc, _ := newTestService(t, source)
	ctx := context.Background()

	stale := make(chan []ledger.MonthlySummary, 1)
	go func() {
		months, _ := svc.Monthly(ctx, ledger.BasisInvoice)
		stale <- months
	}()
	<-source.entered

	source.add(open("2", 900))
	if err := svc.Invalidate(ctx); err != nil {
		t.Fatalf("invalidate: %v", err)
	}

	fresh := make(chan []ledger.MonthlySummary, 1)
	go func() {
		months, _ := svc.Monthly(ctx, ledger.BasisInvoice)
		fresh <- months
	}()
	select {
	case months := <-fresh:
		if total := monthTotal(t, months); total != 1000 {
			t.Fatalf("expected 1000 after invalidation, got %.2f", total)
		}
	case <-time.After(2 * time.Second):
		close(source.release)
		t.Fatalf("request after invalidation waited on the earlier load")
	}

	close(source.release)
	if total := monthTotal(t, <-stale); total != 100 {
		t.Fatalf("expected the earlier load to see 100, got %.2f", total)
	}

	months, err := svc.Monthly(ctx, ledger.BasisInvoice)
	if err != nil {
		t.Fatalf("monthly: %v", err)
	}
	if total := monthTotal(t, months); total != 1000 {
		t.Fatalf("expected cached 1000, got %.2f", total)
	}
	if source.callCount() != 2 {
		t.Fatalf("expected two loads, got %d", source.callCount())
	}
}

func TestDateIssuesReportedOncePerVersion(t *testing.T) {
	source := &stubSource{records: sampleRecords()}
	svc, _ := newTestService(t, source)
	observer := &recordingObserver{}
	svc.WithObserver(observer)
	ctx := context.Background()

	if _, err := svc.Monthly(ctx, ledger.BasisInvoice); err != nil {
		t.Fatalf("monthly: %v", err)
	}
	if _, err := svc.Weekly(ctx, ledger.BasisInvoice, ""); err != nil {
		t.Fatalf("weekly: %v", err)
	}
	if _, err := svc.Forecast(ctx); err != nil {
		t.Fatalf("forecast: %v", err)
	}
	if _, err := svc.Unpaid(ctx); err != nil {
		t.Fatalf("unpaid: %v", err)
	}
	if source.callCount() != 4 {
		t.Fatalf("expected a load per view, got %d", source.callCount())
	}
	if observer.issues != 1 || len(observer.stats) != 1 {
		t.Fatalf("expected one report for one bad date, got issues=%d reports=%d", observer.issues, len(observer.stats))
	}

	if err := svc.Invalidate(ctx); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if _, err := svc.Monthly(ctx, ledger.BasisInvoice); err != nil {
		t.Fatalf("monthly after invalidate: %v", err)
	}
	if observer.issues != 2 || len(observer.stats) != 2 {
		t.Fatalf("expected a new report for the new version, got issues=%d reports=%d", observer.issues, len(observer.stats))
	}
}
