package analytichttp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/paydash/internal/analytics"
	"github.com/odyssey-erp/paydash/internal/ledger"
	"github.com/odyssey-erp/paydash/internal/platform/httpx"
)

type stubService struct {
	err          error
	lastBasis    ledger.Basis
	lastMonth    string
	lastQuery    ledger.DistributionQuery
	lastOverview analytics.OverviewQuery
}

func (s *stubService) Defaults(ctx context.Context) (ledger.DashboardDefaults, error) {
	return ledger.DashboardDefaults{Months: []string{"2024-02", "2024-03"}, SelectedMonth: "2024-03"}, s.err
}

func (s *stubService) Monthly(ctx context.Context, basis ledger.Basis) ([]ledger.MonthlySummary, error) {
	s.lastBasis = basis
	return []ledger.MonthlySummary{{Month: "2024-03", TotalAmount: 150, ByDepartment: map[string]float64{"杂货": 150}}}, s.err
}

func (s *stubService) Weekly(ctx context.Context, basis ledger.Basis, month string) ([]ledger.WeeklySummary, error) {
	s.lastBasis = basis
	s.lastMonth = month
	return []ledger.WeeklySummary{{WeekRange: "2024-03-11 ~ 2024-03-17", WeekStart: "2024-03-11", WeekEnd: "2024-03-17", TotalAmount: 20, ByCompany: map[string]float64{"Sysco": 20}}}, s.err
}

func (s *stubService) Distribution(ctx context.Context, q ledger.DistributionQuery) (ledger.Distribution, error) {
	s.lastQuery = q
	return ledger.Distribution{Points: []ledger.DistributionPoint{}, OrderedCompanies: []string{}}, s.err
}

func (s *stubService) CycleMetrics(ctx context.Context) ([]ledger.PaymentCycleMetric, error) {
	return []ledger.PaymentCycleMetric{{Department: "杂货", CompanyName: "Sysco", InvoiceCount: 2, TotalAmount: 300, MedianDays: 7, MinDays: 7, MaxDays: 7, AvgDays: 7}}, s.err
}

func (s *stubService) Forecast(ctx context.Context) (ledger.ForecastSummary, error) {
	return ledger.ForecastSummary{WeekEnd: "2024-03-17", TotalDueThisWeek: 300, AllRecords: []ledger.PredictedPayment{}}, s.err
}

func (s *stubService) Unpaid(ctx context.Context) (ledger.UnpaidSummary, error) {
	return ledger.UnpaidSummary{TotalUnpaid: 90, ByDeptCompany: map[string]map[string]float64{"杂货": {"Sysco": 90}}}, s.err
}

func (s *stubService) Overview(ctx context.Context, q analytics.OverviewQuery) (analytics.Overview, error) {
	s.lastOverview = q
	return analytics.Overview{Today: "2024-03-14", Basis: q.Basis, Month: q.Month}, s.err
}

func newTestRouter(t *testing.T, service DashboardService) chi.Router {
	t.Helper()
	handler := NewHandler(nil, service)
	handler.WithNow(func() time.Time { return time.Date(2024, 3, 14, 9, 0, 0, 0, time.UTC) })
	r := chi.NewRouter()
	handler.MountRoutes(r)
	return r
}

func serve(r http.Handler, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func TestMonthlyDefaultsToInvoiceBasis(t *testing.T) {
	service := &stubService{}
	rr := serve(newTestRouter(t, service), "/api/dashboard/monthly")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if service.lastBasis != ledger.BasisInvoice {
		t.Fatalf("expected invoice basis, got %q", service.lastBasis)
	}
	var months []ledger.MonthlySummary
	if err := json.NewDecoder(rr.Body).Decode(&months); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(months) != 1 || months[0].Month != "2024-03" {
		t.Fatalf("unexpected body %+v", months)
	}
}

func TestWeeklyPassesBasisAndMonth(t *testing.T) {
	service := &stubService{}
	rr := serve(newTestRouter(t, service), "/api/dashboard/weekly?basis=payment&month=2024-02")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if service.lastBasis != ledger.BasisPayment || service.lastMonth != "2024-02" {
		t.Fatalf("unexpected arguments basis=%s month=%s", service.lastBasis, service.lastMonth)
	}
}

func TestDistributionQueryParameters(t *testing.T) {
	service := &stubService{}
	target := "/api/dashboard/distribution?department=%E6%9D%82%E8%B4%A7&company=Sysco&company=Metro&company=+&start=2024-03-01&end=2024-03-31"
	rr := serve(newTestRouter(t, service), target)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	q := service.lastQuery
	if q.Department != "杂货" || q.Start != "2024-03-01" || q.End != "2024-03-31" {
		t.Fatalf("unexpected query %+v", q)
	}
	if len(q.Companies) != 2 || q.Companies[0] != "Sysco" || q.Companies[1] != "Metro" {
		t.Fatalf("unexpected companies %v", q.Companies)
	}
}

func TestInvalidParametersReturnProblem(t *testing.T) {
	router := newTestRouter(t, &stubService{})
	cases := map[string]string{
		"/api/dashboard/monthly?basis=cash":                           "basis",
		"/api/dashboard/weekly?month=2024-13":                         "month",
		"/api/dashboard/distribution?start=2024/03/01":                "start",
		"/api/dashboard/distribution?start=2024-03-10&end=2024-03-01": "end",
		"/api/dashboard/export/weekly.csv?month=March":                "month",
		"/api/dashboard/overview?basis=payment&end=2024-02-30":        "end",
	}
	for target, field := range cases {
		rr := serve(router, target)
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", target, rr.Code)
		}
		var problem httpx.ProblemDetail
		if err := json.NewDecoder(rr.Body).Decode(&problem); err != nil {
			t.Fatalf("%s: decode problem: %v", target, err)
		}
		if problem.Detail != "invalid "+field {
			t.Fatalf("%s: unexpected detail %q", target, problem.Detail)
		}
	}
}

func TestOverviewForwardsSelections(t *testing.T) {
	service := &stubService{}
	rr := serve(newTestRouter(t, service), "/api/dashboard/overview?basis=payment&month=2024-03&company=Sysco")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	q := service.lastOverview
	if q.Basis != ledger.BasisPayment || q.Month != "2024-03" || len(q.Companies) != 1 {
		t.Fatalf("unexpected overview query %+v", q)
	}
}

func TestServiceErrorReturns500(t *testing.T) {
	rr := serve(newTestRouter(t, &stubService{err: errors.New("redis down")}), "/api/dashboard/cycles")
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	if strings.Contains(rr.Body.String(), "redis down") {
		t.Fatalf("internal error leaked to client: %s", rr.Body.String())
	}
}

func TestCSVExports(t *testing.T) {
	router := newTestRouter(t, &stubService{})
	cases := map[string]string{
		"monthly":  "Month,Department,Amount,Month Total",
		"weekly":   "Week,Week Start,Week End,Company,Amount,Week Total",
		"cycles":   "Department,Company,Invoices",
		"forecast": "Due By 2024-03-17",
		"unpaid":   "Total,,90.00",
	}
	for view, want := range cases {
		rr := serve(router, "/api/dashboard/export/"+view+".csv")
		if rr.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", view, rr.Code)
		}
		if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
			t.Fatalf("%s: unexpected content type %s", view, ct)
		}
		disposition := rr.Header().Get("Content-Disposition")
		if !strings.Contains(disposition, "paydash-"+view+"-2024-03-14.csv") {
			t.Fatalf("%s: unexpected disposition %s", view, disposition)
		}
		if !strings.Contains(rr.Body.String(), want) {
			t.Fatalf("%s: expected %q in body:\n%s", view, want, rr.Body.String())
		}
	}
}

func TestExportsAreRateLimited(t *testing.T) {
	router := newTestRouter(t, &stubService{})
	for i := 0; i < 10; i++ {
		if rr := serve(router, "/api/dashboard/export/unpaid.csv"); rr.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, rr.Code)
		}
	}
	if rr := serve(router, "/api/dashboard/export/unpaid.csv"); rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rr.Code)
	}
	if rr := serve(router, "/api/dashboard/unpaid"); rr.Code != http.StatusOK {
		t.Fatalf("json views must not share the export limit, got %d", rr.Code)
	}
}
