package analytichttp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/paydash/internal/analytics"
	"github.com/odyssey-erp/paydash/internal/analytics/export"
	"github.com/odyssey-erp/paydash/internal/ledger"
	"github.com/odyssey-erp/paydash/internal/platform/httpx"
)

const requestTimeout = 2 * time.Second

// DashboardService defines the dashboard data contract used by the handler.
type DashboardService interface {
	Defaults(ctx context.Context) (ledger.DashboardDefaults, error)
	Monthly(ctx context.Context, basis ledger.Basis) ([]ledger.MonthlySummary, error)
	Weekly(ctx context.Context, basis ledger.Basis, month string) ([]ledger.WeeklySummary, error)
	Distribution(ctx context.Context, q ledger.DistributionQuery) (ledger.Distribution, error)
	CycleMetrics(ctx context.Context) ([]ledger.PaymentCycleMetric, error)
	Forecast(ctx context.Context) (ledger.ForecastSummary, error)
	Unpaid(ctx context.Context) (ledger.UnpaidSummary, error)
	Overview(ctx context.Context, q analytics.OverviewQuery) (analytics.Overview, error)
}

// Handler serves the dashboard views as JSON and CSV.
type Handler struct {
	logger   *slog.Logger
	service  DashboardService
	validate *validator.Validate
	csvPool  sync.Pool
	now      func() time.Time
}

// NewHandler constructs the dashboard HTTP handler.
func NewHandler(logger *slog.Logger, service DashboardService) *Handler {
	h := &Handler{
		logger:   logger,
		service:  service,
		validate: validator.New(),
		now:      time.Now,
	}
	h.csvPool.New = func() interface{} { return new(bytes.Buffer) }
	return h
}

// WithNow overrides the handler clock used in export filenames.
func (h *Handler) WithNow(fn func() time.Time) {
	if fn != nil {
		h.now = fn
	}
}

type dashboardQuery struct {
	Basis      string   `validate:"omitempty,oneof=invoice payment"`
	Month      string   `validate:"omitempty,datetime=2006-01"`
	Department string   `validate:"max=128"`
	Companies  []string `validate:"max=50,dive,required,max=256"`
	Start      string   `validate:"omitempty,datetime=2006-01-02"`
	End        string   `validate:"omitempty,datetime=2006-01-02"`
}

func (q dashboardQuery) basis() ledger.Basis {
	basis, _ := ledger.ParseBasis(q.Basis)
	return basis
}

func (q dashboardQuery) distribution() ledger.DistributionQuery {
	return ledger.DistributionQuery{
		Basis:      q.basis(),
		Department: q.Department,
		Companies:  q.Companies,
		Start:      q.Start,
		End:        q.End,
	}
}

func (h *Handler) parseQuery(r *http.Request) (dashboardQuery, error) {
	values := r.URL.Query()
	q := dashboardQuery{
		Basis:      strings.TrimSpace(values.Get("basis")),
		Month:      strings.TrimSpace(values.Get("month")),
		Department: strings.TrimSpace(values.Get("department")),
		Start:      strings.TrimSpace(values.Get("start")),
		End:        strings.TrimSpace(values.Get("end")),
	}
	for _, company := range values["company"] {
		if company = strings.TrimSpace(company); company != "" {
			q.Companies = append(q.Companies, company)
		}
	}
	if err := h.validate.Struct(q); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			return dashboardQuery{}, validationError{field: strings.ToLower(fieldErrs[0].Field())}
		}
		return dashboardQuery{}, err
	}
	if q.Start != "" && q.End != "" && q.End < q.Start {
		return dashboardQuery{}, validationError{field: "end"}
	}
	return q, nil
}

// serveJSON parses the query, runs load under the request timeout and writes
// the result.
func (h *Handler) serveJSON(w http.ResponseWriter, r *http.Request, view string, load func(ctx context.Context, q dashboardQuery) (any, error)) {
	q, err := h.parseQuery(r)
	if err != nil {
		h.handleFilterError(w, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	data, err := load(ctx, q)
	if err != nil {
		h.handleServerError(w, "load "+view, err)
		return
	}
	httpx.JSON(w, http.StatusOK, data)
}

func (h *Handler) handleDefaults(w http.ResponseWriter, r *http.Request) {
	h.serveJSON(w, r, "defaults", func(ctx context.Context, _ dashboardQuery) (any, error) {
		return h.service.Defaults(ctx)
	})
}

func (h *Handler) handleMonthly(w http.ResponseWriter, r *http.Request) {
	h.serveJSON(w, r, "monthly", func(ctx context.Context, q dashboardQuery) (any, error) {
		return h.service.Monthly(ctx, q.basis())
	})
}

func (h *Handler) handleWeekly(w http.ResponseWriter, r *http.Request) {
	h.serveJSON(w, r, "weekly", func(ctx context.Context, q dashboardQuery) (any, error) {
		return h.service.Weekly(ctx, q.basis(), q.Month)
	})
}

func (h *Handler) handleDistribution(w http.ResponseWriter, r *http.Request) {
	h.serveJSON(w, r, "distribution", func(ctx context.Context, q dashboardQuery) (any, error) {
		return h.service.Distribution(ctx, q.distribution())
	})
}

func (h *Handler) handleCycles(w http.ResponseWriter, r *http.Request) {
	h.serveJSON(w, r, "cycles", func(ctx context.Context, _ dashboardQuery) (any, error) {
		return h.service.CycleMetrics(ctx)
	})
}

func (h *Handler) handleForecast(w http.ResponseWriter, r *http.Request) {
	h.serveJSON(w, r, "forecast", func(ctx context.Context, _ dashboardQuery) (any, error) {
		return h.service.Forecast(ctx)
	})
}

func (h *Handler) handleUnpaid(w http.ResponseWriter, r *http.Request) {
	h.serveJSON(w, r, "unpaid", func(ctx context.Context, _ dashboardQuery) (any, error) {
		return h.service.Unpaid(ctx)
	})
}

func (h *Handler) handleOverview(w http.ResponseWriter, r *http.Request) {
	h.serveJSON(w, r, "overview", func(ctx context.Context, q dashboardQuery) (any, error) {
		return h.service.Overview(ctx, analytics.OverviewQuery{
			Basis:      q.basis(),
			Month:      q.Month,
			Department: q.Department,
			Companies:  q.Companies,
			Start:      q.Start,
			End:        q.End,
		})
	})
}

// serveCSV renders one view into a pooled buffer and streams it as an attachment.
func (h *Handler) serveCSV(w http.ResponseWriter, r *http.Request, view string, write func(ctx context.Context, q dashboardQuery, buf io.Writer) error) {
	q, err := h.parseQuery(r)
	if err != nil {
		h.handleFilterError(w, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	buf := h.csvPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer func() {
		buf.Reset()
		h.csvPool.Put(buf)
	}()

	if err := write(ctx, q, buf); err != nil {
		h.handleServerError(w, "write "+view+" csv", err)
		return
	}

	filename := fmt.Sprintf("paydash-%s-%s.csv", view, h.now().Format(ledger.DayLayout))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", filename))
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.logError("stream csv", err)
	}
}

func (h *Handler) handleMonthlyCSV(w http.ResponseWriter, r *http.Request) {
	h.serveCSV(w, r, "monthly", func(ctx context.Context, q dashboardQuery, buf io.Writer) error {
		months, err := h.service.Monthly(ctx, q.basis())
		if err != nil {
			return err
		}
		return export.WriteMonthlyCSV(buf, months)
	})
}

func (h *Handler) handleWeeklyCSV(w http.ResponseWriter, r *http.Request) {
	h.serveCSV(w, r, "weekly", func(ctx context.Context, q dashboardQuery, buf io.Writer) error {
		weeks, err := h.service.Weekly(ctx, q.basis(), q.Month)
		if err != nil {
			return err
		}
		return export.WriteWeeklyCSV(buf, weeks)
	})
}

func (h *Handler) handleCyclesCSV(w http.ResponseWriter, r *http.Request) {
	h.serveCSV(w, r, "cycles", func(ctx context.Context, _ dashboardQuery, buf io.Writer) error {
		metrics, err := h.service.CycleMetrics(ctx)
		if err != nil {
			return err
		}
		return export.WriteCyclesCSV(buf, metrics)
	})
}

func (h *Handler) handleForecastCSV(w http.ResponseWriter, r *http.Request) {
	h.serveCSV(w, r, "forecast", func(ctx context.Context, _ dashboardQuery, buf io.Writer) error {
		summary, err := h.service.Forecast(ctx)
		if err != nil {
			return err
		}
		return export.WriteForecastCSV(buf, summary)
	})
}

func (h *Handler) handleUnpaidCSV(w http.ResponseWriter, r *http.Request) {
	h.serveCSV(w, r, "unpaid", func(ctx context.Context, _ dashboardQuery, buf io.Writer) error {
		summary, err := h.service.Unpaid(ctx)
		if err != nil {
			return err
		}
		return export.WriteUnpaidCSV(buf, summary)
	})
}

func (h *Handler) handleFilterError(w http.ResponseWriter, err error) {
	var vErr validationError
	if errors.As(err, &vErr) {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Parameter", vErr.Error())
		return
	}
	h.handleServerError(w, "parse filters", err)
}

func (h *Handler) handleServerError(w http.ResponseWriter, op string, err error) {
	h.logError(op, err)
	if errors.Is(err, context.DeadlineExceeded) {
		httpx.Problem(w, http.StatusGatewayTimeout, "Timeout", "dashboard computation timed out")
		return
	}
	httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
}

func (h *Handler) logError(op string, err error) {
	if h.logger != nil {
		h.logger.Error(op, slog.Any("error", err))
	}
}

type validationError struct {
	field string
}

func (v validationError) Error() string {
	return fmt.Sprintf("invalid %s", v.field)
}
