package analytichttp

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/odyssey-erp/paydash/internal/platform/httpx"
)

// MountRoutes registers dashboard endpoints onto the router.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	limiter := httprate.Limit(10, time.Minute,
		httprate.WithKeyFuncs(rateLimitKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			httpx.Problem(w, http.StatusTooManyRequests, "Too Many Requests", "export rate limit exceeded")
		}),
	)

	r.Route("/api/dashboard", func(r chi.Router) {
		r.Get("/defaults", h.handleDefaults)
		r.Get("/monthly", h.handleMonthly)
		r.Get("/weekly", h.handleWeekly)
		r.Get("/distribution", h.handleDistribution)
		r.Get("/cycles", h.handleCycles)
		r.Get("/forecast", h.handleForecast)
		r.Get("/unpaid", h.handleUnpaid)
		r.Get("/overview", h.handleOverview)

		r.Group(func(gr chi.Router) {
			gr.Use(limiter)
			gr.Get("/export/monthly.csv", h.handleMonthlyCSV)
			gr.Get("/export/weekly.csv", h.handleWeeklyCSV)
			gr.Get("/export/cycles.csv", h.handleCyclesCSV)
			gr.Get("/export/forecast.csv", h.handleForecastCSV)
			gr.Get("/export/unpaid.csv", h.handleUnpaidCSV)
		})
	})
}

func rateLimitKey(r *http.Request) (string, error) {
	key, err := httprate.KeyByIP(r)
	if err != nil {
		return "", err
	}
	return "ip:" + key, nil
}
