package admin

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"golang.org/x/crypto/bcrypt"

	"github.com/odyssey-erp/paydash/internal/platform/httpx"
)

// MountRoutes registers admin endpoints behind basic auth.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	uploadLimiter := httprate.Limit(5, time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			httpx.Problem(w, http.StatusTooManyRequests, "Too Many Requests", "upload rate limit exceeded")
		}),
	)

	r.Route("/admin", func(r chi.Router) {
		r.Use(h.basicAuth)
		r.Get("/status", h.handleStatus)
		r.With(uploadLimiter).Post("/upload", h.handleUpload)
		r.Delete("/records", h.handleDeleteAll)
		r.Get("/audit", h.handleAudit)
	})
}

func (h *Handler) basicAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, password, ok := r.BasicAuth()
		if !ok || !h.authenticate(user, password) {
			if ok {
				h.logger.Warn("admin login failed", slog.String("user", user), slog.String("remote", r.RemoteAddr))
			}
			w.Header().Set("WWW-Authenticate", `Basic realm="paydash admin", charset="UTF-8"`)
			httpx.RespondError(w, httpx.ErrUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), actorKey{}, user)))
	})
}

type actorKey struct{}

func actorFrom(ctx context.Context) string {
	if actor, ok := ctx.Value(actorKey{}).(string); ok && actor != "" {
		return actor
	}
	return "unknown"
}

func (h *Handler) authenticate(user, password string) bool {
	if h.cfg.User == "" || h.cfg.PasswordHash == "" {
		return false
	}
	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(h.cfg.User)) == 1
	passOK := bcrypt.CompareHashAndPassword([]byte(h.cfg.PasswordHash), []byte(password)) == nil
	return userOK && passOK
}
