package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"learnearn/internal/app"
	"learnearn/internal/domain"
	"learnearn/internal/export"
)

// Checker verifies that an infrastructure dependency is reachable.
type Checker interface {
	Check(ctx context.Context) error
}

// CheckFunc adapts a function to Checker.
type CheckFunc func(ctx context.Context) error

func (f CheckFunc) Check(ctx context.Context) error { return f(ctx) }

// FactSource serves the learning hub facts for a language.
type FactSource interface {
	Facts(key string) ([]domain.Fact, error)
}

// RouterOptions configures NewRouter.
type RouterOptions struct {
	Logger  *slog.Logger
	Checks  map[string]Checker
	Refresh time.Duration
	Avatars []domain.Avatar
	Facts   FactSource
}

// NewRouter mounts the game socket and the read-only HTTP API.
func NewRouter(service *app.GameService, opts RouterOptions) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	api := &apiHandler{service: service, logger: logger, avatars: opts.Avatars, facts: opts.Facts}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(newStructuredLogger(logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", handleHealth(logger, opts.Checks))
	r.Get("/ws", NewWSHandler(service, logger, opts.Refresh).ServeWS)
	r.Route("/api", func(r chi.Router) {
		r.Get("/categories", api.categories)
		r.Get("/categories/{key}/facts", api.factList)
		r.Get("/avatars", api.avatarList)
		r.Get("/leaderboard", api.leaderboard)
		r.Get("/leaderboard.xlsx", api.leaderboardXLSX)
		r.Get("/players/{address}", api.account)
	})
	return r
}

type apiHandler struct {
	service *app.GameService
	logger  *slog.Logger
	avatars []domain.Avatar
	facts   FactSource
}

func (h *apiHandler) categories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.service.Categories())
}

func (h *apiHandler) factList(w http.ResponseWriter, r *http.Request) {
	if h.facts == nil {
		writeError(w, http.StatusNotFound, domain.ErrCategoryNotFound.Error())
		return
	}
	facts, err := h.facts.Facts(chi.URLParam(r, "key"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, facts)
}

func (h *apiHandler) avatarList(w http.ResponseWriter, r *http.Request) {
	avatars := h.avatars
	if avatars == nil {
		avatars = []domain.Avatar{}
	}
	writeJSON(w, http.StatusOK, avatars)
}

func (h *apiHandler) leaderboard(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.service.Leaderboard(r.Context(), r.URL.Query().Get("address")))
}

func (h *apiHandler) leaderboardXLSX(w http.ResponseWriter, r *http.Request) {
	entries := h.service.Leaderboard(r.Context(), "")
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="leaderboard.xlsx"`)
	if err := export.WriteLeaderboard(w, entries); err != nil {
		h.logger.Error("leaderboard export failed", "error", err)
	}
}

func (h *apiHandler) account(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.Account(chi.URLParam(r, "address"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

type healthResult struct {
	Status string `json:"status"`
}

func handleHealth(logger *slog.Logger, checks map[string]Checker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		results := make(map[string]healthResult, len(checks))
		status := http.StatusOK
		for name, c := range checks {
			if err := c.Check(ctx); err != nil {
				logger.Error("health check failed", "name", name, "error", err)
				results[name] = healthResult{Status: "error"}
				status = http.StatusServiceUnavailable
				continue
			}
			results[name] = healthResult{Status: "ok"}
		}
		writeJSON(w, status, results)
	}
}

func newStructuredLogger(logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				logger.Info("http request",
					"method", r.Method,
					"path", r.URL.Path,
					"status", ww.Status(),
					"bytes", ww.BytesWritten(),
					"duration_ms", time.Since(start).Milliseconds(),
					"request_id", middleware.GetReqID(r.Context()),
				)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
