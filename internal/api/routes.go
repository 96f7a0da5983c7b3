package api

import (
	"crypto/subtle"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"stock-sync-service/internal/config"
	"stock-sync-service/internal/logger"
	"stock-sync-service/internal/store"
	"stock-sync-service/internal/sync"
)

// BreakerReporter exposes per channel circuit breaker states.
type BreakerReporter interface {
	BreakerStates() map[store.Channel]string
}

type Handler struct {
	syncManager *sync.Manager
	breakers    BreakerReporter
	cfg         config.ServerConfig
}

// NewHandler builds the HTTP handler. breakers may be nil.
func NewHandler(manager *sync.Manager, cfg config.ServerConfig, breakers BreakerReporter) *Handler {
	return &Handler{
		syncManager: manager,
		breakers:    breakers,
		cfg:         cfg,
	}
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(h.corsMiddleware)

	r.Get("/health", h.HealthCheck)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(h.authMiddleware)

		r.Get("/products", h.ListProducts)
		r.Post("/products", h.CreateProduct)
		r.Route("/products/{id}", func(r chi.Router) {
			r.Get("/", h.GetProduct)
			r.Put("/internal", h.SetInternalStock)
			r.Put("/channels/{channel}", h.SetChannelStock)
			r.Post("/sync", h.ReconcileOne)
		})

		r.Post("/sync/all", h.ReconcileAll)
		r.Post("/sync/auto", h.AutoSync)
		r.Get("/sync/status", h.GetSyncStatus)

		r.Get("/history", h.ListHistory)

		r.Get("/autosync", h.GetAutoSync)
		r.Put("/autosync", h.UpdateAutoSync)
	})

	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		logger.Log.Info("HTTP request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func (h *Handler) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		switch {
		case len(h.cfg.CorsOrigins) == 0 || slices.Contains(h.cfg.CorsOrigins, "*"):
			w.Header().Set("Access-Control-Allow-Origin", "*")
		case origin != "" && slices.Contains(h.cfg.CorsOrigins, origin):
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Add("Vary", "Origin")
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-CSRF-Token")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// authMiddleware requires "Authorization: Bearer <token>" when a token is
// configured.
func (h *Handler) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.cfg.AuthToken == "" {
			next.ServeHTTP(w, r)
			return
		}
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(h.cfg.AuthToken)) != 1 {
			writeDetail(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}
