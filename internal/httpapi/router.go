package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/ad/go-telegram-onboarding/internal/models"
	"github.com/ad/go-telegram-onboarding/internal/services"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

const serviceName = "go-telegram-onboarding"

// ProgressSource is the read side of the step machine.
type ProgressSource interface {
	Load(ctx context.Context, userID int64) (*models.UserProgress, error)
	Stats(ctx context.Context) (*models.Stats, error)
}

type Options struct {
	AllowedOrigins []string
	RequestTimeout time.Duration
}

type API struct {
	source ProgressSource
}

// NewRouter builds the operator HTTP API.
func NewRouter(source ProgressSource, opts Options) http.Handler {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 10 * time.Second
	}
	api := &API{source: source}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(opts.RequestTimeout))
	if len(opts.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: opts.AllowedOrigins,
			AllowedMethods: []string{"GET", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300,
		}))
	}

	r.Get("/health", api.Health)
	r.Get("/stats", api.Stats)
	r.Get("/users/{id}", api.User)

	return r
}

func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// --- GET /health ---

func (a *API) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": serviceName})
}

// --- GET /stats ---

func (a *API) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := a.source.Stats(r.Context())
	if err != nil {
		log.Printf("[HTTP] stats request=%s: %v", middleware.GetReqID(r.Context()), err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "progress store unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// --- GET /users/{id} ---

func (a *API) User(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || userID <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid user id"})
		return
	}

	progress, err := a.source.Load(r.Context(), userID)
	if errors.Is(err, services.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "user not found"})
		return
	}
	if err != nil {
		log.Printf("[HTTP] user %d request=%s: %v", userID, middleware.GetReqID(r.Context()), err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "progress store unavailable"})
		return
	}

	writeJSON(w, http.StatusOK, progress)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[HTTP] encode response: %v", err)
	}
}
