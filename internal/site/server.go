package site

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/construo/construo-server/internal/models"
)

// RefreshParam is the reserved query parameter that forces a cache bypass.
const RefreshParam = "refresh"

// ServerOption configures the site API server.
type ServerOption func(*serverConfig)

type serverConfig struct {
	middlewares []func(http.Handler) http.Handler
	log         *slog.Logger
}

// WithMiddlewares adds middleware to the server.
func WithMiddlewares(mw ...func(http.Handler) http.Handler) ServerOption {
	return func(cfg *serverConfig) {
		cfg.middlewares = append(cfg.middlewares, mw...)
	}
}

// WithLogger sets the server logger.
func WithLogger(log *slog.Logger) ServerOption {
	return func(cfg *serverConfig) { cfg.log = log }
}

// handlers holds the projection state shared by route handlers.
type handlers struct {
	loader DataLoader
	writer RegistrationWriter
	log    *slog.Logger
	last   snapshot
}

// NewServer creates the public-site router. The server subscribes to the
// loader's change notifications so a degraded load can fall back to the
// last good payload.
func NewServer(loader DataLoader, writer RegistrationWriter, opts ...ServerOption) *chi.Mux {
	cfg := &serverConfig{log: slog.Default()}
	for _, opt := range opts {
		opt(cfg)
	}

	h := &handlers{loader: loader, writer: writer, log: cfg.log}
	loader.Subscribe(h.last.store)

	r := chi.NewRouter()
	for _, mw := range cfg.middlewares {
		r.Use(mw)
	}

	r.Get("/healthz", h.health)
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/site", h.site)
		r.Get("/events", h.section(func(v *View) any { return v.Events }))
		r.Get("/timeline", h.section(func(v *View) any { return v.Timeline }))
		r.Get("/speakers", h.section(func(v *View) any { return v.Speakers }))
		r.Get("/sponsors", h.section(func(v *View) any { return v.Sponsors }))
		r.Get("/organizers", h.section(func(v *View) any { return v.Organizers }))
		r.Post("/registrations", h.createRegistration)
	})
	return r
}

// errorResponse is the standard error body.
type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (*handlers) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// payload resolves the aggregate for a request, honoring the reserved
// refresh parameter and falling back to the last notified snapshot when the
// load degrades.
func (h *handlers) payload(r *http.Request) (*models.Aggregate, error) {
	if r.URL.Query().Get(RefreshParam) != "" {
		return h.loader.RefreshAll(r.Context())
	}
	agg, err := h.loader.LoadAll(r.Context())
	if err != nil {
		if cached := h.last.load(); cached != nil {
			h.log.Warn("serving last good payload after load failure", "error", err)
			return cached, nil
		}
		return nil, err
	}
	return agg, nil
}

func (h *handlers) site(w http.ResponseWriter, r *http.Request) {
	agg, err := h.payload(r)
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, Project(agg))
}

func (h *handlers) section(pick func(*View) any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		agg, err := h.payload(r)
		if err != nil {
			writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, pick(Project(agg)))
	}
}

// registrationRequest is the submission body for a new registration.
type registrationRequest struct {
	Fields []models.FormField `json:"fields"`
	Events []string           `json:"events,omitempty"`
}

func (h *handlers) createRegistration(w http.ResponseWriter, r *http.Request) {
	var req registrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if len(req.Fields) == 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "fields are required"})
		return
	}

	reg := &models.Registration{
		ID:     uuid.NewString(),
		Fields: req.Fields,
		Events: req.Events,
		Status: "submitted",
	}
	stored, err := h.writer.CreateRegistration(r.Context(), reg)
	if err != nil {
		// Store failures surface their message directly; validation is
		// delegated to the store's access-control layer.
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusCreated, stored)
}
