package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aretw0/umlsync"
	"github.com/aretw0/umlsync/internal/presentation/graph"
	"github.com/aretw0/umlsync/internal/presentation/plantuml"
	"github.com/aretw0/umlsync/internal/runtime"
	"github.com/aretw0/umlsync/pkg/dispatch"
	"github.com/aretw0/umlsync/pkg/domain"
	"github.com/aretw0/umlsync/pkg/ports"
	"github.com/aretw0/umlsync/pkg/session"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// Dispatcher is the line-level parse surface used by the API.
type Dispatcher interface {
	Parse(ctx context.Context, text string) (domain.ParseResult, error)
	Stats() dispatch.Stats
	HealthCheck(ctx context.Context) dispatch.Health
}

// Config wires the server's collaborators.
type Config struct {
	Dispatcher Dispatcher
	Parser     ports.Parser
	// NewEngine creates the engine behind a new session.
	NewEngine func() *runtime.Engine
	// Sessions, if set, persists sessions and restores unknown IDs from the store.
	Sessions *session.Manager
	// Gatherer backs GET /metrics. Defaults to the prometheus default registry.
	Gatherer prometheus.Gatherer
	Logger   *slog.Logger
}

// Server exposes parsing, generation and editing sessions over HTTP.
type Server struct {
	cfg      Config
	logger   *slog.Logger
	editors  *editorRegistry
	Streams  *StreamManager
	gatherer prometheus.Gatherer
}

// NewHandler creates the HTTP handler.
func NewHandler(cfg Config) http.Handler {
	return NewServer(cfg).Routes()
}

// NewServer creates a server without routing; see Routes.
func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	gatherer := cfg.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	s := &Server{
		cfg:      cfg,
		logger:   logger.With("component", "http"),
		Streams:  NewStreamManager(logger),
		gatherer: gatherer,
	}
	s.editors = newEditorRegistry(cfg.NewEngine, cfg.Sessions, s.Streams, s.logger)
	return s
}

// Routes builds the chi router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(enableCORS)

	r.Post("/parse", s.Parse)
	r.Post("/validate", s.Validate)
	r.Post("/generate", s.Generate)

	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", s.CreateSession)
		r.Get("/", s.ListSessions)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.GetSession)
			r.Delete("/", s.DeleteSession)
			r.Patch("/", s.PatchSession)
			r.Put("/code", s.PutCode)
			r.Post("/undo", s.Undo)
			r.Post("/redo", s.Redo)
			r.Get("/export", s.ExportSession)
			r.Post("/import", s.ImportSession)
			r.Get("/mermaid", s.Mermaid)
			r.Get("/events", s.SubscribeEvents)
		})
	})

	r.Get("/stats", s.GetStats)
	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	return r
}

// Close destroys all live engines.
func (s *Server) Close() {
	s.editors.closeAll()
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type codeRequest struct {
	Code            string `json:"code"`
	PreserveComplex bool   `json:"preserveComplex,omitempty"`
}

type generateRequest struct {
	Title   string          `json:"title"`
	Actors  []string        `json:"actors"`
	Actions []domain.Action `json:"actions"`
}

type undoResponse struct {
	Applied bool                `json:"applied"`
	State   *domain.EditorState `json:"state"`
}

// Parse handles POST /parse.
func (s *Server) Parse(w http.ResponseWriter, r *http.Request) {
	var body codeRequest
	if !s.decode(w, r, &body) {
		return
	}
	res, err := s.cfg.Dispatcher.Parse(r.Context(), body.Code)
	if err != nil {
		s.fail(w, "Parse", err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

// Validate handles POST /validate.
func (s *Server) Validate(w http.ResponseWriter, r *http.Request) {
	var body codeRequest
	if !s.decode(w, r, &body) {
		return
	}
	s.writeJSON(w, http.StatusOK, s.cfg.Parser.Validate(body.Code))
}

// Generate handles POST /generate.
func (s *Server) Generate(w http.ResponseWriter, r *http.Request) {
	var body generateRequest
	if !s.decode(w, r, &body) {
		return
	}
	for i, a := range body.Actions {
		if err := a.Validate(); err != nil {
			http.Error(w, fmt.Sprintf("action %d: %v", i, err), http.StatusUnprocessableEntity)
			return
		}
	}
	code := plantuml.Generate(body.Title, domain.UniqueStrings(body.Actors), body.Actions)
	s.writeJSON(w, http.StatusOK, map[string]string{"code": code})
}

// CreateSession handles POST /sessions. An optional code body seeds the editor.
func (s *Server) CreateSession(w http.ResponseWriter, r *http.Request) {
	var body codeRequest
	if r.ContentLength != 0 && !s.decode(w, r, &body) {
		return
	}
	id, eng, err := s.editors.create(r.Context())
	if err != nil {
		s.fail(w, "CreateSession", err)
		return
	}
	if body.Code != "" {
		if _, err := eng.UpdateFromCode(r.Context(), body.Code, runtime.UpdateOptions{}); err != nil {
			s.editors.remove(r.Context(), id)
			s.fail(w, "CreateSession", err)
			return
		}
	}
	w.Header().Set("Location", "/sessions/"+id)
	s.writeJSON(w, http.StatusCreated, map[string]any{"id": id, "state": eng.State()})
}

// ListSessions handles GET /sessions.
func (s *Server) ListSessions(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string][]string{"sessions": s.editors.ids()})
}

// GetSession handles GET /sessions/{id}.
func (s *Server) GetSession(w http.ResponseWriter, r *http.Request) {
	eng, ok := s.engine(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, eng.State())
}

// DeleteSession handles DELETE /sessions/{id}.
func (s *Server) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if !s.editors.remove(r.Context(), chi.URLParam(r, "id")) {
		http.Error(w, domain.ErrSnapshotNotFound.Error(), http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PutCode handles PUT /sessions/{id}/code.
func (s *Server) PutCode(w http.ResponseWriter, r *http.Request) {
	eng, ok := s.engine(w, r)
	if !ok {
		return
	}
	var body codeRequest
	if !s.decode(w, r, &body) {
		return
	}
	res, err := eng.UpdateFromCode(r.Context(), body.Code, runtime.UpdateOptions{PreserveComplex: body.PreserveComplex})
	if err != nil {
		s.fail(w, "PutCode", err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

// PatchSession handles PATCH /sessions/{id} with a partial model.
func (s *Server) PatchSession(w http.ResponseWriter, r *http.Request) {
	eng, ok := s.engine(w, r)
	if !ok {
		return
	}
	var body map[string]any
	if !s.decode(w, r, &body) {
		return
	}
	changes, err := runtime.DecodeChanges(body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	res, err := eng.UpdateFromUI(r.Context(), changes)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

// Undo handles POST /sessions/{id}/undo.
func (s *Server) Undo(w http.ResponseWriter, r *http.Request) {
	eng, ok := s.engine(w, r)
	if !ok {
		return
	}
	applied := eng.Undo()
	s.writeJSON(w, http.StatusOK, undoResponse{Applied: applied, State: eng.State()})
}

// Redo handles POST /sessions/{id}/redo.
func (s *Server) Redo(w http.ResponseWriter, r *http.Request) {
	eng, ok := s.engine(w, r)
	if !ok {
		return
	}
	applied := eng.Redo()
	s.writeJSON(w, http.StatusOK, undoResponse{Applied: applied, State: eng.State()})
}

// ExportSession handles GET /sessions/{id}/export.
func (s *Server) ExportSession(w http.ResponseWriter, r *http.Request) {
	eng, ok := s.engine(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", chi.URLParam(r, "id")+".json"))
	s.writeJSON(w, http.StatusOK, eng.Export())
}

// ImportSession handles POST /sessions/{id}/import.
func (s *Server) ImportSession(w http.ResponseWriter, r *http.Request) {
	eng, ok := s.engine(w, r)
	if !ok {
		return
	}
	var body domain.Export
	if !s.decode(w, r, &body) {
		return
	}
	if err := eng.Import(&body); err != nil {
		s.fail(w, "ImportSession", err)
		return
	}
	s.writeJSON(w, http.StatusOK, eng.State())
}

// Mermaid handles GET /sessions/{id}/mermaid.
func (s *Server) Mermaid(w http.ResponseWriter, r *http.Request) {
	eng, ok := s.engine(w, r)
	if !ok {
		return
	}
	st := eng.State()
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, graph.GenerateMermaid(st.Title, st.Actors, st.Actions, &graph.Highlight{SelectedActors: st.SelectedActors}))
}

// GetStats handles GET /stats.
func (s *Server) GetStats(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"dispatcher": s.cfg.Dispatcher.Stats(),
		"sessions":   len(s.editors.ids()),
	})
}

// GetHealth handles GET /health. It reports 503 when the worker round trip fails.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	h := s.cfg.Dispatcher.HealthCheck(r.Context())
	status := http.StatusOK
	if !h.Healthy {
		status = http.StatusServiceUnavailable
	}
	s.writeJSON(w, status, h)
}

// GetInfo handles GET /info.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"app":     "umlsync-http",
		"version": strings.TrimSpace(umlsync.Version),
	})
}

// -- Helpers --

func (s *Server) engine(w http.ResponseWriter, r *http.Request) (*runtime.Engine, bool) {
	eng, err := s.editors.get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, "session lookup", err)
		return nil, false
	}
	return eng, true
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		s.logger.Warn("invalid request body", "path", r.URL.Path, "error", err)
		return false
	}
	return true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encode failed", "error", err)
	}
}

func (s *Server) fail(w http.ResponseWriter, op string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrSnapshotNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidEncoding), errors.Is(err, domain.ErrInvalidImport):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrShutdown):
		status = http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	}
	if status >= 500 {
		s.logger.Error(op+" failed", "error", err)
	}
	http.Error(w, err.Error(), status)
}
