package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aretw0/foreman"
	"github.com/aretw0/foreman/internal/logging"
	"github.com/aretw0/foreman/pkg/domain"
	"github.com/aretw0/foreman/pkg/ports"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Request and response bodies of the machine service REST API.
type (
	CreateRequest struct {
		Recipe        domain.Recipe `json:"recipe"`
		OutputChannel string        `json:"output_channel"`
	}

	BindRequest struct {
		ProjectPath string `json:"project_path"`
	}

	ProcessRequest struct {
		CommandLine   string `json:"command_line"`
		OutputChannel string `json:"output_channel"`
	}

	ErrorResponse struct {
		Message string `json:"message"`
	}
)

// Server exposes a ports.MachineService over HTTP.
type Server struct {
	Service ports.MachineService
	logger  *slog.Logger
	metrics http.Handler
}

// ServerOption configures the handler returned by NewHandler.
type ServerOption func(*Server)

// WithServerLogger sets the request logger.
func WithServerLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMetricsHandler mounts h at /metrics.
func WithMetricsHandler(h http.Handler) ServerOption {
	return func(s *Server) {
		s.metrics = h
	}
}

// NewHandler creates the REST handler for svc.
func NewHandler(svc ports.MachineService, opts ...ServerOption) http.Handler {
	server := &Server{
		Service: svc,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(server)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(enableCORS)

	r.Get("/health", server.GetHealth)
	r.Get("/info", server.GetInfo)
	if server.metrics != nil {
		r.Method(http.MethodGet, "/metrics", server.metrics)
	}

	r.Route("/machines", func(r chi.Router) {
		r.Get("/", server.ListMachines)
		r.Post("/recipe", server.CreateFromRecipe)
		r.Route("/{id}", func(r chi.Router) {
			r.Delete("/", server.Destroy)
			r.Post("/bind", server.BindProject)
			r.Post("/processes", server.ExecuteCommand)
		})
	})
	return r
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ListMachines handles GET /machines?project=<path>.
func (s *Server) ListMachines(w http.ResponseWriter, r *http.Request) {
	machines, err := s.Service.ListMachines(r.Context(), r.URL.Query().Get("project"))
	if err != nil {
		s.fail(w, "list machines", err)
		return
	}
	if machines == nil {
		machines = []domain.MachineDescriptor{}
	}
	s.reply(w, http.StatusOK, machines)
}

// CreateFromRecipe handles POST /machines/recipe.
func (s *Server) CreateFromRecipe(w http.ResponseWriter, r *http.Request) {
	var body CreateRequest
	if !s.decode(w, r, &body) {
		return
	}
	if body.OutputChannel == "" {
		s.reject(w, http.StatusBadRequest, "output_channel is required")
		return
	}

	desc, err := s.Service.CreateFromRecipe(r.Context(), body.Recipe, body.OutputChannel)
	if err != nil {
		s.fail(w, "create machine", err)
		return
	}
	s.reply(w, http.StatusCreated, desc)
}

// Destroy handles DELETE /machines/{id}.
func (s *Server) Destroy(w http.ResponseWriter, r *http.Request) {
	id := domain.MachineID(chi.URLParam(r, "id"))
	if err := s.Service.Destroy(r.Context(), id); err != nil {
		s.fail(w, "destroy machine", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// BindProject handles POST /machines/{id}/bind.
func (s *Server) BindProject(w http.ResponseWriter, r *http.Request) {
	var body BindRequest
	if !s.decode(w, r, &body) {
		return
	}
	id := domain.MachineID(chi.URLParam(r, "id"))
	if err := s.Service.BindProject(r.Context(), id, body.ProjectPath); err != nil {
		s.fail(w, "bind project", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ExecuteCommand handles POST /machines/{id}/processes. Output is published
// asynchronously, so a successful call answers 202.
func (s *Server) ExecuteCommand(w http.ResponseWriter, r *http.Request) {
	var body ProcessRequest
	if !s.decode(w, r, &body) {
		return
	}
	if strings.TrimSpace(body.CommandLine) == "" || body.OutputChannel == "" {
		s.reject(w, http.StatusBadRequest, "command_line and output_channel are required")
		return
	}
	id := domain.MachineID(chi.URLParam(r, "id"))
	if err := s.Service.ExecuteCommand(r.Context(), id, body.CommandLine, body.OutputChannel); err != nil {
		s.fail(w, "execute command", err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// GetHealth handles GET /health.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.reply(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles GET /info.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	s.reply(w, http.StatusOK, map[string]string{
		"app":     "foreman-machines",
		"version": strings.TrimSpace(foreman.Version),
	})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.logger.Warn("invalid request body", "path", r.URL.Path, "err", err)
		s.reject(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// fail maps a service error to a status code. The message carries the cause
// without the service's own operation prefix, the client adds its own.
func (s *Server) fail(w http.ResponseWriter, op string, err error) {
	status := http.StatusInternalServerError
	msg := err.Error()

	var rce *domain.RemoteCallError
	if errors.As(err, &rce) {
		status = http.StatusUnprocessableEntity
		msg = rce.Err.Error()
	}
	if errors.Is(err, domain.ErrMachineNotFound) {
		status = http.StatusNotFound
	}

	if status == http.StatusInternalServerError {
		s.logger.Error("machine service call failed", "op", op, "err", err)
	} else {
		s.logger.Warn("machine service call rejected", "op", op, "err", err)
	}
	s.reject(w, status, msg)
}

func (s *Server) reject(w http.ResponseWriter, status int, msg string) {
	s.reply(w, status, ErrorResponse{Message: msg})
}

func (s *Server) reply(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encode failed", "err", err)
	}
}
