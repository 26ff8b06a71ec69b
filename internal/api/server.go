// Package api implements the companion HTTP API.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rcliao/companion-state/internal/apperr"
	"github.com/rcliao/companion-state/internal/memory"
	"github.com/rcliao/companion-state/internal/model"
	"github.com/rcliao/companion-state/internal/reflection"
	"github.com/rcliao/companion-state/internal/relationship"
)

// writeJSON encodes v as JSON to w, logging any errors at debug level.
func writeJSON(w http.ResponseWriter, v any, logger *slog.Logger) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug("failed to write JSON response", "error", err)
	}
}

// Server is the HTTP API server.
type Server struct {
	address   string
	tracker   *relationship.Tracker
	memory    *memory.Manager
	reflector *reflection.Engine
	logger    *slog.Logger
	server    *http.Server
}

// NewServer creates a new API server listening on address (host:port).
func NewServer(address string, tracker *relationship.Tracker, mem *memory.Manager, refl *reflection.Engine, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		address:   address,
		tracker:   tracker,
		memory:    mem,
		reflector: refl,
		logger:    logger.With("component", "api"),
	}
	s.server = &http.Server{
		Addr:         address,
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s
}

// Handler returns the routed handler with request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)

	// Memory lifecycle
	mux.HandleFunc("POST /v1/memory", s.handleMemory)
	mux.HandleFunc("POST /v1/memory/facts", s.handleRemember)

	// Reflection
	mux.HandleFunc("POST /v1/reflection", s.handleReflection)
	mux.HandleFunc("GET /v1/reflection/traits", s.handleTraits)
	mux.HandleFunc("GET /v1/reflection/history", s.handleHistory)
	mux.HandleFunc("GET /v1/reflection/dreams", s.handleDreams)

	// Relationship
	mux.HandleFunc("POST /v1/relationship/interaction", s.handleInteraction)
	mux.HandleFunc("GET /v1/relationship/level", s.handleLevel)
	mux.HandleFunc("GET /v1/relationship/progress", s.handleProgress)
	mux.HandleFunc("POST /v1/relationship/tone", s.handleTone)
	mux.HandleFunc("GET /v1/relationship/greeting", s.handleGreeting)
	mux.HandleFunc("GET /v1/relationship/closing", s.handleClosing)

	return s.withLogging(mux)
}

// Start begins serving HTTP requests. Request contexts derive from ctx. It
// returns http.ErrServerClosed after Shutdown.
func (s *Server) Start(ctx context.Context) error {
	s.server.BaseContext = func(net.Listener) context.Context { return ctx }
	s.logger.Info("starting API server", "address", s.address)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.New().String()
		}
		w.Header().Set("X-Request-ID", reqID)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Info("request",
			"request_id", reqID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]string{"status": "healthy"}, s.logger)
}

func (s *Server) respond(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	writeJSON(w, v, s.logger)
}

func (s *Server) errorResponse(w http.ResponseWriter, code int, kind apperr.Kind, field, message string) {
	body := map[string]any{
		"message": message,
		"type":    strings.ToLower(string(kind)),
		"code":    code,
	}
	if field != "" {
		body["field"] = field
	}
	s.respond(w, code, map[string]any{"error": body})
}

// fail writes err as an error response. Internal details are logged and
// replaced by a generic message.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := apperr.HTTPStatus(err)
	if code >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
	}
	var field string
	var ae *apperr.Error
	if errors.As(err, &ae) {
		field = ae.Field
	}
	s.errorResponse(w, code, apperr.KindOf(err), field, apperr.PublicMessage(err))
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.errorResponse(w, http.StatusBadRequest, apperr.KindValidation, "", "invalid request body")
		return false
	}
	return true
}

func requirePair(p model.Pair, companionField string) error {
	if p.UserID == 0 {
		return apperr.Required("userId")
	}
	if p.CompanionID == 0 {
		return apperr.Required(companionField)
	}
	return nil
}

// int64Param parses an optional integer query parameter.
func int64Param(r *http.Request, name string) (int64, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, apperr.Validation(name, "%s must be an integer, got %q", name, v)
	}
	return n, nil
}

// pairParams reads userId and the companion parameter from the query string.
func pairParams(r *http.Request, companionField string) (model.Pair, error) {
	var p model.Pair
	var err error
	if p.UserID, err = int64Param(r, "userId"); err != nil {
		return p, err
	}
	if p.CompanionID, err = int64Param(r, companionField); err != nil {
		return p, err
	}
	return p, nil
}

func parseIntParam(r *http.Request, name string, defaultVal int) int {
	s := r.URL.Query().Get(name)
	if s == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return defaultVal
	}
	return n
}
