package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vango-dev/routewrap/internal/dev"
	"github.com/vango-dev/routewrap/internal/errors"
	"github.com/vango-dev/routewrap/internal/wrap"
)

// MaxRequestBytes bounds a transform request body.
const MaxRequestBytes = 32 << 20

// Config configures the sidecar.
type Config struct {
	// Addr is the listen address. Default: "localhost:7300"
	Addr string

	// Transformer handles /v1/transform. Required.
	Transformer *wrap.Transformer

	// Hub serves /v1/events. Without one the route is not mounted.
	Hub *dev.Hub

	// Gatherer backs /metrics. Default: prometheus.DefaultGatherer
	Gatherer prometheus.Gatherer

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// ShutdownTimeout bounds graceful shutdown. Default: 5s
	ShutdownTimeout time.Duration
}

// Server is the HTTP sidecar a JS build host calls into.
type Server struct {
	config Config
	router chi.Router
	logger *slog.Logger
}

// TransformRequest is the body of POST /v1/transform.
type TransformRequest struct {
	ResourcePath string          `json:"resourcePath"`
	Code         string          `json:"code"`
	Map          json.RawMessage `json:"map,omitempty"`
}

// TransformResponse is the reply to POST /v1/transform.
type TransformResponse struct {
	Code   string          `json:"code"`
	Map    json.RawMessage `json:"map,omitempty"`
	Status string          `json:"status"`
	Route  string          `json:"route,omitempty"`
	Role   string          `json:"role,omitempty"`
	Error  string          `json:"error,omitempty"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// New creates a server. It returns E230 when no transformer is given.
func New(cfg Config) (*Server, error) {
	if cfg.Transformer == nil {
		return nil, errors.New("E230").WithDetail("server: transformer is required")
	}
	if cfg.Addr == "" {
		cfg.Addr = "localhost:7300"
	}
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 5 * time.Second
	}

	s := &Server{config: cfg, logger: cfg.Logger}
	s.router = s.routes()
	return s, nil
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.HandlerFor(s.config.Gatherer, promhttp.HandlerOpts{}))
	r.Post("/v1/transform", s.handleTransform)
	if s.config.Hub != nil {
		r.Get("/v1/events", s.config.Hub.HandleWebSocket)
	}
	return r
}

// Handler returns the router for mounting elsewhere or testing.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.config.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("sidecar listening", "address", s.config.Addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != http.ErrServerClosed {
			return err
		}
		return nil

	case <-ctx.Done():
		s.logger.Info("shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()
		if s.config.Hub != nil {
			s.config.Hub.Close()
		}
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("shutdown error", "error", err)
			return err
		}
		return nil
	}
}

func (s *Server) handleTransform(w http.ResponseWriter, r *http.Request) {
	var req TransformRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxRequestBytes))
	if err := dec.Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, errors.New("E250").WithDetail("malformed request body").Wrap(err))
		return
	}
	if req.ResourcePath == "" {
		s.writeError(w, http.StatusBadRequest, errors.New("E250").WithDetail("resourcePath is required"))
		return
	}

	inMap, err := decodeMap(req.Map)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, errors.New("E250").WithDetail("map must be an object or a string").Wrap(err))
		return
	}

	out := s.config.Transformer.Transform(r.Context(), wrap.Input{
		ResourcePath: req.ResourcePath,
		Code:         req.Code,
		Map:          inMap,
	})

	resp := TransformResponse{
		Code:   out.Code,
		Status: out.Status.String(),
		Route:  out.Route.Route,
	}
	if out.Route.Route != "" {
		resp.Role = out.Route.Role.String()
	}
	if len(out.Map) > 0 {
		resp.Map = json.RawMessage(out.Map)
	}
	if out.Err != nil {
		resp.Error = out.Err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

// decodeMap accepts a source map given either as a JSON object or as a
// JSON string holding one.
func decodeMap(raw json.RawMessage) ([]byte, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		if s == "" {
			return nil, nil
		}
		return []byte(s), nil
	}
	if raw[0] != '{' {
		return nil, errors.New("E213").WithDetail("unexpected JSON value")
	}
	return raw, nil
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.logger.Warn("rejected transform request", "error", err)
	resp := errorResponse{Code: errors.CodeOf(err), Message: err.Error()}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
