package api

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/HenGPlayZ/lavalink-status/internal/clientip"
	"github.com/HenGPlayZ/lavalink-status/internal/metrics"
	"github.com/HenGPlayZ/lavalink-status/internal/problem"
	"github.com/HenGPlayZ/lavalink-status/internal/ratelimit"
)

// Server is the public status API server.
type Server struct {
	httpServer *http.Server
	handler    http.Handler
}

// ServerDeps holds the dependencies injected into the API server.
type ServerDeps struct {
	Handler        *APIHandler
	RateLimiter    *ratelimit.Limiter
	Resolver       *clientip.Resolver
	Metrics        *metrics.Collector
	AllowedOrigins []string
	TLSConfig      *tls.Config
	ListenAddr     string
	WriteTimeout   time.Duration
	ReadTimeout    time.Duration
}

// NewServer creates a new API server with middleware stack.
func NewServer(deps ServerDeps) *Server {
	mux := http.NewServeMux()
	deps.Handler.Register(mux, deps.RateLimiter)

	// Build middleware stack (innermost first)
	var handler http.Handler = mux
	handler = withPanicRecovery(handler)
	handler = withCORS(handler, deps.AllowedOrigins, deps.Metrics)
	handler = withLogging(handler, deps.Resolver, deps.Metrics)
	handler = withRequestID(handler)

	return &Server{
		handler: handler,
		httpServer: &http.Server{
			Addr:         deps.ListenAddr,
			Handler:      handler,
			TLSConfig:    deps.TLSConfig,
			WriteTimeout: deps.WriteTimeout,
			ReadTimeout:  deps.ReadTimeout,
		},
	}
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start begins listening for HTTP requests, or HTTPS when a TLS
// configuration was supplied.
func (s *Server) Start() error {
	var err error
	if s.httpServer.TLSConfig != nil {
		slog.Info("starting API server", "addr", s.httpServer.Addr, "tls", true)
		err = s.httpServer.ListenAndServeTLS("", "")
	} else {
		slog.Info("starting API server", "addr", s.httpServer.Addr, "tls", false)
		err = s.httpServer.ListenAndServe()
	}
	if err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("API server: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the API server.
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("shutting down API server")
	return s.httpServer.Shutdown(ctx)
}

// Middleware: structured logging
func withLogging(next http.Handler, resolver *clientip.Resolver, m *metrics.Collector) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		m.IncHTTPRequest(r.Method, strconv.Itoa(sw.status))
		slog.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.status,
			"duration", time.Since(start),
			"client_ip", resolver.FromRequest(r),
			"request_id", RequestID(r.Context()),
		)
	})
}

// Middleware: panic recovery
func withPanicRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				slog.Error("panic recovered in HTTP handler",
					"error", err,
					"path", r.URL.Path,
				)
				WriteProblem(w, http.StatusInternalServerError, "Internal Server Error",
					"An unexpected error occurred. Please try again later.")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// WriteProblem writes an RFC 7807 Problem Details JSON response.
func WriteProblem(w http.ResponseWriter, status int, title, detail string) {
	problem.Write(w, status, title, detail)
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
