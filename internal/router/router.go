// Package router assembles the HTTP surface: handler registration,
// rate limiting, request logging and metrics.
package router

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/telemeet/conference-mapper/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Handler is anything that can register its routes on the router.
type Handler interface {
	RegisterRoutes(router *mux.Router, logger *zap.Logger)
}

// Router wraps the mux router with the service middleware.
type Router struct {
	mux     *mux.Router
	limiter *rate.Limiter
	logger  *zap.Logger

	requests metric.Int64Counter
	duration metric.Float64Histogram
}

// NewRouter builds the router, registers every handler and the
// operational endpoints, and installs the middleware chain.
func NewRouter(limiter *rate.Limiter, tel *telemetry.Telemetry, logger *zap.Logger, handlers []Handler) *Router {
	r := &Router{
		mux:     mux.NewRouter(),
		limiter: limiter,
		logger:  logger.Named("http"),
	}

	if tel != nil {
		var err error
		r.requests, err = tel.Meter.Int64Counter("http_requests_total",
			metric.WithDescription("HTTP requests by path and status"))
		if err != nil {
			logger.Warn("failed to create request counter", zap.Error(err))
		}
		r.duration, err = tel.Meter.Float64Histogram("http_request_duration_seconds",
			metric.WithDescription("HTTP request duration in seconds"))
		if err != nil {
			logger.Warn("failed to create duration histogram", zap.Error(err))
		}
		r.mux.Handle("/metrics", tel.Handler()).Methods("GET")
	}

	r.mux.HandleFunc("/healthz", handleHealthz).Methods("GET")

	for _, h := range handlers {
		h.RegisterRoutes(r.mux, logger)
	}

	// Everything else, path or method, is a plain-text 404.
	r.mux.NotFoundHandler = http.HandlerFunc(handleNotFound)
	r.mux.MethodNotAllowedHandler = http.HandlerFunc(handleNotFound)

	r.mux.Use(r.rateLimitMiddleware, r.observeMiddleware)
	return r
}

// CreateServer returns an HTTP server for the router.
func (r *Router) CreateServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           r.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// ServeHTTP implements the http.Handler interface.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

func handleHealthz(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func handleNotFound(w http.ResponseWriter, req *http.Request) {
	w.WriteHeader(http.StatusNotFound)
	_, _ = w.Write([]byte("Not found"))
}

func (r *Router) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if r.limiter != nil && !r.limiter.Allow() {
			r.logger.Warn("request rate limited", zap.String("path", req.URL.Path))
			http.Error(w, "Too many requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, req)
	})
}

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (r *Router) observeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, req)

		elapsed := time.Since(start)
		r.logger.Info("request handled",
			zap.String("method", req.Method),
			zap.String("path", req.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("elapsed", elapsed),
		)
		if r.requests != nil {
			r.requests.Add(req.Context(), 1, metric.WithAttributes(
				attribute.String("path", req.URL.Path),
				attribute.Int("status", rec.status),
			))
		}
		if r.duration != nil {
			r.duration.Record(req.Context(), elapsed.Seconds())
		}
	})
}
