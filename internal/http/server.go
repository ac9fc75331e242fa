// Package http serves the device dashboard API as JSON.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"bmeutil/internal/core"
	applog "bmeutil/internal/log"
	"bmeutil/internal/metrics"
	"bmeutil/internal/middleware/ratelimit"
	"bmeutil/internal/middleware/security"
	"bmeutil/internal/middleware/trace"
)

// DeviceAPI is the aggregation surface the handlers call.
type DeviceAPI interface {
	InitialEquipmentMap(ctx context.Context) (map[string]core.Equipment, error)
	BuildDeviceResponse(ctx context.Context, aeTitle string) (*core.DeviceResponse, error)
	MonthlySummary(ctx context.Context, aeTitle, serviceFilter string) ([]core.MonthSummary, error)
	Reload(ctx context.Context) error
	Ready() bool
}

type Server struct {
	http.Server
	svc     DeviceAPI
	logger  *applog.Logger
	metrics *metrics.Metrics

	detector     *security.Detector
	reloadLimit  ratelimit.Config
	limiter      *ratelimit.Limiter
	shutdownOnce sync.Once
}

type Option func(*Server)

func WithLogger(logger *applog.Logger) Option {
	return func(s *Server) { s.logger = logger.WithComponent(applog.ComponentHTTP) }
}

// WithMetrics records request metrics and serves them on /metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithReloadLimit overrides the per-client limit on POST /api/reload.
func WithReloadLimit(cfg ratelimit.Config) Option {
	return func(s *Server) { s.reloadLimit = cfg }
}

func NewServer(addr string, svc DeviceAPI, opts ...Option) *Server {
	s := &Server{
		svc:         svc,
		logger:      applog.Default().WithComponent(applog.ComponentHTTP),
		reloadLimit: ratelimit.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.detector = security.NewDetector(s.logger)
	s.limiter = ratelimit.NewLimiter(s.reloadLimit)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /api/initial-data", s.handleInitialData)
	mux.HandleFunc("GET /api/device-data/{aeTitle}", s.handleDeviceData)
	mux.HandleFunc("GET /api/device-data/", s.handleMissingAETitle)
	mux.HandleFunc("GET /api/device-summary/{aeTitle}", s.handleDeviceSummary)
	mux.Handle("POST /api/reload", s.limiter.Middleware(s.detector.ExtractClientIP, s.onReloadLimited)(
		http.HandlerFunc(s.handleReload)))
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}

	var handler http.Handler = mux
	handler = s.detector.Middleware(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = trace.NewMiddleware(s.logger, s.detector.ExtractClientIP, s.metrics).Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      5 * time.Minute, // a cold device request waits for the reference load
		IdleTimeout:       2 * time.Minute,
	}
	return s
}

// Shutdown stops the limiter and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func (s *Server) onReloadLimited(r *http.Request) {
	s.metrics.Limited()
	applog.FromContext(r.Context()).WarnContext(r.Context(), "Reload rate limit exceeded",
		applog.FieldClientIP, s.detector.ExtractClientIP(r))
}
