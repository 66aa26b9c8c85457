// Package http serves the ledger API, the xlsx export and the embedded
// client shell.
package http

import (
	"context"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"contabils/internal/auth"
	"contabils/internal/export"
	applog "contabils/internal/log"
	"contabils/internal/middleware/ratelimit"
	"contabils/internal/middleware/security"
	"contabils/internal/middleware/trace"
	"contabils/internal/services"
)

// Pinger is the store health probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PublicConfig is what the browser shell needs before it can sign in.
type PublicConfig struct {
	IdentityURL     string `json:"identity_url"`
	IdentityAnonKey string `json:"identity_anon_key"`
	ShellVersion    string `json:"shell_version"`
	AuthMode        string `json:"auth_mode"`
}

// Deps wires the server to the rest of the application.
type Deps struct {
	Catalog  *services.CatalogService
	Ledger   *services.LedgerService
	Exporter *export.Exporter
	Store    Pinger
	Resolver auth.Resolver

	Public       PublicConfig
	WorkerScript []byte
	Static       fs.FS

	Logger             *applog.Logger
	RateLimitPerMinute int
	// Now drives the default month. Defaults to time.Now.
	Now func() time.Time
}

type Server struct {
	http.Server
	deps     Deps
	logger   *applog.Logger
	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware
	now      func() time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, deps Deps) *Server {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Logger == nil {
		deps.Logger = applog.New(applog.DefaultConfig())
	}

	detector := security.NewDetector()
	s := &Server{
		deps:     deps,
		logger:   deps.Logger.WithComponent(applog.ComponentHTTP),
		limiter:  ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: deps.RateLimitPerMinute}),
		detector: detector,
		tracer:   trace.NewMiddleware(deps.Logger, detector.ExtractClientIP),
		now:      deps.Now,
	}

	mux := http.NewServeMux()
	s.routes(mux)

	var connect []string
	if deps.Public.IdentityURL != "" {
		connect = append(connect, deps.Public.IdentityURL)
	}
	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig(connect...))

	var handler http.Handler = mux
	handler = detector.Middleware(handler)
	handler = headers.Middleware(handler)
	handler = s.tracer.Middleware(handler)
	handler = applog.Middleware(deps.Logger)(handler)

	s.Server = http.Server{
		Addr:           addr,
		Handler:        handler,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   30 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 16,
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	gate := auth.Gate(s.deps.Resolver, s.writeAuthError)
	limit := s.limiter.Middleware(s.detector.ExtractClientIP, s.writeRateLimited)

	mux.HandleFunc("GET /api/categories", s.handleListCategories)
	mux.Handle("POST /api/categories", limit(http.HandlerFunc(s.handleCreateCategory)))

	mux.Handle("GET /api/transactions", gate(http.HandlerFunc(s.handleListTransactions)))
	mux.Handle("POST /api/transactions", limit(gate(http.HandlerFunc(s.handleCreateTransaction))))
	mux.Handle("DELETE /api/transactions/{id}", limit(gate(http.HandlerFunc(s.handleDeleteTransaction))))
	mux.Handle("GET /api/summary", gate(http.HandlerFunc(s.handleSummary)))
	mux.Handle("GET /export.xlsx", gate(http.HandlerFunc(s.handleExport)))

	mux.Handle("GET /api/config", security.NoCache(http.HandlerFunc(s.handleConfig)))
	mux.HandleFunc("/api/", s.handleAPINotFound)

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /healthz", handleLive)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.Handle("GET /sw.js", security.NoCache(http.HandlerFunc(s.handleWorkerScript)))
	mux.HandleFunc("GET /{$}", s.handleAsset("index.html"))
	mux.HandleFunc("GET /index.html", s.handleAsset("index.html"))
	mux.HandleFunc("GET /{file}", s.handleStatic)
}

// Shutdown stops the limiter cleanup and drains the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}
