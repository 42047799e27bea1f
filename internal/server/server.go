package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/bogdansurdu/vibranium-waccanda/internal/storage"
)

// Locator resolves a package name and version to a stored file location.
type Locator interface {
	Locate(ctx context.Context, name, version string) (string, error)
}

// Pinger reports database reachability.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Config carries the listen address and every dependency the handlers use.
// Handlers receive it explicitly; there is no package-level state.
type Config struct {
	Addr           string // e.g. ":3000"
	Version        string
	Packages       Locator
	DB             Pinger
	Storage        storage.Store
	Logger         *zap.Logger
	Metrics        *Metrics
	MaxUploadBytes int64 // 0 disables the limit
	RateLimit      int   // POST requests per minute per IP, 0 disables
}

type Server struct {
	httpServer *http.Server
	limiter    *rateLimiter
}

// New builds the router and middleware chain.
func New(cfg Config) (*Server, error) {
	if cfg.Packages == nil || cfg.DB == nil || cfg.Storage == nil {
		return nil, errors.New("server: packages, db and storage are required")
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	views, err := loadPages()
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()

	mux.Handle("GET /{$}", views.page("index", "WACCANDA"))
	mux.Handle("GET /upload", views.page("upload", "WACCANDA Upload"))
	mux.Handle("GET /error", views.errorHandler())
	mux.Handle("GET /download", views.page("download", "WACCANDA Download"))
	mux.Handle("GET /static/", staticHandler())

	mux.Handle("POST /upload", cfg.uploadHandler())
	mux.Handle("POST /api/install/{package}/{version}", cfg.installHandler())

	mux.HandleFunc("GET /health", cfg.handleHealth)
	mux.HandleFunc("GET /ready", cfg.handleReady)
	mux.HandleFunc("GET /live", handleLive)
	mux.Handle("GET /metrics", cfg.Metrics.Handler())

	// Wrap middleware: requestID -> logging -> recover -> security -> rate limit -> mux
	var handler http.Handler = mux
	var limiter *rateLimiter
	if cfg.RateLimit > 0 {
		limiter = newRateLimiter(cfg.RateLimit, time.Minute)
		handler = limiter.middleware(handler)
	}
	handler = securityHeadersMiddleware(handler)
	handler = recoverMiddleware(cfg.Logger, handler)
	handler = loggingMiddleware(cfg.Logger, cfg.Metrics, handler)
	handler = requestIDMiddleware(handler)

	s := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ErrorLog:          zap.NewStdLog(cfg.Logger),
	}

	return &Server{httpServer: s, limiter: limiter}, nil
}

// Handler exposes the full middleware chain, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	return s.httpServer.Serve(ln)
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.limiter != nil {
		s.limiter.close()
	}
	return s.httpServer.Shutdown(ctx)
}
