package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	apperrors "github.com/signrelay/signrelay/internal/errors"
	"github.com/signrelay/signrelay/internal/observability"
	"github.com/signrelay/signrelay/internal/server/handlers"
	servermw "github.com/signrelay/signrelay/internal/server/middleware"
)

// Mount registers additional routes on the router.
type Mount func(r chi.Router)

// Server represents the HTTP server
type Server struct {
	router *chi.Mux

	mu     sync.Mutex
	server *http.Server
	host   string
	port   int
}

// New creates a new HTTP server instance with the standard health, version
// and metrics routes plus the supplied mounts.
func New(host string, port int, mounts ...Mount) *Server {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)

	// RequestID → CORS → Metrics → Recovery
	r.Use(servermw.RequestID)
	r.Use(servermw.CORS)
	r.Use(servermw.RequestMetrics)
	r.Use(servermw.Recovery)

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		HandleError(w, req, apperrors.NewNotFoundError("The requested resource was not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		HandleError(w, req, apperrors.NewMethodNotAllowedError("The requested method is not allowed for this resource"))
	})

	s := &Server{
		router: r,
		host:   host,
		port:   port,
	}

	handlers.SetHTTPErrorResponder(HandleError)

	s.registerRoutes()
	for _, mount := range mounts {
		if mount != nil {
			mount(r)
		}
	}

	return s
}

func (s *Server) httpServer(addr string) *http.Server {
	return &http.Server{
		Addr:    addr,
		Handler: s.router,
		// Long-lived /events websockets manage their own deadlines.
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

// Start binds the listener and serves until Shutdown. A bind failure is
// returned immediately.
func (s *Server) Start() error {
	ln, err := s.Listen()
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Listen binds the configured host and port.
func (s *Server) Listen() (net.Listener, error) {
	addr := fmt.Sprintf("%s:%d", s.host, s.port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("bind %s: %w", addr, err)
	}
	return ln, nil
}

// Serve serves on an existing listener.
func (s *Server) Serve(ln net.Listener) error {
	srv := s.httpServer(ln.Addr().String())
	s.mu.Lock()
	s.server = srv
	s.mu.Unlock()

	observability.Logger().Info("Starting HTTP server",
		zap.String("host", s.host),
		zap.Int("port", s.port),
		zap.String("addr", ln.Addr().String()))

	err := srv.Serve(ln)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	observability.Logger().Info("Shutting down HTTP server")
	return srv.Shutdown(ctx)
}

// Handler exposes the underlying router for testing and instrumentation
func (s *Server) Handler() http.Handler {
	return s.router
}

// Port returns the server port for testing
func (s *Server) Port() int {
	return s.port
}
