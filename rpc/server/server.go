package server

import (
	"context"
	"errors"
	"github.com/ValentinKolb/wbKV/lib/savesvc"
	"github.com/ValentinKolb/wbKV/rpc/common"
	"github.com/lni/dragonboat/v4/logger"
	"net"
	"net/http"
	"time"
)

var Logger = logger.GetLogger("rpc")

// maxBodyBytes limits the size of a single payload
const maxBodyBytes = 16 << 20

// NewRPCServer creates a new http server for the save service.
// The server does not own the service, the caller closes it after Serve returned.
//
// Usage:
//
//	s := server.NewRPCServer(config, svc)
//
//	if err := s.Serve(ctx); err != nil {
//		panic(err)
//	}
func NewRPCServer(config common.ServerConfig, svc *savesvc.Service) *Server {
	s := &Server{
		config: config,
		svc:    svc,
	}
	s.handler = s.routes()

	Logger.Infof("Created RPC Server")
	return s
}

// Server serves the save service over http
type Server struct {
	config  common.ServerConfig
	svc     *savesvc.Service
	handler http.Handler
}

// Handler returns the http handler with all routes of the api
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Serve listens on the configured endpoint until the context is canceled,
// then shuts the http server down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Endpoint)
	if err != nil {
		return err
	}
	return s.ServeListener(ctx, ln)
}

// ServeListener is like Serve but accepts connections on the given listener
func (s *Server) ServeListener(ctx context.Context, ln net.Listener) error {
	timeout := time.Duration(s.config.TimeoutSecond) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	httpServer := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: timeout,
	}

	errCh := make(chan error, 1)
	go func() {
		Logger.Infof("Starting HTTP server on %s", ln.Addr())
		errCh <- httpServer.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	Logger.Infof("Stopping HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// routes registers all handlers
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	wrap := func(h http.HandlerFunc) http.HandlerFunc { return h }
	if s.config.LogLevel == "debug" {
		wrap = loggerMiddleware
	}

	mux.HandleFunc("PUT /kv/{key}", wrap(s.handleSave))
	mux.HandleFunc("GET /kv/{key}", wrap(s.handleLoad)) // also HEAD (= exists)
	mux.HandleFunc("DELETE /kv/{key}", wrap(s.handleDelete))
	mux.HandleFunc("GET /kv/{key}/exists", wrap(s.handleExists))
	mux.HandleFunc("POST /flush", wrap(s.handleFlush))
	mux.HandleFunc("GET /stats", wrap(s.handleStats))
	mux.HandleFunc("GET /metrics", wrap(s.handleMetrics))

	return mux
}
