package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/escofresco/transfer/internal/shared"
)

// Middleware wraps an http.Handler and returns a new http.Handler with additional behavior.
type Middleware func(http.Handler) http.Handler

// Handler is an [http.Handler] that knows the GET routes it serves.
type Handler interface {
	http.Handler
	Routes() []string
}

// NewRouter mounts handlers on a chi router with the standard middleware stack.
func NewRouter(logger *log.Logger, handlers ...Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(RequestLogger(logger))

	for _, h := range handlers {
		for _, route := range h.Routes() {
			r.Method(http.MethodGet, route, h)
		}
	}
	return r
}

// RequestLogger logs each request at debug level once it completes.
func RequestLogger(logger *log.Logger) Middleware {
	if logger == nil {
		logger = shared.NewLogger(io.Discard)
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}

// CallbackServer listens for a single OAuth2 redirect.
type CallbackServer struct {
	handler  *CallbackHandler
	server   *http.Server
	listener net.Listener
	logger   *log.Logger
}

// NewCallbackServer creates a server for addr that accepts redirects carrying state.
func NewCallbackServer(addr, state string, logger *log.Logger) *CallbackServer {
	if logger == nil {
		logger = shared.NewLogger(io.Discard)
	}
	handler := NewCallbackHandler(state)
	return &CallbackServer{
		handler: handler,
		logger:  logger,
		server: &http.Server{
			Addr:              addr,
			Handler:           NewRouter(logger, handler),
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Start binds the listener and serves in the background.
func (s *CallbackServer) Start() error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.server.Addr, err)
	}
	s.listener = ln

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("callback server stopped", "error", err)
		}
	}()
	s.logger.Debug("callback server listening", "addr", ln.Addr().String())
	return nil
}

// Addr returns the bound address, or the configured one before [CallbackServer.Start].
func (s *CallbackServer) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.server.Addr
}

// Wait blocks until the callback arrives or ctx ends.
//
// It returns the redirect URL to pass to the session login.
func (s *CallbackServer) Wait(ctx context.Context) (string, error) {
	select {
	case res, ok := <-s.handler.Result():
		if !ok {
			return "", fmt.Errorf("%w: callback already consumed", shared.ErrAuthFailed)
		}
		return res.URL, res.Err
	case <-ctx.Done():
		return "", fmt.Errorf("%w: %v", shared.ErrAuthTimeout, ctx.Err())
	}
}

// Shutdown stops the server gracefully.
func (s *CallbackServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
