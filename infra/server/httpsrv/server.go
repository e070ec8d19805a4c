// Package httpsrv hosts the local HTTP API, the live stream and long-poll
// endpoints.
package httpsrv

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/webitel/user-admin-client/infra/server/httpsrv/interceptors"
	"github.com/webitel/user-admin-client/internal/handler/api"
	"github.com/webitel/user-admin-client/internal/handler/lp"
	"github.com/webitel/user-admin-client/internal/handler/ws"
)

const (
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 10 * time.Second
)

// NewRouter wires every handler behind the shared middleware chain.
func NewRouter(logger *slog.Logger, apiHandler *api.Handler, wsHandler *ws.WSHandler, lpHandler *lp.LPHandler) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(logger))
	r.Use(interceptors.NewConsumerInterceptor())

	r.Route("/api", apiHandler.Routes)
	r.Handle("/ws/events", wsHandler)
	r.Get("/lp", lpHandler.Poll)
	r.Get("/lp/{consumer}", lpHandler.Poll)

	return r
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)

			logger.Debug("HTTP_REQUEST",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}

type Server struct {
	addr   string
	srv    *http.Server
	logger *slog.Logger
	ln     net.Listener
}

func NewServer(addr string, handler http.Handler, logger *slog.Logger) *Server {
	return &Server{
		addr:   addr,
		logger: logger,
		srv: &http.Server{
			Handler:           handler,
			ReadHeaderTimeout: readHeaderTimeout,
		},
	}
}

// Start binds the listener synchronously so address errors surface at boot,
// then serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("net listen: %w", err)
	}
	s.ln = ln

	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP_SERVER_FAILED", "err", err)
		}
	}()

	s.logger.Info("HTTP_SERVER_STARTED", "addr", ln.Addr().String())
	return nil
}

// Addr is the bound address, useful when the configured port is 0.
func (s *Server) Addr() string {
	if s.ln == nil {
		return s.addr
	}
	return s.ln.Addr().String()
}

func (s *Server) Stop(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	return s.srv.Shutdown(ctx)
}
