package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"

	"transitnet/internal/handler"
)

// Server is the read-only HTTP API over built networks.
type Server struct {
	router *httprouter.Router
	port   int
	logger *slog.Logger
}

// New creates a new Server with all routes registered.
func New(port int, nets handler.Snapshots, logger *slog.Logger) *Server {
	router := httprouter.New()
	h := handler.New(nets, logger)

	router.HandlerFunc(http.MethodGet, "/healthz", h.Health)
	router.HandlerFunc(http.MethodGet, "/networks/:kind", h.Network)
	router.HandlerFunc(http.MethodGet, "/networks/:kind/nodes.csv", h.NodesCSV)
	router.HandlerFunc(http.MethodGet, "/networks/:kind/edges.csv", h.EdgesCSV)
	router.HandlerFunc(http.MethodGet, "/networks/:kind/geojson", h.GeoJSON)

	return &Server{router: router, port: port, logger: logger}
}

// Handler returns the router wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	return withMiddleware(s.router, s.logger)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.logger.Info("server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
