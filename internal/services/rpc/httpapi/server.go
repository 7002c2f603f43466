package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"

	"github.com/louisbranch/mathmcp/internal/platform/timeouts"
	"golang.org/x/sync/errgroup"
)

var listenTCP = net.Listen

// Server runs the HTTP routes on a TCP address.
type Server struct {
	addr       string
	httpServer *http.Server
	listener   net.Listener
}

// NewServer binds addr and prepares handler for serving. Binding happens here
// so address errors surface at startup rather than inside Start.
func NewServer(addr string, handler http.Handler) (*Server, error) {
	listener, err := listenTCP("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}
	return &Server{
		addr:     listener.Addr().String(),
		listener: listener,
		httpServer: &http.Server{
			Handler:           handler,
			ReadHeaderTimeout: timeouts.ReadHeader,
		},
	}, nil
}

// Addr returns the bound listen address.
func (s *Server) Addr() string {
	if s == nil {
		return ""
	}
	return s.addr
}

// Start serves requests until ctx is canceled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	if s == nil || s.httpServer == nil {
		return fmt.Errorf("HTTP server is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		log.Printf("HTTP server listening on %s", s.addr)
		if err := s.httpServer.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve HTTP: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		log.Printf("Shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown HTTP server: %w", err)
		}
		return nil
	})
	return group.Wait()
}
