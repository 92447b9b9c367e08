package http

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"walletbot/internal/config"

	"gitlab.com/nevasik7/alerting/logger"
)

type Server struct {
	log  logger.Logger
	srv  *http.Server
	addr string // resolved listen address, set by Start
}

func NewServer(log logger.Logger, cfg *config.HTTPConfig, handler http.Handler) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("http config is required")
	}
	if cfg.Addr == "" {
		return nil, errors.New("http addr is required")
	}

	return &Server{
		log: log,
		srv: &http.Server{
			Addr:              cfg.Addr,
			Handler:           handler,
			ReadTimeout:       cfg.ReadTimeout,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      cfg.WriteTimeout,
			IdleTimeout:       cfg.IdleTimeout,
		},
	}, nil
}

// Start listens and serves in the background; serve failures go to errCh
func (s *Server) Start(errCh chan<- error) error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("failed listen http %s, error=%w", s.srv.Addr, err)
	}

	s.addr = ln.Addr().String()
	s.log.Infof("HTTP server listening on %s", s.addr)

	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server failed, error=%w", err)
		}
	}()

	return nil
}

// Addr listen address, the resolved one once started
func (s *Server) Addr() string {
	if s.addr != "" {
		return s.addr
	}
	return s.srv.Addr
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
