package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aussiebroadwan/tillsession/internal/loginserver"
	"github.com/aussiebroadwan/tillsession/pkg/cryptox"
	"github.com/aussiebroadwan/tillsession/pkg/jwtx"
	"github.com/aussiebroadwan/tillsession/pkg/provider"
	"github.com/aussiebroadwan/tillsession/pkg/slogx"
)

// Server runs the fake login server.
type Server struct {
	cfg    Config
	logger *slog.Logger

	server *http.Server
	router *loginserver.Router
}

// NewServer builds the login server. Only the logging, signing and port
// settings of cfg are used.
func NewServer(cfg Config, logOut io.Writer) (*Server, error) {
	s := &Server{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "tillsession-loginserver",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
			Output:  logOut,
		}),
	}

	fake := provider.NewFake()
	switch cfg.SigningAlg {
	case jwtx.AlgNone:
	case jwtx.AlgHS256:
		fake.Algorithm = jwtx.AlgHS256
		secret := cfg.SigningSecret
		if secret == "" {
			generated, err := cryptox.GenerateToken(cryptox.TokenSize256)
			if err != nil {
				return nil, fmt.Errorf("failed to generate signing secret: %w", err)
			}
			secret = generated
			s.logger.Warn("TILL_SIGNING_SECRET unset, using a throwaway secret; clients cannot verify tokens")
		}
		fake.SigningSecret = []byte(secret)
	default:
		return nil, fmt.Errorf("unsupported TILL_SIGNING_ALG %q", cfg.SigningAlg)
	}

	s.router = loginserver.NewRouter(fake, BuildVersion, s.logger)
	s.router.ApplyRoutes()

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 3 * time.Second,
	}

	return s, nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Run starts the server and blocks until shutdown is requested
func (s *Server) Run() error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	return s.Serve(ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("login server starting", "addr", ln.Addr().String(), "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- s.server.Serve(ln)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(shutdown)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		s.logger.Info("shutdown signal received", "signal", sig)

		if err := s.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown() error {
	s.logger.Info("shutting down login server...")

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		s.logger.Error("graceful server shutdown failed", "error", err)
		if err := s.server.Close(); err != nil {
			s.logger.Error("error closing server", "error", err)
		}
		return err
	}

	s.logger.Info("login server stopped")
	return nil
}
