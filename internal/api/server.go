package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/primisapp/primis-backend/internal/auth"
	"github.com/primisapp/primis-backend/internal/broadcast"
	"github.com/primisapp/primis-backend/internal/device"
	"github.com/primisapp/primis-backend/internal/infrastructure/config"
	"github.com/primisapp/primis-backend/internal/infrastructure/database"
	"github.com/primisapp/primis-backend/internal/infrastructure/logging"
	"github.com/primisapp/primis-backend/internal/infrastructure/mqtt"
	"github.com/primisapp/primis-backend/internal/user"
)

// shutdownTimeout is how long in-flight requests get to finish.
const shutdownTimeout = 10 * time.Second

// Deps are the collaborators the server needs.
type Deps struct {
	Config  *config.Config
	Logger  *logging.Logger
	Devices device.Repository
	Users   user.Repository
	Tokens  *auth.TokenIssuer
	Hub     *broadcast.Hub
	DB      *database.DB

	// MQTT is optional; when present it feeds the health endpoint.
	MQTT *mqtt.Client
}

// Server is the HTTP API server.
type Server struct {
	cfg     *config.Config
	logger  *logging.Logger
	devices device.Repository
	users   user.Repository
	tokens  *auth.TokenIssuer
	hub     *broadcast.Hub
	db      *database.DB
	mqtt    *mqtt.Client

	httpServer *http.Server
}

// New creates the server and its router.
func New(deps Deps) (*Server, error) {
	switch {
	case deps.Config == nil:
		return nil, errors.New("api: config is required")
	case deps.Logger == nil:
		return nil, errors.New("api: logger is required")
	case deps.Devices == nil:
		return nil, errors.New("api: device repository is required")
	case deps.Users == nil:
		return nil, errors.New("api: user repository is required")
	case deps.Tokens == nil:
		return nil, errors.New("api: token issuer is required")
	case deps.Hub == nil:
		return nil, errors.New("api: broadcast hub is required")
	case deps.DB == nil:
		return nil, errors.New("api: database is required")
	}

	s := &Server{
		cfg:     deps.Config,
		logger:  deps.Logger.With("component", "api"),
		devices: deps.Devices,
		users:   deps.Users,
		tokens:  deps.Tokens,
		hub:     deps.Hub,
		db:      deps.DB,
		mqtt:    deps.MQTT,
	}

	addr := net.JoinHostPort(deps.Config.API.Host, strconv.Itoa(deps.Config.API.Port))
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.routes(),
		ReadTimeout:  deps.Config.GetReadTimeout(),
		WriteTimeout: deps.Config.GetWriteTimeout(),
		IdleTimeout:  deps.Config.GetIdleTimeout(),
	}

	return s, nil
}

// Start serves HTTP until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("http server listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}

	s.logger.Info("http server stopped")

	return nil
}
