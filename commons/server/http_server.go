package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"loanguard/internal/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
)

const (
	defaultReadHeaderTimeout = 10 * time.Second
	defaultShutdownTimeout   = 15 * time.Second
)

type HTTPServer struct {
	server          *http.Server
	shutdownTimeout time.Duration
	logger          logger.Logger
}

// ServerConfig sizes the listener. Zero timeouts take the defaults.
type ServerConfig struct {
	Port              string
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
}

func NewHTTPServer(
	lc fx.Lifecycle,
	router *gin.Engine,
	config ServerConfig,
	log logger.Logger,
) *HTTPServer {
	readHeader := config.ReadHeaderTimeout
	if readHeader <= 0 {
		readHeader = defaultReadHeaderTimeout
	}
	shutdown := config.ShutdownTimeout
	if shutdown <= 0 {
		shutdown = defaultShutdownTimeout
	}

	srv := &http.Server{
		Addr:              ":" + config.Port,
		Handler:           router,
		ReadHeaderTimeout: readHeader,
	}

	httpServer := &HTTPServer{
		server:          srv,
		shutdownTimeout: shutdown,
		logger:          log.With(logger.String("component", "http_server")),
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			httpServer.logger.Info("starting HTTP server", logger.String("addr", srv.Addr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					httpServer.logger.Fatal("failed to start HTTP server", logger.Error(err))
				}
			}()
			return nil
		},
		OnStop: httpServer.Shutdown,
	})

	return httpServer
}

// Shutdown drains in-flight requests, giving up after the shutdown timeout.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	ctx, cancel := context.WithTimeout(ctx, s.shutdownTimeout)
	defer cancel()
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) GetServer() *http.Server {
	return s.server
}
