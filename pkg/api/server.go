// Package api provides the HTTP control plane for the SMSC
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ZentaChain/zentalk-smsc/pkg/logging"
	"github.com/ZentaChain/zentalk-smsc/pkg/metrics"
	"github.com/ZentaChain/zentalk-smsc/pkg/registrar"
	"github.com/ZentaChain/zentalk-smsc/pkg/storage"
)

// Relay is the part of the relay server the control plane drives
type Relay interface {
	SendApplicationMessage(recipient, body, senderLabel string) (netip.AddrPort, error)
	ReadBacklog() (map[string][]storage.StoredMessage, error)
	Registrations() []registrar.Registration
	GetStats() map[string]interface{}
	Metrics() *metrics.Metrics
}

// Server represents the HTTP API server
type Server struct {
	relay      Relay
	router     *gin.Engine
	config     *Config
	log        *zap.Logger
	httpServer *http.Server
}

// Config holds server configuration
type Config struct {
	Host         string
	Port         int
	EnableCORS   bool
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig returns default server configuration
func DefaultConfig() *Config {
	return &Config{
		Port:         9091,
		EnableCORS:   true,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

// NewServer creates a new HTTP API server
func NewServer(relay Relay, config *Config, log *zap.Logger) *Server {
	if config == nil {
		config = DefaultConfig()
	}

	gin.SetMode(gin.ReleaseMode)

	server := &Server{
		relay:  relay,
		router: gin.New(),
		config: config,
		log:    logging.OrNop(log).Named("api"),
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware() {
	if s.config.EnableCORS {
		s.router.Use(CORSMiddleware())
	}

	s.router.Use(LoggingMiddleware(s.log))
	s.router.Use(gin.Recovery())
}

// setupRoutes configures API routes
func (s *Server) setupRoutes() {
	sms := s.router.Group("/sms")
	{
		sms.POST("/send", s.handleSend)
		sms.GET("/messages", s.handleMessages)
	}

	v1 := s.router.Group("/api/v1")
	{
		v1.GET("/registrations", s.handleRegistrations)
		v1.GET("/stats", s.handleStats)
	}

	s.router.GET("/health", s.handleHealth)
	if m := s.relay.Metrics(); m != nil {
		s.router.GET("/metrics", gin.WrapH(m.Handler()))
	}
}

// Handler returns the router
func (s *Server) Handler() http.Handler {
	return s.router
}

// Addr returns the configured listen address
func (s *Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}

// Start serves HTTP until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.Addr())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.Addr(), err)
	}
	return s.Serve(ctx, listener)
}

// Serve is Start on an existing listener
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	s.httpServer = &http.Server{
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("🌐 HTTP API server starting", zap.String("addr", listener.Addr().String()))
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Info("🛑 Shutting down HTTP API server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return s.httpServer.Shutdown(shutdownCtx)
}

// Stop stops the HTTP server
func (s *Server) Stop() error {
	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
