// Package httpapi exposes the relay over HTTP: POST /send validates a request
// and queues it for background delivery.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/shineum/mail-relay/internal/dispatch"
	"github.com/shineum/mail-relay/internal/email"
	"github.com/shineum/mail-relay/internal/metrics"
)

const defaultTimeout = 5 * time.Second

// Scheduler runs work after the response has been handed back to the client.
type Scheduler interface {
	Submit(name string, fn dispatch.Func) (*dispatch.Task, error)
}

// Sender performs one send. *mailer.Mailer satisfies it.
type Sender interface {
	Send(ctx context.Context, req email.Request) error
}

// Config captures all inputs required to construct the HTTP server.
type Config struct {
	ListenAddr           string
	AllowedOrigins       []string
	Scheduler            Scheduler
	Sender               Sender
	Logger               *slog.Logger
	ReadHeaderTimeout    time.Duration
	ShutdownGraceTimeout time.Duration
}

// Server hosts the relay endpoints.
type Server struct {
	config     Config
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer wires Gin, middleware and handlers.
func NewServer(cfg Config) (*Server, error) {
	if strings.TrimSpace(cfg.ListenAddr) == "" {
		return nil, errors.New("httpapi: listen address is required")
	}
	if cfg.Scheduler == nil {
		return nil, errors.New("httpapi: scheduler is required")
	}
	if cfg.Sender == nil {
		return nil, errors.New("httpapi: sender is required")
	}
	if cfg.Logger == nil {
		return nil, errors.New("httpapi: logger is required")
	}

	corsMiddleware, err := buildCORS(cfg.AllowedOrigins)
	if err != nil {
		return nil, err
	}

	registerJSONFieldNames()

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(requestLogger(cfg.Logger))
	engine.Use(corsMiddleware)

	engine.GET("/healthz", func(contextGin *gin.Context) {
		contextGin.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	engine.GET("/metrics", gin.WrapH(metrics.Handler()))

	handler := newSendHandler(cfg.Scheduler, cfg.Sender, cfg.Logger)
	engine.POST("/send", handler.send)

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           engine,
		ReadHeaderTimeout: pickDuration(cfg.ReadHeaderTimeout, defaultTimeout),
	}

	return &Server{
		config:     cfg,
		httpServer: httpServer,
		logger:     cfg.Logger,
	}, nil
}

// Handler returns the root handler, for embedding or tests.
func (server *Server) Handler() http.Handler {
	return server.httpServer.Handler
}

// Start begins serving HTTP traffic.
func (server *Server) Start() error {
	server.logger.Info("http_server_listening", "addr", server.config.ListenAddr)
	err := server.httpServer.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully terminates the HTTP server. Background sends already
// queued are not affected; the dispatcher drains them separately.
func (server *Server) Shutdown(ctx context.Context) error {
	timeout := pickDuration(server.config.ShutdownGraceTimeout, defaultTimeout)
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return server.httpServer.Shutdown(ctx)
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(contextGin *gin.Context) {
		started := time.Now()
		contextGin.Next()
		logger.Info(
			"http_request_completed",
			"method", contextGin.Request.Method,
			"path", contextGin.Request.URL.Path,
			"status", contextGin.Writer.Status(),
			"duration_ms", time.Since(started).Milliseconds(),
		)
	}
}

// corsHeaders are listed by name: a literal "*" is not a wildcard for
// credentialed requests.
var corsHeaders = []string{"Origin", "Accept", "Content-Type", "Authorization", "X-Requested-With"}

// buildCORS allows every method. Credentials are only allowed with an
// explicit origin list, since browsers reject them for "*".
func buildCORS(allowedOrigins []string) (gin.HandlerFunc, error) {
	cfg := cors.Config{
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodHead, http.MethodOptions},
		AllowHeaders: corsHeaders,
	}
	if allowsAll(allowedOrigins) {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = allowedOrigins
		cfg.AllowCredentials = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("httpapi: cors: %w", err)
	}
	return cors.New(cfg), nil
}

func allowsAll(origins []string) bool {
	if len(origins) == 0 {
		return true
	}
	for _, origin := range origins {
		if origin == "*" {
			return true
		}
	}
	return false
}

func pickDuration(value, fallback time.Duration) time.Duration {
	if value > 0 {
		return value
	}
	return fallback
}
