// Package main is the entry point for the mail relay server.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/shineum/mail-relay/internal/config"
	"github.com/shineum/mail-relay/internal/dispatch"
	"github.com/shineum/mail-relay/internal/httpapi"
	"github.com/shineum/mail-relay/internal/mailer"
	"github.com/shineum/mail-relay/internal/tlsconfig"
	"github.com/shineum/mail-relay/internal/transport"
	"github.com/shineum/mail-relay/internal/transport/ses"
	"github.com/shineum/mail-relay/internal/transport/smtp"
	"github.com/shineum/mail-relay/internal/transport/stdout"
)

const defaultEnvFile = ".env"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var (
		configPath string
		envFile    string
	)

	cmd := &cobra.Command{
		Use:           "mail-relay",
		Short:         "HTTP to SMTP relay that sends queued emails in the background",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			err := run(cmd.Context(), configPath, envFile)
			if err != nil {
				slog.Error("mail-relay exited with error", "error", err)
			}
			return err
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "path to YAML configuration file (optional)")
	cmd.Flags().StringVar(&envFile, "env-file", "", "path to a .env file (default .env if present)")

	return cmd
}

func run(parent context.Context, configPath, envFile string) error {
	if err := loadEnvFile(envFile); err != nil {
		return err
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := setupLogger(cfg.Logging.Level)

	if parent == nil {
		parent = context.Background()
	}
	tr, err := newTransport(parent, cfg)
	if err != nil {
		return err
	}

	dispatcher := dispatch.New(logger)
	m := mailer.New(mailer.Config{
		Transport:     tr,
		DefaultSender: cfg.SMTP.Username,
		Logger:        logger,
	})

	server, err := httpapi.NewServer(httpapi.Config{
		ListenAddr:           cfg.HTTP.Listen,
		AllowedOrigins:       cfg.HTTP.AllowedOrigins,
		Scheduler:            dispatcher,
		Sender:               m,
		Logger:               logger,
		ShutdownGraceTimeout: cfg.HTTP.ShutdownTimeout,
	})
	if err != nil {
		return err
	}

	logger.Info("starting mail-relay",
		"listen", cfg.HTTP.Listen,
		"transport", tr.Name(),
		"smtp_host", cfg.SMTP.Host,
		"smtp_port", cfg.SMTP.Port,
		"auth_configured", cfg.AuthConfigured(),
	)
	if cfg.Transport == config.TransportSMTP && !cfg.AuthConfigured() {
		logger.Warn("SMTP_USER / SMTP_PASS not set; sends will fail until configured")
	}

	ctx, stop := signal.NotifyContext(parent, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.Start()
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
		logger.Info("received signal, initiating shutdown")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown failed", "error", err)
	}
	// Requests accepted before shutdown still get their send attempt.
	if err := dispatcher.Shutdown(shutdownCtx); err != nil {
		logger.Warn("background sends still running at exit", "error", err)
	}

	logger.Info("mail-relay stopped")
	return nil
}

// loadEnvFile loads variables from path without overriding the real
// environment. The default file is optional; an explicit one is not.
func loadEnvFile(path string) error {
	explicit := path != ""
	if !explicit {
		path = defaultEnvFile
	}
	err := godotenv.Load(path)
	if err == nil || (!explicit && errors.Is(err, fs.ErrNotExist)) {
		return nil
	}
	return fmt.Errorf("failed to load env file %s: %w", path, err)
}

// loadConfig loads configuration from the specified path (YAML + env override)
// or from environment variables only if no path is given.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}

// newTransport builds the single delivery transport for this process.
func newTransport(ctx context.Context, cfg *config.Config) (transport.Transport, error) {
	switch cfg.Transport {
	case config.TransportSMTP:
		tlsCfg, err := tlsconfig.ClientConfig(tlsconfig.ClientOptions{
			ServerName:         cfg.SMTP.Host,
			CAFile:             cfg.SMTP.TLSCAFile,
			InsecureSkipVerify: cfg.SMTP.TLSInsecureSkipVerify,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to configure SMTP TLS: %w", err)
		}
		return smtp.New(smtp.Config{
			Host:      cfg.SMTP.Host,
			Port:      cfg.SMTP.Port,
			Username:  cfg.SMTP.Username,
			Password:  cfg.SMTP.Password,
			Timeout:   smtp.DefaultTimeout,
			TLSConfig: tlsCfg,
		}), nil

	case config.TransportSES:
		p, err := ses.New(ctx, ses.Config{
			Region:          cfg.SES.Region,
			AccessKeyID:     cfg.SES.AccessKeyID,
			SecretAccessKey: cfg.SES.SecretAccessKey,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create SES transport: %w", err)
		}
		return p, nil

	case config.TransportStdout:
		return stdout.New(), nil

	default:
		return nil, fmt.Errorf("unknown transport %q", cfg.Transport)
	}
}

// setupLogger configures the global slog logger with JSON output and the
// specified log level, and returns it.
func setupLogger(level string) *slog.Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(level),
	})
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

