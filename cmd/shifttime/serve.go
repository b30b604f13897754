package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"shifttime/internal/config"
	"shifttime/internal/security"
	"shifttime/internal/server"
	"shifttime/pkg/fileutil"

	"github.com/spf13/cobra"
)

// shutdownTimeout bounds the wait for in-flight requests on exit
const shutdownTimeout = 15 * time.Second

var (
	configFile string
	logFile    string
	host       string
	port       int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server",
	Long: `Start the HTTP server that hosts the designer UI and the /api routes.

Configuration is read from a YAML file (optional) and then from the
environment: SHEETS_WEBAPP_URL, NETLIFY_AUTH_TOKEN, CORS_ORIGIN, PORT and
friends. Flags override both.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&configFile, "config", "c", getEnvOrDefault("SHIFTTIME_CONFIG_FILE", ""), "Path to shifttime.yaml configuration file")
	serveCmd.Flags().StringVar(&logFile, "log", getEnvOrDefault("SHIFTTIME_LOG_FILE", ""), "Path to log file (stdout only when empty)")
	serveCmd.Flags().StringVar(&host, "host", "", "Host to bind to (overrides config)")
	serveCmd.Flags().IntVarP(&port, "port", "p", 0, "Port to listen on (overrides config and PORT)")
}

func runServe(cmd *cobra.Command, args []string) error {
	if configFile == "" {
		configFile = fileutil.FindConfigOptional(config.FileName)
	} else if !fileutil.FileExists(configFile) {
		return fmt.Errorf("configuration file not found: %s", configFile)
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	applyFlagOverrides(cfg)

	if logFile == "" {
		logFile = cfg.LogFile
	}
	logger, closeLog, err := setupLogging(logFile, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	defer closeLog()

	logger.Info("Starting shifttime", "version", version, "config", configFile)
	warnAboutCredentials(cfg, logger)

	srv, err := server.NewServer(cfg, logger)
	if err != nil {
		logger.Error("Failed to create server", "error", err)
		return fmt.Errorf("failed to create server: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("Server failed", "error", err)
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Graceful shutdown failed", "error", err)
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return <-errCh
}

func applyFlagOverrides(cfg *config.Config) {
	if host != "" {
		cfg.Host = host
	}
	if port > 0 {
		cfg.Port = port
	}
}

// warnAboutCredentials logs missing or weak tokens. Neither stops the
// server: routes that need a credential answer with a configuration error.
func warnAboutCredentials(cfg *config.Config, logger *slog.Logger) {
	if cfg.SheetsURL == "" {
		logger.Warn("SHEETS_WEBAPP_URL is not set, data routes will fail")
	}

	switch {
	case cfg.Netlify.Token == "":
		logger.Warn("NETLIFY_AUTH_TOKEN is not set, site creation and deploys are disabled")
	case security.ValidateToken("netlify.token", cfg.Netlify.Token) != nil:
		logger.Warn("Netlify token looks invalid", "error", security.ValidateToken("netlify.token", cfg.Netlify.Token))
	case security.IsWeakToken(cfg.Netlify.Token):
		logger.Warn("Netlify token has low entropy")
	}

	if cfg.CORS.AllowAll() {
		logger.Warn("CORS allows every origin")
	}
}

// setupLogging configures slog JSON output on stdout, and additionally on
// logPath when set. The returned func closes the log file.
func setupLogging(logPath, level string) (*slog.Logger, func(), error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}

	if logPath == "" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts)), func() {}, nil
	}

	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	// Open log file with secure permissions
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}

	multiWriter := io.MultiWriter(os.Stdout, file)
	logger := slog.New(slog.NewJSONHandler(multiWriter, opts))

	return logger, func() { file.Close() }, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
