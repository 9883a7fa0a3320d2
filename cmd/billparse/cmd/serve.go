package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/billparse/internal/config"
	"github.com/MeKo-Tech/billparse/internal/server"
)

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start HTTP server for the bill extraction API",
	Long: `Start an HTTP server that extracts line items from bill documents.

The server provides the following endpoints:
  POST /extract-bill-data - {"document": "<url>"} -> line items and token usage
  GET  /ws/extract        - WebSocket with per-page progress
  GET  /health            - Health check endpoint
  GET  /metrics           - Prometheus metrics

Examples:
  billparse serve
  billparse serve --port 8000
  billparse serve --host 0.0.0.0 --ocr-backend pogo`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		logger := slog.Default()

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		pl, closePipeline, err := buildPipeline(ctx, cfg, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize pipeline: %w", err)
		}
		defer func() { _ = closePipeline() }()

		apiServer, err := server.NewServer(serverConfig(cfg, logger), pl)
		if err != nil {
			return fmt.Errorf("failed to initialize server: %w", err)
		}

		httpServer := newHTTPServer(cfg, apiServer.Handler())

		go func() {
			logger.Info("Starting billparse server", "host", cfg.Server.Host, "port", cfg.Server.Port)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Server error", "error", err)
				cancel()
			}
		}()

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
		defer signal.Stop(sigChan)

		select {
		case sig := <-sigChan:
			logger.Info("Received shutdown signal", "signal", sig.String())
		case <-ctx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		shutdownTimeout := time.Duration(cfg.Server.ShutdownTimeout) * time.Second
		logger.Info("Starting graceful shutdown", "timeout", shutdownTimeout.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", "error", err)
		} else {
			logger.Info("HTTP server shutdown completed")
		}
		return nil
	},
}

func serverConfig(cfg *config.Config, logger *slog.Logger) server.Config {
	return server.Config{
		Host:             cfg.Server.Host,
		Port:             cfg.Server.Port,
		CORSOrigin:       cfg.Server.CORSOrigin,
		TimeoutSec:       cfg.Server.TimeoutSec,
		MetricsEnabled:   cfg.Server.MetricsEnabled,
		WebSocketEnabled: cfg.Server.WebSocketEnabled,
		Logger:           logger,
	}
}

// newHTTPServer leaves WriteTimeout a little above the request budget so a
// degraded result can still be written.
func newHTTPServer(cfg *config.Config, handler http.Handler) *http.Server {
	timeout := time.Duration(cfg.Server.TimeoutSec) * time.Second
	return &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      timeout + 10*time.Second,
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("host", "H", "localhost", "server host")
	serveCmd.Flags().IntP("port", "p", 8000, "server port")
	serveCmd.Flags().String("cors-origin", "*", "CORS allowed origins")
	serveCmd.Flags().Int("timeout", 120, "request timeout in seconds")
	serveCmd.Flags().Int("shutdown-timeout", 10, "shutdown timeout in seconds")
	serveCmd.Flags().Bool("metrics", true, "expose Prometheus metrics on /metrics")
	serveCmd.Flags().Bool("websocket", true, "enable the /ws/extract endpoint")
	addPipelineFlags(serveCmd)

	bindFlags(serveCmd, map[string]string{
		"server.host":              "host",
		"server.port":              "port",
		"server.cors_origin":       "cors-origin",
		"server.timeout_sec":       "timeout",
		"server.shutdown_timeout":  "shutdown-timeout",
		"server.metrics_enabled":   "metrics",
		"server.websocket_enabled": "websocket",
	})
}

// addPipelineFlags registers the backend flags shared by serve and extract.
func addPipelineFlags(c *cobra.Command) {
	c.Flags().String("ocr-backend", "tesseract", "OCR backend: tesseract, gosseract or pogo")
	c.Flags().String("ocr-language", "eng", "tesseract language code")
	c.Flags().String("pogo-url", "http://localhost:8080", "pogo OCR server URL (ocr-backend=pogo)")
	c.Flags().String("raster-backend", "pdftoppm", "PDF rasterizer: pdftoppm or pdfcpu")
	c.Flags().Int("dpi", 200, "PDF rasterization resolution")
	c.Flags().String("llm-provider", "openai", "language model provider: openai or gemini")
	c.Flags().String("llm-base-url", "https://api.groq.com/openai/v1", "OpenAI-compatible API base URL")
	c.Flags().String("model", "llama-3.3-70b-versatile", "language model name")
	c.Flags().String("row-anchor", "last", "row grouping anchor: last or start")
}

var pipelineFlagKeys = map[string]string{
	"ocr.backend":    "ocr-backend",
	"ocr.language":   "ocr-language",
	"ocr.pogo_url":   "pogo-url",
	"raster.backend": "raster-backend",
	"raster.dpi":     "dpi",
	"llm.provider":   "llm-provider",
	"llm.base_url":   "llm-base-url",
	"llm.model":      "model",
	"layout.anchor":  "row-anchor",
}

// bindFlags binds the flags of c to viper keys. Pipeline flags are bound in
// PreRun so the two commands sharing them do not overwrite each other.
func bindFlags(c *cobra.Command, keys map[string]string) {
	for key, flag := range keys {
		_ = viper.BindPFlag(key, c.Flags().Lookup(flag))
	}
	c.PreRun = func(cmd *cobra.Command, args []string) {
		for key, flag := range pipelineFlagKeys {
			_ = viper.BindPFlag(key, cmd.Flags().Lookup(flag))
		}
	}
}
