package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/extractor"
	"github.com/kozaktomas/face-attendance/internal/logger"
	"github.com/kozaktomas/face-attendance/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Start the attendance HTTP API.
Bulk group photo uploads, single check-ins, identification and attendance
listing are served under /api/v1/events/{eventID}.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 0, "Port to listen on (default from WEB_PORT or 8080)")
	serveCmd.Flags().String("host", "", "Host to bind to (default from WEB_HOST or 0.0.0.0)")
	serveCmd.Flags().Bool("migrate", true, "Apply pending database migrations on start")
}

// resolveServeHostPort lets flags override the configured address.
func resolveServeHostPort(cmd *cobra.Command, cfg *config.Config) {
	if port := mustGetInt(cmd, "port"); port > 0 {
		cfg.Web.Port = port
	}
	if host := mustGetString(cmd, "host"); host != "" {
		cfg.Web.Host = host
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	resolveServeHostPort(cmd, cfg)
	log := logger.Named("serve")

	ctx := cmd.Context()
	store, err := openStore(ctx, cfg, mustGetBool(cmd, "migrate"))
	if err != nil {
		return err
	}
	defer store.Close()

	svc, err := attendance.NewService(store, extractor.NewClient(cfg.Embedding), cfg.Matching, cfg.Embedding.Timeout)
	if err != nil {
		return fmt.Errorf("invalid matching configuration: %w", err)
	}

	server := web.NewServer(cfg, svc, store)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("error during shutdown")
		}
	}()

	log.Info().
		Str("strategy", cfg.Matching.Strategy).
		Str("metric", cfg.Matching.Metric).
		Float64("threshold", cfg.Matching.DefaultThreshold).
		Str("embedding_url", cfg.Embedding.URL).
		Msg("attendance service ready")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
