// =============================================================================
// Commission Report - Serve Command
// =============================================================================
//
// This file defines the 'serve' command, which starts the upload/download
// web server.
//
// COMMAND USAGE:
//   commission serve [--addr :8080]
//
// The server shuts down gracefully on SIGINT or SIGTERM.
//
// =============================================================================

package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/ginjaninja78/commission-report/internal/pipeline"
	"github.com/ginjaninja78/commission-report/internal/server"
	"github.com/spf13/cobra"
)

// shutdownTimeout bounds how long in-flight uploads may take to finish.
const shutdownTimeout = 30 * time.Second

var listenAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the upload/download web server",
	Long: `The serve command starts an HTTP server:

  GET  /          upload form
  POST /upload    process an uploaded export
  GET  /download  download the latest (or ?job=<id>) summary workbook
  GET  /healthz   liveness probe`,

	RunE: func(cmd *cobra.Command, args []string) error {
		if listenAddr != "" {
			mainConfig.ListenAddr = listenAddr
		}
		return runServe(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&listenAddr, "addr", "", "Listen address (default: listen_addr)")
}

func runServe(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	files := newFileManager()
	if err := files.EnsureDirectories(); err != nil {
		return err
	}

	httpLogger := logger.With("subsystem", "http")
	srv, err := server.NewServer(mainConfig, files, pipeline.New(mainConfig, files, httpLogger), httpLogger)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	logger.Info("server stopped")
	return nil
}
