package commands

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/smartdeal/dealextract/internal/logger"
	"github.com/smartdeal/dealextract/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the extraction HTTP API",
	Long: `Start the HTTP API exposing extraction, the model catalog, and
feature-map administration.

Endpoints:
  GET  /health
  POST /api/extract
  GET  /api/models
  GET  /api/features
  POST /api/features/:name/default`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("port", "", "listen port (default from config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	c, err := buildCore()
	if err != nil {
		logError("%v", err)
		return err
	}
	defer c.cache.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	port, _ := cmd.Flags().GetString("port")
	if port == "" {
		port = c.cfg.Server.Port
	}

	handler := server.NewHandler(c.dispatcher, c.registry)
	router := server.SetupRouter(handler, viper.GetBool("debug"))

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	return srv.Shutdown(shutdownCtx)
}
