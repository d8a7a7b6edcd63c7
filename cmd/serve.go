package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"tma-generator/handlers"
	"tma-generator/middleware"
	"tma-generator/templates"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web form and JSON API",
	Long: `Start the HTTP server.

The server provides:
- the generator form at /
- the JSON API under /api/v1 (settings, validate, generate, archive, project-name)
- generation history at /api/v1/runs when DATABASE_URL is set`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, log := current.cfg, current.log
	if err := cfg.CheckServe(); err != nil {
		return err
	}
	outputRoot, err := filepath.Abs(cfg.OutputRoot)
	if err != nil {
		return fmt.Errorf("invalid OUTPUT_ROOT %q: %w", cfg.OutputRoot, err)
	}

	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(gin.Recovery(), middleware.Logger(log))
	router.HTMLRender = templates.Renderer()

	sess := current.session()
	sess.OutputRoot = outputRoot
	deps := handlers.Dependencies{
		Session: sess,
		Store:   current.store,
		Runs:    current.runs,
		Log:     log,
	}
	if cfg.AuthEnabled() {
		deps.Auth = middleware.AuthMiddleware(cfg.Auth.JWTSigningKey, cfg.Auth.Issuer, log)
	} else {
		log.Warn("AUTH.JWT_SIGNING_KEY is empty, serving without authentication")
	}
	handlers.RegisterRoutes(router, deps)

	srv := &http.Server{
		Addr:              cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Goroutine to gracefully shut down the server
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	shutdownErr := make(chan error, 1)
	go func() {
		<-ctx.Done()
		log.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		shutdownErr <- srv.Shutdown(shutdownCtx)
	}()

	log.WithFields(logrus.Fields{"addr": cfg.ServerPort, "output_root": outputRoot}).Info("TMA generator server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server startup error: %w", err)
	}
	if err := <-shutdownErr; err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	log.Info("Server exited gracefully.")
	return nil
}
