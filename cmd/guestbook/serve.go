package main

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

	"github.com/sagarc03/guestbook/config"
	gbhttp "github.com/sagarc03/guestbook/http"
	"github.com/sagarc03/guestbook/identity"
	"github.com/sagarc03/guestbook/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Start the guestbook HTTP server.

The database schema is created first when database.auto_migrate is set,
then validated. The server stops gracefully on SIGINT or SIGTERM.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().Int("port", 8080, "HTTP server port (env: GUESTBOOK_SERVER_PORT)")
	serveCmd.Flags().String("public-url", "", "scheme and host prefixed to upload URLs (env: GUESTBOOK_SERVER_PUBLIC_URL)")
	serveCmd.Flags().String("auth-provider", "", "identity provider: dev, oidc (default: dev, env: GUESTBOOK_AUTH_PROVIDER)")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.FromContext(cmd.Context())
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	a, err := openApp(ctx, cfg, appOptions{migrate: cfg.Database.AutoMigrate, signing: true})
	if err != nil {
		return err
	}
	defer a.close()

	provider, err := identity.New(ctx, cfg.Auth, a.keys, cfg.Keys.Active)
	if err != nil {
		return fmt.Errorf("create identity provider: %w", err)
	}

	renderer, err := web.NewRenderer()
	if err != nil {
		return fmt.Errorf("parse templates: %w", err)
	}

	handlerConfig := gbhttp.HandlerConfig{
		CORS:          cfg.CORS,
		MaxUploadSize: cfg.Server.MaxUploadSize,
	}
	handler := gbhttp.NewHandler(&handlerConfig, a.service, renderer, provider)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)

	server := &http.Server{
		Addr:              addr,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-sigCh:
		case <-ctx.Done():
		}

		slog.Info("shutting down server...")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "err", err)
		}
		cancel()
	}()

	slog.Info("starting server", "addr", addr, "auth", cfg.Auth.Provider, "storage", cfg.Storage.Backend)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}
