package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/cobra"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/aquaguard/aquaguard/internal/auth"
	"github.com/aquaguard/aquaguard/internal/config"
	"github.com/aquaguard/aquaguard/internal/metrics"
	"github.com/aquaguard/aquaguard/internal/middleware"
	"github.com/aquaguard/aquaguard/internal/service"
	"github.com/aquaguard/aquaguard/internal/stats"
)

const (
	startupTimeout  = 30 * time.Second
	shutdownTimeout = 15 * time.Second
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	startCtx, cancel := context.WithTimeout(ctx, startupTimeout)
	defer cancel()

	store, err := openStore(startCtx, cfg.Store)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()

	if cfg.SeedDefaults {
		if _, err := stats.SeedDefaults(startCtx, store, time.Now().UTC()); err != nil {
			return fmt.Errorf("failed to seed statistics: %w", err)
		}
	}

	secret := cfg.Auth.JWTSecret
	if secret == "" {
		if secret, err = randomSecret(); err != nil {
			return err
		}
		slog.Warn("No JWT secret configured; tokens will not survive a restart")
	}
	jwtManager := auth.NewJWTManager(secret, cfg.Auth.TokenTTL)

	var limiter *middleware.RateLimiter
	if cfg.PledgeRateLimit > 0 {
		limiter = middleware.NewRateLimiter(cfg.PledgeRateLimit, time.Hour)
	}

	router := service.NewRouter(service.Config{
		Store:          store,
		JWTManager:     jwtManager,
		Authenticator:  auth.NewPasswordAuthenticator(store, cfg.Auth.AdminEmails),
		Metrics:        metrics.New(),
		RateLimiter:    limiter,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		TrustProxy:     cfg.TrustedProxy,
	})
	if cfg.StaticPath != "" {
		if err := mountStatic(router, cfg.StaticPath); err != nil {
			return err
		}
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           h2c.NewHandler(router, &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server starting", "address", cfg.ListenAddr, "driver", cfg.Store.Driver)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down: %w", err)
	}
	return nil
}

// mountStatic serves the built frontend for every path that is not an API
// route, falling back to index.html for client-side routes.
func mountStatic(r chi.Router, staticPath string) error {
	staticDir, err := filepath.Abs(staticPath)
	if err != nil {
		return fmt.Errorf("failed to resolve static path: %w", err)
	}
	slog.Info("Serving static files", "path", staticDir)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") || r.Method != http.MethodGet {
			http.NotFound(w, r)
			return
		}

		urlPath := r.URL.Path
		if urlPath == "/" {
			urlPath = "/index.html"
		}

		filePath := filepath.Join(staticDir, filepath.Clean("/"+urlPath))
		if info, err := os.Stat(filePath); err != nil || info.IsDir() {
			http.ServeFile(w, r, filepath.Join(staticDir, "index.html"))
			return
		}
		http.ServeFile(w, r, filePath)
	})
	return nil
}

func randomSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate JWT secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}
