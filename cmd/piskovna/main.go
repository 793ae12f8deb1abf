// Package main is the entry point for the Piskovna blog admin server.
// It loads configuration, connects to services, sets up routing, and starts
// the HTTP server with graceful shutdown support.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"piskovna/internal/blog"
	"piskovna/internal/cache"
	"piskovna/internal/config"
	"piskovna/internal/database"
	"piskovna/internal/handlers"
	"piskovna/internal/imagestore"
	"piskovna/internal/middleware"
	"piskovna/internal/render"
	"piskovna/internal/router"
	"piskovna/internal/session"
	"piskovna/internal/storage"
	"piskovna/internal/store"
)

// maxRequestBody caps editor and API bodies. Images travel inline as data
// URIs, so a post with a full gallery needs far more than one upload.
const maxRequestBody = 64 << 20

func main() {
	// Load configuration first so the log format can follow the environment.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Structured logger: JSON in production, text in development.
	var handler slog.Handler
	if cfg.IsDev() {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	} else {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	}
	slog.SetDefault(slog.New(handler))

	slog.Info("configuration loaded",
		"env", cfg.Env,
		"addr", cfg.Addr(),
	)

	// Connect to PostgreSQL.
	db, err := database.Connect(cfg.DSN())
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Run pending migrations (users). The post table is created lazily.
	if err := database.Migrate(db); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Seed the admin account (no-op if users already exist).
	if err := database.Seed(db, cfg.AdminUsername, cfg.AdminPassword); err != nil {
		slog.Error("failed to seed database", "error", err)
		os.Exit(1)
	}

	// Connect to Valkey (sessions + preview cache).
	valkeyClient, err := cache.ConnectValkey(cfg.ValkeyHost, cfg.ValkeyPort, cfg.ValkeyPassword)
	if err != nil {
		slog.Error("failed to connect to valkey", "error", err)
		os.Exit(1)
	}
	defer valkeyClient.Close()

	// Post images live in S3-compatible object storage; there is no other backend.
	if !cfg.StorageConfigured() {
		slog.Error("s3 storage not configured", "required", "S3_ENDPOINT, S3_ACCESS_KEY, S3_SECRET_KEY")
		os.Exit(1)
	}
	storageClient, err := storage.New(cfg.S3Endpoint, cfg.S3Region, cfg.S3AccessKey, cfg.S3SecretKey, cfg.S3Bucket)
	if err != nil {
		slog.Error("failed to initialize S3 storage", "error", err)
		os.Exit(1)
	}
	slog.Info("s3 storage connected", "endpoint", cfg.S3Endpoint, "bucket", cfg.S3Bucket)

	secureCookies := !cfg.IsDev()
	sessionStore := session.NewStore(valkeyClient, secureCookies)

	renderer, err := render.New(cfg.IsDev())
	if err != nil {
		slog.Error("failed to initialize template renderer", "error", err)
		os.Exit(1)
	}

	userStore := store.NewUserStore(db)
	postStore := store.NewPostStore(db)
	images := imagestore.New(storageClient)

	// Previews are dropped from the cache whenever their post changes.
	pageCache := cache.NewPageCache(valkeyClient, cfg.PreviewCacheTTL)
	// Templates are embedded, so previews cached by a previous build are stale.
	pageCache.InvalidateAll(context.Background())
	posts := blog.NewService(postStore, images)
	posts.OnChange(pageCache.InvalidatePost)

	loginLimiter := middleware.NewRateLimiter(cfg.LoginRateLimit, time.Minute)
	defer loginLimiter.Stop()

	r := router.New(router.Deps{
		Sessions:      sessionStore,
		API:           handlers.NewAPI(posts),
		Admin:         handlers.NewAdmin(renderer, sessionStore, posts, cfg.UploadMaxMB),
		Auth:          handlers.NewAuth(renderer, sessionStore, userStore),
		Preview:       handlers.NewPreview(renderer, posts, pageCache),
		Uploads:       handlers.NewUploads(images),
		LoginLimiter:  loginLimiter,
		SecureCookies: secureCookies,
		MaxBody:       maxRequestBody,
	})

	// ReadTimeout leaves room for multi-megabyte editor submissions.
	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start the server in a goroutine so we can listen for shutdown signals.
	go func() {
		slog.Info("server starting", "addr", cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown: wait for SIGINT or SIGTERM, then drain connections.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutdown signal received", "signal", sig)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("server stopped gracefully")
}
