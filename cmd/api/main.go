package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tuition/internal/account"
	"tuition/internal/auth"
	"tuition/internal/cloudinary"
	"tuition/internal/config"
	"tuition/internal/handler"
	"tuition/internal/httpmiddleware"
	"tuition/internal/queue"
	"tuition/internal/store"
	"tuition/internal/tuition"
)

func main() {
	cfg := config.Load()
	logger := cfg.Logger()
	slog.SetDefault(logger)

	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg, logger); err != nil {
		logger.Error("http server failed", "error", err)
		os.Exit(1)
	}
}

func runHTTP(cfg config.App, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	redisClient, err := store.NewRedis(cfg.RedisURL)
	if err != nil {
		return err
	}
	defer redisClient.Close()
	checks := map[string]handler.HealthCheck{"redis": redisClient.Healthy}

	var (
		tuitionStore tuition.Store
		accountStore account.Store
	)
	switch cfg.StoreBackend {
	case "memory":
		logger.Warn("using in-memory store; data is lost on restart")
		tuitionStore = tuition.NewMemoryStore()
		accountStore = account.NewMemoryStore()
	default:
		db, err := store.NewDB(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()
		if cfg.AutoMigrate {
			if err := db.Migrate(ctx); err != nil {
				return err
			}
			logger.Info("database schema up to date")
		}
		tuitionStore = tuition.NewRepository(db.Client)
		accountStore = account.NewRepository(db.Client)
		checks["postgres"] = db.Healthy
	}

	var q queue.Queue
	if cfg.InProcessQueue() {
		if cfg.QueueBackend != "memory" {
			logger.Warn("memory store in use; reminders are queued and processed in-process", "queue_backend", cfg.QueueBackend)
		}
		q = queue.NewInMemory(256)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, cfg.QueueKey)
	}

	signer := auth.NewSigner(cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL, cfg.RefreshTTL)

	var google account.GoogleVerifier
	if cfg.GoogleClientID != "" {
		v, err := account.NewIDTokenVerifier(ctx, cfg.GoogleClientID)
		if err != nil {
			return err
		}
		google = v
	} else {
		logger.Info("google sign-in disabled (GOOGLE_CLIENT_ID not set)")
	}

	var photos handler.PhotoUploader
	if cfg.CloudinaryEnabled() {
		photos = cloudinary.New(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret, cfg.CloudinaryFolder)
		logger.Info("cloudinary configured", "cloud", cfg.CloudinaryCloudName)
	} else {
		logger.Info("cloudinary not configured; photo uploads disabled")
	}

	accounts := account.NewService(accountStore, signer, google, logger)
	svc := tuition.NewService(tuitionStore, tuition.NewRedisCache(redisClient.Client, cfg.CacheTTL), q, logger)

	if cfg.InProcessQueue() {
		// Nothing else can read an in-process queue.
		go func() {
			if err := svc.RunReminderWorker(ctx, q); err != nil {
				logger.Error("reminder worker failed", "error", err)
			}
		}()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(cors.New(corsConfig(cfg.CORSOrigins)))
	r.Use(httpmiddleware.SecurityHeaders())
	r.Use(httpmiddleware.Metrics())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	limiter := httpmiddleware.Fallback{
		Primary:   httpmiddleware.NewRedisWindow(redisClient.Client, cfg.RateLimitPerMin),
		Secondary: httpmiddleware.NewTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin),
	}
	handler.New(accounts, svc, signer, photos, checks, logger).
		Register(r, httpmiddleware.RateLimit(limiter, httpmiddleware.ClientIP))

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", "port", cfg.HTTPPort, "env", cfg.Env, "store", cfg.StoreBackend, "queue", cfg.QueueBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server forced shutdown", "error", err)
	}
	logger.Info("server exited")
	return nil
}

// corsConfig allows the listed origins, or any origin when none are set.
func corsConfig(origins []string) cors.Config {
	c := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders: []string{"Retry-After"},
		MaxAge:        24 * time.Hour,
	}
	if len(origins) == 0 {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = origins
	}
	return c
}
