package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ibuddy-app/ibuddy-service/internal/cache"
	"github.com/ibuddy-app/ibuddy-service/internal/config"
	"github.com/ibuddy-app/ibuddy-service/internal/handlers"
	"github.com/ibuddy-app/ibuddy-service/internal/models"
	"github.com/ibuddy-app/ibuddy-service/internal/repositories/kv"
	"github.com/ibuddy-app/ibuddy-service/internal/services"
	"github.com/ibuddy-app/ibuddy-service/internal/utils"
	"github.com/ibuddy-app/ibuddy-service/internal/validator"
	"github.com/ibuddy-app/ibuddy-service/pkg"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	slogLogger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	logger := utils.NewSlogLogger(slogLogger)

	ctx := context.Background()
	infra := &pkg.Infrastructure{Config: cfg, Logger: slogLogger}

	// Redis backs the session cache and, with the redis driver, the store
	if cfg.Store.Driver == config.StoreRedis || cfg.Redis.URL != "" {
		infra.Redis, err = pkg.NewRedisClient(cfg)
		if err != nil {
			if cfg.Store.Driver == config.StoreRedis {
				log.Fatalf("Failed to initialize Redis: %v", err)
			}
			slogLogger.Warn("Redis unavailable, session cache disabled", "error", err)
		}
	}

	if cfg.Store.Driver == config.StorePostgres {
		infra.DB, err = pkg.InitDatabase(cfg)
		if err != nil {
			log.Fatalf("Failed to initialize database: %v", err)
		}
	}

	files, err := infra.ObjectStorage(ctx)
	if err != nil {
		log.Fatalf("Failed to initialize object storage: %v", err)
	}

	// Initialize repositories
	repoConfig, err := infra.RepositoryConfig(ctx, files)
	if err != nil {
		log.Fatalf("Failed to configure repositories: %v", err)
	}
	repo, err := kv.NewRepository(ctx, repoConfig)
	if err != nil {
		log.Fatalf("Failed to initialize repositories: %v", err)
	}

	mailer, err := infra.Mailer(ctx)
	if err != nil {
		log.Fatalf("Failed to initialize mailer: %v", err)
	}
	publisher, err := infra.EventPublisher()
	if err != nil {
		log.Fatalf("Failed to initialize event publisher: %v", err)
	}

	policy, err := models.ParseTransitionPolicy(cfg.MenteeStatusPolicy)
	if err != nil {
		log.Fatalf("Invalid mentee status policy: %v", err)
	}

	var sessions *cache.Helper
	if infra.Redis != nil {
		sessions = cache.NewHelper(infra.Redis, "session:", slogLogger)
	}

	// Initialize services
	serviceManager := services.NewServiceManager(services.Dependencies{
		Repo:      repo,
		Logger:    slogLogger,
		Validator: validator.New(),
		Events:    publisher,
		Mailer:    mailer,
		Files:     files,
		Sessions:  sessions,
	}, services.ServiceManagerConfig{
		Session: services.SessionConfig{
			Secret: []byte(cfg.Session.Secret),
			TTL:    cfg.Session.TTL,
			Issuer: cfg.Session.Issuer,
		},
		StatusPolicy:   policy,
		DownloadURLTTL: cfg.Storage.URLExpiry,
	})
	if err := serviceManager.Initialize(ctx); err != nil {
		log.Fatalf("Failed to initialize services: %v", err)
	}

	// Initialize handlers
	metrics := handlers.NewMetrics(prometheus.DefaultRegisterer, prometheus.DefaultGatherer)
	handlerManager := handlers.NewHandlerManager(serviceManager, logger, handlers.CookieConfig{
		Name:   cfg.Session.CookieName,
		Secure: cfg.Session.CookieSecure,
	}, metrics)

	// Setup Gin router
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handlers.SetupMiddleware(router, logger, metrics)
	handlerManager.SetupRoutes(router)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Starting server",
			"port", cfg.Port,
			"environment", cfg.Environment,
			"store", cfg.Store.Driver,
			"storage", cfg.Storage.Driver,
			"email", cfg.Email.Transport,
			"events", cfg.Events.Driver,
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}
	if err := serviceManager.Shutdown(shutdownCtx); err != nil {
		log.Printf("Failed to shutdown services: %v", err)
	}
	if err := infra.Close(); err != nil {
		log.Printf("Failed to close connections: %v", err)
	}

	logger.Info("Server exited")
}
