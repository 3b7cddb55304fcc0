// Package main is the entry point for the whatsapp-followup HTTP server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/popeskul/whatsapp-followup/internal/config"
	"github.com/popeskul/whatsapp-followup/internal/genai"
	"github.com/popeskul/whatsapp-followup/internal/handler"
	"github.com/popeskul/whatsapp-followup/internal/middleware"
	"github.com/popeskul/whatsapp-followup/internal/repository"
	"github.com/popeskul/whatsapp-followup/internal/service"
	"github.com/popeskul/whatsapp-followup/internal/transport"
)

func main() {
	// Secrets (Twilio, OpenAI) usually come from a local .env in development.
	_ = godotenv.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer func() {
		_ = logger.Sync()
	}()

	cfg, err := config.LoadConfig("config.yaml")
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	db, err := sqlx.Connect("postgres", cfg.Database.GetDSN())
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("Failed to close database connection", zap.Error(err))
		}
	}()

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	redisClient := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error("Failed to close Redis connection", zap.Error(err))
		}
	}()

	tr, err := transport.NewTwilioTransport(&cfg.Twilio, logger)
	if err != nil {
		logger.Fatal("Failed to initialize Twilio transport", zap.Error(err))
	}

	generator, err := genai.NewClient(&cfg.GenAI, logger)
	if err != nil {
		logger.Fatal("Failed to initialize content generator", zap.Error(err))
	}

	repo := repository.NewRepository(db)
	svc := service.NewService(cfg, repo, redisClient, tr, generator, logger)

	// Timers do not survive restarts; surface what was lost, never repair it.
	if orphans := svc.FollowUp.ReportOrphans(); orphans > 0 {
		logger.Warn("Found follow-ups orphaned by a previous process", zap.Int("count", orphans))
	}

	h := handler.NewHandler(svc, logger)
	router := setupRouter(h)

	middlewareConfig := &middleware.Config{
		Logger:         logger,
		RateLimit:      float64(cfg.Middleware.RateLimit),
		RateLimitBurst: cfg.Middleware.RateLimitBurst,
		RequestTimeout: 30 * time.Second,
	}
	if cfg.Middleware.EnableCORS {
		middlewareConfig.CORS = &middleware.CORSConfig{
			AllowedOrigins:   cfg.Middleware.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: false,
			MaxAge:           86400,
		}
	}

	finalHandler := middleware.Chain(middlewareConfig)(router)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      finalHandler,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("Starting server",
			zap.String("address", srv.Addr),
			zap.Duration("follow_up_delay", cfg.FollowUp.Delay))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Pending follow-ups are dropped here; they show up as orphans on the
	// next start.
	svc.FollowUp.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}
