package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-assessor/internal/bootstrap"
	"github.com/noah-isme/gema-assessor/internal/config"
	"github.com/noah-isme/gema-assessor/internal/database"
	"github.com/noah-isme/gema-assessor/internal/handler"
	"github.com/noah-isme/gema-assessor/internal/middleware"
	"github.com/noah-isme/gema-assessor/internal/models"
	"github.com/noah-isme/gema-assessor/internal/observability"
	"github.com/noah-isme/gema-assessor/internal/repository"
	"github.com/noah-isme/gema-assessor/internal/router"
	"github.com/noah-isme/gema-assessor/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	observability.RegisterMetrics()

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(&models.GradingRecord{}, &models.BatchRun{}); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(cfg.RedisURL)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		defer redisClient.Close()
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL, cfg.AppName)
		if err != nil {
			log.Fatalf("failed to connect to nats: %v", err)
		}
		defer natsConn.Close()
	}

	generator, err := bootstrap.NewGenerator(cfg, logger)
	if err != nil {
		log.Fatalf("failed to create ai client: %v", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	historyRepo := repository.NewGradingRecordRepository(db)
	stack := bootstrap.NewGradingStack(cfg, generator, historyRepo, logger)

	jobService := service.NewBatchJobService(stack.Batch, historyRepo, service.BatchJobConfig{
		Redis:       redisClient,
		NATS:        natsConn,
		ChannelBase: cfg.ChannelBase,
		TTL:         cfg.BatchJobTTL,
	}, logger)
	historyService := service.NewGradingHistoryService(historyRepo, logger)

	gradingHandler := handler.NewGradingHandler(stack.Grading, jobService, historyService, handler.GradingDefaults{
		SystemPromptPath: cfg.SystemPromptPath,
		UserPromptPath:   cfg.UserPromptPath,
		SupportFolder:    cfg.SupportFolder,
		OutputFolder:     cfg.OutputFolder,
		MaxWorkers:       cfg.MaxWorkers,
	}, validate, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger, AllowOrigins: cfg.CORSOrigins})

	deps := router.Dependencies{
		GradingHandler: gradingHandler,
		MetricsHandler: observability.MetricsHandler(),
	}
	if cfg.JWTSecret != "" {
		deps.JWTMiddleware = middleware.JWTProtected(cfg.JWTSecret)
		deps.RoleMiddleware = middleware.RequireRole("teacher", "admin")
		deps.RateLimiter = middleware.RateLimit("grading", 30, time.Minute)
	} else {
		logger.Warn().Msg("jwt secret not configured, grading routes are unauthenticated")
	}
	router.Register(app, cfg, deps)

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app, jobService)
}

func waitForShutdown(app *fiber.App, jobs service.BatchJobService) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	if err := jobs.Shutdown(ctx); err != nil {
		log.Printf("batch jobs did not stop cleanly: %v", err)
	}

	log.Println("server stopped")
}
