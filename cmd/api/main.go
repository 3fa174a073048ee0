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
	"github.com/rs/zerolog"

	"github.com/noah-isme/folio-go-api/internal/config"
	"github.com/noah-isme/folio-go-api/internal/database"
	"github.com/noah-isme/folio-go-api/internal/handler"
	"github.com/noah-isme/folio-go-api/internal/middleware"
	"github.com/noah-isme/folio-go-api/internal/models"
	"github.com/noah-isme/folio-go-api/internal/repository"
	"github.com/noah-isme/folio-go-api/internal/router"
	"github.com/noah-isme/folio-go-api/internal/service"
	"github.com/noah-isme/folio-go-api/internal/workflow"
	cloud "github.com/noah-isme/folio-go-api/pkg/cloudinary"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(&models.User{}, &models.Document{}, &models.Attachment{}, &models.ExternalLink{}, &models.FeedbackEntry{}); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	redisClient, err := database.ConnectRedis(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()

	natsConn, err := database.ConnectNATS(cfg.NATSURL)
	if err != nil {
		log.Fatalf("failed to connect to nats: %v", err)
	}
	defer natsConn.Close()

	storage, err := cloud.New(cloud.Config{
		CloudName: cfg.CloudinaryCloudName,
		APIKey:    cfg.CloudinaryAPIKey,
		APISecret: cfg.CloudinaryAPISecret,
		Folder:    cfg.CloudinaryUploadFolder,
	}, logger)
	if err != nil {
		log.Fatalf("failed to create cloudinary client: %v", err)
	}

	steps := workflow.DefaultSteps()
	if cfg.StepConfigPath != "" {
		file, err := os.Open(cfg.StepConfigPath)
		if err != nil {
			log.Fatalf("failed to open step config: %v", err)
		}
		steps, err = workflow.LoadSteps(file)
		file.Close()
		if err != nil {
			log.Fatalf("failed to load step config: %v", err)
		}
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	documentRepo := repository.NewDocumentRepository(db)
	attachmentRepo := repository.NewAttachmentRepository(db)

	events := service.NewNATSPublisher(natsConn, logger)
	reviewService := service.NewReviewService(documentRepo, redisClient, cfg.ReviewQueueCacheTTL, logger)
	documentService := service.NewDocumentService(documentRepo, attachmentRepo, storage, steps, service.WorkflowConfig{
		AutosaveMinInterval: cfg.AutosaveMinInterval,
		AutosaveDebounce:    cfg.AutosaveDebounce,
		UploadMaxSizeMB:     cfg.UploadMaxSizeMB,
		UploadMaxAttempts:   cfg.UploadMaxAttempts,
		UploadRetryBackoff:  cfg.UploadRetryBackoff,
	}, validate, logger)
	lifecycleService := service.NewLifecycleService(documentRepo, documentService, steps, events, reviewService, validate, logger)

	documentHandler := handler.NewDocumentHandler(documentService, logger)
	lifecycleHandler := handler.NewLifecycleHandler(lifecycleService, logger)
	reviewHandler := handler.NewReviewHandler(reviewService, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		DocumentHandler:  documentHandler,
		LifecycleHandler: lifecycleHandler,
		ReviewHandler:    reviewHandler,
		JWTMiddleware:    middleware.JWTProtected(cfg.JWTSecret),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app)
}

func waitForShutdown(app *fiber.App) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
