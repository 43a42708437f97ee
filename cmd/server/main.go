package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/sitskillbridge/skillbridge-backend/internal/config"
	"github.com/sitskillbridge/skillbridge-backend/internal/database"
	"github.com/sitskillbridge/skillbridge-backend/internal/events"
	"github.com/sitskillbridge/skillbridge-backend/internal/github"
	"github.com/sitskillbridge/skillbridge-backend/internal/handler"
	"github.com/sitskillbridge/skillbridge-backend/internal/logger"
	"github.com/sitskillbridge/skillbridge-backend/internal/metrics"
	"github.com/sitskillbridge/skillbridge-backend/internal/middleware"
	"github.com/sitskillbridge/skillbridge-backend/internal/proctor"
	"github.com/sitskillbridge/skillbridge-backend/internal/repository"
	"github.com/sitskillbridge/skillbridge-backend/internal/router"
	"github.com/sitskillbridge/skillbridge-backend/internal/service"
	"github.com/sitskillbridge/skillbridge-backend/internal/storage"
	"github.com/sitskillbridge/skillbridge-backend/internal/upstream"
	"github.com/sitskillbridge/skillbridge-backend/internal/validator"
	"github.com/sitskillbridge/skillbridge-backend/internal/worker"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Str("docstore", cfg.DocStoreDriver).
		Str("event_broker", cfg.EventBroker).
		Msg("Starting SkillBridge Backend")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	checks := map[string]handler.CheckFunc{"postgres": pool.Ping}

	// ─── Document Store ────────────────────────────────────────────────
	var docStore repository.DocumentStore
	switch cfg.DocStoreDriver {
	case "sqlite":
		sqlDB, err := database.NewSQLiteDB(ctx, cfg.SQLitePath, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to open SQLite document store")
		}
		defer sqlDB.Close()
		docStore = repository.NewSQLiteDocumentStore(sqlDB)
		checks["documents"] = sqlDB.PingContext
	default:
		docStore = repository.NewPostgresDocumentStore(pool)
	}

	// ─── Event Fan-out ─────────────────────────────────────────────────
	var publisher events.Publisher
	switch cfg.EventBroker {
	case "amqp":
		amqpPub, err := events.NewAMQPPublisher(cfg.RabbitMQURL)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to RabbitMQ")
		}
		publisher = amqpPub
	case "none":
		publisher = events.Nop{}
	default:
		publisher = events.NewRedisPublisher(rdb)
	}
	defer publisher.Close()

	// ─── Resume Archive ────────────────────────────────────────────────
	var archive storage.Archive
	if cfg.S3Bucket != "" {
		s3Archive, err := storage.NewS3Archive(ctx, storage.S3Config{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to configure S3 archive")
		}
		archive = s3Archive
	} else {
		archive = storage.NewLocalArchive(cfg.UploadDir)
	}

	// ─── GitHub Scraper ────────────────────────────────────────────────
	scraperOpts := []github.Option{}
	if cfg.GeminiAPIKey != "" {
		summarizer, err := github.NewGeminiSummarizer(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			log.Warn().Err(err).Msg("Gemini summaries disabled")
		} else {
			scraperOpts = append(scraperOpts, github.WithSummarizer(summarizer))
		}
	}
	scraper := github.NewScraper(cfg.GitHubToken, cfg.GitHubRPS, log, scraperOpts...)

	// ─── Initialize Repositories ───────────────────────────────────────
	userRepo := repository.NewUserRepository(pool)

	// ─── Initialize Services ──────────────────────────────────────────
	m := metrics.New()
	upstreamClient := upstream.NewClient(cfg.UpstreamURL, cfg.UpstreamTimeout, log)

	authService := service.NewAuthService(cfg, rdb)
	userService := service.NewUserService(userRepo, authService)
	documentService := service.NewDocumentService(docStore, rdb, log)
	assessmentService := service.NewAssessmentService(upstreamClient, rdb, documentService, m, publisher, log)
	analysisService := service.NewAnalysisService(upstreamClient, documentService, m, log)
	resumeService := service.NewResumeService(archive, documentService, userRepo, cfg.MaxUploadBytes, log)
	githubService := service.NewGitHubService(scraper, documentService, log)

	policy := proctor.Policy{MaxViolations: cfg.MaxViolations, AbsenceDwell: cfg.AbsenceDwell}

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Auth:       handler.NewAuthHandler(userService),
		Assessment: handler.NewAssessmentHandler(assessmentService, log),
		WS:         handler.NewWSHandler(rdb, assessmentService, m, policy, log, cfg.AllowedOrigins),
		Analysis:   handler.NewAnalysisHandler(analysisService),
		Resume:     handler.NewResumeHandler(resumeService),
		GitHub:     handler.NewGitHubHandler(githubService),
		Document:   handler.NewDocumentHandler(documentService),
		System:     handler.NewSystemHandler(rdb, checks, log),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())
	var workers sync.WaitGroup

	violationWorker := worker.NewViolationWorker(pool, rdb, log)
	documentWorker := worker.NewDocumentWorker(docStore, rdb, log)
	authLimiter := middleware.NewRateLimiter(30, time.Minute)

	for _, run := range []func(context.Context){
		violationWorker.Start,
		documentWorker.Start,
		authLimiter.Run,
	} {
		workers.Add(1)
		go func(run func(context.Context)) {
			defer workers.Done()
			run(workerCtx)
		}(run)
	}

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(authService, handlers, cfg, m, authLimiter)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop background workers and wait for queues to drain.
	workerCancel()
	drained := make(chan struct{})
	go func() {
		workers.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-time.After(15 * time.Second):
		log.Warn().Msg("Workers did not stop in time")
	}

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
