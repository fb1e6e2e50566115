package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/oesys/oes-backend/internal/config"
	"github.com/oesys/oes-backend/internal/database"
	"github.com/oesys/oes-backend/internal/handler"
	"github.com/oesys/oes-backend/internal/logger"
	"github.com/oesys/oes-backend/internal/repository"
	"github.com/oesys/oes-backend/internal/router"
	"github.com/oesys/oes-backend/internal/scheduler"
	"github.com/oesys/oes-backend/internal/service"
	"github.com/oesys/oes-backend/internal/session"
	"github.com/oesys/oes-backend/internal/validator"
	"github.com/oesys/oes-backend/internal/worker"
	"github.com/rs/zerolog"
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
		Msg("Starting OES Backend")

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

	// ─── Initialize Repositories ───────────────────────────────────────
	studentRepo := repository.NewStudentRepository(pool)
	instructorRepo := repository.NewInstructorRepository(pool)
	examRepo := repository.NewExamRepository(pool)
	questionRepo := repository.NewQuestionRepository(pool)
	submissionRepo := repository.NewSubmissionRepository(pool)

	sessionStore := session.NewStore(rdb, cfg.SessionTTL)

	// ─── Initialize Services ──────────────────────────────────────────
	authService := service.NewAuthService(cfg, rdb)
	takeExamService := service.NewTakeExamService(
		examRepo, questionRepo, submissionRepo, sessionStore, instructorRepo,
		cfg.HeartbeatWindow, log,
	)
	autosaveService := service.NewAutosaveService(submissionRepo, sessionStore, examRepo, service.NewRedisAutosaveQueue(rdb), log)

	// ─── Closing Scheduler ────────────────────────────────────────────
	closeScheduler := scheduler.New(
		examRepo, takeExamService,
		cfg.CloseGracePeriod, cfg.SchedulerScanInterval, log,
	)

	examService := service.NewExamService(examRepo, questionRepo, submissionRepo, closeScheduler, log)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Auth:     handler.NewAuthHandler(authService, studentRepo, instructorRepo),
		TakeExam: handler.NewTakeExamHandler(takeExamService, autosaveService),
		Exam:     handler.NewExamHandler(examService),
		WS:       handler.NewWSHandler(rdb, takeExamService, log, cfg.AllowedOrigins),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())

	autosaveWorker := worker.NewAutosaveWorker(submissionRepo, rdb, log)
	proctorWorker := worker.NewProctorWorker(pool, rdb, log)

	go autosaveWorker.Start(workerCtx)
	go proctorWorker.Start(workerCtx)
	go closeScheduler.Run(workerCtx)

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(authService, handlers, cfg)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: r,
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

	// 2. Stop the scheduler and workers, wait for queues to drain.
	// Attempts left open here are recovered by the first reconciliation
	// after the next start.
	workerCancel()
	time.Sleep(2 * time.Second) // Allow workers to drain.

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
