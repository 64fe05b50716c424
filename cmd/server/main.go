package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tkteam/meeting-assistant/internal/ai"
	"github.com/tkteam/meeting-assistant/internal/api"
	"github.com/tkteam/meeting-assistant/internal/auth"
	"github.com/tkteam/meeting-assistant/internal/config"
	"github.com/tkteam/meeting-assistant/internal/dispatch"
	"github.com/tkteam/meeting-assistant/internal/executor"
	"github.com/tkteam/meeting-assistant/internal/logger"
	"github.com/tkteam/meeting-assistant/internal/media"
	"github.com/tkteam/meeting-assistant/internal/queue"
	"github.com/tkteam/meeting-assistant/internal/storage"
	"github.com/tkteam/meeting-assistant/internal/taskstore"
	"github.com/tkteam/meeting-assistant/internal/worker"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.New(logger.ParseLevel(cfg.LogLevel), cfg.LogJSON)

	if err := storage.Migrate(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	db, err := storage.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	defer db.Close()
	pg := storage.NewPostgresStore(db)
	log.Info("connected to postgres")

	rdb, err := queue.NewClient(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	if err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}
	defer rdb.Close()
	log.Info("connected to redis", "addr", cfg.RedisAddr)

	store := taskstore.New(rdb)
	q := queue.New(rdb)

	execs := buildExecutors(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool := worker.NewPool(q, store, execs, cfg.WorkerCount, log)
	pool.Start(ctx)

	jwtSvc, err := auth.NewJWTService(cfg.JWTSecret, time.Duration(cfg.TokenLifetimeHours)*time.Hour)
	if err != nil {
		return fmt.Errorf("init jwt service: %w", err)
	}

	dispatcher := dispatch.New(store, q, log)
	router := api.NewRouter(api.Handlers{
		Jobs:     api.NewJobHandler(dispatcher, store, q, cfg.UploadDir, cfg.MaxUploadSize),
		Auth:     api.NewAuthHandler(pg, jwtSvc),
		Meetings: api.NewMeetingHandler(pg, pg, pg),
		AI:       api.NewAIHandler(execs.Assistant, cfg.DifyTranslatorKey, cfg.DifySummarizerKey, cfg.DifyExtractorKey),
		JWT:      jwtSvc,
	})

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting", "port", cfg.ServerPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-quit:
		log.Info("shutdown signal received")
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown error", "error", err)
	}

	pool.Stop()
	log.Info("server stopped")
	return nil
}

// buildExecutors wires the external collaborators, swapping in mocks when
// MOCK_AI is set so the whole pipeline runs offline.
func buildExecutors(cfg *config.Config) *executor.Set {
	if cfg.MockAI {
		return &executor.Set{
			Media:     &media.MockExtractor{},
			STT:       &ai.MockTranscriber{},
			Assistant: &ai.MockAssistant{},
		}
	}
	return &executor.Set{
		Media:         media.NewFFmpeg(cfg.FFmpegBinary),
		STT:           ai.NewWhisperClient(cfg.STTURL, cfg.STTAPIKey, cfg.STTModel),
		Assistant:     ai.NewDifyClient(cfg.DifyBaseURL),
		TranslatorKey: cfg.DifyTranslatorKey,
		SummarizerKey: cfg.DifySummarizerKey,
		ExtractorKey:  cfg.DifyExtractorKey,
	}
}
