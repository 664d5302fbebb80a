package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	_ "github.com/coverpoint/backend/docs"
	"github.com/coverpoint/backend/internal/config"
	"github.com/coverpoint/backend/internal/db"
	httpapi "github.com/coverpoint/backend/internal/http"
	"github.com/coverpoint/backend/internal/llm"
	"github.com/coverpoint/backend/internal/service"
	"github.com/coverpoint/backend/internal/thresholds"
)

// @title CoverPoint Detection API
// @version 1.0
// @description Coverage gap and conflict detection for commercial real estate insurance portfolios.
// @BasePath /
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	zerolog.TimeFieldFormat = time.RFC3339
	level, _ := zerolog.ParseLevel(cfg.LogLevel)
	logger := log.Level(level).With().Str("service", "coverpoint-backend").Logger()

	ctx := context.Background()
	store, err := db.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect db")
	}
	defer store.Close()

	var reasoner llm.Reasoner
	if cfg.OpenAIAPIKey == "" {
		reasoner = llm.MockReasoner{ModelVersion: "mock-v1"}
		logger.Info().Msg("using mock LLM reasoner")
	} else {
		reasoner = llm.NewOpenAIReasoner(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.LLMTimeout)
	}

	th := thresholds.Default()
	health := &service.HealthService{Store: store, Reasoner: reasoner, Thresholds: th, Logger: logger}
	svc := httpapi.Services{
		Detection: &service.DetectionService{Store: store, Thresholds: th, Logger: logger, Concurrency: cfg.DetectConcurrency},
		Conflicts: &service.ConflictService{Store: store, Reasoner: reasoner, Logger: logger},
		Lifecycle: &service.LifecycleService{Store: store, Health: health, Logger: logger},
		Health:    health,
	}

	router := httpapi.Router(cfg, store, svc, logger)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info().Str("port", cfg.Port).Msg("server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctxShutdown)
	logger.Info().Msg("server stopped")
}
