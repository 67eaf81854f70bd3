package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/revalidafacil/stations-backend/internal/app"
	"github.com/revalidafacil/stations-backend/internal/clients/gemini"
	rediscache "github.com/revalidafacil/stations-backend/internal/clients/redis"
	"github.com/revalidafacil/stations-backend/internal/db"
	httpserver "github.com/revalidafacil/stations-backend/internal/http"
	"github.com/revalidafacil/stations-backend/internal/http/handlers"
	"github.com/revalidafacil/stations-backend/internal/localstore"
	"github.com/revalidafacil/stations-backend/internal/logger"
	"github.com/revalidafacil/stations-backend/internal/observability"
	"github.com/revalidafacil/stations-backend/internal/repos"
	"github.com/revalidafacil/stations-backend/internal/services"
	"github.com/revalidafacil/stations-backend/internal/station/pipeline"
)

func main() {
	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Config
	cfg, err := app.Load(log)
	if err != nil {
		log.Error("Could not load config", "error", err)
		os.Exit(1)
	}

	// Tracing
	shutdownOTel := observability.InitOTel(context.Background(), log, observability.OtelConfig{
		ServiceName: "stations-backend",
		Environment: cfg.Environment,
		Version:     cfg.Version,
	})
	if shutdownOTel != nil {
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdownOTel(ctx)
		}()
	}

	// Database (optional: generation falls back to local files only)
	var stationRepo repos.StationRepo
	dbService, err := db.NewService(log)
	if err != nil {
		log.Warn("Database init failed, continuing with local files only", "error", err)
	} else {
		stationRepo = repos.NewStationRepo(dbService.DB(), log)
	}

	// Local store (the guaranteed save path)
	log.Info("Setting up local store from main...")
	local, err := localstore.New(log, cfg.OutputDir)
	if err != nil {
		log.Error("Could not init local store", "error", err)
		os.Exit(1)
	}

	// Cache (optional)
	var cache *rediscache.StationCache
	if c, err := rediscache.NewStationCache(log); err != nil {
		log.Warn("Redis init failed, continuing without cache", "error", err)
	} else {
		cache = c
		defer cache.Close()
	}

	// Gemini client
	log.Info("Setting up Gemini client from main...")
	llm, err := gemini.NewFromEnv(log)
	if err != nil {
		log.Error("Could not init Gemini client", "error", err)
		os.Exit(1)
	}

	// Services
	log.Info("Setting up services from main...")
	pipe := pipeline.New(log, llm)
	stationService, err := services.NewStationService(log, llm, pipe, stationRepo, local, cache)
	if err != nil {
		log.Error("Could not init StationService", "error", err)
		os.Exit(1)
	}

	// Handlers
	log.Info("Setting up handlers from main...")
	stationHandler := handlers.NewStationHandler(stationService)
	healthHandler := handlers.NewHealthHandler()

	// Router
	log.Info("Setting up router from main...")
	server := httpserver.NewServer(httpserver.RouterConfig{
		Log:            log,
		HealthHandler:  healthHandler,
		StationHandler: stationHandler,
	})

	fmt.Printf("Server listening on :%s\n", cfg.Port)
	if err := server.Run(":" + cfg.Port); err != nil {
		log.Warn("Server failed", "error", err)
	}
}
