package main

import (
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"riskquery-backend/internal/cache"
	"riskquery-backend/internal/config"
	"riskquery-backend/internal/database"
	"riskquery-backend/internal/dataset"
	"riskquery-backend/internal/handlers"
	"riskquery-backend/internal/middleware"
	"riskquery-backend/internal/remote"
	"riskquery-backend/internal/reports"
)

func setupLogging() {
	level, err := zerolog.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
}

func main() {
	// Load .env file if it exists (must be done before reading GIN_MODE)
	if err := godotenv.Load(); err == nil {
		log.Info().Msg("Loaded .env file")
	}

	setupLogging()

	if os.Getenv("GIN_MODE") == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	cfg, err := config.GetConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if err := cfg.EnsureCacheDir(); err != nil {
		log.Fatal().Err(err).Msg("Failed to create cache directory")
	}

	db, err := database.Initialize()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize query engine")
	}
	defer db.Close()

	// All caches are built once here and passed down; request handling never
	// touches globals.
	driveClient := remote.NewClient(cfg)
	fileIndex := reports.NewIndex(cfg, driveClient,
		cache.NewTTL[reports.Category, reports.FileRecord](cfg.FileIndexTTL))
	loader := dataset.NewLoader(db, fileIndex)

	handler := handlers.NewHandler(loader, fileIndex, log.Logger)
	authMiddleware := middleware.NewAuthMiddleware(cfg.APIKey)

	r := gin.New()
	r.Use(gin.Logger())
	r.Use(middleware.RecoveryMiddleware())

	if cfg.EnableCORS {
		corsConfig := cors.DefaultConfig()
		corsConfig.AllowAllOrigins = true
		corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, "X-API-Key", "Authorization")
		r.Use(cors.New(corsConfig))
	}

	r.Use(authMiddleware.Authenticate())

	health := r.Group("/health")
	{
		health.GET("/live", handler.GetLiveness)
		health.GET("/ready", handler.GetReadiness)
	}

	meta := r.Group("/meta")
	{
		meta.GET("/schema", handler.GetSchema)
		meta.GET("/facets", handler.GetFacets)
	}

	risk := r.Group("/risk")
	{
		risk.GET("/actions/query", handler.QueryActions)
		risk.GET("/actions/summary", handler.SummarizeActions)
		risk.GET("/permissions/query", handler.QueryPermissions)
		risk.GET("/permissions/summary", handler.SummarizePermissions)
	}

	log.Info().
		Str("port", cfg.ServerPort).
		Bool("auth_enabled", authMiddleware.IsAuthEnabled()).
		Bool("local_mode", cfg.LocalReportDir != "").
		Msg("Starting risk query server")

	if err := r.Run(":" + cfg.ServerPort); err != nil {
		log.Fatal().Err(err).Msg("Failed to start server")
	}
}
