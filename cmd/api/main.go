package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/housefly/backend/internal/api/handlers"
	"github.com/housefly/backend/internal/cache/redis"
	"github.com/housefly/backend/internal/collect"
	"github.com/housefly/backend/internal/metrics"
	"github.com/housefly/backend/internal/middleware/ratelimit"
	"github.com/housefly/backend/internal/middleware/security"
	"github.com/housefly/backend/internal/pipeline"
	"github.com/housefly/backend/internal/score"
	"github.com/housefly/backend/internal/sentiment"
	"github.com/housefly/backend/internal/storage/sqlite"
	"github.com/housefly/backend/pkg/config"
	appLogger "github.com/housefly/backend/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting Housefly API Server")

	weights, err := config.LoadWeights(cfg.Pipeline.WeightsPath)
	if err != nil {
		appLogger.Fatal("Invalid score weights", zap.Error(err))
	}

	sqliteClient, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer sqliteClient.Close()

	err = sqliteClient.InitSchema()
	if err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	var cacheClient *redis.Client
	if cfg.Redis.Enabled {
		cacheClient, err = redis.NewClient(
			cfg.Redis.Host,
			cfg.Redis.Port,
			cfg.Redis.Password,
			cfg.Redis.DB,
			time.Duration(cfg.Redis.TTLSec)*time.Second,
		)
		if err != nil {
			// Redis only caches reads; the API works without it.
			appLogger.Warn("Redis unavailable, running without score cache", zap.Error(err))
			cacheClient = nil
		} else {
			defer cacheClient.Close()
		}
	}

	metrics.Init()

	sourceTimeout := time.Duration(cfg.Sources.TimeoutSec) * time.Second
	openData := collect.NewOpenDataClient(cfg.Sources.CrimeURL, cfg.Sources.PermitsURL, sourceTimeout)
	newsClient := collect.NewNewsClient(cfg.Sources.NewsURL, cfg.Sources.NewsAPIKey, cfg.Sources.NewsQuery, sourceTimeout)

	crimeCollector := collect.NewCrimeCollector(sqliteClient, openData, cfg.Sources.FetchLimit, cfg.Pipeline.BatchSize)
	permitCollector := collect.NewInfrastructureCollector(sqliteClient, openData, cfg.Sources.FetchLimit, cfg.Pipeline.BatchSize)
	demographicsCollector := collect.NewDemographicsCollector(sqliteClient)
	newsCollector := collect.NewSentimentCollector(
		sqliteClient,
		newsClient,
		&collect.FallbackNewsSource{},
		cfg.Sources.NewsDaysBack,
		cfg.Pipeline.BatchSize,
	)

	analyzer := sentiment.NewAnalyzer()
	sentimentProcessor := score.NewSentimentProcessor(sqliteClient, analyzer)
	aggregator := score.NewAggregator(sqliteClient, cacheClient, sentimentProcessor)

	refresher := pipeline.NewRefresher(
		crimeCollector,
		permitCollector,
		demographicsCollector,
		newsCollector,
		aggregator,
		weights,
	)

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	})

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{}))

	apiLimiter := ratelimit.New(ratelimit.Config{
		MaxRequestsPerMinute: 120,
		Logger:               appLogger.Log,
	})
	defer apiLimiter.Stop()
	adminLimiter := ratelimit.New(ratelimit.Config{
		MaxRequestsPerMinute: 5,
		Logger:               appLogger.Log,
	})
	defer adminLimiter.Stop()

	neighborhoodHandler := handlers.NewNeighborhoodHandler(sqliteClient)
	scoreHandler := handlers.NewScoreHandler(sqliteClient, cacheClient)
	adminHandler := handlers.NewAdminHandler(refresher)

	api := app.Group("/api/v1")
	api.Use(apiLimiter.Middleware())

	api.Get("/neighborhoods", neighborhoodHandler.HandleList)
	api.Get("/neighborhoods/:id", neighborhoodHandler.HandleGet)
	api.Get("/neighborhoods/:id/scores", neighborhoodHandler.HandleScoreHistory)

	api.Get("/scores", scoreHandler.HandleList)
	api.Get("/scores/breakdown/:id", scoreHandler.HandleBreakdown)
	api.Get("/scores/:id", scoreHandler.HandleGet)

	api.Post("/admin/refresh", adminLimiter.Middleware(), adminHandler.HandleRefresh)

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Unix(),
		})
	})

	app.Get("/metrics", metrics.MetricsHandler())

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr))

	go func() {
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")
	app.Shutdown()
	appLogger.Info("Server stopped")
}
