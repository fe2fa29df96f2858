package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/bq-insights/backend/internal/analytics"
	"github.com/bq-insights/backend/internal/api/handlers"
	redisCache "github.com/bq-insights/backend/internal/cache/redis"
	"github.com/bq-insights/backend/internal/dashboard"
	"github.com/bq-insights/backend/internal/metrics"
	"github.com/bq-insights/backend/internal/middleware/ratelimit"
	"github.com/bq-insights/backend/internal/middleware/security"
	"github.com/bq-insights/backend/internal/optimizer"
	"github.com/bq-insights/backend/internal/storage/sqlite"
	"github.com/bq-insights/backend/internal/warehouse"
	"github.com/bq-insights/backend/internal/warehouse/bigquery"
	"github.com/bq-insights/backend/pkg/config"
	appLogger "github.com/bq-insights/backend/pkg/logger"
)

func main() {
	godotenv.Load()

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

	appLogger.Info("Starting BigQuery Insights API Server")

	metrics.Init()

	// A missing warehouse client is not fatal: the server still answers, and
	// the dashboard endpoints report the initialization failure per request.
	var (
		composer *dashboard.Composer
		meta     warehouse.Introspector
	)
	bqClient, err := bigquery.NewClient(context.Background(), cfg.BigQuery.Project)
	if err != nil {
		appLogger.Error("Failed to create BigQuery client", zap.Error(err))
	} else {
		defer bqClient.Close()
		meta = bqClient

		regions := analytics.NewRegionResolver(cfg.BigQuery.DefaultRegionCandidates())
		runner := dashboard.NewRunner(
			bqClient,
			regions,
			time.Duration(cfg.BigQuery.QueryTimeoutSeconds)*time.Second,
		)
		composer = dashboard.NewComposer(runner, bqClient, cfg)
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

	var counter ratelimit.Counter
	if cfg.Redis.Enabled {
		redisClient, err := redisCache.NewClient(
			cfg.Redis.Host,
			cfg.Redis.Port,
			cfg.Redis.Password,
			cfg.Redis.DB,
		)
		if err != nil {
			appLogger.Warn("Redis unavailable, rate limits are per-replica", zap.Error(err))
		} else {
			defer redisClient.Close()
			counter = redisClient
		}
	}

	agentRunner := optimizer.NewOpenAIRunner(
		cfg.LLM.APIKey,
		cfg.LLM.Model,
		cfg.LLM.Temperature,
		cfg.LLM.MaxTokens,
	)
	manager := optimizer.NewManager(agentRunner, cfg.LLM.AppName, sqliteClient)

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{}))

	var limiter *ratelimit.RateLimiter
	if cfg.RateLimit.Enabled {
		limiter = ratelimit.New(ratelimit.Config{
			MaxRequestsPerMinute: cfg.RateLimit.MaxRequestsPerMinute,
			Counter:              counter,
			Logger:               appLogger.GetLogger(),
		})
		defer limiter.Stop()
		app.Use(limiter.Middleware())
	}

	dashboardHandler := handlers.NewDashboardHandler(composer, meta, cfg.BigQuery.Location)
	optimizeHandler := handlers.NewOptimizeHandler(manager, sqliteClient)
	wsHandler := handlers.NewWebSocketHandler(manager)

	api := app.Group("/api")

	api.Get("/expensive-queries", dashboardHandler.GetExpensiveQueries)
	api.Post("/query-details", dashboardHandler.GetQueryDetails)
	api.Get("/organization-overview", dashboardHandler.GetOrganizationOverview)
	api.Get("/operational-dashboard", dashboardHandler.GetOperationalDashboard)
	api.Get("/project/:id", dashboardHandler.GetProjectDetails)
	api.Get("/pulse-data", dashboardHandler.GetPulseData)
	api.Get("/projects", dashboardHandler.GetProjects)
	api.Get("/time-window-investigation", dashboardHandler.GetTimeWindowInvestigation)

	api.Post("/optimize", optimizeHandler.HandleOptimize)
	api.Get("/optimize/history", optimizeHandler.GetOptimizationHistory)

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Unix(),
		})
	})

	api.Get("/ready", func(c *fiber.Ctx) error {
		if composer == nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"status": "degraded",
				"reason": "warehouse client not initialized",
			})
		}
		return c.JSON(fiber.Map{
			"status": "ready",
		})
	})

	app.Get("/metrics", metrics.MetricsHandler())

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/optimize", websocket.New(wsHandler.HandleConnection))

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
