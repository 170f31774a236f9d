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
	"go.uber.org/zap"

	"github.com/autoscholar/backend/internal/api/handlers"
	"github.com/autoscholar/backend/internal/cache/redis"
	"github.com/autoscholar/backend/internal/compare"
	"github.com/autoscholar/backend/internal/graph/neo4j"
	"github.com/autoscholar/backend/internal/ingest"
	"github.com/autoscholar/backend/internal/llm"
	"github.com/autoscholar/backend/internal/metrics"
	"github.com/autoscholar/backend/internal/middleware/ratelimit"
	"github.com/autoscholar/backend/internal/middleware/security"
	"github.com/autoscholar/backend/internal/middleware/validation"
	"github.com/autoscholar/backend/internal/novelty"
	"github.com/autoscholar/backend/internal/openalex"
	"github.com/autoscholar/backend/internal/profile"
	"github.com/autoscholar/backend/internal/recommend"
	"github.com/autoscholar/backend/internal/search"
	"github.com/autoscholar/backend/internal/storage/sqlite"
	"github.com/autoscholar/backend/internal/vector/milvus"
	"github.com/autoscholar/backend/pkg/config"
	appLogger "github.com/autoscholar/backend/pkg/logger"
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

	appLogger.Info("Starting AutoScholar API Server")

	metrics.Init()

	sqliteClient, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer sqliteClient.Close()

	err = sqliteClient.InitSchema()
	if err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	cacheClient, err := redis.NewClient(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		appLogger.Warn("Redis unavailable, running without cache", zap.Error(err))
		cacheClient = nil
	} else {
		defer cacheClient.Close()
	}

	neo4jClient, err := neo4j.NewClient(
		cfg.Neo4j.URI,
		cfg.Neo4j.Username,
		cfg.Neo4j.Password,
	)
	if err != nil {
		appLogger.Fatal("Failed to create Neo4j client", zap.Error(err))
	}
	defer neo4jClient.Close(context.Background())

	milvusClient, err := milvus.NewClient(
		cfg.Milvus.Endpoint,
		cfg.Milvus.CollectionName,
		cfg.Milvus.VectorDim,
	)
	if err != nil {
		appLogger.Fatal("Failed to create Milvus client", zap.Error(err))
	}
	defer milvusClient.Close()

	err = milvusClient.CreateCollection(context.Background())
	if err != nil {
		appLogger.Fatal("Failed to create collection", zap.Error(err))
	}

	llmClient := llm.NewClient(
		cfg.LLM.APIKey,
		cfg.LLM.Model,
		cfg.LLM.EmbeddingModel,
		cfg.LLM.Temperature,
		cfg.LLM.MaxTokens,
	)
	if cacheClient != nil {
		llmClient.SetEmbeddingCache(cacheClient)
	}

	openalexClient := openalex.NewClient(cfg.OpenAlex.BaseURL, cfg.OpenAlex.MailTo)

	profileStore := profile.NewStore(sqliteClient)
	if cacheClient != nil {
		profileStore.Subscribe(func(profileID string) {
			if err := cacheClient.InvalidateRecommendations(context.Background(), profileID); err != nil {
				appLogger.Warn("Failed to invalidate recommendation cache",
					zap.String("profile_id", profileID),
					zap.Error(err),
				)
			}
		})
	}

	searchEngine := search.NewEngine(sqliteClient, milvusClient, llmClient, cfg.Search.Alpha)

	aggregator := recommend.NewAggregator(
		recommend.NewVectorRecommender(milvusClient),
		searchEngine,
		recommend.Config{
			TopicCount: cfg.Search.TopicCount,
			SeedCount:  cfg.Search.SeedCount,
			Limit:      cfg.Search.RecommendLimit,
		},
	)

	compareService := compare.NewService(llmClient, llmClient, neo4jClient, sqliteClient)
	noveltyScorer := novelty.NewScorer(llmClient, milvusClient)

	processor := ingest.NewProcessor(sqliteClient, milvusClient, neo4jClient, llmClient, openalexClient, openalexClient)
	arxivClient := ingest.NewArxivClient(cfg.Ingest.ArxivBaseURL)
	springerClient := ingest.NewSpringerClient(cfg.Ingest.SpringerURL, cfg.Ingest.SpringerAPIKey)

	resolver := handlers.NewIndexedResolver(sqliteClient, openalexClient)

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
	app.Use(security.HeadersMiddleware(security.HeadersConfig{
		IsDevelopment: cfg.Logging.Level == "debug",
	}))
	limiter := ratelimit.New(ratelimit.Config{
		MaxRequestsPerMinute: 120,
		Logger:               appLogger.GetLogger(),
	})
	defer limiter.Stop()
	app.Use(limiter.Middleware())
	app.Use(validation.Middleware(validation.Config{
		Logger: appLogger.GetLogger(),
	}))

	searchHandler := handlers.NewSearchHandler(searchEngine, cacheClient, profileStore)
	compareHandler := handlers.NewCompareHandler(compareService, resolver, cacheClient)
	recommendHandler := handlers.NewRecommendHandler(aggregator, profileStore, sqliteClient, cacheClient)
	noveltyHandler := handlers.NewNoveltyHandler(noveltyScorer)
	graphHandler := handlers.NewGraphHandler(neo4jClient, sqliteClient, milvusClient, llmClient, openalexClient)
	profileHandler := handlers.NewProfileHandler(profileStore)
	citationsHandler := handlers.NewCitationsHandler()
	documentHandler := handlers.NewDocumentHandler(processor, arxivClient, springerClient)
	wsHandler := handlers.NewWebSocketHandler(compareService, resolver)

	api := app.Group("/api/v1")

	api.Post("/search", searchHandler.HandleSearch)
	api.Get("/search/autocomplete", searchHandler.HandleAutocomplete)

	api.Post("/compare-papers", compareHandler.HandleCompare)

	api.Get("/recommendations/for-user/:id", recommendHandler.HandleForUser)
	api.Get("/recommendations/trending", recommendHandler.HandleTrending)

	api.Post("/novelty/score", noveltyHandler.HandleScore)

	api.Get("/graph/citations", graphHandler.HandleCitations)
	api.Get("/graph/similar", graphHandler.HandleSimilar)

	api.Post("/citations/format", citationsHandler.HandleFormat)
	api.Post("/citations/export", citationsHandler.HandleExport)

	api.Get("/profiles/:id", profileHandler.HandleGet)
	api.Put("/profiles/:id", profileHandler.HandleUpsert)
	api.Get("/profiles/:id/history", profileHandler.HandleHistory)
	api.Post("/profiles/:id/papers", profileHandler.HandleSavePaper)
	api.Delete("/profiles/:id/papers/:paperKey", profileHandler.HandleRemoveSavedPaper)

	api.Post("/documents", documentHandler.HandleIngest)
	api.Post("/documents/fetch", documentHandler.HandleFetch)

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Unix(),
		})
	})

	api.Get("/ready", func(c *fiber.Ctx) error {
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
	app.Get("/ws/compare", websocket.New(wsHandler.HandleConnection))

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
