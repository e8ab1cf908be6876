package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"time"

	"stockchat/db"
	"stockchat/internal/config"
	"stockchat/internal/handler"
	"stockchat/internal/metrics"
	"stockchat/internal/middleware"
	"stockchat/internal/repository"
	"stockchat/pkg/llm"
	"stockchat/pkg/market"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("error loading config: %v", err)
	}

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()})))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var mongoClient *mongo.Client
	if cfg.UsesMongo() {
		mongoClient, err = db.ConnectMongo(ctx, cfg.MongoDB.URI)
		if err != nil {
			log.Fatalf("error connecting to MongoDB: %v", err)
		}
		defer mongoClient.Disconnect(context.Background())
	}

	var funds handler.FundStore
	switch cfg.Fund.Backend {
	case config.BackendPostgres:
		pg, err := db.ConnectPostgres(cfg.Postgres.URL)
		if err != nil {
			log.Fatalf("error connecting to Postgres: %v", err)
		}
		defer pg.Close()
		funds = repository.NewPostgresFundRepository(pg)
	default:
		coll := mongoClient.Database(cfg.MongoDB.FundDatabase).Collection(cfg.MongoDB.FundCollection)
		funds = repository.NewFundRepository(coll)
	}

	var history handler.HistoryStore
	switch cfg.History.Backend {
	case config.BackendRedis:
		rdb, err := db.ConnectRedis(ctx, cfg.Redis.URL)
		if err != nil {
			log.Fatalf("error connecting to Redis: %v", err)
		}
		defer rdb.Close()
		history = repository.NewRedisHistoryRepository(rdb, cfg.History.Window)
	default:
		coll := mongoClient.Database(cfg.MongoDB.HistoryDatabase).Collection(cfg.MongoDB.HistoryCollection)
		repo := repository.NewHistoryRepository(coll, cfg.History.Window)
		if err := repo.EnsureIndexes(ctx); err != nil {
			slog.Warn("could not create history index", "error", err)
		}
		history = repo
	}

	var extractor llm.TickerExtractor
	switch cfg.LLM.Provider {
	case config.ProviderAnthropic:
		extractor = llm.NewAnthropicClient(cfg.LLM.APIKey, cfg.LLM.Model)
	default:
		extractor = llm.NewOpenAIClient(cfg.LLM.APIKey, cfg.LLM.BaseURL, cfg.LLM.Model)
	}

	var provider market.Provider
	switch cfg.Market.Provider {
	case config.ProviderFinnhub:
		provider = market.NewFinnhubProvider(cfg.Market.FinnhubAPIKey, "")
	default:
		provider = market.NewYahooProvider("", cfg.App.UpstreamTimeout)
	}

	slog.Info("backends configured",
		"fund_backend", cfg.Fund.Backend,
		"history_backend", cfg.History.Backend,
		"history_window", cfg.History.Window,
		"llm", extractor.Name(),
		"market", provider.Name(),
	)

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	stockHandler := handler.NewStockHandler(handler.StockHandlerConfig{
		Extractor: extractor,
		Funds:     funds,
		Market:    provider,
		History:   history,
		Metrics:   m,
		Timeout:   cfg.App.UpstreamTimeout,
	})

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestID(), middleware.Logger(m))

	allowedOrigins := cfg.AllowedOrigins()
	slog.Info("AllowOrigins URL:", "urls", allowedOrigins)

	r.Use(cors.New(cors.Config{
		AllowOrigins: allowedOrigins,
		AllowMethods: []string{"GET", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", middleware.RequestIDHeader},
	}))

	r.GET("/search_stock/", stockHandler.SearchStock)
	r.GET("/user_history/", stockHandler.GetUserHistory)
	r.GET("/health", stockHandler.GetHealth)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	err = r.Run(cfg.App.Port)
	if err != nil {
		log.Fatalf("error starting server: %v", err)
	}
}
