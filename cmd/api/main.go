// Package main is the entry point for the API server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/citypulse/citypulse/internal/ads"
	"github.com/citypulse/citypulse/internal/agent"
	"github.com/citypulse/citypulse/internal/api"
	"github.com/citypulse/citypulse/internal/bandit"
	"github.com/citypulse/citypulse/internal/config"
	"github.com/citypulse/citypulse/internal/db"
	"github.com/citypulse/citypulse/internal/event"
	"github.com/citypulse/citypulse/internal/graph"
	"github.com/citypulse/citypulse/internal/health"
	"github.com/citypulse/citypulse/internal/idempotency"
	"github.com/citypulse/citypulse/internal/middleware"
	"github.com/citypulse/citypulse/internal/retrieval"
	"github.com/citypulse/citypulse/internal/scoring"
	"github.com/citypulse/citypulse/internal/slate"
	"github.com/citypulse/citypulse/internal/taste"
	"github.com/citypulse/citypulse/internal/tracing"
)

func main() {
	configPath := flag.String("config", "", "path to optional YAML config file")
	help := flag.Bool("help", false, "display help message")
	flag.Parse()

	if *help {
		fmt.Println("CityPulse API Server")
		fmt.Println()
		fmt.Println("Usage: api [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	cfg, errs := config.Load(*configPath)
	if len(errs) > 0 {
		for _, err := range errs {
			fmt.Fprintf(os.Stderr, "config: %v\n", err)
		}
		os.Exit(1)
	}

	logger := middleware.NewLogger(cfg.Env)
	slog.SetDefault(logger)

	summary := cfg.LogSummary()
	attrs := make([]any, 0, len(summary)*2)
	for k, v := range summary {
		attrs = append(attrs, k, v)
	}
	logger.Info("configuration loaded", attrs...)

	ctx := context.Background()

	tracerProvider, err := tracing.NewProvider(tracing.Config{
		ServiceName:  "citypulse-api",
		Enabled:      cfg.TracingEnabled,
		Environment:  cfg.Env,
		OTLPEndpoint: cfg.OTLPEndpoint,
		SamplingRate: cfg.TracingSampleRate,
		InsecureMode: cfg.Env != "production",
	})
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	sqlDB, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to open database handle", "error", err)
		os.Exit(1)
	}
	defer func() { _ = sqlDB.Close() }()

	// Redis is optional. Without it the server falls back to in-memory
	// stores, which is fine for a single replica.
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Error("invalid REDIS_URL", "error", err)
			os.Exit(1)
		}
		redisClient = redis.NewClient(opts)
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			logger.Warn("redis unreachable, using in-memory fallbacks", "error", err)
			_ = redisClient.Close()
			redisClient = nil
		}
		cancel()
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	httpMetrics := middleware.NewMetrics()
	if err := httpMetrics.Register(registry); err != nil {
		logger.Error("failed to register http metrics", "error", err)
		os.Exit(1)
	}
	agentMetrics := agent.NewMetrics()
	if err := agentMetrics.Register(registry); err != nil {
		logger.Error("failed to register agent metrics", "error", err)
		os.Exit(1)
	}
	adsMetrics := ads.NewMetrics()
	if err := adsMetrics.Register(registry); err != nil {
		logger.Error("failed to register ads metrics", "error", err)
		os.Exit(1)
	}

	// Retrieval fanout: pgvector + keyword FTS, with optional cache and
	// reranker stages.
	retrievalTimeout := time.Duration(cfg.RetrievalTimeoutMS) * time.Millisecond
	var vectorBackend retrieval.Backend
	if cfg.EmbedderURL != "" {
		encoder := retrieval.NewHTTPEncoder(cfg.EmbedderURL, retrievalTimeout)
		vectorBackend = retrieval.NewPgVectorBackend(pool, encoder)
	} else {
		logger.Warn("EMBEDDER_URL not set, vector retrieval disabled")
	}
	retriever := retrieval.NewRetriever(
		vectorBackend,
		retrieval.NewKeywordBackend(pool),
		retrieval.Options{TopK: cfg.RetrievalTopK, Timeout: retrievalTimeout},
		logger,
	)
	if redisClient != nil {
		retriever.WithCache(retrieval.NewRedisCache(redisClient, 5*time.Minute))
	} else {
		retriever.WithCache(retrieval.NewLRUCache(1024, 5*time.Minute))
	}
	if cfg.RerankerURL != "" {
		retriever.WithReranker(retrieval.NewHTTPReranker(cfg.RerankerURL, retrievalTimeout))
	}

	var graphProvider graph.Provider
	if redisClient != nil {
		graphProvider = graph.NewRedisProvider(redisClient)
	} else {
		graphProvider = graph.NewInMemoryProvider()
	}

	var banditStore bandit.Store
	if redisClient != nil {
		banditStore = bandit.NewRedisStore(redisClient, slate.PolicyBalanced, slate.PolicySafeNovel)
	} else {
		banditStore = bandit.NewMemoryStore(slate.PolicyBalanced, slate.PolicySafeNovel)
	}
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	selector := bandit.NewSelector(banditStore, cfg.ActivePolicy, cfg.BanditEpsilon, rng, logger)

	eventRepo := event.NewPostgresRepository(pool)
	tasteStore := taste.NewPostgresStore(pool)
	embeddingStore := retrieval.NewPgEmbeddingStore(pool)

	pipeline := agent.NewPipeline(retriever, eventRepo, graphProvider, selector, scoring.DefaultWeights(), agentMetrics, logger).
		WithTaste(taste.NewScorer(tasteStore, embeddingStore))

	var capper ads.FrequencyCapper
	if redisClient != nil {
		capper = ads.NewRedisFrequencyCapper(redisClient)
	} else {
		capper = ads.NewMemoryFrequencyCapper()
	}
	signer := ads.NewTokenSigner(cfg.JWTSecret)
	engine := ads.NewEngine(ads.NewPostgresStore(sqlDB), capper, signer, ads.EngineConfig{
		SoloSettlementFraction: cfg.SoloSettlementFraction,
		DefaultFrequencyCap:    cfg.FrequencyCap,
	}, adsMetrics, logger)

	recommendHandlers := api.NewRecommendHandlers(pipeline).WithAds(engine)
	adsHandlers := api.NewAdsHandlers(engine, signer)
	feedbackHandlers := api.NewFeedbackHandlers(tasteStore, embeddingStore, selector)
	policyHandlers := api.NewPolicyHandlers(cfg.ActivePolicy)

	var redisChecker api.HealthChecker
	if redisClient != nil {
		redisChecker = health.NewRedisChecker(redisClient)
	}
	healthHandlers := api.NewHealthHandlers(api.HealthHandlersConfig{
		DBChecker:      health.NewDBChecker(sqlDB),
		RedisChecker:   redisChecker,
		MetricsEnabled: true,
	})

	// Feedback retries must not double-credit the bandit, so the route
	// sits behind the idempotency cache.
	idemRepo := idempotency.NewInMemoryRepository()
	cleanupCtx, stopCleanup := context.WithCancel(context.Background())
	go idempotency.RunPeriodicCleanup(cleanupCtx, idemRepo, time.Hour, idempotency.DefaultExpiry)
	idem := middleware.IdempotencyMiddleware(idemRepo, map[string]bool{"/feedback": true})

	mux := http.NewServeMux()
	mux.HandleFunc("/recommend", recommendHandlers.Recommend)
	mux.HandleFunc("/ads/serve", adsHandlers.ServeAd)
	mux.HandleFunc("/ads/track", adsHandlers.TrackAd)
	mux.Handle("/feedback", idem(http.HandlerFunc(feedbackHandlers.Feedback)))
	mux.HandleFunc("/policies", policyHandlers.ListPolicies)
	mux.HandleFunc("/health", healthHandlers.Health)
	mux.HandleFunc("/ready", healthHandlers.Ready)
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	var rateLimitStore middleware.RateLimitStore
	if redisClient != nil {
		rateLimitStore = middleware.NewRedisRateLimitStore(redisClient).WithMetrics(httpMetrics)
	} else {
		rateLimitStore = middleware.NewInMemoryRateLimitStore()
	}
	rateLimit := middleware.RateLimiter(rateLimitStore, middleware.DefaultServeLimit(), middleware.UserKeyFunc())

	cors := middleware.CORS(middleware.CORSConfig{
		AllowedOrigins: cfg.AllowedOrigins,
	})
	profiling := middleware.Profiling(middleware.ProfilingConfig{
		Enabled:     cfg.ProfilingEnabled,
		Environment: cfg.Env,
	})

	handler := middleware.RequestID(
		middleware.Tracing("citypulse-api")(
			middleware.Logging(logger)(
				middleware.HTTPMetrics(httpMetrics)(
					cors(
						rateLimit(
							profiling(mux)))))))

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("starting server", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")
	stopCleanup()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		logger.Error("tracer shutdown error", "error", err)
	}

	logger.Info("server stopped")
}
