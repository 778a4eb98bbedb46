package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/kailas-cloud/shopsearch/internal/config"
	dbRedis "github.com/kailas-cloud/shopsearch/internal/db/redis"
	"github.com/kailas-cloud/shopsearch/internal/domain"
	"github.com/kailas-cloud/shopsearch/internal/domain/evidence"
	logpkg "github.com/kailas-cloud/shopsearch/internal/logger"
	"github.com/kailas-cloud/shopsearch/internal/metrics"
	"github.com/kailas-cloud/shopsearch/internal/repository/catalog"
	"github.com/kailas-cloud/shopsearch/internal/repository/embcache"
	"github.com/kailas-cloud/shopsearch/internal/repository/session"
	"github.com/kailas-cloud/shopsearch/internal/repository/vector"
	chiTransport "github.com/kailas-cloud/shopsearch/internal/transport/chi"
	openaiTransport "github.com/kailas-cloud/shopsearch/internal/transport/openai"
	"github.com/kailas-cloud/shopsearch/internal/usecase/answer"
	embeddinguc "github.com/kailas-cloud/shopsearch/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/shopsearch/internal/usecase/health"
	"github.com/kailas-cloud/shopsearch/internal/usecase/retrieval"
	"github.com/kailas-cloud/shopsearch/internal/usecase/router"
	searchuc "github.com/kailas-cloud/shopsearch/internal/usecase/search"
	"github.com/kailas-cloud/shopsearch/internal/version"
)

func main() {
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting shopsearch API server",
		zap.String("version", version.Version),
		zap.String("build", version.String()),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("db_addrs", cfg.Database.Addrs),
		zap.String("catalog_driver", cfg.Catalog.Driver),
		zap.String("session_backend", cfg.Session.Backend),
	)

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Username: cfg.Database.Username,
		Password: cfg.Database.Password,
		DB:       cfg.Database.DB,
	})
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	if err := store.WaitForReady(ctx, config.Seconds(cfg.Database.ReadinessTimeout)); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	// Registered explicitly, no init().
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterSearchMetrics()

	queryEmbedder := buildEmbedder(cfg, store, logger)
	logger.Info("Embedder created",
		zap.String("provider", cfg.Embedding.Provider),
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
	)

	vectors := vector.New(store, vector.Options{
		KeyPrefix: cfg.Storage.KeyPrefix,
		Indexes:   indexOverrides(cfg.Storage.Indexes),
		Policy:    cfg.Retry.Policy(config.Seconds(cfg.Vector.TimeoutSec)),
	}, logger)

	healthOpts := []healthuc.Option{
		healthuc.WithIndexes(store, indexNames(vectors)),
		healthuc.WithEmbedding(embeddingChecker{embedder: queryEmbedder}),
	}

	var products retrieval.CatalogReader
	switch cfg.Catalog.Driver {
	case config.CatalogPostgres:
		pg, err := catalog.OpenPostgres(ctx, cfg.Catalog.DSN, cfg.Catalog.MaxOpenConns)
		if err != nil {
			logger.Fatal("Failed to open catalog database", zap.Error(err))
		}
		defer func() { _ = pg.Close() }()
		products = pg
		healthOpts = append(healthOpts, healthuc.WithCatalog(pg))
	default:
		products = catalog.NewStoreReader(store, cfg.Storage.KeyPrefix, cfg.Storage.Indexes["products"])
	}

	var sessions interface {
		searchuc.SessionStore
		chiTransport.HistoryReader
	}
	ttl := config.Seconds(cfg.Session.TTLSec)
	switch cfg.Session.Backend {
	case config.SessionMemory:
		mem := session.NewMemoryStore(cfg.Session.MaxTurns, ttl)
		go mem.RunSweeper(ctx, config.Seconds(cfg.Session.SweepIntervalSec))
		sessions = mem
	default:
		sessions = session.NewRedisStore(store, cfg.Storage.KeyPrefix, cfg.Session.MaxTurns, ttl)
	}

	llmCfg := &openaiTransport.Config{
		APIKey:   cfg.LLM.APIKey,
		BaseURL:  cfg.LLM.BaseURL,
		Model:    cfg.LLM.Model,
		Provider: cfg.LLM.Provider,
		Timeout:  config.Seconds(cfg.Answer.TimeoutSec),
		Logger:   logger,
	}
	generator := openaiTransport.NewChat(llmCfg, openaiTransport.ChatOptions{
		Purpose:     "answer",
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
	})

	// Keep the interface nil when disabled; a typed nil *Chat would not be.
	var classifier router.Classifier
	if cfg.Router.LLMClassifier {
		classifier = openaiTransport.NewChat(llmCfg, openaiTransport.ChatOptions{Purpose: "classify", MaxTokens: 16})
	}
	var rewriter *retrieval.Rewriter
	if cfg.Search.RewriteFollowups {
		rewriter = retrieval.NewRewriter(
			openaiTransport.NewChat(llmCfg, openaiTransport.ChatOptions{Purpose: "rewrite", MaxTokens: 128}),
			cfg.Answer.HistoryTurns, config.Seconds(cfg.Search.RewriteTimeoutSec), logger,
		)
	}

	deps := retrieval.Deps{
		Embedder:  queryEmbedder,
		Vectors:   vectors,
		Rewriter:  rewriter,
		Overfetch: cfg.Search.Overfetch,
		Logger:    logger,
	}
	agents, err := retrieval.NewDispatch(
		retrieval.NewProductAgent(deps, products),
		retrieval.NewReviewAgent(deps),
		retrieval.NewPolicyAgent(deps),
		cfg.Router.AmbiguousFallback,
	)
	if err != nil {
		logger.Fatal("Failed to build agent dispatch", zap.Error(err))
	}

	composer := answer.New(generator, answer.Options{
		SnippetChars:   cfg.Answer.SnippetChars,
		MaxEvidence:    cfg.Answer.MaxEvidence,
		HistoryTurns:   cfg.Answer.HistoryTurns,
		MaxPromptChars: cfg.Answer.MaxPromptChars,
		Timeout:        config.Seconds(cfg.Answer.TimeoutSec),
	}, logger)

	intentRouter := router.New(classifier, logger, router.WithTimeout(config.Seconds(cfg.Router.TimeoutSec)))
	searchSvc := searchuc.New(intentRouter, agents, composer, sessions, logger)
	healthSvc := healthuc.New(store, healthOpts...)

	server := chiTransport.NewServer(searchSvc, sessions, healthSvc, logger)
	handler := chiTransport.NewRouter(server, chiTransport.RouterConfig{
		APIKeys:        cfg.Auth.APIKeys,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		CORSMaxAge:     config.Seconds(cfg.CORS.MaxAgeSec),
	}, logger)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       config.Seconds(cfg.HTTP.ReadTimeoutSec),
		ReadHeaderTimeout: config.Seconds(cfg.HTTP.ReadTimeoutSec),
		WriteTimeout:      config.Seconds(cfg.HTTP.WriteTimeoutSec),
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.Seconds(cfg.HTTP.ShutdownSec))
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}
	stop()

	logger.Info("Server stopped gracefully")
}

// buildEmbedder assembles the decorator chain: OpenAI -> Cached -> Resilient -> Instruction.
func buildEmbedder(cfg config.Config, store *dbRedis.Store, logger *zap.Logger) domain.Embedder {
	base := openaiTransport.NewEmbedder(&openaiTransport.Config{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Provider:   cfg.Embedding.Provider,
		Timeout:    config.Seconds(cfg.Embedding.TimeoutSec),
		Logger:     logger,
	})

	var embedder domain.Embedder = base
	if !cfg.Embedding.CacheDisabled {
		embedder = embcache.New(base, store, embcache.Options{
			KeyPrefix: cfg.Storage.KeyPrefix + "emb_cache:",
			Model:     cfg.Embedding.Model,
			TTL:       config.Seconds(cfg.Embedding.CacheTTLSec),
		}, metrics.EmbeddingCacheTotal, logger)
	}

	embedder = embeddinguc.NewResilientEmbedder(
		embedder, cfg.Embedding.Provider, cfg.Embedding.Model,
		cfg.Retry.Policy(config.Seconds(cfg.Embedding.TimeoutSec)), logger,
	)

	// Outermost, so the cache key includes the instruction.
	if cfg.Embedding.QueryInstruction != "" {
		return domain.NewInstructionEmbedder(embedder, cfg.Embedding.QueryInstruction)
	}
	return embedder
}

func indexOverrides(names map[string]string) map[evidence.Collection]string {
	out := make(map[evidence.Collection]string, len(names))
	for name, index := range names {
		c, err := evidence.ParseCollection(name)
		if err != nil {
			continue
		}
		out[c] = index
	}
	return out
}

func indexNames(v *vector.Repo) map[string]string {
	out := make(map[string]string, len(evidence.Collections))
	for _, c := range evidence.Collections {
		out[string(c)] = v.IndexName(c)
	}
	return out
}

// embeddingChecker satisfies health.EmbeddingChecker for any embedder.
type embeddingChecker struct {
	embedder domain.Embedder
}

func (h embeddingChecker) HealthCheck(ctx context.Context) error {
	if hc, ok := h.embedder.(domain.HealthChecker); ok {
		if err := hc.HealthCheck(ctx); err != nil {
			return fmt.Errorf("embedding health check: %w", err)
		}
	}
	return nil
}
