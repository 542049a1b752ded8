package main

import (
	"context"
	"crypto/tls"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	openai "github.com/sashabaranov/go-openai"

	"github.com/autoventas/sales-ai-platform/cmd/mainconfig"
	"github.com/autoventas/sales-ai-platform/internal/api/router"
	"github.com/autoventas/sales-ai-platform/internal/catalog"
	appconfig "github.com/autoventas/sales-ai-platform/internal/config"
	"github.com/autoventas/sales-ai-platform/internal/conversation"
	"github.com/autoventas/sales-ai-platform/internal/http/handlers"
	"github.com/autoventas/sales-ai-platform/internal/idempotency"
	"github.com/autoventas/sales-ai-platform/internal/knowledge"
	"github.com/autoventas/sales-ai-platform/internal/leads"
	"github.com/autoventas/sales-ai-platform/internal/llm"
	"github.com/autoventas/sales-ai-platform/internal/observability/metrics"
	"github.com/autoventas/sales-ai-platform/internal/statestore"
	"github.com/autoventas/sales-ai-platform/internal/turn"
	"github.com/autoventas/sales-ai-platform/pkg/logging"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting sales-ai-platform API server",
		"env", cfg.Env,
		"port", cfg.Port,
		"state_backend", cfg.StateBackend,
	)

	ctx := context.Background()

	matcher, err := catalog.NewMatcher(cfg.CatalogPath)
	if err != nil {
		logger.Error("failed to load vehicle catalog", "error", err, "path", cfg.CatalogPath)
		os.Exit(1)
	}

	grounder := buildGrounder(ctx, cfg, logger)

	machine := conversation.NewMachine(matcher, grounder, nil, cfg.ClarifyMaxAttempts, logger)

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		opts := &redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}
		if cfg.RedisTLS {
			opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		redisClient = redis.NewClient(opts)
	}

	store, leadsRepo := buildStorage(ctx, cfg, redisClient, logger)

	var guard idempotency.Guard
	if cfg.IdempotencyEnabled && redisClient != nil {
		guard = idempotency.NewRedisGuard(redisClient, cfg.IdempotencyTTL, cfg.IdempotencyWait, logger)
	}

	turnMetrics := metrics.NewTurnMetrics(prometheus.DefaultRegisterer)
	orchestrator := turn.NewOrchestrator(store, machine, leadsRepo, guard, turnMetrics, logger)

	routerCfg := &router.Config{
		Logger:           logger,
		ChatHandler:      handlers.NewChatHandler(orchestrator, logger),
		WebhookHandler:   handlers.NewWebhookHandler(orchestrator, cfg.TwilioAuthToken, cfg.PublicBaseURL, cfg.TwilioValidateSignature, logger),
		MetricsHandler:   promhttp.Handler(),
		WebhookRateLimit: 20,
		WebhookBurst:     40,
	}
	r := router.New(routerCfg)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

// buildGrounder loads the knowledge base and, when configured, the language
// model used to phrase grounded answers. A missing knowledge base disables
// grounding rather than blocking startup.
func buildGrounder(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) *knowledge.Grounder {
	repo, err := knowledge.NewRepository(cfg.KnowledgeBasePath, logger)
	if err != nil {
		logger.Warn("knowledge base unavailable, FAQ grounding disabled", "error", err, "path", cfg.KnowledgeBasePath)
		return nil
	}

	var client llm.Client
	switch cfg.LLMProvider {
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			logger.Warn("LLM_PROVIDER=openai but OPENAI_API_KEY is empty, using extractive answers")
			break
		}
		client = llm.NewOpenAIClient(openai.NewClient(cfg.OpenAIAPIKey), cfg.OpenAIModel)
	case "bedrock":
		awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			logger.Error("failed to load AWS config for bedrock", "error", err)
			os.Exit(1)
		}
		client = llm.NewBedrockClient(bedrockruntime.NewFromConfig(awsCfg), cfg.BedrockModelID)
	case "none", "":
		// Extractive answers only.
	default:
		logger.Warn("unknown LLM provider, using extractive answers", "provider", cfg.LLMProvider)
	}

	return knowledge.NewGrounder(repo, client, cfg.GroundingMinScore, cfg.GroundingTopK, cfg.LLMTimeout, logger)
}

// buildStorage selects the durable state backend and the leads repository,
// wrapping the state store with the Redis cache when enabled.
func buildStorage(ctx context.Context, cfg *appconfig.Config, redisClient *redis.Client, logger *logging.Logger) (statestore.Store, leads.Repository) {
	var store statestore.Store
	var leadsRepo leads.Repository = leads.NewInMemoryRepository()

	switch cfg.StateBackend {
	case "postgres":
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		store = statestore.NewPostgresStore(pool, cfg.StateTTL, logger)
		if cfg.LeadsBackend == "postgres" {
			leadsRepo = leads.NewPostgresRepository(pool)
		}
	case "dynamodb":
		awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			logger.Error("failed to load AWS config", "error", err)
			os.Exit(1)
		}
		store = statestore.NewDynamoStore(dynamodb.NewFromConfig(awsCfg), cfg.StateTable, cfg.StateTTL, logger)
	case "memory":
		store = statestore.NewMemoryStore(cfg.StateTTL)
	default:
		logger.Error("unknown state backend", "backend", cfg.StateBackend)
		os.Exit(1)
	}

	if cfg.CacheEnabled && redisClient != nil {
		cache := statestore.NewRedisCache(redisClient, cfg.CacheTTL, logger)
		store = statestore.NewCachedStore(store, cache, cfg.StateTTL)
	}

	return store, leadsRepo
}
