package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	PublicBaseURL string
	LogLevel      string

	// Durable state backend: "postgres", "dynamodb", or "memory".
	StateBackend    string
	DatabaseURL     string
	StateTable      string
	LeadsBackend    string
	StateTTL        time.Duration
	CacheEnabled    bool
	CacheTTL        time.Duration
	RedisAddr       string
	RedisPassword   string
	RedisTLS        bool
	AWSRegion       string
	AWSEndpoint     string

	// Twilio webhook channel.
	TwilioAuthToken         string
	TwilioValidateSignature bool

	// Idempotency guard for webhook deliveries.
	IdempotencyEnabled bool
	IdempotencyTTL     time.Duration
	IdempotencyWait    time.Duration

	// Retrieval grounding.
	KnowledgeBasePath string
	GroundingMinScore float64
	GroundingTopK     int

	// Catalog.
	CatalogPath string

	// Conversation flow.
	ClarifyMaxAttempts int

	// Language generation: "openai", "bedrock", or "none".
	LLMProvider    string
	OpenAIAPIKey   string
	OpenAIModel    string
	BedrockModelID string
	LLMTimeout     time.Duration
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", ""),
		LogLevel:      getEnv("LOG_LEVEL", "info"),

		StateBackend:  strings.ToLower(strings.TrimSpace(getEnv("STATE_BACKEND", "memory"))),
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		StateTable:    getEnv("STATE_TABLE", "conversation_states"),
		LeadsBackend:  strings.ToLower(strings.TrimSpace(getEnv("LEADS_BACKEND", "memory"))),
		StateTTL:      getEnvAsDuration("STATE_TTL", 24*time.Hour),
		CacheEnabled:  getEnvAsBool("CACHE_ENABLED", false),
		CacheTTL:      getEnvAsDuration("CACHE_TTL", 30*time.Minute),
		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),
		AWSRegion:     getEnv("AWS_REGION", "us-east-1"),
		AWSEndpoint:   getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		TwilioAuthToken:         getEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioValidateSignature: getEnvAsBool("TWILIO_VALIDATE_SIGNATURE", false),

		IdempotencyEnabled: getEnvAsBool("IDEMPOTENCY_ENABLED", true),
		IdempotencyTTL:     getEnvAsDuration("IDEMPOTENCY_TTL", 24*time.Hour),
		IdempotencyWait:    getEnvAsDuration("IDEMPOTENCY_WAIT", 10*time.Second),

		KnowledgeBasePath: getEnv("KNOWLEDGE_BASE_PATH", "data/knowledge_base.md"),
		GroundingMinScore: getEnvAsFloat("GROUNDING_MIN_SCORE", 0.1),
		GroundingTopK:     getEnvAsInt("GROUNDING_TOP_K", 5),

		CatalogPath: getEnv("CATALOG_PATH", "data/catalog.csv"),

		ClarifyMaxAttempts: getEnvAsInt("CLARIFY_MAX_ATTEMPTS", 3),

		LLMProvider:    strings.ToLower(strings.TrimSpace(getEnv("LLM_PROVIDER", "none"))),
		OpenAIAPIKey:   getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:    getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		BedrockModelID: getEnv("BEDROCK_MODEL_ID", "anthropic.claude-3-haiku-20240307-v1:0"),
		LLMTimeout:     getEnvAsDuration("LLM_TIMEOUT", 8*time.Second),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
