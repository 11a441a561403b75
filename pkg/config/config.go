// Package config loads service configuration from environment variables.
//
// All settings come from the environment (optionally seeded by a .env file
// loaded in main). Load returns an immutable snapshot; nothing re-reads the
// environment after startup.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Provider names accepted by AI_PROVIDER / EMBEDDING_PROVIDER.
const (
	ProviderOpenAI   = "openai"
	ProviderDeepSeek = "deepseek"
	ProviderGroq     = "groq"
)

// Config is the full service configuration.
type Config struct {
	// DatabaseURL is the Postgres DSN. Required.
	DatabaseURL string

	// HTTPPort is the listen port for the API server.
	HTTPPort string

	// Environment is "dev" or "production". In production, Firebase
	// credentials and the Stripe webhook secret are required.
	Environment string

	AI        AIConfig
	Firebase  FirebaseConfig
	Stripe    StripeConfig
	Storage   StorageConfig
	Queue     QueueConfig
	Retention RetentionConfig
}

// AIConfig selects providers and carries their API keys.
type AIConfig struct {
	// Provider handles chat completions (summaries, titles).
	// "openai" or "deepseek"; defaults to "deepseek".
	Provider string

	// EmbeddingProvider handles embeddings. DeepSeek has no embeddings
	// API; the router substitutes OpenAI when it is selected.
	EmbeddingProvider string

	// EnableEmbeddings gates chunking + embedding generation entirely.
	EnableEmbeddings bool

	OpenAIAPIKey   string
	DeepSeekAPIKey string
	GroqAPIKey     string

	// EmbeddingModel must produce 1536-dimensional vectors to match the
	// embeddings table column.
	EmbeddingModel string
}

// FirebaseConfig carries identity-platform settings.
type FirebaseConfig struct {
	ProjectID string
	// CredentialsJSON is either a path to a service-account JSON file or
	// the JSON document itself.
	CredentialsJSON string
}

// StripeConfig carries payment settings.
type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
}

// StorageConfig carries S3-compatible object storage settings (Cloudflare R2).
type StorageConfig struct {
	Endpoint        string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	Region          string

	// UploadTTL bounds presigned PUT URLs handed to clients; kept short
	// since the client uploads immediately after presigning.
	UploadTTL time.Duration

	// DownloadTTL bounds presigned GET URLs. Vision providers fetch these
	// at their own pace, so it is longer than the upload window.
	DownloadTTL time.Duration
}

// RetentionConfig controls the background sweeper.
type RetentionConfig struct {
	// PendingMediaTTL is how long a media row may stay "pending" before
	// it is deleted as abandoned.
	PendingMediaTTL time.Duration

	// PendingPaymentTTL is how long a payment may stay "pending" before
	// it is marked failed.
	PendingPaymentTTL time.Duration

	SweepInterval time.Duration
}

// Load reads configuration from the environment and validates it.
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL: os.Getenv("DATABASE_URL"),
		HTTPPort:    getEnv("HTTP_PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "dev"),
		AI: AIConfig{
			Provider:          getEnv("AI_PROVIDER", ProviderDeepSeek),
			EmbeddingProvider: getEnv("EMBEDDING_PROVIDER", ProviderOpenAI),
			EnableEmbeddings:  getEnvBool("ENABLE_EMBEDDINGS", false),
			OpenAIAPIKey:      os.Getenv("OPENAI_API_KEY"),
			DeepSeekAPIKey:    os.Getenv("DEEPSEEK_API_KEY"),
			GroqAPIKey:        os.Getenv("GROQ_API_KEY"),
			EmbeddingModel:    getEnv("OPENAI_EMBEDDING_MODEL", "text-embedding-3-small"),
		},
		Firebase: FirebaseConfig{
			ProjectID:       os.Getenv("FIREBASE_PROJECT_ID"),
			CredentialsJSON: os.Getenv("FIREBASE_CREDENTIALS_JSON"),
		},
		Stripe: StripeConfig{
			SecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
			WebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
		},
		Storage: StorageConfig{
			Endpoint:        os.Getenv("R2_ENDPOINT"),
			Bucket:          getEnv("R2_BUCKET", "memora-media"),
			AccessKeyID:     os.Getenv("R2_ACCESS_KEY"),
			SecretAccessKey: os.Getenv("R2_SECRET_KEY"),
			Region:          getEnv("R2_REGION", "auto"),
			UploadTTL:       getEnvDuration("R2_PRESIGN_EXPIRATION", 600*time.Second),
			DownloadTTL:     getEnvDuration("R2_DOWNLOAD_EXPIRATION", time.Hour),
		},
		Queue:     loadQueueConfig(),
		Retention: loadRetentionConfig(),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	switch c.AI.Provider {
	case ProviderOpenAI, ProviderDeepSeek:
	default:
		return fmt.Errorf("AI_PROVIDER must be %q or %q, got %q",
			ProviderOpenAI, ProviderDeepSeek, c.AI.Provider)
	}

	if c.AI.EnableEmbeddings && c.AI.OpenAIAPIKey == "" {
		return fmt.Errorf("ENABLE_EMBEDDINGS requires OPENAI_API_KEY (only OpenAI serves embeddings)")
	}

	if c.IsProduction() {
		if c.Firebase.ProjectID == "" || c.Firebase.CredentialsJSON == "" {
			return fmt.Errorf("FIREBASE_PROJECT_ID and FIREBASE_CREDENTIALS_JSON are required in production")
		}
		if c.Stripe.SecretKey != "" && c.Stripe.WebhookSecret == "" {
			return fmt.Errorf("STRIPE_WEBHOOK_SECRET is required in production when Stripe is enabled")
		}
	}

	return nil
}

// IsProduction reports whether the service runs with production guarantees.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// StorageConfigured reports whether object storage can issue presigned URLs.
func (s StorageConfig) Configured() bool {
	return s.Endpoint != "" && s.AccessKeyID != "" && s.SecretAccessKey != ""
}

// StripeConfigured reports whether payments are enabled.
func (s StripeConfig) Configured() bool {
	return s.SecretKey != ""
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultValue
	}
	return b
}

func getEnvInt(key string, defaultValue int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return defaultValue
	}
	return n
}

// getEnvDuration parses either a Go duration ("10m") or a bare number of
// seconds ("600"), matching common deployment configs.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		return d
	}
	return defaultValue
}
