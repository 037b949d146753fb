package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Auth     AuthConfig
	LLM      LLMConfig
	Search   SearchConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type DatabaseConfig struct {
	URL                  string
	MaxConns             int
	MinConns             int
	AcquireTimeout       time.Duration
	ReadStatementTimeout time.Duration
	MigrationsPath       string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type AuthConfig struct {
	JWTSecret string
}

type LLMConfig struct {
	OpenAIKey        string
	AnthropicKey     string
	OllamaURL        string
	DefaultProvider  string
	ChatModel        string
	EmbeddingModel   string
	FallbackProvider string
	MaxRetries       int
}

type SearchConfig struct {
	// MinSimilarity drops semantic candidates scoring below it. Zero keeps
	// everything.
	MinSimilarity     float64
	RefinerModel      string
	EmbeddingCacheTTL time.Duration
}

func Load() (*Config, error) {
	port, err := getEnvInt("SERVER_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT: %w", err)
	}

	maxConns, err := getEnvInt("DB_MAX_CONNS", 10)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_CONNS: %w", err)
	}

	minConns, err := getEnvInt("DB_MIN_CONNS", 2)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MIN_CONNS: %w", err)
	}

	acquireTimeout, err := getEnvDuration("DB_ACQUIRE_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_ACQUIRE_TIMEOUT: %w", err)
	}

	readTimeout, err := getEnvDuration("DB_READ_STATEMENT_TIMEOUT", time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_READ_STATEMENT_TIMEOUT: %w", err)
	}

	redisDB, err := getEnvInt("REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	maxRetries, err := getEnvInt("LLM_MAX_RETRIES", 3)
	if err != nil {
		return nil, fmt.Errorf("invalid LLM_MAX_RETRIES: %w", err)
	}

	minSimilarity, err := getEnvFloat("SEARCH_MIN_SIMILARITY", 0)
	if err != nil {
		return nil, fmt.Errorf("invalid SEARCH_MIN_SIMILARITY: %w", err)
	}

	cacheTTL, err := getEnvDuration("EMBEDDING_CACHE_TTL", 24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("invalid EMBEDDING_CACHE_TTL: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: port,
		},
		Database: DatabaseConfig{
			URL:                  getEnv("DATABASE_URL", ""),
			MaxConns:             maxConns,
			MinConns:             minConns,
			AcquireTimeout:       acquireTimeout,
			ReadStatementTimeout: readTimeout,
			MigrationsPath:       getEnv("MIGRATIONS_PATH", "migrations"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
		},
		LLM: LLMConfig{
			OpenAIKey:        getEnv("OPENAI_API_KEY", ""),
			AnthropicKey:     getEnv("ANTHROPIC_API_KEY", ""),
			OllamaURL:        getEnv("OLLAMA_URL", ""),
			DefaultProvider:  getEnv("LLM_DEFAULT_PROVIDER", "openai"),
			ChatModel:        getEnv("LLM_CHAT_MODEL", "gpt-4o-mini"),
			EmbeddingModel:   getEnv("LLM_EMBEDDING_MODEL", "text-embedding-3-small"),
			FallbackProvider: getEnv("LLM_FALLBACK_PROVIDER", ""),
			MaxRetries:       maxRetries,
		},
		Search: SearchConfig{
			MinSimilarity:     minSimilarity,
			RefinerModel:      getEnv("SEARCH_REFINER_MODEL", "gpt-4o-mini"),
			EmbeddingCacheTTL: cacheTTL,
		},
	}

	return cfg, nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func (c *Config) Validate() error {
	var missing []string
	if c.Database.URL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if c.Auth.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required env vars: %s", strings.Join(missing, ", "))
	}
	if c.Database.MinConns > c.Database.MaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) exceeds DB_MAX_CONNS (%d)", c.Database.MinConns, c.Database.MaxConns)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.ParseFloat(v, 64)
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return time.ParseDuration(v)
}
