package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Env  string
	Port string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	Embedder  EmbedderConfig
	Generator GeneratorConfig
	Vision    VisionConfig
	Search    SearchConfig
	RateLimit RateLimitConfig
	Cache     CacheConfig
}

type EmbedderConfig struct {
	URL            string
	Model          string
	TimeoutSeconds int
	Dimension      int
}

type GeneratorConfig struct {
	URL            string
	Model          string
	TimeoutSeconds int
	MaxTokens      int
}

type VisionConfig struct {
	URL            string
	Model          string
	TimeoutSeconds int
}

type SearchConfig struct {
	TopK              int
	TopN              int
	Alpha             float64
	RecencyWindowDays int
	PromptVersion     string
}

type RateLimitConfig struct {
	MaxRequests   int
	WindowMinutes int
}

type CacheConfig struct {
	Size       int
	TTLMinutes int
}

func Load() *Config {
	return &Config{
		Env:        getEnv("ENV", "development"),
		Port:       getEnv("PORT", "9020"),
		DBHost:     getEnv("DB_HOST", "asset-db"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "asset_user"),
		DBPassword: getSecret("DB_PASSWORD", "DB_PASSWORD_FILE", "asset_password"),
		DBName:     getEnv("DB_NAME", "asset_db"),
		Embedder: EmbedderConfig{
			URL:            getEnv("EMBEDDER_URL", "http://ollama:11434"),
			Model:          getEnv("EMBEDDING_MODEL", "embeddinggemma"),
			TimeoutSeconds: getEnvInt("EMBEDDER_TIMEOUT_SECONDS", 30),
			Dimension:      getEnvInt("EMBEDDING_DIMENSION", 768),
		},
		Generator: GeneratorConfig{
			URL:            getEnv("GENERATOR_URL", "http://ollama:11434"),
			Model:          getEnv("GENERATOR_MODEL", "gemma3:4b"),
			TimeoutSeconds: getEnvInt("GENERATOR_TIMEOUT_SECONDS", 120),
			MaxTokens:      getEnvInt("GENERATOR_MAX_TOKENS", 768),
		},
		Vision: VisionConfig{
			URL:            getEnv("VISION_URL", "http://ollama:11434"),
			Model:          getEnv("VISION_MODEL", "llava:13b"),
			TimeoutSeconds: getEnvInt("VISION_TIMEOUT_SECONDS", 180),
		},
		Search: SearchConfig{
			TopK:              getEnvInt("SEARCH_TOP_K", 30),
			TopN:              getEnvInt("SEARCH_TOP_N", 10),
			Alpha:             getEnvFloat("SEARCH_ALPHA", 0.8),
			RecencyWindowDays: getEnvInt("SEARCH_RECENCY_WINDOW_DAYS", 3*365),
			PromptVersion:     getEnv("SEARCH_PROMPT_VERSION", "asset-v1"),
		},
		RateLimit: RateLimitConfig{
			MaxRequests:   getEnvInt("RATE_LIMIT_MAX_REQUESTS", 20),
			WindowMinutes: getEnvInt("RATE_LIMIT_WINDOW_MINUTES", 60),
		},
		Cache: CacheConfig{
			Size:       getEnvInt("RESULT_CACHE_SIZE", 256),
			TTLMinutes: getEnvInt("RESULT_CACHE_TTL_MINUTES", 10),
		},
	}
}

// Validate rejects configurations that would misbehave silently at runtime.
func (c *Config) Validate() error {
	if c.Search.TopK <= 0 {
		return fmt.Errorf("SEARCH_TOP_K must be positive (got %d)", c.Search.TopK)
	}
	if c.Search.TopN <= 0 || c.Search.TopN > c.Search.TopK {
		return fmt.Errorf("SEARCH_TOP_N must be in [1, %d] (got %d)", c.Search.TopK, c.Search.TopN)
	}
	if c.Search.Alpha < 0 || c.Search.Alpha > 1 {
		return fmt.Errorf("SEARCH_ALPHA must be in [0,1] (got %f)", c.Search.Alpha)
	}
	if c.Search.RecencyWindowDays <= 0 {
		return fmt.Errorf("SEARCH_RECENCY_WINDOW_DAYS must be positive (got %d)", c.Search.RecencyWindowDays)
	}
	if c.RateLimit.MaxRequests <= 0 {
		return fmt.Errorf("RATE_LIMIT_MAX_REQUESTS must be positive (got %d)", c.RateLimit.MaxRequests)
	}
	if c.RateLimit.WindowMinutes <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW_MINUTES must be positive (got %d)", c.RateLimit.WindowMinutes)
	}
	if c.Embedder.Dimension <= 0 {
		return fmt.Errorf("EMBEDDING_DIMENSION must be positive (got %d)", c.Embedder.Dimension)
	}
	return nil
}

// DSN builds the PostgreSQL connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName)
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getSecret(envKey, fileEnvKey, fallback string) string {
	if value, ok := os.LookupEnv(envKey); ok {
		return value
	}
	if filePath, ok := os.LookupEnv(fileEnvKey); ok {
		content, err := os.ReadFile(filePath)
		if err == nil {
			return strings.TrimSpace(string(content))
		}
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return fallback
}
