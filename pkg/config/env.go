package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

var envVarPatterns = struct {
	withDefault *regexp.Regexp
	braced      *regexp.Regexp
	simple      *regexp.Regexp
}{
	withDefault: regexp.MustCompile(`\$\{([A-Z_][A-Z0-9_]*):-(.*?)\}`),
	braced:      regexp.MustCompile(`\$\{([A-Z_][A-Z0-9_]*)\}`),
	simple:      regexp.MustCompile(`\$([A-Z_][A-Z0-9_]*)`),
}

func expandEnvVars(s string) string {
	if !strings.Contains(s, "$") {
		return s
	}

	s = envVarPatterns.withDefault.ReplaceAllStringFunc(s, func(match string) string {
		parts := envVarPatterns.withDefault.FindStringSubmatch(match)
		if len(parts) == 3 {
			if val := os.Getenv(parts[1]); val != "" {
				return val
			}
			return parts[2]
		}
		return match
	})

	s = envVarPatterns.braced.ReplaceAllStringFunc(s, func(match string) string {
		parts := envVarPatterns.braced.FindStringSubmatch(match)
		if len(parts) == 2 {
			return os.Getenv(parts[1])
		}
		return match
	})

	s = envVarPatterns.simple.ReplaceAllStringFunc(s, func(match string) string {
		parts := envVarPatterns.simple.FindStringSubmatch(match)
		if len(parts) == 2 {
			return os.Getenv(parts[1])
		}
		return match
	})

	return s
}

// LoadEnvFiles loads .env.local and .env if present.
func LoadEnvFiles() error {
	envFiles := []string{".env.local", ".env"}

	for _, file := range envFiles {
		if err := godotenv.Load(file); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to load %s: %w", file, err)
		}
	}

	return nil
}

// envPrefix is prepended to every environment override key.
const envPrefix = "DOCVECTOR_"

func envString(key string, dst *string) {
	if val := os.Getenv(envPrefix + key); val != "" {
		*dst = val
	}
}

func envInt(key string, dst *int) error {
	val := os.Getenv(envPrefix + key)
	if val == "" {
		return nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return fmt.Errorf("%s%s: %w", envPrefix, key, err)
	}
	*dst = n
	return nil
}

func envFloat(key string, dst *float64) error {
	val := os.Getenv(envPrefix + key)
	if val == "" {
		return nil
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return fmt.Errorf("%s%s: %w", envPrefix, key, err)
	}
	*dst = f
	return nil
}

func envBool(key string, dst *bool) error {
	val := os.Getenv(envPrefix + key)
	if val == "" {
		return nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return fmt.Errorf("%s%s: %w", envPrefix, key, err)
	}
	*dst = b
	return nil
}

func envDuration(key string, dst *time.Duration) error {
	val := os.Getenv(envPrefix + key)
	if val == "" {
		return nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return fmt.Errorf("%s%s: %w", envPrefix, key, err)
	}
	*dst = d
	return nil
}

// ApplyEnv overrides config fields from DOCVECTOR_-prefixed environment
// variables. Unset variables leave the corresponding field untouched.
func (c *Config) ApplyEnv() error {
	envString("DATABASE_DRIVER", &c.Database.Driver)
	envString("DATABASE_URL", &c.Database.URL)
	if err := envInt("DB_POOL_SIZE", &c.Database.PoolSize); err != nil {
		return err
	}
	if err := envInt("DB_MAX_OVERFLOW", &c.Database.MaxOverflow); err != nil {
		return err
	}
	if err := envDuration("DB_POOL_RECYCLE", &c.Database.PoolRecycle); err != nil {
		return err
	}

	envString("REDIS_URL", &c.Redis.URL)
	if err := envInt("REDIS_MAX_CONNECTIONS", &c.Redis.MaxConnections); err != nil {
		return err
	}

	envString("QDRANT_HOST", &c.Qdrant.Host)
	if err := envInt("QDRANT_PORT", &c.Qdrant.Port); err != nil {
		return err
	}
	envString("QDRANT_API_KEY", &c.Qdrant.APIKey)
	envString("QDRANT_COLLECTION", &c.Qdrant.Collection)
	if err := envBool("QDRANT_USE_TLS", &c.Qdrant.UseTLS); err != nil {
		return err
	}

	envString("EMBEDDING_PROVIDER", &c.Embedding.Provider)
	envString("EMBEDDING_MODEL", &c.Embedding.Model)
	envString("EMBEDDING_HOST", &c.Embedding.Host)
	envString("EMBEDDING_API_KEY", &c.Embedding.APIKey)
	if err := envInt("EMBEDDING_DIMENSION", &c.Embedding.Dimension); err != nil {
		return err
	}
	if err := envInt("EMBEDDING_BATCH_SIZE", &c.Embedding.BatchSize); err != nil {
		return err
	}

	envString("CHUNKING_STRATEGY", &c.Chunking.Strategy)
	if err := envInt("CHUNK_SIZE", &c.Chunking.Size); err != nil {
		return err
	}
	if err := envInt("CHUNK_OVERLAP", &c.Chunking.Overlap); err != nil {
		return err
	}

	if err := envInt("CRAWLER_MAX_DEPTH", &c.Crawler.MaxDepth); err != nil {
		return err
	}
	if err := envInt("CRAWLER_MAX_PAGES", &c.Crawler.MaxPages); err != nil {
		return err
	}
	if err := envInt("CRAWLER_CONCURRENT_REQUESTS", &c.Crawler.ConcurrentRequests); err != nil {
		return err
	}
	if err := envBool("CRAWLER_RESPECT_ROBOTS_TXT", &c.Crawler.RespectRobotsTxt); err != nil {
		return err
	}
	envString("CRAWLER_USER_AGENT", &c.Crawler.UserAgent)

	if err := envInt("SEARCH_DEFAULT_LIMIT", &c.Search.DefaultLimit); err != nil {
		return err
	}
	if err := envInt("SEARCH_MAX_LIMIT", &c.Search.MaxLimit); err != nil {
		return err
	}
	if err := envFloat("SEARCH_VECTOR_WEIGHT", &c.Search.VectorWeight); err != nil {
		return err
	}
	if err := envFloat("SEARCH_KEYWORD_WEIGHT", &c.Search.KeywordWeight); err != nil {
		return err
	}
	if err := envFloat("SEARCH_MIN_SCORE", &c.Search.MinScore); err != nil {
		return err
	}

	envString("LOG_LEVEL", &c.Logging.Level)
	envString("LOG_FORMAT", &c.Logging.Format)

	// Conventional fallback for the remote provider key.
	if c.Embedding.APIKey == "" && c.Embedding.Provider == "openai" {
		c.Embedding.APIKey = os.Getenv("OPENAI_API_KEY")
	}

	return nil
}
