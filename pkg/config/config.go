// Package config defines the service configuration: struct sections with
// defaults and validation, loaded from YAML with environment expansion and
// DOCVECTOR_-prefixed environment overrides.
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration for the service.
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Qdrant    QdrantConfig    `yaml:"qdrant"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Crawler   CrawlerConfig   `yaml:"crawler"`
	Search    SearchConfig    `yaml:"search"`
	Ingestion IngestionConfig `yaml:"ingestion"`
	Logging   LoggingConfig   `yaml:"logging"`
}

func (c *Config) SetDefaults() {
	c.Database.SetDefaults()
	c.Redis.SetDefaults()
	c.Qdrant.SetDefaults()
	c.Embedding.SetDefaults()
	c.Chunking.SetDefaults()
	c.Crawler.SetDefaults()
	c.Search.SetDefaults()
	c.Ingestion.SetDefaults()
	c.Logging.SetDefaults()
}

func (c *Config) Validate() error {
	if err := c.Database.Validate(); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := c.Redis.Validate(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	if err := c.Qdrant.Validate(); err != nil {
		return fmt.Errorf("qdrant: %w", err)
	}
	if err := c.Embedding.Validate(); err != nil {
		return fmt.Errorf("embedding: %w", err)
	}
	if err := c.Chunking.Validate(); err != nil {
		return fmt.Errorf("chunking: %w", err)
	}
	if err := c.Crawler.Validate(); err != nil {
		return fmt.Errorf("crawler: %w", err)
	}
	if err := c.Search.Validate(); err != nil {
		return fmt.Errorf("search: %w", err)
	}
	if err := c.Ingestion.Validate(); err != nil {
		return fmt.Errorf("ingestion: %w", err)
	}
	return nil
}

// DatabaseConfig configures the relational store.
type DatabaseConfig struct {
	// Driver is "postgres" or "sqlite"
	Driver string `yaml:"driver"`
	// URL is the connection string (DSN for postgres, file path for sqlite)
	URL string `yaml:"url"`
	// PoolSize is the base number of pooled connections
	PoolSize int `yaml:"pool_size"`
	// MaxOverflow is the number of connections allowed beyond PoolSize
	MaxOverflow int `yaml:"max_overflow"`
	// PoolRecycle is how long a connection may live before being replaced
	PoolRecycle time.Duration `yaml:"pool_recycle"`
}

func (c *DatabaseConfig) SetDefaults() {
	if c.Driver == "" {
		c.Driver = "sqlite"
	}
	if c.URL == "" && c.Driver == "sqlite" {
		c.URL = "docvector.db"
	}
	if c.PoolSize == 0 {
		c.PoolSize = 5
	}
	if c.MaxOverflow == 0 {
		c.MaxOverflow = 10
	}
	if c.PoolRecycle == 0 {
		c.PoolRecycle = time.Hour
	}
}

func (c *DatabaseConfig) Validate() error {
	switch c.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported driver: %s (supported: postgres, sqlite)", c.Driver)
	}
	if c.URL == "" {
		return fmt.Errorf("url is required")
	}
	return nil
}

// RedisConfig configures the persistent embedding cache tier.
type RedisConfig struct {
	// URL is a redis connection URL, e.g. redis://localhost:6379/0.
	// Empty disables the persistent tier.
	URL string `yaml:"url"`
	// MaxConnections bounds the client connection pool
	MaxConnections int `yaml:"max_connections"`
}

func (c *RedisConfig) SetDefaults() {
	if c.MaxConnections == 0 {
		c.MaxConnections = 10
	}
}

func (c *RedisConfig) Validate() error {
	return nil
}

// QdrantConfig configures the vector index.
type QdrantConfig struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	APIKey     string `yaml:"api_key"`
	UseTLS     bool   `yaml:"use_tls"`
	Collection string `yaml:"collection"`
}

func (c *QdrantConfig) SetDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 6334
	}
	if c.Collection == "" {
		c.Collection = "docvector_chunks"
	}
}

func (c *QdrantConfig) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	return nil
}

// EmbeddingConfig configures the embedding service.
type EmbeddingConfig struct {
	// Provider is "local" or "openai"
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
	// Dimension of the output vectors; 0 selects the model default
	Dimension int `yaml:"dimension"`
	// BatchSize per model invocation; 0 selects the provider default
	// (32 local, 100 remote)
	BatchSize int `yaml:"batch_size"`
	// Host is the provider base URL (remote API or local inference server)
	Host   string `yaml:"host"`
	APIKey string `yaml:"api_key"`
	// Concurrency bounds parallel remote batch requests
	Concurrency int           `yaml:"concurrency"`
	Timeout     time.Duration `yaml:"timeout"`
	MaxRetries  int           `yaml:"max_retries"`
	// CacheSize is the in-memory cache capacity in entries
	CacheSize int `yaml:"cache_size"`
	// CacheTTL is the persistent cache entry lifetime
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

func (c *EmbeddingConfig) SetDefaults() {
	if c.Provider == "" {
		c.Provider = "local"
	}
	if c.Concurrency == 0 {
		c.Concurrency = 4
	}
	if c.Timeout == 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.CacheSize == 0 {
		c.CacheSize = 10000
	}
	if c.CacheTTL == 0 {
		c.CacheTTL = 7 * 24 * time.Hour
	}
}

func (c *EmbeddingConfig) Validate() error {
	switch c.Provider {
	case "local", "openai":
	default:
		return fmt.Errorf("unsupported provider: %s (supported: local, openai)", c.Provider)
	}
	if c.Concurrency < 1 || c.Concurrency > 4 {
		return fmt.Errorf("concurrency must be between 1 and 4, got %d", c.Concurrency)
	}
	return nil
}

// ChunkingConfig configures the default chunking strategy.
type ChunkingConfig struct {
	// Strategy is "fixed" or "semantic"
	Strategy string `yaml:"strategy"`
	Size     int    `yaml:"size"`
	Overlap  int    `yaml:"overlap"`
	// Separator is the preferred break character for the fixed strategy
	Separator string `yaml:"separator"`
}

func (c *ChunkingConfig) SetDefaults() {
	if c.Strategy == "" {
		c.Strategy = "semantic"
	}
	if c.Size == 0 {
		c.Size = 1000
	}
	if c.Overlap == 0 {
		c.Overlap = 200
	}
	if c.Separator == "" {
		c.Separator = "\n"
	}
}

func (c *ChunkingConfig) Validate() error {
	switch c.Strategy {
	case "fixed", "semantic":
	default:
		return fmt.Errorf("unsupported strategy: %s (supported: fixed, semantic)", c.Strategy)
	}
	if c.Size <= 0 {
		return fmt.Errorf("size must be positive, got %d", c.Size)
	}
	if c.Overlap < 0 || c.Overlap >= c.Size {
		return fmt.Errorf("overlap must be in [0, size), got %d", c.Overlap)
	}
	return nil
}

// CrawlerConfig configures the web crawler.
type CrawlerConfig struct {
	MaxDepth           int           `yaml:"max_depth"`
	MaxPages           int           `yaml:"max_pages"`
	ConcurrentRequests int           `yaml:"concurrent_requests"`
	RespectRobotsTxt   bool          `yaml:"respect_robots_txt"`
	UserAgent          string        `yaml:"user_agent"`
	Timeout            time.Duration `yaml:"timeout"`
}

func (c *CrawlerConfig) SetDefaults() {
	if c.MaxDepth == 0 {
		c.MaxDepth = 3
	}
	if c.MaxPages == 0 {
		c.MaxPages = 100
	}
	if c.ConcurrentRequests == 0 {
		c.ConcurrentRequests = 5
	}
	if c.UserAgent == "" {
		c.UserAgent = "docvector-bot/1.0"
	}
	if c.Timeout == 0 {
		c.Timeout = 30 * time.Second
	}
}

func (c *CrawlerConfig) Validate() error {
	if c.MaxDepth < 0 {
		return fmt.Errorf("max_depth must be non-negative, got %d", c.MaxDepth)
	}
	if c.MaxPages <= 0 {
		return fmt.Errorf("max_pages must be positive, got %d", c.MaxPages)
	}
	if c.ConcurrentRequests <= 0 {
		return fmt.Errorf("concurrent_requests must be positive, got %d", c.ConcurrentRequests)
	}
	return nil
}

// SearchConfig configures query-time behavior.
type SearchConfig struct {
	DefaultLimit  int     `yaml:"default_limit"`
	MaxLimit      int     `yaml:"max_limit"`
	VectorWeight  float64 `yaml:"vector_weight"`
	KeywordWeight float64 `yaml:"keyword_weight"`
	MinScore      float64 `yaml:"min_score"`
}

func (c *SearchConfig) SetDefaults() {
	if c.DefaultLimit == 0 {
		c.DefaultLimit = 10
	}
	if c.MaxLimit == 0 {
		c.MaxLimit = 50
	}
	if c.VectorWeight == 0 {
		c.VectorWeight = 0.7
	}
	if c.KeywordWeight == 0 {
		c.KeywordWeight = 0.3
	}
}

func (c *SearchConfig) Validate() error {
	if c.DefaultLimit <= 0 || c.DefaultLimit > c.MaxLimit {
		return fmt.Errorf("default_limit must be in (0, max_limit], got %d", c.DefaultLimit)
	}
	if c.MinScore < 0 || c.MinScore > 1 {
		return fmt.Errorf("min_score must be in [0, 1], got %f", c.MinScore)
	}
	return nil
}

// IngestionConfig configures the ingestion orchestrator and job worker.
type IngestionConfig struct {
	// FanOut is the number of documents processed concurrently per job
	FanOut int `yaml:"fan_out"`
	// EmbedBatchSize is the number of chunks sent to the embedder per batch
	EmbedBatchSize int `yaml:"embed_batch_size"`
	// PollInterval is how often the worker looks for pending jobs
	PollInterval time.Duration `yaml:"poll_interval"`
	// StaleAfter is the age past which a "processing" document is requeued
	// by the reconciliation sweep
	StaleAfter time.Duration `yaml:"stale_after"`
}

func (c *IngestionConfig) SetDefaults() {
	if c.FanOut == 0 {
		c.FanOut = 4
	}
	if c.EmbedBatchSize == 0 {
		c.EmbedBatchSize = 64
	}
	if c.PollInterval == 0 {
		c.PollInterval = 5 * time.Second
	}
	if c.StaleAfter == 0 {
		c.StaleAfter = time.Hour
	}
}

func (c *IngestionConfig) Validate() error {
	if c.FanOut <= 0 {
		return fmt.Errorf("fan_out must be positive, got %d", c.FanOut)
	}
	if c.EmbedBatchSize <= 0 {
		return fmt.Errorf("embed_batch_size must be positive, got %d", c.EmbedBatchSize)
	}
	return nil
}

// LoggingConfig configures the slog logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func (c *LoggingConfig) SetDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Format == "" {
		c.Format = "simple"
	}
}
