package embedders

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/redis/go-redis/v9"
)

const defaultCacheTTL = 7 * 24 * time.Hour

// CachedEmbedder wraps a provider with a two-tier cache: an in-memory
// LRU in front of an optional redis tier. Cache failures are logged and
// swallowed; the provider is always the fallback.
type CachedEmbedder struct {
	provider EmbedderProvider
	memory   *lru.Cache[string, []float32]
	redis    *redis.Client
	ttl      time.Duration

	keyPrefix string
}

// NewCachedEmbedder builds the cache wrapper. rdb may be nil to run
// with the memory tier only.
func NewCachedEmbedder(provider EmbedderProvider, size int, rdb *redis.Client, ttl time.Duration) (*CachedEmbedder, error) {
	if size <= 0 {
		size = 10000
	}
	memory, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, err
	}
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &CachedEmbedder{
		provider:  provider,
		memory:    memory,
		redis:     rdb,
		ttl:       ttl,
		keyPrefix: "docvector:emb:",
	}, nil
}

// cacheKey is stable across restarts: same model + same text hits the
// same redis entry.
func (c *CachedEmbedder) cacheKey(text string) string {
	h := sha256.New()
	h.Write([]byte(c.provider.GetModelName()))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return c.keyPrefix + hex.EncodeToString(h.Sum(nil))
}

func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := c.cacheKey(text)
	if vec, ok := c.memory.Get(key); ok {
		return vec, nil
	}
	if vec := c.redisGet(ctx, key); vec != nil {
		c.memory.Add(key, vec)
		return vec, nil
	}

	vec, err := c.provider.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.memory.Add(key, vec)
	c.redisSet(ctx, map[string][]float32{key: vec})
	return vec, nil
}

func (c *CachedEmbedder) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	return c.Embed(ctx, query)
}

// EmbedBatch resolves what it can from both tiers, embeds only the
// misses, and writes fresh vectors back.
func (c *CachedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	results := make([][]float32, len(texts))
	keys := make([]string, len(texts))
	var missIdx []int

	for i, text := range texts {
		keys[i] = c.cacheKey(text)
		if vec, ok := c.memory.Get(keys[i]); ok {
			results[i] = vec
		} else {
			missIdx = append(missIdx, i)
		}
	}

	// Second tier: one MGet for every memory miss.
	if c.redis != nil && len(missIdx) > 0 {
		missKeys := make([]string, len(missIdx))
		for j, i := range missIdx {
			missKeys[j] = keys[i]
		}
		values, err := c.redis.MGet(ctx, missKeys...).Result()
		if err != nil {
			slog.Debug("embedding cache read failed", "error", err)
		} else {
			remaining := missIdx[:0]
			for j, i := range missIdx {
				if vec := decodeVector(values[j]); vec != nil {
					results[i] = vec
					c.memory.Add(keys[i], vec)
				} else {
					remaining = append(remaining, i)
				}
			}
			missIdx = remaining
		}
	}

	if len(missIdx) == 0 {
		return results, nil
	}

	missTexts := make([]string, len(missIdx))
	for j, i := range missIdx {
		missTexts[j] = texts[i]
	}
	fresh, err := c.provider.EmbedBatch(ctx, missTexts)
	if err != nil {
		return nil, err
	}

	writeBack := make(map[string][]float32, len(missIdx))
	for j, i := range missIdx {
		results[i] = fresh[j]
		c.memory.Add(keys[i], fresh[j])
		writeBack[keys[i]] = fresh[j]
	}
	c.redisSet(ctx, writeBack)

	return results, nil
}

func (c *CachedEmbedder) redisGet(ctx context.Context, key string) []float32 {
	if c.redis == nil {
		return nil
	}
	data, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			slog.Debug("embedding cache read failed", "error", err)
		}
		return nil
	}
	var vec []float32
	if err := json.Unmarshal(data, &vec); err != nil {
		return nil
	}
	return vec
}

func (c *CachedEmbedder) redisSet(ctx context.Context, entries map[string][]float32) {
	if c.redis == nil || len(entries) == 0 {
		return
	}
	pipe := c.redis.Pipeline()
	for key, vec := range entries {
		data, err := json.Marshal(vec)
		if err != nil {
			continue
		}
		pipe.Set(ctx, key, data, c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		slog.Debug("embedding cache write failed", "error", err)
	}
}

func decodeVector(value interface{}) []float32 {
	s, ok := value.(string)
	if !ok || s == "" {
		return nil
	}
	var vec []float32
	if err := json.Unmarshal([]byte(s), &vec); err != nil {
		return nil
	}
	return vec
}

func (c *CachedEmbedder) GetDimension() int {
	return c.provider.GetDimension()
}

func (c *CachedEmbedder) GetModelName() string {
	return c.provider.GetModelName()
}

func (c *CachedEmbedder) Close() error {
	return c.provider.Close()
}
