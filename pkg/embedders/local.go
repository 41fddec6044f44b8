package embedders

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/docvector/docvector/pkg/config"
	"github.com/docvector/docvector/pkg/httpclient"
)

// Local inference runners crash under concurrent embedding requests, so
// all requests through LocalEmbedder are serialized.
var localEmbedMu sync.Mutex

// LocalEmbedder implements EmbedderProvider against a local inference
// server speaking the Ollama embeddings API.
type LocalEmbedder struct {
	baseURL   string
	model     string
	dimension int
	batchSize int
	client    *httpclient.Client
}

type localEmbedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type localEmbedResponse struct {
	Embedding []float32 `json:"embedding"`
}

func NewLocalEmbedder(cfg *config.EmbeddingConfig) (*LocalEmbedder, error) {
	baseURL := cfg.Host
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}

	model := cfg.Model
	if model == "" {
		model = "nomic-embed-text"
	}

	dimension := cfg.Dimension
	if dimension == 0 {
		dimension = 768
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 32
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}

	return &LocalEmbedder{
		baseURL:   baseURL,
		model:     model,
		dimension: dimension,
		batchSize: batchSize,
		client: httpclient.New(
			httpclient.WithHTTPClient(&http.Client{Timeout: timeout}),
			httpclient.WithMaxRetries(maxRetries),
			httpclient.WithBaseDelay(2*time.Second),
		),
	}, nil
}

func (e *LocalEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	localEmbedMu.Lock()
	defer localEmbedMu.Unlock()
	return e.embedOne(ctx, text)
}

func (e *LocalEmbedder) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	return e.Embed(ctx, query)
}

// EmbedBatch embeds texts sequentially. The batch size only bounds how
// much work is committed between cancellation checks.
func (e *LocalEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	localEmbedMu.Lock()
	defer localEmbedMu.Unlock()

	results := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.batchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := start + e.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		for _, text := range texts[start:end] {
			vec, err := e.embedOne(ctx, text)
			if err != nil {
				return nil, err
			}
			results = append(results, vec)
		}
	}
	return results, nil
}

func (e *LocalEmbedder) embedOne(ctx context.Context, text string) ([]float32, error) {
	slog.Debug("local embedding request", "model", e.model, "text_length", len(text))

	payload, err := json.Marshal(localEmbedRequest{Model: e.model, Prompt: text})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", e.baseURL+"/api/embeddings", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request to local embedder: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("local embedder returned status %d: %s", resp.StatusCode, string(body))
	}

	var response localEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(response.Embedding) == 0 {
		return nil, fmt.Errorf("received empty embedding from local embedder")
	}

	normalize(response.Embedding)
	return response.Embedding, nil
}

// normalize scales a vector to unit L2 length in place, so cosine
// similarity reduces to a dot product.
func normalize(vec []float32) {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return
	}
	norm := float32(math.Sqrt(sum))
	for i := range vec {
		vec[i] /= norm
	}
}

func (e *LocalEmbedder) GetDimension() int {
	return e.dimension
}

func (e *LocalEmbedder) GetModelName() string {
	return e.model
}

func (e *LocalEmbedder) Close() error {
	return nil
}
