package embedders

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docvector/docvector/pkg/config"
)

func fakeLocalServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/embeddings", r.URL.Path)
		var req localEmbedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		json.NewEncoder(w).Encode(localEmbedResponse{
			Embedding: []float32{3, 4, 0},
		})
	}))
}

func TestLocalEmbedNormalizes(t *testing.T) {
	srv := fakeLocalServer(t)
	defer srv.Close()

	e, err := NewLocalEmbedder(&config.EmbeddingConfig{Host: srv.URL, Dimension: 3})
	require.NoError(t, err)

	vec, err := e.Embed(context.Background(), "hello")
	require.NoError(t, err)
	require.Len(t, vec, 3)

	// {3,4,0} has L2 norm 5.
	assert.InDelta(t, 0.6, vec[0], 1e-6)
	assert.InDelta(t, 0.8, vec[1], 1e-6)

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-6)
}

func TestLocalEmbedBatchOrderAndCount(t *testing.T) {
	srv := fakeLocalServer(t)
	defer srv.Close()

	e, err := NewLocalEmbedder(&config.EmbeddingConfig{Host: srv.URL, BatchSize: 2})
	require.NoError(t, err)

	vecs, err := e.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Len(t, vecs, 3)
}

func TestLocalEmbedServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusNotFound)
	}))
	defer srv.Close()

	e, err := NewLocalEmbedder(&config.EmbeddingConfig{Host: srv.URL, MaxRetries: 1})
	require.NoError(t, err)

	_, err = e.Embed(context.Background(), "x")
	assert.Error(t, err)
}

func TestRegistrySelectsProvider(t *testing.T) {
	p, err := NewEmbedder(&config.EmbeddingConfig{Provider: "local"})
	require.NoError(t, err)
	assert.IsType(t, &LocalEmbedder{}, p)

	p, err = NewEmbedder(&config.EmbeddingConfig{Provider: "openai", APIKey: "k"})
	require.NoError(t, err)
	assert.IsType(t, &OpenAIEmbedder{}, p)

	_, err = NewEmbedder(&config.EmbeddingConfig{Provider: "cohere"})
	assert.Error(t, err)
}
