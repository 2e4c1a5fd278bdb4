package ai

import (
	"context"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNewEmbeddingService tests service creation.
func TestNewEmbeddingService(t *testing.T) {
	tests := []struct {
		name        string
		cfg         *EmbeddingConfig
		expectError bool
	}{
		{
			name:        "Local config",
			cfg:         &EmbeddingConfig{Provider: "local", Dimensions: 64},
			expectError: false,
		},
		{
			name:        "SiliconFlow config",
			cfg:         &EmbeddingConfig{Provider: "siliconflow", Model: "BAAI/bge-m3", Dimensions: 1024, APIKey: "test-key"},
			expectError: false,
		},
		{
			name:        "Ollama config",
			cfg:         &EmbeddingConfig{Provider: "ollama", Model: "nomic-embed-text", Dimensions: 768},
			expectError: false,
		},
		{
			name:        "Unsupported provider",
			cfg:         &EmbeddingConfig{Provider: "unsupported"},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewEmbeddingService(tt.cfg)
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestEmbeddingService_EmbedBatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","data":[{"object":"embedding","index":0,"embedding":[0.1,0.2]},{"object":"embedding","index":1,"embedding":[0.3,0.4]}],"model":"m"}`))
	}))
	defer srv.Close()

	svc, err := NewEmbeddingService(&EmbeddingConfig{Provider: ProviderOpenAI, Model: "m", Dimensions: 2, APIKey: "k", BaseURL: srv.URL})
	require.NoError(t, err)

	vectors, err := svc.EmbedBatch(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Equal(t, []float32{0.3, 0.4}, vectors[1])
	assert.Equal(t, 2, svc.Dimensions())
	assert.Equal(t, "m", svc.Model())

	_, err = svc.EmbedBatch(context.Background(), nil)
	assert.Error(t, err)
}

func TestHashEmbeddingService(t *testing.T) {
	svc := NewHashEmbeddingService(128)
	ctx := context.Background()

	t.Run("Deterministic", func(t *testing.T) {
		a, err := svc.Embed(ctx, "I like cricket on weekends")
		require.NoError(t, err)
		b, err := svc.Embed(ctx, "I like cricket on weekends")
		require.NoError(t, err)
		assert.Equal(t, a, b)
	})

	t.Run("UnitNorm", func(t *testing.T) {
		v, err := svc.Embed(ctx, "cricket weekends Alex")
		require.NoError(t, err)
		var sum float64
		for _, x := range v {
			sum += float64(x) * float64(x)
		}
		assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-5)
	})

	t.Run("EmptyTextIsZeroVector", func(t *testing.T) {
		v, err := svc.Embed(ctx, "the a an")
		require.NoError(t, err)
		assert.Len(t, v, 128)
		for _, x := range v {
			assert.Zero(t, x)
		}
	})

	t.Run("ModelName", func(t *testing.T) {
		assert.Equal(t, "local-hash-128", svc.Model())
		assert.Equal(t, 256, NewHashEmbeddingService(0).Dimensions())
	})
}
