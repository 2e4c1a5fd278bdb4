package ai

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"github.com/sashabaranov/go-openai"
)

// EmbeddingService is the vector embedding service interface.
type EmbeddingService interface {
	// Embed generates vector for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates vectors for multiple texts.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the vector dimension.
	Dimensions() int

	// Model identifies the embedding model, stored next to each vector.
	Model() string
}

type embeddingService struct {
	client     *openai.Client
	model      string
	dimensions int
}

// NewEmbeddingService creates a new EmbeddingService.
func NewEmbeddingService(cfg *EmbeddingConfig) (EmbeddingService, error) {
	var clientConfig openai.ClientConfig

	switch cfg.Provider {
	case ProviderLocal:
		return NewHashEmbeddingService(cfg.Dimensions), nil

	case ProviderOpenAI, ProviderSiliconFlow:
		// SiliconFlow is compatible with OpenAI API
		clientConfig = openai.DefaultConfig(cfg.APIKey)

	case ProviderOllama:
		clientConfig = openai.DefaultConfig("ollama")

	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Provider)
	}
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	return &embeddingService{
		client:     openai.NewClientWithConfig(clientConfig),
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
	}, nil
}

func (s *embeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, errors.New("empty embedding result")
	}
	return vectors[0], nil
}

func (s *embeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, errors.New("no texts provided for embedding")
	}

	req := openai.EmbeddingRequest{
		Input:      texts,
		Model:      openai.EmbeddingModel(s.model),
		Dimensions: s.dimensions,
	}

	resp, err := s.client.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("create embeddings failed: %w", err)
	}

	if len(resp.Data) == 0 {
		return nil, errors.New("empty embedding response")
	}

	vectors := make([][]float32, len(resp.Data))
	for i, data := range resp.Data {
		vectors[i] = data.Embedding
	}

	return vectors, nil
}

func (s *embeddingService) Dimensions() int {
	return s.dimensions
}

func (s *embeddingService) Model() string {
	return s.model
}

// HashEmbeddingService produces deterministic bag-of-words vectors with the
// hashing trick. It needs no network and is good enough for lexical overlap.
type HashEmbeddingService struct {
	dimensions int
}

// NewHashEmbeddingService creates a local embedder with the given dimension.
func NewHashEmbeddingService(dimensions int) *HashEmbeddingService {
	if dimensions <= 0 {
		dimensions = 256
	}
	return &HashEmbeddingService{dimensions: dimensions}
}

var stopWords = map[string]bool{
	"a": true, "an": true, "the": true, "is": true, "are": true, "do": true, "does": true,
	"i": true, "im": true, "to": true, "of": true, "on": true, "in": true, "and": true,
	"for": true, "what": true, "my": true, "me": true, "you": true, "it": true,
}

func (s *HashEmbeddingService) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, s.dimensions)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	for _, w := range words {
		if stopWords[w] {
			continue
		}
		w = strings.TrimSuffix(w, "s")
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		sum := h.Sum32()
		sign := float32(1)
		if sum&1 == 1 {
			sign = -1
		}
		vec[int(sum>>1)%s.dimensions] += sign
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec, nil
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec, nil
}

func (s *HashEmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, errors.New("no texts provided for embedding")
	}
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		v, err := s.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		vectors[i] = v
	}
	return vectors, nil
}

func (s *HashEmbeddingService) Dimensions() int {
	return s.dimensions
}

func (s *HashEmbeddingService) Model() string {
	return fmt.Sprintf("local-hash-%d", s.dimensions)
}
