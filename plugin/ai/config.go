package ai

import (
	"fmt"
	"os"
	"time"

	"github.com/hrygo/smartcache/internal/errors"
	"github.com/hrygo/smartcache/internal/profile"
)

// Supported providers. The set is closed: adding a provider means adding a
// case to providerSpecFor.
const (
	ProviderOpenAI      = "openai"
	ProviderDeepSeek    = "deepseek"
	ProviderSiliconFlow = "siliconflow"
	ProviderOllama      = "ollama"
	ProviderLocal       = "local" // embeddings only, no network
)

// EnvLookup resolves an environment variable. os.LookupEnv in production,
// a map-backed fake in tests.
type EnvLookup func(key string) (string, bool)

// OSEnv is the EnvLookup backed by the process environment.
var OSEnv EnvLookup = os.LookupEnv

// Config represents AI configuration.
type Config struct {
	LLM       LLMConfig
	Embedding EmbeddingConfig
}

// EmbeddingConfig represents vector embedding configuration.
type EmbeddingConfig struct {
	Provider   string // local, openai, siliconflow, ollama
	Model      string // text-embedding-3-small
	Dimensions int    // 256
	APIKey     string
	BaseURL    string
}

// LLMConfig represents LLM configuration.
type LLMConfig struct {
	Provider    string // openai, deepseek, siliconflow, ollama
	Model       string // gpt-4o-mini
	APIKey      string
	BaseURL     string
	MaxTokens   int     // default: 1024
	Temperature float32 // default: 0.3

	RequestsPerSecond float64 // default: 5
	Burst             int     // default: 10
	MaxConcurrent     int64   // default: 8
	Timeout           time.Duration
}

type providerSpec struct {
	apiKeyEnv      string
	baseURL        string
	chatModel      string
	embeddingModel string
}

func providerSpecFor(provider string) (providerSpec, bool) {
	switch provider {
	case ProviderOpenAI:
		return providerSpec{
			apiKeyEnv:      "OPENAI_API_KEY",
			baseURL:        "https://api.openai.com/v1",
			chatModel:      "gpt-4o-mini",
			embeddingModel: "text-embedding-3-small",
		}, true
	case ProviderDeepSeek:
		return providerSpec{
			apiKeyEnv: "DEEPSEEK_API_KEY",
			baseURL:   "https://api.deepseek.com",
			chatModel: "deepseek-chat",
		}, true
	case ProviderSiliconFlow:
		return providerSpec{
			apiKeyEnv:      "SILICONFLOW_API_KEY",
			baseURL:        "https://api.siliconflow.cn/v1",
			chatModel:      "Qwen/Qwen2.5-7B-Instruct",
			embeddingModel: "BAAI/bge-m3",
		}, true
	case ProviderOllama:
		return providerSpec{
			baseURL:        "http://localhost:11434/v1",
			chatModel:      "llama3.1",
			embeddingModel: "nomic-embed-text",
		}, true
	case ProviderLocal:
		return providerSpec{}, true
	default:
		return providerSpec{}, false
	}
}

// APIKeyEnv returns the environment variable holding the provider's credential,
// or "" when the provider needs none.
func APIKeyEnv(provider string) string {
	spec, _ := providerSpecFor(provider)
	return spec.apiKeyEnv
}

// NewConfigFromProfile creates AI config from profile, resolving credentials
// through env. A provider whose credential is missing is a configuration error.
func NewConfigFromProfile(p *profile.Profile, env EnvLookup) (*Config, error) {
	if env == nil {
		env = OSEnv
	}

	llmSpec, ok := providerSpecFor(p.LLMName)
	if !ok || p.LLMName == ProviderLocal {
		return nil, errors.Configuration(fmt.Sprintf("unsupported LLM provider: %q", p.LLMName))
	}
	embSpec, ok := providerSpecFor(p.EmbeddingProvider)
	if !ok || p.EmbeddingProvider == ProviderDeepSeek {
		return nil, errors.Configuration(fmt.Sprintf("unsupported embedding provider: %q", p.EmbeddingProvider))
	}

	cfg := &Config{
		LLM: LLMConfig{
			Provider:          p.LLMName,
			Model:             firstNonEmpty(p.LLMModel, llmSpec.chatModel),
			BaseURL:           firstNonEmpty(p.LLMBaseURL, llmSpec.baseURL),
			MaxTokens:         1024,
			Temperature:       0.3,
			RequestsPerSecond: 5,
			Burst:             10,
			MaxConcurrent:     8,
			Timeout:           p.LLMTimeout,
		},
		Embedding: EmbeddingConfig{
			Provider:   p.EmbeddingProvider,
			Model:      firstNonEmpty(p.EmbeddingModel, embSpec.embeddingModel),
			BaseURL:    firstNonEmpty(p.EmbeddingBaseURL, embSpec.baseURL),
			Dimensions: p.EmbeddingDimensions,
		},
	}

	if llmSpec.apiKeyEnv != "" {
		key, ok := env(llmSpec.apiKeyEnv)
		if !ok || key == "" {
			return nil, errors.Configuration(fmt.Sprintf("%s must be set for LLM provider %q", llmSpec.apiKeyEnv, p.LLMName))
		}
		cfg.LLM.APIKey = key
	}
	if embSpec.apiKeyEnv != "" {
		key, ok := env(embSpec.apiKeyEnv)
		if !ok || key == "" {
			return nil, errors.Configuration(fmt.Sprintf("%s must be set for embedding provider %q", embSpec.apiKeyEnv, p.EmbeddingProvider))
		}
		cfg.Embedding.APIKey = key
	}

	return cfg, cfg.Validate()
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.LLM.Provider == "" {
		return errors.Configuration("LLM provider is required")
	}
	if APIKeyEnv(c.LLM.Provider) != "" && c.LLM.APIKey == "" {
		return errors.Configuration("LLM API key is required")
	}
	if c.LLM.Model == "" {
		return errors.Configuration("LLM model is required")
	}

	if c.Embedding.Provider == "" {
		return errors.Configuration("embedding provider is required")
	}
	if APIKeyEnv(c.Embedding.Provider) != "" && c.Embedding.APIKey == "" {
		return errors.Configuration("embedding API key is required")
	}
	if c.Embedding.Provider == ProviderLocal && c.Embedding.Dimensions <= 0 {
		return errors.Configuration("local embeddings need positive dimensions")
	}

	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
