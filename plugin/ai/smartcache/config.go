// Package smartcache is the decision engine of the semantic response cache.
// It decides per question whether a prior answer can be reused, whether the
// LLM should be called with related prior interactions as context, or
// whether a cold LLM call is needed, and it keeps the cache consistent with
// store and feedback events.
package smartcache

import (
	"fmt"
	"time"

	"github.com/hrygo/smartcache/internal/errors"
	"github.com/hrygo/smartcache/internal/profile"
	aicontext "github.com/hrygo/smartcache/plugin/ai/context"
	"github.com/hrygo/smartcache/plugin/ai/timeout"
)

// Default engine settings.
const (
	DefaultSimilarityThresholdReuse   = 0.75
	DefaultSimilarityThresholdContext = 0.4
	DefaultTTL                        = time.Hour
	DefaultTopK                       = 5
	DefaultLLMName                    = "openai"
)

// Config holds the engine options.
type Config struct {
	SimilarityThresholdReuse   float64       // minimum score to reuse a prior answer verbatim
	SimilarityThresholdContext float64       // minimum score to include a prior interaction as context
	MaxContextTokens           int           // hard cap on the assembled context block
	TTL                        time.Duration // exact-match cache lifetime
	Debug                      bool          // verbose logging, never changes results
	LLMName                    string        // provider behind the LLM caller

	TopK          int           // backend candidates fetched per question (default: 5)
	LLMTimeout    time.Duration // bound on one LLM call (default: 60s)
	SweepInterval time.Duration // passive TTL sweep, 0 disables it
	CacheCapacity int           // TTL store capacity, 0 for unbounded
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{
		SimilarityThresholdReuse:   DefaultSimilarityThresholdReuse,
		SimilarityThresholdContext: DefaultSimilarityThresholdContext,
		MaxContextTokens:           aicontext.DefaultMaxTokens,
		TTL:                        DefaultTTL,
		LLMName:                    DefaultLLMName,
		TopK:                       DefaultTopK,
		LLMTimeout:                 timeout.LLMCallTimeout,
	}
}

// ConfigFromProfile maps the process profile onto engine options.
func ConfigFromProfile(p *profile.Profile) Config {
	return Config{
		SimilarityThresholdReuse:   p.SimilarityThresholdReuse,
		SimilarityThresholdContext: p.SimilarityThresholdContext,
		MaxContextTokens:           p.MaxContextTokens,
		TTL:                        p.TTL(),
		Debug:                      p.Debug,
		LLMName:                    p.LLMName,
		TopK:                       p.TopK,
		LLMTimeout:                 p.LLMTimeout,
		SweepInterval:              p.SweepInterval,
		CacheCapacity:              p.CacheCapacity,
	}
}

// Validate checks the configuration. Every violation is a CONFIGURATION error.
func (c *Config) Validate() error {
	if c.SimilarityThresholdReuse < 0 || c.SimilarityThresholdReuse > 1 {
		return errors.Configuration(fmt.Sprintf("similarity_threshold_reuse must be within [0, 1], got %v", c.SimilarityThresholdReuse))
	}
	if c.SimilarityThresholdContext < 0 || c.SimilarityThresholdContext > 1 {
		return errors.Configuration(fmt.Sprintf("similarity_threshold_context must be within [0, 1], got %v", c.SimilarityThresholdContext))
	}
	if c.SimilarityThresholdContext >= c.SimilarityThresholdReuse {
		return errors.Configuration(fmt.Sprintf(
			"similarity_threshold_context (%v) must be below similarity_threshold_reuse (%v)",
			c.SimilarityThresholdContext, c.SimilarityThresholdReuse))
	}
	if c.MaxContextTokens <= 0 {
		return errors.Configuration(fmt.Sprintf("max_context_tokens must be positive, got %d", c.MaxContextTokens))
	}
	if c.TTL <= 0 {
		return errors.Configuration(fmt.Sprintf("ttl must be positive, got %s", c.TTL))
	}
	if c.LLMName == "" {
		return errors.Configuration("llm_name is required")
	}
	if c.TopK < 0 {
		return errors.Configuration(fmt.Sprintf("top_k must not be negative, got %d", c.TopK))
	}
	if c.LLMTimeout < 0 {
		return errors.Configuration(fmt.Sprintf("llm_timeout must not be negative, got %s", c.LLMTimeout))
	}
	return nil
}

func (c *Config) withDefaults() {
	if c.TopK == 0 {
		c.TopK = DefaultTopK
	}
	if c.LLMTimeout == 0 {
		c.LLMTimeout = timeout.LLMCallTimeout
	}
}
