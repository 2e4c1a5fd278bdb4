package smartcache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/smartcache/internal/profile"
	"github.com/hrygo/smartcache/plugin/ai/timeout"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 0.75, cfg.SimilarityThresholdReuse)
	assert.Equal(t, 0.4, cfg.SimilarityThresholdContext)
	assert.Equal(t, 1000, cfg.MaxContextTokens)
	assert.Equal(t, time.Hour, cfg.TTL)
	assert.Equal(t, "openai", cfg.LLMName)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"Defaults", func(*Config) {}, false},
		{"ZeroContext", func(c *Config) { c.SimilarityThresholdContext = 0 }, false},
		{"ReuseOne", func(c *Config) { c.SimilarityThresholdReuse = 1 }, false},
		{"ReuseNegative", func(c *Config) { c.SimilarityThresholdReuse = -0.5 }, true},
		{"ContextAboveOne", func(c *Config) { c.SimilarityThresholdContext = 1.5 }, true},
		{"Ordering", func(c *Config) { c.SimilarityThresholdContext = 0.75 }, true},
		{"NegativeTokens", func(c *Config) { c.MaxContextTokens = -1 }, true},
		{"NegativeTTL", func(c *Config) { c.TTL = -time.Second }, true},
		{"NegativeTopK", func(c *Config) { c.TopK = -1 }, true},
		{"NegativeTimeout", func(c *Config) { c.LLMTimeout = -time.Second }, true},
		{"NoLLMName", func(c *Config) { c.LLMName = "" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfigFromProfile(t *testing.T) {
	p := profile.FromViper(profile.NewViper())
	cfg := ConfigFromProfile(p)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, time.Hour, cfg.TTL)
	assert.Equal(t, 5, cfg.TopK)
	assert.Equal(t, 60*time.Second, cfg.LLMTimeout)

	p.TopK = 0
	p.LLMTimeout = 0
	cfg = ConfigFromProfile(p)
	cfg.withDefaults()
	assert.Equal(t, DefaultTopK, cfg.TopK)
	assert.Equal(t, timeout.LLMCallTimeout, cfg.LLMTimeout)
}
