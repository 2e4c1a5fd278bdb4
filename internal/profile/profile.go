package profile

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of every environment variable read by the profile.
const EnvPrefix = "SMARTCACHE"

// Profile is the configuration to start the cache and its optional server.
type Profile struct {
	// Mode can be "prod" or "dev" or "demo"
	Mode string
	// Addr is the binding address for server
	Addr string
	// Port is the binding port for server
	Port int
	// Data is the data directory
	Data string
	// Driver is the interaction store driver (memory, sqlite or postgres)
	Driver string
	// DSN points to where interactions are stored
	DSN string

	// Decision engine
	SimilarityThresholdReuse   float64       // SMARTCACHE_SIMILARITY_THRESHOLD_REUSE (default: 0.75)
	SimilarityThresholdContext float64       // SMARTCACHE_SIMILARITY_THRESHOLD_CONTEXT (default: 0.4)
	MaxContextTokens           int           // SMARTCACHE_MAX_CONTEXT_TOKENS (default: 1000)
	TTLSeconds                 int           // SMARTCACHE_TTL_SECONDS (default: 3600)
	TopK                       int           // SMARTCACHE_TOP_K (default: 5)
	Debug                      bool          // SMARTCACHE_DEBUG
	SweepInterval              time.Duration // SMARTCACHE_SWEEP_INTERVAL (default: 0, disabled)
	CacheCapacity              int           // SMARTCACHE_CACHE_CAPACITY (default: 10000)

	// LLM caller
	LLMName    string        // SMARTCACHE_LLM_NAME (default: openai)
	LLMModel   string        // SMARTCACHE_LLM_MODEL (default: provider specific)
	LLMBaseURL string        // SMARTCACHE_LLM_BASE_URL (default: provider specific)
	LLMTimeout time.Duration // SMARTCACHE_LLM_TIMEOUT (default: 60s)

	// Embeddings used by the similarity backend
	EmbeddingProvider   string // SMARTCACHE_EMBEDDING_PROVIDER (default: local)
	EmbeddingModel      string // SMARTCACHE_EMBEDDING_MODEL
	EmbeddingBaseURL    string // SMARTCACHE_EMBEDDING_BASE_URL
	EmbeddingDimensions int    // SMARTCACHE_EMBEDDING_DIMENSIONS (default: 256)

	// Categorizer
	CategorizerMode string   // SMARTCACHE_CATEGORIZER (llm, embedding or none; default: embedding)
	CategoryLabels  []string // SMARTCACHE_CATEGORY_LABELS (comma separated)
}

// DefaultCategoryLabels is the fixed label set used when none is configured.
var DefaultCategoryLabels = []string{
	"personal", "preferences", "hobbies", "work", "technology", "health", "travel", "food",
}

// NewViper returns a viper instance bound to SMARTCACHE_* environment variables with defaults.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault("mode", "dev")
	v.SetDefault("addr", "")
	v.SetDefault("port", 8081)
	v.SetDefault("data", ".")
	v.SetDefault("driver", "memory")
	v.SetDefault("dsn", "")
	v.SetDefault("similarity_threshold_reuse", 0.75)
	v.SetDefault("similarity_threshold_context", 0.4)
	v.SetDefault("max_context_tokens", 1000)
	v.SetDefault("ttl_seconds", 3600)
	v.SetDefault("top_k", 5)
	v.SetDefault("debug", false)
	v.SetDefault("sweep_interval", time.Duration(0))
	v.SetDefault("cache_capacity", 10000)
	v.SetDefault("llm_name", "openai")
	v.SetDefault("llm_model", "")
	v.SetDefault("llm_base_url", "")
	v.SetDefault("llm_timeout", 60*time.Second)
	v.SetDefault("embedding_provider", "local")
	v.SetDefault("embedding_model", "")
	v.SetDefault("embedding_base_url", "")
	v.SetDefault("embedding_dimensions", 256)
	v.SetDefault("categorizer", "embedding")
	v.SetDefault("category_labels", strings.Join(DefaultCategoryLabels, ","))
	return v
}

// FromViper loads the profile from the given viper instance.
func FromViper(v *viper.Viper) *Profile {
	return &Profile{
		Mode:                       v.GetString("mode"),
		Addr:                       v.GetString("addr"),
		Port:                       v.GetInt("port"),
		Data:                       v.GetString("data"),
		Driver:                     v.GetString("driver"),
		DSN:                        v.GetString("dsn"),
		SimilarityThresholdReuse:   v.GetFloat64("similarity_threshold_reuse"),
		SimilarityThresholdContext: v.GetFloat64("similarity_threshold_context"),
		MaxContextTokens:           v.GetInt("max_context_tokens"),
		TTLSeconds:                 v.GetInt("ttl_seconds"),
		TopK:                       v.GetInt("top_k"),
		Debug:                      v.GetBool("debug"),
		SweepInterval:              v.GetDuration("sweep_interval"),
		CacheCapacity:              v.GetInt("cache_capacity"),
		LLMName:                    v.GetString("llm_name"),
		LLMModel:                   v.GetString("llm_model"),
		LLMBaseURL:                 v.GetString("llm_base_url"),
		LLMTimeout:                 v.GetDuration("llm_timeout"),
		EmbeddingProvider:          v.GetString("embedding_provider"),
		EmbeddingModel:             v.GetString("embedding_model"),
		EmbeddingBaseURL:           v.GetString("embedding_base_url"),
		EmbeddingDimensions:        v.GetInt("embedding_dimensions"),
		CategorizerMode:            v.GetString("categorizer"),
		CategoryLabels:             splitLabels(v.GetString("category_labels")),
	}
}

// FromEnv loads the profile from SMARTCACHE_* environment variables.
func FromEnv() *Profile {
	return FromViper(NewViper())
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// TTL returns the exact-match cache lifetime.
func (p *Profile) TTL() time.Duration {
	return time.Duration(p.TTLSeconds) * time.Second
}

func splitLabels(raw string) []string {
	var labels []string
	for _, part := range strings.Split(raw, ",") {
		if label := strings.TrimSpace(part); label != "" {
			labels = append(labels, strings.ToLower(label))
		}
	}
	return labels
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		absDir, err := filepath.Abs(dataDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	// Trim trailing \ or / in case user supplies
	dataDir = strings.TrimRight(dataDir, "\\/")
	if _, err := os.Stat(dataDir); err != nil {
		return "", errors.Wrapf(err, "unable to access data folder %s", dataDir)
	}
	return dataDir, nil
}

// Validate normalizes the profile and checks the storage settings.
// Engine thresholds are validated by the engine itself at construction.
func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}

	switch p.Driver {
	case "memory":
		return nil
	case "postgres":
		if p.DSN == "" {
			return errors.New("dsn is required for the postgres driver")
		}
		return nil
	case "sqlite":
	default:
		return errors.Errorf("unknown driver %q: expected memory, sqlite or postgres", p.Driver)
	}

	if p.DSN != "" {
		return nil
	}
	dataDir, err := checkDataDir(p.Data)
	if err != nil {
		return err
	}
	p.Data = dataDir
	p.DSN = filepath.Join(dataDir, fmt.Sprintf("smartcache_%s.db", p.Mode))
	return nil
}
