package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/hrygo/smartcache/internal/profile"
)

// v holds flags, SMARTCACHE_* variables and defaults, in that precedence.
var v = profile.NewViper()

var rootCmd = &cobra.Command{
	Use:   "smartcache",
	Short: "Semantic answer cache in front of an LLM",
	Long: `smartcache answers questions from a per-user exact-match cache, reuses
answers to semantically similar questions, and only calls the LLM when it has to.`,
	SilenceUsage: true,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("mode", "dev", `mode of the process, "prod", "dev" or "demo"`)
	flags.String("driver", "memory", "interaction store driver: memory, sqlite or postgres")
	flags.String("dsn", "", "data source name of the interaction store")
	flags.String("data", ".", "data directory for the sqlite driver")
	flags.Float64("similarity-threshold-reuse", 0.75, "minimum similarity to reuse a stored answer")
	flags.Float64("similarity-threshold-context", 0.4, "minimum similarity to use an interaction as context")
	flags.Int("max-context-tokens", 1000, "token budget of the context block")
	flags.Int("ttl-seconds", 3600, "lifetime of exact-match cache entries")
	flags.Int("top-k", 5, "matches retrieved per similarity search")
	flags.Bool("debug", false, "verbose logging and decision traces")
	flags.String("llm-name", "openai", "LLM provider: openai, deepseek, siliconflow or ollama")
	flags.String("llm-model", "", "LLM model, provider default when empty")
	flags.String("embedding-provider", "local", "embedding provider: local, openai, siliconflow or ollama")
	flags.Int("embedding-dimensions", 256, "dimensions of local embeddings")
	flags.String("categorizer", "embedding", "categorizer mode: llm, embedding or none")

	flags.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(strings.ReplaceAll(f.Name, "-", "_"), f)
	})

	rootCmd.AddCommand(serveCmd, askCmd, storeCmd, feedbackCmd)
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// A missing .env is fine; real environment variables still apply.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return err
	}
	return rootCmd.Execute()
}

// loadProfile resolves the profile from flags, environment and defaults.
func loadProfile(vp *viper.Viper) (*profile.Profile, error) {
	p := profile.FromViper(vp)
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}
