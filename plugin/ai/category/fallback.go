package category

import (
	"context"
	"log/slog"

	"github.com/pkg/errors"

	"github.com/hrygo/smartcache/plugin/ai"
	"github.com/hrygo/smartcache/plugin/ai/vector"
)

// Fallback wraps a categorizer so that storage is never blocked by it:
// errors and labels outside the configured set become Uncategorized.
type Fallback struct {
	inner  Categorizer
	labels map[string]bool
	logger *slog.Logger
}

var _ Categorizer = (*Fallback)(nil)

// NewFallback wraps inner. A nil inner always yields Uncategorized.
func NewFallback(inner Categorizer, labels []string, logger *slog.Logger) *Fallback {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fallback{
		inner:  inner,
		labels: labelSet(labels),
		logger: logger,
	}
}

// Categorize never returns an error.
func (f *Fallback) Categorize(ctx context.Context, text string) (string, error) {
	if f.inner == nil {
		return Uncategorized, nil
	}

	label, err := f.inner.Categorize(ctx, text)
	if err != nil {
		f.logger.Warn("categorizer unavailable, using fallback label",
			slog.String("error", err.Error()),
		)
		return Uncategorized, nil
	}
	if !f.labels[label] {
		return Uncategorized, nil
	}
	return label, nil
}

// New builds the categorizer for mode, always wrapped in Fallback.
func New(mode string, labels []string, llm ai.LLMService, embedder vector.Embedder, logger *slog.Logger) (*Fallback, error) {
	var inner Categorizer
	switch mode {
	case ModeLLM:
		if llm == nil {
			return nil, errors.New("llm categorizer requires an LLM service")
		}
		inner = NewLLMClassifier(llm, labels)
	case ModeEmbedding:
		if embedder == nil {
			return nil, errors.New("embedding categorizer requires an embedder")
		}
		inner = NewEmbeddingClassifier(embedder, labels, DefaultLabelDescriptions)
	case ModeNone, "":
	default:
		return nil, errors.Errorf("unknown categorizer mode %q", mode)
	}
	return NewFallback(inner, labels, logger), nil
}
