package smartcache

import "time"

// Source describes where an answer came from. It is informational only.
type Source string

const (
	// SourceExactCache covers literal TTL hits and semantic reuse of a stored answer.
	SourceExactCache Source = "exact_cache"
	// SourceContextAugmentedLLM is an LLM answer produced with prior interactions as context.
	SourceContextAugmentedLLM Source = "context_augmented_llm"
	// SourceColdLLM is an LLM answer produced without context.
	SourceColdLLM Source = "cold_llm"
)

// Answer is the result of GetAnswer.
type Answer struct {
	Text   string `json:"answer"`
	Source Source `json:"source"`
	Debug  *Trace `json:"debug,omitempty"` // set only when requested
}

// Trace records how an answer was produced.
type Trace struct {
	RequestID       string `json:"request_id"`
	NormalizedQuery string `json:"normalized_query"`
	TTLHit          bool   `json:"ttl_hit"`
	TimeSensitive   bool   `json:"time_sensitive"`
	Shared          bool   `json:"shared"` // collapsed into a concurrent identical request

	BackendError        string       `json:"backend_error,omitempty"`
	Matches             []TraceMatch `json:"matches,omitempty"`
	ReusedInteractionID string       `json:"reused_interaction_id,omitempty"`
	ReuseScore          float64      `json:"reuse_score,omitempty"`

	ContextBlock    string   `json:"context_block,omitempty"`
	ContextTokens   int      `json:"context_tokens,omitempty"`
	ContextIncluded []string `json:"context_included,omitempty"`
	ContextSkipped  int      `json:"context_skipped,omitempty"`

	LLMLatency time.Duration `json:"llm_latency,omitempty"`
	StoreError string        `json:"store_error,omitempty"`
	Latency    time.Duration `json:"latency"`
}

// TraceMatch is one backend match considered for a question.
type TraceMatch struct {
	InteractionID string  `json:"interaction_id"`
	Query         string  `json:"query"`
	Category      string  `json:"category,omitempty"`
	Score         float64 `json:"score"`
}

func (t *Trace) clone() *Trace {
	if t == nil {
		return nil
	}
	c := *t
	c.Matches = append([]TraceMatch(nil), t.Matches...)
	c.ContextIncluded = append([]string(nil), t.ContextIncluded...)
	return &c
}
