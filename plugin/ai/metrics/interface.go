// Package metrics aggregates per-source answer metrics in memory.
package metrics

import (
	"context"
	"time"
)

// MetricsService records and reports answer metrics.
type MetricsService interface {
	// RecordAnswer records one GetAnswer outcome. source is empty on failure.
	RecordAnswer(ctx context.Context, source string, latency time.Duration, success bool)

	// RecordError counts a failure by error code.
	RecordError(ctx context.Context, code string)

	// RecordLLMCall records one call to the LLM caller.
	RecordLLMCall(ctx context.Context, provider string, latency time.Duration, success bool)

	// GetStats retrieves statistics for buckets that overlap timeRange.
	// A zero timeRange selects everything retained.
	GetStats(ctx context.Context, timeRange TimeRange) (*AnswerMetrics, error)
}

// TimeRange represents a time range for querying metrics.
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// AnswerMetrics represents aggregated answer metrics.
type AnswerMetrics struct {
	RequestCount int64                  `json:"request_count"`
	SuccessCount int64                  `json:"success_count"`
	CacheHitRate float32                `json:"cache_hit_rate"` // exact_cache / successful answers
	LatencyP50   time.Duration          `json:"latency_p50"`
	LatencyP95   time.Duration          `json:"latency_p95"`
	SourceStats  map[string]*SourceStat `json:"source_stats"`
	LLMStats     map[string]*LLMStat    `json:"llm_stats"`
	ErrorsByCode map[string]int64       `json:"errors_by_code"`
}

// SourceStat represents statistics for a single answer source.
type SourceStat struct {
	Count      int64         `json:"count"`
	AvgLatency time.Duration `json:"avg_latency"`
}

// LLMStat represents statistics for calls to one LLM provider.
type LLMStat struct {
	CallCount   int64         `json:"call_count"`
	SuccessRate float32       `json:"success_rate"`
	AvgLatency  time.Duration `json:"avg_latency"`
}
