package metrics

import (
	"sort"
	"sync"
	"time"
)

// SourceExactCache is the label counted as a cache hit.
const SourceExactCache = "exact_cache"

// failedSource groups answers that produced no source.
const failedSource = "failed"

// Aggregator aggregates metrics in memory in hourly buckets.
type Aggregator struct {
	mu  sync.RWMutex
	now func() time.Time

	// key = "hourBucket|source"
	answerMetrics map[string]*answerBucket

	// key = "hourBucket|provider"
	llmMetrics map[string]*llmBucket

	// key = "hourBucket|code"
	errorMetrics map[string]*errorBucket
}

type answerBucket struct {
	hourBucket   time.Time
	source       string
	requestCount int64
	successCount int64
	latencies    []int64 // in milliseconds
}

type llmBucket struct {
	hourBucket   time.Time
	provider     string
	callCount    int64
	successCount int64
	latencySum   int64 // in milliseconds
}

type errorBucket struct {
	hourBucket time.Time
	code       string
	count      int64
}

// NewAggregator creates a new metrics aggregator.
func NewAggregator(now func() time.Time) *Aggregator {
	if now == nil {
		now = time.Now
	}
	return &Aggregator{
		now:           now,
		answerMetrics: make(map[string]*answerBucket),
		llmMetrics:    make(map[string]*llmBucket),
		errorMetrics:  make(map[string]*errorBucket),
	}
}

// RecordAnswer records a single answer.
func (a *Aggregator) RecordAnswer(source string, latency time.Duration, success bool) {
	if source == "" {
		source = failedSource
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	hourBucket := truncateToHour(a.now())
	key := makeKey(hourBucket, source)

	bucket, exists := a.answerMetrics[key]
	if !exists {
		bucket = &answerBucket{
			hourBucket: hourBucket,
			source:     source,
			latencies:  make([]int64, 0, 100),
		}
		a.answerMetrics[key] = bucket
	}

	bucket.requestCount++
	if success {
		bucket.successCount++
	}
	bucket.latencies = append(bucket.latencies, latency.Milliseconds())
}

// RecordLLMCall records a single LLM call.
func (a *Aggregator) RecordLLMCall(provider string, latency time.Duration, success bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	hourBucket := truncateToHour(a.now())
	key := makeKey(hourBucket, provider)

	bucket, exists := a.llmMetrics[key]
	if !exists {
		bucket = &llmBucket{
			hourBucket: hourBucket,
			provider:   provider,
		}
		a.llmMetrics[key] = bucket
	}

	bucket.callCount++
	if success {
		bucket.successCount++
	}
	bucket.latencySum += latency.Milliseconds()
}

// RecordError counts an error code.
func (a *Aggregator) RecordError(code string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	hourBucket := truncateToHour(a.now())
	key := makeKey(hourBucket, code)

	bucket, exists := a.errorMetrics[key]
	if !exists {
		bucket = &errorBucket{hourBucket: hourBucket, code: code}
		a.errorMetrics[key] = bucket
	}
	bucket.count++
}

// Prune drops all buckets for hours before the given time.
// Returns the number of buckets removed.
func (a *Aggregator) Prune(beforeHour time.Time) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	removed := 0
	for key, bucket := range a.answerMetrics {
		if bucket.hourBucket.Before(beforeHour) {
			delete(a.answerMetrics, key)
			removed++
		}
	}
	for key, bucket := range a.llmMetrics {
		if bucket.hourBucket.Before(beforeHour) {
			delete(a.llmMetrics, key)
			removed++
		}
	}
	for key, bucket := range a.errorMetrics {
		if bucket.hourBucket.Before(beforeHour) {
			delete(a.errorMetrics, key)
			removed++
		}
	}
	return removed
}

// GetStats returns aggregated stats for buckets overlapping timeRange.
func (a *Aggregator) GetStats(timeRange TimeRange) *AnswerMetrics {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := &AnswerMetrics{
		SourceStats:  make(map[string]*SourceStat),
		LLMStats:     make(map[string]*LLMStat),
		ErrorsByCode: make(map[string]int64),
	}

	allLatencies := make([]int64, 0)
	sourceLatency := make(map[string]int64)
	var hits int64
	for _, bucket := range a.answerMetrics {
		if !inRange(bucket.hourBucket, timeRange) {
			continue
		}
		stats.RequestCount += bucket.requestCount
		stats.SuccessCount += bucket.successCount
		allLatencies = append(allLatencies, bucket.latencies...)
		if bucket.source == SourceExactCache {
			hits += bucket.successCount
		}

		sourceStat, exists := stats.SourceStats[bucket.source]
		if !exists {
			sourceStat = &SourceStat{}
			stats.SourceStats[bucket.source] = sourceStat
		}
		sourceStat.Count += bucket.requestCount
		sourceLatency[bucket.source] += sumLatencies(bucket.latencies)
	}
	for source, sourceStat := range stats.SourceStats {
		if sourceStat.Count > 0 {
			sourceStat.AvgLatency = time.Duration(sourceLatency[source]/sourceStat.Count) * time.Millisecond
		}
	}
	if stats.SuccessCount > 0 {
		stats.CacheHitRate = float32(hits) / float32(stats.SuccessCount)
	}

	stats.LatencyP50 = time.Duration(percentile(allLatencies, 50)) * time.Millisecond
	stats.LatencyP95 = time.Duration(percentile(allLatencies, 95)) * time.Millisecond

	llmSuccess := make(map[string]int64)
	llmLatency := make(map[string]int64)
	for _, bucket := range a.llmMetrics {
		if !inRange(bucket.hourBucket, timeRange) {
			continue
		}
		llmStat, exists := stats.LLMStats[bucket.provider]
		if !exists {
			llmStat = &LLMStat{}
			stats.LLMStats[bucket.provider] = llmStat
		}
		llmStat.CallCount += bucket.callCount
		llmSuccess[bucket.provider] += bucket.successCount
		llmLatency[bucket.provider] += bucket.latencySum
	}
	for provider, llmStat := range stats.LLMStats {
		if llmStat.CallCount > 0 {
			llmStat.SuccessRate = float32(llmSuccess[provider]) / float32(llmStat.CallCount)
			llmStat.AvgLatency = time.Duration(llmLatency[provider]/llmStat.CallCount) * time.Millisecond
		}
	}

	for _, bucket := range a.errorMetrics {
		if inRange(bucket.hourBucket, timeRange) {
			stats.ErrorsByCode[bucket.code] += bucket.count
		}
	}

	return stats
}

// Helper functions

func truncateToHour(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, t.Location())
}

func makeKey(hourBucket time.Time, name string) string {
	return hourBucket.Format(time.RFC3339) + "|" + name
}

// inRange reports whether the hour starting at hourBucket overlaps tr.
func inRange(hourBucket time.Time, tr TimeRange) bool {
	if !tr.Start.IsZero() && !hourBucket.Add(time.Hour).After(tr.Start) {
		return false
	}
	if !tr.End.IsZero() && !hourBucket.Before(tr.End) {
		return false
	}
	return true
}

func sumLatencies(latencies []int64) int64 {
	var sum int64
	for _, l := range latencies {
		sum += l
	}
	return sum
}

func percentile(latencies []int64, p int) int64 {
	if len(latencies) == 0 {
		return 0
	}

	sorted := make([]int64, len(latencies))
	copy(sorted, latencies)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	idx := (len(sorted) - 1) * p / 100
	return sorted[idx]
}
