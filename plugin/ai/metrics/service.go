package metrics

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultRetention is how long hourly buckets are kept.
const DefaultRetention = 24 * time.Hour

// ServiceConfig configures the metrics service.
type ServiceConfig struct {
	Retention     time.Duration // Buckets older than this are pruned (default: 24h)
	PruneInterval time.Duration // 0 disables the background pruner
	Clock         func() time.Time
}

// Service implements MetricsService over an in-memory Aggregator.
type Service struct {
	aggregator *Aggregator
	retention  time.Duration
	now        func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

var _ MetricsService = (*Service)(nil)

// NewService creates a new metrics service.
func NewService(cfg ServiceConfig) *Service {
	if cfg.Retention <= 0 {
		cfg.Retention = DefaultRetention
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	ctx, cancel := context.WithCancel(context.Background())
	svc := &Service{
		aggregator: NewAggregator(cfg.Clock),
		retention:  cfg.Retention,
		now:        cfg.Clock,
		ctx:        ctx,
		cancel:     cancel,
	}

	if cfg.PruneInterval > 0 {
		svc.wg.Add(1)
		go svc.pruneLoop(cfg.PruneInterval)
	}
	return svc
}

// Close stops the pruner.
func (s *Service) Close() {
	s.cancel()
	s.wg.Wait()
}

// RecordAnswer records an answer metric.
func (s *Service) RecordAnswer(_ context.Context, source string, latency time.Duration, success bool) {
	s.aggregator.RecordAnswer(source, latency, success)
}

// RecordError counts an error code.
func (s *Service) RecordError(_ context.Context, code string) {
	s.aggregator.RecordError(code)
}

// RecordLLMCall records an LLM call metric.
func (s *Service) RecordLLMCall(_ context.Context, provider string, latency time.Duration, success bool) {
	s.aggregator.RecordLLMCall(provider, latency, success)
}

// GetStats retrieves aggregated statistics for the given time range.
func (s *Service) GetStats(_ context.Context, timeRange TimeRange) (*AnswerMetrics, error) {
	return s.aggregator.GetStats(timeRange), nil
}

// Prune drops buckets older than the retention window.
func (s *Service) Prune() int {
	return s.aggregator.Prune(truncateToHour(s.now().Add(-s.retention)))
}

func (s *Service) pruneLoop(interval time.Duration) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			if n := s.Prune(); n > 0 {
				slog.Debug("pruned metrics buckets", slog.Int("count", n))
			}
		}
	}
}
