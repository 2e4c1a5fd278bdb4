package smartcache

import (
	"context"
	stderrors "errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/hrygo/smartcache/internal/errors"
	"github.com/hrygo/smartcache/internal/observability"
	"github.com/hrygo/smartcache/internal/profile"
	"github.com/hrygo/smartcache/plugin/ai/aitime"
	"github.com/hrygo/smartcache/plugin/ai/cache"
	"github.com/hrygo/smartcache/plugin/ai/category"
	aicontext "github.com/hrygo/smartcache/plugin/ai/context"
	"github.com/hrygo/smartcache/plugin/ai/metrics"
	"github.com/hrygo/smartcache/plugin/ai/timeout"
	"github.com/hrygo/smartcache/plugin/ai/vector"
)

// Dependencies are the collaborators of the engine. Backend and LLM are
// required, everything else has a default.
type Dependencies struct {
	Backend vector.Backend
	LLM     LLMCaller

	// Categorizer labels stored interactions. It is always wrapped in a
	// category.Fallback so that it can never block storage. nil stores every
	// interaction as uncategorized.
	Categorizer category.Categorizer
	Labels      []string // fixed label set (default: profile.DefaultCategoryLabels)

	Metrics      metrics.MetricsService // default: in-memory metrics.Service
	TimeDetector aitime.TimeSensitivity // default: aitime.NewDetector()
	TokenCounter aicontext.TokenCounter // default: aicontext.EstimateTokens
	Clock        cache.Clock            // default: time.Now
	Logger       *slog.Logger           // default: observability.NewLogger(cfg.Debug)
}

// Service is the semantic response cache.
type Service struct {
	cfg Config

	cache        *cache.Service
	backend      vector.Backend
	llm          LLMCaller
	categorizer  category.Categorizer
	assembler    *aicontext.Assembler
	timeDetector aitime.TimeSensitivity
	metrics      metrics.MetricsService
	ownMetrics   *metrics.Service
	logger       *slog.Logger
	now          cache.Clock

	group     singleflight.Group
	closeOnce sync.Once
}

// NewService validates cfg and builds the engine.
func NewService(cfg Config, deps Dependencies) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.withDefaults()
	if deps.Backend == nil {
		return nil, errors.Configuration("similarity backend is required")
	}
	if deps.LLM == nil {
		return nil, errors.Configuration("LLM caller is required")
	}

	logger := deps.Logger
	if logger == nil {
		logger = observability.NewLogger(cfg.Debug)
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	labels := deps.Labels
	if len(labels) == 0 {
		labels = profile.DefaultCategoryLabels
	}
	categorizer, ok := deps.Categorizer.(*category.Fallback)
	if !ok {
		categorizer = category.NewFallback(deps.Categorizer, labels, logger)
	}
	timeDetector := deps.TimeDetector
	if timeDetector == nil {
		timeDetector = aitime.NewDetector()
	}

	s := &Service{
		cfg: cfg,
		cache: cache.NewService(cache.ServiceConfig{
			TTL:             cfg.TTL,
			Capacity:        cfg.CacheCapacity,
			CleanupInterval: cfg.SweepInterval,
			Clock:           clock,
		}),
		backend:      deps.Backend,
		llm:          deps.LLM,
		categorizer:  categorizer,
		assembler:    aicontext.NewAssembler(deps.TokenCounter),
		timeDetector: timeDetector,
		metrics:      deps.Metrics,
		logger:       logger,
		now:          clock,
	}
	if s.metrics == nil {
		s.ownMetrics = metrics.NewService(metrics.ServiceConfig{
			PruneInterval: time.Hour,
			Clock:         clock,
		})
		s.metrics = s.ownMetrics
	}

	logger.Debug("smartcache engine created",
		slog.Float64("similarity_threshold_reuse", cfg.SimilarityThresholdReuse),
		slog.Float64("similarity_threshold_context", cfg.SimilarityThresholdContext),
		slog.Int("max_context_tokens", cfg.MaxContextTokens),
		slog.Duration("ttl", cfg.TTL),
		slog.String("llm_name", cfg.LLMName),
	)
	return s, nil
}

// Config returns the effective configuration.
func (s *Service) Config() Config {
	return s.cfg
}

// Close stops background work. Safe to call more than once.
func (s *Service) Close() {
	s.closeOnce.Do(func() {
		s.cache.Close()
		if s.ownMetrics != nil {
			s.ownMetrics.Close()
		}
	})
}

// resolution is the shared outcome of one miss, handed to every collapsed caller.
type resolution struct {
	text   string
	source Source
	trace  *Trace
}

// GetAnswer answers question for userID. Sources are consulted cheapest
// first: the TTL store, then semantic reuse of a stored answer, then the LLM
// with or without context. Fresh LLM answers are stored before returning.
// The returned answer is never empty. Trace is attached when returnDebug is set.
func (s *Service) GetAnswer(ctx context.Context, userID, question string, returnDebug bool) (*Answer, error) {
	reqCtx := observability.NewRequestContext(s.logger, "get_answer", userID)

	answer, err := s.getAnswer(observability.WithRequestContext(ctx, reqCtx), reqCtx, userID, question)
	latency := reqCtx.Duration()
	if err != nil {
		code := errors.GetCodeFromError(err, errors.ErrCodeLLMCallFailed)
		s.metrics.RecordAnswer(ctx, "", latency, false)
		s.metrics.RecordError(ctx, string(code))
		attrs := []slog.Attr{
			slog.String(observability.LogFieldErrorCode, string(code)),
			slog.String("question", timeout.Truncate(question)),
			slog.Int64(observability.LogFieldDuration, latency.Milliseconds()),
		}
		switch code {
		case errors.ErrCodeInvalidArgument, errors.ErrCodeContextCanceled:
			reqCtx.Warn("get_answer failed", append(attrs, slog.String("error", err.Error()))...)
		default:
			reqCtx.Error("get_answer failed", err, attrs...)
		}
		return nil, err
	}

	s.metrics.RecordAnswer(ctx, string(answer.Source), latency, true)
	reqCtx.Debug("get_answer resolved",
		slog.String(observability.LogFieldSource, string(answer.Source)),
		slog.Int64(observability.LogFieldDuration, latency.Milliseconds()),
	)
	if returnDebug {
		answer.Debug.Latency = latency
	} else {
		answer.Debug = nil
	}
	return answer, nil
}

func (s *Service) getAnswer(ctx context.Context, reqCtx *observability.RequestContext, userID, question string) (*Answer, error) {
	if err := validateQuestion(userID, question); err != nil {
		return nil, err
	}
	normalized := cache.Normalize(question)

	if entry, ok := s.cache.Get(userID, normalized); ok {
		reqCtx.Debug("exact cache hit", slog.String("interaction_id", entry.InteractionID))
		return &Answer{
			Text:   entry.Answer,
			Source: SourceExactCache,
			Debug: &Trace{
				RequestID:           reqCtx.RequestID,
				NormalizedQuery:     normalized,
				TTLHit:              true,
				ReusedInteractionID: entry.InteractionID,
			},
		}, nil
	}

	key := userID + "\x00" + normalized
	var (
		res    *resolution
		shared bool
		err    error
	)
	for {
		res, shared, err = s.resolveShared(ctx, key, reqCtx, userID, question, normalized)
		var gone *abandonedError
		if !stderrors.As(err, &gone) {
			break
		}
		if ctx.Err() != nil {
			return nil, gone.err
		}
		// The caller running the shared resolution went away; this one is
		// still live, so resolve again.
		reqCtx.Debug("shared resolution abandoned, retrying", slog.String("error", gone.err.Error()))
	}
	if err != nil {
		return nil, err
	}

	trace := res.trace.clone()
	trace.Shared = shared
	return &Answer{Text: res.text, Source: res.source, Debug: trace}, nil
}

// abandonedError marks a shared resolution that failed because the context
// of the caller running it ended, not because of the question.
type abandonedError struct {
	err error
}

func (e *abandonedError) Error() string { return e.err.Error() }

func (e *abandonedError) Unwrap() error { return e.err }

// resolveShared collapses concurrent identical misses into one resolution.
// The resolution runs under the context of the first caller; if that context
// ends the failure is returned as an abandonedError.
func (s *Service) resolveShared(ctx context.Context, key string, reqCtx *observability.RequestContext, userID, question, normalized string) (*resolution, bool, error) {
	ch := s.group.DoChan(key, func() (interface{}, error) {
		res, err := s.resolve(ctx, reqCtx, userID, question, normalized)
		if err != nil && ctx.Err() != nil {
			return nil, &abandonedError{err: err}
		}
		return res, err
	})
	select {
	case <-ctx.Done():
		return nil, false, contextError(ctx.Err())
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Shared, r.Err
		}
		return r.Val.(*resolution), r.Shared, nil
	}
}

func (s *Service) resolve(ctx context.Context, reqCtx *observability.RequestContext, userID, question, normalized string) (*resolution, error) {
	trace := &Trace{
		RequestID:       reqCtx.RequestID,
		NormalizedQuery: normalized,
		TimeSensitive:   s.timeDetector.IsTimeSensitive(question),
	}

	matches, err := s.search(ctx, userID, question)
	if err != nil {
		trace.BackendError = err.Error()
		s.metrics.RecordError(ctx, string(errors.ErrCodeServiceUnavailable))
		reqCtx.Warn("similarity backend unavailable, degrading to cold call", slog.String("error", err.Error()))
	}
	for _, m := range matches {
		trace.Matches = append(trace.Matches, TraceMatch{
			InteractionID: m.Interaction.ID,
			Query:         m.Interaction.Query,
			Category:      m.Interaction.Category,
			Score:         m.Score,
		})
	}

	if trace.TimeSensitive {
		reqCtx.Debug("time sensitive question, semantic reuse skipped")
	} else if best, ok := s.bestReusable(matches, s.now()); ok {
		trace.ReusedInteractionID = best.Interaction.ID
		trace.ReuseScore = best.Score
		s.cache.Put(userID, normalized, best.Interaction.Answer, best.Interaction.ID)
		reqCtx.Debug("semantic reuse",
			slog.String("interaction_id", best.Interaction.ID),
			slog.Float64(observability.LogFieldScore, best.Score),
		)
		return &resolution{text: best.Interaction.Answer, source: SourceExactCache, trace: trace}, nil
	}

	block := s.assembler.Assemble(s.contextCandidates(matches, s.now()), s.cfg.MaxContextTokens)
	source := SourceColdLLM
	if !block.Empty() {
		source = SourceContextAugmentedLLM
		trace.ContextBlock = block.Text
		trace.ContextTokens = block.Tokens
		trace.ContextSkipped = block.Skipped
		for _, c := range block.Included {
			trace.ContextIncluded = append(trace.ContextIncluded, c.InteractionID)
		}
	}

	llmStart := time.Now()
	text, err := s.callLLM(ctx, question, block.Text)
	trace.LLMLatency = time.Since(llmStart)
	if err != nil {
		return nil, err
	}

	if _, err := s.StoreInteractionAutoCat(ctx, userID, question, text); err != nil {
		// The answer is already in the TTL store; only indexing failed.
		trace.StoreError = err.Error()
		reqCtx.Warn("failed to store fresh answer", slog.String("error", err.Error()))
	}

	reqCtx.Debug("llm answer",
		slog.String(observability.LogFieldSource, string(source)),
		slog.Int("context_tokens", block.Tokens),
		slog.Int("context_included", len(block.Included)),
	)
	return &resolution{text: text, source: source, trace: trace}, nil
}

func (s *Service) search(ctx context.Context, userID, question string) ([]vector.Match, error) {
	searchCtx, cancel := context.WithTimeout(ctx, timeout.BackendSearchTimeout)
	defer cancel()

	matches, err := s.backend.Search(searchCtx, userID, question, s.cfg.TopK)
	if err != nil {
		return nil, errors.ServiceUnavailable("similarity search failed", err)
	}

	live := matches[:0]
	for _, m := range matches {
		if m.Interaction != nil && !m.Interaction.Invalidated {
			live = append(live, m)
		}
	}
	return live, nil
}

// bestReusable picks the highest scoring fresh match at or above the reuse
// threshold. Equal scores go to the most recent interaction.
func (s *Service) bestReusable(matches []vector.Match, now time.Time) (vector.Match, bool) {
	var best vector.Match
	found := false
	for _, m := range matches {
		if m.Score < s.cfg.SimilarityThresholdReuse || s.stale(m, now) ||
			strings.TrimSpace(m.Interaction.Answer) == "" {
			continue
		}
		if !found || m.Score > best.Score ||
			(m.Score == best.Score && m.Interaction.CreatedTs > best.Interaction.CreatedTs) {
			best = m
			found = true
		}
	}
	return best, found
}

// contextCandidates keeps matches scoring in [context, reuse). Stale matches
// above the reuse threshold can no longer be reused verbatim but still count
// as context.
func (s *Service) contextCandidates(matches []vector.Match, now time.Time) []aicontext.Candidate {
	var candidates []aicontext.Candidate
	for _, m := range matches {
		if m.Score < s.cfg.SimilarityThresholdContext {
			continue
		}
		if m.Score >= s.cfg.SimilarityThresholdReuse && !s.stale(m, now) {
			continue
		}
		candidates = append(candidates, aicontext.Candidate{
			InteractionID: m.Interaction.ID,
			Query:         m.Interaction.Query,
			Answer:        m.Interaction.Answer,
			Category:      m.Interaction.Category,
			Score:         m.Score,
			CreatedAt:     m.CreatedAt(),
		})
	}
	return candidates
}

// stale reports whether a stored answer has outlived the TTL window.
func (s *Service) stale(m vector.Match, now time.Time) bool {
	return now.Sub(m.CreatedAt()) >= s.cfg.TTL
}

// callLLM runs the LLM caller under the configured timeout. A late answer is
// discarded so that nothing is cached for a timed out call.
func (s *Service) callLLM(ctx context.Context, question, contextBlock string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.cfg.LLMTimeout)
	defer cancel()

	start := time.Now()
	text, err := s.llm.Call(callCtx, question, contextBlock)
	latency := time.Since(start)

	if ctxErr := callCtx.Err(); ctxErr != nil {
		s.metrics.RecordLLMCall(ctx, s.cfg.LLMName, latency, false)
		if ctx.Err() == nil || stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", errors.Timeout("LLM call timed out", ctxErr).WithContext("timeout", s.cfg.LLMTimeout.String())
		}
		return "", errors.ContextCanceled(ctx.Err())
	}
	if err != nil {
		s.metrics.RecordLLMCall(ctx, s.cfg.LLMName, latency, false)
		return "", errors.LLMCallFailed("LLM call failed", err).WithContext("llm_name", s.cfg.LLMName)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		s.metrics.RecordLLMCall(ctx, s.cfg.LLMName, latency, false)
		return "", errors.LLMCallFailed("LLM returned an empty answer", nil).WithContext("llm_name", s.cfg.LLMName)
	}

	s.metrics.RecordLLMCall(ctx, s.cfg.LLMName, latency, true)
	return text, nil
}

// Stats is a snapshot of engine activity.
type Stats struct {
	Metrics       *metrics.AnswerMetrics `json:"metrics"`
	CachedEntries int                    `json:"cached_entries"`
}

// Stats reports per-source counters over everything retained and the TTL
// store size.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	return s.StatsBetween(ctx, metrics.TimeRange{})
}

// StatsBetween is Stats restricted to the hourly buckets overlapping tr.
func (s *Service) StatsBetween(ctx context.Context, tr metrics.TimeRange) (*Stats, error) {
	m, err := s.metrics.GetStats(ctx, tr)
	if err != nil {
		return nil, err
	}
	return &Stats{Metrics: m, CachedEntries: s.cache.Len()}, nil
}

func validateQuestion(userID, question string) error {
	if strings.TrimSpace(userID) == "" {
		return errors.InvalidArgument("user id is required")
	}
	if cache.Normalize(question) == "" {
		return errors.InvalidArgument("question is required")
	}
	return nil
}

func contextError(err error) error {
	if stderrors.Is(err, context.DeadlineExceeded) {
		return errors.Timeout("request deadline exceeded", err)
	}
	return errors.ContextCanceled(err)
}
