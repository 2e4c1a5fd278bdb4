package smartcache

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/smartcache/plugin/ai/cache"
	"github.com/hrygo/smartcache/plugin/ai/vector"
	"github.com/hrygo/smartcache/store"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 27, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// stubBackend scores by a table keyed on normalized texts. A literal repeat
// always scores 1.
type stubBackend struct {
	mu     sync.Mutex
	now    func() time.Time
	seq    int
	items  []*store.Interaction
	scores map[string]map[string]float64

	searchErr     error
	addErr        error
	invalidateErr error

	searches int
	adds     int
}

var _ vector.Backend = (*stubBackend)(nil)

func newStubBackend(now func() time.Time) *stubBackend {
	return &stubBackend{now: now, scores: map[string]map[string]float64{}}
}

// setScore fixes the similarity between a question and a stored query.
func (b *stubBackend) setScore(question, storedQuery string, score float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	q := cache.Normalize(question)
	if b.scores[q] == nil {
		b.scores[q] = map[string]float64{}
	}
	b.scores[q][cache.Normalize(storedQuery)] = score
}

func (b *stubBackend) Add(_ context.Context, interaction *store.Interaction) (*store.Interaction, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.adds++
	if b.addErr != nil {
		return nil, b.addErr
	}
	stored := *interaction
	if stored.ID == "" {
		b.seq++
		stored.ID = fmt.Sprintf("ix-%d", b.seq)
	}
	if stored.CreatedTs == 0 {
		stored.CreatedTs = b.now().UnixMilli()
	}
	b.items = append(b.items, &stored)
	out := stored
	return &out, nil
}

func (b *stubBackend) Search(_ context.Context, userID, query string, topK int) ([]vector.Match, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.searches++
	if b.searchErr != nil {
		return nil, b.searchErr
	}

	q := cache.Normalize(query)
	var matches []vector.Match
	for _, it := range b.items {
		if it.UserID != userID || it.Invalidated {
			continue
		}
		score := b.scores[q][cache.Normalize(it.Query)]
		if cache.Normalize(it.Query) == q {
			score = 1
		}
		if score <= 0 {
			continue
		}
		copied := *it
		matches = append(matches, vector.Match{Interaction: &copied, Score: score})
	}
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].Interaction.CreatedTs > matches[j].Interaction.CreatedTs
	})
	if topK > 0 && len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

func (b *stubBackend) Invalidate(_ context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.invalidateErr != nil {
		return b.invalidateErr
	}
	for _, it := range b.items {
		if it.ID == id {
			it.Invalidated = true
		}
	}
	return nil
}

func (b *stubBackend) get(id string) *store.Interaction {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, it := range b.items {
		if it.ID == id {
			copied := *it
			return &copied
		}
	}
	return nil
}

func (b *stubBackend) byQuery(query string) []*store.Interaction {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []*store.Interaction
	for _, it := range b.items {
		if cache.Normalize(it.Query) == cache.Normalize(query) {
			copied := *it
			out = append(out, &copied)
		}
	}
	return out
}

func (b *stubBackend) counts() (searches, adds int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.searches, b.adds
}

// stubLLM counts calls and records the context block of each one.
type stubLLM struct {
	mu       sync.Mutex
	calls    int
	contexts []string

	reply   func(question string) string
	err     error
	block   bool          // wait for the context to end
	release chan struct{} // wait for release when set
}

var _ LLMCaller = (*stubLLM)(nil)

func newStubLLM() *stubLLM {
	return &stubLLM{reply: func(q string) string { return "answer: " + q }}
}

func (l *stubLLM) Call(ctx context.Context, question, contextBlock string) (string, error) {
	l.mu.Lock()
	l.calls++
	l.contexts = append(l.contexts, contextBlock)
	release := l.release
	l.mu.Unlock()

	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if l.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if l.err != nil {
		return "", l.err
	}
	return l.reply(question), nil
}

func (l *stubLLM) Calls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

func (l *stubLLM) lastContext() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.contexts) == 0 {
		return ""
	}
	return l.contexts[len(l.contexts)-1]
}

type MockCategorizer struct {
	mock.Mock
}

func (m *MockCategorizer) Categorize(ctx context.Context, text string) (string, error) {
	args := m.Called(ctx, text)
	return args.String(0), args.Error(1)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.TTL = time.Minute
	return cfg
}

func newTestService(t *testing.T, cfg Config, deps Dependencies) *Service {
	t.Helper()
	if deps.Logger == nil {
		deps.Logger = discardLogger()
	}
	svc, err := NewService(cfg, deps)
	require.NoError(t, err)
	t.Cleanup(svc.Close)
	return svc
}
