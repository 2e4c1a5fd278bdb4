package context

import (
	"fmt"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2026, 1, 27, 10, 0, 0, 0, time.UTC)

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  int
	}{
		{"empty", "", 0},
		{"short ascii", "hi", 1},
		{"ascii", "hello world!", 3},
		{"chinese", "你好", 4},
		{"mixed", "hi 你好", 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EstimateTokens(tt.input))
		})
	}
}

func TestAssemble_NoCandidates(t *testing.T) {
	a := NewAssembler(nil)

	block := a.Assemble(nil, 100)
	assert.True(t, block.Empty())
	assert.Equal(t, "", block.Text)
	assert.Equal(t, 0, block.Tokens)
}

func TestAssemble_ZeroBudget(t *testing.T) {
	a := NewAssembler(nil)
	block := a.Assemble([]Candidate{{Query: "q", Answer: "a", Score: 0.5}}, 0)
	assert.True(t, block.Empty())
	assert.Equal(t, 1, block.Skipped)
}

func TestAssemble_OrdersByScore(t *testing.T) {
	a := NewAssembler(nil)
	candidates := []Candidate{
		{InteractionID: "low", Query: "low", Answer: "a", Score: 0.41, CreatedAt: base},
		{InteractionID: "high", Query: "high", Answer: "a", Score: 0.70, CreatedAt: base},
		{InteractionID: "mid", Query: "mid", Answer: "a", Score: 0.55, CreatedAt: base},
	}

	block := a.Assemble(candidates, 1000)
	require.Len(t, block.Included, 3)
	assert.Equal(t, "high", block.Included[0].InteractionID)
	assert.Equal(t, "mid", block.Included[1].InteractionID)
	assert.Equal(t, "low", block.Included[2].InteractionID)
	assert.True(t, strings.HasPrefix(block.Text, DefaultHeader))
	assert.Less(t, strings.Index(block.Text, "Q: high"), strings.Index(block.Text, "Q: low"))
}

func TestAssemble_TieBrokenByRecency(t *testing.T) {
	a := NewAssembler(nil)
	candidates := []Candidate{
		{InteractionID: "older", Query: "q1", Answer: "a", Score: 0.5, CreatedAt: base},
		{InteractionID: "newer", Query: "q2", Answer: "a", Score: 0.5, CreatedAt: base.Add(time.Minute)},
	}

	block := a.Assemble(candidates, 1000)
	require.Len(t, block.Included, 2)
	assert.Equal(t, "newer", block.Included[0].InteractionID)
}

func TestAssemble_SkipsOverflowingCandidate(t *testing.T) {
	// one token per rune keeps the arithmetic readable
	runeCounter := func(s string) int { return len([]rune(s)) }
	a := NewAssembler(runeCounter).WithHeader("H")

	candidates := []Candidate{
		{InteractionID: "big", Query: strings.Repeat("x", 200), Answer: "a", Score: 0.7},
		{InteractionID: "small", Query: "q", Answer: "a", Score: 0.6},
	}

	block := a.Assemble(candidates, 50)
	require.Len(t, block.Included, 1)
	assert.Equal(t, "small", block.Included[0].InteractionID)
	assert.Equal(t, 1, block.Skipped)
	assert.NotContains(t, block.Text, "xxx", "overflowing candidate must not be truncated in")
	assert.LessOrEqual(t, block.Tokens, 50)
}

func TestAssemble_HeaderCountsAgainstBudget(t *testing.T) {
	runeCounter := func(s string) int { return len([]rune(s)) }
	a := NewAssembler(runeCounter).WithHeader(strings.Repeat("h", 40))

	entry := formatCandidate(Candidate{Query: "q", Answer: "a"})
	block := a.Assemble([]Candidate{{Query: "q", Answer: "a", Score: 0.5}}, len(entry)+1)
	assert.True(t, block.Empty(), "entry alone fits but header plus entry does not")
}

func TestAssemble_IncludesCategory(t *testing.T) {
	a := NewAssembler(nil)
	block := a.Assemble([]Candidate{{Query: "I like cricket", Answer: "Nice", Category: "hobbies", Score: 0.5}}, 100)
	assert.Contains(t, block.Text, "[hobbies] Q: I like cricket")
	assert.Contains(t, block.Text, "A: Nice")
}

func TestAssemble_NeverExceedsBudget(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	a := NewAssembler(nil)

	for iter := 0; iter < 200; iter++ {
		n := rng.Intn(12)
		candidates := make([]Candidate, n)
		for i := range candidates {
			candidates[i] = Candidate{
				InteractionID: fmt.Sprintf("c%d", i),
				Query:         strings.Repeat("word ", rng.Intn(60)),
				Answer:        strings.Repeat("答", rng.Intn(30)),
				Score:         0.4 + rng.Float64()*0.35,
				CreatedAt:     base.Add(time.Duration(rng.Intn(100)) * time.Second),
			}
		}
		maxTokens := rng.Intn(300)

		block := a.Assemble(candidates, maxTokens)
		assert.LessOrEqual(t, block.Tokens, maxTokens)
		assert.Equal(t, EstimateTokens(block.Text), block.Tokens)
		assert.Equal(t, n, len(block.Included)+block.Skipped)
	}
}

func TestAssemble_Deterministic(t *testing.T) {
	a := NewAssembler(nil)
	candidates := []Candidate{
		{InteractionID: "a", Query: "one", Answer: "x", Score: 0.5, CreatedAt: base},
		{InteractionID: "b", Query: "two", Answer: "y", Score: 0.5, CreatedAt: base},
		{InteractionID: "c", Query: "three", Answer: "z", Score: 0.6, CreatedAt: base},
	}

	first := a.Assemble(candidates, 60)
	second := a.Assemble(candidates, 60)
	assert.Equal(t, first, second)
}

func TestSortCandidates_DoesNotMutateInput(t *testing.T) {
	in := []Candidate{{InteractionID: "a", Score: 0.1}, {InteractionID: "b", Score: 0.9}}
	out := SortCandidates(in)
	assert.Equal(t, "a", in[0].InteractionID)
	assert.Equal(t, "b", out[0].InteractionID)
}
