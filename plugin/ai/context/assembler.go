package context

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// DefaultHeader opens every non-empty context block.
const DefaultHeader = "Relevant prior interactions with this user:"

// Candidate is a prior interaction eligible for inclusion as context.
type Candidate struct {
	InteractionID string
	Query         string
	Answer        string
	Category      string
	Score         float64
	CreatedAt     time.Time
}

// Block is an assembled context block.
type Block struct {
	Text     string
	Tokens   int
	Included []Candidate
	Skipped  int // candidates dropped because they would overflow the budget
}

// Empty reports whether no candidate made it into the block.
func (b *Block) Empty() bool {
	return b == nil || len(b.Included) == 0
}

// Assembler greedily packs whole candidates into a token budget.
type Assembler struct {
	counter TokenCounter
	header  string
}

// NewAssembler creates an assembler. A nil counter falls back to EstimateTokens.
func NewAssembler(counter TokenCounter) *Assembler {
	if counter == nil {
		counter = EstimateTokens
	}
	return &Assembler{
		counter: counter,
		header:  DefaultHeader,
	}
}

// WithHeader overrides the header line.
func (a *Assembler) WithHeader(header string) *Assembler {
	a.header = header
	return a
}

// Assemble orders candidates by score (ties by most recent first) and adds
// each one whole if the resulting block still fits maxTokens. A candidate
// that would overflow is skipped, and later smaller ones may still fit.
// The returned block never costs more than maxTokens.
func (a *Assembler) Assemble(candidates []Candidate, maxTokens int) *Block {
	block := &Block{}
	if len(candidates) == 0 || maxTokens <= 0 {
		block.Skipped = len(candidates)
		return block
	}

	sorted := SortCandidates(candidates)
	budget := newTokenBudget(maxTokens)

	var sb strings.Builder
	for _, c := range sorted {
		entry := formatCandidate(c)

		var next string
		if sb.Len() == 0 {
			next = a.header + "\n" + entry
		} else {
			next = sb.String() + "\n" + entry
		}

		cost := a.counter(next)
		if !budget.fits(cost) {
			block.Skipped++
			continue
		}

		sb.Reset()
		sb.WriteString(next)
		block.Included = append(block.Included, c)
	}

	if len(block.Included) > 0 {
		block.Text = sb.String()
		block.Tokens = a.counter(block.Text)
	}
	return block
}

// SortCandidates returns a copy ordered by score descending, then CreatedAt
// descending, then InteractionID for a stable result.
func SortCandidates(candidates []Candidate) []Candidate {
	sorted := make([]Candidate, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Score != sorted[j].Score {
			return sorted[i].Score > sorted[j].Score
		}
		if !sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
		}
		return sorted[i].InteractionID < sorted[j].InteractionID
	})
	return sorted
}

func formatCandidate(c Candidate) string {
	var sb strings.Builder
	sb.WriteString("- ")
	if c.Category != "" {
		fmt.Fprintf(&sb, "[%s] ", c.Category)
	}
	fmt.Fprintf(&sb, "Q: %s\n  A: %s", strings.TrimSpace(c.Query), strings.TrimSpace(c.Answer))
	return sb.String()
}
