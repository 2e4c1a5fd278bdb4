package category

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hrygo/smartcache/plugin/ai"
)

// LLMClassifier asks the LLM to pick one label and report its confidence.
type LLMClassifier struct {
	client              ai.LLMService
	labels              []string
	confidenceThreshold float32
}

// NewLLMClassifier creates a new LLM classifier over a fixed label set.
func NewLLMClassifier(client ai.LLMService, labels []string) *LLMClassifier {
	return &LLMClassifier{
		client:              client,
		labels:              labels,
		confidenceThreshold: 0.5,
	}
}

// ClassificationPrompt is the prompt template for zero-shot categorization.
const ClassificationPrompt = `You are a classification assistant. Assign the text below to exactly one category.

Categories:
%s
Text: %s

Answer in JSON with these fields:
- label: one of the categories above
- confidence: a number between 0 and 1
- reasoning: one short sentence

Output only the JSON.`

// Categorize classifies text. An unparsable answer or a low confidence yields
// Uncategorized without error; a failed LLM call returns the error.
func (c *LLMClassifier) Categorize(ctx context.Context, text string) (string, error) {
	if c.client == nil {
		return Uncategorized, nil
	}

	var sb strings.Builder
	for _, l := range c.labels {
		fmt.Fprintf(&sb, "- %s\n", l)
	}
	prompt := fmt.Sprintf(ClassificationPrompt, sb.String(), text)

	response, err := c.client.Chat(ctx, []ai.Message{ai.UserMessage(prompt)})
	if err != nil {
		return "", fmt.Errorf("LLM classification failed: %w", err)
	}

	resp, err := parseResponse(response)
	if err != nil {
		return Uncategorized, nil
	}

	label := strings.ToLower(strings.TrimSpace(resp.Label))
	if !labelSet(c.labels)[label] || float32(resp.Confidence) < c.confidenceThreshold {
		return Uncategorized, nil
	}
	return label, nil
}

// llmResponse is the expected JSON structure from LLM.
type llmResponse struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

// parseResponse parses the LLM JSON response, tolerating a markdown fence.
func parseResponse(response string) (*llmResponse, error) {
	response = strings.TrimSpace(response)
	if strings.HasPrefix(response, "```") {
		lines := strings.Split(response, "\n")
		var jsonLines []string
		inJSON := false
		for _, line := range lines {
			if strings.HasPrefix(line, "```") {
				inJSON = !inJSON
				continue
			}
			if inJSON {
				jsonLines = append(jsonLines, line)
			}
		}
		response = strings.Join(jsonLines, "\n")
	}

	var resp llmResponse
	if err := json.Unmarshal([]byte(response), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
