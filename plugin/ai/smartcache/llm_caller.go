package smartcache

import (
	"context"
	"strings"

	"github.com/hrygo/smartcache/internal/errors"
	"github.com/hrygo/smartcache/plugin/ai"
)

// LLMCaller produces the answer for a question the cache could not serve.
// contextBlock is empty on a cold call.
type LLMCaller interface {
	Call(ctx context.Context, question, contextBlock string) (string, error)
}

// LLMCallerFunc adapts a function to LLMCaller.
type LLMCallerFunc func(ctx context.Context, question, contextBlock string) (string, error)

// Call implements LLMCaller.
func (f LLMCallerFunc) Call(ctx context.Context, question, contextBlock string) (string, error) {
	return f(ctx, question, contextBlock)
}

const answerSystemPrompt = "You are a helpful assistant. Answer the user's question concisely and accurately."

const contextInstruction = "Use the prior interactions below only when they are relevant to the question. " +
	"Do not mention that you were given them."

// ChatCaller answers through a chat-completion LLMService.
type ChatCaller struct {
	llm  ai.LLMService
	name string
}

var _ LLMCaller = (*ChatCaller)(nil)

// NewChatCaller wraps llm. name identifies the provider in logs and metrics.
func NewChatCaller(llm ai.LLMService, name string) *ChatCaller {
	return &ChatCaller{llm: llm, name: name}
}

// Name returns the provider name.
func (c *ChatCaller) Name() string {
	return c.name
}

// LLM returns the chat service behind the caller, for collaborators such as
// the LLM categorizer that share the provider.
func (c *ChatCaller) LLM() ai.LLMService {
	return c.llm
}

// Call implements LLMCaller.
func (c *ChatCaller) Call(ctx context.Context, question, contextBlock string) (string, error) {
	messages := ai.FormatMessages(buildSystemPrompt(contextBlock), question, nil)
	answer, err := c.llm.Chat(ctx, messages)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(answer), nil
}

func buildSystemPrompt(contextBlock string) string {
	if contextBlock == "" {
		return answerSystemPrompt
	}
	var sb strings.Builder
	sb.WriteString(answerSystemPrompt)
	sb.WriteString("\n\n")
	sb.WriteString(contextInstruction)
	sb.WriteString("\n\n")
	sb.WriteString(contextBlock)
	return sb.String()
}

// NewLLMCaller selects the caller for cfg.Provider. Credentials have already
// been resolved into cfg by ai.NewConfigFromProfile.
func NewLLMCaller(cfg *ai.LLMConfig) (*ChatCaller, error) {
	if cfg == nil {
		return nil, errors.Configuration("llm config is required")
	}
	switch cfg.Provider {
	case ai.ProviderOpenAI, ai.ProviderDeepSeek, ai.ProviderSiliconFlow, ai.ProviderOllama:
	default:
		return nil, errors.Configuration("unsupported llm_name: " + cfg.Provider)
	}

	llm, err := ai.NewLLMService(cfg)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfiguration, "failed to create LLM service")
	}
	return NewChatCaller(llm, cfg.Provider), nil
}
