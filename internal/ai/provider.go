// Package ai drafts scenario steps for a crawled page with an LLM.
package ai

import (
	"context"
	"fmt"
	"os"
)

// Provider sends one system + user exchange to a model and returns its text
// reply.
type Provider interface {
	Name() string
	Complete(ctx context.Context, system, user string) (string, error)
}

// NewProvider creates a new AI provider based on the provider name
func NewProvider(name, model string) (Provider, error) {
	switch name {
	case "claude", "anthropic":
		return NewClaudeProvider(model)
	case "openai", "gpt":
		return NewOpenAIProvider(model)
	default:
		return nil, fmt.Errorf("unknown provider: %s (supported: claude, openai)", name)
	}
}

// apiKey returns the first non-empty environment variable of names.
func apiKey(names ...string) (string, error) {
	for _, n := range names {
		if v := os.Getenv(n); v != "" {
			return v, nil
		}
	}
	return "", fmt.Errorf("%s or %s environment variable required", names[0], names[len(names)-1])
}
