package ai

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// ClaudeProvider implements Provider using Anthropic's Claude
type ClaudeProvider struct {
	client *anthropic.Client
	model  string
}

// NewClaudeProvider creates a new Claude provider
func NewClaudeProvider(model string) (*ClaudeProvider, error) {
	key, err := apiKey("WEBSCENARIO_ANTHROPIC_KEY", "ANTHROPIC_API_KEY")
	if err != nil {
		return nil, err
	}
	client := anthropic.NewClient(option.WithAPIKey(key))

	if model == "" {
		model = string(anthropic.ModelClaudeSonnet4_20250514)
	}
	return &ClaudeProvider{client: &client, model: model}, nil
}

func (p *ClaudeProvider) Name() string { return "claude" }

func (p *ClaudeProvider) Complete(ctx context.Context, system, user string) (string, error) {
	resp, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: 2048,
		System: []anthropic.TextBlockParam{
			{Text: system},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("Claude API error: %w", err)
	}

	for _, block := range resp.Content {
		if block.Type == "text" && block.Text != "" {
			return block.Text, nil
		}
	}
	return "", fmt.Errorf("empty response from Claude")
}
