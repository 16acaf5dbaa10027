package services

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const DefaultClaudeModel = "claude-sonnet-4-5-20250929"

type ClaudeProvider struct {
	model     string
	maxTokens int64
}

func NewClaudeProvider(model string) *ClaudeProvider {
	if model == "" {
		model = DefaultClaudeModel
	}
	return &ClaudeProvider{model: model, maxTokens: 2048}
}

func (p *ClaudeProvider) Name() string { return "claude" }

func (p *ClaudeProvider) Complete(ctx context.Context, apiKey, prompt string, images []Image) (*Completion, error) {
	client := anthropic.NewClient(option.WithAPIKey(apiKey))

	blocks := make([]anthropic.ContentBlockParamUnion, 0, len(images)+1)
	for _, img := range images {
		blocks = append(blocks, anthropic.NewImageBlockBase64(img.MIMEType, base64.StdEncoding.EncodeToString(img.Data)))
	}
	blocks = append(blocks, anthropic.NewTextBlock(prompt))

	message, err := client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: p.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(blocks...),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("claude API call failed: %w", err)
	}

	var sb strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return nil, errors.New("empty response from Claude API")
	}

	return &Completion{
		Text:       sb.String(),
		TokensUsed: int(message.Usage.InputTokens + message.Usage.OutputTokens),
	}, nil
}

// NewProvider returns the extraction provider named in configuration.
func NewProvider(name, geminiModel, claudeModel string) Provider {
	if strings.EqualFold(name, "claude") {
		return NewClaudeProvider(claudeModel)
	}
	return NewGeminiProvider(geminiModel)
}
