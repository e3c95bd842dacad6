package llm

import (
	"context"
	"errors"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const (
	DefaultAnthropicModel = anthropic.ModelClaudeSonnet4_20250514
	defaultMaxTokens      = 4096
)

const systemPrompt = "You are a senior QA engineer who writes test cases from product requirement documents. Respond with strict JSON only."

type AnthropicMessager interface {
	New(ctx context.Context, params anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

type AnthropicClientCreator func(cfg Config) AnthropicMessager

func defaultAnthropicCreator(cfg Config) AnthropicMessager {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey), option.WithMaxRetries(0)}
	if endpoint := strings.TrimSpace(cfg.Endpoint); endpoint != "" {
		opts = append(opts, option.WithBaseURL(endpoint))
	}
	c := anthropic.NewClient(opts...)
	return &c.Messages
}

var newAnthropicClient AnthropicClientCreator = defaultAnthropicCreator

type AnthropicCaller struct {
	messages AnthropicMessager
	model    anthropic.Model
}

func NewAnthropicCaller(cfg Config) *AnthropicCaller {
	model := anthropic.Model(strings.TrimSpace(cfg.Model))
	if model == "" {
		model = DefaultAnthropicModel
	}
	return &AnthropicCaller{messages: newAnthropicClient(cfg), model: model}
}

func (a *AnthropicCaller) ModelName() string { return string(a.model) }

func (a *AnthropicCaller) Generate(ctx context.Context, req Request) (string, error) {
	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	resp, err := a.messages.New(ctx, anthropic.MessageNewParams{
		Model:       a.model,
		MaxTokens:   maxTokens,
		System:      []anthropic.TextBlockParam{{Text: systemPrompt}},
		Messages:    []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt))},
		Temperature: anthropic.Float(req.Temperature),
	})
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return "", &StatusError{StatusCode: apiErr.StatusCode, Message: apiErr.Error()}
		}
		return "", err
	}
	var sb strings.Builder
	for _, b := range resp.Content {
		if b.Type == "text" {
			sb.WriteString(b.Text)
		}
	}
	out := strings.TrimSpace(sb.String())
	if out == "" {
		return "", ErrEmptyReply
	}
	return out, nil
}
