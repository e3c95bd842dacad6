package llm

import (
	"context"
	"errors"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
)

const DefaultOpenAIModel = "gpt-4o-mini"

// ChatCompleter is the slice of the OpenAI client the caller needs.
type ChatCompleter interface {
	New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

type OpenAIClientCreator func(cfg Config) ChatCompleter

func defaultOpenAICreator(cfg Config) ChatCompleter {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		// Retries belong to the calling layer.
		option.WithMaxRetries(0),
	}
	if endpoint := strings.TrimSpace(cfg.Endpoint); endpoint != "" {
		if !strings.HasSuffix(endpoint, "/") {
			endpoint += "/"
		}
		opts = append(opts, option.WithBaseURL(endpoint))
	}
	c := openai.NewClient(opts...)
	return &c.Chat.Completions
}

var newOpenAIClient OpenAIClientCreator = defaultOpenAICreator

// OpenAICaller talks to any OpenAI-compatible chat completions endpoint.
type OpenAICaller struct {
	completions ChatCompleter
	model       string
}

func NewOpenAICaller(cfg Config) *OpenAICaller {
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultOpenAIModel
	}
	return &OpenAICaller{completions: newOpenAIClient(cfg), model: model}
}

func (c *OpenAICaller) ModelName() string { return c.model }

func (c *OpenAICaller) Generate(ctx context.Context, req Request) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: shared.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(req.Prompt),
		},
		Temperature: openai.Float(req.Temperature),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}

	completion, err := c.completions.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return "", &StatusError{StatusCode: apiErr.StatusCode, Message: apiErr.Error()}
		}
		return "", err
	}
	if len(completion.Choices) == 0 {
		return "", ErrNoChoices
	}
	content := strings.TrimSpace(completion.Choices[0].Message.Content)
	if content == "" {
		return "", ErrEmptyReply
	}
	return content, nil
}
