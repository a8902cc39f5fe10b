package generate

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sashabaranov/go-openai"
)

// DefaultModel is used when OpenAIConfig.Model is empty.
const DefaultModel = "gpt-4o-mini"

// OpenAIConfig configures the OpenAI generator. BaseURL overrides the API
// endpoint for compatible servers.
type OpenAIConfig struct {
	APIKey  string `yaml:"api_key" mapstructure:"api_key"`
	Model   string `yaml:"model" mapstructure:"model"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// OpenAI generates answers with one chat completion that returns a numbered
// list.
type OpenAI struct {
	client *openai.Client
	model  string
	logger *slog.Logger
}

var _ Generator = (*OpenAI)(nil)

// NewOpenAI builds a generator from cfg. A nil logger discards logs.
func NewOpenAI(cfg OpenAIConfig, logger *slog.Logger) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is not set")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &OpenAI{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
		logger: logger,
	}, nil
}

// Generate implements Generator. At most req.Count answers are returned.
func (o *OpenAI) Generate(ctx context.Context, req Request) ([]string, error) {
	req, err := req.Normalize()
	if err != nil {
		return nil, err
	}

	o.logger.Debug("generating answers", "model", o.model, "count", req.Count, "length", req.Length)
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: SystemPrompt(req)},
			{Role: openai.ChatMessageRoleUser, Content: UserPrompt(req)},
		},
		MaxTokens:   req.Length.profile().tokens * req.Count,
		Temperature: 0.9,
	})
	if err != nil {
		return nil, fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, ErrNoAnswers
	}

	answers := SplitNumbered(resp.Choices[0].Message.Content)
	if len(answers) == 0 {
		return nil, ErrNoAnswers
	}
	if len(answers) > req.Count {
		answers = answers[:req.Count]
	}
	o.logger.Debug("received answers", "count", len(answers), "finish_reason", resp.Choices[0].FinishReason)
	return answers, nil
}
