// Package genai provides language-model completions using the OpenAI API.
package genai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// DefaultModel is used when no model is configured.
const DefaultModel = openai.ChatModelGPT4oMini

var (
	// ErrNoAPIKey indicates no OpenAI API key was provided.
	ErrNoAPIKey = errors.New("OPENAI_API_KEY not set")
	// ErrNoChoicesReturned indicates the completion carried no choices.
	ErrNoChoicesReturned = errors.New("no choices returned")
	// ErrEmptyContent indicates the first choice had no text.
	ErrEmptyContent = errors.New("empty completion content")
)

// chatService defines minimal interface for chat completions.
type chatService interface {
	Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error)
}

// completionsService adapts the SDK's completion service to chatService.
type completionsService struct {
	svc *openai.ChatCompletionService
}

func (c completionsService) Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error) {
	resp, err := c.svc.New(ctx, params)
	if err != nil {
		return openai.ChatCompletion{}, err
	}
	return *resp, nil
}

// Opts holds configuration for the GenAI client.
type Opts struct {
	APIKey  string
	Model   string
	BaseURL string
}

// Option configures the GenAI client.
type Option func(*Opts)

// WithAPIKey sets the OpenAI API key.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithModel overrides the chat model.
func WithModel(model string) Option {
	return func(o *Opts) { o.Model = model }
}

// WithBaseURL points the client at an OpenAI-compatible endpoint.
func WithBaseURL(url string) Option {
	return func(o *Opts) { o.BaseURL = url }
}

// Client wraps the OpenAI chat completion service.
type Client struct {
	chat  chatService
	model string
}

// NewClient initializes a new GenAI client. The API key comes from
// WithAPIKey, falling back to the OPENAI_API_KEY environment variable.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	if cfg.Model == "" {
		cfg.Model = string(DefaultModel)
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.BaseURL))
	}
	cli := openai.NewClient(reqOpts...)
	slog.Debug("genai.NewClient: client created", "model", cfg.Model, "base_url_set", cfg.BaseURL != "")
	return &Client{chat: completionsService{svc: &cli.Chat.Completions}, model: cfg.Model}, nil
}

// Request is a single system+user completion request.
type Request struct {
	SystemPrompt string
	UserPrompt   string
	Temperature  float64
	MaxTokens    int64
}

// Generate returns the text of the first completion choice.
func (c *Client) Generate(ctx context.Context, req Request) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(req.SystemPrompt),
			openai.UserMessage(req.UserPrompt),
		},
		Temperature: openai.Float(req.Temperature),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(req.MaxTokens)
	}

	start := time.Now()
	resp, err := c.chat.Create(ctx, params)
	if err != nil {
		slog.Warn("genai.Generate: completion failed", "error", err, "model", c.model, "elapsed", time.Since(start))
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoChoicesReturned
	}
	content := resp.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return "", ErrEmptyContent
	}
	slog.Debug("genai.Generate: completion succeeded", "model", c.model, "elapsed", time.Since(start), "length", len(content))
	return content, nil
}

// GeneratePrompt generates a response based on the provided system and user prompts.
func (c *Client) GeneratePrompt(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return c.Generate(ctx, Request{SystemPrompt: systemPrompt, UserPrompt: userPrompt})
}
