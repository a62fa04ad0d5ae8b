package genai

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/openai/openai-go"
)

// mockChatService implements chatService for testing.
type mockChatService struct {
	resp   openai.ChatCompletion
	err    error
	params openai.ChatCompletionNewParams
}

func (m *mockChatService) Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error) {
	m.params = params
	return m.resp, m.err
}

func completion(content string) openai.ChatCompletion {
	return openai.ChatCompletion{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: content}},
		},
	}
}

func TestGenerate_Success(t *testing.T) {
	mock := &mockChatService{resp: completion(`{"severity":"mild"}`)}
	client := &Client{chat: mock, model: "test-model"}
	out, err := client.Generate(context.Background(), Request{SystemPrompt: "sys", UserPrompt: "usr", Temperature: 0.3, MaxTokens: 500})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if out != `{"severity":"mild"}` {
		t.Errorf("unexpected output %q", out)
	}
	if string(mock.params.Model) != "test-model" {
		t.Errorf("expected model test-model, got %s", mock.params.Model)
	}
	if len(mock.params.Messages) != 2 {
		t.Errorf("expected system and user messages, got %d", len(mock.params.Messages))
	}
	if mock.params.Temperature.Value != 0.3 {
		t.Errorf("expected temperature 0.3, got %v", mock.params.Temperature.Value)
	}
	if mock.params.MaxTokens.Value != 500 {
		t.Errorf("expected max tokens 500, got %v", mock.params.MaxTokens.Value)
	}
}

func TestGeneratePrompt_ServiceError(t *testing.T) {
	client := &Client{chat: &mockChatService{err: errors.New("service failure")}, model: "m"}
	_, err := client.GeneratePrompt(context.Background(), "sys", "usr")
	if err == nil || !strings.Contains(err.Error(), "service failure") {
		t.Errorf("expected service failure error, got %v", err)
	}
}

func TestGenerate_NoChoices(t *testing.T) {
	client := &Client{chat: &mockChatService{resp: openai.ChatCompletion{}}, model: "m"}
	_, err := client.Generate(context.Background(), Request{})
	if !errors.Is(err, ErrNoChoicesReturned) {
		t.Errorf("expected ErrNoChoicesReturned, got %v", err)
	}
}

func TestGenerate_EmptyContent(t *testing.T) {
	client := &Client{chat: &mockChatService{resp: completion("  \n")}, model: "m"}
	_, err := client.Generate(context.Background(), Request{})
	if !errors.Is(err, ErrEmptyContent) {
		t.Errorf("expected ErrEmptyContent, got %v", err)
	}
}

func TestNewClient_NoKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	_, err := NewClient()
	if !errors.Is(err, ErrNoAPIKey) {
		t.Errorf("expected ErrNoAPIKey, got %v", err)
	}
}

func TestNewClient_WithKey(t *testing.T) {
	cli, err := NewClient(WithAPIKey("test-key"), WithModel("gpt-4o"), WithBaseURL("http://localhost:1"))
	if err != nil {
		t.Fatalf("expected no error with API key, got %v", err)
	}
	if cli == nil {
		t.Fatal("expected client instance, got nil")
	}
	if cli.model != "gpt-4o" {
		t.Errorf("expected model gpt-4o, got %s", cli.model)
	}
}

func TestNewClient_EnvKeyAndDefaultModel(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "env-key")
	cli, err := NewClient()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cli.model != string(DefaultModel) {
		t.Errorf("expected default model, got %s", cli.model)
	}
}
