package anyllm

import (
	"strings"
	"testing"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/opora-ua/opora/pkg/provider/chat"
)

func TestNew_RejectsEmptyProviderName(t *testing.T) {
	t.Parallel()
	if _, err := New("", "gpt-4o"); err == nil {
		t.Fatal("expected error for empty provider name, got nil")
	}
}

func TestNew_RejectsEmptyModel(t *testing.T) {
	t.Parallel()
	if _, err := New("openai", ""); err == nil {
		t.Fatal("expected error for empty model, got nil")
	}
}

func TestNew_UnsupportedProvider(t *testing.T) {
	t.Parallel()
	_, err := New("fakecloud", "some-model", anyllmlib.WithAPIKey("dummy"))
	if err == nil {
		t.Fatal("expected error for unsupported provider, got nil")
	}
	if !strings.Contains(err.Error(), "fakecloud") {
		t.Errorf("error should name the provider, got: %v", err)
	}
}

func TestNew_SupportedProviders(t *testing.T) {
	t.Parallel()
	for _, name := range []string{
		"openai", "anthropic", "gemini", "ollama",
		"deepseek", "mistral", "groq", "llamacpp", "llamafile",
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			if _, err := New(name, "some-model", anyllmlib.WithAPIKey("dummy")); err != nil {
				t.Errorf("New(%q) error = %v", name, err)
			}
		})
	}
}

func TestNew_ProviderNameIsCaseInsensitive(t *testing.T) {
	t.Parallel()
	if _, err := New("OpenAI", "gpt-4o", anyllmlib.WithAPIKey("sk-test")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestConstructorShortcuts(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		ctor func() (*Provider, error)
	}{
		{"NewOpenAI", func() (*Provider, error) { return NewOpenAI("gpt-4o", anyllmlib.WithAPIKey("sk-test")) }},
		{"NewGemini", func() (*Provider, error) { return NewGemini("gemini-2.0-flash", anyllmlib.WithAPIKey("test")) }},
		{"NewOllama", func() (*Provider, error) { return NewOllama("llama3") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p, err := tt.ctor()
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if p == nil {
				t.Fatal("constructor returned nil provider")
			}
		})
	}
}

func TestBuildParams(t *testing.T) {
	t.Parallel()
	p, err := NewOpenAI("gpt-4o", anyllmlib.WithAPIKey("sk-test"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	params := p.buildParams(chat.Request{
		SystemPrompt: "You help people find social services.",
		Messages: []chat.Message{
			{Role: "user", Content: "Where can I get legal aid?"},
		},
		Temperature: 0.4,
		MaxTokens:   512,
		Tools: []chat.ToolDefinition{
			{Name: "search_organizations", Description: "Search the directory"},
		},
	})

	if params.Model != "gpt-4o" {
		t.Errorf("model = %q", params.Model)
	}
	if len(params.Messages) != 2 {
		t.Fatalf("got %d messages, want 2 (system + user)", len(params.Messages))
	}
	if params.Messages[0].Role != anyllmlib.RoleSystem {
		t.Errorf("first message role = %q, want system", params.Messages[0].Role)
	}
	if params.Temperature == nil || *params.Temperature != 0.4 {
		t.Errorf("temperature = %v, want 0.4", params.Temperature)
	}
	if params.MaxTokens == nil || *params.MaxTokens != 512 {
		t.Errorf("max tokens = %v, want 512", params.MaxTokens)
	}
	if len(params.Tools) != 1 || params.Tools[0].Function.Name != "search_organizations" {
		t.Errorf("tools = %+v", params.Tools)
	}
}

func TestBuildParams_ZeroTemperatureOmitted(t *testing.T) {
	t.Parallel()
	p, err := NewOpenAI("gpt-4o", anyllmlib.WithAPIKey("sk-test"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	params := p.buildParams(chat.Request{
		Messages: []chat.Message{{Role: "user", Content: "hi"}},
	})
	if params.Temperature != nil {
		t.Errorf("temperature should be nil for zero value, got %v", *params.Temperature)
	}
	if params.MaxTokens != nil {
		t.Errorf("max tokens should be nil for zero value, got %v", *params.MaxTokens)
	}
}

func TestConvertMessage_ToolCalls(t *testing.T) {
	t.Parallel()
	msg := convertMessage(chat.Message{
		Role: "assistant",
		ToolCalls: []chat.ToolCall{
			{ID: "call-1", Name: "search_organizations", Arguments: `{"query":"legal"}`},
		},
	})

	if len(msg.ToolCalls) != 1 {
		t.Fatalf("got %d tool calls, want 1", len(msg.ToolCalls))
	}
	tc := msg.ToolCalls[0]
	if tc.ID != "call-1" || tc.Type != "function" {
		t.Errorf("tool call = %+v", tc)
	}
	if tc.Function.Name != "search_organizations" {
		t.Errorf("function name = %q", tc.Function.Name)
	}
}

func TestConvertMessage_ToolResult(t *testing.T) {
	t.Parallel()
	msg := convertMessage(chat.Message{
		Role:       "tool",
		Content:    `{"total":1}`,
		ToolCallID: "call-1",
	})
	if msg.Role != "tool" || msg.ToolCallID != "call-1" {
		t.Errorf("message = %+v", msg)
	}
}
