package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dshills/prpilot/internal/config"
)

func TestAnthropic_Generate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if r.Header.Get("x-api-key") != "test-key" {
			t.Error("Missing API key header")
		}
		if r.Header.Get("anthropic-version") != anthropicAPIVersion {
			t.Error("Missing anthropic-version header")
		}
		var req anthropicRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.System != "system" || req.MaxTokens != 10 {
			t.Errorf("unexpected request: %+v", req)
		}

		resp := anthropicResponse{
			Content: []anthropicBlock{
				{Type: "text", Text: "{}"},
			},
			Usage: anthropicUsage{InputTokens: 100, OutputTokens: 10},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	a, err := NewAnthropic(config.ModelConfig{Name: "claude-test", APIKey: "test-key", BaseURL: server.URL}, server.Client())
	if err != nil {
		t.Fatalf("NewAnthropic: %v", err)
	}

	resp, err := a.Generate(context.Background(), Request{
		SystemPrompt: "system",
		UserPrompt:   "user",
		MaxTokens:    10,
	})
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	if resp.Content != "{}" {
		t.Errorf("Content = %q, want %q", resp.Content, "{}")
	}
	if resp.TokensUsed != 110 {
		t.Errorf("TokensUsed = %d, want 110", resp.TokensUsed)
	}
}

func TestAnthropic_AuthError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"invalid x-api-key"}}`))
	}))
	defer server.Close()

	a, _ := NewAnthropic(config.ModelConfig{Name: "m", APIKey: "bad", BaseURL: server.URL}, server.Client())
	_, err := a.Generate(context.Background(), Request{})
	if !IsAuthError(err) {
		t.Errorf("expected auth error, got %v", err)
	}
}

func TestAnthropic_NoTextContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"content":[{"type":"tool_use"}]}`))
	}))
	defer server.Close()

	a, _ := NewAnthropic(config.ModelConfig{Name: "m", APIKey: "k", BaseURL: server.URL}, server.Client())
	_, err := a.Generate(context.Background(), Request{})
	if !IsRetryable(err) {
		t.Errorf("expected retryable error, got %v", err)
	}
}
