package providers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dshills/prpilot/internal/config"
)

const chatAnswer = `{"choices":[{"index":0,"message":{"role":"assistant","content":"{}"}}],"usage":{"total_tokens":50}}`

func TestOpenAI_Generate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Error("Missing or wrong Authorization header")
		}
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		format, _ := body["response_format"].(map[string]any)
		if format["type"] != "json_object" {
			t.Errorf("response_format = %v, want json_object", body["response_format"])
		}
		msgs, _ := body["messages"].([]any)
		if len(msgs) != 2 {
			t.Errorf("messages = %d, want 2", len(msgs))
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, chatAnswer)
	}))
	defer server.Close()

	o, err := NewOpenAI(config.ModelConfig{Name: "gpt-test", APIKey: "test-key", BaseURL: server.URL}, server.Client())
	if err != nil {
		t.Fatalf("NewOpenAI: %v", err)
	}

	resp, err := o.Generate(context.Background(), Request{
		SystemPrompt: "system",
		UserPrompt:   "user",
		MaxTokens:    10,
		JSON:         true,
	})
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	if resp.Content != "{}" {
		t.Errorf("Content = %q, want %q", resp.Content, "{}")
	}
	if resp.TokensUsed != 50 {
		t.Errorf("TokensUsed = %d, want 50", resp.TokensUsed)
	}
}

func TestOpenAI_ErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		auth      bool
		retryable bool
	}{
		{"unauthorized", http.StatusUnauthorized, `{"error":{"message":"bad key","type":"invalid_request_error"}}`, true, false},
		{"rate limited", http.StatusTooManyRequests, `{"error":{"message":"slow down","type":"rate_limit"}}`, false, true},
		{"server error", http.StatusBadGateway, `upstream failed`, false, true},
		{"bad request", http.StatusBadRequest, `{"error":{"message":"unknown model","type":"invalid_request_error"}}`, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			}))
			defer server.Close()

			o, _ := NewOpenAI(config.ModelConfig{Name: "m", APIKey: "k", BaseURL: server.URL}, server.Client())
			_, err := o.Generate(context.Background(), Request{})
			if err == nil {
				t.Fatal("expected error")
			}
			if IsAuthError(err) != tt.auth {
				t.Errorf("IsAuthError = %v, want %v (%v)", IsAuthError(err), tt.auth, err)
			}
			if IsRetryable(err) != tt.retryable {
				t.Errorf("IsRetryable = %v, want %v (%v)", IsRetryable(err), tt.retryable, err)
			}
		})
	}
}

func TestOpenAI_MissingKey(t *testing.T) {
	_, err := NewOpenAI(config.ModelConfig{Name: "gpt-test"}, http.DefaultClient)
	if !IsAuthError(err) {
		t.Errorf("expected auth error, got %v", err)
	}
}

func TestOllama_Generate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %q, want /v1/chat/completions", r.URL.Path)
		}
		data, _ := io.ReadAll(r.Body)
		if strings.Contains(string(data), "response_format") {
			t.Error("response_format must not be sent to local servers")
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, chatAnswer)
	}))
	defer server.Close()

	for _, base := range []string{server.URL, server.URL + "/", server.URL + "/v1", server.URL + "/v1/chat/completions"} {
		o, err := NewOllama(config.ModelConfig{Name: "llama-test", BaseURL: base}, server.Client())
		if err != nil {
			t.Fatalf("NewOllama(%q): %v", base, err)
		}
		if o.Name() != "ollama" {
			t.Errorf("Name() = %q, want ollama", o.Name())
		}
		resp, err := o.Generate(context.Background(), Request{UserPrompt: "hi", JSON: true})
		if err != nil {
			t.Fatalf("Generate(%q): %v", base, err)
		}
		if resp.Content != "{}" {
			t.Errorf("Content = %q", resp.Content)
		}
	}
}
