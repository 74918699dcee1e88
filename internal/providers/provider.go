package providers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/dshills/prpilot/internal/config"
)

// Request contains the data sent to a model for one generation.
type Request struct {
	SystemPrompt string
	UserPrompt   string
	MaxTokens    int
	Temperature  float64
	// JSON asks the provider for a JSON-only answer when it supports a
	// response format switch.
	JSON bool
}

// Response contains the raw answer from a model.
type Response struct {
	Content    string
	TokensUsed int
}

// Model is the provider abstraction. Generate performs exactly one request
// and classifies failures as *AuthError, *RequestError or *TransientError.
type Model interface {
	Generate(ctx context.Context, req Request) (Response, error)
	Name() string
}

// Info describes a supported provider.
type Info struct {
	Name         string
	DefaultModel string
	KeyEnv       []string
}

// Known lists the supported providers in display order.
var Known = []Info{
	{Name: "gemini", DefaultModel: "gemini-2.5-flash-lite", KeyEnv: config.CredentialEnv("gemini")},
	{Name: "openai", DefaultModel: "gpt-4o-mini", KeyEnv: config.CredentialEnv("openai")},
	{Name: "anthropic", DefaultModel: "claude-sonnet-4-20250514", KeyEnv: config.CredentialEnv("anthropic")},
	{Name: "ollama", DefaultModel: "llama3.1", KeyEnv: config.CredentialEnv("ollama")},
}

// Lookup returns the Info for a provider name, accepting the aliases
// "google" and "lmstudio".
func Lookup(name string) (Info, bool) {
	switch name {
	case "google":
		name = "gemini"
	case "lmstudio":
		name = "ollama"
	}
	for _, info := range Known {
		if info.Name == name {
			return info, true
		}
	}
	return Info{}, false
}

// New creates a model client from configuration.
func New(cfg config.ModelConfig) (Model, error) {
	info, ok := Lookup(cfg.Provider)
	if !ok {
		return nil, fmt.Errorf("unknown provider: %s", cfg.Provider)
	}
	if cfg.Name == "" {
		cfg.Name = info.DefaultModel
	}
	client := &http.Client{}

	var (
		m   Model
		err error
	)
	switch info.Name {
	case "gemini":
		m, err = NewGemini(cfg, client)
	case "openai":
		m, err = NewOpenAI(cfg, client)
	case "anthropic":
		m, err = NewAnthropic(cfg, client)
	default:
		m, err = NewOllama(cfg, client)
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

func maxTokens(n int) int {
	if n <= 0 {
		return 4096
	}
	return n
}
