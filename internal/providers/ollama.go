package providers

import (
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/dshills/prpilot/internal/config"
)

const defaultOllamaURL = "http://localhost:11434"

// NewOllama creates a provider for Ollama and LM Studio, which serve the
// OpenAI-compatible API locally. No API key is required by default.
func NewOllama(cfg config.ModelConfig, client *http.Client) (*OpenAI, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultOllamaURL
	}

	// Normalize URL: strip trailing /, /v1, /v1/chat/completions
	baseURL = strings.TrimRight(baseURL, "/")
	baseURL = strings.TrimSuffix(baseURL, "/v1/chat/completions")
	baseURL = strings.TrimSuffix(baseURL, "/v1")

	// the client always sends a bearer header; servers without auth ignore it
	key := cfg.APIKey
	if key == "" {
		key = "ollama"
	}
	oc := openai.DefaultConfig(key)
	oc.BaseURL = baseURL + "/v1"
	oc.HTTPClient = client

	return &OpenAI{
		name:   "ollama",
		model:  cfg.Name,
		client: openai.NewClientWithConfig(oc),
	}, nil
}
