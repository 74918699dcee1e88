package providers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/dshills/prpilot/internal/config"
)

const (
	anthropicAPIURL     = "https://api.anthropic.com/v1/messages"
	anthropicAPIVersion = "2023-06-01"
)

// Anthropic implements the Model interface for Anthropic's Messages API.
type Anthropic struct {
	apiKey string
	model  string
	url    string
	client *http.Client
}

// NewAnthropic creates a new Anthropic provider.
func NewAnthropic(cfg config.ModelConfig, client *http.Client) (*Anthropic, error) {
	if cfg.APIKey == "" {
		return nil, &AuthError{Provider: "anthropic", Message: "ANTHROPIC_API_KEY is not set"}
	}
	url := anthropicAPIURL
	if cfg.BaseURL != "" {
		url = strings.TrimRight(cfg.BaseURL, "/") + "/v1/messages"
	}
	return &Anthropic{apiKey: cfg.APIKey, model: cfg.Name, url: url, client: client}, nil
}

func (a *Anthropic) Name() string { return "anthropic" }

func (a *Anthropic) Generate(ctx context.Context, req Request) (Response, error) {
	body := anthropicRequest{
		Model:     a.model,
		MaxTokens: maxTokens(req.MaxTokens),
		System:    req.SystemPrompt,
		Messages: []anthropicMessage{
			{Role: "user", Content: req.UserPrompt},
		},
	}
	if req.Temperature > 0 {
		body.Temperature = &req.Temperature
	}

	headers := map[string]string{
		"x-api-key":         a.apiKey,
		"anthropic-version": anthropicAPIVersion,
	}

	var result anthropicResponse
	if err := postJSON(ctx, a.client, a.Name(), a.url, headers, body, &result); err != nil {
		return Response{}, err
	}

	var content strings.Builder
	for _, block := range result.Content {
		if block.Type == "text" {
			content.WriteString(block.Text)
		}
	}
	if content.Len() == 0 {
		return Response{}, &TransientError{Provider: a.Name(), StatusCode: http.StatusOK, Err: errors.New("no text content in response")}
	}

	return Response{
		Content:    content.String(),
		TokensUsed: result.Usage.InputTokens + result.Usage.OutputTokens,
	}, nil
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	System      string             `json:"system,omitempty"`
	Temperature *float64           `json:"temperature,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []anthropicBlock `json:"content"`
	Usage   anthropicUsage   `json:"usage"`
}

type anthropicBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}
