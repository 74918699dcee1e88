package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/dshills/prpilot/internal/config"
)

const geminiAPIURL = "https://generativelanguage.googleapis.com/v1beta/models"

// Gemini implements the Model interface for Google's Gemini API.
type Gemini struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

// NewGemini creates a new Gemini provider.
func NewGemini(cfg config.ModelConfig, client *http.Client) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, &AuthError{Provider: "gemini", Message: "GEMINI_API_KEY (or GOOGLE_API_KEY) is not set"}
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = geminiAPIURL
	}
	return &Gemini{apiKey: cfg.APIKey, model: cfg.Name, baseURL: base, client: client}, nil
}

func (g *Gemini) Name() string { return "gemini" }

func (g *Gemini) Generate(ctx context.Context, req Request) (Response, error) {
	url := fmt.Sprintf("%s/%s:generateContent", g.baseURL, g.model)

	body := geminiRequest{
		SystemInstruction: &geminiContent{
			Parts: []geminiPart{{Text: req.SystemPrompt}},
		},
		Contents: []geminiContent{
			{
				Role:  "user",
				Parts: []geminiPart{{Text: req.UserPrompt}},
			},
		},
		GenerationConfig: &geminiGenConfig{
			MaxOutputTokens: maxTokens(req.MaxTokens),
		},
	}
	if req.Temperature > 0 {
		body.GenerationConfig.Temperature = &req.Temperature
	}
	if req.JSON {
		body.GenerationConfig.ResponseMimeType = "application/json"
	}

	var result geminiResponse
	err := postJSON(ctx, g.client, g.Name(), url, map[string]string{"x-goog-api-key": g.apiKey}, body, &result)
	if err != nil {
		return Response{}, err
	}

	if len(result.Candidates) == 0 || len(result.Candidates[0].Content.Parts) == 0 {
		reason := "no content in response"
		if result.PromptFeedback.BlockReason != "" {
			reason = "prompt blocked: " + result.PromptFeedback.BlockReason
			return Response{}, &RequestError{Provider: g.Name(), StatusCode: http.StatusOK, Message: reason}
		}
		return Response{}, &TransientError{Provider: g.Name(), StatusCode: http.StatusOK, Err: errors.New(reason)}
	}

	var content strings.Builder
	for _, part := range result.Candidates[0].Content.Parts {
		content.WriteString(part.Text)
	}

	return Response{
		Content:    content.String(),
		TokensUsed: result.UsageMetadata.TotalTokenCount,
	}, nil
}

type geminiRequest struct {
	SystemInstruction *geminiContent   `json:"systemInstruction,omitempty"`
	Contents          []geminiContent  `json:"contents"`
	GenerationConfig  *geminiGenConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenConfig struct {
	MaxOutputTokens  int      `json:"maxOutputTokens,omitempty"`
	Temperature      *float64 `json:"temperature,omitempty"`
	ResponseMimeType string   `json:"responseMimeType,omitempty"`
}

type geminiResponse struct {
	Candidates     []geminiCandidate `json:"candidates"`
	PromptFeedback geminiFeedback    `json:"promptFeedback"`
	UsageMetadata  geminiUsage       `json:"usageMetadata"`
}

type geminiCandidate struct {
	Content geminiContent `json:"content"`
}

type geminiFeedback struct {
	BlockReason string `json:"blockReason"`
}

type geminiUsage struct {
	TotalTokenCount int `json:"totalTokenCount"`
}
