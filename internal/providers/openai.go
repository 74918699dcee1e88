package providers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/dshills/prpilot/internal/config"
)

// OpenAI implements the Model interface for the OpenAI chat completions API
// and for servers that expose the same API.
type OpenAI struct {
	name     string
	model    string
	jsonMode bool
	client   *openai.Client
}

// NewOpenAI creates a new OpenAI provider.
func NewOpenAI(cfg config.ModelConfig, client *http.Client) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, &AuthError{Provider: "openai", Message: "OPENAI_API_KEY is not set"}
	}
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	oc.HTTPClient = client
	return &OpenAI{
		name:     "openai",
		model:    cfg.Name,
		jsonMode: true,
		client:   openai.NewClientWithConfig(oc),
	}, nil
}

func (o *OpenAI) Name() string { return o.name }

func (o *OpenAI) Generate(ctx context.Context, req Request) (Response, error) {
	chatReq := openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.SystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: req.UserPrompt},
		},
		MaxTokens:   maxTokens(req.MaxTokens),
		Temperature: float32(req.Temperature),
	}
	if req.JSON && o.jsonMode {
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := o.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return Response{}, o.classify(ctx, err)
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return Response{}, &TransientError{Provider: o.name, StatusCode: http.StatusOK, Err: errors.New("no content in response")}
	}

	return Response{
		Content:    resp.Choices[0].Message.Content,
		TokensUsed: resp.Usage.TotalTokens,
	}, nil
}

func (o *OpenAI) classify(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return classifyStatus(o.name, apiErr.HTTPStatusCode, []byte(apiErr.Message))
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return classifyStatus(o.name, reqErr.HTTPStatusCode, reqErr.Body)
	}
	return &TransientError{Provider: o.name, Err: err}
}
