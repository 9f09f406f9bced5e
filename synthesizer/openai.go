package synthesizer

import (
	"context"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// OpenAI is a Completer backed by the chat completions API.
type OpenAI struct {
	client *openai.Client
}

// NewOpenAI builds a completer for baseURL (e.g. https://api.openai.com/v1).
// A nil httpClient uses the library default.
func NewOpenAI(httpClient *http.Client, baseURL, apiKey string) *OpenAI {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	if httpClient != nil {
		cfg.HTTPClient = httpClient
	}
	return &OpenAI{client: openai.NewClientWithConfig(cfg)}
}

// Complete sends req as a system+user conversation and returns the first
// choice's message content, or "" when no choice came back.
func (o *OpenAI) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: req.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.System},
			{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
		},
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}
