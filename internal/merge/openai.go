package merge

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// ChatClient is the subset of the go-openai client the merger uses.
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIMerger talks to any OpenAI-compatible chat completions endpoint.
type OpenAIMerger struct {
	client      ChatClient
	model       string
	temperature float32
}

// NewOpenAIClient builds a go-openai client. baseURL may be empty.
func NewOpenAIClient(apiKey, baseURL string, timeout time.Duration) *openai.Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	cfg.HTTPClient = &http.Client{Timeout: timeout}
	return openai.NewClientWithConfig(cfg)
}

func NewOpenAIMerger(client ChatClient, model string) *OpenAIMerger {
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &OpenAIMerger{client: client, model: model, temperature: 0.3}
}

func (m *OpenAIMerger) Name() string { return "openai/" + m.model }

func (m *OpenAIMerger) Merge(ctx context.Context, req Request) ([]string, error) {
	if len(req.Fragments) <= 1 {
		return append([]string(nil), req.Fragments...), nil
	}
	resp, err := m.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       m.model,
		Temperature: m.temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: SystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: BuildPrompt(req)},
		},
	})
	if err != nil {
		return nil, m.mapError(ctx, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: empty response from %s", ErrMalformedResponse, m.Name())
	}
	groups, err := ParseGroups(resp.Choices[0].Message.Content, len(req.Fragments))
	if err != nil {
		return nil, err
	}
	return Apply(req.Fragments, groups), nil
}

func (m *OpenAIMerger) mapError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		msg := apiErr.Message
		if code, ok := apiErr.Code.(string); ok {
			msg = code + ": " + msg
		}
		if apiErr.Type != "" {
			msg = apiErr.Type + ": " + msg
		}
		if mapped, ok := classifyStatus(m.Name(), apiErr.HTTPStatusCode, msg); ok {
			return mapped
		}
		return fmt.Errorf("%s: %w", m.Name(), err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if mapped, ok := classifyStatus(m.Name(), reqErr.HTTPStatusCode, reqErr.Error()); ok {
			return mapped
		}
		return fmt.Errorf("%s: %w", m.Name(), err)
	}
	// Anything else never reached the API: treat as a network failure.
	return &TransientError{Provider: m.Name(), Err: err}
}
