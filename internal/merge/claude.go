package merge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultAnthropicURL = "https://api.anthropic.com"

// ClaudeMerger calls the Anthropic Messages API.
type ClaudeMerger struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

func NewClaudeMerger(apiKey, model, baseURL string, timeout time.Duration) *ClaudeMerger {
	if baseURL == "" {
		baseURL = defaultAnthropicURL
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &ClaudeMerger{
		apiKey:  apiKey,
		model:   model,
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	System      string             `json:"system,omitempty"`
	Temperature float64            `json:"temperature"`
	Messages    []anthropicMessage `json:"messages"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *ClaudeMerger) Name() string { return "anthropic/" + c.model }

func (c *ClaudeMerger) Merge(ctx context.Context, req Request) ([]string, error) {
	if len(req.Fragments) <= 1 {
		return append([]string(nil), req.Fragments...), nil
	}
	reqBody := anthropicRequest{
		Model:       c.model,
		MaxTokens:   4096,
		System:      SystemPrompt,
		Temperature: 0.3,
		Messages: []anthropicMessage{
			{Role: "user", Content: BuildPrompt(req)},
		},
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &TransientError{Provider: c.Name(), Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &TransientError{Provider: c.Name(), Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode != http.StatusOK {
		if mapped, ok := classifyStatus(c.Name(), resp.StatusCode, string(respBody)); ok {
			return nil, mapped
		}
		return nil, fmt.Errorf("claude api status %d: %s", resp.StatusCode, truncate(string(respBody), 200))
	}

	var apiResp anthropicResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrMalformedResponse, err)
	}
	if apiResp.Error != nil {
		return nil, fmt.Errorf("claude error: %s: %s", apiResp.Error.Type, apiResp.Error.Message)
	}
	if len(apiResp.Content) == 0 {
		return nil, fmt.Errorf("%w: empty response from claude", ErrMalformedResponse)
	}

	groups, err := ParseGroups(apiResp.Content[0].Text, len(req.Fragments))
	if err != nil {
		return nil, err
	}
	return Apply(req.Fragments, groups), nil
}

// Close releases resources.
func (c *ClaudeMerger) Close() {
	c.httpClient.CloseIdleConnections()
}
