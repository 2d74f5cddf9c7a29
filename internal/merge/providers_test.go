package merge

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var threeFragments = Request{
	Fragments:  []string{"The quick brown", "fox jumps.", "A new paragraph."},
	Breadcrumb: []string{"Chapter 1"},
}

func openAIServer(t *testing.T, status int, body string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func chatResponse(content string) string {
	b, _ := json.Marshal(map[string]any{
		"id":     "chatcmpl-1",
		"object": "chat.completion",
		"model":  "gpt-4o-mini",
		"choices": []map[string]any{{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]any{"role": "assistant", "content": content},
		}},
	})
	return string(b)
}

func TestOpenAIMerger_Success(t *testing.T) {
	srv, calls := openAIServer(t, http.StatusOK, chatResponse(`[{"paragraph_index":0,"chunk_indices":[0,1]},{"paragraph_index":1,"chunk_indices":[2]}]`))
	m := NewOpenAIMerger(NewOpenAIClient("test-key", srv.URL+"/v1", time.Second), "")

	got, err := m.Merge(context.Background(), threeFragments)
	require.NoError(t, err)
	assert.Equal(t, []string{"The quick brown fox jumps.", "A new paragraph."}, got)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, "openai/gpt-4o-mini", m.Name())
}

func TestOpenAIMerger_SingleFragmentSkipsCall(t *testing.T) {
	srv, calls := openAIServer(t, http.StatusOK, chatResponse(`[]`))
	m := NewOpenAIMerger(NewOpenAIClient("test-key", srv.URL+"/v1", time.Second), "gpt-4o-mini")

	got, err := m.Merge(context.Background(), Request{Fragments: []string{"only"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"only"}, got)
	assert.Equal(t, int32(0), calls.Load())
}

func TestOpenAIMerger_ErrorMapping(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		transient bool
		fatal     bool
	}{
		{"rate limited", 429, `{"error":{"message":"Rate limit reached","type":"requests","code":"rate_limit_exceeded"}}`, true, false},
		{"server error", 503, `{"error":{"message":"overloaded","type":"server_error"}}`, true, false},
		{"bad key", 401, `{"error":{"message":"Incorrect API key provided","type":"invalid_request_error","code":"invalid_api_key"}}`, false, true},
		{"quota", 429, `{"error":{"message":"You exceeded your current quota","type":"insufficient_quota","code":"insufficient_quota"}}`, false, true},
		{"bad request", 400, `{"error":{"message":"context length exceeded","type":"invalid_request_error"}}`, false, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv, _ := openAIServer(t, tc.status, tc.body)
			m := NewOpenAIMerger(NewOpenAIClient("test-key", srv.URL+"/v1", time.Second), "")
			_, err := m.Merge(context.Background(), threeFragments)
			require.Error(t, err)
			assert.Equal(t, tc.transient, IsTransient(err), "transient: %v", err)
			assert.Equal(t, tc.fatal, IsFatal(err), "fatal: %v", err)
		})
	}
}

func TestOpenAIMerger_NetworkErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	m := NewOpenAIMerger(NewOpenAIClient("test-key", url+"/v1", time.Second), "")
	_, err := m.Merge(context.Background(), threeFragments)
	assert.True(t, IsTransient(err), "got %v", err)
}

type fakeChat struct {
	content string
	err     error
}

func (f fakeChat) CreateChatCompletion(context.Context, openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	if f.err != nil {
		return openai.ChatCompletionResponse{}, f.err
	}
	return openai.ChatCompletionResponse{Choices: []openai.ChatCompletionChoice{{
		Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: f.content},
	}}}, nil
}

func TestOpenAIMerger_MalformedAnswer(t *testing.T) {
	m := NewOpenAIMerger(fakeChat{content: `[{"chunk_indices":[0,2]}]`}, "")
	_, err := m.Merge(context.Background(), threeFragments)
	assert.ErrorIs(t, err, ErrMalformedResponse)
	assert.False(t, IsTransient(err))
	assert.False(t, IsFatal(err))
}

func TestOpenAIMerger_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m := NewOpenAIMerger(fakeChat{err: errors.New("request aborted")}, "")
	_, err := m.Merge(ctx, threeFragments)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClaudeMerger(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		want      []string
		transient bool
		fatal     bool
	}{
		{
			name:   "success",
			status: 200,
			body:   `{"content":[{"type":"text","text":"[{\"paragraph_index\":0,\"chunk_indices\":[0,1,2]}]"}]}`,
			want:   []string{"The quick brown fox jumps. A new paragraph."},
		},
		{name: "overloaded", status: 529, body: `{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`, transient: true},
		{name: "rate limit", status: 429, body: `{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`, transient: true},
		{name: "auth", status: 401, body: `{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`, fatal: true},
		{name: "credit", status: 400, body: `{"type":"error","error":{"type":"invalid_request_error","message":"Your credit balance is too low"}}`, fatal: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/v1/messages", r.URL.Path)
				assert.Equal(t, "k", r.Header.Get("x-api-key"))
				var req anthropicRequest
				if assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) && assert.Len(t, req.Messages, 1) {
					assert.Equal(t, SystemPrompt, req.System)
					assert.True(t, strings.Contains(req.Messages[0].Content, "Section: Chapter 1"))
				}
				w.WriteHeader(tc.status)
				_, _ = io.WriteString(w, tc.body)
			}))
			defer srv.Close()

			m := NewClaudeMerger("k", "claude-haiku-4-5", srv.URL, time.Second)
			defer m.Close()
			got, err := m.Merge(context.Background(), threeFragments)
			if tc.want != nil {
				require.NoError(t, err)
				assert.Equal(t, tc.want, got)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tc.transient, IsTransient(err), "transient: %v", err)
			assert.Equal(t, tc.fatal, IsFatal(err), "fatal: %v", err)
		})
	}
}

type memStore struct {
	data map[string][]string
	puts int
}

func (s *memStore) Get(_ context.Context, key string) ([]string, bool, error) {
	v, ok := s.data[key]
	return v, ok, nil
}

func (s *memStore) Put(_ context.Context, key, _ string, paras []string) error {
	s.data[key] = paras
	s.puts++
	return nil
}

type countingMerger struct {
	calls int
	err   error
}

func (c *countingMerger) Name() string { return "fake/model" }

func (c *countingMerger) Merge(_ context.Context, req Request) ([]string, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return []string{Join(req.Fragments)}, nil
}

func TestCachedMerger(t *testing.T) {
	inner := &countingMerger{}
	store := &memStore{data: map[string][]string{}}
	m := NewCachedMerger(inner, store, nil)

	req := Request{Fragments: []string{"a", "b"}, Breadcrumb: []string{"Part 1"}}
	first, err := m.Merge(context.Background(), req)
	require.NoError(t, err)

	req.Breadcrumb = []string{"Part 2"}
	second, err := m.Merge(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, inner.calls)
	assert.Equal(t, 1, store.puts)

	_, err = m.Merge(context.Background(), Request{Fragments: []string{"a", "c"}})
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls)

	failing := NewCachedMerger(&countingMerger{err: &TransientError{Provider: "fake"}}, store, nil)
	_, err = failing.Merge(context.Background(), Request{Fragments: []string{"x", "y"}})
	assert.True(t, IsTransient(err))
	assert.Equal(t, 2, store.puts)
}

func TestCacheKey_ProviderSensitive(t *testing.T) {
	req := Request{Fragments: []string{"a", "b"}}
	assert.NotEqual(t, CacheKey("openai/a", req), CacheKey("openai/b", req))
	assert.NotEqual(t, CacheKey("p", Request{Fragments: []string{"ab"}}), CacheKey("p", Request{Fragments: []string{"a", "b"}}))
}

func TestInstrument(t *testing.T) {
	var seen []string
	var errs int
	m := Instrument(&countingMerger{}, func(provider string, _ time.Duration, err error) {
		seen = append(seen, provider)
		if err != nil {
			errs++
		}
	})
	_, err := m.Merge(context.Background(), Request{Fragments: []string{"a"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"fake/model"}, seen)
	assert.Equal(t, 0, errs)
	assert.Equal(t, "fake/model", m.Name())
}
