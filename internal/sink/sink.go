// Package sink delivers serialized output to a file, stdout or an HTTP
// endpoint.
package sink

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Sink receives one finished output document.
type Sink interface {
	Write(ctx context.Context, body []byte, contentType string) error
	String() string
}

// Open picks a sink for dest: "-" is stdout, an http(s) URL is an HTTPSink,
// anything else is a file path.
func Open(dest, apiKey string) Sink {
	switch {
	case dest == "-" || dest == "":
		return &WriterSink{W: os.Stdout, Name: "stdout"}
	case strings.HasPrefix(dest, "http://") || strings.HasPrefix(dest, "https://"):
		return NewHTTPSink(dest, apiKey)
	}
	return &FileSink{Path: dest}
}

// WriterSink writes to an io.Writer.
type WriterSink struct {
	W    io.Writer
	Name string
}

func (s *WriterSink) Write(_ context.Context, body []byte, _ string) error {
	if _, err := s.W.Write(body); err != nil {
		return fmt.Errorf("write %s: %w", s.Name, err)
	}
	return nil
}

func (s *WriterSink) String() string { return s.Name }

// FileSink replaces a file atomically, creating parent directories.
type FileSink struct {
	Path string
}

func (s *FileSink) Write(_ context.Context, body []byte, _ string) error {
	dir := filepath.Dir(s.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.Path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(body); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write %s: %w", s.Path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close %s: %w", s.Path, err)
	}
	if err := os.Rename(tmpPath, s.Path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename %s: %w", s.Path, err)
	}
	return nil
}

func (s *FileSink) String() string { return s.Path }

// HTTPSink PUTs the output to a URL with a bearer key.
type HTTPSink struct {
	url        string
	apiKey     string
	httpClient *http.Client
}

func NewHTTPSink(url, apiKey string) *HTTPSink {
	return &HTTPSink{
		url:    url,
		apiKey: apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (s *HTTPSink) Write(ctx context.Context, body []byte, contentType string) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPut, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", contentType)
	if s.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("put output: %w", err)
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusNoContent:
		return nil
	}
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	return fmt.Errorf("put output %s: status %d: %s", s.url, resp.StatusCode, string(respBody))
}

func (s *HTTPSink) String() string { return s.url }

// Close releases idle connections.
func (s *HTTPSink) Close() {
	s.httpClient.CloseIdleConnections()
}
