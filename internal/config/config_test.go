package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		EnvConfigFile, "PORT", "DOCSTRUCT_API_KEY", "WORKER_COUNT", "DOCSTRUCT_MERGE_MODE",
		"DOCSTRUCT_PROVIDER", "OPENAI_API_KEY", "ANTHROPIC_API_KEY", "DOCSTRUCT_MAX_DEPTH",
		"MAX_BATCH_CHARS", "DOCSTRUCT_CACHE", "DOCSTRUCT_FORMAT", "LLM_TIMEOUT",
	} {
		t.Setenv(k, "")
	}
}

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "8090", cfg.Port)
	assert.Equal(t, "heuristic", cfg.MergeMode)
	assert.Equal(t, 6000, cfg.MaxBatchChars)
	assert.NotEmpty(t, cfg.SkipTags)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_FileThenEnv(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "docstruct.yaml", `
server:
  port: "9000"
  jobTTL: 90m
parse:
  maxDepth: 2
  headings:
    - name: article
      pattern: '(?P<label>Article (?P<num>\d+))(?:\s+(?P<title>.+))?'
      level: 2
merge:
  mode: external
  provider: anthropic
  maxRetries: 0
anthropic:
  key: file-key
cache:
  path: /tmp/merges.db
  maxAge: 48h
`)
	t.Setenv("PORT", "9100")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "9100", cfg.Port, "env wins over file")
	assert.Equal(t, 90*time.Minute, cfg.JobTTL)
	assert.Equal(t, 2, cfg.MaxDepth)
	require.Len(t, cfg.Headings, 1)
	assert.Equal(t, "article", cfg.Headings[0].Name)
	assert.Equal(t, "external", cfg.MergeMode)
	assert.Equal(t, 0, cfg.MaxRetries)
	assert.Equal(t, "file-key", cfg.MergeAPIKey())
	assert.Equal(t, 48*time.Hour, cfg.CacheMaxAge)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_EnvConfigFile(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "cfg.json", `{"merge":{"language":"de"},"output":{"format":"text"}}`)
	t.Setenv(EnvConfigFile, path)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "de", cfg.Language)
	assert.Equal(t, "text", cfg.Format)
}

func TestLoad_BadFile(t *testing.T) {
	clearEnv(t)
	_, err := Load(writeFile(t, "bad.yaml", "server: [unclosed"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "dur.yaml", "cache:\n  maxAge: soon\n"))
	assert.ErrorContains(t, err, "cache.maxAge")

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoad_InvalidEnvFallsBack(t *testing.T) {
	clearEnv(t)
	t.Setenv("WORKER_COUNT", "lots")
	t.Setenv("LLM_TIMEOUT", "-5s")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.WorkerCount)
	assert.Equal(t, 120*time.Second, cfg.LLMTimeout)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"unknown mode", func(c *Config) { c.MergeMode = "llm" }, false},
		{"unknown provider", func(c *Config) { c.Provider = "cohere" }, false},
		{"unknown format", func(c *Config) { c.Format = "xml" }, false},
		{"external without key", func(c *Config) { c.MergeMode = "external" }, false},
		{"external with key", func(c *Config) { c.MergeMode = "external"; c.OpenAIAPIKey = "k" }, true},
		{"negative depth", func(c *Config) { c.MaxDepth = -1 }, false},
		{"bad drop pattern", func(c *Config) { c.DropPatterns = []string{"("} }, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			if tc.ok {
				assert.NoError(t, cfg.Validate())
			} else {
				assert.Error(t, cfg.Validate())
			}
		})
	}
}
