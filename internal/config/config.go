package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/dgallion1/docstruct/internal/heading"
	"github.com/dgallion1/docstruct/internal/parser"
)

// EnvConfigFile names the environment variable holding a config file path.
const EnvConfigFile = "DOCSTRUCT_CONFIG"

type Config struct {
	Port string

	// Auth for /api routes
	APIKey string

	// Worker pool
	WorkerCount  int
	MaxQueueSize int

	// Upload limits
	MaxUploadBytes int64

	// Job state
	JobTTL time.Duration

	// Parsing
	Headings     []heading.PatternSpec
	DropPatterns []string
	SkipTags     []string
	MaxDepth     int

	// PDF
	PDFFallbackPdftotext bool

	// Fragment assembly
	MergeMode          string // heuristic | external
	Provider           string // openai | anthropic
	Language           string
	Style              string
	MaxBatchChars      int
	MaxBatchFragments  int
	MaxConcurrentMerge int
	MaxRetries         int
	MinFragmentLength  int

	// OpenAI-compatible merge provider
	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string

	// Anthropic merge provider
	AnthropicAPIKey  string
	AnthropicBaseURL string
	AnthropicModel   string

	LLMTimeout  time.Duration
	StatsWindow time.Duration

	// Merge cache; empty path disables it
	CachePath   string
	CacheMaxAge time.Duration

	// Output
	Format     string
	SinkAPIKey string
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Port: "8090",

		WorkerCount:    4,
		MaxQueueSize:   100,
		MaxUploadBytes: 52428800, // 50MB
		JobTTL:         1 * time.Hour,

		DropPatterns: append([]string(nil), parser.DefaultDropPatterns...),
		SkipTags:     append([]string(nil), parser.DefaultSkipTags...),

		PDFFallbackPdftotext: true,

		MergeMode:          "heuristic",
		Provider:           "openai",
		MaxBatchChars:      6000,
		MaxBatchFragments:  15,
		MaxConcurrentMerge: 5,
		MaxRetries:         3,
		MinFragmentLength:  12,

		OpenAIModel:    "gpt-4o-mini",
		AnthropicModel: "claude-haiku-4-5",

		LLMTimeout:  120 * time.Second,
		StatsWindow: 1 * time.Hour,

		CacheMaxAge: 30 * 24 * time.Hour,

		Format: "json",
	}
}

// Load builds a Config from defaults, then the file at path (or
// $DOCSTRUCT_CONFIG when path is empty), then the environment.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		path = os.Getenv(EnvConfigFile)
	}
	if path != "" {
		fc, err := LoadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("load config %s: %w", path, err)
		}
		if err := ApplyFile(&cfg, fc); err != nil {
			return cfg, fmt.Errorf("apply config %s: %w", path, err)
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Port = envOr("PORT", cfg.Port)
	cfg.APIKey = envOr("DOCSTRUCT_API_KEY", cfg.APIKey)

	cfg.WorkerCount = envInt("WORKER_COUNT", cfg.WorkerCount)
	cfg.MaxQueueSize = envInt("MAX_QUEUE_SIZE", cfg.MaxQueueSize)
	cfg.MaxUploadBytes = envInt64("MAX_UPLOAD_BYTES", cfg.MaxUploadBytes)
	cfg.JobTTL = envDuration("JOB_TTL", cfg.JobTTL)

	cfg.MaxDepth = envInt("DOCSTRUCT_MAX_DEPTH", cfg.MaxDepth)
	cfg.PDFFallbackPdftotext = envBool("PDF_FALLBACK_PDFTOTEXT", cfg.PDFFallbackPdftotext)

	cfg.MergeMode = envOr("DOCSTRUCT_MERGE_MODE", cfg.MergeMode)
	cfg.Provider = envOr("DOCSTRUCT_PROVIDER", cfg.Provider)
	cfg.Language = envOr("DOCSTRUCT_LANGUAGE", cfg.Language)
	cfg.Style = envOr("DOCSTRUCT_STYLE", cfg.Style)
	cfg.MaxBatchChars = envInt("MAX_BATCH_CHARS", cfg.MaxBatchChars)
	cfg.MaxBatchFragments = envInt("MAX_BATCH_FRAGMENTS", cfg.MaxBatchFragments)
	cfg.MaxConcurrentMerge = envInt("MAX_CONCURRENT_MERGE", cfg.MaxConcurrentMerge)
	cfg.MaxRetries = envInt("MERGE_MAX_RETRIES", cfg.MaxRetries)
	cfg.MinFragmentLength = envInt("MIN_FRAGMENT_LENGTH", cfg.MinFragmentLength)

	cfg.OpenAIAPIKey = envOr("OPENAI_API_KEY", cfg.OpenAIAPIKey)
	cfg.OpenAIBaseURL = envOr("OPENAI_BASE_URL", cfg.OpenAIBaseURL)
	cfg.OpenAIModel = envOr("OPENAI_MODEL", cfg.OpenAIModel)
	cfg.AnthropicAPIKey = envOr("ANTHROPIC_API_KEY", cfg.AnthropicAPIKey)
	cfg.AnthropicBaseURL = envOr("ANTHROPIC_BASE_URL", cfg.AnthropicBaseURL)
	cfg.AnthropicModel = envOr("ANTHROPIC_MODEL", cfg.AnthropicModel)
	cfg.LLMTimeout = envDuration("LLM_TIMEOUT", cfg.LLMTimeout)

	cfg.CachePath = envOr("DOCSTRUCT_CACHE", cfg.CachePath)
	cfg.CacheMaxAge = envDuration("CACHE_MAX_AGE", cfg.CacheMaxAge)

	cfg.Format = envOr("DOCSTRUCT_FORMAT", cfg.Format)
	cfg.SinkAPIKey = envOr("SINK_API_KEY", cfg.SinkAPIKey)

	def := Default()
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = def.WorkerCount
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = def.MaxQueueSize
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = def.MaxUploadBytes
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = def.JobTTL
	}
	if cfg.MaxConcurrentMerge <= 0 {
		cfg.MaxConcurrentMerge = def.MaxConcurrentMerge
	}
	if cfg.LLMTimeout <= 0 {
		cfg.LLMTimeout = def.LLMTimeout
	}
}

// MergeAPIKey returns the key of the selected provider.
func (c Config) MergeAPIKey() string {
	if c.Provider == "anthropic" {
		return c.AnthropicAPIKey
	}
	return c.OpenAIAPIKey
}

// Validate checks value sets, patterns and credentials for external mode.
func (c Config) Validate() error {
	var errs []error
	switch c.MergeMode {
	case "heuristic", "external":
	default:
		errs = append(errs, fmt.Errorf("merge mode %q: want heuristic or external", c.MergeMode))
	}
	switch c.Provider {
	case "openai", "anthropic":
	default:
		errs = append(errs, fmt.Errorf("provider %q: want openai or anthropic", c.Provider))
	}
	switch strings.ToLower(c.Format) {
	case "json", "text", "txt", "chunks", "jsonl":
	default:
		errs = append(errs, fmt.Errorf("format %q: want json, text or chunks", c.Format))
	}
	if c.MergeMode == "external" && c.MergeAPIKey() == "" {
		errs = append(errs, fmt.Errorf("external merge mode needs an API key for provider %s", c.Provider))
	}
	if c.MaxDepth < 0 {
		errs = append(errs, errors.New("max depth must not be negative"))
	}
	if c.MaxBatchChars < 0 || c.MaxBatchFragments < 0 || c.MaxRetries < 0 {
		errs = append(errs, errors.New("negative merge limits are not allowed"))
	}
	if _, err := heading.Compile(c.Headings, nil); err != nil {
		errs = append(errs, err)
	}
	for _, p := range c.DropPatterns {
		if _, err := regexp.Compile(p); err != nil {
			errs = append(errs, fmt.Errorf("drop pattern %q: %w", p, err))
		}
	}
	return errors.Join(errs...)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
