package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dgallion1/docstruct/internal/heading"
	yaml "gopkg.in/yaml.v3"
)

// FileConfig is the YAML/JSON configuration file schema. Durations are
// strings such as "90s" or "24h".
type FileConfig struct {
	Server struct {
		Port           string `yaml:"port" json:"port"`
		APIKey         string `yaml:"apiKey" json:"apiKey"`
		Workers        int    `yaml:"workers" json:"workers"`
		QueueSize      int    `yaml:"queueSize" json:"queueSize"`
		MaxUploadBytes int64  `yaml:"maxUploadBytes" json:"maxUploadBytes"`
		JobTTL         string `yaml:"jobTTL" json:"jobTTL"`
	} `yaml:"server" json:"server"`

	Parse struct {
		Headings     []heading.PatternSpec `yaml:"headings" json:"headings"`
		DropPatterns []string              `yaml:"dropPatterns" json:"dropPatterns"`
		SkipTags     []string              `yaml:"skipTags" json:"skipTags"`
		MaxDepth     int                   `yaml:"maxDepth" json:"maxDepth"`
		Pdftotext    *bool                 `yaml:"pdftotext" json:"pdftotext"`
	} `yaml:"parse" json:"parse"`

	Merge struct {
		Mode              string `yaml:"mode" json:"mode"`
		Provider          string `yaml:"provider" json:"provider"`
		Language          string `yaml:"language" json:"language"`
		Style             string `yaml:"style" json:"style"`
		MaxChars          int    `yaml:"maxChars" json:"maxChars"`
		MaxFragments      int    `yaml:"maxFragments" json:"maxFragments"`
		Concurrency       int    `yaml:"concurrency" json:"concurrency"`
		MaxRetries        *int   `yaml:"maxRetries" json:"maxRetries"`
		MinFragmentLength int    `yaml:"minFragmentLength" json:"minFragmentLength"`
		Timeout           string `yaml:"timeout" json:"timeout"`
	} `yaml:"merge" json:"merge"`

	OpenAI struct {
		APIKey  string `yaml:"key" json:"key"`
		BaseURL string `yaml:"base" json:"base"`
		Model   string `yaml:"model" json:"model"`
	} `yaml:"openai" json:"openai"`

	Anthropic struct {
		APIKey  string `yaml:"key" json:"key"`
		BaseURL string `yaml:"base" json:"base"`
		Model   string `yaml:"model" json:"model"`
	} `yaml:"anthropic" json:"anthropic"`

	Cache struct {
		Path   string `yaml:"path" json:"path"`
		MaxAge string `yaml:"maxAge" json:"maxAge"`
	} `yaml:"cache" json:"cache"`

	Output struct {
		Format     string `yaml:"format" json:"format"`
		SinkAPIKey string `yaml:"sinkKey" json:"sinkKey"`
	} `yaml:"output" json:"output"`
}

// LoadFile reads YAML or JSON into FileConfig.
func LoadFile(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	switch ext := filepath.Ext(path); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse yaml: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse json: %w", err)
		}
	default:
		// Try YAML then JSON
		if err := yaml.Unmarshal(b, &fc); err != nil {
			if jerr := json.Unmarshal(b, &fc); jerr != nil {
				return fc, fmt.Errorf("parse config: %v (yaml) / %v (json)", err, jerr)
			}
		}
	}
	return fc, nil
}

// ApplyFile overlays every value set in fc onto cfg.
func ApplyFile(cfg *Config, fc FileConfig) error {
	if cfg == nil {
		return nil
	}
	setString(&cfg.Port, fc.Server.Port)
	setString(&cfg.APIKey, fc.Server.APIKey)
	setInt(&cfg.WorkerCount, fc.Server.Workers)
	setInt(&cfg.MaxQueueSize, fc.Server.QueueSize)
	if fc.Server.MaxUploadBytes > 0 {
		cfg.MaxUploadBytes = fc.Server.MaxUploadBytes
	}
	if err := setDuration(&cfg.JobTTL, "server.jobTTL", fc.Server.JobTTL); err != nil {
		return err
	}

	if len(fc.Parse.Headings) > 0 {
		cfg.Headings = append([]heading.PatternSpec(nil), fc.Parse.Headings...)
	}
	if len(fc.Parse.DropPatterns) > 0 {
		cfg.DropPatterns = append([]string(nil), fc.Parse.DropPatterns...)
	}
	if len(fc.Parse.SkipTags) > 0 {
		cfg.SkipTags = append([]string(nil), fc.Parse.SkipTags...)
	}
	setInt(&cfg.MaxDepth, fc.Parse.MaxDepth)
	if fc.Parse.Pdftotext != nil {
		cfg.PDFFallbackPdftotext = *fc.Parse.Pdftotext
	}

	setString(&cfg.MergeMode, fc.Merge.Mode)
	setString(&cfg.Provider, fc.Merge.Provider)
	setString(&cfg.Language, fc.Merge.Language)
	setString(&cfg.Style, fc.Merge.Style)
	setInt(&cfg.MaxBatchChars, fc.Merge.MaxChars)
	setInt(&cfg.MaxBatchFragments, fc.Merge.MaxFragments)
	setInt(&cfg.MaxConcurrentMerge, fc.Merge.Concurrency)
	if fc.Merge.MaxRetries != nil {
		cfg.MaxRetries = *fc.Merge.MaxRetries
	}
	setInt(&cfg.MinFragmentLength, fc.Merge.MinFragmentLength)
	if err := setDuration(&cfg.LLMTimeout, "merge.timeout", fc.Merge.Timeout); err != nil {
		return err
	}

	setString(&cfg.OpenAIAPIKey, fc.OpenAI.APIKey)
	setString(&cfg.OpenAIBaseURL, fc.OpenAI.BaseURL)
	setString(&cfg.OpenAIModel, fc.OpenAI.Model)
	setString(&cfg.AnthropicAPIKey, fc.Anthropic.APIKey)
	setString(&cfg.AnthropicBaseURL, fc.Anthropic.BaseURL)
	setString(&cfg.AnthropicModel, fc.Anthropic.Model)

	setString(&cfg.CachePath, fc.Cache.Path)
	if err := setDuration(&cfg.CacheMaxAge, "cache.maxAge", fc.Cache.MaxAge); err != nil {
		return err
	}

	setString(&cfg.Format, fc.Output.Format)
	setString(&cfg.SinkAPIKey, fc.Output.SinkAPIKey)
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v > 0 {
		*dst = v
	}
}

func setDuration(dst *time.Duration, field, v string) error {
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	*dst = d
	return nil
}
