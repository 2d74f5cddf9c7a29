package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgallion1/docstruct/internal/cache"
	"github.com/dgallion1/docstruct/internal/config"
	"github.com/dgallion1/docstruct/internal/merge"
	"github.com/dgallion1/docstruct/internal/metrics"
)

// NewMerger builds the configured merge provider. Every call is reported to
// metrics and stats; results are cached when store is not nil.
func NewMerger(cfg config.Config, store *cache.Store, stats *merge.Stats, log *slog.Logger) (merge.Merger, error) {
	var m merge.Merger
	switch cfg.Provider {
	case "anthropic":
		m = merge.NewClaudeMerger(cfg.AnthropicAPIKey, cfg.AnthropicModel, cfg.AnthropicBaseURL, cfg.LLMTimeout)
	case "openai", "":
		m = merge.NewOpenAIMerger(merge.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.LLMTimeout), cfg.OpenAIModel)
	default:
		return nil, fmt.Errorf("unknown merge provider %q", cfg.Provider)
	}

	observers := []merge.Observer{observeMerge}
	if stats != nil {
		observers = append(observers, stats.Record)
	}
	m = merge.Instrument(m, observers...)
	if store != nil {
		m = merge.NewCachedMerger(m, store, log)
	}
	return m, nil
}

func observeMerge(provider string, d time.Duration, err error) {
	metrics.ObserveMerge(provider, d, mergeOutcome(err))
}

func mergeOutcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case merge.IsFatal(err):
		return metrics.OutcomeFatal
	case merge.IsTransient(err):
		return metrics.OutcomeTransient
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return metrics.OutcomeCanceled
	}
	return metrics.OutcomeError
}

// OpenCache opens the merge cache named by cfg and purges expired entries.
// It returns nil when no cache path is configured.
func OpenCache(ctx context.Context, cfg config.Config, log *slog.Logger) (*cache.Store, error) {
	if cfg.CachePath == "" {
		return nil, nil
	}
	store, err := cache.Open(cfg.CachePath)
	if err != nil {
		return nil, err
	}
	if cfg.CacheMaxAge > 0 {
		n, err := store.PurgeOlderThan(ctx, cfg.CacheMaxAge)
		if err != nil {
			log.Warn("merge cache purge failed", "error", err)
		} else if n > 0 {
			log.Info("merge cache purged", "removed", n)
		}
	}
	return store, nil
}
