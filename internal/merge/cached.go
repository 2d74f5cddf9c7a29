package merge

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"time"
)

// Store persists merge results by key.
type Store interface {
	Get(ctx context.Context, key string) ([]string, bool, error)
	Put(ctx context.Context, key, provider string, paragraphs []string) error
}

// CachedMerger serves repeated batches from a Store. Store failures are
// logged and never fail the merge.
type CachedMerger struct {
	inner Merger
	store Store
	log   *slog.Logger
}

func NewCachedMerger(inner Merger, store Store, log *slog.Logger) *CachedMerger {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &CachedMerger{inner: inner, store: store, log: log}
}

func (c *CachedMerger) Name() string { return c.inner.Name() }

func (c *CachedMerger) Merge(ctx context.Context, req Request) ([]string, error) {
	key := CacheKey(c.inner.Name(), req)
	if paras, ok, err := c.store.Get(ctx, key); err != nil {
		c.log.Warn("merge cache read failed", "error", err)
	} else if ok {
		return paras, nil
	}

	paras, err := c.inner.Merge(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := c.store.Put(ctx, key, c.inner.Name(), paras); err != nil {
		c.log.Warn("merge cache write failed", "error", err)
	}
	return paras, nil
}

// CacheKey hashes the provider name and the batch content. Breadcrumbs are
// prompt context only and do not change the key.
func CacheKey(provider string, req Request) string {
	h := sha256.New()
	h.Write([]byte(provider))
	h.Write([]byte{0})
	h.Write([]byte(req.Language))
	h.Write([]byte{0})
	h.Write([]byte(req.Style))
	for _, f := range req.Fragments {
		h.Write([]byte{0})
		h.Write([]byte(f))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Observer receives the outcome of every merge call.
type Observer func(provider string, d time.Duration, err error)

type instrumented struct {
	Merger
	observers []Observer
}

// Instrument reports each call on m to the observers.
func Instrument(m Merger, observers ...Observer) Merger {
	return &instrumented{Merger: m, observers: observers}
}

func (i *instrumented) Merge(ctx context.Context, req Request) ([]string, error) {
	start := time.Now()
	paras, err := i.Merger.Merge(ctx, req)
	d := time.Since(start)
	for _, o := range i.observers {
		o(i.Name(), d, err)
	}
	return paras, err
}
