// Package cache memoizes embeddings in front of an ai.Embedder.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/poiesic/lexrag/ai"
	"github.com/poiesic/lexrag/core"
)

// ErrEmbedderRequired indicates a nil embedder was supplied.
var ErrEmbedderRequired = errors.New("embedder is required")

// Embedder wraps an ai.Embedder and caches vectors by exact input text.
// Each cached vector costs one unit, so size is the number of entries kept.
type Embedder struct {
	next   ai.Embedder
	cache  *ristretto.Cache[string, []float32]
	logger *slog.Logger
}

var _ ai.Embedder = (*Embedder)(nil)

// NewEmbedder creates a caching embedder holding up to size vectors.
func NewEmbedder(next ai.Embedder, size int64) (*Embedder, error) {
	if next == nil {
		return nil, ErrEmbedderRequired
	}
	if size < 1 {
		size = 1
	}
	c, err := ristretto.NewCache(&ristretto.Config[string, []float32]{
		NumCounters: size * 10,
		MaxCost:     size,
		BufferItems: 64,
		// Cost counts entries, not bytes.
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, err
	}
	return &Embedder{
		next:   next,
		cache:  c,
		logger: slog.Default().With("component", "embedding-cache"),
	}, nil
}

// EmbedText returns the cached vector for text or computes and stores it.
func (e *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if vec, ok := e.cache.Get(text); ok {
		e.logger.Debug("embedding cache hit", "length", len(text))
		return vec, nil
	}
	vec, err := e.next.EmbedText(ctx, text)
	if err != nil {
		return nil, err
	}
	e.store(text, vec)
	return vec, nil
}

// EmbedTexts serves hits from the cache and embeds the misses in one batch.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var missing []string
	var missingIdx []int
	for i, text := range texts {
		if vec, ok := e.cache.Get(text); ok {
			out[i] = vec
			continue
		}
		missing = append(missing, text)
		missingIdx = append(missingIdx, i)
	}
	if len(missing) == 0 {
		return out, nil
	}

	vecs, err := e.next.EmbedTexts(ctx, missing)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(missing) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d texts", core.ErrEmbeddingUnavailable, len(vecs), len(missing))
	}
	for j, vec := range vecs {
		out[missingIdx[j]] = vec
		e.store(missing[j], vec)
	}
	return out, nil
}

// Close stops the cache's background goroutines.
func (e *Embedder) Close() {
	e.cache.Close()
}

func (e *Embedder) store(text string, vec []float32) {
	e.cache.Set(text, vec, 1)
	e.cache.Wait()
}
