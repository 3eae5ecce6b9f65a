package classifier

import (
	"context"
	"crypto/sha256"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/civictrack/civictrack/internal/shared/logger"
)

// DefaultEmbeddingCacheSize bounds the number of cached vectors. Duplicate
// detection re-embeds the same nearby reports for every new submission.
const DefaultEmbeddingCacheSize = 10000

// Embedder is the capability the cache wraps.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// CachingEmbedder memoizes vectors by text digest with LRU eviction.
// Errors are never cached.
type CachingEmbedder struct {
	next   Embedder
	cache  *lru.Cache[[sha256.Size]byte, []float64]
	logger logger.Interface
}

func NewCachingEmbedder(next Embedder, size int, log logger.Interface) *CachingEmbedder {
	if size <= 0 {
		size = DefaultEmbeddingCacheSize
	}
	cache, err := lru.New[[sha256.Size]byte, []float64](size)
	if err != nil {
		log.Errorw("failed to create embedding cache, using fallback size", "error", err)
		cache, _ = lru.New[[sha256.Size]byte, []float64](1000)
	}
	return &CachingEmbedder{next: next, cache: cache, logger: log}
}

// Embed returns a copy so callers cannot mutate cached vectors.
func (e *CachingEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	key := sha256.Sum256([]byte(text))
	if vec, ok := e.cache.Get(key); ok {
		return clone(vec), nil
	}

	vec, err := e.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	e.cache.Add(key, clone(vec))
	return vec, nil
}

func (e *CachingEmbedder) Len() int {
	return e.cache.Len()
}

func clone(v []float64) []float64 {
	out := make([]float64, len(v))
	copy(out, v)
	return out
}
