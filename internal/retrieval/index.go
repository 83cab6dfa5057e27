// Package retrieval implements nearest-neighbour search over a small mixed
// corpus of offers and knowledge documents.
package retrieval

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cloudwego/eino/components/embedding"
	"golang.org/x/sync/singleflight"

	logx "github.com/retention-intel/server/pkg/logger"
)

const corpusEmbedTimeout = 2 * time.Minute

// Index embeds its corpus on first search and caches the vectors for the
// life of the process. Safe for concurrent use.
type Index struct {
	items    []CorpusItem
	embedder embedding.Embedder

	group   singleflight.Group
	mu      sync.RWMutex
	vectors [][]float64
}

func NewIndex(items []CorpusItem, embedder embedding.Embedder) *Index {
	return &Index{items: items, embedder: embedder}
}

// Search returns at most k hits ordered by descending cosine similarity.
// Ties keep corpus order.
func (ix *Index) Search(ctx context.Context, query string, k int) ([]Hit, error) {
	if len(ix.items) == 0 || k <= 0 {
		return []Hit{}, nil
	}

	vectors, err := ix.corpusVectors(ctx)
	if err != nil {
		return nil, err
	}

	qv, err := ix.embedder.EmbedStrings(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(qv) != 1 {
		return nil, fmt.Errorf("embed query: got %d vectors, want 1", len(qv))
	}

	hits := make([]Hit, 0, len(ix.items))
	for i, item := range ix.items {
		if len(vectors[i]) != len(qv[0]) {
			logx.Warn().Str("item", item.ID).Int("item_dim", len(vectors[i])).Int("query_dim", len(qv[0])).Msg("embedding dimension mismatch, skipping item")
			continue
		}
		hits = append(hits, Hit{Item: item, Score: CosineSimilarity(qv[0], vectors[i])})
	}

	sort.SliceStable(hits, func(a, b int) bool { return hits[a].Score > hits[b].Score })
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// corpusVectors embeds the corpus exactly once across concurrent callers.
// The shared embed is detached from the caller that started it, so one
// cancelled turn never fails the others waiting on it. Each caller still
// stops waiting when its own ctx ends. A failed attempt is not cached.
func (ix *Index) corpusVectors(ctx context.Context) ([][]float64, error) {
	ix.mu.RLock()
	cached := ix.vectors
	ix.mu.RUnlock()
	if cached != nil {
		return cached, nil
	}

	ch := ix.group.DoChan("corpus", func() (any, error) {
		ix.mu.RLock()
		cached := ix.vectors
		ix.mu.RUnlock()
		if cached != nil {
			return cached, nil
		}

		embedCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), corpusEmbedTimeout)
		defer cancel()

		texts := make([]string, len(ix.items))
		for i, item := range ix.items {
			texts[i] = item.Text
		}
		vectors, err := ix.embedder.EmbedStrings(embedCtx, texts)
		if err != nil {
			return nil, fmt.Errorf("embed corpus: %w", err)
		}
		if len(vectors) != len(texts) {
			return nil, fmt.Errorf("embed corpus: got %d vectors for %d items", len(vectors), len(texts))
		}

		ix.mu.Lock()
		ix.vectors = vectors
		ix.mu.Unlock()
		logx.Info().Int("items", len(vectors)).Msg("semantic corpus embedded")
		return vectors, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([][]float64), nil
	}
}
