// Package retrieval runs similarity search across every indexed document
// and merges the per-document results into one globally ranked list.
package retrieval

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/sweetbite/mealqa/internal/store"
)

// overFetchCap bounds the per-document candidate pool during fan-out.
const overFetchCap = 50

// Searcher is the subset of the vector store the retriever needs.
type Searcher interface {
	Documents(ctx context.Context) ([]string, error)
	SearchOne(ctx context.Context, docID string, queryVec []float32, k int) ([]store.ScoredChunk, error)
}

// Embedder turns query text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Retriever fans a query out over all per-document indexes.
type Retriever struct {
	store    Searcher
	embedder Embedder
}

// New creates a retriever over the given store and embedder.
func New(s Searcher, e Embedder) *Retriever {
	return &Retriever{store: s, embedder: e}
}

// Search embeds the query once, searches every document in parallel, drops
// candidates below threshold, and returns the best topK across documents.
// Every returned score is >= threshold and the result is sorted descending
// by score with a deterministic tie-break.
func (r *Retriever) Search(ctx context.Context, query string, topK int, threshold float64) ([]store.ScoredChunk, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("top_k must be positive, got %d", topK)
	}

	queryVec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	docIDs, err := r.store.Documents(ctx)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	if len(docIDs) == 0 {
		return nil, nil
	}

	// Each document contributes more than topK candidates because global
	// re-ranking can drop locally strong matches.
	perDoc := topK * 3
	if perDoc > overFetchCap {
		perDoc = overFetchCap
	}

	var mu sync.Mutex
	var candidates []store.ScoredChunk

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for _, docID := range docIDs {
		g.Go(func() error {
			hits, err := r.store.SearchOne(gctx, docID, queryVec, perDoc)
			if err != nil {
				// One unreadable document must not abort the whole
				// fan-out.
				log.Printf("Search failed for document %s, skipping: %v", docID, err)
				return nil
			}
			mu.Lock()
			for _, hit := range hits {
				if hit.Score >= threshold {
					candidates = append(candidates, hit)
				}
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		if candidates[i].DocumentID != candidates[j].DocumentID {
			return candidates[i].DocumentID < candidates[j].DocumentID
		}
		return candidates[i].Position < candidates[j].Position
	})
	if len(candidates) > topK {
		candidates = candidates[:topK]
	}
	return candidates, nil
}

// FollowUpSearch is the stricter variant used on the follow-up path. It
// runs the same algorithm with its own candidate cap and threshold.
func (r *Retriever) FollowUpSearch(ctx context.Context, query string, maxChunks int, threshold float64) ([]store.ScoredChunk, error) {
	return r.Search(ctx, query, maxChunks, threshold)
}
