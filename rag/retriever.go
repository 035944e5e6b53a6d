package rag

import (
	"context"
	"fmt"
	"sort"

	"github.com/finsight/ragqa/docstore"
)

// Retriever queries the vector index and applies the similarity floor.
// An empty result means "insufficient context", never a failure.
type Retriever struct {
	index     docstore.Index
	k         int
	threshold float64
}

func NewRetriever(index docstore.Index, k int, threshold float64) *Retriever {
	return &Retriever{index: index, k: k, threshold: threshold}
}

func (r *Retriever) Retrieve(ctx context.Context, question string) ([]docstore.Hit, error) {
	hits, err := r.index.Search(ctx, question, r.k)
	if err != nil {
		return nil, fmt.Errorf("failed to search index: %w", err)
	}

	kept := make([]docstore.Hit, 0, len(hits))
	for _, h := range hits {
		if h.Score >= r.threshold {
			kept = append(kept, h)
		}
	}

	sort.SliceStable(kept, func(i, j int) bool { return kept[i].Score > kept[j].Score })

	return kept, nil
}
