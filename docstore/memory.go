package docstore

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"

	"github.com/amikos-tech/chroma-go/pkg/embeddings"
)

// MemoryStore is a brute-force cosine-similarity vector index held entirely
// in process memory. Reads run concurrently; adds are serialized so a batch
// is never partially visible.
type MemoryStore struct {
	log *slog.Logger
	ef  embeddings.EmbeddingFunction

	mu        sync.RWMutex
	dimension int
	chunks    []Chunk
	vectors   [][]float32
}

func NewMemoryStore(ef embeddings.EmbeddingFunction, log *slog.Logger) *MemoryStore {
	return &MemoryStore{
		log: log,
		ef:  ef,
	}
}

func (s *MemoryStore) Add(ctx context.Context, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, 0, len(chunks))
	for _, c := range chunks {
		texts = append(texts, c.Text)
	}

	// Embedding happens outside the lock; nothing is stored until every
	// chunk in the batch has a vector.
	embs, err := s.ef.EmbedDocuments(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to embed %d chunks: %w", len(chunks), err)
	}
	if len(embs) != len(chunks) {
		return fmt.Errorf("embedding count mismatch: got %d vectors for %d chunks", len(embs), len(chunks))
	}

	vectors := make([][]float32, 0, len(embs))
	for _, e := range embs {
		vectors = append(vectors, e.ContentAsFloat32())
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dim := s.dimension
	for _, v := range vectors {
		if dim == 0 {
			dim = len(v)
			continue
		}
		if len(v) != dim {
			return fmt.Errorf("vector dimension mismatch: index holds %d-dim vectors, got %d", dim, len(v))
		}
	}
	s.dimension = dim

	s.chunks = append(s.chunks, chunks...)
	s.vectors = append(s.vectors, vectors...)
	return nil
}

func (s *MemoryStore) Search(ctx context.Context, query string, k int) ([]Hit, error) {
	emb, err := s.ef.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	qv := emb.ContentAsFloat32()

	s.mu.RLock()
	defer s.mu.RUnlock()

	hits := make([]Hit, 0, len(s.chunks))
	for i := range s.vectors {
		hits = append(hits, Hit{
			Chunk: s.chunks[i],
			Score: cosine(qv, s.vectors[i]),
		})
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if k < len(hits) {
		hits = hits[:k]
	}

	return hits, nil
}

func (s *MemoryStore) Count(ctx context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks)
}

func (s *MemoryStore) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	chunks := s.chunks[:0]
	vectors := s.vectors[:0]
	for i, c := range s.chunks {
		if _, ok := drop[c.ChunkID]; ok {
			continue
		}
		chunks = append(chunks, c)
		vectors = append(vectors, s.vectors[i])
	}
	s.chunks = chunks
	s.vectors = vectors
	return nil
}

func (s *MemoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks = nil
	s.vectors = nil
	s.dimension = 0
	return nil
}

func (s *MemoryStore) Verify(ctx context.Context) error {
	// The store starts empty every run, so the only thing to verify is that
	// the embedding function actually produces vectors.
	emb, err := s.ef.EmbedQuery(ctx, "dimension probe")
	if err != nil {
		return fmt.Errorf("embedding function unusable: %w", err)
	}
	if len(emb.ContentAsFloat32()) == 0 {
		return fmt.Errorf("embedding function returned an empty vector")
	}
	return nil
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
