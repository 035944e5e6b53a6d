package docstore

import "context"

// Chunk is the unit of retrieval: a bounded slice of one page of one source
// document, plus the provenance needed to cite it. Immutable once created.
type Chunk struct {
	Text       string
	Source     string
	Page       int
	ChunkIndex int
	ChunkID    string
}

// Hit pairs a stored chunk with the similarity score it earned for a query.
type Hit struct {
	Chunk Chunk
	Score float64
}

// Index stores embedded chunks and answers nearest-neighbour queries.
// Search returns up to k hits without threshold filtering; scores are
// comparable across calls to the same instance, higher means closer.
// Add is atomic per batch: either every chunk is stored or none is.
type Index interface {
	Add(ctx context.Context, chunks []Chunk) error
	Search(ctx context.Context, query string, k int) ([]Hit, error)
	Count(ctx context.Context) int
	Delete(ctx context.Context, ids []string) error
	Clear(ctx context.Context) error
	// Verify checks that the index is usable with the configured embedding
	// function. A dimensionality mismatch with previously stored vectors is
	// unrecoverable and must abort startup.
	Verify(ctx context.Context) error
}
