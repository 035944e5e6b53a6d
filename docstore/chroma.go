package docstore

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	chroma "github.com/amikos-tech/chroma-go/pkg/api/v2"
	"github.com/amikos-tech/chroma-go/pkg/embeddings"
)

const (
	MetaSource     = "source"
	MetaPage       = "page"
	MetaChunkIndex = "chunk_index"
)

// ChromaStore keeps vectors in a Chroma collection so the index survives
// process restarts. Chunk IDs double as Chroma document IDs, which makes
// re-adding the same chunk idempotent.
type ChromaStore struct {
	log         *slog.Logger
	client      chroma.Client
	ef          embeddings.EmbeddingFunction
	name        string
	requestSize int

	mu  sync.RWMutex
	col chroma.Collection
}

type ChromaStoreConfig struct {
	BaseURL       string
	Collection    string
	EmbeddingFunc embeddings.EmbeddingFunction
	RequestSize   int
	Reset         bool
}

func NewChromaStore(ctx context.Context, cfg ChromaStoreConfig, log *slog.Logger) (*ChromaStore, error) {
	client, err := chroma.NewHTTPClient(chroma.WithBaseURL(cfg.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("failed to create chroma client: %w", err)
	}

	s := &ChromaStore{
		log:         log,
		client:      client,
		ef:          cfg.EmbeddingFunc,
		name:        cfg.Collection,
		requestSize: cfg.RequestSize,
	}

	if cfg.Reset {
		// Ignore the error: the collection may not exist yet.
		_ = client.DeleteCollection(ctx, cfg.Collection)
	}

	col, err := client.GetOrCreateCollection(ctx, cfg.Collection,
		chroma.WithEmbeddingFunctionCreate(cfg.EmbeddingFunc))
	if err != nil {
		return nil, fmt.Errorf("failed to open collection %s: %w", cfg.Collection, err)
	}
	s.col = col

	return s, nil
}

func (s *ChromaStore) collection() chroma.Collection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.col
}

func (s *ChromaStore) Add(ctx context.Context, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	// Held across all batches: a concurrent Clear must not swap the
	// collection out from under a half-written add.
	s.mu.RLock()
	defer s.mu.RUnlock()
	col := s.col

	for _, batch := range splitBatches(chunks, s.requestSize) {
		ids := make([]chroma.DocumentID, 0, len(batch))
		texts := make([]string, 0, len(batch))
		metas := make([]chroma.DocumentMetadata, 0, len(batch))
		for _, c := range batch {
			ids = append(ids, chroma.DocumentID(c.ChunkID))
			texts = append(texts, c.Text)
			metas = append(metas, chroma.NewDocumentMetadata(
				chroma.NewStringAttribute(MetaSource, c.Source),
				chroma.NewIntAttribute(MetaPage, int64(c.Page)),
				chroma.NewIntAttribute(MetaChunkIndex, int64(c.ChunkIndex)),
			))
		}

		err := col.Add(ctx,
			chroma.WithIDs(ids...),
			chroma.WithTexts(texts...),
			chroma.WithMetadatas(metas...),
		)
		if err != nil {
			return fmt.Errorf("failed to add %d chunks: %w", len(batch), err)
		}
	}

	return nil
}

func (s *ChromaStore) Search(ctx context.Context, query string, k int) ([]Hit, error) {
	r, err := s.collection().Query(ctx,
		chroma.WithQueryTexts(query),
		chroma.WithNResults(k),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query collection: %w", err)
	}

	docGroups := r.GetDocumentsGroups()
	if len(docGroups) == 0 {
		return nil, nil
	}

	docs := docGroups[0]
	ids := r.GetIDGroups()[0]
	metadatas := r.GetMetadatasGroups()[0]
	distances := r.GetDistancesGroups()[0]

	hits := make([]Hit, 0, len(docs))
	for i := range docs {
		source, _ := metadatas[i].GetString(MetaSource)
		page, _ := metadatas[i].GetInt(MetaPage)
		idx, _ := metadatas[i].GetInt(MetaChunkIndex)
		hits = append(hits, Hit{
			Chunk: Chunk{
				Text:       docs[i].ContentString(),
				Source:     source,
				Page:       int(page),
				ChunkIndex: int(idx),
				ChunkID:    string(ids[i]),
			},
			// Chroma reports distances, lower is closer; the rest of the
			// pipeline expects similarities, higher is closer.
			Score: 1 - float64(distances[i]),
		})
	}

	return hits, nil
}

func (s *ChromaStore) Count(ctx context.Context) int {
	n, err := s.collection().Count(ctx)
	if err != nil {
		s.log.Error("failed to count collection", "error", err)
		return 0
	}
	return n
}

func (s *ChromaStore) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	docIDs := make([]chroma.DocumentID, 0, len(ids))
	for _, id := range ids {
		docIDs = append(docIDs, chroma.DocumentID(id))
	}

	err := s.collection().Delete(ctx, chroma.WithIDsDelete(docIDs...))
	if err != nil {
		return fmt.Errorf("failed to delete %d chunks: %w", len(ids), err)
	}

	return nil
}

func (s *ChromaStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.client.DeleteCollection(ctx, s.name); err != nil {
		return fmt.Errorf("failed to delete collection %s: %w", s.name, err)
	}

	col, err := s.client.GetOrCreateCollection(ctx, s.name,
		chroma.WithEmbeddingFunctionCreate(s.ef))
	if err != nil {
		return fmt.Errorf("failed to recreate collection %s: %w", s.name, err)
	}
	s.col = col

	return nil
}

func (s *ChromaStore) Verify(ctx context.Context) error {
	if s.Count(ctx) == 0 {
		return nil
	}

	// A probe query against a non-empty collection surfaces dimensionality
	// mismatches between stored vectors and the configured embedding
	// function before any real traffic does.
	_, err := s.collection().Query(ctx,
		chroma.WithQueryTexts("dimension probe"),
		chroma.WithNResults(1),
	)
	if err != nil {
		return fmt.Errorf("collection %s is not usable with the configured embeddings: %w", s.name, err)
	}

	return nil
}

func splitBatches(chunks []Chunk, size int) [][]Chunk {
	if size <= 0 || len(chunks) <= size {
		return [][]Chunk{chunks}
	}

	batches := make([][]Chunk, 0, len(chunks)/size+1)
	for start := 0; start < len(chunks); start += size {
		end := min(start+size, len(chunks))
		batches = append(batches, chunks[start:end])
	}

	return batches
}
