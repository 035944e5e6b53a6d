package rag

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/finsight/ragqa/docstore"
)

// Generator produces free text from a prompt. It is the only generative
// dependency of the pipeline; a nil Generator means every answer takes the
// deterministic fallback path.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

const promptTemplate = `You are an expert financial analyst assistant. Your task is to answer questions about financial statements based on the provided context.

Guidelines:
1. Answer questions accurately based ONLY on the provided context
2. If the context doesn't contain enough information, clearly state that
3. Provide specific numbers, percentages, and financial metrics when available
4. Explain financial concepts clearly for better understanding
5. If asked about trends, compare different periods when data is available
6. Always cite the specific sections or pages from the context when possible

Context from financial documents:
%s

Previous conversation (if any):
%s

Question: %s

Please provide a comprehensive answer based on the financial document context provided above.`

const (
	noEvidenceAnswer = "I couldn't find relevant information in the indexed documents to answer your question. " +
		"Please try rephrasing your question or ensure the document contains the information you're looking for."
	retrievalFailedAnswer = "I encountered a problem while searching the indexed documents. Please try again."
)

const sourceExcerptLimit = 500

// Config holds every tunable of the pipeline. It is constructed once at
// startup and passed in by value; no component reads ambient state.
type Config struct {
	ChunkSize           int
	ChunkOverlap        int
	RetrievalK          int
	SimilarityThreshold float64
	DedupEnabled        bool
	MaxPerPage          int
	ContentSimilarity   float64
	MaxHistory          int
	Timeout             time.Duration
}

// Pipeline is the retrieval-and-grounding core: it owns the write path
// (split + index) and the read path (retrieve, dedupe, assemble,
// synthesize). All of its stages except the index itself are stateless, so
// one Pipeline serves concurrent questions.
type Pipeline struct {
	log       *slog.Logger
	index     docstore.Index
	splitter  *Splitter
	retriever *Retriever
	dedup     Deduplicator
	assembler Assembler
	gen       Generator
	timeout   time.Duration

	mu       sync.Mutex
	ingested map[string][]string
}

func New(index docstore.Index, gen Generator, cfg Config, log *slog.Logger) (*Pipeline, error) {
	splitter, err := NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		return nil, fmt.Errorf("invalid chunking configuration: %w", err)
	}

	return &Pipeline{
		log:       log,
		index:     index,
		splitter:  splitter,
		retriever: NewRetriever(index, cfg.RetrievalK, cfg.SimilarityThreshold),
		dedup: Deduplicator{
			Enabled:             cfg.DedupEnabled,
			MaxPerPage:          cfg.MaxPerPage,
			SimilarityThreshold: cfg.ContentSimilarity,
		},
		assembler: Assembler{MaxHistory: cfg.MaxHistory},
		gen:       gen,
		timeout:   cfg.Timeout,
		ingested:  make(map[string][]string),
	}, nil
}

// Ingest splits the extracted pages of one source document into chunks and
// stores them. Re-ingesting a source replaces its previous chunks, so the
// call is idempotent per source. The add itself is atomic: on error nothing
// from this document is searchable.
func (p *Pipeline) Ingest(ctx context.Context, source string, pages []Page) (int, error) {
	var chunks []docstore.Chunk
	for _, pg := range pages {
		chunks = append(chunks, p.splitter.Split(pg.Text, PageMeta{Source: source, Page: pg.Number})...)
	}
	if len(chunks) == 0 {
		return 0, fmt.Errorf("no text content in %s", source)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if old := p.ingested[source]; len(old) > 0 {
		if err := p.index.Delete(ctx, old); err != nil {
			return 0, fmt.Errorf("failed to replace %s: %w", source, err)
		}
		delete(p.ingested, source)
	}

	if err := p.index.Add(ctx, chunks); err != nil {
		return 0, fmt.Errorf("failed to index %s: %w", source, err)
	}

	ids := make([]string, 0, len(chunks))
	for _, c := range chunks {
		ids = append(ids, c.ChunkID)
	}
	p.ingested[source] = ids

	p.log.Info("ingested document", "source", source, "pages", len(pages), "chunks", len(chunks))
	return len(chunks), nil
}

// Remove drops all chunks of a previously ingested source. Removing an
// unknown source is a no-op.
func (p *Pipeline) Remove(ctx context.Context, source string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	ids, ok := p.ingested[source]
	if !ok {
		return nil
	}
	if err := p.index.Delete(ctx, ids); err != nil {
		return fmt.Errorf("failed to remove %s: %w", source, err)
	}
	delete(p.ingested, source)

	p.log.Info("removed document", "source", source, "chunks", len(ids))
	return nil
}

// DocumentInfo describes one ingested source document.
type DocumentInfo struct {
	Source string `json:"source"`
	Chunks int    `json:"chunks"`
}

// Documents lists the ingested sources in lexical order.
func (p *Pipeline) Documents() []DocumentInfo {
	p.mu.Lock()
	defer p.mu.Unlock()

	docs := make([]DocumentInfo, 0, len(p.ingested))
	for source, ids := range p.ingested {
		docs = append(docs, DocumentInfo{Source: source, Chunks: len(ids)})
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Source < docs[j].Source })

	return docs
}

// DocumentCount reports the number of chunks currently indexed.
func (p *Pipeline) DocumentCount(ctx context.Context) int {
	return p.index.Count(ctx)
}

// Answer resolves a question against the indexed documents. It never
// returns an error: retrieval and generation failures degrade into
// explanatory answer text with empty sources.
func (p *Pipeline) Answer(ctx context.Context, question string, history []Turn) Answer {
	start := time.Now()

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	hits, err := p.retriever.Retrieve(ctx, question)
	if err != nil {
		p.log.Error("retrieval failed", "question", question, "error", err)
		return p.result(retrievalFailedAnswer, nil, start)
	}
	if len(hits) == 0 {
		return p.result(noEvidenceAnswer, nil, start)
	}

	evidence := p.dedup.Dedupe(hits)
	contextText := p.assembler.Context(evidence)
	historyText := p.assembler.History(history)

	answer := p.synthesize(ctx, question, contextText, historyText)

	return p.result(answer, evidence, start)
}

// synthesize tries the generative path and falls back to the deterministic
// keyword answer when no generator is configured, the call fails, or it
// returns nothing usable.
func (p *Pipeline) synthesize(ctx context.Context, question, contextText, historyText string) string {
	if p.gen == nil {
		return fallbackAnswer(question, contextText)
	}

	prompt := fmt.Sprintf(promptTemplate, contextText, historyText, question)
	text, err := p.gen.Generate(ctx, prompt)
	if err != nil {
		p.log.Warn("generation failed, using fallback", "error", err)
		return fallbackAnswer(question, contextText)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return fallbackAnswer(question, contextText)
	}

	return text
}

func (p *Pipeline) result(answer string, evidence []docstore.Hit, start time.Time) Answer {
	sources := make([]Source, 0, len(evidence))
	for _, h := range evidence {
		sources = append(sources, Source{
			Content: excerpt(h.Chunk.Text),
			Page:    h.Chunk.Page,
			Score:   h.Score,
			Source:  h.Chunk.Source,
			ChunkID: h.Chunk.ChunkID,
		})
	}

	return Answer{
		Answer:         answer,
		Sources:        sources,
		ProcessingTime: time.Since(start).Seconds(),
	}
}

func excerpt(text string) string {
	if len(text) <= sourceExcerptLimit {
		return text
	}
	// back off to a rune boundary so the cut never leaves a broken sequence
	cut := sourceExcerptLimit
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + "..."
}
