package rag

import (
	"fmt"
	"strings"

	"github.com/finsight/ragqa/docstore"
)

// separators are tried in order of decreasing granularity so that splits
// land on paragraph breaks before line breaks, line breaks before word
// boundaries, and only fall back to cutting mid-word when a single word
// exceeds the chunk size.
var separators = []string{"\n\n", "\n", " ", ""}

// Splitter cuts page text into chunks of at most chunkSize characters with
// chunkOverlap characters carried over between consecutive chunks.
// Splitting is deterministic: the same text and configuration always yield
// the same chunks and chunk IDs.
type Splitter struct {
	chunkSize    int
	chunkOverlap int
}

func NewSplitter(chunkSize, chunkOverlap int) (*Splitter, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", chunkSize)
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		return nil, fmt.Errorf("chunk overlap must be in [0, %d), got %d", chunkSize, chunkOverlap)
	}
	return &Splitter{chunkSize: chunkSize, chunkOverlap: chunkOverlap}, nil
}

// PageMeta carries the provenance stamped onto every chunk of a page.
type PageMeta struct {
	Source string
	Page   int
}

func (s *Splitter) Split(text string, meta PageMeta) []docstore.Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var chunks []docstore.Chunk
	idx := 0
	for _, piece := range s.splitText(text, separators) {
		piece = strings.TrimSpace(piece)
		if piece == "" {
			continue
		}
		chunks = append(chunks, docstore.Chunk{
			Text:       piece,
			Source:     meta.Source,
			Page:       meta.Page,
			ChunkIndex: idx,
			ChunkID:    fmt.Sprintf("%s_page_%d_chunk_%d", meta.Source, meta.Page, idx),
		})
		idx++
	}

	return chunks
}

func (s *Splitter) splitText(text string, seps []string) []string {
	sep := ""
	var rest []string
	for i, sp := range seps {
		if sp == "" {
			break
		}
		if strings.Contains(text, sp) {
			sep = sp
			rest = seps[i+1:]
			break
		}
	}

	var splits []string
	if sep == "" {
		splits = splitChars(text)
	} else {
		splits = strings.Split(text, sep)
	}

	var out []string
	var good []string
	for _, sp := range splits {
		if len(sp) <= s.chunkSize {
			good = append(good, sp)
			continue
		}
		// This piece is too long on its own: flush what we have and break
		// it down with the finer separators.
		if len(good) > 0 {
			out = append(out, s.merge(good, sep)...)
			good = nil
		}
		if len(rest) == 0 {
			out = append(out, sp)
		} else {
			out = append(out, s.splitText(sp, rest)...)
		}
	}
	if len(good) > 0 {
		out = append(out, s.merge(good, sep)...)
	}

	return out
}

// merge packs consecutive splits into chunks close to chunkSize, carrying a
// tail of at most chunkOverlap characters into the next chunk.
func (s *Splitter) merge(splits []string, sep string) []string {
	var chunks []string
	var window []string
	total := 0

	joined := func() int { return total + len(sep)*max(len(window)-1, 0) }

	for _, sp := range splits {
		if len(window) > 0 && joined()+len(sep)+len(sp) > s.chunkSize {
			chunks = append(chunks, strings.Join(window, sep))
			for len(window) > 0 && (total > s.chunkOverlap || joined()+len(sep)+len(sp) > s.chunkSize) {
				total -= len(window[0])
				window = window[1:]
			}
		}
		window = append(window, sp)
		total += len(sp)
	}
	if len(window) > 0 {
		chunks = append(chunks, strings.Join(window, sep))
	}

	return chunks
}

func splitChars(text string) []string {
	out := make([]string, 0, len(text))
	for _, r := range text {
		out = append(out, string(r))
	}
	return out
}
