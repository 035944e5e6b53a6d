package rag

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/finsight/ragqa/docstore"
)

// Deduplicator trims near-duplicate evidence. Overlapping chunks restate the
// same facts, which wastes context budget and biases generation toward
// repeated material; the per-page cap keeps one page from crowding out the
// rest even when its chunks are all distinct.
type Deduplicator struct {
	Enabled             bool
	MaxPerPage          int
	SimilarityThreshold float64
}

// Dedupe processes hits in their given (descending-score) order so the
// highest-scoring representative of duplicated content always survives.
// It drops entries, never reorders them. When disabled it is the identity
// function.
func (d Deduplicator) Dedupe(hits []docstore.Hit) []docstore.Hit {
	if !d.Enabled {
		return hits
	}

	type pageKey struct {
		source string
		page   int
	}

	perPage := make(map[pageKey]int)
	accepted := make([]docstore.Hit, 0, len(hits))
	var acceptedTexts []string

	for _, h := range hits {
		key := pageKey{h.Chunk.Source, h.Chunk.Page}
		if d.MaxPerPage > 0 && perPage[key] >= d.MaxPerPage {
			continue
		}

		norm := normalizeText(h.Chunk.Text)
		duplicate := false
		for _, t := range acceptedTexts {
			if matchRatio(norm, t) >= d.SimilarityThreshold {
				duplicate = true
				break
			}
		}
		if duplicate {
			continue
		}

		perPage[key]++
		accepted = append(accepted, h)
		acceptedTexts = append(acceptedTexts, norm)
	}

	return accepted
}

func normalizeText(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// matchRatio is the longest-matching-block similarity ratio in [0, 1],
// computed character-wise over normalized text. 1.0 means identical after
// normalization.
func matchRatio(a, b string) float64 {
	m := difflib.NewMatcher(strings.Split(a, ""), strings.Split(b, ""))
	return m.Ratio()
}
