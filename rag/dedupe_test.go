package rag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finsight/ragqa/docstore"
)

func hit(id, text string, page int, score float64) docstore.Hit {
	return docstore.Hit{
		Chunk: docstore.Chunk{ChunkID: id, Text: text, Source: "report.pdf", Page: page},
		Score: score,
	}
}

func Test_Dedupe_DropsNearDuplicatesAndCapsPages(t *testing.T) {
	d := Deduplicator{Enabled: true, MaxPerPage: 2, SimilarityThreshold: 0.8}

	hits := []docstore.Hit{
		hit("a", "The company's total revenue for 2024 was $1.2 billion, representing a 15% increase from the previous year.", 1, 0.95),
		hit("b", "The company's total revenue for 2024 was $1.2 billion, representing a 15% growth from the previous year.", 1, 0.93),
		hit("c", "Operating expenses increased by 8% to $800 million in 2024.", 1, 0.90),
		hit("d", "Cash flow from operations was $400 million in 2024.", 2, 0.88),
		hit("e", "The net profit margin improved to 12% in 2024.", 1, 0.85),
	}

	out := d.Dedupe(hits)

	require.Len(t, out, 3)
	// b is a restatement of a, so the higher-scoring a survives; e is the
	// third hit on page 1 and falls to the per-page cap.
	assert.Equal(t, "a", out[0].Chunk.ChunkID)
	assert.Equal(t, "c", out[1].Chunk.ChunkID)
	assert.Equal(t, "d", out[2].Chunk.ChunkID)
}

func Test_Dedupe_ComparesNormalizedText(t *testing.T) {
	d := Deduplicator{Enabled: true, MaxPerPage: 5, SimilarityThreshold: 0.8}

	hits := []docstore.Hit{
		hit("a", "Total Revenue Was $1.2 Billion.", 1, 0.9),
		hit("b", "total   revenue\nwas $1.2 billion.", 2, 0.8),
	}

	out := d.Dedupe(hits)
	require.Len(t, out, 1)
	assert.Equal(t, "a", out[0].Chunk.ChunkID)
}

func Test_Dedupe_PageCapIsPerSource(t *testing.T) {
	d := Deduplicator{Enabled: true, MaxPerPage: 1, SimilarityThreshold: 0.9}

	hits := []docstore.Hit{
		{Chunk: docstore.Chunk{ChunkID: "a", Text: "Revenue grew.", Source: "q1.pdf", Page: 1}, Score: 0.9},
		{Chunk: docstore.Chunk{ChunkID: "b", Text: "Expenses fell sharply this quarter.", Source: "q2.pdf", Page: 1}, Score: 0.8},
		{Chunk: docstore.Chunk{ChunkID: "c", Text: "Margins held steady throughout.", Source: "q1.pdf", Page: 1}, Score: 0.7},
	}

	out := d.Dedupe(hits)
	require.Len(t, out, 2)
	assert.Equal(t, "a", out[0].Chunk.ChunkID)
	assert.Equal(t, "b", out[1].Chunk.ChunkID)
}

func Test_Dedupe_PreservesOrder(t *testing.T) {
	d := Deduplicator{Enabled: true, MaxPerPage: 5, SimilarityThreshold: 0.99}

	hits := []docstore.Hit{
		hit("a", "Assets totaled $5 billion.", 1, 0.9),
		hit("b", "Liabilities totaled $2 billion.", 2, 0.85),
		hit("c", "Equity stood at $3 billion.", 3, 0.8),
	}

	out := d.Dedupe(hits)
	require.Len(t, out, 3)
	for i, h := range out {
		assert.Equal(t, hits[i].Chunk.ChunkID, h.Chunk.ChunkID)
	}
}

func Test_Dedupe_IsIdempotent(t *testing.T) {
	d := Deduplicator{Enabled: true, MaxPerPage: 2, SimilarityThreshold: 0.8}

	hits := []docstore.Hit{
		hit("a", "The company's total revenue for 2024 was $1.2 billion, representing a 15% increase from the previous year.", 1, 0.95),
		hit("b", "The company's total revenue for 2024 was $1.2 billion, representing a 15% growth from the previous year.", 1, 0.93),
		hit("c", "Operating expenses increased by 8% to $800 million in 2024.", 1, 0.90),
		hit("d", "Cash flow from operations was $400 million in 2024.", 2, 0.88),
	}

	once := d.Dedupe(hits)
	twice := d.Dedupe(once)
	assert.Equal(t, once, twice)
}

func Test_Dedupe_DisabledIsIdentity(t *testing.T) {
	d := Deduplicator{Enabled: false, MaxPerPage: 1, SimilarityThreshold: 0.1}

	hits := []docstore.Hit{
		hit("a", "Same text.", 1, 0.9),
		hit("b", "Same text.", 1, 0.9),
		hit("c", "Same text.", 1, 0.9),
	}

	assert.Equal(t, hits, d.Dedupe(hits))
}

func Test_matchRatio(t *testing.T) {
	assert.InDelta(t, 1.0, matchRatio("total revenue", "total revenue"), 1e-9)
	assert.Greater(t, matchRatio(
		normalizeText("The company's total revenue for 2024 was $1.2 billion, representing a 15% increase from the previous year."),
		normalizeText("The company's total revenue for 2024 was $1.2 billion, representing a 15% growth from the previous year."),
	), 0.8)
	assert.Less(t, matchRatio(
		normalizeText("The company's total revenue for 2024 was $1.2 billion, representing a 15% increase from the previous year."),
		normalizeText("Cash flow from operations was $400 million in 2024."),
	), 0.8)
}
