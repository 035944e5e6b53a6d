package rag

import (
	"fmt"
	"strings"

	"github.com/finsight/ragqa/docstore"
)

// Sentinel strings keep downstream prompt assembly from ever interpolating
// an empty field.
const (
	NoContextSentinel = "No relevant context found."
	NoHistorySentinel = "No previous conversation."
)

const defaultMaxHistory = 5

// Assembler renders evidence and conversation history into the text blocks
// the answer prompt is built from.
type Assembler struct {
	MaxHistory int
}

// Context renders each evidence item as a numbered source block carrying
// its page number and similarity score, in evidence order.
func (a Assembler) Context(hits []docstore.Hit) string {
	if len(hits) == 0 {
		return NoContextSentinel
	}

	parts := make([]string, 0, len(hits))
	for i, h := range hits {
		parts = append(parts, fmt.Sprintf("Source %d (Page %d, Similarity: %.3f):\n%s\n",
			i+1, h.Chunk.Page, h.Score, h.Chunk.Text))
	}

	return strings.Join(parts, "\n")
}

// History renders the most recent turns, oldest first, one "Role: content"
// line per turn.
func (a Assembler) History(turns []Turn) string {
	if len(turns) == 0 {
		return NoHistorySentinel
	}

	n := a.MaxHistory
	if n <= 0 {
		n = defaultMaxHistory
	}
	if len(turns) > n {
		turns = turns[len(turns)-n:]
	}

	lines := make([]string, 0, len(turns))
	for _, t := range turns {
		lines = append(lines, fmt.Sprintf("%s: %s", capitalize(t.Role), t.Content))
	}

	return strings.Join(lines, "\n")
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
