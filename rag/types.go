package rag

// Page is one page of extracted document text, the unit the ingest path
// consumes. Page numbers start at 1.
type Page struct {
	Number int
	Text   string
}

// Turn is a single entry of the caller-supplied conversation history.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Source describes one piece of evidence an answer is grounded in.
type Source struct {
	Content string  `json:"content"`
	Page    int     `json:"page"`
	Score   float64 `json:"score"`
	Source  string  `json:"source"`
	ChunkID string  `json:"chunk_id"`
}

// Answer is the result of a question. It is always populated: the answer
// string is never empty and Sources is empty (not nil) when no evidence
// backs the answer.
type Answer struct {
	Answer         string   `json:"answer"`
	Sources        []Source `json:"sources"`
	ProcessingTime float64  `json:"processing_time"`
}
